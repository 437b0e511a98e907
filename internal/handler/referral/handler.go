package referral

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	referralService "github.com/zhouzirui/mindcheck/backend/internal/service/referral"
	"github.com/zhouzirui/mindcheck/backend/pkg/utils"
)

// Handler 转介查询处理器
type Handler struct {
	svc *referralService.Service
}

// New 创建转介处理器
func New(svc *referralService.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册转介路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/referral", h.handleLookup)
}

func (h *Handler) handleLookup(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Zip string `json:"zip"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	url, err := h.svc.Lookup(payload.Zip)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"url": url})
}

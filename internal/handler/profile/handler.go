package profile

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/mindcheck/backend/internal/analysis/phq9"
	"github.com/zhouzirui/mindcheck/backend/internal/handler/assessment"
	"github.com/zhouzirui/mindcheck/backend/internal/model/chat"
	"github.com/zhouzirui/mindcheck/backend/internal/service/conversation"
	profileService "github.com/zhouzirui/mindcheck/backend/internal/service/profile"
	"github.com/zhouzirui/mindcheck/backend/pkg/utils"
)

// Handler 用户档案的HTTP处理器
type Handler struct {
	profiles *profileService.Service
}

// New 创建档案处理器
func New(profiles *profileService.Service) *Handler {
	return &Handler{profiles: profiles}
}

// RegisterRoutes 注册档案相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/profiles/{profileID}", h.handleGet)
	r.Delete("/profiles/{profileID}", h.handleReset)
	r.Post("/profiles/{profileID}/onboarding", h.handleOnboarding)
	r.Get("/profiles/{profileID}/messages", h.handleMessages)
}

type onboardingResponse struct {
	chat.Profile
	Greeting string `json:"greeting"`
}

// handleOnboarding 保存姓名与问卷得分，完成引导。
func (h *Handler) handleOnboarding(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "profileID")

	var payload struct {
		Name    string `json:"name"`
		Answers []int  `json:"answers"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	answers, err := phq9.ParseAnswers(payload.Answers)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, assessment.AnswerError(err))
		return
	}

	p, err := h.profiles.Complete(r.Context(), id, payload.Name, answers)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, onboardingResponse{
		Profile:  p,
		Greeting: conversation.Greeting(p.UserName),
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.profiles.Load(r.Context(), chi.URLParam(r, "profileID"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, p)
}

// handleReset 清除档案、聊天记录与倒计时。
func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.profiles.Reset(r.Context(), chi.URLParam(r, "profileID")); err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleMessages 返回已保存的聊天记录，未开始聊天时返回空数组。
func (h *Handler) handleMessages(w http.ResponseWriter, r *http.Request) {
	kv, err := h.profiles.Scope(chi.URLParam(r, "profileID"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	messages, ok := conversation.NewHistory(kv).Load(r.Context())
	if !ok {
		messages = []chat.Message{}
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, profileService.ErrInvalidID):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, profileService.ErrNameRequired):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, profileService.ErrNotOnboarded):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	default:
		log.Error().Err(err).Str("component", "handler").Msg("profile request failed")
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}

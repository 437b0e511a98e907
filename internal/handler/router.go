package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/mindcheck/backend/internal/handler/assessment"
	"github.com/zhouzirui/mindcheck/backend/internal/handler/chat"
	"github.com/zhouzirui/mindcheck/backend/internal/handler/profile"
	"github.com/zhouzirui/mindcheck/backend/internal/handler/referral"
	middlewarePkg "github.com/zhouzirui/mindcheck/backend/internal/middleware"
	profileService "github.com/zhouzirui/mindcheck/backend/internal/service/profile"
	referralService "github.com/zhouzirui/mindcheck/backend/internal/service/referral"
	"github.com/zhouzirui/mindcheck/backend/pkg/utils"
)

// Services 汇总路由需要的核心服务。
type Services struct {
	Profiles *profileService.Service
	Referral *referralService.Service
	Chat     chat.Deps
}

// NewRouter wires HTTP routes to core services.
func NewRouter(svc Services) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	assessmentHandler := assessment.New()
	profileHandler := profile.New(svc.Profiles)
	referralHandler := referral.New(svc.Referral)
	chatHandler := chat.NewWebSocketHandler(svc.Chat)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		assessmentHandler.RegisterRoutes(api)
		profileHandler.RegisterRoutes(api)
		referralHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)
	})

	return r
}

package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/mindcheck/backend/internal/analysis/crisis"
	"github.com/zhouzirui/mindcheck/backend/internal/config"
	"github.com/zhouzirui/mindcheck/backend/internal/handler"
	"github.com/zhouzirui/mindcheck/backend/internal/handler/chat"
	"github.com/zhouzirui/mindcheck/backend/internal/service/ai"
	"github.com/zhouzirui/mindcheck/backend/internal/service/profile"
	"github.com/zhouzirui/mindcheck/backend/internal/service/referral"
	"github.com/zhouzirui/mindcheck/backend/internal/store/backend"
	"github.com/zhouzirui/mindcheck/backend/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	utils.SetupLogger(cfg.Log.Level, cfg.Log.Pretty)
	if envErr != nil {
		log.Debug().Err(envErr).Msg("no .env file loaded, using system environment variables only")
	}

	kv, err := backend.Open(ctx, cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("failed to open store")
	}
	defer func() {
		if err := kv.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close store")
		}
	}()

	assistant, err := ai.New(ctx, cfg.AI)
	if err != nil {
		log.Fatal().Err(err).Str("provider", cfg.AI.Provider).Msg("failed to initialize assistant")
	}
	log.Info().Str("provider", cfg.AI.Provider).Msg("assistant initialized")

	detector, err := crisis.New(cfg.Crisis.ExtraPatterns...)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid CRISIS_EXTRA_PATTERNS")
	}

	referrals, err := referral.NewService(cfg.Referral.BaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid REFERRAL_BASE_URL")
	}

	profiles := profile.NewService(kv)
	router := handler.NewRouter(handler.Services{
		Profiles: profiles,
		Referral: referrals,
		Chat: chat.Deps{
			Profiles:  profiles,
			Assistant: assistant,
			Detector:  detector,
			Duration:  cfg.Session.Duration,
		},
	})

	if err := runServer(ctx, cfg.Server, router); err != nil {
		log.Error().Err(err).Msg("server error")
		os.Exit(1)
	}
}

func runServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) error {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		// 被升级为 WebSocket 的连接不受 Shutdown 管理，依赖请求上下文退出。
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		log.Info().Str("addr", serverCfg.Addr).Msg("mindcheck backend listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		log.Info().Msg("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

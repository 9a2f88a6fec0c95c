package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"vetter/internal/api"
	"vetter/internal/chat"
	"vetter/internal/completion"
	"vetter/internal/config"
	"vetter/internal/logging"
	"vetter/internal/models"
	"vetter/internal/session"
)

func main() {
	cfg, err := config.Load(os.Getenv("VETTER_CONFIG"))
	if err != nil {
		if errors.Is(err, config.ErrMissingAPIKey) {
			fmt.Fprint(os.Stderr, config.SetupInstructions)
		} else {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		}
		os.Exit(1)
	}

	logger, err := logging.New(cfg.BasicConfig.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	completer, err := completion.New(ctx, cfg)
	if err != nil {
		logger.Fatalw("init completion client", "client", cfg.Provider.Client, "error", err)
	}
	service := chat.NewService(completer, cfg.Retry.Policy(), logger)

	sessions := session.NewStore(cfg.SessionTTL(), logger, models.SystemMessage(cfg.Chat.SystemPrompt))
	go sessions.Run(ctx)

	if !cfg.BasicConfig.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), logging.Middleware(logger))
	handlers := api.NewHandler(service, sessions, api.Options{
		Title:          cfg.Chat.Title,
		AllowedOrigins: cfg.BasicConfig.AllowedOrigins,
		SecureCookies:  cfg.BasicConfig.SecureCookies,
		Logger:         logger,
	})
	handlers.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.BasicConfig.ServerAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnw("shutdown", "error", err)
		}
	}()

	logger.Infow("server starting",
		"addr", srv.Addr,
		"client", cfg.Provider.Client,
		"model", cfg.Provider.Model,
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalw("server stopped", "error", err)
	}
	logger.Infow("server stopped")
}

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gatekeeper-auth/gatekeeper/internal/app"
	"github.com/gatekeeper-auth/gatekeeper/internal/auth"
	"github.com/gatekeeper-auth/gatekeeper/internal/observability"
	"github.com/gatekeeper-auth/gatekeeper/internal/platform/cache"
	"github.com/gatekeeper-auth/gatekeeper/internal/platform/db"
	"github.com/gatekeeper-auth/gatekeeper/internal/rbac"
	"github.com/gatekeeper-auth/gatekeeper/internal/tokens"
	"github.com/gatekeeper-auth/gatekeeper/internal/users"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	rbacRepo := rbac.NewRepository(pool)
	rbacService := rbac.NewService(rbacRepo)
	if err := rbacService.Seed(ctx); err != nil {
		logger.Error("seed permissions", slog.Any("error", err))
		os.Exit(1)
	}

	denylist := tokens.NewDenylist(redisClient)
	tokenService := tokens.NewService(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, rbacService, denylist)

	guard := rbac.Guard{Tokens: tokenService, Logger: logger}

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, tokenService, guard, cfg.LoginRateLimit, cfg.LoginRateWindow)

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo)
	usersHandler := users.NewHandler(logger, usersService, guard)

	rbacHandler := rbac.NewHandler(logger, rbacService, guard)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:       logger,
		Config:       cfg,
		AuthHandler:  authHandler,
		UsersHandler: usersHandler,
		RBACHandler:  rbacHandler,
		Metrics:      metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/postboard/backend/internal/client"
	"github.com/postboard/backend/internal/config"
	"github.com/postboard/backend/internal/db"
	"github.com/postboard/backend/internal/handler"
	"github.com/postboard/backend/internal/service"
	"github.com/postboard/backend/internal/session"
)

//go:generate swag init -g main.go -o docs --parseInternal

// @title postboard API
// @version 1.0
// @description Posts CRUD with cookie-based JWT sessions, refresh rotation and RBAC.
// @BasePath /
// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name access_token
func main() {
	// .env 는 로컬 개발용이며 없어도 된다
	_ = godotenv.Load()

	cfg := config.Load()
	setupLogger(cfg.Server.LogLevel)

	if err := run(cfg); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pool.Close()

	pg := db.NewPostgres(pool)
	if err := pg.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := pg.SeedRBAC(ctx); err != nil {
		return err
	}

	rdb, err := db.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()
	sessions := session.NewStore(rdb)

	authService, err := service.NewAuthService(pg, sessions, cfg.Auth, cfg.Server.IsProduction())
	if err != nil {
		return err
	}
	if cfg.Admin.Email != "" {
		if err := authService.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password, cfg.Admin.Name); err != nil {
			return err
		}
	}
	postService := service.NewPostService(pg)

	providers, err := oauthProviders(ctx, cfg.OAuth)
	if err != nil {
		return err
	}

	if cfg.Server.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handler.Router{
		Guard:          handler.NewGuard(authService),
		Auth:           handler.NewAuthHandler(authService, cfg.Server.FrontendURL),
		Posts:          handler.NewPostHandler(postService),
		Health:         handler.NewHealthHandler(pg, sessions),
		OAuthProviders: providers,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", srv.Addr, "env", cfg.Server.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	slog.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

// oauthProviders - CLIENT_ID/SECRET 이 설정된 provider 만 활성화
func oauthProviders(ctx context.Context, cfg config.OAuthConfig) ([]client.OAuthProvider, error) {
	var providers []client.OAuthProvider
	if cfg.Google.Enabled() {
		google, err := client.NewGoogleProvider(ctx, cfg.Google)
		if err != nil {
			return nil, err
		}
		providers = append(providers, google)
	}
	if cfg.GitHub.Enabled() {
		providers = append(providers, client.NewGitHubProvider(cfg.GitHub))
	}
	if cfg.Kakao.Enabled() {
		providers = append(providers, client.NewKakaoProvider(cfg.Kakao))
	}
	for _, p := range providers {
		slog.Info("oauth provider enabled", "provider", p.Name())
	}
	return providers, nil
}

func setupLogger(level string) {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}

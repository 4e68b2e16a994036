package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"callcenter-platform/internal/analytics"
	"callcenter-platform/internal/auth"
	"callcenter-platform/internal/callbacks"
	"callcenter-platform/internal/config"
	"callcenter-platform/internal/exotel"
	"callcenter-platform/internal/heartbeat"
	"callcenter-platform/internal/httpapi"
	"callcenter-platform/internal/jobs"
	"callcenter-platform/internal/numbers"
	"callcenter-platform/internal/rbac"
	"callcenter-platform/internal/syncer"
	"callcenter-platform/internal/webhook"
	"callcenter-platform/pkg/logger"
	"callcenter-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Repositories.
	callbackRepo := callbacks.NewPostgresRepo(db)
	healthRepo := heartbeat.NewPostgresRepo(db)
	syncRepo := syncer.NewPostgresRepo(db)
	numberRepo := numbers.NewPostgresRepo(db)

	// Provider plumbing: every outbound request goes limiter → client.
	limiter := exotel.NewLimiter(logger.Component(log, "limiter"))
	defer limiter.Close()
	client := exotel.NewClient(logger.Component(log, "exotel"))

	// Services.
	callbackSvc := callbacks.NewService(callbackRepo, logger.Component(log, "callbacks"))
	outbound := exotel.NewService(cfg.Exotel, cfg.App.PublicBaseURL, client, limiter, callbackSvc, logger.Component(log, "outbound"))
	heartbeatSvc := heartbeat.NewService(healthRepo, outbound, rdb, logger.Component(log, "heartbeat"))
	syncSvc := syncer.NewService(syncRepo, outbound, callbackSvc, logger.Component(log, "syncer"))
	numberSvc := numbers.NewService(numberRepo, outbound, syncSvc, logger.Component(log, "numbers"))
	analyticsSvc := analytics.NewService(callbackRepo)

	// Background jobs.
	scheduler := jobs.NewScheduler(rdb, logger.Component(log, "jobs"))
	if err := scheduler.Register(cfg.Jobs, heartbeatSvc, syncSvc, numberSvc); err != nil {
		log.Error("job registration failed", "err", err)
		os.Exit(1)
	}
	scheduler.Start()

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	webhookHandlers := webhook.Handlers{
		Guard:      webhook.NewGuard(cfg.Exotel.APIKey, cfg.Exotel.APIToken, logger.Component(log, "webhook")),
		Reconciler: callbackSvc,
	}
	apiHandlers := httpapi.Handlers{
		Auth:        authManager,
		ResolveUser: staticUserResolver(),
		Outbound:    outbound,
		Callbacks:   callbackSvc,
		Analytics:   analyticsSvc,
		Heartbeat:   heartbeatSvc,
		Syncer:      syncSvc,
		Numbers:     numberSvc,
	}

	registerRoutes(r, db, webhookHandlers, apiHandlers, auth.RequireAccessToken(authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	scheduler.Stop(shutdownCtx)
}

// staticUserResolver stands in for the user directory service until its
// HTTP client lands. It grants the bootstrap admin only.
// TODO: replace with the directory-service client once its API is final.
func staticUserResolver() httpapi.UserResolver {
	adminID := os.Getenv("BOOTSTRAP_ADMIN_ID")
	return func(ctx context.Context, userID string) (string, []string, error) {
		if adminID != "" && userID == adminID {
			return rbac.RoleAdmin, nil, nil
		}
		return "", nil, errors.New("unknown user")
	}
}

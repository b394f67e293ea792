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

	"roadassist-platform/internal/auth"
	"roadassist-platform/internal/config"
	"roadassist-platform/internal/eventlog"
	"roadassist-platform/internal/fanout"
	"roadassist-platform/internal/httpapi"
	"roadassist-platform/internal/tickets"
	"roadassist-platform/internal/vision"
	"roadassist-platform/internal/voice"
	"roadassist-platform/internal/webhook"
	"roadassist-platform/pkg/logger"
	"roadassist-platform/pkg/utils"

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

	provider, err := voice.NewBlandProvider(cfg.Voice)
	if err != nil {
		log.Error("voice provider init failed", "err", err)
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

	eventLog := eventlog.NewPostgresRepo(db)
	hub := fanout.NewHub()
	store := tickets.NewStore()

	var visionSvc *vision.Service
	if cfg.Vision.APIKey != "" {
		analyzer, err := vision.NewOpenAIAnalyzer(cfg.Vision)
		if err != nil {
			log.Error("vision init failed", "err", err)
			os.Exit(1)
		}
		visionSvc = vision.NewService(analyzer, vision.NewMemoryRepository())
	} else {
		log.Info("image analysis disabled; set VISION_API_KEY to enable")
		visionSvc = vision.NewService(nil, vision.NewMemoryRepository())
	}

	// Pull-based catch-up for anything the push channel misses. Starts from
	// process start: older logged events belong to sessions this process
	// never created.
	reconciler := tickets.NewReconciler(store, tickets.LogSource{Repo: eventLog}, 10*time.Second, time.Now().UTC())
	go reconciler.Run(rootCtx)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	handlers := httpapi.Handlers{
		Auth:    authManager,
		Voice:   provider,
		Tickets: store,
		Events:  eventLog,
		Vision:  visionSvc,
		DB:      db,
		Redis:   rdb,
		CallCap: cfg.Voice.MaxActiveCalls,
	}
	ingress := webhook.Handler{
		Secret:  cfg.Voice.WebhookSecret,
		Log:     eventLog,
		Hub:     hub,
		Tickets: store,
		Redis:   rdb,
	}

	registerRoutes(r, handlers, ingress, hub, authManager)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "provider", provider.Name())
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
}

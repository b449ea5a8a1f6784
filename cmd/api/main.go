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

	"database/sql"

	"github.com/Dan9191/cashflow-risk/internal/cache"
	"github.com/Dan9191/cashflow-risk/internal/config"
	"github.com/Dan9191/cashflow-risk/internal/handler"
	"github.com/Dan9191/cashflow-risk/internal/repository"
	"github.com/Dan9191/cashflow-risk/internal/risk"
	"github.com/Dan9191/cashflow-risk/internal/scheduler"
	"github.com/Dan9191/cashflow-risk/internal/service"
	"github.com/Dan9191/cashflow-risk/internal/utils/email"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Initialize database
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	// Optional collaborators
	var scoreCache service.ScoreCache
	if cfg.RedisAddr != "" {
		if c := cache.NewScoreCache(cfg.RedisAddr, cfg.RedisPassword, cfg.ScoreCacheTTL, logger); c != nil {
			defer c.Close()
			scoreCache = c
		}
	}
	var notifier service.Notifier
	if cfg.AlertsEnabled() {
		notifier = email.NewSender(cfg, logger)
	}

	// Initialize layers
	repo := repository.NewRepository(db)
	svc := service.NewService(repo, scoreCache, notifier, logger, cfg)
	h := handler.NewHandler(svc, logger)

	// Load persisted model; a corrupt bundle must not be served
	if _, err := svc.ReloadModel(context.Background()); err != nil {
		if !errors.Is(err, risk.ErrModelNotLoaded) {
			logger.Fatalf("Failed to load model: %v", err)
		}
		logger.Warn("No persisted model found, scoring is unavailable until /model/train runs")
	}

	// Scheduled retraining
	if cfg.RetrainSchedule != "" {
		sched, err := scheduler.New(cfg.RetrainSchedule, svc, logger)
		if err != nil {
			logger.Fatalf("Failed to create scheduler: %v", err)
		}
		sched.Start()
		defer sched.Stop()
	}

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler.NewRouter(h, cfg, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
	logger.Info("Server stopped")
}

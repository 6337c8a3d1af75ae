package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"marzadmin/internal/bootstrap"
	"marzadmin/internal/bot"
	"marzadmin/internal/config"
	cronpkg "marzadmin/internal/cron"
	"marzadmin/internal/middleware"
	"marzadmin/internal/panel"
	"marzadmin/internal/repository"
	"marzadmin/internal/router"
)

func main() {
	// --- Logger ---
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// --- Database ---
	db, err := config.NewDatabase(&cfg.Database, cfg.Server.Env)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := bootstrap.MigrateAndSeed(db); err != nil {
		logger.Fatal("Failed to bootstrap database schema", zap.Error(err))
	}

	// --- Repositories ---
	panelRepo := repository.NewPanelRepository(db)
	adminRepo := repository.NewAdminRepository(db)
	settingRepo := repository.NewSettingRepository(db)

	// --- Stats aggregator ---
	statsCache := panel.NewStatsCache(cfg.Panel.StatsTTL)
	aggregator := panel.NewAggregator(statsCache, cfg.Panel.StatsPageSize, logger)

	// --- Echo ---
	e := echo.New()
	e.HideBanner = true

	// --- Webhook Deduper (Redis with in-memory fallback) ---
	deduper := middleware.NewDeduper(&cfg.Redis, 10*time.Minute, logger)

	// --- Bot ---
	stores := &bot.Stores{
		Panels:   panelRepo,
		Admins:   adminRepo,
		Settings: settingRepo,
	}
	teleBot, err := bot.New(cfg, stores, aggregator, logger)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	// --- Routes ---
	router.Setup(e, logger, deduper, teleBot.WebhookHandler())

	// --- Cron Scheduler ---
	scheduler := cronpkg.New(cfg, panelRepo, settingRepo, statsCache, teleBot.Notify, logger)
	scheduler.Start()

	// --- Start Server ---
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	go func() {
		logger.Info("Starting server", zap.String("addr", addr))
		if err := e.Start(addr); err != nil {
			logger.Info("Server stopped", zap.Error(err))
		}
	}()

	go teleBot.Start()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	teleBot.Stop()

	ctx := scheduler.Stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

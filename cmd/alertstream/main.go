package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"alert-stream/internal/api"
	"alert-stream/internal/config"
	"alert-stream/internal/db"
	"alert-stream/internal/display"
	"alert-stream/internal/logging"
	"alert-stream/internal/models"
	"alert-stream/internal/mute"
	"alert-stream/internal/normalize"
	"alert-stream/internal/notification"
	"alert-stream/internal/stream"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Dir, cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// Connect to the sensor metadata database, if configured
	var catalog *db.Catalog
	if cfg.DB.DSN != "" {
		dbConn, err := db.New(context.Background(), cfg.DB.DSN)
		if err != nil {
			logger.Errorf("Failed to connect to database: %v", err)
			log.Fatalf("Database connection failed: %v", err)
		}
		defer dbConn.Close()

		catalog = db.NewCatalog(dbConn, logger)
		if err := catalog.Refresh(context.Background()); err != nil {
			logger.Errorf("Failed to load sensor catalog: %v", err)
		}
	}

	// Display sinks
	sinks := []display.Sink{display.NewConsole(logger)}
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != 0 {
		sinks = append(sinks, display.NewTelegram(
			cfg.Telegram.BotToken,
			cfg.Telegram.ChatID,
			cfg.Telegram.RateLimit,
			models.Level(cfg.Telegram.MinLevel),
			logger,
		))
		logger.Infof("Telegram sink enabled for chat %d", cfg.Telegram.ChatID)
	}

	dispatcher := display.NewDispatcher(sinks, cfg.Notify.QueueSize, cfg.Notify.MaxWorkers, logger)
	var wg sync.WaitGroup
	dispatcher.Start(&wg)

	// Notification pipeline
	mutes := mute.NewRegistry()
	store := notification.NewStore(mutes, dispatcher, logger, cfg.Notify.DefaultTTL, cfg.Notify.CriticalTTL)
	if catalog != nil {
		store.SetSensorLookup(catalog)
	}

	// Stream manager
	manager := stream.NewManager(stream.Config{
		URL:                 cfg.Stream.URL,
		BaseDelay:           cfg.Stream.BaseDelay,
		MaxDelay:            cfg.Stream.MaxDelay,
		MaxAttempts:         cfg.Stream.MaxAttempts,
		AbnormalCloseFactor: cfg.Stream.AbnormalCloseFactor,
		DialTimeout:         cfg.Stream.DialTimeout,
		SurfaceParseErrors:  cfg.Stream.SurfaceParseErrors,
	}, normalize.New(), store, stream.Events{
		OnOpen: func() {
			logger.Infof("Alert stream connected: %s", cfg.Stream.URL)
		},
		OnClose: func(code int, wasClean bool) {
			logger.Warnf("Alert stream closed: code=%d clean=%t", code, wasClean)
		},
		OnError: func(err error) {
			logger.Errorf("Alert stream error: %v", err)
		},
		OnFatal: func(err error) {
			logger.Errorf("Alert stream gave up: %v", err)
		},
	}, logger)
	manager.Connect()

	// Start API server
	router := api.NewRouter(manager, store, mutes, catalog, logger, cfg)
	server := &http.Server{Addr: cfg.API.Port, Handler: router}
	go func() {
		logger.Infof("Starting API server on %s", cfg.API.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("API server failed: %v", err)
		}
	}()

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	logger.Infof("Shutting down...")

	manager.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("API shutdown failed: %v", err)
	}

	dispatcher.Stop()
	store.Stop()
	wg.Wait()
	logger.Infof("Service stopped")
}

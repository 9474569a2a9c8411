package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smokewatch-backend/config"
	"smokewatch-backend/internal/alert"
	"smokewatch-backend/internal/api"
	"smokewatch-backend/internal/db"
	"smokewatch-backend/internal/dispatchsvc"
	"smokewatch-backend/internal/push"
	"smokewatch-backend/internal/reconcile"
	"smokewatch-backend/internal/store"
	"smokewatch-backend/internal/vendorapi"
)

func main() {
	logger := log.New(os.Stdout, "smokewatch ", log.LstdFlags)
	log.SetPrefix("smokewatch ")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	if cfg.Ingest.SharedSecret == "" {
		logger.Fatalf("ingest.shared_secret must be configured; the telemetry bridge cannot authenticate without it.")
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	appStore := store.NewGormStore(gormDB)
	logger.Println("data store initialized")

	// Outbound calls share one pooled client; per-call sessions are not
	// reopened.
	vendorClient := vendorapi.NewClient(&cfg.Vendor, &http.Client{
		Timeout: time.Duration(cfg.Vendor.TimeoutSeconds) * time.Second,
	})
	pushGateway := push.NewExpoGateway(&cfg.Push, &http.Client{
		Timeout: time.Duration(cfg.Push.TimeoutSeconds) * time.Second,
	})
	dispatchGateway := dispatchsvc.NewEFlaraGateway(&cfg.Dispatch, &http.Client{
		Timeout: time.Duration(cfg.Dispatch.TimeoutSeconds) * time.Second,
	})

	reconciler := reconcile.NewReconciler(vendorClient, appStore)
	dispatcher := alert.NewDispatcher(appStore, pushGateway, dispatchGateway,
		&cfg.Push, cfg.Dispatch.GraceWindow, cfg.Vendor.TenantPrefix, cfg.Tasks.MaxConcurrent)

	handler := api.NewHandler(reconciler, appStore, vendorClient, dispatcher, cfg.Ingest.SharedSecret)
	router := api.NewRouter(handler, &cfg.Server)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	// In-flight alert and escalation units are cancelled and drained after
	// the listener stops accepting work.
	dispatcher.Close()

	logger.Println("Server gracefully stopped")
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bidding-system/internal/api"
	"bidding-system/internal/api/handlers"
	"bidding-system/internal/bootstrap"
	"bidding-system/internal/config"
	"bidding-system/internal/services"
	"bidding-system/pkg/logger"

	redisClient "github.com/go-redis/redis/v8"
)

func main() {
	log := logger.New()
	log.Info("Starting item service")

	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	log = logger.NewWithLevel(cfg.Log.Level)

	// A standalone item service cannot share a process-local store.
	if strings.EqualFold(cfg.Store.Driver, "memory") {
		log.Error("item-service needs a shared store, set store.driver to mysql or redis")
		os.Exit(1)
	}

	ctx := context.Background()

	var rdb *redisClient.Client
	if strings.EqualFold(cfg.Store.Driver, "redis") {
		rdb, err = bootstrap.ConnectRedis(ctx, cfg.Redis, log)
		if err != nil {
			log.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
	}

	stores, err := bootstrap.OpenStores(ctx, cfg, rdb, log)
	if err != nil {
		log.Error("Failed to open price store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := stores.Close(); err != nil {
			log.Error("Failed to close store", "error", err)
		}
	}()

	monitor := services.NewStoreMonitor(stores.Catalog, cfg.Monitor.ProbeItemID, cfg.Monitor.FailureThreshold, log)
	health := handlers.NewHealthHandler("item-service", monitor, nil)
	e := api.NewItemAPI(handlers.NewItemHandler(stores.Catalog, stores.History, log), health, log)

	scheduler := services.NewMaintenanceScheduler(monitor, nil, cfg.Monitor.ProbeInterval, 0, log)
	if err := scheduler.Start(ctx); err != nil {
		log.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.ItemAPI.Port)
	go func() {
		log.Info("Starting item server", "address", serverAddr)
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down item service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := scheduler.Stop(); err != nil {
		log.Error("Failed to stop scheduler", "error", err)
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Item service stopped")
}

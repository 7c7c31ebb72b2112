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

	"bidding-system/internal/api"
	"bidding-system/internal/api/handlers"
	"bidding-system/internal/bootstrap"
	"bidding-system/internal/config"
	"bidding-system/internal/domain"
	"bidding-system/internal/infrastructure/redis"
	"bidding-system/internal/infrastructure/websocket"
	"bidding-system/internal/services"
	"bidding-system/pkg/logger"

	redisClient "github.com/go-redis/redis/v8"
)

func main() {
	log := logger.New()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	log = logger.NewWithLevel(cfg.Log.Level)
	log.Info("Starting bidding service", "config", cfg.GetConfigString())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var rdb *redisClient.Client
	if bootstrap.NeedsRedis(cfg) {
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
	defer stores.Close()

	outcomes, outcomeSweeper := bootstrap.NewOutcomeCache(cfg, rdb)

	broadcaster := services.NewBroadcaster(cfg.Broadcast.QueueSize,
		services.OverflowPolicy(cfg.Broadcast.OverflowPolicy), cfg.Broadcast.GapWait, log)
	monitor := services.NewStoreMonitor(stores.Catalog, cfg.Monitor.ProbeItemID, cfg.Monitor.FailureThreshold, log)

	// Accepted bids go to local sessions directly and, with the relay on, to
	// the other instances through Redis.
	var publisher domain.EventPublisher = broadcaster
	var relay *services.RelayPublisher
	if cfg.Broadcast.RelayEnabled {
		relay = services.NewRelayPublisher(broadcaster,
			redis.NewRedisEventPublisher(rdb, cfg.Broadcast.Channel), cfg.Broadcast.QueueSize, log)
		publisher = relay
		go relay.Run(ctx)

		eventRelay := services.NewEventRelay(broadcaster, cfg.Instance.ID, log)
		subscriber := redis.NewRedisEventSubscriber(rdb, cfg.Broadcast.Channel, log)
		go func() {
			if err := eventRelay.Start(ctx, subscriber); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Event relay stopped", "error", err)
			}
		}()
	}

	committer := services.NewBidCommitter(
		stores.Catalog,
		services.NewItemSequencer(),
		services.NewIncrementValidator(cfg.Bid.Increment),
		publisher,
		log,
		services.WithCommitTimeout(cfg.Bid.Timeout),
		services.WithOutcomeCache(outcomes),
		services.WithHealthReporter(monitor),
		services.WithInstanceID(cfg.Instance.ID),
	)

	connManager := websocket.NewConnectionManager(log)
	gateway := websocket.NewSessionGateway(committer, stores.Catalog, broadcaster, connManager, log)
	if cfg.Gateway.RejectWhenDegraded {
		gateway.RejectWhenDegraded(monitor)
	}

	sweepers := []domain.Sweeper{broadcaster}
	if outcomeSweeper != nil {
		sweepers = append(sweepers, outcomeSweeper)
	}
	scheduler := services.NewMaintenanceScheduler(monitor, sweepers,
		cfg.Monitor.ProbeInterval, cfg.Monitor.SweepInterval, log)
	if err := scheduler.Start(ctx); err != nil {
		log.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}

	health := handlers.NewHealthHandler("bidding-service", monitor, connManager.Count)
	router := api.NewBiddingRouter(handlers.NewWebSocketHandlers(gateway), health, log)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	// The item API shares this process's store, which is the only way to
	// seed items when the store is in memory.
	itemAPI := api.NewItemAPI(handlers.NewItemHandler(stores.Catalog, stores.History, log), health, log)
	itemAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.ItemAPI.Port)

	go func() {
		log.Info("Starting bidding server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	go func() {
		log.Info("Starting item API", "address", itemAddr)
		if err := itemAPI.Start(itemAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Item API failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down bidding service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	if err := itemAPI.Shutdown(shutdownCtx); err != nil {
		log.Error("Item API forced to shutdown", "error", err)
	}

	// Hijacked websocket connections are not closed by Shutdown.
	if err := connManager.CloseAll(); err != nil {
		log.Error("Failed to close sessions", "error", err)
	}
	gateway.Wait()

	if err := scheduler.Stop(); err != nil {
		log.Error("Failed to stop scheduler", "error", err)
	}

	cancel()
	if relay != nil {
		select {
		case <-relay.Done():
		case <-shutdownCtx.Done():
			log.Warn("Relay flush did not finish")
		}
	}
	broadcaster.Close()

	log.Info("Bidding service stopped")
}

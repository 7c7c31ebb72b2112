package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bidding-system/internal/bootstrap"
	"bidding-system/internal/config"
	"bidding-system/internal/infrastructure/leader"
	"bidding-system/internal/infrastructure/mysql"
	"bidding-system/internal/infrastructure/redis"
	"bidding-system/internal/services"
	"bidding-system/pkg/logger"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb, err := bootstrap.ConnectRedis(ctx, cfg.Redis, log)
	if err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
	db, err := mysql.Open(connectCtx, cfg.MySQL)
	if err == nil {
		err = mysql.EnsureSchema(connectCtx, db)
	}
	connectCancel()
	if err != nil {
		log.Error("Failed to connect to MySQL", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	election := leader.NewRedisLeaderElection(rdb, cfg.Leader.Key, cfg.Leader.TTL)
	recorder := services.NewAuditRecorder(mysql.NewMySQLBidRepository(db), election, cfg.Instance.ID, log)
	subscriber := redis.NewRedisEventSubscriber(rdb, cfg.Broadcast.Channel, log)

	go services.CampaignForLeadership(ctx, election, cfg.Instance.ID, cfg.Leader.TTL/2, log)

	go func() {
		if err := recorder.Start(ctx, subscriber); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Audit recorder failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down audit service...")
	cancel()

	releaseCtx, releaseCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer releaseCancel()
	if err := election.ReleaseLeadership(releaseCtx, cfg.Instance.ID); err != nil {
		log.Error("Failed to release leadership", "error", err)
	}

	log.Info("Audit service stopped")
}

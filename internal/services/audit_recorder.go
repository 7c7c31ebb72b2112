package services

import (
	"context"
	"time"

	"bidding-system/internal/domain"
	"bidding-system/pkg/logger"

	"github.com/google/uuid"
)

// AuditRecorder persists accepted bids from the cluster channel. Every audit
// instance receives every event; only the current leader writes.
type AuditRecorder struct {
	repo       domain.BidRepository
	leader     domain.LeaderElection
	instanceID string
	log        logger.Logger
}

func NewAuditRecorder(repo domain.BidRepository, leader domain.LeaderElection, instanceID string, log logger.Logger) *AuditRecorder {
	return &AuditRecorder{
		repo:       repo,
		leader:     leader,
		instanceID: instanceID,
		log:        log,
	}
}

func (ar *AuditRecorder) Start(ctx context.Context, subscriber domain.EventSubscriber) error {
	ar.log.Info("Starting audit recorder", "instance_id", ar.instanceID)
	return subscriber.SubscribeToBidEvents(ctx, func(event domain.BidEvent) error {
		return ar.Record(ctx, event)
	})
}

func (ar *AuditRecorder) Record(ctx context.Context, event domain.BidEvent) error {
	isLeader, err := ar.leader.IsLeader(ctx, ar.instanceID)
	if err != nil {
		return err
	}
	if !isLeader {
		return nil
	}

	acceptedAt := event.Timestamp
	if acceptedAt.IsZero() {
		acceptedAt = time.Now()
	}

	ar.log.Info("Storing accepted bid", "item_id", event.ItemID, "bidder_id", event.BidderID,
		"amount", event.NewPrice, "sequence_number", event.SequenceNumber)
	return ar.repo.SaveAcceptedBid(ctx, &domain.AuditRecord{
		ID:             uuid.NewString(),
		ItemID:         event.ItemID,
		BidderID:       event.BidderID,
		Amount:         event.NewPrice,
		SequenceNumber: event.SequenceNumber,
		AcceptedAt:     acceptedAt,
	})
}

// CampaignForLeadership keeps trying to take leadership until ctx is done.
func CampaignForLeadership(ctx context.Context, election domain.LeaderElection, instanceID string,
	interval time.Duration, log logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		became, err := election.BecomeLeader(ctx, instanceID)
		if err != nil {
			log.Error("Failed to attempt leadership", "error", err)
		} else if became {
			log.Info("Became audit leader", "instance_id", instanceID)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

package services

import (
	"context"
	"fmt"

	"bidding-system/internal/domain"
	"bidding-system/pkg/logger"
)

// EventRelay feeds accepted-bid events from other instances into the local
// broadcaster. Events this instance published itself were already delivered
// locally and are skipped.
type EventRelay struct {
	broadcaster domain.EventPublisher
	instanceID  string
	log         logger.Logger
}

func NewEventRelay(broadcaster domain.EventPublisher, instanceID string, log logger.Logger) *EventRelay {
	return &EventRelay{
		broadcaster: broadcaster,
		instanceID:  instanceID,
		log:         log,
	}
}

func (er *EventRelay) Start(ctx context.Context, subscriber domain.EventSubscriber) error {
	er.log.Info("Starting event relay", "instance_id", er.instanceID)
	return subscriber.SubscribeToBidEvents(ctx, er.handleBidEvent)
}

func (er *EventRelay) handleBidEvent(event domain.BidEvent) error {
	if event.ItemID == "" {
		return fmt.Errorf("bid event without item id: %+v", event)
	}
	if event.Origin != "" && event.Origin == er.instanceID {
		return nil
	}

	er.log.Debug("Relaying bid event", "item_id", event.ItemID,
		"sequence_number", event.SequenceNumber, "origin", event.Origin)
	return er.broadcaster.PublishBidEvent(context.Background(), event)
}

// RelayPublisher delivers to the local broadcaster synchronously and forwards
// to the cluster channel from a single goroutine, preserving publish order
// without making the committer wait on the network.
type RelayPublisher struct {
	local  domain.EventPublisher
	remote domain.EventPublisher
	queue  chan domain.BidEvent
	done   chan struct{}
	log    logger.Logger
}

func NewRelayPublisher(local, remote domain.EventPublisher, buffer int, log logger.Logger) *RelayPublisher {
	if buffer <= 0 {
		buffer = 1024
	}
	return &RelayPublisher{
		local:  local,
		remote: remote,
		queue:  make(chan domain.BidEvent, buffer),
		done:   make(chan struct{}),
		log:    log,
	}
}

func (rp *RelayPublisher) PublishBidEvent(ctx context.Context, event domain.BidEvent) error {
	if err := rp.local.PublishBidEvent(ctx, event); err != nil {
		rp.log.Error("Local broadcast failed", "item_id", event.ItemID, "error", err)
	}

	select {
	case rp.queue <- event:
	default:
		rp.log.Warn("Relay queue full, event not forwarded", "item_id", event.ItemID,
			"sequence_number", event.SequenceNumber)
	}
	return nil
}

// Run forwards queued events until ctx is done. Remaining events are flushed
// with a fresh context before returning.
func (rp *RelayPublisher) Run(ctx context.Context) {
	defer close(rp.done)
	for {
		select {
		case event := <-rp.queue:
			rp.forward(ctx, event)
		case <-ctx.Done():
			for {
				select {
				case event := <-rp.queue:
					rp.forward(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

// Done is closed once Run has returned.
func (rp *RelayPublisher) Done() <-chan struct{} {
	return rp.done
}

func (rp *RelayPublisher) forward(ctx context.Context, event domain.BidEvent) {
	if err := rp.remote.PublishBidEvent(ctx, event); err != nil {
		rp.log.Error("Failed to relay bid event", "item_id", event.ItemID,
			"sequence_number", event.SequenceNumber, "error", err)
	}
}

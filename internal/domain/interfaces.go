package domain

import (
	"context"
	"time"
)

// PriceStore is the durable owner of item prices. ConditionalSetPrice applies
// only when the stored version still equals expectedVersion and returns
// ErrVersionConflict otherwise.
type PriceStore interface {
	ReadPrice(ctx context.Context, itemID string) (price int64, version uint64, err error)
	ConditionalSetPrice(ctx context.Context, itemID string, newPrice int64, expectedVersion uint64) (newVersion uint64, err error)
}

// ItemCatalog is implemented by stores that can also create and list items.
type ItemCatalog interface {
	PriceStore
	CreateItem(ctx context.Context, itemID string, startingPrice int64) (*Item, error)
	GetItem(ctx context.Context, itemID string) (*Item, error)
}

// Repository interfaces
type BidRepository interface {
	SaveAcceptedBid(ctx context.Context, record *AuditRecord) error
	GetBidHistory(ctx context.Context, itemID string) ([]*AuditRecord, error)
}

// OutcomeCache remembers terminal outcomes by (itemID, submissionID) for a
// bounded window so retransmitted proposals are answered without reprocessing.
type OutcomeCache interface {
	Get(ctx context.Context, itemID, submissionID string) (*BidOutcome, bool, error)
	Put(ctx context.Context, itemID, submissionID string, outcome BidOutcome) error
}

// Sweeper is implemented by caches that expire entries on a schedule.
type Sweeper interface {
	Sweep(now time.Time) int
}

// Event interfaces
type EventPublisher interface {
	PublishBidEvent(ctx context.Context, event BidEvent) error
}

type EventSubscriber interface {
	SubscribeToBidEvents(ctx context.Context, handler EventHandler) error
}

type EventHandler func(event BidEvent) error

// HealthReporter receives store call results and exposes the degraded flag.
type HealthReporter interface {
	RecordSuccess()
	RecordFailure(err error)
	Degraded() bool
}

// Leader election interface
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}

// WebSocket interfaces
type WebSocketConnection interface {
	Send(message interface{}) error
	Close() error
	SessionID() string
	BidderID() string
}

type ConnectionManager interface {
	RegisterConnection(conn WebSocketConnection) error
	UnregisterConnection(sessionID string) error
	Count() int
	CloseAll() error
}

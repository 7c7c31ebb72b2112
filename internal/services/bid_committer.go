package services

import (
	"context"
	"errors"
	"time"

	"bidding-system/internal/domain"
	"bidding-system/pkg/logger"
)

const (
	defaultCommitTimeout  = 3 * time.Second
	lateWriteCheckTimeout = time.Second
)

// BidCommitter runs read-validate-write for one proposal inside the item's
// critical section. It never retries a conflicting write: the proposal's
// amount was computed against a price that no longer holds.
type BidCommitter struct {
	store      domain.PriceStore
	sequencer  *ItemSequencer
	validator  *IncrementValidator
	publisher  domain.EventPublisher
	outcomes   domain.OutcomeCache
	health     domain.HealthReporter
	timeout    time.Duration
	instanceID string
	now        func() time.Time
	log        logger.Logger
}

type BidCommitterOption func(*BidCommitter)

// WithCommitTimeout bounds lock wait plus store calls for a single proposal.
func WithCommitTimeout(d time.Duration) BidCommitterOption {
	return func(c *BidCommitter) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithOutcomeCache enables submission-id deduplication.
func WithOutcomeCache(cache domain.OutcomeCache) BidCommitterOption {
	return func(c *BidCommitter) {
		c.outcomes = cache
	}
}

func WithHealthReporter(health domain.HealthReporter) BidCommitterOption {
	return func(c *BidCommitter) {
		c.health = health
	}
}

func WithInstanceID(id string) BidCommitterOption {
	return func(c *BidCommitter) {
		c.instanceID = id
	}
}

func WithClock(now func() time.Time) BidCommitterOption {
	return func(c *BidCommitter) {
		if now != nil {
			c.now = now
		}
	}
}

func NewBidCommitter(
	store domain.PriceStore,
	sequencer *ItemSequencer,
	validator *IncrementValidator,
	publisher domain.EventPublisher,
	log logger.Logger,
	opts ...BidCommitterOption,
) *BidCommitter {
	c := &BidCommitter{
		store:     store,
		sequencer: sequencer,
		validator: validator,
		publisher: publisher,
		timeout:   defaultCommitTimeout,
		now:       time.Now,
		log:       log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Commit always returns a terminal outcome within the configured timeout.
func (c *BidCommitter) Commit(ctx context.Context, p domain.BidProposal) domain.BidOutcome {
	if p.ItemID == "" {
		return domain.Rejected(p.ItemID, domain.RejectItemNotFound)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var outcome domain.BidOutcome
	err := c.sequencer.Do(ctx, p.ItemID, func(ctx context.Context, slot *ItemSlot) error {
		outcome = c.commitLocked(ctx, slot, p)
		return nil
	})
	if err != nil {
		c.log.Warn("Bid timed out waiting for item", "item_id", p.ItemID, "bidder_id", p.BidderID, "error", err)
		return domain.Rejected(p.ItemID, domain.RejectTimeout)
	}

	if outcome.Accepted() {
		c.log.Info("Bid accepted", "item_id", p.ItemID, "bidder_id", p.BidderID,
			"amount", p.Amount, "sequence_number", outcome.SequenceNumber)
	} else {
		c.log.Info("Bid rejected", "item_id", p.ItemID, "bidder_id", p.BidderID,
			"amount", p.Amount, "reason", outcome.Reason, "violation", outcome.Violation)
	}
	return outcome
}

func (c *BidCommitter) commitLocked(ctx context.Context, slot *ItemSlot, p domain.BidProposal) domain.BidOutcome {
	if cached, ok := c.cachedOutcome(ctx, p); ok {
		return cached
	}

	price, version, err := c.store.ReadPrice(ctx, p.ItemID)
	if err != nil {
		return c.remember(ctx, p, c.storeFailure(ctx, p.ItemID, err))
	}
	c.recordSuccess()

	if violation := c.validator.Validate(p.Amount, price); violation != domain.ViolationNone {
		reason := domain.RejectInvalidIncrement
		if p.Amount == price && version > 0 {
			// An identical bid was committed first; this one lost the race.
			reason = domain.RejectConflict
		}
		outcome := domain.Rejected(p.ItemID, reason)
		outcome.Violation = violation
		outcome.ExpectedAmount = c.validator.NextAmount(price)
		return c.remember(ctx, p, outcome)
	}

	newVersion, err := c.store.ConditionalSetPrice(ctx, p.ItemID, p.Amount, version)
	if err != nil {
		if !isContextError(ctx, err) {
			return c.remember(ctx, p, c.storeFailure(ctx, p.ItemID, err))
		}
		// The write may have landed after the deadline. Check with a fresh
		// context so a committed bid is still acknowledged and broadcast.
		lateCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lateWriteCheckTimeout)
		defer cancel()
		if !c.writeLanded(lateCtx, p, version) {
			return c.remember(ctx, p, c.storeFailure(ctx, p.ItemID, err))
		}
		c.log.Warn("Bid write confirmed after deadline", "item_id", p.ItemID,
			"bidder_id", p.BidderID, "amount", p.Amount)
		ctx = lateCtx
		newVersion = version + 1
	}
	c.recordSuccess()

	outcome := domain.Accepted(p.ItemID, p.Amount, p.BidderID, slot.NextSequence(newVersion))
	outcome = c.remember(ctx, p, outcome)

	// Publishing inside the critical section keeps per-item broadcast order
	// equal to acceptance order. Publishers must not block.
	event := outcome.Event()
	event.Origin = c.instanceID
	event.Timestamp = c.now()
	if err := c.publisher.PublishBidEvent(ctx, event); err != nil {
		c.log.Error("Failed to publish accepted bid", "item_id", p.ItemID,
			"sequence_number", outcome.SequenceNumber, "error", err)
	}
	return outcome
}

func (c *BidCommitter) storeFailure(ctx context.Context, itemID string, err error) domain.BidOutcome {
	switch {
	case errors.Is(err, domain.ErrItemNotFound):
		c.recordSuccess()
		return domain.Rejected(itemID, domain.RejectItemNotFound)
	case errors.Is(err, domain.ErrVersionConflict):
		c.recordSuccess()
		return domain.Rejected(itemID, domain.RejectConflict)
	case isContextError(ctx, err):
		c.log.Warn("Store call timed out", "item_id", itemID, "error", err)
		return domain.Rejected(itemID, domain.RejectTimeout)
	default:
		c.log.Error("Store call failed", "item_id", itemID, "error", err)
		if c.health != nil {
			c.health.RecordFailure(err)
		}
		return domain.Rejected(itemID, domain.RejectStoreUnavailable)
	}
}

// writeLanded reports whether the store now holds exactly the write that was
// attempted at expectedVersion.
func (c *BidCommitter) writeLanded(ctx context.Context, p domain.BidProposal, expectedVersion uint64) bool {
	price, version, err := c.store.ReadPrice(ctx, p.ItemID)
	if err != nil {
		c.log.Warn("Could not confirm late bid write", "item_id", p.ItemID, "error", err)
		return false
	}
	return version == expectedVersion+1 && price == p.Amount
}

func isContextError(ctx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || ctx.Err() != nil
}

func (c *BidCommitter) recordSuccess() {
	if c.health != nil {
		c.health.RecordSuccess()
	}
}

func (c *BidCommitter) cachedOutcome(ctx context.Context, p domain.BidProposal) (domain.BidOutcome, bool) {
	if c.outcomes == nil || p.SubmissionID == "" {
		return domain.BidOutcome{}, false
	}

	cached, ok, err := c.outcomes.Get(ctx, p.ItemID, p.SubmissionID)
	if err != nil {
		c.log.Warn("Outcome cache lookup failed", "item_id", p.ItemID, "submission_id", p.SubmissionID, "error", err)
		return domain.BidOutcome{}, false
	}
	if !ok {
		return domain.BidOutcome{}, false
	}

	c.log.Info("Replaying cached outcome", "item_id", p.ItemID, "submission_id", p.SubmissionID, "status", cached.Status)
	return *cached, true
}

// remember caches terminal outcomes. Transient failures are left uncached so
// a resubmission is processed again.
func (c *BidCommitter) remember(ctx context.Context, p domain.BidProposal, outcome domain.BidOutcome) domain.BidOutcome {
	if c.outcomes == nil || p.SubmissionID == "" {
		return outcome
	}
	if outcome.Reason == domain.RejectStoreUnavailable || outcome.Reason == domain.RejectTimeout {
		return outcome
	}
	if err := c.outcomes.Put(ctx, p.ItemID, p.SubmissionID, outcome); err != nil {
		c.log.Warn("Outcome cache write failed", "item_id", p.ItemID, "submission_id", p.SubmissionID, "error", err)
	}
	return outcome
}

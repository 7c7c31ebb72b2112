package memory

import (
	"context"
	"sync"
	"time"

	"bidding-system/internal/domain"
)

type outcomeKey struct {
	itemID       string
	submissionID string
}

type cachedOutcome struct {
	outcome   domain.BidOutcome
	expiresAt time.Time
}

// OutcomeCache is a process-local dedupe window for submission ids.
type OutcomeCache struct {
	mu      sync.Mutex
	entries map[outcomeKey]cachedOutcome
	window  time.Duration
	now     func() time.Time
}

func NewOutcomeCache(window time.Duration) *OutcomeCache {
	return &OutcomeCache{
		entries: make(map[outcomeKey]cachedOutcome),
		window:  window,
		now:     time.Now,
	}
}

func (c *OutcomeCache) Get(_ context.Context, itemID, submissionID string) (*domain.BidOutcome, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := outcomeKey{itemID: itemID, submissionID: submissionID}
	entry, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false, nil
	}
	outcome := entry.outcome
	return &outcome, true, nil
}

func (c *OutcomeCache) Put(_ context.Context, itemID, submissionID string, outcome domain.BidOutcome) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[outcomeKey{itemID: itemID, submissionID: submissionID}] = cachedOutcome{
		outcome:   outcome,
		expiresAt: c.now().Add(c.window),
	}
	return nil
}

// Sweep drops expired entries and returns how many were removed.
func (c *OutcomeCache) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *OutcomeCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

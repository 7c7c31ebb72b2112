package services

import (
	"context"
	"sync"
)

// ItemSequencer linearizes work per item. Each item gets a one-slot semaphore;
// blocked senders on a channel are released in arrival order, so waiters for
// the same item are served FIFO. Entries are created on first use and dropped
// once no caller holds or waits on them.
type ItemSequencer struct {
	mu      sync.Mutex
	entries map[string]*itemEntry
}

type itemEntry struct {
	sem  chan struct{}
	refs int

	// guarded by sem
	lastSeq uint64
}

// ItemSlot is handed to work running inside an item's critical section.
type ItemSlot struct {
	ItemID string
	entry  *itemEntry
}

// NextSequence advances the item's sequence counter. The counter never moves
// backwards and never falls behind the committed store version, so numbering
// stays consistent across idle-entry collection and across instances.
func (s *ItemSlot) NextSequence(committedVersion uint64) uint64 {
	next := s.entry.lastSeq + 1
	if committedVersion > next {
		next = committedVersion
	}
	s.entry.lastSeq = next
	return next
}

func NewItemSequencer() *ItemSequencer {
	return &ItemSequencer{
		entries: make(map[string]*itemEntry),
	}
}

// Do runs work with exclusive access to itemID. If ctx ends while waiting,
// Do returns ctx.Err() without running work. The slot is released on every
// exit path, including a panic in work.
func (s *ItemSequencer) Do(ctx context.Context, itemID string, work func(ctx context.Context, slot *ItemSlot) error) error {
	entry := s.acquireRef(itemID)
	defer s.releaseRef(itemID, entry)

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-entry.sem }()

	// A waiter may win the slot in the same instant its context expires.
	if err := ctx.Err(); err != nil {
		return err
	}

	return work(ctx, &ItemSlot{ItemID: itemID, entry: entry})
}

// ActiveItems returns how many items currently have a lock entry.
func (s *ItemSequencer) ActiveItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *ItemSequencer) acquireRef(itemID string) *itemEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[itemID]
	if !ok {
		entry = &itemEntry{sem: make(chan struct{}, 1)}
		s.entries[itemID] = entry
	}
	entry.refs++
	return entry
}

func (s *ItemSequencer) releaseRef(itemID string, entry *itemEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.refs--
	if entry.refs == 0 {
		delete(s.entries, itemID)
	}
}

package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"bidding-system/internal/domain"
	"bidding-system/pkg/logger"
)

type OverflowPolicy string

const (
	// DropOldest discards the oldest queued event to make room.
	DropOldest OverflowPolicy = "drop_oldest"
	// Disconnect closes the subscription when its queue is full.
	Disconnect OverflowPolicy = "disconnect"
)

const gateIdleTTL = 10 * time.Minute

// Broadcaster fans accepted-bid events out to subscribers. Per item, events
// are released in sequence order: duplicates are dropped and early arrivals
// are held until the gap fills or gapWait elapses.
type Broadcaster struct {
	mu        sync.Mutex
	subs      map[uint64]*Subscription
	nextID    uint64
	gates     map[string]*itemGate
	queueSize int
	policy    OverflowPolicy
	gapWait   time.Duration
	closed    bool
	log       logger.Logger
}

type itemGate struct {
	last     uint64
	pending  map[uint64]domain.BidEvent
	timer    *time.Timer
	lastSeen time.Time
}

func NewBroadcaster(queueSize int, policy OverflowPolicy, gapWait time.Duration, log logger.Logger) *Broadcaster {
	if queueSize <= 0 {
		queueSize = 64
	}
	if policy != Disconnect {
		policy = DropOldest
	}
	return &Broadcaster{
		subs:      make(map[uint64]*Subscription),
		gates:     make(map[string]*itemGate),
		queueSize: queueSize,
		policy:    policy,
		gapWait:   gapWait,
		log:       log,
	}
}

// Subscribe registers a new subscriber. It only sees events published after
// this call returns.
func (b *Broadcaster) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{
		id: b.nextID,
		ch: make(chan domain.BidEvent, b.queueSize),
		b:  b,
	}
	if b.closed {
		sub.close(false)
		return sub
	}
	b.subs[sub.id] = sub
	return sub
}

// PublishBidEvent never blocks on subscribers and never fails the caller.
func (b *Broadcaster) PublishBidEvent(_ context.Context, event domain.BidEvent) error {
	b.Publish(event)
	return nil
}

func (b *Broadcaster) Publish(event domain.BidEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	if event.SequenceNumber == 0 {
		// unsequenced events carry no ordering to enforce
		b.deliverLocked(event)
		return
	}

	gate, ok := b.gates[event.ItemID]
	if !ok {
		gate = &itemGate{pending: make(map[uint64]domain.BidEvent)}
		b.gates[event.ItemID] = gate
		gate.last = event.SequenceNumber - 1
	}
	gate.lastSeen = time.Now()

	switch {
	case event.SequenceNumber <= gate.last:
		b.log.Debug("Dropping duplicate bid event", "item_id", event.ItemID, "sequence_number", event.SequenceNumber)
	case event.SequenceNumber == gate.last+1:
		b.deliverLocked(event)
		gate.last = event.SequenceNumber
		b.flushPendingLocked(event.ItemID, gate)
	default:
		gate.pending[event.SequenceNumber] = event
		if b.gapWait <= 0 {
			b.skipGapLocked(event.ItemID, gate)
			return
		}
		if gate.timer == nil {
			itemID := event.ItemID
			gate.timer = time.AfterFunc(b.gapWait, func() { b.skipGap(itemID) })
		}
	}
}

func (b *Broadcaster) flushPendingLocked(itemID string, gate *itemGate) {
	for {
		next, ok := gate.pending[gate.last+1]
		if !ok {
			break
		}
		delete(gate.pending, next.SequenceNumber)
		b.deliverLocked(next)
		gate.last = next.SequenceNumber
	}
	if len(gate.pending) == 0 && gate.timer != nil {
		gate.timer.Stop()
		gate.timer = nil
	}
}

func (b *Broadcaster) skipGap(itemID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	gate, ok := b.gates[itemID]
	if !ok || b.closed {
		return
	}
	gate.timer = nil
	b.skipGapLocked(itemID, gate)
}

// skipGapLocked gives up on missing sequence numbers below the lowest held event.
func (b *Broadcaster) skipGapLocked(itemID string, gate *itemGate) {
	if len(gate.pending) == 0 {
		return
	}
	var lowest uint64
	for seq := range gate.pending {
		if lowest == 0 || seq < lowest {
			lowest = seq
		}
	}
	b.log.Warn("Skipping missing bid events", "item_id", itemID,
		"from_sequence", gate.last+1, "to_sequence", lowest-1)
	gate.last = lowest - 1
	b.flushPendingLocked(itemID, gate)

	if len(gate.pending) > 0 && gate.timer == nil && b.gapWait > 0 {
		gate.timer = time.AfterFunc(b.gapWait, func() { b.skipGap(itemID) })
	}
}

func (b *Broadcaster) deliverLocked(event domain.BidEvent) {
	for id, sub := range b.subs {
		if !sub.offer(event, b.policy) {
			delete(b.subs, id)
			b.log.Warn("Subscriber disconnected on overflow", "subscription_id", id)
		}
	}
}

func (b *Broadcaster) unsubscribe(id uint64) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	delete(b.subs, id)
	b.mu.Unlock()

	if ok {
		sub.close(false)
	}
}

// SubscriberCount returns the number of live subscriptions.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Sweep forgets ordering state for items idle longer than gateIdleTTL.
func (b *Broadcaster) Sweep(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for itemID, gate := range b.gates {
		if len(gate.pending) == 0 && now.Sub(gate.lastSeen) > gateIdleTTL {
			delete(b.gates, itemID)
			removed++
		}
	}
	return removed
}

// Close ends every subscription. Later publishes are ignored.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		sub.close(false)
		delete(b.subs, id)
	}
	for _, gate := range b.gates {
		if gate.timer != nil {
			gate.timer.Stop()
		}
	}
}

// Subscription is one subscriber's bounded event queue.
type Subscription struct {
	id         uint64
	ch         chan domain.BidEvent
	b          *Broadcaster
	mu         sync.Mutex
	closed     bool
	overflowed bool
	dropped    atomic.Uint64
}

// Events is closed when the subscription ends.
func (s *Subscription) Events() <-chan domain.BidEvent {
	return s.ch
}

func (s *Subscription) ID() uint64 {
	return s.id
}

// Dropped counts events discarded under the drop-oldest policy.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Overflowed reports whether the subscription was closed for falling behind.
func (s *Subscription) Overflowed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overflowed
}

func (s *Subscription) Close() {
	s.b.unsubscribe(s.id)
}

func (s *Subscription) offer(event domain.BidEvent, policy OverflowPolicy) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	select {
	case s.ch <- event:
		return true
	default:
	}

	if policy == Disconnect {
		s.closed = true
		s.overflowed = true
		close(s.ch)
		return false
	}

	select {
	case <-s.ch:
		s.dropped.Add(1)
	default:
	}
	select {
	case s.ch <- event:
	default:
		s.dropped.Add(1)
	}
	return true
}

func (s *Subscription) close(overflowed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.overflowed = overflowed
	close(s.ch)
}

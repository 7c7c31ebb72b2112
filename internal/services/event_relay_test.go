package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bidding-system/internal/domain"
	"bidding-system/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chanSubscriber feeds events from a channel to the handler.
type chanSubscriber struct {
	events chan domain.BidEvent
}

func (s *chanSubscriber) SubscribeToBidEvents(ctx context.Context, handler domain.EventHandler) error {
	for {
		select {
		case e := <-s.events:
			_ = handler(e)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func TestEventRelay_ForwardsRemoteEventsOnly(t *testing.T) {
	b := NewBroadcaster(8, DropOldest, time.Second, logger.NewNop())
	defer b.Close()
	sub := b.Subscribe()

	relay := NewEventRelay(b, "node-1", logger.NewNop())
	src := &chanSubscriber{events: make(chan domain.BidEvent)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Start(ctx, src) }()

	own := bidEvent("X", 1)
	own.Origin = "node-1"
	remote := bidEvent("X", 2)
	remote.Origin = "node-2"
	src.events <- own
	src.events <- remote

	got := receive(t, sub)
	assert.Equal(t, uint64(2), got.SequenceNumber)
	assert.Equal(t, "node-2", got.Origin)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestEventRelay_RejectsEventWithoutItem(t *testing.T) {
	relay := NewEventRelay(&recordingPublisher{}, "node-1", logger.NewNop())
	assert.Error(t, relay.handleBidEvent(domain.BidEvent{SequenceNumber: 1}))
}

type slowPublisher struct {
	recordingPublisher
	delay time.Duration
}

func (p *slowPublisher) PublishBidEvent(ctx context.Context, e domain.BidEvent) error {
	time.Sleep(p.delay)
	return p.recordingPublisher.PublishBidEvent(ctx, e)
}

func TestRelayPublisher_LocalFirstRemoteInOrder(t *testing.T) {
	local := &recordingPublisher{}
	remote := &slowPublisher{delay: 5 * time.Millisecond}
	rp := NewRelayPublisher(local, remote, 16, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go rp.Run(ctx)

	for seq := uint64(1); seq <= 5; seq++ {
		require.NoError(t, rp.PublishBidEvent(context.Background(), bidEvent("X", seq)))
	}
	// local delivery is synchronous
	assert.Len(t, local.Events(), 5)

	cancel()
	select {
	case <-rp.Done():
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}

	var seqs []uint64
	for _, e := range remote.Events() {
		seqs = append(seqs, e.SequenceNumber)
	}
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, seqs)
}

func TestRelayPublisher_RemoteFailureIsNotReturned(t *testing.T) {
	local := &recordingPublisher{}
	remote := &recordingPublisher{err: errors.New("redis down")}
	rp := NewRelayPublisher(local, remote, 1, logger.NewNop())

	// Run is not started: the queue fills and further events are dropped
	// for the relay only.
	require.NoError(t, rp.PublishBidEvent(context.Background(), bidEvent("X", 1)))
	require.NoError(t, rp.PublishBidEvent(context.Background(), bidEvent("X", 2)))
	assert.Len(t, local.Events(), 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rp.Run(ctx)
	assert.Len(t, remote.Events(), 1)
}

type fakeLeader struct {
	mu     sync.Mutex
	leader string
	err    error
}

func (l *fakeLeader) BecomeLeader(_ context.Context, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	if l.leader == "" {
		l.leader = id
		return true, nil
	}
	return false, nil
}

func (l *fakeLeader) IsLeader(_ context.Context, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.leader == id, l.err
}

func (l *fakeLeader) ReleaseLeadership(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.leader == id {
		l.leader = ""
	}
	return nil
}

type memoryBidRepo struct {
	mu      sync.Mutex
	records []*domain.AuditRecord
}

func (r *memoryBidRepo) SaveAcceptedBid(_ context.Context, rec *domain.AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *memoryBidRepo) GetBidHistory(_ context.Context, itemID string) ([]*domain.AuditRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.AuditRecord
	for _, rec := range r.records {
		if rec.ItemID == itemID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func TestAuditRecorder_OnlyLeaderWrites(t *testing.T) {
	election := &fakeLeader{}
	repo := &memoryBidRepo{}
	ctx := context.Background()

	leader := NewAuditRecorder(repo, election, "audit-1", logger.NewNop())
	follower := NewAuditRecorder(repo, election, "audit-2", logger.NewNop())

	ok, err := election.BecomeLeader(ctx, "audit-1")
	require.NoError(t, err)
	require.True(t, ok)

	event := bidEvent("X", 1)
	event.Timestamp = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, leader.Record(ctx, event))
	require.NoError(t, follower.Record(ctx, event))

	history, err := repo.GetBidHistory(ctx, "X")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, uint64(1), history[0].SequenceNumber)
	assert.Equal(t, event.NewPrice, history[0].Amount)
	assert.Equal(t, event.Timestamp, history[0].AcceptedAt)
	assert.NotEmpty(t, history[0].ID)
}

func TestAuditRecorder_LeaderCheckFailure(t *testing.T) {
	election := &fakeLeader{err: errors.New("redis down")}
	recorder := NewAuditRecorder(&memoryBidRepo{}, election, "audit-1", logger.NewNop())

	assert.Error(t, recorder.Record(context.Background(), bidEvent("X", 1)))
}

func TestCampaignForLeadership(t *testing.T) {
	election := &fakeLeader{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		CampaignForLeadership(ctx, election, "audit-1", 10*time.Millisecond, logger.NewNop())
		close(done)
	}()

	assert.Eventually(t, func() bool {
		ok, _ := election.IsLeader(context.Background(), "audit-1")
		return ok
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

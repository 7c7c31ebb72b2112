package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"bidding-system/internal/infrastructure/memory"
	ws "bidding-system/internal/infrastructure/websocket"
	"bidding-system/internal/services"
	"bidding-system/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startServer runs a gateway over a memory store seeded with item X at 100.
func startServer(t *testing.T) string {
	t.Helper()
	log := logger.NewNop()

	store := memory.NewPriceStore()
	_, err := store.CreateItem(context.Background(), "X", 100)
	require.NoError(t, err)

	broadcaster := services.NewBroadcaster(16, services.DropOldest, 0, log)
	committer := services.NewBidCommitter(store, services.NewItemSequencer(),
		services.NewIncrementValidator(10), broadcaster, log,
		services.WithOutcomeCache(memory.NewOutcomeCache(time.Minute)))
	connManager := ws.NewConnectionManager(log)
	gateway := ws.NewSessionGateway(committer, store, broadcaster, connManager, log)

	srv := httptest.NewServer(http.HandlerFunc(gateway.HandleConnection))
	t.Cleanup(func() {
		connManager.CloseAll()
		srv.Close()
		gateway.Wait()
		broadcaster.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func placeOpts(server, bidder string) *PlaceOptions {
	return &PlaceOptions{RootOptions: &RootOptions{
		Server:  server,
		Bidder:  bidder,
		Timeout: 5 * time.Second,
		Format:  "text",
	}}
}

func TestPlaceBid_AcceptedThenRejected(t *testing.T) {
	server := startServer(t)

	var out bytes.Buffer
	require.NoError(t, placeBid(context.Background(), placeOpts(server, "alice"), "X", 110, &out))
	assert.Equal(t, "accepted item=X sequence=1\n", out.String())

	out.Reset()
	err := placeBid(context.Background(), placeOpts(server, "bob"), "X", 130, &out)
	require.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, "rejected item=X error=InvalidIncrement reason=above_increment expected=120\n", out.String())
}

func TestPlaceBid_ResubmissionReplaysOutcome(t *testing.T) {
	server := startServer(t)

	opts := placeOpts(server, "alice")
	opts.SubmissionID = "sub-1"
	opts.Format = "json"

	var first, second bytes.Buffer
	require.NoError(t, placeBid(context.Background(), opts, "X", 110, &first))
	require.NoError(t, placeBid(context.Background(), opts, "X", 110, &second))

	var a, b ws.BidAck
	require.NoError(t, json.Unmarshal(first.Bytes(), &a))
	require.NoError(t, json.Unmarshal(second.Bytes(), &b))
	assert.True(t, b.Success)
	assert.Equal(t, a.SequenceNumber, b.SequenceNumber)
	assert.Equal(t, "sub-1", b.SubmissionID)
}

func TestClient_GetItem(t *testing.T) {
	server := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Dial(ctx, server, "carol")
	require.NoError(t, err)
	defer client.Close()

	state, err := client.GetItem(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, int64(100), state.CurrentPrice)
	assert.Empty(t, state.Error)

	state, err = client.GetItem(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, "ItemNotFound", string(state.Error))
}

func TestWatchBids(t *testing.T) {
	server := startServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu  sync.Mutex
		out bytes.Buffer
	)
	lines := make(chan struct{}, 4)
	writer := writerFunc(func(p []byte) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		n, err := out.Write(p)
		lines <- struct{}{}
		return n, err
	})

	// the watcher must be subscribed before the bid lands
	watcher, err := Dial(ctx, server, "watcher")
	require.NoError(t, err)
	_, err = watcher.GetItem(ctx, "X")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- watcher.Watch(ctx, "X", func(update ws.BidUpdated) error {
			_, err := writer.Write([]byte(update.Bidder + "\n"))
			return err
		})
	}()

	require.NoError(t, placeBid(context.Background(), placeOpts(server, "alice"), "X", 110, &bytes.Buffer{}))

	select {
	case <-lines:
	case <-time.After(5 * time.Second):
		t.Fatal("no broadcast received")
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "alice\n", out.String())
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

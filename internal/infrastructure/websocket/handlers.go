package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"bidding-system/internal/domain"
	"bidding-system/internal/services"
	"bidding-system/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const itemReadTimeout = 3 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // cross-origin policy is enforced by the CORS middleware
	},
}

// Committer resolves one proposal to a terminal outcome.
type Committer interface {
	Commit(ctx context.Context, p domain.BidProposal) domain.BidOutcome
}

// EventSource hands out broadcast subscriptions.
type EventSource interface {
	Subscribe() *services.Subscription
}

// SessionGateway accepts bidder sessions, turns place_bid messages into
// proposals and streams accepted bids back to every session.
type SessionGateway struct {
	committer   Committer
	store       domain.PriceStore
	events      EventSource
	connManager domain.ConnectionManager
	health      domain.HealthReporter
	log         logger.Logger

	mu       sync.Mutex
	draining bool
	inflight sync.WaitGroup
}

func NewSessionGateway(committer Committer, store domain.PriceStore, events EventSource,
	connManager domain.ConnectionManager, log logger.Logger) *SessionGateway {
	return &SessionGateway{
		committer:   committer,
		store:       store,
		events:      events,
		connManager: connManager,
		log:         log,
	}
}

// RejectWhenDegraded makes the gateway nack proposals without touching the
// store while health reports the store as degraded.
func (h *SessionGateway) RejectWhenDegraded(health domain.HealthReporter) {
	h.health = health
}

func (h *SessionGateway) HandleConnection(w http.ResponseWriter, r *http.Request) {
	bidderID := r.URL.Query().Get("bidder_id")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	session := NewWebSocketConnection(conn, uuid.NewString(), bidderID, h.log)
	if err := h.connManager.RegisterConnection(session); err != nil {
		h.log.Error("Failed to register connection", "error", err)
		_ = session.Close()
		return
	}

	// Subscribe before reading so the session sees every bid it could cause.
	sub := h.events.Subscribe()
	go session.writeLoop(sub)
	go h.handleMessages(session, sub)
}

func (h *SessionGateway) handleMessages(session *WebSocketConnection, sub *services.Subscription) {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		sub.Close()
		_ = h.connManager.UnregisterConnection(session.SessionID())
		_ = session.Close()
	}()

	for {
		_, data, err := session.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("Session read failed", "session_id", session.SessionID(), "error", err)
			}
			return
		}

		var msg InboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = session.Send(ErrorMessage{Type: MsgError, Message: "invalid message"})
			continue
		}

		switch msg.Type {
		case MsgPlaceBid:
			h.handleBidMessage(ctx, session, msg)
		case MsgGetItem:
			h.handleGetItem(ctx, session, msg)
		case MsgPing:
			_ = session.Send(map[string]string{"type": MsgPong})
		default:
			_ = session.Send(ErrorMessage{Type: MsgError, Message: "unknown message type"})
		}
	}
}

func (h *SessionGateway) handleBidMessage(ctx context.Context, session *WebSocketConnection, msg InboundMessage) {
	bidderID := msg.BidderID
	if bidderID == "" {
		bidderID = session.BidderID()
	}
	proposal := domain.BidProposal{
		ItemID:       msg.ItemID,
		Amount:       msg.BidAmount,
		BidderID:     bidderID,
		SubmissionID: msg.SubmissionID,
	}

	if h.health != nil && h.health.Degraded() {
		_ = session.Send(newBidAck(msg.SubmissionID, domain.Rejected(msg.ItemID, domain.RejectStoreUnavailable)))
		return
	}

	// One task per proposal; the read loop keeps serving the session.
	h.mu.Lock()
	if h.draining {
		h.mu.Unlock()
		_ = session.Send(newBidAck(msg.SubmissionID, domain.Rejected(msg.ItemID, domain.RejectStoreUnavailable)))
		return
	}
	h.inflight.Add(1)
	h.mu.Unlock()

	go func() {
		defer h.inflight.Done()
		outcome := h.committer.Commit(ctx, proposal)
		if err := session.Send(newBidAck(msg.SubmissionID, outcome)); err != nil {
			h.log.Warn("Bid ack not delivered", "session_id", session.SessionID(),
				"item_id", proposal.ItemID, "error", err)
		}
	}()
}

func (h *SessionGateway) handleGetItem(ctx context.Context, session *WebSocketConnection, msg InboundMessage) {
	ctx, cancel := context.WithTimeout(ctx, itemReadTimeout)
	defer cancel()

	state := ItemState{Type: MsgItemState, ItemID: msg.ItemID}
	price, version, err := h.store.ReadPrice(ctx, msg.ItemID)
	switch {
	case err == nil:
		state.CurrentPrice = price
		state.Version = version
	case errors.Is(err, domain.ErrItemNotFound):
		state.Error = domain.RejectItemNotFound
	default:
		h.log.Error("Failed to read item", "item_id", msg.ItemID, "error", err)
		state.Error = domain.RejectStoreUnavailable
	}
	_ = session.Send(state)
}

// Wait stops accepting proposals and blocks until every in-flight proposal
// has been acknowledged. Proposals arriving afterwards are nacked with
// StoreUnavailable without reaching the store.
func (h *SessionGateway) Wait() {
	h.mu.Lock()
	h.draining = true
	h.mu.Unlock()

	h.inflight.Wait()
}

package websocket

import (
	"errors"
	"sync"
	"time"

	"bidding-system/internal/services"
	"bidding-system/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
	outboundBuffer = 64
)

var ErrSessionClosed = errors.New("session closed")

// WebSocketConnection owns one client socket. All writes go through a single
// goroutine because gorilla connections allow only one concurrent writer.
type WebSocketConnection struct {
	conn      *websocket.Conn
	sessionID string
	bidderID  string
	out       chan interface{}
	done      chan struct{}
	closeOnce sync.Once
	log       logger.Logger
}

func NewWebSocketConnection(conn *websocket.Conn, sessionID, bidderID string, log logger.Logger) *WebSocketConnection {
	return &WebSocketConnection{
		conn:      conn,
		sessionID: sessionID,
		bidderID:  bidderID,
		out:       make(chan interface{}, outboundBuffer),
		done:      make(chan struct{}),
		log:       log,
	}
}

// Send queues a direct reply. Replies are never dropped while the session is
// open; Send waits for room instead.
func (wsc *WebSocketConnection) Send(message interface{}) error {
	select {
	case <-wsc.done:
		return ErrSessionClosed
	default:
	}

	select {
	case wsc.out <- message:
		return nil
	case <-wsc.done:
		return ErrSessionClosed
	}
}

func (wsc *WebSocketConnection) Close() error {
	var err error
	wsc.closeOnce.Do(func() {
		close(wsc.done)
		err = wsc.conn.Close()
	})
	return err
}

func (wsc *WebSocketConnection) Done() <-chan struct{} {
	return wsc.done
}

func (wsc *WebSocketConnection) SessionID() string {
	return wsc.sessionID
}

func (wsc *WebSocketConnection) BidderID() string {
	return wsc.bidderID
}

// writeLoop interleaves direct replies with broadcast events until the
// session or its subscription ends.
func (wsc *WebSocketConnection) writeLoop(sub *services.Subscription) {
	defer wsc.Close()

	for {
		select {
		case msg := <-wsc.out:
			if err := wsc.write(msg); err != nil {
				return
			}
		case event, ok := <-sub.Events():
			if !ok {
				if sub.Overflowed() {
					wsc.log.Warn("Session fell behind broadcast, closing", "session_id", wsc.sessionID)
				}
				return
			}
			if err := wsc.write(newBidUpdated(event)); err != nil {
				return
			}
		case <-wsc.done:
			return
		}
	}
}

func (wsc *WebSocketConnection) write(message interface{}) error {
	if err := wsc.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	if err := wsc.conn.WriteJSON(message); err != nil {
		wsc.log.Warn("Failed to write message", "session_id", wsc.sessionID, "error", err)
		return err
	}
	return nil
}

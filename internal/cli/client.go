package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	ws "bidding-system/internal/infrastructure/websocket"

	"github.com/gorilla/websocket"
)

// Client is a bidder session over the bidding websocket. It is not safe for
// concurrent use.
type Client struct {
	conn *websocket.Conn
}

// Dial opens a session. bidderID, when set, becomes the session default.
func Dial(ctx context.Context, serverURL, bidderID string) (*Client, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", serverURL, err)
	}
	if bidderID != "" {
		q := u.Query()
		q.Set("bidder_id", bidderID)
		u.RawQuery = q.Encode()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return c.conn.Close()
}

// PlaceBid sends one proposal and waits for its acknowledgement. Broadcasts
// that arrive first are skipped.
func (c *Client) PlaceBid(ctx context.Context, itemID string, amount int64, bidderID, submissionID string) (*ws.BidAck, error) {
	msg := ws.InboundMessage{
		Type:         ws.MsgPlaceBid,
		ItemID:       itemID,
		BidAmount:    amount,
		BidderID:     bidderID,
		SubmissionID: submissionID,
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		return nil, err
	}

	for {
		typ, data, err := c.next(ctx)
		if err != nil {
			return nil, err
		}
		if typ != ws.MsgBidAck {
			continue
		}
		var ack ws.BidAck
		if err := json.Unmarshal(data, &ack); err != nil {
			return nil, err
		}
		if ack.ItemID == itemID && ack.SubmissionID == submissionID {
			return &ack, nil
		}
	}
}

// GetItem asks the server for the item's committed price and version.
func (c *Client) GetItem(ctx context.Context, itemID string) (*ws.ItemState, error) {
	if err := c.conn.WriteJSON(ws.InboundMessage{Type: ws.MsgGetItem, ItemID: itemID}); err != nil {
		return nil, err
	}

	for {
		typ, data, err := c.next(ctx)
		if err != nil {
			return nil, err
		}
		if typ != ws.MsgItemState {
			continue
		}
		var state ws.ItemState
		if err := json.Unmarshal(data, &state); err != nil {
			return nil, err
		}
		if state.ItemID == itemID {
			return &state, nil
		}
	}
}

// Watch calls fn for every accepted bid until ctx is done or fn fails. An
// empty itemID watches all items.
func (c *Client) Watch(ctx context.Context, itemID string, fn func(ws.BidUpdated) error) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.conn.Close()
		case <-stop:
		}
	}()

	for {
		typ, data, err := c.next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if typ != ws.MsgBidUpdated {
			continue
		}
		var update ws.BidUpdated
		if err := json.Unmarshal(data, &update); err != nil {
			return err
		}
		if itemID != "" && update.ItemID != itemID {
			continue
		}
		if err := fn(update); err != nil {
			return err
		}
	}
}

func (c *Client) next(ctx context.Context) (string, []byte, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return "", nil, err
	}

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return "", nil, err
	}
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return "", nil, fmt.Errorf("malformed server message: %w", err)
	}
	return envelope.Type, data, nil
}

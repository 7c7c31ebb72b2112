package websocket

import "bidding-system/internal/domain"

// Message types on the bidder websocket.
const (
	MsgPlaceBid   = "place_bid"
	MsgGetItem    = "get_item"
	MsgPing       = "ping"
	MsgBidAck     = "bid_ack"
	MsgBidUpdated = "bid_updated"
	MsgItemState  = "item_state"
	MsgPong       = "pong"
	MsgError      = "error"
)

// InboundMessage is the union of everything a client may send.
type InboundMessage struct {
	Type         string `json:"type"`
	ItemID       string `json:"item_id"`
	BidAmount    int64  `json:"bid_amount"`
	BidderID     string `json:"bidder_id"`
	SubmissionID string `json:"submission_id,omitempty"`
}

// BidAck is the synchronous reply to a place_bid.
type BidAck struct {
	Type           string              `json:"type"`
	ItemID         string              `json:"item_id"`
	SubmissionID   string              `json:"submission_id,omitempty"`
	Success        bool                `json:"success"`
	Error          domain.RejectReason `json:"error,omitempty"`
	Reason         domain.Violation    `json:"reason,omitempty"`
	ExpectedAmount int64               `json:"expected_amount,omitempty"`
	SequenceNumber uint64              `json:"sequence_number,omitempty"`
}

// BidUpdated is broadcast to every session after an accepted bid.
type BidUpdated struct {
	Type           string `json:"type"`
	ItemID         string `json:"item_id"`
	NewBid         int64  `json:"new_bid"`
	Bidder         string `json:"bidder"`
	SequenceNumber uint64 `json:"sequence_number"`
}

// ItemState answers get_item so a joining client can catch up.
type ItemState struct {
	Type         string              `json:"type"`
	ItemID       string              `json:"item_id"`
	CurrentPrice int64               `json:"current_price,omitempty"`
	Version      uint64              `json:"version,omitempty"`
	Error        domain.RejectReason `json:"error,omitempty"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newBidAck(submissionID string, outcome domain.BidOutcome) BidAck {
	return BidAck{
		Type:           MsgBidAck,
		ItemID:         outcome.ItemID,
		SubmissionID:   submissionID,
		Success:        outcome.Accepted(),
		Error:          outcome.Reason,
		Reason:         outcome.Violation,
		ExpectedAmount: outcome.ExpectedAmount,
		SequenceNumber: outcome.SequenceNumber,
	}
}

func newBidUpdated(event domain.BidEvent) BidUpdated {
	return BidUpdated{
		Type:           MsgBidUpdated,
		ItemID:         event.ItemID,
		NewBid:         event.NewPrice,
		Bidder:         event.BidderID,
		SequenceNumber: event.SequenceNumber,
	}
}

package domain

import (
	"time"
)

// Item is the store's view of an auctioned item. Version changes on every
// successful price change and guards conditional writes.
type Item struct {
	ID           string
	CurrentPrice int64
	Version      uint64
	UpdatedAt    time.Time
}

// BidProposal is a single request to move an item's price to Amount.
type BidProposal struct {
	ItemID       string
	Amount       int64
	BidderID     string
	SubmissionID string
}

type OutcomeStatus string

const (
	OutcomeAccepted OutcomeStatus = "accepted"
	OutcomeRejected OutcomeStatus = "rejected"
)

// RejectReason is the wire-level error code reported back to the proposer.
type RejectReason string

const (
	RejectItemNotFound     RejectReason = "ItemNotFound"
	RejectInvalidIncrement RejectReason = "InvalidIncrement"
	RejectConflict         RejectReason = "Conflict"
	RejectStoreUnavailable RejectReason = "StoreUnavailable"
	RejectTimeout          RejectReason = "Timeout"
)

// Retriable reports whether a proposer may resubmit after this rejection.
func (r RejectReason) Retriable() bool {
	switch r {
	case RejectConflict, RejectStoreUnavailable, RejectTimeout:
		return true
	default:
		return false
	}
}

// Violation distinguishes the two ways a proposal can miss the increment.
type Violation string

const (
	ViolationNone           Violation = ""
	ViolationBelowIncrement Violation = "below_increment"
	ViolationAboveIncrement Violation = "above_increment"
)

// BidOutcome is the terminal result of one proposal. Accepted outcomes carry
// the committed price and the per-item sequence number; rejected outcomes
// carry a reason.
type BidOutcome struct {
	Status         OutcomeStatus `json:"status"`
	ItemID         string        `json:"item_id"`
	NewPrice       int64         `json:"new_price,omitempty"`
	BidderID       string        `json:"bidder_id,omitempty"`
	SequenceNumber uint64        `json:"sequence_number,omitempty"`
	Reason         RejectReason  `json:"reason,omitempty"`
	Violation      Violation     `json:"violation,omitempty"`
	ExpectedAmount int64         `json:"expected_amount,omitempty"`
}

func (o BidOutcome) Accepted() bool {
	return o.Status == OutcomeAccepted
}

// Event converts an accepted outcome into the broadcast form.
func (o BidOutcome) Event() BidEvent {
	return BidEvent{
		ItemID:         o.ItemID,
		NewPrice:       o.NewPrice,
		BidderID:       o.BidderID,
		SequenceNumber: o.SequenceNumber,
	}
}

func Accepted(itemID string, newPrice int64, bidderID string, seq uint64) BidOutcome {
	return BidOutcome{
		Status:         OutcomeAccepted,
		ItemID:         itemID,
		NewPrice:       newPrice,
		BidderID:       bidderID,
		SequenceNumber: seq,
	}
}

func Rejected(itemID string, reason RejectReason) BidOutcome {
	return BidOutcome{
		Status: OutcomeRejected,
		ItemID: itemID,
		Reason: reason,
	}
}

// BidEvent is the accepted-bid notification fanned out to every subscriber.
type BidEvent struct {
	ItemID         string    `json:"item_id"`
	NewPrice       int64     `json:"new_price"`
	BidderID       string    `json:"bidder_id"`
	SequenceNumber uint64    `json:"sequence_number"`
	Origin         string    `json:"origin,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// AuditRecord is one accepted bid as persisted by the audit service.
type AuditRecord struct {
	ID             string
	ItemID         string
	BidderID       string
	Amount         int64
	SequenceNumber uint64
	AcceptedAt     time.Time
}

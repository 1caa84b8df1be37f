package domain

import (
	"fmt"
)

// RejectReason identifies which admission rule a bid failed. The codes are
// part of the external contract: handlers render them to callers and tests
// assert on them.
type RejectReason string

const (
	RejectNotLive        RejectReason = "auction_not_live"
	RejectExpired        RejectReason = "auction_expired"
	RejectSelfBid        RejectReason = "self_bid"
	RejectBelowMinimum   RejectReason = "below_minimum"
	RejectAlreadyHighest RejectReason = "already_highest"
)

type BidRejectedError struct {
	Reason     RejectReason
	AuctionID  string
	MinimumBid float64 // populated for RejectBelowMinimum
}

func (e *BidRejectedError) Error() string {
	if e.Reason == RejectBelowMinimum {
		return fmt.Sprintf("bid rejected (%s): minimum bid is %.2f", e.Reason, e.MinimumBid)
	}
	return fmt.Sprintf("bid rejected (%s)", e.Reason)
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// InvalidTransitionError reports a lifecycle operation attempted from the
// wrong state. Callers must not retry blindly.
type InvalidTransitionError struct {
	AuctionID string
	From      AuctionStatus
	Op        string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s auction %s from status %s", e.Op, e.AuctionID, e.From)
}

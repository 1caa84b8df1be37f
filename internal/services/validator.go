package services

import (
	"time"

	"bidding-engine/internal/domain"
)

// AdmissionValidator decides whether a proposed bid may be accepted. The
// rules run in a fixed order and short-circuit on the first failure, so a
// vendor bidding below the minimum is reported as a self-bid, not as
// below-minimum.
type AdmissionValidator struct{}

func NewAdmissionValidator() *AdmissionValidator {
	return &AdmissionValidator{}
}

// Check returns nil when the bid is admissible, otherwise a
// *domain.BidRejectedError carrying the reason code of the failed rule.
func (v *AdmissionValidator) Check(auction *domain.Auction, bidderID string, amount float64, now time.Time) error {
	if auction.Status != domain.AuctionLive {
		return &domain.BidRejectedError{Reason: domain.RejectNotLive, AuctionID: auction.ID}
	}

	// The scheduler may not have formally ended the auction yet; a lapsed
	// clock still rejects new bids.
	if now.After(auction.EndAt) {
		return &domain.BidRejectedError{Reason: domain.RejectExpired, AuctionID: auction.ID}
	}

	if bidderID == auction.VendorID {
		return &domain.BidRejectedError{Reason: domain.RejectSelfBid, AuctionID: auction.ID}
	}

	minimum := auction.CurrentPrice + auction.BidIncrement
	if amount < minimum {
		return &domain.BidRejectedError{
			Reason:     domain.RejectBelowMinimum,
			AuctionID:  auction.ID,
			MinimumBid: minimum,
		}
	}

	if auction.WinnerID != "" && bidderID == auction.WinnerID {
		return &domain.BidRejectedError{Reason: domain.RejectAlreadyHighest, AuctionID: auction.ID}
	}

	return nil
}

// MinimumBid returns the smallest admissible bid for the auction's current
// state. Used for user-facing messaging.
func (v *AdmissionValidator) MinimumBid(auction *domain.Auction) float64 {
	return auction.CurrentPrice + auction.BidIncrement
}

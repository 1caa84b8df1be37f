package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidding-engine/internal/domain"
)

func liveAuction(now time.Time) *domain.Auction {
	return &domain.Auction{
		ID:           "auction_1",
		VendorID:     "vendor_1",
		Status:       domain.AuctionLive,
		EndAt:        now.Add(time.Hour),
		CurrentPrice: 100,
		BidIncrement: 10,
	}
}

func rejectReason(t *testing.T, err error) domain.RejectReason {
	t.Helper()
	var rejected *domain.BidRejectedError
	require.True(t, errors.As(err, &rejected), "expected BidRejectedError, got %v", err)
	return rejected.Reason
}

func TestAdmissionAcceptsValidBid(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	v := NewAdmissionValidator()

	assert.NoError(t, v.Check(liveAuction(now), "user_1", 110, now))
}

func TestAdmissionRejectsWhenNotLive(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	v := NewAdmissionValidator()

	for _, status := range []domain.AuctionStatus{domain.AuctionUpcoming, domain.AuctionEnded, domain.AuctionCancelled} {
		auction := liveAuction(now)
		auction.Status = status
		err := v.Check(auction, "user_1", 110, now)
		assert.Equal(t, domain.RejectNotLive, rejectReason(t, err), "status %s", status)
	}
}

func TestAdmissionRejectsExpired(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	v := NewAdmissionValidator()

	auction := liveAuction(now)
	err := v.Check(auction, "user_1", 110, auction.EndAt.Add(time.Second))
	assert.Equal(t, domain.RejectExpired, rejectReason(t, err))
}

func TestAdmissionAllowsBidAtExactDeadline(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	v := NewAdmissionValidator()

	auction := liveAuction(now)
	assert.NoError(t, v.Check(auction, "user_1", 110, auction.EndAt))
}

func TestAdmissionRejectsSelfBid(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	v := NewAdmissionValidator()

	err := v.Check(liveAuction(now), "vendor_1", 110, now)
	assert.Equal(t, domain.RejectSelfBid, rejectReason(t, err))
}

func TestAdmissionRejectsBelowMinimum(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	v := NewAdmissionValidator()

	err := v.Check(liveAuction(now), "user_1", 109.99, now)

	var rejected *domain.BidRejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, domain.RejectBelowMinimum, rejected.Reason)
	assert.Equal(t, 110.0, rejected.MinimumBid)
}

func TestAdmissionRejectsCurrentWinnerRaisingOwnBid(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	v := NewAdmissionValidator()

	auction := liveAuction(now)
	auction.WinnerID = "user_1"
	err := v.Check(auction, "user_1", 120, now)
	assert.Equal(t, domain.RejectAlreadyHighest, rejectReason(t, err))
}

// The rules short-circuit in order, so a failure earlier in the chain masks
// later ones.
func TestAdmissionRuleOrdering(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	v := NewAdmissionValidator()

	t.Run("not live masks expiry", func(t *testing.T) {
		auction := liveAuction(now)
		auction.Status = domain.AuctionEnded
		err := v.Check(auction, "user_1", 110, auction.EndAt.Add(time.Hour))
		assert.Equal(t, domain.RejectNotLive, rejectReason(t, err))
	})

	t.Run("expiry masks self bid", func(t *testing.T) {
		auction := liveAuction(now)
		err := v.Check(auction, "vendor_1", 110, auction.EndAt.Add(time.Hour))
		assert.Equal(t, domain.RejectExpired, rejectReason(t, err))
	})

	t.Run("self bid masks below minimum", func(t *testing.T) {
		err := v.Check(liveAuction(now), "vendor_1", 50, now)
		assert.Equal(t, domain.RejectSelfBid, rejectReason(t, err))
	})

	t.Run("below minimum masks already highest", func(t *testing.T) {
		auction := liveAuction(now)
		auction.WinnerID = "user_1"
		err := v.Check(auction, "user_1", 105, now)
		assert.Equal(t, domain.RejectBelowMinimum, rejectReason(t, err))
	})
}

func TestMinimumBid(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	v := NewAdmissionValidator()

	assert.Equal(t, 110.0, v.MinimumBid(liveAuction(now)))
}

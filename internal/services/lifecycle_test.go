package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidding-engine/internal/domain"
)

func validSpec(now time.Time) CreateAuctionSpec {
	return CreateAuctionSpec{
		Title:         "Vintage mechanical watch",
		Description:   "A well kept vintage piece with original parts.",
		ProductID:     "prod_1",
		StartingPrice: 100,
		BidIncrement:  10,
		StartAt:       now.Add(time.Hour),
		EndAt:         now.Add(25 * time.Hour),
		Images:        []string{"img_1"},
	}
}

func TestCreateAuction(t *testing.T) {
	f := newFixture()
	f.productRepo.setVendor("prod_1", "vendor_1")
	now := f.clock.Now()

	auction, err := f.lifecycle.CreateAuction(context.Background(), "vendor_1", validSpec(now))
	require.NoError(t, err)

	assert.NotEmpty(t, auction.ID)
	assert.Equal(t, domain.AuctionUpcoming, auction.Status)
	assert.Equal(t, 100.0, auction.CurrentPrice)
	assert.Equal(t, "vendor_1", auction.VendorID)
	assert.Equal(t, 0, auction.BidCount)

	stored := f.mustGetAuction(auction.ID)
	assert.Equal(t, domain.AuctionUpcoming, stored.Status)

	assert.Equal(t, auction.StartAt, f.scheduler.starts[auction.ID])
	assert.Equal(t, auction.EndAt, f.scheduler.ends[auction.ID])
}

func TestCreateAuctionFillsExtensionDefaults(t *testing.T) {
	f := newFixture()
	f.productRepo.setVendor("prod_1", "vendor_1")

	spec := validSpec(f.clock.Now())
	spec.AutoExtend = true

	auction, err := f.lifecycle.CreateAuction(context.Background(), "vendor_1", spec)
	require.NoError(t, err)
	assert.Equal(t, 5, auction.ExtensionTime)
	assert.Equal(t, 3, auction.MaxExtensions)
}

func TestCreateAuctionValidation(t *testing.T) {
	f := newFixture()
	f.productRepo.setVendor("prod_1", "vendor_1")
	now := f.clock.Now()

	cases := []struct {
		name   string
		mutate func(*CreateAuctionSpec)
		field  string
	}{
		{"short title", func(s *CreateAuctionSpec) { s.Title = "Ring" }, "title"},
		{"short description", func(s *CreateAuctionSpec) { s.Description = "too short" }, "description"},
		{"missing product", func(s *CreateAuctionSpec) { s.ProductID = "" }, "productId"},
		{"zero starting price", func(s *CreateAuctionSpec) { s.StartingPrice = 0 }, "startingPrice"},
		{"zero increment", func(s *CreateAuctionSpec) { s.BidIncrement = 0 }, "bidIncrement"},
		{"start in past", func(s *CreateAuctionSpec) { s.StartAt = now.Add(-time.Minute) }, "startAt"},
		{"end before start", func(s *CreateAuctionSpec) { s.EndAt = s.StartAt.Add(-time.Hour) }, "endAt"},
		{"reserve below starting", func(s *CreateAuctionSpec) { s.ReservePrice = 50 }, "reservePrice"},
		{"buy now at starting", func(s *CreateAuctionSpec) { s.BuyNowPrice = 100 }, "buyNowPrice"},
		{"no images", func(s *CreateAuctionSpec) { s.Images = nil }, "images"},
		{"extension window too long", func(s *CreateAuctionSpec) { s.AutoExtend = true; s.ExtensionTime = 61 }, "extensionTime"},
		{"too many extensions", func(s *CreateAuctionSpec) { s.AutoExtend = true; s.MaxExtensions = 11 }, "maxExtensions"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			spec := validSpec(now)
			tc.mutate(&spec)

			_, err := f.lifecycle.CreateAuction(context.Background(), "vendor_1", spec)

			var validation *domain.ValidationError
			require.True(t, errors.As(err, &validation), "expected ValidationError, got %v", err)
			assert.Equal(t, tc.field, validation.Field)
		})
	}
}

func TestCreateAuctionRejectsForeignProduct(t *testing.T) {
	f := newFixture()
	f.productRepo.setVendor("prod_1", "vendor_2")

	_, err := f.lifecycle.CreateAuction(context.Background(), "vendor_1", validSpec(f.clock.Now()))

	var validation *domain.ValidationError
	require.True(t, errors.As(err, &validation))
	assert.Equal(t, "productId", validation.Field)
}

func TestStartAuction(t *testing.T) {
	f := newFixture()
	auction := f.seedLiveAuction("auction_1")
	auction.Status = domain.AuctionUpcoming
	require.NoError(t, f.auctionRepo.UpdateAuction(context.Background(), auction))

	started, err := f.lifecycle.StartAuction(context.Background(), "auction_1")
	require.NoError(t, err)
	assert.Equal(t, domain.AuctionLive, started.Status)

	events := f.publisher.eventsOfType(domain.AuctionStarted)
	require.Len(t, events, 1)
	assert.Equal(t, "auction_1", events[0].AuctionID)
}

func TestStartAuctionInvalidFromLive(t *testing.T) {
	f := newFixture()
	f.seedLiveAuction("auction_1")

	_, err := f.lifecycle.StartAuction(context.Background(), "auction_1")

	var invalid *domain.InvalidTransitionError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, domain.AuctionLive, invalid.From)
	assert.Equal(t, "start", invalid.Op)
}

func TestEndAuctionWithoutBids(t *testing.T) {
	f := newFixture()
	f.seedLiveAuction("auction_1")
	now := f.clock.Now()

	ended, err := f.lifecycle.EndAuction(context.Background(), "auction_1")
	require.NoError(t, err)

	assert.Equal(t, domain.AuctionEnded, ended.Status)
	assert.Empty(t, ended.WinnerID)
	assert.Empty(t, ended.WinningBidID)
	assert.Equal(t, 100.0, ended.CurrentPrice)
	assert.Equal(t, now, ended.CompletedAt)
	assert.True(t, ended.PaymentDueAt.IsZero())
	assert.Contains(t, f.scheduler.cancelled, "auction_1")
}

func TestEndAuctionResolvesWinner(t *testing.T) {
	f := newFixture()
	f.seedLiveAuction("auction_1")
	now := f.clock.Now()

	require.NoError(t, f.bidRepo.CreateBid(context.Background(), &domain.Bid{
		ID: "bid_1", AuctionID: "auction_1", UserID: "user_a", Amount: 120, IsWinning: true, CreatedAt: now,
	}))

	ended, err := f.lifecycle.EndAuction(context.Background(), "auction_1")
	require.NoError(t, err)

	assert.Equal(t, "user_a", ended.WinnerID)
	assert.Equal(t, "bid_1", ended.WinningBidID)
	assert.Equal(t, now.Add(7*24*time.Hour), ended.PaymentDueAt)

	events := f.publisher.eventsOfType(domain.AuctionHasEnded)
	require.Len(t, events, 1)
	assert.Equal(t, "user_a", events[0].UserID)
}

func TestEndAuctionReserveNotEnforcedByDefault(t *testing.T) {
	f := newFixture()
	auction := f.seedLiveAuction("auction_1")
	auction.ReservePrice = 500
	require.NoError(t, f.auctionRepo.UpdateAuction(context.Background(), auction))

	require.NoError(t, f.bidRepo.CreateBid(context.Background(), &domain.Bid{
		ID: "bid_1", AuctionID: "auction_1", UserID: "user_a", Amount: 120, IsWinning: true, CreatedAt: f.clock.Now(),
	}))

	ended, err := f.lifecycle.EndAuction(context.Background(), "auction_1")
	require.NoError(t, err)
	assert.Equal(t, "user_a", ended.WinnerID)
}

func TestEndAuctionEnforcedReserve(t *testing.T) {
	cfg := LifecycleConfig{PaymentDueDays: 7, EnforceReserve: true, DefaultExtensionMinutes: 5, DefaultMaxExtensions: 3}

	t.Run("bid below reserve yields no winner", func(t *testing.T) {
		f := newFixtureWithConfig(cfg)
		auction := f.seedLiveAuction("auction_1")
		auction.ReservePrice = 500
		require.NoError(t, f.auctionRepo.UpdateAuction(context.Background(), auction))

		require.NoError(t, f.bidRepo.CreateBid(context.Background(), &domain.Bid{
			ID: "bid_1", AuctionID: "auction_1", UserID: "user_a", Amount: 120, IsWinning: true, CreatedAt: f.clock.Now(),
		}))

		ended, err := f.lifecycle.EndAuction(context.Background(), "auction_1")
		require.NoError(t, err)
		assert.Empty(t, ended.WinnerID)
		assert.True(t, ended.PaymentDueAt.IsZero())
	})

	t.Run("bid at reserve wins", func(t *testing.T) {
		f := newFixtureWithConfig(cfg)
		auction := f.seedLiveAuction("auction_1")
		auction.ReservePrice = 500
		require.NoError(t, f.auctionRepo.UpdateAuction(context.Background(), auction))

		require.NoError(t, f.bidRepo.CreateBid(context.Background(), &domain.Bid{
			ID: "bid_1", AuctionID: "auction_1", UserID: "user_a", Amount: 500, IsWinning: true, CreatedAt: f.clock.Now(),
		}))

		ended, err := f.lifecycle.EndAuction(context.Background(), "auction_1")
		require.NoError(t, err)
		assert.Equal(t, "user_a", ended.WinnerID)
	})
}

func TestEndAuctionInvalidTransitions(t *testing.T) {
	f := newFixture()
	auction := f.seedLiveAuction("auction_1")

	for _, status := range []domain.AuctionStatus{domain.AuctionUpcoming, domain.AuctionEnded, domain.AuctionCancelled} {
		auction.Status = status
		require.NoError(t, f.auctionRepo.UpdateAuction(context.Background(), auction))

		_, err := f.lifecycle.EndAuction(context.Background(), "auction_1")

		var invalid *domain.InvalidTransitionError
		assert.True(t, errors.As(err, &invalid), "status %s", status)
	}
}

func TestCancelLiveAuctionVoidsWinningBid(t *testing.T) {
	f := newFixture()
	auction := f.seedLiveAuction("auction_1")
	auction.WinnerID = "user_a"
	auction.WinningBidID = "bid_1"
	auction.CurrentPrice = 120
	require.NoError(t, f.auctionRepo.UpdateAuction(context.Background(), auction))
	require.NoError(t, f.bidRepo.CreateBid(context.Background(), &domain.Bid{
		ID: "bid_1", AuctionID: "auction_1", UserID: "user_a", Amount: 120, IsWinning: true, CreatedAt: f.clock.Now(),
	}))

	cancelled, err := f.lifecycle.CancelAuction(context.Background(), "auction_1")
	require.NoError(t, err)

	assert.Equal(t, domain.AuctionCancelled, cancelled.Status)
	assert.Empty(t, cancelled.WinnerID)
	assert.Empty(t, cancelled.WinningBidID)
	assert.Empty(t, f.bidRepo.winningBids("auction_1"))
	assert.Contains(t, f.scheduler.cancelled, "auction_1")

	events := f.publisher.eventsOfType(domain.AuctionVoided)
	require.Len(t, events, 1)
}

func TestCancelUpcomingAuction(t *testing.T) {
	f := newFixture()
	auction := f.seedLiveAuction("auction_1")
	auction.Status = domain.AuctionUpcoming
	require.NoError(t, f.auctionRepo.UpdateAuction(context.Background(), auction))

	cancelled, err := f.lifecycle.CancelAuction(context.Background(), "auction_1")
	require.NoError(t, err)
	assert.Equal(t, domain.AuctionCancelled, cancelled.Status)
}

func TestCancelEndedAuctionFails(t *testing.T) {
	f := newFixture()
	auction := f.seedLiveAuction("auction_1")
	auction.Status = domain.AuctionEnded
	require.NoError(t, f.auctionRepo.UpdateAuction(context.Background(), auction))

	_, err := f.lifecycle.CancelAuction(context.Background(), "auction_1")

	var invalid *domain.InvalidTransitionError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "cancel", invalid.Op)
}

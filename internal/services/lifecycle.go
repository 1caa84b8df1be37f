package services

import (
	"context"
	"strings"
	"time"

	"bidding-engine/internal/domain"
	"bidding-engine/pkg/logger"
	"bidding-engine/pkg/utils"
)

// LifecycleConfig carries the tunables the lifecycle manager needs. Values
// come from the caller's configuration, never from ambient state.
type LifecycleConfig struct {
	PaymentDueDays          int
	EnforceReserve          bool
	DefaultExtensionMinutes int
	DefaultMaxExtensions    int
}

// LifecycleManager owns the auction state machine:
// upcoming -> live -> ended, with cancelled reachable from upcoming or live.
// It does not check wall-clock time on transitions; the scheduler is
// responsible for firing them at the right moment.
type LifecycleManager struct {
	auctionRepo domain.AuctionRepository
	bidRepo     domain.BidRepository
	productRepo domain.ProductRepository
	stateCache  domain.AuctionStateCache
	scheduler   domain.AuctionScheduler
	eventPub    domain.EventPublisher
	clock       domain.Clock
	cfg         LifecycleConfig
	log         logger.Logger
}

func NewLifecycleManager(
	auctionRepo domain.AuctionRepository,
	bidRepo domain.BidRepository,
	productRepo domain.ProductRepository,
	stateCache domain.AuctionStateCache,
	eventPub domain.EventPublisher,
	clock domain.Clock,
	cfg LifecycleConfig,
	log logger.Logger,
) *LifecycleManager {
	return &LifecycleManager{
		auctionRepo: auctionRepo,
		bidRepo:     bidRepo,
		productRepo: productRepo,
		stateCache:  stateCache,
		eventPub:    eventPub,
		clock:       clock,
		cfg:         cfg,
		log:         log,
	}
}

// SetScheduler breaks the construction cycle between the manager and the
// cron scheduler, which needs the manager to fire transitions.
func (m *LifecycleManager) SetScheduler(scheduler domain.AuctionScheduler) {
	m.scheduler = scheduler
}

// CreateAuctionSpec is the listing input supplied by the caller.
type CreateAuctionSpec struct {
	Title         string
	Description   string
	ProductID     string
	StartingPrice float64
	ReservePrice  float64
	BuyNowPrice   float64
	BidIncrement  float64
	StartAt       time.Time
	EndAt         time.Time
	AutoExtend    bool
	ExtensionTime int
	MaxExtensions int
	Images        []string
}

func (m *LifecycleManager) CreateAuction(ctx context.Context, vendorID string, spec CreateAuctionSpec) (*domain.Auction, error) {
	now := m.clock.Now()
	if err := m.validateSpec(&spec, now); err != nil {
		return nil, err
	}

	owner, err := m.productRepo.GetProductVendor(ctx, spec.ProductID)
	if err != nil {
		return nil, err
	}
	if owner != vendorID {
		return nil, &domain.ValidationError{Field: "productId", Message: "product does not belong to this vendor"}
	}

	auction := &domain.Auction{
		ID:            utils.GenerateID("auction"),
		Title:         spec.Title,
		Description:   spec.Description,
		ProductID:     spec.ProductID,
		VendorID:      vendorID,
		StartingPrice: spec.StartingPrice,
		ReservePrice:  spec.ReservePrice,
		BuyNowPrice:   spec.BuyNowPrice,
		BidIncrement:  spec.BidIncrement,
		StartAt:       spec.StartAt,
		EndAt:         spec.EndAt,
		Status:        domain.AuctionUpcoming,
		CurrentPrice:  spec.StartingPrice,
		AutoExtend:    spec.AutoExtend,
		ExtensionTime: spec.ExtensionTime,
		MaxExtensions: spec.MaxExtensions,
		Images:        spec.Images,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := m.auctionRepo.CreateAuction(ctx, auction); err != nil {
		return nil, err
	}

	if m.stateCache != nil {
		if err := m.stateCache.SetAuctionStatus(ctx, auction.ID, auction.Status); err != nil {
			m.log.Error("Failed to cache auction status", "auction_id", auction.ID, "error", err)
		}
	}

	if m.scheduler != nil {
		if err := m.scheduler.ScheduleAuctionStart(ctx, auction.ID, auction.StartAt); err != nil {
			return nil, err
		}
		if err := m.scheduler.ScheduleAuctionEnd(ctx, auction.ID, auction.EndAt); err != nil {
			return nil, err
		}
	}

	m.log.Info("Auction created", "auction_id", auction.ID, "vendor_id", vendorID, "start_at", auction.StartAt, "end_at", auction.EndAt)
	return auction, nil
}

func (m *LifecycleManager) validateSpec(spec *CreateAuctionSpec, now time.Time) error {
	if len(strings.TrimSpace(spec.Title)) < 5 {
		return &domain.ValidationError{Field: "title", Message: "must be at least 5 characters"}
	}
	if len(strings.TrimSpace(spec.Description)) < 20 {
		return &domain.ValidationError{Field: "description", Message: "must be at least 20 characters"}
	}
	if spec.ProductID == "" {
		return &domain.ValidationError{Field: "productId", Message: "is required"}
	}
	if spec.StartingPrice <= 0 {
		return &domain.ValidationError{Field: "startingPrice", Message: "must be greater than 0"}
	}
	if spec.BidIncrement <= 0 {
		return &domain.ValidationError{Field: "bidIncrement", Message: "must be greater than 0"}
	}
	if !spec.StartAt.After(now) {
		return &domain.ValidationError{Field: "startAt", Message: "must be in the future"}
	}
	if !spec.EndAt.After(spec.StartAt) {
		return &domain.ValidationError{Field: "endAt", Message: "must be after start time"}
	}
	if spec.ReservePrice != 0 && spec.ReservePrice < spec.StartingPrice {
		return &domain.ValidationError{Field: "reservePrice", Message: "must be greater than or equal to starting price"}
	}
	if spec.BuyNowPrice != 0 && spec.BuyNowPrice <= spec.StartingPrice {
		return &domain.ValidationError{Field: "buyNowPrice", Message: "must be greater than starting price"}
	}
	if len(spec.Images) == 0 {
		return &domain.ValidationError{Field: "images", Message: "at least one image is required"}
	}

	if spec.AutoExtend {
		if spec.ExtensionTime == 0 {
			spec.ExtensionTime = m.cfg.DefaultExtensionMinutes
		}
		if spec.MaxExtensions == 0 {
			spec.MaxExtensions = m.cfg.DefaultMaxExtensions
		}
		if spec.ExtensionTime < 1 || spec.ExtensionTime > 60 {
			return &domain.ValidationError{Field: "extensionTime", Message: "must be between 1 and 60 minutes"}
		}
		if spec.MaxExtensions < 0 || spec.MaxExtensions > 10 {
			return &domain.ValidationError{Field: "maxExtensions", Message: "must be between 0 and 10"}
		}
	}

	return nil
}

// StartAuction moves an upcoming auction to live. Any other source state
// fails with InvalidTransitionError.
func (m *LifecycleManager) StartAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	auction, err := m.auctionRepo.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	if auction.Status != domain.AuctionUpcoming {
		return nil, &domain.InvalidTransitionError{AuctionID: auctionID, From: auction.Status, Op: "start"}
	}

	auction.Status = domain.AuctionLive
	auction.UpdatedAt = m.clock.Now()
	if err := m.auctionRepo.UpdateAuction(ctx, auction); err != nil {
		return nil, err
	}

	m.syncStatus(ctx, auction)
	m.publish(ctx, &domain.BidEvent{
		Type:      domain.AuctionStarted,
		AuctionID: auctionID,
		EndAt:     auction.EndAt,
		Timestamp: auction.UpdatedAt,
	})

	m.log.Info("Auction started", "auction_id", auctionID)
	return auction, nil
}

// EndAuction moves a live auction to ended and resolves the winner from the
// standing winning bid. With EnforceReserve unset, an auction that closes
// below its reserve still declares a winner, matching the legacy behavior.
func (m *LifecycleManager) EndAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	auction, err := m.auctionRepo.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	if auction.Status != domain.AuctionLive {
		return nil, &domain.InvalidTransitionError{AuctionID: auctionID, From: auction.Status, Op: "end"}
	}

	winning, err := m.bidRepo.GetWinningBid(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	now := m.clock.Now()
	auction.Status = domain.AuctionEnded
	auction.CompletedAt = now
	auction.UpdatedAt = now

	if winning != nil && m.reserveMet(auction, winning) {
		auction.WinnerID = winning.UserID
		auction.WinningBidID = winning.ID
		auction.PaymentDueAt = now.Add(time.Duration(m.cfg.PaymentDueDays) * 24 * time.Hour)
	} else {
		auction.WinnerID = ""
		auction.WinningBidID = ""
	}

	if err := m.auctionRepo.UpdateAuction(ctx, auction); err != nil {
		return nil, err
	}

	if m.scheduler != nil {
		if err := m.scheduler.CancelSchedule(ctx, auctionID); err != nil {
			m.log.Error("Failed to cancel scheduled jobs", "auction_id", auctionID, "error", err)
		}
	}

	m.syncStatus(ctx, auction)
	m.publish(ctx, &domain.BidEvent{
		Type:      domain.AuctionHasEnded,
		AuctionID: auctionID,
		UserID:    auction.WinnerID,
		Amount:    auction.CurrentPrice,
		Timestamp: now,
	})

	m.log.Info("Auction ended", "auction_id", auctionID, "winner_id", auction.WinnerID, "final_price", auction.CurrentPrice, "bid_count", auction.BidCount)
	return auction, nil
}

// CancelAuction voids an upcoming or live auction: the standing winning bid
// is unflagged, winner fields are cleared and pending jobs cancelled.
func (m *LifecycleManager) CancelAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	auction, err := m.auctionRepo.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	if auction.Status != domain.AuctionUpcoming && auction.Status != domain.AuctionLive {
		return nil, &domain.InvalidTransitionError{AuctionID: auctionID, From: auction.Status, Op: "cancel"}
	}

	winning, err := m.bidRepo.GetWinningBid(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if winning != nil {
		winning.IsWinning = false
		if err := m.bidRepo.UpdateBid(ctx, winning); err != nil {
			return nil, err
		}
	}

	now := m.clock.Now()
	auction.Status = domain.AuctionCancelled
	auction.WinnerID = ""
	auction.WinningBidID = ""
	auction.CompletedAt = now
	auction.UpdatedAt = now
	if err := m.auctionRepo.UpdateAuction(ctx, auction); err != nil {
		return nil, err
	}

	if m.scheduler != nil {
		if err := m.scheduler.CancelSchedule(ctx, auctionID); err != nil {
			m.log.Error("Failed to cancel scheduled jobs", "auction_id", auctionID, "error", err)
		}
	}

	m.syncStatus(ctx, auction)
	m.publish(ctx, &domain.BidEvent{
		Type:      domain.AuctionVoided,
		AuctionID: auctionID,
		Timestamp: now,
	})

	m.log.Info("Auction cancelled", "auction_id", auctionID)
	return auction, nil
}

func (m *LifecycleManager) reserveMet(auction *domain.Auction, winning *domain.Bid) bool {
	if !m.cfg.EnforceReserve || auction.ReservePrice == 0 {
		return true
	}
	return winning.Amount >= auction.ReservePrice
}

func (m *LifecycleManager) syncStatus(ctx context.Context, auction *domain.Auction) {
	if m.stateCache == nil {
		return
	}
	if err := m.stateCache.SetAuctionStatus(ctx, auction.ID, auction.Status); err != nil {
		m.log.Error("Failed to cache auction status", "auction_id", auction.ID, "error", err)
	}
}

func (m *LifecycleManager) publish(ctx context.Context, event *domain.BidEvent) {
	if m.eventPub == nil {
		return
	}
	if err := m.eventPub.PublishBidEvent(ctx, event); err != nil {
		m.log.Error("Failed to publish event", "type", event.Type, "auction_id", event.AuctionID, "error", err)
	}
}

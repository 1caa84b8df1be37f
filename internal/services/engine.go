package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"bidding-engine/internal/domain"
	"bidding-engine/pkg/logger"
	"bidding-engine/pkg/utils"
)

// EngineConfig carries query-surface tunables.
type EngineConfig struct {
	DefaultPageSize int
	MaxPageSize     int
}

// BiddingEngine is the public entry point for bid placement and watching.
// All mutation of a single auction's pricing state - admission check,
// ledger update, anti-snipe extension and the full proxy cascade - runs
// inside one per-auction critical section. Distinct auctions proceed in
// parallel with no coordination.
type BiddingEngine struct {
	auctionRepo domain.AuctionRepository
	bidRepo     domain.BidRepository
	autoBidRepo domain.AutoBidRepository
	watcherRepo domain.WatcherRepository
	validator   *AdmissionValidator
	extender    *AntiSnipeExtender
	proxy       *ProxyBidResolver
	lifecycle   *LifecycleManager
	scheduler   domain.AuctionScheduler
	eventPub    domain.EventPublisher
	clock       domain.Clock
	cfg         EngineConfig
	log         logger.Logger

	locks   map[string]*sync.Mutex
	locksMu sync.Mutex
}

func NewBiddingEngine(
	auctionRepo domain.AuctionRepository,
	bidRepo domain.BidRepository,
	autoBidRepo domain.AutoBidRepository,
	watcherRepo domain.WatcherRepository,
	lifecycle *LifecycleManager,
	eventPub domain.EventPublisher,
	clock domain.Clock,
	cfg EngineConfig,
	log logger.Logger,
) *BiddingEngine {
	return &BiddingEngine{
		auctionRepo: auctionRepo,
		bidRepo:     bidRepo,
		autoBidRepo: autoBidRepo,
		watcherRepo: watcherRepo,
		validator:   NewAdmissionValidator(),
		extender:    NewAntiSnipeExtender(),
		proxy:       NewProxyBidResolver(),
		lifecycle:   lifecycle,
		eventPub:    eventPub,
		clock:       clock,
		cfg:         cfg,
		log:         log,
		locks:       make(map[string]*sync.Mutex),
	}
}

// SetScheduler wires the end-job rescheduler used after anti-snipe
// extensions. Optional; nil skips rescheduling.
func (e *BiddingEngine) SetScheduler(scheduler domain.AuctionScheduler) {
	e.scheduler = scheduler
}

func (e *BiddingEngine) auctionLock(auctionID string) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()

	if lock, exists := e.locks[auctionID]; exists {
		return lock
	}
	lock := &sync.Mutex{}
	e.locks[auctionID] = lock
	return lock
}

// PlaceBidRequest is the caller-supplied bid input.
type PlaceBidRequest struct {
	Amount    float64
	IsAutoBid bool
	MaxAmount float64
}

// PlaceBid runs the full admission -> ledger -> anti-snipe -> proxy
// pipeline and returns the caller's accepted bid. Proxy counter-bids
// triggered by it are committed inside the same critical section but not
// returned.
func (e *BiddingEngine) PlaceBid(ctx context.Context, auctionID, userID string, req PlaceBidRequest) (*domain.Bid, error) {
	if req.Amount <= 0 {
		return nil, &domain.ValidationError{Field: "amount", Message: "must be greater than 0"}
	}
	if req.IsAutoBid {
		if req.MaxAmount <= 0 {
			return nil, &domain.ValidationError{Field: "maxAmount", Message: "is required for auto bidding"}
		}
		if req.MaxAmount < req.Amount {
			return nil, &domain.ValidationError{Field: "maxAmount", Message: "must be greater than or equal to bid amount"}
		}
	}

	lock := e.auctionLock(auctionID)
	lock.Lock()
	defer lock.Unlock()

	bid, err := e.acceptBid(ctx, auctionID, userID, req.Amount, req.IsAutoBid, req.MaxAmount)
	if err != nil {
		return nil, err
	}

	e.runProxyCascade(ctx, auctionID, bid)
	return bid, nil
}

// acceptBid commits one bid: admission check, auto-bid bookkeeping, winning
// flag handover, price update and anti-snipe extension. Caller holds the
// auction lock.
func (e *BiddingEngine) acceptBid(ctx context.Context, auctionID, bidderID string, amount float64, isAutoBid bool, maxAmount float64) (*domain.Bid, error) {
	auction, err := e.auctionRepo.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	if err := e.validator.Check(auction, bidderID, amount, now); err != nil {
		var rejected *domain.BidRejectedError
		if errors.As(err, &rejected) {
			e.publish(ctx, &domain.BidEvent{
				Type:      domain.BidRejectedEvent,
				AuctionID: auctionID,
				UserID:    bidderID,
				Amount:    amount,
				Reason:    string(rejected.Reason),
				Timestamp: now,
			})
		}
		return nil, err
	}

	if isAutoBid {
		if err := e.refreshAutoBidSetting(ctx, auctionID, bidderID, maxAmount, now); err != nil {
			return nil, err
		}
	}

	previous, err := e.bidRepo.GetWinningBid(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if previous != nil {
		previous.IsWinning = false
		if err := e.bidRepo.UpdateBid(ctx, previous); err != nil {
			return nil, err
		}
	}

	bid := &domain.Bid{
		ID:        utils.GenerateID("bid"),
		AuctionID: auctionID,
		UserID:    bidderID,
		Amount:    amount,
		IsWinning: true,
		IsAutoBid: isAutoBid,
		MaxAmount: maxAmount,
		CreatedAt: now,
	}
	if err := e.bidRepo.CreateBid(ctx, bid); err != nil {
		return nil, err
	}

	auction.CurrentPrice = amount
	auction.BidCount++
	auction.WinningBidID = bid.ID
	auction.WinnerID = bidderID
	auction.UpdatedAt = now

	extended := e.extender.Apply(auction, now)

	if err := e.auctionRepo.UpdateAuction(ctx, auction); err != nil {
		return nil, err
	}

	if extended {
		if e.scheduler != nil {
			if err := e.scheduler.RescheduleAuctionEnd(ctx, auctionID, auction.EndAt); err != nil {
				e.log.Error("Failed to reschedule auction end", "auction_id", auctionID, "error", err)
			}
		}
		e.publish(ctx, &domain.BidEvent{
			Type:      domain.AuctionExtended,
			AuctionID: auctionID,
			EndAt:     auction.EndAt,
			Timestamp: now,
		})
		e.log.Info("Auction extended", "auction_id", auctionID, "new_end_at", auction.EndAt, "extensions", auction.CurrentExtensions)
	}

	e.publish(ctx, &domain.BidEvent{
		Type:      domain.BidAccepted,
		AuctionID: auctionID,
		UserID:    bidderID,
		Amount:    amount,
		EndAt:     auction.EndAt,
		Timestamp: now,
	})

	e.log.Info("Bid accepted", "auction_id", auctionID, "user_id", bidderID, "amount", amount, "auto", isAutoBid)
	return bid, nil
}

// refreshAutoBidSetting deactivates the bidder's previous settings for the
// auction and records the new ceiling, keeping at most one active setting
// per (user, auction) pair.
func (e *BiddingEngine) refreshAutoBidSetting(ctx context.Context, auctionID, userID string, maxAmount float64, now time.Time) error {
	if err := e.autoBidRepo.DeactivateSettings(ctx, auctionID, userID); err != nil {
		return err
	}
	return e.autoBidRepo.CreateSetting(ctx, &domain.AutoBidSetting{
		ID:        utils.GenerateID("autobid"),
		UserID:    userID,
		AuctionID: auctionID,
		MaxAmount: maxAmount,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// runProxyCascade answers an accepted bid with automatic counter-bids until
// no standing setting can top the current price. Termination: admission
// rule 4 forces every accepted counter to raise the price by at least one
// increment, and the price is bounded by the highest active ceiling. A
// counter whose capped amount falls below the minimum increment is rejected
// and ends the cascade; already-committed bids stand.
func (e *BiddingEngine) runProxyCascade(ctx context.Context, auctionID string, trigger *domain.Bid) {
	last := trigger
	for round := 1; ; round++ {
		auction, err := e.auctionRepo.GetAuction(ctx, auctionID)
		if err != nil {
			e.log.Error("Proxy cascade aborted: auction fetch failed", "auction_id", auctionID, "round", round, "error", err)
			return
		}

		settings, err := e.autoBidRepo.GetActiveSettings(ctx, auctionID)
		if err != nil {
			e.log.Error("Proxy cascade aborted: settings fetch failed", "auction_id", auctionID, "round", round, "error", err)
			return
		}

		counter, ok := e.proxy.NextCounter(settings, last, auction.BidIncrement)
		if !ok {
			return
		}

		bid, err := e.acceptBid(ctx, auctionID, counter.UserID, counter.Amount, true, counter.MaxAmount)
		if err != nil {
			var rejected *domain.BidRejectedError
			if errors.As(err, &rejected) {
				e.log.Warn("Proxy counter-bid rejected, cascade stopped",
					"auction_id", auctionID, "round", round, "user_id", counter.UserID,
					"amount", counter.Amount, "reason", rejected.Reason)
			} else {
				e.log.Error("Proxy counter-bid failed, cascade stopped",
					"auction_id", auctionID, "round", round, "user_id", counter.UserID, "error", err)
			}
			return
		}

		last = bid
	}
}

// WatchAuction registers the user as a watcher. Watching twice is a no-op.
func (e *BiddingEngine) WatchAuction(ctx context.Context, auctionID, userID string) error {
	lock := e.auctionLock(auctionID)
	lock.Lock()
	defer lock.Unlock()

	auction, err := e.auctionRepo.GetAuction(ctx, auctionID)
	if err != nil {
		return err
	}

	existing, err := e.watcherRepo.GetWatcher(ctx, auctionID, userID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	now := e.clock.Now()
	if err := e.watcherRepo.CreateWatcher(ctx, &domain.Watcher{
		ID:        utils.GenerateID("watcher"),
		AuctionID: auctionID,
		UserID:    userID,
		CreatedAt: now,
	}); err != nil {
		return err
	}

	auction.WatcherCount++
	auction.UpdatedAt = now
	return e.auctionRepo.UpdateAuction(ctx, auction)
}

// UnwatchAuction removes the user's watcher rows and decrements the
// watcher count, floored at zero.
func (e *BiddingEngine) UnwatchAuction(ctx context.Context, auctionID, userID string) error {
	lock := e.auctionLock(auctionID)
	lock.Lock()
	defer lock.Unlock()

	auction, err := e.auctionRepo.GetAuction(ctx, auctionID)
	if err != nil {
		return err
	}

	deleted, err := e.watcherRepo.DeleteWatchers(ctx, auctionID, userID)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return nil
	}

	auction.WatcherCount -= deleted
	if auction.WatcherCount < 0 {
		auction.WatcherCount = 0
	}
	auction.UpdatedAt = e.clock.Now()
	return e.auctionRepo.UpdateAuction(ctx, auction)
}

// CreateAuction validates the listing spec and persists a new upcoming
// auction. Delegates to the lifecycle manager.
func (e *BiddingEngine) CreateAuction(ctx context.Context, vendorID string, spec CreateAuctionSpec) (*domain.Auction, error) {
	return e.lifecycle.CreateAuction(ctx, vendorID, spec)
}

// StartAuction transitions upcoming -> live under the auction lock.
func (e *BiddingEngine) StartAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	lock := e.auctionLock(auctionID)
	lock.Lock()
	defer lock.Unlock()
	return e.lifecycle.StartAuction(ctx, auctionID)
}

// EndAuction transitions live -> ended under the auction lock, so an
// in-flight bid cascade is never interleaved with winner resolution.
func (e *BiddingEngine) EndAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	lock := e.auctionLock(auctionID)
	lock.Lock()
	defer lock.Unlock()
	return e.lifecycle.EndAuction(ctx, auctionID)
}

// CancelAuction voids an upcoming or live auction under the auction lock.
func (e *BiddingEngine) CancelAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	lock := e.auctionLock(auctionID)
	lock.Lock()
	defer lock.Unlock()
	return e.lifecycle.CancelAuction(ctx, auctionID)
}

// GetAuction returns the auction by ID.
func (e *BiddingEngine) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	return e.auctionRepo.GetAuction(ctx, auctionID)
}

// GetAuctionBids lists an auction's bids, newest first.
func (e *BiddingEngine) GetAuctionBids(ctx context.Context, auctionID string, page, limit int) ([]*domain.Bid, error) {
	limit, offset := e.pagination(page, limit)
	return e.bidRepo.GetBidsByAuction(ctx, auctionID, limit, offset)
}

// GetUserBids lists a user's bids across auctions, newest first.
func (e *BiddingEngine) GetUserBids(ctx context.Context, userID string, page, limit int) ([]*domain.Bid, error) {
	limit, offset := e.pagination(page, limit)
	return e.bidRepo.GetBidsByUser(ctx, userID, limit, offset)
}

// GetWatchedAuctions returns the auctions the user is watching.
func (e *BiddingEngine) GetWatchedAuctions(ctx context.Context, userID string) ([]*domain.Auction, error) {
	ids, err := e.watcherRepo.GetWatchedAuctionIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	auctions := make([]*domain.Auction, 0, len(ids))
	for _, id := range ids {
		auction, err := e.auctionRepo.GetAuction(ctx, id)
		if err != nil {
			var notFound *domain.NotFoundError
			if errors.As(err, &notFound) {
				continue
			}
			return nil, err
		}
		auctions = append(auctions, auction)
	}
	return auctions, nil
}

func (e *BiddingEngine) pagination(page, limit int) (int, int) {
	if limit <= 0 {
		limit = e.cfg.DefaultPageSize
	}
	if limit > e.cfg.MaxPageSize {
		limit = e.cfg.MaxPageSize
	}
	if page < 1 {
		page = 1
	}
	return limit, (page - 1) * limit
}

func (e *BiddingEngine) publish(ctx context.Context, event *domain.BidEvent) {
	if e.eventPub == nil {
		return
	}
	if err := e.eventPub.PublishBidEvent(ctx, event); err != nil {
		e.log.Error("Failed to publish event", "type", event.Type, "auction_id", event.AuctionID, "error", err)
	}
}

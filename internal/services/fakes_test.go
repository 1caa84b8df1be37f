package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"bidding-engine/internal/domain"
	"bidding-engine/pkg/logger"
)

// fakeClock is a settable domain.Clock for deterministic expiry and
// extension scenarios.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type memAuctionRepo struct {
	mu       sync.Mutex
	auctions map[string]*domain.Auction
}

func newMemAuctionRepo() *memAuctionRepo {
	return &memAuctionRepo{auctions: make(map[string]*domain.Auction)}
}

func (r *memAuctionRepo) CreateAuction(_ context.Context, auction *domain.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *auction
	r.auctions[auction.ID] = &cp
	return nil
}

func (r *memAuctionRepo) GetAuction(_ context.Context, auctionID string) (*domain.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	auction, ok := r.auctions[auctionID]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "auction", ID: auctionID}
	}
	cp := *auction
	return &cp, nil
}

func (r *memAuctionRepo) UpdateAuction(_ context.Context, auction *domain.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.auctions[auction.ID]; !ok {
		return &domain.NotFoundError{Entity: "auction", ID: auction.ID}
	}
	cp := *auction
	r.auctions[auction.ID] = &cp
	return nil
}

func (r *memAuctionRepo) GetAuctionsByStatus(_ context.Context, status domain.AuctionStatus) ([]*domain.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Auction
	for _, a := range r.auctions {
		if a.Status == status {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memBidRepo struct {
	mu   sync.Mutex
	bids []*domain.Bid
}

func newMemBidRepo() *memBidRepo {
	return &memBidRepo{}
}

func (r *memBidRepo) CreateBid(_ context.Context, bid *domain.Bid) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *bid
	r.bids = append(r.bids, &cp)
	return nil
}

func (r *memBidRepo) UpdateBid(_ context.Context, bid *domain.Bid) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, b := range r.bids {
		if b.ID == bid.ID {
			cp := *bid
			r.bids[i] = &cp
			return nil
		}
	}
	return &domain.NotFoundError{Entity: "bid", ID: bid.ID}
}

func (r *memBidRepo) GetWinningBid(_ context.Context, auctionID string) (*domain.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bids {
		if b.AuctionID == auctionID && b.IsWinning {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memBidRepo) GetBidsByAuction(_ context.Context, auctionID string, limit, offset int) ([]*domain.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*domain.Bid
	for _, b := range r.bids {
		if b.AuctionID == auctionID {
			matched = append(matched, b)
		}
	}
	return pageBids(matched, limit, offset), nil
}

func (r *memBidRepo) GetBidsByUser(_ context.Context, userID string, limit, offset int) ([]*domain.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*domain.Bid
	for _, b := range r.bids {
		if b.UserID == userID {
			matched = append(matched, b)
		}
	}
	return pageBids(matched, limit, offset), nil
}

// pageBids mirrors the SQL ordering: created_at descending, id descending.
func pageBids(bids []*domain.Bid, limit, offset int) []*domain.Bid {
	sort.Slice(bids, func(i, j int) bool {
		if !bids[i].CreatedAt.Equal(bids[j].CreatedAt) {
			return bids[i].CreatedAt.After(bids[j].CreatedAt)
		}
		return bids[i].ID > bids[j].ID
	})

	if offset >= len(bids) {
		return nil
	}
	bids = bids[offset:]
	if limit < len(bids) {
		bids = bids[:limit]
	}

	out := make([]*domain.Bid, 0, len(bids))
	for _, b := range bids {
		cp := *b
		out = append(out, &cp)
	}
	return out
}

// winningBids returns every bid currently flagged winning for the auction.
func (r *memBidRepo) winningBids(auctionID string) []*domain.Bid {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Bid
	for _, b := range r.bids {
		if b.AuctionID == auctionID && b.IsWinning {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out
}

type memAutoBidRepo struct {
	mu       sync.Mutex
	settings []*domain.AutoBidSetting
}

func newMemAutoBidRepo() *memAutoBidRepo {
	return &memAutoBidRepo{}
}

func (r *memAutoBidRepo) CreateSetting(_ context.Context, setting *domain.AutoBidSetting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *setting
	r.settings = append(r.settings, &cp)
	return nil
}

func (r *memAutoBidRepo) DeactivateSettings(_ context.Context, auctionID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.settings {
		if s.AuctionID == auctionID && s.UserID == userID {
			s.IsActive = false
		}
	}
	return nil
}

func (r *memAutoBidRepo) GetActiveSettings(_ context.Context, auctionID string) ([]*domain.AutoBidSetting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.AutoBidSetting
	for _, s := range r.settings {
		if s.AuctionID == auctionID && s.IsActive {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memAutoBidRepo) activeFor(auctionID, userID string) []*domain.AutoBidSetting {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.AutoBidSetting
	for _, s := range r.settings {
		if s.AuctionID == auctionID && s.UserID == userID && s.IsActive {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out
}

type memWatcherRepo struct {
	mu       sync.Mutex
	watchers []*domain.Watcher
}

func newMemWatcherRepo() *memWatcherRepo {
	return &memWatcherRepo{}
}

func (r *memWatcherRepo) CreateWatcher(_ context.Context, watcher *domain.Watcher) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *watcher
	r.watchers = append(r.watchers, &cp)
	return nil
}

func (r *memWatcherRepo) GetWatcher(_ context.Context, auctionID, userID string) (*domain.Watcher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.watchers {
		if w.AuctionID == auctionID && w.UserID == userID {
			cp := *w
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memWatcherRepo) DeleteWatchers(_ context.Context, auctionID, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []*domain.Watcher
	deleted := 0
	for _, w := range r.watchers {
		if w.AuctionID == auctionID && w.UserID == userID {
			deleted++
			continue
		}
		kept = append(kept, w)
	}
	r.watchers = kept
	return deleted, nil
}

func (r *memWatcherRepo) GetWatchedAuctionIDs(_ context.Context, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, w := range r.watchers {
		if w.UserID == userID {
			out = append(out, w.AuctionID)
		}
	}
	return out, nil
}

type memProductRepo struct {
	mu      sync.Mutex
	vendors map[string]string
}

func newMemProductRepo() *memProductRepo {
	return &memProductRepo{vendors: make(map[string]string)}
}

func (r *memProductRepo) setVendor(productID, vendorID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vendors[productID] = vendorID
}

func (r *memProductRepo) GetProductVendor(_ context.Context, productID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	vendorID, ok := r.vendors[productID]
	if !ok {
		return "", &domain.NotFoundError{Entity: "product", ID: productID}
	}
	return vendorID, nil
}

// recordingScheduler records scheduling calls instead of persisting jobs.
type recordingScheduler struct {
	mu          sync.Mutex
	starts      map[string]time.Time
	ends        map[string]time.Time
	reschedules map[string]time.Time
	cancelled   []string
}

func newRecordingScheduler() *recordingScheduler {
	return &recordingScheduler{
		starts:      make(map[string]time.Time),
		ends:        make(map[string]time.Time),
		reschedules: make(map[string]time.Time),
	}
}

func (s *recordingScheduler) ScheduleAuctionStart(_ context.Context, auctionID string, startTime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts[auctionID] = startTime
	return nil
}

func (s *recordingScheduler) ScheduleAuctionEnd(_ context.Context, auctionID string, endTime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ends[auctionID] = endTime
	return nil
}

func (s *recordingScheduler) RescheduleAuctionEnd(_ context.Context, auctionID string, newEndTime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reschedules[auctionID] = newEndTime
	return nil
}

func (s *recordingScheduler) CancelSchedule(_ context.Context, auctionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = append(s.cancelled, auctionID)
	return nil
}

func (s *recordingScheduler) Start(context.Context) error { return nil }
func (s *recordingScheduler) Stop() error                 { return nil }

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*domain.BidEvent
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{}
}

func (p *recordingPublisher) PublishBidEvent(_ context.Context, event *domain.BidEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := *event
	p.events = append(p.events, &cp)
	return nil
}

func (p *recordingPublisher) eventsOfType(t domain.BidEventType) []*domain.BidEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*domain.BidEvent
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// fixture wires the engine with in-memory dependencies and a fixed clock.
type fixture struct {
	clock       *fakeClock
	auctionRepo *memAuctionRepo
	bidRepo     *memBidRepo
	autoBidRepo *memAutoBidRepo
	watcherRepo *memWatcherRepo
	productRepo *memProductRepo
	scheduler   *recordingScheduler
	publisher   *recordingPublisher
	lifecycle   *LifecycleManager
	engine      *BiddingEngine
}

func newFixture() *fixture {
	return newFixtureWithConfig(LifecycleConfig{
		PaymentDueDays:          7,
		EnforceReserve:          false,
		DefaultExtensionMinutes: 5,
		DefaultMaxExtensions:    3,
	})
}

func newFixtureWithConfig(cfg LifecycleConfig) *fixture {
	f := &fixture{
		clock:       newFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)),
		auctionRepo: newMemAuctionRepo(),
		bidRepo:     newMemBidRepo(),
		autoBidRepo: newMemAutoBidRepo(),
		watcherRepo: newMemWatcherRepo(),
		productRepo: newMemProductRepo(),
		scheduler:   newRecordingScheduler(),
		publisher:   newRecordingPublisher(),
	}

	log := logger.Nop()
	f.lifecycle = NewLifecycleManager(f.auctionRepo, f.bidRepo, f.productRepo, nil, f.publisher, f.clock, cfg, log)
	f.engine = NewBiddingEngine(f.auctionRepo, f.bidRepo, f.autoBidRepo, f.watcherRepo, f.lifecycle, f.publisher, f.clock,
		EngineConfig{DefaultPageSize: 20, MaxPageSize: 100}, log)
	f.lifecycle.SetScheduler(f.scheduler)
	f.engine.SetScheduler(f.scheduler)
	return f
}

// seedLiveAuction inserts a live auction ending one hour from the fixture
// clock, price 100, increment 10, no auto-extend.
func (f *fixture) seedLiveAuction(id string) *domain.Auction {
	now := f.clock.Now()
	auction := &domain.Auction{
		ID:            id,
		Title:         "Vintage mechanical watch",
		Description:   "A well kept vintage piece with original parts.",
		ProductID:     "prod_" + id,
		VendorID:      "vendor_1",
		StartingPrice: 100,
		BidIncrement:  10,
		StartAt:       now.Add(-time.Hour),
		EndAt:         now.Add(time.Hour),
		Status:        domain.AuctionLive,
		CurrentPrice:  100,
		Images:        []string{"img_1"},
		CreatedAt:     now.Add(-2 * time.Hour),
		UpdatedAt:     now.Add(-time.Hour),
	}
	_ = f.auctionRepo.CreateAuction(context.Background(), auction)
	return auction
}

// seedAutoBid inserts an active proxy setting directly.
func (f *fixture) seedAutoBid(auctionID, userID string, maxAmount float64, createdAt time.Time) {
	_ = f.autoBidRepo.CreateSetting(context.Background(), &domain.AutoBidSetting{
		ID:        "autobid_" + userID,
		UserID:    userID,
		AuctionID: auctionID,
		MaxAmount: maxAmount,
		IsActive:  true,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	})
}

func (f *fixture) mustGetAuction(id string) *domain.Auction {
	auction, err := f.auctionRepo.GetAuction(context.Background(), id)
	if err != nil {
		panic(err)
	}
	return auction
}

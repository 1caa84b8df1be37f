package domain

import (
	"context"
	"time"
)

// Repository interfaces
type AuctionRepository interface {
	CreateAuction(ctx context.Context, auction *Auction) error
	GetAuction(ctx context.Context, auctionID string) (*Auction, error)
	UpdateAuction(ctx context.Context, auction *Auction) error
	GetAuctionsByStatus(ctx context.Context, status AuctionStatus) ([]*Auction, error)
}

type BidRepository interface {
	CreateBid(ctx context.Context, bid *Bid) error
	UpdateBid(ctx context.Context, bid *Bid) error
	// GetWinningBid returns (nil, nil) when the auction has no winning bid.
	GetWinningBid(ctx context.Context, auctionID string) (*Bid, error)
	GetBidsByAuction(ctx context.Context, auctionID string, limit, offset int) ([]*Bid, error)
	GetBidsByUser(ctx context.Context, userID string, limit, offset int) ([]*Bid, error)
}

type AutoBidRepository interface {
	CreateSetting(ctx context.Context, setting *AutoBidSetting) error
	DeactivateSettings(ctx context.Context, auctionID, userID string) error
	GetActiveSettings(ctx context.Context, auctionID string) ([]*AutoBidSetting, error)
}

type WatcherRepository interface {
	CreateWatcher(ctx context.Context, watcher *Watcher) error
	// GetWatcher returns (nil, nil) when the pair has no watcher row.
	GetWatcher(ctx context.Context, auctionID, userID string) (*Watcher, error)
	DeleteWatchers(ctx context.Context, auctionID, userID string) (int, error)
	GetWatchedAuctionIDs(ctx context.Context, userID string) ([]string, error)
}

// ProductRepository is the engine's window into the catalog, which is owned
// by another subsystem. Only vendor ownership is needed here.
type ProductRepository interface {
	GetProductVendor(ctx context.Context, productID string) (string, error)
}

type SchedulerRepository interface {
	CreateJob(ctx context.Context, job *ScheduledJob) error
	GetPendingJobs(ctx context.Context, before time.Time) ([]*ScheduledJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus) error
	CancelJobsForAuction(ctx context.Context, auctionID string) error
}

// Cache interfaces
type AuctionStateCache interface {
	SetAuctionStatus(ctx context.Context, auctionID string, status AuctionStatus) error
	GetAuctionStatus(ctx context.Context, auctionID string) (AuctionStatus, error)
}

// Event interfaces
type EventPublisher interface {
	PublishBidEvent(ctx context.Context, event *BidEvent) error
}

type EventSubscriber interface {
	SubscribeToBidEvents(ctx context.Context, handler EventHandler) error
}

type EventHandler func(event *BidEvent) error

// Clock abstracts wall-clock time so near-expiry and extension scenarios
// are deterministic in tests.
type Clock interface {
	Now() time.Time
}

// Scheduler interface
type AuctionScheduler interface {
	ScheduleAuctionStart(ctx context.Context, auctionID string, startTime time.Time) error
	ScheduleAuctionEnd(ctx context.Context, auctionID string, endTime time.Time) error
	RescheduleAuctionEnd(ctx context.Context, auctionID string, newEndTime time.Time) error
	CancelSchedule(ctx context.Context, auctionID string) error
	Start(ctx context.Context) error
	Stop() error
}

// Leader election interface
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}

// WebSocket interfaces
type WebSocketConnection interface {
	Send(message interface{}) error
	Close() error
	UserID() string
	AuctionID() string
}

type ConnectionManager interface {
	RegisterConnection(userID, auctionID string, conn WebSocketConnection) error
	UnregisterConnection(userID, auctionID string) error
	GetConnectionsForAuction(auctionID string) []WebSocketConnection
	BroadcastToAuction(auctionID string, message interface{}) error
	NotifyUser(userID string, message interface{}) error
	CloseAndUnregisterConnections(auctionID string) error
}

type AuctionBroadcaster interface {
	BroadcastToAuction(ctx context.Context, auctionID string, message interface{}) error
}

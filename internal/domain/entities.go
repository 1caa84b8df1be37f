package domain

import (
	"time"
)

type AuctionStatus int

const (
	AuctionUpcoming AuctionStatus = iota
	AuctionLive
	AuctionEnded
	AuctionCancelled
)

func (s AuctionStatus) String() string {
	switch s {
	case AuctionUpcoming:
		return "upcoming"
	case AuctionLive:
		return "live"
	case AuctionEnded:
		return "ended"
	case AuctionCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Auction is the single source of truth for an auction's pricing state.
// CurrentPrice, BidCount, WinnerID and the extension counters are mutated
// only by accepted bids and lifecycle transitions, always under the
// engine's per-auction lock.
type Auction struct {
	ID          string
	Title       string
	Description string
	ProductID   string
	VendorID    string

	StartingPrice float64
	ReservePrice  float64 // 0 means no reserve
	BuyNowPrice   float64 // 0 means no buy-now option
	BidIncrement  float64

	StartAt time.Time
	EndAt   time.Time
	Status  AuctionStatus

	CurrentPrice float64
	BidCount     int
	WinningBidID string
	WinnerID     string

	AutoExtend        bool
	ExtensionTime     int // minutes
	MaxExtensions     int
	CurrentExtensions int

	Images       []string
	ViewCount    int
	WatcherCount int

	CompletedAt  time.Time
	PaymentDueAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Bid amounts are immutable after creation; only IsWinning flips when a
// later bid supersedes this one.
type Bid struct {
	ID        string
	AuctionID string
	UserID    string
	Amount    float64
	IsWinning bool
	IsAutoBid bool
	MaxAmount float64 // ceiling for proxy bidding, 0 for manual bids
	CreatedAt time.Time
}

// AutoBidSetting is a standing proxy-bid instruction. At most one active
// setting exists per (UserID, AuctionID); superseded settings are
// deactivated, never deleted.
type AutoBidSetting struct {
	ID        string
	UserID    string
	AuctionID string
	MaxAmount float64
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Watcher struct {
	ID        string
	AuctionID string
	UserID    string
	CreatedAt time.Time
}

type BidEvent struct {
	Type      BidEventType `json:"type"`
	AuctionID string       `json:"auction_id"`
	UserID    string       `json:"user_id,omitempty"`
	Amount    float64      `json:"amount,omitempty"`
	EndAt     time.Time    `json:"end_at,omitempty"`
	Reason    string       `json:"reason,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

type BidEventType string

const (
	BidAccepted      BidEventType = "bid_accepted"
	BidRejectedEvent BidEventType = "bid_rejected"
	AuctionStarted   BidEventType = "auction_started"
	AuctionHasEnded  BidEventType = "auction_ended"
	AuctionExtended  BidEventType = "auction_extended"
	AuctionVoided    BidEventType = "auction_cancelled"
)

type ScheduledJob struct {
	ID        string
	AuctionID string
	JobType   JobType
	RunAt     time.Time
	Status    JobStatus
	CreatedAt time.Time
}

type JobType string

const (
	JobStartAuction JobType = "start_auction"
	JobEndAuction   JobType = "end_auction"
)

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobExecuted  JobStatus = "executed"
	JobCancelled JobStatus = "cancelled"
)

package services

import (
	"time"

	"bidding-engine/internal/domain"
)

// AntiSnipeExtender pushes an auction's closing time out when a bid lands
// inside the extension window, so a last-second bid cannot deny other
// bidders a chance to respond. Extension count is bounded by MaxExtensions.
type AntiSnipeExtender struct{}

func NewAntiSnipeExtender() *AntiSnipeExtender {
	return &AntiSnipeExtender{}
}

// Apply mutates auction.EndAt and CurrentExtensions when an extension is
// due and reports whether it extended. It runs at most once per accepted
// bid: the caller invokes it exactly once after updating the price.
func (e *AntiSnipeExtender) Apply(auction *domain.Auction, now time.Time) bool {
	if !auction.AutoExtend {
		return false
	}
	if auction.CurrentExtensions >= auction.MaxExtensions {
		return false
	}

	window := time.Duration(auction.ExtensionTime) * time.Minute
	timeLeft := auction.EndAt.Sub(now)
	if timeLeft >= window {
		return false
	}

	auction.EndAt = auction.EndAt.Add(window)
	auction.CurrentExtensions++
	return true
}

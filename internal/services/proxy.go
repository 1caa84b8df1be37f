package services

import (
	"sort"

	"bidding-engine/internal/domain"
)

// ProxyBidResolver picks the automatic counter-bid that answers a freshly
// accepted bid. Only the single highest-ceiling competitor counters per
// round; the engine's cascade loop re-invokes the resolver until no active
// setting can top the current price.
type ProxyBidResolver struct{}

func NewProxyBidResolver() *ProxyBidResolver {
	return &ProxyBidResolver{}
}

// CounterBid describes the proxy bid to submit on behalf of another user.
type CounterBid struct {
	UserID    string
	Amount    float64
	MaxAmount float64
}

// NextCounter returns the counter-bid answering lastBid, if any. Candidates
// are active settings from other users whose ceiling exceeds the last bid
// amount. Ordering is ceiling descending; equal ceilings resolve to the
// earliest CreatedAt, then lowest ID, so resolution is fully deterministic.
func (r *ProxyBidResolver) NextCounter(settings []*domain.AutoBidSetting, lastBid *domain.Bid, increment float64) (CounterBid, bool) {
	candidates := make([]*domain.AutoBidSetting, 0, len(settings))
	for _, s := range settings {
		if !s.IsActive {
			continue
		}
		if s.UserID == lastBid.UserID {
			continue
		}
		if s.MaxAmount <= lastBid.Amount {
			continue
		}
		candidates = append(candidates, s)
	}

	if len(candidates) == 0 {
		return CounterBid{}, false
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].MaxAmount != candidates[j].MaxAmount {
			return candidates[i].MaxAmount > candidates[j].MaxAmount
		}
		if !candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
		}
		return candidates[i].ID < candidates[j].ID
	})

	top := candidates[0]
	next := lastBid.Amount + increment
	if next > top.MaxAmount {
		next = top.MaxAmount
	}

	if next <= lastBid.Amount {
		return CounterBid{}, false
	}

	return CounterBid{
		UserID:    top.UserID,
		Amount:    next,
		MaxAmount: top.MaxAmount,
	}, true
}

package services

import (
	"context"
	"fmt"

	"bidding-engine/internal/domain"
	"bidding-engine/pkg/logger"
)

// EventListener bridges published bid events to connected WebSocket
// clients, so everyone watching an auction sees price changes, extensions
// and the final result as they happen.
type EventListener struct {
	broadcaster domain.AuctionBroadcaster
	connManager domain.ConnectionManager
	log         logger.Logger
}

func NewEventListener(connManager domain.ConnectionManager,
	broadcaster domain.AuctionBroadcaster, log logger.Logger) *EventListener {
	return &EventListener{
		broadcaster: broadcaster,
		connManager: connManager,
		log:         log,
	}
}

func (el *EventListener) Start(ctx context.Context, subscriber domain.EventSubscriber) error {
	el.log.Info("Starting event listener")
	return subscriber.SubscribeToBidEvents(ctx, el.handleBidEvent)
}

func (el *EventListener) handleBidEvent(event *domain.BidEvent) error {
	el.log.Debug("Handling bid event", "type", event.Type, "auction_id", event.AuctionID)

	switch event.Type {
	case domain.BidAccepted:
		return el.broadcaster.BroadcastToAuction(context.Background(), event.AuctionID, map[string]interface{}{
			"type":        "bid_update",
			"current_bid": event.Amount,
			"winner_id":   event.UserID,
			"end_at":      event.EndAt,
			"timestamp":   event.Timestamp,
		})
	case domain.BidRejectedEvent:
		return el.connManager.NotifyUser(event.UserID, map[string]interface{}{
			"type":      "bid_rejected",
			"reason":    event.Reason,
			"amount":    event.Amount,
			"timestamp": event.Timestamp,
		})
	case domain.AuctionExtended:
		return el.broadcaster.BroadcastToAuction(context.Background(), event.AuctionID, map[string]interface{}{
			"type":      "auction_extended",
			"end_at":    event.EndAt,
			"timestamp": event.Timestamp,
		})
	case domain.AuctionStarted:
		return el.broadcaster.BroadcastToAuction(context.Background(), event.AuctionID, map[string]interface{}{
			"type":      "auction_started",
			"end_at":    event.EndAt,
			"timestamp": event.Timestamp,
		})
	case domain.AuctionHasEnded, domain.AuctionVoided:
		if err := el.broadcaster.BroadcastToAuction(context.Background(), event.AuctionID, map[string]interface{}{
			"type":        string(event.Type),
			"winner_id":   event.UserID,
			"final_price": event.Amount,
			"timestamp":   event.Timestamp,
		}); err != nil {
			return err
		}
		return el.connManager.CloseAndUnregisterConnections(event.AuctionID)
	}

	return fmt.Errorf("unknown event type %q", event.Type)
}

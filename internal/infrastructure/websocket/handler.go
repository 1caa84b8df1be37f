package websocket

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"bidding-engine/internal/domain"
	"bidding-engine/internal/services"
	"bidding-engine/pkg/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// WebSocketHandler upgrades live-auction connections and routes inbound
// messages (place_bid, ping) into the engine.
type WebSocketHandler struct {
	engine      *services.BiddingEngine
	connManager domain.ConnectionManager
	log         logger.Logger
}

func NewWebSocketHandler(engine *services.BiddingEngine,
	connManager domain.ConnectionManager, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		engine:      engine,
		connManager: connManager,
		log:         log,
	}
}

func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request, auctionID string) {
	auction, err := h.engine.GetAuction(r.Context(), auctionID)
	if err != nil {
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			http.Error(w, "auction not found", http.StatusNotFound)
			return
		}
		h.log.Error("Failed to load auction", "auction_id", auctionID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if auction.Status == domain.AuctionEnded || auction.Status == domain.AuctionCancelled {
		http.Error(w, "auction is closed", http.StatusForbidden)
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	wsConn := NewWebSocketConnection(conn, userID, auctionID)

	if err := h.connManager.RegisterConnection(userID, auctionID, wsConn); err != nil {
		h.log.Error("Failed to register connection", "error", err)
		conn.Close()
		return
	}

	go h.handleMessages(wsConn, userID, auctionID)
}

type inboundMessage struct {
	Type      string  `json:"type"`
	Amount    float64 `json:"amount"`
	IsAutoBid bool    `json:"is_auto_bid"`
	MaxAmount float64 `json:"max_amount"`
}

func (h *WebSocketHandler) handleMessages(conn *WebSocketConnection, userID, auctionID string) {
	defer func() {
		h.connManager.UnregisterConnection(userID, auctionID)
		conn.Close()
	}()

	for {
		var msg inboundMessage
		if err := conn.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Error("Failed to read message", "user_id", userID, "error", err)
			}
			return
		}

		switch msg.Type {
		case "place_bid":
			h.handleBidMessage(conn, userID, auctionID, msg)
		case "ping":
			conn.Send(map[string]string{"type": "pong"})
		}
	}
}

func (h *WebSocketHandler) handleBidMessage(conn *WebSocketConnection, userID, auctionID string, msg inboundMessage) {
	_, err := h.engine.PlaceBid(context.Background(), auctionID, userID, services.PlaceBidRequest{
		Amount:    msg.Amount,
		IsAutoBid: msg.IsAutoBid,
		MaxAmount: msg.MaxAmount,
	})
	if err == nil {
		return
	}

	var rejected *domain.BidRejectedError
	if errors.As(err, &rejected) {
		conn.Send(map[string]interface{}{
			"type":        "bid_rejected",
			"reason":      string(rejected.Reason),
			"minimum_bid": rejected.MinimumBid,
		})
		return
	}

	var invalid *domain.ValidationError
	if errors.As(err, &invalid) {
		conn.Send(map[string]string{"type": "error", "message": invalid.Error()})
		return
	}

	h.log.Error("Failed to place bid", "auction_id", auctionID, "user_id", userID, "error", err)
	conn.Send(map[string]string{"type": "error", "message": "failed to place bid"})
}

type WebSocketConnection struct {
	conn      *websocket.Conn
	userID    string
	auctionID string
	writeMu   sync.Mutex
}

func NewWebSocketConnection(conn *websocket.Conn, userID, auctionID string) *WebSocketConnection {
	return &WebSocketConnection{
		conn:      conn,
		userID:    userID,
		auctionID: auctionID,
	}
}

func (wsc *WebSocketConnection) Send(message interface{}) error {
	wsc.writeMu.Lock()
	defer wsc.writeMu.Unlock()
	return wsc.conn.WriteJSON(message)
}

func (wsc *WebSocketConnection) Close() error {
	return wsc.conn.Close()
}

func (wsc *WebSocketConnection) UserID() string {
	return wsc.userID
}

func (wsc *WebSocketConnection) AuctionID() string {
	return wsc.auctionID
}

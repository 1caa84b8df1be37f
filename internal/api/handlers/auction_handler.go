package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"bidding-engine/internal/domain"
	"bidding-engine/internal/services"
	"bidding-engine/pkg/logger"
)

// AuctionHandler exposes the bidding engine over HTTP. Authentication is
// handled upstream; the gateway forwards the caller identity in the
// X-User-ID header.
type AuctionHandler struct {
	engine *services.BiddingEngine
	log    logger.Logger
}

func NewAuctionHandler(engine *services.BiddingEngine, log logger.Logger) *AuctionHandler {
	return &AuctionHandler{
		engine: engine,
		log:    log,
	}
}

func (h *AuctionHandler) Register(g *echo.Group) {
	g.POST("/auctions", h.CreateAuction)
	g.GET("/auctions/:id", h.GetAuction)
	g.POST("/auctions/:id/bids", h.PlaceBid)
	g.GET("/auctions/:id/bids", h.GetAuctionBids)
	g.POST("/auctions/:id/watch", h.WatchAuction)
	g.DELETE("/auctions/:id/watch", h.UnwatchAuction)
	g.POST("/auctions/:id/start", h.StartAuction)
	g.POST("/auctions/:id/end", h.EndAuction)
	g.POST("/auctions/:id/cancel", h.CancelAuction)
	g.GET("/users/:id/bids", h.GetUserBids)
	g.GET("/users/:id/watched", h.GetWatchedAuctions)
}

type CreateAuctionRequest struct {
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	ProductID     string    `json:"product_id"`
	StartingPrice float64   `json:"starting_price"`
	ReservePrice  float64   `json:"reserve_price"`
	BuyNowPrice   float64   `json:"buy_now_price"`
	BidIncrement  float64   `json:"bid_increment"`
	StartAt       time.Time `json:"start_at"`
	EndAt         time.Time `json:"end_at"`
	AutoExtend    bool      `json:"auto_extend"`
	ExtensionTime int       `json:"extension_time"`
	MaxExtensions int       `json:"max_extensions"`
	Images        []string  `json:"images"`
}

type AuctionResponse struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	ProductID         string     `json:"product_id"`
	VendorID          string     `json:"vendor_id"`
	StartingPrice     float64    `json:"starting_price"`
	ReservePrice      float64    `json:"reserve_price,omitempty"`
	BuyNowPrice       float64    `json:"buy_now_price,omitempty"`
	BidIncrement      float64    `json:"bid_increment"`
	StartAt           time.Time  `json:"start_at"`
	EndAt             time.Time  `json:"end_at"`
	Status            string     `json:"status"`
	CurrentPrice      float64    `json:"current_price"`
	BidCount          int        `json:"bid_count"`
	WinningBidID      string     `json:"winning_bid_id,omitempty"`
	WinnerID          string     `json:"winner_id,omitempty"`
	AutoExtend        bool       `json:"auto_extend"`
	ExtensionTime     int        `json:"extension_time"`
	MaxExtensions     int        `json:"max_extensions"`
	CurrentExtensions int        `json:"current_extensions"`
	WatcherCount      int        `json:"watcher_count"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	PaymentDueAt      *time.Time `json:"payment_due_at,omitempty"`
}

type PlaceBidRequest struct {
	Amount    float64 `json:"amount"`
	IsAutoBid bool    `json:"is_auto_bid"`
	MaxAmount float64 `json:"max_amount"`
}

type BidResponse struct {
	ID        string    `json:"id"`
	AuctionID string    `json:"auction_id"`
	UserID    string    `json:"user_id"`
	Amount    float64   `json:"amount"`
	IsWinning bool      `json:"is_winning"`
	IsAutoBid bool      `json:"is_auto_bid"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *AuctionHandler) CreateAuction(c echo.Context) error {
	vendorID := callerID(c)
	if vendorID == "" {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "caller identity required"})
	}

	var req CreateAuctionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	auction, err := h.engine.CreateAuction(c.Request().Context(), vendorID, services.CreateAuctionSpec{
		Title:         req.Title,
		Description:   req.Description,
		ProductID:     req.ProductID,
		StartingPrice: req.StartingPrice,
		ReservePrice:  req.ReservePrice,
		BuyNowPrice:   req.BuyNowPrice,
		BidIncrement:  req.BidIncrement,
		StartAt:       req.StartAt,
		EndAt:         req.EndAt,
		AutoExtend:    req.AutoExtend,
		ExtensionTime: req.ExtensionTime,
		MaxExtensions: req.MaxExtensions,
		Images:        req.Images,
	})
	if err != nil {
		return h.renderError(c, err)
	}

	return c.JSON(http.StatusCreated, toAuctionResponse(auction))
}

func (h *AuctionHandler) GetAuction(c echo.Context) error {
	auction, err := h.engine.GetAuction(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.renderError(c, err)
	}
	return c.JSON(http.StatusOK, toAuctionResponse(auction))
}

func (h *AuctionHandler) PlaceBid(c echo.Context) error {
	userID := callerID(c)
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "caller identity required"})
	}

	var req PlaceBidRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	bid, err := h.engine.PlaceBid(c.Request().Context(), c.Param("id"), userID, services.PlaceBidRequest{
		Amount:    req.Amount,
		IsAutoBid: req.IsAutoBid,
		MaxAmount: req.MaxAmount,
	})
	if err != nil {
		return h.renderError(c, err)
	}

	return c.JSON(http.StatusCreated, toBidResponse(bid))
}

func (h *AuctionHandler) GetAuctionBids(c echo.Context) error {
	page, limit := paginationParams(c)
	bids, err := h.engine.GetAuctionBids(c.Request().Context(), c.Param("id"), page, limit)
	if err != nil {
		return h.renderError(c, err)
	}
	return c.JSON(http.StatusOK, toBidResponses(bids))
}

func (h *AuctionHandler) WatchAuction(c echo.Context) error {
	userID := callerID(c)
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "caller identity required"})
	}

	if err := h.engine.WatchAuction(c.Request().Context(), c.Param("id"), userID); err != nil {
		return h.renderError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AuctionHandler) UnwatchAuction(c echo.Context) error {
	userID := callerID(c)
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "caller identity required"})
	}

	if err := h.engine.UnwatchAuction(c.Request().Context(), c.Param("id"), userID); err != nil {
		return h.renderError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AuctionHandler) StartAuction(c echo.Context) error {
	auction, err := h.engine.StartAuction(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.renderError(c, err)
	}
	return c.JSON(http.StatusOK, toAuctionResponse(auction))
}

func (h *AuctionHandler) EndAuction(c echo.Context) error {
	auction, err := h.engine.EndAuction(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.renderError(c, err)
	}
	return c.JSON(http.StatusOK, toAuctionResponse(auction))
}

func (h *AuctionHandler) CancelAuction(c echo.Context) error {
	auction, err := h.engine.CancelAuction(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.renderError(c, err)
	}
	return c.JSON(http.StatusOK, toAuctionResponse(auction))
}

func (h *AuctionHandler) GetUserBids(c echo.Context) error {
	page, limit := paginationParams(c)
	bids, err := h.engine.GetUserBids(c.Request().Context(), c.Param("id"), page, limit)
	if err != nil {
		return h.renderError(c, err)
	}
	return c.JSON(http.StatusOK, toBidResponses(bids))
}

func (h *AuctionHandler) GetWatchedAuctions(c echo.Context) error {
	auctions, err := h.engine.GetWatchedAuctions(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.renderError(c, err)
	}

	responses := make([]*AuctionResponse, 0, len(auctions))
	for _, auction := range auctions {
		responses = append(responses, toAuctionResponse(auction))
	}
	return c.JSON(http.StatusOK, responses)
}

func (h *AuctionHandler) renderError(c echo.Context, err error) error {
	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": validation.Error(),
			"field": validation.Field,
		})
	}

	var notFound *domain.NotFoundError
	if errors.As(err, &notFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": notFound.Error()})
	}

	var rejected *domain.BidRejectedError
	if errors.As(err, &rejected) {
		body := map[string]interface{}{
			"error":  rejected.Error(),
			"reason": string(rejected.Reason),
		}
		if rejected.Reason == domain.RejectBelowMinimum {
			body["minimum_bid"] = rejected.MinimumBid
		}
		return c.JSON(http.StatusUnprocessableEntity, body)
	}

	var invalid *domain.InvalidTransitionError
	if errors.As(err, &invalid) {
		return c.JSON(http.StatusConflict, map[string]string{"error": invalid.Error()})
	}

	h.log.Error("Request failed", "path", c.Path(), "error", err)
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func callerID(c echo.Context) string {
	return c.Request().Header.Get("X-User-ID")
}

func paginationParams(c echo.Context) (int, int) {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	return page, limit
}

func toAuctionResponse(a *domain.Auction) *AuctionResponse {
	resp := &AuctionResponse{
		ID:                a.ID,
		Title:             a.Title,
		Description:       a.Description,
		ProductID:         a.ProductID,
		VendorID:          a.VendorID,
		StartingPrice:     a.StartingPrice,
		ReservePrice:      a.ReservePrice,
		BuyNowPrice:       a.BuyNowPrice,
		BidIncrement:      a.BidIncrement,
		StartAt:           a.StartAt,
		EndAt:             a.EndAt,
		Status:            a.Status.String(),
		CurrentPrice:      a.CurrentPrice,
		BidCount:          a.BidCount,
		WinningBidID:      a.WinningBidID,
		WinnerID:          a.WinnerID,
		AutoExtend:        a.AutoExtend,
		ExtensionTime:     a.ExtensionTime,
		MaxExtensions:     a.MaxExtensions,
		CurrentExtensions: a.CurrentExtensions,
		WatcherCount:      a.WatcherCount,
	}
	if !a.CompletedAt.IsZero() {
		t := a.CompletedAt
		resp.CompletedAt = &t
	}
	if !a.PaymentDueAt.IsZero() {
		t := a.PaymentDueAt
		resp.PaymentDueAt = &t
	}
	return resp
}

func toBidResponse(b *domain.Bid) *BidResponse {
	return &BidResponse{
		ID:        b.ID,
		AuctionID: b.AuctionID,
		UserID:    b.UserID,
		Amount:    b.Amount,
		IsWinning: b.IsWinning,
		IsAutoBid: b.IsAutoBid,
		CreatedAt: b.CreatedAt,
	}
}

func toBidResponses(bids []*domain.Bid) []*BidResponse {
	responses := make([]*BidResponse, 0, len(bids))
	for _, b := range bids {
		responses = append(responses, toBidResponse(b))
	}
	return responses
}

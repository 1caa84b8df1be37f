package mysql

import (
	"context"
	"database/sql"
	"errors"

	"bidding-engine/internal/domain"
)

type MySQLBidRepository struct {
	db *sql.DB
}

func NewMySQLBidRepository(db *sql.DB) *MySQLBidRepository {
	return &MySQLBidRepository{db: db}
}

func (r *MySQLBidRepository) CreateBid(ctx context.Context, bid *domain.Bid) error {
	query := `
        INSERT INTO bids (id, auction_id, user_id, amount, is_winning, is_auto_bid, max_amount, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		bid.ID, bid.AuctionID, bid.UserID, bid.Amount,
		bid.IsWinning, bid.IsAutoBid, bid.MaxAmount, bid.CreatedAt)
	return err
}

func (r *MySQLBidRepository) UpdateBid(ctx context.Context, bid *domain.Bid) error {
	query := `UPDATE bids SET is_winning = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, bid.IsWinning, bid.ID)
	return err
}

func (r *MySQLBidRepository) GetWinningBid(ctx context.Context, auctionID string) (*domain.Bid, error) {
	query := `
        SELECT id, auction_id, user_id, amount, is_winning, is_auto_bid, max_amount, created_at
        FROM bids WHERE auction_id = ? AND is_winning = TRUE
        LIMIT 1
    `

	var bid domain.Bid
	err := r.db.QueryRowContext(ctx, query, auctionID).Scan(
		&bid.ID, &bid.AuctionID, &bid.UserID, &bid.Amount,
		&bid.IsWinning, &bid.IsAutoBid, &bid.MaxAmount, &bid.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &bid, nil
}

func (r *MySQLBidRepository) GetBidsByAuction(ctx context.Context, auctionID string, limit, offset int) ([]*domain.Bid, error) {
	query := `
        SELECT id, auction_id, user_id, amount, is_winning, is_auto_bid, max_amount, created_at
        FROM bids WHERE auction_id = ?
        ORDER BY created_at DESC, id DESC
        LIMIT ? OFFSET ?
    `
	return r.queryBids(ctx, query, auctionID, limit, offset)
}

func (r *MySQLBidRepository) GetBidsByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Bid, error) {
	query := `
        SELECT id, auction_id, user_id, amount, is_winning, is_auto_bid, max_amount, created_at
        FROM bids WHERE user_id = ?
        ORDER BY created_at DESC, id DESC
        LIMIT ? OFFSET ?
    `
	return r.queryBids(ctx, query, userID, limit, offset)
}

func (r *MySQLBidRepository) queryBids(ctx context.Context, query string, args ...interface{}) ([]*domain.Bid, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []*domain.Bid
	for rows.Next() {
		var bid domain.Bid
		err := rows.Scan(&bid.ID, &bid.AuctionID, &bid.UserID, &bid.Amount,
			&bid.IsWinning, &bid.IsAutoBid, &bid.MaxAmount, &bid.CreatedAt)
		if err != nil {
			return nil, err
		}
		bids = append(bids, &bid)
	}

	return bids, rows.Err()
}

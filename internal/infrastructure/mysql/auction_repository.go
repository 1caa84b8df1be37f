package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	_ "github.com/go-sql-driver/mysql"

	"bidding-engine/internal/domain"
)

type MySQLAuctionRepository struct {
	db *sql.DB
}

func NewMySQLAuctionRepository(db *sql.DB) *MySQLAuctionRepository {
	return &MySQLAuctionRepository{db: db}
}

const auctionColumns = `
    id, title, description, product_id, vendor_id,
    starting_price, reserve_price, buy_now_price, bid_increment,
    start_at, end_at, status,
    current_price, bid_count, winning_bid_id, winner_id,
    auto_extend, extension_time, max_extensions, current_extensions,
    images, view_count, watcher_count,
    completed_at, payment_due_at, created_at, updated_at
`

func (r *MySQLAuctionRepository) CreateAuction(ctx context.Context, auction *domain.Auction) error {
	images, err := json.Marshal(auction.Images)
	if err != nil {
		return err
	}

	query := `
        INSERT INTO auctions (` + auctionColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err = r.db.ExecContext(ctx, query,
		auction.ID, auction.Title, auction.Description, auction.ProductID, auction.VendorID,
		auction.StartingPrice, auction.ReservePrice, auction.BuyNowPrice, auction.BidIncrement,
		auction.StartAt, auction.EndAt, int(auction.Status),
		auction.CurrentPrice, auction.BidCount, auction.WinningBidID, auction.WinnerID,
		auction.AutoExtend, auction.ExtensionTime, auction.MaxExtensions, auction.CurrentExtensions,
		string(images), auction.ViewCount, auction.WatcherCount,
		nullableTime(auction.CompletedAt), nullableTime(auction.PaymentDueAt),
		auction.CreatedAt, auction.UpdatedAt)
	return err
}

func (r *MySQLAuctionRepository) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = ?`

	auction, err := scanAuction(r.db.QueryRowContext(ctx, query, auctionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{Entity: "auction", ID: auctionID}
		}
		return nil, err
	}
	return auction, nil
}

func (r *MySQLAuctionRepository) UpdateAuction(ctx context.Context, auction *domain.Auction) error {
	images, err := json.Marshal(auction.Images)
	if err != nil {
		return err
	}

	query := `
        UPDATE auctions SET
            title = ?, description = ?, status = ?,
            end_at = ?, current_price = ?, bid_count = ?,
            winning_bid_id = ?, winner_id = ?,
            current_extensions = ?, images = ?,
            view_count = ?, watcher_count = ?,
            completed_at = ?, payment_due_at = ?, updated_at = ?
        WHERE id = ?
    `
	_, err = r.db.ExecContext(ctx, query,
		auction.Title, auction.Description, int(auction.Status),
		auction.EndAt, auction.CurrentPrice, auction.BidCount,
		auction.WinningBidID, auction.WinnerID,
		auction.CurrentExtensions, string(images),
		auction.ViewCount, auction.WatcherCount,
		nullableTime(auction.CompletedAt), nullableTime(auction.PaymentDueAt),
		auction.UpdatedAt, auction.ID)
	return err
}

func (r *MySQLAuctionRepository) GetAuctionsByStatus(ctx context.Context, status domain.AuctionStatus) ([]*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE status = ? ORDER BY end_at ASC`

	rows, err := r.db.QueryContext(ctx, query, int(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var auctions []*domain.Auction
	for rows.Next() {
		auction, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		auctions = append(auctions, auction)
	}

	return auctions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAuction(row rowScanner) (*domain.Auction, error) {
	var auction domain.Auction
	var status int
	var images string
	var completedAt, paymentDueAt sql.NullTime

	err := row.Scan(
		&auction.ID, &auction.Title, &auction.Description, &auction.ProductID, &auction.VendorID,
		&auction.StartingPrice, &auction.ReservePrice, &auction.BuyNowPrice, &auction.BidIncrement,
		&auction.StartAt, &auction.EndAt, &status,
		&auction.CurrentPrice, &auction.BidCount, &auction.WinningBidID, &auction.WinnerID,
		&auction.AutoExtend, &auction.ExtensionTime, &auction.MaxExtensions, &auction.CurrentExtensions,
		&images, &auction.ViewCount, &auction.WatcherCount,
		&completedAt, &paymentDueAt, &auction.CreatedAt, &auction.UpdatedAt)
	if err != nil {
		return nil, err
	}

	auction.Status = domain.AuctionStatus(status)
	if images != "" {
		if err := json.Unmarshal([]byte(images), &auction.Images); err != nil {
			return nil, err
		}
	}
	if completedAt.Valid {
		auction.CompletedAt = completedAt.Time
	}
	if paymentDueAt.Valid {
		auction.PaymentDueAt = paymentDueAt.Time
	}

	return &auction, nil
}

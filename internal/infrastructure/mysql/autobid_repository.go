package mysql

import (
	"context"
	"database/sql"
	"time"

	"bidding-engine/internal/domain"
)

type MySQLAutoBidRepository struct {
	db *sql.DB
}

func NewMySQLAutoBidRepository(db *sql.DB) *MySQLAutoBidRepository {
	return &MySQLAutoBidRepository{db: db}
}

func (r *MySQLAutoBidRepository) CreateSetting(ctx context.Context, setting *domain.AutoBidSetting) error {
	query := `
        INSERT INTO auto_bid_settings (id, user_id, auction_id, max_amount, is_active, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		setting.ID, setting.UserID, setting.AuctionID, setting.MaxAmount,
		setting.IsActive, setting.CreatedAt, setting.UpdatedAt)
	return err
}

func (r *MySQLAutoBidRepository) DeactivateSettings(ctx context.Context, auctionID, userID string) error {
	query := `
        UPDATE auto_bid_settings SET is_active = FALSE, updated_at = ?
        WHERE auction_id = ? AND user_id = ? AND is_active = TRUE
    `
	_, err := r.db.ExecContext(ctx, query, time.Now(), auctionID, userID)
	return err
}

func (r *MySQLAutoBidRepository) GetActiveSettings(ctx context.Context, auctionID string) ([]*domain.AutoBidSetting, error) {
	query := `
        SELECT id, user_id, auction_id, max_amount, is_active, created_at, updated_at
        FROM auto_bid_settings
        WHERE auction_id = ? AND is_active = TRUE
        ORDER BY max_amount DESC, created_at ASC
    `

	rows, err := r.db.QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settings []*domain.AutoBidSetting
	for rows.Next() {
		var setting domain.AutoBidSetting
		err := rows.Scan(&setting.ID, &setting.UserID, &setting.AuctionID,
			&setting.MaxAmount, &setting.IsActive, &setting.CreatedAt, &setting.UpdatedAt)
		if err != nil {
			return nil, err
		}
		settings = append(settings, &setting)
	}

	return settings, rows.Err()
}

package mysql

import (
	"context"
	"database/sql"
	"errors"

	"bidding-engine/internal/domain"
)

type MySQLWatcherRepository struct {
	db *sql.DB
}

func NewMySQLWatcherRepository(db *sql.DB) *MySQLWatcherRepository {
	return &MySQLWatcherRepository{db: db}
}

func (r *MySQLWatcherRepository) CreateWatcher(ctx context.Context, watcher *domain.Watcher) error {
	query := `
        INSERT INTO watchers (id, auction_id, user_id, created_at)
        VALUES (?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		watcher.ID, watcher.AuctionID, watcher.UserID, watcher.CreatedAt)
	return err
}

func (r *MySQLWatcherRepository) GetWatcher(ctx context.Context, auctionID, userID string) (*domain.Watcher, error) {
	query := `
        SELECT id, auction_id, user_id, created_at
        FROM watchers WHERE auction_id = ? AND user_id = ?
        LIMIT 1
    `

	var watcher domain.Watcher
	err := r.db.QueryRowContext(ctx, query, auctionID, userID).Scan(
		&watcher.ID, &watcher.AuctionID, &watcher.UserID, &watcher.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &watcher, nil
}

func (r *MySQLWatcherRepository) DeleteWatchers(ctx context.Context, auctionID, userID string) (int, error) {
	query := `DELETE FROM watchers WHERE auction_id = ? AND user_id = ?`

	result, err := r.db.ExecContext(ctx, query, auctionID, userID)
	if err != nil {
		return 0, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (r *MySQLWatcherRepository) GetWatchedAuctionIDs(ctx context.Context, userID string) ([]string, error) {
	query := `SELECT auction_id FROM watchers WHERE user_id = ? ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

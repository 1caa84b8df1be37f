package mysql

import (
	"context"
	"database/sql"
	"errors"

	"bidding-engine/internal/domain"
)

// MySQLProductRepository reads from the catalog tables owned by another
// subsystem. The engine only needs vendor ownership checks.
type MySQLProductRepository struct {
	db *sql.DB
}

func NewMySQLProductRepository(db *sql.DB) *MySQLProductRepository {
	return &MySQLProductRepository{db: db}
}

func (r *MySQLProductRepository) GetProductVendor(ctx context.Context, productID string) (string, error) {
	query := `SELECT vendor_id FROM products WHERE id = ?`

	var vendorID string
	err := r.db.QueryRowContext(ctx, query, productID).Scan(&vendorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", &domain.NotFoundError{Entity: "product", ID: productID}
		}
		return "", err
	}

	return vendorID, nil
}

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/trogers1052/stock-watchlist/internal/models"
)

// GetSelectedStockIDs returns the stock ids a user has selected
func (db *DB) GetSelectedStockIDs(ctx context.Context, userID int64) ([]int64, error) {
	query := `SELECT stock_id FROM user_stocks WHERE user_id = $1 ORDER BY stock_id ASC`

	rows, err := db.conn.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get selected stock ids: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan stock id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate selected stock ids: %w", err)
	}

	return ids, nil
}

// GetSelectedStocks returns the catalog rows of a user's selections
func (db *DB) GetSelectedStocks(ctx context.Context, userID int64) ([]*models.Stock, error) {
	query := `
		SELECT s.id, s.stock_name, s.stock_code, s.logo_url
		FROM user_stocks us
		JOIN stocks s ON us.stock_id = s.id
		WHERE us.user_id = $1
		ORDER BY s.stock_name ASC, s.id ASC
	`
	return scanStocks(db.conn.QueryContext(ctx, query, userID))
}

// ReplaceUserStocks replaces every selection row of a user with one row per
// stock id, in a single transaction. An empty stockIDs clears the selection.
func (db *DB) ReplaceUserStocks(ctx context.Context, userID int64, stockIDs []int64) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_stocks WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete existing selections: %w", err)
	}

	if len(stockIDs) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO user_stocks (user_id, stock_id, created_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, stock_id) DO NOTHING
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		now := time.Now()
		for _, stockID := range stockIDs {
			if _, err := stmt.ExecContext(ctx, userID, stockID, now); err != nil {
				return fmt.Errorf("failed to insert selection of stock %d: %w", stockID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

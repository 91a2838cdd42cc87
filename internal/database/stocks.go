package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/trogers1052/stock-watchlist/internal/models"
)

const stockColumns = `id, stock_name, stock_code, logo_url`

// SaveStock inserts or updates a catalog stock keyed by stock_code
func (db *DB) SaveStock(ctx context.Context, s *models.Stock) error {
	query := `
		INSERT INTO stocks (stock_name, stock_code, logo_url)
		VALUES ($1, $2, $3)
		ON CONFLICT (stock_code) DO UPDATE SET
			stock_name = EXCLUDED.stock_name,
			logo_url = EXCLUDED.logo_url
		RETURNING id
	`
	err := db.conn.QueryRowContext(ctx, query, s.StockName, s.StockCode, nullString(s.LogoURL)).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("failed to save stock %s: %w", s.StockCode, err)
	}
	return nil
}

// GetAllStocks retrieves the full catalog ordered by name, then id
func (db *DB) GetAllStocks(ctx context.Context) ([]*models.Stock, error) {
	query := `SELECT ` + stockColumns + ` FROM stocks ORDER BY stock_name ASC, id ASC`
	return scanStocks(db.conn.QueryContext(ctx, query))
}

// GetStockByCode retrieves a stock by its ticker
func (db *DB) GetStockByCode(ctx context.Context, code string) (*models.Stock, error) {
	query := `SELECT ` + stockColumns + ` FROM stocks WHERE stock_code = $1`

	s, err := scanStock(db.conn.QueryRowContext(ctx, query, code))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("stock not found: %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stock: %w", err)
	}
	return s, nil
}

// DeleteStockByCode removes a stock from the catalog. Selections of the
// stock are removed by the foreign key cascade.
func (db *DB) DeleteStockByCode(ctx context.Context, code string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM stocks WHERE stock_code = $1`, code)
	if err != nil {
		return fmt.Errorf("failed to delete stock: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("stock not found: %s: %w", code, ErrNotFound)
	}
	return nil
}

func scanStock(row *sql.Row) (*models.Stock, error) {
	var s models.Stock
	var logo sql.NullString
	if err := row.Scan(&s.ID, &s.StockName, &s.StockCode, &logo); err != nil {
		return nil, err
	}
	if logo.Valid {
		s.LogoURL = &logo.String
	}
	return &s, nil
}

func scanStocks(rows *sql.Rows, err error) ([]*models.Stock, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to query stocks: %w", err)
	}
	defer rows.Close()

	stocks := []*models.Stock{}
	for rows.Next() {
		var s models.Stock
		var logo sql.NullString
		if err := rows.Scan(&s.ID, &s.StockName, &s.StockCode, &logo); err != nil {
			return nil, fmt.Errorf("failed to scan stock: %w", err)
		}
		if logo.Valid {
			s.LogoURL = &logo.String
		}
		stocks = append(stocks, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stocks: %w", err)
	}

	return stocks, nil
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/trogers1052/stock-watchlist/internal/models"
)

// UpsertUserByEmail ensures a user row exists for email and returns it. An
// existing row keeps its name and created_at; the no-op update on conflict
// only exists so RETURNING yields the row in both cases.
func (db *DB) UpsertUserByEmail(ctx context.Context, name, email string) (*models.User, error) {
	query := `
		INSERT INTO users (name, email, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING id, name, email, created_at
	`
	var u models.User
	err := db.conn.QueryRowContext(ctx, query, name, email, time.Now()).Scan(
		&u.ID, &u.Name, &u.Email, &u.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user upsert returned no row for %s: %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return &u, nil
}

// GetUserByEmail retrieves a user by email
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT id, name, email, created_at FROM users WHERE email = $1`

	var u models.User
	err := db.conn.QueryRowContext(ctx, query, email).Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found: %s: %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

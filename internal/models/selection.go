package models

import "time"

// Selection event type constants
const (
	EventSelectionsSaved = "SELECTIONS_SAVED"
)

// UserStock associates a user with a stock they track
type UserStock struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	StockID   int64     `json:"stock_id"`
	CreatedAt time.Time `json:"created_at"`
}

// SelectionEvent is published after a user's selections are replaced
type SelectionEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	UserID    int64     `json:"user_id"`
	StockIDs  []int64   `json:"stock_ids"`
	Timestamp time.Time `json:"timestamp"`
}

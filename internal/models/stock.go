package models

import "time"

// Catalog event type constants
const (
	EventStockAdded   = "STOCK_ADDED"
	EventStockUpdated = "STOCK_UPDATED"
	EventStockRemoved = "STOCK_REMOVED"
)

// Stock represents a catalog entry a user can select
type Stock struct {
	ID        int64   `json:"id"`
	StockName string  `json:"stock_name"`
	StockCode string  `json:"stock_code"`
	LogoURL   *string `json:"logo_url"`
}

// StockEvent represents a Kafka event for catalog changes published by the
// stock service
type StockEvent struct {
	EventType string        `json:"event_type"`
	Stock     *CatalogStock `json:"stock,omitempty"`
	Symbol    string        `json:"symbol"`
	Timestamp time.Time     `json:"timestamp"`
}

// CatalogStock is the subset of the stock service's stock payload the
// catalog cares about
type CatalogStock struct {
	Symbol  string `json:"symbol"`
	Name    string `json:"name"`
	LogoURL string `json:"logo_url,omitempty"`
}

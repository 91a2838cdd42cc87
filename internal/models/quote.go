package models

import "time"

// QuotePoint is one timestamped closing price sample
type QuotePoint struct {
	Datetime time.Time `json:"datetime"`
	Close    float64   `json:"close"`
}

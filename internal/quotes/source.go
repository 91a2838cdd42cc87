// Package quotes fetches recent price series for tickers, substituting
// synthetic data whenever the quote provider cannot deliver a usable series.
package quotes

import (
	"context"
	"strings"

	"github.com/trogers1052/stock-watchlist/internal/models"
)

// Series is an ordered (oldest first) price series for one symbol
type Series struct {
	Symbol    string              `json:"symbol"`
	Points    []models.QuotePoint `json:"points"`
	Synthetic bool                `json:"synthetic"`
}

// Source returns a non-empty, chronologically ordered series for a symbol.
// Implementations never fail; Synthetic marks generated data.
type Source interface {
	Fetch(ctx context.Context, symbol string) Series
}

// NormalizeSymbol upper-cases and trims a ticker
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

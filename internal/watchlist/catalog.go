package watchlist

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/sourcegraph/conc"
	"github.com/trogers1052/stock-watchlist/internal/logging"
	"github.com/trogers1052/stock-watchlist/internal/models"
)

// CatalogStore reads the catalog and a user's selections
type CatalogStore interface {
	GetAllStocks(ctx context.Context) ([]*models.Stock, error)
	GetSelectedStockIDs(ctx context.Context, userID int64) ([]int64, error)
	GetSelectedStocks(ctx context.Context, userID int64) ([]*models.Stock, error)
}

// Catalog is the result of loading the select view. A failed half is
// reported in its error field and left empty; the other half is still usable.
type Catalog struct {
	Stocks       []*models.Stock
	Selected     []int64
	StocksErr    error
	SelectionErr error
}

// Loader reads the catalog and a user's current selection
type Loader struct {
	store  CatalogStore
	logger *slog.Logger
}

// NewLoader creates a new Loader
func NewLoader(store CatalogStore, logger *slog.Logger) *Loader {
	return &Loader{store: store, logger: logging.OrDefault(logger)}
}

// Stocks returns every catalog entry ordered by name, then id
func (l *Loader) Stocks(ctx context.Context) ([]*models.Stock, error) {
	stocks, err := l.store.GetAllStocks(ctx)
	if err != nil {
		l.logger.Error("failed to load stocks", "error", err)
		return []*models.Stock{}, fmt.Errorf("failed to load stocks: %w", err)
	}
	sortStocks(stocks)
	return stocks, nil
}

// SelectedIDs returns the ids of the stocks the user has selected
func (l *Loader) SelectedIDs(ctx context.Context, userID int64) ([]int64, error) {
	ids, err := l.store.GetSelectedStockIDs(ctx, userID)
	if err != nil {
		l.logger.Error("failed to load selections", "user_id", userID, "error", err)
		return []int64{}, fmt.Errorf("failed to load selections: %w", err)
	}
	return ids, nil
}

// SelectedStocks returns the stock rows the user has selected, ordered by name
func (l *Loader) SelectedStocks(ctx context.Context, userID int64) ([]*models.Stock, error) {
	stocks, err := l.store.GetSelectedStocks(ctx, userID)
	if err != nil {
		l.logger.Error("failed to load selected stocks", "user_id", userID, "error", err)
		return []*models.Stock{}, fmt.Errorf("failed to load selected stocks: %w", err)
	}
	sortStocks(stocks)
	return stocks, nil
}

// Load reads the catalog and the user's selection concurrently
func (l *Loader) Load(ctx context.Context, userID int64) Catalog {
	var c Catalog
	var wg conc.WaitGroup
	wg.Go(func() {
		c.Stocks, c.StocksErr = l.Stocks(ctx)
	})
	wg.Go(func() {
		c.Selected, c.SelectionErr = l.SelectedIDs(ctx, userID)
	})
	wg.Wait()
	return c
}

func sortStocks(stocks []*models.Stock) {
	slices.SortStableFunc(stocks, func(a, b *models.Stock) int {
		return cmp.Or(cmp.Compare(a.StockName, b.StockName), cmp.Compare(a.ID, b.ID))
	})
}

package trend

import (
	"context"
	"log/slog"
	"time"

	"github.com/trogers1052/stock-watchlist/internal/logging"
	"github.com/trogers1052/stock-watchlist/internal/quotes"
)

// DefaultRefreshInterval is how often a displayed stock is re-fetched
const DefaultRefreshInterval = 5 * time.Minute

// Renderer periodically re-fetches one symbol and emits its Trend
type Renderer struct {
	source   quotes.Source
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewRenderer creates a Renderer refreshing every interval
func NewRenderer(source quotes.Source, interval time.Duration, logger *slog.Logger) *Renderer {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Renderer{
		source:   source,
		interval: interval,
		logger:   logging.OrDefault(logger),
		now:      time.Now,
	}
}

// Render fetches symbol once and summarises it
func (r *Renderer) Render(ctx context.Context, symbol string) (Trend, error) {
	series := r.source.Fetch(ctx, symbol)

	t, err := Compute(series.Points)
	if err != nil {
		return Trend{}, err
	}
	t.Symbol = series.Symbol
	t.Synthetic = series.Synthetic
	t.UpdatedAt = r.now()
	return t, nil
}

// Run emits a Trend for symbol immediately and then once per interval until
// ctx is cancelled. emit is called from Run's goroutine only.
func (r *Renderer) Run(ctx context.Context, symbol string, emit func(Trend)) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.tick(ctx, symbol, emit)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx, symbol, emit)
		}
	}
}

func (r *Renderer) tick(ctx context.Context, symbol string, emit func(Trend)) {
	t, err := r.Render(ctx, symbol)
	if err != nil {
		r.logger.Warn("failed to render trend", "symbol", symbol, "error", err)
		return
	}
	if ctx.Err() != nil {
		return
	}
	emit(t)
}

package trend

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/stock-watchlist/internal/models"
	"github.com/trogers1052/stock-watchlist/internal/quotes"
)

func series(closes ...float64) []models.QuotePoint {
	start := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	points := make([]models.QuotePoint, len(closes))
	for i, c := range closes {
		points[i] = models.QuotePoint{Datetime: start.Add(time.Duration(i) * time.Minute), Close: c}
	}
	return points
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name      string
		closes    []float64
		current   string
		change    string
		percent   string
		direction Direction
	}{
		{"single point has zero change", []float64{100}, "100", "0", "0.00", Up},
		{"rise", []float64{100, 110}, "110", "10", "10.00", Up},
		{"fall", []float64{100, 90}, "90", "-10", "-10.00", Down},
		{"flat is up", []float64{120, 95, 95}, "95", "0", "0.00", Up},
		{"uses last two points only", []float64{50, 200, 201}, "201", "1", "0.50", Up},
		{"fractional prices", []float64{187.23, 186.91}, "186.91", "-0.32", "-0.17", Down},
		{"zero previous price", []float64{0, 5}, "5", "5", "0.00", Up},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compute(series(tt.closes...))
			require.NoError(t, err)

			assert.True(t, got.CurrentPrice.Equal(decimal.RequireFromString(tt.current)), "current %s", got.CurrentPrice)
			assert.True(t, got.Change.Equal(decimal.RequireFromString(tt.change)), "change %s", got.Change)
			assert.Equal(t, tt.percent, got.ChangePercent)
			assert.Equal(t, tt.direction, got.Direction)
		})
	}
}

func TestCompute_EmptySeries(t *testing.T) {
	_, err := Compute(nil)
	assert.True(t, errors.Is(err, ErrNoData))
}

func TestCompute_NonFiniteClose(t *testing.T) {
	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := Compute(series(100, bad))
		assert.ErrorIs(t, err, ErrInvalidPrice)
	}
}

func TestCompute_Sparkline(t *testing.T) {
	got, err := Compute(series(100, 101, 102))
	require.NoError(t, err)
	assert.Equal(t, []string{"14:30", "14:31", "14:32"}, got.Sparkline.Labels)
	assert.Equal(t, []float64{100, 101, 102}, got.Sparkline.Values)
}

type stepSource struct {
	mu    sync.Mutex
	calls int
}

func (s *stepSource) Fetch(_ context.Context, symbol string) quotes.Series {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return quotes.Series{
		Symbol:    symbol,
		Points:    series(100, 100+float64(s.calls)),
		Synthetic: s.calls%2 == 0,
	}
}

func TestRenderer_RunRefreshesUntilCancelled(t *testing.T) {
	src := &stepSource{}
	r := NewRenderer(src, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	emitted := make(chan Trend, 16)
	done := make(chan error, 1)
	go func() {
		done <- r.Run(ctx, "AAPL", func(t Trend) { emitted <- t })
	}()

	var got []Trend
	for len(got) < 3 {
		select {
		case tr := <-emitted:
			got = append(got, tr)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for refresh")
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("renderer did not stop after cancel")
	}

	assert.Equal(t, "AAPL", got[0].Symbol)
	assert.True(t, got[0].Change.Equal(decimal.NewFromInt(1)))
	assert.True(t, got[1].Change.Equal(decimal.NewFromInt(2)))
	assert.False(t, got[0].Synthetic)
	assert.True(t, got[1].Synthetic)
	assert.False(t, got[0].UpdatedAt.IsZero())
}

func TestNewRenderer_DefaultInterval(t *testing.T) {
	r := NewRenderer(&stepSource{}, 0, nil)
	assert.Equal(t, DefaultRefreshInterval, r.interval)
}

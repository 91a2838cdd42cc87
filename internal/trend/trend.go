// Package trend derives price, change and direction from a quote series and
// keeps them fresh on a timer.
package trend

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/stock-watchlist/internal/models"
)

// ErrNoData is returned when a series has no points
var ErrNoData = errors.New("no quote data")

// ErrInvalidPrice is returned when a close is NaN or infinite
var ErrInvalidPrice = errors.New("invalid price")

// Direction is the colour/icon classification of a change
type Direction string

// Direction values
const (
	Up   Direction = "up"
	Down Direction = "down"
)

var hundred = decimal.NewFromInt(100)

// Trend is the display summary of a series
type Trend struct {
	Symbol        string          `json:"symbol"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	PreviousPrice decimal.Decimal `json:"previous_price"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent string          `json:"change_percent"`
	Direction     Direction       `json:"direction"`
	Sparkline     Sparkline       `json:"sparkline"`
	Synthetic     bool            `json:"synthetic"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Sparkline is the chart series: one label and one value per point
type Sparkline struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

// Compute summarises points, which must be ordered oldest first. With a
// single point the change is zero. A zero previous price yields a "0.00"
// percentage instead of dividing by zero.
func Compute(points []models.QuotePoint) (Trend, error) {
	if len(points) == 0 {
		return Trend{}, ErrNoData
	}
	for _, p := range points {
		if math.IsNaN(p.Close) || math.IsInf(p.Close, 0) {
			return Trend{}, fmt.Errorf("close %v at %s: %w", p.Close, p.Datetime.Format(time.RFC3339), ErrInvalidPrice)
		}
	}

	current := decimal.NewFromFloat(points[len(points)-1].Close)
	previous := current
	if len(points) > 1 {
		previous = decimal.NewFromFloat(points[len(points)-2].Close)
	}

	change := current.Sub(previous)
	percent := decimal.Zero
	if !previous.IsZero() {
		percent = change.Div(previous).Mul(hundred)
	}

	direction := Up
	if change.IsNegative() {
		direction = Down
	}

	return Trend{
		CurrentPrice:  current,
		PreviousPrice: previous,
		Change:        change,
		ChangePercent: percent.StringFixed(2),
		Direction:     direction,
		Sparkline:     sparkline(points),
	}, nil
}

func sparkline(points []models.QuotePoint) Sparkline {
	s := Sparkline{
		Labels: make([]string, len(points)),
		Values: make([]float64, len(points)),
	}
	for i, p := range points {
		s.Labels[i] = p.Datetime.Format("15:04")
		s.Values[i] = p.Close
	}
	return s
}

package quotes

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/trogers1052/stock-watchlist/internal/models"
)

const (
	syntheticBaseMin  = 150.0
	syntheticBaseSpan = 100.0
	syntheticSwing    = 5.0
	syntheticFloor    = 10.0
)

// Generator produces plausible one-minute price series
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
}

// NewGenerator creates a Generator seeded from the clock
func NewGenerator() *Generator {
	seed := uint64(time.Now().UnixNano())
	return NewSeededGenerator(seed, time.Now)
}

// NewSeededGenerator creates a deterministic Generator
func NewSeededGenerator(seed uint64, now func() time.Time) *Generator {
	return &Generator{
		rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now: now,
	}
}

// Generate returns n points one minute apart, the last one at now. Prices
// wander around a base drawn from [150, 250) and never drop below 10.
func (g *Generator) Generate(n int) []models.QuotePoint {
	if n <= 0 {
		n = 1
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now().UTC().Truncate(time.Second)
	base := syntheticBaseMin + g.rnd.Float64()*syntheticBaseSpan

	points := make([]models.QuotePoint, 0, n)
	for i := n - 1; i >= 0; i-- {
		variation := (g.rnd.Float64() - 0.5) * syntheticSwing
		price := math.Max(base+variation, syntheticFloor)
		points = append(points, models.QuotePoint{
			Datetime: now.Add(-time.Duration(i) * time.Minute),
			Close:    math.Round(price*100) / 100,
		})
	}
	return points
}

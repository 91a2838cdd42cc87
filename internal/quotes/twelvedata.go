package quotes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/trogers1052/stock-watchlist/internal/logging"
	"github.com/trogers1052/stock-watchlist/internal/models"
)

var errMalformed = errors.New("malformed time series")

// Datetime layouts used by the time_series endpoint
var twelveDataLayouts = []string{"2006-01-02 15:04:05", "2006-01-02"}

// TwelveDataConfig configures the TwelveData client
type TwelveDataConfig struct {
	BaseURL    string
	APIKey     string
	Interval   string
	OutputSize int
	Timeout    time.Duration
}

// TwelveData fetches intraday series from the TwelveData time_series API
type TwelveData struct {
	cfg        TwelveDataConfig
	httpClient *http.Client
	generator  *Generator
	logger     *slog.Logger
}

// timeSeriesResponse is the response from the /time_series endpoint. Values
// stays raw so a non-array payload can be told apart from a transport error.
type timeSeriesResponse struct {
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Meta    struct {
		Symbol           string `json:"symbol"`
		ExchangeTimezone string `json:"exchange_timezone"`
	} `json:"meta"`
	Values json.RawMessage `json:"values"`
}

type timeSeriesValue struct {
	Datetime string `json:"datetime"`
	Close    string `json:"close"`
}

// NewTwelveData creates a TwelveData source. generator may be nil.
func NewTwelveData(cfg TwelveDataConfig, generator *Generator, logger *slog.Logger) *TwelveData {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.twelvedata.com"
	}
	if cfg.APIKey == "" {
		cfg.APIKey = "demo"
	}
	if cfg.Interval == "" {
		cfg.Interval = "1min"
	}
	if cfg.OutputSize <= 0 {
		cfg.OutputSize = 30
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if generator == nil {
		generator = NewGenerator()
	}
	return &TwelveData{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		generator:  generator,
		logger:     logging.OrDefault(logger),
	}
}

// Fetch returns the provider's series for symbol, or a synthetic series of
// OutputSize points when the provider fails or answers with anything unusable.
func (c *TwelveData) Fetch(ctx context.Context, symbol string) Series {
	symbol = NormalizeSymbol(symbol)

	points, err := c.fetchSeries(ctx, symbol)
	if err != nil {
		c.logger.Warn("quote fetch failed, using synthetic data", "symbol", symbol, "error", err)
		return Series{Symbol: symbol, Points: c.generator.Generate(c.cfg.OutputSize), Synthetic: true}
	}
	return Series{Symbol: symbol, Points: points}
}

func (c *TwelveData) fetchSeries(ctx context.Context, symbol string) ([]models.QuotePoint, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", c.cfg.Interval)
	q.Set("outputsize", strconv.Itoa(c.cfg.OutputSize))
	q.Set("apikey", c.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/time_series?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request time series: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("time series returned status %d", resp.StatusCode)
	}

	var body timeSeriesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode time series: %w", err)
	}

	if body.Status == "error" {
		return nil, fmt.Errorf("provider error %d: %s", body.Code, body.Message)
	}

	return parseValues(body.Values, location(body.Meta.ExchangeTimezone))
}

// parseValues converts the provider's values array into chronological points
func parseValues(raw json.RawMessage, loc *time.Location) ([]models.QuotePoint, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("values is not a sequence: %w", errMalformed)
	}

	var values []timeSeriesValue
	if err := json.Unmarshal(trimmed, &values); err != nil {
		return nil, fmt.Errorf("decode values: %v: %w", err, errMalformed)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("values is empty: %w", errMalformed)
	}

	points := make([]models.QuotePoint, 0, len(values))
	for _, v := range values {
		closePrice, err := strconv.ParseFloat(v.Close, 64)
		if err != nil || math.IsNaN(closePrice) || math.IsInf(closePrice, 0) {
			return nil, fmt.Errorf("invalid close %q: %w", v.Close, errMalformed)
		}
		ts, err := parseDatetime(v.Datetime, loc)
		if err != nil {
			return nil, err
		}
		points = append(points, models.QuotePoint{Datetime: ts, Close: closePrice})
	}

	// The provider answers newest first.
	slices.Reverse(points)
	slices.SortStableFunc(points, func(a, b models.QuotePoint) int {
		return a.Datetime.Compare(b.Datetime)
	})
	return points, nil
}

func parseDatetime(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range twelveDataLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid datetime %q: %w", s, errMalformed)
}

func location(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

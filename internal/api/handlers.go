package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/trogers1052/stock-watchlist/internal/auth"
	"github.com/trogers1052/stock-watchlist/internal/logging"
	"github.com/trogers1052/stock-watchlist/internal/models"
	"github.com/trogers1052/stock-watchlist/internal/quotes"
	"github.com/trogers1052/stock-watchlist/internal/trend"
	"github.com/trogers1052/stock-watchlist/internal/watchlist"
)

// MessageDismissAfter is how long the UI shows a banner message
const MessageDismissAfter = 3 * time.Second

// Message is a transient banner shown by the UI
type Message struct {
	Type           string `json:"type"`
	Text           string `json:"text"`
	DismissAfterMS int64  `json:"dismiss_after_ms"`
}

func errorMessage(text string) *Message {
	return &Message{Type: "error", Text: text, DismissAfterMS: MessageDismissAfter.Milliseconds()}
}

func successMessage(text string) *Message {
	return &Message{Type: "success", Text: text, DismissAfterMS: MessageDismissAfter.Milliseconds()}
}

// Sessions is the auth surface the handlers need
type Sessions interface {
	Session(ctx context.Context, accessToken string) (*auth.Principal, error)
	SignInURL(redirectTo string) string
	SignOut(ctx context.Context, accessToken string) error
	Subscribe(email string) (<-chan auth.State, func())
}

// Pinger reports whether the database is reachable
type Pinger interface {
	Ping() error
}

// Deps holds everything the handlers are built from. Publisher and DB may
// be nil.
type Deps struct {
	Sessions        Sessions
	Users           watchlist.UserStore
	Catalog         watchlist.CatalogStore
	Selections      watchlist.SelectionStore
	Publisher       watchlist.EventPublisher
	Quotes          quotes.Source
	RefreshInterval time.Duration
	DefaultRedirect string
	DB              Pinger
	Logger          *slog.Logger
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	sessions        Sessions
	identity        *watchlist.Bootstrapper
	loader          *watchlist.Loader
	selections      watchlist.SelectionStore
	publisher       watchlist.EventPublisher
	views           *watchlist.Views
	quotes          quotes.Source
	renderer        *trend.Renderer
	defaultRedirect string
	db              Pinger
	logger          *slog.Logger
}

// NewHandler creates a new Handler
func NewHandler(d Deps) *Handler {
	logger := logging.OrDefault(d.Logger)
	redirect := d.DefaultRedirect
	if redirect == "" {
		redirect = "/dashboard"
	}
	return &Handler{
		sessions:        d.Sessions,
		identity:        watchlist.NewBootstrapper(d.Users, logger),
		loader:          watchlist.NewLoader(d.Catalog, logger),
		selections:      d.Selections,
		publisher:       d.Publisher,
		views:           watchlist.NewViews(),
		quotes:          d.Quotes,
		renderer:        trend.NewRenderer(d.Quotes, d.RefreshInterval, logger),
		defaultRedirect: redirect,
		db:              d.DB,
		logger:          logger,
	}
}

// GetAllStocks handles GET /stocks
func (h *Handler) GetAllStocks(w http.ResponseWriter, r *http.Request) {
	stocks, err := h.loader.Stocks(r.Context())
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, stocksResponse{
			Stocks:  stocks,
			Message: errorMessage("Failed to load stocks"),
		})
		return
	}

	respondJSON(w, http.StatusOK, stocksResponse{Stocks: stocks})
}

type stocksResponse struct {
	Stocks  []*models.Stock `json:"stocks"`
	Message *Message        `json:"message,omitempty"`
}

// GetQuote handles GET /quotes/{symbol}
func (h *Handler) GetQuote(w http.ResponseWriter, r *http.Request) {
	symbol := quotes.NormalizeSymbol(mux.Vars(r)["symbol"])
	if symbol == "" {
		http.Error(w, "symbol is required", http.StatusBadRequest)
		return
	}

	series := h.quotes.Fetch(r.Context(), symbol)
	t, err := trend.Compute(series.Points)
	if err != nil {
		h.logger.Error("quote source returned no points", "symbol", symbol)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	t.Symbol = series.Symbol
	t.Synthetic = series.Synthetic
	t.UpdatedAt = time.Now()

	respondJSON(w, http.StatusOK, quoteResponse{Series: series, Trend: t})
}

type quoteResponse struct {
	Series quotes.Series `json:"series"`
	Trend  trend.Trend   `json:"trend"`
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			h.logger.Warn("health check failed", "error", err)
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

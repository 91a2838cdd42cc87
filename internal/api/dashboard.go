package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sourcegraph/conc"
	"github.com/trogers1052/stock-watchlist/internal/models"
	"github.com/trogers1052/stock-watchlist/internal/trend"
	"github.com/trogers1052/stock-watchlist/internal/watchlist"
)

type dashboardResponse struct {
	UserID      int64           `json:"user_id"`
	Email       string          `json:"email"`
	DisplayName string          `json:"display_name"`
	Stocks      []*models.Stock `json:"stocks"`
	Message     *Message        `json:"message,omitempty"`
}

// GetDashboard handles GET /dashboard
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	p, userID, ok := h.bootstrap(w, r)
	if !ok {
		return
	}

	resp := dashboardResponse{
		UserID:      userID,
		Email:       p.Email,
		DisplayName: watchlist.DisplayName(p),
	}

	stocks, err := h.loader.SelectedStocks(r.Context(), userID)
	resp.Stocks = stocks
	if err != nil {
		resp.Message = errorMessage("Failed to load stocks")
	}

	respondJSON(w, http.StatusOK, resp)
}

type streamEvent struct {
	name string
	data any
}

// DashboardStream handles GET /dashboard/stream. It sends a "stocks" event
// with the user's selections, then a "quote" event from each stock's trend
// renderer on every refresh. The stream ends with a "signed_out" event when
// the user signs out, or when the client goes away.
func (h *Handler) DashboardStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	p, userID, ok := h.bootstrap(w, r)
	if !ok {
		return
	}

	stocks, err := h.loader.SelectedStocks(r.Context(), userID)

	states, unsubscribe := h.sessions.Subscribe(p.Email)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	first := dashboardResponse{UserID: userID, Email: p.Email, DisplayName: watchlist.DisplayName(p), Stocks: stocks}
	if err != nil {
		first.Message = errorMessage("Failed to load stocks")
	}
	if err := writeEvent(w, "stocks", first); err != nil {
		return
	}
	flusher.Flush()

	ctx, cancel := context.WithCancel(r.Context())
	events := make(chan streamEvent)
	var wg conc.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	for _, s := range stocks {
		symbol := s.StockCode
		wg.Go(func() {
			_ = h.renderer.Run(ctx, symbol, func(t trend.Trend) {
				select {
				case events <- streamEvent{name: "quote", data: t}:
				case <-ctx.Done():
				}
			})
		})
	}

	for {
		select {
		case <-ctx.Done():
			return
		case st := <-states:
			if !st.SignedIn {
				_ = writeEvent(w, "signed_out", st)
				flusher.Flush()
				return
			}
		case ev := <-events:
			if err := writeEvent(w, ev.name, ev.data); err != nil {
				h.logger.Debug("dashboard stream closed", "email", p.Email, "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", name, err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload); err != nil {
		return fmt.Errorf("failed to write %s event: %w", name, err)
	}
	return nil
}

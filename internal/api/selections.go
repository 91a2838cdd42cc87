package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/trogers1052/stock-watchlist/internal/auth"
	"github.com/trogers1052/stock-watchlist/internal/models"
	"github.com/trogers1052/stock-watchlist/internal/watchlist"
)

type selectResponse struct {
	Stocks   []*models.Stock `json:"stocks"`
	Selected []int64         `json:"selected"`
	Message  *Message        `json:"message,omitempty"`
}

// bootstrap resolves the request's user id, writing a bare 500 on failure
func (h *Handler) bootstrap(w http.ResponseWriter, r *http.Request) (*auth.Principal, int64, bool) {
	p, _ := auth.PrincipalFrom(r.Context())
	userID, err := h.identity.Bootstrap(r.Context(), p)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return nil, 0, false
	}
	return p, userID, true
}

// OpenSelectView handles GET /select: it loads the catalog and the user's
// selections and opens a select view seeded with them
func (h *Handler) OpenSelectView(w http.ResponseWriter, r *http.Request) {
	p, userID, ok := h.bootstrap(w, r)
	if !ok {
		return
	}

	c := h.loader.Load(r.Context(), userID)

	ids := make([]int64, len(c.Stocks))
	for i, s := range c.Stocks {
		ids[i] = s.ID
	}
	view := h.views.Open(p.Email, watchlist.NewReconciler(userID, c.Selected, h.selections, h.publisher, h.logger), ids)

	resp := selectResponse{Stocks: c.Stocks, Selected: view.Selected()}
	switch {
	case c.StocksErr != nil:
		resp.Message = errorMessage("Failed to load stocks")
	case c.SelectionErr != nil:
		resp.Message = errorMessage("Failed to load data")
	}
	respondJSON(w, http.StatusOK, resp)
}

// ToggleSelection handles POST /select/toggle/{stockID}
func (h *Handler) ToggleSelection(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())

	stockID, err := strconv.ParseInt(mux.Vars(r)["stockID"], 10, 64)
	if err != nil {
		http.Error(w, "invalid stock id", http.StatusBadRequest)
		return
	}

	view, err := h.views.Get(p.Email)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	on, err := view.Toggle(stockID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"stock_id": stockID,
		"selected": on,
		"ids":      view.Selected(),
	})
}

// SaveSelections handles POST /select/save
func (h *Handler) SaveSelections(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())

	view, err := h.views.Get(p.Email)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	h.save(w, r, view.Reconciler)
}

// CloseSelectView handles DELETE /select
func (h *Handler) CloseSelectView(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	h.views.Close(p.Email)
	w.WriteHeader(http.StatusNoContent)
}

// ReplaceSelections handles PUT /selections with a body of
// {"stock_ids": [...]}, replacing the user's selections in one call
func (h *Handler) ReplaceSelections(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StockIDs []int64 `json:"stock_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	_, userID, ok := h.bootstrap(w, r)
	if !ok {
		return
	}

	h.save(w, r, watchlist.NewReconciler(userID, req.StockIDs, h.selections, h.publisher, h.logger))
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request, rec *watchlist.Reconciler) {
	err := rec.Save(r.Context())
	switch {
	case errors.Is(err, watchlist.ErrSaveInProgress):
		respondJSON(w, http.StatusConflict, selectResponse{
			Selected: rec.Selected(),
			Message:  errorMessage("Save already in progress"),
		})
	case err != nil:
		respondJSON(w, http.StatusInternalServerError, selectResponse{
			Selected: rec.Selected(),
			Message:  errorMessage("Failed to save selections"),
		})
	default:
		respondJSON(w, http.StatusOK, selectResponse{
			Selected: rec.Selected(),
			Message:  successMessage("Selections saved successfully!"),
		})
	}
}

package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes. The returned handler answers CORS
// preflight requests before routing.
func SetupRoutes(handler *Handler) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	// Auth routes
	r.HandleFunc("/auth/signin", handler.SignIn).Methods("GET")
	r.Handle("/auth/signout", handler.requireSession(http.HandlerFunc(handler.SignOut))).Methods("POST")

	// Public catalog and quote routes
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/stocks", handler.GetAllStocks).Methods("GET")
	api.HandleFunc("/quotes/{symbol}", handler.GetQuote).Methods("GET")

	// Signed-in routes
	user := api.NewRoute().Subrouter()
	user.Use(handler.requireSession)
	user.HandleFunc("/dashboard", handler.GetDashboard).Methods("GET")
	user.HandleFunc("/dashboard/stream", handler.DashboardStream).Methods("GET")
	user.HandleFunc("/select", handler.OpenSelectView).Methods("GET")
	user.HandleFunc("/select", handler.CloseSelectView).Methods("DELETE")
	user.HandleFunc("/select/toggle/{stockID:[0-9]+}", handler.ToggleSelection).Methods("POST")
	user.HandleFunc("/select/save", handler.SaveSelections).Methods("POST")
	user.HandleFunc("/selections", handler.ReplaceSelections).Methods("PUT")

	return corsMiddleware(r)
}

package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/trogers1052/stock-watchlist/internal/auth"
)

// accessToken reads the bearer token from the Authorization header. Browsers
// cannot set headers on an EventSource, so the access_token query parameter
// is accepted as well.
func accessToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}

// requireSession rejects requests without a valid session and stores the
// principal in the request context
func (h *Handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := accessToken(r)
		if token == "" {
			http.Error(w, auth.ErrUnauthorized.Error(), http.StatusUnauthorized)
			return
		}

		p, err := h.sessions.Session(r.Context(), token)
		if err != nil {
			if !errors.Is(err, auth.ErrUnauthorized) {
				h.logger.Error("failed to verify session", "error", err)
			}
			http.Error(w, auth.ErrUnauthorized.Error(), http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
	})
}

// corsMiddleware allows the browser UI to call the API from another origin
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// SignIn handles GET /auth/signin by redirecting to the provider's OAuth page
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	redirect := r.URL.Query().Get("redirect_to")
	if redirect == "" {
		redirect = h.defaultRedirect
	}
	http.Redirect(w, r, h.sessions.SignInURL(redirect), http.StatusFound)
}

// SignOut handles POST /auth/signout
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())

	err := h.sessions.SignOut(r.Context(), accessToken(r))
	h.views.Close(p.Email)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		h.logger.Error("failed to sign out", "email", p.Email, "error", err)
		respondJSON(w, http.StatusBadGateway, messageResponse{Message: errorMessage("Failed to sign out")})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type messageResponse struct {
	Message *Message `json:"message"`
}

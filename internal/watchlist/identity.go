// Package watchlist holds the per-user flows behind the dashboard and the
// select view: resolving the signed-in user, loading the catalog and
// reconciling the user's selections.
package watchlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/trogers1052/stock-watchlist/internal/auth"
	"github.com/trogers1052/stock-watchlist/internal/logging"
	"github.com/trogers1052/stock-watchlist/internal/models"
)

// ErrIdentity marks a failure to resolve the signed-in user to a user row.
// Nothing that depends on the user id runs after it.
var ErrIdentity = errors.New("failed to resolve user")

// DefaultDisplayName is used when the session carries no usable name or email
const DefaultDisplayName = "User"

// UserStore persists user rows
type UserStore interface {
	UpsertUserByEmail(ctx context.Context, name, email string) (*models.User, error)
}

// Bootstrapper ensures a user row exists for the signed-in principal
type Bootstrapper struct {
	store  UserStore
	logger *slog.Logger
}

// NewBootstrapper creates a new Bootstrapper
func NewBootstrapper(store UserStore, logger *slog.Logger) *Bootstrapper {
	return &Bootstrapper{store: store, logger: logging.OrDefault(logger)}
}

// Bootstrap upserts the principal's user row keyed by email and returns its
// id. An existing row keeps its name.
func (b *Bootstrapper) Bootstrap(ctx context.Context, p *auth.Principal) (int64, error) {
	if p == nil || p.Email == "" {
		b.logger.Error("cannot bootstrap user without an email")
		return 0, fmt.Errorf("%w: session has no email", ErrIdentity)
	}

	user, err := b.store.UpsertUserByEmail(ctx, DisplayName(p), p.Email)
	if err != nil {
		b.logger.Error("failed to upsert user", "email", p.Email, "error", err)
		return 0, fmt.Errorf("%w: %w", ErrIdentity, err)
	}
	if user == nil || user.ID == 0 {
		b.logger.Error("upsert returned no user row", "email", p.Email)
		return 0, fmt.Errorf("%w: no row returned", ErrIdentity)
	}

	return user.ID, nil
}

// DisplayName picks the first non-empty of the provider's full name, the
// provider's name, the email local part and DefaultDisplayName.
func DisplayName(p *auth.Principal) string {
	if p == nil {
		return DefaultDisplayName
	}
	local, _, _ := strings.Cut(p.Email, "@")
	for _, candidate := range []string{p.FullName, p.Name, local} {
		if c := strings.TrimSpace(candidate); c != "" {
			return c
		}
	}
	return DefaultDisplayName
}

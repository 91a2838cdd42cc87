// Package auth verifies sessions issued by the hosted auth provider and
// tracks sign-in state for open views.
package auth

import (
	"context"
	"errors"
	"time"
)

// ErrUnauthorized is returned when a request carries no valid session
var ErrUnauthorized = errors.New("unauthorized")

// Principal is the authenticated identity behind a session
type Principal struct {
	Subject   string
	Email     string
	FullName  string
	Name      string
	SessionID string
	ExpiresAt time.Time
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored in ctx, if any
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

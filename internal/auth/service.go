package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/trogers1052/stock-watchlist/internal/logging"
)

// Revoker records local sign-outs
type Revoker interface {
	RevocationChecker
	Revoke(ctx context.Context, sessionID string, ttl time.Duration) error
}

// Provider is the hosted auth provider's sign-in/sign-out surface
type Provider interface {
	SignInURL(redirectTo string) string
	SignOut(ctx context.Context, accessToken string) error
}

// Service is the session accessor used by the HTTP layer
type Service struct {
	verifier *Verifier
	provider Provider
	revoker  Revoker
	broker   *StateBroker
	logger   *slog.Logger
}

// NewService wires the session accessor. revoker may be nil, in which case
// sign-outs are only enforced by the provider.
func NewService(verifier *Verifier, provider Provider, revoker Revoker, broker *StateBroker, logger *slog.Logger) *Service {
	if broker == nil {
		broker = NewStateBroker()
	}
	return &Service{
		verifier: verifier,
		provider: provider,
		revoker:  revoker,
		broker:   broker,
		logger:   logging.OrDefault(logger),
	}
}

// Session returns the principal for accessToken
func (s *Service) Session(ctx context.Context, accessToken string) (*Principal, error) {
	return s.verifier.Verify(ctx, accessToken)
}

// SignInURL returns where to send the browser to start OAuth sign-in
func (s *Service) SignInURL(redirectTo string) string {
	return s.provider.SignInURL(redirectTo)
}

// Subscribe registers for auth-state changes of email
func (s *Service) Subscribe(email string) (<-chan State, func()) {
	return s.broker.Subscribe(email)
}

// SignOut ends the session locally, notifies the user's open views and
// revokes the session at the provider.
func (s *Service) SignOut(ctx context.Context, accessToken string) error {
	p, err := s.verifier.Verify(ctx, accessToken)
	if err != nil {
		return err
	}

	if s.revoker != nil && p.SessionID != "" {
		if err := s.revoker.Revoke(ctx, p.SessionID, time.Until(p.ExpiresAt)); err != nil {
			s.logger.Error("failed to revoke session locally", "email", p.Email, "error", err)
		}
	}
	s.broker.Publish(State{Email: p.Email, SignedIn: false})

	if err := s.provider.SignOut(ctx, accessToken); err != nil {
		return fmt.Errorf("failed to sign out at provider: %w", err)
	}
	s.logger.Info("signed out", "email", p.Email)
	return nil
}

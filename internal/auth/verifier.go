package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Claims mirrors the access-token claims issued by the hosted provider
type Claims struct {
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	SessionID    string         `json:"session_id,omitempty"`
	jwt.RegisteredClaims
}

// RevocationChecker reports whether a session has been signed out locally
type RevocationChecker interface {
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

// Verifier validates HS256 access tokens signed with the project JWT secret
type Verifier struct {
	secret  []byte
	revoked RevocationChecker
	parser  *jwt.Parser
}

// NewVerifier creates a Verifier. revoked may be nil.
func NewVerifier(secret string, revoked RevocationChecker) *Verifier {
	return &Verifier{
		secret:  []byte(secret),
		revoked: revoked,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

// Verify parses tokenString and returns its principal
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*Principal, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, fmt.Errorf("missing access token: %w", ErrUnauthorized)
	}
	if len(v.secret) == 0 {
		return nil, fmt.Errorf("no JWT secret configured: %w", ErrUnauthorized)
	}

	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid access token: %v: %w", err, ErrUnauthorized)
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("access token has no email: %w", ErrUnauthorized)
	}

	p := &Principal{
		Subject:   claims.Subject,
		Email:     claims.Email,
		FullName:  metadataString(claims.UserMetadata, "full_name"),
		Name:      metadataString(claims.UserMetadata, "name"),
		SessionID: claims.SessionID,
	}
	if p.SessionID == "" {
		p.SessionID = claims.ID
	}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time
	}

	if v.revoked != nil && p.SessionID != "" {
		revoked, err := v.revoked.IsRevoked(ctx, p.SessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to check session revocation: %w", err)
		}
		if revoked {
			return nil, fmt.Errorf("session signed out: %w", ErrUnauthorized)
		}
	}

	return p, nil
}

func metadataString(md map[string]any, key string) string {
	if s, ok := md[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ProviderClient talks to the hosted auth provider's REST endpoints
type ProviderClient struct {
	baseURL    string
	anonKey    string
	oauthName  string
	httpClient *http.Client
}

// NewProviderClient creates a client for the provider at baseURL
func NewProviderClient(baseURL, anonKey, oauthName string) *ProviderClient {
	return &ProviderClient{
		baseURL:    baseURL,
		anonKey:    anonKey,
		oauthName:  oauthName,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// SignInURL returns the provider URL that starts the OAuth flow and sends the
// browser back to redirectTo afterwards
func (c *ProviderClient) SignInURL(redirectTo string) string {
	q := url.Values{}
	q.Set("provider", c.oauthName)
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	return c.baseURL + "/auth/v1/authorize?" + q.Encode()
}

// SignOut revokes the session behind accessToken at the provider
func (c *ProviderClient) SignOut(ctx context.Context, accessToken string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/v1/logout", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call logout: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("logout returned status %d: %s", resp.StatusCode, body)
	}
	return nil
}

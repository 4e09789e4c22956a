package graph

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// graphScope requests the application permissions granted to the client.
const graphScope = "https://graph.microsoft.com/.default"

// tokenCache hands out access tokens from the OAuth2 client credentials
// flow. Tokens are reused until shortly before expiry.
type tokenCache struct {
	mu         sync.Mutex
	conf       *clientcredentials.Config
	httpClient *http.Client
	source     oauth2.TokenSource
}

// newTokenCache creates a new token cache for the given OAuth2 client credentials.
func newTokenCache(tokenURL, clientID, clientSecret string, httpClient *http.Client) *tokenCache {
	return &tokenCache{
		conf: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			Scopes:       []string{graphScope},
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		httpClient: httpClient,
	}
}

// Token returns a valid access token, acquiring a new one if necessary.
// This method is safe for concurrent use.
func (tc *tokenCache) Token() (string, error) {
	tc.mu.Lock()
	if tc.source == nil {
		// The source keeps this context for later refreshes, so it must not
		// be tied to a single request.
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, tc.httpClient)
		tc.source = tc.conf.TokenSource(ctx)
	}
	source := tc.source
	tc.mu.Unlock()

	tok, err := source.Token()
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	return tok.AccessToken, nil
}

// ForceRefresh discards the cached token and acquires a new one.
// This is used when a 401 response indicates the token is invalid.
func (tc *tokenCache) ForceRefresh() (string, error) {
	tc.mu.Lock()
	tc.source = nil
	tc.mu.Unlock()

	return tc.Token()
}

package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/shineum/mailshape/internal/email"
	"github.com/shineum/mailshape/internal/provider"
)

// GraphProviderConfig holds the configuration for creating a GraphProvider.
type GraphProviderConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	Sender       string
}

// GraphProvider sends composed messages via the Microsoft Graph API using
// OAuth2 client credentials authentication.
type GraphProvider struct {
	sender     string
	graphURL   string
	httpClient *http.Client
	token      *tokenCache
	retryDelay time.Duration
}

// New creates a new GraphProvider with the given configuration.
func New(cfg GraphProviderConfig) *GraphProvider {
	tokenURL := fmt.Sprintf(
		"https://login.microsoftonline.com/%s/oauth2/v2.0/token",
		url.PathEscape(cfg.TenantID),
	)
	graphURL := fmt.Sprintf(
		"https://graph.microsoft.com/v1.0/users/%s/sendMail",
		url.PathEscape(cfg.Sender),
	)

	return newWithOverrides(cfg, graphURL, tokenURL, &http.Client{Timeout: 30 * time.Second})
}

// newWithOverrides creates a GraphProvider with custom URLs and HTTP client,
// used for testing.
func newWithOverrides(cfg GraphProviderConfig, graphURL, tokenURL string, client *http.Client) *GraphProvider {
	return &GraphProvider{
		sender:     cfg.Sender,
		graphURL:   graphURL,
		httpClient: client,
		token:      newTokenCache(tokenURL, cfg.ClientID, cfg.ClientSecret, client),
		retryDelay: provider.BaseRetryDelay,
	}
}

// Send delivers a composed message via the Graph sendMail endpoint.
// It retries transient failures with exponential backoff, honors
// Retry-After for HTTP 429 and refreshes the token once on HTTP 401.
func (g *GraphProvider) Send(ctx context.Context, msg *email.Message) error {
	body := encodeMIME(msg)

	var lastErr error
	tokenRefreshed := false

	for attempt := 0; attempt <= provider.MaxRetries; attempt++ {
		if attempt > 0 {
			slog.Debug("retrying Graph API request",
				"attempt", attempt,
				"max_retries", provider.MaxRetries,
			)
		}

		err := g.doSendRequest(ctx, body)
		if err == nil {
			slog.Info("message accepted by Graph",
				"sender", g.sender,
				"recipients", len(msg.Recipients()),
			)
			return nil
		}

		lastErr = err

		var apiErr *provider.APIError
		if !errors.As(err, &apiErr) {
			return err
		}

		switch {
		case apiErr.Permanent:
			return apiErr
		case apiErr.StatusCode == http.StatusUnauthorized && !tokenRefreshed:
			slog.Info("refreshing Graph API token after 401")
			if _, refreshErr := g.token.ForceRefresh(); refreshErr != nil {
				return fmt.Errorf("token refresh failed: %w", refreshErr)
			}
			tokenRefreshed = true
			continue
		case apiErr.StatusCode == http.StatusTooManyRequests:
			delay := provider.RetryAfterDelay(apiErr.RetryAfter, g.retryDelay, attempt)
			slog.Info("rate limited by Graph API",
				"retry_after", delay,
			)
			if err := provider.Sleep(ctx, delay); err != nil {
				return fmt.Errorf("context cancelled during retry wait: %w", err)
			}
			continue
		case apiErr.Transient:
			delay := provider.Backoff(g.retryDelay, attempt)
			slog.Info("transient Graph API error, retrying",
				"status", apiErr.StatusCode,
				"delay", delay,
			)
			if err := provider.Sleep(ctx, delay); err != nil {
				return fmt.Errorf("context cancelled during retry wait: %w", err)
			}
			continue
		default:
			return apiErr
		}
	}

	return fmt.Errorf("Graph API request failed after %d retries: %w", provider.MaxRetries, lastErr)
}

// Name returns the provider name.
func (g *GraphProvider) Name() string {
	return "msgraph"
}

// doSendRequest performs a single HTTP request to the Graph API sendMail endpoint.
func (g *GraphProvider) doSendRequest(ctx context.Context, body []byte) error {
	token, err := g.token.Token()
	if err != nil {
		return fmt.Errorf("failed to get access token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.graphURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mimeContentType)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("request cancelled: %w", ctx.Err())
		}
		return provider.ClassifyHTTP("Graph", 0, fmt.Sprintf("HTTP request failed: %v", err), "")
	}
	defer resp.Body.Close()

	// HTTP 202 Accepted is success for sendMail
	if resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusOK {
		return nil
	}

	respBody, _ := io.ReadAll(resp.Body)

	var graphErrResp graphErrorResponse
	if jsonErr := json.Unmarshal(respBody, &graphErrResp); jsonErr == nil && graphErrResp.Error.Message != "" {
		return provider.ClassifyHTTP("Graph", resp.StatusCode, graphErrResp.Error.Message, resp.Header.Get("Retry-After"))
	}

	return provider.ClassifyHTTP("Graph", resp.StatusCode, string(respBody), resp.Header.Get("Retry-After"))
}

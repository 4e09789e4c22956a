// Package gmail implements a Provider that sends composed messages through
// the Gmail API and fetches message payloads for part tree adaptation.
package gmail

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

	"golang.org/x/oauth2"

	"github.com/shineum/mailshape/internal/compose"
	"github.com/shineum/mailshape/internal/email"
	"github.com/shineum/mailshape/internal/mimepart"
	"github.com/shineum/mailshape/internal/provider"
)

const (
	defaultBaseURL  = "https://gmail.googleapis.com"
	defaultTokenURL = "https://oauth2.googleapis.com/token"
	defaultAuthURL  = "https://accounts.google.com/o/oauth2/auth"

	scopeSend     = "https://www.googleapis.com/auth/gmail.send"
	scopeReadOnly = "https://www.googleapis.com/auth/gmail.readonly"
)

// GmailProviderConfig holds the OAuth2 client and the stored refresh token
// of an installed-app authorization.
type GmailProviderConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string

	// User is the mailbox to act on; "me" selects the authorized account.
	User string
}

// GmailProvider sends and fetches messages through the Gmail REST API.
type GmailProvider struct {
	baseURL    string
	user       string
	httpClient *http.Client
	retryDelay time.Duration
}

// sendRequest is the users.messages.send request body.
type sendRequest struct {
	Raw string `json:"raw"`
}

// sendResponse is the subset of the message resource returned by send.
type sendResponse struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

// errorResponse is a Google API error body.
type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// New creates a GmailProvider whose HTTP client refreshes access tokens
// from cfg.RefreshToken as needed.
func New(cfg GmailProviderConfig) *GmailProvider {
	return newWithEndpoints(cfg, defaultBaseURL, defaultTokenURL)
}

func newWithEndpoints(cfg GmailProviderConfig, baseURL, tokenURL string) *GmailProvider {
	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   defaultAuthURL,
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: []string{scopeSend, scopeReadOnly},
	}

	client := conf.Client(context.Background(), &oauth2.Token{RefreshToken: cfg.RefreshToken})
	client.Timeout = 30 * time.Second

	return newWithClient(baseURL, cfg.User, client)
}

// newWithClient creates a GmailProvider with an already authorized client,
// used for testing.
func newWithClient(baseURL, user string, client *http.Client) *GmailProvider {
	if user == "" {
		user = "me"
	}
	return &GmailProvider{
		baseURL:    baseURL,
		user:       user,
		httpClient: client,
		retryDelay: provider.BaseRetryDelay,
	}
}

// Name returns the provider name.
func (g *GmailProvider) Name() string {
	return "gmail"
}

// Send submits the composed message as the base64url "raw" field of
// users.messages.send. Transient failures are retried with backoff.
func (g *GmailProvider) Send(ctx context.Context, msg *email.Message) error {
	body, err := json.Marshal(sendRequest{Raw: compose.EncodeRaw(msg.Raw)})
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	var sent sendResponse
	err = g.withRetry(ctx, func() error {
		return g.do(ctx, http.MethodPost, g.userURL("messages/send"), body, &sent)
	})
	if err != nil {
		return err
	}

	slog.Info("message accepted by Gmail",
		"message_id", sent.ID,
		"thread_id", sent.ThreadID,
		"recipients", len(msg.Recipients()),
	)
	return nil
}

// FetchPayload fetches a message with format=full and returns its payload
// part tree as delivered by the API.
func (g *GmailProvider) FetchPayload(ctx context.Context, id string) (*mimepart.RawPart, error) {
	endpoint := g.userURL("messages/"+url.PathEscape(id)) + "?format=full"

	var raw json.RawMessage
	err := g.withRetry(ctx, func() error {
		return g.do(ctx, http.MethodGet, endpoint, nil, &raw)
	})
	if err != nil {
		return nil, err
	}

	return mimepart.ParseJSON(raw)
}

func (g *GmailProvider) userURL(path string) string {
	return fmt.Sprintf("%s/gmail/v1/users/%s/%s", g.baseURL, url.PathEscape(g.user), path)
}

// withRetry runs call until it succeeds, fails permanently or the retry
// budget is spent.
func (g *GmailProvider) withRetry(ctx context.Context, call func() error) error {
	var lastErr error
	for attempt := 0; attempt <= provider.MaxRetries; attempt++ {
		if attempt > 0 {
			var delay time.Duration
			var apiErr *provider.APIError
			if errors.As(lastErr, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
				delay = provider.RetryAfterDelay(apiErr.RetryAfter, g.retryDelay, attempt)
			} else {
				delay = provider.Backoff(g.retryDelay, attempt)
			}
			slog.Debug("retrying Gmail API request",
				"attempt", attempt,
				"max_retries", provider.MaxRetries,
				"delay", delay,
			)
			if err := provider.Sleep(ctx, delay); err != nil {
				return fmt.Errorf("context cancelled during retry wait: %w", err)
			}
		}

		err := call()
		if err == nil {
			return nil
		}
		lastErr = err

		var apiErr *provider.APIError
		if !errors.As(err, &apiErr) || apiErr.Permanent {
			return err
		}
		slog.Warn("Gmail API error",
			"attempt", attempt,
			"status", apiErr.StatusCode,
			"error", err,
		)
	}

	return fmt.Errorf("Gmail API request failed after %d retries: %w", provider.MaxRetries, lastErr)
}

// do performs a single request and decodes a JSON response into out.
func (g *GmailProvider) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("request cancelled: %w", ctx.Err())
		}
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			return fmt.Errorf("failed to refresh access token: %w", err)
		}
		return provider.ClassifyHTTP("Gmail", 0, fmt.Sprintf("HTTP request failed: %v", err), "")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return provider.ClassifyHTTP("Gmail", 0, fmt.Sprintf("failed to read response: %v", err), "")
	}

	if resp.StatusCode != http.StatusOK {
		message := string(respBody)
		var errResp errorResponse
		if jsonErr := json.Unmarshal(respBody, &errResp); jsonErr == nil && errResp.Error.Message != "" {
			message = errResp.Error.Message
		}
		return provider.ClassifyHTTP("Gmail", resp.StatusCode, message, resp.Header.Get("Retry-After"))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

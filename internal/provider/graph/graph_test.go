package graph

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shineum/mailshape/internal/compose"
	"github.com/shineum/mailshape/internal/email"
	"github.com/shineum/mailshape/internal/provider"
)

func newTokenServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := int32(1)
		if calls != nil {
			count = calls.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(tokenResponse{
			AccessToken: "token-" + string(rune('0'+count)),
			ExpiresIn:   3600,
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestProvider(graphServer, tokenServer *httptest.Server) *GraphProvider {
	p := newWithOverrides(
		GraphProviderConfig{Sender: "s@example.com", TenantID: "t", ClientID: "c", ClientSecret: "s"},
		graphServer.URL, tokenServer.URL, graphServer.Client(),
	)
	p.retryDelay = time.Millisecond
	return p
}

func testMessage(t *testing.T) *email.Message {
	t.Helper()
	msg, err := compose.New("s@example.com").Message(email.Fields{
		To:      []string{"user@example.com"},
		Bcc:     []string{"hidden@example.com"},
		Subject: "Prüfung",
		Body:    "Body",
	})
	if err != nil {
		t.Fatalf("failed to compose: %v", err)
	}
	return msg
}

func TestEncodeMIME(t *testing.T) {
	t.Parallel()

	msg := testMessage(t)
	decoded, err := base64.StdEncoding.DecodeString(string(encodeMIME(msg)))
	if err != nil {
		t.Fatalf("body is not base64: %v", err)
	}
	if string(decoded) != msg.Raw {
		t.Errorf("decoded body: got %q, want %q", decoded, msg.Raw)
	}
}

func TestGraphProvider_Name(t *testing.T) {
	t.Parallel()

	p := New(GraphProviderConfig{TenantID: "t", ClientID: "c", ClientSecret: "s", Sender: "s@example.com"})
	if p.Name() != "msgraph" {
		t.Errorf("Name: got %q, want %q", p.Name(), "msgraph")
	}
	if p.graphURL != "https://graph.microsoft.com/v1.0/users/s@example.com/sendMail" {
		t.Errorf("graphURL: got %q", p.graphURL)
	}
}

func TestGraphProvider_SendSuccess(t *testing.T) {
	t.Parallel()

	tokenServer := newTokenServer(t, nil)
	msg := testMessage(t)

	graphServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token-1" {
			t.Errorf("Authorization header: got %q, want %q", r.Header.Get("Authorization"), "Bearer token-1")
		}
		if r.Header.Get("Content-Type") != "text/plain" {
			t.Errorf("Content-Type header: got %q, want %q", r.Header.Get("Content-Type"), "text/plain")
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("failed to read request body: %v", err)
		}
		decoded, err := base64.StdEncoding.DecodeString(string(body))
		if err != nil {
			t.Errorf("request body is not base64: %v", err)
		}
		if string(decoded) != msg.Raw {
			t.Errorf("MIME body: got %q, want %q", decoded, msg.Raw)
		}
		if !strings.Contains(string(decoded), "Subject: =?UTF-8?B?") {
			t.Error("MIME body missing encoded subject")
		}

		w.WriteHeader(http.StatusAccepted)
	}))
	defer graphServer.Close()

	p := newTestProvider(graphServer, tokenServer)
	if err := p.Send(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGraphProvider_PermanentError(t *testing.T) {
	t.Parallel()

	tokenServer := newTokenServer(t, nil)

	var graphCallCount atomic.Int32
	graphServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		graphCallCount.Add(1)
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(graphErrorResponse{
			Error: graphError{Code: "Forbidden", Message: "Insufficient permissions"},
		})
	}))
	defer graphServer.Close()

	p := newTestProvider(graphServer, tokenServer)
	err := p.Send(context.Background(), testMessage(t))
	if err == nil {
		t.Fatal("expected error for 403 response, got nil")
	}

	var apiErr *provider.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *provider.APIError, got %T", err)
	}
	if !apiErr.Permanent {
		t.Error("403 error should be classified as permanent")
	}
	if apiErr.Message != "Insufficient permissions" {
		t.Errorf("Message: got %q, want %q", apiErr.Message, "Insufficient permissions")
	}
	if graphCallCount.Load() != 1 {
		t.Errorf("graph call count: got %d, want 1", graphCallCount.Load())
	}
}

func TestGraphProvider_RetryOn5xx(t *testing.T) {
	t.Parallel()

	tokenServer := newTokenServer(t, nil)

	var graphCallCount atomic.Int32
	graphServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if graphCallCount.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("unavailable"))
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer graphServer.Close()

	p := newTestProvider(graphServer, tokenServer)
	if err := p.Send(context.Background(), testMessage(t)); err != nil {
		t.Fatalf("expected success after retries, got: %v", err)
	}
	if graphCallCount.Load() != 3 {
		t.Errorf("graph call count: got %d, want 3 (2 failures + 1 success)", graphCallCount.Load())
	}
}

func TestGraphProvider_RetriesExhausted(t *testing.T) {
	t.Parallel()

	tokenServer := newTokenServer(t, nil)
	graphServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer graphServer.Close()

	p := newTestProvider(graphServer, tokenServer)
	err := p.Send(context.Background(), testMessage(t))
	if err == nil {
		t.Fatal("expected error after all retries exhausted")
	}
	if !strings.Contains(err.Error(), "after 3 retries") {
		t.Errorf("error message: got %q, want to contain 'after 3 retries'", err.Error())
	}
}

func TestGraphProvider_RetryOn401WithTokenRefresh(t *testing.T) {
	t.Parallel()

	var tokenCallCount atomic.Int32
	tokenServer := newTokenServer(t, &tokenCallCount)

	var graphCallCount atomic.Int32
	graphServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if graphCallCount.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(graphErrorResponse{
				Error: graphError{Code: "Unauthorized", Message: "Token expired"},
			})
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-2" {
			t.Errorf("Authorization after refresh: got %q, want %q", got, "Bearer token-2")
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer graphServer.Close()

	p := newTestProvider(graphServer, tokenServer)
	if err := p.Send(context.Background(), testMessage(t)); err != nil {
		t.Fatalf("expected success after token refresh, got: %v", err)
	}

	if graphCallCount.Load() != 2 {
		t.Errorf("graph call count: got %d, want 2", graphCallCount.Load())
	}
	if tokenCallCount.Load() != 2 {
		t.Errorf("token call count: got %d, want 2", tokenCallCount.Load())
	}
}

func TestGraphProvider_RateLimitWithRetryAfter(t *testing.T) {
	t.Parallel()

	tokenServer := newTokenServer(t, nil)

	var graphCallCount atomic.Int32
	graphServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if graphCallCount.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(graphErrorResponse{
				Error: graphError{Code: "TooManyRequests", Message: "Rate limited"},
			})
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer graphServer.Close()

	p := newTestProvider(graphServer, tokenServer)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := p.Send(ctx, testMessage(t)); err != nil {
		t.Fatalf("expected success after rate limit retry, got: %v", err)
	}
	if graphCallCount.Load() != 2 {
		t.Errorf("graph call count: got %d, want 2", graphCallCount.Load())
	}
}

func TestGraphProvider_ContextCancellation(t *testing.T) {
	t.Parallel()

	tokenServer := newTokenServer(t, nil)
	graphServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer graphServer.Close()

	p := newTestProvider(graphServer, tokenServer)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.Send(ctx, testMessage(t)); err == nil {
		t.Error("expected error for cancelled context, got nil")
	}
}

func TestProviderInterface(t *testing.T) {
	t.Parallel()

	var _ provider.Provider = (*GraphProvider)(nil)
}

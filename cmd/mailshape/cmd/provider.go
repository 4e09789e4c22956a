package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/shineum/mailshape/internal/config"
	"github.com/shineum/mailshape/internal/provider"
	"github.com/shineum/mailshape/internal/provider/gmail"
	"github.com/shineum/mailshape/internal/provider/graph"
	"github.com/shineum/mailshape/internal/provider/ses"
	"github.com/shineum/mailshape/internal/provider/stdout"
)

var errGmailNotConfigured = errors.New("Gmail provider selected but GMAIL_CLIENT_ID, GMAIL_CLIENT_SECRET, and GMAIL_REFRESH_TOKEN are required")

// selectProvider chooses the email delivery backend based on configuration.
// An explicit PROVIDER wins. Otherwise the first configured backend is used
// in Graph, SES, Gmail order, falling back to stdout.
func selectProvider(ctx context.Context, cfg *config.Config, out io.Writer) (provider.Provider, error) {
	switch cfg.Provider {
	case "ses":
		if !cfg.SESConfigured() {
			return nil, errors.New("SES provider selected but SES_REGION and SES_SENDER are required")
		}
		return newSES(ctx, cfg, false)

	case "graph":
		if !cfg.GraphConfigured() {
			return nil, errors.New("Graph provider selected but GRAPH_TENANT_ID, GRAPH_CLIENT_ID, GRAPH_CLIENT_SECRET, and GRAPH_SENDER are required")
		}
		return newGraph(cfg, false), nil

	case "gmail":
		if !cfg.GmailConfigured() {
			return nil, errGmailNotConfigured
		}
		return newGmail(cfg, false), nil

	case "stdout":
		slog.Info("using stdout provider")
		return stdout.NewWithWriter(out), nil

	case "":
		switch {
		case cfg.GraphConfigured():
			return newGraph(cfg, true), nil
		case cfg.SESConfigured():
			return newSES(ctx, cfg, true)
		case cfg.GmailConfigured():
			return newGmail(cfg, true), nil
		}
		slog.Info("no provider configured, using stdout provider")
		return stdout.NewWithWriter(out), nil

	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func newSES(ctx context.Context, cfg *config.Config, detected bool) (provider.Provider, error) {
	slog.Info("using AWS SES provider",
		"region", cfg.SES.Region,
		"sender", cfg.SES.Sender,
		"auto_detected", detected,
	)
	p, err := ses.New(ctx, ses.SESProviderConfig{
		Region:          cfg.SES.Region,
		AccessKeyID:     cfg.SES.AccessKeyID,
		SecretAccessKey: cfg.SES.SecretAccessKey,
		Sender:          cfg.SES.Sender,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create SES provider: %w", err)
	}
	return p, nil
}

func newGraph(cfg *config.Config, detected bool) provider.Provider {
	slog.Info("using Microsoft Graph provider",
		"sender", cfg.Graph.Sender,
		"auto_detected", detected,
	)
	return graph.New(graph.GraphProviderConfig{
		TenantID:     cfg.Graph.TenantID,
		ClientID:     cfg.Graph.ClientID,
		ClientSecret: cfg.Graph.ClientSecret,
		Sender:       cfg.Graph.Sender,
	})
}

func newGmail(cfg *config.Config, detected bool) *gmail.GmailProvider {
	slog.Info("using Gmail provider",
		"user", cfg.Gmail.User,
		"auto_detected", detected,
	)
	return gmail.New(gmail.GmailProviderConfig{
		ClientID:     cfg.Gmail.ClientID,
		ClientSecret: cfg.Gmail.ClientSecret,
		RefreshToken: cfg.Gmail.RefreshToken,
		User:         cfg.Gmail.User,
	})
}

// composeFrom picks the From header value. The configured value wins, then
// the sender of the SES or Graph provider.
func composeFrom(cfg *config.Config, providerName string) string {
	if cfg.Compose.From != "" {
		return cfg.Compose.From
	}
	switch providerName {
	case "ses":
		return cfg.SES.Sender
	case "msgraph":
		return cfg.Graph.Sender
	}
	return ""
}

// Package stdout implements a Provider that prints composed messages to
// standard output.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shineum/mailshape/internal/compose"
	"github.com/shineum/mailshape/internal/email"
)

const separator = "========================================\n"

// Provider prints composed messages between separator lines.
type Provider struct {
	// writer is the output destination, defaulting to os.Stdout.
	writer io.Writer

	// encodeRaw prints the base64url payload instead of the message text.
	encodeRaw bool
}

// New creates a new stdout Provider that writes to os.Stdout.
func New() *Provider {
	return &Provider{writer: os.Stdout}
}

// NewWithWriter creates a new stdout Provider that writes to the given writer.
func NewWithWriter(w io.Writer) *Provider {
	return &Provider{writer: w}
}

// EncodeRaw switches the provider to printing the base64url form of each
// message, as submitted to the Gmail API.
func (p *Provider) EncodeRaw(enabled bool) *Provider {
	p.encodeRaw = enabled
	return p
}

// Send prints the message followed by a recipient and size summary.
func (p *Provider) Send(_ context.Context, msg *email.Message) error {
	var b strings.Builder

	b.WriteString(separator)
	if p.encodeRaw {
		b.WriteString(compose.EncodeRaw(msg.Raw))
	} else {
		b.WriteString(msg.Raw)
	}
	b.WriteString("\n")
	b.WriteString(separator)
	fmt.Fprintf(&b, "Recipients: %d\n", len(msg.Recipients()))
	fmt.Fprintf(&b, "Size: %s\n", formatSize(len(msg.Raw)))
	b.WriteString(separator)

	if _, err := io.WriteString(p.writer, b.String()); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "stdout"
}

// formatSize formats a byte count into a human-readable string.
func formatSize(bytes int) string {
	const (
		kb = 1024
		mb = kb * 1024
	)

	switch {
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

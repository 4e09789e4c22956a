// Package provider defines the interface for delivery backends that submit
// composed messages.
package provider

import (
	"context"

	"github.com/shineum/mailshape/internal/email"
)

// Provider is the interface that delivery backends must implement.
// Each provider submits the composed transport message in msg.Raw to its
// target service.
type Provider interface {
	// Send delivers a composed message through this provider.
	// It returns an error if the delivery fails.
	Send(ctx context.Context, msg *email.Message) error

	// Name returns the human-readable name of this provider.
	Name() string
}

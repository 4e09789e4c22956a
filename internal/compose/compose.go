// Package compose builds plain-text RFC 2822 transport messages from
// structured message fields.
package compose

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/shineum/mailshape/internal/address"
	"github.com/shineum/mailshape/internal/email"
	"github.com/shineum/mailshape/internal/header"
)

// DefaultFrom is the sender placeholder. Mail APIs that send on behalf of
// the authenticated user replace it with the account address.
const DefaultFrom = "me"

const crlf = "\r\n"

// InvalidRecipientError is returned when a To address fails the structural
// address check. No message is produced.
type InvalidRecipientError struct {
	Address string
}

func (e *InvalidRecipientError) Error() string {
	return "recipient email address is invalid: " + e.Address
}

// Composer renders Fields into a transport message.
// A Composer holds no mutable state and is safe for concurrent use.
type Composer struct {
	from     string
	validate *validator.Validate
}

// New creates a Composer that writes from into the From header.
// An empty from falls back to DefaultFrom.
func New(from string) *Composer {
	if from == "" {
		from = DefaultFrom
	}
	return &Composer{
		from:     from,
		validate: address.Validator(),
	}
}

var defaultComposer = New(DefaultFrom)

// Compose renders fields with the default sender placeholder.
func Compose(fields email.Fields) (string, error) {
	return defaultComposer.Compose(fields)
}

// Compose validates the To recipients and renders the message headers and
// body joined with CRLF. Cc and Bcc lines are omitted when empty.
// An empty To list is not rejected and yields an empty To header.
func (c *Composer) Compose(fields email.Fields) (string, error) {
	subject := header.Encode(fields.Subject)

	if err := c.checkRecipients(fields); err != nil {
		return "", err
	}

	lines := make([]string, 0, 10)
	lines = append(lines,
		"From: "+c.from,
		"To: "+strings.Join(fields.To, ", "),
	)
	if len(fields.Cc) > 0 {
		lines = append(lines, "Cc: "+strings.Join(fields.Cc, ", "))
	}
	if len(fields.Bcc) > 0 {
		lines = append(lines, "Bcc: "+strings.Join(fields.Bcc, ", "))
	}
	lines = append(lines,
		"Subject: "+subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"Content-Transfer-Encoding: 7bit",
		"",
		fields.Body,
	)

	return strings.Join(lines, crlf), nil
}

// Message composes fields and pairs the result with its input.
func (c *Composer) Message(fields email.Fields) (*email.Message, error) {
	raw, err := c.Compose(fields)
	if err != nil {
		return nil, err
	}
	return &email.Message{Fields: fields, Raw: raw}, nil
}

// checkRecipients reports the first invalid To address in list order.
func (c *Composer) checkRecipients(fields email.Fields) error {
	err := c.validate.Struct(fields)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		addr, _ := verrs[0].Value().(string)
		return &InvalidRecipientError{Address: addr}
	}
	return fmt.Errorf("failed to validate message fields: %w", err)
}

// EncodeRaw returns msg in the base64url form expected by the Gmail API
// "raw" message field.
func EncodeRaw(msg string) string {
	return base64.URLEncoding.EncodeToString([]byte(msg))
}

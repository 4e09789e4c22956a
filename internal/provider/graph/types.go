// Package graph implements a Provider that sends composed messages via the
// Microsoft Graph API sendMail endpoint in MIME format.
package graph

import (
	"encoding/base64"

	"github.com/shineum/mailshape/internal/email"
)

// mimeContentType is the request content type Graph expects for a base64
// encoded MIME message.
const mimeContentType = "text/plain"

// graphErrorResponse represents an error response from the Graph API.
type graphErrorResponse struct {
	Error graphError `json:"error"`
}

// graphError represents the error detail in a Graph API error response.
type graphError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// encodeMIME converts a composed message into the sendMail MIME request body.
func encodeMIME(msg *email.Message) []byte {
	out := make([]byte, base64.StdEncoding.EncodedLen(len(msg.Raw)))
	base64.StdEncoding.Encode(out, []byte(msg.Raw))
	return out
}

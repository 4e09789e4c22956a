// Package parser reads RFC 5322 messages into MIME part trees shaped like
// the Gmail API message payload.
package parser

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/textproto"
	"sort"

	"github.com/jhillyerd/enmime"

	"github.com/shineum/mailshape/internal/mimepart"
)

// ErrTooLarge is returned by Read when the message exceeds the size limit.
var ErrTooLarge = errors.New("message exceeds size limit")

// Parse parses a raw message into a RawPart tree. Body data is decoded from
// its transfer encoding and stored base64url encoded. Recoverable parse
// problems reported by the MIME reader are logged as warnings.
func Parse(raw []byte) (*mimepart.RawPart, error) {
	root, err := enmime.ReadParts(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return convert(root), nil
}

// Read reads at most maxSize bytes from r and parses them. A non-positive
// maxSize disables the limit.
func Read(r io.Reader, maxSize int64) (*mimepart.RawPart, error) {
	raw, err := ReadAll(r, maxSize)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// ReadAll reads r to the end, failing with ErrTooLarge once more than
// maxSize bytes arrive. A non-positive maxSize disables the limit.
func ReadAll(r io.Reader, maxSize int64) ([]byte, error) {
	if maxSize > 0 {
		r = io.LimitReader(r, maxSize+1)
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}
	if maxSize > 0 && int64(len(raw)) > maxSize {
		return nil, ErrTooLarge
	}
	return raw, nil
}

func convert(p *enmime.Part) *mimepart.RawPart {
	for _, perr := range p.Errors {
		slog.Warn("problem in MIME part",
			"part_id", p.PartID,
			"content_type", p.ContentType,
			"error", perr.Error(),
		)
	}

	body := mimepart.RawBody{
		Size: mimepart.Value(int64(len(p.Content))),
	}
	if len(p.Content) > 0 {
		body.Data = mimepart.Value(base64.URLEncoding.EncodeToString(p.Content))
	}

	raw := &mimepart.RawPart{
		PartID:   mimepart.Value(p.PartID),
		MimeType: mimepart.Value(p.ContentType),
		Filename: mimepart.Value(p.FileName),
		Headers:  mimepart.Value(headerList(p.Header)),
		Body:     mimepart.Value(body),
	}

	var children []*mimepart.RawPart
	for child := p.FirstChild; child != nil; child = child.NextSibling {
		children = append(children, convert(child))
	}
	if len(children) > 0 {
		raw.Parts = mimepart.Value(children)
	}

	return raw
}

// headerList flattens a header map into name/value pairs sorted by name.
// Values of a repeated header keep their original order.
func headerList(h textproto.MIMEHeader) []mimepart.Header {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	list := make([]mimepart.Header, 0, len(h))
	for _, name := range names {
		for _, value := range h[name] {
			list = append(list, mimepart.Header{Name: name, Value: value})
		}
	}
	return list
}

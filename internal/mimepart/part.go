// Package mimepart converts MIME part trees as returned by a mail store API
// into a canonical tree where missing values have a single representation.
package mimepart

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Header is a single message header in its original order.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// RawPart is a MIME part node as produced by the Gmail API. Every field can
// be missing or explicitly null.
type RawPart struct {
	PartID   Nullable[string]     `json:"partId,omitzero"`
	MimeType Nullable[string]     `json:"mimeType,omitzero"`
	Filename Nullable[string]     `json:"filename,omitzero"`
	Headers  Nullable[[]Header]   `json:"headers,omitzero"`
	Body     Nullable[RawBody]    `json:"body,omitzero"`
	Parts    Nullable[[]*RawPart] `json:"parts,omitzero"`
}

// RawBody describes the content of a RawPart.
type RawBody struct {
	AttachmentID Nullable[string] `json:"attachmentId,omitzero"`
	Size         Nullable[int64]  `json:"size,omitzero"`
	Data         Nullable[string] `json:"data,omitzero"`
}

// Part is the canonical form of a MIME part. A nil field is absent; there
// is no separate null state.
type Part struct {
	PartID   *string  `json:"partId,omitzero"`
	MimeType *string  `json:"mimeType,omitzero"`
	Filename *string  `json:"filename,omitzero"`
	Headers  []Header `json:"headers,omitzero"`
	Body     *Body    `json:"body,omitzero"`
	Parts    []*Part  `json:"parts,omitzero"`
}

// Body is the canonical part body.
type Body struct {
	AttachmentID *string `json:"attachmentId,omitzero"`
	Size         *int64  `json:"size,omitzero"`
	Data         *string `json:"data,omitzero"`
}

// Adapt converts node and all of its descendants into canonical parts.
// The tree shape is kept exactly: children are neither merged, dropped nor
// reordered. The input must be a finite tree.
func Adapt(node *RawPart) *Part {
	if node == nil {
		return nil
	}

	p := &Part{
		PartID:   node.PartID.Ptr(),
		MimeType: node.MimeType.Ptr(),
		Filename: node.Filename.Ptr(),
	}

	if headers, ok := node.Headers.Get(); ok {
		p.Headers = slices.Clone(headers)
	}

	if body, ok := node.Body.Get(); ok {
		p.Body = &Body{
			AttachmentID: body.AttachmentID.Ptr(),
			Size:         body.Size.Ptr(),
			Data:         body.Data.Ptr(),
		}
	}

	if children, ok := node.Parts.Get(); ok && children != nil {
		p.Parts = make([]*Part, len(children))
		for i, child := range children {
			p.Parts[i] = Adapt(child)
		}
	}

	return p
}

// Raw re-expresses p as a RawPart, writing absent values as explicit nulls.
func (p *Part) Raw() *RawPart {
	if p == nil {
		return nil
	}

	r := &RawPart{
		PartID:   fromPtr(p.PartID),
		MimeType: fromPtr(p.MimeType),
		Filename: fromPtr(p.Filename),
		Headers:  Null[[]Header](),
		Body:     Null[RawBody](),
		Parts:    Null[[]*RawPart](),
	}

	if p.Headers != nil {
		r.Headers = Value(slices.Clone(p.Headers))
	}
	if p.Body != nil {
		r.Body = Value(RawBody{
			AttachmentID: fromPtr(p.Body.AttachmentID),
			Size:         fromPtr(p.Body.Size),
			Data:         fromPtr(p.Body.Data),
		})
	}
	if p.Parts != nil {
		children := make([]*RawPart, len(p.Parts))
		for i, child := range p.Parts {
			children[i] = child.Raw()
		}
		r.Parts = Value(children)
	}

	return r
}

// ParseJSON decodes either a Gmail message resource, using its payload, or
// a bare message part.
func ParseJSON(data []byte) (*RawPart, error) {
	var envelope struct {
		Payload *RawPart `json:"payload"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse message part: %w", err)
	}
	if envelope.Payload != nil {
		return envelope.Payload, nil
	}

	var part RawPart
	if err := json.Unmarshal(data, &part); err != nil {
		return nil, fmt.Errorf("failed to parse message part: %w", err)
	}
	return &part, nil
}

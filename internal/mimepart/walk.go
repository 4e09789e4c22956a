package mimepart

import (
	"fmt"
	"io"
	"strings"
)

// Walk visits p and its descendants in pre-order. fn receives each part and
// its depth, with the root at depth 0. Returning false skips the children
// of that part.
func Walk(p *Part, fn func(part *Part, depth int) bool) {
	walk(p, 0, fn)
}

func walk(p *Part, depth int, fn func(*Part, int) bool) {
	if p == nil {
		return
	}
	if !fn(p, depth) {
		return
	}
	for _, child := range p.Parts {
		walk(child, depth+1, fn)
	}
}

// Count returns the number of parts in the tree rooted at p.
func Count(p *Part) int {
	n := 0
	Walk(p, func(*Part, int) bool {
		n++
		return true
	})
	return n
}

// Fprint writes an indented outline of the tree, one part per line.
func Fprint(w io.Writer, p *Part) error {
	var b strings.Builder
	Walk(p, func(part *Part, depth int) bool {
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString(deref(part.PartID, "-"))
		b.WriteString(" ")
		b.WriteString(deref(part.MimeType, "unknown"))
		if name := deref(part.Filename, ""); name != "" {
			fmt.Fprintf(&b, " %q", name)
		}
		if part.Body != nil {
			switch {
			case part.Body.AttachmentID != nil:
				fmt.Fprintf(&b, " [attachment %s]", *part.Body.AttachmentID)
			case part.Body.Size != nil:
				fmt.Fprintf(&b, " [%d bytes]", *part.Body.Size)
			}
		}
		b.WriteString("\n")
		return true
	})

	_, err := io.WriteString(w, b.String())
	return err
}

func deref(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}

package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"github.com/shineum/mailshape/internal/mimepart"
	"github.com/shineum/mailshape/internal/parser"
)

type partsOptions struct {
	gmailID string
	format  string
}

func newPartsCmd(a *app) *cobra.Command {
	var opts partsOptions

	cmd := &cobra.Command{
		Use:   "parts [file]",
		Short: "Print the canonical MIME part tree of a message",
		Long: `Parts reads a message and prints its part tree in canonical form.

The input is a Gmail API message resource or bare part in JSON, or an
RFC 5322 message. Use "-" or no argument to read stdin, or --gmail-id to
fetch the message through the Gmail API.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runParts(cmd, args, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.gmailID, "gmail-id", "", "fetch this message id from the Gmail API")
	f.StringVar(&opts.format, "format", "json", "output format: json, tree or spew")

	return cmd
}

func (a *app) runParts(cmd *cobra.Command, args []string, opts partsOptions) error {
	var (
		raw *mimepart.RawPart
		err error
	)

	switch {
	case opts.gmailID != "":
		if len(args) > 0 {
			return errors.New("a file argument cannot be combined with --gmail-id")
		}
		if !a.cfg.GmailConfigured() {
			return errGmailNotConfigured
		}
		raw, err = newGmail(a.cfg, false).FetchPayload(cmd.Context(), opts.gmailID)
	default:
		path := "-"
		if len(args) > 0 {
			path = args[0]
		}
		raw, err = readParts(path, cmd.InOrStdin(), a.cfg.Parts.MaxMessageSize)
	}
	if err != nil {
		return err
	}

	return writeParts(cmd.OutOrStdout(), mimepart.Adapt(raw), opts.format)
}

// readParts loads a part tree from path, or from stdin when path is "-".
// Input starting with '{' is decoded as JSON, anything else is parsed as
// an RFC 5322 message.
func readParts(path string, stdin io.Reader, maxSize int64) (*mimepart.RawPart, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open message: %w", err)
		}
		defer f.Close()
		r = f
	}

	data, err := parser.ReadAll(r, maxSize)
	if err != nil {
		return nil, err
	}

	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		return mimepart.ParseJSON(trimmed)
	}
	return parser.Parse(data)
}

// writeParts renders p in the requested format.
func writeParts(w io.Writer, p *mimepart.Part, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	case "tree":
		return mimepart.Fprint(w, p)
	case "spew":
		spew.Fdump(w, p)
		return nil
	default:
		return fmt.Errorf("unknown format %q, want json, tree or spew", format)
	}
}

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/shineum/mailshape/internal/compose"
	"github.com/shineum/mailshape/internal/email"
	"github.com/shineum/mailshape/internal/provider/stdout"
)

type composeOptions struct {
	fieldsFile string
	to         []string
	cc         []string
	bcc        []string
	subject    string
	body       string
	bodyFile   string
	send       bool
	raw        bool
}

func newComposeCmd(a *app) *cobra.Command {
	var opts composeOptions

	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Compose a message and print or deliver it",
		Long: `Compose builds a CRLF delimited plain text message from the given fields.

Fields may come from a YAML file (--fields) and are overridden by flags.
Without --send the message is printed; --raw prints it base64url encoded
as the Gmail API expects. With --send it is delivered through the
configured provider, and --raw applies to the stdout provider.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCompose(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.fieldsFile, "fields", "", "YAML file with to, cc, bcc, subject and body")
	f.StringSliceVar(&opts.to, "to", nil, "primary recipient (repeatable)")
	f.StringSliceVar(&opts.cc, "cc", nil, "carbon copy recipient (repeatable)")
	f.StringSliceVar(&opts.bcc, "bcc", nil, "blind carbon copy recipient (repeatable)")
	f.StringVar(&opts.subject, "subject", "", "subject line")
	f.StringVar(&opts.body, "body", "", "message body")
	f.StringVar(&opts.bodyFile, "body-file", "", "read the message body from a file, - for stdin")
	f.BoolVar(&opts.send, "send", false, "deliver the message instead of printing it")
	f.BoolVar(&opts.raw, "raw", false, "print the base64url encoded message")
	cmd.MarkFlagsMutuallyExclusive("body", "body-file")

	return cmd
}

func (a *app) runCompose(cmd *cobra.Command, opts composeOptions) error {
	fields, err := loadFields(opts, cmd.Flags().Changed, cmd.InOrStdin())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if !opts.send {
		raw, err := compose.New(composeFrom(a.cfg, "")).Compose(fields)
		if err != nil {
			return err
		}
		if opts.raw {
			raw = compose.EncodeRaw(raw)
		}
		_, err = fmt.Fprintln(out, raw)
		return err
	}

	prov, err := selectProvider(cmd.Context(), a.cfg, out)
	if err != nil {
		return err
	}
	if sp, ok := prov.(*stdout.Provider); ok {
		sp.EncodeRaw(opts.raw)
	}

	msg, err := compose.New(composeFrom(a.cfg, prov.Name())).Message(fields)
	if err != nil {
		return err
	}

	if err := prov.Send(cmd.Context(), msg); err != nil {
		return fmt.Errorf("failed to send message via %s: %w", prov.Name(), err)
	}
	return nil
}

// loadFields reads the optional fields file and applies every flag the
// user set on top of it.
func loadFields(opts composeOptions, changed func(string) bool, stdin io.Reader) (email.Fields, error) {
	var fields email.Fields

	if opts.fieldsFile != "" {
		data, err := os.ReadFile(opts.fieldsFile)
		if err != nil {
			return fields, fmt.Errorf("failed to read fields file: %w", err)
		}
		if err := yaml.Unmarshal(data, &fields); err != nil {
			return fields, fmt.Errorf("failed to parse fields file: %w", err)
		}
	}

	if changed("to") {
		fields.To = opts.to
	}
	if changed("cc") {
		fields.Cc = opts.cc
	}
	if changed("bcc") {
		fields.Bcc = opts.bcc
	}
	if changed("subject") {
		fields.Subject = opts.subject
	}
	if changed("body") {
		fields.Body = opts.body
	}
	if opts.bodyFile != "" {
		body, err := readBody(opts.bodyFile, stdin)
		if err != nil {
			return fields, err
		}
		fields.Body = body
	}

	return fields, nil
}

// readBody reads the body from path, or from stdin when path is "-".
func readBody(path string, stdin io.Reader) (string, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("failed to open body file: %w", err)
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}
	return string(data), nil
}

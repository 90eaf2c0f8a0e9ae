package main

import (
	"os"

	"github.com/spf13/cobra"

	"m365/internal/channel"
	"m365/internal/foreach"
)

var outlookCmd = &cobra.Command{
	Use:   "outlook",
	Short: "Run a single mail operation outside a chain",
	Long: `Invoke one mail operation directly. The operation reads a record list
from stdin when piped and writes its record list to stdout, so single
operations still compose with shell pipes:

  m365 outlook search_emails --query invoice | m365 outlook save_emails --dst out`,
}

func init() {
	for _, op := range []struct{ name, short string }{
		{"search_emails", "Search mailbox messages"},
		{"send_email", "Send a message, optionally with file attachments"},
		{"reply_emails", "Reply to each input message"},
		{"forward_emails", "Forward each input message"},
		{"save_emails", "Save each input message as a .eml file"},
		{"search_attachments", "Search messages and emit one record per attachment"},
		{"save_attachments", "Download each input attachment to disk"},
	} {
		outlookCmd.AddCommand(singleOpCommand(op.name, op.short))
	}
}

// singleOpCommand wraps one built-in as a cobra subcommand. Flag parsing is
// disabled so stage flags like --query reach the operation's own parser.
func singleOpCommand(op, short string) *cobra.Command {
	return &cobra.Command{
		Use:                op,
		Short:              short,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSingleOp(cmd, op, args)
		},
	}
}

func runSingleOp(cmd *cobra.Command, op string, args []string) error {
	reg, err := buildRegistry(cmd.Context(), cfg, &foreach.Options{})
	if err != nil {
		return err
	}
	cap, ok := reg.Lookup(op)
	if !ok {
		return &unknownOpError{op}
	}

	input, err := readStdinList()
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	out, err := cap(ctx, args, input)
	if err != nil {
		return err
	}
	return channel.Encode(os.Stdout, out)
}

type unknownOpError struct{ op string }

func (e *unknownOpError) Error() string { return "unknown operation " + e.op }

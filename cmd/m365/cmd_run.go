package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"m365/internal/channel"
	"m365/internal/foreach"
	"m365/internal/logging"
	"m365/internal/orchestrate"
	"m365/internal/pipeline"
)

var runFlags struct {
	failFast bool
	parallel int
	summary  bool
	dryRun   bool
}

var runCmd = &cobra.Command{
	Use:   "run <chain>",
	Short: "Compose and execute a pipeline chain",
	Long: `Run a pipeline chain. Stages are separated by '>' and a '%' token binds
the previous stage's output as a stage's input:

  m365 run 'search_attachments --query invoice > save_attachments % --dst out'
  m365 run 'search_emails --query release > for_each % ./notify.sh'

Quote the whole chain so the shell does not interpret '>'. The aggregate
record list is written to stdout as a JSON array; logs and summaries go to
stderr.

Exit codes: 0 success, 1 partial record failures, 2 all records failed,
3 composition or resolution error, 130 cancelled.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.BoolVar(&runFlags.failFast, "fail-fast", false, "Stop for_each at the first record failure")
	f.IntVar(&runFlags.parallel, "parallel", 1, "Max concurrent for_each invocations")
	f.BoolVar(&runFlags.summary, "summary", false, "Write a failure summary to stderr")
	f.BoolVar(&runFlags.dryRun, "dry-run", false, "Compose and validate the chain without executing")
	f.SetInterspersed(false)
}

func runRun(cmd *cobra.Command, args []string) error {
	tokens := args
	if len(args) == 1 {
		var err error
		tokens, err = pipeline.SplitChain(args[0])
		if err != nil {
			exitCode = orchestrate.ExitCodeFor(err)
			return err
		}
	}

	feOpts := &foreach.Options{
		FailFast: runFlags.failFast,
		Parallel: runFlags.parallel,
		Logger:   logging.New("foreach"),
	}
	reg, err := buildRegistry(cmd.Context(), cfg, feOpts)
	if err != nil {
		return err
	}

	pipe, err := pipeline.Compose(tokens, reg)
	if err != nil {
		exitCode = orchestrate.ExitCodeFor(err)
		return err
	}
	if err := orchestrate.Preflight(pipe); err != nil {
		exitCode = orchestrate.ExitCodeFor(err)
		return err
	}

	if runFlags.dryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "pipeline ok: %d stages\n", len(pipe))
		return nil
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	runner := &orchestrate.Runner{Registry: reg, Logger: logging.New("runner")}
	res, err := runner.Run(ctx, pipe)
	if err != nil {
		exitCode = orchestrate.ExitCodeFor(err)
		return err
	}

	if err := channel.Encode(os.Stdout, res.Output); err != nil {
		return err
	}
	if runFlags.summary {
		res.WriteSummary(os.Stderr)
	}
	exitCode = res.ExitCode
	return nil
}

// Package orchestrate executes a composed pipeline: it resolves each stage
// through the operation registry, threads every stage's output list into the
// next stage that bound '%', and folds for_each outcomes into the overall
// exit status.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"m365/internal/foreach"
	"m365/internal/invoke"
	"m365/internal/logging"
	"m365/internal/object"
	"m365/internal/pipeline"
)

// Process exit codes. 130 follows the shell convention for SIGINT.
const (
	ExitOK        = 0
	ExitPartial   = 1
	ExitAllFailed = 2
	ExitSetup     = 3
	ExitCancelled = 130
)

// ForEachOp is the operation name of the batch operator.
const ForEachOp = "for_each"

// ForEachError carries a for_each outcome that had failures, skips, or a
// cancellation. The partial aggregate output is still returned alongside it.
type ForEachError struct {
	Outcome *foreach.Outcome
}

func (e *ForEachError) Error() string {
	o := e.Outcome
	if o.Cancelled {
		return fmt.Sprintf("for_each cancelled: %d of %d records processed", o.Succeeded(), o.Total)
	}
	return fmt.Sprintf("for_each: %d of %d records failed", o.FailedCount(), o.Total)
}

// ForEachCapability adapts the batch executor to the uniform capability
// shape. The first argument is the script path; the rest are the script's
// fixed arguments. Options are read through the pointer at invocation time
// so CLI flags set after registration still apply.
func ForEachCapability(opts *foreach.Options) invoke.Capability {
	return func(ctx context.Context, args []string, input object.List) (object.List, error) {
		if len(args) == 0 {
			return nil, fmt.Errorf("%s: script argument required", ForEachOp)
		}
		script, fixed := args[0], args[1:]
		if !invoke.IsScript(script) {
			return nil, &pipeline.ResolutionError{Op: script}
		}

		outcome := foreach.Run(ctx, input, invoke.Script(script), fixed, *opts)
		flat := outcome.Output.Flatten()
		if outcome.Cancelled || len(outcome.Failures) > 0 {
			return flat, &ForEachError{Outcome: outcome}
		}
		return flat, nil
	}
}

// Runner executes pipelines against a registry.
type Runner struct {
	Registry *invoke.Registry
	Logger   *slog.Logger
}

// Result is the terminal state of a pipeline run: the final aggregate list,
// the ordered failure manifest collected from for_each stages, and the
// process exit code.
type Result struct {
	Output   object.List
	Failures []foreach.Failure
	ExitCode int
}

// Run executes the pipeline strictly in order. Per-record failures inside
// for_each are folded into the Result; everything else (decode errors, API
// errors, script failures outside for_each) aborts with an error naming the
// failing stage.
func (r *Runner) Run(ctx context.Context, pipe pipeline.Pipeline) (*Result, error) {
	log := r.Logger
	if log == nil {
		log = logging.New("runner")
	}

	res := &Result{ExitCode: ExitOK}
	var current object.List

	for _, stage := range pipe {
		cap, ok := r.Registry.Lookup(stage.Op)
		if !ok {
			return nil, &pipeline.ResolutionError{Stage: stage.Index, Op: stage.Op}
		}

		var input object.List
		if stage.PipeInput {
			input = current
		}

		log.Info("stage start", "index", stage.Index, "op", stage.Op, "records_in", len(input))
		out, err := cap(ctx, stage.Args, input)
		if err != nil {
			var fe *ForEachError
			if errors.As(err, &fe) {
				res.Failures = append(res.Failures, fe.Outcome.Failures...)
				current = out

				switch {
				case fe.Outcome.Cancelled:
					res.Output = current
					res.ExitCode = ExitCancelled
					return res, nil
				case fe.Outcome.Total > 0 && fe.Outcome.FailedCount() == fe.Outcome.Total:
					res.ExitCode = ExitAllFailed
				default:
					if res.ExitCode == ExitOK {
						res.ExitCode = ExitPartial
					}
				}

				if fe.Outcome.Stopped {
					res.Output = current
					return res, nil
				}
				continue
			}

			if ctx.Err() != nil {
				res.Output = current
				res.ExitCode = ExitCancelled
				return res, nil
			}
			return nil, fmt.Errorf("stage %d (%s): %w", stage.Index, stage.Op, err)
		}

		log.Info("stage done", "index", stage.Index, "op", stage.Op, "records_out", len(out))
		current = out
	}

	res.Output = current
	return res, nil
}

// ExitCodeFor maps an error from composition or execution to the process
// exit code. Structural errors (bad chain, unknown operation) exit 3 with
// zero side effects; everything else is a generic stage failure.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}
	var cerr *pipeline.CompositionError
	var rerr *pipeline.ResolutionError
	if errors.As(err, &cerr) || errors.As(err, &rerr) {
		return ExitSetup
	}
	if errors.Is(err, context.Canceled) {
		return ExitCancelled
	}
	return ExitPartial
}

// Package foreach applies an external script to every record of a list, one
// child process per record. Records are independent units of work, so a
// failing invocation is isolated to its record and the batch continues by
// default; fail-fast stops at the first failure for destructive or ordered
// workloads. The aggregate output always preserves the input record order.
//
// Each invocation receives its record as a one-element list on stdin in the
// channel encoding, followed by the script's fixed arguments. This delivery
// contract is stable; scripts written against it keep working.
package foreach

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"m365/internal/invoke"
	"m365/internal/logging"
	"m365/internal/object"
)

// Failure kinds in the manifest. A skipped record was never run to
// completion (cancellation, or fail-fast stopping the batch); it is not a
// failure of the record itself.
const (
	KindFailed  = "failed"
	KindSkipped = "skipped"
)

// Failure is one manifest entry, tied to the record's identifying fields so
// a human or script can act on it without the executor's internal state.
type Failure struct {
	Index    int    `json:"index"`
	Identity string `json:"identity"`
	Kind     string `json:"kind"`
	Reason   string `json:"reason"`
}

// Options configure one batch run.
type Options struct {
	// FailFast stops the batch at the first record failure and marks the
	// remaining records skipped.
	FailFast bool
	// Parallel caps concurrent invocations. Values <= 1 run strictly
	// sequentially: record i+1 starts only after record i returns.
	Parallel int
	Logger   *slog.Logger
}

// Outcome is the terminal state of a batch: the aggregate output (per-record
// script outputs concatenated in input order, failed invocations' partial
// output discarded), the ordered failure manifest, and whether the batch was
// cancelled mid-run.
type Outcome struct {
	Output    Lists
	Failures  []Failure
	Total     int
	Cancelled bool
	// Stopped is set when fail-fast tripped and the batch did not run to
	// the end of the input.
	Stopped bool
}

// Lists is the per-record output buffer; Flatten concatenates it in record
// order.
type Lists []object.List

// Flatten concatenates the per-record outputs, preserving input order.
func (l Lists) Flatten() object.List {
	out := object.List{}
	for _, part := range l {
		out = append(out, part...)
	}
	return out
}

// Succeeded counts records that ran to completion without failure.
func (o *Outcome) Succeeded() int {
	return o.Total - len(o.Failures)
}

// FailedCount counts manifest entries of kind failed (not skipped).
func (o *Outcome) FailedCount() int {
	n := 0
	for _, f := range o.Failures {
		if f.Kind == KindFailed {
			n++
		}
	}
	return n
}

// Run applies unit once per record of input, in order. The unit is invoked
// with the fixed args and a one-element list holding the record. Run never
// returns an error for per-record failures; inspect the Outcome.
func Run(ctx context.Context, input object.List, unit invoke.Capability, args []string, opts Options) *Outcome {
	log := opts.Logger
	if log == nil {
		log = logging.New("foreach")
	}

	out := &Outcome{
		Output: make(Lists, len(input)),
		Total:  len(input),
	}
	if len(input) == 0 {
		return out
	}

	if opts.Parallel > 1 {
		runParallel(ctx, input, unit, args, opts, log, out)
	} else {
		runSequential(ctx, input, unit, args, opts, log, out)
	}
	return out
}

func runSequential(ctx context.Context, input object.List, unit invoke.Capability, args []string, opts Options, log *slog.Logger, out *Outcome) {
	for i, rec := range input {
		if ctx.Err() != nil {
			out.Cancelled = true
			skipFrom(out, input, i, "cancelled before start")
			return
		}

		result, err := unit(ctx, args, object.List{rec})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				out.Cancelled = true
				out.Failures = append(out.Failures, Failure{
					Index:    i,
					Identity: rec.IdentityString(i),
					Kind:     KindSkipped,
					Reason:   "cancelled while running",
				})
				skipFrom(out, input, i+1, "cancelled before start")
				return
			}

			log.Warn("record failed", "index", i, "record", rec.IdentityString(i), "error", err)
			out.Failures = append(out.Failures, Failure{
				Index:    i,
				Identity: rec.IdentityString(i),
				Kind:     KindFailed,
				Reason:   err.Error(),
			})
			if opts.FailFast {
				out.Stopped = true
				skipFrom(out, input, i+1, "fail-fast after earlier failure")
				return
			}
			continue
		}

		out.Output[i] = result
		log.Debug("record done", "index", i, "records_out", len(result))
	}
}

func runParallel(ctx context.Context, input object.List, unit invoke.Capability, args []string, opts Options, log *slog.Logger, out *Outcome) {
	gctx := ctx
	group, gctx := errgroup.WithContext(gctx)
	group.SetLimit(opts.Parallel)

	type recResult struct {
		output object.List
		err    error
		ran    bool
	}
	results := make([]recResult, len(input))

	for i, rec := range input {
		if gctx.Err() != nil {
			break
		}
		group.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			result, err := unit(gctx, args, object.List{rec})
			results[i] = recResult{output: result, err: err, ran: true}
			if err != nil && opts.FailFast {
				// Cancel the group so unstarted records stay skipped.
				return err
			}
			return nil
		})
	}
	_ = group.Wait()

	cancelled := ctx.Err() != nil

	// Fold indexed results into the ordered manifest and output buffer, so
	// the aggregate reflects input order rather than completion order.
	for i, rec := range input {
		r := results[i]
		switch {
		case !r.ran:
			reason := "fail-fast after earlier failure"
			if cancelled {
				reason = "cancelled before start"
			}
			out.Failures = append(out.Failures, Failure{
				Index:    i,
				Identity: rec.IdentityString(i),
				Kind:     KindSkipped,
				Reason:   reason,
			})
		case r.err != nil:
			if errors.Is(r.err, context.Canceled) || errors.Is(r.err, context.DeadlineExceeded) {
				out.Failures = append(out.Failures, Failure{
					Index:    i,
					Identity: rec.IdentityString(i),
					Kind:     KindSkipped,
					Reason:   "cancelled while running",
				})
				break
			}
			log.Warn("record failed", "index", i, "record", rec.IdentityString(i), "error", r.err)
			out.Failures = append(out.Failures, Failure{
				Index:    i,
				Identity: rec.IdentityString(i),
				Kind:     KindFailed,
				Reason:   r.err.Error(),
			})
		default:
			out.Output[i] = r.output
		}
	}
	out.Cancelled = cancelled
	if opts.FailFast && !cancelled && out.FailedCount() > 0 {
		out.Stopped = true
	}
}

func skipFrom(out *Outcome, input object.List, start int, reason string) {
	for i := start; i < len(input); i++ {
		out.Failures = append(out.Failures, Failure{
			Index:    i,
			Identity: input[i].IdentityString(i),
			Kind:     KindSkipped,
			Reason:   reason,
		})
	}
}

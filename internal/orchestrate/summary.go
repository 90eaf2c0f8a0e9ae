package orchestrate

import (
	"fmt"
	"io"

	"m365/internal/foreach"
	"m365/internal/invoke"
	"m365/internal/pipeline"
)

// Preflight validates what the composer cannot: that every for_each stage
// names an existing executable script. It runs before any stage executes, so
// a bad script path aborts with zero side effects.
func Preflight(pipe pipeline.Pipeline) error {
	for _, stage := range pipe {
		if stage.Op != ForEachOp {
			continue
		}
		if len(stage.Args) == 0 {
			return &pipeline.CompositionError{Stage: stage.Index, Msg: "for_each needs a script argument"}
		}
		if !invoke.IsScript(stage.Args[0]) {
			return &pipeline.ResolutionError{Stage: stage.Index, Op: stage.Args[0]}
		}
	}
	return nil
}

// WriteSummary renders a human-readable account of the run to w (stderr in
// practice): how many records made it, then one line per manifest entry.
func (r *Result) WriteSummary(w io.Writer) {
	if len(r.Failures) == 0 {
		fmt.Fprintf(w, "%d records, no failures\n", len(r.Output))
		return
	}

	failed, skipped := 0, 0
	for _, f := range r.Failures {
		switch f.Kind {
		case foreach.KindSkipped:
			skipped++
		default:
			failed++
		}
	}
	fmt.Fprintf(w, "%d records out, %d failed, %d skipped\n", len(r.Output), failed, skipped)
	for _, f := range r.Failures {
		fmt.Fprintf(w, "  [%d] %s %s: %s\n", f.Index, f.Kind, f.Identity, f.Reason)
	}
}

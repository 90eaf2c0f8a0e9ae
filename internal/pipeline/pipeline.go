// Package pipeline turns the chain syntax into an ordered stage sequence.
//
// Grammar:
//
//	pipeline := stage ('>' stage)*
//	stage    := operation arg*
//	arg      := literal | '%'
//
// A '%' token binds the previous stage's output list as the stage's input.
// The binding is structural and resolved at composition time; no stage runs
// until the whole chain has parsed and every operation name has resolved.
package pipeline

import (
	"fmt"
	"strings"
)

// ChainSep separates stages in the chain syntax.
const ChainSep = ">"

// PipeToken binds the previous stage's output as a stage's input.
const PipeToken = "%"

// Stage is one operation invocation in a pipeline: the operation name, its
// literal arguments, and whether it consumes the previous stage's output.
type Stage struct {
	Op        string
	Args      []string
	PipeInput bool
	Index     int
}

// Pipeline is the ordered stage sequence built from one chain. Execution is
// strictly in order; there is no branching and no cycle.
type Pipeline []Stage

// Resolver reports whether an operation name is known. The composer rejects
// unknown names before anything runs.
type Resolver interface {
	Has(name string) bool
}

// CompositionError is bad pipeline syntax: an empty stage, a '%' with no
// preceding stage, or a '%' used more than once in one stage. It is fatal
// before execution; no operation is ever invoked.
type CompositionError struct {
	Stage int
	Msg   string
}

func (e *CompositionError) Error() string {
	return fmt.Sprintf("compose stage %d: %s", e.Stage, e.Msg)
}

// ResolutionError is an operation name that no registry entry serves. Like
// CompositionError it is fatal before execution.
type ResolutionError struct {
	Stage int
	Op    string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("stage %d: unknown operation %q", e.Stage, e.Op)
}

// Compose parses tokens into a Pipeline and validates every operation name
// against the resolver. The returned slice length equals the number of
// chained segments.
func Compose(tokens []string, resolver Resolver) (Pipeline, error) {
	segments := splitSegments(tokens)
	if len(segments) == 0 {
		return nil, &CompositionError{Stage: 0, Msg: "empty pipeline"}
	}

	var pipe Pipeline
	for i, seg := range segments {
		if len(seg) == 0 {
			return nil, &CompositionError{Stage: i, Msg: "empty stage"}
		}
		stage := Stage{Op: seg[0], Index: i}
		for _, tok := range seg[1:] {
			if tok == PipeToken {
				if i == 0 {
					return nil, &CompositionError{Stage: 0, Msg: "'%' has no preceding stage"}
				}
				if stage.PipeInput {
					return nil, &CompositionError{Stage: i, Msg: "'%' used more than once"}
				}
				stage.PipeInput = true
				continue
			}
			stage.Args = append(stage.Args, tok)
		}
		pipe = append(pipe, stage)
	}

	for _, stage := range pipe {
		if !resolver.Has(stage.Op) {
			return nil, &ResolutionError{Stage: stage.Index, Op: stage.Op}
		}
	}
	return pipe, nil
}

func splitSegments(tokens []string) [][]string {
	if len(tokens) == 0 {
		return nil
	}
	var segs [][]string
	cur := []string{}
	for _, tok := range tokens {
		if tok == ChainSep {
			segs = append(segs, cur)
			cur = []string{}
			continue
		}
		cur = append(cur, tok)
	}
	return append(segs, cur)
}

// SplitChain tokenizes a single-string chain, honoring single and double
// quotes so queries with spaces survive:
//
//	search_emails --query "foo bar" > save_emails %
func SplitChain(chain string) ([]string, error) {
	var tokens []string
	var cur strings.Builder
	inToken := false
	var quote rune

	flush := func() {
		if inToken {
			tokens = append(tokens, cur.String())
			cur.Reset()
			inToken = false
		}
	}

	for _, r := range chain {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inToken = true
		case r == ' ' || r == '\t' || r == '\n':
			flush()
		default:
			cur.WriteRune(r)
			inToken = true
		}
	}
	if quote != 0 {
		return nil, &CompositionError{Stage: 0, Msg: "unterminated quote in chain"}
	}
	flush()
	return tokens, nil
}

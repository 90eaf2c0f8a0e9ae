package pipeline

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type mapResolver map[string]bool

func (m mapResolver) Has(name string) bool { return m[name] }

var ops = mapResolver{
	"search_attachments": true,
	"save_attachments":   true,
	"search_emails":      true,
	"for_each":           true,
	"./process.py":       true,
}

func TestCompose_ChainLength(t *testing.T) {
	tokens := []string{
		"search_attachments", "--query", "invoice",
		">", "save_attachments", "%", "--dst", "out",
		">", "for_each", "%", "./process.py",
	}
	pipe, err := Compose(tokens, ops)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if len(pipe) != 3 {
		t.Fatalf("got %d stages, want 3", len(pipe))
	}

	want := Pipeline{
		{Op: "search_attachments", Args: []string{"--query", "invoice"}, Index: 0},
		{Op: "save_attachments", Args: []string{"--dst", "out"}, PipeInput: true, Index: 1},
		{Op: "for_each", Args: []string{"./process.py"}, PipeInput: true, Index: 2},
	}
	if diff := cmp.Diff(want, pipe); diff != "" {
		t.Errorf("pipeline mismatch (-want +got):\n%s", diff)
	}
}

func TestCompose_SingleStage(t *testing.T) {
	pipe, err := Compose([]string{"search_emails", "--query", "x"}, ops)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if len(pipe) != 1 || pipe[0].PipeInput {
		t.Errorf("unexpected pipeline: %#v", pipe)
	}
}

func TestCompose_PipeInFirstStage(t *testing.T) {
	_, err := Compose([]string{"save_attachments", "%"}, ops)
	var cerr *CompositionError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *CompositionError, got %v", err)
	}
	if cerr.Stage != 0 {
		t.Errorf("error stage = %d, want 0", cerr.Stage)
	}
}

func TestCompose_DoublePipe(t *testing.T) {
	_, err := Compose([]string{"search_emails", ">", "save_attachments", "%", "%"}, ops)
	var cerr *CompositionError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *CompositionError, got %v", err)
	}
}

func TestCompose_EmptyStage(t *testing.T) {
	cases := [][]string{
		{"search_emails", ">"},
		{">", "search_emails"},
		{"search_emails", ">", ">", "for_each", "%"},
		{},
	}
	for _, tokens := range cases {
		if _, err := Compose(tokens, ops); err == nil {
			t.Errorf("Compose(%v): expected error", tokens)
		}
	}
}

func TestCompose_UnknownOperation(t *testing.T) {
	_, err := Compose([]string{"search_emails", ">", "frobnicate", "%"}, ops)
	var rerr *ResolutionError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected *ResolutionError, got %v", err)
	}
	if rerr.Op != "frobnicate" || rerr.Stage != 1 {
		t.Errorf("unexpected error detail: %+v", rerr)
	}
}

func TestSplitChain_Quotes(t *testing.T) {
	tokens, err := SplitChain(`search_emails --query "foo bar" > save_emails % --dst 'my dir'`)
	if err != nil {
		t.Fatalf("SplitChain: %v", err)
	}
	want := []string{"search_emails", "--query", "foo bar", ">", "save_emails", "%", "--dst", "my dir"}
	if diff := cmp.Diff(want, tokens); diff != "" {
		t.Errorf("tokens mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitChain_EmptyQuotedToken(t *testing.T) {
	tokens, err := SplitChain(`op --flag ""`)
	if err != nil {
		t.Fatalf("SplitChain: %v", err)
	}
	want := []string{"op", "--flag", ""}
	if diff := cmp.Diff(want, tokens); diff != "" {
		t.Errorf("tokens mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitChain_UnterminatedQuote(t *testing.T) {
	if _, err := SplitChain(`search_emails --query "oops`); err == nil {
		t.Error("expected error for unterminated quote")
	}
}

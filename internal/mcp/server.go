// Package mcp exposes the pipeline engine over the Model Context Protocol,
// so an agent can compose and run the same chains the CLI accepts. Tools
// return the channel encoding as a string; the record list is the interface,
// exactly as on stdout.
package mcp

import (
	"bytes"
	"context"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"m365/internal/channel"
	"m365/internal/foreach"
	"m365/internal/invoke"
	"m365/internal/logging"
	"m365/internal/orchestrate"
	"m365/internal/pipeline"
)

// Server wraps the MCP SDK server around an operation registry.
type Server struct {
	MCPServer *sdkmcp.Server
	reg       *invoke.Registry
}

// NewServer creates an MCP server with pipeline tools bound to the registry.
func NewServer(reg *invoke.Registry, version string) *Server {
	s := &Server{reg: reg}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "m365", Version: version},
		nil,
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "run_pipeline",
		Description: "Compose and run a pipeline chain ('>' chains stages, '%' pipes the previous stage's records). Returns the aggregate records and a failure manifest.",
	}, s.handleRunPipeline)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_operations",
		Description: "List the built-in operations available as pipeline stages.",
	}, s.handleListOperations)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "search_emails",
		Description: "Search mailbox messages. Shorthand for the search_emails pipeline stage.",
	}, s.handleSearchEmails)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "find_files",
		Description: "Search drive files. Shorthand for the find_files pipeline stage.",
	}, s.handleFindFiles)
}

// --- Tool input/output types ---

type runPipelineInput struct {
	Chain    string `json:"chain" jsonschema:"pipeline chain, e.g. search_attachments --query X > save_attachments % --dst out"`
	FailFast bool   `json:"fail_fast,omitempty" jsonschema:"stop at the first record failure inside for_each"`
	Parallel int    `json:"parallel,omitempty" jsonschema:"max concurrent for_each invocations (default 1 = sequential)"`
}

type runPipelineOutput struct {
	Records  string            `json:"records" jsonschema:"aggregate record list, JSON array"`
	Failures []foreach.Failure `json:"failures,omitempty"`
	ExitCode int               `json:"exit_code"`
}

type listOperationsOutput struct {
	Operations []string `json:"operations"`
}

type searchInput struct {
	Query string `json:"query" jsonschema:"search query"`
	Top   int    `json:"top,omitempty" jsonschema:"page size (default 25)"`
}

type recordsOutput struct {
	Records string `json:"records" jsonschema:"record list, JSON array"`
}

// --- Tool handlers ---

func (s *Server) handleRunPipeline(ctx context.Context, _ *sdkmcp.CallToolRequest, input runPipelineInput) (*sdkmcp.CallToolResult, runPipelineOutput, error) {
	log := logging.New("mcp")

	opts := &foreach.Options{FailFast: input.FailFast, Parallel: input.Parallel}
	reg := withForEach(s.reg, opts)

	tokens, err := pipeline.SplitChain(input.Chain)
	if err != nil {
		return nil, runPipelineOutput{}, err
	}
	pipe, err := pipeline.Compose(tokens, reg)
	if err != nil {
		return nil, runPipelineOutput{}, err
	}
	if err := orchestrate.Preflight(pipe); err != nil {
		return nil, runPipelineOutput{}, err
	}

	log.Info("pipeline via mcp", "stages", len(pipe))
	res, err := (&orchestrate.Runner{Registry: reg}).Run(ctx, pipe)
	if err != nil {
		return nil, runPipelineOutput{}, err
	}

	var buf bytes.Buffer
	if err := channel.Encode(&buf, res.Output); err != nil {
		return nil, runPipelineOutput{}, err
	}
	return nil, runPipelineOutput{
		Records:  buf.String(),
		Failures: res.Failures,
		ExitCode: res.ExitCode,
	}, nil
}

// withForEach shadows the registry's for_each with one bound to the
// request's options, leaving the shared registry untouched.
func withForEach(base *invoke.Registry, opts *foreach.Options) *invoke.Registry {
	reg := invoke.NewRegistry()
	for _, name := range base.Names() {
		if name == orchestrate.ForEachOp {
			continue
		}
		if cap, ok := base.Lookup(name); ok {
			reg.Register(name, cap)
		}
	}
	reg.Register(orchestrate.ForEachOp, orchestrate.ForEachCapability(opts))
	return reg
}

func (s *Server) handleListOperations(ctx context.Context, _ *sdkmcp.CallToolRequest, _ struct{}) (*sdkmcp.CallToolResult, listOperationsOutput, error) {
	return nil, listOperationsOutput{Operations: s.reg.Names()}, nil
}

func (s *Server) handleSearchEmails(ctx context.Context, _ *sdkmcp.CallToolRequest, input searchInput) (*sdkmcp.CallToolResult, recordsOutput, error) {
	return s.runSingleOp(ctx, "search_emails", input)
}

func (s *Server) handleFindFiles(ctx context.Context, _ *sdkmcp.CallToolRequest, input searchInput) (*sdkmcp.CallToolResult, recordsOutput, error) {
	return s.runSingleOp(ctx, "find_files", input)
}

func (s *Server) runSingleOp(ctx context.Context, op string, input searchInput) (*sdkmcp.CallToolResult, recordsOutput, error) {
	cap, ok := s.reg.Lookup(op)
	if !ok {
		return nil, recordsOutput{}, fmt.Errorf("operation %q not registered", op)
	}

	args := []string{"--query", input.Query}
	if op == "search_emails" && input.Top > 0 {
		args = append(args, "--top", fmt.Sprintf("%d", input.Top))
	}

	list, err := cap(ctx, args, nil)
	if err != nil {
		return nil, recordsOutput{}, err
	}
	var buf bytes.Buffer
	if err := channel.Encode(&buf, list); err != nil {
		return nil, recordsOutput{}, err
	}
	return nil, recordsOutput{Records: buf.String()}, nil
}

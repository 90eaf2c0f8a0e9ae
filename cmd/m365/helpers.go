package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"m365/internal/auth"
	"m365/internal/channel"
	"m365/internal/config"
	"m365/internal/foreach"
	"m365/internal/graph"
	"m365/internal/invoke"
	"m365/internal/logging"
	"m365/internal/object"
	"m365/internal/ops"
	"m365/internal/orchestrate"
)

// buildRegistry wires the Graph client and registers every built-in
// operation plus for_each. Missing credentials are not fatal here: the
// client is built without a token source and requests fail with 401 when an
// operation actually hits the API, which keeps --dry-run and script-only
// pipelines usable offline.
func buildRegistry(ctx context.Context, cfg config.Config, feOpts *foreach.Options) (*invoke.Registry, error) {
	log := logging.New("cli")

	userID := cfg.UserObjectID
	opts := []graph.Option{
		graph.WithLogger(logging.New("graph")),
		graph.WithTimeout(cfg.Timeout()),
	}

	creds, err := auth.FromEnv()
	if err != nil {
		log.Warn("no Graph credentials; API operations will fail", "reason", err)
	} else {
		ts := auth.CachedTokenSource(cfg.TokenCachePath(), creds.TokenSource(ctx))
		opts = append(opts, graph.WithTokenSource(ts))
		if userID == "" {
			userID = creds.UserObjectID
		}
	}
	opts = append(opts, graph.WithUser(userID))

	client, err := graph.New(cfg.GraphBaseURL, opts...)
	if err != nil {
		return nil, err
	}

	reg := invoke.NewRegistry()
	ops.Register(reg, client)
	reg.Register(orchestrate.ForEachOp, orchestrate.ForEachCapability(feOpts))
	return reg, nil
}

// signalContext cancels on SIGINT/SIGTERM so running children are reaped and
// remaining records are marked skipped.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// readStdinList decodes a record list from stdin when stdin is a pipe or
// file. An interactive terminal means no piped input.
func readStdinList() (object.List, error) {
	info, err := os.Stdin.Stat()
	if err != nil || info.Mode()&os.ModeCharDevice != 0 {
		return nil, nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, err
	}
	return channel.DecodeBytes(data)
}

package invoke

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"m365/internal/channel"
	"m365/internal/object"
)

// scriptWaitDelay bounds how long a cancelled script may linger after
// SIGTERM before it is killed outright.
const scriptWaitDelay = 5 * time.Second

// ScriptError is a non-zero exit from an external script, with whatever the
// script wrote to stderr.
type ScriptError struct {
	Path     string
	ExitCode int
	Stderr   string
}

func (e *ScriptError) Error() string {
	msg := fmt.Sprintf("script %s exited %d", e.Path, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// Script returns a capability that runs the executable at path as a child
// process. The input list is delivered on the script's stdin in the channel
// encoding; the script's stdout is decoded the same way, with empty stdout
// meaning zero records. A non-zero exit is a *ScriptError; undecodable
// stdout is a *channel.DecodeError.
func Script(path string) Capability {
	return func(ctx context.Context, args []string, input object.List) (object.List, error) {
		var stdin bytes.Buffer
		if err := channel.Encode(&stdin, input); err != nil {
			return nil, fmt.Errorf("script %s: %w", path, err)
		}

		// A bare name resolved against the working directory; anchor it
		// so exec does not search PATH for a different binary.
		exe := path
		if !strings.ContainsRune(exe, os.PathSeparator) {
			exe = "." + string(os.PathSeparator) + exe
		}

		cmd := exec.CommandContext(ctx, exe, args...)
		cmd.Stdin = &stdin

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		// On cancellation, ask the child to terminate and give it a
		// grace period before the kill.
		cmd.Cancel = func() error {
			return cmd.Process.Signal(syscall.SIGTERM)
		}
		cmd.WaitDelay = scriptWaitDelay

		err := cmd.Run()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil {
			if exitErr, ok := err.(*exec.ExitError); ok {
				return nil, &ScriptError{
					Path:     path,
					ExitCode: exitErr.ExitCode(),
					Stderr:   strings.TrimSpace(stderr.String()),
				}
			}
			return nil, fmt.Errorf("script %s: %w", path, err)
		}

		return channel.DecodeBytes(stdout.Bytes())
	}
}

// Package invoke resolves operation names to executable capabilities and
// runs them. Every operation, built-in or external script, is the same
// shape: arguments plus an optional input list in, an output list plus a
// status out. The invoker never sees how an operation is implemented.
package invoke

import (
	"context"
	"os"

	"m365/internal/object"
)

// Capability is the uniform unit of execution for one stage: built-in Graph
// operations, for_each, and external scripts all implement it. A capability
// may have external side effects (network calls, file writes); its only
// pipeline-visible effect is the returned list.
type Capability func(ctx context.Context, args []string, input object.List) (object.List, error)

// Registry maps operation names to capabilities. Built-ins are registered at
// startup; any name pointing at an executable file acts as an external-script
// operation, so the set of operations is open-ended without the registry
// knowing about script internals.
type Registry struct {
	builtins map[string]Capability
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{builtins: make(map[string]Capability)}
}

// Register adds a built-in operation under the given name.
func (r *Registry) Register(name string, cap Capability) {
	r.builtins[name] = cap
}

// Names returns the registered built-in operation names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.builtins))
	for name := range r.builtins {
		names = append(names, name)
	}
	return names
}

// Has reports whether the name resolves to a built-in or an executable
// script path. The composer calls this before any stage runs.
func (r *Registry) Has(name string) bool {
	if _, ok := r.builtins[name]; ok {
		return true
	}
	return isScriptPath(name)
}

// Lookup resolves a name to its capability. Script paths resolve to a
// capability that spawns the script as a child process.
func (r *Registry) Lookup(name string) (Capability, bool) {
	if cap, ok := r.builtins[name]; ok {
		return cap, true
	}
	if isScriptPath(name) {
		return Script(name), true
	}
	return nil, false
}

// IsScript reports whether name resolves as an external-script operation.
func IsScript(name string) bool { return isScriptPath(name) }

// isScriptPath accepts names that point at an executable regular file,
// relative to the working directory or absolute. Built-in lookup always wins
// first, so a script can never shadow a built-in; a typo in a built-in name
// resolves only if an executable of that exact name happens to exist.
func isScriptPath(name string) bool {
	info, err := os.Stat(name)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode().Perm()&0111 != 0
}

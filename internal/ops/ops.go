// Package ops adapts the Graph client's message and drive calls to the
// pipeline's uniform capability shape. Every operation emits records whose
// identifying fields (id, name, path) let a downstream stage or script act
// on them without Graph-internal state; binary content goes to disk and is
// referenced by path, never inlined.
package ops

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"m365/internal/graph"
	"m365/internal/invoke"
	"m365/internal/object"
)

// Register adds all built-in Graph operations to the registry.
func Register(reg *invoke.Registry, client *graph.Client) {
	registerOutlook(reg, client)
	registerOneDrive(reg, client)
}

// newFlags returns a FlagSet that reports errors instead of exiting, so a
// bad stage argument is an ordinary stage failure.
func newFlags(op string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(op, pflag.ContinueOnError)
	fs.SortFlags = false
	return fs
}

func parseFlags(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%s: %w", fs.Name(), err)
	}
	if rest := fs.Args(); len(rest) > 0 {
		return fmt.Errorf("%s: unexpected arguments %v", fs.Name(), rest)
	}
	return nil
}

// num renders an integer as a json.Number so records stay inside the
// canonical value space.
func num(v int64) json.Number {
	return json.Number(strconv.FormatInt(v, 10))
}

// uniqueName returns name, or name disambiguated with the record id once a
// prior record in the same batch claimed it, so saving N records never
// silently overwrites any of them.
func uniqueName(used map[string]bool, name, id string) string {
	if !used[name] {
		used[name] = true
		return name
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := stem + "-" + safeName(id) + ext
	for n := 2; used[candidate]; n++ {
		candidate = fmt.Sprintf("%s-%s-%d%s", stem, safeName(id), n, ext)
	}
	used[candidate] = true
	return candidate
}

// stringField fetches a required string field from a record.
func stringField(rec object.Record, key string) (string, error) {
	v, ok := rec[key]
	if !ok {
		return "", fmt.Errorf("record has no %q field", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("record field %q is not a usable string", key)
	}
	return s, nil
}

// Package runtime hosts the embedded Risor VM used for action filters and
// the tree-sitter grammars used by the builtin dumper.
package runtime

import (
	"context"
	"fmt"

	"github.com/risor-io/risor"
)

// Candidate is the build action data exposed to a filter expression.
type Candidate struct {
	Index     int
	File      string
	Directory string
	Command   string
}

// Filter selects build actions with a Risor expression. The expression sees
// the globals file, directory, command and index; a truthy result selects
// the action.
type Filter struct {
	source string
}

// NewFilter wraps expr. An empty expression selects every action.
func NewFilter(expr string) *Filter {
	return &Filter{source: expr}
}

// Source returns the expression text.
func (f *Filter) Source() string {
	if f == nil {
		return ""
	}
	return f.source
}

// Match evaluates the expression against c.
func (f *Filter) Match(ctx context.Context, c Candidate) (bool, error) {
	if f == nil || f.source == "" {
		return true, nil
	}

	globals := map[string]any{
		"file":      c.File,
		"directory": c.Directory,
		"command":   c.Command,
		"index":     int64(c.Index),
	}
	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}

	result, err := risor.Eval(ctx, f.source, opts...)
	if err != nil {
		return false, fmt.Errorf("runtime: filter %q on %s: %w", f.source, c.File, err)
	}
	return result.IsTruthy(), nil
}

// Select returns the indexes of the candidates the filter matches, in order.
func (f *Filter) Select(ctx context.Context, candidates []Candidate) ([]int, error) {
	selected := make([]int, 0, len(candidates))
	for _, c := range candidates {
		ok, err := f.Match(ctx, c)
		if err != nil {
			return nil, err
		}
		if ok {
			selected = append(selected, c.Index)
		}
	}
	return selected, nil
}

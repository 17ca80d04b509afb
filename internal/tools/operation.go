// Package tools exposes the search orchestrator as named, schema-described
// operations for agent runtimes.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/hyperjump/semsearch/internal/apperr"
)

// Descriptor names an operation and describes its JSON arguments.
type Descriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// Operation is one invocable tool.
type Operation interface {
	Describe() Descriptor
	Invoke(ctx context.Context, args json.RawMessage) (any, error)
}

// Registry maps tool names to operations.
type Registry struct {
	ops map[string]Operation
}

// NewRegistry returns a registry holding ops. Duplicate names panic.
func NewRegistry(ops ...Operation) *Registry {
	r := &Registry{ops: make(map[string]Operation, len(ops))}
	for _, op := range ops {
		r.Register(op)
	}
	return r
}

// Register adds op. It panics if the name is already taken.
func (r *Registry) Register(op Operation) {
	name := op.Describe().Name
	if _, dup := r.ops[name]; dup {
		panic(fmt.Sprintf("tools: duplicate operation %q", name))
	}
	r.ops[name] = op
}

// Get returns the operation registered under name.
func (r *Registry) Get(name string) (Operation, bool) {
	op, ok := r.ops[name]
	return op, ok
}

// Descriptors returns every descriptor sorted by name.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.ops))
	for _, op := range r.ops {
		out = append(out, op.Describe())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Invoke runs the named operation.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (any, error) {
	op, ok := r.ops[name]
	if !ok {
		return nil, apperr.NotFound("invoke tool", "unknown tool %q", name)
	}
	return op.Invoke(ctx, args)
}

// decodeArgs unmarshals args into dst. Empty args decode as {}.
func decodeArgs(op string, args json.RawMessage, dst any) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	if err := json.Unmarshal(args, dst); err != nil {
		return apperr.Validation(op, "invalid arguments: %s", err.Error())
	}
	return nil
}

func objectSchema(required []string, props map[string]any) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func prop(typ, description string) map[string]any {
	return map[string]any{"type": typ, "description": description}
}

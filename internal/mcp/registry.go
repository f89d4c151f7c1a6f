package mcp

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

// ToolHandler is a callable tool. Describe must return the same value on
// every call; Invoke must be safe for concurrent use.
type ToolHandler interface {
	Describe() Tool
	// Invoke runs the tool. A returned error is a domain failure and is
	// reported to the peer as invalid params.
	Invoke(ctx context.Context, arguments json.RawMessage) ([]Content, error)
}

// ToolRegistry maps tool names to handlers. It is populated once by
// NewToolRegistry and is read-only afterwards, so it can be shared between
// connections without locking.
type ToolRegistry struct {
	order    []string
	handlers map[string]ToolHandler
	tools    map[string]Tool
}

// NewToolRegistry registers handlers in the given order. Duplicate names and
// schemas whose required list is not covered by their properties are
// rejected.
func NewToolRegistry(handlers ...ToolHandler) (*ToolRegistry, error) {
	r := &ToolRegistry{
		handlers: make(map[string]ToolHandler, len(handlers)),
		tools:    make(map[string]Tool, len(handlers)),
	}
	for _, h := range handlers {
		t := h.Describe()
		if t.Name == "" {
			return nil, errors.New("tool with empty name")
		}
		if _, dup := r.handlers[t.Name]; dup {
			return nil, errors.Errorf("duplicate tool %q", t.Name)
		}
		if err := t.InputSchema.Validate(); err != nil {
			return nil, errors.Wrapf(err, "tool %q", t.Name)
		}
		r.order = append(r.order, t.Name)
		r.handlers[t.Name] = h
		r.tools[t.Name] = t
	}
	return r, nil
}

// Get looks up a tool by name.
func (r *ToolRegistry) Get(name string) (ToolHandler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// List returns tool metadata in registration order.
func (r *ToolRegistry) List() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Names returns registered tool names in registration order.
func (r *ToolRegistry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *ToolRegistry) Len() int { return len(r.order) }

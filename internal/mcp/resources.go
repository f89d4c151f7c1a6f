package mcp

import (
	"context"

	"github.com/pkg/errors"
)

// ErrResourceNotFound is returned by ResourceRegistry.Read for an unknown URI.
var ErrResourceNotFound = errors.New("resource not found")

// ResourceReader produces the current content of a resource.
type ResourceReader func(ctx context.Context) ([]Content, error)

// StaticResource pairs resource metadata with its reader.
type StaticResource struct {
	Resource Resource
	Read     ResourceReader
}

// TextResource returns a StaticResource that always reads as text.
func TextResource(res Resource, text string) StaticResource {
	return StaticResource{
		Resource: res,
		Read: func(context.Context) ([]Content, error) {
			return []Content{TextContent(text)}, nil
		},
	}
}

// ResourceRegistry maps URIs to resources. Like ToolRegistry it is fixed at
// construction.
type ResourceRegistry struct {
	order   []string
	entries map[string]StaticResource
}

func NewResourceRegistry(entries ...StaticResource) (*ResourceRegistry, error) {
	r := &ResourceRegistry{entries: make(map[string]StaticResource, len(entries))}
	for _, e := range entries {
		uri := e.Resource.URI
		if uri == "" {
			return nil, errors.New("resource with empty uri")
		}
		if e.Read == nil {
			return nil, errors.Errorf("resource %q has no reader", uri)
		}
		if _, dup := r.entries[uri]; dup {
			return nil, errors.Errorf("duplicate resource %q", uri)
		}
		r.order = append(r.order, uri)
		r.entries[uri] = e
	}
	return r, nil
}

func (r *ResourceRegistry) Get(uri string) (Resource, bool) {
	e, ok := r.entries[uri]
	return e.Resource, ok
}

// List returns resource metadata in registration order.
func (r *ResourceRegistry) List() []Resource {
	out := make([]Resource, 0, len(r.order))
	for _, uri := range r.order {
		out = append(out, r.entries[uri].Resource)
	}
	return out
}

// Read returns the content of uri, or an error wrapping ErrResourceNotFound.
func (r *ResourceRegistry) Read(ctx context.Context, uri string) ([]Content, error) {
	e, ok := r.entries[uri]
	if !ok {
		return nil, errors.Wrap(ErrResourceNotFound, uri)
	}
	contents, err := e.Read(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", uri)
	}
	return contents, nil
}

func (r *ResourceRegistry) Len() int { return len(r.order) }

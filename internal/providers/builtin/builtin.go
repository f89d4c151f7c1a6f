// Package builtin provides the default tool and resource set served by mcpd.
package builtin

import (
	"github.com/pkg/errors"

	mcp "mcpd/internal/mcp"
)

// Tools returns the default tool registry: search_files and get_weather.
func Tools() (*mcp.ToolRegistry, error) {
	r, err := mcp.NewToolRegistry(NewSearchFiles(), NewWeather())
	if err != nil {
		return nil, errors.Wrap(err, "build tool registry")
	}
	return r, nil
}

// Resources returns the default resource registry.
func Resources() (*mcp.ResourceRegistry, error) {
	r, err := mcp.NewResourceRegistry(hostsResource())
	if err != nil {
		return nil, errors.Wrap(err, "build resource registry")
	}
	return r, nil
}

// NewDispatcher builds a dispatcher over the default registries.
func NewDispatcher(info mcp.ServerInfo) (*mcp.Dispatcher, error) {
	tools, err := Tools()
	if err != nil {
		return nil, err
	}
	resources, err := Resources()
	if err != nil {
		return nil, err
	}
	return mcp.NewDispatcher(tools, resources, info), nil
}

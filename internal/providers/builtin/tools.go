package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	mcp "mcpd/internal/mcp"
)

// The built-in tools are simulated: they format their arguments into fixed
// text and perform no filesystem or network access.

type searchFilesArgs struct {
	Pattern   string `json:"pattern" jsonschema:"description=Search pattern (wildcards supported)"`
	Directory string `json:"directory,omitempty" jsonschema:"description=Directory to search"`
}

// SearchFiles is the search_files tool.
type SearchFiles struct {
	schema mcp.InputSchema
}

func NewSearchFiles() *SearchFiles {
	return &SearchFiles{schema: mcp.MustReflectInputSchema[searchFilesArgs]()}
}

func (t *SearchFiles) Describe() mcp.Tool {
	return mcp.Tool{
		Name:        "search_files",
		Description: "Search the file system for files matching a pattern",
		InputSchema: t.schema,
	}
}

func (t *SearchFiles) Invoke(_ context.Context, arguments json.RawMessage) ([]mcp.Content, error) {
	args, err := mcp.DecodeArguments[searchFilesArgs](arguments, t.schema)
	if err != nil {
		return nil, err
	}
	dir := args.Directory
	if dir == "" {
		dir = "."
	}
	text := fmt.Sprintf("Searching directory %s for pattern '%s'\nFound the following files:\n1. /path/to/file1.txt\n2. /path/to/file2.log",
		dir, args.Pattern)
	return []mcp.Content{mcp.TextContent(text)}, nil
}

type weatherArgs struct {
	City string `json:"city" jsonschema:"description=City name"`
}

// Weather is the get_weather tool.
type Weather struct {
	schema mcp.InputSchema
}

func NewWeather() *Weather {
	return &Weather{schema: mcp.MustReflectInputSchema[weatherArgs]()}
}

func (t *Weather) Describe() mcp.Tool {
	return mcp.Tool{
		Name:        "get_weather",
		Description: "Get current weather information for a city",
		InputSchema: t.schema,
	}
}

func (t *Weather) Invoke(_ context.Context, arguments json.RawMessage) ([]mcp.Content, error) {
	args, err := mcp.DecodeArguments[weatherArgs](arguments, t.schema)
	if err != nil {
		return nil, err
	}
	text := fmt.Sprintf("Weather for %s:\nTemperature: 22°C\nConditions: Sunny\nHumidity: 65%%", args.City)
	return []mcp.Content{mcp.TextContent(text)}, nil
}

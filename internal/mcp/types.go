package mcp

import (
	"encoding/json"
	"sort"

	"github.com/pkg/errors"
)

// Tool describes a callable action as advertised by tools/list.
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

// InputSchema is the simplified JSON schema of a tool's arguments.
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required"`
}

type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Validate checks that the schema is an object and that every required
// parameter is declared in Properties.
func (s InputSchema) Validate() error {
	if s.Type != "object" {
		return errors.Errorf("input schema type must be %q, got %q", "object", s.Type)
	}
	var missing []string
	for _, name := range s.Required {
		if _, ok := s.Properties[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return errors.Errorf("required parameters not declared in properties: %v", missing)
	}
	return nil
}

// Resource identifies readable content by URI.
type Resource struct {
	URI         string `json:"uri"`
	MimeType    string `json:"mimeType"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// ContentType tags the variant held by a Content value.
type ContentType string

const (
	ContentTypeText     ContentType = "text"
	ContentTypeImage    ContentType = "image"
	ContentTypeResource ContentType = "resource"
)

// Content is a unit of data returned by a tool call or a resource read.
// Only the fields belonging to Type are populated.
type Content struct {
	Type ContentType `json:"type"`
	// text and resource
	Text string `json:"text,omitempty"`
	// image (base64)
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	// resource
	URI string `json:"uri,omitempty"`
}

func TextContent(text string) Content {
	return Content{Type: ContentTypeText, Text: text}
}

func ImageContent(data, mimeType string) Content {
	return Content{Type: ContentTypeImage, Data: data, MimeType: mimeType}
}

// EmbeddedTextResource wraps the text of another resource.
func EmbeddedTextResource(uri, mimeType, text string) Content {
	return Content{Type: ContentTypeResource, URI: uri, MimeType: mimeType, Text: text}
}

// Result payloads

type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type CallToolResult struct {
	Content []Content `json:"content"`
}

type ListResourcesResult struct {
	Resources []Resource `json:"resources"`
}

type ReadResourceParams struct {
	URI string `json:"uri"`
}

type ReadResourceResult struct {
	Contents []Content `json:"contents"`
}

// Capabilities is the fixed capabilities object announced on connect and
// returned from initialize.
type Capabilities struct {
	Tools     struct{} `json:"tools"`
	Resources struct{} `json:"resources"`
}

type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    Capabilities `json:"capabilities"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
}

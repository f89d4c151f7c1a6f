package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// LatestProtocolVersion is the MCP revision announced to peers.
const LatestProtocolVersion = "2024-11-05"

const (
	MethodInitialize    = "initialize"
	MethodPing          = "ping"
	MethodToolsList     = "tools/list"
	MethodToolsCall     = "tools/call"
	MethodResourcesList = "resources/list"
	MethodResourcesRead = "resources/read"

	notificationPrefix = "notifications/"
)

var knownMethods = map[string]bool{
	MethodInitialize:    true,
	MethodPing:          true,
	MethodToolsList:     true,
	MethodToolsCall:     true,
	MethodResourcesList: true,
	MethodResourcesRead: true,
}

// Dispatcher routes decoded requests to the tool and resource registries. It
// holds no mutable state and is safe for concurrent use.
type Dispatcher struct {
	tools     *ToolRegistry
	resources *ResourceRegistry
	info      ServerInfo
}

func NewDispatcher(tools *ToolRegistry, resources *ResourceRegistry, info ServerInfo) *Dispatcher {
	return &Dispatcher{tools: tools, resources: resources, info: info}
}

// Tools and Resources expose the registries for callers that list them
// without going over the wire.
func (d *Dispatcher) Tools() *ToolRegistry         { return d.tools }
func (d *Dispatcher) Resources() *ResourceRegistry { return d.resources }

// InitializeResult is the fixed capabilities object, used both as the
// connect-time announcement and as the initialize result.
func (d *Dispatcher) InitializeResult() InitializeResult {
	return InitializeResult{ProtocolVersion: LatestProtocolVersion, ServerInfo: d.info}
}

// Dispatch runs a single decoded request. It returns nil when nothing should
// be written back, which is only the case for notifications/* messages
// without an id. A panic in a tool or resource reader is turned into an
// internal error response.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) (resp *Response) {
	if req.ID == nil && strings.HasPrefix(req.Method, notificationPrefix) {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			resp = NewError(req.ID, CodeInternalError, fmt.Sprintf("internal error: %v", r))
		}
	}()

	switch req.Method {
	case MethodInitialize:
		return NewResult(req.ID, d.InitializeResult())
	case MethodPing:
		return NewResult(req.ID, struct{}{})
	case MethodToolsList:
		return NewResult(req.ID, ListToolsResult{Tools: d.tools.List()})
	case MethodToolsCall:
		return d.callTool(ctx, req)
	case MethodResourcesList:
		return NewResult(req.ID, ListResourcesResult{Resources: d.resources.List()})
	case MethodResourcesRead:
		return d.readResource(ctx, req)
	default:
		return NewError(req.ID, CodeMethodNotFound, "method not found: "+req.Method)
	}
}

// HandleLine decodes one framed message and dispatches it. Envelope errors
// are answered with -32700 or -32600; nil means no response is written.
func (d *Dispatcher) HandleLine(ctx context.Context, line []byte) *Response {
	_, resp := d.handleLine(ctx, line)
	return resp
}

// handleLine is HandleLine that also returns the decoded request, nil when
// the envelope was rejected.
func (d *Dispatcher) handleLine(ctx context.Context, line []byte) (*Request, *Response) {
	req, resp := DecodeRequest(line)
	if req == nil {
		return nil, resp
	}
	return req, d.Dispatch(ctx, req)
}

func (d *Dispatcher) callTool(ctx context.Context, req *Request) *Response {
	var params CallToolParams
	if perr := decodeParams(req.Params, &params); perr != nil {
		return &Response{JSONRPC: ProtocolVersion, Error: perr, ID: req.ID}
	}
	if params.Name == "" {
		return NewError(req.ID, CodeInvalidParams, "invalid params: missing tool name")
	}
	tool, ok := d.tools.Get(params.Name)
	if !ok {
		return NewError(req.ID, CodeMethodNotFound, "tool not found: "+params.Name)
	}
	content, err := tool.Invoke(ctx, params.Arguments)
	if err != nil {
		return NewError(req.ID, CodeInvalidParams, "tool execution failed: "+err.Error())
	}
	return NewResult(req.ID, CallToolResult{Content: nonNil(content)})
}

func (d *Dispatcher) readResource(ctx context.Context, req *Request) *Response {
	var params ReadResourceParams
	if perr := decodeParams(req.Params, &params); perr != nil {
		return &Response{JSONRPC: ProtocolVersion, Error: perr, ID: req.ID}
	}
	if params.URI == "" {
		return NewError(req.ID, CodeInvalidParams, "invalid params: missing uri")
	}
	contents, err := d.resources.Read(ctx, params.URI)
	switch {
	case errors.Is(err, ErrResourceNotFound):
		return NewError(req.ID, CodeInvalidParams, "resource not found: "+params.URI)
	case err != nil:
		return NewError(req.ID, CodeInternalError, err.Error())
	}
	return NewResult(req.ID, ReadResourceResult{Contents: nonNil(contents)})
}

// Helpers
func decodeParams[T any](raw json.RawMessage, dst *T) *Error {
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &Error{Code: CodeInvalidParams, Message: "invalid params: " + err.Error()}
	}
	return nil
}

func nonNil(c []Content) []Content {
	if c == nil {
		return []Content{}
	}
	return c
}

// methodLabel bounds the method label cardinality for metrics.
func methodLabel(method string) string {
	switch {
	case knownMethods[method]:
		return method
	case strings.HasPrefix(method, notificationPrefix):
		return "notification"
	case method == "":
		return "invalid"
	default:
		return "unknown"
	}
}

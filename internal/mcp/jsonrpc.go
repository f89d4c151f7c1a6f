package mcp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// Minimal JSON-RPC 2.0 types

const ProtocolVersion = "2.0"

// ErrorCode is a JSON-RPC 2.0 error code.
type ErrorCode int

const (
	CodeParseError     ErrorCode = -32700
	CodeInvalidRequest ErrorCode = -32600
	CodeMethodNotFound ErrorCode = -32601
	CodeInvalidParams  ErrorCode = -32602
	CodeInternalError  ErrorCode = -32603
)

type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      *uint64         `json:"id,omitempty"`
}

// Response always carries an id; it is null when the request had none or
// could not be decoded far enough to find one.
type Response struct {
	JSONRPC string  `json:"jsonrpc"`
	Result  any     `json:"result,omitempty"`
	Error   *Error  `json:"error,omitempty"`
	ID      *uint64 `json:"id"`
}

// Notification is a server-initiated message that expects no reply.
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

func NewResult(id *uint64, result any) *Response {
	return &Response{JSONRPC: ProtocolVersion, Result: result, ID: id}
}

func NewError(id *uint64, code ErrorCode, message string) *Response {
	return &Response{JSONRPC: ProtocolVersion, Error: &Error{Code: code, Message: message}, ID: id}
}

// envelope mirrors Request with every field optional so that a structurally
// wrong message can still be told apart from invalid JSON.
type envelope struct {
	JSONRPC *string         `json:"jsonrpc"`
	Method  *string         `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      json.RawMessage `json:"id"`
}

// DecodeRequest parses one framed line into a Request. When the line cannot be
// used, the returned Response is the error envelope to send back instead.
func DecodeRequest(line []byte) (*Request, *Response) {
	if !json.Valid(line) {
		return nil, NewError(nil, CodeParseError, "parse error")
	}
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, NewError(nil, CodeInvalidRequest, "invalid request: expected a JSON object")
	}

	var id *uint64
	if len(env.ID) > 0 && !isNull(env.ID) {
		var n uint64
		if err := json.Unmarshal(env.ID, &n); err != nil {
			return nil, NewError(nil, CodeInvalidRequest, "invalid request: id must be an unsigned integer")
		}
		id = &n
	}
	if env.JSONRPC == nil || *env.JSONRPC != ProtocolVersion {
		return nil, NewError(id, CodeInvalidRequest, `invalid request: jsonrpc must be "2.0"`)
	}
	if env.Method == nil || *env.Method == "" {
		return nil, NewError(id, CodeInvalidRequest, "invalid request: missing method")
	}

	params := env.Params
	if len(params) == 0 || isNull(params) {
		params = json.RawMessage(`{}`)
	}
	return &Request{JSONRPC: ProtocolVersion, Method: *env.Method, Params: params, ID: id}, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

var errLineTooLong = errors.New("line exceeds maximum length")

// lineReader splits a byte stream into newline-terminated frames.
type lineReader struct {
	r   *bufio.Reader
	max int
}

func newLineReader(r io.Reader, max int) *lineReader {
	return &lineReader{r: bufio.NewReader(r), max: max}
}

// ReadLine returns the next frame including its terminator. A trailing frame
// without a terminator is returned as-is before io.EOF. Frames longer than max
// are consumed in full and reported as errLineTooLong.
func (lr *lineReader) ReadLine() ([]byte, error) {
	var line []byte
	tooLong := false
	for {
		chunk, err := lr.r.ReadSlice('\n')
		if !tooLong {
			line = append(line, chunk...)
			if lr.max > 0 && contentLen(line) > lr.max {
				tooLong = true
				line = nil
			}
		}
		switch {
		case err == nil:
			if tooLong {
				return nil, errLineTooLong
			}
			return line, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if tooLong {
				return nil, errLineTooLong
			}
			if len(line) == 0 {
				return nil, io.EOF
			}
			return line, nil
		default:
			return nil, err
		}
	}
}

func contentLen(line []byte) int {
	n := len(line)
	if n > 0 && line[n-1] == '\n' {
		n--
	}
	return n
}

// writeNDJSON writes v as a single JSON line.
func writeNDJSON(w io.Writer, v any) error {
	enc, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encode message")
	}
	if _, err := w.Write(append(enc, '\n')); err != nil {
		return err
	}
	return nil
}

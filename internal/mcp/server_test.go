package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	return NewServer(testDispatcher(t), opts...)
}

type pipeRW struct {
	io.Reader
	io.Writer
}

// serveInput runs a whole input stream through ServeConn and returns the
// decoded output lines.
func serveInput(t *testing.T, s *Server, input string) []map[string]any {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, s.ServeConn(context.Background(), pipeRW{strings.NewReader(input), &out}))

	var msgs []map[string]any
	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m), sc.Text())
		msgs = append(msgs, m)
	}
	return msgs
}

func TestServeConnAnnounces(t *testing.T) {
	msgs := serveInput(t, newTestServer(t), "")
	require.Len(t, msgs, 1)
	assert.Equal(t, "initialize", msgs[0]["method"])
	assert.NotContains(t, msgs[0], "id", "the announcement is a notification")
	params := msgs[0]["params"].(map[string]any)
	assert.Equal(t, LatestProtocolVersion, params["protocolVersion"])
	assert.Equal(t, map[string]any{"tools": map[string]any{}, "resources": map[string]any{}}, params["capabilities"])

	msgs = serveInput(t, newTestServer(t, WithAnnounce(false)), "")
	assert.Empty(t, msgs)
}

func TestServeConnSkipsBlankLines(t *testing.T) {
	input := "\n   \n\r\n" + `{"jsonrpc":"2.0","method":"ping","id":1}` + "\n\n"
	msgs := serveInput(t, newTestServer(t, WithAnnounce(false)), input)
	require.Len(t, msgs, 1)
	assert.Equal(t, float64(1), msgs[0]["id"])
}

func TestServeConnUnterminatedLastLine(t *testing.T) {
	msgs := serveInput(t, newTestServer(t, WithAnnounce(false)), `{"jsonrpc":"2.0","method":"ping","id":7}`)
	require.Len(t, msgs, 1)
	assert.Equal(t, float64(7), msgs[0]["id"])
}

func TestServeConnSurvivesBadInput(t *testing.T) {
	input := strings.Join([]string{
		`this is not json`,
		`{"jsonrpc":"2.0","id":2}`,
		`{"jsonrpc":"2.0","method":"tools/call","params":{"name":"echo","arguments":{"text":"still here"}},"id":3}`,
	}, "\n") + "\n"
	msgs := serveInput(t, newTestServer(t, WithAnnounce(false)), input)
	require.Len(t, msgs, 3)

	assert.Nil(t, msgs[0]["id"])
	assert.Equal(t, float64(CodeParseError), msgs[0]["error"].(map[string]any)["code"])
	assert.Equal(t, float64(CodeInvalidRequest), msgs[1]["error"].(map[string]any)["code"])
	assert.Equal(t, float64(3), msgs[2]["id"])
	assert.Contains(t, msgs[2], "result")
}

func TestServeConnOversizedLine(t *testing.T) {
	input := `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"echo","arguments":{"text":"` +
		strings.Repeat("x", 200) + `"}},"id":1}` + "\n" +
		`{"jsonrpc":"2.0","method":"ping","id":2}` + "\n"
	msgs := serveInput(t, newTestServer(t, WithAnnounce(false), WithMaxLineBytes(100)), input)
	require.Len(t, msgs, 2)
	assert.Equal(t, float64(CodeInvalidRequest), msgs[0]["error"].(map[string]any)["code"])
	assert.Equal(t, float64(2), msgs[1]["id"])
}

func TestServeConnIdempotent(t *testing.T) {
	line := `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"echo","arguments":{"text":"same"}},"id":1}` + "\n"
	var out bytes.Buffer
	s := newTestServer(t, WithAnnounce(false))
	require.NoError(t, s.ServeConn(context.Background(), pipeRW{strings.NewReader(line + line), &out}))

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	if diff := cmp.Diff(lines[0], lines[1]); diff != "" {
		t.Errorf("repeated request produced different bytes (-first +second):\n%s", diff)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestServeConnWriteFailure(t *testing.T) {
	s := newTestServer(t)
	err := s.ServeConn(context.Background(), pipeRW{strings.NewReader(""), failingWriter{}})
	assert.ErrorContains(t, err, "broken pipe")

	s = newTestServer(t, WithAnnounce(false))
	err = s.ServeConn(context.Background(), pipeRW{strings.NewReader(`{"jsonrpc":"2.0","method":"ping","id":1}` + "\n"), failingWriter{}})
	assert.ErrorContains(t, err, "write response")
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestServeConnReadFailure(t *testing.T) {
	s := newTestServer(t, WithAnnounce(false))
	err := s.ServeConn(context.Background(), pipeRW{failingReader{}, io.Discard})
	assert.ErrorContains(t, err, "connection reset")
}

func TestServeConnRateLimited(t *testing.T) {
	line := `{"jsonrpc":"2.0","method":"ping","id":1}` + "\n"
	s := newTestServer(t, WithAnnounce(false), WithRateLimit(200, 1))
	msgs := serveInput(t, s, strings.Repeat(line, 3))
	assert.Len(t, msgs, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s = newTestServer(t, WithAnnounce(false), WithRateLimit(1, 1))
	err := s.ServeConn(ctx, pipeRW{strings.NewReader(line), io.Discard})
	assert.ErrorContains(t, err, "rate limiter")
}

// testClient is one peer connected to a running Server.
type testClient struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dial(t *testing.T, addr string) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &testClient{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (c *testClient) send(line string) {
	c.t.Helper()
	_, err := c.conn.Write([]byte(line + "\n"))
	require.NoError(c.t, err)
}

func (c *testClient) recv() wireResponse {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	line, err := c.r.ReadBytes('\n')
	require.NoError(c.t, err)
	var w wireResponse
	require.NoError(c.t, json.Unmarshal(line, &w))
	return w
}

func startServer(t *testing.T, s *Server) (string, context.CancelFunc, <-chan error) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()
	t.Cleanup(cancel)
	return ln.Addr().String(), cancel, done
}

func TestServeConcurrentConnections(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	addr, cancel, done := startServer(t, newTestServer(t, WithAnnounce(false), WithMetrics(metrics)))

	bad := dial(t, addr)
	good := dial(t, addr)

	bad.send(`garbage`)
	assert.Equal(t, CodeParseError, bad.recv().Error.Code)

	var wg sync.WaitGroup
	for _, c := range []*testClient{bad, good} {
		wg.Add(1)
		go func(c *testClient) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				c.send(`{"jsonrpc":"2.0","method":"tools/call","params":{"name":"echo","arguments":{"text":"x"}},"id":1}`)
				resp := c.recv()
				assert.Nil(t, resp.Error)
			}
		}(c)
	}
	wg.Wait()

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.connections))
	assert.Equal(t, float64(20), testutil.ToFloat64(metrics.requests.WithLabelValues("tools/call", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.requests.WithLabelValues("invalid", "error")))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.activeConnections))
}

func TestServeClosesIdleConnectionsOnShutdown(t *testing.T) {
	addr, cancel, done := startServer(t, newTestServer(t))

	idle := dial(t, addr)
	assert.Equal(t, noError, codeOf(idle.recv()), "announcement")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return with an idle peer connected")
	}

	require.NoError(t, idle.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err := idle.r.ReadByte()
	assert.ErrorIs(t, err, io.EOF)
}

const noError ErrorCode = 0

func codeOf(w wireResponse) ErrorCode {
	if w.Error == nil {
		return noError
	}
	return w.Error.Code
}

func TestListenAndServeBindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	err = newTestServer(t).ListenAndServe(context.Background(), ln.Addr().String())
	assert.ErrorContains(t, err, "listen on")
}

package mcp

import (
	"bytes"
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// DefaultMaxLineBytes bounds a single framed message.
const DefaultMaxLineBytes = 1 << 20

// Server accepts TCP connections and serves newline-delimited JSON-RPC on
// each of them independently. The dispatcher and its registries are shared
// read-only by every connection.
//
// No read or idle deadline is applied: a peer that stops sending holds its
// goroutine until it disconnects or the server shuts down.
type Server struct {
	dispatcher   *Dispatcher
	announce     bool
	maxLineBytes int
	rps          float64
	burst        int
	log          *logrus.Entry
	metrics      *Metrics

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

type Option func(*Server)

// WithAnnounce controls whether an unsolicited initialize notification is
// written as soon as a connection is accepted. Enabled by default.
func WithAnnounce(announce bool) Option {
	return func(s *Server) { s.announce = announce }
}

// WithMaxLineBytes sets the longest accepted message. Non-positive values
// disable the limit.
func WithMaxLineBytes(n int) Option {
	return func(s *Server) { s.maxLineBytes = n }
}

// WithRateLimit limits each connection to rps requests per second with the
// given burst. rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		s.rps = rps
		s.burst = burst
	}
}

func WithLogger(log *logrus.Entry) Option {
	return func(s *Server) { s.log = log }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

func NewServer(d *Dispatcher, opts ...Option) *Server {
	s := &Server{
		dispatcher:   d,
		announce:     true,
		maxLineBytes: DefaultMaxLineBytes,
		log:          logrus.NewEntry(logrus.StandardLogger()),
		conns:        map[net.Conn]struct{}{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.burst < 1 {
		s.burst = 1
	}
	return s
}

// ListenAndServe binds addr and serves until ctx is cancelled. A bind failure
// is returned immediately.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", addr)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then closes ln and
// every open connection and waits for their handlers to return. It takes
// ownership of ln.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	s.log.WithField("address", ln.Addr().String()).Info("MCP server listening")

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.shutdown()
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				s.shutdown()
				return errors.Wrap(err, "accept")
			}
			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else if backoff *= 2; backoff > time.Second {
				backoff = time.Second
			}
			s.log.WithError(err).Warnf("accept failed; retrying in %v", backoff)
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		s.track(conn, true)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.track(conn, false)
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *Server) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

func (s *Server) shutdown() {
	s.mu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	s.log.Info("MCP server stopped")
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	log := s.log.WithFields(logrus.Fields{
		"conn":   uuid.NewString(),
		"remote": conn.RemoteAddr().String(),
	})
	s.metrics.ConnectionOpened()
	defer s.metrics.ConnectionClosed()

	log.Debug("connection accepted")
	if err := s.serveConn(ctx, conn, log); err != nil {
		if ctx.Err() != nil {
			log.Debug("connection closed by shutdown")
			return
		}
		log.WithError(err).Warn("connection failed")
		return
	}
	log.Debug("connection closed by peer")
}

// ServeConn serves a single peer on rw until it reaches end of stream. It
// returns nil on a clean close and the I/O error otherwise.
func (s *Server) ServeConn(ctx context.Context, rw io.ReadWriter) error {
	return s.serveConn(ctx, rw, s.log.WithField("conn", uuid.NewString()))
}

func (s *Server) serveConn(ctx context.Context, rw io.ReadWriter, log *logrus.Entry) error {
	var limiter *rate.Limiter
	if s.rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.rps), s.burst)
	}

	if s.announce {
		announcement := Notification{
			JSONRPC: ProtocolVersion,
			Method:  MethodInitialize,
			Params:  s.dispatcher.InitializeResult(),
		}
		if err := writeNDJSON(rw, announcement); err != nil {
			return errors.Wrap(err, "write initialize notification")
		}
	}

	lr := newLineReader(rw, s.maxLineBytes)
	for {
		line, err := lr.ReadLine()
		switch {
		case errors.Is(err, errLineTooLong):
			log.Warn("discarding oversized message")
			resp := NewError(nil, CodeInvalidRequest, "invalid request: message too large")
			if err := writeNDJSON(rw, resp); err != nil {
				return errors.Wrap(err, "write response")
			}
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return errors.Wrap(err, "read request")
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return errors.Wrap(err, "rate limiter")
			}
		}

		resp := s.handleLine(ctx, line, log)
		if resp == nil {
			continue
		}
		if err := writeNDJSON(rw, resp); err != nil {
			return errors.Wrap(err, "write response")
		}
	}
}

func (s *Server) handleLine(ctx context.Context, line []byte, log *logrus.Entry) *Response {
	start := time.Now()
	req, resp := s.dispatcher.handleLine(ctx, line)
	method := ""
	if req != nil {
		method = req.Method
	}
	s.metrics.RecordRequest(methodLabel(method), resp, time.Since(start))

	entry := log.WithField("method", method)
	if req != nil && req.ID != nil {
		entry = entry.WithField("id", *req.ID)
	}
	if resp != nil && resp.Error != nil {
		entry.WithFields(logrus.Fields{
			"code":  resp.Error.Code,
			"error": resp.Error.Message,
		}).Debug("request failed")
	} else {
		entry.Debug("request handled")
	}
	return resp
}

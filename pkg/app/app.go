package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	markdown "github.com/MichaelMure/go-term-markdown"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"mcpd/internal/config"
	mcp "mcpd/internal/mcp"
	"mcpd/internal/providers/builtin"
)

const (
	Name    = "mcpd"
	Version = "0.1.0"
)

// Format selects how listings are printed.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatMarkdown, FormatJSON:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", errors.Errorf("unknown format %q (want text, markdown or json)", s)
	}
}

// App wires the configuration, the built-in registries and the TCP server.
type App struct {
	cfg        config.Config
	dispatcher *mcp.Dispatcher
	registry   *prometheus.Registry
	server     *mcp.Server
	log        *logrus.Entry
}

func New(cfg config.Config) (*App, error) {
	d, err := builtin.NewDispatcher(mcp.ServerInfo{Name: Name, Version: Version})
	if err != nil {
		return nil, err
	}
	log := logrus.WithField("component", "mcp")
	reg := prometheus.NewRegistry()
	srv := mcp.NewServer(d,
		mcp.WithAnnounce(cfg.Announce),
		mcp.WithMaxLineBytes(cfg.MaxLineBytes),
		mcp.WithRateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		mcp.WithLogger(log),
		mcp.WithMetrics(mcp.NewMetrics(reg)),
	)
	return &App{cfg: cfg, dispatcher: d, registry: reg, server: srv, log: log}, nil
}

var errStopSignal = errors.New("stop signal received")

// Run serves MCP on the configured address, plus metrics when a metrics
// address is set, until ctx is cancelled, SIGINT/SIGTERM arrives or one of
// them fails. Failing to bind either address is returned as an error.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.server.ListenAndServe(ctx, a.cfg.Address)
	})

	if a.cfg.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
		hs := &http.Server{Addr: a.cfg.MetricsAddress, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			a.log.WithField("address", a.cfg.MetricsAddress).Info("serving metrics")
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrapf(err, "metrics server on %s", a.cfg.MetricsAddress)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return hs.Shutdown(shutdownCtx)
		})
	}

	// Cancel the errgroup context on SIGINT and SIGTERM,
	// which shuts everything down gracefully.
	stopSignal := make(chan os.Signal, 1)
	signal.Notify(stopSignal, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stopSignal)
	g.Go(func() error {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-stopSignal:
			a.log.WithField("signal", sig.String()).Info("shutting down")
			return errStopSignal
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errStopSignal) {
		return err
	}
	return nil
}

// ServeConn serves a single peer on rw, for example stdin/stdout, until it
// reaches end of stream.
func (a *App) ServeConn(ctx context.Context, rw io.ReadWriter) error {
	return a.server.ServeConn(ctx, rw)
}

// ListTools returns the tool metadata without going over the network.
func (a *App) ListTools() []mcp.Tool {
	return a.dispatcher.Tools().List()
}

// ListResources returns the resource metadata without going over the network.
func (a *App) ListResources() []mcp.Resource {
	return a.dispatcher.Resources().List()
}

func (a *App) PrintTools(w io.Writer, format Format) error {
	tools := a.ListTools()
	switch format {
	case FormatJSON:
		return writeJSON(w, mcp.ListToolsResult{Tools: tools})
	case FormatMarkdown:
		_, err := w.Write(markdown.Render(toolsMarkdown(tools), 80, 2))
		return err
	default:
		var b strings.Builder
		for _, t := range tools {
			fmt.Fprintf(&b, "Tool: %s\n", t.Name)
			fmt.Fprintf(&b, "Description: %s\n", t.Description)
			fmt.Fprintln(&b, "Parameters:")
			for _, p := range parameters(t.InputSchema) {
				fmt.Fprintf(&b, "  - %s: %s\n", p.name, p.summary())
			}
			fmt.Fprintln(&b)
		}
		_, err := io.WriteString(w, b.String())
		return err
	}
}

func (a *App) PrintResources(w io.Writer, format Format) error {
	resources := a.ListResources()
	switch format {
	case FormatJSON:
		return writeJSON(w, mcp.ListResourcesResult{Resources: resources})
	case FormatMarkdown:
		var b strings.Builder
		b.WriteString("# Resources\n\n")
		for _, r := range resources {
			fmt.Fprintf(&b, "- `%s` (%s)\n", r.URI, r.MimeType)
		}
		_, err := w.Write(markdown.Render(b.String(), 80, 2))
		return err
	default:
		var b strings.Builder
		b.WriteString("Available resources:\n")
		for _, r := range resources {
			fmt.Fprintf(&b, "- %s (%s)\n", r.URI, r.MimeType)
		}
		_, err := io.WriteString(w, b.String())
		return err
	}
}

type parameter struct {
	name     string
	prop     mcp.Property
	required bool
}

func (p parameter) summary() string {
	s := p.prop.Description
	if p.prop.Type != "" {
		s = fmt.Sprintf("%s [%s]", s, p.prop.Type)
	}
	if p.required {
		s += " (required)"
	}
	return s
}

// parameters lists schema properties sorted by name.
func parameters(s mcp.InputSchema) []parameter {
	required := make(map[string]bool, len(s.Required))
	for _, r := range s.Required {
		required[r] = true
	}
	out := make([]parameter, 0, len(s.Properties))
	for name, prop := range s.Properties {
		out = append(out, parameter{name: name, prop: prop, required: required[name]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func toolsMarkdown(tools []mcp.Tool) string {
	var b strings.Builder
	b.WriteString("# Tools\n\n")
	for _, t := range tools {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", t.Name, t.Description)
		for _, p := range parameters(t.InputSchema) {
			fmt.Fprintf(&b, "- **%s**: %s\n", p.name, p.summary())
		}
		b.WriteString("\n")
	}
	return b.String()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

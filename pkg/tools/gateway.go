package tools

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gobwas/glob"

	"github.com/entrhq/pilot/pkg/llm"
	"github.com/entrhq/pilot/pkg/logging"
	"github.com/entrhq/pilot/pkg/snapshot"
	"github.com/entrhq/pilot/pkg/tracing"
	"github.com/entrhq/pilot/pkg/types"
)

// Acknowledgment replaces the result of every successful non-snapshot tool.
// The model is expected to take a snapshot when it needs to see the page.
const Acknowledgment = "Done."

const (
	// DefaultSnapshotTool is the tool whose results are page snapshots.
	DefaultSnapshotTool = "browser_snapshot"

	// DefaultMaxErrorChars caps error text passed back to the model.
	DefaultMaxErrorChars = 500

	// previewElements is how many element lines an observation keeps.
	previewElements = 20
)

// ErrToolNotAllowed is returned when the model calls a tool outside the allow-list.
var ErrToolNotAllowed = errors.New("tool not allowed")

// Stats accumulates per-run gateway accounting.
type Stats struct {
	Calls     int
	Failures  int
	RawBytes  int
	SentBytes int
}

// Gateway exposes an allow-listed, serialized, size-capped view of a Backend.
// It implements llm.ToolInvoker.
type Gateway struct {
	backend       Backend
	logger        *logging.Logger
	patterns      []string
	allow         []glob.Glob
	snapshotTool  string
	maxErrorChars int

	mu    sync.Mutex
	specs []llm.ToolSpec
	known map[string]bool
	stats Stats
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithAllowList sets the glob patterns of tools the model may call.
func WithAllowList(patterns ...string) GatewayOption {
	return func(g *Gateway) {
		g.patterns = patterns
	}
}

// WithSnapshotTool names the tool whose results are compressed rather than acknowledged.
func WithSnapshotTool(name string) GatewayOption {
	return func(g *Gateway) {
		if name != "" {
			g.snapshotTool = name
		}
	}
}

// WithMaxErrorChars caps error text returned to the model.
func WithMaxErrorChars(n int) GatewayOption {
	return func(g *Gateway) {
		if n > 0 {
			g.maxErrorChars = n
		}
	}
}

// WithLogger sets the debug logger.
func WithLogger(l *logging.Logger) GatewayOption {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGateway lists the backend's tools and keeps those matching the
// allow-list. With no allow-list every tool is exposed.
func NewGateway(ctx context.Context, backend Backend, opts ...GatewayOption) (*Gateway, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is required")
	}

	g := &Gateway{
		backend:       backend,
		logger:        logging.Nop(),
		snapshotTool:  DefaultSnapshotTool,
		maxErrorChars: DefaultMaxErrorChars,
		known:         make(map[string]bool),
	}
	for _, opt := range opts {
		opt(g)
	}

	for _, p := range g.patterns {
		compiled, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid allow-list pattern %q: %w", p, err)
		}
		g.allow = append(g.allow, compiled)
	}

	available, err := backend.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list backend tools: %w", err)
	}

	for _, info := range available {
		if !g.allowed(info.Name) {
			continue
		}
		g.known[info.Name] = true
		g.specs = append(g.specs, llm.ToolSpec{
			Name:        info.Name,
			Description: info.Description,
			InputSchema: info.InputSchema,
		})
	}

	g.logger.Infof("exposing %d of %d backend tools", len(g.specs), len(available))
	if len(g.specs) == 0 {
		return nil, fmt.Errorf("no backend tools match the allow-list %v", g.patterns)
	}
	return g, nil
}

func (g *Gateway) allowed(name string) bool {
	if len(g.allow) == 0 {
		return true
	}
	for _, a := range g.allow {
		if a.Match(name) {
			return true
		}
	}
	return false
}

// Specs returns the exposed tools.
func (g *Gateway) Specs() []llm.ToolSpec {
	out := make([]llm.ToolSpec, len(g.specs))
	copy(out, g.specs)
	return out
}

// Invoke runs an exposed tool and returns the text the model should see:
// a compressed snapshot for the snapshot tool, the fixed acknowledgment for
// every other successful call, or truncated error text with a non-nil error.
func (g *Gateway) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	if !g.known[name] {
		err := fmt.Errorf("%w: %s", ErrToolNotAllowed, name)
		return "Error: " + err.Error(), err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	ctx, span := tracing.TraceToolInvoke(ctx, name)
	defer span.End()

	g.stats.Calls++
	res, err := g.backend.Invoke(ctx, name, args)
	if err != nil {
		g.stats.Failures++
		g.logger.Warnf("tool %s failed: %v", name, err)
		tracing.TraceToolResult(span, 0, 0, err)
		return "Error: " + g.truncate(err.Error()), err
	}
	if res == nil {
		res = &Result{}
	}

	if res.IsError {
		g.stats.Failures++
		msg := g.truncate(res.Content)
		if msg == "" {
			msg = "tool reported an error"
		}
		toolErr := errors.New(msg)
		g.logger.Debugf("tool %s returned error: %s", name, msg)
		tracing.TraceToolResult(span, len(res.Content), len(msg), toolErr)
		return "Error: " + msg, toolErr
	}

	sent := Acknowledgment
	if name == g.snapshotTool {
		compressed := snapshot.CompressWithStats(res.Content)
		sent = compressed.Text
		g.logger.Debugf("snapshot %d -> %d bytes (%d elements)", compressed.OriginalBytes, compressed.CompressedBytes, compressed.Elements)
	}

	g.stats.RawBytes += len(res.Content)
	g.stats.SentBytes += len(sent)
	tracing.TraceToolResult(span, len(res.Content), len(sent), nil)
	return sent, nil
}

// Observe describes the current page. Backends implementing Observer are
// asked directly; otherwise the snapshot tool is invoked and parsed.
func (g *Gateway) Observe(ctx context.Context) (*types.PageState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if obs, ok := g.backend.(Observer); ok {
		return obs.Observe(ctx)
	}

	if !g.known[g.snapshotTool] {
		return nil, fmt.Errorf("snapshot tool %s is not available", g.snapshotTool)
	}

	res, err := g.backend.Invoke(ctx, g.snapshotTool, map[string]any{})
	if err != nil {
		return nil, fmt.Errorf("failed to take snapshot: %w", err)
	}
	if res == nil || res.IsError {
		return nil, fmt.Errorf("snapshot tool reported an error")
	}

	return PageStateFromSnapshot(res.Content), nil
}

// PageStateFromSnapshot builds a PageState from raw snapshot text.
func PageStateFromSnapshot(raw string) *types.PageState {
	page, ok := snapshot.Parse(raw)
	if !ok {
		return &types.PageState{}
	}

	state := &types.PageState{
		URL:           page.URL,
		Title:         page.Title,
		Loaded:        true,
		TotalElements: len(page.Elements),
	}
	for i, el := range page.Elements {
		if i >= previewElements {
			break
		}
		state.Elements = append(state.Elements, el.String())
	}
	return state
}

// Stats returns a copy of the accumulated accounting.
func (g *Gateway) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stats
}

// Close closes the backend.
func (g *Gateway) Close() error {
	return g.backend.Close()
}

// truncate caps s at maxErrorChars runes.
func (g *Gateway) truncate(s string) string {
	r := []rune(s)
	if len(r) <= g.maxErrorChars {
		return s
	}
	return string(r[:g.maxErrorChars]) + "…"
}

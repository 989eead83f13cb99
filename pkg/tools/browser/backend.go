package browser

import (
	"context"
	"fmt"

	"github.com/entrhq/pilot/pkg/logging"
	"github.com/entrhq/pilot/pkg/tools"
	"github.com/entrhq/pilot/pkg/types"
)

// Backend runs the browser tools in-process against a Driver. It implements
// tools.Backend and tools.Observer.
type Backend struct {
	driver   Driver
	registry *ToolRegistry
	manager  *SessionManager
	logger   *logging.Logger
}

// BackendOption configures a Backend.
type BackendOption func(*Backend)

// WithRegistry replaces the default tool set.
func WithRegistry(r *ToolRegistry) BackendOption {
	return func(b *Backend) {
		if r != nil {
			b.registry = r
		}
	}
}

// WithLogger sets the debug logger.
func WithLogger(l *logging.Logger) BackendOption {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBackend creates a backend acting on driver.
func NewBackend(driver Driver, opts ...BackendOption) *Backend {
	b := &Backend{
		driver:   driver,
		registry: NewToolRegistry(DefaultTools()...),
		logger:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Launch starts Playwright and Chromium and returns a backend owning them.
func Launch(sessionOpts SessionOptions, install bool, opts ...BackendOption) (*Backend, error) {
	manager := NewSessionManager(install)
	if err := manager.Initialize(); err != nil {
		return nil, err
	}

	session, err := manager.Start(sessionOpts)
	if err != nil {
		_ = manager.Shutdown()
		return nil, err
	}

	b := NewBackend(session, opts...)
	b.manager = manager
	b.logger.Infof("browser started (headless=%v)", sessionOpts.Headless)
	return b, nil
}

// ListTools describes the registered tools.
func (b *Backend) ListTools(context.Context) ([]tools.ToolInfo, error) {
	registered := b.registry.GetTools()
	infos := make([]tools.ToolInfo, 0, len(registered))
	for _, t := range registered {
		infos = append(infos, tools.ToolInfo{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.Schema(),
		})
	}
	return infos, nil
}

// Invoke runs a tool. Tool failures are reported in the result; only an
// unknown tool or a missing driver is a backend error.
func (b *Backend) Invoke(ctx context.Context, name string, args map[string]any) (*tools.Result, error) {
	if b.driver == nil {
		return nil, ErrNoSession
	}
	t, ok := b.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown browser tool %q", name)
	}
	if args == nil {
		args = map[string]any{}
	}

	out, err := t.Execute(ctx, b.driver, args)
	if err != nil {
		b.logger.Debugf("%s failed: %v", name, err)
		return &tools.Result{Content: err.Error(), IsError: true}, nil
	}
	return &tools.Result{Content: out}, nil
}

// Observe describes the current page from its HTML.
func (b *Backend) Observe(ctx context.Context) (*types.PageState, error) {
	if b.driver == nil {
		return nil, ErrNoSession
	}
	content, err := b.driver.Content(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read page content: %w", err)
	}

	state, err := pageStateFromHTML(content)
	if err != nil {
		return nil, err
	}
	state.URL = b.driver.URL()
	if state.Title == "" {
		state.Title, _ = b.driver.Title()
	}
	return state, nil
}

// Close shuts the browser down when the backend launched it.
func (b *Backend) Close() error {
	if b.manager == nil {
		return nil
	}
	return b.manager.Shutdown()
}

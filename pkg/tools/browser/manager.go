package browser

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// ErrNoSession is returned when a tool runs before the browser is started.
var ErrNoSession = errors.New("browser session not started")

// SessionManager owns the Playwright driver and the run's single browser
// session.
type SessionManager struct {
	mu          sync.RWMutex
	playwright  *playwright.Playwright
	session     *Session
	install     bool
	initialized bool
}

// NewSessionManager creates a new session manager. When install is true the
// Playwright driver and browsers are downloaded on first use.
func NewSessionManager(install bool) *SessionManager {
	return &SessionManager{install: install}
}

// Initialize starts the Playwright driver.
// This must be called before starting the session.
func (m *SessionManager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}

	// keep driver chatter off the terminal the reporter draws on
	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if m.install {
		if err := playwright.Install(opts); err != nil {
			return fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	m.playwright = pw
	m.initialized = true
	return nil
}

// Start launches Chromium and opens the page all tools act on.
func (m *SessionManager) Start(opts SessionOptions) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		return nil, fmt.Errorf("browser session already started")
	}
	if !m.initialized {
		return nil, fmt.Errorf("session manager not initialized")
	}

	if opts.Viewport == nil {
		opts.Viewport = &Viewport{
			Width:  DefaultViewportWidth,
			Height: DefaultViewportHeight,
		}
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}

	browser, err := m.playwright.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		// media autoplay must not wait for a user gesture
		Args: []string{"--autoplay-policy=no-user-gesture-required"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  opts.Viewport.Width,
			Height: opts.Viewport.Height,
		},
	})
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = browser.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(opts.Timeout)

	now := time.Now()
	m.session = &Session{
		Browser:    browser,
		Context:    bctx,
		Page:       page,
		Headless:   opts.Headless,
		CreatedAt:  now,
		LastUsedAt: now,
	}
	return m.session, nil
}

// Session returns the running session.
func (m *SessionManager) Session() (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.session == nil {
		return nil, ErrNoSession
	}
	return m.session, nil
}

// Shutdown closes the session and stops Playwright.
func (m *SessionManager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	if s := m.session; s != nil {
		// close page, context, then browser; keep going on failure
		if err := s.Page.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := s.Context.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := s.Browser.Close(); err != nil {
			errs = append(errs, err)
		}
		m.session = nil
	}

	if m.initialized && m.playwright != nil {
		if err := m.playwright.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
		m.initialized = false
	}

	return errors.Join(errs...)
}

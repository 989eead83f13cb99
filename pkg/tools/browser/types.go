package browser

import (
	"time"

	"github.com/playwright-community/playwright-go"
)

// Session represents the run's browser with its associated resources.
type Session struct {
	// Browser is the Playwright browser instance
	Browser playwright.Browser

	// Context is the browser context (isolated cookies and storage)
	Context playwright.BrowserContext

	// Page is the single page every tool acts on
	Page playwright.Page

	// Headless indicates if the browser is running without a window
	Headless bool

	// CreatedAt is the timestamp when the session was created
	CreatedAt time.Time

	// LastUsedAt is the timestamp of the last operation on this session
	LastUsedAt time.Time
}

// SessionOptions configures the browser session.
type SessionOptions struct {
	// Headless controls whether the browser runs without a visible window
	Headless bool

	// Viewport sets the initial viewport size
	Viewport *Viewport

	// Timeout sets the default timeout for operations (in milliseconds)
	Timeout float64
}

// Viewport represents the browser viewport dimensions.
type Viewport struct {
	Width  int
	Height int
}

// WaitOptions configures browser_wait_for.
type WaitOptions struct {
	// Text waits for the text to appear on the page
	Text string

	// TextGone waits for the text to disappear
	TextGone string

	// Seconds waits for a fixed time
	Seconds float64
}

// Default configuration values
const (
	// DefaultViewportWidth is the default browser viewport width
	DefaultViewportWidth = 1280

	// DefaultViewportHeight is the default browser viewport height
	DefaultViewportHeight = 800

	// DefaultTimeout is the default operation timeout in milliseconds
	DefaultTimeout = 30000.0

	// MaxWaitSeconds caps fixed waits requested by the model
	MaxWaitSeconds = 30.0

	// refAttribute is stamped on every element the snapshot script lists
	refAttribute = "data-pilot-ref"
)

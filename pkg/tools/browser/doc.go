// Package browser drives Chromium through Playwright and exposes the page to
// the agent as a small set of ref-based tools.
//
// # Architecture
//
// The package is built around three pieces:
//
// 1. Session: the run's Playwright browser, context and single page
// 2. SessionManager: starts Playwright, owns the session and shuts it down
// 3. Backend: a tools.Backend dispatching tool calls to a Driver
//
// # Refs
//
// browser_snapshot walks the DOM, stamps a data-pilot-ref attribute on every
// element with a role and returns the role tree with those refs. Every other
// tool addresses elements by ref, so the model must take a fresh snapshot
// whenever the page changes. Refs are reassigned on every snapshot.
//
// # Tools
//
//   - browser_snapshot: capture the page
//   - browser_navigate, browser_navigate_back: move between pages
//   - browser_click, browser_hover: pointer actions
//   - browser_type, browser_press_key, browser_select_option: input
//   - browser_wait_for: wait for text or time
//
// # Example Usage
//
//	backend, err := browser.Launch(browser.SessionOptions{
//	    Headless: true,
//	    Viewport: &browser.Viewport{Width: 1280, Height: 800},
//	}, true)
//	if err != nil {
//	    return err
//	}
//	defer backend.Close()
//
//	res, err := backend.Invoke(ctx, "browser_navigate", map[string]any{"url": "https://example.com"})
package browser

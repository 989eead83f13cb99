// Package tools connects the agent to a tool-execution backend that drives
// the browser.
//
// A Backend lists and invokes tools. The Gateway sits between the backend and
// the model provider: it exposes only allow-listed tools, runs one call at a
// time, and shrinks every result before the model sees it.
package tools

import (
	"context"

	"github.com/entrhq/pilot/pkg/types"
)

// ToolInfo describes a tool offered by a backend.
type ToolInfo struct {
	Name        string
	Description string

	// InputSchema is the JSON Schema of the tool's arguments. May be nil.
	InputSchema map[string]any
}

// Result is what a backend returns for one invocation.
type Result struct {
	// Content is the textual result, possibly a page snapshot.
	Content string

	// IsError reports a tool-level failure such as a missing element.
	IsError bool

	// Raw holds the backend's native result for logging. May be nil.
	Raw any
}

// Backend executes browser tools. Implementations need not be safe for
// concurrent use; the Gateway serializes calls.
type Backend interface {
	ListTools(ctx context.Context) ([]ToolInfo, error)

	// Invoke runs a tool. A non-nil error means the backend itself failed;
	// tool-level failures are reported through Result.IsError.
	Invoke(ctx context.Context, name string, args map[string]any) (*Result, error)

	Close() error
}

// Observer is implemented by backends that can describe the current page
// without going through a snapshot tool.
type Observer interface {
	Observe(ctx context.Context) (*types.PageState, error)
}

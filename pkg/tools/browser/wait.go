package browser

import (
	"context"
	"fmt"
	"strings"
)

// WaitForTool waits for text or for a fixed time.
type WaitForTool struct{}

// NewWaitForTool creates a new wait tool.
func NewWaitForTool() *WaitForTool {
	return &WaitForTool{}
}

// Name returns the tool name.
func (t *WaitForTool) Name() string {
	return "browser_wait_for"
}

// Description returns the tool description.
func (t *WaitForTool) Description() string {
	return "Wait for text to appear or disappear, or for a number of seconds. Useful while content is loading."
}

// Schema returns the tool's JSON schema.
func (t *WaitForTool) Schema() map[string]interface{} {
	return baseSchema(
		map[string]interface{}{
			"text":     stringProp("Text to wait for"),
			"textGone": stringProp("Text to wait to disappear"),
			"time": map[string]interface{}{
				"type":        "number",
				"description": fmt.Sprintf("Seconds to wait, at most %.0f", MaxWaitSeconds),
			},
		},
		nil,
	)
}

// Execute waits.
func (t *WaitForTool) Execute(ctx context.Context, d Driver, args map[string]any) (string, error) {
	opts := WaitOptions{
		Text:     stringArg(args, "text"),
		TextGone: stringArg(args, "textGone"),
		Seconds:  numberArg(args, "time"),
	}
	if opts.Text == "" && opts.TextGone == "" && opts.Seconds <= 0 {
		return "", fmt.Errorf("one of text, textGone or time is required")
	}
	if opts.Seconds > MaxWaitSeconds {
		opts.Seconds = MaxWaitSeconds
	}

	if err := d.WaitFor(ctx, opts); err != nil {
		return "", err
	}

	var parts []string
	if opts.Seconds > 0 {
		parts = append(parts, fmt.Sprintf("%g seconds", opts.Seconds))
	}
	if opts.Text != "" {
		parts = append(parts, fmt.Sprintf("text %q to appear", opts.Text))
	}
	if opts.TextGone != "" {
		parts = append(parts, fmt.Sprintf("text %q to disappear", opts.TextGone))
	}
	return "Waited for " + strings.Join(parts, " and "), nil
}

package browser

import (
	"context"
	"fmt"
)

// NavigateTool loads a URL in the page.
type NavigateTool struct{}

// NewNavigateTool creates a new navigate tool.
func NewNavigateTool() *NavigateTool {
	return &NavigateTool{}
}

// Name returns the tool name.
func (t *NavigateTool) Name() string {
	return "browser_navigate"
}

// Description returns the tool description.
func (t *NavigateTool) Description() string {
	return "Navigate to a URL. The page is loaded and ready for interaction when the call returns."
}

// Schema returns the tool's JSON schema.
func (t *NavigateTool) Schema() map[string]interface{} {
	return baseSchema(
		map[string]interface{}{
			"url": stringProp("URL to navigate to, e.g. https://example.com"),
		},
		[]string{"url"},
	)
}

// Execute navigates to the requested URL.
func (t *NavigateTool) Execute(ctx context.Context, d Driver, args map[string]any) (string, error) {
	url, err := requiredString(args, "url")
	if err != nil {
		return "", err
	}
	if err := d.Navigate(ctx, url); err != nil {
		return "", err
	}
	return fmt.Sprintf("Navigated to %s", d.URL()), nil
}

// NavigateBackTool goes back in the page history.
type NavigateBackTool struct{}

// NewNavigateBackTool creates a new back navigation tool.
func NewNavigateBackTool() *NavigateBackTool {
	return &NavigateBackTool{}
}

// Name returns the tool name.
func (t *NavigateBackTool) Name() string {
	return "browser_navigate_back"
}

// Description returns the tool description.
func (t *NavigateBackTool) Description() string {
	return "Go back to the previous page."
}

// Schema returns the tool's JSON schema.
func (t *NavigateBackTool) Schema() map[string]interface{} {
	return baseSchema(map[string]interface{}{}, nil)
}

// Execute goes back one page.
func (t *NavigateBackTool) Execute(ctx context.Context, d Driver, _ map[string]any) (string, error) {
	if err := d.Back(ctx); err != nil {
		return "", err
	}
	return fmt.Sprintf("Navigated back to %s", d.URL()), nil
}

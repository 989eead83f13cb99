package browser

import (
	"context"
	"fmt"
)

// ClickTool clicks an element by ref.
type ClickTool struct{}

// NewClickTool creates a new click tool.
func NewClickTool() *ClickTool {
	return &ClickTool{}
}

// Name returns the tool name.
func (t *ClickTool) Name() string {
	return "browser_click"
}

// Description returns the tool description.
func (t *ClickTool) Description() string {
	return "Click an element on the page. Use the ref from the latest snapshot."
}

// Schema returns the tool's JSON schema.
func (t *ClickTool) Schema() map[string]interface{} {
	return baseSchema(
		map[string]interface{}{
			"element": stringProp("Human-readable description of the element, used for logging"),
			"ref":     refProp,
		},
		[]string{"ref"},
	)
}

// Execute clicks the element.
func (t *ClickTool) Execute(ctx context.Context, d Driver, args map[string]any) (string, error) {
	ref, err := requiredString(args, "ref")
	if err != nil {
		return "", err
	}
	if err := d.Click(ctx, ref); err != nil {
		return "", err
	}
	return fmt.Sprintf("Clicked %s", describe(args, ref)), nil
}

// HoverTool moves the pointer over an element.
type HoverTool struct{}

// NewHoverTool creates a new hover tool.
func NewHoverTool() *HoverTool {
	return &HoverTool{}
}

// Name returns the tool name.
func (t *HoverTool) Name() string {
	return "browser_hover"
}

// Description returns the tool description.
func (t *HoverTool) Description() string {
	return "Hover over an element, e.g. to reveal a menu. Use the ref from the latest snapshot."
}

// Schema returns the tool's JSON schema.
func (t *HoverTool) Schema() map[string]interface{} {
	return baseSchema(
		map[string]interface{}{
			"element": stringProp("Human-readable description of the element, used for logging"),
			"ref":     refProp,
		},
		[]string{"ref"},
	)
}

// Execute hovers the element.
func (t *HoverTool) Execute(ctx context.Context, d Driver, args map[string]any) (string, error) {
	ref, err := requiredString(args, "ref")
	if err != nil {
		return "", err
	}
	if err := d.Hover(ctx, ref); err != nil {
		return "", err
	}
	return fmt.Sprintf("Hovered %s", describe(args, ref)), nil
}

// describe names an element for result text.
func describe(args map[string]any, ref string) string {
	if el := stringArg(args, "element"); el != "" {
		return fmt.Sprintf("%s (%s)", el, NormalizeRef(ref))
	}
	return NormalizeRef(ref)
}

package browser

import (
	"context"
	"fmt"
	"strings"
)

// TypeTool fills an editable element.
type TypeTool struct{}

// NewTypeTool creates a new type tool.
func NewTypeTool() *TypeTool {
	return &TypeTool{}
}

// Name returns the tool name.
func (t *TypeTool) Name() string {
	return "browser_type"
}

// Description returns the tool description.
func (t *TypeTool) Description() string {
	return "Type text into an editable element, replacing its value. Set submit to press Enter afterwards."
}

// Schema returns the tool's JSON schema.
func (t *TypeTool) Schema() map[string]interface{} {
	return baseSchema(
		map[string]interface{}{
			"element": stringProp("Human-readable description of the element, used for logging"),
			"ref":     refProp,
			"text":    stringProp("Text to type"),
			"submit": map[string]interface{}{
				"type":        "boolean",
				"description": "Press Enter after typing",
			},
		},
		[]string{"ref", "text"},
	)
}

// Execute types into the element.
func (t *TypeTool) Execute(ctx context.Context, d Driver, args map[string]any) (string, error) {
	ref, err := requiredString(args, "ref")
	if err != nil {
		return "", err
	}
	// empty text is allowed and clears the field
	text, _ := args["text"].(string)
	submit := boolArg(args, "submit")

	if err := d.Type(ctx, ref, text, submit); err != nil {
		return "", err
	}
	if submit {
		return fmt.Sprintf("Typed %q into %s and submitted", text, describe(args, ref)), nil
	}
	return fmt.Sprintf("Typed %q into %s", text, describe(args, ref)), nil
}

// PressKeyTool presses a keyboard key.
type PressKeyTool struct{}

// NewPressKeyTool creates a new key press tool.
func NewPressKeyTool() *PressKeyTool {
	return &PressKeyTool{}
}

// Name returns the tool name.
func (t *PressKeyTool) Name() string {
	return "browser_press_key"
}

// Description returns the tool description.
func (t *PressKeyTool) Description() string {
	return "Press a key on the keyboard, e.g. Enter, Escape, ArrowDown or a character such as k."
}

// Schema returns the tool's JSON schema.
func (t *PressKeyTool) Schema() map[string]interface{} {
	return baseSchema(
		map[string]interface{}{
			"key": stringProp("Name of the key to press, e.g. ArrowLeft or a"),
		},
		[]string{"key"},
	)
}

// Execute presses the key.
func (t *PressKeyTool) Execute(ctx context.Context, d Driver, args map[string]any) (string, error) {
	key, err := requiredString(args, "key")
	if err != nil {
		return "", err
	}
	if err := d.PressKey(ctx, key); err != nil {
		return "", err
	}
	return fmt.Sprintf("Pressed %s", key), nil
}

// SelectOptionTool picks options in a dropdown.
type SelectOptionTool struct{}

// NewSelectOptionTool creates a new select tool.
func NewSelectOptionTool() *SelectOptionTool {
	return &SelectOptionTool{}
}

// Name returns the tool name.
func (t *SelectOptionTool) Name() string {
	return "browser_select_option"
}

// Description returns the tool description.
func (t *SelectOptionTool) Description() string {
	return "Select one or more options in a dropdown by value or label."
}

// Schema returns the tool's JSON schema.
func (t *SelectOptionTool) Schema() map[string]interface{} {
	return baseSchema(
		map[string]interface{}{
			"element": stringProp("Human-readable description of the element, used for logging"),
			"ref":     refProp,
			"values": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Values or labels of the options to select",
			},
		},
		[]string{"ref", "values"},
	)
}

// Execute selects the options.
func (t *SelectOptionTool) Execute(ctx context.Context, d Driver, args map[string]any) (string, error) {
	ref, err := requiredString(args, "ref")
	if err != nil {
		return "", err
	}
	values := stringsArg(args, "values")
	if len(values) == 0 {
		return "", fmt.Errorf("values is required")
	}
	if err := d.SelectOption(ctx, ref, values); err != nil {
		return "", err
	}
	return fmt.Sprintf("Selected %s in %s", strings.Join(values, ", "), describe(args, ref)), nil
}

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// ToolSpec describes a tool the model may call.
type ToolSpec struct {
	Name        string
	Description string

	// InputSchema is a JSON Schema object describing the arguments.
	InputSchema map[string]any
}

// ToolInvoker exposes tools to a provider.
//
// Invoke returns the text the model should see for the call. A non-nil error
// marks the call as failed; the returned text then describes the failure so
// the model can recover.
type ToolInvoker interface {
	Specs() []ToolSpec
	Invoke(ctx context.Context, name string, args map[string]any) (string, error)
}

// ObjectSchema returns schema as-is, or an empty object schema when nil.
// Providers require a JSON object schema even for argument-less tools.
func ObjectSchema(schema map[string]any) map[string]any {
	if len(schema) == 0 {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return schema
}

// DecodeArguments parses a tool-call argument payload as produced by a model.
// Empty payloads decode to an empty map.
func DecodeArguments(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return map[string]any{}, nil
	}
	args := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("invalid tool arguments: %w", err)
	}
	return args, nil
}

// CallTool runs one tool call on behalf of a provider: it emits tool_start,
// invokes the tool, emits tool_end, and returns the text to hand back to the
// model along with whether the call failed.
func CallTool(ctx context.Context, out chan<- StreamEvent, tools ToolInvoker, name string, args map[string]any) (string, bool) {
	Send(ctx, out, ToolStartEvent(name))

	if tools == nil {
		err := fmt.Errorf("tool %q is not available", name)
		Send(ctx, out, ToolEndEvent(name, err))
		return "Error: " + err.Error(), true
	}

	content, err := tools.Invoke(ctx, name, args)
	Send(ctx, out, ToolEndEvent(name, err))
	if err != nil {
		if content == "" {
			content = "Error: " + err.Error()
		}
		return content, true
	}
	return content, false
}

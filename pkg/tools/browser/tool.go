package browser

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Tool is one browser operation the model can call.
type Tool interface {
	// Name returns the tool name the model calls (e.g., "browser_click")
	Name() string

	// Description returns what the tool does, as shown to the model
	Description() string

	// Schema returns the JSON schema of the tool's arguments
	Schema() map[string]interface{}

	// Execute runs the tool against the page and returns its raw result text
	Execute(ctx context.Context, d Driver, args map[string]any) (string, error)
}

// baseSchema creates the JSON schema object for a tool with the given
// properties and required fields.
func baseSchema(properties map[string]interface{}, required []string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

var refProp = stringProp("Element ref from the latest snapshot, e.g. e12")

// stringArg reads a string argument.
func stringArg(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// requiredString reads a string argument that must be present.
func requiredString(args map[string]any, key string) (string, error) {
	v := stringArg(args, key)
	if v == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

// boolArg reads a boolean argument; models sometimes send "true" as a string.
func boolArg(args map[string]any, key string) bool {
	switch v := args[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(v))
		return b
	}
	return false
}

// numberArg reads a numeric argument.
func numberArg(args map[string]any, key string) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f
	}
	return 0
}

// stringsArg reads a list of strings, accepting a single string too.
func stringsArg(args map[string]any, key string) []string {
	switch v := args[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		if v = strings.TrimSpace(v); v != "" {
			return []string{v}
		}
	}
	return nil
}

package browser

import "sort"

// ToolRegistry holds the browser tools by name.
type ToolRegistry struct {
	tools map[string]Tool
	order []string
}

// NewToolRegistry creates a registry holding the given tools.
func NewToolRegistry(tools ...Tool) *ToolRegistry {
	r := &ToolRegistry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// DefaultTools returns every browser tool, snapshot first.
func DefaultTools() []Tool {
	return []Tool{
		NewSnapshotTool(),
		NewNavigateTool(),
		NewNavigateBackTool(),
		NewClickTool(),
		NewTypeTool(),
		NewPressKeyTool(),
		NewSelectOptionTool(),
		NewHoverTool(),
		NewWaitForTool(),
	}
}

// Register adds a tool, replacing any tool with the same name.
func (r *ToolRegistry) Register(t Tool) {
	if _, exists := r.tools[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// Get returns the named tool.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// GetTools returns the tools in registration order.
func (r *ToolRegistry) GetTools() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Names returns the registered tool names, sorted.
func (r *ToolRegistry) Names() []string {
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}

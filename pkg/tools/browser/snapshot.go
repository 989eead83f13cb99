package browser

import "context"

// SnapshotTool captures the page's accessibility tree.
type SnapshotTool struct{}

// NewSnapshotTool creates a new snapshot tool.
func NewSnapshotTool() *SnapshotTool {
	return &SnapshotTool{}
}

// Name returns the tool name.
func (t *SnapshotTool) Name() string {
	return "browser_snapshot"
}

// Description returns the tool description.
func (t *SnapshotTool) Description() string {
	return "Capture the current page as a list of elements. Every other browser tool targets elements by the refs this returns, so take a new snapshot after the page changes."
}

// Schema returns the tool's JSON schema.
func (t *SnapshotTool) Schema() map[string]interface{} {
	return baseSchema(map[string]interface{}{}, nil)
}

// Execute takes the snapshot.
func (t *SnapshotTool) Execute(ctx context.Context, d Driver, _ map[string]any) (string, error) {
	return d.Snapshot(ctx)
}

// Package mcpclient runs browser tools out of process through a Model Context
// Protocol server such as @playwright/mcp.
package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/entrhq/pilot/pkg/logging"
	"github.com/entrhq/pilot/pkg/tools"
)

const (
	clientName    = "pilot"
	clientVersion = "1.0.0"
)

// Client is the subset of the mcp-go client the backend uses.
type Client interface {
	Initialize(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// Backend implements tools.Backend over an initialized MCP session.
type Backend struct {
	client Client
	logger *logging.Logger
	server string

	closeOnce sync.Once
	closeErr  error
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the debug logger.
func WithLogger(l *logging.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// Start launches command as a stdio MCP server and performs the handshake.
func Start(ctx context.Context, command string, args []string, env []string, opts ...Option) (*Backend, error) {
	if strings.TrimSpace(command) == "" {
		return nil, fmt.Errorf("mcp command is required")
	}

	c, err := client.NewStdioMCPClient(command, env, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to start mcp server %q: %w", command, err)
	}

	b, err := New(ctx, c, opts...)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	return b, nil
}

// New performs the MCP handshake on an already started client.
func New(ctx context.Context, c Client, opts ...Option) (*Backend, error) {
	b := &Backend{client: c, logger: logging.Nop()}
	for _, opt := range opts {
		opt(b)
	}

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{
		Name:    clientName,
		Version: clientVersion,
	}

	res, err := c.Initialize(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("mcp initialize failed: %w", err)
	}
	b.server = res.ServerInfo.Name
	b.logger.Infof("connected to mcp server %s %s (protocol %s)", res.ServerInfo.Name, res.ServerInfo.Version, res.ProtocolVersion)
	return b, nil
}

// Server returns the name the server reported during the handshake.
func (b *Backend) Server() string {
	return b.server
}

// ListTools returns the server's tools.
func (b *Backend) ListTools(ctx context.Context) ([]tools.ToolInfo, error) {
	res, err := b.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("mcp list tools failed: %w", err)
	}

	infos := make([]tools.ToolInfo, 0, len(res.Tools))
	for _, t := range res.Tools {
		infos = append(infos, tools.ToolInfo{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: inputSchema(t),
		})
	}
	return infos, nil
}

// Invoke calls a tool on the server. Text content blocks are joined with
// newlines; other block kinds are noted by type.
func (b *Backend) Invoke(ctx context.Context, name string, args map[string]any) (*tools.Result, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	if args == nil {
		args = map[string]any{}
	}
	req.Params.Arguments = args

	res, err := b.client.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("mcp call %s failed: %w", name, err)
	}

	return &tools.Result{
		Content: contentText(res.Content),
		IsError: res.IsError,
		Raw:     res,
	}, nil
}

// Close ends the session and stops the server process.
func (b *Backend) Close() error {
	b.closeOnce.Do(func() {
		b.closeErr = b.client.Close()
	})
	return b.closeErr
}

// inputSchema converts a tool's schema to a plain JSON Schema object.
func inputSchema(t mcp.Tool) map[string]any {
	if len(t.RawInputSchema) > 0 {
		schema := map[string]any{}
		if err := json.Unmarshal(t.RawInputSchema, &schema); err == nil {
			return schema
		}
	}

	schemaType := t.InputSchema.Type
	if schemaType == "" {
		schemaType = "object"
	}
	properties := t.InputSchema.Properties
	if properties == nil {
		properties = map[string]any{}
	}
	schema := map[string]any{
		"type":       schemaType,
		"properties": properties,
	}
	if len(t.InputSchema.Required) > 0 {
		schema["required"] = t.InputSchema.Required
	}
	return schema
}

func contentText(blocks []mcp.Content) string {
	parts := make([]string, 0, len(blocks))
	for _, block := range blocks {
		switch c := block.(type) {
		case mcp.TextContent:
			parts = append(parts, c.Text)
		case *mcp.TextContent:
			parts = append(parts, c.Text)
		case mcp.ImageContent:
			parts = append(parts, fmt.Sprintf("[image %s]", c.MIMEType))
		case *mcp.ImageContent:
			parts = append(parts, fmt.Sprintf("[image %s]", c.MIMEType))
		default:
			parts = append(parts, fmt.Sprintf("[%T]", block))
		}
	}
	return strings.Join(parts, "\n")
}

// Package anthropic provides an LLM provider backed by the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"fmt"
	"os"

	anthropic "github.com/liushuangls/go-anthropic/v2"

	"github.com/entrhq/pilot/pkg/llm"
	"github.com/entrhq/pilot/pkg/logging"
	"github.com/entrhq/pilot/pkg/types"
)

const (
	// DefaultModel is used when WithModel is not given.
	DefaultModel = "claude-sonnet-4-20250514"

	defaultMaxTokens = 4096

	// toolChoiceNone keeps tools defined while forbidding their use.
	toolChoiceNone = "none"
)

// Provider implements llm.Provider on top of go-anthropic's streaming client.
type Provider struct {
	client  *anthropic.Client
	logger  *logging.Logger
	model   string
	baseURL string
}

// ProviderOption is a function that configures a Provider.
type ProviderOption func(*Provider)

// WithModel sets the model to use.
func WithModel(model string) ProviderOption {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithBaseURL points the client at a different API endpoint.
func WithBaseURL(baseURL string) ProviderOption {
	return func(p *Provider) {
		p.baseURL = baseURL
	}
}

// WithLogger sets the debug logger.
func WithLogger(l *logging.Logger) ProviderOption {
	return func(p *Provider) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewProvider creates a new Anthropic provider.
//
// If apiKey is empty, it will attempt to read from the ANTHROPIC_API_KEY environment variable.
func NewProvider(apiKey string, opts ...ProviderOption) (*Provider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required (provide via parameter or ANTHROPIC_API_KEY environment variable)")
	}

	p := &Provider{
		model:  DefaultModel,
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	var clientOpts []anthropic.ClientOption
	if p.baseURL != "" {
		clientOpts = append(clientOpts, anthropic.WithBaseURL(p.baseURL))
	}
	p.client = anthropic.NewClient(apiKey, clientOpts...)

	return p, nil
}

// GetModel returns the model name being used.
func (p *Provider) GetModel() string {
	return p.model
}

// Stream runs one turn. Anthropic's SDK streams through callbacks, which are
// adapted onto the returned channel. Tool-use blocks are executed after each
// round and their results sent back until the model stops asking for tools.
func (p *Provider) Stream(ctx context.Context, req *llm.Request) (<-chan llm.StreamEvent, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}

	events := make(chan llm.StreamEvent, 16)
	go func() {
		defer close(events)
		if err := p.runTurn(ctx, req, events); err != nil {
			llm.Send(ctx, events, llm.ErrorEvent(err))
		}
	}()
	return events, nil
}

func (p *Provider) runTurn(ctx context.Context, req *llm.Request, events chan<- llm.StreamEvent) error {
	messages := buildMessages(req)
	tools := buildTools(req.Tools)

	for round := 0; ; round++ {
		// the last round must answer in text, but tools stay defined since
		// the history already holds tool_use blocks
		lastRound := round >= llm.MaxToolRounds

		resp, streamErr := p.streamRound(ctx, req, messages, tools, lastRound, events)
		if streamErr != nil {
			return streamErr
		}

		uses := toolUses(resp.Content)
		if len(uses) == 0 || len(tools) == 0 || lastRound {
			return nil
		}

		p.logger.Debugf("round %d: model requested %d tool call(s)", round+1, len(uses))
		messages = append(messages, anthropic.Message{
			Role:    anthropic.RoleAssistant,
			Content: resp.Content,
		})

		results := make([]anthropic.MessageContent, 0, len(uses))
		for _, use := range uses {
			args, err := llm.DecodeArguments(string(use.Input))
			var content string
			failed := true
			if err != nil {
				llm.Send(ctx, events, llm.ToolStartEvent(use.Name))
				llm.Send(ctx, events, llm.ToolEndEvent(use.Name, err))
				content = "Error: " + err.Error()
			} else {
				content, failed = llm.CallTool(ctx, events, req.Tools, use.Name, args)
			}
			if content == "" {
				content = "{}"
			}
			results = append(results, anthropic.NewToolResultMessageContent(use.ID, content, failed))
		}
		messages = append(messages, anthropic.Message{
			Role:    anthropic.RoleUser,
			Content: results,
		})

		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// streamRound performs one streaming request, forwarding text deltas.
func (p *Provider) streamRound(ctx context.Context, req *llm.Request, messages []anthropic.Message, tools []anthropic.ToolDefinition, noToolUse bool, events chan<- llm.StreamEvent) (anthropic.MessagesResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	streamReq := anthropic.MessagesStreamRequest{
		MessagesRequest: anthropic.MessagesRequest{
			Model:     anthropic.Model(p.model),
			Messages:  messages,
			MaxTokens: maxTokens,
		},
	}
	if req.Temperature > 0 {
		t := float32(req.Temperature)
		streamReq.Temperature = &t
	}
	if req.SystemPrompt != "" {
		streamReq.System = req.SystemPrompt
	}
	if len(tools) > 0 {
		streamReq.Tools = tools
		if noToolUse {
			streamReq.ToolChoice = &anthropic.ToolChoice{Type: toolChoiceNone}
		}
	}

	var streamErr error
	streamReq.OnError = func(errResp anthropic.ErrorResponse) {
		streamErr = fmt.Errorf("anthropic streaming error: %v", errResp.Error)
	}
	streamReq.OnContentBlockDelta = func(delta anthropic.MessagesEventContentBlockDeltaData) {
		if delta.Delta.Type == "text_delta" && delta.Delta.Text != nil {
			llm.Send(ctx, events, llm.TextEvent(*delta.Delta.Text))
		}
	}

	resp, err := p.client.CreateMessagesStream(ctx, streamReq)
	if err != nil {
		return resp, fmt.Errorf("anthropic stream failed: %w", err)
	}
	if streamErr != nil {
		return resp, streamErr
	}
	return resp, nil
}

// buildMessages converts a request's history and prompt to Anthropic messages.
// System-role history entries are folded into user turns since the system
// prompt travels separately.
func buildMessages(req *llm.Request) []anthropic.Message {
	messages := make([]anthropic.Message, 0, len(req.History)+1)
	for _, msg := range req.History {
		if msg == nil || msg.Content == "" {
			continue
		}
		role := anthropic.RoleUser
		if msg.Role == types.RoleAssistant {
			role = anthropic.RoleAssistant
		}
		messages = append(messages, anthropic.Message{
			Role:    role,
			Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(msg.Content)},
		})
	}
	messages = append(messages, anthropic.Message{
		Role:    anthropic.RoleUser,
		Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(req.Prompt)},
	})
	return mergeConsecutive(messages)
}

// mergeConsecutive joins adjacent messages of the same role; the Messages API
// requires alternating roles.
func mergeConsecutive(messages []anthropic.Message) []anthropic.Message {
	merged := make([]anthropic.Message, 0, len(messages))
	for _, m := range messages {
		if n := len(merged); n > 0 && merged[n-1].Role == m.Role {
			merged[n-1].Content = append(merged[n-1].Content, m.Content...)
			continue
		}
		merged = append(merged, m)
	}
	return merged
}

// buildTools converts tool specs into Anthropic tool definitions.
func buildTools(tools llm.ToolInvoker) []anthropic.ToolDefinition {
	if tools == nil {
		return nil
	}
	specs := tools.Specs()
	defs := make([]anthropic.ToolDefinition, 0, len(specs))
	for _, spec := range specs {
		defs = append(defs, anthropic.ToolDefinition{
			Name:        spec.Name,
			Description: spec.Description,
			InputSchema: llm.ObjectSchema(spec.InputSchema),
		})
	}
	return defs
}

// toolUses extracts completed tool_use blocks in response order.
func toolUses(content []anthropic.MessageContent) []*anthropic.MessageContentToolUse {
	var uses []*anthropic.MessageContentToolUse
	for _, block := range content {
		if block.Type == "tool_use" && block.MessageContentToolUse != nil && block.Name != "" {
			uses = append(uses, block.MessageContentToolUse)
		}
	}
	return uses
}

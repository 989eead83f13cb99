// Package openai provides an OpenAI-compatible LLM provider implementation.
//
// Example usage:
//
//	provider, err := openai.NewProvider(
//	    os.Getenv("OPENAI_API_KEY"),
//	    openai.WithModel("gpt-4o"),
//	)
//	if err != nil {
//	    panic(err)
//	}
//
//	events, err := provider.Stream(ctx, &llm.Request{Prompt: "Hello!"})
//	if err != nil {
//	    panic(err)
//	}
//	for ev := range events {
//	    fmt.Print(ev.Text)
//	}
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/entrhq/pilot/pkg/llm"
	"github.com/entrhq/pilot/pkg/logging"
	"github.com/entrhq/pilot/pkg/types"
	"github.com/openai/openai-go"
)

const (
	// DefaultBaseURL is the default OpenAI API base URL
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is used when WithModel is not given.
	DefaultModel = "gpt-4o"
)

// Provider implements the LLM provider interface for OpenAI-compatible APIs.
type Provider struct {
	httpClient *http.Client
	logger     *logging.Logger
	apiKey     string
	baseURL    string
	model      string
}

// ProviderOption is a function that configures a Provider.
type ProviderOption func(*Provider)

// WithModel sets the model to use for completions.
func WithModel(model string) ProviderOption {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithBaseURL sets a custom base URL for OpenAI-compatible APIs.
// This enables using Azure OpenAI, local models, or other compatible services.
func WithBaseURL(baseURL string) ProviderOption {
	return func(p *Provider) {
		if baseURL != "" {
			p.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient overrides the HTTP client used for API calls.
func WithHTTPClient(c *http.Client) ProviderOption {
	return func(p *Provider) {
		p.httpClient = c
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

// NewProvider creates a new OpenAI provider with the given API key.
//
// If apiKey is empty, it will attempt to read from the OPENAI_API_KEY environment variable.
// If baseURL is not provided via WithBaseURL option, it will check OPENAI_BASE_URL environment variable.
func NewProvider(apiKey string, opts ...ProviderOption) (*Provider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required (provide via parameter or OPENAI_API_KEY environment variable)")
	}

	p := &Provider{
		model:      DefaultModel,
		apiKey:     apiKey,
		httpClient: &http.Client{},
		baseURL:    DefaultBaseURL,
		logger:     logging.Nop(),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.baseURL == DefaultBaseURL {
		if envBaseURL := os.Getenv("OPENAI_BASE_URL"); envBaseURL != "" {
			p.baseURL = strings.TrimRight(envBaseURL, "/")
		}
	}

	return p, nil
}

// GetModel returns the model name being used.
func (p *Provider) GetModel() string {
	return p.model
}

// GetBaseURL returns the base URL being used.
func (p *Provider) GetBaseURL() string {
	return p.baseURL
}

// Stream runs one turn against the chat completions endpoint.
//
// Text deltas are forwarded as they arrive. When the model finishes a round
// with tool calls, each call is executed in order through req.Tools and the
// results are sent back in a follow-up request, up to llm.MaxToolRounds.
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

// runTurn performs the model⇄tool rounds of a single turn.
func (p *Provider) runTurn(ctx context.Context, req *llm.Request, events chan<- llm.StreamEvent) error {
	messages := buildMessages(req)
	tools := buildTools(req.Tools)

	for round := 0; ; round++ {
		offerTools := tools
		if round >= llm.MaxToolRounds {
			offerTools = nil
		}

		resp, err := p.sendStreamRequest(ctx, req, messages, offerTools)
		if err != nil {
			return err
		}

		result, err := p.processStreamResponse(ctx, resp, events)
		if err != nil {
			return err
		}

		if len(result.toolCalls) == 0 || len(offerTools) == 0 {
			return nil
		}

		p.logger.Debugf("round %d: model requested %d tool call(s)", round+1, len(result.toolCalls))
		messages = append(messages, assistantToolCallMessage(result.text, result.toolCalls))

		for _, call := range result.toolCalls {
			args, err := llm.DecodeArguments(call.arguments)
			var content string
			if err != nil {
				llm.Send(ctx, events, llm.ToolStartEvent(call.name))
				llm.Send(ctx, events, llm.ToolEndEvent(call.name, err))
				content = "Error: " + err.Error()
			} else {
				content, _ = llm.CallTool(ctx, events, req.Tools, call.name, args)
			}
			messages = append(messages, openai.ToolMessage(content, call.id))
		}

		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// chatRequest is the wire body for a streaming chat completion.
type chatRequest struct {
	Model       string                                   `json:"model"`
	Messages    []openai.ChatCompletionMessageParamUnion `json:"messages"`
	Tools       []openai.ChatCompletionToolParam         `json:"tools,omitempty"`
	Temperature *float64                                 `json:"temperature,omitempty"`
	MaxTokens   int                                      `json:"max_tokens,omitempty"`
	User        string                                   `json:"user,omitempty"`
	Stream      bool                                     `json:"stream"`
}

// sendStreamRequest creates and sends the HTTP request for streaming
func (p *Provider) sendStreamRequest(ctx context.Context, req *llm.Request, messages []openai.ChatCompletionMessageParamUnion, tools []openai.ChatCompletionToolParam) (*http.Response, error) {
	body := chatRequest{
		Model:     p.model,
		Messages:  messages,
		Tools:     tools,
		MaxTokens: req.MaxTokens,
		User:      req.SessionHint,
		Stream:    true,
	}
	if req.Temperature > 0 {
		t := req.Temperature
		body.Temperature = &t
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := p.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("API request failed with status %d (failed to read error body: %w)", resp.StatusCode, readErr)
		}
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return resp, nil
}

// toolCall is a tool call reassembled from streamed deltas.
type toolCall struct {
	id        string
	name      string
	arguments string
}

// roundResult is what one streamed round produced.
type roundResult struct {
	text      string
	toolCalls []toolCall
}

// streamChunk is the subset of a chat.completion.chunk we consume.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// processStreamResponse reads the SSE stream of one round, forwarding text
// and reassembling tool calls by index.
func (p *Provider) processStreamResponse(ctx context.Context, resp *http.Response, events chan<- llm.StreamEvent) (*roundResult, error) {
	defer resp.Body.Close()

	var text strings.Builder
	calls := map[int]*toolCall{}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !isValidSSELine(line) {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			p.logger.Debugf("skipping malformed chunk: %v", err)
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta
		if delta.Content != "" {
			text.WriteString(delta.Content)
			if !llm.Send(ctx, events, llm.TextEvent(delta.Content)) {
				return nil, ctx.Err()
			}
		}

		for _, tc := range delta.ToolCalls {
			call, ok := calls[tc.Index]
			if !ok {
				call = &toolCall{}
				calls[tc.Index] = call
			}
			if tc.ID != "" {
				call.id = tc.ID
			}
			call.name += tc.Function.Name
			call.arguments += tc.Function.Arguments
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("stream read error: %w", err)
	}

	indexes := make([]int, 0, len(calls))
	for i := range calls {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	result := &roundResult{text: text.String()}
	for _, i := range indexes {
		if calls[i].name == "" {
			continue
		}
		result.toolCalls = append(result.toolCalls, *calls[i])
	}
	return result, nil
}

// isValidSSELine checks if a line is a valid SSE data line
func isValidSSELine(line string) bool {
	return line != "" && !strings.HasPrefix(line, ":") && strings.HasPrefix(line, "data: ")
}

// buildMessages converts a request into OpenAI's message format.
func buildMessages(req *llm.Request) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, convertToOpenAIMessages(req.History)...)
	messages = append(messages, openai.UserMessage(req.Prompt))
	return messages
}

// buildTools converts tool specs into OpenAI function tools.
func buildTools(tools llm.ToolInvoker) []openai.ChatCompletionToolParam {
	if tools == nil {
		return nil
	}
	specs := tools.Specs()
	params := make([]openai.ChatCompletionToolParam, 0, len(specs))
	for _, spec := range specs {
		params = append(params, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        spec.Name,
				Description: openai.String(spec.Description),
				Parameters:  openai.FunctionParameters(llm.ObjectSchema(spec.InputSchema)),
			},
		})
	}
	return params
}

// assistantToolCallMessage echoes the model's tool calls back so the
// follow-up request can attach results to them.
func assistantToolCallMessage(text string, calls []toolCall) openai.ChatCompletionMessageParamUnion {
	toolCalls := make([]openai.ChatCompletionMessageToolCallParam, 0, len(calls))
	for _, c := range calls {
		args := c.arguments
		if strings.TrimSpace(args) == "" {
			args = "{}"
		}
		toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
			ID: c.id,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      c.name,
				Arguments: args,
			},
		})
	}

	msg := openai.ChatCompletionAssistantMessageParam{ToolCalls: toolCalls}
	if text != "" {
		msg.Content.OfString = openai.String(text)
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &msg}
}

// convertToOpenAIMessages converts our Message format to OpenAI's ChatCompletionMessageParamUnion format.
func convertToOpenAIMessages(messages []*types.Message) []openai.ChatCompletionMessageParamUnion {
	openaiMessages := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))

	for _, msg := range messages {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case types.RoleSystem:
			openaiMessages = append(openaiMessages, openai.SystemMessage(msg.Content))
		case types.RoleUser:
			openaiMessages = append(openaiMessages, openai.UserMessage(msg.Content))
		case types.RoleAssistant:
			openaiMessages = append(openaiMessages, openai.AssistantMessage(msg.Content))
		default:
			// Default to user message for unknown roles
			openaiMessages = append(openaiMessages, openai.UserMessage(msg.Content))
		}
	}

	return openaiMessages
}

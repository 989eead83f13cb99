package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	anthropic "github.com/liushuangls/go-anthropic/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/pilot/pkg/llm"
	"github.com/entrhq/pilot/pkg/types"
)

type stubTools struct {
	mu    sync.Mutex
	calls []string
	args  []map[string]any
	err   error
}

func (*stubTools) Specs() []llm.ToolSpec {
	return []llm.ToolSpec{
		{Name: "browser_snapshot", Description: "Capture the page"},
		{Name: "browser_click", Description: "Click", InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"ref": map[string]any{"type": "string"}},
		}},
	}
}

func (s *stubTools) Invoke(_ context.Context, name string, args map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, name)
	s.args = append(s.args, args)
	if s.err != nil {
		return "Error: " + s.err.Error(), s.err
	}
	return "ok", nil
}

func TestNewProviderRequiresKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := NewProvider("")
	assert.Error(t, err)

	p, err := NewProvider("key", WithModel("claude-3-5-haiku-latest"))
	require.NoError(t, err)
	assert.Equal(t, "claude-3-5-haiku-latest", p.GetModel())

	p, err = NewProvider("key")
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, p.GetModel())
}

func TestBuildMessagesAlternatesRoles(t *testing.T) {
	req := &llm.Request{
		Prompt: "step 3",
		History: []*types.Message{
			types.NewUserMessage("step 1"),
			types.NewAssistantMessage("clicked"),
			types.NewUserMessage("step 2"),
			types.NewSystemMessage("note"),
			types.NewAssistantMessage(""),
		},
	}

	msgs := buildMessages(req)
	require.Len(t, msgs, 3)
	assert.Equal(t, anthropic.RoleUser, msgs[0].Role)
	assert.Equal(t, anthropic.RoleAssistant, msgs[1].Role)
	assert.Equal(t, anthropic.RoleUser, msgs[2].Role)
	// step 2, the folded system note and the new prompt share one user turn
	require.Len(t, msgs[2].Content, 3)
	assert.Equal(t, "step 3", *msgs[2].Content[2].Text)
}

func TestBuildTools(t *testing.T) {
	defs := buildTools(&stubTools{})
	require.Len(t, defs, 2)

	assert.Equal(t, "browser_snapshot", defs[0].Name)
	schema, err := json.Marshal(defs[0].InputSchema)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"object","properties":{}}`, string(schema))

	assert.Equal(t, "browser_click", defs[1].Name)
	assert.Nil(t, buildTools(nil))
}

func TestToolUses(t *testing.T) {
	content := []anthropic.MessageContent{
		anthropic.NewTextMessageContent("Let me look."),
		anthropic.NewToolUseMessageContent("tu_1", "browser_snapshot", json.RawMessage(`{}`)),
		anthropic.NewToolUseMessageContent("tu_2", "browser_click", json.RawMessage(`{"ref":"e3"}`)),
	}

	uses := toolUses(content)
	require.Len(t, uses, 2)
	assert.Equal(t, "tu_1", uses[0].ID)
	assert.Equal(t, "browser_click", uses[1].Name)
	assert.JSONEq(t, `{"ref":"e3"}`, string(uses[1].Input))
}

// sseEvent is one named server-sent event of a Messages stream.
type sseEvent struct {
	name string
	data any
}

func sse(events ...sseEvent) string {
	var b strings.Builder
	for _, ev := range events {
		data, _ := json.Marshal(ev.data)
		fmt.Fprintf(&b, "event: %s\ndata: %s\n\n", ev.name, data)
	}
	return b.String()
}

func messageStart() sseEvent {
	return sseEvent{"message_start", map[string]any{
		"type": "message_start",
		"message": map[string]any{
			"id": "msg_1", "type": "message", "role": "assistant", "content": []any{},
			"model": DefaultModel, "usage": map[string]any{"input_tokens": 12, "output_tokens": 1},
		},
	}}
}

func messageEnd(stopReason string) []sseEvent {
	return []sseEvent{
		{"message_delta", map[string]any{
			"type":  "message_delta",
			"delta": map[string]any{"stop_reason": stopReason},
			"usage": map[string]any{"output_tokens": 20},
		}},
		{"message_stop", map[string]any{"type": "message_stop"}},
	}
}

func textBlock(index int, parts ...string) []sseEvent {
	evs := []sseEvent{{"content_block_start", map[string]any{
		"type": "content_block_start", "index": index,
		"content_block": map[string]any{"type": "text", "text": ""},
	}}}
	for _, p := range parts {
		evs = append(evs, sseEvent{"content_block_delta", map[string]any{
			"type": "content_block_delta", "index": index,
			"delta": map[string]any{"type": "text_delta", "text": p},
		}})
	}
	return append(evs, sseEvent{"content_block_stop", map[string]any{"type": "content_block_stop", "index": index}})
}

func toolUseBlock(index int, id, name, input string) []sseEvent {
	return []sseEvent{
		{"content_block_start", map[string]any{
			"type": "content_block_start", "index": index,
			"content_block": map[string]any{"type": "tool_use", "id": id, "name": name, "input": map[string]any{}},
		}},
		{"content_block_delta", map[string]any{
			"type": "content_block_delta", "index": index,
			"delta": map[string]any{"type": "input_json_delta", "partial_json": input},
		}},
		{"content_block_stop", map[string]any{"type": "content_block_stop", "index": index}},
	}
}

func textReply(parts ...string) string {
	evs := []sseEvent{messageStart()}
	evs = append(evs, textBlock(0, parts...)...)
	return sse(append(evs, messageEnd("end_turn")...)...)
}

func toolReply(text, id, name, input string) string {
	evs := []sseEvent{messageStart()}
	evs = append(evs, textBlock(0, text)...)
	evs = append(evs, toolUseBlock(1, id, name, input)...)
	return sse(append(evs, messageEnd("tool_use")...)...)
}

// messagesServer answers each request with respond and records the decoded
// request bodies. It rejects requests that carry tool blocks in the history
// without defining tools, as the Messages API does.
func messagesServer(t *testing.T, respond func(n int, body map[string]any) string) (*httptest.Server, func() []map[string]any) {
	t.Helper()
	var mu sync.Mutex
	var requests []map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/messages"))
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)

		mu.Lock()
		requests = append(requests, body)
		n := len(requests)
		mu.Unlock()

		if _, hasTools := body["tools"]; !hasTools && strings.Contains(string(raw), `"tool_use"`) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"type":"error","error":{"type":"invalid_request_error","message":"Requests which include tool_use or tool_result blocks must define tools."}}`)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, respond(n, body))
	}))
	t.Cleanup(srv.Close)

	return srv, func() []map[string]any {
		mu.Lock()
		defer mu.Unlock()
		return append([]map[string]any(nil), requests...)
	}
}

func newTestProvider(t *testing.T, srv *httptest.Server) *Provider {
	t.Helper()
	p, err := NewProvider("test-key", WithBaseURL(srv.URL+"/v1"))
	require.NoError(t, err)
	return p
}

func collect(ch <-chan llm.StreamEvent) []llm.StreamEvent {
	var out []llm.StreamEvent
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func TestStreamForwardsTextDeltas(t *testing.T) {
	srv, requests := messagesServer(t, func(int, map[string]any) string {
		return textReply("Hello", ", world")
	})

	ch, err := newTestProvider(t, srv).Stream(context.Background(), &llm.Request{
		SystemPrompt: "be brief",
		Prompt:       "hi",
		History:      []*types.Message{types.NewUserMessage("earlier"), types.NewAssistantMessage("ok")},
		Temperature:  0.3,
		MaxTokens:    100,
	})
	require.NoError(t, err)

	events := collect(ch)
	assert.Equal(t, []llm.StreamEvent{llm.TextEvent("Hello"), llm.TextEvent(", world")}, events)

	reqs := requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, true, reqs[0]["stream"])
	assert.Equal(t, "be brief", reqs[0]["system"])
	assert.EqualValues(t, 100, reqs[0]["max_tokens"])
	assert.Len(t, reqs[0]["messages"], 3)
	_, hasTools := reqs[0]["tools"]
	assert.False(t, hasTools)
}

func TestStreamToolRoundTrip(t *testing.T) {
	srv, requests := messagesServer(t, func(n int, _ map[string]any) string {
		if n == 1 {
			return toolReply("Clicking.", "toolu_1", "browser_click", `{"ref":"e3"}`)
		}
		return textReply("TASK COMPLETE: clicked")
	})

	tools := &stubTools{}
	ch, err := newTestProvider(t, srv).Stream(context.Background(), &llm.Request{Prompt: "click it", Tools: tools})
	require.NoError(t, err)

	events := collect(ch)
	require.Len(t, events, 4)
	assert.Equal(t, llm.TextEvent("Clicking."), events[0])
	assert.Equal(t, llm.ToolStartEvent("browser_click"), events[1])
	assert.Equal(t, llm.ToolEndEvent("browser_click", nil), events[2])
	assert.Equal(t, llm.TextEvent("TASK COMPLETE: clicked"), events[3])

	require.Equal(t, []string{"browser_click"}, tools.calls)
	assert.Equal(t, "e3", tools.args[0]["ref"])

	reqs := requests()
	require.Len(t, reqs, 2)
	assert.Len(t, reqs[0]["tools"], 2)

	msgs := reqs[1]["messages"].([]any)
	require.Len(t, msgs, 3)
	assistant := msgs[1].(map[string]any)
	assert.Equal(t, "assistant", assistant["role"])
	result := msgs[2].(map[string]any)["content"].([]any)[0].(map[string]any)
	assert.Equal(t, "tool_result", result["type"])
	assert.Equal(t, "toolu_1", result["tool_use_id"])
}

func TestStreamToolErrorIsNotFatal(t *testing.T) {
	srv, _ := messagesServer(t, func(n int, _ map[string]any) string {
		if n == 1 {
			return toolReply("Looking.", "toolu_1", "browser_snapshot", `{}`)
		}
		return textReply("retrying")
	})

	tools := &stubTools{err: errors.New("no page")}
	ch, err := newTestProvider(t, srv).Stream(context.Background(), &llm.Request{Prompt: "look", Tools: tools})
	require.NoError(t, err)

	events := collect(ch)
	require.Len(t, events, 4)
	assert.EqualError(t, events[2].ToolErr, "no page")
	for _, ev := range events {
		assert.False(t, ev.IsError())
	}
}

func TestStreamLastToolRoundForbidsToolUse(t *testing.T) {
	srv, requests := messagesServer(t, func(_ int, body map[string]any) string {
		if choice, ok := body["tool_choice"].(map[string]any); ok && choice["type"] == "none" {
			return textReply("TASK FAILED: ran out of tool rounds")
		}
		return toolReply("Again.", "toolu_x", "browser_snapshot", `{}`)
	})

	tools := &stubTools{}
	ch, err := newTestProvider(t, srv).Stream(context.Background(), &llm.Request{Prompt: "loop", Tools: tools})
	require.NoError(t, err)

	events := collect(ch)
	require.NotEmpty(t, events)
	for _, ev := range events {
		require.False(t, ev.IsError(), "unexpected stream error: %v", ev.Err)
	}
	assert.Equal(t, llm.TextEvent("TASK FAILED: ran out of tool rounds"), events[len(events)-1])
	assert.Len(t, tools.calls, llm.MaxToolRounds)

	reqs := requests()
	require.Len(t, reqs, llm.MaxToolRounds+1)
	for _, r := range reqs[:llm.MaxToolRounds] {
		_, forced := r["tool_choice"]
		assert.False(t, forced)
	}
	last := reqs[llm.MaxToolRounds]
	assert.Len(t, last["tools"], 2, "tools stay defined while the history holds tool blocks")
	assert.Equal(t, map[string]any{"type": "none"}, last["tool_choice"])
}

func TestStreamErrorEvent(t *testing.T) {
	srv, _ := messagesServer(t, func(int, map[string]any) string {
		evs := []sseEvent{messageStart()}
		evs = append(evs, textBlock(0, "Partial")...)
		evs = append(evs, sseEvent{"error", map[string]any{
			"type":  "error",
			"error": map[string]any{"type": "overloaded_error", "message": "Overloaded"},
		}})
		return sse(evs...)
	})

	ch, err := newTestProvider(t, srv).Stream(context.Background(), &llm.Request{Prompt: "hi"})
	require.NoError(t, err)

	events := collect(ch)
	require.Len(t, events, 2)
	assert.Equal(t, llm.TextEvent("Partial"), events[0])
	require.True(t, events[1].IsError())
	assert.Contains(t, events[1].Err.Error(), "Overloaded")
}

func TestStreamStartFailureBecomesErrorEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	}))
	defer srv.Close()

	ch, err := newTestProvider(t, srv).Stream(context.Background(), &llm.Request{Prompt: "hi"})
	require.NoError(t, err)

	events := collect(ch)
	require.Len(t, events, 1)
	require.True(t, events[0].IsError())
	assert.Contains(t, events[0].Err.Error(), "401")
	assert.Contains(t, events[0].Err.Error(), "invalid x-api-key")
}

func TestStreamRequiresRequest(t *testing.T) {
	p, err := NewProvider("key")
	require.NoError(t, err)
	_, err = p.Stream(context.Background(), nil)
	assert.Error(t, err)
}

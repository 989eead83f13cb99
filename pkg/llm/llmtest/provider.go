// Package llmtest provides a scripted llm.Provider for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/entrhq/pilot/pkg/llm"
)

// ToolCall is a tool invocation the scripted model performs.
type ToolCall struct {
	Name string
	Args map[string]any
}

// Turn scripts one call to Stream.
type Turn struct {
	// ToolCalls run through the request's tools before any text is sent.
	ToolCalls []ToolCall

	// Text is delivered as a single text fragment.
	Text string

	// StartErr makes Stream itself fail.
	StartErr error

	// StreamErr is delivered as the final event, after Text.
	StreamErr error
}

// Text scripts a turn that answers with s.
func Text(s string) Turn {
	return Turn{Text: s}
}

// Fail scripts a turn whose stream breaks with err.
func Fail(err error) Turn {
	return Turn{StreamErr: err}
}

// Provider replays scripted turns in order. Once the script is exhausted it
// keeps answering with Fallback.
type Provider struct {
	mu       sync.Mutex
	turns    []Turn
	next     int
	requests []*llm.Request

	Model    string
	Fallback Turn
}

// New creates a provider that plays back turns.
func New(turns ...Turn) *Provider {
	return &Provider{
		turns:    turns,
		Model:    "scripted",
		Fallback: Text("continuing"),
	}
}

// GetModel returns the configured model name.
func (p *Provider) GetModel() string {
	return p.Model
}

// Requests returns every request received so far.
func (p *Provider) Requests() []*llm.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*llm.Request, len(p.requests))
	copy(out, p.requests)
	return out
}

// Calls returns how many times Stream was called.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// Stream plays the next scripted turn.
func (p *Provider) Stream(ctx context.Context, req *llm.Request) (<-chan llm.StreamEvent, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	turn := p.Fallback
	if p.next < len(p.turns) {
		turn = p.turns[p.next]
		p.next++
	}
	p.mu.Unlock()

	if turn.StartErr != nil {
		return nil, turn.StartErr
	}

	events := make(chan llm.StreamEvent)
	go func() {
		defer close(events)

		for _, call := range turn.ToolCalls {
			args := call.Args
			if args == nil {
				args = map[string]any{}
			}
			llm.CallTool(ctx, events, req.Tools, call.Name, args)
		}
		if turn.Text != "" {
			if !llm.Send(ctx, events, llm.TextEvent(turn.Text)) {
				return
			}
		}
		if turn.StreamErr != nil {
			llm.Send(ctx, events, llm.ErrorEvent(turn.StreamErr))
		}
	}()
	return events, nil
}

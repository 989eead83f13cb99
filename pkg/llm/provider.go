// Package llm provides abstractions for LLM provider integration.
//
// Example usage:
//
//	package main
//
//	import (
//	    "context"
//	    "fmt"
//	    "log"
//
//	    "github.com/entrhq/pilot/pkg/llm"
//	    "github.com/entrhq/pilot/pkg/llm/openai"
//	)
//
//	func main() {
//	    provider, err := openai.NewProvider("", openai.WithModel("gpt-4o"))
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    events, err := provider.Stream(context.Background(), &llm.Request{
//	        SystemPrompt: "You are a helpful assistant.",
//	        Prompt:       "Hello!",
//	    })
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    for ev := range events {
//	        if ev.IsError() {
//	            log.Fatal(ev.Err)
//	        }
//	        fmt.Print(ev.Text)
//	    }
//	}
package llm

import (
	"context"

	"github.com/entrhq/pilot/pkg/types"
)

// MaxToolRounds bounds how many model⇄tool round trips a provider performs
// inside a single turn before it stops offering tool results back.
const MaxToolRounds = 10

// Request is one turn's worth of input to a provider.
type Request struct {
	// SystemPrompt carries the instructions for this turn.
	SystemPrompt string

	// Prompt is the user message composed for this turn.
	Prompt string

	// History holds prior conversation entries, oldest first, already
	// truncated for transmission.
	History []*types.Message

	Temperature float64
	MaxTokens   int

	// SessionHint correlates provider-side logs with the turn. Optional.
	SessionHint string

	// Tools, when set, are offered to the model and invoked by the provider.
	Tools ToolInvoker
}

// Provider defines the interface for LLM integrations.
//
// A provider runs one turn: it sends the request, streams text back as it
// arrives, and when the model asks for tools it invokes them through the
// request's ToolInvoker and continues the conversation until the model
// produces a final answer or MaxToolRounds is reached.
//
// Events are delivered on the returned channel strictly in the order they
// happen. The channel is closed when the turn ends. A stream-time failure is
// delivered as a final event with Err set; tool failures are reported on the
// corresponding tool_end event and never end the stream.
type Provider interface {
	// Stream starts a turn and returns its ordered event stream.
	//
	// Returns an error only if the turn cannot be started (for example an
	// invalid request). Everything after that arrives on the channel.
	Stream(ctx context.Context, req *Request) (<-chan StreamEvent, error)

	// GetModel returns the model name being used.
	GetModel() string
}

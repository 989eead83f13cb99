package llm

import "context"

// StreamEventType discriminates the events a provider emits.
type StreamEventType string

const (
	EventText      StreamEventType = "text"       // EventText carries a fragment of response text.
	EventToolStart StreamEventType = "tool_start" // EventToolStart fires before a tool is invoked.
	EventToolEnd   StreamEventType = "tool_end"   // EventToolEnd fires after a tool returns.
	EventError     StreamEventType = "error"      // EventError terminates the stream.
)

// StreamEvent is a single item on a provider's event stream.
type StreamEvent struct {
	Type     StreamEventType
	Text     string
	ToolName string
	ToolErr  error
	Err      error
}

// TextEvent creates a text fragment event.
func TextEvent(text string) StreamEvent {
	return StreamEvent{Type: EventText, Text: text}
}

// ToolStartEvent creates a tool-invocation-started event.
func ToolStartEvent(name string) StreamEvent {
	return StreamEvent{Type: EventToolStart, ToolName: name}
}

// ToolEndEvent creates a tool-invocation-ended event. toolErr is nil on success.
func ToolEndEvent(name string, toolErr error) StreamEvent {
	return StreamEvent{Type: EventToolEnd, ToolName: name, ToolErr: toolErr}
}

// ErrorEvent creates a terminal stream failure event.
func ErrorEvent(err error) StreamEvent {
	return StreamEvent{Type: EventError, Err: err}
}

// IsError reports whether the event terminates the stream with a failure.
func (e StreamEvent) IsError() bool {
	return e.Err != nil
}

// Send delivers ev unless ctx is done first. It returns false if the event
// was dropped because the consumer went away.
func Send(ctx context.Context, ch chan<- StreamEvent, ev StreamEvent) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

package types

// AgentEventType defines the type of event emitted by the agent during a run.
type AgentEventType string

const (
	EventTypeRunStart       AgentEventType = "run_start"         // EventTypeRunStart indicates a run has started.
	EventTypeStepStart      AgentEventType = "step_start"        // EventTypeStepStart indicates a new iteration has begun.
	EventTypeMessageContent AgentEventType = "message_content"   // EventTypeMessageContent carries a text fragment streamed from the model.
	EventTypeToolCall       AgentEventType = "tool_call"         // EventTypeToolCall indicates the model invoked a tool.
	EventTypeToolResult     AgentEventType = "tool_result"       // EventTypeToolResult indicates a tool finished successfully.
	EventTypeToolResultErr  AgentEventType = "tool_result_error" // EventTypeToolResultErr indicates a tool finished with an error.
	EventTypeStepEnd        AgentEventType = "step_end"          // EventTypeStepEnd indicates an iteration finished.
	EventTypeTurnFailed     AgentEventType = "turn_failed"       // EventTypeTurnFailed indicates an iteration failed at the transport level.
	EventTypePlaybackWait   AgentEventType = "playback_wait"     // EventTypePlaybackWait indicates the agent is waiting for the user to end playback.
	EventTypeRunEnd         AgentEventType = "run_end"           // EventTypeRunEnd indicates the run has terminated.
)

// AgentEvent represents an event emitted by the agent during execution.
type AgentEvent struct {
	// Metadata holds optional additional information about the event.
	Metadata map[string]interface{}

	// Error contains error information for error events.
	Error error

	// Content holds text content for content-type events.
	Content string

	// ToolName is the name of the tool (for tool events).
	ToolName string

	// Type indicates the kind of event.
	Type AgentEventType

	// Step is the iteration number the event belongs to (0 before the first step).
	Step int

	// MaxSteps is the step budget of the run.
	MaxSteps int
}

// EventSink receives agent events. Implementations must not block for long;
// the loop calls the sink synchronously and in emission order.
type EventSink func(event *AgentEvent)

// Emit sends the event to the sink if one is configured.
func (s EventSink) Emit(event *AgentEvent) {
	if s != nil && event != nil {
		s(event)
	}
}

// NewRunStartEvent creates a run start event.
func NewRunStartEvent(task string, maxSteps int) *AgentEvent {
	return &AgentEvent{
		Type:     EventTypeRunStart,
		Content:  task,
		MaxSteps: maxSteps,
		Metadata: make(map[string]interface{}),
	}
}

// NewStepStartEvent creates a step start event.
func NewStepStartEvent(step, maxSteps int, lastStep bool) *AgentEvent {
	return &AgentEvent{
		Type:     EventTypeStepStart,
		Step:     step,
		MaxSteps: maxSteps,
		Metadata: map[string]interface{}{"last_step": lastStep},
	}
}

// NewMessageContentEvent creates a message content event.
func NewMessageContentEvent(step int, content string) *AgentEvent {
	return &AgentEvent{
		Type:     EventTypeMessageContent,
		Step:     step,
		Content:  content,
		Metadata: make(map[string]interface{}),
	}
}

// NewToolCallEvent creates a tool call event.
func NewToolCallEvent(step int, toolName string) *AgentEvent {
	return &AgentEvent{
		Type:     EventTypeToolCall,
		Step:     step,
		ToolName: toolName,
		Metadata: make(map[string]interface{}),
	}
}

// NewToolResultEvent creates a tool result event.
func NewToolResultEvent(step int, toolName string) *AgentEvent {
	return &AgentEvent{
		Type:     EventTypeToolResult,
		Step:     step,
		ToolName: toolName,
		Metadata: make(map[string]interface{}),
	}
}

// NewToolResultErrorEvent creates a tool result error event.
func NewToolResultErrorEvent(step int, toolName string, err error) *AgentEvent {
	return &AgentEvent{
		Type:     EventTypeToolResultErr,
		Step:     step,
		ToolName: toolName,
		Error:    err,
		Metadata: make(map[string]interface{}),
	}
}

// NewStepEndEvent creates a step end event summarizing the iteration.
func NewStepEndEvent(step int, toolsInvoked []string, verdict string) *AgentEvent {
	return &AgentEvent{
		Type: EventTypeStepEnd,
		Step: step,
		Metadata: map[string]interface{}{
			"tools":   toolsInvoked,
			"verdict": verdict,
		},
	}
}

// NewTurnFailedEvent creates a turn failure event.
func NewTurnFailedEvent(step int, consecutive int, err error) *AgentEvent {
	return &AgentEvent{
		Type:     EventTypeTurnFailed,
		Step:     step,
		Error:    err,
		Metadata: map[string]interface{}{"consecutive_failures": consecutive},
	}
}

// NewPlaybackWaitEvent creates an event announcing that the agent waits for
// the user to end media playback at the given location.
func NewPlaybackWaitEvent(url string) *AgentEvent {
	return &AgentEvent{
		Type:     EventTypePlaybackWait,
		Content:  url,
		Metadata: make(map[string]interface{}),
	}
}

// NewRunEndEvent creates a run end event.
func NewRunEndEvent(steps int, exitReason string, message string) *AgentEvent {
	return &AgentEvent{
		Type:     EventTypeRunEnd,
		Step:     steps,
		Content:  message,
		Metadata: map[string]interface{}{"exit_reason": exitReason},
	}
}

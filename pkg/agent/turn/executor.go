// Package turn runs one request/response cycle against the model and folds
// its event stream into a single outcome.
package turn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/entrhq/pilot/pkg/llm"
	"github.com/entrhq/pilot/pkg/llm/tokenizer"
	"github.com/entrhq/pilot/pkg/logging"
	"github.com/entrhq/pilot/pkg/tracing"
	"github.com/entrhq/pilot/pkg/types"
)

// Request is the composed input of one turn.
type Request struct {
	System  string
	Prompt  string
	History []*types.Message

	Temperature float64
	MaxTokens   int

	// Step is the iteration number, used for events and the default turn id.
	Step int

	// TurnID correlates logs and spans. Defaults to "<run id>/<step>".
	TurnID string
}

// Outcome is what a completed turn produced.
type Outcome struct {
	TurnID       string
	ResponseText string

	// ToolsInvoked lists each tool once, in the order first called.
	ToolsInvoked []string

	// ToolErrors counts tool calls that ended in an error.
	ToolErrors int

	Duration time.Duration
}

// TurnError is a transport-level failure of a turn. The loop recovers from it
// by counting a consecutive failure.
type TurnError struct {
	TurnID string
	Err    error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("turn %s failed: %v", e.TurnID, e.Err)
}

func (e *TurnError) Unwrap() error {
	return e.Err
}

// IsTurnError reports whether err is or wraps a *TurnError.
func IsTurnError(err error) bool {
	var te *TurnError
	return errors.As(err, &te)
}

// Executor runs turns for one run.
type Executor struct {
	provider  llm.Provider
	tools     llm.ToolInvoker
	sink      types.EventSink
	logger    *logging.Logger
	tokenizer *tokenizer.Tokenizer
	runID     string
}

// Option configures an Executor.
type Option func(*Executor)

// WithTools offers tools to the model.
func WithTools(tools llm.ToolInvoker) Option {
	return func(e *Executor) {
		e.tools = tools
	}
}

// WithEventSink surfaces stream progress as agent events.
func WithEventSink(sink types.EventSink) Option {
	return func(e *Executor) {
		e.sink = sink
	}
}

// WithLogger sets the debug logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTokenizer enables prompt size logging.
func WithTokenizer(t *tokenizer.Tokenizer) Option {
	return func(e *Executor) {
		e.tokenizer = t
	}
}

// WithRunID scopes the executor to a run.
func WithRunID(id string) Option {
	return func(e *Executor) {
		e.runID = id
	}
}

// New creates an executor for provider.
func New(provider llm.Provider, opts ...Option) (*Executor, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	e := &Executor{provider: provider, logger: logging.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// RunID returns the run the executor belongs to.
func (e *Executor) RunID() string {
	return e.runID
}

// Run executes one turn. It blocks until the provider's stream ends and
// returns a *TurnError if the stream could not be started or broke; any
// partial response is discarded in that case. Tool failures are logged and
// reported as events but do not fail the turn.
func (e *Executor) Run(ctx context.Context, req Request) (*Outcome, error) {
	turnID := req.TurnID
	if turnID == "" {
		turnID = fmt.Sprintf("%s/%d", e.runID, req.Step)
	}
	started := time.Now()

	ctx, span := tracing.TraceTurn(ctx, turnID, e.provider.GetModel())
	defer span.End()

	if e.tokenizer != nil {
		msgs := append([]*types.Message{types.NewSystemMessage(req.System)}, req.History...)
		msgs = append(msgs, types.NewUserMessage(req.Prompt))
		e.logger.Debugf("turn %s: prompt ~%d tokens", turnID, e.tokenizer.CountMessages(msgs))
	}

	stream, err := e.provider.Stream(ctx, &llm.Request{
		SystemPrompt: req.System,
		Prompt:       req.Prompt,
		History:      req.History,
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
		SessionHint:  turnID,
		Tools:        e.tools,
	})
	if err != nil {
		return nil, e.fail(span, turnID, fmt.Errorf("failed to start stream: %w", err))
	}

	out := &Outcome{TurnID: turnID}
	var text strings.Builder
	seen := make(map[string]bool)
	var streamErr error

	// drain to the end so the provider goroutine never blocks on send
	for ev := range stream {
		if streamErr != nil {
			continue
		}
		switch ev.Type {
		case llm.EventText:
			text.WriteString(ev.Text)
			e.sink.Emit(types.NewMessageContentEvent(req.Step, ev.Text))
		case llm.EventToolStart:
			if !seen[ev.ToolName] {
				seen[ev.ToolName] = true
				out.ToolsInvoked = append(out.ToolsInvoked, ev.ToolName)
			}
			e.sink.Emit(types.NewToolCallEvent(req.Step, ev.ToolName))
		case llm.EventToolEnd:
			if ev.ToolErr != nil {
				out.ToolErrors++
				e.logger.Warnf("turn %s: tool %s failed: %v", turnID, ev.ToolName, ev.ToolErr)
				e.sink.Emit(types.NewToolResultErrorEvent(req.Step, ev.ToolName, ev.ToolErr))
			} else {
				e.sink.Emit(types.NewToolResultEvent(req.Step, ev.ToolName))
			}
		case llm.EventError:
			streamErr = ev.Err
			if streamErr == nil {
				streamErr = errors.New("stream failed")
			}
		default:
			e.logger.Debugf("turn %s: ignoring event %q", turnID, ev.Type)
		}
	}

	if streamErr == nil && ctx.Err() != nil {
		streamErr = ctx.Err()
	}
	if streamErr != nil {
		return nil, e.fail(span, turnID, streamErr)
	}

	out.ResponseText = text.String()
	out.Duration = time.Since(started)
	tracing.TraceTurnResult(span, len(out.ResponseText), out.ToolsInvoked, nil)
	e.logger.Debugf("turn %s: %d chars, tools %v, %d tool errors in %s",
		turnID, len(out.ResponseText), out.ToolsInvoked, out.ToolErrors, out.Duration.Round(time.Millisecond))
	return out, nil
}

func (e *Executor) fail(span trace.Span, turnID string, err error) error {
	tracing.TraceTurnResult(span, 0, nil, err)
	e.logger.Warnf("turn %s: %v", turnID, err)
	return &TurnError{TurnID: turnID, Err: err}
}

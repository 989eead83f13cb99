package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/pilot/pkg/agent/memory"
	"github.com/entrhq/pilot/pkg/agent/progress"
	"github.com/entrhq/pilot/pkg/agent/prompts"
	"github.com/entrhq/pilot/pkg/agent/turn"
	"github.com/entrhq/pilot/pkg/tracing"
	"github.com/entrhq/pilot/pkg/types"
)

// run holds the state of one Run call.
type run struct {
	id       string
	task     string
	category prompts.TaskCategory
	tracker  *progress.Tracker
	history  *memory.History
	executor *turn.Executor

	lastText string
	lastErr  error
	lastURL  string

	// interruptErr is ctx.Err() at the moment the run was interrupted.
	interruptErr error
}

// Run executes task until the model declares a verdict or a budget runs out.
// It never returns an error: every ending, including cancellation of ctx, is
// reported through the Result's ExitReason.
func (a *Agent) Run(ctx context.Context, task string) *Result {
	started := time.Now()

	r, err := a.newRun(task)
	if err != nil {
		// budgets were validated in New, so this is unreachable in practice
		return &Result{
			Message:    err.Error(),
			ExitReason: progress.ExitReasonError,
			Task:       task,
			StartedAt:  started,
		}
	}

	ctx, span := tracing.TraceRun(ctx, r.id, task, a.maxSteps)
	defer span.End()

	a.logger.Infof("run %s: starting %q (category %s, %d steps, %d failures)",
		r.id, task, r.category, a.maxSteps, a.maxFailures)
	a.sink.Emit(types.NewRunStartEvent(task, a.maxSteps))

	a.loop(ctx, r)

	reason := r.tracker.ExitReason()
	if reason == progress.ExitReasonNone {
		// the loop only leaves through a stopping condition
		a.logger.Errorf("run %s: loop ended without an exit reason: %s", r.id, r.tracker.Snapshot())
		reason = progress.ExitReasonError
	}

	if reason == progress.ExitReasonSuccess && a.waitsForPlayback(r) {
		a.awaitPlayback(ctx, r, a.observe(ctx, r))
	}

	res := &Result{
		Success:    reason == progress.ExitReasonSuccess,
		Message:    a.message(r, reason),
		StepsTaken: r.tracker.CurrentStep(),
		ExitReason: reason,
		Category:   r.category,
		FinalURL:   r.lastURL,
		RunID:      r.id,
		Task:       task,
		StartedAt:  started,
		Duration:   time.Since(started),
		History:    r.history.Entries(),
	}

	tracing.TraceRunResult(span, string(res.ExitReason), res.StepsTaken, res.Success)
	a.logger.Infof("run %s: %s after %d steps in %s: %s",
		r.id, res.ExitReason, res.StepsTaken, res.Duration.Round(time.Millisecond), res.Message)
	a.sink.Emit(types.NewRunEndEvent(res.StepsTaken, string(res.ExitReason), res.Message))
	return res
}

func (a *Agent) newRun(task string) (*run, error) {
	id := a.runID
	if id == "" {
		id = uuid.NewString()
	}

	tracker, err := progress.New(a.maxSteps, a.maxFailures)
	if err != nil {
		return nil, err
	}

	executor, err := turn.New(a.provider,
		turn.WithTools(a.tools),
		turn.WithEventSink(a.sink),
		turn.WithLogger(a.logger),
		turn.WithTokenizer(a.tokenizer),
		turn.WithRunID(id),
	)
	if err != nil {
		return nil, err
	}

	return &run{
		id:       id,
		task:     task,
		category: prompts.ClassifyTask(task),
		tracker:  tracker,
		history:  memory.NewHistory(),
		executor: executor,
	}, nil
}

// loop runs iterations until the tracker says stop.
func (a *Agent) loop(ctx context.Context, r *run) {
	t := r.tracker
	for t.ShouldContinue() {
		if ctx.Err() != nil {
			r.interruptErr = ctx.Err()
			t.MarkInterrupted()
			return
		}

		// sampled before Advance so step N of N gets the final instructions
		lastStep := t.IsLastStep()
		t.Advance()
		step := t.CurrentStep()
		a.sink.Emit(types.NewStepStartEvent(step, a.maxSteps, lastStep))

		prompt := prompts.BuildUserTurn(prompts.TurnInput{
			Task:        r.task,
			Step:        step,
			MaxSteps:    a.maxSteps,
			Observation: a.observe(ctx, r),
			IsLastStep:  lastStep,
			RunID:       r.id,
		})
		req := turn.Request{
			System:      a.systemPrompt(lastStep),
			Prompt:      prompt,
			History:     r.history.Messages(a.historyWindow, a.historyEntryChars),
			Temperature: a.temperature,
			MaxTokens:   a.maxTokens,
			Step:        step,
		}
		r.history.Append(types.RoleUser, prompt, step)

		outcome, err := r.executor.Run(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				r.interruptErr = ctx.Err()
				t.MarkInterrupted()
				return
			}
			r.lastErr = err
			stopped := t.RecordFailure()
			a.logger.Warnf("run %s: step %d failed (%d/%d consecutive): %v",
				r.id, step, t.ConsecutiveFailures(), t.Threshold(), err)
			a.sink.Emit(types.NewTurnFailedEvent(step, t.ConsecutiveFailures(), err))
			if stopped {
				return
			}
			continue
		}

		r.lastText = outcome.ResponseText
		r.history.Append(types.RoleAssistant, outcome.ResponseText, step)

		verdict := prompts.ParseVerdict(outcome.ResponseText)
		a.logger.Debugf("run %s: step %d verdict %s, tools %v", r.id, step, verdict, outcome.ToolsInvoked)
		a.sink.Emit(types.NewStepEndEvent(step, outcome.ToolsInvoked, verdict.String()))

		switch {
		case verdict.IsFailed:
			// a response carrying both signals counts as a failure
			if verdict.Ambiguous() {
				a.logger.Warnf("run %s: step %d declared both completion and failure; treating as failed", r.id, step)
			}
			t.MarkFailed()
			return
		case verdict.IsComplete:
			t.MarkComplete()
			return
		default:
			t.RecordSuccess()
		}
	}
}

// observe describes the current page, or returns nil when there is no
// observer or the observation failed.
func (a *Agent) observe(ctx context.Context, r *run) *types.PageState {
	if a.observer == nil || ctx.Err() != nil {
		return nil
	}
	state, err := a.observer.Observe(ctx)
	if err != nil {
		a.logger.Warnf("run %s: observation failed: %v", r.id, err)
		return nil
	}
	if state != nil && state.URL != "" {
		r.lastURL = state.URL
	}
	return state
}

// message is the human-readable summary of how the run ended.
func (a *Agent) message(r *run, reason progress.ExitReason) string {
	switch reason {
	case progress.ExitReasonSuccess:
		if detail := verdictDetail(r.lastText, prompts.CompleteToken); detail != "" {
			return detail
		}
		return "Task completed"
	case progress.ExitReasonError:
		if detail := verdictDetail(r.lastText, prompts.FailedToken); detail != "" {
			return "Task failed: " + detail
		}
		return "Task failed"
	case progress.ExitReasonMaxSteps:
		return fmt.Sprintf("Reached the limit of %d steps without finishing the task", a.maxSteps)
	case progress.ExitReasonMaxFailures:
		msg := fmt.Sprintf("Stopped after %d consecutive failed steps", r.tracker.ConsecutiveFailures())
		if r.lastErr != nil {
			msg += ": " + r.lastErr.Error()
		}
		return msg
	case progress.ExitReasonUserInterrupt:
		if errors.Is(r.interruptErr, context.DeadlineExceeded) {
			return "Run timed out"
		}
		return "Run interrupted"
	}
	return string(reason)
}

// verdictDetail returns the text after token on its line, matched without
// regard to case.
func verdictDetail(text, token string) string {
	idx := indexFold(text, token)
	if idx < 0 {
		return ""
	}
	rest := text[idx+len(token):]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[:nl]
	}
	return strings.TrimSpace(rest)
}

// indexFold is a case-insensitive strings.Index. Offsets refer to s itself,
// which lowercasing s first would not guarantee.
func indexFold(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if strings.EqualFold(s[i:i+len(substr)], substr) {
			return i
		}
	}
	return -1
}

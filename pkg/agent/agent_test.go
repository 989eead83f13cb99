package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/pilot/pkg/agent/progress"
	"github.com/entrhq/pilot/pkg/agent/prompts"
	"github.com/entrhq/pilot/pkg/llm"
	"github.com/entrhq/pilot/pkg/llm/llmtest"
	"github.com/entrhq/pilot/pkg/types"
)

// fakeGateway is a tool invoker that can also observe a fixed page.
type fakeGateway struct {
	mu      sync.Mutex
	page    *types.PageState
	obsErr  error
	invoked []string
	observe int
}

func (g *fakeGateway) Specs() []llm.ToolSpec {
	return []llm.ToolSpec{{Name: "browser_snapshot"}, {Name: "browser_navigate"}}
}

func (g *fakeGateway) Invoke(_ context.Context, name string, _ map[string]any) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.invoked = append(g.invoked, name)
	return "Done.", nil
}

func (g *fakeGateway) Observe(context.Context) (*types.PageState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.observe++
	if g.obsErr != nil {
		return nil, g.obsErr
	}
	return g.page, nil
}

type eventLog struct {
	mu     sync.Mutex
	events []*types.AgentEvent
}

func (l *eventLog) sink(ev *types.AgentEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) ofType(t types.AgentEventType) []*types.AgentEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*types.AgentEvent
	for _, ev := range l.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func newAgent(t *testing.T, p llm.Provider, opts ...AgentOption) *Agent {
	t.Helper()
	opts = append([]AgentOption{WithRunID("run-test")}, opts...)
	a, err := New(p, opts...)
	require.NoError(t, err)
	return a
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		provider llm.Provider
		opts     []AgentOption
		wantErr  string
	}{
		{name: "defaults", provider: llmtest.New()},
		{name: "nil provider", wantErr: "provider is required"},
		{name: "zero steps", provider: llmtest.New(), opts: []AgentOption{WithBudget(0, 3)}, wantErr: "max steps"},
		{name: "zero failures", provider: llmtest.New(), opts: []AgentOption{WithBudget(3, 0)}, wantErr: "max failures"},
		{name: "negative window", provider: llmtest.New(), opts: []AgentOption{WithHistoryWindow(-1, 10)}, wantErr: "history window"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := New(tt.provider, tt.opts...)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, DefaultMaxSteps, a.maxSteps)
			assert.Equal(t, DefaultMaxFailures, a.maxFailures)
		})
	}
}

func TestRunExhaustsStepBudget(t *testing.T) {
	p := llmtest.New() // every turn answers "continuing"
	a := newAgent(t, p, WithBudget(3, 3))

	res := a.Run(context.Background(), "look around the web")

	assert.Equal(t, progress.ExitReasonMaxSteps, res.ExitReason)
	assert.Equal(t, 3, res.StepsTaken)
	assert.False(t, res.Success)
	assert.Equal(t, 3, p.Calls())
	assert.Contains(t, res.Message, "3 steps")
}

func TestRunCompletesOnVerdict(t *testing.T) {
	p := llmtest.New(
		llmtest.Text("Opened the store."),
		llmtest.Text("Checked out.\nTASK COMPLETE: purchased item"),
	)
	a := newAgent(t, p, WithBudget(5, 3))

	res := a.Run(context.Background(), "buy a kettle")

	assert.Equal(t, progress.ExitReasonSuccess, res.ExitReason)
	assert.Equal(t, 2, res.StepsTaken)
	assert.True(t, res.Success)
	assert.Equal(t, "purchased item", res.Message)
	assert.Equal(t, prompts.CategoryShopping, res.Category)
	assert.Equal(t, 2, p.Calls())
}

func TestRunStopsAfterConsecutiveFailures(t *testing.T) {
	p := llmtest.New(
		llmtest.Fail(errors.New("connection reset")),
		llmtest.Turn{StartErr: errors.New("503 service unavailable")},
		llmtest.Text("never reached"),
	)
	a := newAgent(t, p, WithBudget(5, 2))

	res := a.Run(context.Background(), "open example.com")

	assert.Equal(t, progress.ExitReasonMaxFailures, res.ExitReason)
	assert.Equal(t, 2, res.StepsTaken)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "503 service unavailable")
	assert.Equal(t, 2, p.Calls())
}

func TestRunRecoversFromIsolatedFailures(t *testing.T) {
	p := llmtest.New(
		llmtest.Fail(errors.New("timeout")),
		llmtest.Text("retrying"),
		llmtest.Fail(errors.New("timeout")),
		llmtest.Text("TASK COMPLETE: found it"),
	)
	a := newAgent(t, p, WithBudget(6, 2))

	res := a.Run(context.Background(), "find the opening hours")

	assert.Equal(t, progress.ExitReasonSuccess, res.ExitReason)
	assert.Equal(t, 4, res.StepsTaken)
}

func TestRunVerdicts(t *testing.T) {
	tests := []struct {
		name        string
		reply       string
		wantReason  progress.ExitReason
		wantSuccess bool
		wantMessage string
	}{
		{
			name:        "failed",
			reply:       "TASK FAILED: the site requires a login",
			wantReason:  progress.ExitReasonError,
			wantMessage: "Task failed: the site requires a login",
		},
		{
			name:        "failure phrase without token",
			reply:       "I am unable to complete this, the page is blank.",
			wantReason:  progress.ExitReasonError,
			wantMessage: "Task failed",
		},
		{
			name:        "both signals",
			reply:       "TASK COMPLETE: partly. TASK FAILED: the form rejected the input",
			wantReason:  progress.ExitReasonError,
			wantMessage: "Task failed: the form rejected the input",
		},
		{
			name:        "complete without detail",
			reply:       "The task is complete.",
			wantReason:  progress.ExitReasonSuccess,
			wantSuccess: true,
			wantMessage: "Task completed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAgent(t, llmtest.New(llmtest.Text(tt.reply)), WithBudget(4, 2))

			res := a.Run(context.Background(), "submit the form")

			assert.Equal(t, tt.wantReason, res.ExitReason)
			assert.Equal(t, tt.wantSuccess, res.Success)
			assert.Equal(t, 1, res.StepsTaken)
			assert.Equal(t, tt.wantMessage, res.Message)
		})
	}
}

func TestRunFinalStepGetsFinalInstructions(t *testing.T) {
	p := llmtest.New()
	a := newAgent(t, p, WithBudget(3, 3))

	a.Run(context.Background(), "read the news")

	reqs := p.Requests()
	require.Len(t, reqs, 3)
	for i, req := range reqs {
		last := i == len(reqs)-1
		assert.Equal(t, last, strings.Contains(req.SystemPrompt, "<final_iteration>"), "step %d", i+1)
		assert.Equal(t, last, strings.Contains(req.Prompt, "WARNING: this is the final iteration"), "step %d", i+1)
		assert.Contains(t, req.Prompt, "Task: read the news")
		assert.Equal(t, fmt.Sprintf("run-test/%d", i+1), req.SessionHint)
	}
}

func TestRunSendsBoundedHistory(t *testing.T) {
	p := llmtest.New(
		llmtest.Text(strings.Repeat("a", 50)),
		llmtest.Text("second"),
		llmtest.Text("third"),
	)
	a := newAgent(t, p, WithBudget(3, 3), WithHistoryWindow(2, 20))

	res := a.Run(context.Background(), "scroll the page")

	reqs := p.Requests()
	require.Len(t, reqs, 3)
	assert.Empty(t, reqs[0].History)
	require.Len(t, reqs[1].History, 2)
	assert.Equal(t, types.RoleUser, reqs[1].History[0].Role)
	assert.Equal(t, types.RoleAssistant, reqs[1].History[1].Role)
	assert.True(t, strings.HasSuffix(reqs[1].History[1].Content, "…[truncated]"))
	assert.Len(t, reqs[2].History, 2)

	require.Len(t, res.History, 6)
	assert.Equal(t, strings.Repeat("a", 50), res.History[1].Content, "stored history is never truncated")
	assert.Equal(t, 3, res.History[5].Step)
}

func TestRunObservesEachIteration(t *testing.T) {
	gw := &fakeGateway{page: &types.PageState{
		URL:      "https://example.com/",
		Title:    "Example Domain",
		Loaded:   true,
		Elements: []string{`[e1] link "More information..."`},
	}}
	p := llmtest.New(
		llmtest.Turn{ToolCalls: []llmtest.ToolCall{{Name: "browser_navigate"}}, Text: "navigated"},
		llmtest.Text("TASK COMPLETE: read it"),
	)
	a := newAgent(t, p, WithTools(gw), WithBudget(5, 2))

	res := a.Run(context.Background(), "open example.com")

	require.True(t, res.Success)
	assert.Equal(t, "https://example.com/", res.FinalURL)
	assert.Equal(t, []string{"browser_navigate"}, gw.invoked)
	// one observation per iteration; nothing waits on playback, so no final one
	assert.Equal(t, 2, gw.observe)

	for _, req := range p.Requests() {
		assert.Contains(t, req.Prompt, "https://example.com/")
		assert.Contains(t, req.Prompt, "More information")
		assert.Same(t, gw, req.Tools)
	}
}

func TestRunToleratesObservationFailure(t *testing.T) {
	gw := &fakeGateway{obsErr: errors.New("no snapshot tool")}
	a := newAgent(t, llmtest.New(llmtest.Text("TASK COMPLETE: ok")), WithTools(gw))

	res := a.Run(context.Background(), "open example.com")

	assert.True(t, res.Success)
	assert.Empty(t, res.FinalURL)
}

func TestRunInterrupted(t *testing.T) {
	t.Run("before the first step", func(t *testing.T) {
		p := llmtest.New()
		a := newAgent(t, p)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		res := a.Run(ctx, "anything")

		assert.Equal(t, progress.ExitReasonUserInterrupt, res.ExitReason)
		assert.Equal(t, 0, res.StepsTaken)
		assert.False(t, res.Success)
		assert.Zero(t, p.Calls())
		assert.Equal(t, "Run interrupted", res.Message)
	})

	t.Run("by a deadline", func(t *testing.T) {
		p := llmtest.New()
		a := newAgent(t, p)
		ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
		defer cancel()

		res := a.Run(ctx, "anything")

		assert.Equal(t, progress.ExitReasonUserInterrupt, res.ExitReason)
		assert.Equal(t, "Run timed out", res.Message)
	})

	t.Run("during a turn", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		p := &cancellingProvider{cancel: cancel}
		a := newAgent(t, p, WithBudget(5, 1))

		res := a.Run(ctx, "anything")

		assert.Equal(t, progress.ExitReasonUserInterrupt, res.ExitReason)
		assert.Equal(t, 1, res.StepsTaken)
	})
}

// cancellingProvider cancels the run while its first turn is streaming.
type cancellingProvider struct {
	cancel context.CancelFunc
}

func (p *cancellingProvider) GetModel() string { return "cancelling" }

func (p *cancellingProvider) Stream(ctx context.Context, _ *llm.Request) (<-chan llm.StreamEvent, error) {
	ch := make(chan llm.StreamEvent)
	go func() {
		defer close(ch)
		p.cancel()
		<-ctx.Done()
		llm.Send(context.Background(), ch, llm.ErrorEvent(ctx.Err()))
	}()
	return ch, nil
}

func TestRunEmitsEvents(t *testing.T) {
	log := &eventLog{}
	p := llmtest.New(
		llmtest.Fail(errors.New("reset")),
		llmtest.Turn{ToolCalls: []llmtest.ToolCall{{Name: "browser_snapshot"}}, Text: "TASK COMPLETE: done"},
	)
	a := newAgent(t, p, WithTools(&fakeGateway{}), WithBudget(4, 3), WithEventSink(log.sink))

	a.Run(context.Background(), "check the page")

	require.Len(t, log.ofType(types.EventTypeRunStart), 1)
	assert.Len(t, log.ofType(types.EventTypeStepStart), 2)
	require.Len(t, log.ofType(types.EventTypeTurnFailed), 1)
	assert.Equal(t, 1, log.ofType(types.EventTypeTurnFailed)[0].Metadata["consecutive_failures"])

	ends := log.ofType(types.EventTypeStepEnd)
	require.Len(t, ends, 1)
	assert.Equal(t, "complete", ends[0].Metadata["verdict"])
	assert.Equal(t, []string{"browser_snapshot"}, ends[0].Metadata["tools"])

	runEnd := log.ofType(types.EventTypeRunEnd)
	require.Len(t, runEnd, 1)
	assert.Equal(t, "success", runEnd[0].Metadata["exit_reason"])
	assert.Equal(t, 2, runEnd[0].Step)

	log.mu.Lock()
	defer log.mu.Unlock()
	assert.Equal(t, types.EventTypeRunStart, log.events[0].Type)
	assert.Equal(t, types.EventTypeRunEnd, log.events[len(log.events)-1].Type)
}

func TestRunGeneratesRunID(t *testing.T) {
	a, err := New(llmtest.New(llmtest.Text("TASK COMPLETE: ok")))
	require.NoError(t, err)

	first := a.Run(context.Background(), "one")
	second := a.Run(context.Background(), "two")

	assert.NotEmpty(t, first.RunID)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, "one", first.Task)
}

func TestVerdictDetail(t *testing.T) {
	tests := []struct {
		text, token, want string
	}{
		{"TASK COMPLETE: bought it", prompts.CompleteToken, "bought it"},
		{"done.\ntask complete:  played the song \nbye", prompts.CompleteToken, "played the song"},
		{"no verdict here", prompts.CompleteToken, ""},
		{"TASK FAILED:", prompts.FailedToken, ""},
		{"İİİİ task failed: site is down", prompts.FailedToken, "site is down"},
		{"Ⱥ done\nTASK COMPLETE: ordered ȺȺ", prompts.CompleteToken, "ordered ȺȺ"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, verdictDetail(tt.text, tt.token), tt.text)
	}
}

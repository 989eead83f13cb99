// Package agent drives a bounded browser-automation run: it composes a prompt
// per iteration, executes one model turn, reads the model's verdict and stops
// on completion, failure, an exhausted step budget or too many consecutive
// turn failures.
//
// A run is configured once and started with Run:
//
//	ag, err := agent.New(provider,
//	    agent.WithTools(gateway),
//	    agent.WithBudget(15, 3),
//	)
//	result := ag.Run(ctx, "open example.com and read the headline")
//
// Subpackages hold the pieces the loop is built from:
//   - progress: step budget and consecutive failure bookkeeping
//   - prompts: system and user turn composition, verdict parsing
//   - turn: one request/response cycle against the provider
//   - memory: the run's conversation history
package agent

import (
	"fmt"
	"time"

	"github.com/entrhq/pilot/pkg/agent/memory"
	"github.com/entrhq/pilot/pkg/agent/progress"
	"github.com/entrhq/pilot/pkg/agent/prompts"
	"github.com/entrhq/pilot/pkg/llm"
	"github.com/entrhq/pilot/pkg/llm/tokenizer"
	"github.com/entrhq/pilot/pkg/logging"
	"github.com/entrhq/pilot/pkg/tools"
	"github.com/entrhq/pilot/pkg/types"
)

// Default budgets and generation parameters.
const (
	DefaultMaxSteps          = 15
	DefaultMaxFailures       = 3
	DefaultTemperature       = 0.2
	DefaultMaxTokens         = 2048
	DefaultHistoryWindow     = 6
	DefaultHistoryEntryChars = 1500
)

// Result is the structured outcome of a run. A run always produces one, even
// when every turn failed.
type Result struct {
	Success    bool                 `yaml:"success" json:"success"`
	Message    string               `yaml:"message" json:"message"`
	StepsTaken int                  `yaml:"steps_taken" json:"steps_taken"`
	ExitReason progress.ExitReason  `yaml:"exit_reason" json:"exit_reason"`
	Category   prompts.TaskCategory `yaml:"category" json:"category"`
	FinalURL   string               `yaml:"final_url,omitempty" json:"final_url,omitempty"`
	RunID      string               `yaml:"run_id" json:"run_id"`
	Task       string               `yaml:"task" json:"task"`
	StartedAt  time.Time            `yaml:"started_at" json:"started_at"`
	Duration   time.Duration        `yaml:"duration" json:"duration"`

	// History is the full conversation of the run, oldest first.
	History []memory.Entry `yaml:"history" json:"history"`
}

// Agent runs tasks against a model provider and a tool gateway.
type Agent struct {
	provider  llm.Provider
	tools     llm.ToolInvoker
	observer  tools.Observer
	sink      types.EventSink
	logger    *logging.Logger
	tokenizer *tokenizer.Tokenizer
	waiter    PlaybackWaiter

	runID              string
	customInstructions string

	maxSteps    int
	maxFailures int
	temperature float64
	maxTokens   int

	historyWindow     int
	historyEntryChars int
}

// AgentOption is a function that configures an agent
type AgentOption func(*Agent)

// WithTools offers tools to the model. When the invoker can also describe
// the current page, it is used as the observer.
func WithTools(t llm.ToolInvoker) AgentOption {
	return func(a *Agent) {
		a.tools = t
		if obs, ok := t.(tools.Observer); ok && a.observer == nil {
			a.observer = obs
		}
	}
}

// WithObserver sets how the page is observed before each iteration.
func WithObserver(o tools.Observer) AgentOption {
	return func(a *Agent) {
		a.observer = o
	}
}

// WithBudget sets the step budget and the consecutive failure threshold.
func WithBudget(maxSteps, maxFailures int) AgentOption {
	return func(a *Agent) {
		a.maxSteps = maxSteps
		a.maxFailures = maxFailures
	}
}

// WithGeneration sets the sampling temperature and the per-turn token cap.
func WithGeneration(temperature float64, maxTokens int) AgentOption {
	return func(a *Agent) {
		a.temperature = temperature
		a.maxTokens = maxTokens
	}
}

// WithHistoryWindow sets how many prior entries accompany each turn and how
// long each may be.
func WithHistoryWindow(entries, entryChars int) AgentOption {
	return func(a *Agent) {
		a.historyWindow = entries
		a.historyEntryChars = entryChars
	}
}

// WithEventSink receives progress events in emission order.
func WithEventSink(sink types.EventSink) AgentOption {
	return func(a *Agent) {
		a.sink = sink
	}
}

// WithLogger sets the debug logger.
func WithLogger(l *logging.Logger) AgentOption {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithTokenizer enables prompt size logging.
func WithTokenizer(t *tokenizer.Tokenizer) AgentOption {
	return func(a *Agent) {
		a.tokenizer = t
	}
}

// WithPlaybackWaiter blocks successful media tasks until the user ends
// playback. Without one the run returns as soon as it ends.
func WithPlaybackWaiter(w PlaybackWaiter) AgentOption {
	return func(a *Agent) {
		a.waiter = w
	}
}

// WithRunID fixes the run identifier. Without it every Run gets a new one.
func WithRunID(id string) AgentOption {
	return func(a *Agent) {
		a.runID = id
	}
}

// WithCustomInstructions appends user-provided instructions to the system prompt
func WithCustomInstructions(instructions string) AgentOption {
	return func(a *Agent) {
		a.customInstructions = instructions
	}
}

// New creates an agent for provider.
func New(provider llm.Provider, opts ...AgentOption) (*Agent, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}

	a := &Agent{
		provider:          provider,
		logger:            logging.Nop(),
		maxSteps:          DefaultMaxSteps,
		maxFailures:       DefaultMaxFailures,
		temperature:       DefaultTemperature,
		maxTokens:         DefaultMaxTokens,
		historyWindow:     DefaultHistoryWindow,
		historyEntryChars: DefaultHistoryEntryChars,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.maxSteps < 1 {
		return nil, fmt.Errorf("max steps must be at least 1, got %d", a.maxSteps)
	}
	if a.maxFailures < 1 {
		return nil, fmt.Errorf("max failures must be at least 1, got %d", a.maxFailures)
	}
	if a.historyWindow < 0 {
		return nil, fmt.Errorf("history window must not be negative, got %d", a.historyWindow)
	}
	return a, nil
}

// systemPrompt returns the instructions for one iteration.
func (a *Agent) systemPrompt(lastStep bool) string {
	return prompts.NewPromptBuilder().
		WithCustomInstructions(a.customInstructions).
		WithLastStep(lastStep).
		Build()
}

package headless

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/entrhq/pilot/pkg/agent"
	"github.com/entrhq/pilot/pkg/agent/progress"
	"github.com/entrhq/pilot/pkg/types"
)

const (
	statusSuccess = "success"
	statusFailed  = "failed"
)

// Runner runs one task to completion. *agent.Agent implements it.
type Runner interface {
	Run(ctx context.Context, task string) *agent.Result
}

// Executor runs a task without user interaction, printing progress and
// writing artifacts when configured.
type Executor struct {
	config         *Config
	logger         *Logger
	artifactWriter *ArtifactWriter
}

// NewExecutor creates an executor printing to w.
func NewExecutor(config *Config, w io.Writer) (*Executor, error) {
	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	e := &Executor{
		config: config,
		logger: NewLogger(w, parseLogLevel(config.Logging.Verbosity)),
	}
	if config.Artifacts.Enabled {
		e.artifactWriter = NewArtifactWriter(config.Artifacts.OutputDir, config.Artifacts)
	}
	return e, nil
}

// Sink is the event sink the runner must report to.
func (e *Executor) Sink() types.EventSink {
	return e.logger.HandleEvent
}

// Run executes the configured task. The returned error reports only
// problems around the run, such as unwritable artifacts; how the run itself
// ended is in the Result.
func (e *Executor) Run(ctx context.Context, runner Runner) (*agent.Result, error) {
	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}

	res := runner.Run(ctx, e.config.Task)
	if res.ExitReason == progress.ExitReasonUserInterrupt && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.Message = fmt.Sprintf("Run timed out after %s", e.config.Timeout)
	}

	summary := newSummary(res, e.logger.Metrics())
	if e.artifactWriter != nil {
		if err := e.artifactWriter.WriteAll(summary); err != nil {
			summary.Error = err.Error()
			e.logger.Summary(summary)
			return res, fmt.Errorf("failed to write artifacts: %w", err)
		}
		e.logger.Verbosef("Artifacts written to %s", e.config.Artifacts.OutputDir)
	}

	e.logger.Summary(summary)
	return res, nil
}

// ExitCode maps a result to the process exit status: 0 on success, 1
// otherwise.
func ExitCode(res *agent.Result) int {
	if res != nil && res.Success {
		return 0
	}
	return 1
}

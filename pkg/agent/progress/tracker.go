// Package progress tracks how far a run has got and why it stopped.
//
// A Tracker is a small state machine over the step counter, the number of
// consecutive turn failures and two terminal flags. It moves from running to
// either done (the model declared success) or stopped (failure, exhausted
// budget or interruption); neither terminal phase is ever left.
package progress

import (
	"fmt"
)

// ExitReason explains why a run ended.
type ExitReason string

const (
	ExitReasonNone          ExitReason = ""               // ExitReasonNone is reported while the run is still going.
	ExitReasonSuccess       ExitReason = "success"        // ExitReasonSuccess means the model declared the task complete.
	ExitReasonMaxSteps      ExitReason = "max_steps"      // ExitReasonMaxSteps means the step budget ran out.
	ExitReasonMaxFailures   ExitReason = "max_failures"   // ExitReasonMaxFailures means too many turns failed in a row.
	ExitReasonUserInterrupt ExitReason = "user_interrupt" // ExitReasonUserInterrupt means the run was cancelled.
	ExitReasonError         ExitReason = "error"          // ExitReasonError means the run stopped for any other reason, including a failure verdict.
)

// Phase is the coarse state of a Tracker.
type Phase string

const (
	PhaseRunning Phase = "running"
	PhaseDone    Phase = "done"
	PhaseStopped Phase = "stopped"
)

// State is a point-in-time copy of a Tracker.
type State struct {
	CurrentStep         int
	MaxSteps            int
	ConsecutiveFailures int
	FailureThreshold    int
	IsDone              bool
	ShouldStop          bool
	Interrupted         bool
}

// Tracker owns the progress of one run. It is not safe for concurrent use;
// a run drives it from a single goroutine.
type Tracker struct {
	currentStep         int
	maxSteps            int
	consecutiveFailures int
	threshold           int
	isDone              bool
	shouldStop          bool
	interrupted         bool
}

// New creates a tracker for a run of at most maxSteps iterations that stops
// after threshold consecutive failures.
func New(maxSteps, threshold int) (*Tracker, error) {
	if maxSteps < 1 {
		return nil, fmt.Errorf("max steps must be at least 1, got %d", maxSteps)
	}
	if threshold < 1 {
		return nil, fmt.Errorf("failure threshold must be at least 1, got %d", threshold)
	}
	return &Tracker{maxSteps: maxSteps, threshold: threshold}, nil
}

// Advance moves to the next step. Callers check ShouldContinue first.
func (t *Tracker) Advance() {
	t.currentStep++
}

// RecordSuccess clears the consecutive failure count.
func (t *Tracker) RecordSuccess() {
	t.consecutiveFailures = 0
}

// RecordFailure counts a failed turn and stops the run once the threshold is
// reached. It reports whether the threshold has been reached.
func (t *Tracker) RecordFailure() bool {
	t.consecutiveFailures++
	if t.consecutiveFailures >= t.threshold {
		t.shouldStop = true
		return true
	}
	return false
}

// MarkComplete ends the run successfully. Calling it again has no effect,
// and a run that was already stopped stays stopped.
func (t *Tracker) MarkComplete() {
	if t.shouldStop && !t.isDone {
		return
	}
	t.isDone = true
	t.shouldStop = true
}

// MarkFailed ends the run without success.
func (t *Tracker) MarkFailed() {
	t.shouldStop = true
}

// MarkInterrupted ends the run because it was cancelled.
func (t *Tracker) MarkInterrupted() {
	if t.isDone {
		return
	}
	t.interrupted = true
	t.shouldStop = true
}

// ShouldContinue reports whether another iteration may run.
func (t *Tracker) ShouldContinue() bool {
	return !t.shouldStop && !t.isDone && t.currentStep < t.maxSteps
}

// IsLastStep reports whether the current step is the final one the budget
// allows. Sampled before Advance, it tells whether the coming iteration is
// the last.
func (t *Tracker) IsLastStep() bool {
	return t.currentStep >= t.maxSteps-1
}

// ExitReason derives why the run ended. It returns ExitReasonNone while the
// tracker is still running.
func (t *Tracker) ExitReason() ExitReason {
	switch {
	case t.isDone:
		return ExitReasonSuccess
	case t.interrupted:
		return ExitReasonUserInterrupt
	case t.consecutiveFailures >= t.threshold:
		return ExitReasonMaxFailures
	case t.currentStep >= t.maxSteps:
		return ExitReasonMaxSteps
	case t.shouldStop:
		return ExitReasonError
	default:
		return ExitReasonNone
	}
}

// Phase returns running, done or stopped.
func (t *Tracker) Phase() Phase {
	switch {
	case t.isDone:
		return PhaseDone
	case !t.ShouldContinue():
		return PhaseStopped
	default:
		return PhaseRunning
	}
}

// CurrentStep returns the number of iterations started so far.
func (t *Tracker) CurrentStep() int { return t.currentStep }

// MaxSteps returns the step budget.
func (t *Tracker) MaxSteps() int { return t.maxSteps }

// ConsecutiveFailures returns the failures since the last success.
func (t *Tracker) ConsecutiveFailures() int { return t.consecutiveFailures }

// Threshold returns the consecutive failure limit.
func (t *Tracker) Threshold() int { return t.threshold }

// IsDone reports whether the run ended successfully.
func (t *Tracker) IsDone() bool { return t.isDone }

// ShouldStop reports whether the run has been stopped.
func (t *Tracker) ShouldStop() bool { return t.shouldStop }

// Snapshot returns a copy of the tracker state.
func (t *Tracker) Snapshot() State {
	return State{
		CurrentStep:         t.currentStep,
		MaxSteps:            t.maxSteps,
		ConsecutiveFailures: t.consecutiveFailures,
		FailureThreshold:    t.threshold,
		IsDone:              t.isDone,
		ShouldStop:          t.shouldStop,
		Interrupted:         t.interrupted,
	}
}

// String renders the state for logs.
func (s State) String() string {
	return fmt.Sprintf("step %d/%d failures %d/%d done=%v stop=%v",
		s.CurrentStep, s.MaxSteps, s.ConsecutiveFailures, s.FailureThreshold, s.IsDone, s.ShouldStop)
}

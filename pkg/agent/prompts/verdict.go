package prompts

import "strings"

// completeSignals mark a reply that declares the task done.
var completeSignals = []string{
	"task complete",
	"task is complete",
	"task has been completed",
	"successfully completed",
	"task finished",
	"task is finished",
}

// failedSignals mark a reply that gives up on the task.
var failedSignals = []string{
	"task failed",
	"task has failed",
	"cannot complete",
	"can't complete",
	"unable to complete",
	"unable to proceed",
	"cannot be completed",
}

// Verdict is what a reply says about the task. Both flags may be set.
type Verdict struct {
	IsComplete bool
	IsFailed   bool
}

// Ambiguous reports a reply that claims both success and failure.
func (v Verdict) Ambiguous() bool {
	return v.IsComplete && v.IsFailed
}

// Continue reports a reply that declares nothing.
func (v Verdict) Continue() bool {
	return !v.IsComplete && !v.IsFailed
}

// String names the verdict for logs and events.
func (v Verdict) String() string {
	switch {
	case v.Ambiguous():
		return "ambiguous"
	case v.IsComplete:
		return "complete"
	case v.IsFailed:
		return "failed"
	default:
		return "continue"
	}
}

// ParseVerdict matches the reply against the fixed signal sets, ignoring case.
func ParseVerdict(text string) Verdict {
	lower := strings.ToLower(text)
	return Verdict{
		IsComplete: containsAny(lower, completeSignals),
		IsFailed:   containsAny(lower, failedSignals),
	}
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

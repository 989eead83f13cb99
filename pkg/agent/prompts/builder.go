// Package prompts composes the instructions and per-iteration messages sent
// to the model and reads the verdict back out of its replies.
//
// Every function here is pure: identical inputs give identical output.
package prompts

import (
	"fmt"
	"strings"

	"github.com/entrhq/pilot/pkg/types"
)

// previewElements is how many observed elements a user turn lists.
const previewElements = 5

// PromptBuilder constructs the system prompt for an iteration.
type PromptBuilder struct {
	customInstructions string
	lastStep           bool
}

// NewPromptBuilder creates a new prompt builder with default settings
func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// WithCustomInstructions adds user-provided instructions
func (pb *PromptBuilder) WithCustomInstructions(instructions string) *PromptBuilder {
	pb.customInstructions = strings.TrimSpace(instructions)
	return pb
}

// WithLastStep switches to the force-a-verdict variant
func (pb *PromptBuilder) WithLastStep(lastStep bool) *PromptBuilder {
	pb.lastStep = lastStep
	return pb
}

// Build constructs the complete system prompt by assembling all sections
func (pb *PromptBuilder) Build() string {
	var builder strings.Builder

	if pb.customInstructions != "" {
		builder.WriteString("<custom_instructions>\n")
		builder.WriteString(pb.customInstructions)
		builder.WriteString("\n</custom_instructions>\n\n")
	}

	builder.WriteString(SystemCapabilitiesPrompt)
	builder.WriteString("\n\n")

	if pb.lastStep {
		builder.WriteString(LastStepPrompt)
	} else {
		builder.WriteString(AgentLoopPrompt)
	}
	builder.WriteString("\n\n")

	builder.WriteString(VerdictPrompt)
	builder.WriteString("\n\n")
	builder.WriteString(ToolUseRulesPrompt)

	return builder.String()
}

// BuildInstructions returns the system prompt, in its final-iteration form
// when isLastStep is set.
func BuildInstructions(isLastStep bool) string {
	return NewPromptBuilder().WithLastStep(isLastStep).Build()
}

// TurnInput is everything a user turn is built from.
type TurnInput struct {
	Task     string
	Step     int
	MaxSteps int

	// Observation is the page as seen before this iteration. May be nil.
	Observation *types.PageState

	IsLastStep bool

	// RunID tags the turn so provider-side logs can be correlated. Optional.
	RunID string
}

// BuildUserTurn renders the message for one iteration.
func BuildUserTurn(in TurnInput) string {
	var b strings.Builder

	b.WriteString("Task: ")
	b.WriteString(strings.TrimSpace(in.Task))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Iteration %d of %d.", in.Step, in.MaxSteps)
	if remaining := in.MaxSteps - in.Step; remaining > 0 {
		fmt.Fprintf(&b, " %d remaining after this one.", remaining)
	}
	b.WriteString("\n")

	if in.IsLastStep {
		b.WriteString("\nWARNING: this is the final iteration. End your reply with ")
		fmt.Fprintf(&b, "%q or %q.\n", CompleteToken+" <summary>", FailedToken+" <reason>")
	}

	if obs := formatObservation(in.Observation); obs != "" {
		b.WriteString("\n")
		b.WriteString(obs)
	}

	b.WriteString("\nThis iteration:\n")
	b.WriteString("1. Take a snapshot if you need to see the current page.\n")
	b.WriteString("2. Perform the next browser actions toward the task, targeting elements by ref.\n")
	if in.IsLastStep {
		b.WriteString("3. Decide: the task is either complete or failed. State the verdict.\n")
	} else {
		fmt.Fprintf(&b, "3. If the task is done, write %q. If it cannot be done, write %q.\n", CompleteToken+" <summary>", FailedToken+" <reason>")
	}

	if in.RunID != "" {
		fmt.Fprintf(&b, "\n[run %s]\n", in.RunID)
	}
	return b.String()
}

// formatObservation renders the page block, or "" when nothing was observed.
func formatObservation(p *types.PageState) string {
	if p.IsEmpty() {
		return ""
	}

	var b strings.Builder
	b.WriteString("Current page:\n")
	if p.URL != "" {
		fmt.Fprintf(&b, "- URL: %s\n", p.URL)
	}
	if p.Title != "" {
		fmt.Fprintf(&b, "- Title: %s\n", p.Title)
	}
	if p.Loaded {
		b.WriteString("- Loaded: yes\n")
	} else {
		b.WriteString("- Loaded: no\n")
	}

	if len(p.Elements) > 0 {
		b.WriteString("- Elements:\n")
		shown := 0
		for _, el := range p.Elements {
			if shown == previewElements {
				break
			}
			fmt.Fprintf(&b, "  %s\n", el)
			shown++
		}
		if more := p.ElementCount() - shown; more > 0 {
			fmt.Fprintf(&b, "  +%d more\n", more)
		}
	}
	return b.String()
}

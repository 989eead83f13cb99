package headless

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/entrhq/pilot/pkg/agent"
	"github.com/entrhq/pilot/pkg/agent/memory"
)

// Artifact file names inside the output directory.
const (
	runFile     = "run.yaml"
	summaryFile = "summary.md"
	metricsFile = "metrics.json"
)

// ArtifactWriter handles writing execution artifacts
type ArtifactWriter struct {
	outputDir string
	config    ArtifactConfig
}

// NewArtifactWriter creates a new artifact writer
func NewArtifactWriter(outputDir string, config ArtifactConfig) *ArtifactWriter {
	return &ArtifactWriter{
		outputDir: outputDir,
		config:    config,
	}
}

// WriteAll writes all configured artifact formats
func (w *ArtifactWriter) WriteAll(summary *ExecutionSummary) error {
	// Ensure output directory exists
	if err := os.MkdirAll(w.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if w.config.YAML {
		if err := w.WriteRunYAML(summary); err != nil {
			return err
		}
	}
	if w.config.Markdown {
		if err := w.WriteSummaryMarkdown(summary); err != nil {
			return err
		}
	}
	if w.config.Metrics {
		if err := w.WriteMetricsJSON(summary); err != nil {
			return err
		}
	}
	return nil
}

// WriteRunYAML writes the full run record, conversation included
func (w *ArtifactWriter) WriteRunYAML(summary *ExecutionSummary) error {
	path := filepath.Join(w.outputDir, runFile)

	data, err := yaml.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}

	if writeErr := os.WriteFile(path, data, 0600); writeErr != nil {
		return fmt.Errorf("failed to write run YAML: %w", writeErr)
	}
	return nil
}

// WriteSummaryMarkdown writes a human-readable markdown summary
func (w *ArtifactWriter) WriteSummaryMarkdown(summary *ExecutionSummary) error {
	path := filepath.Join(w.outputDir, summaryFile)

	if writeErr := os.WriteFile(path, []byte(renderMarkdown(summary)), 0600); writeErr != nil {
		return fmt.Errorf("failed to write summary markdown: %w", writeErr)
	}
	return nil
}

// WriteMetricsJSON writes run metrics as JSON
func (w *ArtifactWriter) WriteMetricsJSON(summary *ExecutionSummary) error {
	path := filepath.Join(w.outputDir, metricsFile)

	data, err := json.MarshalIndent(summary.Metrics, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	if writeErr := os.WriteFile(path, data, 0600); writeErr != nil {
		return fmt.Errorf("failed to write metrics JSON: %w", writeErr)
	}
	return nil
}

func renderMarkdown(summary *ExecutionSummary) string {
	var md strings.Builder

	md.WriteString("# Pilot Run Summary\n\n")
	fmt.Fprintf(&md, "**Task:** %s\n\n", summary.Task)
	fmt.Fprintf(&md, "**Status:** %s\n\n", summary.Status)
	fmt.Fprintf(&md, "**Run:** `%s`\n\n", summary.RunID)
	fmt.Fprintf(&md, "**Started:** %s\n\n", summary.StartTime.Format(time.RFC3339))
	fmt.Fprintf(&md, "**Duration:** %s\n\n", summary.Duration)

	md.WriteString("## Result\n\n")
	if summary.Status == statusSuccess {
		fmt.Fprintf(&md, "✅ **Success:** %s\n\n", summary.Message)
	} else {
		fmt.Fprintf(&md, "❌ **%s:** %s\n\n", summary.ExitReason, summary.Message)
	}
	if summary.FinalURL != "" {
		fmt.Fprintf(&md, "Final page: %s\n\n", summary.FinalURL)
	}

	md.WriteString("## Metrics\n\n")
	fmt.Fprintf(&md, "- **Steps:** %d of %d\n", summary.Metrics.Steps, summary.Metrics.MaxSteps)
	fmt.Fprintf(&md, "- **Category:** %s\n", summary.Category)
	fmt.Fprintf(&md, "- **Tool calls:** %d\n", summary.Metrics.ToolCalls)
	fmt.Fprintf(&md, "- **Tool errors:** %d\n", summary.Metrics.ToolErrors)
	fmt.Fprintf(&md, "- **Failed turns:** %d\n", summary.Metrics.FailedTurns)

	if len(summary.Conversation) > 0 {
		md.WriteString("\n## Conversation\n")
		step := -1
		for _, e := range summary.Conversation {
			if e.Step != step {
				step = e.Step
				fmt.Fprintf(&md, "\n### Step %d\n", step)
			}
			fmt.Fprintf(&md, "\n**%s:**\n\n", e.Role)
			md.WriteString(quote(e.Content))
			md.WriteString("\n")
		}
	}
	return md.String()
}

// quote renders text as a markdown block quote.
func quote(text string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "> " + l
	}
	return strings.Join(lines, "\n") + "\n"
}

// ExecutionSummary contains a complete summary of one run
type ExecutionSummary struct {
	RunID        string         `yaml:"run_id" json:"run_id"`
	Task         string         `yaml:"task" json:"task"`
	Status       string         `yaml:"status" json:"status"`
	ExitReason   string         `yaml:"exit_reason" json:"exit_reason"`
	Message      string         `yaml:"message" json:"message"`
	Category     string         `yaml:"category" json:"category"`
	FinalURL     string         `yaml:"final_url,omitempty" json:"final_url,omitempty"`
	StartTime    time.Time      `yaml:"start_time" json:"start_time"`
	EndTime      time.Time      `yaml:"end_time" json:"end_time"`
	Duration     string         `yaml:"duration" json:"duration"`
	Metrics      RunMetrics     `yaml:"metrics" json:"metrics"`
	Error        string         `yaml:"error,omitempty" json:"error,omitempty"`
	Conversation []memory.Entry `yaml:"conversation,omitempty" json:"conversation,omitempty"`
}

// RunMetrics contains run counters
type RunMetrics struct {
	Steps       int `yaml:"steps" json:"steps"`
	MaxSteps    int `yaml:"max_steps" json:"max_steps"`
	ToolCalls   int `yaml:"tool_calls" json:"tool_calls"`
	ToolErrors  int `yaml:"tool_errors" json:"tool_errors"`
	FailedTurns int `yaml:"failed_turns" json:"failed_turns"`
}

// newSummary converts a run result and the counters gathered from its events.
func newSummary(res *agent.Result, metrics RunMetrics) *ExecutionSummary {
	status := statusFailed
	if res.Success {
		status = statusSuccess
	}
	metrics.Steps = res.StepsTaken

	return &ExecutionSummary{
		RunID:        res.RunID,
		Task:         res.Task,
		Status:       status,
		ExitReason:   string(res.ExitReason),
		Message:      res.Message,
		Category:     string(res.Category),
		FinalURL:     res.FinalURL,
		StartTime:    res.StartedAt,
		EndTime:      res.StartedAt.Add(res.Duration),
		Duration:     res.Duration.Round(time.Millisecond).String(),
		Metrics:      metrics,
		Conversation: res.History,
	}
}

package headless

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/entrhq/pilot/pkg/types"
)

// LogLevel represents the logging verbosity level
type LogLevel int

const (
	// LogLevelQuiet shows only critical information (errors, warnings, final summary)
	LogLevelQuiet LogLevel = iota
	// LogLevelNormal shows standard execution progress (default)
	LogLevelNormal
	// LogLevelVerbose shows model replies in full
	LogLevelVerbose
	// LogLevelDebug shows all internal details for debugging
	LogLevelDebug
)

// replyPreviewChars caps the reply line printed at normal verbosity.
const replyPreviewChars = 120

var (
	salmonPink = lipgloss.Color("#FFB3BA")
	mintGreen  = lipgloss.Color("#A8E6CF")
	mutedGray  = lipgloss.Color("#6B7280")
	amber      = lipgloss.Color("#F6C177")
	softRed    = lipgloss.Color("#EB6F92")
)

// Logger prints run progress to the console and tallies the run's events.
// Its HandleEvent method is meant to be used as the agent's event sink.
type Logger struct {
	mu     sync.Mutex
	level  LogLevel
	writer io.Writer

	header  lipgloss.Style
	step    lipgloss.Style
	info    lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
	muted   lipgloss.Style

	// Execution state
	startTime time.Time
	reply     strings.Builder
	metrics   RunMetrics
}

// NewLogger creates a logger writing to w at the given level
func NewLogger(w io.Writer, level LogLevel) *Logger {
	r := lipgloss.NewRenderer(w)
	return &Logger{
		level:     level,
		writer:    w,
		header:    r.NewStyle().Bold(true).Foreground(salmonPink),
		step:      r.NewStyle().Bold(true).Foreground(salmonPink),
		info:      r.NewStyle().Foreground(salmonPink),
		success:   r.NewStyle().Bold(true).Foreground(mintGreen),
		warning:   r.NewStyle().Foreground(amber),
		failure:   r.NewStyle().Bold(true).Foreground(softRed),
		muted:     r.NewStyle().Foreground(mutedGray),
		startTime: time.Now(),
	}
}

func (l *Logger) println(style lipgloss.Style, text string) {
	fmt.Fprintln(l.writer, style.Render(text))
}

// Header prints a prominent header message
func (l *Logger) Header(message string) {
	if l.level >= LogLevelNormal {
		rule := strings.Repeat("═", 60)
		fmt.Fprintln(l.writer)
		l.println(l.header, rule)
		l.println(l.header, "  "+message)
		l.println(l.header, rule)
	}
}

// Successf prints a success message with checkmark
func (l *Logger) Successf(format string, args ...interface{}) {
	if l.level >= LogLevelNormal {
		l.println(l.success, "✓ "+fmt.Sprintf(format, args...))
	}
}

// Infof prints an informational message
func (l *Logger) Infof(format string, args ...interface{}) {
	if l.level >= LogLevelNormal {
		l.println(l.info, fmt.Sprintf(format, args...))
	}
}

// Warningf prints a warning message
func (l *Logger) Warningf(format string, args ...interface{}) {
	if l.level >= LogLevelQuiet {
		l.println(l.warning, "⚠ "+fmt.Sprintf(format, args...))
	}
}

// Errorf prints an error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	if l.level >= LogLevelQuiet {
		l.println(l.failure, "✗ "+fmt.Sprintf(format, args...))
	}
}

// Verbosef prints detailed information (only in verbose mode)
func (l *Logger) Verbosef(format string, args ...interface{}) {
	if l.level >= LogLevelVerbose {
		l.println(l.muted, "→ "+fmt.Sprintf(format, args...))
	}
}

// Debugf prints debug information (only in debug mode)
func (l *Logger) Debugf(format string, args ...interface{}) {
	if l.level >= LogLevelDebug {
		l.println(l.muted, "[DEBUG] "+fmt.Sprintf(format, args...))
	}
}

// HandleEvent renders one agent event.
func (l *Logger) HandleEvent(ev *types.AgentEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch ev.Type {
	case types.EventTypeRunStart:
		l.startTime = time.Now()
		l.metrics = RunMetrics{MaxSteps: ev.MaxSteps}
		l.Header("PILOT")
		l.Infof("Task: %s", ev.Content)
		l.Verbosef("Budget: %d steps", ev.MaxSteps)

	case types.EventTypeStepStart:
		l.reply.Reset()
		if l.level >= LogLevelNormal {
			label := fmt.Sprintf("[%d/%d]", ev.Step, ev.MaxSteps)
			if last, _ := ev.Metadata["last_step"].(bool); last {
				label += " final step"
			}
			fmt.Fprintln(l.writer)
			l.println(l.step, label)
		}

	case types.EventTypeMessageContent:
		l.reply.WriteString(ev.Content)

	case types.EventTypeToolCall:
		l.metrics.ToolCalls++
		l.toolCall(ev.ToolName, l.metrics.ToolCalls)

	case types.EventTypeToolResult:
		l.Debugf("%s ok", ev.ToolName)

	case types.EventTypeToolResultErr:
		l.metrics.ToolErrors++
		l.Warningf("%s failed: %v", ev.ToolName, ev.Error)

	case types.EventTypeStepEnd:
		l.printReply()
		if verdict, _ := ev.Metadata["verdict"].(string); verdict != "" && verdict != "continue" {
			l.Verbosef("verdict: %s", verdict)
		}

	case types.EventTypeTurnFailed:
		l.metrics.FailedTurns++
		consecutive, _ := ev.Metadata["consecutive_failures"].(int)
		l.Errorf("step %d failed (%d in a row): %v", ev.Step, consecutive, ev.Error)

	case types.EventTypePlaybackWait:
		l.Infof("Playing on %s", ev.Content)

	case types.EventTypeRunEnd:
		l.Debugf("run ended after %d steps: %v", ev.Step, ev.Metadata["exit_reason"])
	}
}

// toolCall logs a tool execution with formatting based on verbosity
func (l *Logger) toolCall(toolName string, count int) {
	switch l.level {
	case LogLevelQuiet:
		// Don't log individual tool calls in quiet mode
	case LogLevelNormal:
		l.println(l.muted, fmt.Sprintf("  • %s", toolName))
	case LogLevelVerbose, LogLevelDebug:
		l.println(l.muted, fmt.Sprintf("  • %s (call #%d)", toolName, count))
	}
}

// printReply prints the model's reply for the step: its first line at normal
// verbosity, all of it when verbose.
func (l *Logger) printReply() {
	text := strings.TrimSpace(l.reply.String())
	if text == "" || l.level < LogLevelNormal {
		return
	}
	if l.level >= LogLevelVerbose {
		for _, line := range strings.Split(text, "\n") {
			l.println(l.muted, "  │ "+line)
		}
		return
	}

	line := text
	if nl := strings.IndexByte(line, '\n'); nl >= 0 {
		line = line[:nl]
	}
	if r := []rune(line); len(r) > replyPreviewChars {
		line = string(r[:replyPreviewChars]) + "…"
	}
	l.println(l.muted, "  "+line)
}

// Metrics returns the counters gathered from events so far.
func (l *Logger) Metrics() RunMetrics {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.metrics
}

// Summary prints a final execution summary
func (l *Logger) Summary(summary *ExecutionSummary) {
	rule := strings.Repeat("═", 60)
	fmt.Fprintln(l.writer)
	l.println(l.header, rule)

	switch summary.Status {
	case statusSuccess:
		l.println(l.success, "  ✓ SUCCESS")
	default:
		l.println(l.failure, "  ✗ FAILED ("+summary.ExitReason+")")
	}
	fmt.Fprintf(l.writer, "  %s\n", summary.Message)
	fmt.Fprintf(l.writer, "  Steps: %d/%d  Tool calls: %d  Duration: %s\n",
		summary.Metrics.Steps, summary.Metrics.MaxSteps, summary.Metrics.ToolCalls, summary.Duration)
	if summary.FinalURL != "" {
		fmt.Fprintf(l.writer, "  Page: %s\n", summary.FinalURL)
	}
	if summary.Error != "" {
		l.println(l.failure, "  Error: "+summary.Error)
	}

	l.println(l.header, rule)
}

// parseLogLevel converts a string log level to LogLevel type
func parseLogLevel(level string) LogLevel {
	switch level {
	case "quiet":
		return LogLevelQuiet
	case "normal":
		return LogLevelNormal
	case "verbose":
		return LogLevelVerbose
	case "debug":
		return LogLevelDebug
	default:
		return LogLevelNormal
	}
}

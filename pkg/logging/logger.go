// Package logging provides run-scoped debug logging for pilot components.
//
// A root logger is created once per run with New and writes to
// <dir>/<run-id>-pilot.log. Components derive named children with Named so
// that every line carries both the run id and the component that wrote it.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger provides structured debug logging for pilot components.
type Logger struct {
	runID     string
	component string
	zap       *zap.Logger
	sugar     *zap.SugaredLogger
	file      *os.File
	logPath   string
	closeOnce sync.Once
}

// DefaultLogDir returns ~/.pilot/logs.
func DefaultLogDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".pilot", "logs"), nil
}

// New creates the root logger for a run. The logger writes JSON lines to
// <dir>/<runID>-pilot.log. If dir is empty, DefaultLogDir is used.
//
// If the log directory cannot be created or the log file cannot be opened,
// New returns a fallback logger that writes to stderr along with the error.
// Callers can check the error to detect fallback mode and log warnings.
func New(runID, component, dir string) (*Logger, error) {
	if dir == "" {
		d, err := DefaultLogDir()
		if err != nil {
			return newFallbackLogger(runID, component, err), err
		}
		dir = d
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		err = fmt.Errorf("failed to create log directory: %w", err)
		return newFallbackLogger(runID, component, err), err
	}

	logPath := filepath.Join(dir, fmt.Sprintf("%s-pilot.log", runID))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		err = fmt.Errorf("failed to open log file: %w", err)
		return newFallbackLogger(runID, component, err), err
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(file), zapcore.DebugLevel)
	base := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).With(zap.String("run_id", runID))

	return newLogger(runID, component, base, file, logPath), nil
}

// newFallbackLogger creates a logger that writes to stderr when file logging fails
func newFallbackLogger(runID, component string, cause error) *Logger {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.Lock(os.Stderr), zapcore.WarnLevel)
	base := zap.New(core, zap.AddCallerSkip(1)).With(zap.String("run_id", runID))

	l := newLogger(runID, component, base, nil, "")
	l.Warnf("failed to initialize file logging, falling back to stderr: %v", cause)
	return l
}

// Nop returns a logger that discards everything. Useful in tests.
func Nop() *Logger {
	return newLogger("", "", zap.NewNop(), nil, "")
}

func newLogger(runID, component string, base *zap.Logger, file *os.File, logPath string) *Logger {
	z := base
	if component != "" {
		z = base.With(zap.String("component", component))
	}
	return &Logger{
		runID:     runID,
		component: component,
		zap:       z,
		sugar:     z.Sugar(),
		file:      file,
		logPath:   logPath,
	}
}

// Named returns a child logger for another component of the same run.
// The child shares the parent's output; closing it is a no-op.
func (l *Logger) Named(component string) *Logger {
	if l == nil {
		return Nop()
	}
	child := l.zap
	if component != "" {
		child = child.With(zap.String("component", component))
	}
	return &Logger{
		runID:     l.runID,
		component: component,
		zap:       child,
		sugar:     child.Sugar(),
		logPath:   l.logPath,
	}
}

// With returns a child logger that adds the given key/value pairs to every entry.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	if l == nil {
		return Nop()
	}
	sugar := l.sugar.With(keysAndValues...)
	return &Logger{
		runID:     l.runID,
		component: l.component,
		zap:       sugar.Desugar(),
		sugar:     sugar,
		logPath:   l.logPath,
	}
}

// Printf logs a formatted message at info level
func (l *Logger) Printf(format string, v ...interface{}) {
	l.sugar.Infof(format, v...)
}

// Debugf logs a debug-level message
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.sugar.Debugf(format, v...)
}

// Infof logs an info-level message
func (l *Logger) Infof(format string, v ...interface{}) {
	l.sugar.Infof(format, v...)
}

// Warnf logs a warning-level message
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.sugar.Warnf(format, v...)
}

// Errorf logs an error-level message
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.sugar.Errorf(format, v...)
}

// RunID returns the run identifier this logger was created for
func (l *Logger) RunID() string {
	return l.runID
}

// LogPath returns the path to the log file, or "" when logging to stderr
func (l *Logger) LogPath() string {
	return l.logPath
}

// Close flushes and closes the log file. Safe to call multiple times.
func (l *Logger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		_ = l.zap.Sync()
		if l.file != nil {
			err = l.file.Close()
		}
	})
	return err
}

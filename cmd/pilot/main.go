// Package main provides pilot, a command-line agent that drives a web browser
// to carry out a task described in natural language.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/entrhq/pilot/pkg/agent"
	"github.com/entrhq/pilot/pkg/config"
	"github.com/entrhq/pilot/pkg/executor/headless"
	"github.com/entrhq/pilot/pkg/llm/tokenizer"
	"github.com/entrhq/pilot/pkg/logging"
	"github.com/entrhq/pilot/pkg/tools"
	"github.com/entrhq/pilot/pkg/tools/browser"
	"github.com/entrhq/pilot/pkg/tools/mcpclient"
	"github.com/entrhq/pilot/pkg/tracing"
)

const version = "0.1.0"

// cliOptions holds flags that are not configuration keys.
type cliOptions struct {
	task        string
	taskFile    string
	configFile  string
	timeout     time.Duration
	verbosity   string
	install     bool
	showVersion bool
}

func main() {
	// A missing .env is fine
	_ = godotenv.Load()

	fs := pflag.NewFlagSet("pilot", pflag.ExitOnError)
	opts := registerFlags(fs)
	_ = fs.Parse(os.Args[1:])

	if opts.showVersion {
		fmt.Printf("pilot v%s\n", version)
		return
	}
	if opts.task == "" && fs.NArg() > 0 {
		opts.task = strings.Join(fs.Args(), " ")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code, err := run(ctx, fs, opts)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "pilot: %v\n", err)
		os.Exit(1)
	}
	os.Exit(code)
}

func registerFlags(fs *pflag.FlagSet) *cliOptions {
	opts := &cliOptions{}
	defaults := config.Default()

	fs.StringVarP(&opts.task, "task", "t", "", "Task to carry out in the browser")
	fs.StringVar(&opts.taskFile, "task-file", "", "YAML task file (task, timeout, artifacts, logging)")
	fs.StringVarP(&opts.configFile, "config", "c", "", "Path to configuration file (YAML)")
	fs.DurationVar(&opts.timeout, "timeout", 0, "Abort the run after this long (0 disables)")
	fs.StringVar(&opts.verbosity, "verbosity", "", "Console output: quiet, normal, verbose or debug")
	fs.BoolVar(&opts.install, "install", false, "Install the Playwright browser driver before starting")
	fs.BoolVar(&opts.showVersion, "version", false, "Show version and exit")

	fs.Int("max-steps", defaults.Agent.MaxSteps, "Maximum number of steps")
	fs.Int("max-failures", defaults.Agent.MaxFailures, "Consecutive failed steps before giving up")
	fs.Bool("no-wait", false, "Exit right after a media task succeeds instead of waiting for playback")
	fs.String("provider", defaults.LLM.Provider, "LLM provider: openai or anthropic")
	fs.String("model", "", "Model name (provider default when empty)")
	fs.String("base-url", "", "Provider API base URL")
	fs.String("backend", defaults.Tools.Backend, "Browser backend: browser or mcp")
	fs.Bool("headless", defaults.Browser.Headless, "Run the browser without a window")
	fs.String("log-dir", "", "Debug log directory (default ~/.pilot/logs)")
	fs.StringP("output", "o", "", "Write run artifacts to this directory")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "pilot - a browser agent\n\n")
		fmt.Fprintf(os.Stderr, "Usage: pilot [options] [task]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  OPENAI_API_KEY, ANTHROPIC_API_KEY   Provider credentials\n")
		fmt.Fprintf(os.Stderr, "  PILOT_*                             Override any configuration key\n")
		fmt.Fprintf(os.Stderr, "  OTEL_EXPORTER_OTLP_ENDPOINT         Export traces\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  pilot \"play lofi beats on youtube\"\n")
		fmt.Fprintf(os.Stderr, "  pilot --provider anthropic --max-steps 25 -t \"find the cheapest kettle on example-shop.com\"\n")
		fmt.Fprintf(os.Stderr, "  pilot --task-file nightly.yaml --headless --no-wait -o runs/nightly\n")
	}
	return opts
}

// run wires configuration, backend, provider and agent together and returns
// the process exit code.
func run(ctx context.Context, fs *pflag.FlagSet, opts *cliOptions) (int, error) {
	cfg, err := config.Load(opts.configFile, fs)
	if err != nil {
		return 1, err
	}
	if err := cfg.Validate(); err != nil {
		return 1, fmt.Errorf("invalid configuration: %w", err)
	}

	execCfg, err := executorConfig(cfg, opts)
	if err != nil {
		return 1, err
	}

	runID := uuid.NewString()
	logger, logErr := logging.New(runID, "pilot", cfg.Logging.Dir)
	defer logger.Close()
	if logErr != nil {
		fmt.Fprintf(os.Stderr, "warning: debug log unavailable: %v\n", logErr)
	}

	exec, err := headless.NewExecutor(execCfg, os.Stdout)
	if err != nil {
		return 1, err
	}

	provider, err := config.BuildProvider(cfg.LLM, logger.Named("llm"))
	if err != nil {
		return 1, err
	}

	backend, err := openBackend(ctx, cfg, opts.install, logger.Named("backend"))
	if err != nil {
		return 1, err
	}
	gateway, err := tools.NewGateway(ctx, backend,
		tools.WithAllowList(cfg.Tools.Allow...),
		tools.WithSnapshotTool(cfg.Tools.SnapshotTool),
		tools.WithMaxErrorChars(cfg.Tools.MaxErrorChars),
		tools.WithLogger(logger.Named("tools")),
	)
	if err != nil {
		_ = backend.Close()
		return 1, err
	}
	defer func() {
		if closeErr := gateway.Close(); closeErr != nil {
			logger.Warnf("failed to close backend: %v", closeErr)
		}
	}()

	agentOpts := []agent.AgentOption{
		agent.WithRunID(runID),
		agent.WithTools(gateway),
		agent.WithBudget(cfg.Agent.MaxSteps, cfg.Agent.MaxFailures),
		agent.WithGeneration(cfg.Agent.Temperature, cfg.Agent.MaxTokens),
		agent.WithHistoryWindow(cfg.Agent.HistoryWindow, cfg.Agent.HistoryEntryChars),
		agent.WithEventSink(exec.Sink()),
		agent.WithLogger(logger.Named("agent")),
	}
	if tok, tokErr := tokenizer.New(); tokErr != nil {
		logger.Warnf("token counting disabled: %v", tokErr)
	} else {
		agentOpts = append(agentOpts, agent.WithTokenizer(tok))
	}
	if !cfg.Agent.NoWait {
		agentOpts = append(agentOpts, agent.WithPlaybackWaiter(terminalWaiter{in: os.Stdin, out: os.Stdout}))
	}

	ag, err := agent.New(provider, agentOpts...)
	if err != nil {
		return 1, err
	}

	res, runErr := exec.Run(ctx, ag)
	logger.Infof("run finished: exit_reason=%s steps=%d gateway=%+v", res.ExitReason, res.StepsTaken, gateway.Stats())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tracing.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("failed to flush traces: %v", err)
	}

	return headless.ExitCode(res), runErr
}

// executorConfig builds the headless executor configuration from an optional
// task file, then applies command-line overrides.
func executorConfig(cfg *config.Config, opts *cliOptions) (*headless.Config, error) {
	execCfg := headless.DefaultConfig()
	if opts.taskFile != "" {
		loaded, err := headless.LoadTaskFile(opts.taskFile)
		if err != nil {
			return nil, err
		}
		execCfg = loaded
	}

	if opts.task != "" {
		execCfg.Task = opts.task
	}
	if opts.timeout > 0 {
		execCfg.Timeout = opts.timeout
	}
	if opts.verbosity != "" {
		execCfg.Logging.Verbosity = opts.verbosity
	}
	if cfg.Output.Dir != "" {
		execCfg.Artifacts.Enabled = true
		execCfg.Artifacts.OutputDir = cfg.Output.Dir
	}

	if err := execCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return execCfg, nil
}

// openBackend starts the configured tool backend.
func openBackend(ctx context.Context, cfg *config.Config, install bool, logger *logging.Logger) (tools.Backend, error) {
	switch cfg.Tools.Backend {
	case config.BackendMCP:
		return mcpclient.Start(ctx, cfg.MCP.Command, cfg.MCP.Args, os.Environ(), mcpclient.WithLogger(logger))
	default:
		return browser.Launch(browser.SessionOptions{
			Headless: cfg.Browser.Headless,
			Viewport: &browser.Viewport{Width: cfg.Browser.Width, Height: cfg.Browser.Height},
			Timeout:  float64(cfg.Browser.TimeoutMs),
		}, install, browser.WithLogger(logger))
	}
}

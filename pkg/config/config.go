// Package config loads pilot's run configuration from defaults, an optional
// YAML file, PILOT_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Supported providers and backends.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	BackendBrowser = "browser"
	BackendMCP     = "mcp"
)

// ErrMissingAPIKey is returned by Validate when no credential is available for
// the selected provider.
var ErrMissingAPIKey = errors.New("missing API key")

// DefaultToolAllowList names the backend tools exposed to the model.
var DefaultToolAllowList = []string{
	"browser_navigate",
	"browser_navigate_back",
	"browser_snapshot",
	"browser_click",
	"browser_type",
	"browser_press_key",
	"browser_select_option",
	"browser_hover",
	"browser_wait_for",
}

// Config holds all configuration sections for a pilot run.
type Config struct {
	Agent   AgentConfig   `mapstructure:"agent"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Tools   ToolsConfig   `mapstructure:"tools"`
	Browser BrowserConfig `mapstructure:"browser"`
	MCP     MCPConfig     `mapstructure:"mcp"`
	Logging LoggingConfig `mapstructure:"logging"`
	Output  OutputConfig  `mapstructure:"output"`
}

// AgentConfig holds loop budgets and generation parameters.
type AgentConfig struct {
	MaxSteps    int     `mapstructure:"maxSteps"`
	MaxFailures int     `mapstructure:"maxFailures"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"maxTokens"`

	// HistoryWindow is how many prior conversation entries are sent with each turn.
	HistoryWindow int `mapstructure:"historyWindow"`

	// HistoryEntryChars caps each transmitted history entry.
	HistoryEntryChars int `mapstructure:"historyEntryChars"`

	// NoWait disables blocking on the user after a media playback task succeeds.
	NoWait bool `mapstructure:"noWait"`
}

// LLMConfig selects and configures the model provider.
type LLMConfig struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	BaseURL  string `mapstructure:"baseUrl"`
	APIKey   string `mapstructure:"apiKey"`
}

// ToolsConfig controls which backend drives the browser and what the model may call.
type ToolsConfig struct {
	Backend       string   `mapstructure:"backend"`
	Allow         []string `mapstructure:"allow"`
	SnapshotTool  string   `mapstructure:"snapshotTool"`
	MaxErrorChars int      `mapstructure:"maxErrorChars"`
}

// BrowserConfig configures the in-process Playwright backend.
type BrowserConfig struct {
	Headless  bool `mapstructure:"headless"`
	Width     int  `mapstructure:"width"`
	Height    int  `mapstructure:"height"`
	TimeoutMs int  `mapstructure:"timeoutMs"`
}

// MCPConfig configures the external MCP browser server.
type MCPConfig struct {
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
}

// LoggingConfig holds debug log settings.
type LoggingConfig struct {
	Dir string `mapstructure:"dir"`
}

// OutputConfig controls run artifacts. An empty Dir disables them.
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"max-steps":    "agent.maxSteps",
	"max-failures": "agent.maxFailures",
	"no-wait":      "agent.noWait",
	"provider":     "llm.provider",
	"model":        "llm.model",
	"base-url":     "llm.baseUrl",
	"backend":      "tools.backend",
	"headless":     "browser.headless",
	"log-dir":      "logging.dir",
	"output":       "output.dir",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("agent.maxSteps", 15)
	v.SetDefault("agent.maxFailures", 3)
	v.SetDefault("agent.temperature", 0.2)
	v.SetDefault("agent.maxTokens", 2048)
	v.SetDefault("agent.historyWindow", 6)
	v.SetDefault("agent.historyEntryChars", 1500)
	v.SetDefault("agent.noWait", false)

	v.SetDefault("llm.provider", ProviderOpenAI)
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.baseUrl", "")
	v.SetDefault("llm.apiKey", "")

	v.SetDefault("tools.backend", BackendBrowser)
	v.SetDefault("tools.allow", DefaultToolAllowList)
	v.SetDefault("tools.snapshotTool", "browser_snapshot")
	v.SetDefault("tools.maxErrorChars", 500)

	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.width", 1280)
	v.SetDefault("browser.height", 800)
	v.SetDefault("browser.timeoutMs", 30000)

	v.SetDefault("mcp.command", "npx")
	v.SetDefault("mcp.args", []string{"@playwright/mcp@latest"})

	v.SetDefault("logging.dir", "")
	v.SetDefault("output.dir", "")
}

// Default returns the configuration produced by defaults alone.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Load reads configuration from the given YAML file (optional), PILOT_*
// environment variables and any flags in fs that were explicitly set.
// Provider credentials fall back to OPENAI_API_KEY / ANTHROPIC_API_KEY.
func Load(configFile string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// camelCase keys do not map onto SNAKE_CASE env names automatically
	_ = v.BindEnv("agent.maxSteps", "PILOT_AGENT_MAX_STEPS")
	_ = v.BindEnv("agent.maxFailures", "PILOT_AGENT_MAX_FAILURES")
	_ = v.BindEnv("agent.noWait", "PILOT_AGENT_NO_WAIT")
	_ = v.BindEnv("llm.baseUrl", "PILOT_LLM_BASE_URL")
	_ = v.BindEnv("llm.apiKey", "PILOT_LLM_API_KEY")
	_ = v.BindEnv("logging.dir", "PILOT_LOG_DIR")
	_ = v.BindEnv("output.dir", "PILOT_OUTPUT_DIR")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.applyProviderFallbacks()
	return &cfg, nil
}

// applyProviderFallbacks fills credentials and endpoints from the
// provider-native environment variables when not configured explicitly.
func (c *Config) applyProviderFallbacks() {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))

	switch c.LLM.Provider {
	case ProviderOpenAI:
		if c.LLM.APIKey == "" {
			c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		if c.LLM.BaseURL == "" {
			c.LLM.BaseURL = os.Getenv("OPENAI_BASE_URL")
		}
	case ProviderAnthropic:
		if c.LLM.APIKey == "" {
			c.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}

	if c.LLM.Model == "" {
		c.LLM.Model = DefaultModel(c.LLM.Provider)
	}
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return "claude-sonnet-4-20250514"
	default:
		return "gpt-4o"
	}
}

// Validate checks budgets, provider and backend selection, and credentials.
func (c *Config) Validate() error {
	var errs []error

	if c.Agent.MaxSteps < 1 {
		errs = append(errs, fmt.Errorf("agent.maxSteps must be positive, got %d", c.Agent.MaxSteps))
	}
	if c.Agent.MaxFailures < 1 {
		errs = append(errs, fmt.Errorf("agent.maxFailures must be positive, got %d", c.Agent.MaxFailures))
	}
	if c.Agent.MaxTokens < 1 {
		errs = append(errs, fmt.Errorf("agent.maxTokens must be positive, got %d", c.Agent.MaxTokens))
	}
	if c.Agent.Temperature < 0 || c.Agent.Temperature > 2 {
		errs = append(errs, fmt.Errorf("agent.temperature must be between 0 and 2, got %v", c.Agent.Temperature))
	}

	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderAnthropic:
		if c.LLM.APIKey == "" {
			errs = append(errs, fmt.Errorf("%w for provider %s", ErrMissingAPIKey, c.LLM.Provider))
		}
	default:
		errs = append(errs, fmt.Errorf("llm.provider must be one of: %s, %s", ProviderOpenAI, ProviderAnthropic))
	}

	switch c.Tools.Backend {
	case BackendBrowser:
	case BackendMCP:
		if c.MCP.Command == "" {
			errs = append(errs, errors.New("mcp.command is required for the mcp backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("tools.backend must be one of: %s, %s", BackendBrowser, BackendMCP))
	}

	if len(c.Tools.Allow) == 0 {
		errs = append(errs, errors.New("tools.allow must name at least one tool"))
	}

	return errors.Join(errs...)
}

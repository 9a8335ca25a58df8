// ABOUTME: Configuration loading and parsing for slack-dispatch
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete slack-dispatch configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Slack    SlackConfig    `yaml:"slack"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Models   ModelsConfig   `yaml:"models"`
	Timeouts TimeoutsConfig `yaml:"timeouts"`
	Retries  RetriesConfig  `yaml:"retries"`
	Search   SearchConfig   `yaml:"search"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds the events endpoint address
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// SlackConfig holds Slack API credentials
type SlackConfig struct {
	BotToken      string `yaml:"bot_token"`
	SigningSecret string `yaml:"signing_secret"`
}

// OpenAIConfig holds generation service credentials
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// ModelsConfig holds the generation model identifier per responder tier
type ModelsConfig struct {
	Chat       string `yaml:"chat"`       // fast model for direct answers
	Supervisor string `yaml:"supervisor"` // capable model for direct coordination answers and synthesis
	Planner    string `yaml:"planner"`    // invocation planning; defaults to the supervisor model
	Classifier string `yaml:"classifier"` // escalation judgment calls
}

// TimeoutsConfig holds per-call timeout durations by call class
type TimeoutsConfig struct {
	Generate time.Duration `yaml:"-"`
	Platform time.Duration `yaml:"-"`
	Tool     time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	GenerateRaw string `yaml:"generate"`
	PlatformRaw string `yaml:"platform"`
	ToolRaw     string `yaml:"tool"`
}

// RetriesConfig holds the retry ceiling for transient external failures
type RetriesConfig struct {
	Max int `yaml:"max"`
}

// SearchConfig holds web search service configuration
type SearchConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
	Verbose bool   `yaml:"verbose"` // log every status-sink update
}

// Defaults applied when the config file omits a value.
const (
	DefaultChatModel       = "gpt-4o-mini"
	DefaultSupervisorModel = "gpt-4o"
	DefaultClassifierModel = "gpt-4o-mini"

	defaultGenerateTimeout = 30 * time.Second
	defaultPlatformTimeout = 15 * time.Second
	defaultToolTimeout     = 20 * time.Second
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Slack.BotToken == "" {
		return fmt.Errorf("slack.bot_token is required")
	}
	if c.Slack.SigningSecret == "" {
		return fmt.Errorf("slack.signing_secret is required")
	}

	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required")
	}

	if c.Retries.Max < 0 {
		return fmt.Errorf("retries.max must not be negative")
	}

	return nil
}

// applyDefaults fills in model names and timeouts the file left unset.
func (c *Config) applyDefaults() {
	if c.Models.Chat == "" {
		c.Models.Chat = DefaultChatModel
	}
	if c.Models.Supervisor == "" {
		c.Models.Supervisor = DefaultSupervisorModel
	}
	if c.Models.Classifier == "" {
		c.Models.Classifier = DefaultClassifierModel
	}
	if c.Models.Planner == "" {
		c.Models.Planner = c.Models.Supervisor
	}

	if c.Timeouts.Generate == 0 {
		c.Timeouts.Generate = defaultGenerateTimeout
	}
	if c.Timeouts.Platform == 0 {
		c.Timeouts.Platform = defaultPlatformTimeout
	}
	if c.Timeouts.Tool == 0 {
		c.Timeouts.Tool = defaultToolTimeout
	}
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Timeouts.GenerateRaw != "" {
		cfg.Timeouts.Generate, err = time.ParseDuration(cfg.Timeouts.GenerateRaw)
		if err != nil {
			return fmt.Errorf("parsing timeouts.generate %q: %w", cfg.Timeouts.GenerateRaw, err)
		}
	}

	if cfg.Timeouts.PlatformRaw != "" {
		cfg.Timeouts.Platform, err = time.ParseDuration(cfg.Timeouts.PlatformRaw)
		if err != nil {
			return fmt.Errorf("parsing timeouts.platform %q: %w", cfg.Timeouts.PlatformRaw, err)
		}
	}

	if cfg.Timeouts.ToolRaw != "" {
		cfg.Timeouts.Tool, err = time.ParseDuration(cfg.Timeouts.ToolRaw)
		if err != nil {
			return fmt.Errorf("parsing timeouts.tool %q: %w", cfg.Timeouts.ToolRaw, err)
		}
	}

	return nil
}

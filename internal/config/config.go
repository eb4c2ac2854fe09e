package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides of keys that have no
// well-known variable name, e.g. SLACK_DIGEST_LOOKBACK_HOURS.
const EnvPrefix = "SLACK_DIGEST"

// Default summarizer endpoints per backend type. The OpenAI backend talks to
// the OpenAI-compatible /v1 API that Ollama also serves.
const (
	DefaultOllamaURL = "http://localhost:11434"
	DefaultOpenAIURL = "http://localhost:11434/v1"
)

// MaxLookbackHours caps lookback_hours at ten years.
const MaxLookbackHours = 24 * 365 * 10

var defaultURLs = map[string]string{
	"ollama": DefaultOllamaURL,
	"openai": DefaultOpenAIURL,
}

// ErrMissingRequired is wrapped by every error about an absent required value.
var ErrMissingRequired = errors.New("missing required value")

type Config struct {
	Slack         SlackConfig      `yaml:"slack" mapstructure:"slack"`
	Summarizer    SummarizerConfig `yaml:"summarizer" mapstructure:"summarizer"`
	LookbackHours int              `yaml:"lookback_hours" mapstructure:"lookback_hours"`
	Schedule      string           `yaml:"schedule" mapstructure:"schedule"`
	RunOnStart    bool             `yaml:"run_on_start" mapstructure:"run_on_start"`
	Notify        NotifyConfig     `yaml:"notify" mapstructure:"notify"`
	Web           WebConfig        `yaml:"web" mapstructure:"web"`
	Log           LogConfig        `yaml:"log" mapstructure:"log"`

	configFile string
}

type SlackConfig struct {
	Token    string   `yaml:"token" mapstructure:"token"`
	Cookie   string   `yaml:"cookie,omitempty" mapstructure:"cookie"`
	UserID   string   `yaml:"user_id" mapstructure:"user_id"`
	Channels []string `yaml:"channels" mapstructure:"channels"`
}

type SummarizerConfig struct {
	Type    string        `yaml:"type" mapstructure:"type"`
	Model   string        `yaml:"model" mapstructure:"model"`
	URL     string        `yaml:"url" mapstructure:"url"`
	APIKey  string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

type NotifyConfig struct {
	Type    string        `yaml:"type" mapstructure:"type"`
	App     string        `yaml:"app" mapstructure:"app"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

type WebConfig struct {
	Addr string `yaml:"addr,omitempty" mapstructure:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// envBindings maps config keys to the environment variables that set them.
// The first variable that is present wins.
var envBindings = map[string][]string{
	"slack.token":        {"SLACK_BOT_TOKEN"},
	"slack.cookie":       {"SLACK_COOKIE"},
	"slack.user_id":      {"SLACK_USER_ID"},
	"slack.channels":     {"SLACK_CHANNELS"},
	"summarizer.model":   {EnvPrefix + "_SUMMARIZER_MODEL", "OLLAMA_MODEL"},
	"summarizer.url":     {EnvPrefix + "_SUMMARIZER_URL", "OLLAMA_URL"},
	"summarizer.api_key": {EnvPrefix + "_SUMMARIZER_API_KEY", "OPENAI_API_KEY"},
}

var defaults = map[string]any{
	"summarizer.type":    "ollama",
	"summarizer.model":   "llama3.2",
	"summarizer.api_key": "",
	"summarizer.timeout": 120 * time.Second,
	"lookback_hours":     24,
	"schedule":           "0 8 * * *",
	"run_on_start":       false,
	"notify.type":        "auto",
	"notify.app":         "Slack",
	"notify.timeout":     30 * time.Second,
	"web.addr":           "",
	"log.level":          "info",
	"log.format":         "console",
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// DefaultConfigPath returns ~/.config/slack-digest/slack-digest.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "slack-digest", "slack-digest.yaml")
	}
	return filepath.Join(home, ".config", "slack-digest", "slack-digest.yaml")
}

// LoadDotEnv loads variables from the given .env files (".env" when none are
// given) without overriding variables already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in increasing order of precedence.
//
// An explicit path must exist. With an empty path, ./slack-digest.yaml and
// DefaultConfigPath are tried in turn and skipped when absent.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	for key, names := range envBindings {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("config: failed to bind %s: %w", key, err)
		}
	}

	used, err := readConfigFile(v, path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: failed to decode: %w", err)
	}
	cfg.configFile = used
	cfg.Slack.Channels = normalizeChannels(cfg.Slack.Channels)
	if cfg.Summarizer.URL == "" {
		cfg.Summarizer.URL = defaultURLs[cfg.Summarizer.Type]
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readConfigFile(v *viper.Viper, path string) (string, error) {
	candidates := []string{path}
	if path == "" {
		candidates = []string{"slack-digest.yaml", DefaultConfigPath()}
	}

	for _, p := range candidates {
		data, err := os.ReadFile(p)
		if errors.Is(err, fs.ErrNotExist) && path == "" {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("config: failed to read %s: %w", p, err)
		}
		expanded := expandEnvVars(string(data))
		if err := v.ReadConfig(bytes.NewReader([]byte(expanded))); err != nil {
			return "", fmt.Errorf("config: failed to parse %s: %w", p, err)
		}
		return p, nil
	}
	return "", nil
}

// normalizeChannels trims ids and drops empty entries. A single element that
// still holds commas (a YAML string rather than a list) is split.
func normalizeChannels(in []string) []string {
	var out []string
	for _, item := range in {
		for _, id := range strings.Split(item, ",") {
			if id = strings.TrimSpace(id); id != "" {
				out = append(out, id)
			}
		}
	}
	return out
}

func validate(cfg *Config) error {
	switch cfg.Summarizer.Type {
	case "ollama", "openai":
	default:
		return fmt.Errorf("config: unsupported summarizer type %q (supported: ollama, openai)", cfg.Summarizer.Type)
	}
	if cfg.Summarizer.URL == "" {
		return fmt.Errorf("config: summarizer.url must not be empty")
	}
	if cfg.Summarizer.Timeout <= 0 {
		return fmt.Errorf("config: summarizer.timeout must be positive, got %s", cfg.Summarizer.Timeout)
	}
	if cfg.LookbackHours <= 0 {
		return fmt.Errorf("config: lookback_hours must be positive, got %d", cfg.LookbackHours)
	}
	if cfg.LookbackHours > MaxLookbackHours {
		return fmt.Errorf("config: lookback_hours must be at most %d, got %d", MaxLookbackHours, cfg.LookbackHours)
	}
	switch cfg.Notify.Type {
	case "auto", "osascript", "notify-send", "none":
	default:
		return fmt.Errorf("config: unsupported notify type %q (supported: auto, osascript, notify-send, none)", cfg.Notify.Type)
	}
	switch cfg.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("config: unsupported log format %q (supported: console, json)", cfg.Log.Format)
	}
	return nil
}

// ValidateCredentials checks what every command talking to Slack needs.
func (c *Config) ValidateCredentials() error {
	if unset(c.Slack.Token) {
		return fmt.Errorf("config: %w: SLACK_BOT_TOKEN environment variable not set "+
			"(xoxb-... for bot tokens, or xoxc-... together with SLACK_COOKIE=xoxd-...)", ErrMissingRequired)
	}
	return nil
}

// ValidateRun checks everything a digest run needs before any network call.
func (c *Config) ValidateRun() error {
	if err := c.ValidateCredentials(); err != nil {
		return err
	}
	if unset(c.Slack.UserID) {
		return fmt.Errorf("config: %w: SLACK_USER_ID environment variable not set "+
			"(run `slack-digest channels` to find yours)", ErrMissingRequired)
	}
	if len(c.Slack.Channels) == 0 {
		return fmt.Errorf("config: %w: SLACK_CHANNELS environment variable not set "+
			"(example: SLACK_CHANNELS=C1234567890,C0987654321)", ErrMissingRequired)
	}
	return nil
}

// unset reports whether s is empty or a ${VAR} reference left unexpanded.
func unset(s string) bool {
	return s == "" || envVarRegex.MatchString(s)
}

// Lookback returns the lookback window as a duration.
func (c *Config) Lookback() time.Duration {
	return time.Duration(c.LookbackHours) * time.Hour
}

// ConfigFile returns the file the configuration was read from, or "" when
// only defaults and the environment were used.
func (c *Config) ConfigFile() string {
	return c.configFile
}

// Save writes the configuration as YAML, creating parent directories.
// The file is written with 0600 permissions since it may hold tokens.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("config: failed to create directory for %s: %w", path, err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: failed to encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: failed to write %s: %w", path, err)
	}
	return nil
}

// Starter returns a configuration suitable for `config init`, with secrets
// left as ${VAR} references.
func Starter() *Config {
	return &Config{
		Slack: SlackConfig{
			Token:    "${SLACK_BOT_TOKEN}",
			UserID:   "${SLACK_USER_ID}",
			Channels: []string{"C1234567890", "C0987654321"},
		},
		Summarizer: SummarizerConfig{
			Type:    "ollama",
			Model:   "llama3.2",
			URL:     DefaultOllamaURL,
			Timeout: 120 * time.Second,
		},
		LookbackHours: 24,
		Schedule:      "0 8 * * *",
		Notify: NotifyConfig{
			Type:    "auto",
			App:     "Slack",
			Timeout: 30 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

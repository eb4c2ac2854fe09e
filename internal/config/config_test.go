package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv isolates a test from the developer's shell and home directory.
func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, names := range envBindings {
		for _, name := range names {
			t.Setenv(name, "")
		}
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "slack-digest.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Summarizer.Type != "ollama" {
		t.Errorf("Expected summarizer type 'ollama', got %q", cfg.Summarizer.Type)
	}
	if cfg.Summarizer.Model != "llama3.2" {
		t.Errorf("Expected model 'llama3.2', got %q", cfg.Summarizer.Model)
	}
	if cfg.Summarizer.URL != "http://localhost:11434" {
		t.Errorf("Expected default Ollama URL, got %q", cfg.Summarizer.URL)
	}
	if cfg.Summarizer.Timeout != 120*time.Second {
		t.Errorf("Expected 120s timeout, got %s", cfg.Summarizer.Timeout)
	}
	if cfg.LookbackHours != 24 {
		t.Errorf("Expected lookback 24, got %d", cfg.LookbackHours)
	}
	if cfg.Lookback() != 24*time.Hour {
		t.Errorf("Expected Lookback() 24h, got %s", cfg.Lookback())
	}
	if cfg.Schedule != "0 8 * * *" {
		t.Errorf("Expected default schedule, got %q", cfg.Schedule)
	}
	if cfg.Notify.Type != "auto" || cfg.Notify.App != "Slack" || cfg.Notify.Timeout != 30*time.Second {
		t.Errorf("Unexpected notify defaults: %+v", cfg.Notify)
	}
	if cfg.ConfigFile() != "" {
		t.Errorf("Expected no config file, got %q", cfg.ConfigFile())
	}
}

func TestLoadOpenAIDefaultURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("SLACK_DIGEST_SUMMARIZER_TYPE", "openai")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Summarizer.URL != "http://localhost:11434/v1" {
		t.Errorf("Expected OpenAI-compatible default URL, got %q", cfg.Summarizer.URL)
	}
}

func TestLoadExplicitURLKeptForOpenAI(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "summarizer:\n  type: openai\n  url: https://api.openai.com/v1\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Summarizer.URL != "https://api.openai.com/v1" {
		t.Errorf("Expected configured URL, got %q", cfg.Summarizer.URL)
	}
}

func TestLoadLookbackAtCap(t *testing.T) {
	clearEnv(t)
	t.Setenv("SLACK_DIGEST_LOOKBACK_HOURS", "87600")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Lookback() <= 0 {
		t.Errorf("Expected positive lookback duration, got %s", cfg.Lookback())
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-test")
	t.Setenv("SLACK_COOKIE", "xoxd-cookie")
	t.Setenv("SLACK_USER_ID", "U123")
	t.Setenv("SLACK_CHANNELS", "C111, C222 ,,C333")
	t.Setenv("OLLAMA_MODEL", "mistral")
	t.Setenv("OLLAMA_URL", "http://gpu-box:11434")
	t.Setenv("SLACK_DIGEST_LOOKBACK_HOURS", "12")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Slack.Token != "xoxb-test" {
		t.Errorf("Expected token from env, got %q", cfg.Slack.Token)
	}
	if cfg.Slack.Cookie != "xoxd-cookie" {
		t.Errorf("Expected cookie from env, got %q", cfg.Slack.Cookie)
	}
	if cfg.Slack.UserID != "U123" {
		t.Errorf("Expected user id from env, got %q", cfg.Slack.UserID)
	}
	want := []string{"C111", "C222", "C333"}
	if strings.Join(cfg.Slack.Channels, ",") != strings.Join(want, ",") {
		t.Errorf("Expected channels %v, got %v", want, cfg.Slack.Channels)
	}
	if cfg.Summarizer.Model != "mistral" {
		t.Errorf("Expected model from OLLAMA_MODEL, got %q", cfg.Summarizer.Model)
	}
	if cfg.Summarizer.URL != "http://gpu-box:11434" {
		t.Errorf("Expected URL from OLLAMA_URL, got %q", cfg.Summarizer.URL)
	}
	if cfg.LookbackHours != 12 {
		t.Errorf("Expected lookback from prefixed env, got %d", cfg.LookbackHours)
	}
	if err := cfg.ValidateRun(); err != nil {
		t.Errorf("ValidateRun returned error: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("MY_TOKEN", "xoxc-from-file")

	path := writeConfig(t, `
slack:
  token: "${MY_TOKEN}"
  user_id: U999
  channels: [C1, C2]
summarizer:
  type: openai
  model: gpt-4o-mini
  url: https://api.openai.com/v1
  timeout: 45s
lookback_hours: 48
notify:
  type: none
log:
  format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Slack.Token != "xoxc-from-file" {
		t.Errorf("Expected expanded token, got %q", cfg.Slack.Token)
	}
	if len(cfg.Slack.Channels) != 2 || cfg.Slack.Channels[1] != "C2" {
		t.Errorf("Expected channels [C1 C2], got %v", cfg.Slack.Channels)
	}
	if cfg.Summarizer.Type != "openai" {
		t.Errorf("Expected openai summarizer, got %q", cfg.Summarizer.Type)
	}
	if cfg.Summarizer.Timeout != 45*time.Second {
		t.Errorf("Expected 45s timeout, got %s", cfg.Summarizer.Timeout)
	}
	if cfg.LookbackHours != 48 {
		t.Errorf("Expected lookback 48, got %d", cfg.LookbackHours)
	}
	if cfg.Notify.Type != "none" {
		t.Errorf("Expected notify none, got %q", cfg.Notify.Type)
	}
	if cfg.Notify.App != "Slack" {
		t.Errorf("Expected default notify app to survive partial section, got %q", cfg.Notify.App)
	}
	if cfg.ConfigFile() != path {
		t.Errorf("Expected ConfigFile %q, got %q", path, cfg.ConfigFile())
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
slack:
  token: xoxb-file
  user_id: UFILE
  channels: [CFILE]
`)
	t.Setenv("SLACK_USER_ID", "UENV")
	t.Setenv("SLACK_CHANNELS", "CENV1,CENV2")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Slack.UserID != "UENV" {
		t.Errorf("Expected env user id to win, got %q", cfg.Slack.UserID)
	}
	if len(cfg.Slack.Channels) != 2 || cfg.Slack.Channels[0] != "CENV1" {
		t.Errorf("Expected env channels to win, got %v", cfg.Slack.Channels)
	}
	if cfg.Slack.Token != "xoxb-file" {
		t.Errorf("Expected file token to remain, got %q", cfg.Slack.Token)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "bad yaml",
			content: "slack: [unterminated",
			wantErr: "failed to parse",
		},
		{
			name:    "unknown summarizer",
			content: "summarizer:\n  type: anthropic\n",
			wantErr: "unsupported summarizer type",
		},
		{
			name:    "unknown notifier",
			content: "notify:\n  type: growl\n",
			wantErr: "unsupported notify type",
		},
		{
			name:    "negative lookback",
			content: "lookback_hours: -1\n",
			wantErr: "lookback_hours must be positive",
		},
		{
			name:    "lookback beyond cap",
			content: "lookback_hours: 9223372036\n",
			wantErr: "lookback_hours must be at most",
		},
		{
			name:    "unknown log format",
			content: "log:\n  format: xml\n",
			wantErr: "unsupported log format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadMissingExplicitPath(t *testing.T) {
	clearEnv(t)
	if _, err := Load("/nonexistent/slack-digest.yaml"); err == nil {
		t.Error("Expected error for missing explicit config path")
	}
}

func TestValidateRun(t *testing.T) {
	tests := []struct {
		name    string
		slack   SlackConfig
		wantErr string
	}{
		{
			name:    "missing token",
			slack:   SlackConfig{UserID: "U1", Channels: []string{"C1"}},
			wantErr: "SLACK_BOT_TOKEN",
		},
		{
			name:    "unexpanded token",
			slack:   SlackConfig{Token: "${SLACK_BOT_TOKEN}", UserID: "U1", Channels: []string{"C1"}},
			wantErr: "SLACK_BOT_TOKEN",
		},
		{
			name:    "missing user",
			slack:   SlackConfig{Token: "xoxb-1", Channels: []string{"C1"}},
			wantErr: "SLACK_USER_ID",
		},
		{
			name:    "missing channels",
			slack:   SlackConfig{Token: "xoxb-1", UserID: "U1"},
			wantErr: "SLACK_CHANNELS=C1234567890,C0987654321",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Slack: tt.slack}
			err := cfg.ValidateRun()
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !errors.Is(err, ErrMissingRequired) {
				t.Errorf("Expected ErrMissingRequired, got: %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error mentioning %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateCredentialsOnlyNeedsToken(t *testing.T) {
	cfg := &Config{Slack: SlackConfig{Token: "xoxc-1"}}
	if err := cfg.ValidateCredentials(); err != nil {
		t.Errorf("ValidateCredentials returned error: %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-env")

	path := filepath.Join(t.TempDir(), "nested", "slack-digest.yaml")
	if err := Starter().Save(path); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat returned error: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("Expected 0600 permissions, got %o", perm)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Slack.Token != "xoxb-env" {
		t.Errorf("Expected token resolved from env, got %q", cfg.Slack.Token)
	}
	if len(cfg.Slack.Channels) != 2 {
		t.Errorf("Expected 2 starter channels, got %v", cfg.Slack.Channels)
	}
	if cfg.Summarizer.Timeout != 120*time.Second {
		t.Errorf("Expected timeout to round-trip, got %s", cfg.Summarizer.Timeout)
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("SLACK_DIGEST_TEST_VAR=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("Failed to write .env: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("SLACK_DIGEST_TEST_VAR") })

	if err := LoadDotEnv(envFile, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv returned error: %v", err)
	}
	if got := os.Getenv("SLACK_DIGEST_TEST_VAR"); got != "from-dotenv" {
		t.Errorf("Expected variable from .env, got %q", got)
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30, cfg.Assistant.DefaultMeetingMinutes)
	assert.Equal(t, 9, cfg.Assistant.WorkdayStartHour)
	assert.Equal(t, 17, cfg.Assistant.WorkdayEndHour)
	assert.Equal(t, 5, cfg.Assistant.MaxAlternatives)
	assert.Equal(t, time.Duration(0), cfg.Assistant.ConversationIdleTimeout)
	assert.Equal(t, "https://graph.facebook.com", cfg.WhatsApp.BaseURL)
	assert.Equal(t, "v18.0", cfg.WhatsApp.APIVersion)
	assert.Equal(t, "primary", cfg.Google.CalendarID)
	assert.Equal(t, "contacts.db", cfg.Contacts.DatabasePath)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_WA_TOKEN", "secret-token")
	path := writeConfig(t, "whatsapp:\n  access_token: \"${TEST_WA_TOKEN}\"\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-token", cfg.WhatsApp.AccessToken)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a mapping\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 8080
providers:
  openai:
    enabled: true
    api_key: "key"
    base_url: "https://api.openai.com/v1"
    model: "gpt-4o-mini"
assistant:
  timezone: "Europe/Madrid"
  default_meeting_minutes: 45
  conversation_idle_timeout: 30m
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.True(t, cfg.Providers["openai"].Enabled)
	assert.Equal(t, 30*time.Second, cfg.Providers["openai"].Timeout) // default
	assert.Equal(t, 45, cfg.Assistant.DefaultMeetingMinutes)
	assert.Equal(t, 30*time.Minute, cfg.Assistant.ConversationIdleTimeout)
	assert.Equal(t, "Europe/Madrid", cfg.Location().String())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.setDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults are valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = -1 }, "invalid server port"},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"workday inverted", func(c *Config) {
			c.Assistant.WorkdayStartHour = 18
			c.Assistant.WorkdayEndHour = 8
		}, "invalid workday end hour"},
		{"zero meeting length", func(c *Config) { c.Assistant.DefaultMeetingMinutes = -5 }, "invalid default meeting length"},
		{"bad timezone", func(c *Config) { c.Assistant.Timezone = "Mars/Olympus" }, "invalid timezone"},
		{"enabled provider without url", func(c *Config) {
			c.Providers = map[string]ProviderConfig{"openai": {Enabled: true}}
		}, "no base_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLocationFallsBackToLocal(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, time.Local, cfg.Location())
}

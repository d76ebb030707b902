package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server    ServerConfig              `yaml:"server"`
	Providers map[string]ProviderConfig `yaml:"providers"`
	Assistant AssistantConfig           `yaml:"assistant"`
	Google    GoogleConfig              `yaml:"google"`
	WhatsApp  WhatsAppConfig            `yaml:"whatsapp"`
	Contacts  ContactsConfig            `yaml:"contacts"`
	Logging   LoggingConfig             `yaml:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// ProviderConfig contains language provider settings.
type ProviderConfig struct {
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url"`
	Model      string        `yaml:"model"`
	Enabled    bool          `yaml:"enabled"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// AssistantConfig contains conversation engine settings.
type AssistantConfig struct {
	// Timezone is the IANA name used to resolve relative dates. Empty
	// means the process-local zone.
	Timezone string `yaml:"timezone"`

	// DefaultMeetingMinutes is the meeting length used when the user
	// never states one.
	DefaultMeetingMinutes int `yaml:"default_meeting_minutes"`

	// WorkdayStartHour / WorkdayEndHour bound the free-slot
	// availability listing.
	WorkdayStartHour int `yaml:"workday_start_hour"`
	WorkdayEndHour   int `yaml:"workday_end_hour"`

	// MaxAlternatives caps how many alternative slots are offered after
	// a conflict.
	MaxAlternatives int `yaml:"max_alternatives"`

	// ConversationIdleTimeout expires a multi-turn conversation that
	// saw no activity for this long. Zero disables expiry.
	ConversationIdleTimeout time.Duration `yaml:"conversation_idle_timeout"`
}

// GoogleConfig contains Google Workspace API settings.
type GoogleConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	TokenFile       string `yaml:"token_file"`
	CalendarID      string `yaml:"calendar_id"`
	SenderAddress   string `yaml:"sender_address"`
}

// WhatsAppConfig contains WhatsApp Business API settings.
type WhatsAppConfig struct {
	AccessToken   string `yaml:"access_token"`
	PhoneNumberID string `yaml:"phone_number_id"`
	VerifyToken   string `yaml:"verify_token"`
	BaseURL       string `yaml:"base_url"`
	APIVersion    string `yaml:"api_version"`
}

// ContactsConfig contains local contact cache settings.
type ContactsConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.setDefaults()

	return &cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Assistant.WorkdayStartHour < 0 || c.Assistant.WorkdayStartHour > 23 {
		return fmt.Errorf("invalid workday start hour: %d", c.Assistant.WorkdayStartHour)
	}
	if c.Assistant.WorkdayEndHour <= c.Assistant.WorkdayStartHour || c.Assistant.WorkdayEndHour > 24 {
		return fmt.Errorf("invalid workday end hour: %d", c.Assistant.WorkdayEndHour)
	}
	if c.Assistant.DefaultMeetingMinutes <= 0 {
		return fmt.Errorf("invalid default meeting length: %d minutes", c.Assistant.DefaultMeetingMinutes)
	}

	if c.Assistant.Timezone != "" {
		if _, err := time.LoadLocation(c.Assistant.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", c.Assistant.Timezone, err)
		}
	}

	for name, provider := range c.Providers {
		if provider.Enabled && provider.BaseURL == "" {
			return fmt.Errorf("provider %s is enabled but has no base_url", name)
		}
	}

	return nil
}

// Location resolves the configured timezone.
func (c *Config) Location() *time.Location {
	if c.Assistant.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Assistant.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// setDefaults sets default values for optional fields.
func (c *Config) setDefaults() {
	// Server defaults
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8001
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}

	// Provider defaults
	for name, provider := range c.Providers {
		if provider.Timeout == 0 {
			provider.Timeout = 30 * time.Second
		}
		if provider.MaxRetries == 0 {
			provider.MaxRetries = 3
		}
		c.Providers[name] = provider
	}

	// Assistant defaults
	if c.Assistant.DefaultMeetingMinutes == 0 {
		c.Assistant.DefaultMeetingMinutes = 30
	}
	if c.Assistant.WorkdayStartHour == 0 {
		c.Assistant.WorkdayStartHour = 9
	}
	if c.Assistant.WorkdayEndHour == 0 {
		c.Assistant.WorkdayEndHour = 17
	}
	if c.Assistant.MaxAlternatives == 0 {
		c.Assistant.MaxAlternatives = 5
	}

	// WhatsApp defaults
	if c.WhatsApp.BaseURL == "" {
		c.WhatsApp.BaseURL = "https://graph.facebook.com"
	}
	if c.WhatsApp.APIVersion == "" {
		c.WhatsApp.APIVersion = "v18.0"
	}

	// Google defaults
	if c.Google.CalendarID == "" {
		c.Google.CalendarID = "primary"
	}

	// Contacts defaults
	if c.Contacts.DatabasePath == "" {
		c.Contacts.DatabasePath = "contacts.db"
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
}

// expandEnvVars replaces ${VAR} and $VAR with environment variable values.
func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		return os.Getenv(key)
	})
}

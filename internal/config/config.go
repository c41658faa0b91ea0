package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Contact       ContactConfig `yaml:"contact"`
	HomeAssistant HAConfig      `yaml:"home_assistant,omitempty"`
	MQTT          MQTTConfig    `yaml:"mqtt,omitempty"`
	DatabasePath  string        `yaml:"database_path,omitempty"` // fallback: data.db
	LogLevel      string        `yaml:"log_level,omitempty"`     // debug, info, warn, error
}

// ContactConfig holds the Contact Energy API settings and credentials
type ContactConfig struct {
	BaseURL        string `yaml:"base_url,omitempty"`
	APIKey         string `yaml:"api_key"`
	APIVersion     string `yaml:"api_version,omitempty"` // "v2" (default) or "legacy"
	Username       string `yaml:"username,omitempty"`
	Password       string `yaml:"password,omitempty"`
	Token          string `yaml:"token,omitempty"`
	AccountID      string `yaml:"account_id,omitempty"`
	ContractID     string `yaml:"contract_id,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"` // fallback: 30
}

// HAConfig holds Home Assistant HTTP API configuration
type HAConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`       // e.g., "http://yourdomain.local:5050"
	Token    string `yaml:"token"`     // Long-lived access token
	EntityID string `yaml:"entity_id"` // e.g., "sensor.contact_energy_usage"
}

// MQTTConfig holds MQTT broker configuration
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"` // host:port
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"` // fallback: contact_energy
}

// Environment variables that override the config file
const (
	EnvUsername   = "CONTACT_USERNAME"
	EnvPassword   = "CONTACT_PASSWORD"
	EnvToken      = "CONTACT_TOKEN"
	EnvAPIKey     = "CONTACT_API_KEY"
	EnvBaseURL    = "CONTACT_BASE_URL"
	EnvAPIVersion = "CONTACT_API_VERSION"
)

// Load reads the config file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty config if file doesn't exist
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return &cfg, nil
}

// Save writes the config to file
func Save(configPath string, cfg *Config) error {
	// Ensure directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default config file path (local directory)
func DefaultConfigPath() string {
	return "config.yaml"
}

// LoadDotEnv loads the first .env file found among paths into the process environment.
// It returns the path loaded, or "" if none existed.
func LoadDotEnv(paths ...string) (string, error) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return "", fmt.Errorf("loading %s: %w", p, err)
		}
		return p, nil
	}
	return "", nil
}

// ApplyEnv overrides config values with any CONTACT_* variables that are set
func (c *Config) ApplyEnv() {
	override := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	override(&c.Contact.Username, EnvUsername)
	override(&c.Contact.Password, EnvPassword)
	override(&c.Contact.Token, EnvToken)
	override(&c.Contact.APIKey, EnvAPIKey)
	override(&c.Contact.BaseURL, EnvBaseURL)
	override(&c.Contact.APIVersion, EnvAPIVersion)
}

// Validate checks that the client can be constructed from this config
func (c *Config) Validate() error {
	var errs []error
	if c.Contact.APIKey == "" {
		errs = append(errs, fmt.Errorf("contact.api_key is required (or set %s)", EnvAPIKey))
	}
	if c.Contact.Token == "" && !c.HasCredentials() {
		errs = append(errs, fmt.Errorf("either contact.token or contact.username and contact.password are required"))
	}
	switch strings.ToLower(c.GetAPIVersion()) {
	case "v2", "legacy":
	default:
		errs = append(errs, fmt.Errorf("unknown contact.api_version: %s (available: v2, legacy)", c.Contact.APIVersion))
	}
	return errors.Join(errs...)
}

// HasCredentials reports whether both username and password are configured
func (c *Config) HasCredentials() bool {
	return c.Contact.Username != "" && c.Contact.Password != ""
}

// GetBaseURL returns the configured API base URL, or "" to use the client default
func (c *Config) GetBaseURL() string {
	return strings.TrimRight(c.Contact.BaseURL, "/")
}

// GetAPIVersion returns the API version with a default of v2
func (c *Config) GetAPIVersion() string {
	if c.Contact.APIVersion == "" {
		return "v2"
	}
	return c.Contact.APIVersion
}

// GetTimeout returns the HTTP timeout with a default of 30 seconds
func (c *Config) GetTimeout() time.Duration {
	if c.Contact.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Contact.TimeoutSeconds) * time.Second
}

// GetDatabasePath returns the database path with a default of data.db
func (c *Config) GetDatabasePath() string {
	if c.DatabasePath == "" {
		return "data.db"
	}
	return c.DatabasePath
}

// GetTopicPrefix returns the MQTT topic prefix with a default of contact_energy
func (m MQTTConfig) GetTopicPrefix() string {
	if m.TopicPrefix == "" {
		return "contact_energy"
	}
	return strings.TrimRight(m.TopicPrefix, "/")
}

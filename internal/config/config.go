package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jgoulah/bidgely/pkg/models"
)

// Config holds the application configuration
type Config struct {
	Utility     string `yaml:"utility"`               // registry id or display name, e.g. "HydroOttawa"
	Username    string `yaml:"username"`              // utility portal login
	Password    string `yaml:"password"`              // may reference ${ENV_VAR}
	AccountID   string `yaml:"account_id"`            // utility account number
	BaseURL     string `yaml:"base_url,omitempty"`    // usage service override
	Measurement string `yaml:"measurement,omitempty"` // ELECTRIC (default) or GAS
	Home        int    `yaml:"home,omitempty"`        // forecast home index (fallback: 1)

	Timeout              Duration `yaml:"timeout,omitempty"`                // per request (fallback: 30s)
	MaxConcurrency       int      `yaml:"max_concurrency,omitempty"`        // 0 = unbounded
	IncludePartialWindow bool     `yaml:"include_partial_window,omitempty"` // keep trailing partial window
	DaysToFetch          int      `yaml:"days_to_fetch,omitempty"`          // fallback: 90
	Schedule             string   `yaml:"schedule,omitempty"`               // cron with seconds (fallback: hourly)
	MetricsAddr          string   `yaml:"metrics_addr,omitempty"`           // e.g. ":9184"; empty disables

	MQTT MQTTConfig `yaml:"mqtt,omitempty"`
}

// MQTTConfig holds MQTT broker configuration
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"` // e.g., "tcp://localhost:1883"
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"` // fallback: "bidgely"
	ClientID    string `yaml:"client_id,omitempty"`    // fallback: "bidgely-<uuid>"
}

// Duration is a time.Duration written as "30s" in YAML
type Duration time.Duration

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

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

// Validate checks that the fields needed to log in are present
func (c *Config) Validate() error {
	if c.Utility == "" {
		return fmt.Errorf("utility is required")
	}
	if c.Username == "" || c.GetPassword() == "" {
		return fmt.Errorf("username and password are required")
	}
	if _, err := c.GetMeasurement(); err != nil {
		return err
	}
	return nil
}

// GetPassword returns the password with ${VAR} references expanded
func (c *Config) GetPassword() string {
	return os.ExpandEnv(c.Password)
}

// GetMeasurement returns the configured measurement type, ELECTRIC when unset
func (c *Config) GetMeasurement() (models.MeasurementType, error) {
	if c.Measurement == "" {
		return models.Electric, nil
	}
	return models.ParseMeasurementType(c.Measurement)
}

// GetHome returns the forecast home index with a default of 1
func (c *Config) GetHome() int {
	if c.Home <= 0 {
		return 1
	}
	return c.Home
}

// GetTimeout returns the per-request timeout with a default of 30s
func (c *Config) GetTimeout() time.Duration {
	if c.Timeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Timeout)
}

// GetDaysToFetch returns the number of days to fetch with a default of 90 (3 months)
func (c *Config) GetDaysToFetch() int {
	if c.DaysToFetch <= 0 {
		return 90 // Default to 3 months
	}
	return c.DaysToFetch
}

// GetSchedule returns the watch schedule, defaulting to the top of every hour
func (c *Config) GetSchedule() string {
	if c.Schedule == "" {
		return "0 0 * * * *"
	}
	return c.Schedule
}

// GetMQTTPassword returns the broker password with ${VAR} references expanded
func (c *MQTTConfig) GetMQTTPassword() string {
	return os.ExpandEnv(c.Password)
}

// GetTopicPrefix returns the topic prefix with a default of "bidgely"
func (c *MQTTConfig) GetTopicPrefix() string {
	if c.TopicPrefix == "" {
		return "bidgely"
	}
	return c.TopicPrefix
}

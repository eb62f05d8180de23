package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the voice manager.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Platform   PlatformConfig   `yaml:"platform"`
	Assistants AssistantsConfig `yaml:"assistants"`
	Bridge     BridgeConfig     `yaml:"bridge"`
	API        APIConfig        `yaml:"api"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// DatabaseConfig contains SQLite database settings for the rule store.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// PlatformConfig describes the automation platform the manager generates
// configuration for: where its config root lives on disk and how to reach
// its REST API for the entity catalog and administrative actions.
type PlatformConfig struct {
	// ConfigRoot is the automation platform's configuration directory.
	// All generated artifacts are written beneath this root; writes outside
	// it are rejected by the safety validator.
	ConfigRoot string `yaml:"config_root"`

	// OutputDir is the directory (relative to ConfigRoot) that generated
	// artifacts may be written to.
	OutputDir string `yaml:"output_dir"`

	// BaseURL is the platform's REST API base URL (e.g. http://localhost:8123).
	BaseURL string `yaml:"base_url"`

	// Token is a long-lived access token for the platform API.
	Token string `yaml:"token"`

	// Timeout bounds each platform API call (seconds).
	Timeout int `yaml:"timeout"`
}

// AssistantsConfig contains per-assistant output settings.
type AssistantsConfig struct {
	// GoogleOutput is the Google Assistant YAML path relative to ConfigRoot.
	GoogleOutput string `yaml:"google_output"`

	// AlexaOutput is the Alexa YAML path relative to ConfigRoot.
	AlexaOutput string `yaml:"alexa_output"`
}

// BridgeConfig contains MQTT settings for live HomeKit bridge reconciliation.
type BridgeConfig struct {
	Enabled bool               `yaml:"enabled"`
	Broker  BridgeBrokerConfig `yaml:"broker"`
	Auth    BridgeAuthConfig   `yaml:"auth"`
	QoS     int                `yaml:"qos"`
	// TopicPrefix is the base of the MQTT topic hierarchy
	// (status, desired-state and bridge-status topics hang off it).
	TopicPrefix string `yaml:"topic_prefix"`
}

// BridgeBrokerConfig contains MQTT broker connection details.
type BridgeBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// BridgeAuthConfig contains MQTT authentication credentials.
type BridgeAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	AdminToken string           `yaml:"admin_token"`
	Timeouts   APITimeoutConfig `yaml:"timeouts"`
	PanelDir   string           `yaml:"panel_dir"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// InfluxDBConfig contains optional commit telemetry settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: VOICEMAN_SECTION_KEY
// For example: VOICEMAN_DATABASE_PATH, VOICEMAN_API_PORT
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "data/voiceman.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Platform: PlatformConfig{
			ConfigRoot: "/config",
			OutputDir:  "packages",
			BaseURL:    "http://localhost:8123",
			Timeout:    10,
		},
		Assistants: AssistantsConfig{
			GoogleOutput: "packages/generated_google_assistant.yaml",
			AlexaOutput:  "packages/generated_alexa.yaml",
		},
		Bridge: BridgeConfig{
			Enabled: false,
			Broker: BridgeBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "voiceman",
			},
			QoS:         1,
			TopicPrefix: "voiceman",
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8095,
			Timeouts: APITimeoutConfig{
				Read:  15,
				Write: 15,
				Idle:  60,
			},
		},
		InfluxDB: InfluxDBConfig{
			Enabled:       false,
			BatchSize:     20,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies VOICEMAN_* environment variables over file values.
// Only the settings that commonly differ between deployments are overridable.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VOICEMAN_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("VOICEMAN_PLATFORM_CONFIG_ROOT"); v != "" {
		cfg.Platform.ConfigRoot = v
	}
	if v := os.Getenv("VOICEMAN_PLATFORM_BASE_URL"); v != "" {
		cfg.Platform.BaseURL = v
	}
	if v := os.Getenv("VOICEMAN_PLATFORM_TOKEN"); v != "" {
		cfg.Platform.Token = v
	}
	if v := os.Getenv("VOICEMAN_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("VOICEMAN_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
	if v := os.Getenv("VOICEMAN_API_ADMIN_TOKEN"); v != "" {
		cfg.API.AdminToken = v
	}
	if v := os.Getenv("VOICEMAN_BRIDGE_BROKER_HOST"); v != "" {
		cfg.Bridge.Broker.Host = v
	}
	if v := os.Getenv("VOICEMAN_BRIDGE_AUTH_USERNAME"); v != "" {
		cfg.Bridge.Auth.Username = v
	}
	if v := os.Getenv("VOICEMAN_BRIDGE_AUTH_PASSWORD"); v != "" {
		cfg.Bridge.Auth.Password = v
	}
	if v := os.Getenv("VOICEMAN_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
	if v := os.Getenv("VOICEMAN_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for missing or inconsistent values.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Database.BusyTimeout <= 0 {
		c.Database.BusyTimeout = 5
	}

	if c.Platform.ConfigRoot == "" {
		return fmt.Errorf("platform.config_root is required")
	}
	if c.Platform.OutputDir == "" {
		c.Platform.OutputDir = "packages"
	}
	if strings.HasPrefix(c.Platform.OutputDir, "/") {
		return fmt.Errorf("platform.output_dir must be relative to config_root")
	}
	if c.Platform.Timeout <= 0 {
		c.Platform.Timeout = 10
	}

	if c.Assistants.GoogleOutput == "" {
		c.Assistants.GoogleOutput = "packages/generated_google_assistant.yaml"
	}
	if c.Assistants.AlexaOutput == "" {
		c.Assistants.AlexaOutput = "packages/generated_alexa.yaml"
	}
	outputPrefix := c.Platform.OutputDir + "/"
	if !strings.HasPrefix(c.Assistants.GoogleOutput, outputPrefix) {
		return fmt.Errorf("assistants.google_output must be under %s", c.Platform.OutputDir)
	}
	if !strings.HasPrefix(c.Assistants.AlexaOutput, outputPrefix) {
		return fmt.Errorf("assistants.alexa_output must be under %s", c.Platform.OutputDir)
	}

	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port must be between 1 and 65535")
	}

	if c.Bridge.Enabled {
		if c.Bridge.Broker.Host == "" {
			return fmt.Errorf("bridge.broker.host is required when bridge is enabled")
		}
		if c.Bridge.QoS < 0 || c.Bridge.QoS > 2 {
			return fmt.Errorf("bridge.qos must be 0, 1, or 2")
		}
		if c.Bridge.TopicPrefix == "" {
			c.Bridge.TopicPrefix = "voiceman"
		}
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			return fmt.Errorf("influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			return fmt.Errorf("influxdb.bucket is required when influxdb is enabled")
		}
	}

	return nil
}

// PlatformTimeout returns the platform API timeout as a duration.
func (c *Config) PlatformTimeout() time.Duration {
	return time.Duration(c.Platform.Timeout) * time.Second
}

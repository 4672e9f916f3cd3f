package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Pulseline.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	GPIO      GPIOConfig      `yaml:"gpio"`
	Logging   LoggingConfig   `yaml:"logging"`
	Lines     []LineConfig    `yaml:"lines"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// GPIOConfig contains the output backend and clock settings.
type GPIOConfig struct {
	// Backend selects the output capability implementation:
	// "gpiocdev" drives real lines through the Linux character device,
	// "sim" records levels in memory (development, tests, CI).
	Backend string `yaml:"backend"`

	// Consumer is the consumer label attached to requested lines.
	Consumer string `yaml:"consumer"`

	// TicksPerSecond is the pulse clock resolution: the highest
	// frequency a line can be driven at. Requested frequencies above
	// it are clamped.
	TicksPerSecond int `yaml:"ticks_per_second"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// LineConfig declares one statically bound line.
type LineConfig struct {
	// Name is the line's identifying name in the control namespace.
	Name string `yaml:"name"`

	// Chip is the GPIO character device path; empty scans all chips.
	Chip string `yaml:"chip"`

	// Line is the kernel line name (e.g. "GPIO18"); takes precedence
	// over Offset.
	Line string `yaml:"line"`

	// Offset is the line offset on Chip, used when Line is empty.
	Offset int `yaml:"offset"`

	// ActiveLow inverts the electrical polarity of the line.
	ActiveLow bool `yaml:"active_low"`
}

// Load reads, overrides, and validates configuration from a YAML file.
//
// Precedence (lowest to highest): built-in defaults, YAML file,
// environment variables (PULSELINE_SECTION_KEY).
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

// defaultTicksPerSecond is millisecond tick resolution.
const defaultTicksPerSecond = 1000

func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "./data/pulseline.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "pulseline-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		GPIO: GPIOConfig{
			Backend:        "gpiocdev",
			Consumer:       "pulseline",
			TicksPerSecond: defaultTicksPerSecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: PULSELINE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PULSELINE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("PULSELINE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("PULSELINE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("PULSELINE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("PULSELINE_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	if v := os.Getenv("PULSELINE_GPIO_BACKEND"); v != "" {
		cfg.GPIO.Backend = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	switch c.GPIO.Backend {
	case "gpiocdev", "sim":
	default:
		errs = append(errs, fmt.Sprintf("gpio.backend %q must be gpiocdev or sim", c.GPIO.Backend))
	}
	if c.GPIO.TicksPerSecond < 1 {
		errs = append(errs, "gpio.ticks_per_second must be at least 1")
	}

	seen := make(map[string]bool, len(c.Lines))
	for i, line := range c.Lines {
		if line.Name == "" {
			errs = append(errs, fmt.Sprintf("lines[%d].name is required", i))
			continue
		}
		if seen[line.Name] {
			errs = append(errs, fmt.Sprintf("lines[%d].name %q is duplicated", i, line.Name))
		}
		seen[line.Name] = true
		if line.Line == "" && line.Chip == "" {
			errs = append(errs, fmt.Sprintf("lines[%d] (%s) needs a line name or an explicit chip", i, line.Name))
		}
		if line.Offset < 0 {
			errs = append(errs, fmt.Sprintf("lines[%d].offset must be non-negative", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ipv4Pattern matches four dot-separated octets. RE2 has no lookahead, so
// the leading-zero and trailing-dot rules live in validBridgeIP.
var ipv4Pattern = regexp.MustCompile(`^((1?\d?\d|25[0-5]|2[0-4]\d)(\.|$)){4}$`)

// validBridgeIP reports whether ip is an acceptable Hue bridge address.
// The address must not start with 0 or end with a dot.
func validBridgeIP(ip string) bool {
	if strings.HasPrefix(ip, "0") || strings.HasSuffix(ip, ".") {
		return false
	}
	return ipv4Pattern.MatchString(ip)
}

// Config is the root configuration structure for the Gray Logic Hue bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Plugin   PluginConfig   `yaml:"plugin"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	Hue      HueConfig      `yaml:"hue"`
	Polling  PollingConfig  `yaml:"polling"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Database DatabaseConfig `yaml:"database"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
	API      APIConfig      `yaml:"api"`
	Devices  []DeviceConfig `yaml:"devices"`
}

// PluginConfig identifies this adapter instance in the device registry.
type PluginConfig struct {
	// ID scopes registry devices to this adapter (e.g., "hue-living").
	ID string `yaml:"id"`
}

// BridgeConfig contains bridge identity and health reporting settings.
type BridgeConfig struct {
	ID             string `yaml:"id"`
	HealthInterval int    `yaml:"health_interval"` // seconds
}

// HueConfig contains Philips Hue bridge connection settings.
type HueConfig struct {
	// IP is the Hue bridge IPv4 address.
	IP string `yaml:"ip"`

	// Username is the Hue application key issued by the bridge.
	// WARNING: Never log this value.
	Username string `yaml:"username"`

	// CommandTimeout bounds a single hardware call.
	// Default: 5s
	CommandTimeout time.Duration `yaml:"command_timeout"`

	// InsecureSkipVerify disables certificate verification. Hue bridges
	// present a self-signed certificate, so this defaults to true.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`

	Retry HueRetryConfig `yaml:"retry"`
}

// HueRetryConfig controls transport-level retries of hardware calls.
type HueRetryConfig struct {
	// MaxAttempts is the number of retries after the first attempt. 0 disables retry.
	MaxAttempts int           `yaml:"max_attempts"`
	WaitMin     time.Duration `yaml:"wait_min"`
	WaitMax     time.Duration `yaml:"wait_max"`
}

// PollingConfig controls the status poller.
type PollingConfig struct {
	// StartupDelay is how long to wait after start before the first refresh.
	StartupDelay time.Duration `yaml:"startup_delay"`

	// Interval is the periodic refresh interval. 0 disables periodic polling.
	Interval time.Duration `yaml:"interval"`

	// MaxConcurrency bounds in-flight status queries per refresh.
	MaxConcurrency int `yaml:"max_concurrency"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
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

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings for state history.
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
	Output string `yaml:"output"` // stdout, stderr, journal
}

// APIConfig contains the admin HTTP server settings.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// DeviceConfig seeds a device into the registry under this plugin.
type DeviceConfig struct {
	// DeviceID is the tagged identifier, e.g. "L3" or "Gb1c2…".
	DeviceID string `yaml:"device_id"`
	Name     string `yaml:"name"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_HUE_SECTION_KEY
// For example: GRAYLOGIC_HUE_IP, GRAYLOGIC_HUE_USERNAME
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
		Plugin: PluginConfig{
			ID: "hue",
		},
		Bridge: BridgeConfig{
			ID:             "hue-bridge-01",
			HealthInterval: 30,
		},
		Hue: HueConfig{
			CommandTimeout:     5 * time.Second,
			InsecureSkipVerify: true,
			Retry: HueRetryConfig{
				MaxAttempts: 0,
				WaitMin:     200 * time.Millisecond,
				WaitMax:     2 * time.Second,
			},
		},
		Polling: PollingConfig{
			StartupDelay:   100 * time.Millisecond,
			Interval:       0,
			MaxConcurrency: 8,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-hue",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/hue.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8095,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GRAYLOGIC_HUE_PLUGIN_ID"); v != "" {
		cfg.Plugin.ID = v
	}

	// Hue bridge
	if v := os.Getenv("GRAYLOGIC_HUE_IP"); v != "" {
		cfg.Hue.IP = v
	}
	if v := os.Getenv("GRAYLOGIC_HUE_USERNAME"); v != "" {
		cfg.Hue.Username = v
	}

	// Polling
	if v := os.Getenv("GRAYLOGIC_HUE_POLLING_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Polling.Interval = d
		}
	}

	// MQTT
	if v := os.Getenv("GRAYLOGIC_HUE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_HUE_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("GRAYLOGIC_HUE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_HUE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Database
	if v := os.Getenv("GRAYLOGIC_HUE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// InfluxDB
	if v := os.Getenv("GRAYLOGIC_HUE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
// All problems are reported together rather than one at a time.
func (c *Config) Validate() error {
	var errs []string

	if c.Plugin.ID == "" {
		errs = append(errs, "plugin.id is required")
	}

	// Hue bridge
	if !validBridgeIP(c.Hue.IP) {
		errs = append(errs, fmt.Sprintf("hue.ip %q is not a valid IPv4 address", c.Hue.IP))
	}
	if c.Hue.Username == "" {
		errs = append(errs, "hue.username is required (set GRAYLOGIC_HUE_USERNAME environment variable)")
	}
	if c.Hue.CommandTimeout <= 0 {
		errs = append(errs, "hue.command_timeout must be positive")
	}
	if c.Hue.Retry.MaxAttempts < 0 {
		errs = append(errs, "hue.retry.max_attempts cannot be negative")
	}

	// Polling
	if c.Polling.StartupDelay < 0 {
		errs = append(errs, "polling.startup_delay cannot be negative")
	}
	if c.Polling.Interval < 0 {
		errs = append(errs, "polling.interval cannot be negative")
	}
	if c.Polling.MaxConcurrency < 1 {
		errs = append(errs, "polling.max_concurrency must be at least 1")
	}

	// MQTT
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// Database
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// API
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Devices
	seen := make(map[string]bool, len(c.Devices))
	for i, d := range c.Devices {
		if d.DeviceID == "" {
			errs = append(errs, fmt.Sprintf("devices[%d].device_id is required", i))
			continue
		}
		if seen[d.DeviceID] {
			errs = append(errs, fmt.Sprintf("devices[%d].device_id %q is duplicated", i, d.DeviceID))
		}
		seen[d.DeviceID] = true
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetHealthInterval returns the health reporting interval as a Duration.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.Bridge.HealthInterval) * time.Second
}

// APIAddress returns the host:port the admin API listens on.
func (c *Config) APIAddress() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Electric Monitor.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site       SiteConfig       `yaml:"site"`
	Database   DatabaseConfig   `yaml:"database"`
	Sensor     SensorConfig     `yaml:"sensor"`
	Meter      MeterConfig      `yaml:"meter"`
	Aggregator AggregatorConfig `yaml:"aggregator"`
	Tariffs    TariffsConfig    `yaml:"tariffs"`
	Query      QueryConfig      `yaml:"query"`
	API        APIConfig        `yaml:"api"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// SiteConfig contains site-specific information.
//
// Timezone is the IANA name of the local timezone used for all query-time
// groupings (minute/hour/day series, off-peak window). Storage is always UTC.
type SiteConfig struct {
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string      `yaml:"path"`
	WALMode     bool        `yaml:"wal_mode"`
	BusyTimeout int         `yaml:"busy_timeout"`
	Retry       RetryConfig `yaml:"retry"`
}

// RetryConfig contains the bounded-retry policy for transient write contention.
//
// The delay between attempts is fixed, not exponential. Pulse events are
// sparse and writers are few; shedding excess contention after a bounded
// number of attempts is preferred over queueing.
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	DelayMs     int `yaml:"delay_ms"`
}

// Delay returns the fixed inter-attempt delay as a duration.
func (r RetryConfig) Delay() time.Duration {
	return time.Duration(r.DelayMs) * time.Millisecond
}

// SensorConfig contains the MQTT pulse source settings.
type SensorConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	Topic     string              `yaml:"topic"`
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

// MeterConfig contains metering hardware calibration.
type MeterConfig struct {
	// PulsesPerKWh is the fixed pulses-per-kWh conversion factor of the meter.
	PulsesPerKWh float64 `yaml:"pulses_per_kwh"`
}

// AggregatorConfig contains the hourly aggregation schedule.
type AggregatorConfig struct {
	// Minutes are the intra-hour minutes at which recompute runs.
	// Each hour is recomputed several times before it is considered closed,
	// so pulses arriving near an hour boundary with slight clock skew are
	// still counted.
	Minutes []int `yaml:"minutes"`
}

// TariffsConfig contains the tariff table location.
type TariffsConfig struct {
	Path string `yaml:"path"`
}

// QueryConfig contains the lookback windows used by the query service.
type QueryConfig struct {
	HourlyLookbackDays int `yaml:"hourly_lookback_days"`
	CostLookbackDays   int `yaml:"cost_lookback_days"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// InfluxDBConfig contains the optional hourly-bucket mirror settings.
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
// Environment variables follow the pattern: ELECTRICMONITOR_SECTION_KEY
// For example: ELECTRICMONITOR_DATABASE_PATH, ELECTRICMONITOR_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			Name:     "Electric Monitor",
			Timezone: "Europe/London",
		},
		Database: DatabaseConfig{
			Path:        "./data/energy.db",
			WALMode:     true,
			BusyTimeout: 5,
			Retry: RetryConfig{
				MaxAttempts: 3,
				DelayMs:     100,
			},
		},
		Sensor: SensorConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "electricmonitor",
			},
			Topic: "electricmonitor/sensor/pulse",
			QoS:   1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Meter: MeterConfig{
			PulsesPerKWh: 3200,
		},
		Aggregator: AggregatorConfig{
			Minutes: []int{15, 30, 45, 59},
		},
		Tariffs: TariffsConfig{
			Path: "configs/tariffs.yaml",
		},
		Query: QueryConfig{
			HourlyLookbackDays: 7,
			CostLookbackDays:   14,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 5001,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: ELECTRICMONITOR_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("ELECTRICMONITOR_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Sensor MQTT
	if v := os.Getenv("ELECTRICMONITOR_MQTT_HOST"); v != "" {
		cfg.Sensor.Broker.Host = v
	}
	if v := os.Getenv("ELECTRICMONITOR_MQTT_USERNAME"); v != "" {
		cfg.Sensor.Auth.Username = v
	}
	if v := os.Getenv("ELECTRICMONITOR_MQTT_PASSWORD"); v != "" {
		cfg.Sensor.Auth.Password = v
	}

	// Tariffs
	if v := os.Getenv("ELECTRICMONITOR_TARIFFS_PATH"); v != "" {
		cfg.Tariffs.Path = v
	}

	// API
	if v := os.Getenv("ELECTRICMONITOR_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("ELECTRICMONITOR_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Site validation - timezone must resolve, it drives all local groupings
	if c.Site.Timezone == "" {
		errs = append(errs, "site.timezone is required")
	} else if _, err := time.LoadLocation(c.Site.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("site.timezone %q is not a valid IANA timezone", c.Site.Timezone))
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Database.Retry.MaxAttempts < 1 {
		errs = append(errs, "database.retry.max_attempts must be at least 1")
	}
	if c.Database.Retry.DelayMs < 0 {
		errs = append(errs, "database.retry.delay_ms must not be negative")
	}

	// Sensor validation
	if c.Sensor.Topic == "" {
		errs = append(errs, "sensor.topic is required")
	}
	if c.Sensor.QoS < 0 || c.Sensor.QoS > 2 {
		errs = append(errs, "sensor.qos must be 0, 1, or 2")
	}

	// Meter validation
	if c.Meter.PulsesPerKWh <= 0 {
		errs = append(errs, "meter.pulses_per_kwh must be positive")
	}

	// Aggregator validation
	if len(c.Aggregator.Minutes) == 0 {
		errs = append(errs, "aggregator.minutes must list at least one minute")
	}
	seen := make(map[int]bool)
	for _, m := range c.Aggregator.Minutes {
		if m < 0 || m > 59 {
			errs = append(errs, fmt.Sprintf("aggregator.minutes entry %d is outside 0-59", m))
		}
		if seen[m] {
			errs = append(errs, fmt.Sprintf("aggregator.minutes entry %d is duplicated", m))
		}
		seen[m] = true
	}

	// Tariffs validation
	if c.Tariffs.Path == "" {
		errs = append(errs, "tariffs.path is required")
	}

	// Query validation
	if c.Query.HourlyLookbackDays < 1 {
		errs = append(errs, "query.hourly_lookback_days must be at least 1")
	}
	if c.Query.CostLookbackDays < 1 {
		errs = append(errs, "query.cost_lookback_days must be at least 1")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Location resolves the configured site timezone.
// Validate guarantees this succeeds for a validated Config.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Site.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading site timezone: %w", err)
	}
	return loc, nil
}

// ScheduleMinutes returns the aggregation minutes sorted ascending.
func (c *Config) ScheduleMinutes() []int {
	minutes := make([]int, len(c.Aggregator.Minutes))
	copy(minutes, c.Aggregator.Minutes)
	sort.Ints(minutes)
	return minutes
}

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
site:
  name: "Test House"
  timezone: "Europe/London"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
sensor:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  topic: "test/pulse"
  qos: 1
meter:
  pulses_per_kwh: 3200
api:
  host: "0.0.0.0"
  port: 5001
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.Name != "Test House" {
		t.Errorf("Site.Name = %q, want %q", cfg.Site.Name, "Test House")
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}

	if cfg.Sensor.Topic != "test/pulse" {
		t.Errorf("Sensor.Topic = %q, want %q", cfg.Sensor.Topic, "test/pulse")
	}
}

func TestLoad_Defaults(t *testing.T) {
	// Minimal file - everything else comes from defaults
	cfg, err := Load(writeConfig(t, `site: {name: "Minimal"}`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Meter.PulsesPerKWh != 3200 {
		t.Errorf("Meter.PulsesPerKWh = %v, want 3200", cfg.Meter.PulsesPerKWh)
	}
	if cfg.Database.Retry.MaxAttempts != 3 {
		t.Errorf("Database.Retry.MaxAttempts = %d, want 3", cfg.Database.Retry.MaxAttempts)
	}
	if cfg.Database.Retry.DelayMs != 100 {
		t.Errorf("Database.Retry.DelayMs = %d, want 100", cfg.Database.Retry.DelayMs)
	}
	if got := cfg.ScheduleMinutes(); len(got) != 4 || got[0] != 15 || got[3] != 59 {
		t.Errorf("ScheduleMinutes() = %v, want [15 30 45 59]", got)
	}
	if cfg.Query.HourlyLookbackDays != 7 {
		t.Errorf("Query.HourlyLookbackDays = %d, want 7", cfg.Query.HourlyLookbackDays)
	}
	if cfg.Query.CostLookbackDays != 14 {
		t.Errorf("Query.CostLookbackDays = %d, want 14", cfg.Query.CostLookbackDays)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ELECTRICMONITOR_DATABASE_PATH", "/tmp/override.db")
	t.Setenv("ELECTRICMONITOR_MQTT_HOST", "broker.example")

	cfg, err := Load(writeConfig(t, `database: {path: "/tmp/file.db"}`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/override.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
	if cfg.Sensor.Broker.Host != "broker.example" {
		t.Errorf("Sensor.Broker.Host = %q, want env override", cfg.Sensor.Broker.Host)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(_ *Config) {}, false},
		{"empty timezone", func(c *Config) { c.Site.Timezone = "" }, true},
		{"bogus timezone", func(c *Config) { c.Site.Timezone = "Mars/Olympus" }, true},
		{"empty database path", func(c *Config) { c.Database.Path = "" }, true},
		{"zero retry attempts", func(c *Config) { c.Database.Retry.MaxAttempts = 0 }, true},
		{"negative retry delay", func(c *Config) { c.Database.Retry.DelayMs = -1 }, true},
		{"empty sensor topic", func(c *Config) { c.Sensor.Topic = "" }, true},
		{"invalid qos", func(c *Config) { c.Sensor.QoS = 3 }, true},
		{"zero calibration", func(c *Config) { c.Meter.PulsesPerKWh = 0 }, true},
		{"no schedule minutes", func(c *Config) { c.Aggregator.Minutes = nil }, true},
		{"minute out of range", func(c *Config) { c.Aggregator.Minutes = []int{60} }, true},
		{"duplicate minute", func(c *Config) { c.Aggregator.Minutes = []int{15, 15} }, true},
		{"zero lookback", func(c *Config) { c.Query.CostLookbackDays = 0 }, true},
		{"invalid api port", func(c *Config) { c.API.Port = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLocation(t *testing.T) {
	cfg := defaultConfig()
	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("Location() error = %v", err)
	}
	if loc.String() != "Europe/London" {
		t.Errorf("Location() = %v, want Europe/London", loc)
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() Config {
	return Config{
		Server:   ServerConfig{Port: 8080, ReadTimeout: 10, WriteTimeout: 10, RequestTimeout: 15},
		Storage:  StorageConfig{Driver: DriverMemory},
		Database: DatabaseConfig{Host: "localhost", Port: 5432, User: "geomeasure", DBName: "geomeasure"},
		Capture:  CaptureConfig{ScreenIdleTimeout: 1800, MaxScreens: 10000},
		Log:      LogConfig{Level: "info", Format: "json"},
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("geomeasure-api")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Storage.Driver != DriverMemory {
		t.Errorf("expected memory driver, got %q", cfg.Storage.Driver)
	}
	if cfg.Telemetry.ServiceName != "geomeasure-api" || cfg.NATS.Durable != "geomeasure-api" {
		t.Errorf("service name not applied: %+v / %+v", cfg.Telemetry, cfg.NATS)
	}
	if cfg.MQTT.Topic != "field/+/location" {
		t.Errorf("unexpected mqtt topic %q", cfg.MQTT.Topic)
	}
	if !cfg.Capture.PublishViews || cfg.Capture.MaxAccuracyMeters != 0 {
		t.Errorf("unexpected capture defaults: %+v", cfg.Capture)
	}
	if cfg.Capture.ScreenIdleTimeout != 1800 || cfg.Capture.MaxScreens != 10000 {
		t.Errorf("unexpected screen limits: %+v", cfg.Capture)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GEOMEASURE_STORAGE_DRIVER", "sqlite")
	t.Setenv("GEOMEASURE_STORAGE_SQLITE_PATH", "/tmp/records.db")
	t.Setenv("GEOMEASURE_CAPTURE_MAX_ACCURACY_METERS", "25.5")
	t.Setenv("GEOMEASURE_CAPTURE_MAX_SCREENS", "50")
	t.Setenv("GEOMEASURE_LOG_FORMAT", "text")

	cfg, err := Load("test")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != DriverSQLite || cfg.Storage.SQLitePath != "/tmp/records.db" {
		t.Errorf("storage not overridden: %+v", cfg.Storage)
	}
	if cfg.Capture.MaxAccuracyMeters != 25.5 {
		t.Errorf("expected 25.5, got %v", cfg.Capture.MaxAccuracyMeters)
	}
	if cfg.Capture.MaxScreens != 50 {
		t.Errorf("expected 50 screens, got %d", cfg.Capture.MaxScreens)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("expected text, got %q", cfg.Log.Format)
	}
}

func TestLoad_ConfigFileAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	yaml := "server:\n  port: 9090\nmqtt:\n  enabled: true\n  topic: farm/+/gps\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("GEOMEASURE_SERVER_PORT=9191\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("GEOMEASURE_SERVER_PORT") })

	cfg, err := Load("test")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9191 {
		t.Errorf("expected .env to override the file, got %d", cfg.Server.Port)
	}
	if !cfg.MQTT.Enabled || cfg.MQTT.Topic != "farm/+/gps" {
		t.Errorf("config file not applied: %+v", cfg.MQTT)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mongo" }, "storage.driver"},
		{"sqlite without path", func(c *Config) { c.Storage = StorageConfig{Driver: DriverSQLite} }, "storage.sqlite_path"},
		{"postgres without host", func(c *Config) {
			c.Storage.Driver = DriverPostgres
			c.Database.Host = ""
		}, "database.host"},
		{"memory ignores database", func(c *Config) { c.Database = DatabaseConfig{} }, ""},
		{"nats enabled without url", func(c *Config) { c.NATS = NATSConfig{Enabled: true} }, "nats.url"},
		{"nats disabled without url", func(c *Config) { c.NATS = NATSConfig{} }, ""},
		{"mqtt bad qos", func(c *Config) {
			c.MQTT = MQTTConfig{Enabled: true, Broker: "tcp://b:1883", Topic: "t", QoS: 3}
		}, "mqtt.qos"},
		{"negative accuracy", func(c *Config) { c.Capture.MaxAccuracyMeters = -1 }, "capture.max_accuracy_meters"},
		{"zero idle timeout", func(c *Config) { c.Capture.ScreenIdleTimeout = 0 }, "capture.screen_idle_timeout"},
		{"zero max screens", func(c *Config) { c.Capture.MaxScreens = 0 }, "capture.max_screens"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %s, got %v", tt.want, err)
			}
		})
	}
}

func TestValidate_AggregatesErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	cfg.Server.ReadTimeout = 0
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected an error")
	}
	if n := strings.Count(err.Error(), "\n  - "); n != 2 {
		t.Errorf("expected 2 aggregated problems, got %d: %v", n, err)
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", DBName: "geo", SSLMode: "require"}
	if got, want := d.DSN(), "postgres://u:p@db:5433/geo?sslmode=require"; got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Vendor   VendorConfig   `yaml:"vendor"`
	Push     PushConfig     `yaml:"push"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Tasks    TasksConfig    `yaml:"tasks"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// VendorConfig holds the settings for the vendor IoT platform client.
type VendorConfig struct {
	BaseURL        string            `yaml:"base_url"`
	Headers        map[string]string `yaml:"headers"`
	TenantPrefix   string            `yaml:"tenant_prefix"`
	LogPageSize    int               `yaml:"log_page_size"`
	TimeoutSeconds int               `yaml:"timeout_seconds"`
}

// PushConfig holds the settings for the push notification gateway.
type PushConfig struct {
	URL               string `yaml:"url"`
	AlarmSound        string `yaml:"alarm_sound"`
	AlarmChannel      string `yaml:"alarm_channel"`
	EscalationSound   string `yaml:"escalation_sound"`
	EscalationChannel string `yaml:"escalation_channel"`
	TimeoutSeconds    int    `yaml:"timeout_seconds"`
}

// DispatchConfig holds the settings for the emergency dispatch gateway.
type DispatchConfig struct {
	URL                string        `yaml:"url"`
	APIKey             string        `yaml:"api_key"`
	GraceWindowSeconds int           `yaml:"grace_window_seconds"`
	GraceWindow        time.Duration `yaml:"-"` // Ignored by YAML parser
	TimeoutSeconds     int           `yaml:"timeout_seconds"`
}

// IngestConfig holds the shared secret checked on the telemetry bridge webhook.
type IngestConfig struct {
	SharedSecret string `yaml:"shared_secret"`
}

// TasksConfig bounds the alert dispatcher's concurrent background units.
type TasksConfig struct {
	MaxConcurrent int `yaml:"max_concurrent"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 30
	}

	if cfg.Vendor.TenantPrefix == "" {
		cfg.Vendor.TenantPrefix = "SH_"
	}
	if cfg.Vendor.LogPageSize <= 0 {
		cfg.Vendor.LogPageSize = 5
	}
	if cfg.Vendor.TimeoutSeconds <= 0 {
		cfg.Vendor.TimeoutSeconds = 30
	}

	if cfg.Push.AlarmSound == "" {
		cfg.Push.AlarmSound = "dym.wav"
	}
	if cfg.Push.AlarmChannel == "" {
		cfg.Push.AlarmChannel = "alarm"
	}
	if cfg.Push.EscalationSound == "" {
		cfg.Push.EscalationSound = "ratownik.wav"
	}
	if cfg.Push.EscalationChannel == "" {
		cfg.Push.EscalationChannel = "ratownik"
	}
	if cfg.Push.TimeoutSeconds <= 0 {
		cfg.Push.TimeoutSeconds = 15
	}

	if cfg.Dispatch.GraceWindowSeconds <= 0 {
		cfg.Dispatch.GraceWindowSeconds = 5
	}
	cfg.Dispatch.GraceWindow = time.Duration(cfg.Dispatch.GraceWindowSeconds) * time.Second
	if cfg.Dispatch.TimeoutSeconds <= 0 {
		cfg.Dispatch.TimeoutSeconds = 15
	}

	if cfg.Tasks.MaxConcurrent <= 0 {
		cfg.Tasks.MaxConcurrent = 16
	}

	return &cfg, nil
}

package config

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const EnvPrefix = "BAGUA_NET"

type Config struct {
	Transport     TransportConfig     `mapstructure:"transport"`
	API           APIConfig           `mapstructure:"api"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
	MetricsExport MetricsExportConfig `mapstructure:"metrics_export"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type TransportConfig struct {
	// Interfaces selects devices by name prefix. "^eth" excludes, "=eth0"
	// matches exactly. Empty keeps every usable interface.
	Interfaces       []string `mapstructure:"interfaces"`
	SysfsRoot        string   `mapstructure:"sysfs_root"`
	DefaultSpeedMbps int      `mapstructure:"default_speed_mbps"`
	MaxComms         int      `mapstructure:"max_comms"`
	BindConnect      bool     `mapstructure:"bind_connect"`
}

type APIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
	Pprof   bool   `mapstructure:"pprof"`
	// Token guards the API when set. Accepts "env:" and "file:" references.
	Token   string `mapstructure:"token"`

	PprofMutexFraction int `mapstructure:"pprof_mutex_fraction"`
	PprofBlockRate     int `mapstructure:"pprof_block_rate"`
}

type MetricsConfig struct {
	Address string `mapstructure:"address"`
	Path    string `mapstructure:"path"`
}

type MetricsExportConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	RemoteWriteURL  string `mapstructure:"remote_write_url"`
	IntervalSeconds int    `mapstructure:"interval_seconds"`
	BearerToken     string `mapstructure:"bearer_token"`
}

// ObservabilityConfig sizes the in-memory event and alert history served by
// the API. Zero thresholds disable alerting.
type ObservabilityConfig struct {
	EventHistory            int    `mapstructure:"event_history"`
	AlertHistory            int    `mapstructure:"alert_history"`
	AlertIntervalSeconds    int    `mapstructure:"alert_interval_seconds"`
	ErrorsThreshold         uint64 `mapstructure:"errors_threshold"`
	FailedRequestsThreshold uint64 `mapstructure:"failed_requests_threshold"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	// LokiURL and ElasticURL ship every emitted entry when set.
	LokiURL    string `mapstructure:"loki_url"`
	ElasticURL string `mapstructure:"elastic_url"`
}

// Load reads a config file. An empty path yields defaults plus environment
// overrides.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return decode(v)
}

func LoadFromBytes(data []byte) (*Config, error) {
	v := newViper()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return decode(v)
}

func Default() *Config {
	cfg := &Config{}
	cfg.Transport.BindConnect = true
	applyDefaults(cfg)
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Registered defaults make the keys visible to AutomaticEnv on Unmarshal.
	v.SetDefault("transport.interfaces", []string{})
	v.SetDefault("transport.sysfs_root", "/sys")
	v.SetDefault("transport.default_speed_mbps", 10000)
	v.SetDefault("transport.max_comms", 65536)
	v.SetDefault("transport.bind_connect", true)
	v.SetDefault("api.enabled", false)
	v.SetDefault("api.address", "127.0.0.1:8080")
	v.SetDefault("api.pprof", false)
	v.SetDefault("api.token", "")
	v.SetDefault("api.pprof_mutex_fraction", 0)
	v.SetDefault("api.pprof_block_rate", 0)
	v.SetDefault("metrics.address", ":9090")
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics_export.enabled", false)
	v.SetDefault("metrics_export.remote_write_url", "")
	v.SetDefault("metrics_export.interval_seconds", 10)
	v.SetDefault("metrics_export.bearer_token", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.loki_url", "")
	v.SetDefault("logging.elastic_url", "")
	v.SetDefault("observability.event_history", 500)
	v.SetDefault("observability.alert_history", 100)
	v.SetDefault("observability.alert_interval_seconds", 10)
	v.SetDefault("observability.errors_threshold", 0)
	v.SetDefault("observability.failed_requests_threshold", 0)
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Transport.SysfsRoot == "" {
		cfg.Transport.SysfsRoot = "/sys"
	}
	if cfg.Transport.DefaultSpeedMbps == 0 {
		cfg.Transport.DefaultSpeedMbps = 10000
	}
	if cfg.Transport.MaxComms == 0 {
		cfg.Transport.MaxComms = 65536
	}
	if cfg.API.Address == "" {
		cfg.API.Address = "127.0.0.1:8080"
	}
	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = ":9090"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.MetricsExport.IntervalSeconds == 0 {
		cfg.MetricsExport.IntervalSeconds = 10
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Observability.EventHistory == 0 {
		cfg.Observability.EventHistory = 500
	}
	if cfg.Observability.AlertHistory == 0 {
		cfg.Observability.AlertHistory = 100
	}
	if cfg.Observability.AlertIntervalSeconds == 0 {
		cfg.Observability.AlertIntervalSeconds = 10
	}
}

func Validate(cfg *Config) error {
	return validate(cfg)
}

func validate(cfg *Config) error {
	for i, entry := range cfg.Transport.Interfaces {
		name := strings.TrimLeft(strings.TrimSpace(entry), "^=")
		if name == "" {
			return fmt.Errorf("transport.interfaces[%d] is empty", i)
		}
	}
	if cfg.Transport.DefaultSpeedMbps < 0 {
		return fmt.Errorf("transport.default_speed_mbps must be positive")
	}
	if cfg.Transport.MaxComms < 0 {
		return fmt.Errorf("transport.max_comms must be positive")
	}
	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}
	if cfg.MetricsExport.Enabled && cfg.MetricsExport.RemoteWriteURL == "" {
		return fmt.Errorf("metrics_export.remote_write_url is required when export is enabled")
	}
	if cfg.Observability.EventHistory < 0 || cfg.Observability.AlertHistory < 0 {
		return fmt.Errorf("observability history sizes must be positive")
	}
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not supported", cfg.Logging.Level)
	}
	return nil
}

package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "DATETALLY"

var (
	ErrConfigFile    = errors.New("parse config file")
	ErrInvalidConfig = errors.New("validate config")
)

type Config struct {
	Profile string

	APIBaseURL          string
	RequestTimeout      time.Duration
	AccessTTL           time.Duration
	DebounceDelay       time.Duration
	RefreshSingleFlight bool

	StateDir    string
	StateKey    string
	MarkerStore string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	CacheDSN string

	ReportSink     string
	ReportDir      string
	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool

	LogLevel  string
	LogFormat string

	OTELMetricsEnabled        bool
	OTELTracingEnabled        bool
	OTELLogsEnabled           bool
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELServiceName           string
	OTELEnvironment           string
	OTELMetricsExportInterval time.Duration
}

// NewViper returns a viper instance with defaults and environment binding
// applied. Callers may bind flags to it before calling Load.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("profile", "local")
	v.SetDefault("api_base_url", "http://localhost:8000/")
	v.SetDefault("request_timeout", 15*time.Second)
	v.SetDefault("access_ttl", 5*time.Minute)
	v.SetDefault("debounce_delay", time.Second)
	v.SetDefault("refresh_single_flight", false)
	v.SetDefault("state_dir", defaultStateDir())
	v.SetDefault("state_key", "")
	v.SetDefault("marker_store", "file")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("redis_prefix", "datetally")
	v.SetDefault("cache_dsn", "")
	v.SetDefault("report_sink", "file")
	v.SetDefault("report_dir", ".")
	v.SetDefault("minio_endpoint", "")
	v.SetDefault("minio_access_key", "")
	v.SetDefault("minio_secret_key", "")
	v.SetDefault("minio_bucket", "datetally-reports")
	v.SetDefault("minio_use_ssl", true)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("otel_metrics_enabled", false)
	v.SetDefault("otel_tracing_enabled", false)
	v.SetDefault("otel_logs_enabled", false)
	v.SetDefault("otel_exporter_otlp_endpoint", "localhost:4317")
	v.SetDefault("otel_exporter_otlp_insecure", true)
	v.SetDefault("otel_service_name", "datetally")
	v.SetDefault("otel_environment", "local")
	v.SetDefault("otel_metrics_export_interval", 30*time.Second)
	return v
}

// Load reads an optional .env file and config file, then resolves every key
// from flags, environment, file and defaults (in that order of precedence).
func Load(v *viper.Viper, configFile string) (*Config, error) {
	_ = godotenv.Load()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(userConfigDir(), "datetally"))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			err = fmt.Errorf("%w: %w", ErrConfigFile, err)
			recordConfigValidationEvent(context.Background(), v.GetString("profile"), "error", configErrorClass(err))
			return nil, err
		}
	}

	cfg := &Config{
		Profile:                   v.GetString("profile"),
		APIBaseURL:                v.GetString("api_base_url"),
		RequestTimeout:            v.GetDuration("request_timeout"),
		AccessTTL:                 v.GetDuration("access_ttl"),
		DebounceDelay:             v.GetDuration("debounce_delay"),
		RefreshSingleFlight:       v.GetBool("refresh_single_flight"),
		StateDir:                  v.GetString("state_dir"),
		StateKey:                  v.GetString("state_key"),
		MarkerStore:               strings.ToLower(strings.TrimSpace(v.GetString("marker_store"))),
		RedisAddr:                 v.GetString("redis_addr"),
		RedisPassword:             v.GetString("redis_password"),
		RedisDB:                   v.GetInt("redis_db"),
		RedisPrefix:               v.GetString("redis_prefix"),
		CacheDSN:                  v.GetString("cache_dsn"),
		ReportSink:                strings.ToLower(strings.TrimSpace(v.GetString("report_sink"))),
		ReportDir:                 v.GetString("report_dir"),
		MinIOEndpoint:             v.GetString("minio_endpoint"),
		MinIOAccessKey:            v.GetString("minio_access_key"),
		MinIOSecretKey:            v.GetString("minio_secret_key"),
		MinIOBucket:               v.GetString("minio_bucket"),
		MinIOUseSSL:               v.GetBool("minio_use_ssl"),
		LogLevel:                  v.GetString("log_level"),
		LogFormat:                 v.GetString("log_format"),
		OTELMetricsEnabled:        v.GetBool("otel_metrics_enabled"),
		OTELTracingEnabled:        v.GetBool("otel_tracing_enabled"),
		OTELLogsEnabled:           v.GetBool("otel_logs_enabled"),
		OTELExporterOTLPEndpoint:  v.GetString("otel_exporter_otlp_endpoint"),
		OTELExporterOTLPInsecure:  v.GetBool("otel_exporter_otlp_insecure"),
		OTELServiceName:           v.GetString("otel_service_name"),
		OTELEnvironment:           v.GetString("otel_environment"),
		OTELMetricsExportInterval: v.GetDuration("otel_metrics_export_interval"),
	}
	if err := cfg.Validate(); err != nil {
		err = fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		recordConfigValidationEvent(context.Background(), cfg.Profile, "error", configErrorClass(err))
		return nil, err
	}
	recordConfigValidationEvent(context.Background(), cfg.Profile, "success", configErrorClass(nil))
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("API_BASE_URL must be an absolute http(s) URL, got %q", c.APIBaseURL))
	}
	if c.AccessTTL <= 0 {
		errs = append(errs, errors.New("ACCESS_TTL must be positive"))
	}
	if c.DebounceDelay <= 0 {
		errs = append(errs, errors.New("DEBOUNCE_DELAY must be positive"))
	}
	if c.RequestTimeout < 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT must not be negative"))
	}
	switch c.MarkerStore {
	case "file", "memory":
	case "redis":
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required when MARKER_STORE=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("MARKER_STORE must be file, redis or memory, got %q", c.MarkerStore))
	}
	switch c.ReportSink {
	case "file":
	case "minio":
		if c.MinIOEndpoint == "" || c.MinIOBucket == "" {
			errs = append(errs, errors.New("MINIO_ENDPOINT and MINIO_BUCKET are required when REPORT_SINK=minio"))
		}
	default:
		errs = append(errs, fmt.Errorf("REPORT_SINK must be file or minio, got %q", c.ReportSink))
	}
	if c.StateDir == "" && c.MarkerStore == "file" {
		errs = append(errs, errors.New("STATE_DIR is required"))
	}
	return errors.Join(errs...)
}

func defaultStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "datetally")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "datetally")
	}
	return filepath.Join(home, ".local", "state", "datetally")
}

func userConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return dir
}

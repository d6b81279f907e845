package config

import (
	"time"

	"github.com/spf13/viper"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-optimizer/internal/optimizer"
	"github.com/aliskhannn/image-optimizer/internal/processor"
	"github.com/aliskhannn/image-optimizer/internal/storage/file"
)

// Config holds the main configuration for the application.
type Config struct {
	Server        Server           `mapstructure:"server"`
	Optimizer     optimizer.Config `mapstructure:"optimizer"`
	Worker        Worker           `mapstructure:"worker"`
	Notifications Notifications    `mapstructure:"notifications"`
	Storage       file.Config      `mapstructure:"storage"`
	Retry         Retry            `mapstructure:"retry"`
	Remote        processor.Config `mapstructure:"remote"`
}

// Server holds HTTP server-related configuration.
type Server struct {
	HTTPPort     string        `mapstructure:"http_port"`     // HTTP address to listen on
	WriteTimeout time.Duration `mapstructure:"write_timeout"` // upper bound for sending a processed image
}

// Worker controls the background processing worker.
type Worker struct {
	Enabled   bool `mapstructure:"enabled"`    // false forces processing on the calling goroutine
	QueueSize int  `mapstructure:"queue_size"` // requests buffered by the worker
}

// Notifications controls the notification center.
type Notifications struct {
	Capacity int `mapstructure:"capacity"` // number of notifications kept
}

// Retry defines retry policy configuration.
type Retry struct {
	Attempts int           `mapstructure:"attempts"` // Number of retry attempts
	Delay    time.Duration `mapstructure:"delay"`    // Initial delay between retries
	Backoff  float64       `mapstructure:"backoff"`  // Backoff multiplier for delays
}

// setDefaults registers the values used when the file leaves a key out.
func setDefaults(v *viper.Viper) {
	def := optimizer.DefaultConfig()
	v.SetDefault("server.http_port", ":8080")
	v.SetDefault("server.write_timeout", 60*time.Second)

	v.SetDefault("optimizer.retry_quality_step", def.RetryQualityStep)
	v.SetDefault("optimizer.min_retry_quality", def.MinRetryQuality)
	v.SetDefault("optimizer.retry_format", string(def.RetryFormat))
	v.SetDefault("optimizer.default_format", string(def.DefaultFormat))
	v.SetDefault("optimizer.substitute_format", string(def.SubstituteFormat))

	v.SetDefault("worker.enabled", true)
	v.SetDefault("worker.queue_size", 64)
	v.SetDefault("notifications.capacity", 10)

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.link_ttl", 24*time.Hour)

	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.delay", 200*time.Millisecond)
	v.SetDefault("retry.backoff", 2.0)

	remote := processor.DefaultConfig()
	v.SetDefault("remote.max_width", remote.MaxWidth)
	v.SetDefault("remote.max_height", remote.MaxHeight)
	v.SetDefault("remote.quality", remote.Quality)
}

// mustBindEnv binds critical environment variables to Viper keys.
//
// It panics if any environment variable cannot be bound.
func mustBindEnv(v *viper.Viper) {
	bindings := map[string]string{
		"server.http_port":   "HTTP_PORT",
		"storage.endpoint":   "MINIO_ENDPOINT",
		"storage.access_key": "MINIO_ACCESS_KEY",
		"storage.secret_key": "MINIO_SECRET_KEY",
		"storage.enabled":    "EXPORT_TO_STORAGE",
	}

	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			zlog.Logger.Panic().Err(err).Msgf("failed to bind env %s", env)
		}
	}
}

// Load reads the configuration file at path. An empty path uses defaults
// and the environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	mustBindEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad loads the configuration from the specified file path.
// It panics if the configuration file cannot be loaded or unmarshaled.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		zlog.Logger.Panic().Err(err).Msg("failed to load config")
	}

	return cfg
}

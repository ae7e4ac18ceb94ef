// Package config loads the client configuration from an optional YAML file,
// a .env file, and SENTRY_WATCH_* environment variables.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/chaos"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/dispatch"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/poll"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/retry"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/exception"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/pkg/websocket"
	"github.com/spf13/viper"
	"github.com/yanun0323/errors"
)

// EnvPrefix prefixes every environment override, e.g. SENTRY_WATCH_SERVER_API_KEY.
const EnvPrefix = "SENTRY_WATCH"

// FileConfig mirrors the file layout. Pointer fields distinguish unset from
// false so feature defaults survive partial files.
type FileConfig struct {
	Server     ServerConfig     `mapstructure:"server"`
	WebSocket  websocket.Config `mapstructure:"websocket"`
	Profile    string           `mapstructure:"profile"`
	KeepIdle   bool             `mapstructure:"keep_idle"`
	Features   FeaturesConfig   `mapstructure:"features"`
	Detections DetectionsConfig `mapstructure:"detections"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Workers    WorkersConfig    `mapstructure:"workers"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Poll       PollConfig       `mapstructure:"poll"`
	Toasts     ToastConfig      `mapstructure:"toasts"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Pyroscope  PyroscopeConfig  `mapstructure:"pyroscope"`
	Chaos      chaos.Config     `mapstructure:"chaos"`
}

// ServerConfig locates the backend.
type ServerConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// FeatureConfig is the per-feature file section.
type FeatureConfig struct {
	Enabled    *bool `mapstructure:"enabled"`
	ShowToasts *bool `mapstructure:"show_toasts"`
	// MaxHistory of zero keeps the feature's own default.
	MaxHistory int `mapstructure:"max_history"`
}

// FeaturesConfig groups every feature section.
type FeaturesConfig struct {
	Alerts     FeatureConfig `mapstructure:"alerts"`
	Cameras    FeatureConfig `mapstructure:"cameras"`
	Detections FeatureConfig `mapstructure:"detections"`
	Pipeline   FeatureConfig `mapstructure:"pipeline"`
	Health     FeatureConfig `mapstructure:"health"`
	Workers    FeatureConfig `mapstructure:"workers"`
	JobLogs    FeatureConfig `mapstructure:"job_logs"`
}

type DetectionsConfig struct {
	MaxBatches     int    `mapstructure:"max_batches"`
	FilterCameraID string `mapstructure:"filter_camera_id"`
}

type PipelineConfig struct {
	BacklogThreshold  int `mapstructure:"backlog_threshold"`
	CriticalThreshold int `mapstructure:"critical_threshold"`
}

type WorkersConfig struct {
	FailureToastThreshold int `mapstructure:"failure_toast_threshold"`
}

// RetryConfig tunes the rate-limit retry queue.
type RetryConfig struct {
	MaxRetries       int           `mapstructure:"max_retries"`
	BaseDelay        time.Duration `mapstructure:"base_delay"`
	MaxDelay         time.Duration `mapstructure:"max_delay"`
	IgnoreRetryAfter bool          `mapstructure:"ignore_retry_after"`
}

// PollConfig tunes REST polling.
type PollConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	PauseOnError  bool          `mapstructure:"pause_on_error"`
}

type ToastConfig struct {
	QueueSize int `mapstructure:"queue_size"`
}

type MetricsConfig struct {
	// Addr serves /metrics when set.
	Addr string `mapstructure:"addr"`
}

type PyroscopeConfig struct {
	// Address enables continuous profiling when set.
	Address string `mapstructure:"address"`
	AppName string `mapstructure:"app_name"`
}

// Feature is a resolved feature section.
type Feature struct {
	Enabled    bool
	ShowToasts bool
	MaxHistory int
}

// Features are resolved feature sections.
type Features struct {
	Alerts     Feature
	Cameras    Feature
	Detections Feature
	Pipeline   Feature
	Health     Feature
	Workers    Feature
	JobLogs    Feature
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Server     ServerConfig
	WebSocket  websocket.Config
	Profile    dispatch.Profile
	KeepIdle   bool
	Features   Features
	Detections DetectionsConfig
	Pipeline   PipelineConfig
	Workers    WorkersConfig
	Retry      RetryConfig
	Poll       PollConfig
	Toasts     ToastConfig
	Metrics    MetricsConfig
	Pyroscope  PyroscopeConfig
	Chaos      chaos.Config
}

var featureKeys = []string{"alerts", "cameras", "detections", "pipeline", "health", "workers", "job_logs"}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.base_url", "http://localhost:8000")
	v.SetDefault("server.api_key", "")

	v.SetDefault("websocket.disable_reconnect", false)
	v.SetDefault("websocket.reconnect_interval", time.Second)
	v.SetDefault("websocket.max_reconnect_interval", 30*time.Second)
	v.SetDefault("websocket.max_reconnect_attempts", 0)
	v.SetDefault("websocket.connection_timeout", websocket.DefaultConnectionTimeout)
	v.SetDefault("websocket.auto_respond_to_heartbeat", true)
	v.SetDefault("websocket.heartbeat_timeout", 0)
	v.SetDefault("websocket.ping_interval", 0)
	v.SetDefault("websocket.write_queue_size", 256)

	v.SetDefault("profile", dispatch.ProfileFull.Name)
	v.SetDefault("keep_idle", false)

	for _, f := range featureKeys {
		v.SetDefault("features."+f+".max_history", 0)
		// Bound rather than defaulted so an unset value stays nil.
		_ = v.BindEnv("features." + f + ".enabled")
		_ = v.BindEnv("features." + f + ".show_toasts")
	}

	v.SetDefault("detections.max_batches", 0)
	v.SetDefault("detections.filter_camera_id", "")
	v.SetDefault("pipeline.backlog_threshold", 0)
	v.SetDefault("pipeline.critical_threshold", 0)
	v.SetDefault("workers.failure_toast_threshold", 0)

	v.SetDefault("retry.max_retries", retry.DefaultMaxRetries)
	v.SetDefault("retry.base_delay", retry.DefaultBaseDelay)
	v.SetDefault("retry.max_delay", retry.DefaultMaxDelay)
	v.SetDefault("retry.ignore_retry_after", false)

	v.SetDefault("poll.interval", 30*time.Second)
	v.SetDefault("poll.retry_attempts", poll.DefaultRetryAttempts)
	v.SetDefault("poll.retry_delay", poll.DefaultRetryDelay)
	v.SetDefault("poll.pause_on_error", false)

	v.SetDefault("toasts.queue_size", 64)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("pyroscope.address", "")
	v.SetDefault("pyroscope.app_name", "sentrywatch")

	v.SetDefault("chaos.seed", 0)
	v.SetDefault("chaos.dial_fail_rate", 0.0)
	v.SetDefault("chaos.stall_rate", 0.0)
	v.SetDefault("chaos.drop_rate", 0.0)
	v.SetDefault("chaos.duplicate_rate", 0.0)
	v.SetDefault("chaos.max_delay", 0)
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// LoadDotEnv exports variables from the given .env files. Missing files are
// skipped and variables already set win.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return errors.Wrap(exception.ErrConfigRead, err.Error()).With("path", p)
		}
	}
	return nil
}

// Load reads path, when set, and the environment.
func Load(path string) (Loaded, error) {
	return NewLoader(path).Load()
}

func read(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: %v", exception.ErrConfigRead, err)
	}
	return nil
}

func decode(v *viper.Viper) (Loaded, error) {
	var cfg FileConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return Loaded{}, fmt.Errorf("%w: %v", exception.ErrConfigDecode, err)
	}
	if err := cfg.Validate(); err != nil {
		return Loaded{}, err
	}
	return Loaded{
		Server:     cfg.Server,
		WebSocket:  cfg.WebSocket,
		Profile:    dispatch.ProfileByName(cfg.Profile),
		KeepIdle:   cfg.KeepIdle,
		Features:   resolveFeatures(cfg.Features),
		Detections: cfg.Detections,
		Pipeline:   cfg.Pipeline,
		Workers:    cfg.Workers,
		Retry:      cfg.Retry,
		Poll:       cfg.Poll,
		Toasts:     cfg.Toasts,
		Metrics:    cfg.Metrics,
		Pyroscope:  cfg.Pyroscope,
		Chaos:      cfg.Chaos,
	}, nil
}

// Validate rejects values no component can run with.
func (c FileConfig) Validate() error {
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil || c.Server.BaseURL == "" {
		return fmt.Errorf("%w: server.base_url %q", exception.ErrConfigInvalid, c.Server.BaseURL)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("%w: server.base_url scheme %q", exception.ErrConfigInvalid, u.Scheme)
	}
	switch c.Profile {
	case "", dispatch.ProfileFull.Name, dispatch.ProfileBasic.Name:
	default:
		return fmt.Errorf("%w: profile %q", exception.ErrConfigInvalid, c.Profile)
	}
	if c.WebSocket.ReconnectInterval < 0 || c.WebSocket.MaxReconnectInterval < 0 {
		return fmt.Errorf("%w: websocket reconnect intervals must be >= 0", exception.ErrConfigInvalid)
	}
	if c.WebSocket.ConnectionTimeout < websocket.NoTimeout {
		return fmt.Errorf("%w: websocket.connection_timeout", exception.ErrConfigInvalid)
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("%w: retry.max_retries must be >= 0", exception.ErrConfigInvalid)
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < 0 {
		return fmt.Errorf("%w: retry delays must be >= 0", exception.ErrConfigInvalid)
	}
	if c.Poll.RetryAttempts < 0 {
		return fmt.Errorf("%w: poll.retry_attempts must be >= 0", exception.ErrConfigInvalid)
	}
	if c.Poll.Interval < 0 || c.Poll.RetryDelay < 0 {
		return fmt.Errorf("%w: poll durations must be >= 0", exception.ErrConfigInvalid)
	}
	if c.Toasts.QueueSize <= 0 {
		return fmt.Errorf("%w: toasts.queue_size must be > 0", exception.ErrConfigInvalid)
	}
	return c.Chaos.Validate()
}

func resolveFeature(cfg FeatureConfig) Feature {
	f := Feature{
		Enabled:    true,
		ShowToasts: true,
		MaxHistory: cfg.MaxHistory,
	}
	if cfg.Enabled != nil {
		f.Enabled = *cfg.Enabled
	}
	if cfg.ShowToasts != nil {
		f.ShowToasts = *cfg.ShowToasts
	}
	return f
}

func resolveFeatures(cfg FeaturesConfig) Features {
	features := Features{
		Alerts:     resolveFeature(cfg.Alerts),
		Cameras:    resolveFeature(cfg.Cameras),
		Detections: resolveFeature(cfg.Detections),
		Pipeline:   resolveFeature(cfg.Pipeline),
		Health:     resolveFeature(cfg.Health),
		Workers:    resolveFeature(cfg.Workers),
		JobLogs:    resolveFeature(cfg.JobLogs),
	}
	// The job log stream is opened on demand for a specific job.
	if cfg.JobLogs.ShowToasts == nil {
		features.JobLogs.ShowToasts = false
	}
	return features
}

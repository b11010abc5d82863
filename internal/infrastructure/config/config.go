package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for NEA Smart Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Account   AccountConfig   `yaml:"account"`
	Broker    BrokerConfig    `yaml:"broker"`
	Directory DirectoryConfig `yaml:"directory"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// AccountConfig contains the end-user credentials for the identity service.
// These are never sent to the broker; the broker only sees the access token.
type AccountConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// BrokerConfig contains the cloud MQTT broker connection settings.
type BrokerConfig struct {
	// URL is the broker endpoint, e.g. "wss://mqtt.nea2aws.aws.rehau.cloud:443/mqtt".
	URL string `yaml:"url"`

	// AppUsername is the shared application identity used for every user.
	AppUsername string `yaml:"app_username"`

	// Authorizer is the custom authorizer name appended to the username.
	Authorizer string `yaml:"authorizer"`

	// ClientIDPrefix is prepended to a fresh UUID for each session.
	ClientIDPrefix string `yaml:"client_id_prefix"`

	TLS            bool `yaml:"tls"`
	QoS            int  `yaml:"qos"`
	KeepAlive      int  `yaml:"keep_alive"`
	ConnectTimeout int  `yaml:"connect_timeout"`

	Reconnect ReconnectConfig `yaml:"reconnect"`

	// PublishFailureThreshold is the number of consecutive publish failures
	// tolerated before they are reported as communication errors.
	PublishFailureThreshold int `yaml:"publish_failure_threshold"`
}

// ReconnectConfig contains broker reconnection settings.
type ReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`

	// MaxDisconnects is the number of unexpected disconnects tolerated
	// before the session is torn down.
	MaxDisconnects int `yaml:"max_disconnects"`
}

// DirectoryConfig contains the identity and directory HTTP service settings.
type DirectoryConfig struct {
	URL     string `yaml:"url"`
	Timeout int    `yaml:"timeout"`
}

// ScheduleConfig contains the periodic task cadences, in seconds.
type ScheduleConfig struct {
	UserPoll           int `yaml:"user_poll"`
	LiveData           int `yaml:"live_data"`
	Referentials       int `yaml:"referentials"`
	TokenRefreshMargin int `yaml:"token_refresh_margin"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains the optional HTTP status server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
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

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
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
// Environment variables follow the pattern: NEASMART_SECTION_KEY
// For example: NEASMART_EMAIL, NEASMART_BROKER_URL
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
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

// defaultConfig returns a Config with the vendor defaults.
func defaultConfig() *Config {
	return &Config{
		Broker: BrokerConfig{
			URL:            "wss://mqtt.nea2aws.aws.rehau.cloud:443/mqtt",
			AppUsername:    "app",
			Authorizer:     "app-front",
			ClientIDPrefix: "app-",
			TLS:            true,
			QoS:            0,
			KeepAlive:      60,
			ConnectTimeout: 10,
			Reconnect: ReconnectConfig{
				InitialDelay:   30,
				MaxDelay:       300,
				MaxDisconnects: 5,
			},
			PublishFailureThreshold: 5,
		},
		Directory: DirectoryConfig{
			URL:     "https://api.nea2aws.aws.rehau.cloud",
			Timeout: 15,
		},
		Schedule: ScheduleConfig{
			UserPoll:           60,
			LiveData:           60,
			Referentials:       300,
			TokenRefreshMargin: 300,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8090,
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
		Metrics: MetricsConfig{
			Namespace: "neasmart",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: NEASMART_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Account credentials belong in the environment, not the YAML file
	if v := os.Getenv("NEASMART_EMAIL"); v != "" {
		cfg.Account.Email = v
	}
	if v := os.Getenv("NEASMART_PASSWORD"); v != "" {
		cfg.Account.Password = v
	}

	if v := os.Getenv("NEASMART_BROKER_URL"); v != "" {
		cfg.Broker.URL = v
	}
	if v := os.Getenv("NEASMART_DIRECTORY_URL"); v != "" {
		cfg.Directory.URL = v
	}

	if v := os.Getenv("NEASMART_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("NEASMART_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Account.Email == "" {
		errs = append(errs, "account.email is required (set NEASMART_EMAIL environment variable)")
	}
	if c.Account.Password == "" {
		errs = append(errs, "account.password is required (set NEASMART_PASSWORD environment variable)")
	}

	if c.Broker.URL == "" {
		errs = append(errs, "broker.url is required")
	}
	if c.Broker.AppUsername == "" {
		errs = append(errs, "broker.app_username is required")
	}
	if c.Broker.QoS < 0 || c.Broker.QoS > 2 {
		errs = append(errs, "broker.qos must be 0, 1, or 2")
	}
	if c.Broker.Reconnect.InitialDelay <= 0 || c.Broker.Reconnect.MaxDelay < c.Broker.Reconnect.InitialDelay {
		errs = append(errs, "broker.reconnect delays must be positive and max_delay >= initial_delay")
	}
	if c.Broker.Reconnect.MaxDisconnects < 0 {
		errs = append(errs, "broker.reconnect.max_disconnects must not be negative")
	}

	if c.Directory.URL == "" {
		errs = append(errs, "directory.url is required")
	}

	if c.Schedule.UserPoll <= 0 || c.Schedule.LiveData <= 0 || c.Schedule.Referentials <= 0 {
		errs = append(errs, "schedule intervals must be positive")
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// BrokerUsername returns the broker username: the shared application
// identity combined with the custom authorizer query.
func (b BrokerConfig) BrokerUsername() string {
	if b.Authorizer == "" {
		return b.AppUsername
	}
	return b.AppUsername + "?x-amz-customauthorizer-name=" + b.Authorizer
}

// UserPollInterval returns the HTTP user poll cadence.
func (s ScheduleConfig) UserPollInterval() time.Duration {
	return time.Duration(s.UserPoll) * time.Second
}

// LiveDataInterval returns the live data request cadence.
func (s ScheduleConfig) LiveDataInterval() time.Duration {
	return time.Duration(s.LiveData) * time.Second
}

// ReferentialsInterval returns the referentials request cadence.
func (s ScheduleConfig) ReferentialsInterval() time.Duration {
	return time.Duration(s.Referentials) * time.Second
}

// TokenRefreshMarginDuration returns how long before expiry the token is refreshed.
func (s ScheduleConfig) TokenRefreshMarginDuration() time.Duration {
	return time.Duration(s.TokenRefreshMargin) * time.Second
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

// Package config loads client settings from a config file, a .env file and
// FIREBLOCKS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Sternrassler/fireblocks-client/pkg/client"
	"github.com/Sternrassler/fireblocks-client/pkg/logging"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "FIREBLOCKS"

// Config is the complete client configuration.
type Config struct {
	APIKey string `mapstructure:"api_key" validate:"required"`

	// PrivateKey holds an inline PEM key. PrivateKeyPath names a file
	// holding one. Exactly one of them is needed.
	PrivateKey     string `mapstructure:"private_key" validate:"required_without=PrivateKeyPath"`
	PrivateKeyPath string `mapstructure:"private_key_path" validate:"required_without=PrivateKey"`

	BaseURL    string        `mapstructure:"base_url" validate:"required,url"`
	UserAgent  string        `mapstructure:"user_agent" validate:"required"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MaxRetries int           `mapstructure:"max_retries" validate:"gte=0,lte=10"`

	// RedisAddr enables the response cache and the shared rate limit.
	RedisAddr     string `mapstructure:"redis_addr" validate:"omitempty,hostname_port"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" validate:"gte=0"`

	// BatchSize is the page size streams request.
	BatchSize uint16 `mapstructure:"batch_size" validate:"min=1,max=500"`

	LogLevel  string `mapstructure:"log_level" validate:"oneof=trace debug info warn error"`
	LogPretty bool   `mapstructure:"log_pretty"`
}

// defaults also registers every key with viper so that environment
// variables are picked up by Unmarshal.
var defaults = map[string]any{
	"api_key":          "",
	"private_key":      "",
	"private_key_path": "",
	"base_url":         client.DefaultBaseURL,
	"user_agent":       "fireblocks-client/1.0",
	"timeout":          30 * time.Second,
	"max_retries":      3,
	"redis_addr":       "",
	"redis_password":   "",
	"redis_db":         0,
	"batch_size":       100,
	"log_level":        string(logging.LevelInfo),
	"log_pretty":       false,
}

type loadOptions struct {
	configFile string
	envFile    string
}

// Option configures Load.
type Option func(*loadOptions)

// WithConfigFile reads settings from a YAML, JSON or TOML file.
func WithConfigFile(path string) Option {
	return func(o *loadOptions) { o.configFile = path }
}

// WithEnvFile loads path instead of ./.env. The file must exist.
func WithEnvFile(path string) Option {
	return func(o *loadOptions) { o.envFile = path }
}

// Load resolves the configuration. Precedence, highest first: environment,
// .env file, config file, defaults. The result is validated.
func Load(opts ...Option) (*Config, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	// godotenv never overrides variables that are already set
	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", o.envFile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if o.configFile != "" {
		v.SetConfigFile(o.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", o.configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration and reports every invalid field.
func (c *Config) Validate() error {
	err := validator.New(validator.WithRequiredStructEnabled()).Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// ClientConfig builds the transport configuration. The private key is read
// and parsed here. Redis stays nil; see NewRedis.
func (c *Config) ClientConfig() (client.Config, error) {
	pemBytes := []byte(c.PrivateKey)
	if len(pemBytes) == 0 {
		var err error
		pemBytes, err = os.ReadFile(c.PrivateKeyPath)
		if err != nil {
			return client.Config{}, fmt.Errorf("read private key: %w", err)
		}
	}

	key, err := client.ParsePrivateKey(pemBytes)
	if err != nil {
		return client.Config{}, err
	}

	cfg := client.DefaultConfig(c.APIKey, key)
	cfg.BaseURL = c.BaseURL
	cfg.UserAgent = c.UserAgent
	cfg.Timeout = c.Timeout
	cfg.MaxRetries = c.MaxRetries
	return cfg, nil
}

// NewRedis returns a Redis client for RedisAddr, or nil when none is set.
func (c *Config) NewRedis() *redis.Client {
	if c.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	})
}

// LoggingConfig returns the logger settings.
func (c *Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.LogLevel)
	if c.LogPretty {
		cfg.Pretty = true
	}
	return cfg
}

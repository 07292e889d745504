package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultFetchInterval    = 60 * time.Second
	MinFetchInterval        = 60 * time.Second
	MaxFetchInterval        = 300 * time.Second
	DefaultMaxPoints        = 20
	DefaultSourceURL        = "https://www.cbr-xml-daily.ru/daily_json.js"
	DefaultFetchTimeout     = 10 * time.Second
	MaxFetchTimeout         = 60 * time.Second
	DefaultDBPath           = "data/rates.db"
	DefaultListenAddr       = ":5020"
	DefaultLogDir           = "log"
	DefaultLogLevel         = "info"
	DefaultSubscriberBuffer = 16
	DefaultShutdownTimeout  = 25 * time.Second

	envPrefix = "RATES"
)

type Config struct {
	FetchInterval    time.Duration `mapstructure:"fetch_interval"`
	MaxPoints        int           `mapstructure:"max_points"`
	SourceURL        string        `mapstructure:"source_url"`
	FetchTimeout     time.Duration `mapstructure:"fetch_timeout"`
	DBPath           string        `mapstructure:"db_path"`
	ListenAddr       string        `mapstructure:"listen_addr"`
	LogDir           string        `mapstructure:"log_dir"`
	LogLevel         string        `mapstructure:"log_level"`
	LogConsole       bool          `mapstructure:"log_console"`
	SubscriberBuffer int           `mapstructure:"subscriber_buffer"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown_timeout"`
}

func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("fetch_interval", DefaultFetchInterval)
	v.SetDefault("max_points", DefaultMaxPoints)
	v.SetDefault("source_url", DefaultSourceURL)
	v.SetDefault("fetch_timeout", DefaultFetchTimeout)
	v.SetDefault("db_path", DefaultDBPath)
	v.SetDefault("listen_addr", DefaultListenAddr)
	v.SetDefault("log_dir", DefaultLogDir)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("log_console", false)
	v.SetDefault("subscriber_buffer", DefaultSubscriberBuffer)
	v.SetDefault("shutdown_timeout", DefaultShutdownTimeout)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("cannot decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.FetchInterval < MinFetchInterval || c.FetchInterval > MaxFetchInterval {
		errs = append(errs, fmt.Errorf("fetch_interval must be between %s and %s, got %s", MinFetchInterval, MaxFetchInterval, c.FetchInterval))
	}
	if c.MaxPoints < 1 {
		errs = append(errs, fmt.Errorf("max_points must be positive, got %d", c.MaxPoints))
	}
	if c.SourceURL == "" {
		errs = append(errs, errors.New("source_url must not be empty"))
	}
	if c.FetchTimeout <= 0 || c.FetchTimeout > MaxFetchTimeout {
		errs = append(errs, fmt.Errorf("fetch_timeout must be in (0, %s], got %s", MaxFetchTimeout, c.FetchTimeout))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path must not be empty"))
	}
	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen_addr must not be empty"))
	}
	if c.SubscriberBuffer < 1 {
		errs = append(errs, fmt.Errorf("subscriber_buffer must be positive, got %d", c.SubscriberBuffer))
	}

	return errors.Join(errs...)
}

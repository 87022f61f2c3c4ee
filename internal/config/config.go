package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// CrawlerConfig holds all crawl settings. It is built once before a crawl
// starts and treated as read-only afterwards.
type CrawlerConfig struct {
	MaxDepth                int           `mapstructure:"max_depth"`
	MaxLinks                int           `mapstructure:"max_links"`
	Delay                   time.Duration `mapstructure:"delay"`
	Timeout                 time.Duration `mapstructure:"timeout"`
	OutputPath              string        `mapstructure:"output_path"`
	UserAgent               string        `mapstructure:"user_agent"`
	RespectRobotsTxt        bool          `mapstructure:"respect_robots_txt"`
	SamePathOnly            bool          `mapstructure:"same_path_only"`
	MaxRetries              int           `mapstructure:"max_retries"`
	RetryDelay              time.Duration `mapstructure:"retry_delay"`
	CircuitBreakerThreshold int           `mapstructure:"circuit_breaker_threshold"`
	CircuitBreakerTimeout   time.Duration `mapstructure:"circuit_breaker_timeout"`
	ExcludeKeywords         []string      `mapstructure:"exclude_keywords"`

	// RequestsPerSecond caps requests per domain on top of the fixed
	// per-request delay. Zero disables the limiter.
	RequestsPerSecond int `mapstructure:"requests_per_second"`
}

// Load reads configuration from an optional YAML file, environment
// variables and defaults. Flag values bound to viper by the CLI take
// precedence over all of these.
func Load(configPath string) (*CrawlerConfig, error) {
	viper.SetConfigName("crawlcorpus")
	viper.SetConfigType("yaml")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.crawlcorpus")
	}

	setDefaults()

	viper.SetEnvPrefix("CRAWLCORPUS")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults, env and flags apply.
		// A file that was found but does not parse is not.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg CrawlerConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("max_depth", 3)
	viper.SetDefault("max_links", 100)
	viper.SetDefault("delay", "1s")
	viper.SetDefault("timeout", "30s")
	viper.SetDefault("output_path", "output/crawl_result.json")
	viper.SetDefault("user_agent", "crawlcorpus/1.0")
	viper.SetDefault("respect_robots_txt", true)
	viper.SetDefault("same_path_only", false)
	viper.SetDefault("max_retries", 3)
	viper.SetDefault("retry_delay", "1s")
	viper.SetDefault("circuit_breaker_threshold", 5)
	viper.SetDefault("circuit_breaker_timeout", "5m")
	viper.SetDefault("exclude_keywords", []string{})
	viper.SetDefault("requests_per_second", 0)
}

// Validate checks the configuration invariants.
func (c *CrawlerConfig) Validate() error {
	if c.MaxDepth < 0 {
		return fmt.Errorf("max_depth must not be negative")
	}
	if c.MaxLinks < 0 {
		return fmt.Errorf("max_links must not be negative")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay must not be negative")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry_delay must not be negative")
	}
	if c.CircuitBreakerThreshold < 0 {
		return fmt.Errorf("circuit_breaker_threshold must not be negative")
	}
	if c.CircuitBreakerTimeout < 0 {
		return fmt.Errorf("circuit_breaker_timeout must not be negative")
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must not be negative")
	}
	return nil
}

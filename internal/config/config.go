package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultPushURL  = "https://noodlehub.binary.kitchen/push"
	DefaultGreeting = "Hello World"
)

type Config struct {
	Listen  ListenConfig  `mapstructure:"listen"`
	Hub     HubConfig     `mapstructure:"hub"`
	Publish PublishConfig `mapstructure:"publish"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type ListenConfig struct {
	URL      string        `mapstructure:"url"`
	Greeting string        `mapstructure:"greeting"`
	Notifier string        `mapstructure:"notifier"`
	Backoff  BackoffConfig `mapstructure:"backoff"`
}

// BackoffConfig is handed to the SSE client as is. Zero values keep the
// client's own defaults.
type BackoffConfig struct {
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
}

type HubConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	Secret      string        `mapstructure:"secret"`
}

type PublishConfig struct {
	URL     string        `mapstructure:"url"`
	Secret  string        `mapstructure:"secret"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("noodlenotify")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/noodlenotify")
	}

	setDefaults(v)

	v.SetEnvPrefix("NOODLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen.url", DefaultPushURL)
	v.SetDefault("listen.greeting", DefaultGreeting)
	v.SetDefault("listen.notifier", "alert")
	v.SetDefault("listen.backoff.initial_interval", time.Duration(0))
	v.SetDefault("listen.backoff.max_interval", time.Duration(0))

	v.SetDefault("hub.host", "0.0.0.0")
	v.SetDefault("hub.port", 8080)
	v.SetDefault("hub.read_timeout", 30*time.Second)
	v.SetDefault("hub.secret", "")

	v.SetDefault("publish.url", "http://localhost:8080")
	v.SetDefault("publish.secret", "")
	v.SetDefault("publish.timeout", 10*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// ValidateListen checks the settings used by the listen command.
func (c *Config) ValidateListen() error {
	if err := validateHTTPURL(c.Listen.URL); err != nil {
		return fmt.Errorf("listen.url: %w", err)
	}
	switch c.Listen.Notifier {
	case "alert", "log":
	default:
		return fmt.Errorf("listen.notifier: unknown notifier %q", c.Listen.Notifier)
	}
	return nil
}

func (c *Config) ValidatePublish() error {
	if err := validateHTTPURL(c.Publish.URL); err != nil {
		return fmt.Errorf("publish.url: %w", err)
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%q must be a valid HTTP or HTTPS URL", raw)
	}
	return nil
}

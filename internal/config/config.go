package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// MinPollInterval is the shortest refresh interval accepted from configuration.
const MinPollInterval = time.Second

type PredictionConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type PollConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	DemoFallback bool          `mapstructure:"demo_fallback"`
}

type ServerConfig struct {
	Addr      string        `mapstructure:"addr"`
	Heartbeat time.Duration `mapstructure:"heartbeat"`
}

type SuggestionsConfig struct {
	// GenericMarkers are substrings that identify a placeholder answer from the backend.
	GenericMarkers []string `mapstructure:"generic_markers"`
}

type FileSinkConfig struct {
	Dir string `mapstructure:"dir"`
}

type KafkaSinkConfig struct {
	Brokers []string `mapstructure:"brokers"`
}

type AMQPSinkConfig struct {
	URI      string `mapstructure:"uri"`
	Exchange string `mapstructure:"exchange"`
}

type PostgresSinkConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

type S3SinkConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
	Region string `mapstructure:"region"`
}

type SinksConfig struct {
	File     FileSinkConfig     `mapstructure:"file"`
	Kafka    KafkaSinkConfig    `mapstructure:"kafka"`
	AMQP     AMQPSinkConfig     `mapstructure:"amqp"`
	Postgres PostgresSinkConfig `mapstructure:"postgres"`
	S3       S3SinkConfig       `mapstructure:"s3"`
}

// Config is the full runtime configuration of the dashboard service.
type Config struct {
	Prediction  PredictionConfig  `mapstructure:"prediction"`
	Poll        PollConfig        `mapstructure:"poll"`
	Server      ServerConfig      `mapstructure:"server"`
	Suggestions SuggestionsConfig `mapstructure:"suggestions"`
	Sinks       SinksConfig       `mapstructure:"sinks"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("prediction.base_url", "http://127.0.0.1:5000")
	v.SetDefault("prediction.timeout", "10s")
	v.SetDefault("poll.interval", "10s")
	v.SetDefault("poll.demo_fallback", true)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.heartbeat", "5s")
	v.SetDefault("suggestions.generic_markers", []string{"No specific resources"})
	v.SetDefault("sinks.file.dir", "")
	v.SetDefault("sinks.kafka.brokers", []string{})
	v.SetDefault("sinks.amqp.uri", "")
	v.SetDefault("sinks.amqp.exchange", "flood")
	v.SetDefault("sinks.postgres.dsn", "")
	v.SetDefault("sinks.postgres.table", "risk_snapshots")
	v.SetDefault("sinks.s3.bucket", "")
	v.SetDefault("sinks.s3.prefix", "snapshots")
	v.SetDefault("sinks.s3.region", "us-east-1")
}

// New returns a viper instance with defaults and FLOOD_ environment overrides applied.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("FLOOD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads cfgFile (if given) on top of defaults and environment, then decodes it.
// Without cfgFile a "flood-dashboard" config in the working directory is used when present.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("flood-dashboard")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	decoderConfigOption := viper.DecoderConfigOption(func(dc *mapstructure.DecoderConfig) {
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	})
	if err := v.Unmarshal(&cfg, decoderConfigOption); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}

	if cfg.Poll.Interval < MinPollInterval {
		cfg.Poll.Interval = MinPollInterval
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports configuration that cannot work at all.
func (c *Config) Validate() error {
	if c.Prediction.BaseURL == "" {
		return errors.New("prediction.base_url must be set")
	}
	u, err := url.Parse(c.Prediction.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid prediction.base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("prediction.base_url: unsupported scheme %q", u.Scheme)
	}
	if c.Prediction.Timeout <= 0 {
		return errors.New("prediction.timeout must be positive")
	}
	if c.Server.Heartbeat <= 0 {
		return errors.New("server.heartbeat must be positive")
	}
	return nil
}

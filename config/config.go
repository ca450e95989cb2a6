package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erain9/matchbook/pkg/db/queue"
	"github.com/erain9/matchbook/pkg/messaging"
	"github.com/erain9/matchbook/pkg/messaging/kafka"
	"github.com/spf13/viper"
)

const envPrefix = "MATCHBOOK"

// Kafka drivers
const (
	DriverKafkaGo = "kafka-go"
	DriverSarama  = "sarama"
)

// Config represents the application configuration
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Loadtest  LoadtestConfig  `mapstructure:"loadtest"`
}

// LogConfig configures pkg/logging
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// KafkaConfig configures trade publishing
type KafkaConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Driver     string        `mapstructure:"driver"`
	Brokers    string        `mapstructure:"brokers"`
	Topic      string        `mapstructure:"topic"`
	GroupID    string        `mapstructure:"group_id"`
	BufferSize int           `mapstructure:"buffer_size"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// TelemetryConfig configures the OTLP exporters
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Endpoint       string `mapstructure:"endpoint"`
	ServiceName    string `mapstructure:"service_name"`
	RuntimeMetrics bool   `mapstructure:"runtime_metrics"`
}

// LoadtestConfig is the cmd/loadtest traffic profile
type LoadtestConfig struct {
	Workers  int           `mapstructure:"workers"`
	Rate     int           `mapstructure:"rate"`
	Duration time.Duration `mapstructure:"duration"`
	// MidPrice is the centre of the generated price band
	MidPrice    string  `mapstructure:"mid_price"`
	PriceLevels int     `mapstructure:"price_levels"`
	MaxQuantity uint64  `mapstructure:"max_quantity"`
	CancelRatio float64 `mapstructure:"cancel_ratio"`
	ModifyRatio float64 `mapstructure:"modify_ratio"`
	Seed        int64   `mapstructure:"seed"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.driver", DriverKafkaGo)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "matchbook-trades")
	v.SetDefault("kafka.group_id", "")
	v.SetDefault("kafka.buffer_size", 4096)
	v.SetDefault("kafka.timeout", 5*time.Second)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "localhost:4317")
	v.SetDefault("telemetry.service_name", "matchbook")
	v.SetDefault("telemetry.runtime_metrics", false)

	v.SetDefault("loadtest.workers", 4)
	v.SetDefault("loadtest.rate", 50000)
	v.SetDefault("loadtest.duration", 10*time.Second)
	v.SetDefault("loadtest.mid_price", "100")
	v.SetDefault("loadtest.price_levels", 20)
	v.SetDefault("loadtest.max_quantity", 100)
	v.SetDefault("loadtest.cancel_ratio", 0.2)
	v.SetDefault("loadtest.modify_ratio", 0.1)
	v.SetDefault("loadtest.seed", 1)
}

// Load reads configuration from defaults, the optional YAML file at path and
// MATCHBOOK_ prefixed environment variables, in increasing precedence.
// MATCHBOOK_KAFKA_BROKERS overrides kafka.brokers, for example.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.Kafka.Driver == DriverSarama {
		queue.SetBrokerList(cfg.Kafka.Brokers)
		queue.SetTopic(cfg.Kafka.Topic)
	}

	return cfg, nil
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	var errs []error

	if c.Kafka.Enabled {
		if c.Kafka.Brokers == "" {
			errs = append(errs, errors.New("kafka.brokers must not be empty"))
		}
		if c.Kafka.Topic == "" {
			errs = append(errs, errors.New("kafka.topic must not be empty"))
		}
	}
	if c.Kafka.Driver != DriverKafkaGo && c.Kafka.Driver != DriverSarama {
		errs = append(errs, fmt.Errorf("kafka.driver must be %q or %q, got %q", DriverKafkaGo, DriverSarama, c.Kafka.Driver))
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		errs = append(errs, errors.New("telemetry.endpoint must not be empty"))
	}
	if c.Loadtest.Workers <= 0 {
		errs = append(errs, errors.New("loadtest.workers must be positive"))
	}
	if c.Loadtest.Rate <= 0 {
		errs = append(errs, errors.New("loadtest.rate must be positive"))
	}
	if c.Loadtest.PriceLevels <= 0 {
		errs = append(errs, errors.New("loadtest.price_levels must be positive"))
	}
	if c.Loadtest.MaxQuantity == 0 {
		errs = append(errs, errors.New("loadtest.max_quantity must be positive"))
	}
	if c.Loadtest.CancelRatio < 0 || c.Loadtest.ModifyRatio < 0 || c.Loadtest.CancelRatio+c.Loadtest.ModifyRatio > 1 {
		errs = append(errs, errors.New("loadtest cancel_ratio and modify_ratio must be non-negative and sum to at most 1"))
	}

	return errors.Join(errs...)
}

// NewTradeSender creates the trade sender for the configured Kafka driver
func (c *Config) NewTradeSender() (messaging.MessageSender, error) {
	switch c.Kafka.Driver {
	case DriverSarama:
		return queue.NewQueueMessageSender()
	default:
		return kafka.NewKafkaMessageSender(c.Kafka.Brokers, c.Kafka.Topic)
	}
}

// PublisherConfig returns the trade publisher settings
func (c *Config) PublisherConfig() messaging.PublisherConfig {
	return messaging.PublisherConfig{
		BufferSize:  c.Kafka.BufferSize,
		SendTimeout: c.Kafka.Timeout,
	}
}

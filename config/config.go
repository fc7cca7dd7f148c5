// Package config loads service settings from defaults, an optional YAML file
// and the environment, in increasing order of precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/arkantrust/vending-checkout/catalog"
	"github.com/arkantrust/vending-checkout/events"
	"github.com/arkantrust/vending-checkout/models"
)

// Config is the full service configuration.
type Config struct {
	Port string `yaml:"port" mapstructure:"port"`

	// DBPath selects the bolt store when set; empty means in-memory.
	DBPath string `yaml:"db_path" mapstructure:"db_path"`

	// EnableTestRoutes mounts the manual approval endpoint. Leave it off
	// anywhere a real payment provider is wired in.
	EnableTestRoutes bool `yaml:"enable_test_routes" mapstructure:"enable_test_routes"`

	Kafka    KafkaConfig      `yaml:"kafka" mapstructure:"kafka"`
	Machines []models.Machine `yaml:"machines" mapstructure:"machines"`
}

// KafkaConfig configures sale notifications. No brokers disables them.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers" mapstructure:"brokers"`
	Topic   string   `yaml:"topic" mapstructure:"topic"`
}

// envBindings maps config keys to the environment variables that override
// them.
var envBindings = map[string]string{
	"port":               "PORT",
	"db_path":            "DB_PATH",
	"enable_test_routes": "ENABLE_TEST_ROUTES",
	"kafka.brokers":      "KAFKA_BROKERS",
	"kafka.topic":        "KAFKA_TOPIC",
}

// Load reads configuration. path may be empty, in which case only defaults
// and environment variables apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("port", "3000")
	v.SetDefault("db_path", "")
	v.SetDefault("enable_test_routes", true)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", events.DefaultSaleTopic)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// KAFKA_BROKERS arrives as one comma separated string.
	cfg.Kafka.Brokers = splitList(strings.Join(cfg.Kafka.Brokers, ","))
	if len(cfg.Machines) == 0 {
		cfg.Machines = catalog.Default()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail late at startup.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("config: port is required")
	}
	if _, err := catalog.New(c.Machines); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Addr is the listen address derived from Port.
func (c *Config) Addr() string {
	return ":" + c.Port
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

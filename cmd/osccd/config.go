package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Config is the daemon's YAML file configuration.
type Config struct {
	Channel string     `yaml:"channel"`
	Listen  string     `yaml:"listen"`
	DBPath  string     `yaml:"db_path"`
	MQTT    MQTTConfig `yaml:"mqtt"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
}

func defaultConfig() Config {
	return Config{
		Channel: "can0",
		Listen:  "0.0.0.0:8086",
		MQTT: MQTTConfig{
			ClientID: "osccd",
			Topic:    "vehicle/telemetry",
		},
	}
}

// loadConfig reads the YAML file at path over the defaults. A missing file
// just means defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	return cfg, nil
}

// EnvConfig overrides file configuration from the environment.
type EnvConfig struct {
	CONFIG  string `env:"OSCC_CONFIG" envDefault:"osccd.yaml"`
	CHANNEL string `env:"OSCC_CHANNEL"`
	LISTEN  string `env:"OSCC_LISTEN"`
	DEBUG   bool   `env:"DEBUG" envDefault:"false"`
}

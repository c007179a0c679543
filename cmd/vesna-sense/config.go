package main

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/icopavan/vesna-alh-tools/internal/alh"
	"github.com/icopavan/vesna-alh-tools/internal/sensing"
)

// Config is the application configuration, loaded from a YAML file and
// overridden by command line flags.
type Config struct {
	Node     NodeConfig     `yaml:"node"`
	Storage  StorageConfig  `yaml:"storage"`
	Settings SettingsConfig `yaml:"settings"`
}

// NodeConfig selects the node endpoint. Device takes precedence over URL
// when both are set.
type NodeConfig struct {
	URL     string `yaml:"url"`
	Cluster int    `yaml:"cluster"`
	Device  string `yaml:"device"`
}

type StorageConfig struct {
	Database string `yaml:"database"`
}

type SettingsConfig struct {
	LogLevel string `yaml:"logLevel"`
}

func DefaultConfig() *Config {
	return &Config{
		Settings: SettingsConfig{
			LogLevel: "info",
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration file: %w", err)
	}

	config := DefaultConfig()
	if err = yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing configuration file: %w", err)
	}

	return config, nil
}

// openNode builds the transport for the configured endpoint. The returned
// closer releases the serial console when one was opened.
func openNode() (alh.Node, func() error, error) {
	switch {
	case config.Node.Device != "":
		terminal, err := alh.OpenTerminal(config.Node.Device, alh.WithTerminalLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return terminal, terminal.Close, nil

	case config.Node.URL != "":
		web := alh.NewWeb(config.Node.URL, config.Node.Cluster, alh.WithWebLogger(logger))
		return web, func() error { return nil }, nil
	}

	return nil, nil, errors.New("no node endpoint configured, set --url or --device")
}

func openSensor() (*sensing.SpectrumSensor, func() error, error) {
	node, closer, err := openNode()
	if err != nil {
		return nil, nil, err
	}

	return sensing.New(node, sensing.WithLogger(logger)), closer, nil
}

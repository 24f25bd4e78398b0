// Package config loads the trainer configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"marginperceptron/logging"
)

// DatasetConfig names one dataset file to train on.
type DatasetConfig struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

type Config struct {
	Datasets []DatasetConfig `yaml:"datasets"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	HTTP struct {
		Port    int           `yaml:"port"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"http"`
	Log      logging.LogConfig `yaml:"log"`
	Training struct {
		Parallel     bool          `yaml:"parallel"`
		Timeout      time.Duration `yaml:"timeout"`
		TraceUpdates bool          `yaml:"trace_updates"`
		CacheSize    int           `yaml:"cache_size"`
	} `yaml:"training"`
	Watch struct {
		Enabled  bool          `yaml:"enabled"`
		Debounce time.Duration `yaml:"debounce"`
	} `yaml:"watch"`
}

// Default returns the configuration of the three reference datasets.
func Default() *Config {
	c := &Config{
		Datasets: []DatasetConfig{
			{Name: "2d", Path: "dataset/2d-r16-n10000.txt"},
			{Name: "4d", Path: "dataset/4d-r24-n10000.txt"},
			{Name: "8d", Path: "dataset/8d-r12-n10000.txt"},
		},
		Log: *logging.DefaultLogConfig(),
	}
	c.Database.Path = "data/perceptron.db"
	c.HTTP.Port = 8090
	c.HTTP.Timeout = 30 * time.Second
	c.Training.CacheSize = 16
	c.Watch.Debounce = 500 * time.Millisecond
	return c
}

// Load reads path over the defaults. Keys missing from the file keep their
// default values.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	config := Default()
	if err := yaml.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return config, nil
}

// Validate checks dataset entries and numeric settings.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Datasets))
	for i, d := range c.Datasets {
		if d.Name == "" {
			return fmt.Errorf("dataset %d: name is required", i)
		}
		if d.Path == "" {
			return fmt.Errorf("dataset %s: path is required", d.Name)
		}
		if seen[d.Name] {
			return fmt.Errorf("dataset %s: duplicate name", d.Name)
		}
		seen[d.Name] = true
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http port %d out of range", c.HTTP.Port)
	}
	if c.Training.Timeout < 0 {
		return fmt.Errorf("training timeout must not be negative")
	}
	if c.Training.CacheSize <= 0 {
		return fmt.Errorf("training cache_size must be positive")
	}
	return nil
}

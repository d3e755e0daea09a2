package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig   `yaml:"server"`
	Valkey  ValkeyConfig   `yaml:"valkey"`
	Journal JournalConfig  `yaml:"journal"`
	Log     LogConfig      `yaml:"log"`
	Monitor MonitorConfig  `yaml:"monitor"`
	Devices []DeviceConfig `yaml:"devices"`
}

type ServerConfig struct {
	// Transport is "valkey" or "tcp".
	Transport      string        `yaml:"transport"`
	Listen         string        `yaml:"listen"`
	MaxConnections int           `yaml:"max_connections"`
	ReceiveTimeout time.Duration `yaml:"receive_timeout"`
	HandlerTimeout time.Duration `yaml:"handler_timeout"`
}

type ValkeyConfig struct {
	Addr     string        `yaml:"addr"`
	Queue    string        `yaml:"queue"`
	ReplyTTL time.Duration `yaml:"reply_ttl"`
}

type JournalConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
	History  int    `yaml:"history"`
}

type LogConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type MonitorConfig struct {
	Enabled     bool `yaml:"enabled"`
	MetricsPort int  `yaml:"metrics_port"`
}

// DeviceConfig declares one instrument. Address is tcp://host:port or
// serial:///dev/ttyUSB0?baud=115200.
type DeviceConfig struct {
	Name         string        `yaml:"name"`
	Driver       string        `yaml:"driver"`
	Address      string        `yaml:"address"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	ChunkSize    int           `yaml:"chunk_size"`
	CheckErrors  bool          `yaml:"check_errors"`
}

// Drivers lists the accepted device drivers.
var Drivers = []string{"sdg6000x", "33600a"}

// MinUploadWriteTimeout is the shortest write timeout that reliably covers
// a large waveform upload.
const MinUploadWriteTimeout = 20 * time.Second

// Load reads a YAML configuration file on top of Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Transport:      "valkey",
			Listen:         "0.0.0.0:5555",
			MaxConnections: 64,
			ReceiveTimeout: time.Second,
			HandlerTimeout: 30 * time.Second,
		},
		Valkey: ValkeyConfig{
			Addr:     "localhost:6379",
			Queue:    "awg:requests",
			ReplyTTL: time.Minute,
		},
		Journal: JournalConfig{
			Addr:    "localhost:6379",
			Channel: "awg:events",
			History: 1000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Monitor: MonitorConfig{
			Enabled:     true,
			MetricsPort: 9090,
		},
	}
}

// Validate checks the configuration and returns every problem found.
// Warnings are conditions that work but are likely to fail under load.
func (c *Config) Validate() (warnings []string, err error) {
	switch c.Server.Transport {
	case "valkey":
		if c.Valkey.Addr == "" || c.Valkey.Queue == "" {
			err = multierr.Append(err, errors.New("valkey transport needs valkey.addr and valkey.queue"))
		}
	case "tcp":
		if c.Server.Listen == "" {
			err = multierr.Append(err, errors.New("tcp transport needs server.listen"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("unknown transport %q", c.Server.Transport))
	}

	seen := make(map[string]bool, len(c.Devices))
	for i, d := range c.Devices {
		if d.Name == "" {
			err = multierr.Append(err, fmt.Errorf("device %d has no name", i))
		} else if seen[d.Name] {
			err = multierr.Append(err, fmt.Errorf("device %s declared twice", d.Name))
		}
		seen[d.Name] = true

		if !knownDriver(d.Driver) {
			err = multierr.Append(err, fmt.Errorf("device %s: unknown driver %q", d.Name, d.Driver))
		}
		if d.Address == "" {
			err = multierr.Append(err, fmt.Errorf("device %s has no address", d.Name))
		}
		if d.WriteTimeout > 0 && d.WriteTimeout < MinUploadWriteTimeout {
			warnings = append(warnings, fmt.Sprintf("device %s: write timeout %s is below %s, large uploads may time out",
				d.Name, d.WriteTimeout, MinUploadWriteTimeout))
		}
	}
	return warnings, err
}

func knownDriver(name string) bool {
	for _, d := range Drivers {
		if d == name {
			return true
		}
	}
	return false
}

// Package config provides the configuration of the Progressor emulator
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fako1024/progressor/pkg/progressor"
	"gopkg.in/yaml.v3"
)

// Transport kinds
const (
	TransportBLE    = "ble"
	TransportSerial = "serial"
	TransportNone   = "none"
)

// Store kinds
const (
	StoreNone  = "none"
	StoreFile  = "file"
	StoreRedis = "redis"
)

// Config holds all emulator configuration
type Config struct {
	LogLevel  string          `yaml:"log_level"`
	Device    DeviceConfig    `yaml:"device"`
	HX711     HX711Config     `yaml:"hx711"`
	Sampling  SamplingConfig  `yaml:"sampling"`
	Transport TransportConfig `yaml:"transport"`
	API       APIConfig       `yaml:"api"`
	Store     StoreConfig     `yaml:"store"`
	Mock      MockConfig      `yaml:"mock"`
}

// DeviceConfig holds the identity reported to clients
type DeviceConfig struct {
	Name    string `yaml:"name"`
	ID      uint64 `yaml:"id"`
	Version string `yaml:"version"`
}

// HX711Config holds the load cell settings
type HX711Config struct {
	ClockPin           string        `yaml:"clock_pin"`
	DataPin            string        `yaml:"data_pin"`
	Gain               string        `yaml:"gain"` // "A128", "B32" or "A64"
	TareSamples        int           `yaml:"tare_samples"`
	MeasurementSamples int           `yaml:"measurement_samples"`
	CalibrationSamples int           `yaml:"calibration_samples"`
	Factor             float32       `yaml:"factor"`
	Offset             float32       `yaml:"offset"`
	PulseDelay         time.Duration `yaml:"pulse_delay"`
}

// SamplingConfig holds the scheduler settings
type SamplingConfig struct {
	Period    time.Duration `yaml:"period"`
	QueueSize int           `yaml:"queue_size"`
}

// TransportConfig holds the link settings
type TransportConfig struct {
	Kind     string `yaml:"kind"`
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// APIConfig holds the diagnostics API settings
type APIConfig struct {
	Listen string `yaml:"listen"` // empty disables the API
}

// StoreConfig holds the calibration persistence settings
type StoreConfig struct {
	Kind      string `yaml:"kind"`
	Path      string `yaml:"path"`
	RedisAddr string `yaml:"redis_addr"`
	RedisKey  string `yaml:"redis_key"`
}

// MockConfig holds the settings of the simulated load cell
type MockConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Zero        int32         `yaml:"zero"`
	CountsPerKg float64       `yaml:"counts_per_kg"`
	PeakKg      float64       `yaml:"peak_kg"`
	Period      time.Duration `yaml:"period"`
	Noise       int32         `yaml:"noise"`
}

// DefaultConfigPath returns the default config file path
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "progressor.yaml"
	}
	return filepath.Join(home, ".config", "progressor", "config.yaml")
}

// Default returns a Config with default values
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Device: DeviceConfig{
			Name:    "Progressor_2639",
			ID:      0x2639,
			Version: "1.2.3.4",
		},
		HX711: HX711Config{
			ClockPin:           "GPIO5",
			DataPin:            "GPIO6",
			Gain:               "A64",
			TareSamples:        10,
			MeasurementSamples: 20,
			CalibrationSamples: 20,
			Factor:             1.3145,
			Offset:             -3.8790,
			PulseDelay:         time.Microsecond,
		},
		Sampling: SamplingConfig{
			Period:    12500 * time.Microsecond,
			QueueSize: 64,
		},
		Transport: TransportConfig{
			Kind:     TransportBLE,
			Port:     "/dev/ttyUSB0",
			BaudRate: 115200,
		},
		API: APIConfig{
			Listen: "127.0.0.1:8080",
		},
		Store: StoreConfig{
			Kind:      StoreFile,
			Path:      filepath.Join(os.TempDir(), "progressor-calibration.yaml"),
			RedisAddr: "127.0.0.1:6379",
			RedisKey:  "progressor:calibration",
		},
		Mock: MockConfig{
			Zero:        8000,
			CountsPerKg: 760,
			PeakKg:      40,
			Period:      6 * time.Second,
			Noise:       20,
		},
	}
}

// Load reads and parses a YAML config file. Missing fields are filled with defaults,
// a missing file yields the defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// Save writes the config to a YAML file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks the config for invalid values
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	if c.Device.Name == "" {
		return fmt.Errorf("device.name must not be empty")
	}
	if _, err := progressor.NewAppVersion(c.Device.Version); err != nil {
		return fmt.Errorf("device.version: %w", err)
	}

	switch c.HX711.Gain {
	case "A128", "B32", "A64":
	default:
		return fmt.Errorf("hx711.gain must be A128, B32, or A64, got %q", c.HX711.Gain)
	}
	if c.HX711.TareSamples <= 0 || c.HX711.MeasurementSamples <= 0 || c.HX711.CalibrationSamples <= 0 {
		return fmt.Errorf("hx711 sample counts must be > 0")
	}
	if c.HX711.Factor == 0 {
		return fmt.Errorf("hx711.factor must not be zero")
	}
	if !c.Mock.Enabled && (c.HX711.ClockPin == "" || c.HX711.DataPin == "") {
		return fmt.Errorf("hx711.clock_pin and hx711.data_pin must not be empty")
	}

	if c.Sampling.Period <= 0 {
		return fmt.Errorf("sampling.period must be > 0")
	}
	if c.Sampling.QueueSize <= 0 {
		return fmt.Errorf("sampling.queue_size must be > 0")
	}

	switch c.Transport.Kind {
	case TransportBLE, TransportNone:
	case TransportSerial:
		if c.Transport.Port == "" || c.Transport.BaudRate <= 0 {
			return fmt.Errorf("transport.port and transport.baud_rate are required for the serial transport")
		}
	default:
		return fmt.Errorf("transport.kind must be ble, serial, or none, got %q", c.Transport.Kind)
	}

	switch c.Store.Kind {
	case StoreNone:
	case StoreFile:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path must not be empty")
		}
	case StoreRedis:
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("store.redis_addr must not be empty")
		}
	default:
		return fmt.Errorf("store.kind must be none, file, or redis, got %q", c.Store.Kind)
	}

	if c.Mock.Enabled && c.Mock.CountsPerKg <= 0 {
		return fmt.Errorf("mock.counts_per_kg must be > 0")
	}

	return nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fako1024/progressor/pkg/progressor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	require.Nil(t, cfg.Validate())
	assert.Equal(t, "Progressor_2639", cfg.Device.Name)
	assert.Equal(t, "A64", cfg.HX711.Gain)
	assert.Equal(t, 10, cfg.HX711.TareSamples)
	assert.Equal(t, float32(1.3145), cfg.HX711.Factor)
	assert.Equal(t, 12500*time.Microsecond, cfg.Sampling.Period)
	assert.Equal(t, TransportBLE, cfg.Transport.Kind)
}

func TestLoad(t *testing.T) {
	content := `
log_level: debug
device:
  id: 42
hx711:
  gain: A128
  pulse_delay: 2us
sampling:
  period: 25ms
transport:
  kind: serial
  port: /dev/ttyACM0
store:
  kind: redis
mock:
  enabled: true
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.Nil(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.Nil(t, err)
	require.Nil(t, cfg.Validate())

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, uint64(42), cfg.Device.ID)
	assert.Equal(t, "Progressor_2639", cfg.Device.Name, "missing fields keep their default")
	assert.Equal(t, "A128", cfg.HX711.Gain)
	assert.Equal(t, 2*time.Microsecond, cfg.HX711.PulseDelay)
	assert.Equal(t, 25*time.Millisecond, cfg.Sampling.Period)
	assert.Equal(t, 64, cfg.Sampling.QueueSize)
	assert.Equal(t, TransportSerial, cfg.Transport.Kind)
	assert.Equal(t, "/dev/ttyACM0", cfg.Transport.Port)
	assert.Equal(t, 115200, cfg.Transport.BaudRate)
	assert.Equal(t, StoreRedis, cfg.Store.Kind)
	assert.True(t, cfg.Mock.Enabled)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.Nil(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.Nil(t, os.WriteFile(path, []byte("sampling: [broken"), 0o644))

	_, err := Load(path)
	assert.NotNil(t, err)
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg := Default()
	cfg.Device.ID = 7
	cfg.Sampling.Period = 10 * time.Millisecond
	require.Nil(t, cfg.Save(path))

	loaded, err := Load(path)
	require.Nil(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"log level":      func(c *Config) { c.LogLevel = "verbose" },
		"device name":    func(c *Config) { c.Device.Name = "" },
		"device version": func(c *Config) { c.Device.Version = "1.2.3.4.5.6.7" },
		"gain":           func(c *Config) { c.HX711.Gain = "A32" },
		"tare samples":   func(c *Config) { c.HX711.TareSamples = 0 },
		"factor":         func(c *Config) { c.HX711.Factor = 0 },
		"pins":           func(c *Config) { c.HX711.DataPin = "" },
		"period":         func(c *Config) { c.Sampling.Period = 0 },
		"queue size":     func(c *Config) { c.Sampling.QueueSize = -1 },
		"transport":      func(c *Config) { c.Transport.Kind = "usb" },
		"serial port":    func(c *Config) { c.Transport.Kind, c.Transport.Port = TransportSerial, "" },
		"store":          func(c *Config) { c.Store.Kind = "sql" },
		"store path":     func(c *Config) { c.Store.Path = "" },
		"redis addr":     func(c *Config) { c.Store.Kind, c.Store.RedisAddr = StoreRedis, "" },
		"mock counts":    func(c *Config) { c.Mock.Enabled, c.Mock.CountsPerKg = true, 0 },
	} {
		cfg := Default()
		mutate(cfg)
		assert.NotNil(t, cfg.Validate(), name)
	}

	cfg := Default()
	cfg.Device.Version = "0123456789abc"
	assert.ErrorIs(t, cfg.Validate(), progressor.ErrPayloadTooLarge)

	cfg = Default()
	cfg.Mock.Enabled = true
	cfg.HX711.ClockPin = ""
	assert.Nil(t, cfg.Validate(), "pins are not required in mock mode")
}

//go:build !tinygo

package hx711

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// PeriphClock drives PD_SCK through a periph.io GPIO
type PeriphClock struct {
	pin gpio.PinOut
}

// Set drives the clock line. Out only fails for pins that could not be configured
// as output, which NewPeriphPins already rules out
func (c *PeriphClock) Set(high bool) {
	_ = c.pin.Out(gpio.Level(high))
}

// PeriphData samples DOUT through a periph.io GPIO with falling edge detection
type PeriphData struct {
	pin gpio.PinIn
}

// Get returns the level of the data line
func (d *PeriphData) Get() bool {
	return d.pin.Read() == gpio.High
}

// WaitForLow blocks until a falling edge is seen or the timeout expires
func (d *PeriphData) WaitForLow(timeout time.Duration) bool {
	return d.pin.WaitForEdge(timeout)
}

// NewPeriphPins initializes the host drivers and opens the named clock and data pins
// (e.g. "GPIO5", "GPIO6" on a Raspberry Pi)
func NewPeriphPins(clockName, dataName string) (*PeriphClock, *PeriphData, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize host drivers: %w", err)
	}

	clock := gpioreg.ByName(clockName)
	if clock == nil {
		return nil, nil, fmt.Errorf("failed to find clock pin `%s`", clockName)
	}
	if err := clock.Out(gpio.Low); err != nil {
		return nil, nil, fmt.Errorf("failed to configure clock pin `%s`: %w", clockName, err)
	}

	data := gpioreg.ByName(dataName)
	if data == nil {
		return nil, nil, fmt.Errorf("failed to find data pin `%s`", dataName)
	}
	if err := data.In(gpio.PullNoChange, gpio.FallingEdge); err != nil {
		return nil, nil, fmt.Errorf("failed to configure data pin `%s`: %w", dataName, err)
	}

	return &PeriphClock{pin: clock}, &PeriphData{pin: data}, nil
}

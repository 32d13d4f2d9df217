//go:build tinygo

package hx711

import "machine"

// MachineClock drives PD_SCK from a TinyGo machine pin
type MachineClock struct {
	pin machine.Pin
}

// NewMachineClock configures the pin as output, driven low
func NewMachineClock(pin machine.Pin) *MachineClock {
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pin.Low()
	return &MachineClock{pin: pin}
}

// Set drives the clock line
func (c *MachineClock) Set(high bool) {
	c.pin.Set(high)
}

// MachineData samples DOUT from a TinyGo machine pin
type MachineData struct {
	pin machine.Pin
}

// NewMachineData configures the pin as input
func NewMachineData(pin machine.Pin) *MachineData {
	pin.Configure(machine.PinConfig{Mode: machine.PinInput})
	return &MachineData{pin: pin}
}

// Get returns the level of the data line
func (d *MachineData) Get() bool {
	return d.pin.Get()
}

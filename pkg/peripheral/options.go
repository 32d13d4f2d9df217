package peripheral

import (
	"github.com/fako1024/gatt"
	"github.com/fako1024/progressor/pkg/scale"
)

// WithDeviceName sets the advertised device name
func WithDeviceName(deviceName string) func(*Peripheral) {
	return func(p *Peripheral) {
		p.deviceName = deviceName
	}
}

// WithDevice sets the Bluetooth device
func WithDevice(btDevice gatt.Device) func(*Peripheral) {
	return func(p *Peripheral) {
		p.btDevice = btDevice
	}
}

// WithLogger sets a logger
func WithLogger(logger scale.Logger) func(*Peripheral) {
	return func(p *Peripheral) {
		p.logger = logger
	}
}

package hx711

import (
	"time"

	"github.com/fako1024/progressor/pkg/scale"
)

// WithGainMode sets the channel / gain used for all conversions
func WithGainMode(gain GainMode) func(*Device) {
	return func(d *Device) {
		d.gain = gain
	}
}

// WithCalibration sets the initial calibration
func WithCalibration(c scale.Calibration) func(*Device) {
	return func(d *Device) {
		d.calibration = c
	}
}

// WithPulseDelay sets the duration of each clock level
func WithPulseDelay(delay time.Duration) func(*Device) {
	return func(d *Device) {
		d.pulseDelay = delay
	}
}

// WithTareInterval sets the pause between consecutive tare samples
func WithTareInterval(interval time.Duration) func(*Device) {
	return func(d *Device) {
		d.tareInterval = interval
	}
}

// WithPollInterval sets the interval used while waiting for a conversion
func WithPollInterval(interval time.Duration) func(*Device) {
	return func(d *Device) {
		d.pollInterval = interval
	}
}

// WithMeasurementSamples sets the number of readings averaged per measurement
func WithMeasurementSamples(n int) func(*Device) {
	return func(d *Device) {
		if n > 0 {
			d.samples = n
		}
	}
}

// WithCriticalSection overrides the mechanism guarding a conversion frame
func WithCriticalSection(cs CriticalSection) func(*Device) {
	return func(d *Device) {
		d.critical = cs
	}
}

// WithDelay overrides the short delay used between clock edges
func WithDelay(fn func(time.Duration)) func(*Device) {
	return func(d *Device) {
		d.delay = fn
	}
}

// WithLogger sets a logger
func WithLogger(logger scale.Logger) func(*Device) {
	return func(d *Device) {
		d.logger = logger
	}
}

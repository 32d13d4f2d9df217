package emulator

import (
	"time"

	"github.com/fako1024/progressor/pkg/progressor"
	"github.com/fako1024/progressor/pkg/scale"
)

// WithProgressorID sets the identifier reported in response to GetProgressorId
func WithProgressorID(id uint64) func(*Emulator) {
	return func(e *Emulator) {
		e.id = progressor.ProgressorID(id)
	}
}

// WithAppVersion sets the version reported in response to GetAppVersion. New fails
// for versions exceeding the payload size
func WithAppVersion(version string) func(*Emulator) {
	return func(e *Emulator) {
		e.version = version
	}
}

// WithPeriod sets the sampling period
func WithPeriod(period time.Duration) func(*Emulator) {
	return func(e *Emulator) {
		e.period = period
	}
}

// WithQueueSize sets the capacity of the outbox
func WithQueueSize(n int) func(*Emulator) {
	return func(e *Emulator) {
		e.queueSize = n
	}
}

// WithTareSamples sets the number of conversions averaged per tare
func WithTareSamples(n int) func(*Emulator) {
	return func(e *Emulator) {
		e.tareSamples = n
	}
}

// WithCalibrationSamples sets the number of conversions averaged per calibration point
func WithCalibrationSamples(n int) func(*Emulator) {
	return func(e *Emulator) {
		e.calibrationSamples = n
	}
}

// WithClock sets the uptime source for measurement timestamps
func WithClock(clock Clock) func(*Emulator) {
	return func(e *Emulator) {
		e.clock = clock
	}
}

// WithStore sets a persistence backend for the calibration
func WithStore(s CalibrationStore) func(*Emulator) {
	return func(e *Emulator) {
		e.store = s
	}
}

// WithReadingHandler sets a handler function that is called for each measured sample
func WithReadingHandler(fn func(r scale.Reading)) func(*Emulator) {
	return func(e *Emulator) {
		e.readingHandler = fn
	}
}

// WithLogger sets a logger
func WithLogger(logger scale.Logger) func(*Emulator) {
	return func(e *Emulator) {
		e.logger = logger
	}
}

package scale

import "context"

// LoadCell denotes a load cell front end that can be tared, calibrated and read
type LoadCell interface {

	// Tare establishes a new zero baseline from n consecutive conversions
	Tare(ctx context.Context, n int) error

	// Measure waits for a conversion and returns the averaged weight in kilograms
	Measure(ctx context.Context) (float32, error)

	// RawAverage returns the tare-adjusted average of n raw conversions
	RawAverage(ctx context.Context, n int) (int32, error)

	// Calibration returns the active calibration
	Calibration() Calibration

	// SetCalibration replaces the active calibration
	SetCalibration(c Calibration)

	// ResetCalibration restores the compiled-in factor and offset
	ResetCalibration()
}

// Calibrator denotes a load cell that can derive its calibration from reference points
type Calibrator interface {

	// ApplyCalibrationPoints fits factor and offset to (raw, weight) pairs
	ApplyCalibrationPoints(raws []int32, weights []float32) error
}

// Link denotes a transport that delivers control writes and data point notifications
type Link interface {

	// ConnectionStatus returns the current status of the link
	ConnectionStatus() ConnectionStatus

	// SetStateChangeHandler defines a handler function that is called upon state change
	SetStateChangeHandler(fn func(status ConnectionStatus))

	// Close terminates the link
	Close() error
}

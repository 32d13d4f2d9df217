// Package store persists the load cell calibration across restarts
package store

import "github.com/fako1024/progressor/pkg/scale"

// ErrNotFound denotes that no calibration has been stored yet
var ErrNotFound = scale.ErrNoCalibration

// Store denotes a persistence backend for the calibration
type Store interface {

	// Load returns the stored calibration or ErrNotFound
	Load() (scale.Calibration, error)

	// Save replaces the stored calibration
	Save(c scale.Calibration) error
}

package scale

import (
	"errors"
	"time"
)

// Unit denotes the unit of the weight measurement
type Unit string

// UnitKilograms denotes the unit reported over the wire
const UnitKilograms Unit = "kg"

// State denotes the state of the wireless link
type State int

const (

	// StateAdvertising is active while waiting for a central to connect
	StateAdvertising State = iota

	// StateConnected is active while a central is connected
	StateConnected

	// StateDisconnected is active after the link was lost and before advertising resumes
	StateDisconnected
)

// String returns a human-readable representation of the state
func (s State) String() string {
	switch s {
	case StateAdvertising:
		return "advertising"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// ConnectionStatus denotes the current status of the wireless link
type ConnectionStatus struct {
	Error error
	State
}

// ErrNoCalibration denotes that no calibration has been persisted yet
var ErrNoCalibration = errors.New("no stored calibration")

// Calibration denotes the conversion of a raw load cell count into a physical value:
// value = (raw - Tare) * Factor - Offset
type Calibration struct {
	Factor float32 `yaml:"factor" json:"factor"`
	Offset float32 `yaml:"offset" json:"offset"`
	Tare   int32   `yaml:"tare" json:"tare"`
}

// Apply converts a raw count into a calibrated value
func (c Calibration) Apply(raw int32) float32 {
	return float32(raw-c.Tare)*c.Factor - c.Offset
}

// Reading denotes a weight measurement at a certain point in time
type Reading struct {
	TimeStamp time.Time `json:"timestamp"`
	Micros    uint32    `json:"micros"`
	Unit      Unit      `json:"unit"`
	Weight    float32   `json:"weight"`
}

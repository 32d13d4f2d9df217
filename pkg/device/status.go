package device

import "fmt"

// Mode denotes the measurement mode of the device
type Mode int

const (

	// ModeDisabled denotes an idle device (initial mode)
	ModeDisabled Mode = iota

	// ModeEnabled denotes active sampling
	ModeEnabled

	// ModeTare denotes a pending explicit tare
	ModeTare

	// ModeSoftTare denotes a pending implicit tare preceding a measurement
	ModeSoftTare

	// ModeCalibration denotes a pending calibration point
	ModeCalibration

	// ModeDefaultCalibration denotes a pending reset to the factory calibration
	ModeDefaultCalibration
)

var modeNames = map[Mode]string{
	ModeDisabled:           "disabled",
	ModeEnabled:            "enabled",
	ModeTare:               "tare",
	ModeSoftTare:           "soft_tare",
	ModeCalibration:        "calibration",
	ModeDefaultCalibration: "default_calibration",
}

// String returns a human-readable representation of the mode
func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// MarshalText renders the mode by name
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// IsTare returns if the mode requests a tare cycle
func (m Mode) IsTare() bool {
	return m == ModeTare || m == ModeSoftTare
}

// IsCalibration returns if the mode requests a calibration cycle
func (m Mode) IsCalibration() bool {
	return m == ModeCalibration || m == ModeDefaultCalibration
}

// MeasurementStatus denotes the measurement mode along with its argument
type MeasurementStatus struct {
	Mode Mode `json:"mode"`

	// Weight is the target weight (kg) of ModeCalibration
	Weight float32 `json:"weight,omitempty"`
}

// String returns a human-readable representation of the status
func (s MeasurementStatus) String() string {
	if s.Mode == ModeCalibration {
		return fmt.Sprintf("%s(%g)", s.Mode, s.Weight)
	}
	return s.Mode.String()
}

// CalibrationPoint denotes a tare-adjusted raw value measured for a reference weight
type CalibrationPoint struct {
	Raw    int32   `json:"raw"`
	Weight float32 `json:"weight"`
}

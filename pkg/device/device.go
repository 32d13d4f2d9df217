// Package device holds the measurement state shared between command handling and sampling
package device

import (
	"sync"

	"github.com/fako1024/progressor/pkg/progressor"
)

// MaxCalibrationPoints is the number of calibration points retained for a fit
const MaxCalibrationPoints = 2

// Transition denotes the effect of a command on the measurement status
type Transition struct {
	From MeasurementStatus
	To   MeasurementStatus
}

// Changed returns if the transition altered the status
func (t Transition) Changed() bool {
	return t.From != t.To
}

// Snapshot denotes a consistent copy of the device state
type Snapshot struct {
	Status            MeasurementStatus  `json:"status"`
	Tared             bool               `json:"tared"`
	StartTime         uint64             `json:"start_time_us"`
	CalibrationPoints []CalibrationPoint `json:"calibration_points"`
}

// State denotes the device state. All accessors hold the lock for a handful of field
// accesses only and never across sensor I/O
type State struct {
	status    MeasurementStatus
	tared     bool
	startTime uint64
	points    []CalibrationPoint

	mu sync.Mutex
}

// New instantiates a new, disabled device state
func New() *State {
	return &State{
		points: make([]CalibrationPoint, 0, MaxCalibrationPoints),
	}
}

// Apply performs the transition associated with a decoded command. now denotes the
// current device uptime in microseconds
func (s *State) Apply(cmd progressor.Command, now uint64) Transition {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := Transition{From: s.status}

	switch cmd.OpCode {
	case progressor.OpTareScale:
		s.status = MeasurementStatus{Mode: ModeTare}
	case progressor.OpStartMeasurement:
		s.startTime = now
		if s.tared {
			s.status = MeasurementStatus{Mode: ModeEnabled}
		} else {
			s.status = MeasurementStatus{Mode: ModeSoftTare}
		}
	case progressor.OpStopMeasurement:
		s.status = MeasurementStatus{Mode: ModeDisabled}
	case progressor.OpAddCalibrationPoint:
		s.status = MeasurementStatus{Mode: ModeCalibration, Weight: cmd.Weight}
	case progressor.OpDefaultCalibration:
		s.status = MeasurementStatus{Mode: ModeDefaultCalibration}
	}

	t.To = s.status
	return t
}

// Status returns the current measurement status
func (s *State) Status() MeasurementStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.status
}

// StartTime returns the uptime (µs) at which the current measurement was started
func (s *State) StartTime() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.startTime
}

// IsTared returns if a tare has been completed at least once
func (s *State) IsTared() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tared
}

// Stop disables sampling, e.g. once the link is lost
func (s *State) Stop() Transition {
	return s.Apply(progressor.Command{OpCode: progressor.OpStopMeasurement}, 0)
}

// CompleteTare marks a tare cycle as done. If the status still equals the one the cycle
// was started for, a soft tare proceeds to sampling and an explicit tare to idle. Any
// command received in the meantime takes precedence
func (s *State) CompleteTare(expected MeasurementStatus) (MeasurementStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tared = true
	if s.status != expected {
		return s.status, false
	}

	if expected.Mode == ModeSoftTare {
		s.status = MeasurementStatus{Mode: ModeEnabled}
	} else {
		s.status = MeasurementStatus{Mode: ModeDisabled}
	}

	return s.status, true
}

// CompleteCalibration reverts to idle once a calibration cycle is done, unless the status
// changed in the meantime
func (s *State) CompleteCalibration(expected MeasurementStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != expected {
		return false
	}
	s.status = MeasurementStatus{Mode: ModeDisabled}

	return true
}

// AddCalibrationPoint records a calibration point, replacing the oldest one once full,
// and returns a copy of the retained points in insertion order
func (s *State) AddCalibrationPoint(p CalibrationPoint) []CalibrationPoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.points) == MaxCalibrationPoints {
		copy(s.points, s.points[1:])
		s.points = s.points[:MaxCalibrationPoints-1]
	}
	s.points = append(s.points, p)

	return append([]CalibrationPoint(nil), s.points...)
}

// ClearCalibrationPoints drops all recorded calibration points
func (s *State) ClearCalibrationPoints() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.points = s.points[:0]
}

// Snapshot returns a consistent copy of the device state
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		Status:            s.status,
		Tared:             s.tared,
		StartTime:         s.startTime,
		CalibrationPoints: append([]CalibrationPoint{}, s.points...),
	}
}

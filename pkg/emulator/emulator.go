// Package emulator implements the Progressor command dispatcher and sample scheduler on
// top of a load cell
package emulator

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fako1024/progressor/pkg/device"
	"github.com/fako1024/progressor/pkg/progressor"
	"github.com/fako1024/progressor/pkg/scale"
)

const (

	// DefaultPeriod is the sampling period (80 Hz)
	DefaultPeriod = 12500 * time.Microsecond

	// DefaultQueueSize is the capacity of the outbox
	DefaultQueueSize = 64

	// DefaultTareSamples is the number of conversions averaged per tare
	DefaultTareSamples = 10

	// DefaultCalibrationSamples is the number of conversions averaged per calibration point
	DefaultCalibrationSamples = 20

	// DefaultAppVersion is reported in response to GetAppVersion
	DefaultAppVersion = "1.2.3.4"

	// DropReportInterval is the number of dropped samples between two warnings
	DropReportInterval = 80
)

// LoadCell denotes a load cell that can be sampled and calibrated
type LoadCell interface {
	scale.LoadCell
	scale.Calibrator
}

// CalibrationStore denotes a persistence backend for the calibration. Load returns
// scale.ErrNoCalibration if nothing has been stored yet
type CalibrationStore interface {
	Load() (scale.Calibration, error)
	Save(c scale.Calibration) error
}

// Stats denotes the emulator counters
type Stats struct {
	CommandsHandled  uint64 `json:"commands_handled"`
	DecodeErrors     uint64 `json:"decode_errors"`
	ResponsesDropped uint64 `json:"responses_dropped"`
	SamplesSent      uint64 `json:"samples_sent"`
	SamplesDropped   uint64 `json:"samples_dropped"`
	MeasureErrors    uint64 `json:"measure_errors"`
	QueueLength      int    `json:"queue_length"`
	QueueCapacity    int    `json:"queue_capacity"`
}

// Emulator denotes a Progressor device: it decodes control writes, drives the device
// state and produces data points into the outbox
type Emulator struct {
	state  *device.State
	cell   LoadCell
	outbox *Outbox
	clock  Clock
	store  CalibrationStore

	id         progressor.ProgressorID
	version    string
	appVersion progressor.AppVersion

	period             time.Duration
	queueSize          int
	tareSamples        int
	calibrationSamples int

	readingHandler func(r scale.Reading)
	handlerMu      sync.RWMutex

	commandsHandled  atomic.Uint64
	decodeErrors     atomic.Uint64
	responsesDropped atomic.Uint64
	samplesSent      atomic.Uint64
	samplesDropped   atomic.Uint64
	measureErrors    atomic.Uint64

	logger scale.Logger
}

// New instantiates a new emulator for the given load cell, executing functional options, if any
func New(cell LoadCell, options ...func(*Emulator)) (*Emulator, error) {

	e := &Emulator{
		state:              device.New(),
		cell:               cell,
		version:            DefaultAppVersion,
		period:             DefaultPeriod,
		queueSize:          DefaultQueueSize,
		tareSamples:        DefaultTareSamples,
		calibrationSamples: DefaultCalibrationSamples,
		logger:             &scale.NullLogger{},
	}

	// Execute functional options (if any), see options.go for implementation
	for _, option := range options {
		option(e)
	}

	if e.cell == nil {
		return nil, errors.New("no load cell provided")
	}
	if e.period <= 0 {
		return nil, fmt.Errorf("invalid sampling period: %v", e.period)
	}
	if e.tareSamples <= 0 || e.calibrationSamples <= 0 {
		return nil, fmt.Errorf("invalid sample counts (tare: %d, calibration: %d)", e.tareSamples, e.calibrationSamples)
	}

	appVersion, err := progressor.NewAppVersion(e.version)
	if err != nil {
		return nil, fmt.Errorf("invalid app version: %w", err)
	}
	e.appVersion = appVersion

	if e.clock == nil {
		e.clock = NewUptimeClock()
	}
	e.outbox = NewOutbox(e.queueSize)

	return e, nil
}

// Restore applies a previously persisted calibration, if any
func (e *Emulator) Restore() error {
	if e.store == nil {
		return nil
	}

	c, err := e.store.Load()
	if err != nil {
		if errors.Is(err, scale.ErrNoCalibration) {
			e.logger.Debug("no stored calibration, using defaults")
			return nil
		}
		return fmt.Errorf("failed to load calibration: %w", err)
	}

	e.cell.SetCalibration(c)
	e.logger.Infof("restored calibration (factor %.6f, offset %.4f, tare %d)", c.Factor, c.Offset, c.Tare)

	return nil
}

// Outbox returns the queue of data points awaiting notification
func (e *Emulator) Outbox() *Outbox {
	return e.outbox
}

// State returns a snapshot of the device state
func (e *Emulator) State() device.Snapshot {
	return e.state.Snapshot()
}

// Calibration returns the active load cell calibration
func (e *Emulator) Calibration() scale.Calibration {
	return e.cell.Calibration()
}

// Disconnected stops an ongoing measurement and discards pending data points once the
// link is lost
func (e *Emulator) Disconnected() {
	if tr := e.state.Stop(); tr.Changed() {
		e.logger.Infof("link lost, measurement status %s -> %s", tr.From, tr.To)
	}
	if n := e.outbox.Drain(); n > 0 {
		e.logger.Debugf("discarded %d pending data points", n)
	}
}

// SetReadingHandler defines a handler function that is called for each measured sample
func (e *Emulator) SetReadingHandler(fn func(r scale.Reading)) {
	e.handlerMu.Lock()
	defer e.handlerMu.Unlock()

	e.readingHandler = fn
}

// Stats returns the current counters
func (e *Emulator) Stats() Stats {
	return Stats{
		CommandsHandled:  e.commandsHandled.Load(),
		DecodeErrors:     e.decodeErrors.Load(),
		ResponsesDropped: e.responsesDropped.Load(),
		SamplesSent:      e.samplesSent.Load(),
		SamplesDropped:   e.samplesDropped.Load(),
		MeasureErrors:    e.measureErrors.Load(),
		QueueLength:      e.outbox.Len(),
		QueueCapacity:    e.outbox.Cap(),
	}
}

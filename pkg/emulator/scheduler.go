package emulator

import (
	"context"
	"errors"
	"time"

	"github.com/fako1024/progressor/pkg/device"
	"github.com/fako1024/progressor/pkg/progressor"
	"github.com/fako1024/progressor/pkg/scale"
)

// Run executes the sample scheduler until the context is canceled. Each period it acts
// upon the current measurement status: sampling, taring or calibrating
func (e *Emulator) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.period)
	defer ticker.Stop()

	e.logger.Debugf("sample scheduler running at a period of %v", e.period)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

////////////////////////////////////////////////////////////////////////////////

// tick reads the status under lock, the sensor I/O it triggers runs unlocked
func (e *Emulator) tick(ctx context.Context) {
	status := e.state.Status()

	switch {
	case status.Mode == device.ModeEnabled:
		e.sample(ctx)
	case status.Mode.IsTare():
		e.tare(ctx, status)
	case status.Mode.IsCalibration():
		e.calibrate(ctx, status)
	}
}

func (e *Emulator) sample(ctx context.Context) {
	weight, err := e.cell.Measure(ctx)
	if err != nil {
		if ctx.Err() == nil {
			e.measureErrors.Add(1)
			e.logger.Debugf("failed to measure: %s", err)
		}
		return
	}

	now := e.clock.Micros()
	start := e.state.StartTime()
	var micros uint32
	if now > start {
		micros = uint32(now - start)
	}

	e.emitReading(scale.Reading{
		TimeStamp: time.Now(),
		Micros:    micros,
		Unit:      scale.UnitKilograms,
		Weight:    weight,
	})

	dp := progressor.Encode(progressor.WeightMeasurement{
		Weight:    weight,
		Timestamp: micros,
	})
	if err := e.outbox.TryPush(dp); err != nil {
		dropped := e.samplesDropped.Add(1)
		e.logger.Debugf("dropping sample %.3fkg at %dus: %s", weight, micros, err)
		if dropped%DropReportInterval == 0 {
			e.logger.Warnf("outbox full, %d samples dropped so far", dropped)
		}
		return
	}
	e.samplesSent.Add(1)
}

func (e *Emulator) tare(ctx context.Context, status device.MeasurementStatus) {
	if err := e.cell.Tare(ctx, e.tareSamples); err != nil {
		if !errors.Is(err, context.Canceled) {
			e.logger.Errorf("failed to tare: %s", err)
		}
		return
	}

	next, ok := e.state.CompleteTare(status)
	if ok {
		e.logger.Infof("tare completed (value %d), measurement status %s -> %s", e.cell.Calibration().Tare, status, next)
	} else {
		e.logger.Infof("tare completed (value %d), status changed to %s meanwhile", e.cell.Calibration().Tare, next)
	}

	e.persist()
}

func (e *Emulator) calibrate(ctx context.Context, status device.MeasurementStatus) {
	if status.Mode == device.ModeDefaultCalibration {
		e.cell.ResetCalibration()
		e.state.ClearCalibrationPoints()
		e.logger.Info("calibration reset to defaults")
	} else {
		raw, err := e.cell.RawAverage(ctx, e.calibrationSamples)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				e.logger.Errorf("failed to sample calibration point: %s", err)
			}
			return
		}

		points := e.state.AddCalibrationPoint(device.CalibrationPoint{Raw: raw, Weight: status.Weight})
		raws, weights := make([]int32, len(points)), make([]float32, len(points))
		for i, p := range points {
			raws[i], weights[i] = p.Raw, p.Weight
		}

		if err := e.cell.ApplyCalibrationPoints(raws, weights); err != nil {
			e.logger.Warnf("failed to apply calibration point %gkg (raw %d): %s", status.Weight, raw, err)
		}
	}

	if !e.state.CompleteCalibration(status) {
		e.logger.Debugf("status changed during %s", status)
	}

	e.persist()
}

func (e *Emulator) persist() {
	if e.store == nil {
		return
	}
	if err := e.store.Save(e.cell.Calibration()); err != nil {
		e.logger.Errorf("failed to persist calibration: %s", err)
	}
}

func (e *Emulator) emitReading(r scale.Reading) {
	e.handlerMu.RLock()
	fn := e.readingHandler
	e.handlerMu.RUnlock()

	if fn != nil {
		fn(r)
	}
}

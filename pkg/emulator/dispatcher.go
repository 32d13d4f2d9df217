package emulator

import (
	"fmt"

	"github.com/fako1024/progressor/pkg/progressor"
)

// HandleCommand processes a single control point write. It never blocks: responses that do
// not fit into the outbox are dropped and reported via ErrQueueFull. Undecodable writes are
// discarded without touching the device state
func (e *Emulator) HandleCommand(buf []byte) error {
	cmd, err := progressor.Decode(buf)
	if err != nil {
		e.decodeErrors.Add(1)
		e.logger.Warnf("discarding control write `%x`: %s", buf, err)
		return err
	}
	e.commandsHandled.Add(1)

	if tr := e.state.Apply(cmd, e.clock.Micros()); tr.Changed() {
		e.logger.Debugf("%s: measurement status %s -> %s", cmd, tr.From, tr.To)
	} else {
		e.logger.Debugf("received %s", cmd)
	}

	switch cmd.OpCode {
	case progressor.OpGetAppVersion:
		return e.respond(cmd, e.appVersion)
	case progressor.OpGetProgressorID:
		return e.respond(cmd, e.id)
	case progressor.OpGetCalibration:
		c := e.cell.Calibration()
		e.logger.Infof("calibration: factor %.6f, offset %.4f, tare %d", c.Factor, c.Offset, c.Tare)
		return e.respond(cmd, progressor.NewCalibrationCurve(c))
	case progressor.OpShutdown, progressor.OpSampleBattery:
		e.logger.Infof("%s is not supported, ignoring", cmd)
	}

	return nil
}

////////////////////////////////////////////////////////////////////////////////

func (e *Emulator) respond(cmd progressor.Command, r progressor.Response) error {
	if err := e.outbox.TryPush(progressor.Encode(r)); err != nil {
		e.responsesDropped.Add(1)
		e.logger.Warnf("dropping response to %s: %s", cmd, err)
		return fmt.Errorf("failed to respond to %s: %w", cmd, err)
	}

	return nil
}

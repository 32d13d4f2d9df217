package progressor

import (
	"encoding/binary"
	"fmt"

	"github.com/chewxy/math32"
)

const (

	// MaxCommandSize is the size of the control point characteristic
	MaxCommandSize = 20

	calibrationPointSize = 5
)

// Command denotes a decoded control point write
type Command struct {
	OpCode OpCode

	// Weight is the reference weight (kg) of an AddCalibrationPoint command
	Weight float32
}

// String returns a human-readable representation of the command
func (c Command) String() string {
	if c.OpCode == OpAddCalibrationPoint {
		return fmt.Sprintf("%s(%g)", c.OpCode, c.Weight)
	}
	return c.OpCode.String()
}

// Decode converts a raw control point write into a command
func Decode(buf []byte) (Command, error) {
	if len(buf) == 0 {
		return Command{}, ErrEmptyCommand
	}
	if len(buf) > MaxCommandSize {
		return Command{}, fmt.Errorf("%w: %d bytes exceed the %d byte control point", ErrMalformedCommand, len(buf), MaxCommandSize)
	}

	op, err := DecodeOpCode(buf[0])
	if err != nil {
		return Command{}, err
	}

	cmd := Command{OpCode: op}
	if op == OpAddCalibrationPoint {
		if cmd.Weight, err = DecodeCalibrationPoint(buf); err != nil {
			return Command{}, err
		}
	}

	return cmd, nil
}

// DecodeCalibrationPoint extracts the big-endian float32 reference weight that follows
// the op code byte of an AddCalibrationPoint command
func DecodeCalibrationPoint(payload []byte) (float32, error) {
	if len(payload) < calibrationPointSize {
		return 0, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrMalformedCommand, OpAddCalibrationPoint, calibrationPointSize, len(payload))
	}

	weight := math32.Float32frombits(binary.BigEndian.Uint32(payload[1:calibrationPointSize]))
	if math32.IsNaN(weight) || math32.IsInf(weight, 0) {
		return 0, fmt.Errorf("%w: %s weight is not finite", ErrMalformedCommand, OpAddCalibrationPoint)
	}

	return weight, nil
}

// EncodeCommand builds the control point bytes for a command (used by clients)
func EncodeCommand(cmd Command) []byte {
	if cmd.OpCode != OpAddCalibrationPoint {
		return []byte{byte(cmd.OpCode)}
	}

	buf := make([]byte, calibrationPointSize)
	buf[0] = byte(cmd.OpCode)
	binary.BigEndian.PutUint32(buf[1:], math32.Float32bits(cmd.Weight))
	return buf
}

package progressor

import "fmt"

// OpCode denotes a command written to the control point
type OpCode byte

const (

	// OpTareScale zeroes the weight while no load is applied
	OpTareScale OpCode = 0x64

	// OpStartMeasurement starts continuous measurement at 80Hz
	OpStartMeasurement OpCode = 0x65

	// OpStopMeasurement stops continuous measurement
	OpStopMeasurement OpCode = 0x66

	// OpGetAppVersion requests the firmware version string
	OpGetAppVersion OpCode = 0x6B

	// OpShutdown turns the device off
	OpShutdown OpCode = 0x6E

	// OpSampleBattery requests the battery voltage in millivolts
	OpSampleBattery OpCode = 0x6F

	// OpGetProgressorID requests the device identifier
	OpGetProgressorID OpCode = 0x70

	// OpGetCalibration requests the active calibration curve
	OpGetCalibration OpCode = 0x72

	// OpAddCalibrationPoint records a reference weight (big-endian float32 at offset 1)
	OpAddCalibrationPoint OpCode = 0x73

	// OpDefaultCalibration restores the compiled-in calibration
	OpDefaultCalibration OpCode = 0x74
)

// OpCodes lists every recognized op code
var OpCodes = []OpCode{
	OpTareScale,
	OpStartMeasurement,
	OpStopMeasurement,
	OpGetAppVersion,
	OpShutdown,
	OpSampleBattery,
	OpGetProgressorID,
	OpGetCalibration,
	OpAddCalibrationPoint,
	OpDefaultCalibration,
}

// DecodeOpCode maps a control byte to its command. Any byte outside the command
// table yields an *UnknownOpCodeError
func DecodeOpCode(b byte) (OpCode, error) {
	switch op := OpCode(b); op {
	case OpTareScale,
		OpStartMeasurement,
		OpStopMeasurement,
		OpGetAppVersion,
		OpShutdown,
		OpSampleBattery,
		OpGetProgressorID,
		OpGetCalibration,
		OpAddCalibrationPoint,
		OpDefaultCalibration:
		return op, nil
	}

	return 0, &UnknownOpCodeError{Code: b}
}

// String returns the name of the command
func (o OpCode) String() string {
	switch o {
	case OpTareScale:
		return "TareScale"
	case OpStartMeasurement:
		return "StartMeasurement"
	case OpStopMeasurement:
		return "StopMeasurement"
	case OpGetAppVersion:
		return "GetAppVersion"
	case OpShutdown:
		return "Shutdown"
	case OpSampleBattery:
		return "SampleBattery"
	case OpGetProgressorID:
		return "GetProgressorId"
	case OpGetCalibration:
		return "GetCalibration"
	case OpAddCalibrationPoint:
		return "AddCalibrationPoint"
	case OpDefaultCalibration:
		return "DefaultCalibration"
	default:
		return fmt.Sprintf("OpCode(0x%02x)", byte(o))
	}
}

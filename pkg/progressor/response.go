package progressor

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/chewxy/math32"
	"github.com/fako1024/progressor/pkg/scale"
)

// ResponseCode denotes the first byte of a data point
type ResponseCode byte

const (

	// ResponseInfo is used for battery voltage, version, identifier and calibration curve
	ResponseInfo ResponseCode = 0x00

	// ResponseWeightMeasurement is used for weight samples
	ResponseWeightMeasurement ResponseCode = 0x01

	// ResponseLowPowerWarning is sent before the device turns itself off
	ResponseLowPowerWarning ResponseCode = 0x04
)

// MaxPayloadSize is the maximum size of the data payload of any data point
const MaxPayloadSize = 12

const (
	batteryVoltageSize    = 4
	weightMeasurementSize = 8
	progressorIDMaxSize   = 8
	calibrationCurveSize  = 12
)

// Compile-time guards: fixed-size payloads must fit the data point
var (
	_ [MaxPayloadSize - batteryVoltageSize]struct{}
	_ [MaxPayloadSize - weightMeasurementSize]struct{}
	_ [MaxPayloadSize - progressorIDMaxSize]struct{}
	_ [MaxPayloadSize - calibrationCurveSize]struct{}
)

// Response denotes any payload that can be sent on the data point
type Response interface {
	ResponseCode() ResponseCode

	// encode writes the payload and returns its length
	encode(value *[MaxPayloadSize]byte) uint8
}

// BatteryVoltage is the response to SampleBattery (millivolts)
type BatteryVoltage uint32

// ResponseCode returns the data point code
func (BatteryVoltage) ResponseCode() ResponseCode { return ResponseInfo }

func (b BatteryVoltage) encode(value *[MaxPayloadSize]byte) uint8 {
	binary.LittleEndian.PutUint32(value[:], uint32(b))
	return batteryVoltageSize
}

// WeightMeasurement is a weight sample with its microsecond offset from measurement start
type WeightMeasurement struct {
	Weight    float32
	Timestamp uint32
}

// ResponseCode returns the data point code
func (WeightMeasurement) ResponseCode() ResponseCode { return ResponseWeightMeasurement }

func (w WeightMeasurement) encode(value *[MaxPayloadSize]byte) uint8 {
	binary.LittleEndian.PutUint32(value[0:4], math32.Float32bits(w.Weight))
	binary.LittleEndian.PutUint32(value[4:8], w.Timestamp)
	return weightMeasurementSize
}

// LowPowerWarning indicates an empty battery
type LowPowerWarning struct{}

// ResponseCode returns the data point code
func (LowPowerWarning) ResponseCode() ResponseCode { return ResponseLowPowerWarning }

func (LowPowerWarning) encode(*[MaxPayloadSize]byte) uint8 { return 0 }

// AppVersion is the response to GetAppVersion. Use NewAppVersion to construct a
// value that is guaranteed to fit
type AppVersion []byte

// NewAppVersion validates the version string against the payload capacity
func NewAppVersion(version string) (AppVersion, error) {
	if len(version) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: version `%s` has %d bytes", ErrPayloadTooLarge, version, len(version))
	}
	return AppVersion(version), nil
}

// ResponseCode returns the data point code
func (AppVersion) ResponseCode() ResponseCode { return ResponseInfo }

func (a AppVersion) encode(value *[MaxPayloadSize]byte) uint8 {
	return uint8(copy(value[:], a))
}

// String returns the version string
func (a AppVersion) String() string {
	return string(a)
}

// ProgressorID is the response to GetProgressorId
type ProgressorID uint64

// ResponseCode returns the data point code
func (ProgressorID) ResponseCode() ResponseCode { return ResponseInfo }

func (p ProgressorID) encode(value *[MaxPayloadSize]byte) uint8 {
	return uint8(PutTrimmedUint64(value[:], uint64(p)))
}

// CalibrationCurve is the response to GetCalibration: factor and offset as
// little-endian float32 followed by the little-endian int32 tare value
type CalibrationCurve [calibrationCurveSize]byte

// NewCalibrationCurve packs a calibration into its wire representation
func NewCalibrationCurve(c scale.Calibration) CalibrationCurve {
	var curve CalibrationCurve
	binary.LittleEndian.PutUint32(curve[0:4], math32.Float32bits(c.Factor))
	binary.LittleEndian.PutUint32(curve[4:8], math32.Float32bits(c.Offset))
	binary.LittleEndian.PutUint32(curve[8:12], uint32(c.Tare))
	return curve
}

// Calibration unpacks the curve
func (c CalibrationCurve) Calibration() scale.Calibration {
	return scale.Calibration{
		Factor: math32.Float32frombits(binary.LittleEndian.Uint32(c[0:4])),
		Offset: math32.Float32frombits(binary.LittleEndian.Uint32(c[4:8])),
		Tare:   int32(binary.LittleEndian.Uint32(c[8:12])),
	}
}

// ResponseCode returns the data point code
func (CalibrationCurve) ResponseCode() ResponseCode { return ResponseInfo }

func (c CalibrationCurve) encode(value *[MaxPayloadSize]byte) uint8 {
	return uint8(copy(value[:], c[:]))
}

// PutTrimmedUint64 writes v in little-endian order without its most significant zero
// bytes and returns the number of bytes written. Zero is written as a single zero byte.
// dst must hold at least 8 bytes
func PutTrimmedUint64(dst []byte, v uint64) int {
	n := (bits.Len64(v) + 7) / 8
	if n == 0 {
		n = 1
	}
	for i := 0; i < n; i++ {
		dst[i] = byte(v >> (8 * i))
	}
	return n
}

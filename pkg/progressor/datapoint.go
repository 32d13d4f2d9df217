package progressor

import (
	"encoding/binary"
	"fmt"

	"github.com/chewxy/math32"
)

// DataPointSize is the size of a packed data point
const DataPointSize = 2 + MaxPayloadSize

// DataPoint denotes a frame notified on the data point characteristic. Only the first
// length bytes of value are meaningful
type DataPoint struct {
	code   ResponseCode
	length uint8
	value  [MaxPayloadSize]byte
}

// Encode converts a response into its data point
func Encode(r Response) DataPoint {
	d := DataPoint{code: r.ResponseCode()}
	d.length = r.encode(&d.value)
	return d
}

// ParseDataPoint parses a frame of 2 to DataPointSize bytes
func ParseDataPoint(b []byte) (DataPoint, error) {
	if len(b) < 2 || len(b) > DataPointSize {
		return DataPoint{}, fmt.Errorf("invalid data point size %d", len(b))
	}

	d := DataPoint{code: ResponseCode(b[0]), length: b[1]}
	if int(d.length) > MaxPayloadSize {
		return DataPoint{}, fmt.Errorf("%w: declared length %d", ErrPayloadTooLarge, d.length)
	}
	if int(d.length) > len(b)-2 {
		return DataPoint{}, fmt.Errorf("truncated data point: declared length %d, got %d bytes", d.length, len(b)-2)
	}
	copy(d.value[:], b[2:2+int(d.length)])

	return d, nil
}

// ResponseCode returns the code of the data point
func (d DataPoint) ResponseCode() ResponseCode {
	return d.code
}

// Len returns the number of meaningful payload bytes
func (d DataPoint) Len() int {
	return int(d.length)
}

// Payload returns the meaningful payload bytes
func (d DataPoint) Payload() []byte {
	return append([]byte(nil), d.value[:d.length]...)
}

// Bytes returns the packed representation
func (d DataPoint) Bytes() [DataPointSize]byte {
	var b [DataPointSize]byte
	b[0] = byte(d.code)
	b[1] = d.length
	copy(b[2:], d.value[:])
	return b
}

// Frame returns the header and the meaningful payload bytes only
func (d DataPoint) Frame() []byte {
	b := d.Bytes()
	return append([]byte(nil), b[:2+int(d.length)]...)
}

// String returns a human-readable representation of the data point
func (d DataPoint) String() string {
	return fmt.Sprintf("Code: %d, Length: %d, Data: %x", d.code, d.length, d.value[:d.length])
}

////////////////////////////////////////////////////////////////////////////////

// WeightMeasurement decodes a weight sample
func (d DataPoint) WeightMeasurement() (WeightMeasurement, error) {
	if err := d.expect(ResponseWeightMeasurement, weightMeasurementSize); err != nil {
		return WeightMeasurement{}, err
	}
	return WeightMeasurement{
		Weight:    math32.Float32frombits(binary.LittleEndian.Uint32(d.value[0:4])),
		Timestamp: binary.LittleEndian.Uint32(d.value[4:8]),
	}, nil
}

// BatteryVoltage decodes a battery voltage
func (d DataPoint) BatteryVoltage() (BatteryVoltage, error) {
	if err := d.expect(ResponseInfo, batteryVoltageSize); err != nil {
		return 0, err
	}
	return BatteryVoltage(binary.LittleEndian.Uint32(d.value[0:4])), nil
}

// ProgressorID decodes a trimmed identifier
func (d DataPoint) ProgressorID() (ProgressorID, error) {
	if d.code != ResponseInfo || d.length == 0 || d.length > progressorIDMaxSize {
		return 0, fmt.Errorf("%w: %s", ErrUnexpectedResponse, d)
	}
	var id uint64
	for i := int(d.length) - 1; i >= 0; i-- {
		id = id<<8 | uint64(d.value[i])
	}
	return ProgressorID(id), nil
}

// AppVersion decodes a version string
func (d DataPoint) AppVersion() (AppVersion, error) {
	if d.code != ResponseInfo {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedResponse, d)
	}
	return AppVersion(d.Payload()), nil
}

// CalibrationCurve decodes a calibration curve
func (d DataPoint) CalibrationCurve() (CalibrationCurve, error) {
	if err := d.expect(ResponseInfo, calibrationCurveSize); err != nil {
		return CalibrationCurve{}, err
	}
	var c CalibrationCurve
	copy(c[:], d.value[:])
	return c, nil
}

// IsLowPowerWarning reports whether the data point is a low power warning
func (d DataPoint) IsLowPowerWarning() bool {
	return d.code == ResponseLowPowerWarning
}

func (d DataPoint) expect(code ResponseCode, length uint8) error {
	if d.code != code || d.length != length {
		return fmt.Errorf("%w: %s", ErrUnexpectedResponse, d)
	}
	return nil
}

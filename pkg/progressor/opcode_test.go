package progressor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeOpCodeTable(t *testing.T) {
	expected := map[byte]OpCode{
		0x64: OpTareScale,
		0x65: OpStartMeasurement,
		0x66: OpStopMeasurement,
		0x6B: OpGetAppVersion,
		0x6E: OpShutdown,
		0x6F: OpSampleBattery,
		0x70: OpGetProgressorID,
		0x72: OpGetCalibration,
		0x73: OpAddCalibrationPoint,
		0x74: OpDefaultCalibration,
	}

	for b, op := range expected {
		got, err := DecodeOpCode(b)
		require.NoError(t, err)
		assert.Equal(t, op, got, "byte 0x%02x", b)
	}
	assert.Len(t, OpCodes, len(expected))
}

func TestDecodeOpCodeIsTotal(t *testing.T) {
	var valid, invalid int
	for i := 0; i < 256; i++ {
		b := byte(i)
		op, err := DecodeOpCode(b)
		if err == nil {
			assert.Equal(t, b, byte(op))
			valid++
			continue
		}

		invalid++
		assert.ErrorIs(t, err, ErrUnknownOpCode)

		var unknown *UnknownOpCodeError
		require.True(t, errors.As(err, &unknown))
		assert.Equal(t, b, unknown.Code)
	}

	assert.Equal(t, 10, valid)
	assert.Equal(t, 246, invalid)
}

func TestOpCodeString(t *testing.T) {
	assert.Equal(t, "TareScale", OpTareScale.String())
	assert.Equal(t, "GetProgressorId", OpGetProgressorID.String())
	assert.Equal(t, "OpCode(0x00)", OpCode(0).String())
}

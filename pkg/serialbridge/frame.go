package serialbridge

import (
	"fmt"

	"github.com/fako1024/progressor/pkg/progressor"
)

// EncodeCommandFrame prefixes a control point write with its length byte
func EncodeCommandFrame(cmd []byte) ([]byte, error) {
	if len(cmd) == 0 || len(cmd) > progressor.MaxCommandSize {
		return nil, fmt.Errorf("invalid command size: %d", len(cmd))
	}

	return append([]byte{byte(len(cmd))}, cmd...), nil
}

// CommandDecoder splits a byte stream into length-prefixed control point writes
type CommandDecoder struct {
	buf []byte
}

// Feed appends received bytes and returns all complete commands. Invalid length bytes
// are skipped and counted
func (d *CommandDecoder) Feed(p []byte) (cmds [][]byte, skipped int) {
	d.buf = append(d.buf, p...)

	for len(d.buf) > 0 {
		n := int(d.buf[0])
		if n == 0 || n > progressor.MaxCommandSize {
			d.buf = d.buf[1:]
			skipped++
			continue
		}
		if len(d.buf) < 1+n {
			break
		}
		cmds = append(cmds, append([]byte(nil), d.buf[1:1+n]...))
		d.buf = d.buf[1+n:]
	}
	if len(d.buf) == 0 {
		d.buf = nil
	}

	return
}

// DataPointDecoder splits a byte stream of data point frames ([code][length][payload])
type DataPointDecoder struct {
	buf []byte
}

// Feed appends received bytes and returns all complete data points. Frames with an
// invalid length are skipped byte-wise until the stream resynchronizes
func (d *DataPointDecoder) Feed(p []byte) (dps []progressor.DataPoint, skipped int) {
	d.buf = append(d.buf, p...)

	for len(d.buf) >= 2 {
		n := int(d.buf[1])
		if !knownResponseCode(progressor.ResponseCode(d.buf[0])) || n > progressor.MaxPayloadSize {
			d.buf = d.buf[1:]
			skipped++
			continue
		}
		if len(d.buf) < 2+n {
			break
		}
		dp, err := progressor.ParseDataPoint(d.buf[:2+n])
		if err != nil {
			d.buf = d.buf[1:]
			skipped++
			continue
		}
		dps = append(dps, dp)
		d.buf = d.buf[2+n:]
	}
	if len(d.buf) == 0 {
		d.buf = nil
	}

	return
}

func knownResponseCode(c progressor.ResponseCode) bool {
	switch c {
	case progressor.ResponseInfo, progressor.ResponseWeightMeasurement, progressor.ResponseLowPowerWarning:
		return true
	}
	return false
}

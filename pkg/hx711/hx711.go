// Package hx711 implements a bit-banged driver for the HX711 24-bit load cell ADC
package hx711

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chewxy/math32"
	"github.com/fako1024/progressor/pkg/scale"
)

const (
	dataBits = 24

	minRaw = -(1 << 23)
	maxRaw = 1<<23 - 1

	powerDownHold = 100 * time.Microsecond

	// UnitsPerKilogram is the number of calibrated units per kilogram
	UnitsPerKilogram = 1000

	defaultFactor       = 1.3145
	defaultOffset       = -3.8790
	defaultPulseDelay   = time.Microsecond
	defaultTareInterval = 10 * time.Millisecond
	defaultPollInterval = time.Millisecond
	defaultSamples      = 20
)

var (
	// ErrNotReady denotes that no conversion was available
	ErrNotReady = errors.New("no conversion available")

	// ErrInvalidSampleCount denotes a non-positive number of requested samples
	ErrInvalidSampleCount = errors.New("invalid number of samples")

	// ErrInvalidCalibration denotes a set of calibration points that does not yield a usable curve
	ErrInvalidCalibration = errors.New("invalid calibration points")
)

// GainMode denotes the channel / gain selected for the next conversion
type GainMode int

const (

	// GainA128 selects channel A with a gain of 128
	GainA128 GainMode = iota + 1

	// GainB32 selects channel B with a gain of 32
	GainB32

	// GainA64 selects channel A with a gain of 64
	GainA64
)

// Pulses returns the number of extra clock pulses following a 24 bit frame
func (g GainMode) Pulses() int {
	return int(g)
}

// String returns a human-readable representation of the gain mode
func (g GainMode) String() string {
	switch g {
	case GainA128:
		return "A128"
	case GainB32:
		return "B32"
	case GainA64:
		return "A64"
	}
	return fmt.Sprintf("GainMode(%d)", int(g))
}

// ParseGainMode converts a gain mode name ("A128", "B32" or "A64")
func ParseGainMode(name string) (GainMode, error) {
	for _, g := range []GainMode{GainA128, GainB32, GainA64} {
		if g.String() == name {
			return g, nil
		}
	}
	return 0, fmt.Errorf("invalid gain mode `%s`", name)
}

// DefaultCalibration returns the factory calibration
func DefaultCalibration() scale.Calibration {
	return scale.Calibration{
		Factor: defaultFactor,
		Offset: defaultOffset,
	}
}

// Device denotes an HX711 attached to a clock and a data pin
type Device struct {
	clock ClockPin
	data  DataPin

	gain         GainMode
	pulseDelay   time.Duration
	tareInterval time.Duration
	pollInterval time.Duration
	samples      int

	critical CriticalSection
	delay    func(time.Duration)

	ioMu sync.Mutex

	calMu       sync.RWMutex
	calibration scale.Calibration

	logger scale.Logger
}

// New instantiates a new HX711 driver, executing functional options, if any
func New(clock ClockPin, data DataPin, options ...func(*Device)) *Device {

	d := &Device{
		clock:        clock,
		data:         data,
		gain:         GainA64,
		pulseDelay:   defaultPulseDelay,
		tareInterval: defaultTareInterval,
		pollInterval: defaultPollInterval,
		samples:      defaultSamples,
		critical:     defaultCriticalSection(),
		delay:        defaultDelay(),
		calibration:  DefaultCalibration(),
		logger:       &scale.NullLogger{},
	}

	// Execute functional options (if any), see options.go for implementation
	for _, option := range options {
		option(d)
	}

	d.clock.Set(false)

	return d
}

// IsReady returns if a conversion can be read (DOUT low)
func (d *Device) IsReady() bool {
	return !d.data.Get()
}

// WaitReady blocks until a conversion is available or the context is done
func (d *Device) WaitReady(ctx context.Context) error {
	var ticker *time.Ticker
	for !d.IsReady() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if waiter, ok := d.data.(EdgeWaiter); ok {
			waiter.WaitForLow(d.pollInterval)
			continue
		}
		if ticker == nil {
			ticker = time.NewTicker(d.pollInterval)
			defer ticker.Stop()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	return nil
}

// ReadRaw clocks out a single 24 bit two's complement conversion followed by the
// gain selection pulses. The caller must ensure a conversion is ready
func (d *Device) ReadRaw() int32 {
	d.ioMu.Lock()
	defer d.ioMu.Unlock()

	var value uint32
	d.critical.Do(func() {
		for i := 0; i < dataBits; i++ {
			value = value<<1 | d.readBit()
		}
		for i := 0; i < d.gain.Pulses(); i++ {
			d.pulse()
		}
	})

	return signExtend(value)
}

// Read returns the tare-adjusted raw value, if a conversion is ready
func (d *Device) Read() (int32, bool) {
	if !d.IsReady() {
		return 0, false
	}
	raw := d.ReadRaw()

	d.calMu.RLock()
	defer d.calMu.RUnlock()

	return raw - d.calibration.Tare, true
}

// ReadCalibrated returns the calibrated value, if a conversion is ready
func (d *Device) ReadCalibrated() (float32, bool) {
	if !d.IsReady() {
		return 0, false
	}
	raw := d.ReadRaw()

	d.calMu.RLock()
	defer d.calMu.RUnlock()

	return d.calibration.Apply(raw), true
}

// Measure waits for a conversion and averages up to the configured number of
// calibrated readings, returning the weight in kilograms. Only readings that were
// actually obtained contribute to the average
func (d *Device) Measure(ctx context.Context) (float32, error) {
	if err := d.WaitReady(ctx); err != nil {
		return 0, err
	}

	var (
		sum   float64
		count int
	)
	for i := 0; i < d.samples; i++ {
		if value, ok := d.ReadCalibrated(); ok {
			sum += float64(value)
			count++
		}
	}
	if count == 0 {
		return 0, ErrNotReady
	}

	return float32(sum / float64(count) / UnitsPerKilogram), nil
}

// Tare averages n raw conversions and stores the truncated result as tare value
func (d *Device) Tare(ctx context.Context, n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSampleCount, n)
	}

	var total float64
	for i := 1; i <= n; i++ {
		if err := d.WaitReady(ctx); err != nil {
			return err
		}
		total += (float64(d.ReadRaw()) - total) / float64(i)

		if i < n {
			if err := sleep(ctx, d.tareInterval); err != nil {
				return err
			}
		}
	}

	d.calMu.Lock()
	d.calibration.Tare = int32(total)
	d.calMu.Unlock()

	d.logger.Debugf("tare value set to %d (%d samples)", int32(total), n)

	return nil
}

// RawAverage averages n tare-adjusted conversions
func (d *Device) RawAverage(ctx context.Context, n int) (int32, error) {
	if n <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidSampleCount, n)
	}

	var total float64
	for i := 1; i <= n; {
		if err := d.WaitReady(ctx); err != nil {
			return 0, err
		}
		value, ok := d.Read()
		if !ok {
			continue
		}
		total += (float64(value) - total) / float64(i)
		i++
	}

	return int32(total), nil
}

// Calibration returns the active calibration
func (d *Device) Calibration() scale.Calibration {
	d.calMu.RLock()
	defer d.calMu.RUnlock()

	return d.calibration
}

// SetCalibration replaces the active calibration
func (d *Device) SetCalibration(c scale.Calibration) {
	d.calMu.Lock()
	defer d.calMu.Unlock()

	d.calibration = c
}

// ResetCalibration restores the factory factor and offset, the tare value is kept
func (d *Device) ResetCalibration() {
	d.calMu.Lock()
	defer d.calMu.Unlock()

	tare := d.calibration.Tare
	d.calibration = DefaultCalibration()
	d.calibration.Tare = tare
}

// ApplyCalibrationPoints derives a new calibration curve from tare-adjusted raw
// values and their reference weights in kilograms. A single point corrects the
// offset only, two points determine both factor and offset
func (d *Device) ApplyCalibrationPoints(raws []int32, weights []float32) error {
	if len(raws) != len(weights) || len(raws) == 0 || len(raws) > 2 {
		return fmt.Errorf("%w: %d values for %d weights", ErrInvalidCalibration, len(raws), len(weights))
	}

	d.calMu.Lock()
	defer d.calMu.Unlock()

	factor := d.calibration.Factor
	if len(raws) == 2 {
		if raws[0] == raws[1] {
			return fmt.Errorf("%w: identical raw values", ErrInvalidCalibration)
		}
		factor = (weights[1] - weights[0]) * UnitsPerKilogram / float32(raws[1]-raws[0])
	}
	offset := float32(raws[0])*factor - weights[0]*UnitsPerKilogram

	if !finite(factor) || !finite(offset) || factor == 0 {
		return fmt.Errorf("%w: factor %v, offset %v", ErrInvalidCalibration, factor, offset)
	}

	d.calibration.Factor = factor
	d.calibration.Offset = offset

	d.logger.Infof("calibration updated from %d point(s): factor %.6f, offset %.4f", len(raws), factor, offset)

	return nil
}

// PowerDown holds the clock line high, putting the chip to sleep
func (d *Device) PowerDown() {
	d.ioMu.Lock()
	defer d.ioMu.Unlock()

	d.clock.Set(true)
	d.delay(powerDownHold)
}

// PowerUp releases the clock line, the chip resets to channel A / gain 128 and the
// next conversion selects the configured gain again
func (d *Device) PowerUp() {
	d.ioMu.Lock()
	defer d.ioMu.Unlock()

	d.clock.Set(false)
}

////////////////////////////////////////////////////////////////////////////////

func (d *Device) readBit() uint32 {
	d.clock.Set(true)
	d.delay(d.pulseDelay)
	bit := d.data.Get()
	d.clock.Set(false)
	d.delay(d.pulseDelay)

	if bit {
		return 1
	}
	return 0
}

func (d *Device) pulse() {
	d.clock.Set(true)
	d.delay(d.pulseDelay)
	d.clock.Set(false)
	d.delay(d.pulseDelay)
}

func signExtend(value uint32) int32 {
	value &= 1<<dataBits - 1
	if value&(1<<(dataBits-1)) != 0 {
		value |= 0xFF000000
	}

	v := int32(value)
	if v < minRaw {
		return minRaw
	}
	if v > maxRaw {
		return maxRaw
	}
	return v
}

func finite(f float32) bool {
	return !math32.IsNaN(f) && !math32.IsInf(f, 0)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

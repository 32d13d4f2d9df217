package emulator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fako1024/progressor/pkg/device"
	"github.com/fako1024/progressor/pkg/hx711"
	"github.com/fako1024/progressor/pkg/mock"
	"github.com/fako1024/progressor/pkg/progressor"
	"github.com/fako1024/progressor/pkg/scale"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	us atomic.Uint64
}

func (c *fakeClock) Micros() uint64 {
	return c.us.Load()
}

type memStore struct {
	c     scale.Calibration
	err   error
	saves int
	mu    sync.Mutex
}

func (m *memStore) Load() (scale.Calibration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return scale.Calibration{}, m.err
	}
	return m.c, nil
}

func (m *memStore) Save(c scale.Calibration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.c = c
	m.saves++
	return nil
}

func repeat(v int32, n int) []int32 {
	s := make([]int32, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func newTestCell(chip *mock.HX711) *hx711.Device {
	return hx711.New(chip, chip,
		hx711.WithDelay(func(time.Duration) {}),
		hx711.WithTareInterval(0),
		hx711.WithCalibration(scale.Calibration{Factor: 1}),
	)
}

func newTestEmulator(t *testing.T, chip *mock.HX711, options ...func(*Emulator)) (*Emulator, *fakeClock) {
	clock := &fakeClock{}
	e, err := New(newTestCell(chip), append([]func(*Emulator){WithClock(clock)}, options...)...)
	require.Nil(t, err)
	return e, clock
}

// tick runs a single scheduler cycle, failing instead of blocking when the chip runs
// out of conversions
func tick(t *testing.T, e *Emulator) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	e.tick(ctx)
	require.Nil(t, ctx.Err(), "scheduler cycle did not complete")
}

func pop(t *testing.T, e *Emulator) progressor.DataPoint {
	select {
	case dp := <-e.Outbox().C():
		return dp
	default:
		require.FailNow(t, "outbox empty")
	}
	return progressor.DataPoint{}
}

func TestNew(t *testing.T) {
	_, err := New(nil)
	assert.NotNil(t, err)

	chip := mock.New()
	_, err = New(newTestCell(chip), WithPeriod(0))
	assert.NotNil(t, err)
	_, err = New(newTestCell(chip), WithTareSamples(0))
	assert.NotNil(t, err)

	e, err := New(newTestCell(chip))
	require.Nil(t, err)
	assert.Equal(t, DefaultQueueSize, e.Outbox().Cap())
	assert.Equal(t, DefaultPeriod, e.period)
}

func TestOutboxFull(t *testing.T) {
	o := NewOutbox(4)

	for i := uint32(1); i <= 4; i++ {
		require.Nil(t, o.TryPush(progressor.Encode(progressor.WeightMeasurement{Weight: float32(i), Timestamp: i})))
	}
	assert.ErrorIs(t, o.TryPush(progressor.Encode(progressor.WeightMeasurement{Weight: 5, Timestamp: 5})), ErrQueueFull)
	assert.Equal(t, uint64(4), o.Pushed())
	assert.Equal(t, uint64(1), o.Dropped())
	assert.Equal(t, 4, o.Len())

	for i := uint32(1); i <= 4; i++ {
		w, err := (<-o.C()).WeightMeasurement()
		require.Nil(t, err)
		assert.Equal(t, i, w.Timestamp)
	}
	assert.Equal(t, 0, o.Len())
}

func TestOutboxDrain(t *testing.T) {
	o := NewOutbox(0)
	assert.Equal(t, 1, o.Cap())

	require.Nil(t, o.TryPush(progressor.Encode(progressor.LowPowerWarning{})))
	assert.Equal(t, 1, o.Drain())
	assert.Equal(t, 0, o.Drain())
}

func TestTareScale(t *testing.T) {
	chip := mock.New(100, 102, 98, 100)
	s := &memStore{}
	e, _ := newTestEmulator(t, chip, WithTareSamples(4), WithStore(s))

	require.Nil(t, e.HandleCommand([]byte{byte(progressor.OpTareScale)}))
	assert.Equal(t, device.ModeTare, e.State().Status.Mode)

	tick(t, e)

	assert.Equal(t, int32(100), e.Calibration().Tare)
	assert.True(t, e.State().Tared)
	assert.Equal(t, device.ModeDisabled, e.State().Status.Mode)
	assert.Equal(t, int32(100), s.c.Tare)
	assert.Equal(t, 1, s.saves)
}

func TestTareIncomplete(t *testing.T) {
	chip := mock.New(100, 102)
	s := &memStore{}
	e, _ := newTestEmulator(t, chip, WithTareSamples(4), WithStore(s))

	require.Nil(t, e.HandleCommand([]byte{byte(progressor.OpTareScale)}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	e.tick(ctx)

	assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
	assert.Equal(t, device.ModeTare, e.State().Status.Mode)
	assert.False(t, e.State().Tared)
	assert.Equal(t, int32(0), e.Calibration().Tare)
	assert.Equal(t, 0, s.saves)
	assert.Equal(t, 0, chip.Pending())
}

func TestStartBeforeTare(t *testing.T) {
	chip := mock.New(repeat(0, 10)...)
	e, clock := newTestEmulator(t, chip)

	clock.us.Store(1000)
	require.Nil(t, e.HandleCommand([]byte{byte(progressor.OpStartMeasurement)}))
	assert.Equal(t, device.ModeSoftTare, e.State().Status.Mode)
	assert.Equal(t, uint64(1000), e.State().StartTime)

	tick(t, e)
	assert.Equal(t, device.ModeEnabled, e.State().Status.Mode)
	assert.Equal(t, 0, e.Outbox().Len())

	var readings []scale.Reading
	e.SetReadingHandler(func(r scale.Reading) {
		readings = append(readings, r)
	})

	chip.Feed(repeat(1000, 20)...)
	clock.us.Store(2500)
	tick(t, e)

	w, err := pop(t, e).WeightMeasurement()
	require.Nil(t, err)
	assert.Equal(t, float32(1.0), w.Weight)
	assert.Equal(t, uint32(1500), w.Timestamp)

	require.Len(t, readings, 1)
	assert.Equal(t, float32(1.0), readings[0].Weight)
	assert.Equal(t, scale.UnitKilograms, readings[0].Unit)
	assert.Equal(t, uint64(1), e.Stats().SamplesSent)
}

func TestStartAfterTare(t *testing.T) {
	chip := mock.New(repeat(0, DefaultTareSamples)...)
	e, _ := newTestEmulator(t, chip)

	require.Nil(t, e.HandleCommand([]byte{byte(progressor.OpTareScale)}))
	tick(t, e)
	require.True(t, e.State().Tared)

	require.Nil(t, e.HandleCommand([]byte{byte(progressor.OpStartMeasurement)}))
	assert.Equal(t, device.ModeEnabled, e.State().Status.Mode)

	require.Nil(t, e.HandleCommand([]byte{byte(progressor.OpStopMeasurement)}))
	assert.Equal(t, device.ModeDisabled, e.State().Status.Mode)

	// Disabled scheduler leaves conversions untouched
	chip.Feed(1, 2, 3)
	tick(t, e)
	assert.Equal(t, 3, chip.Pending())
	assert.Equal(t, 0, e.Outbox().Len())
}

func TestAddCalibrationPointMalformed(t *testing.T) {
	e, _ := newTestEmulator(t, mock.New())

	err := e.HandleCommand([]byte{byte(progressor.OpAddCalibrationPoint), 0x40, 0x20})
	assert.ErrorIs(t, err, progressor.ErrMalformedCommand)
	assert.Equal(t, device.ModeDisabled, e.State().Status.Mode)
	assert.Equal(t, uint64(1), e.Stats().DecodeErrors)
	assert.Equal(t, uint64(0), e.Stats().CommandsHandled)
}

func TestUnknownOpCode(t *testing.T) {
	e, _ := newTestEmulator(t, mock.New())
	require.Nil(t, e.HandleCommand([]byte{byte(progressor.OpTareScale)}))

	err := e.HandleCommand([]byte{0x42})
	assert.ErrorIs(t, err, progressor.ErrUnknownOpCode)
	assert.Equal(t, device.ModeTare, e.State().Status.Mode)

	assert.ErrorIs(t, e.HandleCommand(nil), progressor.ErrEmptyCommand)
	assert.Equal(t, uint64(2), e.Stats().DecodeErrors)
}

func TestGetProgressorIDZero(t *testing.T) {
	e, _ := newTestEmulator(t, mock.New())

	require.Nil(t, e.HandleCommand([]byte{byte(progressor.OpGetProgressorID)}))
	dp := pop(t, e)
	assert.Equal(t, progressor.ResponseInfo, dp.ResponseCode())
	assert.Equal(t, 1, dp.Len())
	assert.Equal(t, []byte{0}, dp.Payload())
}

func TestGetProgressorID(t *testing.T) {
	e, _ := newTestEmulator(t, mock.New(), WithProgressorID(0x2639))

	require.Nil(t, e.HandleCommand([]byte{byte(progressor.OpGetProgressorID)}))
	id, err := pop(t, e).ProgressorID()
	require.Nil(t, err)
	assert.Equal(t, progressor.ProgressorID(0x2639), id)
}

func TestGetAppVersion(t *testing.T) {
	e, _ := newTestEmulator(t, mock.New())

	require.Nil(t, e.HandleCommand([]byte{byte(progressor.OpGetAppVersion)}))
	v, err := pop(t, e).AppVersion()
	require.Nil(t, err)
	assert.Equal(t, DefaultAppVersion, v.String())

	e, _ = newTestEmulator(t, mock.New(), WithAppVersion("0123456789ab"))
	require.Nil(t, e.HandleCommand([]byte{byte(progressor.OpGetAppVersion)}))
	v, err = pop(t, e).AppVersion()
	require.Nil(t, err)
	assert.Equal(t, "0123456789ab", v.String())

	_, err = New(newTestCell(mock.New()), WithAppVersion("0123456789abc"))
	assert.ErrorIs(t, err, progressor.ErrPayloadTooLarge)
}

func TestGetCalibration(t *testing.T) {
	e, _ := newTestEmulator(t, mock.New())

	require.Nil(t, e.HandleCommand([]byte{byte(progressor.OpGetCalibration)}))
	curve, err := pop(t, e).CalibrationCurve()
	require.Nil(t, err)
	assert.Equal(t, e.Calibration(), curve.Calibration())
}

func TestUnsupportedCommands(t *testing.T) {
	e, _ := newTestEmulator(t, mock.New())

	for _, op := range []progressor.OpCode{progressor.OpShutdown, progressor.OpSampleBattery} {
		require.Nil(t, e.HandleCommand([]byte{byte(op)}))
	}
	assert.Equal(t, 0, e.Outbox().Len())
	assert.Equal(t, device.ModeDisabled, e.State().Status.Mode)
	assert.Equal(t, uint64(2), e.Stats().CommandsHandled)
}

func TestResponseDropped(t *testing.T) {
	e, _ := newTestEmulator(t, mock.New(), WithQueueSize(1))

	require.Nil(t, e.HandleCommand([]byte{byte(progressor.OpGetProgressorID)}))
	assert.ErrorIs(t, e.HandleCommand([]byte{byte(progressor.OpGetProgressorID)}), ErrQueueFull)
	assert.Equal(t, uint64(1), e.Stats().ResponsesDropped)
	assert.Equal(t, 1, e.Outbox().Len())
}

func TestSampleDropped(t *testing.T) {
	chip := mock.New(repeat(0, DefaultTareSamples)...)
	e, _ := newTestEmulator(t, chip, WithQueueSize(1))

	require.Nil(t, e.HandleCommand([]byte{byte(progressor.OpStartMeasurement)}))
	tick(t, e)

	for i := 0; i < 3; i++ {
		chip.Feed(500)
		tick(t, e)
	}

	stats := e.Stats()
	assert.Equal(t, uint64(1), stats.SamplesSent)
	assert.Equal(t, uint64(2), stats.SamplesDropped)
	assert.Equal(t, 1, stats.QueueLength)
}

func TestCalibration(t *testing.T) {
	chip := mock.New()
	s := &memStore{}
	e, _ := newTestEmulator(t, chip, WithCalibrationSamples(2), WithStore(s))

	require.Nil(t, e.HandleCommand(progressor.EncodeCommand(progressor.Command{OpCode: progressor.OpAddCalibrationPoint, Weight: 0})))
	assert.Equal(t, device.ModeCalibration, e.State().Status.Mode)
	chip.Feed(500, 500)
	tick(t, e)

	assert.Equal(t, device.ModeDisabled, e.State().Status.Mode)
	assert.InDelta(t, 1., e.Calibration().Factor, 1e-6)
	assert.InDelta(t, 500., e.Calibration().Offset, 1e-3)

	require.Nil(t, e.HandleCommand(progressor.EncodeCommand(progressor.Command{OpCode: progressor.OpAddCalibrationPoint, Weight: 10})))
	chip.Feed(20500, 20500)
	tick(t, e)

	assert.Equal(t, []device.CalibrationPoint{{Raw: 500, Weight: 0}, {Raw: 20500, Weight: 10}}, e.State().CalibrationPoints)
	assert.InDelta(t, 0.5, e.Calibration().Factor, 1e-6)
	assert.InDelta(t, 250., e.Calibration().Offset, 1e-3)
	assert.Equal(t, e.Calibration(), s.c)
	assert.Equal(t, 2, s.saves)

	require.Nil(t, e.HandleCommand([]byte{byte(progressor.OpDefaultCalibration)}))
	tick(t, e)

	assert.Equal(t, device.ModeDisabled, e.State().Status.Mode)
	assert.Empty(t, e.State().CalibrationPoints)
	assert.Equal(t, hx711.DefaultCalibration(), e.Calibration())
	assert.Equal(t, 3, s.saves)
}

func TestRestore(t *testing.T) {
	stored := scale.Calibration{Factor: 2, Offset: 3, Tare: 4}

	e, _ := newTestEmulator(t, mock.New(), WithStore(&memStore{c: stored}))
	require.Nil(t, e.Restore())
	assert.Equal(t, stored, e.Calibration())

	e, _ = newTestEmulator(t, mock.New(), WithStore(&memStore{err: scale.ErrNoCalibration}))
	require.Nil(t, e.Restore())
	assert.Equal(t, scale.Calibration{Factor: 1}, e.Calibration())

	e, _ = newTestEmulator(t, mock.New(), WithStore(&memStore{err: errors.New("broken")}))
	assert.NotNil(t, e.Restore())

	e, _ = newTestEmulator(t, mock.New())
	assert.Nil(t, e.Restore())
}

func TestDisconnected(t *testing.T) {
	chip := mock.New(repeat(0, DefaultTareSamples)...)
	e, _ := newTestEmulator(t, chip)

	require.Nil(t, e.HandleCommand([]byte{byte(progressor.OpStartMeasurement)}))
	tick(t, e)
	chip.Feed(100)
	tick(t, e)
	require.Equal(t, 1, e.Outbox().Len())

	e.Disconnected()
	assert.Equal(t, device.ModeDisabled, e.State().Status.Mode)
	assert.Equal(t, 0, e.Outbox().Len())
}

func TestRun(t *testing.T) {
	chip := mock.NewGenerator(mock.Constant(2000), time.Millisecond)
	e, err := New(newTestCell(chip), WithPeriod(time.Millisecond), WithTareSamples(2))
	require.Nil(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- e.Run(ctx)
	}()

	require.Nil(t, e.HandleCommand([]byte{byte(progressor.OpStartMeasurement)}))

	var dp progressor.DataPoint
	select {
	case dp = <-e.Outbox().C():
	case <-time.After(5 * time.Second):
		require.FailNow(t, "no measurement received")
	}
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	w, err := dp.WeightMeasurement()
	require.Nil(t, err)
	assert.Equal(t, float32(0), w.Weight)
	assert.True(t, e.State().Tared)
}

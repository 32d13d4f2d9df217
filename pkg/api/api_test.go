package api

import (
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fako1024/progressor/pkg/device"
	"github.com/fako1024/progressor/pkg/emulator"
	"github.com/fako1024/progressor/pkg/hx711"
	"github.com/fako1024/progressor/pkg/mock"
	"github.com/fako1024/progressor/pkg/progressor"
	"github.com/fako1024/progressor/pkg/scale"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testLink struct {
	status scale.ConnectionStatus
}

func (l *testLink) ConnectionStatus() scale.ConnectionStatus              { return l.status }
func (l *testLink) SetStateChangeHandler(fn func(scale.ConnectionStatus)) {}
func (l *testLink) Close() error                                          { return nil }

func newTestAPI(t *testing.T, options ...func(*emulator.Emulator)) (*API, *emulator.Emulator) {
	chip := mock.New()
	cell := hx711.New(chip, chip, hx711.WithDelay(func(time.Duration) {}))
	e, err := emulator.New(cell, options...)
	require.Nil(t, err)

	return New(e, WithLink(&testLink{status: scale.ConnectionStatus{State: scale.StateAdvertising}})), e
}

func do(t *testing.T, api *API, method, path, body string) (int, []byte) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	res, err := api.router.Test(req)
	require.Nil(t, err)
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	require.Nil(t, err)
	return res.StatusCode, data
}

func TestCommand(t *testing.T) {
	api, e := newTestAPI(t)

	code, _ := do(t, api, http.MethodPost, "/command", "64")
	assert.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, device.ModeTare, e.State().Status.Mode)

	code, _ = do(t, api, http.MethodPost, "/command", "73 41 20 00 00")
	assert.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, device.MeasurementStatus{Mode: device.ModeCalibration, Weight: 10}, e.State().Status)

	cmd := hex.EncodeToString(progressor.EncodeCommand(progressor.Command{OpCode: progressor.OpAddCalibrationPoint, Weight: 2.5}))
	code, _ = do(t, api, http.MethodPost, "/command", cmd)
	assert.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, float32(2.5), e.State().Status.Weight)
}

func TestCommandInvalid(t *testing.T) {
	api, e := newTestAPI(t)

	for _, body := range []string{"zz", "42", "7300", ""} {
		code, _ := do(t, api, http.MethodPost, "/command", body)
		assert.Equal(t, http.StatusBadRequest, code, body)
	}
	assert.Equal(t, device.ModeDisabled, e.State().Status.Mode)
}

func TestCommandQueueFull(t *testing.T) {
	api, _ := newTestAPI(t, emulator.WithQueueSize(1))

	code, _ := do(t, api, http.MethodPost, "/command", "70")
	assert.Equal(t, http.StatusAccepted, code)
	code, _ = do(t, api, http.MethodPost, "/command", "70")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestState(t *testing.T) {
	api, _ := newTestAPI(t)
	do(t, api, http.MethodPost, "/command", "65")

	code, body := do(t, api, http.MethodGet, "/state", "")
	require.Equal(t, http.StatusOK, code)

	var res map[string]interface{}
	require.Nil(t, json.Unmarshal(body, &res))
	assert.Equal(t, "soft_tare", res["status"].(map[string]interface{})["mode"])
	assert.Equal(t, false, res["tared"])
}

func TestCalibration(t *testing.T) {
	api, _ := newTestAPI(t)

	code, body := do(t, api, http.MethodGet, "/calibration", "")
	require.Equal(t, http.StatusOK, code)

	var c scale.Calibration
	require.Nil(t, json.Unmarshal(body, &c))
	assert.Equal(t, hx711.DefaultCalibration(), c)
}

func TestStats(t *testing.T) {
	api, _ := newTestAPI(t)
	do(t, api, http.MethodPost, "/command", "70")
	do(t, api, http.MethodPost, "/command", "ff")

	code, body := do(t, api, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, code)

	var s emulator.Stats
	require.Nil(t, json.Unmarshal(body, &s))
	assert.Equal(t, uint64(1), s.CommandsHandled)
	assert.Equal(t, uint64(1), s.DecodeErrors)
	assert.Equal(t, 1, s.QueueLength)
	assert.Equal(t, emulator.DefaultQueueSize, s.QueueCapacity)
}

func TestReading(t *testing.T) {
	api, _ := newTestAPI(t)

	code, _ := do(t, api, http.MethodGet, "/reading", "")
	assert.Equal(t, http.StatusNotFound, code)

	api.HandleReading(scale.Reading{Micros: 12500, Unit: scale.UnitKilograms, Weight: 12.5})
	code, body := do(t, api, http.MethodGet, "/reading", "")
	require.Equal(t, http.StatusOK, code)

	var r scale.Reading
	require.Nil(t, json.Unmarshal(body, &r))
	assert.Equal(t, float32(12.5), r.Weight)
	assert.Equal(t, uint32(12500), r.Micros)
}

func TestLink(t *testing.T) {
	api, _ := newTestAPI(t)

	code, body := do(t, api, http.MethodGet, "/link", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"state":"advertising"}`, string(body))

	chip := mock.New()
	e, err := emulator.New(hx711.New(chip, chip))
	require.Nil(t, err)
	code, _ = do(t, New(e), http.MethodGet, "/link", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestUnsupportedMethod(t *testing.T) {
	api, _ := newTestAPI(t)

	code, _ := do(t, api, http.MethodGet, "/command", "")
	assert.NotEqual(t, http.StatusOK, code)
}

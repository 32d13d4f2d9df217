//go:build tinygo

// Command firmware runs the Progressor emulator on a BLE capable microcontroller with an
// HX711 attached, e.g.:
//
//	tinygo flash -target=xiao-ble -ldflags="-X main.deviceID=0x2639 -X main.appVersion=1.2.3.4" ./cmd/firmware
package main

import (
	"context"
	"machine"
	"strconv"

	"github.com/fako1024/progressor/pkg/emulator"
	"github.com/fako1024/progressor/pkg/hx711"
	"github.com/fako1024/progressor/pkg/progressor"
	"tinygo.org/x/bluetooth"
)

const (
	clockPin = machine.D2
	dataPin  = machine.D3

	writeQueueSize = 4
)

// Set via -ldflags -X
var (
	deviceID   = "0"
	appVersion = emulator.DefaultAppVersion
	deviceName = progressor.DefaultDeviceName
)

var adapter = bluetooth.DefaultAdapter

type controlWrite struct {
	buf [progressor.MaxCommandSize]byte
	n   int
}

func main() {
	logger := &consoleLogger{}

	id, err := strconv.ParseUint(deviceID, 0, 64)
	if err != nil {
		logger.Warnf("invalid device id `%s`, using 0", deviceID)
	}

	cell := hx711.New(hx711.NewMachineClock(clockPin), hx711.NewMachineData(dataPin),
		hx711.WithLogger(logger),
	)
	emu, err := emulator.New(cell,
		emulator.WithProgressorID(id),
		emulator.WithAppVersion(appVersion),
		emulator.WithQueueSize(16),
		emulator.WithLogger(logger),
	)
	must("initialize emulator", err)

	serviceUUID := mustUUID(progressor.ServiceUUID.String())
	adv := adapter.DefaultAdvertisement()

	// Must be registered before the stack is enabled
	adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		if connected {
			logger.Info("central connected")
			return
		}
		logger.Info("central disconnected")
		emu.Disconnected()
		if err := adv.Start(); err != nil {
			logger.Errorf("failed to restart advertising: %s", err)
		}
	})

	must("enable BLE stack", adapter.Enable())

	// Write events may be delivered from interrupt context, decoding happens on a goroutine
	writes := make(chan controlWrite, writeQueueSize)

	var dataPoint bluetooth.Characteristic
	must("add service", adapter.AddService(&bluetooth.Service{
		UUID: serviceUUID,
		Characteristics: []bluetooth.CharacteristicConfig{
			{
				Handle: &dataPoint,
				UUID:   mustUUID(progressor.DataPointUUID.String()),
				Value:  make([]byte, progressor.DataPointSize),
				Flags:  bluetooth.CharacteristicReadPermission | bluetooth.CharacteristicNotifyPermission,
			},
			{
				UUID:  mustUUID(progressor.ControlPointUUID.String()),
				Value: make([]byte, progressor.MaxCommandSize),
				Flags: bluetooth.CharacteristicWritePermission | bluetooth.CharacteristicWriteWithoutResponsePermission,
				WriteEvent: func(client bluetooth.Connection, offset int, value []byte) {
					if offset != 0 {
						return
					}
					var w controlWrite
					w.n = copy(w.buf[:], value)
					select {
					case writes <- w:
					default:
					}
				},
			},
		},
	}))

	must("config adv", adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    deviceName,
		ServiceUUIDs: []bluetooth.UUID{serviceUUID},
	}))
	must("start adv", adv.Start())
	logger.Infof("advertising as `%s`", deviceName)

	go func() {
		for w := range writes {
			_ = emu.HandleCommand(w.buf[:w.n])
		}
	}()

	go func() {
		for dp := range emu.Outbox().C() {
			frame := dp.Bytes()
			if _, err := dataPoint.Write(frame[:]); err != nil {
				logger.Debugf("failed to notify %s: %s", dp, err)
			}
		}
	}()

	must("run emulator", emu.Run(context.Background()))
}

func mustUUID(s string) bluetooth.UUID {
	uuid, err := bluetooth.ParseUUID(s)
	must("parse UUID "+s, err)
	return uuid
}

func must(action string, err error) {
	if err != nil {
		panic("failed to " + action + ": " + err.Error())
	}
}

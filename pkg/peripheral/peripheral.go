// Package peripheral exposes an emulator as Progressor GATT peripheral over a Linux HCI device
package peripheral

import (
	"fmt"
	"sync"
	"time"

	"github.com/fako1024/gatt"
	"github.com/fako1024/progressor/pkg/emulator"
	"github.com/fako1024/progressor/pkg/progressor"
	"github.com/fako1024/progressor/pkg/scale"
)

const (
	donePollInterval = 100 * time.Millisecond
)

var (
	serviceUUID      = gatt.MustParseUUID(progressor.ServiceUUID.String())
	dataPointUUID    = gatt.MustParseUUID(progressor.DataPointUUID.String())
	controlPointUUID = gatt.MustParseUUID(progressor.ControlPointUUID.String())
)

// Emulator denotes the device served by the peripheral
type Emulator interface {
	HandleCommand(buf []byte) error
	Outbox() *emulator.Outbox
	Disconnected()
}

// Notifier denotes a subscription to the data point characteristic
type Notifier interface {
	Write(data []byte) (int, error)
	Done() bool
}

// Peripheral denotes a Progressor GATT peripheral
type Peripheral struct {
	connectionStatus scale.ConnectionStatus
	central          string
	statusMu         sync.RWMutex

	emulator   Emulator
	deviceName string

	stateChangeHandler func(status scale.ConnectionStatus)
	stateChangeChan    chan scale.ConnectionStatus

	doneChan  chan struct{}
	closeOnce sync.Once

	btDevice gatt.Device

	logger scale.Logger
}

// New instantiates a new Peripheral struct, executing functional options, if any
func New(e Emulator, options ...func(*Peripheral)) (*Peripheral, error) {

	// Initialize a new instance of a Progressor peripheral
	p := &Peripheral{
		emulator:   e,
		deviceName: progressor.DefaultDeviceName,
		doneChan:   make(chan struct{}),
		logger:     &scale.NullLogger{},
	}

	// Execute functional options (if any), see options.go for implementation
	for _, option := range options {
		option(p)
	}

	// Initialize a new GATT device (if not provided as option)
	if p.btDevice == nil {
		btDevice, err := gatt.NewDevice(defaultBTServerOptions...)
		if err != nil {
			return nil, err
		}
		p.btDevice = btDevice
	}

	return p, p.serve()
}

// ConnectionStatus returns the current status of the bluetooth link
func (p *Peripheral) ConnectionStatus() scale.ConnectionStatus {
	p.statusMu.RLock()
	defer p.statusMu.RUnlock()

	return p.connectionStatus
}

// SetStateChangeHandler defines a handler function that is called upon state change
func (p *Peripheral) SetStateChangeHandler(fn func(status scale.ConnectionStatus)) {
	p.stateChangeHandler = fn
}

// SetStateChangeChannel defines a channel that receives state changes (non-blocking)
func (p *Peripheral) SetStateChangeChannel(ch chan scale.ConnectionStatus) {
	p.stateChangeChan = ch
}

// Close stops advertising and removes the Progressor service
func (p *Peripheral) Close() error {
	p.closeOnce.Do(func() {
		close(p.doneChan)
	})

	if p.btDevice == nil {
		return nil
	}
	_ = p.btDevice.StopAdvertising()
	return p.btDevice.RemoveAllServices()
}

////////////////////////////////////////////////////////////////////////////////

func (p *Peripheral) serve() error {

	// Register handlers
	p.btDevice.Handle(
		gatt.AddCentralConnected(p.onCentralConnected),
		gatt.AddCentralDisconnected(p.onCentralDisconnected),
	)

	// Initialize the device
	return p.btDevice.Init(p.onStateChanged)
}

func (p *Peripheral) newService() *gatt.Service {
	s := gatt.NewService(serviceUUID)

	s.AddCharacteristic(dataPointUUID).HandleNotifyFunc(func(r gatt.Request, n gatt.Notifier) {
		p.logger.Debugf("central `%s` subscribed to data points", r.Central.ID())
		p.pump(n)
	})

	s.AddCharacteristic(controlPointUUID).HandleWriteFunc(func(r gatt.Request, data []byte) (status byte) {
		p.onControlWrite(data)
		return gatt.StatusSuccess
	})

	return s
}

func (p *Peripheral) advertise(d gatt.Device) {
	if err := d.AdvertiseNameAndServices(p.deviceName, []gatt.UUID{serviceUUID}); err != nil {
		p.setStatus(scale.StateDisconnected, fmt.Errorf("failed to advertise: %w", err))
		return
	}

	p.logger.Infof("advertising as `%s`", p.deviceName)
	p.setStatus(scale.StateAdvertising, nil)
}

func (p *Peripheral) setStatus(state scale.State, err error) {
	p.statusMu.Lock()
	p.connectionStatus = scale.ConnectionStatus{
		State: state,
		Error: err,
	}
	status := p.connectionStatus
	p.statusMu.Unlock()

	// Call handler function, if any
	if p.stateChangeHandler != nil {
		p.stateChangeHandler(status)
	}

	// Put state change on channel, if any
	if p.stateChangeChan != nil {
		select {
		case p.stateChangeChan <- status:
		default:
		}
	}
}

// pump forwards queued data points as notifications until the central unsubscribes or
// the peripheral is closed
func (p *Peripheral) pump(n Notifier) {
	ticker := time.NewTicker(donePollInterval)
	defer ticker.Stop()

	outbox := p.emulator.Outbox().C()
	for {
		select {
		case <-p.doneChan:
			return
		case <-ticker.C:
			if n.Done() {
				p.logger.Debug("data point subscription ended")
				return
			}
		case dp := <-outbox:
			if n.Done() {
				p.logger.Debugf("data point subscription ended, dropping %s", dp)
				return
			}
			frame := dp.Bytes()
			if _, err := n.Write(frame[:]); err != nil {
				p.logger.Warnf("failed to notify %s: %s", dp, err)
			}
		}
	}
}

func (p *Peripheral) onControlWrite(data []byte) {

	// Decoding and queueing errors are logged by the emulator and never fail the write
	if err := p.emulator.HandleCommand(data); err != nil {
		p.logger.Debugf("control write `%x` rejected: %s", data, err)
	}
}

// connect admits the first central only, reporting if the central was accepted
func (p *Peripheral) connect(id string) bool {
	p.statusMu.Lock()
	if p.central != "" {
		p.statusMu.Unlock()
		return false
	}
	p.central = id
	p.statusMu.Unlock()

	p.setStatus(scale.StateConnected, nil)
	return true
}

// disconnect releases the link held by the given central, reporting if it was the active one
func (p *Peripheral) disconnect(id string) bool {
	p.statusMu.Lock()
	if p.central != id {
		p.statusMu.Unlock()
		return false
	}
	p.central = ""
	p.statusMu.Unlock()

	p.emulator.Disconnected()
	p.setStatus(scale.StateDisconnected, nil)
	return true
}

////////////////////////////////////////////////////////////////////////////////

func (p *Peripheral) onStateChanged(d gatt.Device, s gatt.State) {
	switch s {
	case gatt.StatePoweredOn:
		if err := d.AddService(p.newService()); err != nil {
			p.setStatus(scale.StateDisconnected, fmt.Errorf("failed to add service: %w", err))
			return
		}
		p.advertise(d)
	default:
		p.logger.Warnf("bluetooth device changed to state %s", s)
		p.setStatus(scale.StateDisconnected, nil)
	}
}

func (p *Peripheral) onCentralConnected(c gatt.Central) {
	if !p.connect(c.ID()) {
		p.logger.Warnf("rejecting central `%s`, a link is already active", c.ID())
		if err := c.Close(); err != nil {
			p.logger.Warnf("failed to close central `%s`: %s", c.ID(), err)
		}
		return
	}

	p.logger.Infof("central `%s` connected (MTU %d)", c.ID(), c.MTU())
}

func (p *Peripheral) onCentralDisconnected(c gatt.Central) {
	if !p.disconnect(c.ID()) {
		return
	}

	p.logger.Infof("central `%s` disconnected", c.ID())

	select {
	case <-p.doneChan:
		return
	default:
	}
	p.advertise(p.btDevice)
}

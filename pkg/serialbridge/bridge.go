// Package serialbridge exposes an emulator over a serial line, for bench setups without
// a Bluetooth controller. Inbound frames are length-prefixed control point writes,
// outbound frames are data points in their meaningful [code][length][payload] form
package serialbridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fako1024/progressor/pkg/emulator"
	"github.com/fako1024/progressor/pkg/scale"
	"go.bug.st/serial"
)

const (
	readTimeout = 100 * time.Millisecond
	readBufSize = 64
)

// Port denotes a serial port
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// Emulator denotes the device served over the serial line
type Emulator interface {
	HandleCommand(buf []byte) error
	Outbox() *emulator.Outbox
	Disconnected()
}

// Bridge denotes a serial link to an emulator
type Bridge struct {
	port     Port
	emulator Emulator

	connectionStatus   scale.ConnectionStatus
	stateChangeHandler func(status scale.ConnectionStatus)
	mu                 sync.RWMutex

	closeOnce sync.Once

	logger scale.Logger
}

// Open opens the named serial port and instantiates a new bridge on it
func Open(name string, baudRate int, e Emulator, options ...func(*Bridge)) (*Bridge, error) {
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baudRate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}

	return New(port, e, options...), nil
}

// New instantiates a new bridge on an open port, executing functional options, if any
func New(port Port, e Emulator, options ...func(*Bridge)) *Bridge {
	b := &Bridge{
		port:     port,
		emulator: e,
		connectionStatus: scale.ConnectionStatus{
			State: scale.StateAdvertising,
		},
		logger: &scale.NullLogger{},
	}

	for _, option := range options {
		option(b)
	}

	return b
}

// WithLogger sets a logger
func WithLogger(logger scale.Logger) func(*Bridge) {
	return func(b *Bridge) {
		b.logger = logger
	}
}

// ConnectionStatus returns the current status of the serial link
func (b *Bridge) ConnectionStatus() scale.ConnectionStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.connectionStatus
}

// SetStateChangeHandler defines a handler function that is called upon state change
func (b *Bridge) SetStateChangeHandler(fn func(status scale.ConnectionStatus)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stateChangeHandler = fn
}

// Run serves the serial link until the context is canceled or the port fails
func (b *Bridge) Run(ctx context.Context) error {
	if err := b.port.SetReadTimeout(readTimeout); err != nil {
		return fmt.Errorf("failed to set read timeout: %w", err)
	}

	b.setStatus(scale.StateConnected, nil)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errChan := make(chan error, 2)
	go func() {
		errChan <- b.readLoop(ctx)
	}()
	go func() {
		errChan <- b.writeLoop(ctx)
	}()

	err := <-errChan
	cancel()
	<-errChan

	b.emulator.Disconnected()
	if errors.Is(err, context.Canceled) {
		b.setStatus(scale.StateDisconnected, nil)
	} else {
		b.setStatus(scale.StateDisconnected, err)
	}

	return err
}

// Close closes the serial port
func (b *Bridge) Close() (err error) {
	b.closeOnce.Do(func() {
		err = b.port.Close()
	})
	return
}

////////////////////////////////////////////////////////////////////////////////

func (b *Bridge) setStatus(state scale.State, err error) {
	b.mu.Lock()
	b.connectionStatus = scale.ConnectionStatus{
		State: state,
		Error: err,
	}
	status, fn := b.connectionStatus, b.stateChangeHandler
	b.mu.Unlock()

	if fn != nil {
		fn(status)
	}
}

func (b *Bridge) readLoop(ctx context.Context) error {
	var (
		dec CommandDecoder
		buf = make([]byte, readBufSize)
	)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		// A read timeout yields n == 0 without error
		n, err := b.port.Read(buf)
		if err != nil {
			return fmt.Errorf("failed to read from serial port: %w", err)
		}
		if n == 0 {
			continue
		}

		cmds, skipped := dec.Feed(buf[:n])
		if skipped > 0 {
			b.logger.Warnf("skipped %d bytes of invalid serial input", skipped)
		}
		for _, cmd := range cmds {
			if err := b.emulator.HandleCommand(cmd); err != nil {
				b.logger.Debugf("serial command `%x` rejected: %s", cmd, err)
			}
		}
	}
}

func (b *Bridge) writeLoop(ctx context.Context) error {
	outbox := b.emulator.Outbox().C()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case dp := <-outbox:
			if _, err := b.port.Write(dp.Frame()); err != nil {
				return fmt.Errorf("failed to write %s to serial port: %w", dp, err)
			}
		}
	}
}

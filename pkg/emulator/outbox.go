package emulator

import (
	"errors"
	"sync/atomic"

	"github.com/fako1024/progressor/pkg/progressor"
)

// ErrQueueFull denotes a data point that was dropped because the outbox is full
var ErrQueueFull = errors.New("outbox full")

// Outbox denotes the bounded FIFO of data points awaiting notification. Producers never
// block, the transport is the single consumer
type Outbox struct {
	ch chan progressor.DataPoint

	pushed  atomic.Uint64
	dropped atomic.Uint64
}

// NewOutbox instantiates a new outbox holding up to capacity data points
func NewOutbox(capacity int) *Outbox {
	if capacity <= 0 {
		capacity = 1
	}

	return &Outbox{
		ch: make(chan progressor.DataPoint, capacity),
	}
}

// TryPush enqueues a data point or returns ErrQueueFull without blocking
func (o *Outbox) TryPush(dp progressor.DataPoint) error {
	select {
	case o.ch <- dp:
		o.pushed.Add(1)
		return nil
	default:
		o.dropped.Add(1)
		return ErrQueueFull
	}
}

// C returns the channel to consume data points from
func (o *Outbox) C() <-chan progressor.DataPoint {
	return o.ch
}

// Drain discards all queued data points, e.g. after the link was lost
func (o *Outbox) Drain() (n int) {
	for {
		select {
		case <-o.ch:
			n++
		default:
			return
		}
	}
}

// Len returns the number of queued data points
func (o *Outbox) Len() int {
	return len(o.ch)
}

// Cap returns the capacity of the outbox
func (o *Outbox) Cap() int {
	return cap(o.ch)
}

// Pushed returns the number of data points accepted so far
func (o *Outbox) Pushed() uint64 {
	return o.pushed.Load()
}

// Dropped returns the number of data points rejected so far
func (o *Outbox) Dropped() uint64 {
	return o.dropped.Load()
}

package emulator

import (
	"sync"
	"time"

	"github.com/fatih/stopwatch"
)

// Clock provides the device uptime used for measurement timestamps
type Clock interface {
	Micros() uint64
}

// UptimeClock measures the time since the emulator was started
type UptimeClock struct {
	timer *stopwatch.Stopwatch
	mu    sync.Mutex
}

// NewUptimeClock instantiates and starts a new uptime clock
func NewUptimeClock() *UptimeClock {
	return &UptimeClock{
		timer: stopwatch.Start(0),
	}
}

// Micros returns the uptime in microseconds
func (c *UptimeClock) Micros() uint64 {
	return uint64(c.Elapsed() / time.Microsecond)
}

// Elapsed returns the uptime
func (c *UptimeClock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.timer.ElapsedTime()
}

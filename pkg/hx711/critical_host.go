//go:build !tinygo

package hx711

import (
	"runtime"
	"sync"
	"time"
)

// threadSection pins the calling goroutine to its OS thread and serializes all
// bit-banged frames of the process
type threadSection struct {
	mu sync.Mutex
}

func (s *threadSection) Do(fn func()) {
	s.mu.Lock()
	runtime.LockOSThread()
	defer func() {
		runtime.UnlockOSThread()
		s.mu.Unlock()
	}()

	fn()
}

func defaultCriticalSection() CriticalSection {
	return &threadSection{}
}

// spin busy-waits, time.Sleep is far too coarse for microsecond pulses
func spin(d time.Duration) {
	if d <= 0 {
		return
	}
	for start := time.Now(); time.Since(start) < d; {
	}
}

func defaultDelay() func(time.Duration) {
	return spin
}

package hx711

import "time"

// ClockPin denotes the output driving the PD_SCK line
type ClockPin interface {
	Set(high bool)
}

// DataPin denotes the input sampling the DOUT line
type DataPin interface {
	Get() bool
}

// EdgeWaiter is implemented by data pins that can block until DOUT falls,
// avoiding a busy poll while waiting for a conversion
type EdgeWaiter interface {
	WaitForLow(timeout time.Duration) bool
}

// CriticalSection runs a function without being preempted
type CriticalSection interface {
	Do(fn func())
}

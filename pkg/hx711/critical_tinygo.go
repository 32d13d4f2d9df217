//go:build tinygo

package hx711

import (
	"runtime/interrupt"
	"time"

	"tinygo.org/x/drivers/delay"
)

type interruptSection struct{}

func (interruptSection) Do(fn func()) {
	state := interrupt.Disable()
	defer interrupt.Restore(state)

	fn()
}

func defaultCriticalSection() CriticalSection {
	return interruptSection{}
}

func defaultDelay() func(time.Duration) {
	return func(d time.Duration) {
		delay.Sleep(d)
	}
}

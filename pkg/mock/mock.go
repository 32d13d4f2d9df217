// Package mock provides a simulated HX711 that speaks the two-wire protocol on the
// pin level, for tests and for running the emulator without a load cell attached
package mock

import (
	"sync"
	"time"

	"github.com/fatih/stopwatch"
)

const (
	frameBits = 24

	// DefaultConversionInterval is the conversion interval of an HX711 at 80 SPS
	DefaultConversionInterval = 12500 * time.Microsecond
)

// Source generates a raw conversion for the given time since the mock was started
type Source func(elapsed time.Duration) int32

// HX711 denotes a simulated HX711. It implements both the clock (Set) and the data
// (Get) pin of the driver
type HX711 struct {
	queue         []int32
	notReadyPolls int

	source         Source
	interval       time.Duration
	timer          *stopwatch.Stopwatch
	lastConversion time.Duration

	clock   bool
	pulses  int
	current uint32

	gainPulses  int
	conversions int
	poweredDown bool

	mu sync.Mutex
}

// New instantiates a new simulated HX711 with a queue of pending conversions
func New(samples ...int32) *HX711 {
	return &HX711{
		queue:      append([]int32(nil), samples...),
		gainPulses: -1,
	}
}

// NewGenerator instantiates a simulated HX711 producing a new conversion from source
// every interval, like a free-running chip
func NewGenerator(source Source, interval time.Duration) *HX711 {
	h := New()
	h.source = source
	h.interval = interval
	h.timer = stopwatch.Start(0)
	h.lastConversion = -interval

	return h
}

// Feed queues further conversions
func (h *HX711) Feed(samples ...int32) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.queue = append(h.queue, samples...)
}

// HoldNotReady keeps DOUT high for the next n idle polls, regardless of pending conversions
func (h *HX711) HoldNotReady(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.notReadyPolls = n
}

// Pending returns the number of queued conversions
func (h *HX711) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.queue)
}

// Conversions returns the number of complete 24 bit frames clocked out
func (h *HX711) Conversions() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.conversions
}

// GainPulses returns the number of extra pulses following the last complete frame,
// or -1 if no frame has been finished yet
func (h *HX711) GainPulses() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.pulses >= frameBits && !h.clock {
		h.closeFrame(h.pulses)
	}
	return h.gainPulses
}

// PoweredDown returns if the clock line is currently held high outside of a frame
func (h *HX711) PoweredDown() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.poweredDown
}

// Set drives the simulated PD_SCK line. Rising edges past the 24 data bits are
// counted as gain pulses of the current frame
func (h *HX711) Set(high bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if high && !h.clock {
		if h.pulses == 0 {
			if h.startFrame() {
				h.pulses = 1
			} else {
				h.poweredDown = true
			}
		} else {
			h.pulses++
			if h.pulses == frameBits {
				h.conversions++
			}
		}
	}
	if !high {
		h.poweredDown = false
	}
	h.clock = high
}

// Get samples the simulated DOUT line. Polling with the clock low closes a finished
// frame, sampling with the clock high past the frame means the previous pulse
// already started the next one
func (h *HX711) Get() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.pulses > frameBits {
		if !h.clock {
			h.closeFrame(h.pulses)
		} else {
			h.closeFrame(h.pulses - 1)
			if !h.startFrame() {
				return true
			}
			h.pulses = 1
		}
	}
	if h.pulses == frameBits && !h.clock {
		h.closeFrame(h.pulses)
	}
	if h.pulses > 0 {
		return h.current>>(frameBits-h.pulses)&1 == 1
	}

	if h.notReadyPolls > 0 {
		h.notReadyPolls--
		return true
	}

	return !h.readyLocked()
}

////////////////////////////////////////////////////////////////////////////////

// closeFrame ends the current frame after n pulses in total
func (h *HX711) closeFrame(n int) {
	h.gainPulses = n - frameBits
	h.pulses = 0
}

// startFrame latches the next conversion, if one is ready
func (h *HX711) startFrame() bool {
	if !h.readyLocked() {
		return false
	}
	h.current = uint32(h.next()) & (1<<frameBits - 1)

	return true
}

func (h *HX711) readyLocked() bool {
	if len(h.queue) > 0 {
		return true
	}
	if h.source == nil {
		return false
	}

	return h.timer.ElapsedTime()-h.lastConversion >= h.interval
}

func (h *HX711) next() int32 {
	if len(h.queue) > 0 {
		v := h.queue[0]
		h.queue = h.queue[1:]
		return v
	}

	elapsed := h.timer.ElapsedTime()
	h.lastConversion = elapsed
	return h.source(elapsed)
}

package mock

import (
	"math"
	"math/rand"
	"time"
)

// PullCurve returns a source simulating repeated pulls on the load cell: a half sine of
// peakKg lasting half of each period, followed by rest. countsPerKg converts to raw
// counts around the given zero level, noise adds uniform jitter of +/- noise counts
func PullCurve(zero int32, countsPerKg, peakKg float64, period time.Duration, noise int32) Source {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	return func(elapsed time.Duration) int32 {
		var kg float64
		if period > 0 {
			phase := float64(elapsed%period) / float64(period)
			if phase < 0.5 {
				kg = peakKg * math.Sin(phase*2*math.Pi)
			}
		}

		value := int64(zero) + int64(kg*countsPerKg)
		if noise > 0 {
			value += rng.Int63n(2*int64(noise)+1) - int64(noise)
		}

		return int32(value)
	}
}

// Constant returns a source always producing the same raw value
func Constant(raw int32) Source {
	return func(time.Duration) int32 {
		return raw
	}
}

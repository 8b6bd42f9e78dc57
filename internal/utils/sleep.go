package utils

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

// session fatigue state, reset every time the scheduler starts.
var (
	sessionMu    sync.RWMutex
	sessionStart time.Time
)

// SetSessionStart records the start of a new automation session. Sleep applies a
// progressive fatigue multiplier that rises from 1.0 to 1.25 over the first 3 hours.
func SetSessionStart() {
	sessionMu.Lock()
	sessionStart = time.Now()
	sessionMu.Unlock()
}

// sessionFatigue returns a multiplier in [1.0, 1.25]. Returns 1.0 when no session
// has been started.
func sessionFatigue() float64 {
	sessionMu.RLock()
	start := sessionStart
	sessionMu.RUnlock()
	if start.IsZero() {
		return 1.0
	}
	f := time.Since(start).Hours() / 3.0
	if f > 1.0 {
		f = 1.0
	}
	return 1.0 + 0.25*f
}

// sampleGamma returns a sample from the Gamma(shape, scale) distribution using
// the Marsaglia-Tsang squeeze method. shape must be >= 1.
func sampleGamma(shape, scale float64) float64 {
	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9.0*d)
	for {
		x := rand.NormFloat64()
		v := 1.0 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		x2 := x * x
		u := rand.Float64()
		if u < 1.0-0.0331*(x2*x2) {
			return d * v * scale
		}
		if math.Log(u) < 0.5*x2+d*(1.0-v+math.Log(v)) {
			return d * v * scale
		}
	}
}

// Sleep pauses for a duration drawn from a Gamma(4, 0.25) distribution centred
// on the requested millisecond value. The multiplier is clamped to [0.4, 2.5].
func Sleep(milliseconds int) {
	const shape = 4.0
	const scale = 0.25
	multiplier := sampleGamma(shape, scale)
	if multiplier < 0.4 {
		multiplier = 0.4
	}
	if multiplier > 2.5 {
		multiplier = 2.5
	}
	sleepMs := int(float64(milliseconds) * multiplier * sessionFatigue())
	time.Sleep(time.Duration(sleepMs) * time.Millisecond)
}

// RandomDuration returns a uniform duration in [min, max] seconds using rng.
// A nil rng uses the global source. Swapped or negative bounds are normalized.
func RandomDuration(rng *rand.Rand, minSeconds, maxSeconds float64) time.Duration {
	if minSeconds < 0 {
		minSeconds = 0
	}
	if maxSeconds < minSeconds {
		minSeconds, maxSeconds = maxSeconds, minSeconds
		if minSeconds < 0 {
			minSeconds = 0
		}
	}
	f := rand.Float64
	if rng != nil {
		f = rng.Float64
	}
	secs := minSeconds + f()*(maxSeconds-minSeconds)
	return time.Duration(secs * float64(time.Second))
}

// Wait blocks for d or until ctx is done, whichever comes first.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

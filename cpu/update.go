package cpu

import (
	"math"
	"time"
)

// updateInterval is how long every CPU driver trusts its cached readings
// before touching hardware again. Clients polling faster than this see the
// cached values; only the first read after the interval elapses pays for a
// hardware transaction.
const updateInterval = time.Second

// updateGate is the shared re-poll timestamp every family driver embeds.
// Callers must hold their driver's mutex around due.
type updateGate struct {
	last time.Time
}

// due reports whether the cached values have expired, stamping the gate
// when they have so concurrent readers inside the window observe the cache
// instead of re-sampling.
func (g *updateGate) due(now time.Time) bool {
	if !g.last.IsZero() && now.Sub(g.last) < updateInterval {
		return false
	}

	g.last = now

	return true
}

// minPowerSampleInterval suppresses power computation over windows too
// short to average meaningfully; a delta over a sub-10ms window is mostly
// counter-read jitter.
const minPowerSampleInterval = 10 * time.Millisecond

// energyCounter turns a wrapping 32-bit energy accumulator into watts:
// powerW = unit * (cur - prev) / dt, with the wrap at 2^32 handled by
// unsigned subtraction so the delta is non-negative across it. powerW
// stays NaN until two samples far enough apart exist.
type energyCounter struct {
	last     uint32
	lastTime time.Time
	valid    bool
	powerW   float64
}

// update feeds one accumulator sample.
func (e *energyCounter) update(cur uint32, unitJ float64, now time.Time) {
	if !e.valid {
		e.last = cur
		e.lastTime = now
		e.valid = true
		e.powerW = math.NaN()

		return
	}

	dt := now.Sub(e.lastTime)
	if dt < minPowerSampleInterval {
		return
	}

	delta := cur - e.last
	e.powerW = unitJ * float64(delta) / dt.Seconds()
	e.last = cur
	e.lastTime = now
}

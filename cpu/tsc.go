package cpu

import (
	"time"

	"github.com/openhwmon/gohwmon/cpuid"
)

// readTSC is implemented in tsc_amd64.s.
//
//go:noescape
func readTSC() uint64

const (
	tscCalibrationWindow  = 25 * time.Millisecond
	tscCalibrationSamples = 5
)

// hasTimeStampCounter reports CPUID(1).EDX bit 4, the TSC feature flag.
func hasTimeStampCounter(d *cpuid.Data) bool {
	return d.Safe(1).Edx&(1<<4) != 0
}

// estimateTSCFrequencyHz samples RDTSC around a short wall-clock window,
// repeated a few times, keeping the sample whose clock reads bracket the
// counter reads most tightly: the window with the least scheduler noise on
// either edge gives the least-biased ratio.
func estimateTSCFrequencyHz() float64 {
	var (
		best      float64
		bestError = time.Duration(1<<63 - 1)
	)

	for i := 0; i < tscCalibrationSamples; i++ {
		t0 := time.Now()
		start := readTSC()
		t1 := time.Now()

		time.Sleep(tscCalibrationWindow)

		t2 := time.Now()
		end := readTSC()
		t3 := time.Now()

		elapsed := t2.Sub(t1)
		if elapsed <= 0 {
			continue
		}

		bracketing := t1.Sub(t0) + t3.Sub(t2)
		if bracketing < bestError {
			bestError = bracketing
			best = float64(end-start) / elapsed.Seconds()
		}
	}

	return best
}

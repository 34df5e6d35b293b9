// Package cpu implements the per-family CPU sensor chips: a generic base
// providing TSC-derived frequency and /proc/stat-derived load, specialized
// by vendor/family for temperature, voltage and power (AMD families 0Fh,
// 10h-16h, 17h/19h, and Intel Core/Xeon).
package cpu

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// times is one logical CPU's idle and total jiffy counters, snapshotted
// from /proc/stat's per-cpu lines.
type times struct {
	idle, total int64
}

// readProcStatTimes parses the "cpuN ..." lines of /proc/stat into one
// times entry per logical CPU, in cpu-index order.
func readProcStatTimes(path string) ([]times, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cpu: open %s: %w", path, err)
	}
	defer f.Close()

	var out []times

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "cpu") || strings.HasPrefix(line, "cpu ") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}

		var sum int64

		vals := make([]int64, 0, len(fields)-1)

		for _, f := range fields[1:] {
			v, err := strconv.ParseInt(f, 10, 64)
			if err != nil {
				break
			}

			vals = append(vals, v)
			sum += v
		}

		if len(vals) < 4 {
			continue
		}

		out = append(out, times{idle: vals[3], total: sum})
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("cpu: scan %s: %w", path, err)
	}

	return out, nil
}

// Load tracks per-core and total CPU utilization as a fraction in [0,1],
// sampled from /proc/stat between calls to Update.
type Load struct {
	procStatPath string
	prev         []times
}

// NewLoad constructs a Load sampler.
func NewLoad() *Load {
	return &Load{procStatPath: "/proc/stat"}
}

// Update takes a new /proc/stat snapshot and returns per-logical-CPU load
// fractions; the first call returns nil since a load needs two snapshots
// to difference.
func (l *Load) Update() ([]float64, error) {
	cur, err := readProcStatTimes(l.procStatPath)
	if err != nil {
		return nil, err
	}

	if l.prev == nil {
		l.prev = cur
		return nil, nil
	}

	n := len(cur)
	if len(l.prev) < n {
		n = len(l.prev)
	}

	loads := make([]float64, n)

	for i := 0; i < n; i++ {
		dTotal := cur[i].total - l.prev[i].total
		if dTotal <= 0 {
			loads[i] = 0
			continue
		}

		dIdle := cur[i].idle - l.prev[i].idle
		load := 1 - float64(dIdle)/float64(dTotal)

		if load < 0 {
			load = 0
		}

		loads[i] = load
	}

	l.prev = cur

	return loads, nil
}

// Total averages per-logical-CPU loads into one package-wide fraction.
func Total(loads []float64) float64 {
	if len(loads) == 0 {
		return 0
	}

	var sum float64
	for _, v := range loads {
		sum += v
	}

	return sum / float64(len(loads))
}

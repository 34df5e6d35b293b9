package cpuid

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// logicalProcessorCount enumerates every logical processor visible to
// this process.
func logicalProcessorCount() (int, error) {
	entries, err := os.ReadDir(sysCPUPath)
	if err != nil {
		return 0, fmt.Errorf("cpuid: read %s: %w", sysCPUPath, err)
	}

	count := 0

	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "cpu") {
			continue
		}

		if _, err := strconv.Atoi(strings.TrimPrefix(name, "cpu")); err == nil {
			count++
		}
	}

	return count, nil
}

// GroupTopology probes every logical processor, groups the results by
// ProcessorID, then within each processor groups by CoreID, returning
// [package][core][thread].
func GroupTopology() ([][][]*Data, error) {
	n, err := logicalProcessorCount()
	if err != nil {
		return nil, err
	}

	all := make([]*Data, 0, n)

	for t := 0; t < n; t++ {
		d, err := Get(t)
		if err != nil {
			return nil, fmt.Errorf("cpuid: get thread %d: %w", t, err)
		}

		all = append(all, d)
	}

	return groupByPackageThenCore(all), nil
}

func groupByPackageThenCore(all []*Data) [][][]*Data {
	byPkg := map[uint32][]*Data{}

	for _, d := range all {
		byPkg[d.ProcessorID] = append(byPkg[d.ProcessorID], d)
	}

	pkgIDs := make([]uint32, 0, len(byPkg))
	for id := range byPkg {
		pkgIDs = append(pkgIDs, id)
	}

	sort.Slice(pkgIDs, func(i, j int) bool { return pkgIDs[i] < pkgIDs[j] })

	result := make([][][]*Data, 0, len(pkgIDs))

	for _, pkgID := range pkgIDs {
		byCore := map[uint32][]*Data{}

		for _, d := range byPkg[pkgID] {
			byCore[d.CoreID] = append(byCore[d.CoreID], d)
		}

		coreIDs := make([]uint32, 0, len(byCore))
		for id := range byCore {
			coreIDs = append(coreIDs, id)
		}

		sort.Slice(coreIDs, func(i, j int) bool { return coreIDs[i] < coreIDs[j] })

		cores := make([][]*Data, 0, len(coreIDs))
		for _, coreID := range coreIDs {
			threads := byCore[coreID]
			sort.Slice(threads, func(i, j int) bool { return threads[i].ThreadID < threads[j].ThreadID })
			cores = append(cores, threads)
		}

		result = append(result, cores)
	}

	return result
}

// sysCPUPath is exposed for tests that want to point topology discovery at
// a fixture directory instead of the real sysfs tree.
var sysCPUPath = filepath.Join("/sys", "devices", "system", "cpu")

package lmsensors

import (
	"fmt"
	"io"
	"sync"

	"github.com/openhwmon/gohwmon/probe"
	"github.com/openhwmon/gohwmon/sensors"
)

// Package-global adapter state behind Init/Cleanup. The query functions
// also work against any explicitly Built *Adapter; the global exists for
// callers that want the classic init/enumerate/cleanup lifecycle.
var (
	globalMu      sync.Mutex
	globalAdapter *Adapter
	globalTree    *sensors.TreeNode
)

// Init probes the host and builds the process-global adapter. config must
// be nil: configuration files are not supported, and a non-nil reader
// fails with ErrNotSupported without touching any hardware. Calling Init
// twice without an intervening Cleanup is a caller bug and panics;
// Cleanup may be called any number of times.
func Init(config io.Reader) error {
	if config != nil {
		return fmt.Errorf("lmsensors: configuration files are unsupported: %w", sensors.ErrNotSupported)
	}

	globalMu.Lock()
	defer globalMu.Unlock()

	if globalAdapter != nil {
		panic("lmsensors: Init called twice without Cleanup")
	}

	tree, err := probe.Init()
	if err != nil {
		return fmt.Errorf("lmsensors: init: %w", err)
	}

	globalTree = tree
	globalAdapter = Build(tree)

	return nil
}

// Cleanup tears down the chips and sensor tree built by Init. Safe to call
// without a preceding Init, and safe to call repeatedly.
func Cleanup() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalAdapter == nil {
		return
	}

	if err := probe.Close(globalTree); err != nil {
		sensors.Logger.Printf("lmsensors: cleanup: %v", err)
	}

	globalAdapter = nil
	globalTree = nil
}

// Default returns the adapter built by Init, or nil before Init/after
// Cleanup.
func Default() *Adapter {
	globalMu.Lock()
	defer globalMu.Unlock()

	return globalAdapter
}

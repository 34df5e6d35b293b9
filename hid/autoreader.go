package hid

import (
	"sync"
	"time"

	"github.com/openhwmon/gohwmon/sensors"
)

const autoReaderReportSize = 64

// autoReader owns the single background goroutine that reads unsolicited
// reports from a push-model HID device and hands each one to a callback.
// Devices that only ever emit reports on their own schedule (the Kraken)
// cannot share their read call with request/response callers, so this type
// keeps that read path exclusive.
type autoReader struct {
	dev      Device
	interval time.Duration
	onReport func([]byte)

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func (a *autoReader) start(dev Device, interval time.Duration, onReport func([]byte)) {
	a.dev = dev
	a.interval = interval
	a.onReport = onReport
	a.stopCh = make(chan struct{})

	a.wg.Add(1)

	go a.run()
}

func (a *autoReader) run() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	buf := make([]byte, autoReaderReportSize)

	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			n, err := a.dev.Read(buf)
			if err != nil {
				sensors.Logger.Printf("hid: report read failed: %v", err)
				continue
			}

			a.onReport(buf[:n])
		}
	}
}

func (a *autoReader) stop() {
	close(a.stopCh)
	a.wg.Wait()

	if a.dev != nil {
		_ = a.dev.Close()
	}
}

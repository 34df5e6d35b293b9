// Package ec implements the ACPI Embedded Controller command/data-port
// protocol and the Asus-specific EC sensor layer built on top of it.
package ec

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/openhwmon/gohwmon/ring0"
	"github.com/openhwmon/gohwmon/sensors"
)

const (
	commandPort = 0x66
	dataPort    = 0x62

	cmdRead  = 0x80
	cmdWrite = 0x81

	statusOutputBufferFull = 1 << 0
	statusInputBufferFull  = 1 << 1

	pollInterval = time.Millisecond
	pollAttempts = 50

	// failFastThreshold is the number of consecutive wait-read failures
	// that switches the EC into fail-fast mode, refusing further
	// transactions instead of hammering a controller that has stopped
	// responding.
	failFastThreshold = 20

	lockTimeout = 10 * time.Millisecond
)

// ErrTransactionFailed is returned when a command/address/data handshake
// does not complete within the polling window.
var ErrTransactionFailed = errors.New("ec: transaction failed")

// portIO is the slice of the ring0 facade the EC is driven through.
// *ring0.Facade satisfies it; tests substitute a scripted controller.
type portIO interface {
	ReadIOPort(port uint16) (byte, error)
	WriteIOPort(port uint16, v byte) error
}

// EC is the bottom-layer ACPI Embedded Controller, serialized by an
// internal mutex plus the cross-process EC lock; firmware and other vendor
// tools talk to the same controller.
type EC struct {
	ring0   portIO
	busLock *ring0.NamedMutex

	mu                  sync.Mutex
	consecutiveFailures int
	failFast            bool
}

// New constructs an EC bound to the process-wide ring0 facade and the
// cross-process EC lock. A nil busLock (zero-value EC in tests) skips the
// cross-process serialization.
func New(facade portIO) *EC {
	return &EC{ring0: facade, busLock: ring0.LockEC}
}

func (e *EC) withBusLock(fn func() error) error {
	if e.busLock == nil {
		return fn()
	}

	unlock, ok := e.busLock.TryLock(lockTimeout)
	if !ok {
		return sensors.ErrLockTimeout
	}
	defer unlock()

	return fn()
}

func (e *EC) readStatus() (byte, error) {
	return e.ring0.ReadIOPort(commandPort)
}

// waitFor spins up to pollAttempts*pollInterval for the status byte to
// satisfy mask/expect.
func (e *EC) waitFor(mask, expect byte) error {
	for i := 0; i < pollAttempts; i++ {
		status, err := e.readStatus()
		if err != nil {
			return err
		}

		if status&mask == expect {
			return nil
		}

		time.Sleep(pollInterval)
	}

	return ErrTransactionFailed
}

func (e *EC) waitInputBufferEmpty() error {
	return e.waitFor(statusInputBufferFull, 0)
}

func (e *EC) waitOutputBufferFull() error {
	return e.waitFor(statusOutputBufferFull, statusOutputBufferFull)
}

func (e *EC) writeCommand(cmd byte) error {
	if err := e.waitInputBufferEmpty(); err != nil {
		return err
	}

	return e.ring0.WriteIOPort(commandPort, cmd)
}

func (e *EC) writeData(v byte) error {
	if err := e.waitInputBufferEmpty(); err != nil {
		return err
	}

	return e.ring0.WriteIOPort(dataPort, v)
}

func (e *EC) readData() (byte, error) {
	if err := e.waitOutputBufferFull(); err != nil {
		return 0, err
	}

	return e.ring0.ReadIOPort(dataPort)
}

// Read performs a single-byte RD_EC transaction at addr: write the command
// byte, write the address byte, wait for OBF and read one data byte.
func (e *EC) Read(addr uint8) (byte, error) {
	bs, err := e.ReadBlock(addr, 1)
	if err != nil {
		return 0, err
	}

	return bs[0], nil
}

// ReadBlock reads n consecutive EC registers starting at addr in one
// transaction, serialized by the EC's internal mutex.
func (e *EC) ReadBlock(addr uint8, n int) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.failFast {
		return nil, fmt.Errorf("ec: %w (fail-fast engaged after %d consecutive failures)", ErrTransactionFailed, failFastThreshold)
	}

	var out []byte

	err := e.withBusLock(func() error {
		var err error
		out, err = e.transactionLocked(addr, n)

		return err
	})
	if err != nil {
		e.consecutiveFailures++
		if e.consecutiveFailures >= failFastThreshold {
			e.failFast = true
			sensors.Logger.Printf("ec: %d consecutive transaction failures, engaging fail-fast mode", e.consecutiveFailures)
		}

		return nil, err
	}

	e.consecutiveFailures = 0

	return out, nil
}

func (e *EC) transactionLocked(addr uint8, n int) ([]byte, error) {
	if err := e.writeCommand(cmdRead); err != nil {
		return nil, fmt.Errorf("ec: write command: %w", err)
	}

	if err := e.writeData(addr); err != nil {
		return nil, fmt.Errorf("ec: write address: %w", err)
	}

	out := make([]byte, n)

	for i := 0; i < n; i++ {
		v, err := e.readData()
		if err != nil {
			return nil, fmt.Errorf("ec: read data byte %d: %w", i, err)
		}

		out[i] = v
	}

	return out, nil
}

// Write performs a single-byte WR_EC transaction at addr.
func (e *EC) Write(addr, value uint8) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.failFast {
		return fmt.Errorf("ec: %w (fail-fast engaged)", ErrTransactionFailed)
	}

	if err := e.withBusLock(func() error {
		if err := e.writeCommand(cmdWrite); err != nil {
			return fmt.Errorf("ec: write command: %w", err)
		}

		if err := e.writeData(addr); err != nil {
			return fmt.Errorf("ec: write address: %w", err)
		}

		if err := e.writeData(value); err != nil {
			return fmt.Errorf("ec: write value: %w", err)
		}

		return nil
	}); err != nil {
		return err
	}

	e.consecutiveFailures = 0

	return nil
}

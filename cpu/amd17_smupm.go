package cpu

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/openhwmon/gohwmon/ring0"
	"github.com/openhwmon/gohwmon/sensors"
)

// smuLockTimeout is longer than the ordinary 10ms PCI window: a PM-table
// transfer spans a mailbox handshake plus a DRAM copy.
const smuLockTimeout = 100 * time.Millisecond

// SMU mailbox registers (Matisse/Vermeer addresses), reached through the
// same SMN-indirect PCI window every other register on this bus uses.
const (
	smuAddrMsg = 0x03B10528
	smuAddrRsp = 0x03B10564
	smuAddrArg = 0x03B10598

	smuRspOK = 0x01

	smuMsgTransferTableToDRAM = 0x05

	smuCommandPollLimit = 8192
)

// smuCodeName classifies the desktop Zen2/Zen3 codenames this parser
// recognizes. Every other codename (mobile, server, older Zen/Zen+) falls
// back to smuCodeNameUnknown and gets no PM-table channels at all.
type smuCodeName int

const (
	smuCodeNameUnknown smuCodeName = iota
	smuCodeNameMatisse             // Ryzen 3000 desktop (Zen2)
	smuCodeNameVermeer             // Ryzen 5000 desktop (Zen3)
)

func classifySMUCodeName(family, model uint32) smuCodeName {
	switch {
	case family == 0x17 && model == 0x71:
		return smuCodeNameMatisse
	case family == 0x19 && (model == 0x20 || model == 0x21):
		return smuCodeNameVermeer
	default:
		return smuCodeNameUnknown
	}
}

// pmTableOffset is one float32 field this parser decodes out of the
// transferred PM table.
type pmTableOffset struct {
	offset int
	label  string
	scale  float64
}

// pmTableLayout splits a codename's recognized offsets by the sensor type
// they publish as.
type pmTableLayout struct {
	frequency []pmTableOffset
	voltage   []pmTableOffset
}

// pmTableLayouts decodes a handful of each codename's PM table:
// fabric/memory clock and the SoC rail. The table carries dozens more
// power, current, and per-core fields this parser leaves alone.
var pmTableLayouts = map[smuCodeName]pmTableLayout{
	smuCodeNameMatisse: {
		frequency: []pmTableOffset{
			{offset: 0x30, label: "Fabric Clock", scale: 1e6},
			{offset: 0x3F, label: "Memory Clock", scale: 1e6},
		},
		voltage: []pmTableOffset{
			{offset: 0x08, label: "SoC", scale: 1},
		},
	},
	smuCodeNameVermeer: {
		frequency: []pmTableOffset{
			{offset: 0x38, label: "Fabric Clock", scale: 1e6},
			{offset: 0x46, label: "Memory Clock", scale: 1e6},
		},
		voltage: []pmTableOffset{
			{offset: 0x0C, label: "SoC", scale: 1},
		},
	},
}

// pmTableDRAMWindow is the fixed scratch physical address the SMU is
// asked to copy the PM table into -- the window every Matisse/Vermeer
// reference board places it at. Firmware that relocates the window would
// need the SMU's own address-query mailbox message instead.
const pmTableDRAMWindow = 0xFEA00000

// AMD17SMUPMTable reads the Ryzen SMU's periodically-refreshed PM table,
// an auxiliary sensor source beyond the per-core MSRs: fabric/memory
// clock and SoC rail voltage aren't exposed through any MSR.
type AMD17SMUPMTable struct {
	cpu      *AMD17
	codeName smuCodeName
	layout   pmTableLayout
	tableLen int
}

// NewAMD17SMUPMTable constructs the PM-table reader for the CPU's
// codename, or returns (nil, false) when the codename isn't recognized.
func NewAMD17SMUPMTable(cpu *AMD17, family, model uint32) (*AMD17SMUPMTable, bool) {
	name := classifySMUCodeName(family, model)

	layout, ok := pmTableLayouts[name]
	if !ok {
		return nil, false
	}

	maxOffset := 0

	for _, s := range layout.frequency {
		if s.offset > maxOffset {
			maxOffset = s.offset
		}
	}

	for _, s := range layout.voltage {
		if s.offset > maxOffset {
			maxOffset = s.offset
		}
	}

	return &AMD17SMUPMTable{cpu: cpu, codeName: name, layout: layout, tableLen: maxOffset + 4}, true
}

func (p *AMD17SMUPMTable) smnWrite(addr, value uint32) error {
	if err := p.cpu.ring0.WritePCIConfig(p.cpu.smnPCIAddress, amdSmnIndexOffset, addr); err != nil {
		return err
	}

	return p.cpu.ring0.WritePCIConfig(p.cpu.smnPCIAddress, amdSmnDataOffset, value)
}

// sendCommand runs one SMU mailbox transaction: clear the response
// register, post the argument, post the message ID, then poll the
// response register for a terminal status. Callers hold the PCI lock.
func (p *AMD17SMUPMTable) sendCommand(msg, arg uint32) (uint32, error) {
	if err := p.smnWrite(smuAddrRsp, 0); err != nil {
		return 0, err
	}

	if err := p.smnWrite(smuAddrArg, arg); err != nil {
		return 0, err
	}

	if err := p.smnWrite(smuAddrMsg, msg); err != nil {
		return 0, err
	}

	for i := 0; i < smuCommandPollLimit; i++ {
		rsp, err := p.cpu.smnReadRaw(smuAddrRsp)
		if err != nil {
			return 0, err
		}

		if rsp == 0 {
			continue
		}

		if rsp != smuRspOK {
			return 0, fmt.Errorf("cpu: SMU command %#x failed, response %#x", msg, rsp)
		}

		return p.cpu.smnReadRaw(smuAddrArg)
	}

	return 0, fmt.Errorf("cpu: SMU command %#x timed out", msg)
}

// Refresh asks the SMU to copy its current PM table into the DRAM window,
// reads it back, and decodes this codename's recognized offsets. The whole
// transfer holds the PCI lock (with the longer window mailbox turnaround
// needs) so no other SMN traffic interleaves with the mailbox handshake.
func (p *AMD17SMUPMTable) Refresh() (frequency, voltage []float64, err error) {
	unlock, ok := ring0.LockPCIBus.TryLock(smuLockTimeout)
	if !ok {
		return nil, nil, sensors.ErrLockTimeout
	}
	defer unlock()

	if _, err := p.sendCommand(smuMsgTransferTableToDRAM, 0); err != nil {
		return nil, nil, err
	}

	buf := make([]byte, p.tableLen)
	if err := p.cpu.ring0.ReadMemory(pmTableDRAMWindow, buf); err != nil {
		return nil, nil, err
	}

	frequency = make([]float64, len(p.layout.frequency))
	for i, s := range p.layout.frequency {
		frequency[i] = decodePMTableFloat(buf, s)
	}

	voltage = make([]float64, len(p.layout.voltage))
	for i, s := range p.layout.voltage {
		voltage[i] = decodePMTableFloat(buf, s)
	}

	return frequency, voltage, nil
}

func decodePMTableFloat(buf []byte, s pmTableOffset) float64 {
	bits := binary.LittleEndian.Uint32(buf[s.offset : s.offset+4])

	return float64(math.Float32frombits(bits)) * s.scale
}

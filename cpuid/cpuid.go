// Package cpuid provides a per-thread CPUID snapshot with affinity pinning
// and derives package/core/thread topology from the APIC ID.
//
// The low-level leaf read is a tiny //go:noescape asm stub taking a
// subleaf (ecx) argument, since both Intel's and AMD's extended topology
// leaves need one.
package cpuid

import (
	"errors"
	"fmt"

	"github.com/openhwmon/gohwmon/ring0"
)

// cpuidLow is implemented in cpuid_amd64.s.
//
//go:noescape
func cpuidLow(eax, ecx uint32) (a, b, c, d uint32)

// Leaf is one (eax,ebx,ecx,edx) tuple captured from CPUID(leaf).
type Leaf struct {
	Eax, Ebx, Ecx, Edx uint32
}

// Vendor identifies the CPU manufacturer from the CPUID(0) vendor string.
type Vendor int

const (
	VendorUnknown Vendor = iota
	VendorIntel
	VendorAMD
)

func (v Vendor) String() string {
	switch v {
	case VendorIntel:
		return "GenuineIntel"
	case VendorAMD:
		return "AuthenticAMD"
	default:
		return "Unknown"
	}
}

// maxThread is the highest thread index Get accepts.
const maxThread = 63

// maxLeaves caps the number of standard/extended leaves captured; buggy
// firmware can report absurd maximums.
const maxLeaves = 1024

var errThreadOutOfRange = errors.New("cpuid: thread out of range [0,63]")

// Data is the CPUID snapshot for one logical processor, plus the topology
// fields derived from its APIC ID.
type Data struct {
	Affinity ring0.GroupAffinity
	Thread   int

	Vendor Vendor
	Brand  string

	Leaves    []Leaf
	ExtLeaves []Leaf

	Family, Model, Stepping uint32
	ApicID                  uint32
	PkgType                 uint32

	ProcessorID uint32
	CoreID      uint32
	ThreadID    uint32
}

// Safe returns Leaves[i] or the zero Leaf if i is out of range.
func (d *Data) Safe(i int) Leaf {
	if i < 0 || i >= len(d.Leaves) {
		return Leaf{}
	}

	return d.Leaves[i]
}

// SafeExt is the extended-leaf counterpart of Safe.
func (d *Data) SafeExt(i int) Leaf {
	if i < 0 || i >= len(d.ExtLeaves) {
		return Leaf{}
	}

	return d.ExtLeaves[i]
}

func vendorString(ebx, ecx, edx uint32) string {
	buf := make([]byte, 0, 12)
	for _, r := range [3]uint32{ebx, edx, ecx} {
		buf = append(buf, byte(r), byte(r>>8), byte(r>>16), byte(r>>24))
	}

	return string(buf)
}

func brandString(extLeaves []Leaf) string {
	if len(extLeaves) <= 4 {
		return ""
	}

	buf := make([]byte, 0, 48)

	for i := 2; i <= 4; i++ {
		l := extLeaves[i]
		for _, r := range [4]uint32{l.Eax, l.Ebx, l.Ecx, l.Edx} {
			if r == 0 {
				return string(buf)
			}

			buf = append(buf, byte(r), byte(r>>8), byte(r>>16), byte(r>>24))
		}
	}

	return string(buf)
}

// nextLog2 returns ceil(log2(x)), with x == 0 -> 0.
func nextLog2(x uint32) uint {
	if x == 0 {
		return 0
	}

	x--

	var count uint

	for x > 0 {
		x >>= 1
		count++
	}

	return count
}

// coresPerDieMaskWidth implements the family 17h/19h special case: the
// "cores per die" field in extended leaf 8 selects a mask width from a
// fixed table rather than being log2'd directly, because Zen's APIC ID
// layout leaves gaps between core pairs (Ryzen 5/6 four-/six-core dies).
func coresPerDieMaskWidth(maxCoresPerDie uint32) (uint, bool) {
	switch maxCoresPerDie {
	case 0x04:
		return nextLog2(16), true
	case 0x05:
		return nextLog2(32), true
	case 0x06:
		return nextLog2(64), true
	default:
		return 0, false
	}
}

// Get pins the calling thread to thread via GroupAffinity, captures
// CPUID(0) and CPUID(0x80000000) plus every leaf up to their reported
// maximum (capped at maxLeaves), and derives topology fields from the APIC
// ID. When CPUID(0) reports no standard leaves it returns an empty
// snapshot, and when CPUID(0x80000000) reports no extended leaves it
// returns with only Vendor set: no leaves are captured in either case.
func Get(thread int) (*Data, error) {
	if thread < 0 || thread > maxThread {
		return nil, fmt.Errorf("%w: %d", errThreadOutOfRange, thread)
	}

	affinity := ring0.GroupAffinity{CPU: thread}

	restore, err := affinity.Pin()
	if err != nil {
		return nil, fmt.Errorf("cpuid: pin to cpu %d: %w", thread, err)
	}
	defer restore()

	d := &Data{Affinity: affinity, Thread: thread}

	eax0, ebx0, ecx0, edx0 := cpuidLow(0, 0)
	if eax0 == 0 {
		return d, nil
	}

	maxLeaf := eax0

	vendor := vendorString(ebx0, ecx0, edx0)
	switch vendor {
	case "GenuineIntel":
		d.Vendor = VendorIntel
	case "AuthenticAMD":
		d.Vendor = VendorAMD
	default:
		d.Vendor = VendorUnknown
	}

	eaxExt, _, _, _ := cpuidLow(0x80000000, 0)
	if eaxExt <= 0x80000000 {
		return d, nil
	}

	maxLeafExt := eaxExt

	if maxLeaf > maxLeaves {
		maxLeaf = maxLeaves
	}

	if maxLeafExt-0x80000000 > maxLeaves {
		maxLeafExt = 0x80000000 + maxLeaves
	}

	d.Leaves = make([]Leaf, maxLeaf+1)
	for i := uint32(0); i <= maxLeaf; i++ {
		a, b, c, e := cpuidLow(i, 0)
		d.Leaves[i] = Leaf{a, b, c, e}
	}

	d.ExtLeaves = make([]Leaf, maxLeafExt-0x80000000+1)
	for i := uint32(0); i <= maxLeafExt-0x80000000; i++ {
		a, b, c, e := cpuidLow(0x80000000+i, 0)
		d.ExtLeaves[i] = Leaf{a, b, c, e}
	}

	if len(d.ExtLeaves) > 4 {
		d.Brand = brandString(d.ExtLeaves)
	}

	l1 := d.Safe(1)
	d.Family = ((l1.Eax & 0x0FF00000) >> 20) + ((l1.Eax & 0x0F00) >> 8)
	d.Model = ((l1.Eax & 0x0F0000) >> 12) + ((l1.Eax & 0xF0) >> 4)
	d.Stepping = l1.Eax & 0x0F
	d.ApicID = (l1.Ebx >> 24) & 0xFF
	d.PkgType = (d.SafeExt(1).Ebx >> 28) & 0xFF

	var threadMaskWidth, coreMaskWidth uint

	switch d.Vendor {
	case VendorIntel:
		maxCoreAndThreadIDPerPackage := (l1.Ebx >> 16) & 0xFF

		maxCoreIDPerPackage := uint32(1)
		if len(d.Leaves) > 4 {
			maxCoreIDPerPackage = ((d.Leaves[4].Eax >> 26) & 0x3F) + 1
		}

		threadMaskWidth = nextLog2(maxCoreAndThreadIDPerPackage / maxCoreIDPerPackage)
		coreMaskWidth = nextLog2(maxCoreIDPerPackage)
	case VendorAMD:
		corePerPackage := uint32(1)
		if len(d.ExtLeaves) > 8 {
			corePerPackage = (d.ExtLeaves[8].Ecx & 0xFF) + 1
		}

		coreMaskWidth = nextLog2(corePerPackage)

		if d.Family == 0x17 || d.Family == 0x19 {
			maxCoresPerDie := (d.SafeExt(8).Ecx >> 12) & 0xF
			if w, ok := coresPerDieMaskWidth(maxCoresPerDie); ok {
				coreMaskWidth = w
			}
		}
	default:
		threadMaskWidth, coreMaskWidth = 0, 0
	}

	d.ProcessorID = d.ApicID >> (coreMaskWidth + threadMaskWidth)
	d.CoreID = (d.ApicID >> threadMaskWidth) - (d.ProcessorID << coreMaskWidth)
	d.ThreadID = d.ApicID - (d.ProcessorID << (coreMaskWidth + threadMaskWidth)) - (d.CoreID << threadMaskWidth)

	return d, nil
}

// Package hid implements the USB-HID liquid-cooling-controller and PSU
// chip drivers: NZXT Kraken X3, AeroCool P7H1, and Corsair HXi/RMi PSUs.
// Device enumeration matches by USB vendor/product ID against Linux's
// hidraw sysfs tree; transport is a small Device interface so driver logic
// is exercised in tests against a fake without root privilege or real
// hardware.
package hid

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Device is the minimal transport every HID driver needs: a fixed-size
// report read/write plus Close. hidrawDevice implements it over
// /dev/hidrawN; tests substitute a fake.
type Device interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// hidrawDevice wraps an open /dev/hidrawN file.
type hidrawDevice struct {
	f *os.File
}

func (d *hidrawDevice) Read(p []byte) (int, error)  { return d.f.Read(p) }
func (d *hidrawDevice) Write(p []byte) (int, error) { return d.f.Write(p) }
func (d *hidrawDevice) Close() error                { return d.f.Close() }

// Open opens a hidraw device node for read/write transport.
func Open(path string) (Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("hid: open %s: %w", path, err)
	}

	return &hidrawDevice{f: f}, nil
}

// VendorProductMatcher returns an Enumerate predicate matching a single
// (vendor, product) pair, the common case every driver's probe uses.
func VendorProductMatcher(vendorID, productID uint16) func(uint16, uint16) bool {
	return func(v, p uint16) bool { return v == vendorID && p == productID }
}

// sysfsHidrawRoot is where Linux exposes one directory per hidraw
// character device; overridable by tests.
var sysfsHidrawRoot = "/sys/class/hidraw"

// DeviceInfo is one hidraw device discovered by Enumerate, with its parsed
// USB identity.
type DeviceInfo struct {
	HidrawPath string
	VendorID   uint16
	ProductID  uint16

	// Product and Serial are the owning USB device's descriptor strings,
	// read from its sysfs directory when it could be located. Corsair
	// assigns one product line many product IDs, so the product string is
	// what actually distinguishes an HX750i from an RM850i.
	Product string
	Serial  string
}

// Enumerate walks every hidraw device, parsing its HID_ID uevent line into
// a (vendor, product) pair and returning the ones for which predicate
// reports true.
func Enumerate(predicate func(vendorID, productID uint16) bool) ([]DeviceInfo, error) {
	entries, err := os.ReadDir(sysfsHidrawRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("hid: read %s: %w", sysfsHidrawRoot, err)
	}

	var found []DeviceInfo

	for _, e := range entries {
		dir := filepath.Join(sysfsHidrawRoot, e.Name())

		vendor, product, ok := readHidID(filepath.Join(dir, "device", "uevent"))
		if !ok || !predicate(vendor, product) {
			continue
		}

		info := DeviceInfo{
			HidrawPath: filepath.Join("/dev", e.Name()),
			VendorID:   vendor,
			ProductID:  product,
		}

		info.Product, info.Serial = readUSBStrings(dir)

		found = append(found, info)
	}

	return found, nil
}

// readHidID parses the HID_ID=<bus>:<vendor>:<product> line of a hidraw
// device's uevent file, e.g. "HID_ID=0003:00001E71:00002007".
func readHidID(path string) (vendor, product uint16, ok bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, false
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "HID_ID=") {
			continue
		}

		parts := strings.Split(strings.TrimPrefix(line, "HID_ID="), ":")
		if len(parts) != 3 {
			return 0, 0, false
		}

		v, err1 := strconv.ParseUint(parts[1], 16, 32)
		p, err2 := strconv.ParseUint(parts[2], 16, 32)

		if err1 != nil || err2 != nil {
			return 0, 0, false
		}

		return uint16(v), uint16(p), true
	}

	return 0, 0, false
}

// readUSBStrings walks up from a hidraw device's directory looking for the
// owning USB device (the ancestor carrying "product"/"serial" files) and
// returns those descriptor strings. Best-effort: the ancestor depth
// depends on the host's USB topology, and not every device reports a
// serial.
func readUSBStrings(hidrawDir string) (product, serial string) {
	dir := filepath.Join(hidrawDir, "device")

	for i := 0; i < 6; i++ {
		if data, err := os.ReadFile(filepath.Join(dir, "product")); err == nil {
			product = strings.TrimSpace(string(data))
			if data, err := os.ReadFile(filepath.Join(dir, "serial")); err == nil {
				serial = strings.TrimSpace(string(data))
			}

			return product, serial
		}

		dir = filepath.Join(dir, "..")
	}

	return "", ""
}

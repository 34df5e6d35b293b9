// Package superio talks to LPC-bus Super I/O hardware-monitoring chips
// through indexed index/data register pairs.
//
// Every chip is reached through an index register and a data register at a
// fixed offset from a base I/O address; writing a register index to the
// index port then reading/writing the data port accesses that register.
// Some chips additionally bank-switch a block of registers behind a shared
// index/data pair.
package superio

// PortIO is the slice of the ring0 facade ports are driven through.
// *ring0.Facade satisfies it; tests substitute a register map.
type PortIO interface {
	ReadIOPort(port uint16) (byte, error)
	WriteIOPort(port uint16, v byte) error
}

// IndexDataRegisters is the offset, from a Port's base address, of the
// index and data registers used to address a chip's internal registers.
type IndexDataRegisters struct {
	IndexRegOffset uint8
	DataRegOffset  uint8
}

// Port is a bare I/O-port window; outByte/inByte add the base address to
// every offset before issuing the ring0 port access.
type Port struct {
	ring0   PortIO
	address uint16
}

// NewPort binds a Port to a base address, reusing the process-wide ring0
// facade for the actual port I/O.
func NewPort(facade PortIO, address uint16) Port {
	return Port{ring0: facade, address: address}
}

func (p Port) outByte(offset, value uint8) error {
	return p.ring0.WriteIOPort(p.address+uint16(offset), value)
}

func (p Port) inByte(offset uint8) (uint8, error) {
	return p.ring0.ReadIOPort(p.address + uint16(offset))
}

// SingleBankAddress is the base address plus index/data register pair for
// a chip with a single flat register space.
type SingleBankAddress struct {
	Address uint16
	Regs    IndexDataRegisters
}

// SingleBankPort is a Port plus one index/data register pair, the simplest
// Super I/O addressing scheme (most Winbond/Nuvoton/Fintek/ITE chips).
type SingleBankPort struct {
	Port
	regs IndexDataRegisters
}

// NewSingleBankPort constructs a SingleBankPort.
func NewSingleBankPort(facade PortIO, a SingleBankAddress) SingleBankPort {
	return SingleBankPort{Port: NewPort(facade, a.Address), regs: a.Regs}
}

// Regs exposes the index/data register pair, needed by the enter/exit
// guards which must write directly to the index register.
func (p SingleBankPort) Regs() IndexDataRegisters { return p.regs }

func (p SingleBankPort) writeToRegister(regs IndexDataRegisters, registerIndex, value uint8) error {
	if err := p.outByte(regs.IndexRegOffset, registerIndex); err != nil {
		return err
	}

	return p.outByte(regs.DataRegOffset, value)
}

func (p SingleBankPort) readFromRegister(regs IndexDataRegisters, registerIndex uint8) (uint8, error) {
	if err := p.outByte(regs.IndexRegOffset, registerIndex); err != nil {
		return 0, err
	}

	return p.inByte(regs.DataRegOffset)
}

// ReadByte reads one register through the chip's single index/data pair.
func (p SingleBankPort) ReadByte(registerIndex uint8) (uint8, error) {
	return p.readFromRegister(p.regs, registerIndex)
}

// WriteByte writes one register through the chip's single index/data pair.
func (p SingleBankPort) WriteByte(registerIndex, value uint8) error {
	return p.writeToRegister(p.regs, registerIndex, value)
}

// ReadWord reads two consecutive registers as a big-endian word, the Super
// I/O convention for 9/11-bit temperature and fan-count registers.
func (p SingleBankPort) ReadWord(registerIndex uint8) (uint16, error) {
	hi, err := p.ReadByte(registerIndex)
	if err != nil {
		return 0, err
	}

	lo, err := p.ReadByte(registerIndex + 1)
	if err != nil {
		return 0, err
	}

	return uint16(hi)<<8 | uint16(lo), nil
}

// Select writes the logical-device-number register, switching which
// logical device's registers subsequent reads/writes target.
func (p SingleBankPort) Select(logicalDeviceNumber uint8) error {
	return p.WriteByte(deviceSelectRegister, logicalDeviceNumber)
}

const (
	configurationControlRegister = 0x02
	deviceSelectRegister         = 0x07
)

// AddressWithBank is a SingleBankAddress plus the extra index/data pair
// and register used to switch banks (ITE and some Fintek chips).
type AddressWithBank struct {
	SingleBankAddress
	BankSelectionPorts    IndexDataRegisters
	BankSelectionRegister uint8
}

// PortWithBanks adds bank switching on top of SingleBankPort.
type PortWithBanks struct {
	SingleBankPort
	bankRegs              IndexDataRegisters
	bankSelectionRegister uint8
}

// NewPortWithBanks constructs a PortWithBanks from a full AddressWithBank.
func NewPortWithBanks(facade PortIO, a AddressWithBank) PortWithBanks {
	return PortWithBanks{
		SingleBankPort:        NewSingleBankPort(facade, a.SingleBankAddress),
		bankRegs:              a.BankSelectionPorts,
		bankSelectionRegister: a.BankSelectionRegister,
	}
}

// SwitchBank writes the bank-selection register through the bank-selection
// index/data pair, which may be the same pair used for ordinary registers.
func (p PortWithBanks) SwitchBank(bank uint8) error {
	return p.writeToRegister(p.bankRegs, p.bankSelectionRegister, bank)
}

// ReadByteBank switches to bank, then reads registerIndex through the
// chip's ordinary index/data pair.
func (p PortWithBanks) ReadByteBank(bank, registerIndex uint8) (uint8, error) {
	if err := p.SwitchBank(bank); err != nil {
		return 0, err
	}

	return p.SingleBankPort.ReadByte(registerIndex)
}

// WriteByteBank switches to bank, then writes registerIndex.
func (p PortWithBanks) WriteByteBank(bank, registerIndex, value uint8) error {
	if err := p.SwitchBank(bank); err != nil {
		return err
	}

	return p.SingleBankPort.WriteByte(registerIndex, value)
}

// ReadByteAddr reads the register named by a packed bank:register address,
// the form board-config tables use (high byte selects the bank, low byte
// the register within it).
func (p PortWithBanks) ReadByteAddr(addr uint16) (uint8, error) {
	return p.ReadByteBank(uint8(addr>>8), uint8(addr))
}

// WriteByteAddr writes the register named by a packed bank:register
// address.
func (p PortWithBanks) WriteByteAddr(addr uint16, value uint8) error {
	return p.WriteByteBank(uint8(addr>>8), uint8(addr), value)
}

// ReadWordBank reads two consecutive registers within bank as a big-endian
// word.
func (p PortWithBanks) ReadWordBank(bank, registerIndex uint8) (uint16, error) {
	hi, err := p.ReadByteBank(bank, registerIndex)
	if err != nil {
		return 0, err
	}

	lo, err := p.ReadByteBank(bank, registerIndex+1)
	if err != nil {
		return 0, err
	}

	return uint16(hi)<<8 | uint16(lo), nil
}

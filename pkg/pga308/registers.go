package pga308

import (
	"fmt"
	"strconv"
	"strings"
)

// Register is the address of a 16-bit register on the chip.
type Register uint8

// RAM register addresses.
const (
	RegZDAC Register = 0x00 // Zero DAC
	RegGDAC Register = 0x01 // Gain DAC
	RegCFG0 Register = 0x02 // Configuration 0
	RegCFG1 Register = 0x03 // Configuration 1, alarm enables
	RegCFG2 Register = 0x04 // Configuration 2, output enables
	RegCHKS Register = 0x05 // Checksum
	RegCHSR Register = 0x06 // Checksum status
	RegSFTC Register = 0x07 // Software control
	RegOENC Register = 0x08 // Output enable counter control
	RegALMR Register = 0x09 // Alarm status
	RegOTPS Register = 0x0A // OTP status

	// NumRegisters is the number of known registers.
	NumRegisters = 11
)

// SoftLock is written to RegSFTC to enter software lock mode. The chip
// only accepts new RAM register values while locked.
const SoftLock uint16 = 0x0050

// Frame constants.
const (
	Sync        byte = 0x55
	AccessRead  byte = 0x80
	AccessWrite byte = 0x00
	AccessOTP   byte = 0x40
	AccessRAM   byte = 0x00

	addrMask byte = 0x3f
)

var registerNames = [NumRegisters]string{
	"ZDAC", "GDAC", "CFG0", "CFG1", "CFG2", "CHKS",
	"CHSR", "SFTC", "OENC", "ALMR", "OTPS",
}

// Registers lists all known registers in address order. This is also
// the order used by ReadAll.
var Registers = [NumRegisters]Register{
	RegZDAC, RegGDAC, RegCFG0, RegCFG1, RegCFG2, RegCHKS,
	RegCHSR, RegSFTC, RegOENC, RegALMR, RegOTPS,
}

// IsValid checks if the address is within the known register map.
func (r Register) IsValid() bool {
	return r < NumRegisters
}

// String returns the short register name.
func (r Register) String() string {
	if r.IsValid() {
		return registerNames[r]
	}
	return fmt.Sprintf("REG%02X", byte(r))
}

// ParseRegister parses a register name (case-insensitive) or number.
func ParseRegister(s string) (Register, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for n, regName := range registerNames {
		if name == regName {
			return Register(n), nil
		}
	}
	n, err := strconv.ParseUint(strings.TrimSpace(s), 0, 8)
	if err != nil || !Register(n).IsValid() {
		return 0, fmt.Errorf("unknown register %q", s)
	}
	return Register(n), nil
}

// ParseValue parses a 16-bit register value in decimal or 0x-hex.
func ParseValue(s string) (uint16, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid register value %q: %v", s, err)
	}
	return uint16(n), nil
}

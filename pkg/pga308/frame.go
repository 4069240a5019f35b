package pga308

// EncodeWrite returns the 4-byte frame writing value into a RAM register.
// The value is sent low byte first.
func EncodeWrite(reg Register, value uint16) [4]byte {
	return [4]byte{
		Sync,
		AccessRAM | AccessWrite | byte(reg),
		byte(value & 0xff),
		byte(value >> 8),
	}
}

// EncodeRead returns the 2-byte frame requesting a RAM register.
func EncodeRead(reg Register) [2]byte {
	return [2]byte{Sync, AccessRAM | AccessRead | byte(reg)}
}

// EncodeOTPRead returns the 2-byte frame requesting an OTP register.
func EncodeOTPRead(reg Register) [2]byte {
	return [2]byte{Sync, AccessOTP | AccessRead | byte(reg)}
}

// DecodeValue decodes a 2-byte read reply.
func DecodeValue(b []byte) (uint16, error) {
	if len(b) != 2 {
		return 0, ErrShortReply
	}
	return uint16(b[0]) | uint16(b[1])<<8, nil
}

// ParseCommand splits a command byte into its fields.
func ParseCommand(cmd byte) (reg Register, read, otp bool) {
	return Register(cmd & addrMask), cmd&AccessRead != 0, cmd&AccessOTP != 0
}

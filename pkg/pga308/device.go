package pga308

import (
	"time"

	"github.com/golang/glog"
)

// Transport is a half-duplex line to the chip. The direction must be
// selected before each send or receive.
type Transport interface {
	EnableTransmitter() error
	EnableReceiver() error
	Send(data []byte, timeout time.Duration) error
	Receive(n int, timeout time.Duration) ([]byte, error)
}

// DefaultTimeout is the timeout used when Device.Timeout is zero.
const DefaultTimeout = 100 * time.Millisecond

// Device accesses the chip registers over a Transport.
// Device doesn't lock: callers must serialize access to one Transport.
type Device struct {
	Transport Transport
	Timeout   time.Duration
}

// New creates a Device with the default timeout.
func New(t Transport) *Device {
	return &Device{Transport: t, Timeout: DefaultTimeout}
}

func (d *Device) timeout() time.Duration {
	if d.Timeout > 0 {
		return d.Timeout
	}
	return DefaultTimeout
}

// Write writes a RAM register. There is no read-back.
func (d *Device) Write(reg Register, value uint16) error {
	if err := d.Transport.EnableTransmitter(); err != nil {
		return &TransportError{Op: "transmit", Register: reg, Err: err}
	}
	frame := EncodeWrite(reg, value)
	if err := d.Transport.Send(frame[:], d.timeout()); err != nil {
		return &TransportError{Op: "send", Register: reg, Err: err}
	}
	if glog.V(2) {
		glog.Infof("W %s <- 0x%04X", reg, value)
	}
	return nil
}

// Read reads a RAM register.
func (d *Device) Read(reg Register) (uint16, error) {
	frame := EncodeRead(reg)
	return d.read(reg, frame[:])
}

// ReadOTP reads the one-time-programmed copy of a register.
func (d *Device) ReadOTP(reg Register) (uint16, error) {
	frame := EncodeOTPRead(reg)
	return d.read(reg, frame[:])
}

func (d *Device) read(reg Register, frame []byte) (uint16, error) {
	if err := d.Transport.EnableTransmitter(); err != nil {
		return 0, &TransportError{Op: "transmit", Register: reg, Err: err}
	}
	if err := d.Transport.Send(frame, d.timeout()); err != nil {
		return 0, &TransportError{Op: "send", Register: reg, Err: err}
	}
	if err := d.Transport.EnableReceiver(); err != nil {
		return 0, &TransportError{Op: "receiver", Register: reg, Err: err}
	}
	reply, err := d.Transport.Receive(2, d.timeout())
	if err != nil {
		return 0, &TransportError{Op: "receive", Register: reg, Err: err}
	}
	value, err := DecodeValue(reply)
	if err != nil {
		return 0, &TransportError{Op: "decode", Register: reg, Err: err}
	}
	if glog.V(2) {
		glog.Infof("R %s -> 0x%04X (cmd 0x%02X)", reg, value, frame[1])
	}
	return value, nil
}

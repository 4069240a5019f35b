// Package sim simulates a PGA308 behind the pga308.Transport interface.
package sim

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/pga308/pkg/pga308"
)

var (
	// ErrInjected is returned by operations failed with FailOn.
	ErrInjected = errors.New("injected failure")
	// ErrDirection indicates an operation in the wrong line direction.
	ErrDirection = errors.New("wrong line direction")
	// ErrNoReply indicates a receive without a pending reply.
	ErrNoReply = errors.New("no reply")
	// ErrBadFrame indicates the chip couldn't decode a frame.
	ErrBadFrame = errors.New("bad frame")
)

// Op identifies a Transport operation.
type Op int

// Transport operations.
const (
	OpTransmitter Op = iota
	OpReceiver
	OpSend
	OpReceive
	numOps
)

func (o Op) String() string {
	switch o {
	case OpTransmitter:
		return "enable-transmitter"
	case OpReceiver:
		return "enable-receiver"
	case OpSend:
		return "send"
	case OpReceive:
		return "receive"
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// Transaction is a decoded frame received by the chip.
type Transaction struct {
	Register pga308.Register
	Read     bool
	OTP      bool
	Value    uint16
}

func (t Transaction) String() string {
	if t.Read {
		return "R " + t.Register.String()
	}
	return fmt.Sprintf("W %s 0x%04X", t.Register, t.Value)
}

// CorruptFunc alters the reply of a register read.
type CorruptFunc func(value uint16) uint16

// Chip is a simulated PGA308 implementing pga308.Transport.
//
// Writes other than to SFTC are ignored until SFTC holds the soft lock
// value, and status registers can't be written.
type Chip struct {
	ram      [pga308.NumRegisters]uint16
	otp      [pga308.NumRegisters]uint16
	transmit bool
	echo     bool
	reply    []byte

	calls   [numOps]int
	failAt  [numOps]int
	corrupt map[pga308.Register]CorruptFunc
	trace   []Transaction
	lock    sync.Mutex
}

// New creates a Chip with all registers zero.
func New() *Chip {
	return &Chip{corrupt: make(map[pga308.Register]CorruptFunc)}
}

// Echo creates a Chip without lock or read-only restrictions: every
// register reads back what was written.
func Echo() *Chip {
	c := New()
	c.echo = true
	return c
}

// FailOn makes the n-th (1-based, counted from now) call of op fail with
// ErrInjected. n <= 0 disables injection for op.
func (c *Chip) FailOn(op Op, n int) *Chip {
	c.lock.Lock()
	defer c.lock.Unlock()
	if n <= 0 {
		c.failAt[op] = 0
	} else {
		c.failAt[op] = c.calls[op] + n
	}
	return c
}

// Corrupt installs fn to alter read replies of reg.
func (c *Chip) Corrupt(reg pga308.Register, fn CorruptFunc) *Chip {
	c.lock.Lock()
	defer c.lock.Unlock()
	if fn == nil {
		delete(c.corrupt, reg)
	} else {
		c.corrupt[reg] = fn
	}
	return c
}

// Poke sets a RAM register directly, bypassing protocol and lock.
func (c *Chip) Poke(reg pga308.Register, value uint16) {
	c.lock.Lock()
	c.ram[reg] = value
	c.lock.Unlock()
}

// PokeOTP sets the OTP copy of a register.
func (c *Chip) PokeOTP(reg pga308.Register, value uint16) {
	c.lock.Lock()
	c.otp[reg] = value
	c.lock.Unlock()
}

// Peek returns a RAM register directly.
func (c *Chip) Peek(reg pga308.Register) uint16 {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.ram[reg]
}

// Trace returns decoded frames received so far.
func (c *Chip) Trace() []Transaction {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]Transaction(nil), c.trace...)
}

// Calls returns how many times op was called.
func (c *Chip) Calls(op Op) int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.calls[op]
}

// TotalCalls returns the number of all Transport calls.
func (c *Chip) TotalCalls() (n int) {
	c.lock.Lock()
	defer c.lock.Unlock()
	for _, count := range c.calls {
		n += count
	}
	return
}

// Reset clears the trace and call counters.
func (c *Chip) Reset() {
	c.lock.Lock()
	c.trace, c.calls, c.failAt = nil, [numOps]int{}, [numOps]int{}
	c.lock.Unlock()
}

func (c *Chip) call(op Op) error {
	c.calls[op]++
	if c.failAt[op] != 0 && c.calls[op] == c.failAt[op] {
		return ErrInjected
	}
	return nil
}

// EnableTransmitter implements pga308.Transport.
func (c *Chip) EnableTransmitter() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if err := c.call(OpTransmitter); err != nil {
		return err
	}
	c.transmit = true
	return nil
}

// EnableReceiver implements pga308.Transport.
func (c *Chip) EnableReceiver() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if err := c.call(OpReceiver); err != nil {
		return err
	}
	c.transmit = false
	return nil
}

// Send implements pga308.Transport.
func (c *Chip) Send(data []byte, timeout time.Duration) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if err := c.call(OpSend); err != nil {
		return err
	}
	if !c.transmit {
		return ErrDirection
	}
	if len(data) < 2 || data[0] != pga308.Sync {
		return ErrBadFrame
	}
	reg, read, otp := pga308.ParseCommand(data[1])
	if !reg.IsValid() {
		return ErrBadFrame
	}
	tx := Transaction{Register: reg, Read: read, OTP: otp}
	if read {
		if len(data) != 2 {
			return ErrBadFrame
		}
		value := c.ram[reg]
		if otp {
			value = c.otp[reg]
		}
		if fn := c.corrupt[reg]; fn != nil {
			value = fn(value)
		}
		c.reply = []byte{byte(value), byte(value >> 8)}
	} else {
		if len(data) != 4 || otp {
			return ErrBadFrame
		}
		tx.Value = uint16(data[2]) | uint16(data[3])<<8
		c.store(reg, tx.Value)
	}
	c.trace = append(c.trace, tx)
	if glog.V(3) {
		glog.Infof("sim: %s", tx)
	}
	return nil
}

func (c *Chip) store(reg pga308.Register, value uint16) {
	if c.echo {
		c.ram[reg] = value
		return
	}
	switch reg {
	case pga308.RegCHSR, pga308.RegALMR, pga308.RegOTPS:
		return
	case pga308.RegSFTC:
	default:
		if c.ram[pga308.RegSFTC] != pga308.SoftLock {
			return
		}
	}
	c.ram[reg] = value
}

// Receive implements pga308.Transport.
func (c *Chip) Receive(n int, timeout time.Duration) ([]byte, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if err := c.call(OpReceive); err != nil {
		return nil, err
	}
	if c.transmit {
		return nil, ErrDirection
	}
	if len(c.reply) == 0 {
		return nil, ErrNoReply
	}
	if n > len(c.reply) {
		n = len(c.reply)
	}
	data := c.reply[:n]
	c.reply = c.reply[n:]
	return data, nil
}

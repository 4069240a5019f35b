// Package uart implements pga308.Transport on a host serial port wired
// to the one-wire interface of the chip.
package uart

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang/glog"
	"github.com/tarm/serial"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	fx "github.com/robotalks/pga308/pkg/framework"
)

var (
	// ErrTimeout indicates a send or receive didn't complete in time.
	ErrTimeout = errors.New("timeout")
	// ErrEchoMismatch indicates the bytes read back from a single-wire
	// line differ from the bytes sent, usually a bus collision.
	ErrEchoMismatch = errors.New("echo mismatch")
)

// DefaultBaud is used when Config.Baud is zero. The chip detects the baud
// rate from the sync byte of every frame.
const DefaultBaud = 9600

// pollInterval is the read timeout of the serial device. Receive checks
// its own deadline between reads.
const pollInterval = 100 * time.Millisecond

// Conn is the serial device. *serial.Port implements it.
type Conn interface {
	io.ReadWriteCloser
	Flush() error
}

// DirectionPin drives the direction of a half-duplex line transceiver.
// It is High while transmitting.
type DirectionPin interface {
	Out(gpio.Level) error
}

// Config describes a serial port.
type Config struct {
	Name   string
	Baud   int
	DirPin string
	Echo   bool
}

// Port implements pga308.Transport.
type Port struct {
	Conn   Conn
	DirPin DirectionPin
	Baud   int
	// Echo is set when the host receives its own transmission, as on a
	// line with TX and RX tied together.
	Echo bool

	// idleAt is when the last frame written has left the wire.
	idleAt time.Time
}

// Open opens the serial port and the direction pin.
func Open(conf Config) (*Port, error) {
	baud := conf.Baud
	if baud == 0 {
		baud = DefaultBaud
	}
	sp, err := serial.OpenPort(&serial.Config{
		Name:        conf.Name,
		Baud:        baud,
		ReadTimeout: pollInterval,
		Size:        serial.DefaultSize,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", conf.Name, err)
	}
	p := &Port{Conn: sp, Baud: baud, Echo: conf.Echo}
	if conf.DirPin != "" {
		if p.DirPin, err = OpenPin(conf.DirPin); err != nil {
			sp.Close()
			return nil, err
		}
	}
	glog.V(1).Infof("opened %s at %d baud, dir pin %q, echo %v", conf.Name, baud, conf.DirPin, conf.Echo)
	return p, nil
}

// OpenPin resolves a GPIO pin by name.
func OpenPin(name string) (DirectionPin, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("gpio init: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("gpio %q not found", name)
	}
	return pin, nil
}

// Close closes the serial device.
func (p *Port) Close() error {
	return p.Conn.Close()
}

// EnableTransmitter implements pga308.Transport.
func (p *Port) EnableTransmitter() error {
	if p.DirPin != nil {
		return p.DirPin.Out(gpio.High)
	}
	return nil
}

// EnableReceiver implements pga308.Transport. When a direction pin is
// used, it waits for bytes still in the transmit buffer to go out first.
func (p *Port) EnableReceiver() error {
	if p.DirPin == nil {
		return nil
	}
	p.waitIdle()
	return p.DirPin.Out(gpio.Low)
}

func (p *Port) waitIdle() {
	if d := time.Until(p.idleAt); d > 0 {
		time.Sleep(d)
	}
	p.idleAt = time.Time{}
}

// wireTime is the time to shift out n bytes at 8N1.
func (p *Port) wireTime(n int) time.Duration {
	baud := p.Baud
	if baud <= 0 {
		baud = DefaultBaud
	}
	return time.Duration(n*10) * time.Second / time.Duration(baud)
}

// Send implements pga308.Transport. Input left from a previous exchange,
// like a reply arriving after its receive timed out, is discarded first
// so it can't be taken for the echo or the next reply.
func (p *Port) Send(data []byte, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	p.waitIdle()
	if err := p.Conn.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	err := fx.RunWithTimeout(timeout, func() { p.Conn.Flush() }, func() error {
		_, err := p.Conn.Write(data)
		return err
	})
	if err == context.DeadlineExceeded {
		return ErrTimeout
	}
	if err != nil {
		return err
	}
	p.idleAt = time.Now().Add(p.wireTime(len(data)))
	if p.Echo {
		echo, err := p.readFull(len(data), deadline)
		if err != nil {
			return fmt.Errorf("echo: %w", err)
		}
		p.idleAt = time.Time{}
		if !bytes.Equal(echo, data) {
			return ErrEchoMismatch
		}
	}
	return nil
}

// Receive implements pga308.Transport.
func (p *Port) Receive(n int, timeout time.Duration) ([]byte, error) {
	return p.readFull(n, time.Now().Add(timeout))
}

func (p *Port) readFull(n int, deadline time.Time) ([]byte, error) {
	buf := make([]byte, n)
	got := 0
	for got < n {
		if !time.Now().Before(deadline) {
			return nil, ErrTimeout
		}
		m, err := p.Conn.Read(buf[got:])
		got += m
		if err != nil && err != io.EOF {
			return nil, err
		}
	}
	return buf, nil
}

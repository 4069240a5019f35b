package uart

import (
	"bytes"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
)

// lineConn simulates a serial device. Written bytes are echoed when echo
// is set (with the last byte inverted when garble is set), and rx is
// returned by Read in chunks of at most one byte. Flush discards rx and
// unblocks a blocked Write.
type lineConn struct {
	echo    bool
	garble  bool
	block   chan struct{}
	writing bool
	rx      bytes.Buffer
	tx      bytes.Buffer
	flushed int
	lock    sync.Mutex
}

func (c *lineConn) Read(p []byte) (int, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.rx.Len() == 0 {
		return 0, io.EOF
	}
	return c.rx.Read(p[:1])
}

func (c *lineConn) Write(p []byte) (int, error) {
	c.lock.Lock()
	block := c.block
	c.writing = true
	c.lock.Unlock()
	if block != nil {
		<-block
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	c.writing = false
	c.tx.Write(p)
	if c.echo {
		echo := append([]byte(nil), p...)
		if c.garble && len(echo) > 0 {
			echo[len(echo)-1] ^= 0xff
		}
		c.rx.Write(echo)
	}
	return len(p), nil
}

func (c *lineConn) Flush() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.flushed++
	c.rx.Reset()
	if c.writing && c.block != nil {
		close(c.block)
		c.block = nil
	}
	return nil
}

func (c *lineConn) Close() error { return nil }

type levelRecorder struct {
	levels []gpio.Level
}

func (r *levelRecorder) Out(l gpio.Level) error {
	r.levels = append(r.levels, l)
	return nil
}

func TestSendReceive(t *testing.T) {
	conn := &lineConn{}
	p := &Port{Conn: conn, Baud: 115200}
	require.NoError(t, p.EnableTransmitter())
	require.NoError(t, p.Send([]byte{0x55, 0x81}, 100*time.Millisecond))
	require.Equal(t, []byte{0x55, 0x81}, conn.tx.Bytes())

	conn.rx.Write([]byte{0x10, 0x00})
	require.NoError(t, p.EnableReceiver())
	reply, err := p.Receive(2, 100*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, []byte{0x10, 0x00}, reply)
}

func TestSendEcho(t *testing.T) {
	conn := &lineConn{echo: true}
	p := &Port{Conn: conn, Echo: true}
	require.NoError(t, p.Send([]byte{0x55, 0x00, 0x34, 0x12}, 100*time.Millisecond))
	require.Equal(t, 0, conn.rx.Len())

	conn.rx.Write([]byte{0xab, 0xcd})
	reply, err := p.Receive(2, 100*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, []byte{0xab, 0xcd}, reply)
}

func TestSendEchoMismatch(t *testing.T) {
	conn := &lineConn{echo: true, garble: true}
	p := &Port{Conn: conn, Echo: true}
	require.Equal(t, ErrEchoMismatch, p.Send([]byte{0x55, 0x81}, 100*time.Millisecond))

	conn.garble = false
	require.NoError(t, p.Send([]byte{0x55, 0x81}, 100*time.Millisecond))
}

func TestSendDiscardsLateInput(t *testing.T) {
	conn := &lineConn{echo: true}
	p := &Port{Conn: conn, Echo: true}
	for i := 0; i < 5; i++ {
		// the reply of a read which timed out
		conn.lock.Lock()
		conn.rx.WriteByte(0x34)
		conn.lock.Unlock()

		require.NoError(t, p.Send([]byte{0x55, 0x80}, 50*time.Millisecond))
		require.Equal(t, 0, conn.rx.Len())
	}
	require.Equal(t, 5, conn.flushed)

	conn.rx.Write([]byte{0x12, 0x34})
	reply, err := p.Receive(2, 50*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, []byte{0x12, 0x34}, reply)
}

func TestReceiveTimeout(t *testing.T) {
	conn := &lineConn{}
	conn.rx.WriteByte(0x01)
	p := &Port{Conn: conn}
	_, err := p.Receive(2, 20*time.Millisecond)
	require.Equal(t, ErrTimeout, err)
}

func TestSendTimeout(t *testing.T) {
	conn := &lineConn{block: make(chan struct{})}
	p := &Port{Conn: conn}
	require.Equal(t, ErrTimeout, p.Send([]byte{0x55}, 10*time.Millisecond))
	require.Equal(t, 2, conn.flushed)
}

func TestDirectionPin(t *testing.T) {
	pin := &levelRecorder{}
	p := &Port{Conn: &lineConn{}, DirPin: pin, Baud: 115200}
	require.NoError(t, p.EnableTransmitter())
	start := time.Now()
	require.NoError(t, p.Send([]byte{0x55, 0x87}, 100*time.Millisecond))
	require.False(t, p.idleAt.Before(start.Add(p.wireTime(2))))
	require.NoError(t, p.EnableReceiver())
	require.True(t, p.idleAt.IsZero())
	require.False(t, time.Now().Before(start.Add(p.wireTime(2))))
	require.Equal(t, []gpio.Level{gpio.High, gpio.Low}, pin.levels)
}

func TestWireTime(t *testing.T) {
	p := &Port{Baud: 9600}
	require.Equal(t, time.Duration(4*10)*time.Second/9600, p.wireTime(4))
	p.Baud = 0
	require.Equal(t, p.wireTime(4), (&Port{Baud: DefaultBaud}).wireTime(4))
}

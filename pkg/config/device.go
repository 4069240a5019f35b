package config

import (
	"io"

	"github.com/golang/glog"

	"github.com/robotalks/pga308/pkg/pga308"
	"github.com/robotalks/pga308/pkg/pga308/sim"
	"github.com/robotalks/pga308/pkg/uart"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewDevice opens the transport and creates the Device. The returned
// Closer releases the transport.
func (c *Config) NewDevice() (*pga308.Device, io.Closer, error) {
	if c.Sim {
		glog.Info("using simulated chip")
		dev := pga308.New(sim.New())
		dev.Timeout = c.Timeout()
		return dev, nopCloser{}, nil
	}
	port, err := uart.Open(uart.Config{
		Name:   c.Serial.Port,
		Baud:   c.Serial.Baud,
		DirPin: c.Serial.DirPin,
		Echo:   c.Serial.Echo,
	})
	if err != nil {
		return nil, nil, err
	}
	dev := pga308.New(port)
	dev.Timeout = c.Timeout()
	return dev, port, nil
}

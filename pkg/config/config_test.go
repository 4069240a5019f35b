package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/pga308/pkg/pga308"
)

const testYAML = `
serial:
  port: /dev/ttyUSB1
  baud: 19200
  dir_pin: GPIO17
registers:
  zdac: 0x1234
  gdac: 0x0010
  cfg0: 0x00FF
  cfg1: 1
  cfg2: 0x80
mqtt:
  format: proto
`

func TestUnmarshal(t *testing.T) {
	conf := NewConfig()
	require.NoError(t, conf.Unmarshal([]byte(testYAML)))
	require.Equal(t, "/dev/ttyUSB1", conf.Serial.Port)
	require.Equal(t, 19200, conf.Serial.Baud)
	require.Equal(t, "GPIO17", conf.Serial.DirPin)
	require.Equal(t, defaultConfig.Serial.TimeoutMs, conf.Serial.TimeoutMs)
	require.True(t, conf.Serial.Echo)
	require.Equal(t, pga308.Settings{
		ZeroDAC: 0x1234,
		GainDAC: 0x0010,
		CFG0:    0x00FF,
		CFG1:    0x0001,
		CFG2:    0x0080,
	}, conf.Registers)
	require.Equal(t, FormatProto, conf.MQTT.Format)
	require.Equal(t, defaultConfig.MQTT.URL, conf.MQTT.URL)
	require.NoError(t, conf.Validate())

	require.NoError(t, NewConfig().Unmarshal(nil))
	require.Error(t, NewConfig().Unmarshal([]byte("serial:\n  speed: 1\n")))
	require.Error(t, NewConfig().Unmarshal([]byte("registers:\n  zdac: 0x10000\n")))
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(*Config)
	}{
		{"no port", func(c *Config) { c.Serial.Port = "" }},
		{"baud", func(c *Config) { c.Serial.Baud = 0 }},
		{"timeout", func(c *Config) { c.Serial.TimeoutMs = -1 }},
		{"interval", func(c *Config) { c.MQTT.IntervalMs = 0 }},
		{"format", func(c *Config) { c.MQTT.Format = "xml" }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			conf := NewConfig()
			conf.Serial.Port = "/dev/ttyS0"
			require.NoError(t, conf.Validate())
			tc.modify(conf)
			require.Error(t, conf.Validate())
		})
	}

	conf := NewConfig()
	conf.Sim = true
	require.NoError(t, conf.Validate())
}

func TestFlags(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "pga308.yaml")
	require.NoError(t, os.WriteFile(fn, []byte(testYAML), 0644))

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := BindFlags(fs)
	require.NoError(t, fs.Parse([]string{
		"-config", fn,
		"-baud", "4800",
		"-cfg2", "0x0001",
		"-echo=false",
	}))
	conf, err := f.Config()
	require.NoError(t, err)
	require.Equal(t, "/dev/ttyUSB1", conf.Serial.Port)
	require.Equal(t, 4800, conf.Serial.Baud)
	require.False(t, conf.Serial.Echo)
	require.Equal(t, uint16(0x1234), conf.Registers.ZeroDAC)
	require.Equal(t, uint16(0x0001), conf.Registers.CFG2)
	require.Equal(t, FormatProto, conf.MQTT.Format)
	require.Equal(t, int64(100), conf.Timeout().Milliseconds())
}

func TestFlagsInvalid(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := BindFlags(fs)
	require.Error(t, fs.Parse([]string{"-zdac", "0x10000"}))

	fs = flag.NewFlagSet("test", flag.ContinueOnError)
	f = BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"-sim", "-format", "xml"}))
	_, err := f.Config()
	require.Error(t, err)

	fs = flag.NewFlagSet("test", flag.ContinueOnError)
	f = BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"-sim"}))
	conf, err := f.Config()
	require.NoError(t, err)
	require.True(t, conf.Sim)
}

// Package config provides the configuration shared by the commands.
package config

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/robotalks/pga308/pkg/pga308"
)

// Config is the complete configuration.
type Config struct {
	// Sim uses the simulated chip instead of a serial port.
	Sim       bool            `yaml:"sim"`
	Serial    SerialConfig    `yaml:"serial"`
	Registers pga308.Settings `yaml:"registers"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
}

// SerialConfig selects the serial port connected to the chip.
type SerialConfig struct {
	Port      string `yaml:"port"`
	Baud      int    `yaml:"baud"`
	TimeoutMs int    `yaml:"timeout_ms"`
	DirPin    string `yaml:"dir_pin"`
	Echo      bool   `yaml:"echo"`
}

// MQTTConfig configures snapshot publishing.
type MQTTConfig struct {
	// URL is like mqtt://host:port/topic-prefix
	URL        string `yaml:"url"`
	ID         string `yaml:"id"`
	IntervalMs int    `yaml:"interval_ms"`
	Format     string `yaml:"format"`
}

// Snapshot payload formats.
const (
	FormatJSON  = "json"
	FormatProto = "proto"
)

var defaultConfig = Config{
	Serial: SerialConfig{
		Baud:      9600,
		TimeoutMs: 100,
		Echo:      true,
	},
	MQTT: MQTTConfig{
		URL:        "mqtt://localhost:1883/pga308/",
		IntervalMs: 1000,
		Format:     FormatJSON,
	},
}

func init() {
	if val := os.Getenv("PGA308_PORT"); val != "" {
		defaultConfig.Serial.Port = val
	}
	if val := os.Getenv("PGA308_MQTT_URL"); val != "" {
		defaultConfig.MQTT.URL = val
	}
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Timeout is the per-operation transport timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Serial.TimeoutMs) * time.Millisecond
}

// Interval is the snapshot polling interval.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.MQTT.IntervalMs) * time.Millisecond
}

// LoadFile merges a YAML file into c. Keys absent from the file keep
// their current values.
func (c *Config) LoadFile(fn string) error {
	data, err := os.ReadFile(fn)
	if err != nil {
		return err
	}
	return c.Unmarshal(data)
}

// Unmarshal merges YAML into c.
func (c *Config) Unmarshal(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && err != io.EOF {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// Validate checks configuration correctness.
func (c *Config) Validate() error {
	if !c.Sim && c.Serial.Port == "" {
		return fmt.Errorf("serial port must be specified")
	}
	if c.Serial.Baud <= 0 {
		return fmt.Errorf("invalid baud rate %d", c.Serial.Baud)
	}
	if c.Serial.TimeoutMs <= 0 {
		return fmt.Errorf("invalid timeout %dms", c.Serial.TimeoutMs)
	}
	if c.MQTT.IntervalMs <= 0 {
		return fmt.Errorf("invalid polling interval %dms", c.MQTT.IntervalMs)
	}
	switch c.MQTT.Format {
	case FormatJSON, FormatProto:
	default:
		return fmt.Errorf("unknown snapshot format %q", c.MQTT.Format)
	}
	return nil
}

// regValue is a flag.Value for 16-bit register values in decimal or hex.
type regValue struct {
	p *uint16
}

func (v regValue) String() string {
	if v.p == nil {
		return ""
	}
	return fmt.Sprintf("0x%04X", *v.p)
}

func (v regValue) Set(s string) error {
	n, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return err
	}
	*v.p = uint16(n)
	return nil
}

func bindFlags(fs *flag.FlagSet, c *Config) {
	fs.BoolVar(&c.Sim, "sim", c.Sim, "Use a simulated chip.")
	fs.StringVar(&c.Serial.Port, "port", c.Serial.Port, "Serial port device.")
	fs.IntVar(&c.Serial.Baud, "baud", c.Serial.Baud, "Serial baud rate.")
	fs.IntVar(&c.Serial.TimeoutMs, "timeout", c.Serial.TimeoutMs, "Send/receive timeout in milliseconds.")
	fs.StringVar(&c.Serial.DirPin, "dir-pin", c.Serial.DirPin, "GPIO pin selecting line direction, High for transmit.")
	fs.BoolVar(&c.Serial.Echo, "echo", c.Serial.Echo, "Serial RX receives TX (single-wire line).")
	fs.Var(regValue{&c.Registers.ZeroDAC}, "zdac", "Zero DAC register value.")
	fs.Var(regValue{&c.Registers.GainDAC}, "gdac", "Gain DAC register value.")
	fs.Var(regValue{&c.Registers.CFG0}, "cfg0", "CFG0 register value.")
	fs.Var(regValue{&c.Registers.CFG1}, "cfg1", "CFG1 register value.")
	fs.Var(regValue{&c.Registers.CFG2}, "cfg2", "CFG2 register value.")
	fs.StringVar(&c.MQTT.URL, "mqtt", c.MQTT.URL, "MQTT broker URL, the path is the topic prefix.")
	fs.StringVar(&c.MQTT.ID, "id", c.MQTT.ID, "Device ID in MQTT topics, default is the machine ID.")
	fs.IntVar(&c.MQTT.IntervalMs, "interval", c.MQTT.IntervalMs, "Snapshot polling interval in milliseconds.")
	fs.StringVar(&c.MQTT.Format, "format", c.MQTT.Format, "Snapshot format: json or proto.")
}

// Flags binds a Config to command line flags. Values are resolved as
// defaults, then the -config file, then flags given explicitly.
type Flags struct {
	File string

	fs    *flag.FlagSet
	base  Config
	conf  Config
	names map[string]bool
}

// BindFlags registers the configuration flags to fs.
func BindFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{fs: fs, base: defaultConfig, conf: defaultConfig, names: make(map[string]bool)}
	bindFlags(fs, &f.conf)
	probe := flag.NewFlagSet("", flag.ContinueOnError)
	bindFlags(probe, &Config{})
	probe.VisitAll(func(fl *flag.Flag) {
		f.names[fl.Name] = true
	})
	fs.StringVar(&f.File, "config", f.File, "YAML configuration file.")
	return f
}

// Config resolves the configuration after fs is parsed.
func (f *Flags) Config() (*Config, error) {
	conf := f.base
	if f.File != "" {
		if err := conf.LoadFile(f.File); err != nil {
			return nil, err
		}
	}
	var args []string
	f.fs.Visit(func(fl *flag.Flag) {
		if f.names[fl.Name] {
			args = append(args, "-"+fl.Name+"="+fl.Value.String())
		}
	})
	override := flag.NewFlagSet("override", flag.ContinueOnError)
	bindFlags(override, &conf)
	if err := override.Parse(args); err != nil {
		return nil, err
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

var defaultFlags *Flags

// SetupFlags sets command line flags.
func SetupFlags() {
	defaultFlags = BindFlags(flag.CommandLine)
}

// Resolve resolves the configuration from command line flags. It must be
// called after SetupFlags and flag.Parse.
func Resolve() (*Config, error) {
	if defaultFlags == nil {
		conf := NewConfig()
		return conf, conf.Validate()
	}
	return defaultFlags.Config()
}

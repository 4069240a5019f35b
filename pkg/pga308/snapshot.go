package pga308

import (
	"github.com/golang/glog"

	fx "github.com/robotalks/pga308/pkg/framework"
)

// Snapshot holds the values of all known registers.
type Snapshot struct {
	ZDAC uint16 `json:"zdac"`
	GDAC uint16 `json:"gdac"`
	CFG0 uint16 `json:"cfg0"`
	CFG1 uint16 `json:"cfg1"`
	CFG2 uint16 `json:"cfg2"`
	CHKS uint16 `json:"chks"`
	CHSR uint16 `json:"chsr"`
	SFTC uint16 `json:"sftc"`
	OENC uint16 `json:"oenc"`
	ALMR uint16 `json:"almr"`
	OTPS uint16 `json:"otps"`
}

func (s *Snapshot) field(reg Register) *uint16 {
	switch reg {
	case RegZDAC:
		return &s.ZDAC
	case RegGDAC:
		return &s.GDAC
	case RegCFG0:
		return &s.CFG0
	case RegCFG1:
		return &s.CFG1
	case RegCFG2:
		return &s.CFG2
	case RegCHKS:
		return &s.CHKS
	case RegCHSR:
		return &s.CHSR
	case RegSFTC:
		return &s.SFTC
	case RegOENC:
		return &s.OENC
	case RegALMR:
		return &s.ALMR
	case RegOTPS:
		return &s.OTPS
	}
	return nil
}

// Get returns the value of reg, 0 for unknown registers.
func (s *Snapshot) Get(reg Register) uint16 {
	if p := s.field(reg); p != nil {
		return *p
	}
	return 0
}

// Set updates the value of reg. Unknown registers are ignored.
func (s *Snapshot) Set(reg Register, value uint16) {
	if p := s.field(reg); p != nil {
		*p = value
	}
}

// Settings extracts the configurable registers.
func (s *Snapshot) Settings() Settings {
	return Settings{
		ZeroDAC: s.ZDAC,
		GainDAC: s.GDAC,
		CFG0:    s.CFG0,
		CFG1:    s.CFG1,
		CFG2:    s.CFG2,
	}
}

// Locked reports whether the chip was in software lock mode.
func (s *Snapshot) Locked() bool {
	return s.SFTC == SoftLock
}

// RegisterValue pairs a register with its value.
type RegisterValue struct {
	Register Register
	Value    uint16
}

// Fields lists all registers with values in address order.
func (s *Snapshot) Fields() []RegisterValue {
	fields := make([]RegisterValue, 0, NumRegisters)
	for _, reg := range Registers {
		fields = append(fields, RegisterValue{Register: reg, Value: s.Get(reg)})
	}
	return fields
}

// Refresh reads all registers into snap. A register that fails to read
// keeps its previous value in snap, and all failures are returned
// aggregated after every register has been tried.
func (d *Device) Refresh(snap *Snapshot) error {
	var errs fx.AggregatedError
	for _, reg := range Registers {
		value, err := d.Read(reg)
		if err != nil {
			errs.Add(err)
			continue
		}
		snap.Set(reg, value)
	}
	return errs.Aggregate()
}

// ReadAll reads all registers. It never fails: registers that can't be
// read are left zero and only logged.
func (d *Device) ReadAll() Snapshot {
	var snap Snapshot
	if err := d.Refresh(&snap); err != nil {
		glog.Warningf("read all: %v", err)
	}
	return snap
}

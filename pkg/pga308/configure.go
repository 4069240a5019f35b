package pga308

import (
	"fmt"

	"github.com/golang/glog"
)

// Settings are the register values programmed by Configure.
type Settings struct {
	ZeroDAC uint16 `json:"zdac" yaml:"zdac"`
	GainDAC uint16 `json:"gdac" yaml:"gdac"`
	CFG0    uint16 `json:"cfg0" yaml:"cfg0"`
	CFG1    uint16 `json:"cfg1" yaml:"cfg1"`
	CFG2    uint16 `json:"cfg2" yaml:"cfg2"`
}

// Step is one state of the configuration sequence.
type Step int

// Configuration steps in execution order.
const (
	StepSoftLock Step = iota
	StepZeroDAC
	StepGainDAC
	StepCFG0
	StepCFG1
	StepCFG2

	// NumSteps is the number of configuration steps.
	NumSteps = 6
)

var stepNames = [NumSteps]string{
	"soft-lock", "zero-dac", "gain-dac", "cfg0", "cfg1", "cfg2",
}

func (s Step) String() string {
	if s >= 0 && s < NumSteps {
		return stepNames[s]
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// StepPlan is a register write scheduled by Configure.
type StepPlan struct {
	Step     Step
	Register Register
	Value    uint16
}

// Plan returns the writes Configure performs for s, in order.
func (s Settings) Plan() [NumSteps]StepPlan {
	return [NumSteps]StepPlan{
		{StepSoftLock, RegSFTC, SoftLock},
		{StepZeroDAC, RegZDAC, s.ZeroDAC},
		{StepGainDAC, RegGDAC, s.GainDAC},
		{StepCFG0, RegCFG0, s.CFG0},
		{StepCFG1, RegCFG1, s.CFG1},
		{StepCFG2, RegCFG2, s.CFG2},
	}
}

// Configure enters software lock and programs s, verifying every write
// by reading the register back. It stops at the first failure and
// returns a *StepError; registers written before that keep their values.
func (d *Device) Configure(s Settings) error {
	for _, p := range s.Plan() {
		if err := d.verifiedWrite(p.Register, p.Value); err != nil {
			glog.Warningf("configure %s: %v", p.Step, err)
			return &StepError{Step: p.Step, Err: err}
		}
		glog.V(1).Infof("configure %s: %s = 0x%04X", p.Step, p.Register, p.Value)
	}
	return nil
}

func (d *Device) verifiedWrite(reg Register, value uint16) error {
	if err := d.Write(reg, value); err != nil {
		return err
	}
	actual, err := d.Read(reg)
	if err != nil {
		return err
	}
	if actual != value {
		return &MismatchError{Register: reg, Expected: value, Actual: actual}
	}
	return nil
}

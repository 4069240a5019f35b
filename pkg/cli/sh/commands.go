package sh

import (
	"bytes"
	"fmt"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/pga308/pkg/monitor"
	"github.com/robotalks/pga308/pkg/pga308"
)

// RegisterResult is the value of a single register.
type RegisterResult struct {
	Register pga308.Register `json:"-"`
	Name     string          `json:"register"`
	Value    uint16          `json:"value"`
}

func newRegisterResult(reg pga308.Register, value uint16) *RegisterResult {
	return &RegisterResult{Register: reg, Name: reg.String(), Value: value}
}

func (r *RegisterResult) String() string {
	return fmt.Sprintf("%s = 0x%04X", r.Name, r.Value)
}

// DumpResult lists all registers.
type DumpResult struct {
	pga308.Snapshot
}

func (r *DumpResult) String() string {
	var w bytes.Buffer
	for n, f := range r.Fields() {
		if n > 0 {
			w.WriteByte('\n')
		}
		fmt.Fprintf(&w, "%02X %s = 0x%04X", byte(f.Register), f.Register, f.Value)
	}
	return w.String()
}

// OutcomeResult reports the outcome of a verified operation, in the
// same form the monitor publishes it.
type OutcomeResult struct {
	monitor.Result
}

func newOutcomeResult(err error) *OutcomeResult {
	return &OutcomeResult{Result: monitor.NewResult(err)}
}

func (r *OutcomeResult) String() string {
	if r.Error == "" {
		return "OK"
	}
	if r.Step != "" {
		return fmt.Sprintf("FAILED at %s (%s): %s", r.Step, r.Outcome, r.Error)
	}
	return fmt.Sprintf("FAILED (%s): %s", r.Outcome, r.Error)
}

// PlanResult lists the writes of a configuration.
type PlanResult []pga308.StepPlan

func (r PlanResult) String() string {
	var w bytes.Buffer
	for n, p := range r {
		if n > 0 {
			w.WriteByte('\n')
		}
		fmt.Fprintf(&w, "%d. %-9s %s <- 0x%04X", n+1, p.Step, p.Register, p.Value)
	}
	return w.String()
}

// ReadRegister handles "read REG".
func (s *Shell) ReadRegister(args []string) (*RegisterResult, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("REG required")
	}
	reg, err := pga308.ParseRegister(args[0])
	if err != nil {
		return nil, err
	}
	value, err := s.Device.Read(reg)
	if err != nil {
		return nil, err
	}
	return newRegisterResult(reg, value), nil
}

// ReadOTP handles "otp REG".
func (s *Shell) ReadOTP(args []string) (*RegisterResult, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("REG required")
	}
	reg, err := pga308.ParseRegister(args[0])
	if err != nil {
		return nil, err
	}
	value, err := s.Device.ReadOTP(reg)
	if err != nil {
		return nil, err
	}
	return newRegisterResult(reg, value), nil
}

// WriteRegister handles "write REG VALUE". The value isn't verified.
func (s *Shell) WriteRegister(args []string) (*RegisterResult, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("REG VALUE required")
	}
	reg, err := pga308.ParseRegister(args[0])
	if err != nil {
		return nil, err
	}
	value, err := pga308.ParseValue(args[1])
	if err != nil {
		return nil, err
	}
	if err = s.Device.Write(reg, value); err != nil {
		return nil, err
	}
	return newRegisterResult(reg, value), nil
}

// Dump handles "dump". Registers which fail to read show as zero.
func (s *Shell) Dump() *DumpResult {
	return &DumpResult{Snapshot: s.Device.ReadAll()}
}

func (s *Shell) settings(args []string) (pga308.Settings, error) {
	switch len(args) {
	case 0:
		return s.Config.Registers, nil
	case 5:
	default:
		return pga308.Settings{}, fmt.Errorf("expect no arguments or ZDAC GDAC CFG0 CFG1 CFG2")
	}
	var values [5]uint16
	for n, arg := range args {
		v, err := pga308.ParseValue(arg)
		if err != nil {
			return pga308.Settings{}, err
		}
		values[n] = v
	}
	return pga308.Settings{
		ZeroDAC: values[0],
		GainDAC: values[1],
		CFG0:    values[2],
		CFG1:    values[3],
		CFG2:    values[4],
	}, nil
}

// Configure handles "configure [ZDAC GDAC CFG0 CFG1 CFG2]".
func (s *Shell) Configure(args []string) (*OutcomeResult, error) {
	settings, err := s.settings(args)
	if err != nil {
		return nil, err
	}
	return newOutcomeResult(s.Device.Configure(settings)), nil
}

// Plan handles "plan [ZDAC GDAC CFG0 CFG1 CFG2]".
func (s *Shell) Plan(args []string) (PlanResult, error) {
	settings, err := s.settings(args)
	if err != nil {
		return nil, err
	}
	plan := settings.Plan()
	return PlanResult(plan[:]), nil
}

// Lock handles "lock": enters software lock mode and verifies it.
func (s *Shell) Lock() *OutcomeResult {
	err := s.Device.Write(pga308.RegSFTC, pga308.SoftLock)
	if err == nil {
		var value uint16
		if value, err = s.Device.Read(pga308.RegSFTC); err == nil && value != pga308.SoftLock {
			err = &pga308.MismatchError{Register: pga308.RegSFTC, Expected: pga308.SoftLock, Actual: value}
		}
	}
	return newOutcomeResult(err)
}

func output(c *ishell.Context, v fmt.Stringer, err error) {
	if err != nil {
		c.Err(err)
		return
	}
	out, err := ShellFrom(c).Format(v)
	if err != nil {
		c.Err(err)
		return
	}
	c.Println(out)
}

var (
	// ReadCmd reads a register.
	ReadCmd = ishell.Cmd{
		Name:    "read",
		Aliases: []string{"r"},
		Help:    "REG",
		Func: func(c *ishell.Context) {
			r, err := ShellFrom(c).ReadRegister(c.Args)
			output(c, r, err)
		},
	}

	// OTPCmd reads the OTP copy of a register.
	OTPCmd = ishell.Cmd{
		Name: "otp",
		Help: "REG",
		Func: func(c *ishell.Context) {
			r, err := ShellFrom(c).ReadOTP(c.Args)
			output(c, r, err)
		},
	}

	// WriteCmd writes a register without verification.
	WriteCmd = ishell.Cmd{
		Name:    "write",
		Aliases: []string{"w"},
		Help:    "REG VALUE",
		Func: func(c *ishell.Context) {
			r, err := ShellFrom(c).WriteRegister(c.Args)
			output(c, r, err)
		},
	}

	// DumpCmd reads all registers.
	DumpCmd = ishell.Cmd{
		Name:    "dump",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			output(c, ShellFrom(c).Dump(), nil)
		},
	}

	// ConfigureCmd runs the configuration sequence.
	ConfigureCmd = ishell.Cmd{
		Name:    "configure",
		Aliases: []string{"cfg"},
		Help:    "[ZDAC GDAC CFG0 CFG1 CFG2]",
		Func: func(c *ishell.Context) {
			r, err := ShellFrom(c).Configure(c.Args)
			output(c, r, err)
		},
	}

	// PlanCmd prints the writes configure would do.
	PlanCmd = ishell.Cmd{
		Name: "plan",
		Help: "[ZDAC GDAC CFG0 CFG1 CFG2]",
		Func: func(c *ishell.Context) {
			r, err := ShellFrom(c).Plan(c.Args)
			output(c, r, err)
		},
	}

	// LockCmd enters software lock mode.
	LockCmd = ishell.Cmd{
		Name: "lock",
		Help: "",
		Func: func(c *ishell.Context) {
			output(c, ShellFrom(c).Lock(), nil)
		},
	}
)

package sh

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/pga308/pkg/config"
	"github.com/robotalks/pga308/pkg/pga308"
	"github.com/robotalks/pga308/pkg/pga308/sim"
)

func newTestShell(chip *sim.Chip) *Shell {
	conf := config.NewConfig()
	conf.Registers = pga308.Settings{
		ZeroDAC: 0x1234,
		GainDAC: 0x0010,
		CFG0:    0x00FF,
		CFG1:    0x0001,
		CFG2:    0x0080,
	}
	return &Shell{Config: conf, Device: pga308.New(chip)}
}

func TestReadWriteRegister(t *testing.T) {
	chip := sim.Echo()
	s := newTestShell(chip)

	r, err := s.WriteRegister([]string{"gdac", "0x0042"})
	require.NoError(t, err)
	require.Equal(t, "GDAC = 0x0042", r.String())
	require.Equal(t, uint16(0x42), chip.Peek(pga308.RegGDAC))

	r, err = s.ReadRegister([]string{"1"})
	require.NoError(t, err)
	require.Equal(t, pga308.RegGDAC, r.Register)
	require.Equal(t, uint16(0x42), r.Value)

	s.OutputJSON = true
	out, err := s.Format(r)
	require.NoError(t, err)
	require.JSONEq(t, `{"register":"GDAC","value":66}`, out)

	_, err = s.ReadRegister(nil)
	require.Error(t, err)
	_, err = s.ReadRegister([]string{"nosuch"})
	require.Error(t, err)
	_, err = s.WriteRegister([]string{"gdac", "0x10000"})
	require.Error(t, err)

	chip.FailOn(sim.OpReceive, 1)
	_, err = s.ReadRegister([]string{"gdac"})
	require.Equal(t, pga308.OutcomeTransport, pga308.OutcomeOf(err))
}

func TestReadOTPCommand(t *testing.T) {
	chip := sim.New()
	chip.PokeOTP(pga308.RegCFG2, 0x0102)
	s := newTestShell(chip)
	r, err := s.ReadOTP([]string{"cfg2"})
	require.NoError(t, err)
	require.Equal(t, "CFG2 = 0x0102", r.String())
	_, err = s.ReadOTP([]string{"cfg2", "1"})
	require.Error(t, err)
}

func TestDump(t *testing.T) {
	chip := sim.New()
	chip.Poke(pga308.RegZDAC, 0xABCD)
	s := newTestShell(chip)
	out := s.Dump().String()
	require.Contains(t, out, "00 ZDAC = 0xABCD")
	require.Contains(t, out, "0A OTPS = 0x0000")
}

func TestConfigureCommand(t *testing.T) {
	chip := sim.New()
	s := newTestShell(chip)

	r, err := s.Configure(nil)
	require.NoError(t, err)
	require.Equal(t, "OK", r.String())
	require.Equal(t, uint16(0x1234), chip.Peek(pga308.RegZDAC))
	require.Equal(t, uint16(0x0080), chip.Peek(pga308.RegCFG2))

	r, err = s.Configure([]string{"1", "2", "3", "4", "5"})
	require.NoError(t, err)
	require.Equal(t, "ok", r.Outcome)
	require.Equal(t, uint16(5), chip.Peek(pga308.RegCFG2))

	chip.Corrupt(pga308.RegGDAC, func(v uint16) uint16 { return v + 1 })
	r, err = s.Configure(nil)
	require.NoError(t, err)
	require.Equal(t, "mismatch", r.Outcome)
	require.Equal(t, "gain-dac", r.Step)
	require.Contains(t, r.String(), "FAILED at gain-dac")

	s.OutputJSON = true
	out, err := s.Format(r)
	require.NoError(t, err)
	var decoded map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Equal(t, "mismatch", decoded["outcome"])
	require.Equal(t, "gain-dac", decoded["step"])

	_, err = s.Configure([]string{"1", "2"})
	require.Error(t, err)
}

func TestPlanCommand(t *testing.T) {
	s := newTestShell(sim.New())
	plan, err := s.Plan(nil)
	require.NoError(t, err)
	require.Len(t, plan, pga308.NumSteps)
	require.Equal(t, pga308.RegSFTC, plan[0].Register)
	require.Equal(t, pga308.SoftLock, plan[0].Value)
	require.Contains(t, plan.String(), "2. zero-dac  ZDAC <- 0x1234")

	_, err = s.Plan([]string{"1", "2", "3", "4", "x"})
	require.Error(t, err)
}

func TestLock(t *testing.T) {
	chip := sim.New()
	s := newTestShell(chip)
	r := s.Lock()
	require.Equal(t, "ok", r.Outcome)
	require.Equal(t, pga308.SoftLock, chip.Peek(pga308.RegSFTC))

	chip.Corrupt(pga308.RegSFTC, func(uint16) uint16 { return 0 })
	r = s.Lock()
	require.Equal(t, "mismatch", r.Outcome)

	chip.FailOn(sim.OpSend, 1)
	r = s.Lock()
	require.Equal(t, "transport", r.Outcome)
}

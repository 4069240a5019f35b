package sh

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/pga308/pkg/config"
	"github.com/robotalks/pga308/pkg/pga308"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell  *ishell.Shell
	Config *config.Config
	Device *pga308.Device
}

const (
	shellKey = "$shell"
	prompt   = "pga308 > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&ReadCmd,
		&OTPCmd,
		&WriteCmd,
		&DumpCmd,
		&ConfigureCmd,
		&PlanCmd,
		&LockCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// New creates a new shell.
func New(conf *config.Config, dev *pga308.Device) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
		Device: dev,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(prompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// Format formats the result of a command in text or JSON.
func (s *Shell) Format(v fmt.Stringer) (string, error) {
	if s.OutputJSON {
		out, err := json.Marshal(v)
		return string(out), err
	}
	return v.String(), nil
}

// ErrNoCommand is returned by Run when there's nothing to evaluate and
// the shell isn't interactive.
var ErrNoCommand = errors.New("command expected")

// Run runs the shell.
func (s *Shell) Run(args ...string) error {
	if len(args) > 0 {
		return s.Shell.Process(args...)
	}
	if !s.Interactive {
		return ErrNoCommand
	}
	s.Shell.Println("PGA308 console, type help for commands.")
	s.Shell.Run()
	return nil
}

// Main is a helper to provide a single call in main. config.SetupFlags
// must be called during init.
func Main() {
	flag.Parse()
	conf, err := config.Resolve()
	if err != nil {
		log.Fatalln(err)
	}
	dev, closer, err := conf.NewDevice()
	if err != nil {
		log.Fatalln(err)
	}
	err = New(conf, dev).Run(flag.Args()...)
	closer.Close()
	if err != nil {
		log.Fatalln(err)
	}
}

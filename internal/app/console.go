// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/relabs-tech/mmc5983/internal/config"
	"github.com/relabs-tech/mmc5983/internal/orientation"
	"github.com/relabs-tech/mmc5983/internal/sensors"
	"github.com/relabs-tech/mmc5983/mmc5983"
)

// Console drives the magnetometer from typed commands.
type Console struct {
	mgr *sensors.MagManager
	cfg *config.Config
	out io.Writer
}

// NewConsole returns a console writing its output to out.
func NewConsole(mgr *sensors.MagManager, cfg *config.Config, out io.Writer) *Console {
	return &Console{mgr: mgr, cfg: cfg, out: out}
}

// RunConsole brings the sensor up and runs an interactive prompt until quit
// or EOF.
func RunConsole() error {
	cfg := config.Get()
	mgr := sensors.GetMagManager()
	if err := mgr.Init(); err != nil {
		return err
	}
	defer mgr.Close()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "mmc5983> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		AutoComplete:    consoleCompleter,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	c := NewConsole(mgr, cfg, rl.Stdout())
	c.printHelp()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			return nil
		}
		if c.Exec(line) {
			return nil
		}
	}
}

var consoleCompleter = readline.NewPrefixCompleter(
	readline.PcItem("id"),
	readline.PcItem("status"),
	readline.PcItem("init"),
	readline.PcItem("bw", readline.PcItem("100"), readline.PcItem("200"), readline.PcItem("400"), readline.PcItem("800")),
	readline.PcItem("set"),
	readline.PcItem("reset"),
	readline.PcItem("selftest", readline.PcItem("+"), readline.PcItem("-")),
	readline.PcItem("cal"),
	readline.PcItem("field"),
	readline.PcItem("raw"),
	readline.PcItem("temp"),
	readline.PcItem("cont"),
	readline.PcItem("oneshot"),
	readline.PcItem("freq"),
	readline.PcItem("autosr", readline.PcItem("off")),
	readline.PcItem("mode"),
	readline.PcItem("regs"),
	readline.PcItem("state"),
	readline.PcItem("help"),
	readline.PcItem("quit"),
)

// Exec runs one command line and reports whether the console should exit.
func (c *Console) Exec(line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	var err error
	switch cmd {
	case "help", "?":
		c.printHelp()
	case "id":
		err = c.cmdID()
	case "status":
		err = c.cmdStatus()
	case "init":
		err = c.mgr.Reinitialize()
		c.done(err, "initialized")
		return false
	case "bw":
		err = c.cmdBandwidth(args)
	case "set", "reset":
		err = c.mgr.Pulse(cmd)
		c.done(err, cmd+" pulse sent")
		return false
	case "selftest":
		err = c.cmdSelfTest(args)
	case "cal":
		err = c.cmdCalibrate()
	case "field", "f":
		err = c.cmdField()
	case "raw":
		err = c.cmdRaw()
	case "temp":
		err = c.cmdTemp()
	case "cont":
		err = c.cmdContinuous(args)
	case "oneshot":
		err = c.mgr.OneShot()
		c.done(err, "one-shot mode")
		return false
	case "freq":
		err = c.cmdFrequency(args)
	case "autosr":
		err = c.cmdAutoSetReset(args)
	case "mode":
		err = c.cmdMode()
	case "regs":
		err = c.cmdRegisters()
	case "state":
		err = c.cmdState()
	case "quit", "exit", "q":
		fmt.Fprintln(c.out, "Exiting...")
		return true
	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	if err != nil {
		fmt.Fprintf(c.out, "error: %v\n", err)
	}
	return false
}

func (c *Console) done(err error, msg string) {
	if err != nil {
		fmt.Fprintf(c.out, "error: %v\n", err)
		return
	}
	fmt.Fprintln(c.out, msg)
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
MMC5983MA Commands:
  Device:
    id                 - Read the product ID
    status             - Read the status register
    init               - Reset and initialize the device
    bw <hz>            - Set bandwidth (100, 200, 400, 800)
    set | reset        - Send a SET or RESET pulse
    selftest <+|->     - Send a self-test pulse

  Measurement:
    cal                - Measure the bridge offset
    field              - Read the calibrated field in Gauss
    raw                - Read raw counts
    temp               - Read the die temperature

  Continuous mode:
    cont [hz] [period] - Enter continuous mode (period enables auto SET/RESET)
    oneshot            - Return to one-shot mode
    freq <hz>          - Change the output data rate
    autosr <n|off>     - Periodic SET every n samples, or off
    mode               - Show the acquisition mode

  Debug:
    regs               - Dump the readable registers
    state              - Show the control register shadow
    help               - Show this help
    quit               - Exit`)
}

func (c *Console) cmdID() error {
	id, err := c.mgr.ProductID()
	if err != nil {
		return err
	}
	valid := "ok"
	if !id.Valid() {
		valid = "unexpected"
	}
	fmt.Fprintf(c.out, "product id %s (%s)\n", id, valid)
	return nil
}

func (c *Console) cmdStatus() error {
	st, err := c.mgr.Status()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "status %s\n", st)
	return nil
}

func (c *Console) cmdBandwidth(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: bw <100|200|400|800>")
	}
	hz, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid bandwidth %q", args[0])
	}
	bw, err := mmc5983.BandwidthFromHz(hz)
	if err != nil {
		return err
	}
	if err := c.mgr.SetBandwidth(bw); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "bandwidth %s\n", bw)
	return nil
}

func (c *Console) cmdSelfTest(args []string) error {
	if len(args) != 1 || (args[0] != "+" && args[0] != "-") {
		return fmt.Errorf("usage: selftest <+|->")
	}
	if err := c.mgr.Pulse("selftest" + args[0]); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "self-test %s pulse sent\n", args[0])
	return nil
}

func (c *Console) cmdCalibrate() error {
	off, err := c.mgr.Calibrate()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "offset X=%d Y=%d Z=%d\n", off.X, off.Y, off.Z)
	return nil
}

func (c *Console) cmdField() error {
	s, err := c.mgr.ReadSample(false)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "X=%+.5fG Y=%+.5fG Z=%+.5fG |B|=%.5fG heading=%.1f° %s\n",
		s.X, s.Y, s.Z, s.Norm, s.Heading, orientation.Cardinal(s.Heading))
	return nil
}

func (c *Console) cmdRaw() error {
	f, err := c.mgr.RawField()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "raw %s\n", f)
	return nil
}

func (c *Console) cmdTemp() error {
	t, err := c.mgr.Temperature()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "temperature %s\n", t)
	return nil
}

func (c *Console) cmdContinuous(args []string) error {
	cc := c.cfg.ContinuousConfig()
	if len(args) > 0 {
		hz, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid rate %q", args[0])
		}
		if cc.Rate, err = mmc5983.OutputDataRateFromHz(hz); err != nil {
			return err
		}
	}
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid period %q", args[1])
		}
		if cc.Period, err = mmc5983.SetResetPeriodFromSamples(n); err != nil {
			return err
		}
		cc.AutoSetReset = true
	}
	if err := c.mgr.Continuous(cc); err != nil {
		return err
	}
	return c.cmdMode()
}

func (c *Console) cmdFrequency(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: freq <1|10|20|50|100|200|1000>")
	}
	hz, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid rate %q", args[0])
	}
	rate, err := mmc5983.OutputDataRateFromHz(hz)
	if err != nil {
		return err
	}
	if err := c.mgr.SetFrequency(rate); err != nil {
		return err
	}
	return c.cmdMode()
}

func (c *Console) cmdAutoSetReset(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: autosr <samples|off>")
	}
	if args[0] == "off" {
		if err := c.mgr.AutoSetReset(false, 0); err != nil {
			return err
		}
		return c.cmdMode()
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid period %q", args[0])
	}
	p, err := mmc5983.SetResetPeriodFromSamples(n)
	if err != nil {
		return err
	}
	if err := c.mgr.AutoSetReset(true, p); err != nil {
		return err
	}
	return c.cmdMode()
}

func (c *Console) cmdMode() error {
	mc, err := c.mgr.ModeConfig()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "mode %s\n", mc)
	return nil
}

func (c *Console) cmdRegisters() error {
	regs, err := c.mgr.ReadAllRegisters()
	if err != nil {
		return err
	}
	for _, rv := range regs {
		fmt.Fprintf(c.out, "  %s\n", rv)
	}
	return nil
}

func (c *Console) cmdState() error {
	st, err := c.mgr.State()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "  CONTROL0 %s\n  CONTROL1 %s\n  CONTROL2 %s\n  CONTROL3 %s\n  offset   %d %d %d\n",
		st.Control0, st.Control1, st.Control2, st.Control3, st.Offset.X, st.Offset.Y, st.Offset.Z)
	return nil
}

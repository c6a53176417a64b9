// Command sixtwo loads a ROM image at a given origin and runs it against
// the 6502 core. It replaces the teacher's flag-based, SDL-driven
// vcs/vcs_main.go with a plain ROM-at-origin loader (no windowing, no
// cart-specific bank logic) and switches from the standard flag package
// to urfave/cli/v2, matching master-g/childhood's CLI launcher style.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/davecgh/go-spew/spew"
	cli "github.com/urfave/cli/v2"

	"sixtwo/computer"
	"sixtwo/cpu"
	"sixtwo/memory"
	"sixtwo/tui"
)

func main() {
	app := &cli.App{
		Name:    "sixtwo",
		Usage:   "Run a ROM image against the 6502 core",
		Version: "v0.0.1",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "rom",
				Aliases:  []string{"r"},
				Usage:    "path to the ROM image to load",
				Required: true,
			},
			&cli.UintFlag{
				Name:  "origin",
				Value: 0x8000,
				Usage: "address the ROM image is loaded at",
			},
			&cli.Float64Flag{
				Name:  "hz",
				Value: 1000000,
				Usage: "target clock frequency in Hz; accepted but not applied: the CPU always runs free (max speed)",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "dump CPU register state to stderr after each tick",
			},
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "attach the interactive debugger UI; the CPU still runs free, no snapshots are sent to it and its step requests are not consumed",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("sixtwo: %v", err)
	}
}

func run(c *cli.Context) error {
	romPath := c.String("rom")
	origin := uint16(c.Uint("origin"))

	data, err := os.ReadFile(romPath)
	if err != nil {
		return fmt.Errorf("can't load rom: %v", err)
	}

	m := memory.NewMap()
	ram, err := memory.NewRAM(0x0800, nil)
	if err != nil {
		return err
	}
	if err := m.Install("ram", ram, 0x0000, 0x07FF); err != nil {
		return err
	}
	if err := computer.LoadROM(m, "cart", data, origin, 0xFFFF); err != nil {
		return err
	}

	chip, err := cpu.Init(&cpu.ChipDef{Cpu: cpu.CPU_NMOS, Ram: m})
	if err != nil {
		return fmt.Errorf("can't init CPU: %v", err)
	}

	comp := computer.New()
	comp.Add("cpu", chip)

	if c.Bool("tui") {
		comp.AddUI(tui.New(16))
	} else if c.Bool("debug") {
		comp.Add("trace", &traceComponent{chip: chip})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		comp.Stop()
		cancel()
	}()

	err = comp.Run(ctx)
	if _, ok := err.(computer.ErrShutdownRequested); ok {
		return nil
	}
	return err
}

// traceComponent is a no-op synchronous component used only to print CPU
// state between ticks when --debug is passed; it owns no simulation
// state of its own.
type traceComponent struct {
	chip *cpu.Chip
}

func (t *traceComponent) Tick() error { return nil }

func (t *traceComponent) TickDone() {
	fmt.Fprintln(os.Stderr, spew.Sdump(t.chip.Registers()))
}

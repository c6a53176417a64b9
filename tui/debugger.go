// Package tui implements a bubbletea debugger, adapted from
// gone/cpu/debugger.go's page-table/status-line layout and spacebar
// single-step control scheme. Unlike the teacher sibling, which calls
// cpu.tick() directly from the bubbletea Update loop, this model never
// touches CPU or Memory state: it only renders Snapshots pushed to it and
// emits step requests on a channel, so it can be attached to a
// computer.Computer via AddUI without owning anything on the simulation
// thread.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/davecgh/go-spew/spew"

	"sixtwo/cpu"
)

// Snapshot is the read-only view of simulation state the debugger renders.
// The driving side (typically computer.Computer's caller) builds one from
// cpu.Chip.Registers and a window of memory after every tick, or after
// every N ticks, and pushes it onto the channel returned by Snapshots.
type Snapshot struct {
	Regs     cpu.Registers
	Page     [16]byte
	PageAddr uint16
	Cycle    uint64
}

// Debugger is a UI component suitable for computer.Computer.AddUI. It owns
// no simulation state; it only displays Snapshots and requests single
// steps.
type Debugger struct {
	snapshots chan Snapshot
	step      chan struct{}
	quit      chan struct{}
}

// New creates a Debugger. bufDepth sizes the snapshot channel so a fast
// producer doesn't stall waiting on a slow terminal.
func New(bufDepth int) *Debugger {
	return &Debugger{
		snapshots: make(chan Snapshot, bufDepth),
		step:      make(chan struct{}, 1),
		quit:      make(chan struct{}),
	}
}

// Snapshots returns the send side the driving goroutine uses to publish
// state after each tick (or batch of ticks).
func (d *Debugger) Snapshots() chan<- Snapshot {
	return d.snapshots
}

// Step returns the receive side the driving goroutine polls to learn when
// the user has requested a single step.
func (d *Debugger) Step() <-chan struct{} {
	return d.step
}

// Run implements computer.UIComponent: it starts the bubbletea program and
// blocks until the user quits or ctx is canceled.
func (d *Debugger) Run(ctx context.Context) {
	p := tea.NewProgram(model{snapshots: d.snapshots, step: d.step})
	go func() {
		<-ctx.Done()
		p.Quit()
	}()
	// Errors surfacing from the TUI (terminal setup failures, etc.) have no
	// simulation-side recovery; the debugger simply stops rendering.
	_, _ = p.Run()
	close(d.quit)
}

type model struct {
	snapshots <-chan Snapshot
	step      chan<- struct{}
	cur       Snapshot
	prevPC    uint16
	quitting  bool
}

type snapshotMsg Snapshot

func waitForSnapshot(ch <-chan Snapshot) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return snapshotMsg(s)
	}
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	return waitForSnapshot(m.snapshots)
}

// Update implements tea.Model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q":
			m.quitting = true
			return m, tea.Quit
		case " ", "j":
			select {
			case m.step <- struct{}{}:
			default:
			}
			return m, nil
		}
	case snapshotMsg:
		m.prevPC = m.cur.Regs.PC
		m.cur = Snapshot(msg)
		return m, waitForSnapshot(m.snapshots)
	}
	return m, nil
}

func (m model) renderPage() string {
	start := m.cur.PageAddr
	s := fmt.Sprintf("%04x | ", start)
	for i, b := range m.cur.Page {
		if start+uint16(i) == m.cur.Regs.PC {
			s += fmt.Sprintf("[%02x] ", b)
		} else {
			s += fmt.Sprintf(" %02x  ", b)
		}
	}
	return s
}

func (m model) status() string {
	r := m.cur.Regs
	flags := []bool{
		r.P&0x80 != 0, // N
		r.P&0x40 != 0, // V
		r.P&0x20 != 0, // unused, always 1
		r.P&0x10 != 0, // B
		r.P&0x08 != 0, // D
		r.P&0x04 != 0, // I
		r.P&0x02 != 0, // Z
		r.P&0x01 != 0, // C
	}
	var flagLine string
	for _, f := range flags {
		if f {
			flagLine += "/ "
		} else {
			flagLine += "  "
		}
	}
	return fmt.Sprintf(`
PC: %04x (%04x)
 A: %02x
 X: %02x
 Y: %02x
 S: %02x
cycle: %d
N V _ B D I Z C
`,
		r.PC, m.prevPC, r.A, r.X, r.Y, r.S, m.cur.Cycle,
	) + flagLine
}

// View implements tea.Model.
func (m model) View() string {
	if m.quitting {
		return ""
	}
	return lipgloss.JoinVertical(
		lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, m.renderPage(), m.status()),
		"",
		spew.Sdump(m.cur.Regs),
		strings.Repeat("-", 40),
		"space/j: step    q: quit",
	)
}

// Package clock produces a periodic tick signal at a configurable
// frequency. A Clock knows nothing about real time on its own; something
// external calls Step, whether that's a test driving it cycle by cycle or
// a RealTimePacer running on its own goroutine. This pulls apart what the
// teacher's cpu.Chip used to do inline (SetClock/avgClock/timeRuns busy-wait
// pacing baked into Tick) into its own component, since a CPU core has no
// business knowing wall-clock time.
package clock

import (
	"fmt"
	"time"

	"sixtwo/signal"
)

// Clock advances a phase counter on every Step and toggles its output wire
// once per period, producing alternating rising/falling edges for
// subscribers (typically a CPU's tick input). Step itself carries no
// notion of wall-clock time: hz only says how many Steps make up one
// period of the output wire, not how often Step is called. Pacing Step
// calls at an actual wall-clock rate is RealTimePacer's job (§4.2: "the
// clock does not know real time; the harness decides how to pace step
// calls").
type Clock struct {
	hz      float64
	period  uint64
	phase   uint64
	running bool
	out     *signal.Wire
	src     *signal.Endpoint
	level   uint8
}

// New creates a Clock at the given frequency with its output wire
// initially low. A zero or negative frequency means Step never toggles
// the output (the clock is effectively disabled).
func New(hz float64) *Clock {
	w := signal.New(signal.Width1)
	// A Clock is its own wire's sole source, so this can never fail.
	src, _ := w.Source()
	c := &Clock{out: w, src: src, running: true}
	c.SetFrequency(hz)
	return c
}

// SetFrequency changes the target frequency. It takes effect starting with
// the next Step; the current phase is preserved rather than reset, so
// changing frequency mid-period doesn't introduce a spurious edge.
//
// hz is expressed relative to referenceHz, the nominal rate Step is
// assumed to be driven at (one full phase-counter cycle per Step when hz
// == referenceHz). A caller driving Step at a different real rate than
// referenceHz should pace it with a RealTimePacer constructed with the
// matching stepsPerSecond so the two stay consistent.
func (c *Clock) SetFrequency(hz float64) {
	c.hz = hz
	if hz <= 0 {
		c.period = 0
		return
	}
	period := referenceHz / hz
	if period < 1 {
		period = 1
	}
	c.period = uint64(period)
}

// referenceHz is the nominal Step-call rate a Clock's period is divided
// down from: at hz == referenceHz, Step toggles the output on every call
// (period 1); at hz == referenceHz/2, every other call; and so on. It's
// set to the 6502's canonical ~1MHz NMOS bus rate, the same figure
// cmd/sixtwo defaults its --hz flag to.
const referenceHz = 1_000_000

// Output returns the wire a subscriber attaches to in order to see this
// clock's edges.
func (c *Clock) Output() *signal.Wire {
	return c.out
}

// Step advances the phase counter by one unit of whatever rate the caller
// is driving this clock at. When the configured period is reached the
// output wire is toggled (an edge is produced) and the phase resets.
func (c *Clock) Step() error {
	if !c.running || c.period == 0 {
		return nil
	}
	c.phase++
	if c.phase >= c.period {
		c.phase = 0
		c.level ^= 1
		if err := c.src.Write(c.level); err != nil {
			return err
		}
	}
	return nil
}

// Stop halts the clock; further Step calls are no-ops until Start.
func (c *Clock) Stop() {
	c.running = false
}

// Start resumes a stopped clock.
func (c *Clock) Start() {
	c.running = true
}

// RealTimePacer drives a Clock's Step at a wall-clock rate on its own
// goroutine, for use with Computer.AddAsync. It's grounded on the
// teacher's getClockAverage/timeRuns calibration (which measured how long
// a tight delay loop took and budgeted ticks accordingly): instead of an
// inline busy-wait inside the CPU's Tick, pacing now lives here, driven by
// a time.Ticker on a dedicated goroutine. No calibration is performed.
type RealTimePacer struct {
	clock    *Clock
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewRealTimePacer builds a pacer that calls clock.Step() at the given
// wall-clock rate (stepsPerSecond steps per second of real time).
func NewRealTimePacer(clock *Clock, stepsPerSecond float64) (*RealTimePacer, error) {
	if stepsPerSecond <= 0 {
		return nil, fmt.Errorf("clock: stepsPerSecond must be positive, got %v", stepsPerSecond)
	}
	return &RealTimePacer{
		clock:    clock,
		interval: time.Duration(float64(time.Second) / stepsPerSecond),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Run starts the pacing loop; it blocks until Stop is called. Intended to
// be launched as `go pacer.Run()` by a Computer's AddAsync registration.
func (r *RealTimePacer) Run() {
	defer close(r.doneCh)
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-t.C:
			// Errors from Step only occur on a malformed wire setup (caught at
			// construction), so there's nothing actionable to do with one here.
			_ = r.clock.Step()
		}
	}
}

// Stop signals the pacing loop to exit and waits for it to do so.
func (r *RealTimePacer) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

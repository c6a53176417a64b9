package computer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sixtwo/cpu"
	"sixtwo/memory"
)

// buildTestMap lays out a minimal 64K map: RAM at zero page/stack, a ROM
// bank holding a tiny program plus the reset vector at the top.
func buildTestMap(t *testing.T, program []byte, origin uint16) *memory.Map {
	t.Helper()
	m := memory.NewMap()
	ram, err := memory.NewRAM(0x0200, nil)
	require.NoError(t, err)
	require.NoError(t, m.Install("ram", ram, 0x0000, 0x01FF))

	rom := make([]byte, 0x10000-int(origin))
	copy(rom, program)
	// Reset vector lives at the very top of the address space and points
	// at origin.
	vecOff := 0xFFFC - int(origin)
	rom[vecOff] = byte(origin)
	rom[vecOff+1] = byte(origin >> 8)
	bank, err := memory.NewROM(rom, nil)
	require.NoError(t, err)
	require.NoError(t, m.Install("rom", bank, origin, 0xFFFF))
	return m
}

func TestRunExecutesProgramUntilStopped(t *testing.T) {
	// LDA #$42 then loop: JMP back to self so the CPU keeps re-executing
	// NOP-equivalent steps once the accumulator is loaded.
	origin := uint16(0x8000)
	program := []byte{0xA9, 0x42, 0x4C, 0x02, 0x80} // LDA #$42; JMP $8002
	m := buildTestMap(t, program, origin)

	chip, err := cpu.Init(&cpu.ChipDef{Cpu: cpu.CPU_NMOS, Ram: m})
	require.NoError(t, err)

	comp := New()
	comp.Add("cpu", chip)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = comp.Run(ctx)
	assert.ErrorAs(t, err, &ErrShutdownRequested{})
	assert.Equal(t, uint8(0x42), chip.Registers().A)
}

func TestStopEndsRunLoop(t *testing.T) {
	origin := uint16(0x8000)
	program := []byte{0xEA, 0xEA, 0x4C, 0x00, 0x80} // NOP NOP JMP $8000
	m := buildTestMap(t, program, origin)

	chip, err := cpu.Init(&cpu.ChipDef{Cpu: cpu.CPU_NMOS, Ram: m})
	require.NoError(t, err)

	comp := New()
	comp.Add("cpu", chip)

	done := make(chan error, 1)
	go func() { done <- comp.Run(context.Background()) }()

	time.Sleep(5 * time.Millisecond)
	comp.Stop()

	select {
	case err := <-done:
		assert.ErrorAs(t, err, &ErrShutdownRequested{})
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

type failingComponent struct{}

func (failingComponent) Tick() error { return assert.AnError }
func (failingComponent) TickDone()   {}

func TestRunReturnsBusErrorOnComponentFailure(t *testing.T) {
	comp := New()
	comp.Add("broken", failingComponent{})

	err := comp.Run(context.Background())
	var busErr BusError
	require.ErrorAs(t, err, &busErr)
	assert.Equal(t, "broken", busErr.Component)
}

func TestLoadROMInstallsBank(t *testing.T) {
	m := memory.NewMap()
	require.NoError(t, LoadROM(m, "cart", []byte{0x11, 0x22, 0x33}, 0x8000, 0x8002))
	assert.Equal(t, uint8(0x22), m.Read(0x8001))
}

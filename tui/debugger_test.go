package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sixtwo/cpu"
)

func TestModelUpdateAppliesSnapshot(t *testing.T) {
	stepCh := make(chan struct{}, 1)
	m := model{step: stepCh}

	snap := Snapshot{Regs: cpu.Registers{PC: 0x1234, A: 0x42}}
	next, cmd := m.Update(snapshotMsg(snap))
	mm := next.(model)
	assert.Equal(t, uint16(0x1234), mm.cur.Regs.PC)
	assert.Equal(t, uint8(0x42), mm.cur.Regs.A)
	require.NotNil(t, cmd, "should re-arm waiting for the next snapshot")
}

func TestModelSpacebarRequestsStep(t *testing.T) {
	stepCh := make(chan struct{}, 1)
	m := model{step: stepCh}

	_, _ = m.Update(tea.KeyMsg{Type: tea.KeySpace})

	select {
	case <-stepCh:
	default:
		t.Fatal("expected a step request on spacebar")
	}
}

func TestModelQuitsOnQ(t *testing.T) {
	m := model{}
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	mm := next.(model)
	assert.True(t, mm.quitting)
	assert.NotNil(t, cmd)
}

func TestRenderPageHighlightsPC(t *testing.T) {
	m := model{cur: Snapshot{Regs: cpu.Registers{PC: 0x8002}, PageAddr: 0x8000}}
	out := m.renderPage()
	assert.Contains(t, out, "[00]")
}

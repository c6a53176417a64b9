package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepTogglesOnPeriod(t *testing.T) {
	// hz == referenceHz means one full phase cycle per Step call.
	c := New(referenceHz)
	var edges []uint8
	sink := c.Output().Sink()
	require.NoError(t, sink.Connect(func(v uint8) { edges = append(edges, v) }))

	// Connect delivered the initial low value.
	require.Len(t, edges, 1)
	assert.Equal(t, uint8(0), edges[0])

	require.NoError(t, c.Step())
	require.Len(t, edges, 2)
	assert.Equal(t, uint8(1), edges[1])

	require.NoError(t, c.Step())
	require.Len(t, edges, 3)
	assert.Equal(t, uint8(0), edges[2])
}

func TestSetFrequencyDividesPeriod(t *testing.T) {
	// hz == referenceHz/4 means the output only toggles every 4th Step.
	c := New(referenceHz / 4)
	var edges int
	sink := c.Output().Sink()
	require.NoError(t, sink.Connect(func(uint8) { edges++ }))

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Step())
		assert.Equal(t, 1, edges, "should not toggle before the 4th step")
	}
	require.NoError(t, c.Step())
	assert.Equal(t, 2, edges, "should toggle on the 4th step")
}

func TestZeroFrequencyNeverToggles(t *testing.T) {
	c := New(0)
	var edges int
	sink := c.Output().Sink()
	require.NoError(t, sink.Connect(func(uint8) { edges++ }))
	for i := 0; i < 10; i++ {
		require.NoError(t, c.Step())
	}
	assert.Equal(t, 1, edges, "only the initial Connect delivery should have fired")
}

func TestStopSuppressesSteps(t *testing.T) {
	c := New(referenceHz)
	c.Stop()
	var edges int
	sink := c.Output().Sink()
	require.NoError(t, sink.Connect(func(uint8) { edges++ }))
	require.NoError(t, c.Step())
	assert.Equal(t, 1, edges, "stopped clock should not toggle on Step")

	c.Start()
	require.NoError(t, c.Step())
	assert.Equal(t, 2, edges)
}

func TestRealTimePacerDrivesClock(t *testing.T) {
	c := New(referenceHz)
	var edges int
	sink := c.Output().Sink()
	require.NoError(t, sink.Connect(func(uint8) { edges++ }))

	p, err := NewRealTimePacer(c, 200)
	require.NoError(t, err)
	go p.Run()
	time.Sleep(50 * time.Millisecond)
	p.Stop()

	assert.Greater(t, edges, 1, "pacer should have driven at least one Step beyond the initial Connect delivery")
}

func TestNewRealTimePacerRejectsNonPositiveRate(t *testing.T) {
	c := New(referenceHz)
	_, err := NewRealTimePacer(c, 0)
	assert.Error(t, err)
}

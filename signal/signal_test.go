package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceSink(t *testing.T) {
	w := New(Width8)
	src, err := w.Source()
	require.NoError(t, err)

	_, err = w.Source()
	assert.Error(t, err, "second Source() call should fail")

	var got uint8
	sink := w.Sink()
	require.NoError(t, sink.Connect(func(v uint8) { got = v }))
	assert.Equal(t, uint8(0), got, "Connect should fire immediately with current value")

	require.NoError(t, src.Write(0x42))
	assert.Equal(t, uint8(0x42), got)
}

func TestWidth1Masks(t *testing.T) {
	w := New(Width1)
	src, err := w.Source()
	require.NoError(t, err)
	var got uint8
	sink := w.Sink()
	require.NoError(t, sink.Connect(func(v uint8) { got = v }))

	require.NoError(t, src.Write(0xFE))
	assert.Equal(t, uint8(0), got)

	require.NoError(t, src.Write(0x01))
	assert.Equal(t, uint8(1), got)
}

func TestWriteDeliversOnUnchangedValue(t *testing.T) {
	w := New(Width1)
	src, err := w.Source()
	require.NoError(t, err)
	count := 0
	sink := w.Sink()
	require.NoError(t, sink.Connect(func(uint8) { count++ }))
	// Connect itself delivers once.
	require.Equal(t, 1, count)

	require.NoError(t, src.Write(1))
	require.NoError(t, src.Write(1))
	assert.Equal(t, 3, count, "every Write should deliver even with an unchanged value")
}

func TestSinkWriteRejected(t *testing.T) {
	w := New(Width8)
	sink := w.Sink()
	err := sink.Write(1)
	assert.Error(t, err)
}

func TestSourceConnectRejected(t *testing.T) {
	w := New(Width8)
	src, err := w.Source()
	require.NoError(t, err)
	err = src.Connect(func(uint8) {})
	assert.Error(t, err)
}

func TestDisconnectIsIdempotent(t *testing.T) {
	w := New(Width8)
	src, err := w.Source()
	require.NoError(t, err)
	count := 0
	sink := w.Sink()
	require.NoError(t, sink.Connect(func(uint8) { count++ }))
	sink.Disconnect()
	sink.Disconnect()

	require.NoError(t, src.Write(5))
	assert.Equal(t, 1, count, "disconnected sink should not receive further writes")
}

func TestBusPump(t *testing.T) {
	b, err := NewBus(Width8, 4)
	require.NoError(t, err)
	var got uint8
	sink := b.Wire().Sink()
	require.NoError(t, sink.Connect(func(v uint8) { got = v }))

	b.Publish(0x7)
	ok, err := b.Pump()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint8(0x7), got)

	ok, err = b.Pump()
	require.NoError(t, err)
	assert.False(t, ok, "Pump on an empty queue should report false")
}

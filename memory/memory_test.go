package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRAMReadWrite(t *testing.T) {
	b, err := NewRAM(256, nil)
	require.NoError(t, err)
	b.Write(0x10, 0x42)
	assert.Equal(t, uint8(0x42), b.Read(0x10))
	assert.Equal(t, uint8(0x42), b.DatabusVal())
}

func TestRAMRejectsOddSize(t *testing.T) {
	_, err := NewRAM(3, nil)
	assert.Error(t, err)
}

func TestROMIsReadOnly(t *testing.T) {
	b, err := NewROM([]byte{1, 2, 3, 4}, nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(2), b.Read(1))
	b.Write(1, 0xFF)
	assert.Equal(t, uint8(2), b.Read(1), "writes to ROM must be silently ignored")
}

func TestROMRejectsEmptyData(t *testing.T) {
	_, err := NewROM(nil, nil)
	assert.Error(t, err)
}

func TestHandlerDispatchesCallbacks(t *testing.T) {
	var lastWriteAddr uint16
	var lastWriteVal uint8
	h := NewHandler(
		func(addr uint16) uint8 { return uint8(addr) },
		func(addr uint16, val uint8) { lastWriteAddr, lastWriteVal = addr, val },
		nil,
	)
	assert.Equal(t, uint8(0x34), h.Read(0x1234))
	h.Write(0x20, 0x55)
	assert.Equal(t, uint16(0x20), lastWriteAddr)
	assert.Equal(t, uint8(0x55), lastWriteVal)
}

func TestHandlerNilCallbacksAreNoops(t *testing.T) {
	h := NewHandler(nil, nil, nil)
	assert.Equal(t, uint8(0), h.Read(0x10))
	h.Write(0x10, 0x99) // must not panic
}

func TestMapInstallAndRead(t *testing.T) {
	m := NewMap()
	ram, err := NewRAM(0x100, nil)
	require.NoError(t, err)
	require.NoError(t, m.Install("ram", ram, 0x0000, 0x00FF))

	m.Write(0x10, 0x7)
	assert.Equal(t, uint8(0x7), m.Read(0x10))
}

func TestMapUnmappedAddrReadsLastDatabus(t *testing.T) {
	m := NewMap()
	m.Write(0x10, 0x55)
	assert.Equal(t, uint8(0x55), m.Read(0x9999), "unmapped reads surface the last databus value")
}

func TestMapInstallRejectsInvertedRange(t *testing.T) {
	m := NewMap()
	ram, err := NewRAM(0x100, nil)
	require.NoError(t, err)
	err = m.Install("ram", ram, 0x00FF, 0x0000)
	assert.Error(t, err)
}

func TestMapSwitchActivatesInstalledBank(t *testing.T) {
	m := NewMap()
	rom0, err := NewROM([]byte{0xAA}, nil)
	require.NoError(t, err)
	rom1, err := NewROM([]byte{0xBB}, nil)
	require.NoError(t, err)
	require.NoError(t, m.Install("bank0", rom0, 0x8000, 0x8000))
	require.NoError(t, m.Install("bank1", rom1, 0x8000, 0x8000))
	assert.Equal(t, uint8(0xBB), m.Read(0x8000), "most recent install should be active")

	require.NoError(t, m.Switch(0x8000, 0x8000, "bank0"))
	assert.Equal(t, uint8(0xAA), m.Read(0x8000))
}

func TestMapSwitchRejectsUnknownBank(t *testing.T) {
	m := NewMap()
	err := m.Switch(0x8000, 0x8000, "nope")
	assert.Error(t, err)
}

func TestMapLatchDrivenBankSwitch(t *testing.T) {
	m := NewMap()
	rom0, err := NewROM([]byte{0x11}, nil)
	require.NoError(t, err)
	rom1, err := NewROM([]byte{0x22}, nil)
	require.NoError(t, err)
	require.NoError(t, m.Install("bank0", rom0, 0xA000, 0xA000))
	require.NoError(t, m.Install("bank1", rom1, 0xA000, 0xA000))
	require.NoError(t, m.Switch(0xA000, 0xA000, "bank0"))

	latch := NewHandler(nil, func(addr uint16, val uint8) {
		if val == 0 {
			_ = m.Switch(0xA000, 0xA000, "bank0")
		} else {
			_ = m.Switch(0xA000, 0xA000, "bank1")
		}
	}, nil)
	require.NoError(t, m.Install("latch", latch, 0xFF00, 0xFF00))

	m.Write(0xFF00, 1)
	assert.Equal(t, uint8(0x22), m.Read(0xA000))
	m.Write(0xFF00, 0)
	assert.Equal(t, uint8(0x11), m.Read(0xA000))
}

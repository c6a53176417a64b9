// Package memory defines the basic interfaces for working with a 6502
// family memory map, plus the bank-switched 64 KiB address space (Map)
// that resolves a CPU's addr to whichever bank is currently active over
// it. Individual banks (RAM, ROM, Handler) implement Bank; Map composes
// them and dispatches by active range.
package memory

import (
	"fmt"
	"math/rand"
	"time"
)

// Bank is the common capability surface for any region of addressable
// storage: RAM, ROM, or a peripheral Handler.
type Bank interface {
	// Read returns the data byte stored at addr.
	Read(addr uint16) uint8
	// Write updates addr with the new value. For ROM addresses this is simply a no-op without
	// any error.
	Write(addr uint16, val uint8)
	// PowerOn performs power on reset of the memory. This is implementation specific as to
	// whether it's randomized or preset to all zeros.
	PowerOn()
	// Parent holds a reference (if non-nil) to the next level memory controller. A chain
	// of these can be created in order to find the top one and be able to query items
	// such as the databus state (from the last value to go over it). Some implementations
	// depend on transient databus state due to side effects.
	Parent() Bank
	// DatabusVal returns the last value seen to go across on the data bus.
	DatabusVal() uint8
}

// ConfigError indicates a Map or Bank was configured outside the shapes
// this package supports: an inverted range, a switch to a bank never
// installed for that exact range, and similar setup mistakes.
type ConfigError struct {
	Reason string
}

// Error implements the interface for error types.
func (e ConfigError) Error() string {
	return fmt.Sprintf("memory: %s", e.Reason)
}

// LatestDatabusVal hunts up a chain of Banks until it finds the outermost one and
// return the DatabusVal from it.
func LatestDatabusVal(b Bank) uint8 {
	if b.Parent() != nil {
		return LatestDatabusVal(b.Parent())
	}
	return b.DatabusVal()
}

// ram implements a standard R/W interface to an address space for 8 bit systems.
// If this is mapped into a larger memory map it's up to a parent Bank to properly mask addr
// before calling Read/Write.
type ram struct {
	ram        []uint8
	parent     Bank
	databusVal uint8
}

// NewRAM creates a R/W RAM bank of the given size. Size must be a power of 2.
// If this is smaller than 64k (uint16 max) aliasing will occur on Read/Write.
func NewRAM(size int, parent Bank) (Bank, error) {
	if size <= 0 || size&(size-1) != 0 {
		return nil, fmt.Errorf("invalid size: %d must be a power of 2", size)
	}
	if size > 1<<16 {
		return nil, fmt.Errorf("invalid size: %d is bigger than 64k", size)
	}
	b := &ram{
		parent: parent,
	}
	// Go ahead and completely preallocate this now.
	b.ram = make([]uint8, size, size)
	return b, nil
}

// Read implements the interface for Bank. Address is clipped based on length of ram buffer.
func (r *ram) Read(addr uint16) uint8 {
	// Mask addr to fit
	addr &= uint16(len(r.ram) - 1)
	val := r.ram[addr]
	r.databusVal = val
	return val
}

// Write implements the interface for Bank. Address is clipped based on length of ram buffer.
func (r *ram) Write(addr uint16, val uint8) {
	// Mask addr to fit
	addr &= uint16(len(r.ram) - 1)
	r.databusVal = val
	r.ram[addr] = val
}

// PowerOn implements the interface for memory.Bank and randomizes the RAM.
func (r *ram) PowerOn() {
	rand.Seed(time.Now().UnixNano())
	for i := range r.ram {
		r.ram[i] = uint8(rand.Intn(256))
	}
}

// Parent implements the interface for returning a possible parent memory.Bank.
func (r *ram) Parent() Bank {
	return r.parent
}

// DatabusVal returns the most recent seen databus item.
func (r *ram) DatabusVal() uint8 {
	return r.databusVal
}

// rom implements a read-only Bank backed by a preloaded byte slice. Writes
// are silently dropped, matching real ROM behavior on the bus.
type rom struct {
	data       []uint8
	parent     Bank
	databusVal uint8
}

// NewROM creates a read-only bank preloaded with data. Reads past the end
// of data wrap modulo len(data); data must be non-empty.
func NewROM(data []byte, parent Bank) (Bank, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("invalid ROM: no data supplied")
	}
	cp := make([]uint8, len(data))
	copy(cp, data)
	return &rom{data: cp, parent: parent}, nil
}

// Read implements the interface for Bank.
func (r *rom) Read(addr uint16) uint8 {
	val := r.data[int(addr)%len(r.data)]
	r.databusVal = val
	return val
}

// Write implements the interface for Bank; ROM silently ignores writes.
func (r *rom) Write(addr uint16, val uint8) {}

// PowerOn implements the interface for Bank; ROM contents never change.
func (r *rom) PowerOn() {}

// Parent implements the interface for Bank.
func (r *rom) Parent() Bank {
	return r.parent
}

// DatabusVal implements the interface for Bank.
func (r *rom) DatabusVal() uint8 {
	return r.databusVal
}

// handler wraps a pair of read/write callbacks as a Bank, for
// memory-mapped peripherals and bank-select latches (§4.3). It's the
// generalized form of pia6532's register-dispatch Read/Write methods:
// instead of one Chip owning a fixed register layout, any read/write pair
// can be wrapped as an addressable bank.
type handler struct {
	read       func(uint16) uint8
	write      func(uint16, uint8)
	parent     Bank
	databusVal uint8
}

// NewHandler wraps read and write callbacks as a Bank. Either callback
// may be nil, in which case reads return 0 and writes are dropped.
func NewHandler(read func(uint16) uint8, write func(uint16, uint8), parent Bank) Bank {
	return &handler{read: read, write: write, parent: parent}
}

// Read implements the interface for Bank, dispatching to the wrapped callback.
func (h *handler) Read(addr uint16) uint8 {
	var val uint8
	if h.read != nil {
		val = h.read(addr)
	}
	h.databusVal = val
	return val
}

// Write implements the interface for Bank, dispatching to the wrapped callback.
func (h *handler) Write(addr uint16, val uint8) {
	h.databusVal = val
	if h.write != nil {
		h.write(addr, val)
	}
}

// PowerOn implements the interface for Bank; handlers manage their own
// backing state and are expected to reset it themselves if needed.
func (h *handler) PowerOn() {}

// Parent implements the interface for Bank.
func (h *handler) Parent() Bank {
	return h.parent
}

// DatabusVal implements the interface for Bank.
func (h *handler) DatabusVal() uint8 {
	return h.databusVal
}

// BankID names a bank previously registered with a Map, for use with Switch.
type BankID string

// installed records one bank's registration over a fixed range, independent
// of whether it's the currently active bank for that range.
type installed struct {
	bank   Bank
	lo, hi uint16
}

// active records which installed bank currently answers reads/writes for
// one contiguous range.
type active struct {
	lo, hi uint16
	id     BankID
}

// Map is the 64 KiB bank-switched address space the CPU issues reads and
// writes against. Multiple banks may be installed over overlapping
// ranges; exactly one is active for any given range at a time. Map itself
// carries no bank-selection policy: a Handler bank's write callback is
// free to call back into Switch, which is how a machine-specific
// bank-select register gets implemented on top of this mechanism.
type Map struct {
	banks     map[BankID]*installed
	actives   []active
	databus   uint8
}

// NewMap creates an empty 64 KiB address map. Until banks are installed,
// writes are dropped and reads return the last value that crossed the bus
// (0 before any access).
func NewMap() *Map {
	return &Map{banks: make(map[BankID]*installed)}
}

// Install registers bank under id over [lo, hi] and makes it active over
// that range, suspending whatever was active there before. Returns a
// ConfigError if lo > hi.
func (m *Map) Install(id BankID, bank Bank, lo, hi uint16) error {
	if lo > hi {
		return ConfigError{Reason: fmt.Sprintf("install %q: lo 0x%04X > hi 0x%04X", id, lo, hi)}
	}
	m.banks[id] = &installed{bank: bank, lo: lo, hi: hi}
	m.setActive(lo, hi, id)
	return nil
}

// Switch activates the bank previously installed under id over [lo, hi].
// Returns a ConfigError if no bank was installed under id for exactly
// that range.
func (m *Map) Switch(lo, hi uint16, id BankID) error {
	b, ok := m.banks[id]
	if !ok || b.lo != lo || b.hi != hi {
		return ConfigError{Reason: fmt.Sprintf("switch: bank %q was never installed over [0x%04X, 0x%04X]", id, lo, hi)}
	}
	m.setActive(lo, hi, id)
	return nil
}

func (m *Map) setActive(lo, hi uint16, id BankID) {
	var kept []active
	for _, a := range m.actives {
		// Drop any existing active record fully covered by the new range;
		// partial overlaps are a configuration the spec doesn't define, so
		// the newest registration simply takes priority end to end.
		if a.lo >= lo && a.hi <= hi {
			continue
		}
		kept = append(kept, a)
	}
	kept = append(kept, active{lo: lo, hi: hi, id: id})
	m.actives = kept
}

// resolve finds the bank active at addr, if any. Banks are always handed
// addr itself (not an offset from the start of their range) and mask it
// themselves.
func (m *Map) resolve(addr uint16) (Bank, bool) {
	// Later-installed ranges take priority: scan from the end so the most
	// recent Install/Switch for an overlapping address wins.
	for i := len(m.actives) - 1; i >= 0; i-- {
		a := m.actives[i]
		if addr >= a.lo && addr <= a.hi {
			if b, ok := m.banks[a.id]; ok {
				return b.bank, true
			}
		}
	}
	return nil, false
}

// Read implements memory.Bank and cpu's bus requirement: resolves the
// active bank for addr and dispatches to it. An address with no active
// bank reads as open bus: the last value read or written through this Map
// is returned, not 0.
func (m *Map) Read(addr uint16) uint8 {
	if b, ok := m.resolve(addr); ok {
		v := b.Read(addr)
		m.databus = v
		return v
	}
	return m.databus
}

// Write implements memory.Bank and cpu's bus requirement: resolves the
// active bank for addr and dispatches to it. Addresses with no active
// bank silently drop the write.
func (m *Map) Write(addr uint16, val uint8) {
	m.databus = val
	if b, ok := m.resolve(addr); ok {
		b.Write(addr, val)
	}
}

// PowerOn powers on every bank ever installed, regardless of current
// activation state, matching real hardware where every chip on the bus
// resets together.
func (m *Map) PowerOn() {
	for _, b := range m.banks {
		b.bank.PowerOn()
	}
}

// Parent implements memory.Bank; a Map is always the top of its chain.
func (m *Map) Parent() Bank {
	return nil
}

// DatabusVal implements memory.Bank, returning the last value that
// crossed the bus through this Map.
func (m *Map) DatabusVal() uint8 {
	return m.databus
}

// Package memory defines the bus abstraction the CPU core reads and
// writes through. It places no interpretation on the address space; a
// mapper, PPU register window, or cartridge bank switch is the caller's
// concern, not this package's.
package memory

import (
	"math/rand"
	"time"
)

// Bus is the flat 16-bit-indexed byte array the CPU core treats as
// opaque. There are no error cases at this interface: every uint16 is a
// valid address.
type Bus interface {
	// Read returns the data byte stored at addr.
	Read(addr uint16) uint8
	// Write updates addr with the new value.
	Write(addr uint16, val uint8)
}

// RAM is a flat 64KB R/W Bus backed by a fixed-size byte array. It's the
// reference Bus implementation used by tests and simple hosts; a real
// console wires a mapper-aware Bus instead.
type RAM struct {
	bytes [65536]uint8
}

// NewRAM returns a RAM bus. Call PowerOn to randomize its contents, or
// leave it zeroed for deterministic tests.
func NewRAM() *RAM {
	return &RAM{}
}

// Read implements Bus.
func (r *RAM) Read(addr uint16) uint8 {
	return r.bytes[addr]
}

// Write implements Bus.
func (r *RAM) Write(addr uint16, val uint8) {
	r.bytes[addr] = val
}

// PowerOn randomizes every byte, matching real hardware's undefined
// power-on RAM state. Tests that need determinism should skip this and
// write known bytes instead.
func (r *RAM) PowerOn() {
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	for i := range r.bytes {
		r.bytes[i] = uint8(rnd.Intn(256))
	}
}

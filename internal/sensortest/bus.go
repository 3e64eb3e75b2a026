// Package sensortest provides a simulated camera for tests: an i2c.Bus
// backed by a 16-bit register map.
package sensortest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// ErrInjected is returned by Tx when Bus.Fail is set.
var ErrInjected = errors.New("sensortest: injected bus failure")

// Write records one register write.
type Write struct {
	Register uint16
	Value    uint16
}

// Bus answers reads from Mem and records writes.
type Bus struct {
	mu sync.Mutex

	Addr uint16
	Mem  map[uint16]uint16
	// Fail makes every transaction to a register in the set fail with
	// ErrInjected. A nil set never fails.
	Fail map[uint16]bool
	// Writes lists register writes in order.
	Writes []Write
	// Reads counts read transactions.
	Reads int
}

// NewBus returns a Bus answering at addr.
func NewBus(addr uint16) *Bus {
	return &Bus{Addr: addr, Mem: map[uint16]uint16{}}
}

func (b *Bus) String() string {
	return "sensortest"
}

func (b *Bus) SetSpeed(physic.Frequency) error {
	return nil
}

// Tx implements i2c.Bus. A 2-byte write followed by a read reads
// consecutive registers; a write of 4 or more bytes writes consecutive
// registers.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if addr != b.Addr {
		return fmt.Errorf("sensortest: no device at 0x%02X", addr)
	}
	if len(w) < 2 || len(w)%2 != 0 || len(r)%2 != 0 {
		return fmt.Errorf("sensortest: malformed transaction w=%d r=%d", len(w), len(r))
	}
	reg := binary.BigEndian.Uint16(w)
	if b.Fail[reg] {
		return ErrInjected
	}
	if len(r) > 0 {
		if len(w) != 2 {
			return errors.New("sensortest: read with data")
		}
		b.Reads++
		for i := 0; i < len(r)/2; i++ {
			binary.BigEndian.PutUint16(r[2*i:], b.Mem[reg+uint16(i)])
		}
		return nil
	}
	for i := 2; i < len(w); i += 2 {
		wr := Write{Register: reg + uint16(i/2-1), Value: binary.BigEndian.Uint16(w[i:])}
		b.Mem[wr.Register] = wr.Value
		b.Writes = append(b.Writes, wr)
	}
	return nil
}

// Load stores words at consecutive registers starting at base.
func (b *Bus) Load(base uint16, words []uint16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, w := range words {
		b.Mem[base+uint16(i)] = w
	}
}

// Set stores one register.
func (b *Bus) Set(reg, v uint16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Mem[reg] = v
}

// Get returns one register.
func (b *Bus) Get(reg uint16) uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Mem[reg]
}

var _ i2c.Bus = &Bus{}

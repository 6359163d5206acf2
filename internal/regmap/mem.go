// Copyright © 2021 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package regmap

import (
	"sync"
	"sync/atomic"
)

// Access is one store seen by a Mem trace.
type Access struct {
	Off, Value uint32
}

// Mem is a register bank held in process memory.  It backs simulations of
// the syscon and the unit tests.
//
// Registers marked with W1C clear the bits written as one instead of
// storing the value, like interrupt status registers do.
type Mem struct {
	words []uint32
	w1c   map[uint32]bool

	mu    sync.Mutex
	trace []Access
	hook  func(off, v uint32)
}

// NewMem returns a zeroed bank of n bytes.
func NewMem(n uint32) *Mem {
	return &Mem{
		words: make([]uint32, (n+3)/4),
		w1c:   make(map[uint32]bool),
	}
}

// W1C marks the registers at the given offsets write-1-to-clear.  It must be
// called before the bank is shared.
func (m *Mem) W1C(offs ...uint32) *Mem {
	for _, off := range offs {
		m.w1c[off] = true
	}
	return m
}

// OnWrite calls f after every store to the bank.  It must be set before the
// bank is shared.
func (m *Mem) OnWrite(f func(off, v uint32)) *Mem {
	m.hook = f
	return m
}

func (m *Mem) Read(off uint32) (uint32, error) {
	if err := check(off, len(m.words)); err != nil {
		return 0, err
	}
	return atomic.LoadUint32(&m.words[off/4]), nil
}

func (m *Mem) Write(off, v uint32) error {
	if err := check(off, len(m.words)); err != nil {
		return err
	}
	p := &m.words[off/4]
	if m.w1c[off] {
		for {
			old := atomic.LoadUint32(p)
			if atomic.CompareAndSwapUint32(p, old, old&^v) {
				break
			}
		}
	} else {
		atomic.StoreUint32(p, v)
	}
	m.stored(off, v)
	return nil
}

func (m *Mem) UpdateBits(off, mask, v uint32) error {
	if err := check(off, len(m.words)); err != nil {
		return err
	}
	p := &m.words[off/4]
	for {
		old := atomic.LoadUint32(p)
		x := old&^mask | v&mask
		if x == old {
			return nil
		}
		if atomic.CompareAndSwapUint32(p, old, x) {
			m.stored(off, x)
			return nil
		}
	}
}

// Poke sets a register behind the back of the trace and of W1C semantics,
// as hardware does when it latches status.
func (m *Mem) Poke(off, v uint32) {
	atomic.StoreUint32(&m.words[off/4], v)
}

// Assert ORs bits into a register without tracing, as hardware does when it
// raises a status bit.
func (m *Mem) Assert(off, bits uint32) {
	p := &m.words[off/4]
	for {
		old := atomic.LoadUint32(p)
		if atomic.CompareAndSwapUint32(p, old, old|bits) {
			return
		}
	}
}

// Trace returns the stores seen since the last Reset.
func (m *Mem) Trace() []Access {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Access(nil), m.trace...)
}

// Writes returns the traced stores to a single register.
func (m *Mem) Writes(off uint32) (v []uint32) {
	for _, a := range m.Trace() {
		if a.Off == off {
			v = append(v, a.Value)
		}
	}
	return
}

// ResetTrace forgets every traced store.
func (m *Mem) ResetTrace() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trace = m.trace[:0]
}

func (m *Mem) stored(off, v uint32) {
	m.mu.Lock()
	m.trace = append(m.trace, Access{off, v})
	m.mu.Unlock()
	if m.hook != nil {
		m.hook(off, v)
	}
}

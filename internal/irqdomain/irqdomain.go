// Copyright © 2021 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package irqdomain maps the hardware interrupt slots of a controller to
// process wide virtual interrupt numbers.
//
// A Domain holds a reference to the Chip that masks and unmasks its slots;
// the chip never calls back into the domain.  Lookups and handler dispatch
// are lock free and may run from an interrupt handler.
package irqdomain

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	ErrRange     = errors.New("hwirq out of range")
	ErrReserved  = errors.New("hwirq reserved")
	ErrMapped    = errors.New("hwirq already mapped")
	ErrNotMapped = errors.New("virq not mapped")
	ErrBusy      = errors.New("virq already requested")
)

// Chip is the per slot control surface of an interrupt controller.
type Chip interface {
	Mask(hwirq uint)
	Unmask(hwirq uint)
}

// Validator is implemented by chips that only wire some of their slots.
type Validator interface {
	Valid(hwirq uint) bool
}

// Handler services one virtual interrupt.
type Handler func(virq uint)

type desc struct {
	count  uint64 // first for 64-bit alignment on arm
	domain *Domain
	hwirq  uint
	name   string
	h      atomic.Value // Handler
}

var virqs struct {
	sync.Mutex
	next   uint
	free   []uint
	byVirq sync.Map // uint -> *desc
}

func allocVirq() uint {
	virqs.Lock()
	defer virqs.Unlock()
	if n := len(virqs.free); n > 0 {
		v := virqs.free[n-1]
		virqs.free = virqs.free[:n-1]
		return v
	}
	virqs.next++
	return virqs.next
}

func freeVirq(v uint) {
	virqs.Lock()
	defer virqs.Unlock()
	virqs.free = append(virqs.free, v)
}

func lookup(virq uint) *desc {
	d, ok := virqs.byVirq.Load(virq)
	if !ok {
		return nil
	}
	return d.(*desc)
}

// Domain is a linear map of Size hardware slots.
type Domain struct {
	Name string
	Size uint

	chip Chip
	mu   sync.Mutex
	rev  []uint32 // hwirq -> virq, 0 if unmapped
}

// New returns an empty domain of size slots served by chip.
func New(name string, size uint, chip Chip) *Domain {
	return &Domain{
		Name: name,
		Size: size,
		chip: chip,
		rev:  make([]uint32, size),
	}
}

func (d *Domain) check(hwirq uint) error {
	if hwirq >= d.Size {
		return fmt.Errorf("%s: %d: %w", d.Name, hwirq, ErrRange)
	}
	if v, ok := d.chip.(Validator); ok && !v.Valid(hwirq) {
		return fmt.Errorf("%s: %d: %w", d.Name, hwirq, ErrReserved)
	}
	return nil
}

// Mappable lists the slots a consumer may map.
func (d *Domain) Mappable() (hwirqs []uint) {
	for i := uint(0); i < d.Size; i++ {
		if d.check(i) == nil {
			hwirqs = append(hwirqs, i)
		}
	}
	return
}

// Map binds hwirq to a new virtual interrupt.  The slot stays masked until a
// handler is requested.
func (d *Domain) Map(hwirq uint) (uint, error) {
	if err := d.check(hwirq); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if v := atomic.LoadUint32(&d.rev[hwirq]); v != 0 {
		return uint(v), fmt.Errorf("%s: %d: %w", d.Name, hwirq, ErrMapped)
	}
	virq := allocVirq()
	virqs.byVirq.Store(virq, &desc{domain: d, hwirq: hwirq})
	atomic.StoreUint32(&d.rev[hwirq], uint32(virq))
	return virq, nil
}

// Xlate translates a one cell interrupt specifier into a slot.
func (d *Domain) Xlate(spec []uint32) (uint, error) {
	if len(spec) < 1 {
		return 0, fmt.Errorf("%s: empty interrupt specifier", d.Name)
	}
	hwirq := uint(spec[0])
	return hwirq, d.check(hwirq)
}

// Find returns the virtual interrupt of hwirq or 0 if it has none.
func (d *Domain) Find(hwirq uint) uint {
	if hwirq >= d.Size {
		return 0
	}
	return uint(atomic.LoadUint32(&d.rev[hwirq]))
}

// Dispose unmaps hwirq, masking it first.
func (d *Domain) Dispose(hwirq uint) {
	d.mu.Lock()
	defer d.mu.Unlock()
	virq := d.Find(hwirq)
	if virq == 0 {
		return
	}
	d.chip.Mask(hwirq)
	atomic.StoreUint32(&d.rev[hwirq], 0)
	virqs.byVirq.Delete(virq)
	freeVirq(virq)
}

// Remove disposes every mapping of the domain.
func (d *Domain) Remove() {
	for i := uint(0); i < d.Size; i++ {
		d.Dispose(i)
	}
}

// Request installs h for virq and unmasks its slot.
func Request(virq uint, name string, h Handler) error {
	x := lookup(virq)
	if x == nil {
		return fmt.Errorf("%d: %w", virq, ErrNotMapped)
	}
	x.domain.mu.Lock()
	defer x.domain.mu.Unlock()
	if cur, _ := x.h.Load().(Handler); cur != nil {
		return fmt.Errorf("%d: %s: %w by %s", virq, name, ErrBusy, x.name)
	}
	x.name = name
	x.h.Store(h)
	x.domain.chip.Unmask(x.hwirq)
	return nil
}

// Free masks the slot of virq and removes its handler.
func Free(virq uint) error {
	x := lookup(virq)
	if x == nil {
		return fmt.Errorf("%d: %w", virq, ErrNotMapped)
	}
	x.domain.mu.Lock()
	defer x.domain.mu.Unlock()
	x.domain.chip.Mask(x.hwirq)
	x.name = ""
	x.h.Store(Handler(nil))
	return nil
}

// Mask and Unmask forward to the chip of the virq's domain.
func Mask(virq uint) error {
	x := lookup(virq)
	if x == nil {
		return fmt.Errorf("%d: %w", virq, ErrNotMapped)
	}
	x.domain.chip.Mask(x.hwirq)
	return nil
}

func Unmask(virq uint) error {
	x := lookup(virq)
	if x == nil {
		return fmt.Errorf("%d: %w", virq, ErrNotMapped)
	}
	x.domain.chip.Unmask(x.hwirq)
	return nil
}

// Handle runs the handler of virq with the simple flow: no mask and no
// acknowledge around it.  It reports whether virq is mapped.
func Handle(virq uint) bool {
	x := lookup(virq)
	if x == nil {
		return false
	}
	atomic.AddUint64(&x.count, 1)
	if h, _ := x.h.Load().(Handler); h != nil {
		h(virq)
	}
	return true
}

// Count returns how many times virq was handled.
func Count(virq uint) uint64 {
	if x := lookup(virq); x != nil {
		return atomic.LoadUint64(&x.count)
	}
	return 0
}

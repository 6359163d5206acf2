// Copyright © 2021 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package ls1024a

import (
	"fmt"

	"github.com/platinasystems/log"

	"github.com/platinasystems/ls1024a-pcie/internal/irq"
	"github.com/platinasystems/ls1024a-pcie/internal/irqdomain"
	"github.com/platinasystems/ls1024a-pcie/internal/regmap"
)

// Slots of the interrupt mux domain.  A slot is numbered after its status
// bit so that the unused ones may be wired later without renumbering.
const (
	SlotINTA = 0
	SlotINTB = 2
	SlotINTC = 4
	SlotINTD = 6
	SlotMSI  = 12

	NSlots = 13
)

var intxSlots = [...]uint{SlotINTA, SlotINTB, SlotINTC, SlotINTD}

// SlotName names the mappable slots and returns "" for the reserved ones.
func SlotName(slot uint) string {
	switch slot {
	case SlotINTA, SlotINTB, SlotINTC, SlotINTD, SlotMSI:
		return intrNames[slot]
	}
	return ""
}

// IntcName is the action name of the mux on its physical line.
const IntcName = "ls1024a-pcie-intc"

// Intc multiplexes the port's physical interrupt into the INTx and MSI
// slots of its domain.  It is the domain's chip: the domain masks and
// unmasks slots through it, it only looks mappings up in the domain.
type Intc struct {
	Regs
	Domain *irqdomain.Domain
}

// NewIntc returns the mux of a port with an empty domain.
func NewIntc(r Regs) *Intc {
	c := &Intc{Regs: r}
	c.Domain = irqdomain.New(fmt.Sprint(r, "-interrupt-controller"),
		NSlots, c)
	return c
}

func (c *Intc) Valid(slot uint) bool { return SlotName(slot) != "" }

func (c *Intc) Mask(slot uint) {
	if err := regmap.ClearBits(c, c.IntrEn(), 1<<slot); err != nil {
		log.Print("daemon", "err", c.Regs, ": mask ", SlotName(slot),
			": ", err)
	}
}

func (c *Intc) Unmask(slot uint) {
	if err := regmap.SetBits(c, c.IntrEn(), 1<<slot); err != nil {
		log.Print("daemon", "err", c.Regs, ": unmask ", SlotName(slot),
			": ", err)
	}
}

// Handler is the action to request on the physical line.
func (c *Intc) Handler() irq.Handler {
	return func() irq.Return { return dispatch(c.Regs, c.Domain) }
}

// dispatch acknowledges every pending status bit with a single write of the
// value read and then handles MSI followed by each asserted INTx.  It runs
// in interrupt context: it neither blocks nor logs.  A zero status belongs
// to some other device on a shared line.  Nothing is handled, and the line
// counts the interrupt as unclaimed, if the acknowledge fails.
func dispatch(r Regs, d *irqdomain.Domain) irq.Return {
	off := r.IntrSts()
	status, err := r.Read(off)
	if err != nil || status == 0 {
		return irq.None
	}
	if r.Write(off, status) != nil {
		return irq.None
	}

	if status&IntrMSI != 0 {
		handle(d, SlotMSI)
	}
	for _, slot := range intxSlots {
		if status&(1<<slot) != 0 {
			handle(d, slot)
		}
	}
	return irq.Handled
}

func handle(d *irqdomain.Domain, slot uint) {
	if virq := d.Find(slot); virq != 0 {
		irqdomain.Handle(virq)
	}
}

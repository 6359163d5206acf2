// Copyright © 2021 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package ls1024a

import (
	"errors"
	"fmt"

	"github.com/platinasystems/log"

	"github.com/platinasystems/ls1024a-pcie/internal/clk"
	"github.com/platinasystems/ls1024a-pcie/internal/irq"
	"github.com/platinasystems/ls1024a-pcie/internal/phy"
	"github.com/platinasystems/ls1024a-pcie/internal/regmap"
	"github.com/platinasystems/ls1024a-pcie/internal/reset"
)

// Device tree bindings.
const (
	Compatible     = "fsl,ls1024a-pcie"
	IntcCompatible = "fsl,ls1024a-pcie-intc"
	// The application bank shared by the pcie and usb controllers.
	SysconCompatible = "fsl,ls1024a-pci-usb-ctrl"
	PortIndexProp    = "fsl,port-index"
)

var (
	ErrInvalidPort           = errors.New("missing or invalid fsl,port-index")
	ErrNoInterruptController = errors.New("no pcie interrupt controller")
)

// Platform resolves the resources of one pcie node.
type Platform interface {
	PortIndex() (uint32, error)
	Syscon(compatible string) (regmap.Map, error)
	Clock(name string) (clk.Gate, error)
	Reset(name string) (reset.Control, error)
	PHY(name string) (phy.PHY, error)
	// Window maps a named register resource of the node.
	Window(name string) (regmap.Map, error)
	// InterruptController returns the physical line of the port's
	// pcieN-interrupt-controller node.
	InterruptController(port uint) (*irq.Line, error)
}

// Host is the generic host controller stack.  Add may start the link
// and begin enumeration; the port is live once it returns nil.
type Host interface {
	Add(*Port) error
	Remove(*Port)
}

// Port is a probed root complex port.
type Port struct {
	Index uint
	Regs  Regs
	Link  *Link
	Intc  *Intc
	Line  *irq.Line
	DBI   regmap.Map

	host Host
	undo unwind
}

func (p *Port) String() string { return p.Regs.String() }

type undo struct {
	name string
	f    func() error
}

// unwind releases resources in the reverse order of their acquisition.
type unwind []undo

func (u *unwind) push(name string, f func() error) {
	*u = append(*u, undo{name, f})
}

func (u unwind) run(who fmt.Stringer) {
	for i := len(u) - 1; i >= 0; i-- {
		if err := u[i].f(); err != nil {
			log.Print("daemon", "warn", who, ": ", u[i].name, ": ", err)
		}
	}
}

// Probe brings a port up from resets held to a host controller handoff.  On
// failure it releases what it acquired and returns the first error.
func Probe(plat Platform, host Host, wait Wait) (*Port, error) {
	p := &Port{host: host}
	err := p.probe(plat, wait)
	if err != nil {
		log.Print("daemon", "err", err)
		p.undo.run(p)
		return nil, err
	}
	return p, nil
}

func (p *Port) probe(plat Platform, wait Wait) error {
	idx, err := plat.PortIndex()
	if err == nil && idx >= NPorts {
		err = fmt.Errorf("%d", idx)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPort, err)
	}
	p.Index = uint(idx)
	p.Regs.Port = p.Index

	if p.Regs.Map, err = plat.Syscon(SysconCompatible); err != nil {
		return fmt.Errorf("%s: syscon: %w", p, err)
	}

	gate, err := plat.Clock("axi")
	if err != nil {
		return fmt.Errorf("%s: axi clock: %w", p, err)
	}

	var resets reset.Sequence
	for _, name := range []string{"axi", "power", "regs"} {
		r, err := plat.Reset(name)
		if err != nil {
			return fmt.Errorf("%s: %s reset: %w", p, name, err)
		}
		resets = append(reset.Sequence{{Name: name, Control: r}},
			resets...)
	}
	if err = resets.Assert(); err != nil {
		return fmt.Errorf("%s: %w", p, err)
	}

	if err = gate.Enable(); err != nil {
		return fmt.Errorf("%s: axi clock enable: %w", p, err)
	}
	p.undo.push("axi clock disable", gate.Disable)

	bus, err := plat.PHY("bus")
	if err != nil && !errors.Is(err, phy.ErrNoPHY) {
		return fmt.Errorf("%s: phy: %w", p, err)
	}
	if err = phy.Enable(bus, phy.ModePCIe); err != nil {
		return fmt.Errorf("%s: %w", p, err)
	}
	p.undo.push("phy disable", func() error { return phy.Disable(bus) })

	if err = resets.Deassert(); err != nil {
		return fmt.Errorf("%s: %w", p, err)
	}
	p.undo.push("reset assert", resets.Assert)

	if p.DBI, err = plat.Window("dbi"); err != nil {
		return fmt.Errorf("%s: dbi: %w", p, err)
	}

	p.Link = &Link{Regs: p.Regs, Wait: wait}
	p.Intc = NewIntc(p.Regs)
	p.undo.push("irq domain remove", func() error {
		p.Intc.Domain.Remove()
		return nil
	})

	if p.Line, err = plat.InterruptController(p.Index); err != nil {
		return fmt.Errorf("%s: %w: %v", p, ErrNoInterruptController,
			err)
	}
	err = p.Line.Request(IntcName, irq.Shared|irq.NoThread, p,
		p.Intc.Handler())
	if err != nil {
		return fmt.Errorf("%s: %w", p, err)
	}
	p.undo.push("irq free", func() error {
		return p.Line.Free(IntcName, p)
	})

	if err = p.host.Add(p); err != nil {
		return fmt.Errorf("%s: host: %w", p, err)
	}
	log.Print("daemon", "info", p, ": probed")
	return nil
}

// Remove detaches the port from the host and releases its resources in
// reverse order.
func (p *Port) Remove() {
	p.host.Remove(p)
	p.undo.run(p)
	p.undo = nil
}

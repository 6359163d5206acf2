// Copyright © 2021 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

//go:build linux
// +build linux

// Package board resolves the resources of an ls1024a pcie node from the
// device tree for a userspace driver.
package board

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/platinasystems/fdt"
	"github.com/platinasystems/gpio"
	"github.com/platinasystems/log"

	"github.com/platinasystems/ls1024a-pcie/internal/clk"
	"github.com/platinasystems/ls1024a-pcie/internal/dt"
	"github.com/platinasystems/ls1024a-pcie/internal/irq"
	"github.com/platinasystems/ls1024a-pcie/internal/phy"
	"github.com/platinasystems/ls1024a-pcie/internal/regmap"
	"github.com/platinasystems/ls1024a-pcie/internal/reset"
	"github.com/platinasystems/ls1024a-pcie/ls1024a"
)

const SerdesCompatible = "fsl,ls1024a-serdes"

// Board is the Platform of one fsl,ls1024a-pcie node.
type Board struct {
	*dt.Tree
	Node *fdt.Node

	// I2CBus, I2CAddr and ClockReg locate the output enable register of
	// the reference clock buffer; bit N gates port N.  With I2CBus < 0
	// the clock is left to the kernel.
	I2CBus, I2CAddr int
	ClockReg        uint8

	// Serdes drives the lane of the port through the phy.Serdes
	// registers.  Otherwise the named PHY is left to the kernel.
	Serdes bool

	pins    gpio.PinMap
	mapped  []string
	closers []io.Closer
}

func New(t *dt.Tree, n *fdt.Node) *Board {
	return &Board{Tree: t, Node: n, I2CBus: -1}
}

// Nodes returns the pcie nodes of the tree.
func Nodes(t *dt.Tree) []*fdt.Node {
	return t.FindCompatible(ls1024a.Compatible)
}

func (b *Board) String() string { return b.Node.Name }

func (b *Board) PortIndex() (uint32, error) {
	return b.U32(b.Node, ls1024a.PortIndexProp)
}

// Syscon returns the shared bank registered for compatible, mapping it
// from the node's reg if this is the first lookup.
func (b *Board) Syscon(compatible string) (regmap.Map, error) {
	m, err := regmap.Lookup(compatible)
	if err == nil || !errors.Is(err, regmap.ErrNotFound) {
		return m, err
	}
	nodes := b.FindCompatible(compatible)
	if len(nodes) == 0 {
		return nil, err
	}
	addr, size, err := b.Reg(nodes[0])
	if err != nil {
		return nil, err
	}
	dm, err := regmap.OpenDevMem(uint64(addr), uint64(size))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", compatible, err)
	}
	log.Print("daemon", "debug", compatible, ": mapped ",
		fmt.Sprintf("%#x+%#x", addr, size))
	regmap.Register(compatible, dm)
	b.mapped = append(b.mapped, compatible)
	b.closers = append(b.closers, dm)
	return dm, nil
}

func (b *Board) Clock(name string) (clk.Gate, error) {
	if b.I2CBus < 0 {
		return clk.Fixed{}, nil
	}
	port, err := b.PortIndex()
	if err != nil {
		return nil, err
	}
	return &clk.I2C{
		SMBus: &clk.Dev{Bus: b.I2CBus, Addr: b.I2CAddr},
		Reg:   b.ClockReg,
		Mask:  1 << port,
	}, nil
}

// Reset returns the gpio pin PCIE<port>_<NAME>_RST_L.
func (b *Board) Reset(name string) (reset.Control, error) {
	port, err := b.PortIndex()
	if err != nil {
		return nil, err
	}
	if b.pins == nil {
		b.pins = b.Pins()
	}
	pin := fmt.Sprintf("PCIE%d_%s_RST_L", port, strings.ToUpper(name))
	p, found := b.pins[pin]
	if !found {
		return nil, fmt.Errorf("%s: %w", pin, dt.ErrNotFound)
	}
	return &reset.GPIO{Pin: p, ActiveLow: true}, nil
}

// PHY returns the phy of the port if the node names it in phy-names.
func (b *Board) PHY(name string) (phy.PHY, error) {
	if _, err := b.Index(b.Node, "phy-names", name); err != nil {
		return nil, fmt.Errorf("%v: %w", err, phy.ErrNoPHY)
	}
	if !b.Serdes {
		return phy.Fixed{}, nil
	}
	port, err := b.PortIndex()
	if err != nil {
		return nil, err
	}
	m, err := b.Syscon(SerdesCompatible)
	if err != nil {
		return nil, err
	}
	return &phy.Serdes{Map: m, Lane: uint(port)}, nil
}

// Window maps the reg entry called name in reg-names.
func (b *Board) Window(name string) (regmap.Map, error) {
	i, err := b.Index(b.Node, "reg-names", name)
	if err != nil {
		return nil, err
	}
	reg, err := b.U32s(b.Node, "reg")
	if err != nil {
		return nil, err
	}
	if len(reg) < 2*i+2 {
		return nil, fmt.Errorf("%s: reg %s: %w", b, name, dt.ErrBadProp)
	}
	dm, err := regmap.OpenDevMem(uint64(reg[2*i]), uint64(reg[2*i+1]))
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", b, name, err)
	}
	b.closers = append(b.closers, dm)
	return dm, nil
}

// InterruptController finds the pcieN-interrupt-controller child of the
// application bank node and returns its line.
func (b *Board) InterruptController(port uint) (*irq.Line, error) {
	nodes := b.FindCompatible(ls1024a.SysconCompatible)
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%s: %w", ls1024a.SysconCompatible,
			dt.ErrNotFound)
	}
	name := fmt.Sprintf("pcie%d-interrupt-controller", port)
	n := dt.Child(nodes[0], name)
	if n == nil {
		return nil, fmt.Errorf("%s: %w", name, dt.ErrNotFound)
	}
	num, err := b.Interrupt(n)
	if err != nil {
		return nil, err
	}
	return irq.Get(num), nil
}

// Close unmaps the windows and banks the board mapped.
func (b *Board) Close() error {
	for _, compatible := range b.mapped {
		regmap.Unregister(compatible)
	}
	b.mapped = nil
	var err error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if cerr := b.closers[i].Close(); err == nil {
			err = cerr
		}
	}
	b.closers = nil
	return err
}

// Copyright © 2021 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package ls1024a

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/platinasystems/ls1024a-pcie/internal/clk"
	"github.com/platinasystems/ls1024a-pcie/internal/irq"
	"github.com/platinasystems/ls1024a-pcie/internal/phy"
	"github.com/platinasystems/ls1024a-pcie/internal/regmap"
	"github.com/platinasystems/ls1024a-pcie/internal/reset"
)

var errInjected = errors.New("injected")

// board records every operation on the fake resources of a platform.
// fail names the operation, or the acquisition, that returns errInjected.
type board struct {
	port uint32
	bank *regmap.Mem
	line *irq.Line
	fail string
	ops  []string

	held     map[string]bool
	clkOn    bool
	phyInit  bool
	phyOn    bool
	noPHY    bool
	hostPort *Port
}

func newBoard(port uint32) *board {
	b := &board{
		port: port,
		bank: newTrainingBank(uint(port)),
		line: &irq.Line{Number: 100 + int(port)},
		held: make(map[string]bool),
	}
	regmap.Register(SysconCompatible, b.bank)
	return b
}

func (b *board) op(name string) error {
	b.ops = append(b.ops, name)
	if name == b.fail {
		return errInjected
	}
	return nil
}

func (b *board) get(name string) error {
	if "get "+name == b.fail {
		return errInjected
	}
	return nil
}

func (b *board) PortIndex() (uint32, error) {
	return b.port, b.get("port")
}

func (b *board) Syscon(compatible string) (regmap.Map, error) {
	if err := b.get("syscon"); err != nil {
		return nil, err
	}
	return regmap.Lookup(compatible)
}

func (b *board) Clock(name string) (clk.Gate, error) {
	return (*fakeClk)(b), b.get(name + " clock")
}

func (b *board) Reset(name string) (reset.Control, error) {
	return &fakeReset{b, name}, b.get(name + " reset")
}

func (b *board) PHY(name string) (phy.PHY, error) {
	if b.noPHY {
		return nil, phy.ErrNoPHY
	}
	return (*fakePHY)(b), b.get(name + " phy")
}

func (b *board) Window(name string) (regmap.Map, error) {
	return regmap.NewMem(0x1000), b.get(name)
}

func (b *board) InterruptController(port uint) (*irq.Line, error) {
	if err := b.get("intc"); err != nil {
		return nil, err
	}
	if port != uint(b.port) {
		return nil, fmt.Errorf("port %d", port)
	}
	return b.line, nil
}

func (b *board) Add(p *Port) error {
	if err := b.op("host add"); err != nil {
		return err
	}
	b.hostPort = p
	return p.Link.StartLink()
}

func (b *board) Remove(p *Port) {
	b.op("host remove")
	b.hostPort = nil
}

type fakeClk board

func (c *fakeClk) Enable() error {
	b := (*board)(c)
	err := b.op("clk enable")
	b.clkOn = err == nil
	return err
}

func (c *fakeClk) Disable() error {
	b := (*board)(c)
	b.clkOn = false
	return b.op("clk disable")
}

type fakeReset struct {
	*board
	name string
}

func (r *fakeReset) Assert() error {
	err := r.op("assert " + r.name)
	if err == nil {
		r.held[r.name] = true
	}
	return err
}

func (r *fakeReset) Deassert() error {
	err := r.op("deassert " + r.name)
	if err == nil {
		r.held[r.name] = false
	}
	return err
}

type fakePHY board

func (p *fakePHY) Init() error {
	b := (*board)(p)
	err := b.op("phy init")
	b.phyInit = err == nil
	return err
}

func (p *fakePHY) Exit() error {
	b := (*board)(p)
	b.phyInit = false
	return b.op("phy exit")
}

func (p *fakePHY) SetMode(m phy.Mode) error {
	return (*board)(p).op("phy mode " + m.String())
}

func (p *fakePHY) PowerOn() error {
	b := (*board)(p)
	err := b.op("phy power on")
	b.phyOn = err == nil
	return err
}

func (p *fakePHY) PowerOff() error {
	b := (*board)(p)
	b.phyOn = false
	return b.op("phy power off")
}

var probeOps = []string{
	"assert regs", "assert power", "assert axi",
	"clk enable",
	"phy init", "phy mode pcie", "phy power on",
	"deassert axi", "deassert power", "deassert regs",
	"host add",
}

func TestProbePort1(t *testing.T) {
	b := newBoard(1)
	p, err := Probe(b, b, quick)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(b.ops, probeOps) {
		t.Errorf("got %q\nwant %q", b.ops, probeOps)
	}
	if b.hostPort != p || p.Index != 1 || p.DBI == nil {
		t.Fatal("port not handed to host", p)
	}
	if !p.Link.LinkUp() {
		t.Error("link down")
	}
	if !b.clkOn || !b.phyOn || !b.phyInit {
		t.Error("resources off", b.clkOn, b.phyOn, b.phyInit)
	}
	for name, held := range b.held {
		if held {
			t.Error(name, "held")
		}
	}

	// Only port 1 registers were touched.
	r := Regs{Port: 1}
	for _, a := range b.bank.Trace() {
		if a.Off != r.Cfg(0) && a.Off != r.Cfg(5) {
			t.Errorf("probe wrote %#x", a.Off)
		}
	}

	if got := p.Intc.Domain.Mappable(); !reflect.DeepEqual(got, mappable) {
		t.Errorf("mappable %v", got)
	}
	handled := mapAll(t, p.Intc)
	b.bank.Assert(r.IntrSts(), IntbAssert|IntrMSI)
	if ret := b.line.Fire(); ret != irq.Handled {
		t.Error("fire", ret)
	}
	if want := []uint{SlotMSI, SlotINTB}; !reflect.DeepEqual(*handled, want) {
		t.Errorf("handled %v want %v", *handled, want)
	}

	b.ops = nil
	p.Remove()
	want := []string{
		"host remove",
		"assert regs", "assert power", "assert axi",
		"phy power off", "phy exit",
		"clk disable",
	}
	if !reflect.DeepEqual(b.ops, want) {
		t.Errorf("remove got %q\nwant %q", b.ops, want)
	}
	if ret := b.line.Fire(); ret != irq.None {
		t.Error("freed line claimed", ret)
	}
	if v, _ := b.bank.Read(r.IntrEn()); v != 0 {
		t.Errorf("enable %#x after remove", v)
	}
}

func TestProbeSetModeFailure(t *testing.T) {
	b := newBoard(0)
	b.fail = "phy mode pcie"
	p, err := Probe(b, b, quick)
	if p != nil || !errors.Is(err, errInjected) {
		t.Fatal(p, err)
	}
	want := []string{
		"assert regs", "assert power", "assert axi",
		"clk enable",
		"phy init", "phy mode pcie", "phy exit",
		"clk disable",
	}
	if !reflect.DeepEqual(b.ops, want) {
		t.Errorf("got %q\nwant %q", b.ops, want)
	}
	if b.phyInit || b.phyOn || b.clkOn {
		t.Error("resources left on", b.phyInit, b.phyOn, b.clkOn)
	}
}

func TestProbeFailures(t *testing.T) {
	for _, x := range []struct {
		fail string
		is   error
	}{
		{"get port", ErrInvalidPort},
		{"get syscon", errInjected},
		{"get axi clock", errInjected},
		{"get power reset", errInjected},
		{"assert power", errInjected},
		{"clk enable", errInjected},
		{"get bus phy", errInjected},
		{"phy init", errInjected},
		{"phy power on", errInjected},
		{"deassert power", errInjected},
		{"get dbi", errInjected},
		{"get intc", ErrNoInterruptController},
		{"host add", errInjected},
	} {
		b := newBoard(1)
		b.fail = x.fail
		p, err := Probe(b, b, quick)
		if p != nil || !errors.Is(err, x.is) {
			t.Errorf("%s: got %v %v", x.fail, p, err)
			continue
		}
		if b.clkOn || b.phyInit || b.phyOn {
			t.Errorf("%s: clk %v phy init %v on %v", x.fail,
				b.clkOn, b.phyInit, b.phyOn)
		}
		for name, held := range b.held {
			if !held && x.fail != "assert power" {
				t.Errorf("%s: %s released", x.fail, name)
			}
		}
		if ret := b.line.Fire(); ret != irq.None {
			t.Errorf("%s: line still requested", x.fail)
		}
	}
}

func TestProbeConfigErrors(t *testing.T) {
	b := newBoard(2)
	if _, err := Probe(b, b, quick); !errors.Is(err, ErrInvalidPort) {
		t.Error("port 2:", err)
	}
	if len(b.ops) != 0 {
		t.Error("touched", b.ops)
	}

	b = newBoard(0)
	b.noPHY = true
	if _, err := Probe(b, b, quick); !errors.Is(err, phy.ErrNoPHY) {
		t.Error("no phy:", err)
	}
	if b.clkOn {
		t.Error("clock left on")
	}

	b = newBoard(0)
	regmap.Unregister(SysconCompatible)
	if _, err := Probe(b, b, quick); !errors.Is(err, regmap.ErrNotFound) {
		t.Error("no syscon:", err)
	}
}

func TestProbeBusyLine(t *testing.T) {
	b := newBoard(0)
	b.line.Request("exclusive", 0, nil, func() irq.Return { return irq.None })
	if _, err := Probe(b, b, quick); !errors.Is(err, irq.ErrBusy) {
		t.Fatal(err)
	}
	if b.clkOn || b.phyOn || !b.held["axi"] {
		t.Error("not unwound", b.ops)
	}
}

func TestRemoveSharedLine(t *testing.T) {
	b0 := newBoard(0)
	b1 := &board{
		port: 1,
		bank: b0.bank,
		line: b0.line,
		held: make(map[string]bool),
	}
	p0, err := Probe(b0, b0, quick)
	if err != nil {
		t.Fatal(err)
	}
	defer p0.Remove()
	p1, err := Probe(b1, b1, quick)
	if err != nil {
		t.Fatal(err)
	}
	handled := mapAll(t, p0.Intc)

	p1.Remove()
	r := Regs{Port: 0}
	b0.bank.Assert(r.IntrSts(), IntaAssert)
	if ret := b0.line.Fire(); ret != irq.Handled {
		t.Error("fire", ret)
	}
	if want := []uint{SlotINTA}; !reflect.DeepEqual(*handled, want) {
		t.Errorf("port 0 handled %v want %v", *handled, want)
	}
	if v, _ := b0.bank.Read(r.IntrSts()); v != 0 {
		t.Errorf("port 0 status %#x not acknowledged", v)
	}
}

// Copyright © 2021 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

//go:build linux
// +build linux

// Package pcied probes the ls1024a pcie ports of the device tree, services
// their interrupt muxes and publishes link and interrupt state to redis.
package pcied

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/platinasystems/flags"
	"github.com/platinasystems/log"
	"github.com/platinasystems/parms"
	"github.com/platinasystems/redis"
	"github.com/platinasystems/redis/publisher"

	"github.com/platinasystems/ls1024a-pcie/internal/dt"
	"github.com/platinasystems/ls1024a-pcie/internal/goes/cmd"
	"github.com/platinasystems/ls1024a-pcie/internal/goes/lang"
	"github.com/platinasystems/ls1024a-pcie/internal/irq"
	"github.com/platinasystems/ls1024a-pcie/internal/irqdomain"
	"github.com/platinasystems/ls1024a-pcie/ls1024a"
	"github.com/platinasystems/ls1024a-pcie/ls1024a/board"
)

const (
	DefaultUIO    = "/dev/uio%d"
	DefaultPeriod = 5 * time.Second
)

type Command struct {
	// Wait bounds link training, default ls1024a.DefaultWait.
	Wait ls1024a.Wait

	stop     chan struct{}
	stopOnce sync.Once
	pub      *publisher.Publisher
	tty      bool
	host     Host
	boards   []*board.Board
	uios     []*irq.UIO
	running  sync.WaitGroup
	virqs    map[string]uint
	last     map[string]string
	irqs     chan uint
}

func (*Command) String() string { return "pcied" }

func (*Command) Usage() string {
	return "pcied [-no-publish] [-serdes] [-dtb FILE] [-uio FORMAT]\n" +
		"\t[-period DURATION] [-i2c-bus BUS -i2c-addr ADDR [-i2c-reg REG]]"
}

func (*Command) Apropos() lang.Alt {
	return lang.Alt{
		lang.EnUS: "ls1024a pcie daemon, publishes link state to redis",
	}
}

func (*Command) Man() lang.Alt {
	return lang.Alt{
		lang.EnUS: `
DESCRIPTION
	Probe every fsl,ls1024a-pcie node of the device tree: hold the
	port resets, enable its clock and SerDes lane, release the resets
	and train the link.  Then service the interrupt mux of each port
	from its userspace i/o device and publish, per port,

		pcieN.link	up or down
		pcieN.state	idle, configuring, training or up
		pcieN.status	decoded link status register
		pcieN.irq	physical interrupts and unclaimed ones
		pcieN.irq.SLOT	interrupts of inta..intd and msi

OPTIONS
	-no-publish
		print changes to stdout instead of redis
	-serdes
		drive the SerDes lane registers of each port; without
		it the phy is left to the kernel
	-dtb FILE
		flattened device tree, default: /boot/linux.dtb
	-uio FORMAT
		uio device of port N, default: /dev/uio%d
	-period DURATION
		publish interval, default: 5s
	-i2c-bus BUS -i2c-addr ADDR -i2c-reg REG
		reference clock buffer whose output enable bit N gates
		port N; without it the clock is left to the kernel`,
	}
}

func (*Command) Kind() cmd.Kind { return cmd.Daemon }

func (c *Command) Close() error {
	c.stopOnce.Do(func() {
		if c.stop != nil {
			close(c.stop)
		}
	})
	return nil
}

func (c *Command) Main(args ...string) error {
	flag, args := flags.New(args, "-no-publish", "-serdes")
	parm, args := parms.New(args, "-dtb", "-uio", "-period",
		"-i2c-bus", "-i2c-addr", "-i2c-reg")
	if len(args) > 0 {
		return fmt.Errorf("%v: unexpected", args)
	}
	for k, v := range map[string]string{
		"-dtb":    dt.File,
		"-uio":    DefaultUIO,
		"-period": DefaultPeriod.String(),
	} {
		if len(parm.ByName[k]) == 0 {
			parm.ByName[k] = v
		}
	}
	period, err := time.ParseDuration(parm.ByName["-period"])
	if err != nil {
		return fmt.Errorf("-period: %w", err)
	}
	refclk, err := i2cClock(parm.ByName)
	if err != nil {
		return err
	}

	if !flag.ByName["-no-publish"] {
		if err = redis.IsReady(); err != nil {
			log.Print("redis not ready")
			return err
		}
		if c.pub, err = publisher.New(); err != nil {
			return err
		}
		defer c.pub.Close()
	}
	c.tty = isatty.IsTerminal(os.Stdout.Fd())
	c.stop = make(chan struct{})
	c.virqs = make(map[string]uint)
	c.last = make(map[string]string)
	c.irqs = make(chan uint, 16)
	if c.Wait.Attempts == 0 {
		c.Wait = ls1024a.DefaultWait
	}

	t, err := dt.Load(parm.ByName["-dtb"])
	if err != nil {
		return err
	}
	defer c.teardown()
	for _, n := range board.Nodes(t) {
		b := board.New(t, n)
		b.I2CBus, b.I2CAddr, b.ClockReg = refclk.bus, refclk.addr, refclk.reg
		b.Serdes = flag.ByName["-serdes"]
		p, err := ls1024a.Probe(b, &c.host, c.Wait)
		if err != nil {
			b.Close()
			continue
		}
		c.boards = append(c.boards, b)
		c.mapSlots(p)
		c.serve(p, fmt.Sprintf(parm.ByName["-uio"], p.Index))
	}
	if len(c.host.Ports()) == 0 {
		return fmt.Errorf("no pcie port")
	}

	c.update()
	tick := time.NewTicker(period)
	defer tick.Stop()
	for {
		select {
		case <-c.stop:
			return nil
		case <-c.irqs:
			c.update()
		case <-tick.C:
			c.update()
		}
	}
}

type clock struct {
	bus, addr int
	reg       uint8
}

func i2cClock(byName map[string]string) (clock, error) {
	c := clock{bus: -1}
	if len(byName["-i2c-bus"]) == 0 {
		return c, nil
	}
	for _, x := range []struct {
		name string
		bits int
		v    func(uint64)
	}{
		{"-i2c-bus", 16, func(u uint64) { c.bus = int(u) }},
		{"-i2c-addr", 7, func(u uint64) { c.addr = int(u) }},
		{"-i2c-reg", 8, func(u uint64) { c.reg = uint8(u) }},
	} {
		s := byName[x.name]
		if len(s) == 0 {
			if x.name == "-i2c-addr" {
				return c, fmt.Errorf("-i2c-bus without -i2c-addr")
			}
			continue
		}
		u, err := strconv.ParseUint(s, 0, x.bits)
		if err != nil {
			return c, fmt.Errorf("%s: %w", x.name, err)
		}
		x.v(u)
	}
	return c, nil
}

// mapSlots maps every mux slot of the port with a handler that wakes the
// publisher.
func (c *Command) mapSlots(p *ls1024a.Port) {
	for _, slot := range p.Intc.Domain.Mappable() {
		virq, err := p.Intc.Domain.Map(slot)
		if err != nil {
			log.Print("daemon", "err", p, ": ", err)
			continue
		}
		key := fmt.Sprint(p, ".irq.", ls1024a.SlotName(slot))
		err = irqdomain.Request(virq, key, func(virq uint) {
			select {
			case c.irqs <- virq:
			default:
			}
		})
		if err != nil {
			log.Print("daemon", "err", p, ": ", err)
			continue
		}
		c.virqs[key] = virq
	}
}

// serve runs the port's physical line from its uio device.  Without one the
// port still trains but its interrupts are never seen.
func (c *Command) serve(p *ls1024a.Port, path string) {
	u, err := irq.OpenUIO(path, p.Line)
	if err != nil {
		log.Print("daemon", "warn", p, ": ", err)
		return
	}
	c.uios = append(c.uios, u)
	c.running.Add(1)
	go func() {
		defer c.running.Done()
		if err := u.Run(); err != nil {
			log.Print("daemon", "err", p, ": ", err)
		}
	}()
}

func (c *Command) teardown() {
	for _, u := range c.uios {
		u.Close()
	}
	c.running.Wait()
	for _, u := range c.uios {
		u.Release()
	}
	c.uios = nil
	for _, p := range c.host.Ports() {
		p.Remove()
	}
	for _, b := range c.boards {
		if err := b.Close(); err != nil {
			log.Print("daemon", "warn", b, ": ", err)
		}
	}
	c.boards = nil
}

func (c *Command) update() {
	for _, p := range c.host.Ports() {
		up := "down"
		if p.Link.LinkUp() {
			up = "up"
		}
		c.publish(fmt.Sprint(p, ".link"), up)
		if s, err := p.Link.State(); err == nil {
			c.publish(fmt.Sprint(p, ".state"), s)
		}
		if s, err := p.Link.Status(); err == nil {
			c.publish(fmt.Sprint(p, ".status"), s)
		}
		n, u := p.Line.Count()
		c.publish(fmt.Sprint(p, ".irq"), fmt.Sprint(n, " unhandled ", u))
	}
	for k, virq := range c.virqs {
		c.publish(k, irqdomain.Count(virq))
	}
}

func (c *Command) publish(k string, v interface{}) {
	s := fmt.Sprint(v)
	if s == c.last[k] {
		return
	}
	c.last[k] = s
	switch {
	case c.pub != nil:
		c.pub.Print(k, ": ", s)
	case c.tty:
		fmt.Printf("%-20s %s\n", k, s)
	default:
		fmt.Print(k, ": ", s, "\n")
	}
}

// Copyright © 2021 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

//go:build linux
// +build linux

// Package pcie shows and drives the link of the ls1024a pcie ports without
// the daemon.
package pcie

import (
	"fmt"
	"os"
	"strconv"

	"github.com/mattn/go-isatty"
	"github.com/platinasystems/parms"

	"github.com/platinasystems/ls1024a-pcie/internal/dt"
	"github.com/platinasystems/ls1024a-pcie/internal/goes/lang"
	"github.com/platinasystems/ls1024a-pcie/ls1024a"
	"github.com/platinasystems/ls1024a-pcie/ls1024a/board"
)

type Command struct{}

func (Command) String() string { return "pcie" }

func (Command) Usage() string {
	return "pcie [-dtb FILE] [status | start | stop | wait] [PORT]"
}

func (Command) Apropos() lang.Alt {
	return lang.Alt{
		lang.EnUS: "show or train ls1024a pcie links",
	}
}

func (Command) Man() lang.Alt {
	return lang.Alt{
		lang.EnUS: `
DESCRIPTION
	Operate on the link of every port of the device tree, or just
	PORT.  The port must already be out of reset, e.g. by pcied.

	status	print link, training state and interrupt registers
	start	configure root complex mode and enable training
	stop	disable training
	wait	poll until the link is up

OPTIONS
	-dtb FILE
		flattened device tree, default: /boot/linux.dtb`,
	}
}

func (c Command) Main(args ...string) error {
	parm, args := parms.New(args, "-dtb")
	if len(parm.ByName["-dtb"]) == 0 {
		parm.ByName["-dtb"] = dt.File
	}
	op, port, err := parse(args)
	if err != nil {
		return err
	}

	var f func(*ls1024a.Link) error
	switch op {
	case "status":
		if isatty.IsTerminal(os.Stdout.Fd()) {
			fmt.Printf("%-6s %-11s %-5s %-10s %s\n",
				"PORT", "STATE", "LINK", "STS3", "INTERRUPTS")
		}
		f = status
	case "start":
		f = (*ls1024a.Link).StartLink
	case "stop":
		f = (*ls1024a.Link).StopLink
	case "wait":
		f = (*ls1024a.Link).WaitForLink
	default:
		return fmt.Errorf("%s: unknown", op)
	}

	t, err := dt.Load(parm.ByName["-dtb"])
	if err != nil {
		return err
	}
	found := false
	for _, n := range board.Nodes(t) {
		b := board.New(t, n)
		err := c.do(b, port, f, &found)
		b.Close()
		if err != nil {
			return err
		}
	}
	if !found {
		return fmt.Errorf("no pcie port")
	}
	return nil
}

// parse returns the operation, status by default, and the port or -1 for all.
func parse(args []string) (op string, port int, err error) {
	op, port = "status", -1
	if len(args) > 0 {
		if _, err := strconv.ParseUint(args[0], 0, 8); err != nil {
			op, args = args[0], args[1:]
		}
	}
	switch len(args) {
	case 0:
	case 1:
		u, err := strconv.ParseUint(args[0], 0, 8)
		if err != nil || u >= ls1024a.NPorts {
			return "", 0, fmt.Errorf("%s: %w", args[0],
				ls1024a.ErrInvalidPort)
		}
		port = int(u)
	default:
		return "", 0, fmt.Errorf("%v: unexpected", args[1:])
	}
	return
}

func (Command) do(b *board.Board, port int, f func(*ls1024a.Link) error,
	found *bool) error {
	idx, err := b.PortIndex()
	if err != nil {
		return err
	}
	if idx >= ls1024a.NPorts {
		return fmt.Errorf("%s: %d: %w", b, idx, ls1024a.ErrInvalidPort)
	}
	if port >= 0 && uint32(port) != idx {
		return nil
	}
	*found = true
	m, err := b.Syscon(ls1024a.SysconCompatible)
	if err != nil {
		return err
	}
	l := &ls1024a.Link{
		Regs: ls1024a.Regs{Map: m, Port: uint(idx)},
		Wait: ls1024a.DefaultWait,
	}
	return f(l)
}

func status(l *ls1024a.Link) error {
	s, err := l.Status()
	if err != nil {
		return err
	}
	state, err := l.State()
	if err != nil {
		return err
	}
	sts3, err := l.Read(l.Sts3())
	if err != nil {
		return err
	}
	en, err := l.Read(l.IntrEn())
	if err != nil {
		return err
	}
	pending, err := l.Read(l.IntrSts())
	if err != nil {
		return err
	}
	up := "down"
	if s.Up {
		up = "up"
	}
	fmt.Printf("%-6s %-11s %-5s %#08x enabled <%s> pending <%s>\n",
		l.Regs, state, up, sts3,
		ls1024a.IntrString(en), ls1024a.IntrString(pending))
	return nil
}

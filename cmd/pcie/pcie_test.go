// Copyright © 2021 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

//go:build linux
// +build linux

package pcie

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/platinasystems/fdt"

	"github.com/platinasystems/ls1024a-pcie/internal/dt"
	"github.com/platinasystems/ls1024a-pcie/internal/regmap"
	"github.com/platinasystems/ls1024a-pcie/ls1024a"
	"github.com/platinasystems/ls1024a-pcie/ls1024a/board"
)

func TestParse(t *testing.T) {
	for _, x := range []struct {
		args []string
		op   string
		port int
		err  bool
	}{
		{nil, "status", -1, false},
		{[]string{"1"}, "status", 1, false},
		{[]string{"start"}, "start", -1, false},
		{[]string{"stop", "0"}, "stop", 0, false},
		{[]string{"wait", "2"}, "", 0, true},
		{[]string{"2"}, "", 0, true},
		{[]string{"start", "x"}, "", 0, true},
		{[]string{"start", "0", "1"}, "", 0, true},
	} {
		op, port, err := parse(x.args)
		if x.err {
			if err == nil {
				t.Errorf("%q: accepted as %s %d", x.args, op, port)
			}
			continue
		}
		if err != nil || op != x.op || port != x.port {
			t.Errorf("%q: got %s %d %v", x.args, op, port, err)
		}
	}
	if _, _, err := parse([]string{"2"}); !errors.Is(err, ls1024a.ErrInvalidPort) {
		t.Error(err)
	}
}

func pcieNode(name string, idx uint32) *fdt.Node {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], idx)
	return &fdt.Node{
		Name: name,
		Properties: map[string][]byte{
			"compatible":          []byte(ls1024a.Compatible + "\x00"),
			ls1024a.PortIndexProp: b[:],
		},
	}
}

func TestDo(t *testing.T) {
	m := regmap.NewMem(0x200)
	regmap.Register(ls1024a.SysconCompatible, m)
	defer regmap.Unregister(ls1024a.SysconCompatible)
	tree := dt.New(&fdt.Node{})

	var ports []uint
	f := func(l *ls1024a.Link) error {
		ports = append(ports, l.Port)
		return nil
	}
	var c Command
	found := false
	for _, x := range []struct {
		idx  uint32
		port int
	}{
		{0, -1},
		{1, 0},
		{1, 1},
	} {
		b := board.New(tree, pcieNode("pcie@1", x.idx))
		if err := c.do(b, x.port, f, &found); err != nil {
			t.Fatal(err)
		}
	}
	if !found || len(ports) != 2 || ports[0] != 0 || ports[1] != 1 {
		t.Error("ran on", ports, found)
	}

	b := board.New(tree, pcieNode("pcie@2", 2))
	if err := c.do(b, -1, f, &found); !errors.Is(err, ls1024a.ErrInvalidPort) {
		t.Error("port 2:", err)
	}
	if len(ports) != 2 {
		t.Error("ran on port 2")
	}
}

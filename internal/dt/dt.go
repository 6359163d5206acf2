// Copyright © 2021 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package dt looks up devices, properties and gpio pins in a flattened
// device tree.
package dt

import (
	"errors"
	"fmt"
	"io/ioutil"
	"sort"
	"strings"

	"github.com/platinasystems/fdt"
	"github.com/platinasystems/url"
)

var File = "/boot/linux.dtb"

var (
	ErrNotFound = errors.New("not found")
	ErrBadProp  = errors.New("malformed property")
)

type Tree struct {
	*fdt.Tree
}

// New wraps a tree rooted at root, as Load would after parsing.
func New(root *fdt.Node) *Tree {
	return &Tree{&fdt.Tree{Debug: false, IsLittleEndian: false, RootNode: root}}
}

// Load reads and parses the blob at path, which may be any url the url
// package opens.
func Load(path string) (*Tree, error) {
	r, err := url.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	b, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	t := &fdt.Tree{Debug: false, IsLittleEndian: false}
	if err = t.Parse(b); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if t.RootNode == nil {
		return nil, fmt.Errorf("%s: empty tree", path)
	}
	return &Tree{t}, nil
}

// Strings returns a string list property without the trailing empty entry.
func (t *Tree) Strings(n *fdt.Node, prop string) []string {
	b, found := n.Properties[prop]
	if !found || len(b) == 0 {
		return nil
	}
	s := t.PropStringSlice(b)
	if len(s) > 0 && s[len(s)-1] == "" {
		s = s[:len(s)-1]
	}
	return s
}

// Compatible reports whether n lists compatible.
func (t *Tree) Compatible(n *fdt.Node, compatible string) bool {
	for _, s := range t.Strings(n, "compatible") {
		if s == compatible {
			return true
		}
	}
	return false
}

// FindCompatible returns every node compatible with the given string,
// ordered by name.
func (t *Tree) FindCompatible(compatible string) (nodes []*fdt.Node) {
	t.EachProperty("compatible", compatible,
		func(n *fdt.Node, name, value string) {
			if t.Compatible(n, compatible) {
				nodes = append(nodes, n)
			}
		})
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].Name < nodes[j].Name
	})
	return
}

// Child returns the child of n called name, with or without a unit address.
func Child(n *fdt.Node, name string) *fdt.Node {
	if c, found := n.Children[name]; found {
		return c
	}
	var names []string
	for k := range n.Children {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		if strings.SplitN(k, "@", 2)[0] == name {
			return n.Children[k]
		}
	}
	return nil
}

func (t *Tree) U32s(n *fdt.Node, prop string) ([]uint32, error) {
	b, found := n.Properties[prop]
	if !found {
		return nil, fmt.Errorf("%s: %s: %w", n.Name, prop, ErrNotFound)
	}
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, fmt.Errorf("%s: %s: %w", n.Name, prop, ErrBadProp)
	}
	return t.PropUint32Slice(b), nil
}

func (t *Tree) U32(n *fdt.Node, prop string) (uint32, error) {
	v, err := t.U32s(n, prop)
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

// Index finds name in the names list property of n, such as clock-names or
// reset-names.
func (t *Tree) Index(n *fdt.Node, namesProp, name string) (int, error) {
	for i, s := range t.Strings(n, namesProp) {
		if s == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%s: %s %q: %w", n.Name, namesProp, name,
		ErrNotFound)
}

// Reg returns the first address and size pair of a node with one cell of
// each.
func (t *Tree) Reg(n *fdt.Node) (addr, size uint32, err error) {
	v, err := t.U32s(n, "reg")
	if err != nil {
		return
	}
	if len(v) < 2 {
		err = fmt.Errorf("%s: reg: %w", n.Name, ErrBadProp)
		return
	}
	return v[0], v[1], nil
}

// Interrupt returns the Linux number of the first interrupt of n.  A three
// cell GIC specifier is translated, shared peripheral interrupts start at 32.
func (t *Tree) Interrupt(n *fdt.Node) (int, error) {
	v, err := t.U32s(n, "interrupts")
	if err != nil {
		return -1, err
	}
	switch len(v) {
	case 1:
		return int(v[0]), nil
	case 3:
		if v[0] == 0 {
			return int(v[1]) + 32, nil
		}
		return int(v[1]) + 16, nil
	}
	return -1, fmt.Errorf("%s: interrupts: %w", n.Name, ErrBadProp)
}

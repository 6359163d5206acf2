// Copyright © 2021 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package clk provides clock gates.
package clk

import (
	"github.com/platinasystems/ls1024a-pcie/internal/regmap"
)

// Gate is an exclusively owned clock gate.
type Gate interface {
	Enable() error
	Disable() error
}

// Bit gates a clock with register bits that are set while it runs.
type Bit struct {
	regmap.Map
	Offset, Mask uint32
}

func (b *Bit) Enable() error  { return regmap.SetBits(b.Map, b.Offset, b.Mask) }
func (b *Bit) Disable() error { return regmap.ClearBits(b.Map, b.Offset, b.Mask) }

// Enabled reports whether the clock runs.
func (b *Bit) Enabled() (bool, error) { return regmap.Test(b.Map, b.Offset, b.Mask) }

// Fixed is a clock that another agent, such as the kernel clock framework,
// keeps running.
type Fixed struct{}

func (Fixed) Enable() error  { return nil }
func (Fixed) Disable() error { return nil }

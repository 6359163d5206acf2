// Copyright © 2021 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package reset drives reset domains.
package reset

import (
	"github.com/platinasystems/gpio"

	"github.com/platinasystems/ls1024a-pcie/internal/regmap"
)

// Control is one exclusively owned reset domain.
type Control interface {
	Assert() error
	Deassert() error
}

// Bit is a reset held by bits of a register.  The domain is in reset while
// the bits are set, or while they are clear with ActiveLow.
type Bit struct {
	regmap.Map
	Offset, Mask uint32
	ActiveLow    bool
}

func (b *Bit) Assert() error   { return b.set(!b.ActiveLow) }
func (b *Bit) Deassert() error { return b.set(b.ActiveLow) }

func (b *Bit) set(high bool) error {
	v := uint32(0)
	if high {
		v = b.Mask
	}
	return b.UpdateBits(b.Offset, b.Mask, v)
}

// Asserted reports whether the domain is held in reset.
func (b *Bit) Asserted() (bool, error) {
	v, err := b.Read(b.Offset)
	if err != nil {
		return false, err
	}
	return (v&b.Mask == b.Mask) != b.ActiveLow, nil
}

// GPIO is a reset line wired to a gpio pin, normally an active low _RST_L
// signal.
type GPIO struct {
	Pin       gpio.Pin
	ActiveLow bool
}

func (g *GPIO) Assert() error   { return g.Pin.SetValue(!g.ActiveLow) }
func (g *GPIO) Deassert() error { return g.Pin.SetValue(g.ActiveLow) }

// Copyright © 2021 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package phy

import (
	"errors"
	"fmt"
	"time"

	"github.com/jpillora/backoff"

	"github.com/platinasystems/ls1024a-pcie/internal/regmap"
)

// SerDes lane registers, relative to the lane base.  This is a generic lane
// layout, not the ls1024a SerDes; only boards that opt in drive it.
const (
	SerdesCtrl   = 0x0
	SerdesMode   = 0x4
	SerdesPower  = 0x8
	SerdesStatus = 0xc

	SerdesLaneStride = 0x10
)

const (
	serdesCtrlRstN   = 1 << 0
	serdesModeMask   = 0x3
	serdesPowerDown  = 1 << 0
	serdesStatusLock = 1 << 0
)

var serdesModes = map[Mode]uint32{
	ModePCIe: 0,
	ModeSATA: 1,
	ModeUSB3: 2,
}

var ErrNoLock = errors.New("serdes pll not locked")

// Serdes is one lane of a register driven SerDes block.
type Serdes struct {
	regmap.Map
	Base uint32
	Lane uint

	// LockAttempts bounds the wait for the lane PLL after power on.
	LockAttempts int
	LockMin      time.Duration
	LockMax      time.Duration
}

func (s *Serdes) reg(r uint32) uint32 {
	return s.Base + uint32(s.Lane)*SerdesLaneStride + r
}

func (s *Serdes) Init() error {
	return regmap.SetBits(s, s.reg(SerdesCtrl), serdesCtrlRstN)
}

func (s *Serdes) Exit() error {
	return regmap.ClearBits(s, s.reg(SerdesCtrl), serdesCtrlRstN)
}

func (s *Serdes) SetMode(m Mode) error {
	v, ok := serdesModes[m]
	if !ok {
		return fmt.Errorf("serdes lane %d: %s: unsupported", s.Lane, m)
	}
	return s.UpdateBits(s.reg(SerdesMode), serdesModeMask, v)
}

func (s *Serdes) PowerOn() error {
	if err := regmap.ClearBits(s, s.reg(SerdesPower), serdesPowerDown); err != nil {
		return err
	}
	attempts := s.LockAttempts
	if attempts <= 0 {
		attempts = 10
	}
	b := &backoff.Backoff{
		Min:    s.LockMin,
		Max:    s.LockMax,
		Factor: 2,
	}
	if b.Min <= 0 {
		b.Min = time.Millisecond
	}
	if b.Max < b.Min {
		b.Max = 10 * b.Min
	}
	for i := 0; i < attempts; i++ {
		locked, err := regmap.Test(s, s.reg(SerdesStatus), serdesStatusLock)
		if err != nil {
			return err
		}
		if locked {
			return nil
		}
		time.Sleep(b.Duration())
	}
	return fmt.Errorf("serdes lane %d: %w", s.Lane, ErrNoLock)
}

func (s *Serdes) PowerOff() error {
	return regmap.SetBits(s, s.reg(SerdesPower), serdesPowerDown)
}

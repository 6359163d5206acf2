// Copyright © 2021 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package phy sequences generic PHYs.
package phy

import (
	"errors"
	"fmt"

	"github.com/platinasystems/log"
)

var ErrNoPHY = errors.New("no available PHY")

type Mode int

const (
	ModeInvalid Mode = iota
	ModePCIe
	ModeSATA
	ModeUSB3
)

var modeNames = [...]string{
	ModeInvalid: "invalid",
	ModePCIe:    "pcie",
	ModeSATA:    "sata",
	ModeUSB3:    "usb3",
}

func (m Mode) String() string {
	if int(m) < len(modeNames) && m >= 0 {
		return modeNames[m]
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// PHY is an exclusively owned physical layer device.
type PHY interface {
	Init() error
	Exit() error
	SetMode(Mode) error
	PowerOn() error
	PowerOff() error
}

// Fixed is a PHY owned by the kernel; every step succeeds without touching
// hardware.
type Fixed struct{}

func (Fixed) Init() error        { return nil }
func (Fixed) Exit() error        { return nil }
func (Fixed) SetMode(Mode) error { return nil }
func (Fixed) PowerOn() error     { return nil }
func (Fixed) PowerOff() error    { return nil }

// Enable initializes p, selects mode and powers it on.  A failure unwinds
// only the steps that succeeded: a PHY whose mode or power could not be set
// is exited, never powered off.
func Enable(p PHY, mode Mode) error {
	if p == nil {
		return ErrNoPHY
	}
	if err := p.Init(); err != nil {
		return fmt.Errorf("phy init: %w", err)
	}
	if err := p.SetMode(mode); err != nil {
		exit(p)
		return fmt.Errorf("phy set mode %s: %w", mode, err)
	}
	if err := p.PowerOn(); err != nil {
		exit(p)
		return fmt.Errorf("phy power on: %w", err)
	}
	return nil
}

// Disable powers p off and exits it.
func Disable(p PHY) error {
	perr := p.PowerOff()
	if perr != nil {
		log.Print("daemon", "warn", "phy power off: ", perr)
	}
	if err := p.Exit(); err != nil {
		return fmt.Errorf("phy exit: %w", err)
	}
	if perr != nil {
		return fmt.Errorf("phy power off: %w", perr)
	}
	return nil
}

func exit(p PHY) {
	if err := p.Exit(); err != nil {
		log.Print("daemon", "warn", "phy exit: ", err)
	}
}

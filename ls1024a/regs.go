// Copyright © 2021 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package ls1024a

import (
	"fmt"

	"github.com/platinasystems/ls1024a-pcie/internal/regmap"
)

// Number of root complex ports on the chip.
const NPorts = 2

// Application register bank, shared by both ports.
const (
	cfgStride  = 0x20
	stsBase    = 0x40
	stsStride  = 0xc
	sts3Base   = 0x58
	intrBase   = 0x100
	intrStride = 0x10
)

// CFG0
const (
	DevTypeMask = 0xf
	DevTypeRC   = 0x4
)

// CFG5
const (
	AppInitRst  = 1 << 0
	LtssmEn     = 1 << 1
	AppRdyL23   = 1 << 2
	LinkDownRst = 1 << 9
)

// STS0
const (
	LinkReqRstNot = 1 << 0
	XmlhLinkUp    = 1 << 15
	RdlhLinkUp    = 1 << 16
)

// INTR_STS and INTR_EN
const (
	IntaAssert = 1 << iota
	IntaDeassert
	IntbAssert
	IntbDeassert
	IntcAssert
	IntcDeassert
	IntdAssert
	IntdDeassert
	IntrAER
	IntrPME
	IntrHP
	IntrLinkAutoBW
	IntrMSI
)

var intrNames = [...]string{
	"inta", "inta-deassert",
	"intb", "intb-deassert",
	"intc", "intc-deassert",
	"intd", "intd-deassert",
	"aer", "pme", "hp", "link-auto-bw", "msi",
}

// Regs is the window of the application bank belonging to one port.  It
// addresses registers by logical number, never by raw offset.
type Regs struct {
	regmap.Map
	Port uint
}

func (r Regs) Cfg(n uint) uint32 { return uint32(r.Port*cfgStride + n*4) }
func (r Regs) Sts(n uint) uint32 { return uint32(stsBase + r.Port*stsStride + n*4) }
func (r Regs) Sts3() uint32      { return uint32(sts3Base + r.Port*4) }
func (r Regs) IntrSts() uint32   { return uint32(intrBase + r.Port*intrStride) }
func (r Regs) IntrEn() uint32    { return uint32(intrBase + r.Port*intrStride + 4) }

func (r Regs) String() string { return fmt.Sprint("pcie", r.Port) }

// IntrString names the bits set in an INTR_STS or INTR_EN value.
func IntrString(v uint32) (s string) {
	for i, name := range intrNames {
		if v&(1<<uint(i)) != 0 {
			if len(s) > 0 {
				s += ","
			}
			s += name
		}
	}
	if len(s) == 0 {
		s = "none"
	}
	return
}

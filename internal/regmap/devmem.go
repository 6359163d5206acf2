// Copyright © 2021 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

//go:build linux
// +build linux

package regmap

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

var DevMemPath = "/dev/mem"

// DevMem is a physical register window mapped from /dev/mem.
type DevMem struct {
	Base, Size uint64

	mem  []byte
	regs unsafe.Pointer
	n    int
}

// OpenDevMem maps size bytes of physical address space at base.  The base
// need not be page aligned.
func OpenDevMem(base, size uint64) (*DevMem, error) {
	f, err := os.OpenFile(DevMemPath, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pageMask := uint64(os.Getpagesize() - 1)
	start := base &^ pageMask
	skip := base - start
	length := int((skip + size + pageMask) &^ pageMask)

	mem, err := unix.Mmap(int(f.Fd()), int64(start), length,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %s 0x%x: %w", DevMemPath, base, err)
	}
	return &DevMem{
		Base: base,
		Size: size,
		mem:  mem,
		regs: unsafe.Pointer(&mem[skip]),
		n:    int(size / 4),
	}, nil
}

func (d *DevMem) Close() error {
	if d.mem == nil {
		return nil
	}
	err := unix.Munmap(d.mem)
	d.mem, d.regs, d.n = nil, nil, 0
	return err
}

func (d *DevMem) reg(off uint32) (*uint32, error) {
	if err := check(off, d.n); err != nil {
		return nil, err
	}
	return (*uint32)(unsafe.Pointer(uintptr(d.regs) + uintptr(off))), nil
}

func (d *DevMem) Read(off uint32) (uint32, error) {
	p, err := d.reg(off)
	if err != nil {
		return 0, err
	}
	return atomic.LoadUint32(p), nil
}

func (d *DevMem) Write(off, v uint32) error {
	p, err := d.reg(off)
	if err != nil {
		return err
	}
	atomic.StoreUint32(p, v)
	return nil
}

func (d *DevMem) UpdateBits(off, mask, v uint32) error {
	p, err := d.reg(off)
	if err != nil {
		return err
	}
	for {
		old := atomic.LoadUint32(p)
		x := old&^mask | v&mask
		if x == old {
			return nil
		}
		if atomic.CompareAndSwapUint32(p, old, x) {
			return nil
		}
	}
}

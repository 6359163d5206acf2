// Copyright © 2021 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package regmap provides 32-bit register banks addressed by byte offset.
//
// Every bank offers the same three operations: read, write and an atomic
// update of a masked set of bits.  Callers never see the backing memory.
package regmap

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrNotFound  = errors.New("no such syscon")
	ErrUnaligned = errors.New("unaligned register offset")
	ErrRange     = errors.New("register offset out of range")
)

// Map is a bank of 32-bit registers.
//
// UpdateBits replaces the bits of mask with those of v as a single atomic
// step with respect to every other Write and UpdateBits on the same bank.
// It does not store anything if the register already holds the result.
type Map interface {
	Read(off uint32) (uint32, error)
	Write(off, v uint32) error
	UpdateBits(off, mask, v uint32) error
}

// SetBits and ClearBits are the usual shorthands for UpdateBits.
func SetBits(m Map, off, bits uint32) error   { return m.UpdateBits(off, bits, bits) }
func ClearBits(m Map, off, bits uint32) error { return m.UpdateBits(off, bits, 0) }

// Test reports whether every bit of mask is set in the register.
func Test(m Map, off, mask uint32) (bool, error) {
	v, err := m.Read(off)
	if err != nil {
		return false, err
	}
	return v&mask == mask, nil
}

func check(off uint32, size int) error {
	if off&3 != 0 {
		return fmt.Errorf("0x%x: %w", off, ErrUnaligned)
	}
	if int(off/4) >= size {
		return fmt.Errorf("0x%x: %w", off, ErrRange)
	}
	return nil
}

var syscons struct {
	sync.Mutex
	byCompatible map[string]Map
}

// Register makes m available to every Lookup of compatible.  Banks
// registered this way are shared by all ports of a chip.
func Register(compatible string, m Map) {
	syscons.Lock()
	defer syscons.Unlock()
	if syscons.byCompatible == nil {
		syscons.byCompatible = make(map[string]Map)
	}
	syscons.byCompatible[compatible] = m
}

// Unregister removes the bank registered for compatible.
func Unregister(compatible string) {
	syscons.Lock()
	defer syscons.Unlock()
	delete(syscons.byCompatible, compatible)
}

// Lookup returns the bank registered for the compatible string.
func Lookup(compatible string) (Map, error) {
	syscons.Lock()
	defer syscons.Unlock()
	m, found := syscons.byCompatible[compatible]
	if !found {
		return nil, fmt.Errorf("%s: %w", compatible, ErrNotFound)
	}
	return m, nil
}

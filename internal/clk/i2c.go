// Copyright © 2021 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package clk

import (
	"github.com/platinasystems/i2c"
)

// SMBus is the byte-data access an I2C clock buffer needs.
type SMBus interface {
	ReadByte(reg uint8) (uint8, error)
	WriteByte(reg, v uint8) error
}

// I2C gates one output of a PCIe reference clock buffer through its output
// enable register.
type I2C struct {
	SMBus
	Reg  uint8
	Mask uint8
}

func (c *I2C) Enable() error  { return c.update(c.Mask) }
func (c *I2C) Disable() error { return c.update(0) }

func (c *I2C) update(v uint8) error {
	i2c.Lock.Lock()
	defer i2c.Lock.Unlock()
	old, err := c.ReadByte(c.Reg)
	if err != nil {
		return err
	}
	x := old&^c.Mask | v
	if x == old {
		return nil
	}
	return c.WriteByte(c.Reg, x)
}

// Dev is a device on an i2c bus, opened for each transfer.
type Dev struct {
	Bus, Addr int
}

func (d *Dev) do(rw i2c.RW, reg uint8, data *i2c.SMBusData) (err error) {
	var bus i2c.Bus

	err = bus.Open(d.Bus)
	if err != nil {
		return
	}
	defer bus.Close()

	err = bus.ForceSlaveAddress(d.Addr)
	if err != nil {
		return
	}
	return bus.Do(rw, reg, i2c.ByteData, data)
}

func (d *Dev) ReadByte(reg uint8) (uint8, error) {
	var data i2c.SMBusData
	err := d.do(i2c.Read, reg, &data)
	return data[0], err
}

func (d *Dev) WriteByte(reg, v uint8) error {
	var data i2c.SMBusData
	data[0] = v
	return d.do(i2c.Write, reg, &data)
}

// Copyright © 2021 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

//go:build linux
// +build linux

package irq

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/platinasystems/log"
	"golang.org/x/sys/unix"
)

var (
	ErrHangup = errors.New("uio device error or hangup")
	ErrNVAL   = errors.New("uio device not open")
)

// UIO services a Line from a Linux userspace i/o device.  The device becomes
// readable when the kernel sees the interrupt; writing 1 enables it again.
type UIO struct {
	*Line

	path string
	fd   int
	stop int // eventfd written by Close

	once sync.Once
}

// OpenUIO opens the uio device at path for the line.
func OpenUIO(path string, l *Line) (*UIO, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	stop, err := unix.Eventfd(0, unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	return &UIO{Line: l, path: path, fd: fd, stop: stop}, nil
}

func (u *UIO) enable() error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], 1)
	_, err := unix.Write(u.fd, b[:])
	return err
}

// Run fires the line for every interrupt until Close.
func (u *UIO) Run() error {
	var b [4]byte
	if err := u.enable(); err != nil {
		return fmt.Errorf("%s: %w", u.path, err)
	}
	fds := []unix.PollFd{
		{Fd: int32(u.fd), Events: unix.POLLIN},
		{Fd: int32(u.stop), Events: unix.POLLIN},
	}
	for {
		_, err := unix.Poll(fds, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("%s: poll: %w", u.path, err)
		}
		if fds[1].Revents != 0 {
			return nil
		}
		if err = pollErr(fds[0].Revents); err != nil {
			return fmt.Errorf("%s: %w", u.path, err)
		}
		if fds[0].Revents&unix.POLLIN == 0 {
			continue
		}
		if _, err = unix.Read(u.fd, b[:]); err != nil {
			return fmt.Errorf("%s: %w", u.path, err)
		}
		u.Fire()
		if err = u.enable(); err != nil {
			log.Print("daemon", "err", u.path, ": ", err)
		}
	}
}

// pollErr reports a device that can no longer interrupt.
func pollErr(revents int16) error {
	switch {
	case revents&unix.POLLNVAL != 0:
		return ErrNVAL
	case revents&(unix.POLLERR|unix.POLLHUP) != 0:
		return ErrHangup
	}
	return nil
}

// Close stops Run.  The device is released once Run has returned.
func (u *UIO) Close() (err error) {
	u.once.Do(func() {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], 1)
		_, err = unix.Write(u.stop, b[:])
	})
	return
}

// Release closes the device descriptors.
func (u *UIO) Release() error {
	unix.Close(u.stop)
	return unix.Close(u.fd)
}

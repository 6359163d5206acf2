// Copyright © 2021 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package irq multiplexes handlers onto physical interrupt lines.
package irq

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	ErrBusy     = errors.New("interrupt line busy")
	ErrNotFound = errors.New("no such interrupt action")
)

// Return tells the line whether a handler serviced the interrupt.
type Return int

const (
	None Return = iota
	Handled
)

func (r Return) String() string {
	if r == Handled {
		return "handled"
	}
	return "none"
}

// Handler runs on every occurrence of the line.  It must not block.
type Handler func() Return

type Flags uint

const (
	Shared Flags = 1 << iota
	NoThread
)

type action struct {
	name  string
	flags Flags
	dev   interface{}
	h     Handler
}

// Line is one physical interrupt.  Any number of Shared handlers may be
// requested on it.
type Line struct {
	count     uint64 // first for 64-bit alignment on arm
	unhandled uint64

	Number int

	mu      sync.Mutex
	actions atomic.Value // []*action
}

var lines struct {
	sync.Mutex
	byNumber map[int]*Line
}

// Get returns the line with the given number, creating it on first use.
func Get(n int) *Line {
	lines.Lock()
	defer lines.Unlock()
	if lines.byNumber == nil {
		lines.byNumber = make(map[int]*Line)
	}
	l, found := lines.byNumber[n]
	if !found {
		l = &Line{Number: n}
		lines.byNumber[n] = l
	}
	return l
}

func (l *Line) load() []*action {
	a, _ := l.actions.Load().([]*action)
	return a
}

// Request adds h to the line.  Every handler of a line must be Shared for
// more than one to be requested.  dev identifies the action to Free; shared
// actions need distinct, comparable devs.
func (l *Line) Request(name string, flags Flags, dev interface{},
	h Handler) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	old := l.load()
	for _, a := range old {
		if a.flags&flags&Shared == 0 || a.dev == dev {
			return fmt.Errorf("irq %d: %s: %w by %s", l.Number, name,
				ErrBusy, a.name)
		}
	}
	a := make([]*action, len(old), len(old)+1)
	copy(a, old)
	l.actions.Store(append(a, &action{name, flags, dev, h}))
	return nil
}

// Free removes the handler requested with name and dev.
func (l *Line) Free(name string, dev interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	old := l.load()
	for i, a := range old {
		if a.name == name && a.dev == dev {
			x := make([]*action, 0, len(old)-1)
			x = append(x, old[:i]...)
			l.actions.Store(append(x, old[i+1:]...))
			return nil
		}
	}
	return fmt.Errorf("irq %d: %s: %w", l.Number, name, ErrNotFound)
}

// Fire runs every handler of the line and reports whether any of them
// claimed the interrupt.
func (l *Line) Fire() Return {
	atomic.AddUint64(&l.count, 1)
	ret := None
	for _, a := range l.load() {
		if a.h() == Handled {
			ret = Handled
		}
	}
	if ret == None {
		atomic.AddUint64(&l.unhandled, 1)
	}
	return ret
}

// Count returns the occurrences of the line and how many of those no
// handler claimed.
func (l *Line) Count() (count, unhandled uint64) {
	return atomic.LoadUint64(&l.count), atomic.LoadUint64(&l.unhandled)
}

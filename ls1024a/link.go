// Copyright © 2021 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package ls1024a

import (
	"errors"
	"fmt"
	"time"

	"github.com/jpillora/backoff"
	"github.com/platinasystems/log"

	"github.com/platinasystems/ls1024a-pcie/internal/regmap"
)

var ErrLinkDown = errors.New("link down")

// Wait bounds the poll for link up.
type Wait struct {
	Attempts int
	Min, Max time.Duration
}

// DefaultWait is the DesignWare host timing: 10 polls 90 to 100ms apart.
var DefaultWait = Wait{
	Attempts: 10,
	Min:      90 * time.Millisecond,
	Max:      100 * time.Millisecond,
}

type State int

const (
	Idle State = iota
	Configuring
	Training
	LinkUp
)

var stateNames = [...]string{
	Idle:        "idle",
	Configuring: "configuring",
	Training:    "training",
	LinkUp:      "up",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Status is a decoded STS0.
type Status struct {
	Raw uint32
	// Data link layer up; the authoritative link state.
	Up bool
	// Physical layer up.
	PhyUp     bool
	ReqRstNot bool
}

func (s Status) String() string {
	return fmt.Sprintf("dl %v phy %v req-rst-not %v (%#08x)",
		s.Up, s.PhyUp, s.ReqRstNot, s.Raw)
}

// Link controls the training state machine of one port.  StartLink and
// StopLink must be serialized by the caller; LinkUp, Status and State may
// run concurrently with anything.
type Link struct {
	Regs
	Wait Wait
}

func (l *Link) Status() (s Status, err error) {
	s.Raw, err = l.Read(l.Sts(0))
	s.Up = s.Raw&RdlhLinkUp != 0
	s.PhyUp = s.Raw&XmlhLinkUp != 0
	s.ReqRstNot = s.Raw&LinkReqRstNot != 0
	return
}

// LinkUp reads the data link layer up bit.  A failed read is link down.
func (l *Link) LinkUp() bool {
	up, err := regmap.Test(l, l.Sts(0), RdlhLinkUp)
	return err == nil && up
}

// State derives the training state from the live registers.
func (l *Link) State() (State, error) {
	if s, err := l.Status(); err != nil {
		return Idle, err
	} else if s.Up {
		return LinkUp, nil
	}
	cfg5, err := l.Read(l.Cfg(5))
	if err != nil {
		return Idle, err
	}
	if cfg5&LtssmEn != 0 {
		return Training, nil
	}
	cfg0, err := l.Read(l.Cfg(0))
	if err != nil {
		return Idle, err
	}
	if cfg0&DevTypeMask == DevTypeRC {
		return Configuring, nil
	}
	return Idle, nil
}

// StartLink puts the port in root complex mode and, unless the link is
// already up, restarts training.  It then waits for the link; a link that
// does not come up is logged, not returned, since it may still train later.
func (l *Link) StartLink() error {
	if !l.LinkUp() {
		if err := regmap.ClearBits(l, l.Cfg(5), LtssmEn); err != nil {
			return fmt.Errorf("%s: ltssm disable: %w", l, err)
		}
	}
	if err := l.UpdateBits(l.Cfg(0), DevTypeMask, DevTypeRC); err != nil {
		return fmt.Errorf("%s: device type: %w", l, err)
	}
	if !l.LinkUp() {
		if err := regmap.SetBits(l, l.Cfg(5), LtssmEn|AppInitRst); err != nil {
			return fmt.Errorf("%s: ltssm enable: %w", l, err)
		}
	}
	if err := l.WaitForLink(); err != nil {
		log.Print("daemon", "warn", l, ": link not up after reconfiguration")
	}
	return nil
}

// StopLink disables the training state machine.
func (l *Link) StopLink() error {
	if err := regmap.ClearBits(l, l.Cfg(5), LtssmEn); err != nil {
		return fmt.Errorf("%s: ltssm disable: %w", l, err)
	}
	return nil
}

// WaitForLink polls LinkUp for at most Wait.Attempts times.
func (l *Link) WaitForLink() error {
	w := l.Wait
	if w.Attempts <= 0 {
		w = DefaultWait
	}
	b := &backoff.Backoff{
		Min:    w.Min,
		Max:    w.Max,
		Factor: 1.1,
	}
	for i := 0; i < w.Attempts; i++ {
		if l.LinkUp() {
			log.Print("daemon", "info", l, ": link up")
			return nil
		}
		time.Sleep(b.Duration())
	}
	if s, err := l.Status(); err == nil {
		log.Print("daemon", "debug", l, ": no link: ", s)
	}
	return fmt.Errorf("%s: %w", l, ErrLinkDown)
}

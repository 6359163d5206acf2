// Copyright © 2021 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package pcied

import (
	"sync"

	"github.com/platinasystems/log"

	"github.com/platinasystems/ls1024a-pcie/ls1024a"
)

// Host trains the link of every port it is given.  Enumeration is left to
// the kernel once the link is up.
type Host struct {
	mu    sync.Mutex
	ports []*ls1024a.Port
}

func (h *Host) Add(p *ls1024a.Port) error {
	if err := p.Link.StartLink(); err != nil {
		return err
	}
	h.mu.Lock()
	h.ports = append(h.ports, p)
	h.mu.Unlock()
	if !p.Link.LinkUp() {
		log.Print("daemon", "note", p, ": waiting for link")
	}
	return nil
}

func (h *Host) Remove(p *ls1024a.Port) {
	h.mu.Lock()
	for i, x := range h.ports {
		if x == p {
			h.ports = append(h.ports[:i], h.ports[i+1:]...)
			break
		}
	}
	h.mu.Unlock()
	if err := p.Link.StopLink(); err != nil {
		log.Print("daemon", "warn", p, ": ", err)
	}
}

// Ports returns the ports added so far.
func (h *Host) Ports() []*ls1024a.Port {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*ls1024a.Port(nil), h.ports...)
}

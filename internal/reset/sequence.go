// Copyright © 2021 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package reset

import (
	"fmt"

	"github.com/platinasystems/log"
)

// Named is a Control with the name it was acquired by.
type Named struct {
	Name string
	Control
}

// Sequence is an ordered set of reset domains.  Assert walks the sequence
// front to back; Deassert walks it back to front.
type Sequence []Named

// Assert holds every domain in reset.  It stops at the first failure and
// leaves the domains it already asserted in reset.
func (s Sequence) Assert() error {
	for _, r := range s {
		if err := r.Assert(); err != nil {
			err = fmt.Errorf("assert %s reset: %w", r.Name, err)
			log.Print("daemon", "err", err)
			return err
		}
	}
	return nil
}

// Deassert releases every domain.  If any release fails the whole sequence
// is asserted again before the release error is returned, so the domains
// are never left partly released.
func (s Sequence) Deassert() error {
	for i := len(s) - 1; i >= 0; i-- {
		if err := s[i].Deassert(); err != nil {
			err = fmt.Errorf("deassert %s reset: %w", s[i].Name, err)
			log.Print("daemon", "err", err)
			if aerr := s.Assert(); aerr != nil {
				log.Print("daemon", "warn", "rollback: ", aerr)
			}
			return err
		}
	}
	return nil
}

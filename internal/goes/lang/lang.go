// Copyright © 2021 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package lang selects command text in the language of $LANG, falling back
// to en_US.UTF-8.
package lang

import "os"

const EnUS = "en_US.UTF-8"

// Lang overrides $LANG if set.
var Lang string

type Alt map[string]string

func (m Alt) String() string {
	l := Lang
	if len(l) == 0 {
		l = os.Getenv("LANG")
	}
	if s, found := m[l]; found {
		return s
	}
	return m[EnUS]
}

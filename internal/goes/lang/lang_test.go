// Copyright © 2021 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package lang

import "testing"

func Test(t *testing.T) {
	defer func() { Lang = "" }()
	hello := Alt{EnUS: "hello", "fr_FR.UTF-8": "bonjour"}
	for lang, want := range map[string]string{
		"fr_FR.UTF-8": "bonjour",
		EnUS:          "hello",
		"de_DE.UTF-8": "hello",
	} {
		Lang = lang
		if s := hello.String(); s != want {
			t.Errorf("%s: %q != %q", lang, s, want)
		}
	}
}

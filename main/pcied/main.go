// Copyright © 2021 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

//go:build linux
// +build linux

// pcied brings up the pcie ports of an ls1024a board and serves their
// interrupt muxes.
package main

import (
	"fmt"
	"os"

	"github.com/platinasystems/ls1024a-pcie/cmd/pcie"
	"github.com/platinasystems/ls1024a-pcie/cmd/pcied"
	"github.com/platinasystems/ls1024a-pcie/internal/goes"
	"github.com/platinasystems/ls1024a-pcie/internal/goes/cmd"
	"github.com/platinasystems/ls1024a-pcie/internal/goes/lang"
)

func Goes() *goes.Goes {
	return &goes.Goes{
		NAME:  "pcied",
		USAGE: "pcied [COMMAND [ARGS]...]",
		APROPOS: lang.Alt{
			lang.EnUS: "ls1024a pcie root complex",
		},
		ByName: map[string]cmd.Cmd{
			"pcie":  pcie.Command{},
			"pcied": &pcied.Command{},
		},
	}
}

func main() {
	if err := Goes().Main(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

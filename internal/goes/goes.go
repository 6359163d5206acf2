// Copyright © 2021 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package goes dispatches a multi-command program: the first argument, or
// the name the program was run by, selects the command.
package goes

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/platinasystems/log"

	"github.com/platinasystems/ls1024a-pcie/internal/goes/cmd"
	"github.com/platinasystems/ls1024a-pcie/internal/goes/lang"
)

type Goes struct {
	NAME    string
	USAGE   string
	APROPOS lang.Alt
	MAN     lang.Alt
	ByName  map[string]cmd.Cmd

	// Stdout receives helper text, os.Stdout if nil.
	Stdout io.Writer
}

type closer interface {
	Close() error
}

func (g *Goes) String() string { return g.NAME }

// Names returns the sorted names of the commands that aren't hidden.
func (g *Goes) Names() []string {
	names := make([]string, 0, len(g.ByName))
	for k, v := range g.ByName {
		if !cmd.WhatKind(v).IsHidden() {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}

// Main runs the command named by args[0].  Without args it uses os.Args,
// dropping the program name unless that is itself a command.
func (g *Goes) Main(args ...string) error {
	if len(args) == 0 {
		args = os.Args
		if len(args) > 0 {
			if _, found := g.ByName[filepath.Base(args[0])]; found {
				args[0] = filepath.Base(args[0])
			} else {
				args = args[1:]
			}
		}
	}
	if len(args) == 0 {
		return g.helper("help")
	}
	cmd.Swap(args)
	name, args := args[0], args[1:]
	if _, found := cmd.Helpers[name]; found {
		return g.helper(name, args...)
	}
	v, found := g.ByName[name]
	if !found {
		return fmt.Errorf("%s: command not found", name)
	}
	if cmd.WhatKind(v).IsDaemon() {
		if c, ok := v.(closer); ok {
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGTERM, syscall.SIGINT)
			defer signal.Stop(sig)
			go func() {
				if _, ok := <-sig; ok {
					log.Print("daemon", "info", name, ": stopping")
					if err := c.Close(); err != nil {
						log.Print("daemon", "err", name, ": ", err)
					}
				}
			}()
		}
	}
	err := v.Main(args...)
	if err == io.EOF {
		err = nil
	}
	if err != nil {
		err = fmt.Errorf("%s: %w", name, err)
	}
	return err
}

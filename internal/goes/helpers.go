// Copyright © 2021 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package goes

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/platinasystems/ls1024a-pcie/internal/goes/cmd"
	"github.com/platinasystems/ls1024a-pcie/internal/goes/lang"
)

type maner interface {
	Man() lang.Alt
}

func (g *Goes) Apropos() lang.Alt {
	if g.APROPOS != nil {
		return g.APROPOS
	}
	return lang.Alt{lang.EnUS: "a multi-command program"}
}

func (g *Goes) Usage() string {
	if len(g.USAGE) > 0 {
		return g.USAGE
	}
	return g.NAME + " COMMAND [ARGS]...\n\t" +
		g.NAME + " { apropos | help | man | usage } [COMMAND]..."
}

func (g *Goes) Man() lang.Alt {
	if g.MAN != nil {
		return g.MAN
	}
	return lang.Alt{lang.EnUS: "\nSEE ALSO\n\tapropos, help, man, usage"}
}

func (g *Goes) stdout() io.Writer {
	if g.Stdout != nil {
		return g.Stdout
	}
	return os.Stdout
}

// commands returns the named commands, or the program itself without names.
func (g *Goes) commands(names []string) ([]cmd.Cmd, error) {
	if len(names) == 0 {
		return []cmd.Cmd{g}, nil
	}
	cmds := make([]cmd.Cmd, 0, len(names))
	for _, name := range names {
		v, found := g.ByName[name]
		if !found {
			return nil, fmt.Errorf("%s: not found", name)
		}
		cmds = append(cmds, v)
	}
	return cmds, nil
}

// helper prints the apropos, help, man or usage text of each named command.
// help of the program itself also lists its commands.
func (g *Goes) helper(name string, args ...string) error {
	w := g.stdout()
	if name == "apropos" && len(args) == 0 {
		args = g.Names()
	}
	cmds, err := g.commands(args)
	if err != nil {
		return err
	}
	for i, v := range cmds {
		switch name {
		case "apropos":
			fmt.Fprintf(w, "%-16s%s\n", v, v.Apropos())
		case "help", "usage":
			fmt.Fprint(w, "usage:\t", strings.TrimSpace(v.Usage()), "\n")
			if name == "help" && v == cmd.Cmd(g) {
				for _, n := range g.Names() {
					fmt.Fprintf(w, "\t%-16s%s\n", n,
						g.ByName[n].Apropos())
				}
			}
		case "man":
			if i > 0 {
				fmt.Fprintln(w)
			}
			man(w, v)
		}
	}
	return nil
}

func man(w io.Writer, v cmd.Cmd) {
	fmt.Fprint(w, "NAME\n\t", v, " - ", v.Apropos(), "\n\nSYNOPSIS\n\t",
		strings.TrimSpace(v.Usage()), "\n")
	if m, found := v.(maner); found {
		s := strings.TrimSuffix(m.Man().String(), "\n")
		if !strings.HasPrefix(s, "\n") {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, s)
	}
}

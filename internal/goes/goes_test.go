// Copyright © 2021 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package goes

import (
	"bytes"
	"errors"
	"io"
	"reflect"
	"testing"

	"github.com/platinasystems/ls1024a-pcie/internal/goes/cmd"
	"github.com/platinasystems/ls1024a-pcie/internal/goes/lang"
)

type echo struct {
	args []string
	err  error
	kind cmd.Kind
}

func (*echo) String() string { return "echo" }
func (*echo) Usage() string  { return "echo [ARG]..." }
func (*echo) Apropos() lang.Alt {
	return lang.Alt{lang.EnUS: "print arguments"}
}
func (e *echo) Kind() cmd.Kind { return e.kind }
func (e *echo) Main(args ...string) error {
	e.args = args
	return e.err
}

func TestDispatch(t *testing.T) {
	e := &echo{}
	g := &Goes{
		NAME:   "test",
		ByName: map[string]cmd.Cmd{"echo": e, "hidden": &echo{kind: cmd.Hidden}},
	}
	if err := g.Main("echo", "a", "b"); err != nil {
		t.Fatal(err)
	}
	if want := []string{"a", "b"}; !reflect.DeepEqual(e.args, want) {
		t.Error("args", e.args)
	}
	if err := g.Main("nope"); err == nil {
		t.Error("nope found")
	}
	e.err = io.EOF
	if err := g.Main("echo"); err != nil {
		t.Error("EOF not dropped:", err)
	}
	errX := errors.New("x")
	e.err = errX
	if err := g.Main("echo"); !errors.Is(err, errX) || err.Error() != "echo: x" {
		t.Error("got", err)
	}
	if err := g.Main("echo", "-usage"); err != nil {
		t.Error("usage:", err)
	}
	if err := g.Main("man", "nope"); err == nil {
		t.Error("man nope")
	}
	if names := g.Names(); !reflect.DeepEqual(names, []string{"echo"}) {
		t.Error("names", names)
	}
}

func TestHelpers(t *testing.T) {
	var out bytes.Buffer
	g := &Goes{
		NAME:   "test",
		ByName: map[string]cmd.Cmd{"echo": &echo{}, "hidden": &echo{kind: cmd.Hidden}},
		Stdout: &out,
	}
	for _, x := range []struct {
		args []string
		want string
	}{
		{[]string{"echo", "-h"}, "usage:\techo [ARG]...\n"},
		{[]string{"usage", "echo"}, "usage:\techo [ARG]...\n"},
		{[]string{"apropos"}, "echo            print arguments\n"},
		{[]string{"man", "echo"},
			"NAME\n\techo - print arguments\n\nSYNOPSIS\n\techo [ARG]...\n"},
		{[]string{"help"},
			"usage:\ttest COMMAND [ARGS]...\n\t" +
				"test { apropos | help | man | usage } [COMMAND]...\n" +
				"\techo            print arguments\n"},
	} {
		out.Reset()
		if err := g.Main(x.args...); err != nil {
			t.Error(x.args, err)
			continue
		}
		if s := out.String(); s != x.want {
			t.Errorf("%q: got %q want %q", x.args, s, x.want)
		}
	}
	if err := g.Main("usage", "nope"); err == nil {
		t.Error("usage nope")
	}
}

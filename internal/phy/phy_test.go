// Copyright © 2021 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package phy

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/platinasystems/ls1024a-pcie/internal/regmap"
)

type fake struct {
	fail map[string]error
	ops  []string
}

func (f *fake) step(name string) error {
	f.ops = append(f.ops, name)
	return f.fail[name]
}

func (f *fake) Init() error        { return f.step("init") }
func (f *fake) Exit() error        { return f.step("exit") }
func (f *fake) SetMode(Mode) error { return f.step("mode") }
func (f *fake) PowerOn() error     { return f.step("on") }
func (f *fake) PowerOff() error    { return f.step("off") }

func TestEnable(t *testing.T) {
	errStep := errors.New("step failed")
	for _, x := range []struct {
		fail string
		want []string
	}{
		{"", []string{"init", "mode", "on"}},
		{"init", []string{"init"}},
		{"mode", []string{"init", "mode", "exit"}},
		{"on", []string{"init", "mode", "on", "exit"}},
	} {
		f := &fake{fail: map[string]error{x.fail: errStep}}
		err := Enable(f, ModePCIe)
		if x.fail == "" && err != nil {
			t.Errorf("unexpected %v", err)
		}
		if x.fail != "" && !errors.Is(err, errStep) {
			t.Errorf("%s: got %v", x.fail, err)
		}
		if !reflect.DeepEqual(f.ops, x.want) {
			t.Errorf("%s: got %q want %q", x.fail, f.ops, x.want)
		}
	}
}

func TestEnableNil(t *testing.T) {
	if err := Enable(nil, ModePCIe); !errors.Is(err, ErrNoPHY) {
		t.Error("got", err)
	}
}

func TestDisable(t *testing.T) {
	f := &fake{}
	if err := Disable(f); err != nil {
		t.Fatal(err)
	}
	if want := []string{"off", "exit"}; !reflect.DeepEqual(f.ops, want) {
		t.Errorf("got %q want %q", f.ops, want)
	}
}

func TestSerdes(t *testing.T) {
	m := regmap.NewMem(0x100)
	s := &Serdes{Map: m, Base: 0x40, Lane: 1, LockAttempts: 3, LockMin: time.Microsecond}
	base := uint32(0x50)
	m.Poke(base+SerdesPower, serdesPowerDown)
	m.Poke(base+SerdesMode, 0x3)

	if err := s.Init(); err != nil {
		t.Fatal(err)
	}
	if err := s.SetMode(ModeSATA); err != nil {
		t.Fatal(err)
	}
	if got, _ := m.Read(base + SerdesMode); got != 1 {
		t.Errorf("mode got %d", got)
	}
	if err := s.PowerOn(); !errors.Is(err, ErrNoLock) {
		t.Errorf("power on without lock: %v", err)
	}
	m.Poke(base+SerdesStatus, serdesStatusLock)
	if err := Enable(s, ModePCIe); err != nil {
		t.Fatal(err)
	}
	if got, _ := m.Read(base + SerdesPower); got&serdesPowerDown != 0 {
		t.Error("still powered down")
	}
	if err := Disable(s); err != nil {
		t.Fatal(err)
	}
	if got, _ := m.Read(base + SerdesCtrl); got&serdesCtrlRstN != 0 {
		t.Error("lane not back in reset")
	}
	if err := s.SetMode(Mode(9)); err == nil {
		t.Error("bogus mode accepted")
	}
}

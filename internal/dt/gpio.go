// Copyright © 2021 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package dt

import (
	"strconv"
	"strings"

	"github.com/platinasystems/fdt"
	"github.com/platinasystems/gpio"
)

// Pins maps the gpio pins described under each aliased gpio controller.
// Pin nodes are named NAME@INDEX and carry gpio-pin-desc plus one of
// output-high, output-low or input.
func (t *Tree) Pins() gpio.PinMap {
	aliases := make(gpio.GpioAliasMap)
	pins := make(gpio.PinMap)

	t.MatchNode("aliases", func(n *fdt.Node) {
		for p, pn := range n.Properties {
			if strings.Contains(p, "gpio") {
				val := strings.Split(string(pn), "\x00")
				v := strings.Split(val[0], "/")
				aliases[p] = v[len(v)-1]
			}
		}
	})

	t.EachProperty("gpio-controller", "",
		func(n *fdt.Node, name, value string) {
			for bank, al := range aliases {
				if al != n.Name {
					continue
				}
				for _, c := range n.Children {
					if _, found := c.Properties["gpio-pin-desc"]; !found {
						continue
					}
					pn := strings.SplitN(c.Name, "@", 2)
					if len(pn) != 2 {
						continue
					}
					i, err := strconv.Atoi(pn[1])
					if err != nil {
						continue
					}
					for _, mode := range []string{
						"output-high",
						"output-low",
						"input",
					} {
						if _, found := c.Properties[mode]; found {
							pins[pn[0]] = gpio.GpioPinMode[mode] |
								gpio.GpioBankToBase[bank] |
								gpio.Pin(i)
							break
						}
					}
				}
			}
		})
	return pins
}

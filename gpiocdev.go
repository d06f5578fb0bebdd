// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

package hx711

import "github.com/warthog618/gpiod"

// New creates a HX711 from the data (DOUT) and clock (PD_SCK) line offsets
// on the given GPIO chip.
func New(c *gpiod.Chip, dout, sclk int, options ...Option) (*HX711, error) {
	d, err := c.RequestLine(dout, gpiod.AsInput)
	if err != nil {
		return nil, err
	}
	k, err := c.RequestLine(sclk, gpiod.AsOutput(0))
	if err != nil {
		d.Close()
		return nil, err
	}
	h, err := NewFromPins(d, k, options...)
	if err != nil {
		d.Close()
		k.Close()
		return nil, err
	}
	return h, nil
}

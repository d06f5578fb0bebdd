// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

package hx711

// Option specifies a construction option for the HX711.
type Option func(*HX711)

// WithGain selects the gain and input channel for readings.
//
// Gains other than the power on default, GainA128, require the power up
// sequence to be replayed during construction.
func WithGain(g Gain) Option {
	return func(h *HX711) {
		h.gain = g
	}
}

// WithScale sets the initial scale, overriding DefaultScale.
//
// Suitable for restoring a scale previously derived by CalibrateScale.
func WithScale(scale float64) Option {
	return func(h *HX711) {
		h.scale = scale
	}
}

// WithOffset sets the initial tare offset.
//
// Suitable for restoring an offset previously captured by Tare, typically
// in combination with WithoutTare.
func WithOffset(offset float64) Option {
	return func(h *HX711) {
		h.offset = offset
	}
}

// WithClock sets the timebase used to measure pulse widths.
//
// The default is the system monotonic clock.
func WithClock(c Clock) Option {
	return func(h *HX711) {
		h.clk = c
	}
}

// WithoutTare disables the taring performed during construction.
//
// The offset retains its initial value, zero unless set with WithOffset, so
// readings remain absolute until Tare is called.
func WithoutTare() Option {
	return func(h *HX711) {
		h.notare = true
	}
}

// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

package hx711_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/hx711"
	"github.com/warthog618/hx711/sim"
)

func newHX711(t *testing.T, s *sim.Sim, options ...hx711.Option) *hx711.HX711 {
	t.Helper()
	options = append([]hx711.Option{hx711.WithClock(s)}, options...)
	h, err := hx711.NewFromPins(s.DataPin(), s.ClockPin(), options...)
	require.Nil(t, err)
	require.NotNil(t, h)
	return h
}

func TestNewFromPins(t *testing.T) {
	s := sim.New()
	s.SetSteady(0)
	h := newHX711(t, s)
	defer h.Close()

	// construction tares
	assert.Equal(t, float64(0), h.Offset())
	assert.Equal(t, float64(0), h.LatestReading())
	assert.Equal(t, hx711.GainA128, h.Gain())
	assert.Equal(t, float64(hx711.DefaultScale), h.Scale())
}

func TestNewFromPinsWithGain(t *testing.T) {
	s := sim.New()
	s.SetSteady(0)
	h := newHX711(t, s, hx711.WithGain(hx711.GainB32), hx711.WithoutTare())
	defer h.Close()

	assert.Equal(t, hx711.GainB32, h.Gain())
	assert.Equal(t, hx711.GainB32, s.Gain())
	// power up replay - 24 pulses plus the two gain selection pulses
	bb := s.Bursts()
	require.Equal(t, 1, len(bb))
	assert.Equal(t, 26, bb[0].Pulses)
}

func TestNewFromPinsTareUnstable(t *testing.T) {
	s := sim.New()
	// each tare attempt averages ten samples then confirms with one more
	// reading, which is kept far from the tared zero.
	for i := 0; i < 10; i++ {
		s.Queue(0, 0, 0, 0, 0, 0, 0, 0, 0, 0)
		s.Queue(100000)
	}
	h, err := hx711.NewFromPins(s.DataPin(), s.ClockPin(), hx711.WithClock(s))
	assert.Equal(t, hx711.ErrTareUnstable, err)
	assert.Nil(t, h)
}

func TestReadRaw(t *testing.T) {
	s := sim.New()
	h := newHX711(t, s, hx711.WithoutTare())
	defer h.Close()

	patterns := []struct {
		name string
		p    uint32
		v    int32
	}{
		{"zero", 0x000000, 0},
		{"one", 0x000001, 1},
		{"minus two", 0xFFFFFE, -2},
		{"max", 0x7FFFFE, 8388606},
		{"min", 0x800001, -8388607},
	}
	for _, p := range patterns {
		tf := func(t *testing.T) {
			s.QueuePattern(p.p)
			v, err := h.ReadRaw()
			assert.Nil(t, err)
			assert.Equal(t, p.v, v)
		}
		t.Run(p.name, tf)
	}
}

func TestReadRawInvalidData(t *testing.T) {
	s := sim.New()
	h := newHX711(t, s, hx711.WithoutTare())
	defer h.Close()

	s.QueuePattern(0x7FFFFF)
	_, err := h.ReadRaw()
	assert.Equal(t, hx711.ErrInvalidData, err)

	s.QueuePattern(0x800000)
	_, err = h.ReadRaw()
	assert.Equal(t, hx711.ErrInvalidData, err)
}

func TestReadRawNotReady(t *testing.T) {
	s := sim.New()
	h := newHX711(t, s, hx711.WithoutTare())
	defer h.Close()

	_, err := h.ReadRaw()
	assert.Equal(t, hx711.ErrNotReady, err)
}

func TestReadRawAverage(t *testing.T) {
	s := sim.New()
	h := newHX711(t, s, hx711.WithoutTare())
	defer h.Close()

	s.Queue(1000, 1002, 998, 1001, 999)
	v, err := h.ReadRawAverage(5)
	assert.Nil(t, err)
	assert.Equal(t, float64(1000), v)

	// count less than one reads one
	s.Queue(42)
	v, err = h.ReadRawAverage(0)
	assert.Nil(t, err)
	assert.Equal(t, float64(42), v)

	// invalid samples are discarded and retried
	s.QueuePattern(0x7FFFFF)
	s.Queue(4, 6)
	v, err = h.ReadRawAverage(2)
	assert.Nil(t, err)
	assert.Equal(t, float64(5), v)
}

func TestRead(t *testing.T) {
	s := sim.New()
	h := newHX711(t, s,
		hx711.WithoutTare(),
		hx711.WithOffset(-950),
		hx711.WithScale(10))
	defer h.Close()

	assert.True(t, math.IsNaN(h.LatestReading()))

	s.Queue(1050)
	v, err := h.Read()
	assert.Nil(t, err)
	assert.Equal(t, float64(10), v)
	assert.Equal(t, float64(10), h.LatestReading())
}

func TestReadAverage(t *testing.T) {
	s := sim.New()
	h := newHX711(t, s,
		hx711.WithoutTare(),
		hx711.WithOffset(-950),
		hx711.WithScale(10))
	defer h.Close()

	s.Queue(1000, 1002, 998, 1001, 999)
	v, err := h.ReadAverage(5)
	assert.Nil(t, err)
	assert.Equal(t, float64(5), v)
	assert.Equal(t, float64(5), h.LatestReading())

	// mean of a constant sequence is the constant
	s.SetSteady(1000)
	v, err = h.ReadAverage(3)
	assert.Nil(t, err)
	assert.Equal(t, float64(5), v)
}

func TestTare(t *testing.T) {
	s := sim.New()
	s.SetSteady(1234)
	h := newHX711(t, s, hx711.WithoutTare())
	defer h.Close()

	err := h.Tare()
	assert.Nil(t, err)
	assert.Equal(t, float64(-1234), h.Offset())

	v, err := h.Read()
	assert.Nil(t, err)
	assert.Equal(t, float64(0), v)
}

func TestCalibrateScale(t *testing.T) {
	s := sim.New()
	s.SetSteady(500)
	h := newHX711(t, s, hx711.WithoutTare())
	defer h.Close()

	err := h.Tare()
	require.Nil(t, err)

	// 100 units loaded
	s.SetSteady(3500)
	scale, err := h.CalibrateScale(100)
	assert.Nil(t, err)
	assert.Equal(t, float64(30), scale)
	assert.Equal(t, float64(30), h.Scale())

	v, err := h.Read()
	assert.Nil(t, err)
	assert.Equal(t, float64(100), v)

	// reference weight must be positive
	_, err = h.CalibrateScale(0)
	assert.Equal(t, hx711.ErrInvalidWeight, err)
	_, err = h.CalibrateScale(-5)
	assert.Equal(t, hx711.ErrInvalidWeight, err)
}

func TestNormalise(t *testing.T) {
	s := sim.New()
	h := newHX711(t, s,
		hx711.WithoutTare(),
		hx711.WithOffset(-950),
		hx711.WithScale(10))
	defer h.Close()

	assert.Equal(t, float64(5), h.Normalise(1000))
	assert.Equal(t, float64(-95), h.Normalise(0))
	assert.Equal(t, (123456-950.0)/10, h.Normalise(123456))
}

func TestReadRawTimingViolation(t *testing.T) {
	s := sim.New()
	s.SetSteady(1000)
	h := newHX711(t, s, hx711.WithoutTare())
	defer h.Close()

	s.InjectSlowPulses(1)
	_, err := h.ReadRaw()
	assert.Equal(t, hx711.ErrTimingViolation, err)

	// the transfer is abandoned at the slow pulse and the power up
	// sequence replayed to bring the device out of power down.
	bb := s.Bursts()
	require.Equal(t, 2, len(bb))
	assert.Equal(t, 1, bb[0].Pulses)
	assert.Equal(t, 25, bb[1].Pulses)

	v, err := h.ReadRaw()
	assert.Nil(t, err)
	assert.Equal(t, int32(1000), v)
}

func TestGainPulseTimingViolation(t *testing.T) {
	s := sim.New()
	s.SetSteady(1000)
	h := newHX711(t, s, hx711.WithoutTare())
	defer h.Close()

	// the 24 data pulses complete, the gain selection pulse is slow.
	s.InjectSlowPulseAt(25)
	_, err := h.ReadRaw()
	assert.Equal(t, hx711.ErrTimingViolation, err)

	bb := s.Bursts()
	require.Equal(t, 2, len(bb))
	assert.Equal(t, 25, bb[0].Pulses)
	assert.Equal(t, 25, bb[1].Pulses)
}

func TestReadRawAverageTimingViolation(t *testing.T) {
	s := sim.New()
	s.SetSteady(1000)
	h := newHX711(t, s, hx711.WithoutTare())
	defer h.Close()

	// violations are absorbed by the averaging layer
	s.InjectSlowPulses(1)
	v, err := h.ReadRawAverage(3)
	assert.Nil(t, err)
	assert.Equal(t, float64(1000), v)
}

func TestSetGain(t *testing.T) {
	s := sim.New()
	s.SetSteady(0)
	h := newHX711(t, s, hx711.WithoutTare())
	defer h.Close()

	err := h.SetGain(hx711.GainA64)
	assert.Nil(t, err)
	assert.Equal(t, hx711.GainA64, h.Gain())
	assert.Equal(t, hx711.GainA64, s.Gain())

	bb := s.Bursts()
	require.Equal(t, 1, len(bb))
	assert.Equal(t, 27, bb[0].Pulses)
}

func TestClose(t *testing.T) {
	s := sim.New()
	s.SetSteady(0)
	h := newHX711(t, s)

	err := h.Close()
	assert.Nil(t, err)
	assert.True(t, s.Closed())

	err = h.Close()
	assert.Equal(t, hx711.ErrClosed, err)

	_, err = h.ReadRaw()
	assert.Equal(t, hx711.ErrClosed, err)
	_, err = h.ReadRawAverage(2)
	assert.Equal(t, hx711.ErrClosed, err)
	_, err = h.Read()
	assert.Equal(t, hx711.ErrClosed, err)
	err = h.Tare()
	assert.Equal(t, hx711.ErrClosed, err)
	_, err = h.CalibrateScale(100)
	assert.Equal(t, hx711.ErrClosed, err)
	err = h.SetGain(hx711.GainB32)
	assert.Equal(t, hx711.ErrClosed, err)
}

func TestFatalPinError(t *testing.T) {
	s := sim.New()
	s.SetSteady(1000)
	h := newHX711(t, s, hx711.WithoutTare())
	defer h.Close()

	edata := errors.New("data gone")
	s.FailData(edata)
	_, err := h.ReadRaw()
	assert.Equal(t, edata, err)

	// fatal errors are not absorbed by the averaging layer
	_, err = h.ReadRawAverage(3)
	assert.Equal(t, edata, err)
}

func TestFatalClockError(t *testing.T) {
	s := sim.New()
	s.SetSteady(1000)
	h := newHX711(t, s, hx711.WithoutTare())
	defer h.Close()

	eclk := errors.New("clock gone")
	s.FailClock(eclk)
	_, err := h.ReadRaw()
	assert.Equal(t, eclk, err)

	err = h.Tare()
	assert.Equal(t, eclk, err)
}

func TestGainString(t *testing.T) {
	assert.Equal(t, "A128", hx711.GainA128.String())
	assert.Equal(t, "A64", hx711.GainA64.String())
	assert.Equal(t, "B32", hx711.GainB32.String())
}

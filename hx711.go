// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

// Package hx711 provides a bit bashed device driver for HX711 load cell
// amplifiers.
//
// The HX711 is driven via two GPIO lines - an output clock line (PD_SCK) and
// an input data line (DOUT). The device clocks out 24-bit samples, MSB first,
// with the gain and input channel for the subsequent conversion selected by
// the number of additional clock pulses appended to each transfer.
//
// Holding the clock line high for 60µs or longer forces the device into
// power down, so the driver times every pulse and treats a slow pulse as a
// lost transfer, replaying the power up sequence to return the device to a
// known state before retrying.
package hx711

import (
	"errors"
	"math"
	"sync"
	"time"
)

// Gain selects the device input channel and amplifier gain.
type Gain int

const (
	// GainA128 selects channel A with a gain of 128. This is the device
	// power on default.
	GainA128 Gain = iota

	// GainA64 selects channel A with a gain of 64.
	GainA64

	// GainB32 selects channel B with a gain of 32.
	GainB32
)

// pulses returns the number of clock pulses appended to a transfer to select
// the gain for the next conversion.
func (g Gain) pulses() int {
	switch g {
	case GainA64:
		return 3
	case GainB32:
		return 2
	default:
		return 1
	}
}

func (g Gain) String() string {
	switch g {
	case GainA64:
		return "A64"
	case GainB32:
		return "B32"
	default:
		return "A128"
	}
}

const (
	// dataBits is the number of data bits clocked out of the device per
	// sample.
	dataBits = 24

	// maxPulseWidth is the clock pulse budget in microseconds. A pulse
	// this wide or wider has put the device into power down.
	maxPulseWidth = 60

	// powerUpPulses is the number of pulses added to the gain selection
	// pulses to replay the full power up sequence.
	powerUpPulses = 24

	// readyPolls bounds the wait for the device to signal a sample is
	// available.
	readyPolls = 9999

	pollInterval = time.Millisecond
	settleTime   = time.Millisecond

	// reserved patterns indicating an out of range conversion.
	sentinelMax = 0x7FFFFF
	sentinelMin = 0x800000

	tareSamples      = 10
	calibrateSamples = 5
	tareTolerance    = 0.5
	tareAttempts     = 10
	resyncAttempts   = 8
)

// DefaultScale is the scale applied to raw samples until the device is
// calibrated.
const DefaultScale = 35

// ErrClosed indicates the device is closed.
var ErrClosed = errors.New("closed")

// ErrNotReady indicates the device did not present a sample within the poll
// bound.
var ErrNotReady = errors.New("device not ready")

// ErrTimingViolation indicates a clock pulse exceeded the pulse budget and
// the device dropped into power down mid-transfer.
var ErrTimingViolation = errors.New("pulse exceeded timing budget")

// ErrInvalidData indicates the device returned a reserved out of range
// pattern.
var ErrInvalidData = errors.New("invalid data")

// ErrTareUnstable indicates taring failed to converge on a stable zero.
var ErrTareUnstable = errors.New("tare failed to converge")

// ErrInvalidWeight indicates the reference weight passed to CalibrateScale
// is not positive.
var ErrInvalidWeight = errors.New("reference weight must be positive")

// DataPin is the interface required of the DOUT line.
type DataPin interface {
	Value() (int, error)
	Close() error
}

// ClockPin is the interface required of the PD_SCK line.
type ClockPin interface {
	SetValue(int) error
	Close() error
}

// Clock provides the timebase used to measure pulse widths and to pace
// polling and settling.
type Clock interface {
	// Now returns a monotonic timestamp in microseconds.
	Now() int64

	// Sleep blocks the caller for at least the given duration.
	Sleep(time.Duration)
}

// HX711 reads weight samples from a connected HX711.
//
// The two lines are exclusively owned by the HX711 - a physical device must
// not be shared between driver instances.
type HX711 struct {
	mu   sync.Mutex
	dout DataPin
	sclk ClockPin
	clk  Clock
	gain Gain

	// raw sample value corresponding to zero load, set by Tare.
	offset float64

	// raw units per calibrated unit.
	scale float64

	// last calibrated reading, NaN until the first read completes.
	latest float64

	notare bool
}

// NewFromPins creates a HX711 from already acquired data and clock lines.
//
// The clock line must be configured as an output, initially inactive, and
// the data line as an input. On return the device has been brought to a
// known state: the requested gain is selected and, unless disabled with
// WithoutTare, the scale has been tared.
func NewFromPins(dout DataPin, sclk ClockPin, options ...Option) (*HX711, error) {
	h := &HX711{
		dout:   dout,
		sclk:   sclk,
		clk:    sysClock{},
		scale:  DefaultScale,
		latest: math.NaN(),
	}
	for _, option := range options {
		option(h)
	}
	if h.gain != GainA128 {
		if err := h.configure(); err != nil {
			return nil, err
		}
	}
	if !h.notare {
		if err := h.settleTare(); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// configure replays the power up sequence until the device has latched the
// selected gain.
func (h *HX711) configure() error {
	for {
		err := h.resync()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
	}
}

// settleTare repeatedly tares until a subsequent reading is within tolerance
// of zero, confirming the offset has converged.
func (h *HX711) settleTare() error {
	for i := 0; i < tareAttempts; i++ {
		if err := h.Tare(); err != nil {
			return err
		}
		v, err := h.Read()
		if err != nil {
			return err
		}
		if math.Abs(v) < tareTolerance {
			return nil
		}
	}
	return ErrTareUnstable
}

// Close releases the lines allocated to the device.
func (h *HX711) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.dout == nil {
		return ErrClosed
	}
	err := h.dout.Close()
	if cerr := h.sclk.Close(); err == nil {
		err = cerr
	}
	h.dout = nil
	h.sclk = nil
	return err
}

// Gain returns the currently selected gain and channel.
func (h *HX711) Gain() Gain {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.gain
}

// SetGain selects the gain and input channel for subsequent readings.
//
// Reconfiguration replays the device power up sequence and so blocks until
// the device responds.
func (h *HX711) SetGain(g Gain) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.dout == nil {
		return ErrClosed
	}
	h.gain = g
	return h.configure()
}

// Offset returns the current tare offset.
func (h *HX711) Offset() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.offset
}

// Scale returns the current scale.
func (h *HX711) Scale() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.scale
}

// LatestReading returns the most recent calibrated reading, or NaN if no
// reading has yet completed.
func (h *HX711) LatestReading() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest
}

// ReadRaw returns a single raw sample from the device.
//
// Transient failures are returned as ErrNotReady, ErrTimingViolation or
// ErrInvalidData and may be retried. Other errors are fatal.
func (h *HX711) ReadRaw() (int32, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.dout == nil {
		return 0, ErrClosed
	}
	return h.readRaw()
}

// ReadRawAverage returns the mean of count raw samples.
//
// Transient read failures are absorbed and the sample retried, so the call
// blocks until count samples have been collected. A count less than one is
// treated as one. Only fatal errors are returned.
func (h *HX711) ReadRawAverage(count int) (float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.readRawAverage(count)
}

// ReadAverage returns the calibrated mean of count samples and caches it as
// the latest reading.
func (h *HX711) ReadAverage(count int) (float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	raw, err := h.readRawAverage(count)
	if err != nil {
		return 0, err
	}
	v := h.normalise(raw)
	h.latest = v
	return v, nil
}

// Read returns a single calibrated reading.
func (h *HX711) Read() (float64, error) {
	return h.ReadAverage(1)
}

// Tare zeroes the scale, capturing the current load as the offset so
// subsequent readings are relative to it.
//
// Blocks until ten raw samples have been collected.
func (h *HX711) Tare() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	raw, err := h.readRawAverage(tareSamples)
	if err != nil {
		return err
	}
	h.offset = -raw
	return nil
}

// CalibrateScale derives the scale from a known reference weight currently
// loading the cell, and returns the new scale.
//
// The cell should be tared, unloaded, before the reference weight is placed.
func (h *HX711) CalibrateScale(weight float64) (float64, error) {
	if weight <= 0 {
		return 0, ErrInvalidWeight
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	raw, err := h.readRawAverage(calibrateSamples)
	if err != nil {
		return 0, err
	}
	h.scale = (raw + h.offset) / weight
	return h.scale, nil
}

// Normalise converts a raw sample value into calibrated units using the
// current offset and scale.
func (h *HX711) Normalise(raw float64) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.normalise(raw)
}

func (h *HX711) normalise(raw float64) float64 {
	return (raw + h.offset) / h.scale
}

// retryable distinguishes transient read failures, which the averaging layer
// absorbs, from fatal errors.
func retryable(err error) bool {
	return err == ErrNotReady || err == ErrTimingViolation || err == ErrInvalidData
}

func (h *HX711) readRawAverage(count int) (float64, error) {
	if h.dout == nil {
		return 0, ErrClosed
	}
	if count < 1 {
		count = 1
	}
	sum := float64(0)
	for n := 0; n < count; {
		v, err := h.readRaw()
		if err != nil {
			if retryable(err) {
				continue
			}
			return 0, err
		}
		sum += float64(v)
		n++
	}
	return sum / float64(count), nil
}

// readRaw performs one complete transfer - readiness wait, 24 data pulses,
// gain selection pulses and settling - and decodes the result.
func (h *HX711) readRaw() (int32, error) {
	if err := h.sclk.SetValue(0); err != nil {
		return 0, err
	}
	if err := h.waitReady(); err != nil {
		return 0, err
	}
	var d uint32
	for i := 0; i < dataBits; i++ {
		v, width, err := h.clockIn()
		if err != nil {
			return 0, err
		}
		if width >= maxPulseWidth {
			return 0, h.recover()
		}
		d = d<<1 | uint32(v)&1
	}
	if err := h.pulseGain(false); err != nil {
		if err == ErrTimingViolation {
			return 0, h.recover()
		}
		return 0, err
	}
	h.clk.Sleep(settleTime)
	if d == sentinelMax || d == sentinelMin {
		return 0, ErrInvalidData
	}
	return decode(d), nil
}

// waitReady polls the data line until the device signals a sample is
// available (data low).
func (h *HX711) waitReady() error {
	for i := 0; i < readyPolls; i++ {
		v, err := h.dout.Value()
		if err != nil {
			return err
		}
		if v == 0 {
			return nil
		}
		h.clk.Sleep(pollInterval)
	}
	return ErrNotReady
}

// clockIn issues one clock pulse, sampling the data line while the clock is
// high, and returns the sampled bit and the pulse width in microseconds.
func (h *HX711) clockIn() (int, int64, error) {
	start := h.clk.Now()
	if err := h.sclk.SetValue(1); err != nil {
		return 0, 0, err
	}
	v, err := h.dout.Value()
	if err != nil {
		return 0, 0, err
	}
	if err = h.sclk.SetValue(0); err != nil {
		return 0, 0, err
	}
	return v, h.clk.Now() - start, nil
}

// pulse issues one clock pulse and returns its width in microseconds.
func (h *HX711) pulse() (int64, error) {
	start := h.clk.Now()
	if err := h.sclk.SetValue(1); err != nil {
		return 0, err
	}
	if err := h.sclk.SetValue(0); err != nil {
		return 0, err
	}
	return h.clk.Now() - start, nil
}

// pulseGain issues the clock pulses that select the gain and channel for the
// next conversion.
//
// With powerUp set the full power up sequence is replayed, which brings the
// device out of power down, and the device must signal ready before the
// pulses are issued.
func (h *HX711) pulseGain(powerUp bool) error {
	n := h.gain.pulses()
	if powerUp {
		n += powerUpPulses
		if err := h.waitReady(); err != nil {
			return err
		}
	}
	for i := 0; i < n; i++ {
		w, err := h.pulse()
		if err != nil {
			return err
		}
		if w >= maxPulseWidth {
			return ErrTimingViolation
		}
	}
	return nil
}

// recover returns the device to a known state after a timing violation.
//
// The interrupted transfer is lost, so the caller always sees the violation,
// but any fatal error raised during the resync takes precedence.
func (h *HX711) recover() error {
	if err := h.resync(); err != nil && !retryable(err) {
		return err
	}
	return ErrTimingViolation
}

// resync replays the power up sequence to bring the device out of power
// down. Violations during the replay restart it, up to the attempt cap.
func (h *HX711) resync() error {
	err := ErrTimingViolation
	for i := 0; i < resyncAttempts && err == ErrTimingViolation; i++ {
		err = h.pulseGain(true)
	}
	return err
}

// decode converts a 24-bit two's complement pattern into a signed value.
func decode(d uint32) int32 {
	if d&sentinelMin != 0 {
		return -int32((d^0xFFFFFF) + 1)
	}
	return int32(d)
}

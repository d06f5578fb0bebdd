// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

// Package sim provides a simulated HX711 for testing the driver without
// hardware.
//
// The simulator presents the two line interfaces the driver requires and
// behaves as the device does on the wire: it signals readiness by driving
// data low, shifts out a queued 24-bit sample MSB first as the clock is
// pulsed, and latches the gain selected by the pulses appended to each
// train. It also provides the driver timebase, advancing a virtual clock as
// edges are driven, so pulse widths, and so timing violations, are fully
// scriptable.
package sim

import (
	"sync"
	"time"

	"github.com/warthog618/hx711"
)

const (
	// virtual cost of driving one clock edge.
	edgeCost = 1

	// additional width reported for a slow pulse, comfortably beyond the
	// driver's pulse budget.
	slowCost = 100

	dataBits = 24
)

// Burst records one train of clock pulses issued by the driver.
type Burst struct {
	// Pulses is the total number of pulses in the train.
	//
	// A complete transfer is 24 data pulses plus the gain selection
	// pulses. Anything shorter is a transfer abandoned mid-train.
	Pulses int
}

// Sim simulates an HX711 wired to a data and a clock line.
//
// The zero value is a device that never becomes ready. Samples are provided
// with Queue or SetSteady.
type Sim struct {
	mu sync.Mutex

	// samples served once each, ahead of steady.
	queue []uint32

	// sample served whenever the queue is empty.
	steady    uint32
	hasSteady bool

	gain hx711.Gain

	// virtual time in microseconds.
	now int64

	// global pulse count, and the set of pulses to report slow.
	total int
	slow  map[int]bool

	clockHigh bool
	inBurst   bool
	pulses    int
	frame     uint32
	serving   bool
	bit       int
	out       int

	bursts []Burst

	dataErr  error
	clockErr error

	dataClosed  bool
	clockClosed bool
}

// New creates a Sim with no samples available.
func New() *Sim {
	return &Sim{slow: map[int]bool{}}
}

// Queue appends raw sample values to be served, one per transfer, ahead of
// any steady value.
func (s *Sim) Queue(vv ...int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vv {
		s.queue = append(s.queue, uint32(v)&0xFFFFFF)
	}
}

// QueuePattern appends raw 24-bit patterns to be served, allowing the
// reserved out of range patterns to be injected.
func (s *Sim) QueuePattern(pp ...uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range pp {
		s.queue = append(s.queue, p&0xFFFFFF)
	}
}

// SetSteady sets the raw sample value served whenever the queue is empty.
func (s *Sim) SetSteady(v int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steady = uint32(v) & 0xFFFFFF
	s.hasSteady = true
}

// InjectSlowPulses marks the next n pulses to be reported wider than the
// device power down threshold.
func (s *Sim) InjectSlowPulses(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 1; i <= n; i++ {
		s.slow[s.total+i] = true
	}
}

// InjectSlowPulseAt marks the nth pulse from now to be reported wider than
// the device power down threshold.
func (s *Sim) InjectSlowPulseAt(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slow[s.total+n] = true
}

// FailData causes subsequent reads of the data line to return err.
func (s *Sim) FailData(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataErr = err
}

// FailClock causes subsequent writes to the clock line to return err.
func (s *Sim) FailClock(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clockErr = err
}

// Gain returns the gain most recently latched by a completed pulse train.
func (s *Sim) Gain() hx711.Gain {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gain
}

// Bursts returns the pulse trains issued by the driver so far, including
// any train still pending finalisation.
func (s *Sim) Bursts() []Burst {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalise()
	bb := make([]Burst, len(s.bursts))
	copy(bb, s.bursts)
	return bb
}

// Closed returns true once both lines have been closed.
func (s *Sim) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dataClosed && s.clockClosed
}

// DataPin returns the simulated DOUT line.
func (s *Sim) DataPin() hx711.DataPin {
	return dataPin{s}
}

// ClockPin returns the simulated PD_SCK line.
func (s *Sim) ClockPin() hx711.ClockPin {
	return clockPin{s}
}

// Now returns the virtual time in microseconds.
//
// Sim implements hx711.Clock so the driver under test shares the virtual
// timebase.
func (s *Sim) Now() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Sleep advances the virtual time without blocking.
func (s *Sim) Sleep(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now += d.Microseconds()
}

// value reads the data line level.
//
// While the clock is high the line carries the current data bit. While the
// clock is idle the line carries the readiness signal - low when a sample
// is available.
func (s *Sim) value() (int, error) {
	if s.dataErr != nil {
		return 0, s.dataErr
	}
	if s.clockHigh {
		return s.out, nil
	}
	s.finalise()
	if len(s.queue) > 0 || s.hasSteady {
		return 0, nil
	}
	return 1, nil
}

// setClock drives the clock line.
//
// Each rising edge shifts the next frame bit onto the data line, or counts
// as a gain selection pulse once the frame is exhausted.
func (s *Sim) setClock(v int) error {
	if s.clockErr != nil {
		return s.clockErr
	}
	high := v != 0
	if high == s.clockHigh {
		return nil
	}
	s.clockHigh = high
	s.now += edgeCost
	if !high {
		return nil
	}
	if !s.inBurst {
		s.beginBurst()
	}
	s.total++
	if s.slow[s.total] {
		delete(s.slow, s.total)
		s.now += slowCost
	}
	s.pulses++
	s.out = 1
	if s.serving && s.bit < dataBits {
		s.out = int(s.frame >> (dataBits - 1 - s.bit) & 1)
		s.bit++
	}
	return nil
}

func (s *Sim) beginBurst() {
	s.inBurst = true
	s.pulses = 0
	s.bit = 0
	s.serving = false
	if len(s.queue) > 0 {
		s.frame = s.queue[0]
		s.queue = s.queue[1:]
		s.serving = true
	} else if s.hasSteady {
		s.frame = s.steady
		s.serving = true
	}
}

// finalise closes out the current pulse train, latching the gain selected
// by the pulses beyond the 24 data bits.
func (s *Sim) finalise() {
	if !s.inBurst {
		return
	}
	s.inBurst = false
	s.bursts = append(s.bursts, Burst{Pulses: s.pulses})
	switch s.pulses - dataBits {
	case 1:
		s.gain = hx711.GainA128
	case 2:
		s.gain = hx711.GainB32
	case 3:
		s.gain = hx711.GainA64
	}
}

type dataPin struct {
	s *Sim
}

func (p dataPin) Value() (int, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	return p.s.value()
}

func (p dataPin) Close() error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	p.s.dataClosed = true
	return nil
}

type clockPin struct {
	s *Sim
}

func (p clockPin) SetValue(v int) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	return p.s.setClock(v)
}

func (p clockPin) Close() error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	p.s.clockClosed = true
	return nil
}

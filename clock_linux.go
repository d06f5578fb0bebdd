// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

package hx711

import (
	"time"

	"golang.org/x/sys/unix"
)

// sysClock is the default timebase, reading CLOCK_MONOTONIC directly to
// keep the per-pulse measurement overhead to a minimum.
type sysClock struct{}

func (sysClock) Now() int64 {
	var ts unix.Timespec
	unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts)
	return int64(ts.Sec)*1000000 + int64(ts.Nsec)/1000
}

func (sysClock) Sleep(d time.Duration) {
	time.Sleep(d)
}

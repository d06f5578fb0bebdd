// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build !linux
// +build !linux

package hx711

import "time"

var sysEpoch = time.Now()

// sysClock is the default timebase on platforms without a direct monotonic
// clock syscall wrapper.
type sysClock struct{}

func (sysClock) Now() int64 {
	return time.Since(sysEpoch).Microseconds()
}

func (sysClock) Sleep(d time.Duration) {
	time.Sleep(d)
}

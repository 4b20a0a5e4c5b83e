// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package streamring

import (
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// wakeConsumer wakes any thread futex-waiting on the header's wake_futex
// word, after bumping its value so the consumer's stale-read check cannot
// miss the wakeup.
func wakeConsumer(h header) {
	h.bumpFutex()
	addr := h.ptr32(offWakeFutex)
	unix.Syscall(unix.SYS_FUTEX, uintptr(unsafe.Pointer(addr)), uintptr(unix.FUTEX_WAKE), 1)
}

// futexWait blocks until the futex word no longer equals expect, or until
// timeout elapses. A spurious return is always safe: callers recheck the
// condition that made them wait.
func futexWait(h header, expect uint32, timeout time.Duration) {
	addr := h.ptr32(offWakeFutex)
	ts := unix.Timespec{
		Sec:  int64(timeout / time.Second),
		Nsec: int64(timeout % time.Second),
	}
	unix.Syscall6(unix.SYS_FUTEX, uintptr(unsafe.Pointer(addr)), uintptr(unix.FUTEX_WAIT),
		uintptr(expect), uintptr(unsafe.Pointer(&ts)), 0, 0)
}

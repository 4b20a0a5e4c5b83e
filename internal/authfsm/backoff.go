// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package authfsm

import "time"

// RefreshBackoff computes the retry policy for the Refreshing state: base
// 500ms, doubling, capped at 5s, 3 attempts max. attempt is 1-indexed (the
// first retry). ok is false once the attempt budget is exhausted, signaling
// the caller to feed RefreshFailed instead of retrying again.
func RefreshBackoff(attempt int) (delay time.Duration, ok bool) {
	const (
		base     = 500 * time.Millisecond
		maxDelay = 5 * time.Second
		maxTry   = 3
	)
	if attempt < 1 || attempt > maxTry {
		return 0, false
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d > maxDelay {
			d = maxDelay
			break
		}
	}
	return d, true
}

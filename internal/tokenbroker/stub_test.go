// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package tokenbroker

import "os"

func writeStub(path string) error {
	return os.WriteFile(path, []byte("stale"), 0o644)
}

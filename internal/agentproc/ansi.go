// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package agentproc

import "regexp"

// No third-party ANSI-stripping package appears among the example
// manifests as a real (non-indirect) dependency for this exact purpose, so
// this is a small stdlib regexp rather than an added dependency.
var ansiEscape = regexp.MustCompile(`\x1b(?:\[[0-9;?]*[a-zA-Z]|\][^\x07]*\x07|[PX^_].*?\x1b\\|[()#][0-9A-Za-z])`)

// stripANSI removes terminal escape sequences from a line before it is
// interpreted as JSON.
func stripANSI(line []byte) []byte {
	return ansiEscape.ReplaceAll(line, nil)
}

// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// unifiedDiff renders a unified diff between before and after for relPath,
// used to populate SessionState.diff_summary after a repository write so
// clients can show a change preview without re-reading the working tree.
func unifiedDiff(relPath, before, after string) ([]byte, error) {
	if before == after {
		return nil, nil
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "a/" + relPath,
		ToFile:   "b/" + relPath,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return nil, err
	}
	return []byte(strings.TrimRight(text, "\n")), nil
}

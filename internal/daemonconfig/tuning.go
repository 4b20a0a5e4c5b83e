// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package daemonconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wingedpig/unbound/internal/syncworkers"
)

// LoadTuning reads the optional worker-tuning file, a small YAML sibling
// to the main hjson/json settings file, that lets an operator adjust
// Levi's batch cadence and backoff without a binary rebuild. A missing
// file is not an error — callers fall back to syncworkers' own defaults.
func LoadTuning(path string) (syncworkers.Tuning, error) {
	var t syncworkers.Tuning
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return t, nil
	}
	if err != nil {
		return t, fmt.Errorf("daemonconfig: read tuning file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("daemonconfig: parse tuning file: %w", err)
	}
	return t, nil
}

// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package daemonpaths resolves the per-user base directory and the
// well-known file paths beneath it (spec.md §6, "Filesystem layout"):
// durable store file, PID file, RPC socket, token-broker socket, and the
// stream-ring directory. Grounded on the teacher's cleanupStalePipes/
// configPath directory resolution in internal/app/app.go.
package daemonpaths

import (
	"os"
	"path/filepath"
)

// Paths is the resolved set of daemon filesystem locations.
type Paths struct {
	BaseDir          string
	StoreFile        string
	PIDFile          string
	RPCSocket        string
	TokenBrokerSocket string
	StreamRingDir    string
	TuningFile       string
}

// Resolve computes Paths from $XDG_STATE_HOME (falling back to ~/.unbound).
func Resolve() (*Paths, error) {
	base, err := baseDir()
	if err != nil {
		return nil, err
	}
	return &Paths{
		BaseDir:           base,
		StoreFile:         filepath.Join(base, "unbound.db"),
		PIDFile:           filepath.Join(base, "unbound.pid"),
		RPCSocket:         filepath.Join(base, "unbound.sock"),
		TokenBrokerSocket: filepath.Join(base, "token-broker.sock"),
		StreamRingDir:     filepath.Join(base, "streams"),
		TuningFile:        filepath.Join(base, "worker-tuning.yaml"),
	}, nil
}

func baseDir() (string, error) {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "unbound"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".unbound"), nil
}

// EnsureDirs creates the base and stream-ring directories if absent.
func (p *Paths) EnsureDirs() error {
	if err := os.MkdirAll(p.BaseDir, 0o755); err != nil {
		return err
	}
	return os.MkdirAll(p.StreamRingDir, 0o755)
}

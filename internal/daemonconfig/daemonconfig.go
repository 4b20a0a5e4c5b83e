// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package daemonconfig loads the daemon's own settings file (distinct from
// the per-repository ".unbound/config.json" the core must treat as opaque,
// per spec.md §6). It keeps the teacher's hjson-first loader shape from
// internal/config.Loader, generalized from trellis's per-project
// service/workflow config to daemon-level settings: backend URL and API
// key, log level, sync interval, agent command and arguments, and terminal
// shell. File-system paths come from internal/daemonpaths, not from here.
package daemonconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/hjson/hjson-go/v4"
)

// Config is the daemon's own settings, loaded once at startup.
type Config struct {
	BackendURL     string        `json:"backend_url"`
	BackendAPIKey  string        `json:"backend_api_key"`
	LogLevel       string        `json:"log_level"`
	SyncInterval   time.Duration `json:"-"`
	SyncIntervalMS int64         `json:"sync_interval_ms"`

	// AgentCommand/AgentArgs launch the coding agent CLI that
	// internal/agentproc.Bridge bridges into the engine (C6).
	AgentCommand string `json:"agent_command"`
	AgentArgs    []string `json:"agent_args"`
	// TerminalShell launches the PTY-backed shell for terminal.* methods.
	TerminalShell string `json:"terminal_shell"`
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.SyncIntervalMS == 0 {
		cfg.SyncIntervalMS = 500
	}
	cfg.SyncInterval = time.Duration(cfg.SyncIntervalMS) * time.Millisecond
	if cfg.AgentCommand == "" {
		cfg.AgentCommand = "claude"
	}
	if cfg.TerminalShell == "" {
		cfg.TerminalShell = defaultShell()
	}
}

// Load reads and parses the daemon config file, which may be HJSON or
// plain JSON (hjson.Unmarshal accepts both), matching
// internal/config.Loader.Load's "hjson to intermediate map, then JSON for
// type safety" shape.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("daemonconfig: read %s: %w", path, err)
	}

	var raw map[string]any
	if err := hjson.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("daemonconfig: parse: %w", err)
	}

	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("daemonconfig: normalize: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(jsonData, &cfg); err != nil {
		return nil, fmt.Errorf("daemonconfig: unmarshal: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a Config with every field at its default, for a daemon
// run with no settings file present.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func defaultShell() string {
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}

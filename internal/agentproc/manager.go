// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package agentproc

import (
	"context"
	"fmt"
	"sync"

	"github.com/wingedpig/unbound/internal/engine"
)

// Manager ties the Registry to live Bridge/TerminalBridge instances so the
// RPC surface has one place to spawn, feed, and stop child processes per
// session, instead of the registry being bookkeeping-only. One Manager
// serves both claude.* and terminal.* methods, sharing the same Registry,
// since spec.md §4.6 describes a single process registry keyed by
// session_id for both kinds of child.
type Manager struct {
	eng      *engine.Engine
	ring     RingWriter
	registry *Registry
	command  string
	args     []string
	shell    string

	mu      sync.Mutex
	bridges map[string]*Bridge
	terms   map[string]*TerminalBridge
}

// NewManager constructs a Manager. command/args launch the coding agent
// CLI (claude.*); shell launches an interactive shell under a PTY
// (terminal.*).
func NewManager(eng *engine.Engine, ring RingWriter, registry *Registry, command string, args []string, shell string) *Manager {
	return &Manager{
		eng:      eng,
		ring:     ring,
		registry: registry,
		command:  command,
		args:     args,
		shell:    shell,
		bridges:  make(map[string]*Bridge),
		terms:    make(map[string]*TerminalBridge),
	}
}

// SendClaude spawns the agent for sessionID on first use and writes
// content to its stdin, registering the session so claude.status/stop see
// it as running.
func (m *Manager) SendClaude(ctx context.Context, sessionID, workDir string, content []byte) error {
	b, err := m.ensureBridge(ctx, sessionID, workDir)
	if err != nil {
		return err
	}
	return b.WriteLine(content)
}

func (m *Manager) ensureBridge(ctx context.Context, sessionID, workDir string) (*Bridge, error) {
	m.mu.Lock()
	if b, ok := m.bridges[sessionID]; ok {
		m.mu.Unlock()
		return b, nil
	}
	m.mu.Unlock()

	stop, err := m.registry.Register(sessionID)
	if err != nil {
		return nil, err
	}
	b := NewBridge(m.eng, m.ring, sessionID, m.command, workDir, m.args)
	b.OnExit(func() {
		m.registry.Remove(sessionID)
		m.mu.Lock()
		delete(m.bridges, sessionID)
		m.mu.Unlock()
	})
	if err := b.Start(ctx); err != nil {
		m.registry.Remove(sessionID)
		return nil, fmt.Errorf("agentproc: spawn claude for %s: %w", sessionID, err)
	}

	m.mu.Lock()
	m.bridges[sessionID] = b
	m.mu.Unlock()
	if pid := b.pid(); pid > 0 {
		_ = m.registry.SetPID(sessionID, pid)
	}
	go m.watchStop(stop, b.Cancel)
	return b, nil
}

// StopClaude signals the registry stop for sessionID, which the spawned
// watcher goroutine turns into a Bridge.Cancel.
func (m *Manager) StopClaude(sessionID string) error {
	return m.registry.Stop(sessionID)
}

// RunClaude reports whether sessionID currently has a live agent.
func (m *Manager) RunClaude(sessionID string) bool {
	return m.registry.Status(sessionID)
}

// RunTerminal spawns a PTY-backed shell for sessionID if one isn't already
// running.
func (m *Manager) RunTerminal(ctx context.Context, sessionID, workDir string) error {
	m.mu.Lock()
	if _, ok := m.terms[sessionID]; ok {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	stop, err := m.registry.Register(sessionID)
	if err != nil {
		return err
	}
	t := NewTerminalBridge(m.eng, m.ring, sessionID, m.shell, workDir)
	t.OnExit(func() {
		m.registry.Remove(sessionID)
		m.mu.Lock()
		delete(m.terms, sessionID)
		m.mu.Unlock()
	})
	if err := t.Start(ctx); err != nil {
		m.registry.Remove(sessionID)
		return fmt.Errorf("agentproc: spawn terminal for %s: %w", sessionID, err)
	}

	m.mu.Lock()
	m.terms[sessionID] = t
	m.mu.Unlock()
	go m.watchStop(stop, t.Cancel)
	return nil
}

// StopTerminal signals the registry stop for sessionID's terminal.
func (m *Manager) StopTerminal(sessionID string) error {
	return m.registry.Stop(sessionID)
}

// watchStop waits for the registry's one-shot stop signal (fired either by
// an explicit Stop call or by OnExit's own Remove) and cancels the
// process; cancelling an already-exited process is a harmless no-op.
func (m *Manager) watchStop(stop <-chan struct{}, cancel func()) {
	<-stop
	cancel()
}

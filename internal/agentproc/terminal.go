// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package agentproc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"

	"github.com/wingedpig/unbound/internal/engine"
)

type terminalOutputEvent struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

type terminalFinishedEvent struct {
	Type     string `json:"type"`
	ExitCode int    `json:"exit_code"`
}

// TerminalBridge is structurally the agent Bridge with a PTY-backed shell
// in place of the agent CLI: stdout/stderr lines and the exit code are
// wrapped into self-describing "terminal_output"/"terminal_finished" JSON
// objects and appended the same way.
type TerminalBridge struct {
	sessionID string
	shell     string
	workDir   string

	eng  *engine.Engine
	ring RingWriter

	mu      sync.Mutex
	cmd     *exec.Cmd
	pty     *os.File
	cancel  context.CancelFunc
	started bool
	onExit  func()
}

// OnExit registers a callback invoked after the shell exits, whether via
// Cancel or on its own. Must be set before Start.
func (b *TerminalBridge) OnExit(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onExit = fn
}

// NewTerminalBridge constructs a TerminalBridge for sessionID.
func NewTerminalBridge(eng *engine.Engine, ring RingWriter, sessionID, shell, workDir string) *TerminalBridge {
	return &TerminalBridge{sessionID: sessionID, shell: shell, workDir: workDir, eng: eng, ring: ring}
}

// Start spawns the shell under a PTY and begins reading its output.
func (b *TerminalBridge) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	cmdCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(cmdCtx, b.shell)
	cmd.Dir = b.workDir

	f, err := pty.Start(cmd)
	if err != nil {
		cancel()
		return fmt.Errorf("agentproc: pty start: %w", err)
	}

	b.mu.Lock()
	b.cmd = cmd
	b.pty = f
	b.cancel = cancel
	b.started = true
	b.mu.Unlock()

	go b.readLoop(f, cmd)
	return nil
}

// Write sends raw keystrokes to the PTY.
func (b *TerminalBridge) Write(data []byte) error {
	b.mu.Lock()
	f := b.pty
	b.mu.Unlock()
	if f == nil {
		return fmt.Errorf("agentproc: terminal not running")
	}
	_, err := f.Write(data)
	return err
}

// Resize propagates a terminal size change to the PTY.
func (b *TerminalBridge) Resize(rows, cols uint16) error {
	b.mu.Lock()
	f := b.pty
	b.mu.Unlock()
	if f == nil {
		return fmt.Errorf("agentproc: terminal not running")
	}
	return pty.Setsize(f, &pty.Winsize{Rows: rows, Cols: cols})
}

func (b *TerminalBridge) readLoop(f io.Reader, cmd *exec.Cmd) {
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		ev := terminalOutputEvent{Type: "terminal_output", Data: scanner.Text()}
		line, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		if _, err := b.eng.Append(b.sessionID, line); err != nil {
			log.Printf("agentproc[%s]: terminal append failed: %v", b.sessionID, err)
		}
		if b.ring != nil {
			if err := b.ring.WriteLine(b.sessionID, line); err != nil {
				log.Printf("agentproc[%s]: terminal stream ring write: %v", b.sessionID, err)
			}
		}
	}

	err := cmd.Wait()
	exitCode := 0
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			exitCode = ee.ExitCode()
		} else {
			exitCode = -1
		}
	}

	fin := terminalFinishedEvent{Type: "terminal_finished", ExitCode: exitCode}
	line, _ := json.Marshal(fin)
	if _, err := b.eng.Append(b.sessionID, line); err != nil {
		log.Printf("agentproc[%s]: terminal finish append failed: %v", b.sessionID, err)
	}

	b.mu.Lock()
	b.started = false
	b.cmd = nil
	b.pty = nil
	b.cancel = nil
	onExit := b.onExit
	b.mu.Unlock()

	if onExit != nil {
		onExit()
	}
}

// Cancel kills the PTY-backed shell.
func (b *TerminalBridge) Cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		b.cancel()
	}
}

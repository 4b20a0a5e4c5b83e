// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package agentproc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sync"

	"github.com/wingedpig/unbound/internal/engine"
	"github.com/wingedpig/unbound/internal/store"
)

// lineEvent is the minimal shape the bridge inspects before handing the raw
// line to the engine untouched.
type lineEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// Bridge owns a single child agent process for one session and routes its
// stdout into the engine, one NDJSON line at a time.
type Bridge struct {
	sessionID string
	command   string
	args      []string
	workDir   string

	eng *engine.Engine
	ring RingWriter

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	cancel  context.CancelFunc
	started bool
	gen     int

	// onExit, if set, is called once after the child exits, whether via
	// Cancel or on its own, so an owning Manager can clean up bookkeeping
	// even when nothing ever calls Cancel.
	onExit func()
}

// OnExit registers a callback invoked after the child process exits,
// whether via Cancel or on its own. Must be set before Start.
func (b *Bridge) OnExit(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onExit = fn
}

// pid returns the child's OS process id, or 0 if not running.
func (b *Bridge) pid() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cmd == nil || b.cmd.Process == nil {
		return 0
	}
	return b.cmd.Process.Pid
}

// NewBridge constructs a Bridge for sessionID. ring may be nil.
func NewBridge(eng *engine.Engine, ring RingWriter, sessionID, command, workDir string, args []string) *Bridge {
	return &Bridge{
		sessionID: sessionID,
		command:   command,
		args:      args,
		workDir:   workDir,
		eng:       eng,
		ring:      ring,
	}
}

// Start launches the child process if one is not already running and
// begins reading its stdout in the background.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return nil
	}
	gen := b.gen + 1
	b.gen = gen
	b.mu.Unlock()

	cmdCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(cmdCtx, b.command, b.args...)
	cmd.Dir = b.workDir
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("agentproc: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("agentproc: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("agentproc: start %s: %w", b.command, err)
	}

	b.mu.Lock()
	b.cmd = cmd
	b.stdin = stdin
	b.cancel = cancel
	b.started = true
	b.mu.Unlock()

	go b.readLoop(stdout, cmd, gen)
	return nil
}

// WriteLine writes one line (without its own trailing newline) to the
// child's stdin.
func (b *Bridge) WriteLine(data []byte) error {
	b.mu.Lock()
	stdin := b.stdin
	b.mu.Unlock()
	if stdin == nil {
		return fmt.Errorf("agentproc: process not running")
	}
	_, err := stdin.Write(append(append([]byte(nil), data...), '\n'))
	return err
}

// Running reports whether a child process is currently attached.
func (b *Bridge) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.started
}

// Cancel terminates the child process. On child exit or an explicit
// cancel, agent status is forced to idle by readLoop's cleanup.
func (b *Bridge) Cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		b.cancel()
	}
}

// readLoop is the bridge proper: for each stdout line, strip escapes, skip
// anything that isn't a JSON object, parse it, append it verbatim to the
// engine, capture the claude_session_id on a system event, force agent
// status idle on a result event, and mirror the raw line into the stream
// ring.
func (b *Bridge) readLoop(stdout io.Reader, cmd *exec.Cmd, gen int) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	for scanner.Scan() {
		raw := stripANSI(scanner.Bytes())
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			continue
		}

		var ev lineEvent
		if err := json.Unmarshal(trimmed, &ev); err != nil {
			log.Printf("agentproc[%s]: malformed line: %v", b.sessionID, err)
			continue
		}

		if _, err := b.eng.Append(b.sessionID, trimmed); err != nil {
			log.Printf("agentproc[%s]: append failed: %v", b.sessionID, err)
			continue
		}

		if ev.Type == "system" && ev.SessionID != "" {
			if err := b.eng.Store().SetClaudeSessionID(b.sessionID, ev.SessionID); err != nil {
				log.Printf("agentproc[%s]: persist claude_session_id: %v", b.sessionID, err)
			}
		}
		if ev.Type == "result" {
			if err := b.eng.SetAgentStatus(b.sessionID, store.AgentIdle); err != nil {
				log.Printf("agentproc[%s]: idle transition: %v", b.sessionID, err)
			}
		}

		if b.ring != nil {
			if err := b.ring.WriteLine(b.sessionID, trimmed); err != nil {
				log.Printf("agentproc[%s]: stream ring write: %v", b.sessionID, err)
			}
		}
	}

	cmd.Wait()

	b.mu.Lock()
	var onExit func()
	if b.gen == gen {
		b.started = false
		b.stdin = nil
		b.cmd = nil
		b.cancel = nil
		onExit = b.onExit
	}
	b.mu.Unlock()

	if err := b.eng.SetAgentStatus(b.sessionID, store.AgentIdle); err != nil {
		log.Printf("agentproc[%s]: idle transition on exit: %v", b.sessionID, err)
	}
	if onExit != nil {
		onExit()
	}
}

// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package daemonconfig

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// RepoConfig is the repository-local ".unbound/config.json" document,
// per spec.md §6: it is owned by an external tool, and the core must
// preserve any unknown keys on update and never reinterpret them. Known
// fields are typed for the daemon's own reads; everything else round-trips
// through Extra untouched.
type RepoConfig struct {
	Version int             `json:"version"`
	Extra   json.RawMessage `json:"-"`
}

// LoadRepoConfig reads path and splits it into the daemon's known fields
// plus the raw remainder, so unknown keys survive an update unmodified.
func LoadRepoConfig(path string) (*RepoConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("daemonconfig: read repo config %s: %w", path, err)
	}
	var known struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(data, &known); err != nil {
		return nil, fmt.Errorf("daemonconfig: parse repo config: %w", err)
	}
	return &RepoConfig{Version: known.Version, Extra: append(json.RawMessage(nil), data...)}, nil
}

// Save writes rc back to path. It starts from the last-read raw document
// and only overlays the known fields the daemon itself owns, so any key
// the daemon has never heard of is emitted byte-for-byte as read.
func (rc *RepoConfig) Save(path string) error {
	var doc map[string]json.RawMessage
	if len(rc.Extra) > 0 {
		if err := json.Unmarshal(rc.Extra, &doc); err != nil {
			return fmt.Errorf("daemonconfig: re-parse repo config: %w", err)
		}
	} else {
		doc = make(map[string]json.RawMessage)
	}
	versionJSON, err := json.Marshal(rc.Version)
	if err != nil {
		return err
	}
	doc["version"] = versionJSON

	out := []byte("{")
	for i, k := range slices.Sorted(maps.Keys(doc)) {
		name, _ := json.Marshal(k)
		if i > 0 {
			out = append(out, ',')
		}
		out = fmt.Appendf(out, "\n  %s: %s", name, doc[k])
	}
	out = append(out, "\n}"...)
	return os.WriteFile(path, out, 0o644)
}

// RepoConfigWatcher watches a single repository's ".unbound/config.json"
// for edits made by the external tool that owns the file, grounded on
// internal/watcher.BinaryWatcher's fsnotify.Watcher + debounce-free event
// loop shape (the daemon only needs "changed", not batching).
type RepoConfigWatcher struct {
	watcher *fsnotify.Watcher
	onWrite func(path string)

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewRepoConfigWatcher starts watching path's parent directory (fsnotify
// watches directories, not files directly, so edits that replace the file
// via rename are still observed) and invokes onWrite on every observed
// write or create event for path.
func NewRepoConfigWatcher(path string, onWrite func(path string)) (*RepoConfigWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("daemonconfig: create watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("daemonconfig: watch %s: %w", dir, err)
	}

	rw := &RepoConfigWatcher{watcher: w, onWrite: onWrite, done: make(chan struct{})}
	go rw.loop(path)
	return rw, nil
}

func (rw *RepoConfigWatcher) loop(path string) {
	defer close(rw.done)
	for {
		select {
		case ev, ok := <-rw.watcher.Events:
			if !ok {
				return
			}
			if ev.Name != path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 && rw.onWrite != nil {
				rw.onWrite(path)
			}
		case _, ok := <-rw.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// Close stops the watcher and waits for its event loop to exit.
func (rw *RepoConfigWatcher) Close() error {
	rw.mu.Lock()
	if rw.closed {
		rw.mu.Unlock()
		return nil
	}
	rw.closed = true
	rw.mu.Unlock()
	err := rw.watcher.Close()
	<-rw.done
	return err
}

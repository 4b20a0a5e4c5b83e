// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package agentproc

import "testing"

func TestRegistryRegisterStopRemove(t *testing.T) {
	r := NewRegistry()

	stop, err := r.Register("s1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := r.Register("s1"); err != ErrAlreadyRegistered {
		t.Fatalf("duplicate Register: got %v, want ErrAlreadyRegistered", err)
	}
	if !r.Status("s1") {
		t.Fatalf("Status should report registered")
	}
	if r.Count() != 1 || r.IsEmpty() {
		t.Fatalf("Count/IsEmpty wrong after register")
	}

	if err := r.Stop("s1"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	select {
	case <-stop:
	default:
		t.Fatalf("stop channel should be closed")
	}
	// Stop is idempotent.
	if err := r.Stop("s1"); err != nil {
		t.Fatalf("second Stop: %v", err)
	}

	if err := r.Remove("s1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if r.Status("s1") {
		t.Fatalf("Status should report absent after remove")
	}
	if !r.IsEmpty() {
		t.Fatalf("registry should be empty")
	}

	if err := r.Stop("s1"); err != ErrNotRegistered {
		t.Fatalf("Stop on removed session: got %v, want ErrNotRegistered", err)
	}
}

func TestRegistrySessionIDs(t *testing.T) {
	r := NewRegistry()
	r.Register("a")
	r.Register("b")

	ids := r.SessionIDs()
	if len(ids) != 2 {
		t.Fatalf("SessionIDs returned %d ids, want 2", len(ids))
	}
	seen := map[string]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen["a"] || !seen["b"] {
		t.Fatalf("SessionIDs missing expected entries: %v", ids)
	}
}

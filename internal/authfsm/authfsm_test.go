// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package authfsm

import "testing"

// TestHappyPathLogin is E5's first scenario: ValidateSession,
// TokenNotExpired, ServerVerified reaches LoggedIn.
func TestHappyPathLogin(t *testing.T) {
	m := New()
	steps := []Input{ValidateSession, TokenNotExpired, ServerVerified}
	for _, in := range steps {
		if _, err := m.Apply(in); err != nil {
			t.Fatalf("Apply(%v): %v", in, err)
		}
	}
	if m.State() != LoggedIn {
		t.Fatalf("expected LoggedIn, got %v", m.State())
	}
	if !m.IsAuthenticated() {
		t.Fatal("expected IsAuthenticated true in LoggedIn")
	}
}

// TestServerRejectedReturnsToNotLoggedIn is E5's second scenario.
func TestServerRejectedReturnsToNotLoggedIn(t *testing.T) {
	m := New()
	for _, in := range []Input{ValidateSession, TokenNotExpired, ServerRejected} {
		if _, err := m.Apply(in); err != nil {
			t.Fatalf("Apply(%v): %v", in, err)
		}
	}
	if m.State() != NotLoggedIn {
		t.Fatalf("expected NotLoggedIn, got %v", m.State())
	}
	if m.IsAuthenticated() {
		t.Fatal("expected IsAuthenticated false")
	}
}

// TestInvalidTransitionsRejected is P11: from every state, every input not
// listed in the transition table is rejected without changing state.
func TestInvalidTransitionsRejected(t *testing.T) {
	allStates := []State{
		NotLoggedIn, PendingValidation, Validating, VerifyingWithServer,
		LoggingIn, LoggedIn, Refreshing, LoggingOut,
	}
	allInputs := []Input{
		SessionDetected, LoginAttempt, ValidateSession, NoSession,
		TokenNotExpired, SessionExpired, ServerVerified, ServerRejected,
		LoginSuccess, LoginFailed, TokenExpired, LogoutRequested,
		RefreshSuccess, RefreshRetry, RefreshFailed, LogoutComplete,
	}

	for _, st := range allStates {
		valid := transitions[st]
		for _, in := range allInputs {
			if _, ok := valid[in]; ok {
				continue // exercised by the happy-path tests
			}
			m := &Machine{state: st}
			got, err := m.Apply(in)
			if err != ErrInvalidTransition {
				t.Fatalf("state %v input %v: expected ErrInvalidTransition, got %v", st, in, err)
			}
			if got != st {
				t.Fatalf("state %v input %v: state changed to %v", st, in, got)
			}
		}
	}
}

func TestRefreshBackoffBoundedAttempts(t *testing.T) {
	if _, ok := RefreshBackoff(0); ok {
		t.Fatal("expected attempt 0 to be invalid")
	}
	d1, ok := RefreshBackoff(1)
	if !ok || d1 != 500e6 {
		t.Fatalf("attempt 1: ok=%v d=%v", ok, d1)
	}
	d2, _ := RefreshBackoff(2)
	if d2 != 1000e6 {
		t.Fatalf("attempt 2: d=%v", d2)
	}
	if _, ok := RefreshBackoff(4); ok {
		t.Fatal("expected attempt 4 (beyond max) to be invalid")
	}
}

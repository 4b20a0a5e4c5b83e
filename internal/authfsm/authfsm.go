// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package authfsm implements the daemon-side auth state machine (C10): an
// explicit state/input transition table mirroring the states a mobile or
// desktop client walks through while the daemon validates and refreshes a
// user's session against the backend. The table is exact — every state and
// input pair not listed in the transition map is rejected with no state
// change, never silently ignored.
package authfsm

import (
	"errors"
	"sync"
)

// State is one of the named FSM states of spec.md §4.10.
type State int

const (
	NotLoggedIn State = iota
	PendingValidation
	Validating
	VerifyingWithServer
	LoggingIn
	LoggedIn
	Refreshing
	LoggingOut
)

func (s State) String() string {
	switch s {
	case NotLoggedIn:
		return "NotLoggedIn"
	case PendingValidation:
		return "PendingValidation"
	case Validating:
		return "Validating"
	case VerifyingWithServer:
		return "VerifyingWithServer"
	case LoggingIn:
		return "LoggingIn"
	case LoggedIn:
		return "LoggedIn"
	case Refreshing:
		return "Refreshing"
	case LoggingOut:
		return "LoggingOut"
	default:
		return "Unknown"
	}
}

// Input is one of the named transition triggers of spec.md §4.10.
type Input int

const (
	SessionDetected Input = iota
	LoginAttempt
	ValidateSession
	NoSession
	TokenNotExpired
	SessionExpired
	ServerVerified
	ServerRejected
	LoginSuccess
	LoginFailed
	TokenExpired
	LogoutRequested
	RefreshSuccess
	RefreshRetry
	RefreshFailed
	LogoutComplete
)

func (i Input) String() string {
	switch i {
	case SessionDetected:
		return "SessionDetected"
	case LoginAttempt:
		return "LoginAttempt"
	case ValidateSession:
		return "ValidateSession"
	case NoSession:
		return "NoSession"
	case TokenNotExpired:
		return "TokenNotExpired"
	case SessionExpired:
		return "SessionExpired"
	case ServerVerified:
		return "ServerVerified"
	case ServerRejected:
		return "ServerRejected"
	case LoginSuccess:
		return "LoginSuccess"
	case LoginFailed:
		return "LoginFailed"
	case TokenExpired:
		return "TokenExpired"
	case LogoutRequested:
		return "LogoutRequested"
	case RefreshSuccess:
		return "RefreshSuccess"
	case RefreshRetry:
		return "RefreshRetry"
	case RefreshFailed:
		return "RefreshFailed"
	case LogoutComplete:
		return "LogoutComplete"
	default:
		return "Unknown"
	}
}

// ErrInvalidTransition is returned for any (state, input) pair not present
// in the transition table; the state is left unchanged.
var ErrInvalidTransition = errors.New("authfsm: invalid transition")

// transitions is the exact table from spec.md §4.10. Every entry not
// present here is rejected by Apply.
var transitions = map[State]map[Input]State{
	NotLoggedIn: {
		SessionDetected:  PendingValidation,
		LoginAttempt:     LoggingIn,
		ValidateSession:  Validating,
	},
	PendingValidation: {
		ValidateSession: Validating,
		LoginAttempt:    LoggingIn,
		NoSession:       NotLoggedIn,
	},
	Validating: {
		TokenNotExpired: VerifyingWithServer,
		SessionExpired:  Refreshing,
		NoSession:       NotLoggedIn,
	},
	VerifyingWithServer: {
		ServerVerified: LoggedIn,
		ServerRejected: NotLoggedIn,
	},
	LoggingIn: {
		LoginSuccess: LoggedIn,
		LoginFailed:  NotLoggedIn,
	},
	LoggedIn: {
		TokenExpired:    Refreshing,
		LogoutRequested: LoggingOut,
	},
	Refreshing: {
		RefreshSuccess: LoggedIn,
		RefreshRetry:   Refreshing,
		RefreshFailed:  NotLoggedIn,
	},
	LoggingOut: {
		LogoutComplete: NotLoggedIn,
	},
}

// Machine is a single-owner auth state machine. All transitions go through
// one mutex, per spec.md §5 ("owned by one task").
type Machine struct {
	mu    sync.Mutex
	state State
}

// New creates a machine in the initial NotLoggedIn state.
func New() *Machine {
	return &Machine{state: NotLoggedIn}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsAuthenticated reports true only in the LoggedIn state.
func (m *Machine) IsAuthenticated() bool {
	return m.State() == LoggedIn
}

// Apply feeds an input to the machine. On a valid transition, the new state
// is returned. On an invalid (state, input) pair, ErrInvalidTransition is
// returned and the state does not change.
func (m *Machine) Apply(input Input) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, ok := transitions[m.state][input]
	if !ok {
		return m.state, ErrInvalidTransition
	}
	m.state = next
	return m.state, nil
}

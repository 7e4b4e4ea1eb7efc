/*
Package channel provides ChannelGateway implementations and the messaging
session they share.

SESSION LIFECYCLE:

    disconnected ──Pairing(code)──▶ pairing ──Ready()──▶ ready
         ▲                             ▲                   │
         │                             └──Closed(true)─────┤
         └────────────Closed(false)────────────────────────┘

  - Pairing(code) records the latest pairing code (shown as a QR).
    An empty code means "reconnecting with stored credentials".
  - Ready() clears the code; sends are allowed only in this state.
  - Closed(reason, true) is a recoverable drop: the session goes back to
    pairing and the reconnect hook is invoked.
  - Closed(reason, false) is final (explicit logout, replaced stream):
    the session stays disconnected until a new pairing is started.

  The reminder core only ever sees IsReady() and Send().

IMPLEMENTATIONS:
  whatsapp.go: WhatsApp multi-device via whatsmeow
  email.go:    Resend e-mail API (always ready once configured)
*/
package channel

import (
	"log/slog"
	"sync"
	"time"
)

// State is the lifecycle state of a messaging session.
type State string

const (
	StateDisconnected State = "disconnected"
	StatePairing      State = "pairing"
	StateReady        State = "ready"
)

// Status is a point-in-time view of a session for inspection endpoints.
type Status struct {
	State     State
	Ready     bool
	HasCode   bool
	Reason    string
	ChangedAt time.Time
}

// Session tracks the lifecycle of one messaging session.
type Session struct {
	mu        sync.RWMutex
	state     State
	code      string
	reason    string
	changedAt time.Time
	reconnect func()
	logger    *slog.Logger
}

// NewSession returns a disconnected session.
func NewSession(logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{state: StateDisconnected, changedAt: time.Now(), logger: logger}
}

// OnReconnect sets the hook run (in its own goroutine) after a recoverable
// closure.
func (s *Session) OnReconnect(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconnect = fn
}

// Pairing moves the session to the pairing state with the given code.
func (s *Session) Pairing(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.code = code
	s.reason = ""
	s.transitionLocked(StatePairing)
}

// Ready marks the session authenticated and connected.
func (s *Session) Ready() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.code = ""
	s.reason = ""
	s.transitionLocked(StateReady)
}

// Closed records a closure. Recoverable closures re-enter pairing and fire the
// reconnect hook; others leave the session disconnected.
func (s *Session) Closed(reason string, recoverable bool) {
	s.mu.Lock()
	s.code = ""
	s.reason = reason
	hook := s.reconnect
	if recoverable {
		s.transitionLocked(StatePairing)
	} else {
		s.transitionLocked(StateDisconnected)
	}
	s.mu.Unlock()

	if recoverable && hook != nil {
		go hook()
	}
}

func (s *Session) transitionLocked(next State) {
	if s.state != next {
		s.logger.Info("session_state_changed", "from", s.state, "to", next, "reason", s.reason)
	}
	s.state = next
	s.changedAt = time.Now()
}

// IsReady reports whether the session can send.
func (s *Session) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == StateReady
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// PairingCode returns the latest pairing code while pairing.
func (s *Session) PairingCode() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StatePairing || s.code == "" {
		return "", false
	}
	return s.code, true
}

// Snapshot returns the current status.
func (s *Session) Snapshot() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		State:     s.state,
		Ready:     s.state == StateReady,
		HasCode:   s.state == StatePairing && s.code != "",
		Reason:    s.reason,
		ChangedAt: s.changedAt,
	}
}

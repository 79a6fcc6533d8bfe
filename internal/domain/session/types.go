// Package session holds the per-client login state and its lifecycle.
package session

import (
	"time"

	"github.com/gaepo/sheetlogin/internal/domain/table"
)

// State is the login state of one client. The zero value is anonymous.
// A State is authenticated exactly when it carries an active record.
type State struct {
	active *table.Record
}

// Anonymous returns the initial state.
func Anonymous() State {
	return State{}
}

// Authenticated reports whether a record is bound to this state.
func (s State) Authenticated() bool {
	return s.active != nil
}

// ActiveRecord returns the record bound at login.
func (s State) ActiveRecord() (table.Record, bool) {
	if s.active == nil {
		return table.Record{}, false
	}
	return *s.active, true
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	if s.active == nil {
		return State{}
	}
	r := s.active.Clone()
	return State{active: &r}
}

// String returns ANONYMOUS or AUTHENTICATED.
func (s State) String() string {
	if s.Authenticated() {
		return "AUTHENTICATED"
	}
	return "ANONYMOUS"
}

func authenticatedWith(r table.Record) State {
	c := r.Clone()
	return State{active: &c}
}

// Credentials are the values a student types into the login form.
// They are used for a single login attempt and never stored.
type Credentials struct {
	ID   string
	Name string
}

// Session tracks one client's login state across requests.
type Session struct {
	// ID is a cryptographically random identifier, 32 bytes hex-encoded.
	ID string
	// State is the login state bound to this client.
	State State
	// CreatedAt is when the session was created (UTC).
	CreatedAt time.Time
	// ExpiresAt is when the session will expire (UTC).
	ExpiresAt time.Time
	// LastAccess is the last time the session was used (UTC).
	LastAccess time.Time
}

// IsExpired checks if the session has exceeded its timeout.
func (s *Session) IsExpired() bool {
	return time.Now().UTC().After(s.ExpiresAt)
}

// Refresh updates LastAccess and extends ExpiresAt by the given duration.
func (s *Session) Refresh(timeout time.Duration) {
	now := time.Now().UTC()
	s.LastAccess = now
	s.ExpiresAt = now.Add(timeout)
}

// Copy returns a deep copy of the session.
func (s *Session) Copy() *Session {
	c := *s
	c.State = s.State.Clone()
	return &c
}

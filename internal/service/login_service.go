package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/gaepo/sheetlogin/internal/domain/session"
	"github.com/gaepo/sheetlogin/internal/domain/table"
)

// Login attempt outcomes reported to SetOnAttempt.
const (
	ResultSuccess              = "success"
	ResultInvalidCredentials   = "invalid_credentials"
	ResultSourceUnavailable    = "source_unavailable"
	ResultAlreadyAuthenticated = "already_authenticated"
	ResultError                = "error"
)

// LoginService binds one login State to each client session. Operations on
// the same session are serialized. Different sessions proceed in parallel.
type LoginService struct {
	sessions   *session.SessionService
	tables     TableProvider
	controller *session.Controller
	logger     *slog.Logger
	locks      *keyedMutex

	mu        sync.RWMutex
	onAttempt func(result string)
}

// NewLoginService creates a LoginService.
func NewLoginService(sessions *session.SessionService, tables TableProvider, controller *session.Controller, logger *slog.Logger) *LoginService {
	return &LoginService{
		sessions:   sessions,
		tables:     tables,
		controller: controller,
		logger:     logger,
		locks:      newKeyedMutex(),
	}
}

// SetOnAttempt registers a callback invoked with the outcome of every login attempt.
func (s *LoginService) SetOnAttempt(fn func(result string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onAttempt = fn
}

// Start creates a new anonymous session.
func (s *LoginService) Start(ctx context.Context) (*session.Session, error) {
	return s.sessions.Create(ctx)
}

// Get returns the session. Returns session.ErrSessionNotFound for unknown
// or expired sessions.
func (s *LoginService) Get(ctx context.Context, id string) (*session.Session, error) {
	return s.sessions.Get(ctx, id)
}

// Refresh slides the session expiry.
func (s *LoginService) Refresh(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()
	return s.sessions.Refresh(ctx, id)
}

// Available loads the table and returns the loader error, if any.
func (s *LoginService) Available(ctx context.Context) error {
	_, err := s.tables.Table(ctx)
	return err
}

// Login authenticates the session with creds. Table load errors are
// returned unchanged and match table.ErrSourceUnavailable.
func (s *LoginService) Login(ctx context.Context, id string, creds session.Credentials) (*session.Session, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.State.Authenticated() {
		s.report(ResultAlreadyAuthenticated)
		return sess, session.ErrAlreadyAuthenticated
	}

	t, err := s.tables.Table(ctx)
	if err != nil {
		s.report(ResultSourceUnavailable)
		return sess, err
	}

	next, err := s.controller.Login(sess.State, t, creds)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			s.report(ResultInvalidCredentials)
			s.logger.Debug("login rejected", "session", shortID(id), "student_id", creds.ID)
		} else {
			s.report(ResultError)
		}
		return sess, err
	}

	updated, err := s.sessions.SetState(ctx, id, next)
	if err != nil {
		s.report(ResultError)
		return sess, err
	}

	s.report(ResultSuccess)
	s.logger.Info("login succeeded", "session", shortID(id))
	s.logger.Debug("login record bound", "session", shortID(id), "student_id", creds.ID)
	return updated, nil
}

// Logout resets the session to anonymous. Logging out an anonymous session
// is a no-op. Only an unknown session is an error.
func (s *LoginService) Logout(ctx context.Context, id string) (*session.Session, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	wasAuthenticated := sess.State.Authenticated()

	updated, err := s.sessions.SetState(ctx, id, s.controller.Logout(sess.State))
	if err != nil {
		return nil, err
	}
	if wasAuthenticated {
		s.logger.Info("logout", "session", shortID(id))
	}
	return updated, nil
}

// Delete removes the session.
func (s *LoginService) Delete(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()
	return s.sessions.Delete(ctx, id)
}

// Lookup runs the login match against the current table without a session.
// Used by the lookup command.
func (s *LoginService) Lookup(ctx context.Context, creds session.Credentials) (table.Record, error) {
	t, err := s.tables.Table(ctx)
	if err != nil {
		return table.Record{}, err
	}
	st, err := s.controller.Login(session.Anonymous(), t, creds)
	if err != nil {
		return table.Record{}, err
	}
	r, _ := st.ActiveRecord()
	return r, nil
}

func (s *LoginService) report(result string) {
	s.mu.RLock()
	fn := s.onAttempt
	s.mu.RUnlock()
	if fn != nil {
		fn(result)
	}
}

// shortID keeps session IDs out of logs in full.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// keyedMutex hands out one mutex per key and frees it when unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock locks key and returns the matching unlock function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.mu.Lock()
	return func() {
		m.mu.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// size returns the number of keys currently held or waited on.
func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

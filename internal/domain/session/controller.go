package session

import (
	"errors"

	"github.com/gaepo/sheetlogin/internal/domain/table"
)

var (
	// ErrInvalidCredentials is returned when no row matches the submitted ID and name.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAlreadyAuthenticated is returned by Login on an authenticated state.
	// A client must log out before logging in again.
	ErrAlreadyAuthenticated = errors.New("already authenticated")
)

// Controller applies login and logout transitions to a State.
// It holds no state of its own and is safe for concurrent use.
type Controller struct {
	idColumn   string
	nameColumn string
}

// NewController returns a controller that matches credentials against the
// given columns. Column names are normalized the same way table headers are.
func NewController(idColumn, nameColumn string) *Controller {
	return &Controller{
		idColumn:   table.NormalizeColumn(idColumn),
		nameColumn: table.NormalizeColumn(nameColumn),
	}
}

// IDColumn returns the normalized ID column name.
func (c *Controller) IDColumn() string { return c.idColumn }

// NameColumn returns the normalized name column name.
func (c *Controller) NameColumn() string { return c.nameColumn }

// Login transitions ANONYMOUS to AUTHENTICATED when a row in t has an ID
// cell whose text equals creds.ID and a string name cell equal to
// creds.Name. Comparison is exact: no trimming, no case folding. The first
// matching row in table order wins, and the returned state holds a copy of it.
// A blank cell is no value, so an empty ID or name never matches.
//
// On failure the returned state is the input state.
func (c *Controller) Login(s State, t *table.Table, creds Credentials) (State, error) {
	if s.Authenticated() {
		return s, ErrAlreadyAuthenticated
	}
	if creds.ID == "" || creds.Name == "" {
		return s, ErrInvalidCredentials
	}

	row, ok := t.Find(func(r table.Record) bool {
		if r.Text(c.idColumn) != creds.ID {
			return false
		}
		v, _ := r.Get(c.nameColumn)
		name, isString := v.(string)
		return isString && name == creds.Name
	})
	if !ok {
		return s, ErrInvalidCredentials
	}
	return authenticatedWith(row), nil
}

// Logout returns the anonymous state. It is a no-op for an anonymous state.
func (c *Controller) Logout(State) State {
	return Anonymous()
}

// Package vault keeps the Clover session token in an encrypted store
// unlocked by a master password.
package vault

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/zarlcorp/core/pkg/zfilesystem"
	"github.com/zarlcorp/core/pkg/zstore"
)

const sessionKey = "current"

// MinPasswordLen is the shortest master password accepted for a new vault.
const MinPasswordLen = 8

// ErrNoSession is returned when nobody is logged in.
var ErrNoSession = errors.New("not logged in")

// ErrPasswordTooShort is returned for a new master password shorter than
// MinPasswordLen.
var ErrPasswordTooShort = fmt.Errorf("master password must be at least %d characters", MinPasswordLen)

// CheckNewPassword reports whether p is acceptable for a new vault.
func CheckNewPassword(p []byte) error {
	if len(p) < MinPasswordLen {
		return ErrPasswordTooShort
	}
	return nil
}

// ErrWrongPassword is returned when the master password does not unlock
// the vault.
var ErrWrongPassword = zstore.ErrWrongPassword

// Session is a signed-in account.
type Session struct {
	Email      string    `json:"email"`
	Token      string    `json:"token"`
	LoggedInAt time.Time `json:"logged_in_at"`
}

// Vault stores the current session.
type Vault struct {
	store    *zstore.Store
	sessions *zstore.Collection[Session]
}

// IsFirstRun reports whether dir holds no vault yet.
func IsFirstRun(dir string) bool {
	_, err := os.Stat(dir + "/salt")
	return err != nil
}

// OpenDir unlocks the vault stored under dir, creating it on first run.
func OpenDir(dir string, password []byte) (*Vault, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	s, err := zstore.Open(zfilesystem.NewOSFileSystem(dir), password)
	if err != nil {
		return nil, err
	}

	v, err := New(s)
	if err != nil {
		s.Close()
		return nil, err
	}
	return v, nil
}

// New wraps an open store. The vault takes ownership of s.
func New(s *zstore.Store) (*Vault, error) {
	col, err := zstore.NewCollection[Session](s, "sessions")
	if err != nil {
		return nil, fmt.Errorf("open sessions: %w", err)
	}
	return &Vault{store: s, sessions: col}, nil
}

// Session returns the stored session.
func (v *Vault) Session() (Session, error) {
	all, err := v.sessions.List()
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	if len(all) == 0 {
		return Session{}, ErrNoSession
	}
	return all[0], nil
}

// SaveSession replaces the stored session.
func (v *Vault) SaveSession(s Session) error {
	if err := v.sessions.Put(sessionKey, s); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// ClearSession forgets the stored session. Clearing an empty vault is not
// an error.
func (v *Vault) ClearSession() error {
	if _, err := v.Session(); errors.Is(err, ErrNoSession) {
		return nil
	}
	if err := v.sessions.Delete(sessionKey); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Close locks the vault.
func (v *Vault) Close() {
	if v.store != nil {
		v.store.Close()
	}
}

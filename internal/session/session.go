package session

import (
	"time"

	"github.com/netpanel/netpanel/clients/go-auth/internal/models"
)

// Timeout is the fixed inactivity window after which a session is no longer
// trusted, regardless of token validity.
const Timeout = 30 * time.Minute

// Session is the client-side record of the authenticated user for this
// process. Authenticated implies User is non-nil.
type Session struct {
	User          *models.User
	Authenticated bool
	SessionID     string
	MFARequired   bool
	MFAVerified   bool
	LastActivity  time.Time
}

// Snapshot is the persisted subset of a session. Token material and CSRF
// state are deliberately absent: they live in the token vault. The typed
// User carries no credential fields, so nothing sensitive can ride along.
type Snapshot struct {
	User         models.User `json:"user"`
	SessionID    string      `json:"sessionId"`
	MFARequired  bool        `json:"mfaRequired"`
	MFAVerified  bool        `json:"mfaVerified"`
	LastActivity time.Time   `json:"lastActivity"`
	SavedAt      time.Time   `json:"savedAt"`
}

// Stale reports whether the snapshot's inactivity window has elapsed at t.
func (s *Snapshot) Stale(t time.Time) bool {
	return t.Sub(s.LastActivity) >= Timeout
}

package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/netpanel/netpanel/clients/go-auth/internal/models"
	"github.com/netpanel/netpanel/clients/go-auth/pkg/logger"
)

// Store holds the in-memory auth state for one session context. It is owned
// by the composition root (the authclient Manager), not a package global, so
// multiple independent sessions can coexist in one process.
type Store struct {
	mu   sync.RWMutex
	sess Session
	repo Repository
	now  func() time.Time
}

// NewStore creates an anonymous store. repo may be nil for memory-only use.
func NewStore(repo Repository) *Store {
	return &Store{repo: repo, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Store) WithNow(now func() time.Time) *Store {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
	return s
}

// SetAuth transitions the store to authenticated. A missing session id gets
// a generated one; MFA flags derive from the user: a user with MFA enabled
// starts mfa-pending until CompleteMFA.
func (s *Store) SetAuth(user models.User, sessionID string) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	u := user
	s.mu.Lock()
	s.sess = Session{
		User:          &u,
		Authenticated: true,
		SessionID:     sessionID,
		MFARequired:   user.MFAEnabled,
		MFAVerified:   !user.MFAEnabled,
		LastActivity:  s.now(),
	}
	s.mu.Unlock()
	s.persist()
}

// Clear resets the store to anonymous and drops the persisted snapshot.
// The in-memory reset always happens; a snapshot delete failure is returned
// for the caller's teardown log but never leaves the store authenticated.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.sess = Session{}
	s.mu.Unlock()
	if s.repo == nil {
		return nil
	}
	return s.repo.Delete(ctx)
}

// UpdateUser merges partial into the current user and bumps LastActivity.
// No-op when anonymous.
func (s *Store) UpdateUser(partial models.User) {
	s.mu.Lock()
	if !s.sess.Authenticated || s.sess.User == nil {
		s.mu.Unlock()
		return
	}
	s.sess.User.Merge(partial)
	s.sess.LastActivity = s.now()
	s.mu.Unlock()
	s.persist()
}

// Touch bumps LastActivity, keeping an active session inside its window.
func (s *Store) Touch() {
	s.mu.Lock()
	if !s.sess.Authenticated {
		s.mu.Unlock()
		return
	}
	s.sess.LastActivity = s.now()
	s.mu.Unlock()
	s.persist()
}

// CompleteMFA marks the pending MFA challenge as satisfied.
func (s *Store) CompleteMFA() {
	s.mu.Lock()
	if !s.sess.Authenticated {
		s.mu.Unlock()
		return
	}
	s.sess.MFAVerified = true
	s.sess.LastActivity = s.now()
	s.mu.Unlock()
	s.persist()
}

// Valid reports whether the session is authenticated and inside the fixed
// inactivity window. Gate any use of cached tokens on this.
func (s *Store) Valid() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.sess.Authenticated {
		return false
	}
	return s.now().Sub(s.sess.LastActivity) < Timeout
}

// Current returns a copy of the session state.
func (s *Store) Current() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess := s.sess
	if s.sess.User != nil {
		u := *s.sess.User
		sess.User = &u
	}
	return sess
}

// User returns a copy of the current user, or nil when anonymous.
func (s *Store) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sess.User == nil {
		return nil
	}
	u := *s.sess.User
	return &u
}

// SessionID returns the current session id, or "".
func (s *Store) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sess.SessionID
}

// Rehydrate restores state from the snapshot repository. A stale snapshot
// is cleared rather than presented as an authenticated session. Returns
// whether a live session was restored.
func (s *Store) Rehydrate(ctx context.Context) (bool, error) {
	if s.repo == nil {
		return false, nil
	}
	snap, err := s.repo.Load(ctx)
	if err != nil {
		return false, err
	}
	if snap == nil {
		return false, nil
	}
	s.mu.Lock()
	now := s.now()
	s.mu.Unlock()
	if snap.Stale(now) {
		// do not trust a timed-out snapshot; leave no trace of it
		if err := s.repo.Delete(ctx); err != nil {
			logger.Warnf("failed to delete stale session snapshot: %v", err)
		}
		return false, nil
	}
	u := snap.User
	s.mu.Lock()
	s.sess = Session{
		User:          &u,
		Authenticated: true,
		SessionID:     snap.SessionID,
		MFARequired:   snap.MFARequired,
		MFAVerified:   snap.MFAVerified,
		LastActivity:  snap.LastActivity,
	}
	s.mu.Unlock()
	return true, nil
}

// persist writes the current snapshot, best-effort.
func (s *Store) persist() {
	if s.repo == nil {
		return
	}
	s.mu.RLock()
	if !s.sess.Authenticated || s.sess.User == nil {
		s.mu.RUnlock()
		return
	}
	snap := Snapshot{
		User:         *s.sess.User,
		SessionID:    s.sess.SessionID,
		MFARequired:  s.sess.MFARequired,
		MFAVerified:  s.sess.MFAVerified,
		LastActivity: s.sess.LastActivity,
		SavedAt:      s.now(),
	}
	s.mu.RUnlock()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.repo.Save(ctx, &snap); err != nil {
		logger.Warnf("failed to persist session snapshot: %v", err)
	}
}

package tokens

import (
	"context"
	"sync"
	"time"

	"github.com/netpanel/netpanel/clients/go-auth/internal/autherr"
	"github.com/netpanel/netpanel/clients/go-auth/pkg/logger"
)

// RefreshFunc exchanges the current refresh token for a new pair.
type RefreshFunc func(ctx context.Context, refreshToken string) (TokenPair, error)

// DefaultRefreshThreshold is how long before expiry the auto-refresh timer
// fires when the caller does not configure one.
const DefaultRefreshThreshold = 5 * time.Minute

// minimum delay before an auto-refresh fires, so a pair that is already
// inside the threshold doesn't spin the loop
const minRefreshDelay = 100 * time.Millisecond

// Store holds the current TokenPair, backed by a Vault. All mutation goes
// through Set/Clear/Refresh; reads return copies. A generation counter
// detects a store that changed while a refresh was in flight, so a stale
// refresh response can never overwrite newer state. Vault mutations happen
// under the same mutex as the in-memory commit, so memory and vault can
// never commit in opposite orders: once Clear has wiped the vault, no
// earlier refresh can re-write token material into it.
type Store struct {
	mu         sync.Mutex
	vault      Vault
	pair       TokenPair
	set        bool
	gen        uint64
	refreshing bool
	handle     *RefreshHandle
	now        func() time.Time
}

// NewStore creates a token store over the given vault and loads any pair
// already persisted there. A nil vault falls back to memory.
func NewStore(vault Vault) *Store {
	if vault == nil {
		vault = NewMemoryVault()
	}
	s := &Store{vault: vault, now: time.Now}
	if pair, ok, err := vault.Get(); err != nil {
		logger.Warnf("token vault read failed: %v", err)
	} else if ok {
		s.pair, s.set = pair, true
	}
	return s
}

// WithNow overrides the clock, for tests.
func (s *Store) WithNow(now func() time.Time) *Store {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
	return s
}

// Set overwrites the stored pair. Never merges: a partial pair replaces the
// whole previous one.
func (s *Store) Set(pair TokenPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair, s.set = pair, true
	s.gen++
	return s.vault.Put(pair)
}

// AccessToken returns the access token only while it is unexpired; expired
// or absent tokens yield "" so callers know a refresh or re-login is due.
func (s *Store) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set || s.pair.Expired(s.now()) {
		return ""
	}
	return s.pair.AccessToken
}

// RefreshToken returns the current refresh token, or "".
func (s *Store) RefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		return ""
	}
	return s.pair.RefreshToken
}

// Pair returns a copy of the stored pair and whether one is held.
func (s *Store) Pair() (TokenPair, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pair, s.set
}

// Clear drops the pair, cancels any armed auto-refresh and wipes the vault.
// Idempotent: clearing an empty store is not an error.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.pair, s.set = TokenPair{}, false
	s.gen++
	h := s.handle
	s.handle = nil
	err := s.vault.Delete()
	s.mu.Unlock()
	if h != nil {
		h.Cancel()
	}
	return err
}

// Refresh runs fn with the current refresh token and atomically replaces the
// pair on success. At most one refresh is in flight at a time: a second
// trigger during the in-flight window returns (false, nil) without issuing
// a call. If the store was cleared or replaced while the call was out, the
// result is discarded rather than resurrecting the old session.
func (s *Store) Refresh(ctx context.Context, fn RefreshFunc) (bool, error) {
	s.mu.Lock()
	if s.refreshing {
		s.mu.Unlock()
		return false, nil
	}
	if !s.set || s.pair.RefreshToken == "" {
		s.mu.Unlock()
		return false, autherr.New(autherr.KindRefreshFailed, "no refresh token held", nil)
	}
	s.refreshing = true
	startGen := s.gen
	rt := s.pair.RefreshToken
	s.mu.Unlock()

	pair, err := fn(ctx, rt)

	s.mu.Lock()
	s.refreshing = false
	if err != nil {
		s.mu.Unlock()
		return false, err
	}
	if s.gen != startGen {
		s.mu.Unlock()
		logger.Debug("discarding refresh result: token store changed while refresh was in flight")
		return false, nil
	}
	s.pair, s.set = pair, true
	s.gen++
	if err := s.vault.Put(pair); err != nil {
		logger.Warnf("token vault write failed after refresh: %v", err)
	}
	s.mu.Unlock()
	return true, nil
}

// RefreshHandle cancels an armed auto-refresh loop. Cancel is idempotent.
type RefreshHandle struct {
	once sync.Once
	done chan struct{}
}

func (h *RefreshHandle) Cancel() { h.once.Do(func() { close(h.done) }) }

// Done is closed once the handle is cancelled.
func (h *RefreshHandle) Done() <-chan struct{} { return h.done }

// AutoRefresh arms a background loop that refreshes the pair `threshold`
// before each expiry. Arming replaces (and cancels) any previous loop, so
// there is never more than one live timer per store. On a refresh error the
// loop stops and calls onFailure once; it does not retry, bounding a dead
// session to a single clean teardown.
func (s *Store) AutoRefresh(threshold time.Duration, fn RefreshFunc, onFailure func(error)) *RefreshHandle {
	if threshold <= 0 {
		threshold = DefaultRefreshThreshold
	}
	h := &RefreshHandle{done: make(chan struct{})}
	s.mu.Lock()
	prev := s.handle
	s.handle = h
	s.mu.Unlock()
	if prev != nil {
		prev.Cancel()
	}
	go s.refreshLoop(h, threshold, fn, onFailure)
	return h
}

func (s *Store) refreshLoop(h *RefreshHandle, threshold time.Duration, fn RefreshFunc, onFailure func(error)) {
	for {
		s.mu.Lock()
		if !s.set {
			s.mu.Unlock()
			return
		}
		fireAt := s.pair.ExpiresAt.Add(-threshold)
		delay := fireAt.Sub(s.now())
		s.mu.Unlock()
		if delay < minRefreshDelay {
			delay = minRefreshDelay
		}

		timer := time.NewTimer(delay)
		select {
		case <-h.done:
			timer.Stop()
			return
		case <-timer.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		ok, err := s.Refresh(ctx, fn)
		cancel()
		if err != nil {
			logger.Warnf("auto refresh failed: %v", err)
			if onFailure != nil {
				onFailure(err)
			}
			return
		}
		if !ok {
			// a manual refresh was in flight; back off and re-read the expiry
			select {
			case <-h.done:
				return
			case <-time.After(minRefreshDelay):
			}
		}
	}
}

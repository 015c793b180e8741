package csrf

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
)

// Header is the header name mutating requests carry the token under.
const Header = "X-CSRF-Token"

// Guard holds the per-session anti-forgery token. The API client reads it on
// every mutating call; initialize before the first POST/PUT/PATCH/DELETE.
type Guard struct {
	mu    sync.RWMutex
	token string
}

func NewGuard() *Guard { return &Guard{} }

// Initialize generates a token if none is held. Calling it again is a no-op,
// so login paths can call it unconditionally.
func (g *Guard) Initialize() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.token != "" {
		return g.token, nil
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	g.token = hex.EncodeToString(b)
	return g.token, nil
}

// SetToken replaces the held token, used when the server supplies its own
// CSRF token at login. Empty values are ignored.
func (g *Guard) SetToken(token string) {
	if token == "" {
		return
	}
	g.mu.Lock()
	g.token = token
	g.mu.Unlock()
}

// Token returns the current token, or "" when uninitialized.
func (g *Guard) Token() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.token
}

// Clear drops the token. Safe to call when no token is held.
func (g *Guard) Clear() {
	g.mu.Lock()
	g.token = ""
	g.mu.Unlock()
}

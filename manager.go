// Package authclient is the Go session client for the netpanel platform
// APIs. A Manager owns one session: it logs in, holds token material in a
// restricted vault, keeps the access token fresh in the background, answers
// synchronous permission checks and tears everything down on logout or
// refresh failure.
package authclient

import (
	"context"
	"sync"
	"time"

	"github.com/netpanel/netpanel/clients/go-auth/internal/api"
	"github.com/netpanel/netpanel/clients/go-auth/internal/autherr"
	"github.com/netpanel/netpanel/clients/go-auth/internal/config"
	"github.com/netpanel/netpanel/clients/go-auth/internal/csrf"
	"github.com/netpanel/netpanel/clients/go-auth/internal/models"
	"github.com/netpanel/netpanel/clients/go-auth/internal/ratelimit"
	"github.com/netpanel/netpanel/clients/go-auth/internal/session"
	"github.com/netpanel/netpanel/clients/go-auth/internal/tokens"
	"github.com/netpanel/netpanel/clients/go-auth/pkg/logger"
	"github.com/netpanel/netpanel/clients/go-auth/pkg/metrics"
)

// Public aliases so SDK consumers never need the internal packages.
type (
	User               = models.User
	Credentials        = api.Credentials
	TokenPair          = tokens.TokenPair
	Vault              = tokens.Vault
	SnapshotRepository = session.Repository
	Error              = autherr.Error
	ErrorKind          = autherr.Kind
)

// Error kind re-exports for callers branching on failures.
const (
	KindRateLimited        = autherr.KindRateLimited
	KindInvalidCredentials = autherr.KindInvalidCredentials
	KindUnauthorized       = autherr.KindUnauthorized
	KindNetworkTransient   = autherr.KindNetworkTransient
	KindRefreshFailed      = autherr.KindRefreshFailed
)

var (
	IsRateLimited  = autherr.IsRateLimited
	IsUnauthorized = autherr.IsUnauthorized
	IsTransient    = autherr.IsTransient
)

// SessionInfo is a read-only copy of the current session state.
type SessionInfo struct {
	User          *User
	Authenticated bool
	SessionID     string
	MFARequired   bool
	MFAVerified   bool
	LastActivity  time.Time
}

// loginAction is the rate-limit ledger key for login attempts.
const loginAction = "login"

// Manager composes the token store, CSRF guard, session store, login
// limiter and API client for one session context. Create one per session
// (per user process, or per request context server-side); it is not a
// package-level singleton.
type Manager struct {
	cfg      *config.Config
	tokens   *tokens.Store
	guard    *csrf.Guard
	sessions *session.Store
	limiter  *ratelimit.Limiter
	api      *api.Client

	mu        sync.Mutex
	onExpired func(error)
}

// Option tweaks Manager construction, mainly for tests and embedders.
type Option func(*options)

type options struct {
	vault     tokens.Vault
	repo      session.Repository
	onExpired func(error)
}

// WithVault overrides the token vault (default: file vault at the configured
// path, memory when no path is configured).
func WithVault(v Vault) Option { return func(o *options) { o.vault = v } }

// WithSnapshotRepository overrides the session snapshot store.
func WithSnapshotRepository(r SnapshotRepository) Option { return func(o *options) { o.repo = r } }

// WithSessionExpiredHandler is called after an automatic refresh failure has
// torn the session down, so the embedder can surface a re-login prompt.
func WithSessionExpiredHandler(fn func(error)) Option { return func(o *options) { o.onExpired = fn } }

// New builds a Manager from configuration and rehydrates any persisted
// session that is still inside its inactivity window.
func New(cfg *config.Config, opts ...Option) *Manager {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.vault == nil {
		if cfg.Storage.VaultPath != "" {
			o.vault = tokens.NewFileVault(cfg.Storage.VaultPath)
		} else {
			o.vault = tokens.NewMemoryVault()
		}
	}
	if o.repo == nil && cfg.Storage.SnapshotPath != "" {
		o.repo = session.NewFileRepository(cfg.Storage.SnapshotPath)
	}

	guard := csrf.NewGuard()
	tokenStore := tokens.NewStore(o.vault)
	m := &Manager{
		cfg:       cfg,
		tokens:    tokenStore,
		guard:     guard,
		sessions:  session.NewStore(o.repo),
		limiter:   ratelimit.NewLimiter(cfg.RateLimit.Burst, cfg.RateLimit.PerMinute),
		api:       api.NewClient(cfg.API.BaseURL, cfg.API.Portal, cfg.API.Timeout, guard, tokenStore),
		onExpired: o.onExpired,
	}
	m.rehydrate()
	return m
}

// rehydrate restores a persisted session on construction. A snapshot without
// a refresh token to back it is useless, so it gets cleared instead of
// presenting an authenticated state that cannot make a single API call.
func (m *Manager) rehydrate() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	restored, err := m.sessions.Rehydrate(ctx)
	if err != nil {
		metrics.Rehydrations.WithLabelValues("error").Inc()
		logger.Warnf("session rehydration failed: %v", err)
		return
	}
	if !restored {
		metrics.Rehydrations.WithLabelValues("empty").Inc()
		return
	}
	if m.tokens.RefreshToken() == "" {
		metrics.Rehydrations.WithLabelValues("stale").Inc()
		logger.Warn("rehydrated session had no token material, clearing")
		m.teardown(ctx)
		return
	}
	metrics.Rehydrations.WithLabelValues("restored").Inc()
	if m.cfg.Auth.AutoRefresh {
		m.armAutoRefresh()
	}
}

// Login authenticates against the platform. The local rate limit is checked
// first and a cooldown rejection does not count as a new attempt. On any
// other failure the attempt is recorded and partial state is cleared.
func (m *Manager) Login(ctx context.Context, creds Credentials) (*User, error) {
	if m.cfg.RateLimit.Enabled {
		if allowed, retryAfter := m.limiter.Check(loginAction); !allowed {
			metrics.LoginAttempts.WithLabelValues("rate_limited").Inc()
			return nil, autherr.RateLimited(retryAfter)
		}
	}
	if _, err := m.guard.Initialize(); err != nil {
		return nil, autherr.New(autherr.KindUnknown, "csrf init failed", err)
	}

	res, err := m.api.Login(ctx, creds)
	if err != nil {
		if !autherr.IsRateLimited(err) {
			m.limiter.Hit(loginAction)
		}
		if autherr.IsUnauthorized(err) {
			metrics.LoginAttempts.WithLabelValues("invalid").Inc()
		} else {
			metrics.LoginAttempts.WithLabelValues("error").Inc()
		}
		// never leave half-built auth state behind a failed login
		m.teardown(ctx)
		return nil, err
	}

	m.limiter.Reset(loginAction)
	m.guard.SetToken(res.CSRFToken)
	if err := m.tokens.Set(res.Pair); err != nil {
		logger.Warnf("token vault write failed at login: %v", err)
	}
	m.sessions.SetAuth(res.User, res.SessionID)
	metrics.LoginAttempts.WithLabelValues("success").Inc()

	if m.cfg.Auth.AutoRefresh {
		m.armAutoRefresh()
	}
	u := res.User
	return &u, nil
}

// Refresh rotates the token pair now, sharing the in-flight guard with the
// background timer: at most one refresh call is ever out at a time. A
// rejected refresh means the session is dead and triggers full teardown.
func (m *Manager) Refresh(ctx context.Context) (bool, error) {
	ok, err := m.tokens.Refresh(ctx, m.api.Refresh)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		m.teardown(ctx)
		return false, err
	}
	if !ok {
		metrics.TokenRefreshes.WithLabelValues("skipped").Inc()
		return false, nil
	}
	metrics.TokenRefreshes.WithLabelValues("success").Inc()
	m.sessions.Touch()
	return true, nil
}

func (m *Manager) armAutoRefresh() {
	m.tokens.AutoRefresh(m.cfg.Auth.RefreshThreshold, m.api.Refresh, func(err error) {
		logger.Warnf("background refresh failed, logging out: %v", err)
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		m.teardown(ctx)
		m.mu.Lock()
		fn := m.onExpired
		m.mu.Unlock()
		if fn != nil {
			fn(err)
		}
	})
}

// Logout invalidates the session server-side (best effort; a network
// failure never blocks local cleanup) and returns the configured redirect
// path for the caller's UI.
func (m *Manager) Logout(ctx context.Context) string {
	if rt := m.tokens.RefreshToken(); rt != "" {
		if err := m.api.Logout(ctx, rt); err != nil {
			logger.Warnf("server-side logout failed (continuing cleanup): %v", err)
		}
	}
	m.teardown(ctx)
	return m.cfg.Auth.LogoutRedirect
}

// teardown is the guaranteed-completion cleanup sequence: every step runs,
// failures are logged, and the session always ends anonymous.
func (m *Manager) teardown(ctx context.Context) {
	if err := m.tokens.Clear(); err != nil {
		logger.Warnf("teardown: token clear failed: %v", err)
	}
	m.guard.Clear()
	if err := m.sessions.Clear(ctx); err != nil {
		logger.Warnf("teardown: snapshot clear failed: %v", err)
	}
}

// CurrentUser fetches the authoritative user record and folds it into the
// session. An expired access token is refreshed first; an Unauthorized
// answer tears the session down rather than being retried.
func (m *Manager) CurrentUser(ctx context.Context) (*User, error) {
	if m.tokens.AccessToken() == "" && m.tokens.RefreshToken() != "" {
		if _, err := m.Refresh(ctx); err != nil {
			return nil, err
		}
	}
	u, err := m.api.CurrentUser(ctx)
	if err != nil {
		if autherr.IsUnauthorized(err) {
			m.teardown(ctx)
		}
		return nil, err
	}
	m.sessions.UpdateUser(u)
	return &u, nil
}

// CompleteMFA marks the pending MFA challenge satisfied after the embedder
// has verified the second factor.
func (m *Manager) CompleteMFA() {
	m.sessions.CompleteMFA()
}

// Touch records user activity, keeping the session inside its window.
func (m *Manager) Touch() { m.sessions.Touch() }

// Session returns a copy of the current session state.
func (m *Manager) Session() SessionInfo {
	s := m.sessions.Current()
	return SessionInfo{
		User:          s.User,
		Authenticated: s.Authenticated,
		SessionID:     s.SessionID,
		MFARequired:   s.MFARequired,
		MFAVerified:   s.MFAVerified,
		LastActivity:  s.LastActivity,
	}
}

// Valid reports whether the session is authenticated and inside the fixed
// 30-minute inactivity window.
func (m *Manager) Valid() bool { return m.sessions.Valid() }

// AccessToken exposes the current unexpired bearer token for callers wiring
// other API clients; "" means refresh or re-login is needed.
func (m *Manager) AccessToken() string { return m.tokens.AccessToken() }

// HasPermission checks the in-memory permission set. No network call; an
// invalid or anonymous session always denies. Super admins are always
// allowed.
func (m *Manager) HasPermission(perm string) bool {
	if !m.sessions.Valid() {
		return false
	}
	return m.sessions.User().HasPermission(perm)
}

// HasRole checks the in-memory role. Super admins short-circuit to allowed.
func (m *Manager) HasRole(role string) bool {
	if !m.sessions.Valid() {
		return false
	}
	u := m.sessions.User()
	if u == nil {
		return false
	}
	return u.Role == role || u.Role == models.RoleSuperAdmin
}

// HasAnyRole reports whether the user holds any of the given roles.
func (m *Manager) HasAnyRole(roles ...string) bool {
	for _, r := range roles {
		if m.HasRole(r) {
			return true
		}
	}
	return false
}

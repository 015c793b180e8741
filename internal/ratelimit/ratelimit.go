package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter enforces a local cooldown on repeated attempts per action key
// (e.g. "login"). It is a per-process token bucket: burst attempts are
// allowed back-to-back, then the bucket refills at perMinute per minute.
// State is in-memory only and not persisted across process restarts.
type Limiter struct {
	burst     int
	perMinute float64
	store     sync.Map // map[string]*rate.Limiter
	now       func() time.Time
}

// NewLimiter creates a limiter with the given window shape. Non-positive
// arguments fall back to 5 attempts refilled at 1 per minute.
func NewLimiter(burst int, perMinute float64) *Limiter {
	if burst <= 0 {
		burst = 5
	}
	if perMinute <= 0 {
		perMinute = 1
	}
	return &Limiter{burst: burst, perMinute: perMinute, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (l *Limiter) WithNow(now func() time.Time) *Limiter {
	l.now = now
	return l
}

func (l *Limiter) get(key string) *rate.Limiter {
	if v, ok := l.store.Load(key); ok {
		return v.(*rate.Limiter)
	}
	lim := rate.NewLimiter(rate.Limit(l.perMinute/60.0), l.burst)
	actual, _ := l.store.LoadOrStore(key, lim)
	return actual.(*rate.Limiter)
}

// Check reports whether an attempt for key would currently be allowed and,
// when it would not, how long until the next one is. Check never consumes
// from the bucket: a rejected caller does not worsen their own cooldown.
func (l *Limiter) Check(key string) (allowed bool, retryAfter time.Duration) {
	lim := l.get(key)
	r := lim.ReserveN(l.now(), 1)
	if !r.OK() {
		return false, time.Minute
	}
	delay := r.DelayFrom(l.now())
	r.CancelAt(l.now())
	if delay > 0 {
		return false, delay
	}
	return true, 0
}

// Hit records one attempt against key, consuming a token. Call after Check
// has allowed the attempt.
func (l *Limiter) Hit(key string) {
	l.get(key).AllowN(l.now(), 1)
}

// Reset clears the window for key, used after a successful login.
func (l *Limiter) Reset(key string) {
	l.store.Delete(key)
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	LoginAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "netpanel_auth", Name: "login_attempts_total", Help: "Number of login attempts by result (success|invalid|rate_limited|error)."},
		[]string{"result"},
	)
	TokenRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "netpanel_auth", Name: "token_refreshes_total", Help: "Number of token refresh operations by result (success|failure|skipped)."},
		[]string{"result"},
	)
	Rehydrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "netpanel_auth", Name: "session_rehydrations_total", Help: "Number of session rehydrations by result (restored|stale|empty|error)."},
		[]string{"result"},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "netpanel_auth", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "netpanel_auth", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(LoginAttempts)
	reg.MustRegister(TokenRefreshes)
	reg.MustRegister(Rehydrations)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}

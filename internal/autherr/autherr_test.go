package autherr

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestKindOfAndHelpers(t *testing.T) {
	err := New(KindUnauthorized, "session rejected", nil)
	require.Equal(t, KindUnauthorized, KindOf(err))
	require.True(t, IsUnauthorized(err))
	require.False(t, IsTransient(err))

	// wrapping keeps the kind reachable
	wrapped := fmt.Errorf("login: %w", err)
	require.Equal(t, KindUnauthorized, KindOf(wrapped))
	require.True(t, IsUnauthorized(wrapped))

	require.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}

func TestRateLimitedCarriesRetryAfter(t *testing.T) {
	err := RateLimited(42 * time.Second)
	require.True(t, IsRateLimited(err))

	var e *Error
	require.True(t, errors.As(err, &e))
	require.Equal(t, 42*time.Second, e.RetryAfter)
}

func TestUnwrapReachesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := New(KindNetworkTransient, "refresh call failed", cause)
	require.True(t, errors.Is(err, cause))
	require.True(t, IsTransient(err))
}

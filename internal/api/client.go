package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/netpanel/netpanel/clients/go-auth/internal/autherr"
	"github.com/netpanel/netpanel/clients/go-auth/internal/csrf"
	"github.com/netpanel/netpanel/clients/go-auth/internal/models"
	"github.com/netpanel/netpanel/clients/go-auth/internal/tokens"
	"github.com/netpanel/netpanel/clients/go-auth/pkg/logger"
)

// BearerSource supplies the current access token for the Authorization
// header; "" means no (valid) token is held.
type BearerSource interface {
	AccessToken() string
}

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Portal   string `json:"portal,omitempty"`
}

// LoginResult carries everything a successful login returns.
type LoginResult struct {
	User      models.User
	Pair      tokens.TokenPair
	SessionID string
	CSRFToken string
}

type loginResponse struct {
	User         models.User `json:"user"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	ExpiresIn    int         `json:"expiresIn"`
	SessionID    string      `json:"sessionId"`
	CSRFToken    string      `json:"csrfToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"`
}

// Client is the thin REST wrapper over the platform auth API. Mutating
// requests carry the CSRF token once the guard is initialized; all requests
// carry the bearer token when one is held.
type Client struct {
	baseURL string
	portal  string
	http    *http.Client
	guard   *csrf.Guard
	bearer  BearerSource
	now     func() time.Time
}

func NewClient(baseURL, portal string, timeout time.Duration, guard *csrf.Guard, bearer BearerSource) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		portal:  portal,
		http:    &http.Client{Timeout: timeout},
		guard:   guard,
		bearer:  bearer,
		now:     time.Now,
	}
}

// Login exchanges credentials for a session. 401 maps to InvalidCredentials
// and is never retried here; the user has to resubmit.
func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	if creds.Portal == "" {
		creds.Portal = c.portal
	}
	var resp loginResponse
	status, retryAfter, err := c.post(ctx, "/auth/login", creds, &resp)
	if err != nil {
		return nil, autherr.New(autherr.KindNetworkTransient, "login call failed", err)
	}
	switch {
	case status == http.StatusOK:
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, autherr.New(autherr.KindInvalidCredentials, "authentication failed", nil)
	case status == http.StatusTooManyRequests:
		if retryAfter <= 0 {
			retryAfter = time.Minute
		}
		return nil, autherr.RateLimited(retryAfter)
	default:
		return nil, autherr.New(autherr.KindNetworkTransient, fmt.Sprintf("login endpoint returned %d", status), nil)
	}
	pair, err := c.pairFromResponse(resp.AccessToken, resp.RefreshToken, resp.ExpiresIn)
	if err != nil {
		return nil, autherr.New(autherr.KindInvalidCredentials, "unusable token in login response", err)
	}
	return &LoginResult{
		User:      resp.User,
		Pair:      pair,
		SessionID: resp.SessionID,
		CSRFToken: resp.CSRFToken,
	}, nil
}

// Refresh exchanges the refresh token for a new pair. A rejection means the
// session is dead: the caller must tear down, not retry.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (tokens.TokenPair, error) {
	body := map[string]string{"refreshToken": refreshToken}
	var resp refreshResponse
	status, _, err := c.post(ctx, "/auth/refresh", body, &resp)
	if err != nil {
		return tokens.TokenPair{}, autherr.New(autherr.KindRefreshFailed, "refresh call failed", err)
	}
	if status != http.StatusOK {
		return tokens.TokenPair{}, autherr.New(autherr.KindRefreshFailed, fmt.Sprintf("refresh endpoint returned %d", status), nil)
	}
	if resp.RefreshToken == "" {
		// server kept the old refresh token; carry it forward
		resp.RefreshToken = refreshToken
	}
	pair, err := c.pairFromResponse(resp.AccessToken, resp.RefreshToken, resp.ExpiresIn)
	if err != nil {
		return tokens.TokenPair{}, autherr.New(autherr.KindRefreshFailed, "unusable token in refresh response", err)
	}
	return pair, nil
}

// Logout invalidates the session server-side. Best effort: callers ignore
// the error for cleanup purposes and only log it.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	body := map[string]string{}
	if refreshToken != "" {
		body["refreshToken"] = refreshToken
	}
	status, _, err := c.post(ctx, "/auth/logout", body, nil)
	if err != nil {
		return autherr.New(autherr.KindNetworkTransient, "logout call failed", err)
	}
	if status != http.StatusOK {
		return autherr.New(autherr.KindNetworkTransient, fmt.Sprintf("logout endpoint returned %d", status), nil)
	}
	return nil
}

// currentUserRetries is the bounded extra-attempt count for transient
// failures on the session query; Unauthorized is never retried.
const currentUserRetries = 2

// CurrentUser fetches the user behind the bearer token.
func (c *Client) CurrentUser(ctx context.Context) (models.User, error) {
	var last error
	for attempt := 0; attempt <= currentUserRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return models.User{}, autherr.New(autherr.KindNetworkTransient, "session query cancelled", ctx.Err())
			case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
			}
		}
		var out struct {
			User models.User `json:"user"`
		}
		status, err := c.get(ctx, "/api/v1/me", &out)
		if err != nil {
			last = autherr.New(autherr.KindNetworkTransient, "session query failed", err)
			continue
		}
		switch status {
		case http.StatusOK:
			return out.User, nil
		case http.StatusUnauthorized, http.StatusForbidden:
			// definitive: do not hammer a dead session
			return models.User{}, autherr.New(autherr.KindUnauthorized, "session rejected", nil)
		default:
			last = autherr.New(autherr.KindNetworkTransient, fmt.Sprintf("session endpoint returned %d", status), nil)
		}
	}
	return models.User{}, last
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) (int, time.Duration, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return 0, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuthHeaders(req, true)
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, err
	}
	c.setAuthHeaders(req, false)
	status, _, err := c.do(req, out)
	return status, err
}

func (c *Client) setAuthHeaders(req *http.Request, mutating bool) {
	if c.bearer != nil {
		if at := c.bearer.AccessToken(); at != "" {
			req.Header.Set("Authorization", "Bearer "+at)
		}
	}
	if mutating && c.guard != nil {
		if tok := c.guard.Token(); tok != "" {
			req.Header.Set(csrf.Header, tok)
		}
	}
}

func (c *Client) do(req *http.Request, out interface{}) (int, time.Duration, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()
	var retryAfter time.Duration
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			retryAfter = time.Duration(secs) * time.Second
		}
	}
	if out == nil || resp.StatusCode != http.StatusOK {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, retryAfter, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, retryAfter, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, retryAfter, nil
}

// pairFromResponse builds the TokenPair, preferring the server's expiresIn
// and falling back to the JWT exp claim when it is omitted.
func (c *Client) pairFromResponse(access, refresh string, expiresIn int) (tokens.TokenPair, error) {
	if access == "" {
		return tokens.TokenPair{}, fmt.Errorf("no access token in response")
	}
	var expiresAt time.Time
	if expiresIn > 0 {
		expiresAt = c.now().Add(time.Duration(expiresIn) * time.Second)
	} else {
		exp, err := tokens.ExpiryFromJWT(access)
		if err != nil {
			return tokens.TokenPair{}, err
		}
		logger.Debug("server omitted expiresIn, using token exp claim")
		expiresAt = exp
	}
	return tokens.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
	}, nil
}

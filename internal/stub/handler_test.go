package stub

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/netpanel/netpanel/clients/go-auth/internal/config"
	"github.com/netpanel/netpanel/clients/go-auth/internal/models"
)

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			Secret:          "test-secret",
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 24 * time.Hour,
		},
	}
}

func newTestRouter(t *testing.T) (*gin.Engine, *MemoryAccountRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	accounts := NewMemoryAccountRepository()
	sessions := NewSessionService(NewMemorySessionRepository())
	h := NewAuthHandler(cfg, accounts, sessions, NewLocalVerifier(cfg.JWT.Secret))

	r := gin.New()
	h.Register(r.Group("/"))
	return r, accounts
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func seedTech(t *testing.T, accounts *MemoryAccountRepository) models.User {
	t.Helper()
	u := models.User{
		ID:          "u-100",
		Email:       "tech@netpanel.example",
		Name:        "Field Tech",
		Role:        models.RoleTechnician,
		Permissions: []string{"tickets:read", "tickets:write"},
		TenantID:    "tenant-1",
	}
	require.NoError(t, accounts.Seed(u, "hunter2"))
	return u
}

func TestLoginSuccess(t *testing.T) {
	r, accounts := newTestRouter(t)
	seedTech(t, accounts)

	w := doJSON(t, r, http.MethodPost, "/auth/login", LoginRequest{
		Email:    "tech@netpanel.example",
		Password: "hunter2",
		Portal:   "technician",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		User         models.User `json:"user"`
		AccessToken  string      `json:"accessToken"`
		RefreshToken string      `json:"refreshToken"`
		ExpiresIn    int         `json:"expiresIn"`
		SessionID    string      `json:"sessionId"`
		CSRFToken    string      `json:"csrfToken"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "tech@netpanel.example", resp.User.Email)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)
	require.Equal(t, 900, resp.ExpiresIn)
	require.NotEmpty(t, resp.SessionID)
	require.Len(t, resp.CSRFToken, 64)

	claims, err := ParseAccessToken("test-secret", resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "u-100", claims["sub"])
	require.Equal(t, models.RoleTechnician, claims["role"])
}

func TestLoginWrongPassword(t *testing.T) {
	r, accounts := newTestRouter(t)
	seedTech(t, accounts)

	w := doJSON(t, r, http.MethodPost, "/auth/login", LoginRequest{
		Email:    "tech@netpanel.example",
		Password: "wrong",
	}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginUnknownAccount(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/auth/login", LoginRequest{
		Email:    "nobody@netpanel.example",
		Password: "whatever",
	}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefreshRotatesToken(t *testing.T) {
	r, accounts := newTestRouter(t)
	seedTech(t, accounts)

	w := doJSON(t, r, http.MethodPost, "/auth/login", LoginRequest{
		Email: "tech@netpanel.example", Password: "hunter2",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var login struct {
		RefreshToken string `json:"refreshToken"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))

	w = doJSON(t, r, http.MethodPost, "/auth/refresh", map[string]string{"refreshToken": login.RefreshToken}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var ref struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
		ExpiresIn    int    `json:"expiresIn"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ref))
	require.NotEmpty(t, ref.AccessToken)
	require.NotEqual(t, login.RefreshToken, ref.RefreshToken)

	// the rotated-out token must be dead
	w = doJSON(t, r, http.MethodPost, "/auth/refresh", map[string]string{"refreshToken": login.RefreshToken}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefreshUnknownToken(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/auth/refresh", map[string]string{"refreshToken": "bogus"}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutRevokesRefreshSession(t *testing.T) {
	r, accounts := newTestRouter(t)
	seedTech(t, accounts)

	w := doJSON(t, r, http.MethodPost, "/auth/login", LoginRequest{
		Email: "tech@netpanel.example", Password: "hunter2",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var login struct {
		RefreshToken string `json:"refreshToken"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))

	w = doJSON(t, r, http.MethodPost, "/auth/logout", map[string]string{"refreshToken": login.RefreshToken}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/auth/refresh", map[string]string{"refreshToken": login.RefreshToken}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// logging out an already-dead token still succeeds
	w = doJSON(t, r, http.MethodPost, "/auth/logout", map[string]string{"refreshToken": login.RefreshToken}, nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestMeRequiresBearer(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMeReturnsAccount(t *testing.T) {
	r, accounts := newTestRouter(t)
	seedTech(t, accounts)

	w := doJSON(t, r, http.MethodPost, "/auth/login", LoginRequest{
		Email: "tech@netpanel.example", Password: "hunter2",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var login struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)
	require.Equal(t, http.StatusOK, w2.Code)

	var me struct {
		User models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &me))
	require.Equal(t, "u-100", me.User.ID)
	require.Contains(t, me.User.Permissions, "tickets:write")
}

func TestMeRejectsForgedToken(t *testing.T) {
	r, accounts := newTestRouter(t)
	u := seedTech(t, accounts)

	forged, err := MintAccessToken("other-secret", &u, time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

// AngelaMos | 2026
// auth_test.go

package auth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localmart/localmart/internal/config"
	"github.com/localmart/localmart/internal/core"
	"github.com/localmart/localmart/internal/middleware"
)

type memTokens struct {
	byID map[string]*Session
}

func (m *memTokens) Insert(_ context.Context, s *Session) error {
	s.CreatedAt = time.Now()
	cp := *s
	m.byID[s.ID] = &cp
	return nil
}

func (m *memTokens) Rotate(ctx context.Context, prevID string, next *Session) error {
	prev, ok := m.byID[prevID]
	if !ok || prev.IsUsed {
		return core.ErrNotFound
	}
	prev.IsUsed = true
	prev.ReplacedByID = &next.ID
	return m.Insert(ctx, next)
}

func (m *memTokens) match(s *Session, key SessionKey, value string) bool {
	switch key {
	case KeyID:
		return s.ID == value
	case KeyHash:
		return s.TokenHash == value
	case KeyFamily:
		return s.FamilyID == value
	case KeyUser:
		return s.UserID == value
	}
	return false
}

func (m *memTokens) Get(_ context.Context, key SessionKey, value string) (*Session, error) {
	for _, s := range m.byID {
		if m.match(s, key, value) {
			cp := *s
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (m *memTokens) Revoke(_ context.Context, key SessionKey, value string) (int64, error) {
	now := time.Now()
	var n int64
	for _, s := range m.byID {
		if m.match(s, key, value) && s.RevokedAt == nil {
			s.RevokedAt = &now
			n++
		}
	}
	return n, nil
}

func (m *memTokens) Live(_ context.Context, userID string) ([]Session, error) {
	var out []Session
	for _, s := range m.byID {
		if s.UserID == userID && s.state(time.Now()) == sessionLive {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memTokens) Purge(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type memUsers struct {
	byID map[string]*UserInfo
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*UserInfo, error) {
	for _, u := range m.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, core.ErrNotFound
}

func (m *memUsers) GetByID(_ context.Context, id string) (*UserInfo, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) Create(_ context.Context, a NewAccount) (*UserInfo, error) {
	if _, err := m.GetByEmail(context.Background(), a.Email); err == nil {
		return nil, core.ErrDuplicateKey
	}
	u := &UserInfo{
		ID:           "u" + string(rune('0'+len(m.byID)+1)),
		Email:        a.Email,
		FirstName:    a.FirstName,
		LastName:     a.LastName,
		PasswordHash: a.PasswordHash,
		TokenVersion: 1,
	}
	m.byID[u.ID] = u
	return u, nil
}

func (m *memUsers) IncrementTokenVersion(_ context.Context, id string) error {
	m.byID[id].TokenVersion++
	return nil
}

func (m *memUsers) UpdatePassword(_ context.Context, id, hash string) error {
	m.byID[id].PasswordHash = hash
	return nil
}

type memLinks struct {
	values map[string]string
}

func (m *memLinks) Put(_ context.Context, key, value string, _ time.Duration) error {
	m.values[key] = value
	return nil
}

func (m *memLinks) Take(_ context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", core.ErrNotFound
	}
	delete(m.values, key)
	return v, nil
}

type captureSender struct {
	email, link string
}

func (c *captureSender) SendMagicLink(_ context.Context, email, link string) error {
	c.email, c.link = email, link
	return nil
}

func testJWT(t *testing.T) *JWTManager {
	t.Helper()
	dir := t.TempDir()
	priv := filepath.Join(dir, "private.pem")
	pub := filepath.Join(dir, "public.pem")
	require.NoError(t, GenerateKeyPair(priv, pub))

	m, err := NewJWTManager(config.JWTConfig{
		PrivateKeyPath:     priv,
		PublicKeyPath:      pub,
		AccessTokenExpire:  15 * time.Minute,
		RefreshTokenExpire: time.Hour,
		Issuer:             "localmart",
		Audience:           "localmart-api",
	})
	require.NoError(t, err)
	return m
}

type fixture struct {
	svc    *Service
	tokens *memTokens
	users  *memUsers
	sender *captureSender
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		tokens: &memTokens{byID: map[string]*Session{}},
		users:  &memUsers{byID: map[string]*UserInfo{}},
		sender: &captureSender{},
	}
	f.svc = NewService(ServiceConfig{
		Repo:         f.tokens,
		JWT:          testJWT(t),
		UserProvider: f.users,
		Links:        &memLinks{values: map[string]string{}},
		Sender:       f.sender,
		MagicLink:    config.MagicLinkConfig{BaseURL: "http://localhost:3000/login"},
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return f
}

func signup(t *testing.T, f *fixture) *LoginResponse {
	t.Helper()
	resp, err := f.svc.Signup(context.Background(), SignupRequest{
		Email:           "alice@example.com",
		Password:        "correct horse",
		PasswordConfirm: "correct horse",
		FirstName:       "Alice",
	}, ClientMeta{UserAgent: "test", IPAddress: "127.0.0.1"})
	require.NoError(t, err)
	return resp
}

func TestAccessTokenCarriesRoles(t *testing.T) {
	m := testJWT(t)

	token, exp, err := m.CreateAccessToken(AccessTokenClaims{
		UserID:       "u1",
		Roles:        []string{"admin", "vendor"},
		TokenVersion: 4,
	})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), exp, time.Minute)

	claims, err := m.VerifyAccessToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, []string{"admin", "vendor"}, claims.Roles)
	assert.Equal(t, 4, claims.TokenVersion)

	token, _, err = m.CreateAccessToken(AccessTokenClaims{UserID: "u2"})
	require.NoError(t, err)
	claims, err = m.VerifyAccessToken(context.Background(), token)
	require.NoError(t, err)
	assert.Empty(t, claims.Roles)

	_, err = m.VerifyAccessToken(context.Background(), token+"x")
	assert.ErrorIs(t, err, core.ErrTokenInvalid)

	_, err = testJWT(t).VerifyAccessToken(context.Background(), token)
	assert.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestSignupAndLogin(t *testing.T) {
	f := newFixture(t)
	resp := signup(t, f)

	assert.NotEmpty(t, resp.Token)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "alice@example.com", resp.User.Email)
	assert.Equal(t, "Alice", resp.User.FirstName)
	assert.Equal(t, []string{}, resp.User.Roles)

	_, err := f.svc.Signup(context.Background(), SignupRequest{
		Email:           "alice@example.com",
		Password:        "another pass",
		PasswordConfirm: "another pass",
	}, ClientMeta{})
	assert.ErrorIs(t, err, ErrEmailExists)

	_, err = f.svc.Signup(context.Background(), SignupRequest{
		Email:           "bob@example.com",
		Password:        "password1",
		PasswordConfirm: "password2",
	}, ClientMeta{})
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	login, err := f.svc.Login(context.Background(), LoginRequest{
		Email:    "alice@example.com",
		Password: "correct horse",
	}, ClientMeta{})
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, login.User.ID)

	_, err = f.svc.Login(context.Background(), LoginRequest{
		Email:    "alice@example.com",
		Password: "wrong horse",
	}, ClientMeta{})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Login(context.Background(), LoginRequest{
		Email:    "nobody@example.com",
		Password: "whatever1",
	}, ClientMeta{})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefreshRotationAndReuse(t *testing.T) {
	f := newFixture(t)
	first := signup(t, f)

	second, err := f.svc.Refresh(context.Background(), first.RefreshToken, ClientMeta{})
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err = f.svc.Refresh(context.Background(), first.RefreshToken, ClientMeta{})
	assert.ErrorIs(t, err, ErrTokenReuse)

	_, err = f.svc.Refresh(context.Background(), second.RefreshToken, ClientMeta{})
	assert.ErrorIs(t, err, core.ErrTokenRevoked)

	_, err = f.svc.Refresh(context.Background(), "never-issued", ClientMeta{})
	assert.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestLogoutRejectsForeignToken(t *testing.T) {
	f := newFixture(t)
	resp := signup(t, f)

	assert.ErrorIs(t, f.svc.Logout(context.Background(), resp.RefreshToken, "someone-else"), core.ErrForbidden)
	require.NoError(t, f.svc.Logout(context.Background(), resp.RefreshToken, resp.User.ID))

	_, err := f.svc.Refresh(context.Background(), resp.RefreshToken, ClientMeta{})
	assert.ErrorIs(t, err, core.ErrTokenRevoked)
}

func TestMagicLinkIsSingleUse(t *testing.T) {
	f := newFixture(t)
	resp := signup(t, f)

	require.NoError(t, f.svc.RequestMagicLink(context.Background(), "alice@example.com"))
	require.Equal(t, "alice@example.com", f.sender.email)

	link, err := url.Parse(f.sender.link)
	require.NoError(t, err)
	assert.Equal(t, "/login", link.Path)
	token := link.Query().Get("token")
	require.NotEmpty(t, token)

	login, err := f.svc.VerifyMagicLink(context.Background(), token, ClientMeta{})
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, login.User.ID)

	_, err = f.svc.VerifyMagicLink(context.Background(), token, ClientMeta{})
	assert.ErrorIs(t, err, ErrMagicLinkInvalid)

	f.sender.email = ""
	require.NoError(t, f.svc.RequestMagicLink(context.Background(), "ghost@example.com"))
	assert.Empty(t, f.sender.email)
}

func TestHandlerErrors(t *testing.T) {
	f := newFixture(t)
	signup(t, f)

	r := chi.NewRouter()
	NewHandler(f.svc).RegisterRoutes(r, func(next http.Handler) http.Handler { return next }, nil)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		detail string
	}{
		{
			"bad login",
			"/auth/login",
			`{"email":"alice@example.com","password":"wrong horse"}`,
			http.StatusUnauthorized,
			"Invalid email or password",
		},
		{
			"password mismatch",
			"/auth/signup",
			`{"email":"bob@example.com","password":"password1","passwordConfirm":"password2"}`,
			http.StatusBadRequest,
			"passwordconfirm must match password",
		},
		{
			"duplicate email",
			"/auth/signup",
			`{"email":"alice@example.com","password":"password1","passwordConfirm":"password1"}`,
			http.StatusConflict,
			"email already exists",
		},
		{
			"malformed body",
			"/auth/login",
			`{`,
			http.StatusBadRequest,
			"invalid request body",
		},
		{
			"unknown magic token",
			"/auth/magic-link/verify",
			`{"token":"aaaaaaaaaaaaaaaaaaaaaaaa"}`,
			http.StatusUnauthorized,
			"Login link is invalid or has expired",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body)))
			assert.Equal(t, tt.status, rec.Code)

			var body core.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.detail, body.Detail)
		})
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/magic-link",
		strings.NewReader(`{"email":"alice@example.com"}`)))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestSessionsListAndRevoke(t *testing.T) {
	f := newFixture(t)
	first := signup(t, f)
	_, err := f.svc.Refresh(context.Background(), first.RefreshToken, ClientMeta{UserAgent: "phone"})
	require.NoError(t, err)

	sessions, err := f.svc.Sessions(context.Background(), first.User.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "phone", sessions[0].UserAgent)

	err = f.svc.RevokeSession(context.Background(), "intruder", sessions[0].ID)
	assert.ErrorIs(t, err, core.ErrForbidden)

	require.NoError(t, f.svc.RevokeSession(context.Background(), first.User.ID, sessions[0].ID))
	sessions, err = f.svc.Sessions(context.Background(), first.User.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestLogoutAllBumpsTokenVersion(t *testing.T) {
	f := newFixture(t)
	resp := signup(t, f)

	require.NoError(t, f.svc.LogoutAll(context.Background(), resp.User.ID))
	assert.Equal(t, 2, f.users.byID[resp.User.ID].TokenVersion)

	_, err := f.svc.Refresh(context.Background(), resp.RefreshToken, ClientMeta{})
	assert.ErrorIs(t, err, core.ErrTokenRevoked)
}

func TestLogoutAllRevokesAccessTokens(t *testing.T) {
	f := newFixture(t)
	resp := signup(t, f)

	h := middleware.Authenticator(f.svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		core.OK(w, middleware.GetUserRoles(r.Context()))
	}))
	call := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v0/auth/sessions", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, call(resp.Token).Code)

	require.NoError(t, f.svc.LogoutAll(context.Background(), resp.User.ID))

	rec := call(resp.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "TOKEN_REVOKED", body.Code)

	again, err := f.svc.Login(context.Background(), LoginRequest{
		Email:    "alice@example.com",
		Password: "correct horse",
	}, ClientMeta{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, call(again.Token).Code)
}

func TestVerifyAccessTokenUsesCurrentRoles(t *testing.T) {
	f := newFixture(t)
	resp := signup(t, f)
	f.users.byID[resp.User.ID].Roles = []string{"vendor"}

	claims, err := f.svc.VerifyAccessToken(context.Background(), resp.Token)
	require.NoError(t, err)
	assert.Equal(t, []string{"vendor"}, claims.Roles)

	delete(f.users.byID, resp.User.ID)
	_, err = f.svc.VerifyAccessToken(context.Background(), resp.Token)
	assert.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestRefreshReuseResponse(t *testing.T) {
	f := newFixture(t)
	first := signup(t, f)
	_, err := f.svc.Refresh(context.Background(), first.RefreshToken, ClientMeta{})
	require.NoError(t, err)

	r := chi.NewRouter()
	NewHandler(f.svc).RegisterRoutes(r, func(next http.Handler) http.Handler { return next }, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/refresh",
		strings.NewReader(`{"refresh_token":"`+first.RefreshToken+`"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body core.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "TOKEN_REUSE_DETECTED", body.Code)
}

func TestRotateLosingRaceIsNotFound(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close() //nolint:errcheck

	repo := NewRepository(core.WrapDB(sqlDB).DB)
	next := &Session{ID: "s2", UserID: "u1", TokenHash: "h2", FamilyID: "f1", ExpiresAt: time.Now()}

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $8 AND is_used = false")).
		WithArgs("s2", "u1", "h2", "f1", next.ExpiresAt, "", "", "s1").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}))

	err = repo.Rotate(context.Background(), "s1", next)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// AngelaMos | 2026
// session.go

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/localmart/localmart/internal/auth"
)

const (
	keyAuth      = "auth"
	keyMagicLink = "magic_link"
)

var (
	ErrNotLoggedIn        = errors.New("not logged in")
	ErrNoPendingMagicLink = errors.New("no magic link requested")
)

// Session is the persisted login.
type Session struct {
	ID           string   `json:"id"`
	Email        string   `json:"email"`
	Name         string   `json:"name"`
	Token        string   `json:"token"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	Roles        []string `json:"roles"`
}

func (s *Session) IsAdmin() bool {
	return slices.Contains(s.Roles, "admin")
}

type pendingMagicLink struct {
	Email       string    `json:"email"`
	RequestedAt time.Time `json:"requested_at"`
}

// Authenticator is the slice of the API the session needs.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*auth.LoginResponse, error)
	Signup(ctx context.Context, req auth.SignupRequest) (*auth.LoginResponse, error)
	RequestMagicLink(ctx context.Context, email string) error
	VerifyMagicLink(ctx context.Context, token string) (*auth.LoginResponse, error)
	Logout(ctx context.Context, token, refreshToken string) error
}

// Manager owns the login state. Password login and the magic link flow
// exclude each other: starting either discards whatever the other left.
type Manager struct {
	store  *Store
	api    Authenticator
	logger *slog.Logger
	now    func() time.Time
}

func NewManager(store *Store, api Authenticator, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, api: api, logger: logger, now: time.Now}
}

// Load rehydrates the saved session.
func (m *Manager) Load() (*Session, error) {
	var s Session
	ok, err := m.store.Get(keyAuth, &s)
	if err != nil {
		return nil, err
	}
	if !ok || s.Token == "" {
		return nil, ErrNotLoggedIn
	}
	return &s, nil
}

func (m *Manager) Login(ctx context.Context, email, password string) (*Session, error) {
	if err := m.store.Delete(keyMagicLink); err != nil {
		return nil, err
	}
	resp, err := m.api.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return m.persist(resp)
}

func (m *Manager) Signup(ctx context.Context, req auth.SignupRequest) (*Session, error) {
	if err := m.store.Delete(keyMagicLink); err != nil {
		return nil, err
	}
	resp, err := m.api.Signup(ctx, req)
	if err != nil {
		return nil, err
	}
	return m.persist(resp)
}

// RequestMagicLink signs out any password session and records the pending
// email until the link is completed.
func (m *Manager) RequestMagicLink(ctx context.Context, email string) error {
	if err := m.store.Delete(keyAuth); err != nil {
		return err
	}
	if err := m.api.RequestMagicLink(ctx, email); err != nil {
		return err
	}
	return m.store.Set(keyMagicLink, pendingMagicLink{
		Email:       strings.ToLower(strings.TrimSpace(email)),
		RequestedAt: m.now().UTC(),
	})
}

func (m *Manager) CompleteMagicLink(ctx context.Context, token string) (*Session, error) {
	var pending pendingMagicLink
	ok, err := m.store.Get(keyMagicLink, &pending)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoPendingMagicLink
	}

	resp, err := m.api.VerifyMagicLink(ctx, token)
	if err != nil {
		return nil, err
	}
	s, err := m.persist(resp)
	if err != nil {
		return nil, err
	}
	if err := m.store.Delete(keyMagicLink); err != nil {
		return nil, err
	}
	return s, nil
}

// Logout clears local state even when the server cannot be reached.
func (m *Manager) Logout(ctx context.Context) error {
	s, err := m.Load()
	if errors.Is(err, ErrNotLoggedIn) {
		return m.store.Delete(keyMagicLink)
	}
	if err != nil {
		return err
	}

	if s.RefreshToken != "" {
		if err := m.api.Logout(ctx, s.Token, s.RefreshToken); err != nil {
			m.logger.Warn("server logout failed", "error", err)
		}
	}
	return m.store.Delete(keyAuth, keyMagicLink)
}

func (m *Manager) persist(resp *auth.LoginResponse) (*Session, error) {
	roles := resp.User.Roles
	if roles == nil {
		roles = []string{}
	}
	s := &Session{
		ID:           resp.User.ID,
		Email:        resp.User.Email,
		Name:         strings.TrimSpace(resp.User.FirstName + " " + resp.User.LastName),
		Token:        resp.Token,
		RefreshToken: resp.RefreshToken,
		Roles:        roles,
	}
	if err := m.store.Set(keyAuth, s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return s, nil
}

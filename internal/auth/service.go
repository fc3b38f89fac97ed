// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/localmart/localmart/internal/config"
	"github.com/localmart/localmart/internal/core"
	"github.com/localmart/localmart/internal/middleware"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenReuse         = errors.New("token reuse detected")
	ErrEmailExists        = errors.New("email already exists")
	ErrMagicLinkInvalid   = errors.New("magic link invalid or expired")
)

// purgeGrace keeps expired sessions around for a day so reuse of a
// just-expired token is still reported as reuse.
const purgeGrace = 24 * time.Hour

type UserInfo struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	Roles        []string
	TokenVersion int
}

type NewAccount struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
}

// UserProvider is the slice of the user service that authentication needs.
type UserProvider interface {
	GetByEmail(ctx context.Context, email string) (*UserInfo, error)
	GetByID(ctx context.Context, id string) (*UserInfo, error)
	Create(ctx context.Context, account NewAccount) (*UserInfo, error)
	IncrementTokenVersion(ctx context.Context, userID string) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

type Service struct {
	repo    Repository
	jwt     *JWTManager
	users   UserProvider
	links   core.OneTimeStore
	sender  Sender
	linkCfg config.MagicLinkConfig
	logger  *slog.Logger
}

type ServiceConfig struct {
	Repo         Repository
	JWT          *JWTManager
	UserProvider UserProvider
	// Redis backs magic links when Links is nil.
	Redis     redis.Cmdable
	Links     core.OneTimeStore
	Sender    Sender
	MagicLink config.MagicLinkConfig
	Logger    *slog.Logger
}

func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:    cfg.Repo,
		jwt:     cfg.JWT,
		users:   cfg.UserProvider,
		links:   cfg.Links,
		sender:  cfg.Sender,
		linkCfg: cfg.MagicLink,
		logger:  logger,
	}
	if s.sender == nil {
		s.sender = NewLogSender(logger)
	}
	if s.links == nil {
		s.links = core.NewOneTimeStore(cfg.Redis, "magic:")
	}
	if s.linkCfg.TTL <= 0 {
		s.linkCfg.TTL = 15 * time.Minute
	}
	return s
}

func (s *Service) Login(ctx context.Context, req LoginRequest, meta ClientMeta) (*LoginResponse, error) {
	var stored *string
	user, err := s.users.GetByEmail(ctx, req.Email)
	switch {
	case err == nil:
		stored = &user.PasswordHash
	case !errors.Is(err, core.ErrNotFound):
		return nil, fmt.Errorf("get user: %w", err)
	}

	// Unknown emails still pay for a hash so timing does not leak accounts.
	ok, upgraded, err := core.VerifyPasswordTimingSafe(req.Password, stored)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok || user == nil {
		return nil, ErrInvalidCredentials
	}

	if upgraded != "" {
		if err := s.users.UpdatePassword(ctx, user.ID, upgraded); err != nil {
			s.logger.WarnContext(ctx, "password rehash not saved", "user_id", user.ID, "error", err)
		}
	}

	return s.startSession(ctx, user, meta, nil)
}

func (s *Service) Signup(ctx context.Context, req SignupRequest, meta ClientMeta) (*LoginResponse, error) {
	if req.Password != req.PasswordConfirm {
		return nil, fmt.Errorf("signup: passwords differ: %w", core.ErrInvalidInput)
	}

	hash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.users.Create(ctx, NewAccount{
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
	})
	if errors.Is(err, core.ErrDuplicateKey) {
		return nil, ErrEmailExists
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.InfoContext(ctx, "user signed up", "user_id", user.ID)
	return s.startSession(ctx, user, meta, nil)
}

// Refresh rotates a refresh token. Presenting a token that was already
// rotated revokes its whole family.
func (s *Service) Refresh(ctx context.Context, token string, meta ClientMeta) (*LoginResponse, error) {
	prev, err := s.repo.Get(ctx, KeyHash, core.HashToken(token))
	if errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("refresh: %w", core.ErrTokenInvalid)
	}
	if err != nil {
		return nil, err
	}

	switch prev.state(time.Now()) {
	case sessionRotated:
		return nil, s.reuse(ctx, prev)
	case sessionRevoked:
		return nil, fmt.Errorf("refresh: %w", core.ErrTokenRevoked)
	case sessionExpired:
		return nil, fmt.Errorf("refresh: %w", core.ErrTokenExpired)
	}

	user, err := s.users.GetByID(ctx, prev.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	resp, err := s.startSession(ctx, user, meta, prev)
	if errors.Is(err, core.ErrNotFound) {
		// Another request rotated prev between our read and write.
		return nil, s.reuse(ctx, prev)
	}
	return resp, err
}

func (s *Service) reuse(ctx context.Context, prev *Session) error {
	s.logger.WarnContext(ctx, "refresh token reuse",
		"user_id", prev.UserID,
		"family_id", prev.FamilyID,
	)
	if _, err := s.repo.Revoke(ctx, KeyFamily, prev.FamilyID); err != nil {
		s.logger.ErrorContext(ctx, "revoke reused family", "family_id", prev.FamilyID, "error", err)
	}
	return ErrTokenReuse
}

// Logout revokes one refresh token. Unknown tokens are not an error.
func (s *Service) Logout(ctx context.Context, token, userID string) error {
	sess, err := s.repo.Get(ctx, KeyHash, core.HashToken(token))
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if sess.UserID != userID {
		return fmt.Errorf("logout: %w", core.ErrForbidden)
	}
	_, err = s.repo.Revoke(ctx, KeyID, sess.ID)
	return err
}

// LogoutAll revokes every refresh token and bumps the token version so
// outstanding access tokens stop verifying too.
func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	if _, err := s.repo.Revoke(ctx, KeyUser, userID); err != nil {
		return err
	}
	if err := s.users.IncrementTokenVersion(ctx, userID); err != nil {
		return fmt.Errorf("increment token version: %w", err)
	}
	return nil
}

// VerifyAccessToken checks the signature and then the user's current
// token version, so LogoutAll cuts off outstanding access tokens. Roles
// come from the user row, not the token.
func (s *Service) VerifyAccessToken(ctx context.Context, raw string) (*middleware.AccessTokenClaims, error) {
	claims, err := s.jwt.VerifyAccessToken(ctx, raw)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("verify token: unknown subject: %w", core.ErrTokenInvalid)
	}
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	if claims.TokenVersion < user.TokenVersion {
		return nil, fmt.Errorf("verify token: version %d < %d: %w",
			claims.TokenVersion, user.TokenVersion, core.ErrTokenRevoked)
	}

	claims.Roles = user.Roles
	if claims.Roles == nil {
		claims.Roles = []string{}
	}
	return claims, nil
}

// RequestMagicLink mails a single-use login link. Unknown emails succeed
// silently so the endpoint cannot be used to probe accounts.
func (s *Service) RequestMagicLink(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		s.logger.DebugContext(ctx, "magic link for unknown email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	token, err := core.GenerateMagicToken()
	if err != nil {
		return err
	}
	if err := s.links.Put(ctx, core.HashToken(token), user.ID, s.linkCfg.TTL); err != nil {
		return fmt.Errorf("store magic link: %w", err)
	}

	link, err := magicLinkURL(s.linkCfg.BaseURL, token)
	if err != nil {
		return err
	}
	if err := s.sender.SendMagicLink(ctx, user.Email, link); err != nil {
		return fmt.Errorf("send magic link: %w", err)
	}
	return nil
}

func (s *Service) VerifyMagicLink(ctx context.Context, token string, meta ClientMeta) (*LoginResponse, error) {
	userID, err := s.links.Take(ctx, core.HashToken(token))
	if errors.Is(err, core.ErrNotFound) {
		return nil, ErrMagicLinkInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("redeem magic link: %w", err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, ErrMagicLinkInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return s.startSession(ctx, user, meta, nil)
}

func magicLinkURL(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse magic link base: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *Service) Sessions(ctx context.Context, userID string) ([]SessionInfo, error) {
	live, err := s.repo.Live(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]SessionInfo, len(live))
	for i, sess := range live {
		out[i] = SessionInfo{
			ID:        sess.ID,
			UserAgent: sess.UserAgent,
			IPAddress: sess.IPAddress,
			CreatedAt: sess.CreatedAt,
			ExpiresAt: sess.ExpiresAt,
		}
	}
	return out, nil
}

func (s *Service) RevokeSession(ctx context.Context, userID, sessionID string) error {
	sess, err := s.repo.Get(ctx, KeyID, sessionID)
	if err != nil {
		return err
	}
	if sess.UserID != userID {
		return fmt.Errorf("revoke session: %w", core.ErrForbidden)
	}
	_, err = s.repo.Revoke(ctx, KeyID, sessionID)
	return err
}

// ChangePassword ends every session, including the caller's.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	ok, _, err := core.VerifyPasswordTimingSafe(current, &user.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return ErrInvalidCredentials
	}

	hash, err := core.HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return s.LogoutAll(ctx, userID)
}

func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.repo.Purge(ctx, time.Now().Add(-purgeGrace))
}

// startSession issues an access token and a refresh token. With prev set
// the refresh token joins prev's family and prev is marked rotated.
func (s *Service) startSession(
	ctx context.Context,
	user *UserInfo,
	meta ClientMeta,
	prev *Session,
) (*LoginResponse, error) {
	roles := user.Roles
	if roles == nil {
		roles = []string{}
	}

	access, expiresAt, err := s.jwt.CreateAccessToken(AccessTokenClaims{
		UserID:       user.ID,
		Roles:        roles,
		TokenVersion: user.TokenVersion,
	})
	if err != nil {
		return nil, err
	}

	family := ""
	if prev != nil {
		family = prev.FamilyID
	}
	refresh, err := s.jwt.CreateRefreshToken(user.ID, family)
	if err != nil {
		return nil, err
	}

	next := &Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: refresh.Hash,
		FamilyID:  refresh.FamilyID,
		ExpiresAt: refresh.ExpiresAt,
		UserAgent: meta.UserAgent,
		IPAddress: meta.IPAddress,
	}
	if prev == nil {
		err = s.repo.Insert(ctx, next)
	} else {
		err = s.repo.Rotate(ctx, prev.ID, next)
	}
	if err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	return &LoginResponse{
		Token:        access,
		RefreshToken: refresh.Token,
		ExpiresAt:    expiresAt,
		User: UserResponse{
			ID:        user.ID,
			Email:     user.Email,
			FirstName: user.FirstName,
			LastName:  user.LastName,
			Roles:     roles,
		},
	}, nil
}

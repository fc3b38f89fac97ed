// AngelaMos | 2026
// jwt.go

package auth

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/localmart/localmart/internal/config"
	"github.com/localmart/localmart/internal/core"
	"github.com/localmart/localmart/internal/middleware"
)

const (
	claimRoles        = "roles"
	claimTokenVersion = "token_version"
	claimType         = "type"
	typeAccess        = "access"
)

// JWTManager signs ES256 access tokens and mints opaque refresh tokens.
// Access tokens carry the user's roles so rule checks never need a user
// lookup; token_version lets "log out everywhere" revoke them early.
type JWTManager struct {
	signing jwk.Key
	verify  jwk.Key
	jwks    jwk.Set
	kid     string
	cfg     config.JWTConfig
}

func NewJWTManager(cfg config.JWTConfig) (*JWTManager, error) {
	signing, err := loadSigningKey(cfg.PrivateKeyPath)
	if err != nil {
		return nil, err
	}

	verify, err := signing.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("derive public key: %w", err)
	}

	// The key id is the public key's thumbprint, so every API instance
	// sharing a key pair advertises the same kid.
	thumb, err := verify.Thumbprint(crypto.SHA256)
	if err != nil {
		return nil, fmt.Errorf("thumbprint public key: %w", err)
	}
	kid := hex.EncodeToString(thumb)[:16]

	for _, k := range []jwk.Key{signing, verify} {
		if err := k.Set(jwk.KeyIDKey, kid); err != nil {
			return nil, fmt.Errorf("set key id: %w", err)
		}
		if err := k.Set(jwk.AlgorithmKey, jwa.ES256()); err != nil {
			return nil, fmt.Errorf("set algorithm: %w", err)
		}
	}
	if err := verify.Set(jwk.KeyUsageKey, "sig"); err != nil {
		return nil, fmt.Errorf("set key usage: %w", err)
	}

	jwks := jwk.NewSet()
	if err := jwks.AddKey(verify); err != nil {
		return nil, fmt.Errorf("build jwks: %w", err)
	}

	return &JWTManager{signing: signing, verify: verify, jwks: jwks, kid: kid, cfg: cfg}, nil
}

func loadSigningKey(path string) (jwk.Key, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	key, err := jwk.ParseKey(pem, jwk.WithPEM(true))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

// GenerateKeyPair writes a fresh P-256 key pair as PEM, for local
// development and tests.
func GenerateKeyPair(privateKeyPath, publicKeyPath string) error {
	raw, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}

	private, err := jwk.Import(raw)
	if err != nil {
		return fmt.Errorf("import private key: %w", err)
	}
	public, err := private.PublicKey()
	if err != nil {
		return fmt.Errorf("derive public key: %w", err)
	}

	for _, out := range []struct {
		key  jwk.Key
		path string
		perm os.FileMode
	}{
		{private, privateKeyPath, 0o600},
		{public, publicKeyPath, 0o644},
	} {
		pem, err := jwk.Pem(out.key)
		if err != nil {
			return fmt.Errorf("encode %s: %w", out.path, err)
		}
		if err := os.WriteFile(out.path, pem, out.perm); err != nil {
			return fmt.Errorf("write %s: %w", out.path, err)
		}
	}
	return nil
}

type AccessTokenClaims struct {
	UserID       string
	Roles        []string
	TokenVersion int
}

// CreateAccessToken signs claims and reports when the token expires.
func (m *JWTManager) CreateAccessToken(claims AccessTokenClaims) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(m.cfg.AccessTokenExpire)

	roles := claims.Roles
	if roles == nil {
		roles = []string{}
	}

	token, err := jwt.NewBuilder().
		JwtID(uuid.NewString()).
		Issuer(m.cfg.Issuer).
		Audience([]string{m.cfg.Audience}).
		Subject(claims.UserID).
		IssuedAt(now).
		NotBefore(now).
		Expiration(expiresAt).
		Claim(claimRoles, roles).
		Claim(claimTokenVersion, claims.TokenVersion).
		Claim(claimType, typeAccess).
		Build()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.ES256(), m.signing))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return string(signed), expiresAt, nil
}

func invalid(reason string) error {
	return fmt.Errorf("verify token: %s: %w", reason, core.ErrTokenInvalid)
}

// VerifyAccessToken checks signature, issuer, audience and lifetime and
// returns the claims middleware attaches to the request.
func (m *JWTManager) VerifyAccessToken(
	_ context.Context,
	raw string,
) (*middleware.AccessTokenClaims, error) {
	token, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.ES256(), m.verify),
		jwt.WithValidate(true),
		jwt.WithIssuer(m.cfg.Issuer),
		jwt.WithAudience(m.cfg.Audience),
	)
	if err != nil {
		if expired(err) {
			return nil, fmt.Errorf("verify token: %w", core.ErrTokenExpired)
		}
		return nil, invalid("parse")
	}

	var typ string
	if err := token.Get(claimType, &typ); err != nil || typ != typeAccess {
		return nil, invalid("not an access token")
	}

	subject, ok := token.Subject()
	if !ok || subject == "" {
		return nil, invalid("missing subject")
	}

	var rawRoles any
	if err := token.Get(claimRoles, &rawRoles); err != nil {
		return nil, invalid("missing roles")
	}
	roles, ok := stringList(rawRoles)
	if !ok {
		return nil, invalid("malformed roles")
	}

	// JSON numbers decode as float64.
	var version float64
	if err := token.Get(claimTokenVersion, &version); err != nil {
		return nil, invalid("missing token_version")
	}

	return &middleware.AccessTokenClaims{
		UserID:       subject,
		Roles:        roles,
		TokenVersion: int(version),
	}, nil
}

func stringList(raw any) ([]string, bool) {
	switch v := raw.(type) {
	case nil:
		return []string{}, true
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func expired(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "exp") && strings.Contains(msg, "not satisfied")
}

// JWKSHandler serves the public key set so other services can verify
// LocalMart tokens.
func (m *JWTManager) JWKSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		if err := json.NewEncoder(w).Encode(m.jwks); err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	}
}

func (m *JWTManager) KeyID() string {
	return m.kid
}

type RefreshTokenData struct {
	Token     string
	Hash      string
	ExpiresAt time.Time
	FamilyID  string
}

// CreateRefreshToken mints a token in familyID, or in a new family when
// familyID is empty. Only the hash is persisted.
func (m *JWTManager) CreateRefreshToken(userID, familyID string) (*RefreshTokenData, error) {
	token, err := core.GenerateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token for %s: %w", userID, err)
	}
	if familyID == "" {
		familyID = uuid.NewString()
	}
	return &RefreshTokenData{
		Token:     token,
		Hash:      core.HashToken(token),
		ExpiresAt: time.Now().Add(m.cfg.RefreshTokenExpire),
		FamilyID:  familyID,
	}, nil
}

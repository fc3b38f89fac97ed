// AngelaMos | 2026
// repository.go

package auth

import (
	"context"
	"time"

	"github.com/localmart/localmart/internal/core"
)

// SessionKey names the column a lookup or revocation matches on.
type SessionKey string

const (
	KeyID     SessionKey = "id"
	KeyHash   SessionKey = "token_hash"
	KeyFamily SessionKey = "family_id"
	KeyUser   SessionKey = "user_id"
)

type Repository interface {
	Insert(ctx context.Context, s *Session) error
	// Rotate marks prevID used and inserts next in one statement. It
	// fails with core.ErrNotFound when prevID was already rotated.
	Rotate(ctx context.Context, prevID string, next *Session) error
	Get(ctx context.Context, key SessionKey, value string) (*Session, error)
	Revoke(ctx context.Context, key SessionKey, value string) (int64, error)
	Live(ctx context.Context, userID string) ([]Session, error)
	Purge(ctx context.Context, expiredBefore time.Time) (int64, error)
}

const sessionColumns = `id, user_id, token_hash, family_id, expires_at, created_at,
	is_used, used_at, revoked_at, replaced_by_id, user_agent, ip_address`

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func sessionArgs(s *Session) []any {
	return []any{s.ID, s.UserID, s.TokenHash, s.FamilyID, s.ExpiresAt, s.UserAgent, s.IPAddress}
}

func (r *repository) Insert(ctx context.Context, s *Session) error {
	err := r.db.GetContext(ctx, &s.CreatedAt, `
		INSERT INTO refresh_tokens
			(id, user_id, token_hash, family_id, expires_at, user_agent, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		sessionArgs(s)...,
	)
	return core.MapError("insert session", err)
}

func (r *repository) Rotate(ctx context.Context, prevID string, next *Session) error {
	err := r.db.GetContext(ctx, &next.CreatedAt, `
		WITH prev AS (
			UPDATE refresh_tokens
			SET is_used = true, used_at = NOW(), replaced_by_id = $1
			WHERE id = $8 AND is_used = false
			RETURNING id
		)
		INSERT INTO refresh_tokens
			(id, user_id, token_hash, family_id, expires_at, user_agent, ip_address)
		SELECT $1, $2, $3, $4, $5, $6, $7 FROM prev
		RETURNING created_at`,
		append(sessionArgs(next), prevID)...,
	)
	return core.MapError("rotate session", err)
}

func (r *repository) Get(ctx context.Context, key SessionKey, value string) (*Session, error) {
	var s Session
	err := r.db.GetContext(ctx, &s,
		`SELECT `+sessionColumns+` FROM refresh_tokens WHERE `+string(key)+` = $1 LIMIT 1`,
		value,
	)
	if err != nil {
		return nil, core.MapError("get session", err)
	}
	return &s, nil
}

func (r *repository) Revoke(ctx context.Context, key SessionKey, value string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = NOW()
		WHERE `+string(key)+` = $1 AND revoked_at IS NULL`,
		value,
	)
	if err != nil {
		return 0, core.MapError("revoke sessions", err)
	}
	return res.RowsAffected()
}

func (r *repository) Live(ctx context.Context, userID string) ([]Session, error) {
	var out []Session
	err := r.db.SelectContext(ctx, &out, `
		SELECT `+sessionColumns+`
		FROM refresh_tokens
		WHERE user_id = $1 AND revoked_at IS NULL AND NOT is_used AND expires_at > NOW()
		ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, core.MapError("list sessions", err)
	}
	return out, nil
}

func (r *repository) Purge(ctx context.Context, expiredBefore time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < $1`, expiredBefore)
	if err != nil {
		return 0, core.MapError("purge sessions", err)
	}
	return res.RowsAffected()
}

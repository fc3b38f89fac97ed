// AngelaMos | 2026
// entity.go

package auth

import (
	"time"
)

// Session is one link in a refresh token chain. Login starts a family and
// every refresh replaces the current link with a new row in that family.
type Session struct {
	ID           string     `db:"id"`
	UserID       string     `db:"user_id"`
	TokenHash    string     `db:"token_hash"`
	FamilyID     string     `db:"family_id"`
	ExpiresAt    time.Time  `db:"expires_at"`
	CreatedAt    time.Time  `db:"created_at"`
	IsUsed       bool       `db:"is_used"`
	UsedAt       *time.Time `db:"used_at"`
	RevokedAt    *time.Time `db:"revoked_at"`
	ReplacedByID *string    `db:"replaced_by_id"`
	UserAgent    string     `db:"user_agent"`
	IPAddress    string     `db:"ip_address"`
}

type sessionState int

const (
	sessionLive sessionState = iota
	sessionRotated
	sessionRevoked
	sessionExpired
)

// state checks rotation first: presenting an already rotated token is
// reuse even when the family was revoked since.
func (s *Session) state(now time.Time) sessionState {
	switch {
	case s.IsUsed:
		return sessionRotated
	case s.RevokedAt != nil:
		return sessionRevoked
	case now.After(s.ExpiresAt):
		return sessionExpired
	}
	return sessionLive
}

// ClientMeta is what a login records about the device that made it.
type ClientMeta struct {
	UserAgent string
	IPAddress string
}

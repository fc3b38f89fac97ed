// AngelaMos | 2026
// entity.go

package user

import (
	"slices"
	"strings"
	"time"

	"github.com/lib/pq"
)

type User struct {
	ID           string         `db:"id"`
	Email        string         `db:"email"`
	PasswordHash string         `db:"password_hash"`
	Roles        pq.StringArray `db:"roles"`
	FirstName    string         `db:"first_name"`
	LastName     string         `db:"last_name"`
	PhoneNumber  string         `db:"phone_number"`
	Street1      string         `db:"street_1"`
	Street2      string         `db:"street_2"`
	City         string         `db:"city"`
	State        string         `db:"state"`
	Zip          string         `db:"zip"`
	Latitude     *float64       `db:"latitude"`
	Longitude    *float64       `db:"longitude"`
	TokenVersion int            `db:"token_version"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u *User) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

const (
	RoleAdmin    = "admin"
	RoleDelivery = "delivery"
	RoleVendor   = "vendor"
)

// AngelaMos | 2026
// repository.go

package user

import (
	"context"

	"github.com/localmart/localmart/internal/core"
)

type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpdateProfile(ctx context.Context, user *User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	IncrementTokenVersion(ctx context.Context, id string) error
}

const userColumns = `
	id, email, password_hash, roles, first_name, last_name, phone_number,
	street_1, street_2, city, state, zip, latitude, longitude,
	token_version, created_at, updated_at`

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, email, password_hash, roles, first_name, last_name)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING token_version, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Roles,
		user.FirstName,
		user.LastName,
	).Scan(&user.TokenVersion, &user.CreatedAt, &user.UpdatedAt)

	return core.MapError("create user", err)
}

func (r *repository) GetByID(ctx context.Context, id string) (*User, error) {
	var user User
	err := r.db.GetContext(ctx, &user,
		`SELECT`+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, core.MapError("get user", err)
	}
	return &user, nil
}

func (r *repository) GetByEmail(
	ctx context.Context,
	email string,
) (*User, error) {
	var user User
	err := r.db.GetContext(ctx, &user,
		`SELECT`+userColumns+` FROM users WHERE email = $1`, email)
	if err != nil {
		return nil, core.MapError("get user by email", err)
	}
	return &user, nil
}

func (r *repository) UpdateProfile(ctx context.Context, user *User) error {
	query := `
		UPDATE users
		SET first_name = $2, last_name = $3, phone_number = $4,
		    street_1 = $5, street_2 = $6, city = $7, state = $8, zip = $9,
		    latitude = $10, longitude = $11, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &user.UpdatedAt, query,
		user.ID,
		user.FirstName,
		user.LastName,
		user.PhoneNumber,
		user.Street1,
		user.Street2,
		user.City,
		user.State,
		user.Zip,
		user.Latitude,
		user.Longitude,
	)
	return core.MapError("update profile", err)
}

func (r *repository) UpdatePassword(
	ctx context.Context,
	id, passwordHash string,
) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1`, id, passwordHash)
	if err != nil {
		return core.MapError("update password", err)
	}
	return core.RequireRows("update password", result)
}

func (r *repository) IncrementTokenVersion(
	ctx context.Context,
	id string,
) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET token_version = token_version + 1, updated_at = NOW()
		WHERE id = $1`, id)
	if err != nil {
		return core.MapError("increment token version", err)
	}
	return core.RequireRows("increment token version", result)
}

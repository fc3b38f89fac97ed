// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/localmart/localmart/internal/auth"
	"github.com/localmart/localmart/internal/geocode"
)

type Geocoder interface {
	Geocode(ctx context.Context, addr geocode.Address) (orb.Point, error)
}

type Service struct {
	repo     Repository
	geocoder Geocoder
	logger   *slog.Logger
}

func NewService(repo Repository, geocoder Geocoder, logger *slog.Logger) *Service {
	return &Service{repo: repo, geocoder: geocoder, logger: logger}
}

func (s *Service) GetByID(
	ctx context.Context,
	id string,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toUserInfo(user), nil
}

func (s *Service) GetByEmail(
	ctx context.Context,
	email string,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	return toUserInfo(user), nil
}

// Create registers a customer account. New accounts hold no roles.
func (s *Service) Create(
	ctx context.Context,
	account auth.NewAccount,
) (*auth.UserInfo, error) {
	user := &User{
		ID:           uuid.New().String(),
		Email:        normalizeEmail(account.Email),
		PasswordHash: account.PasswordHash,
		Roles:        []string{},
		FirstName:    strings.TrimSpace(account.FirstName),
		LastName:     strings.TrimSpace(account.LastName),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) IncrementTokenVersion(ctx context.Context, userID string) error {
	return s.repo.IncrementTokenVersion(ctx, userID)
}

func (s *Service) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	return s.repo.UpdatePassword(ctx, userID, passwordHash)
}

func (s *Service) GetProfile(ctx context.Context, userID string) (*User, error) {
	return s.repo.GetByID(ctx, userID)
}

// UpdateProfile applies req and, when the request carries a complete street
// address, refreshes the coordinates. A geocoding failure keeps the old
// coordinates and does not fail the update.
func (s *Service) UpdateProfile(
	ctx context.Context,
	userID string,
	req UpdateProfileRequest,
) (*User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	apply(&user.FirstName, req.FirstName)
	apply(&user.LastName, req.LastName)
	apply(&user.PhoneNumber, req.PhoneNumber)
	apply(&user.Street1, req.Street1)
	apply(&user.Street2, req.Street2)
	apply(&user.City, req.City)
	apply(&user.State, req.State)
	apply(&user.Zip, req.Zip)

	addr := geocode.Address{
		Street: deref(req.Street1),
		City:   deref(req.City),
		State:  deref(req.State),
		Zip:    deref(req.Zip),
	}
	if addr.Complete() && s.geocoder != nil {
		point, err := s.geocoder.Geocode(ctx, addr)
		if err != nil {
			s.logger.ErrorContext(ctx, "geocode profile address",
				"user_id", userID,
				"error", err,
			)
		} else {
			lat, lng := point.Lat(), point.Lon()
			user.Latitude, user.Longitude = &lat, &lng
			s.logger.InfoContext(ctx, "geocoded profile address",
				"user_id", userID,
				"latitude", lat,
				"longitude", lng,
			)
		}
	}

	if err := s.repo.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

func apply(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toUserInfo(u *User) *auth.UserInfo {
	return &auth.UserInfo{
		ID:           u.ID,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		PasswordHash: u.PasswordHash,
		Roles:        u.Roles,
		TokenVersion: u.TokenVersion,
	}
}

var _ auth.UserProvider = (*Service)(nil)

// AngelaMos | 2026
// dto.go

package user

// UpdateProfileRequest carries a partial profile. Absent fields are left
// unchanged.
type UpdateProfileRequest struct {
	FirstName   *string `json:"first_name,omitempty"   validate:"omitempty,max=100"`
	LastName    *string `json:"last_name,omitempty"    validate:"omitempty,max=100"`
	PhoneNumber *string `json:"phone_number,omitempty" validate:"omitempty,max=32"`
	Street1     *string `json:"street_1,omitempty"     validate:"omitempty,max=200"`
	Street2     *string `json:"street_2,omitempty"     validate:"omitempty,max=200"`
	City        *string `json:"city,omitempty"         validate:"omitempty,max=100"`
	State       *string `json:"state,omitempty"        validate:"omitempty,max=50"`
	Zip         *string `json:"zip,omitempty"          validate:"omitempty,max=20"`
}

type ProfileResponse struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	PhoneNumber string   `json:"phone_number"`
	Street1     string   `json:"street_1"`
	Street2     string   `json:"street_2"`
	City        string   `json:"city"`
	State       string   `json:"state"`
	Zip         string   `json:"zip"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Roles       []string `json:"roles"`
}

func ToProfileResponse(u *User) ProfileResponse {
	roles := []string(u.Roles)
	if roles == nil {
		roles = []string{}
	}
	return ProfileResponse{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		PhoneNumber: u.PhoneNumber,
		Street1:     u.Street1,
		Street2:     u.Street2,
		City:        u.City,
		State:       u.State,
		Zip:         u.Zip,
		Latitude:    u.Latitude,
		Longitude:   u.Longitude,
		Roles:       roles,
	}
}

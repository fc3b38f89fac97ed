// AngelaMos | 2026
// dto.go

package store

type ItemRequest struct {
	Name        string  `json:"name"        validate:"required,max=200"`
	Price       float64 `json:"price"       validate:"gte=0"`
	Description string  `json:"description" validate:"max=2000"`
	Quantity    *int    `json:"quantity"    validate:"omitempty,gte=0"`
}

func (r ItemRequest) body() map[string]any {
	b := map[string]any{
		"name":        r.Name,
		"price":       r.Price,
		"description": r.Description,
	}
	if r.Quantity != nil {
		b["quantity"] = *r.Quantity
	}
	return b
}

type RolesResponse struct {
	Roles []string `json:"roles"`
}

type AssignRoleRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Role   string `json:"role"    validate:"required,oneof=admin staff"`
}

type GeocodeResponse struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Message   string   `json:"message"`
}

type DeleteResponse struct {
	Success bool `json:"success"`
}

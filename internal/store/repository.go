// AngelaMos | 2026
// repository.go

package store

import (
	"context"

	"github.com/lib/pq"

	"github.com/localmart/localmart/internal/core"
)

type Repository interface {
	List(ctx context.Context, limit int) ([]Store, error)
	GetByID(ctx context.Context, id string) (*Store, error)
	UpdateCoordinates(ctx context.Context, id string, lat, lng float64) (*Store, error)

	ListItems(ctx context.Context, storeID string) ([]Item, error)
	GetItem(ctx context.Context, id string) (*Item, error)
	ItemsByIDs(ctx context.Context, ids []string) ([]Item, error)
	CreateItem(ctx context.Context, item *Item) error
	UpdateItem(ctx context.Context, item *Item) error
	DeleteItem(ctx context.Context, id string) error

	RolesFor(ctx context.Context, userID, storeID string) ([]string, error)
	CreateRole(ctx context.Context, role *Role) error
}

const storeColumns = `
	id, name, street_1, street_2, city, state, zip, instagram, facebook, twitter,
	latitude, longitude, created_at, updated_at`

const itemColumns = `
	id, store_id, name, description, price, quantity, created_at, updated_at`

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context, limit int) ([]Store, error) {
	var stores []Store
	err := r.db.SelectContext(ctx, &stores,
		`SELECT`+storeColumns+` FROM stores ORDER BY created_at LIMIT $1`, limit)
	if err != nil {
		return nil, core.MapError("list stores", err)
	}
	return stores, nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Store, error) {
	var s Store
	err := r.db.GetContext(ctx, &s,
		`SELECT`+storeColumns+` FROM stores WHERE id = $1`, id)
	if err != nil {
		return nil, core.MapError("get store", err)
	}
	return &s, nil
}

func (r *repository) UpdateCoordinates(
	ctx context.Context,
	id string,
	lat, lng float64,
) (*Store, error) {
	var s Store
	err := r.db.GetContext(ctx, &s, `
		UPDATE stores
		SET latitude = $2, longitude = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING`+storeColumns, id, lat, lng)
	if err != nil {
		return nil, core.MapError("update store coordinates", err)
	}
	return &s, nil
}

func (r *repository) ListItems(ctx context.Context, storeID string) ([]Item, error) {
	var items []Item
	err := r.db.SelectContext(ctx, &items,
		`SELECT`+itemColumns+` FROM store_items WHERE store_id = $1 ORDER BY created_at`, storeID)
	if err != nil {
		return nil, core.MapError("list store items", err)
	}
	return items, nil
}

func (r *repository) GetItem(ctx context.Context, id string) (*Item, error) {
	var item Item
	err := r.db.GetContext(ctx, &item,
		`SELECT`+itemColumns+` FROM store_items WHERE id = $1`, id)
	if err != nil {
		return nil, core.MapError("get store item", err)
	}
	return &item, nil
}

func (r *repository) ItemsByIDs(ctx context.Context, ids []string) ([]Item, error) {
	var items []Item
	err := r.db.SelectContext(ctx, &items,
		`SELECT`+itemColumns+` FROM store_items WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, core.MapError("get store items", err)
	}
	return items, nil
}

func (r *repository) CreateItem(ctx context.Context, item *Item) error {
	query := `
		INSERT INTO store_items (id, store_id, name, description, price, quantity)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		item.ID,
		item.StoreID,
		item.Name,
		item.Description,
		item.Price,
		item.Quantity,
	).Scan(&item.CreatedAt, &item.UpdatedAt)

	return core.MapError("create store item", err)
}

func (r *repository) UpdateItem(ctx context.Context, item *Item) error {
	query := `
		UPDATE store_items
		SET name = $2, description = $3, price = $4, quantity = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &item.UpdatedAt, query,
		item.ID,
		item.Name,
		item.Description,
		item.Price,
		item.Quantity,
	)
	return core.MapError("update store item", err)
}

func (r *repository) DeleteItem(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM store_items WHERE id = $1`, id)
	if err != nil {
		return core.MapError("delete store item", err)
	}
	return core.RequireRows("delete store item", result)
}

func (r *repository) RolesFor(ctx context.Context, userID, storeID string) ([]string, error) {
	roles := []string{}
	err := r.db.SelectContext(ctx, &roles, `
		SELECT role FROM store_roles
		WHERE user_id = $1 AND store_id = $2
		ORDER BY created_at`, userID, storeID)
	if err != nil {
		return nil, core.MapError("list store roles", err)
	}
	return roles, nil
}

func (r *repository) CreateRole(ctx context.Context, role *Role) error {
	query := `
		INSERT INTO store_roles (id, user_id, store_id, role)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		role.ID,
		role.UserID,
		role.StoreID,
		role.Role,
	).Scan(&role.CreatedAt, &role.UpdatedAt)

	return core.MapError("create store role", err)
}

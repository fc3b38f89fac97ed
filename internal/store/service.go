// AngelaMos | 2026
// service.go

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/localmart/localmart/internal/access"
	"github.com/localmart/localmart/internal/core"
	"github.com/localmart/localmart/internal/geocode"
	"github.com/localmart/localmart/internal/rules"
	"github.com/localmart/localmart/internal/schema"
)

const listLimit = 50

var (
	ErrItemNotInStore     = errors.New("item not found in store")
	ErrAddressIncomplete  = errors.New("store address is incomplete")
	ErrGeocodeUnavailable = errors.New("store address could not be geocoded")
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

// List returns the first page of stores. With near set, stores are ordered
// by great-circle distance from it and stores without coordinates go last.
func (s *Service) List(ctx context.Context, near *orb.Point) ([]Store, error) {
	stores, err := s.repo.List(ctx, listLimit)
	if err != nil {
		return nil, err
	}
	if stores == nil {
		stores = []Store{}
	}
	if near == nil {
		return stores, nil
	}

	for i := range stores {
		if p, ok := stores[i].Point(); ok {
			km := geo.Distance(*near, p) / 1000
			stores[i].DistanceKM = &km
		}
	}

	slices.SortStableFunc(stores, func(a, b Store) int {
		switch {
		case a.DistanceKM == nil && b.DistanceKM == nil:
			return 0
		case a.DistanceKM == nil:
			return 1
		case b.DistanceKM == nil:
			return -1
		case *a.DistanceKM < *b.DistanceKM:
			return -1
		case *a.DistanceKM > *b.DistanceKM:
			return 1
		}
		return 0
	})

	return stores, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Store, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Items(ctx context.Context, storeID string) ([]Item, error) {
	if _, err := s.repo.GetByID(ctx, storeID); err != nil {
		return nil, err
	}

	items, err := s.repo.ListItems(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Item{}
	}
	return items, nil
}

// ItemsByIDs returns the items keyed by id. Missing ids are absent.
func (s *Service) ItemsByIDs(ctx context.Context, ids []string) (map[string]Item, error) {
	items, err := s.repo.ItemsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Item, len(items))
	for _, it := range items {
		out[it.ID] = it
	}
	return out, nil
}

func (s *Service) CreateItem(
	ctx context.Context,
	scope *access.Scope,
	storeID string,
	req ItemRequest,
) (*Item, error) {
	if _, err := s.repo.GetByID(ctx, storeID); err != nil {
		return nil, err
	}

	err := scope.Require(ctx, "store_items", schema.OpCreate,
		rules.Record{"store": storeID},
		access.Input{Body: req.body(), Method: "POST"},
	)
	if err != nil {
		return nil, err
	}

	item := &Item{
		ID:          uuid.New().String(),
		StoreID:     storeID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Price:       req.Price,
	}
	if req.Quantity != nil {
		item.Quantity = *req.Quantity
	}

	if err := s.repo.CreateItem(ctx, item); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "store item created",
		"store_id", storeID,
		"item_id", item.ID,
		"user_id", scope.Caller().ID,
	)
	return item, nil
}

func (s *Service) UpdateItem(
	ctx context.Context,
	scope *access.Scope,
	storeID, itemID string,
	req ItemRequest,
) (*Item, error) {
	item, err := s.itemInStore(ctx, storeID, itemID)
	if err != nil {
		return nil, err
	}

	err = scope.Require(ctx, "store_items", schema.OpUpdate, item.Record(),
		access.Input{Body: req.body(), Method: "PATCH"})
	if err != nil {
		return nil, err
	}

	item.Name = strings.TrimSpace(req.Name)
	item.Description = req.Description
	item.Price = req.Price
	if req.Quantity != nil {
		item.Quantity = *req.Quantity
	}

	if err := s.repo.UpdateItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Service) DeleteItem(
	ctx context.Context,
	scope *access.Scope,
	storeID, itemID string,
) error {
	item, err := s.itemInStore(ctx, storeID, itemID)
	if err != nil {
		return err
	}

	err = scope.Require(ctx, "store_items", schema.OpDelete, item.Record(),
		access.Input{Method: "DELETE"})
	if err != nil {
		return err
	}

	if err := s.repo.DeleteItem(ctx, itemID); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "store item deleted",
		"store_id", storeID,
		"item_id", itemID,
		"user_id", scope.Caller().ID,
	)
	return nil
}

func (s *Service) itemInStore(ctx context.Context, storeID, itemID string) (*Item, error) {
	item, err := s.repo.GetItem(ctx, itemID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, ErrItemNotInStore
	}
	if err != nil {
		return nil, err
	}
	if item.StoreID != storeID {
		return nil, ErrItemNotInStore
	}
	return item, nil
}

// Roles lists the caller's roles at the store. Global admins are reported
// as store admins everywhere.
func (s *Service) Roles(ctx context.Context, scope *access.Scope, storeID string) ([]string, error) {
	admin, err := scope.IsGlobalAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if admin {
		return []string{RoleAdmin}, nil
	}
	return s.repo.RolesFor(ctx, scope.Caller().ID, storeID)
}

func (s *Service) AssignRole(
	ctx context.Context,
	scope *access.Scope,
	storeID string,
	req AssignRoleRequest,
) (*Role, error) {
	if _, err := s.repo.GetByID(ctx, storeID); err != nil {
		return nil, err
	}

	record := rules.Record{"user": req.UserID, "store": storeID, "role": req.Role}
	err := scope.Require(ctx, "store_roles", schema.OpCreate, record,
		access.Input{Body: map[string]any(record), Method: "POST"})
	if err != nil {
		return nil, err
	}

	role := &Role{
		ID:      uuid.New().String(),
		UserID:  req.UserID,
		StoreID: storeID,
		Role:    req.Role,
	}
	if err := s.repo.CreateRole(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// RequireStoreAdmin fails with ErrForbidden unless the caller is a global
// admin or an admin of storeID.
func (s *Service) RequireStoreAdmin(ctx context.Context, scope *access.Scope, storeID string) error {
	ok, err := scope.IsStoreAdmin(ctx, storeID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("store %s: %w", storeID, core.ErrForbidden)
	}
	return nil
}

// Geocode resolves the store's street address and stores the coordinates.
func (s *Service) Geocode(ctx context.Context, scope *access.Scope, storeID string) (*Store, error) {
	if err := s.RequireStoreAdmin(ctx, scope, storeID); err != nil {
		return nil, err
	}

	st, err := s.repo.GetByID(ctx, storeID)
	if err != nil {
		return nil, err
	}

	addr := st.Address()
	if !addr.Complete() {
		return nil, ErrAddressIncomplete
	}
	if s.geocoder == nil {
		return nil, ErrGeocodeUnavailable
	}

	point, err := s.geocoder.Geocode(ctx, addr)
	if err != nil {
		s.logger.WarnContext(ctx, "geocode store address",
			"store_id", storeID,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %w", ErrGeocodeUnavailable, err)
	}

	return s.repo.UpdateCoordinates(ctx, storeID, point.Lat(), point.Lon())
}

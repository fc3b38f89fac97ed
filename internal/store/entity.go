// AngelaMos | 2026
// entity.go

package store

import (
	"time"

	"github.com/paulmach/orb"

	"github.com/localmart/localmart/internal/geocode"
	"github.com/localmart/localmart/internal/rules"
)

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

type Store struct {
	ID        string    `db:"id"         json:"id"`
	Name      string    `db:"name"       json:"name"`
	Street1   string    `db:"street_1"   json:"street_1"`
	Street2   string    `db:"street_2"   json:"street_2"`
	City      string    `db:"city"       json:"city"`
	State     string    `db:"state"      json:"state"`
	Zip       string    `db:"zip"        json:"zip"`
	Instagram string    `db:"instagram"  json:"instagram"`
	Facebook  string    `db:"facebook"   json:"facebook"`
	Twitter   string    `db:"twitter"    json:"twitter"`
	Latitude  *float64  `db:"latitude"   json:"latitude"`
	Longitude *float64  `db:"longitude"  json:"longitude"`
	CreatedAt time.Time `db:"created_at" json:"created"`
	UpdatedAt time.Time `db:"updated_at" json:"updated"`

	DistanceKM *float64 `db:"-" json:"distance_km,omitempty"`
}

func (s *Store) Address() geocode.Address {
	return geocode.Address{
		Street: s.Street1,
		City:   s.City,
		State:  s.State,
		Zip:    s.Zip,
	}
}

// Point reports the store location when it has been geocoded.
func (s *Store) Point() (orb.Point, bool) {
	if s.Latitude == nil || s.Longitude == nil {
		return orb.Point{}, false
	}
	return orb.Point{*s.Longitude, *s.Latitude}, true
}

type Item struct {
	ID          string    `db:"id"          json:"id"`
	StoreID     string    `db:"store_id"    json:"store"`
	Name        string    `db:"name"        json:"name"`
	Description string    `db:"description" json:"description"`
	Price       float64   `db:"price"       json:"price"`
	Quantity    int       `db:"quantity"    json:"quantity"`
	CreatedAt   time.Time `db:"created_at"  json:"created"`
	UpdatedAt   time.Time `db:"updated_at"  json:"updated"`
}

// Record is the item as the store_items rules see it.
func (i *Item) Record() rules.Record {
	return rules.Record{
		"id":          i.ID,
		"store":       i.StoreID,
		"name":        i.Name,
		"description": i.Description,
		"price":       i.Price,
		"quantity":    i.Quantity,
	}
}

type Role struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	StoreID   string    `db:"store_id"`
	Role      string    `db:"role"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

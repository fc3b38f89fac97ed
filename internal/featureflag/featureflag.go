// AngelaMos | 2026
// featureflag.go

package featureflag

import (
	"context"
	"log/slog"
	"maps"
	"time"

	"github.com/localmart/localmart/internal/core"
)

const ProductSearch = "product_search"

// Defaults holds every known flag with its value when the store is
// unreachable.
var Defaults = map[string]bool{
	ProductSearch: false,
}

type Flag struct {
	ID          string    `db:"id"          json:"id"`
	Name        string    `db:"name"        json:"name"`
	Enabled     bool      `db:"enabled"     json:"enabled"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at"  json:"created"`
	UpdatedAt   time.Time `db:"updated_at"  json:"updated"`
}

// Resolve overlays fetched rows onto Defaults. When the fetch failed the
// defaults are returned unchanged and the failure is logged.
func Resolve(rows []Flag, err error, logger *slog.Logger) map[string]bool {
	flags := maps.Clone(Defaults)
	if err != nil {
		if logger != nil {
			logger.Error("load feature flags", "error", err)
		}
		return flags
	}
	for _, f := range rows {
		flags[f.Name] = f.Enabled
	}
	return flags
}

type Repository interface {
	List(ctx context.Context) ([]Flag, error)
	SetEnabled(ctx context.Context, name string, enabled bool) (*Flag, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context) ([]Flag, error) {
	var flags []Flag
	err := r.db.SelectContext(ctx, &flags, `
		SELECT id, name, enabled, description, created_at, updated_at
		FROM feature_flags
		ORDER BY name`)
	if err != nil {
		return nil, core.MapError("list feature flags", err)
	}
	return flags, nil
}

func (r *repository) SetEnabled(ctx context.Context, name string, enabled bool) (*Flag, error) {
	var f Flag
	err := r.db.GetContext(ctx, &f, `
		UPDATE feature_flags
		SET enabled = $2, updated_at = NOW()
		WHERE name = $1
		RETURNING id, name, enabled, description, created_at, updated_at`,
		name, enabled)
	if err != nil {
		return nil, core.MapError("set feature flag", err)
	}
	return &f, nil
}

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) List(ctx context.Context) ([]Flag, error) {
	return s.repo.List(ctx)
}

// Enabled reports a single flag. Unknown names and lookup failures read as
// the default, which is off for every flag not in Defaults.
func (s *Service) Enabled(ctx context.Context, name string) bool {
	rows, err := s.repo.List(ctx)
	return Resolve(rows, err, s.logger)[name]
}

func (s *Service) Set(ctx context.Context, name string, enabled bool) (*Flag, error) {
	f, err := s.repo.SetEnabled(ctx, name, enabled)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "feature flag changed", "name", name, "enabled", enabled)
	return f, nil
}

// AngelaMos | 2026
// repository.go

package admin

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/localmart/localmart/internal/core"
)

type StatusCount struct {
	Status  string  `db:"status"`
	Count   int64   `db:"count"`
	Revenue float64 `db:"revenue"`
}

type OrderStats interface {
	CountByStatus(ctx context.Context) ([]StatusCount, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) OrderStats {
	return &repository{db: db}
}

func (r *repository) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	var counts []StatusCount
	err := r.db.SelectContext(ctx, &counts, `
		SELECT status,
		       COUNT(*) AS count,
		       COALESCE(SUM(total_amount) FILTER (WHERE payment_status = 'succeeded'), 0) AS revenue
		FROM orders
		GROUP BY status
		ORDER BY status`)
	if err != nil {
		return nil, core.MapError("count orders by status", err)
	}
	return counts, nil
}

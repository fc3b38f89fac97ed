// AngelaMos | 2026
// resolver.go

package access

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/localmart/localmart/internal/core"
	"github.com/localmart/localmart/internal/rules"
	"github.com/localmart/localmart/internal/schema"
)

// Columns never exposed to rule evaluation.
var hiddenColumns = map[string]bool{
	"password_hash": true,
	"token_version": true,
}

// SQLResolver reads rule data straight from the tables backing each
// collection. Table names match collection names and a relation field
// <name> is stored in the column <name>_id.
type SQLResolver struct {
	db    core.DBTX
	state *schema.State
}

func NewSQLResolver(db core.DBTX, state *schema.State) *SQLResolver {
	return &SQLResolver{db: db, state: state}
}

func (r *SQLResolver) Relation(collection, field string) (string, bool) {
	c, err := r.state.Find(collection)
	if err != nil {
		return "", false
	}
	f, ok := c.Field(field)
	if !ok || f.Type != schema.TypeRelation {
		return "", false
	}
	target, err := r.state.Find(f.Relation)
	if err != nil {
		return "", false
	}
	return target.Name, true
}

func (r *SQLResolver) Find(ctx context.Context, collection, id string) (rules.Record, error) {
	c, err := r.state.Find(collection)
	if err != nil {
		return nil, err
	}

	row := r.db.QueryRowxContext(ctx, "SELECT * FROM "+c.Name+" WHERE id = $1", id)
	raw := make(map[string]any)
	if err := row.MapScan(raw); err != nil {
		if errors.Is(core.MapError("find", err), core.ErrNotFound) {
			return nil, fmt.Errorf("%s/%s: %w", c.Name, id, rules.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("find %s/%s: %w", c.Name, id, err)
	}

	return toRecord(c, raw), nil
}

func (r *SQLResolver) Via(ctx context.Context, collection, field, id string) ([]rules.Record, error) {
	c, err := r.state.Find(collection)
	if err != nil {
		return nil, err
	}
	f, ok := c.Field(field)
	if !ok || f.Type != schema.TypeRelation {
		return nil, fmt.Errorf("%s.%s: %w", c.Name, field, schema.ErrUnknownField)
	}

	return r.query(ctx, c, "SELECT * FROM "+c.Name+" WHERE "+f.Name+"_id = $1", id)
}

func (r *SQLResolver) Scan(ctx context.Context, collection string) ([]rules.Record, error) {
	c, err := r.state.Find(collection)
	if err != nil {
		return nil, err
	}
	return r.query(ctx, c, "SELECT * FROM "+c.Name)
}

func (r *SQLResolver) query(ctx context.Context, c *schema.Collection, q string, args ...any) ([]rules.Record, error) {
	rows, err := r.db.QueryxContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", c.Name, err)
	}
	defer rows.Close() //nolint:errcheck

	var out []rules.Record
	for rows.Next() {
		raw := make(map[string]any)
		if err := rows.MapScan(raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", c.Name, err)
		}
		out = append(out, toRecord(c, raw))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", c.Name, err)
	}
	return out, nil
}

// toRecord renames <relation>_id columns back to field names and decodes
// multi-select arrays.
func toRecord(c *schema.Collection, raw map[string]any) rules.Record {
	rec := make(rules.Record, len(raw))
	for col, v := range raw {
		if hiddenColumns[col] {
			continue
		}
		if b, ok := v.([]byte); ok {
			v = string(b)
		}

		name := col
		if base, ok := strings.CutSuffix(col, "_id"); ok {
			if f, found := c.Field(base); found && f.Type == schema.TypeRelation {
				name = base
			}
		}

		if f, found := c.Field(name); found && f.Type == schema.TypeSelect && f.MaxSelect > 1 {
			var arr pq.StringArray
			if err := arr.Scan(v); err == nil {
				v = []string(arr)
			}
		}

		rec[name] = v
	}
	return rec
}

var _ rules.Resolver = (*SQLResolver)(nil)

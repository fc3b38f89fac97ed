// AngelaMos | 2026
// memory.go

package rules

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var ErrUniqueViolation = errors.New("unique constraint violated")

// MemoryResolver is an in-process record store. It enforces declared
// unique indexes on Insert.
type MemoryResolver struct {
	mu        sync.RWMutex
	relations map[string]map[string]string
	unique    map[string][][]string
	records   map[string][]Record
}

func NewMemoryResolver() *MemoryResolver {
	return &MemoryResolver{
		relations: make(map[string]map[string]string),
		unique:    make(map[string][][]string),
		records:   make(map[string][]Record),
	}
}

func (m *MemoryResolver) DefineRelation(collection, field, target string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.relations[collection] == nil {
		m.relations[collection] = make(map[string]string)
	}
	m.relations[collection][field] = target
}

func (m *MemoryResolver) DefineUnique(collection string, fields ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.unique[collection] = append(m.unique[collection], fields)
}

func (m *MemoryResolver) Insert(collection string, rec Record) error {
	if rec.ID() == "" {
		return fmt.Errorf("insert into %s: record id is required", collection)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.records[collection] {
		if existing.ID() == rec.ID() {
			return fmt.Errorf("insert into %s: id %s: %w", collection, rec.ID(), ErrUniqueViolation)
		}
		for _, fields := range m.unique[collection] {
			if sameKey(existing, rec, fields) {
				return fmt.Errorf(
					"insert into %s (%s): %w",
					collection,
					strings.Join(fields, ", "),
					ErrUniqueViolation,
				)
			}
		}
	}

	m.records[collection] = append(m.records[collection], cloneRecord(rec))
	return nil
}

func (m *MemoryResolver) Relation(collection, field string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	target, ok := m.relations[collection][field]
	return target, ok
}

func (m *MemoryResolver) Find(_ context.Context, collection, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, rec := range m.records[collection] {
		if rec.ID() == id {
			return rec, nil
		}
	}
	return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrRecordNotFound)
}

func (m *MemoryResolver) Via(_ context.Context, collection, field, id string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Record
	for _, rec := range m.records[collection] {
		for _, v := range leafValues(rec[field]) {
			if v == id {
				out = append(out, rec)
				break
			}
		}
	}
	return out, nil
}

func (m *MemoryResolver) Scan(_ context.Context, collection string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]Record(nil), m.records[collection]...), nil
}

func sameKey(a, b Record, fields []string) bool {
	for _, f := range fields {
		if scalarString(a[f]) != scalarString(b[f]) {
			return false
		}
	}
	return true
}

func cloneRecord(r Record) Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Cached memoizes a resolver for the lifetime of one request so repeated
// evaluations over a listing do not refetch the same rows.
func Cached(inner Resolver) Resolver {
	return &cachedResolver{
		inner: inner,
		finds: make(map[string]Record),
		vias:  make(map[string][]Record),
		scans: make(map[string][]Record),
	}
}

type cachedResolver struct {
	inner Resolver
	mu    sync.Mutex
	finds map[string]Record
	vias  map[string][]Record
	scans map[string][]Record
}

func (c *cachedResolver) Relation(collection, field string) (string, bool) {
	return c.inner.Relation(collection, field)
}

func (c *cachedResolver) Find(ctx context.Context, collection, id string) (Record, error) {
	key := collection + "/" + id

	c.mu.Lock()
	rec, ok := c.finds[key]
	c.mu.Unlock()
	if ok {
		if rec == nil {
			return nil, fmt.Errorf("%s: %w", key, ErrRecordNotFound)
		}
		return rec, nil
	}

	rec, err := c.inner.Find(ctx, collection, id)
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		return nil, err
	}

	c.mu.Lock()
	c.finds[key] = rec
	c.mu.Unlock()
	return rec, err
}

func (c *cachedResolver) Via(ctx context.Context, collection, field, id string) ([]Record, error) {
	key := collection + "/" + field + "/" + id

	c.mu.Lock()
	recs, ok := c.vias[key]
	c.mu.Unlock()
	if ok {
		return recs, nil
	}

	recs, err := c.inner.Via(ctx, collection, field, id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.vias[key] = recs
	c.mu.Unlock()
	return recs, nil
}

func (c *cachedResolver) Scan(ctx context.Context, collection string) ([]Record, error) {
	c.mu.Lock()
	recs, ok := c.scans[collection]
	c.mu.Unlock()
	if ok {
		return recs, nil
	}

	recs, err := c.inner.Scan(ctx, collection)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.scans[collection] = recs
	c.mu.Unlock()
	return recs, nil
}

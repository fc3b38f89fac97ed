// AngelaMos | 2026
// verify.go

package schema

import (
	"errors"
	"fmt"

	"github.com/localmart/localmart/internal/rules"
)

var ErrInvalidSchema = errors.New("invalid schema")

// Verify checks that the state is internally consistent. All problems are
// reported together.
func Verify(s *State) error {
	var errs []error

	for i := range s.Collections {
		c := &s.Collections[i]

		ids := make(map[string]bool, len(c.Fields))
		names := make(map[string]bool, len(c.Fields))
		for _, f := range c.Fields {
			if ids[f.ID] {
				errs = append(errs, fmt.Errorf("%s: duplicate field id %s", c.Name, f.ID))
			}
			if names[f.Name] {
				errs = append(errs, fmt.Errorf("%s: duplicate field name %s", c.Name, f.Name))
			}
			ids[f.ID] = true
			names[f.Name] = true

			if f.Type == TypeRelation {
				if _, err := s.Find(f.Relation); err != nil {
					errs = append(errs, fmt.Errorf("%s.%s: relation target: %w", c.Name, f.Name, err))
				}
			}
			if f.Type == TypeSelect && len(f.Values) == 0 {
				errs = append(errs, fmt.Errorf("%s.%s: select without values", c.Name, f.Name))
			}
		}

		for _, idx := range c.Indexes {
			for _, col := range idx.Columns {
				if !names[col] {
					errs = append(errs, fmt.Errorf("%s index %s: column %s: %w", c.Name, idx.Name, col, ErrUnknownField))
				}
			}
		}

		if err := c.validateRules(); err != nil {
			errs = append(errs, err)
			continue
		}
		for _, op := range Operations {
			errs = append(errs, s.checkRuleRefs(c, op)...)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidSchema, errors.Join(errs...))
	}
	return nil
}

func (s *State) checkRuleRefs(c *Collection, op Operation) []error {
	r := c.Rule(op)
	if r.IsLocked() || r.IsPublic() {
		return nil
	}
	expr, err := rules.Compile(r.Source)
	if err != nil {
		return []error{err}
	}

	var errs []error
	for _, name := range expr.Collections() {
		if _, err := s.Find(name); err != nil {
			errs = append(errs, fmt.Errorf("%s %s rule: @collection: %w", c.Name, op, err))
		}
	}
	return errs
}

// MemoryResolver returns an empty in-memory store that knows the state's
// relations and unique indexes, keyed by collection name.
func (s *State) MemoryResolver() *rules.MemoryResolver {
	m := rules.NewMemoryResolver()

	for _, c := range s.Collections {
		for _, f := range c.Fields {
			if f.Type != TypeRelation {
				continue
			}
			target, err := s.Find(f.Relation)
			if err != nil {
				continue
			}
			m.DefineRelation(c.Name, f.Name, target.Name)
		}
		for _, idx := range c.Indexes {
			if idx.Unique {
				m.DefineUnique(c.Name, idx.Columns...)
			}
		}
	}

	return m
}

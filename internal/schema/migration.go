// AngelaMos | 2026
// migration.go

package schema

import (
	"errors"
	"fmt"
	"slices"
)

var (
	ErrOutOfOrder       = errors.New("migration out of order")
	ErrDuplicateVersion = errors.New("duplicate migration version")
	ErrUnknownVersion   = errors.New("unknown migration version")
)

// Migration is one reversible schema edit.
type Migration struct {
	Version int64
	Name    string
	Up      func(*State) error
	Down    func(*State) error
}

func (m Migration) String() string {
	return fmt.Sprintf("%d_%s", m.Version, m.Name)
}

// MigrationError names the unit that stopped a run.
type MigrationError struct {
	Version   int64
	Name      string
	Direction string
	Err       error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration %d_%s (%s): %v", e.Version, e.Name, e.Direction, e.Err)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}

// Set is an ordered list of migrations.
type Set struct {
	migrations []Migration
}

func NewSet(ms ...Migration) (*Set, error) {
	sorted := slices.Clone(ms)
	slices.SortFunc(sorted, func(a, b Migration) int {
		switch {
		case a.Version < b.Version:
			return -1
		case a.Version > b.Version:
			return 1
		}
		return 0
	})

	for i := 1; i < len(sorted); i++ {
		if sorted[i].Version == sorted[i-1].Version {
			return nil, fmt.Errorf("%d: %w", sorted[i].Version, ErrDuplicateVersion)
		}
	}

	return &Set{migrations: sorted}, nil
}

func (s *Set) Migrations() []Migration {
	return slices.Clone(s.migrations)
}

func (s *Set) Latest() int64 {
	if len(s.migrations) == 0 {
		return 0
	}
	return s.migrations[len(s.migrations)-1].Version
}

func (s *Set) find(version int64) (Migration, bool) {
	for _, m := range s.migrations {
		if m.Version == version {
			return m, true
		}
	}
	return Migration{}, false
}

// Pending lists migrations not yet applied to st, in order.
func (s *Set) Pending(st *State) []Migration {
	var out []Migration
	for _, m := range s.migrations {
		if !slices.Contains(st.Applied, m.Version) {
			out = append(out, m)
		}
	}
	return out
}

// Apply runs every pending migration. The first failure stops the run and
// st keeps the units applied before it.
func (s *Set) Apply(st *State) error {
	return s.ApplyUntil(st, s.Latest())
}

// ApplyUntil runs pending migrations up to and including version.
func (s *Set) ApplyUntil(st *State, version int64) error {
	for _, m := range s.Pending(st) {
		if m.Version > version {
			break
		}
		if err := ApplyOne(st, m); err != nil {
			return err
		}
	}
	return nil
}

// ApplyOne runs a single migration against st. A version older than the
// newest applied one is refused.
func ApplyOne(st *State, m Migration) error {
	if m.Version <= st.Version() {
		return &MigrationError{
			Version:   m.Version,
			Name:      m.Name,
			Direction: "up",
			Err:       fmt.Errorf("state is at %d: %w", st.Version(), ErrOutOfOrder),
		}
	}

	next := st.Clone()
	if err := m.Up(next); err != nil {
		return &MigrationError{Version: m.Version, Name: m.Name, Direction: "up", Err: err}
	}

	next.Applied = append(next.Applied, m.Version)
	*st = *next
	return nil
}

// Revert undoes the last n applied migrations, newest first.
func (s *Set) Revert(st *State, n int) error {
	for range n {
		if len(st.Applied) == 0 {
			return nil
		}

		version := st.Version()
		m, ok := s.find(version)
		if !ok {
			return &MigrationError{
				Version:   version,
				Direction: "down",
				Err:       ErrUnknownVersion,
			}
		}

		next := st.Clone()
		if err := m.Down(next); err != nil {
			return &MigrationError{Version: m.Version, Name: m.Name, Direction: "down", Err: err}
		}

		next.Applied = next.Applied[:len(next.Applied)-1]
		*st = *next
	}
	return nil
}

func (s *Set) RevertAll(st *State) error {
	return s.Revert(st, len(st.Applied))
}

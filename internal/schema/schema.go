// AngelaMos | 2026
// schema.go

package schema

import (
	"errors"
	"fmt"
	"slices"

	"github.com/localmart/localmart/internal/rules"
)

var (
	ErrUnknownCollection = errors.New("unknown collection")
	ErrUnknownField      = errors.New("unknown field")
	ErrInvalidRule       = errors.New("invalid rule")
	ErrCollectionExists  = errors.New("collection already exists")
)

type FieldType string

const (
	TypeText     FieldType = "text"
	TypeNumber   FieldType = "number"
	TypeBool     FieldType = "bool"
	TypeDate     FieldType = "date"
	TypeAutodate FieldType = "autodate"
	TypeJSON     FieldType = "json"
	TypeRelation FieldType = "relation"
	TypeSelect   FieldType = "select"
	TypeEmail    FieldType = "email"
	TypePassword FieldType = "password"
)

type Field struct {
	ID        string    `yaml:"id"`
	Name      string    `yaml:"name"`
	Type      FieldType `yaml:"type"`
	Required  bool      `yaml:"required,omitempty"`
	Relation  string    `yaml:"relation,omitempty"`
	Values    []string  `yaml:"values,omitempty"`
	MaxSelect int       `yaml:"max_select,omitempty"`
}

type Index struct {
	Name    string   `yaml:"name"`
	Unique  bool     `yaml:"unique"`
	Columns []string `yaml:"columns"`
}

type Collection struct {
	ID         string     `yaml:"id"`
	Name       string     `yaml:"name"`
	Type       string     `yaml:"type"`
	Fields     []Field    `yaml:"fields"`
	Indexes    []Index    `yaml:"indexes,omitempty"`
	ListRule   rules.Rule `yaml:"list_rule"`
	ViewRule   rules.Rule `yaml:"view_rule"`
	CreateRule rules.Rule `yaml:"create_rule"`
	UpdateRule rules.Rule `yaml:"update_rule"`
	DeleteRule rules.Rule `yaml:"delete_rule"`
}

func (c *Collection) Field(idOrName string) (Field, bool) {
	for _, f := range c.Fields {
		if f.ID == idOrName || f.Name == idOrName {
			return f, true
		}
	}
	return Field{}, false
}

func (c *Collection) fieldIndex(id string) int {
	return slices.IndexFunc(c.Fields, func(f Field) bool { return f.ID == id })
}

// Rule returns the rule guarding op.
func (c *Collection) Rule(op Operation) rules.Rule {
	switch op {
	case OpList:
		return c.ListRule
	case OpView:
		return c.ViewRule
	case OpCreate:
		return c.CreateRule
	case OpUpdate:
		return c.UpdateRule
	case OpDelete:
		return c.DeleteRule
	}
	return rules.Locked()
}

func (c *Collection) validateRules() error {
	for _, op := range Operations {
		if err := c.Rule(op).Validate(); err != nil {
			return fmt.Errorf("%s %s rule: %w: %w", c.Name, op, ErrInvalidRule, err)
		}
	}
	return nil
}

func (c Collection) clone() Collection {
	out := c
	out.Fields = make([]Field, len(c.Fields))
	for i, f := range c.Fields {
		f.Values = slices.Clone(f.Values)
		out.Fields[i] = f
	}
	out.Indexes = make([]Index, len(c.Indexes))
	for i, idx := range c.Indexes {
		idx.Columns = slices.Clone(idx.Columns)
		out.Indexes[i] = idx
	}
	return out
}

type Operation string

const (
	OpList   Operation = "list"
	OpView   Operation = "view"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

var Operations = []Operation{OpList, OpView, OpCreate, OpUpdate, OpDelete}

// State is the ordered set of collections plus the versions applied to
// reach it.
type State struct {
	Collections []Collection `yaml:"collections"`
	Applied     []int64      `yaml:"applied"`
}

func NewState() *State {
	return &State{}
}

func (s *State) Clone() *State {
	out := &State{
		Collections: make([]Collection, len(s.Collections)),
		Applied:     slices.Clone(s.Applied),
	}
	for i, c := range s.Collections {
		out.Collections[i] = c.clone()
	}
	return out
}

// Find looks a collection up by id or name.
func (s *State) Find(idOrName string) (*Collection, error) {
	for i := range s.Collections {
		c := &s.Collections[i]
		if c.ID == idOrName || c.Name == idOrName {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%q: %w", idOrName, ErrUnknownCollection)
}

// Version is the highest applied migration version, 0 for an empty state.
func (s *State) Version() int64 {
	if len(s.Applied) == 0 {
		return 0
	}
	return s.Applied[len(s.Applied)-1]
}

func (s *State) CreateCollection(c Collection) error {
	for _, existing := range s.Collections {
		if existing.ID == c.ID || existing.Name == c.Name {
			return fmt.Errorf("create %s: %w", c.ID, ErrCollectionExists)
		}
	}

	if err := c.validateRules(); err != nil {
		return fmt.Errorf("create %s: %w", c.ID, err)
	}

	s.Collections = append(s.Collections, c.clone())
	return nil
}

func (s *State) DeleteCollection(idOrName string) error {
	for i, c := range s.Collections {
		if c.ID == idOrName || c.Name == idOrName {
			s.Collections = slices.Delete(s.Collections, i, i+1)
			return nil
		}
	}
	return fmt.Errorf("delete %q: %w", idOrName, ErrUnknownCollection)
}

// AddField replaces the field with the same id in place, which is how a
// rename is expressed. A new field is inserted at position at, clamped to
// the field list.
func (s *State) AddField(collection string, at int, f Field) error {
	c, err := s.Find(collection)
	if err != nil {
		return fmt.Errorf("add field %s: %w", f.ID, err)
	}

	f.Values = slices.Clone(f.Values)

	if i := c.fieldIndex(f.ID); i >= 0 {
		c.Fields[i] = f
		return nil
	}

	at = max(0, min(at, len(c.Fields)))
	c.Fields = slices.Insert(c.Fields, at, f)
	return nil
}

// AppendField inserts f after the last field.
func (s *State) AppendField(collection string, f Field) error {
	c, err := s.Find(collection)
	if err != nil {
		return fmt.Errorf("append field %s: %w", f.ID, err)
	}
	return s.AddField(collection, len(c.Fields), f)
}

func (s *State) RemoveField(collection, fieldID string) error {
	c, err := s.Find(collection)
	if err != nil {
		return fmt.Errorf("remove field %s: %w", fieldID, err)
	}

	i := c.fieldIndex(fieldID)
	if i < 0 {
		return fmt.Errorf("remove field %s from %s: %w", fieldID, c.Name, ErrUnknownField)
	}

	c.Fields = slices.Delete(c.Fields, i, i+1)
	return nil
}

// RuleChange sets one operation rule on a collection.
type RuleChange func(*Collection)

func ListRule(r rules.Rule) RuleChange   { return func(c *Collection) { c.ListRule = r } }
func ViewRule(r rules.Rule) RuleChange   { return func(c *Collection) { c.ViewRule = r } }
func CreateRule(r rules.Rule) RuleChange { return func(c *Collection) { c.CreateRule = r } }
func UpdateRule(r rules.Rule) RuleChange { return func(c *Collection) { c.UpdateRule = r } }
func DeleteRule(r rules.Rule) RuleChange { return func(c *Collection) { c.DeleteRule = r } }

// SetRules applies changes only if every resulting rule parses.
func (s *State) SetRules(collection string, changes ...RuleChange) error {
	c, err := s.Find(collection)
	if err != nil {
		return fmt.Errorf("set rules: %w", err)
	}

	next := c.clone()
	for _, change := range changes {
		change(&next)
	}

	if err := next.validateRules(); err != nil {
		return fmt.Errorf("set rules: %w", err)
	}

	*c = next
	return nil
}

// Equal compares collections, field order included. Nil and empty lists
// are equal.
func (s *State) Equal(other *State) bool {
	if len(s.Collections) != len(other.Collections) {
		return false
	}
	for i := range s.Collections {
		if !collectionEqual(s.Collections[i], other.Collections[i]) {
			return false
		}
	}
	return true
}

func collectionEqual(a, b Collection) bool {
	if a.ID != b.ID || a.Name != b.Name || a.Type != b.Type {
		return false
	}
	for _, op := range Operations {
		if a.Rule(op) != b.Rule(op) {
			return false
		}
	}
	if !slices.EqualFunc(a.Fields, b.Fields, fieldEqual) {
		return false
	}
	return slices.EqualFunc(a.Indexes, b.Indexes, func(x, y Index) bool {
		return x.Name == y.Name && x.Unique == y.Unique && slices.Equal(x.Columns, y.Columns)
	})
}

func fieldEqual(a, b Field) bool {
	return a.ID == b.ID &&
		a.Name == b.Name &&
		a.Type == b.Type &&
		a.Required == b.Required &&
		a.Relation == b.Relation &&
		a.MaxSelect == b.MaxSelect &&
		slices.Equal(a.Values, b.Values)
}

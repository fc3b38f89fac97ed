// AngelaMos | 2026
// rule.go

package rules

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Rule guards one collection operation. The zero value is locked: only a
// superuser may perform the operation. A set rule with an empty source is
// public.
type Rule struct {
	Source string
	Set    bool
}

func Locked() Rule {
	return Rule{}
}

func Public() Rule {
	return Rule{Set: true}
}

func Expression(src string) Rule {
	return Rule{Source: src, Set: true}
}

func (r Rule) IsLocked() bool {
	return !r.Set
}

func (r Rule) IsPublic() bool {
	return r.Set && strings.TrimSpace(r.Source) == ""
}

func (r Rule) String() string {
	if !r.Set {
		return "<locked>"
	}
	if r.IsPublic() {
		return "<public>"
	}
	return r.Source
}

// MarshalYAML renders a locked rule as null.
func (r Rule) MarshalYAML() (any, error) {
	if !r.Set {
		return nil, nil
	}
	return r.Source, nil
}

// Validate parses the rule without evaluating it.
func (r Rule) Validate() error {
	if r.IsLocked() || r.IsPublic() {
		return nil
	}
	_, err := Compile(r.Source)
	return err
}

var compiled sync.Map

// Compile parses src once and caches the expression.
func Compile(src string) (*Expr, error) {
	if cached, ok := compiled.Load(src); ok {
		return cached.(*Expr), nil //nolint:forcetypeassert // only *Expr is stored
	}

	expr, err := Parse(src)
	if err != nil {
		return nil, err
	}

	compiled.Store(src, expr)
	return expr, nil
}

// Allow evaluates rule for a non-superuser caller.
func Allow(ctx context.Context, rule Rule, env Env) (bool, error) {
	if rule.IsLocked() {
		return false, nil
	}
	if rule.IsPublic() {
		return true, nil
	}

	expr, err := Compile(rule.Source)
	if err != nil {
		return false, fmt.Errorf("compile rule: %w", err)
	}

	return expr.Eval(ctx, env)
}

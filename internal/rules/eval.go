// AngelaMos | 2026
// eval.go

package rules

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var ErrRecordNotFound = errors.New("record not found")

// AuthCollection is the collection @request.auth records belong to.
const AuthCollection = "users"

// Record is one row of a collection keyed by field name. Relation fields
// hold the target id as a string, or a []string for multi relations.
type Record map[string]any

func (r Record) ID() string {
	if r == nil {
		return ""
	}
	id, _ := r["id"].(string)
	return id
}

// Resolver supplies the data a rule walks through.
type Resolver interface {
	// Relation returns the target collection of a relation field.
	Relation(collection, field string) (string, bool)
	Find(ctx context.Context, collection, id string) (Record, error)
	// Via returns the records of collection whose field references id.
	Via(ctx context.Context, collection, field, id string) ([]Record, error)
	Scan(ctx context.Context, collection string) ([]Record, error)
}

// Env is everything a rule can observe for one evaluation.
type Env struct {
	Collection string
	Record     Record
	Auth       Record
	Body       map[string]any
	Query      map[string]string
	Method     string
	Resolver   Resolver
}

// Eval reports whether the expression holds. Every @collection binding is
// tried against each row of its collection; the rule holds if any
// assignment satisfies it.
func (e *Expr) Eval(ctx context.Context, env Env) (bool, error) {
	ev := &evaluator{env: env, bound: make(map[string]Record)}

	if len(e.bindings) == 0 {
		return ev.node(ctx, e.root)
	}

	if env.Resolver == nil {
		return false, fmt.Errorf("eval %q: @collection requires a resolver", e.src)
	}

	rows := make([][]Record, len(e.bindings))
	for i, b := range e.bindings {
		rs, err := env.Resolver.Scan(ctx, b.collection)
		if err != nil {
			return false, fmt.Errorf("scan %s: %w", b.collection, err)
		}
		rows[i] = rs
	}

	return ev.assign(ctx, e, rows, 0)
}

type evaluator struct {
	env   Env
	bound map[string]Record
}

func (ev *evaluator) assign(ctx context.Context, e *Expr, rows [][]Record, i int) (bool, error) {
	if i == len(e.bindings) {
		return ev.node(ctx, e.root)
	}

	key := e.bindings[i].key
	if len(rows[i]) == 0 {
		delete(ev.bound, key)
		return ev.assign(ctx, e, rows, i+1)
	}

	for _, row := range rows[i] {
		ev.bound[key] = row
		ok, err := ev.assign(ctx, e, rows, i+1)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

func (ev *evaluator) node(ctx context.Context, n node) (bool, error) {
	switch n := n.(type) {
	case *logicalNode:
		left, err := ev.node(ctx, n.left)
		if err != nil {
			return false, err
		}
		if n.and && !left {
			return false, nil
		}
		if !n.and && left {
			return true, nil
		}
		return ev.node(ctx, n.right)

	case *compareNode:
		return ev.compare(ctx, n)

	default:
		return false, fmt.Errorf("unknown node %T", n)
	}
}

func (ev *evaluator) compare(ctx context.Context, n *compareNode) (bool, error) {
	left, err := ev.values(ctx, n.left)
	if err != nil {
		return false, err
	}
	right, err := ev.values(ctx, n.right)
	if err != nil {
		return false, err
	}

	if len(left) == 0 || len(right) == 0 {
		return false, nil
	}

	for _, l := range left {
		for _, r := range right {
			ok := compareValues(n.op, l, r)
			if n.anyOf && ok {
				return true, nil
			}
			if !n.anyOf && !ok {
				return false, nil
			}
		}
	}

	return !n.anyOf, nil
}

func (ev *evaluator) values(ctx context.Context, o operand) ([]string, error) {
	switch o.kind {
	case srcLiteral:
		return []string{o.literal}, nil

	case srcMethod:
		return []string{strings.ToUpper(ev.env.Method)}, nil

	case srcQuery:
		return []string{ev.env.Query[o.segments[0]]}, nil

	case srcAuth:
		if ev.env.Auth == nil {
			return []string{""}, nil
		}
		return ev.walk(ctx, AuthCollection, []Record{ev.env.Auth}, o.segments)

	case srcBody:
		return ev.walk(ctx, ev.env.Collection, []Record{Record(ev.env.Body)}, o.segments)

	case srcRecord:
		if ev.env.Record == nil {
			return nil, nil
		}
		return ev.walk(ctx, ev.env.Collection, []Record{ev.env.Record}, o.segments)

	case srcCollection:
		row, ok := ev.bound[o.bindingKey()]
		if !ok {
			return nil, nil
		}
		return ev.walk(ctx, o.collection, []Record{row}, o.segments)
	}

	return nil, fmt.Errorf("unknown operand %s", o.raw)
}

// walk follows segments from records of collection. Intermediate segments
// must be relations, back-relations (X_via_Y) or nested objects; the last
// segment is read as a value. An unresolvable hop yields no values.
func (ev *evaluator) walk(
	ctx context.Context,
	collection string,
	records []Record,
	segments []string,
) ([]string, error) {
	for i, seg := range segments {
		last := i == len(segments)-1

		if target, field, ok := parseVia(seg); ok {
			next, err := ev.via(ctx, records, target, field)
			if err != nil {
				return nil, err
			}
			if last {
				return recordIDs(next), nil
			}
			collection, records = target, next
			continue
		}

		if last {
			var out []string
			for _, rec := range records {
				out = append(out, leafValues(rec[seg])...)
			}
			return out, nil
		}

		target, isRelation := "", false
		if ev.env.Resolver != nil {
			target, isRelation = ev.env.Resolver.Relation(collection, seg)
		}

		// rel.id reads the stored reference without loading the target.
		if isRelation && i == len(segments)-2 && segments[i+1] == "id" {
			var out []string
			for _, rec := range records {
				if nested, ok := asRecord(rec[seg]); ok {
					if id := nested.ID(); id != "" {
						out = append(out, id)
					}
					continue
				}
				for _, id := range leafValues(rec[seg]) {
					if id != "" {
						out = append(out, id)
					}
				}
			}
			return out, nil
		}

		var next []Record
		for _, rec := range records {
			raw := rec[seg]

			if nested, ok := asRecord(raw); ok {
				next = append(next, nested)
				continue
			}

			if !isRelation {
				continue
			}

			for _, id := range leafValues(raw) {
				if id == "" {
					continue
				}
				found, err := ev.env.Resolver.Find(ctx, target, id)
				if errors.Is(err, ErrRecordNotFound) {
					continue
				}
				if err != nil {
					return nil, fmt.Errorf("resolve %s.%s: %w", collection, seg, err)
				}
				next = append(next, found)
			}
		}

		if len(next) == 0 {
			return nil, nil
		}
		collection, records = target, next
	}

	return nil, nil
}

func (ev *evaluator) via(ctx context.Context, records []Record, target, field string) ([]Record, error) {
	if ev.env.Resolver == nil {
		return nil, nil
	}

	var out []Record
	for _, rec := range records {
		id := rec.ID()
		if id == "" {
			continue
		}
		found, err := ev.env.Resolver.Via(ctx, target, field, id)
		if err != nil {
			return nil, fmt.Errorf("resolve %s_via_%s: %w", target, field, err)
		}
		out = append(out, found...)
	}
	return out, nil
}

func parseVia(seg string) (collection, field string, ok bool) {
	idx := strings.LastIndex(seg, "_via_")
	if idx <= 0 || idx+len("_via_") >= len(seg) {
		return "", "", false
	}
	return seg[:idx], seg[idx+len("_via_"):], true
}

func recordIDs(records []Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID())
	}
	return out
}

func asRecord(v any) (Record, bool) {
	switch m := v.(type) {
	case Record:
		return m, true
	case map[string]any:
		return Record(m), true
	}
	return nil, false
}

// leafValues flattens a field value into its comparable strings. A missing
// or null value reads as "".
func leafValues(v any) []string {
	switch val := v.(type) {
	case nil:
		return []string{""}
	case string:
		return []string{val}
	case []string:
		if len(val) == 0 {
			return []string{""}
		}
		return val
	case []any:
		if len(val) == 0 {
			return []string{""}
		}
		out := make([]string, 0, len(val))
		for _, item := range val {
			out = append(out, scalarString(item))
		}
		return out
	default:
		return []string{scalarString(val)}
	}
}

func scalarString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

func compareValues(op, left, right string) bool {
	switch op {
	case "=":
		return equalValues(left, right)
	case "!=":
		return !equalValues(left, right)
	case "~":
		return like(left, right)
	case "!~":
		return !like(left, right)
	}

	lf, lerr := strconv.ParseFloat(left, 64)
	rf, rerr := strconv.ParseFloat(right, 64)
	numeric := lerr == nil && rerr == nil

	switch op {
	case ">":
		if numeric {
			return lf > rf
		}
		return left > right
	case ">=":
		if numeric {
			return lf >= rf
		}
		return left >= right
	case "<":
		if numeric {
			return lf < rf
		}
		return left < right
	case "<=":
		if numeric {
			return lf <= rf
		}
		return left <= right
	}

	return false
}

func equalValues(left, right string) bool {
	if left == right {
		return true
	}
	lf, lerr := strconv.ParseFloat(left, 64)
	rf, rerr := strconv.ParseFloat(right, 64)
	return lerr == nil && rerr == nil && lf == rf
}

// like matches case-insensitively. Without a % wildcard the pattern matches
// anywhere in the value.
func like(value, pattern string) bool {
	if !strings.Contains(pattern, "%") {
		return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
	}

	parts := strings.Split(pattern, "%")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	re, err := regexp.Compile("(?is)^" + strings.Join(parts, ".*") + "$")
	if err != nil {
		return false
	}
	return re.MatchString(value)
}

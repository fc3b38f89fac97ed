// AngelaMos | 2026
// authorizer.go

package access

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"go.opentelemetry.io/otel/attribute"

	"github.com/localmart/localmart/internal/core"
	"github.com/localmart/localmart/internal/rules"
	"github.com/localmart/localmart/internal/schema"
)

// Caller is the authenticated identity a decision is made for. The zero
// value is an anonymous caller.
type Caller struct {
	ID    string
	Roles []string
}

func (c Caller) Record() rules.Record {
	if c.ID == "" {
		return nil
	}
	roles := c.Roles
	if roles == nil {
		roles = []string{}
	}
	return rules.Record{"id": c.ID, "roles": roles}
}

// Authorizer evaluates the collection rules of a schema state.
type Authorizer struct {
	state    *schema.State
	resolver rules.Resolver
	logger   *slog.Logger
}

func NewAuthorizer(state *schema.State, resolver rules.Resolver, logger *slog.Logger) *Authorizer {
	return &Authorizer{state: state, resolver: resolver, logger: logger}
}

// Scope binds a caller to a request-lived cache of resolver reads.
func (a *Authorizer) Scope(caller Caller) *Scope {
	return &Scope{
		authz:    a,
		caller:   caller,
		resolver: rules.Cached(a.resolver),
	}
}

type Scope struct {
	authz    *Authorizer
	caller   Caller
	resolver rules.Resolver
}

// Input is the request data a rule may read besides the record.
type Input struct {
	Body   map[string]any
	Query  map[string]string
	Method string
}

func (s *Scope) Caller() Caller {
	return s.caller
}

// Allow reports whether op on record is permitted.
func (s *Scope) Allow(
	ctx context.Context,
	collection string,
	op schema.Operation,
	record rules.Record,
	in Input,
) (bool, error) {
	c, err := s.authz.state.Find(collection)
	if err != nil {
		return false, err
	}

	ctx, span := core.StartSpan(ctx, "access.allow",
		attribute.String("collection", c.Name),
		attribute.String("operation", string(op)),
	)
	defer span.End()

	ok, err := rules.Allow(ctx, c.Rule(op), rules.Env{
		Collection: c.Name,
		Record:     record,
		Auth:       s.caller.Record(),
		Body:       in.Body,
		Query:      in.Query,
		Method:     in.Method,
		Resolver:   s.resolver,
	})
	if err != nil {
		core.SetSpanError(ctx, err)
		return false, fmt.Errorf("evaluate %s %s rule: %w", c.Name, op, err)
	}

	core.AccessDecisionsTotal.WithLabelValues(c.Name, string(op), strconv.FormatBool(ok)).Inc()
	if !ok {
		s.authz.logger.Debug("access denied",
			"collection", c.Name,
			"operation", op,
			"record_id", record.ID(),
			"user_id", s.caller.ID,
		)
	}
	return ok, nil
}

// Require is Allow that turns a denial into ErrForbidden.
func (s *Scope) Require(
	ctx context.Context,
	collection string,
	op schema.Operation,
	record rules.Record,
	in Input,
) error {
	ok, err := s.Allow(ctx, collection, op, record, in)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s %s: %w", collection, op, core.ErrForbidden)
	}
	return nil
}

// View is Require for single-record reads; a denial is reported as
// ErrNotFound so existence is not leaked.
func (s *Scope) View(ctx context.Context, collection string, record rules.Record) error {
	ok, err := s.Allow(ctx, collection, schema.OpView, record, Input{Method: "GET"})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s %s: %w", collection, record.ID(), core.ErrNotFound)
	}
	return nil
}

// Filter keeps the records the list rule admits, in order.
func (s *Scope) Filter(ctx context.Context, collection string, records []rules.Record) ([]rules.Record, error) {
	out := make([]rules.Record, 0, len(records))
	for _, rec := range records {
		ok, err := s.Allow(ctx, collection, schema.OpList, rec, Input{Method: "GET"})
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// IsGlobalAdmin evaluates the global admin policy for the caller.
func (s *Scope) IsGlobalAdmin(ctx context.Context) (bool, error) {
	return rules.Allow(ctx, rules.Expression(rules.GlobalAdmin()), rules.Env{
		Auth:     s.caller.Record(),
		Resolver: s.resolver,
	})
}

// IsStoreAdmin reports whether the caller is a global admin or holds the
// admin role for storeID.
func (s *Scope) IsStoreAdmin(ctx context.Context, storeID string) (bool, error) {
	rule := rules.Expression(rules.AnyOf(rules.GlobalAdmin(), rules.StoreAdminVia("id")))
	return rules.Allow(ctx, rule, rules.Env{
		Collection: "stores",
		Record:     rules.Record{"id": storeID},
		Auth:       s.caller.Record(),
		Resolver:   s.resolver,
	})
}

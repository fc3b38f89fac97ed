// AngelaMos | 2026
// policy.go

package rules

import (
	"strings"
)

// Named predicates shared by the collection rules and the API handlers.

func GlobalAdmin() string {
	return "@request.auth.roles ?~ 'admin'"
}

func Authenticated() string {
	return "@request.auth.id != ''"
}

// OwnedBy holds when the relation path resolves to the caller's user id.
func OwnedBy(userPath string) string {
	return userPath + " = @request.auth.id"
}

func Self() string {
	return "@request.auth.id = id"
}

// StoreAdminVia holds when the caller has the admin store role for the
// store id that storePath resolves to.
func StoreAdminVia(storePath string) string {
	return "(@collection.store_roles.user.id = @request.auth.id" +
		" && @collection.store_roles.store.id = " + storePath +
		" && @collection.store_roles.role = 'admin')"
}

// AnyOf joins predicates with ||, parenthesizing compound parts.
func AnyOf(preds ...string) string {
	parts := make([]string, 0, len(preds))
	for _, p := range preds {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if needsParens(p) {
			p = "(" + p + ")"
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, " || ")
}

func needsParens(p string) bool {
	if strings.HasPrefix(p, "(") && strings.HasSuffix(p, ")") && balancedOuter(p) {
		return false
	}
	return strings.Contains(p, "&&") || strings.Contains(p, "||")
}

// balancedOuter reports whether the first paren closes at the last byte.
func balancedOuter(p string) bool {
	depth := 0
	for i := 0; i < len(p); i++ {
		switch p[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(p)-1 {
				return false
			}
		}
	}
	return depth == 0
}

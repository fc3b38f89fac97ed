// AngelaMos | 2026
// handler.go

package search

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/localmart/localmart/internal/core"
	"github.com/localmart/localmart/internal/featureflag"
)

type Searcher interface {
	Search(ctx context.Context, query string) ([]Hit, error)
}

type FlagChecker interface {
	Enabled(ctx context.Context, name string) bool
}

type Handler struct {
	searcher Searcher
	flags    FlagChecker
}

func NewHandler(searcher Searcher, flags FlagChecker) *Handler {
	return &Handler{searcher: searcher, flags: flags}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/search", h.Search)
}

// Search proxies to the product index while the product_search flag is on
// and is indistinguishable from a missing route otherwise.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	if !h.flags.Enabled(r.Context(), featureflag.ProductSearch) {
		core.NotFound(w, "resource")
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		core.BadRequest(w, "query is required")
		return
	}

	hits, err := h.searcher.Search(r.Context(), query)
	if err != nil {
		core.JSONError(w, core.UpstreamError(err, "Search is unavailable"))
		return
	}

	core.OK(w, map[string]any{"hits": hits})
}

package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/teilehaus/searchsync/internal/gateway"
	apperrors "github.com/teilehaus/searchsync/pkg/errors"
	"github.com/teilehaus/searchsync/pkg/httputil"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// SearchHandler exposes read-only search over the product and category
// indexes. It is a thin passthrough to the index engine; all relevance
// configuration lives in the index settings.
type SearchHandler struct {
	gw            gateway.IndexGateway
	productIndex  string
	categoryIndex string
	logger        *slog.Logger
}

func NewSearchHandler(gw gateway.IndexGateway, productIndex, categoryIndex string, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{
		gw:            gw,
		productIndex:  productIndex,
		categoryIndex: categoryIndex,
		logger:        logger,
	}
}

// SearchProducts handles GET /api/v1/search.
func (h *SearchHandler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	h.search(w, r, h.productIndex)
}

// SearchCategories handles GET /api/v1/search/categories.
func (h *SearchHandler) SearchCategories(w http.ResponseWriter, r *http.Request) {
	h.search(w, r, h.categoryIndex)
}

func (h *SearchHandler) search(w http.ResponseWriter, r *http.Request, index string) {
	req, err := parseSearchRequest(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	result, err := h.gw.Search(r.Context(), index, req)
	if err != nil {
		httputil.WriteError(w, r, apperrors.Unavailable("search index", err), h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

func parseSearchRequest(r *http.Request) (gateway.SearchRequest, error) {
	q := r.URL.Query()

	req := gateway.SearchRequest{
		Query:   q.Get("q"),
		Filters: q["filter"],
		Facets:  q["facet"],
		Sort:    q["sort"],
		Limit:   defaultSearchLimit,
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || limit < 1 {
			return gateway.SearchRequest{}, apperrors.InvalidInput("limit must be a positive integer")
		}
		if limit > maxSearchLimit {
			limit = maxSearchLimit
		}
		req.Limit = limit
	}

	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || offset < 0 {
			return gateway.SearchRequest{}, apperrors.InvalidInput("offset must be a non-negative integer")
		}
		req.Offset = offset
	}

	return req, nil
}

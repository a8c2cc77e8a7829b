package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/teilehaus/searchsync/internal/domain"
	apperrors "github.com/teilehaus/searchsync/pkg/errors"
	"github.com/teilehaus/searchsync/pkg/httpclient"
)

// Page bounds one page of a catalog query.
type Page struct {
	Take int
	Skip int
}

// ProductFilter narrows a product query. Zero-valued fields are omitted.
type ProductFilter struct {
	IDs          []string
	CategoryIDs  []string
	CollectionID string
	UpdatedSince *time.Time
}

// CategoryFilter narrows a category query. ParentID filters on the direct
// parent; a pointer to the empty string selects root categories.
type CategoryFilter struct {
	IDs      []string
	ParentID *string
}

// Client is the narrow graph-query interface over the catalog, which is the
// external system of record. The sync pipeline only ever reads through it.
type Client interface {
	// ListProducts returns one page of products with their variants, tags,
	// category memberships, and sales channels, plus the total match count.
	ListProducts(ctx context.Context, filter ProductFilter, page Page) ([]domain.ProductEntity, int, error)

	// ListCategories returns one page of categories plus the total match count.
	ListCategories(ctx context.Context, filter CategoryFilter, page Page) ([]domain.CategoryNode, int, error)

	// GetCategory returns a single category by id.
	GetCategory(ctx context.Context, id string) (*domain.CategoryNode, error)

	// ProductIDsForVariants resolves variant ids to their owning product ids.
	ProductIDsForVariants(ctx context.Context, variantIDs []string) ([]string, error)
}

// HTTPClient talks to the catalog's graph-query endpoint over HTTP.
type HTTPClient struct {
	baseURL string
	http    *httpclient.CircuitBreakerClient
}

// NewHTTPClient creates a catalog client for the given base URL.
func NewHTTPClient(baseURL string, client *httpclient.CircuitBreakerClient) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		http:    client,
	}
}

// graphRequest is the wire shape of one graph query: entity type, field
// selection, filters, and pagination.
type graphRequest struct {
	Entity     string         `json:"entity"`
	Fields     []string       `json:"fields"`
	Filters    map[string]any `json:"filters,omitempty"`
	Pagination *graphPage     `json:"pagination,omitempty"`
}

type graphPage struct {
	Take int `json:"take"`
	Skip int `json:"skip"`
}

type graphResponse struct {
	Data  json.RawMessage `json:"data"`
	Count int             `json:"count"`
}

var productFields = []string{
	"id", "title", "handle", "description", "thumbnail", "status",
	"collection_id", "category_ids", "variants", "tags", "sales_channels",
	"updated_at",
}

var categoryFields = []string{
	"id", "name", "handle", "description", "parent_category_id",
	"is_active", "is_internal", "rank", "updated_at",
}

// ListProducts implements Client.
func (c *HTTPClient) ListProducts(ctx context.Context, filter ProductFilter, page Page) ([]domain.ProductEntity, int, error) {
	filters := map[string]any{}
	if len(filter.IDs) > 0 {
		filters["id"] = filter.IDs
	}
	if len(filter.CategoryIDs) > 0 {
		filters["category_id"] = filter.CategoryIDs
	}
	if filter.CollectionID != "" {
		filters["collection_id"] = filter.CollectionID
	}
	if filter.UpdatedSince != nil {
		filters["updated_at"] = map[string]string{"$gte": filter.UpdatedSince.UTC().Format(time.RFC3339)}
	}

	resp, err := c.query(ctx, graphRequest{
		Entity:     "product",
		Fields:     productFields,
		Filters:    filters,
		Pagination: &graphPage{Take: page.Take, Skip: page.Skip},
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}

	var products []domain.ProductEntity
	if err := json.Unmarshal(resp.Data, &products); err != nil {
		return nil, 0, fmt.Errorf("list products: decode: %w", err)
	}
	return products, resp.Count, nil
}

// ListCategories implements Client.
func (c *HTTPClient) ListCategories(ctx context.Context, filter CategoryFilter, page Page) ([]domain.CategoryNode, int, error) {
	filters := map[string]any{}
	if len(filter.IDs) > 0 {
		filters["id"] = filter.IDs
	}
	if filter.ParentID != nil {
		filters["parent_category_id"] = *filter.ParentID
	}

	resp, err := c.query(ctx, graphRequest{
		Entity:     "product_category",
		Fields:     categoryFields,
		Filters:    filters,
		Pagination: &graphPage{Take: page.Take, Skip: page.Skip},
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list categories: %w", err)
	}

	var categories []domain.CategoryNode
	if err := json.Unmarshal(resp.Data, &categories); err != nil {
		return nil, 0, fmt.Errorf("list categories: decode: %w", err)
	}
	return categories, resp.Count, nil
}

// GetCategory implements Client.
func (c *HTTPClient) GetCategory(ctx context.Context, id string) (*domain.CategoryNode, error) {
	categories, _, err := c.ListCategories(ctx, CategoryFilter{IDs: []string{id}}, Page{Take: 1})
	if err != nil {
		return nil, err
	}
	if len(categories) == 0 {
		return nil, apperrors.NotFound("category", id)
	}
	return &categories[0], nil
}

// ProductIDsForVariants implements Client.
func (c *HTTPClient) ProductIDsForVariants(ctx context.Context, variantIDs []string) ([]string, error) {
	if len(variantIDs) == 0 {
		return nil, nil
	}

	resp, err := c.query(ctx, graphRequest{
		Entity:     "product_variant",
		Fields:     []string{"id", "product_id"},
		Filters:    map[string]any{"id": variantIDs},
		Pagination: &graphPage{Take: len(variantIDs)},
	})
	if err != nil {
		return nil, fmt.Errorf("resolve variant products: %w", err)
	}

	var variants []struct {
		ID        string `json:"id"`
		ProductID string `json:"product_id"`
	}
	if err := json.Unmarshal(resp.Data, &variants); err != nil {
		return nil, fmt.Errorf("resolve variant products: decode: %w", err)
	}

	seen := make(map[string]struct{}, len(variants))
	var productIDs []string
	for _, v := range variants {
		if v.ProductID == "" {
			continue
		}
		if _, ok := seen[v.ProductID]; ok {
			continue
		}
		seen[v.ProductID] = struct{}{}
		productIDs = append(productIDs, v.ProductID)
	}
	return productIDs, nil
}

// Ping checks that the catalog API is reachable.
func (c *HTTPClient) Ping(ctx context.Context) error {
	resp, err := c.http.Get(ctx, c.baseURL+"/health")
	if err != nil {
		return fmt.Errorf("catalog ping: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("catalog ping: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) query(ctx context.Context, req graphRequest) (*graphResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal graph query: %w", err)
	}

	resp, err := c.http.Post(ctx, c.baseURL+"/admin/graph", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("graph query %q: %w", req.Entity, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, "catalog")
	}

	var decoded graphResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("graph query %q: decode response: %w", req.Entity, err)
	}
	return &decoded, nil
}

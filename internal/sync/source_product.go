package sync

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/teilehaus/searchsync/internal/availability"
	"github.com/teilehaus/searchsync/internal/builder"
	"github.com/teilehaus/searchsync/internal/catalog"
	"github.com/teilehaus/searchsync/internal/domain"
	"github.com/teilehaus/searchsync/internal/hierarchy"
)

// ProductSource fetches catalog products and flattens them into product
// documents, resolving ancestor paths and stock availability per page.
type ProductSource struct {
	catalog   catalog.Client
	resolver  *hierarchy.Resolver
	inventory *availability.Aggregator
	index     string
	logger    *slog.Logger
	now       func() time.Time
}

func NewProductSource(c catalog.Client, resolver *hierarchy.Resolver, inventory *availability.Aggregator, index string, logger *slog.Logger) *ProductSource {
	return &ProductSource{
		catalog:   c,
		resolver:  resolver,
		inventory: inventory,
		index:     index,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *ProductSource) Kind() string  { return "product" }
func (s *ProductSource) Index() string { return s.index }

func (s *ProductSource) BuildPage(ctx context.Context, ids []string, take, skip int) ([]Document, int, error) {
	filter := catalog.ProductFilter{IDs: ids}
	page := catalog.Page{Take: take, Skip: skip}
	if len(ids) > 0 {
		page = catalog.Page{Take: len(ids)}
	}

	products, _, err := s.catalog.ListProducts(ctx, filter, page)
	if err != nil {
		return nil, 0, err
	}

	// One hierarchy session per page: products of one page often share
	// category subtrees.
	sess := s.resolver.NewSession()
	now := s.now()

	docs := make([]Document, 0, len(products))
	for _, p := range products {
		doc, err := s.transform(ctx, sess, p, now)
		if err != nil {
			// Partial-batch tolerance: a broken entity does not take the
			// rest of the page down with it.
			s.logger.WarnContext(ctx, "skipping product, transform failed",
				slog.String("product_id", p.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		docs = append(docs, doc)
	}

	return docs, len(products), nil
}

func (s *ProductSource) transform(ctx context.Context, sess *hierarchy.Session, p domain.ProductEntity, now time.Time) (Document, error) {
	paths := make(map[string]domain.CategoryPath, len(p.CategoryIDs))
	for _, categoryID := range p.CategoryIDs {
		path, err := sess.AncestorPath(ctx, categoryID)
		if err != nil {
			return Document{}, err
		}
		if len(path.IDs) > 0 {
			paths[categoryID] = path
		}
	}

	variantIDs := make([]string, 0, len(p.Variants))
	for _, v := range p.Variants {
		variantIDs = append(variantIDs, v.ID)
	}
	quantities := s.inventory.Resolve(ctx, variantIDs)

	doc := builder.BuildProductDocument(p, paths, quantities, now)
	body, err := json.Marshal(doc)
	if err != nil {
		return Document{}, err
	}
	return Document{ID: doc.ID, Body: body}, nil
}

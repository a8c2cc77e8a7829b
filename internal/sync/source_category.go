package sync

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/teilehaus/searchsync/internal/builder"
	"github.com/teilehaus/searchsync/internal/catalog"
	"github.com/teilehaus/searchsync/internal/domain"
	"github.com/teilehaus/searchsync/internal/hierarchy"
)

// CategorySource fetches catalog categories and flattens them into category
// documents, resolving each one's place in the tree and its descendant
// product visibility.
type CategorySource struct {
	catalog  catalog.Client
	resolver *hierarchy.Resolver
	index    string
	logger   *slog.Logger
	now      func() time.Time
}

func NewCategorySource(c catalog.Client, resolver *hierarchy.Resolver, index string, logger *slog.Logger) *CategorySource {
	return &CategorySource{
		catalog:  c,
		resolver: resolver,
		index:    index,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *CategorySource) Kind() string  { return "category" }
func (s *CategorySource) Index() string { return s.index }

func (s *CategorySource) BuildPage(ctx context.Context, ids []string, take, skip int) ([]Document, int, error) {
	filter := catalog.CategoryFilter{IDs: ids}
	page := catalog.Page{Take: take, Skip: skip}
	if len(ids) > 0 {
		page = catalog.Page{Take: len(ids)}
	}

	categories, _, err := s.catalog.ListCategories(ctx, filter, page)
	if err != nil {
		return nil, 0, err
	}

	sess := s.resolver.NewSession()
	now := s.now()

	docs := make([]Document, 0, len(categories))
	for _, cat := range categories {
		doc, err := s.transform(ctx, sess, cat, now)
		if err != nil {
			s.logger.WarnContext(ctx, "skipping category, transform failed",
				slog.String("category_id", cat.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		docs = append(docs, doc)
	}

	return docs, len(categories), nil
}

func (s *CategorySource) transform(ctx context.Context, sess *hierarchy.Session, cat domain.CategoryNode, now time.Time) (Document, error) {
	path, err := sess.AncestorPath(ctx, cat.ID)
	if err != nil {
		return Document{}, err
	}

	var parentName string
	if cat.ParentID != nil && *cat.ParentID != "" {
		parent, err := sess.Node(ctx, *cat.ParentID)
		if err != nil {
			return Document{}, err
		}
		if parent != nil {
			parentName = parent.Name
		}
	}

	children, err := sess.Children(ctx, cat.ID)
	if err != nil {
		return Document{}, err
	}
	childNames := make([]string, 0, len(children))
	for _, child := range children {
		childNames = append(childNames, child.Name)
	}

	hasPublic := sess.HasPublicDescendantProducts(ctx, cat.ID)

	doc := builder.BuildCategoryDocument(cat, parentName, childNames, path, hasPublic, now)
	body, err := json.Marshal(doc)
	if err != nil {
		return Document{}, err
	}
	return Document{ID: doc.ID, Body: body}, nil
}

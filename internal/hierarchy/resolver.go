package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/teilehaus/searchsync/internal/catalog"
	"github.com/teilehaus/searchsync/internal/domain"
	apperrors "github.com/teilehaus/searchsync/pkg/errors"
)

// maxAncestorHops bounds the parent walk. The catalog guarantees an acyclic
// tree, so hitting the bound means a cycle was introduced upstream and the
// walk must fail rather than loop.
const maxAncestorHops = 32

// childPageSize is the page size used when expanding a category's children.
const childPageSize = 100

// ErrCycleDetected is returned when the parent walk revisits a category.
var ErrCycleDetected = errors.New("category cycle detected")

// Resolver answers hierarchy questions against the catalog: ancestor paths,
// descendant sets, and public-product visibility.
type Resolver struct {
	catalog        catalog.Client
	publicChannel  string
	lookupPageSize int
	logger         *slog.Logger
}

// NewResolver creates a hierarchy resolver. publicChannel is the sales
// channel id that makes a product publicly visible; lookupPageSize bounds
// each page of the visibility product lookup.
func NewResolver(c catalog.Client, publicChannel string, lookupPageSize int, logger *slog.Logger) *Resolver {
	if lookupPageSize <= 0 {
		lookupPageSize = 500
	}
	return &Resolver{
		catalog:        c,
		publicChannel:  publicChannel,
		lookupPageSize: lookupPageSize,
		logger:         logger,
	}
}

// Session memoizes category lookups for the duration of one sync batch, so
// that resolving many products sharing overlapping subtrees does not repeat
// identical queries. Sessions are not safe for concurrent use.
type Session struct {
	r        *Resolver
	nodes    map[string]*domain.CategoryNode
	children map[string][]domain.CategoryNode
	paths    map[string]domain.CategoryPath
}

// NewSession creates an empty memoization session.
func (r *Resolver) NewSession() *Session {
	return &Session{
		r:        r,
		nodes:    make(map[string]*domain.CategoryNode),
		children: make(map[string][]domain.CategoryNode),
		paths:    make(map[string]domain.CategoryPath),
	}
}

// Node fetches a category by id, memoized. A nil node with nil error means
// the category no longer exists in the catalog.
func (s *Session) Node(ctx context.Context, id string) (*domain.CategoryNode, error) {
	if node, ok := s.nodes[id]; ok {
		return node, nil
	}

	node, err := s.r.catalog.GetCategory(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.nodes[id] = nil
			return nil, nil
		}
		return nil, err
	}

	s.nodes[id] = node
	return node, nil
}

// AncestorPath resolves the ordered ancestor chain of the category, root
// first and including the category itself. The walk is O(depth) catalog
// queries on a cold session and fails with ErrCycleDetected instead of
// looping if the tree is corrupt.
func (s *Session) AncestorPath(ctx context.Context, id string) (domain.CategoryPath, error) {
	if path, ok := s.paths[id]; ok {
		return path, nil
	}

	var path domain.CategoryPath
	visited := make(map[string]struct{})

	current := id
	for hop := 0; ; hop++ {
		if hop >= maxAncestorHops {
			return domain.CategoryPath{}, fmt.Errorf("resolve ancestors of %q: %w", id, ErrCycleDetected)
		}
		if _, seen := visited[current]; seen {
			return domain.CategoryPath{}, fmt.Errorf("resolve ancestors of %q: %w", id, ErrCycleDetected)
		}
		visited[current] = struct{}{}

		node, err := s.Node(ctx, current)
		if err != nil {
			return domain.CategoryPath{}, fmt.Errorf("resolve ancestors of %q: %w", id, err)
		}
		if node == nil {
			// The chain is broken (ancestor deleted); keep what was resolved.
			break
		}

		// Cons onto the front: the walk goes leaf to root, the path reads
		// root to leaf.
		path.IDs = append([]string{node.ID}, path.IDs...)
		path.Names = append([]string{node.Name}, path.Names...)

		if node.ParentID == nil || *node.ParentID == "" {
			break
		}
		current = *node.ParentID
	}

	s.paths[id] = path
	return path, nil
}

// Children lists the direct children of the category, memoized, paging
// through the catalog until exhausted.
func (s *Session) Children(ctx context.Context, parentID string) ([]domain.CategoryNode, error) {
	if children, ok := s.children[parentID]; ok {
		return children, nil
	}

	var children []domain.CategoryNode
	skip := 0
	for {
		page, _, err := s.r.catalog.ListCategories(ctx,
			catalog.CategoryFilter{ParentID: &parentID},
			catalog.Page{Take: childPageSize, Skip: skip},
		)
		if err != nil {
			return nil, fmt.Errorf("list children of %q: %w", parentID, err)
		}
		children = append(children, page...)
		if len(page) < childPageSize {
			break
		}
		skip += childPageSize
	}

	for i := range children {
		node := children[i]
		s.nodes[node.ID] = &node
	}
	s.children[parentID] = children
	return children, nil
}

// DescendantIDs enumerates the category's full descendant set, including the
// category itself, by breadth-first child expansion.
func (s *Session) DescendantIDs(ctx context.Context, id string) ([]string, error) {
	ids := []string{id}
	queue := []string{id}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		children, err := s.Children(ctx, current)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			ids = append(ids, child.ID)
			queue = append(queue, child.ID)
		}
	}

	return ids, nil
}

// HasPublicDescendantProducts reports whether any product in the category's
// descendant set (inclusive) is sold through the public sales channel, or
// carries no channel assignment at all.
func (r *Resolver) HasPublicDescendantProducts(ctx context.Context, categoryID string) bool {
	return r.NewSession().HasPublicDescendantProducts(ctx, categoryID)
}

// HasPublicDescendantProducts is the session-memoized form of the resolver
// method, for callers checking many categories of one tree in a single batch.
//
// The product lookup pages exhaustively rather than truncating at one page.
// Any lookup failure fails open: a category is reported visible rather than
// silently hidden, and the error is logged.
func (s *Session) HasPublicDescendantProducts(ctx context.Context, categoryID string) bool {
	r := s.r

	descendants, err := s.DescendantIDs(ctx, categoryID)
	if err != nil {
		r.logger.WarnContext(ctx, "descendant lookup failed, treating category as visible",
			slog.String("category_id", categoryID),
			slog.String("error", err.Error()),
		)
		return true
	}

	skip := 0
	for {
		products, _, err := r.catalog.ListProducts(ctx,
			catalog.ProductFilter{CategoryIDs: descendants},
			catalog.Page{Take: r.lookupPageSize, Skip: skip},
		)
		if err != nil {
			r.logger.WarnContext(ctx, "visibility product lookup failed, treating category as visible",
				slog.String("category_id", categoryID),
				slog.String("error", err.Error()),
			)
			return true
		}

		for _, p := range products {
			if domain.SoldThroughChannel(p, r.publicChannel) {
				return true
			}
		}

		if len(products) < r.lookupPageSize {
			return false
		}
		skip += r.lookupPageSize
	}
}

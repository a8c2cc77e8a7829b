package domain

import "time"

// PathSeparator joins category names into display paths ("Motor > Dichtungen").
const PathSeparator = " > "

// ProductDoc is the denormalized product document written to the search
// index. It is rebuilt wholesale on every sync touching the product; fields
// are never patched individually.
type ProductDoc struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Handle      string `json:"handle"`
	Description string `json:"description"`
	Thumbnail   string `json:"thumbnail"`
	Status      string `json:"status"`

	// CategoryIDs contains every directly assigned category plus all of its
	// ancestors, so filtering on a parent category matches descendants too.
	CategoryIDs   []string `json:"category_ids"`
	CategoryNames []string `json:"category_names"`

	// HierarchicalCategories maps "lvl0", "lvl1", ... to the path prefixes of
	// each category membership, for hierarchical-menu faceting.
	HierarchicalCategories map[string][]string `json:"hierarchical_categories"`

	CollectionID string `json:"collection_id,omitempty"`

	IsAvailable bool     `json:"is_available"`
	MinPrice    int64    `json:"min_price"`
	MaxPrice    int64    `json:"max_price"`
	PriceRange  string   `json:"price_range"`
	Currencies  []string `json:"currencies"`

	SKUs          []string       `json:"skus"`
	Tags          []string       `json:"tags"`
	SalesChannels []SalesChannel `json:"sales_channels"`

	SearchableText string    `json:"searchable_text"`
	SyncedAt       time.Time `json:"synced_at"`
}

// CategoryDoc is the indexed projection of a category. Rebuilt on every sync
// pass touching the category; never partially updated.
type CategoryDoc struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Handle      string `json:"handle"`
	Description string `json:"description"`

	// AncestorPath is the full display path from the root to this category.
	AncestorPath string `json:"ancestor_path"`
	Level        int    `json:"level"`

	ParentID   string   `json:"parent_id,omitempty"`
	ParentName string   `json:"parent_name,omitempty"`
	ChildNames []string `json:"child_names"`
	Rank       int      `json:"rank"`

	// HasPublicProducts is true when at least one product in this category's
	// descendant set is sold through the public sales channel.
	HasPublicProducts bool `json:"has_public_products"`

	SearchableText string    `json:"searchable_text"`
	SyncedAt       time.Time `json:"synced_at"`
}

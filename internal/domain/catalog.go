package domain

import "time"

// Product status values as reported by the catalog.
const (
	ProductStatusPublished = "published"
	ProductStatusDraft     = "draft"
	ProductStatusRejected  = "rejected"
)

// CategoryNode is one catalog category as returned by the catalog query API.
// Categories form a tree via ParentID; the tree is acyclic by construction
// on the catalog side.
type CategoryNode struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Handle      string     `json:"handle"`
	Description string     `json:"description"`
	ParentID    *string    `json:"parent_category_id"`
	IsActive    bool       `json:"is_active"`
	IsInternal  bool       `json:"is_internal"`
	Rank        int        `json:"rank"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Money is a single price entry on a variant.
type Money struct {
	Amount       int64  `json:"amount"`
	CurrencyCode string `json:"currency_code"`
}

// Variant is a purchasable product variant. Availability is computed from
// inventory at sync time, never stored here.
type Variant struct {
	ID              string  `json:"id"`
	SKU             string  `json:"sku"`
	Prices          []Money `json:"prices"`
	ManageInventory bool    `json:"manage_inventory"`
	AllowBackorder  bool    `json:"allow_backorder"`
}

// SalesChannel is a channel a product is sold through.
type SalesChannel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProductEntity is one catalog product with the relations the sync pipeline
// denormalizes: categories, variants, tags, collection, sales channels.
type ProductEntity struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Handle        string         `json:"handle"`
	Description   string         `json:"description"`
	Thumbnail     string         `json:"thumbnail"`
	Status        string         `json:"status"`
	CollectionID  string         `json:"collection_id"`
	CategoryIDs   []string       `json:"category_ids"`
	Variants      []Variant      `json:"variants"`
	Tags          []string       `json:"tags"`
	SalesChannels []SalesChannel `json:"sales_channels"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// CategoryPath is the resolved ancestor chain of one category, root first and
// including the category itself. IDs and Names are index-aligned.
type CategoryPath struct {
	IDs   []string
	Names []string
}

// VariantAvailable reports whether a single variant can be purchased given
// its resolved available quantity.
func VariantAvailable(v Variant, quantity int) bool {
	if v.AllowBackorder {
		return true
	}
	if !v.ManageInventory {
		return true
	}
	return quantity > 0
}

// ProductAvailable reports whether at least one variant of the product is
// available. Variants missing from the quantity map count as quantity zero.
func ProductAvailable(p ProductEntity, quantities map[string]int) bool {
	for _, v := range p.Variants {
		if VariantAvailable(v, quantities[v.ID]) {
			return true
		}
	}
	return false
}

// SoldThroughChannel reports whether the product is assigned to the given
// sales channel. Products with no channel assignment at all are treated as
// sold everywhere (legacy fallback for catalogs predating channels).
func SoldThroughChannel(p ProductEntity, channelID string) bool {
	if len(p.SalesChannels) == 0 {
		return true
	}
	for _, sc := range p.SalesChannels {
		if sc.ID == channelID {
			return true
		}
	}
	return false
}

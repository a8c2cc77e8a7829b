package builder

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/teilehaus/searchsync/internal/domain"
)

// BuildProductDocument flattens one catalog product into its index document.
// Pure function: paths holds the resolved ancestor path per directly assigned
// category id, quantities the resolved available quantity per variant id.
//
// Category memberships expand to the union of all ancestors so that filtering
// on a parent category matches products assigned anywhere in its subtree.
func BuildProductDocument(p domain.ProductEntity, paths map[string]domain.CategoryPath, quantities map[string]int, now time.Time) domain.ProductDoc {
	doc := domain.ProductDoc{
		ID:                     p.ID,
		Title:                  p.Title,
		Handle:                 p.Handle,
		Description:            p.Description,
		Thumbnail:              p.Thumbnail,
		Status:                 p.Status,
		CollectionID:           p.CollectionID,
		CategoryIDs:            []string{},
		CategoryNames:          []string{},
		HierarchicalCategories: map[string][]string{},
		Currencies:             []string{},
		SKUs:                   []string{},
		Tags:                   dedupe(p.Tags),
		SalesChannels:          p.SalesChannels,
		IsAvailable:            domain.ProductAvailable(p, quantities),
		SyncedAt:               now.UTC(),
	}
	if doc.SalesChannels == nil {
		doc.SalesChannels = []domain.SalesChannel{}
	}

	seenIDs := make(map[string]struct{})
	seenNames := make(map[string]struct{})
	seenLevels := make(map[string]struct{})
	for _, categoryID := range p.CategoryIDs {
		path, ok := paths[categoryID]
		if !ok {
			continue
		}
		for i, id := range path.IDs {
			if _, dup := seenIDs[id]; !dup {
				seenIDs[id] = struct{}{}
				doc.CategoryIDs = append(doc.CategoryIDs, id)
			}
			name := path.Names[i]
			if _, dup := seenNames[name]; !dup {
				seenNames[name] = struct{}{}
				doc.CategoryNames = append(doc.CategoryNames, name)
			}

			key := "lvl" + strconv.Itoa(i)
			prefix := strings.Join(path.Names[:i+1], domain.PathSeparator)
			levelKey := key + "\x00" + prefix
			if _, dup := seenLevels[levelKey]; !dup {
				seenLevels[levelKey] = struct{}{}
				doc.HierarchicalCategories[key] = append(doc.HierarchicalCategories[key], prefix)
			}
		}
	}

	doc.MinPrice, doc.MaxPrice, doc.Currencies = priceBounds(p.Variants)
	doc.PriceRange = formatPriceRange(doc.MinPrice, doc.MaxPrice)

	for _, v := range p.Variants {
		if v.SKU != "" {
			doc.SKUs = append(doc.SKUs, v.SKU)
		}
	}

	doc.SearchableText = joinSearchable(
		p.Title,
		p.Description,
		strings.Join(doc.CategoryNames, " "),
		strings.Join(doc.Tags, " "),
		strings.Join(doc.SKUs, " "),
	)

	return doc
}

// priceBounds computes min/max over all price entries with a positive amount.
// Zero and negative amounts are placeholders on the catalog side and carry no
// pricing information.
func priceBounds(variants []domain.Variant) (min, max int64, currencies []string) {
	currencies = []string{}
	seen := make(map[string]struct{})

	for _, v := range variants {
		for _, price := range v.Prices {
			if price.Amount <= 0 {
				continue
			}
			if min == 0 || price.Amount < min {
				min = price.Amount
			}
			if price.Amount > max {
				max = price.Amount
			}
			code := strings.ToLower(price.CurrencyCode)
			if _, dup := seen[code]; !dup && code != "" {
				seen[code] = struct{}{}
				currencies = append(currencies, code)
			}
		}
	}

	sort.Strings(currencies)
	return min, max, currencies
}

func formatPriceRange(min, max int64) string {
	if min == 0 && max == 0 {
		return ""
	}
	if min == max {
		return strconv.FormatInt(min, 10)
	}
	return fmt.Sprintf("%d-%d", min, max)
}

func dedupe(values []string) []string {
	out := []string{}
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// joinSearchable concatenates non-empty parts with single spaces.
func joinSearchable(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, strings.TrimSpace(p))
		}
	}
	return strings.Join(kept, " ")
}

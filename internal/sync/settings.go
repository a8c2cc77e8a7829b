package sync

import "github.com/teilehaus/searchsync/internal/gateway"

// defaultRankingRules is the engine's standard relevance ordering.
var defaultRankingRules = []string{"words", "typo", "proximity", "attribute", "sort", "exactness"}

// ProductIndexSettings is the schema applied to the product index.
func ProductIndexSettings() gateway.Settings {
	return gateway.Settings{
		SearchableAttributes: []string{
			"title",
			"skus",
			"category_names",
			"tags",
			"searchable_text",
			"description",
			"handle",
		},
		FilterableAttributes: []string{
			"category_ids",
			"category_names",
			"hierarchical_categories.lvl0",
			"hierarchical_categories.lvl1",
			"hierarchical_categories.lvl2",
			"hierarchical_categories.lvl3",
			"is_available",
			"status",
			"collection_id",
			"tags",
			"currencies",
			"min_price",
			"max_price",
			"sales_channels.id",
		},
		SortableAttributes: []string{
			"title",
			"min_price",
			"max_price",
			"synced_at",
		},
		RankingRules:      defaultRankingRules,
		MaxValuesPerFacet: 200,
	}
}

// CategoryIndexSettings is the schema applied to the category index.
func CategoryIndexSettings() gateway.Settings {
	return gateway.Settings{
		SearchableAttributes: []string{
			"name",
			"ancestor_path",
			"searchable_text",
			"description",
			"handle",
		},
		FilterableAttributes: []string{
			"parent_id",
			"level",
			"has_public_products",
		},
		SortableAttributes: []string{
			"name",
			"rank",
			"level",
		},
		RankingRules:      defaultRankingRules,
		MaxValuesPerFacet: 100,
	}
}

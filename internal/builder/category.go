package builder

import (
	"strings"
	"time"

	"github.com/teilehaus/searchsync/internal/domain"
)

// BuildCategoryDocument flattens one category into its index document. Pure
// function: ancestorPath is the resolved chain from the root down to the
// category itself, parentName and childNames come from the surrounding tree,
// hasPublicProducts from the visibility resolver.
func BuildCategoryDocument(cat domain.CategoryNode, parentName string, childNames []string, ancestorPath domain.CategoryPath, hasPublicProducts bool, now time.Time) domain.CategoryDoc {
	doc := domain.CategoryDoc{
		ID:                cat.ID,
		Name:              cat.Name,
		Handle:            cat.Handle,
		Description:       cat.Description,
		AncestorPath:      strings.Join(ancestorPath.Names, domain.PathSeparator),
		Level:             len(ancestorPath.IDs) - 1,
		ParentName:        parentName,
		ChildNames:        childNames,
		Rank:              cat.Rank,
		HasPublicProducts: hasPublicProducts,
		SyncedAt:          now.UTC(),
	}
	if cat.ParentID != nil {
		doc.ParentID = *cat.ParentID
	}
	if doc.ChildNames == nil {
		doc.ChildNames = []string{}
	}
	if doc.Level < 0 {
		doc.Level = 0
	}

	doc.SearchableText = joinSearchable(
		cat.Name,
		cat.Description,
		cat.Handle,
		parentName,
		strings.Join(doc.ChildNames, " "),
	)

	return doc
}

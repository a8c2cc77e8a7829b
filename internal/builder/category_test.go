package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/teilehaus/searchsync/internal/domain"
)

func TestBuildCategoryDocument(t *testing.T) {
	parent := "cat_engine"
	cat := domain.CategoryNode{
		ID:          "cat_gaskets",
		Name:        "Dichtungen",
		Handle:      "dichtungen",
		Description: "Motordichtungen aller Art",
		ParentID:    &parent,
		Rank:        3,
	}
	path := domain.CategoryPath{
		IDs:   []string{"cat_root", "cat_engine", "cat_gaskets"},
		Names: []string{"Mercedes Benz", "Motor", "Dichtungen"},
	}

	doc := BuildCategoryDocument(cat, "Motor", []string{"Zylinderkopf", "Ventildeckel"}, path, true, buildTime)

	assert.Equal(t, "cat_gaskets", doc.ID)
	assert.Equal(t, "Mercedes Benz > Motor > Dichtungen", doc.AncestorPath)
	assert.Equal(t, 2, doc.Level)
	assert.Equal(t, "cat_engine", doc.ParentID)
	assert.Equal(t, "Motor", doc.ParentName)
	assert.Equal(t, []string{"Zylinderkopf", "Ventildeckel"}, doc.ChildNames)
	assert.Equal(t, 3, doc.Rank)
	assert.True(t, doc.HasPublicProducts)
	assert.Equal(t, buildTime, doc.SyncedAt)
	assert.Equal(t,
		"Dichtungen Motordichtungen aller Art dichtungen Motor Zylinderkopf Ventildeckel",
		doc.SearchableText,
	)
}

func TestBuildCategoryDocumentRoot(t *testing.T) {
	cat := domain.CategoryNode{ID: "cat_root", Name: "Mercedes Benz", Handle: "mercedes-benz"}
	path := domain.CategoryPath{IDs: []string{"cat_root"}, Names: []string{"Mercedes Benz"}}

	doc := BuildCategoryDocument(cat, "", nil, path, false, buildTime)

	assert.Equal(t, "Mercedes Benz", doc.AncestorPath)
	assert.Equal(t, 0, doc.Level)
	assert.Empty(t, doc.ParentID)
	assert.Empty(t, doc.ParentName)
	assert.Equal(t, []string{}, doc.ChildNames)
	assert.False(t, doc.HasPublicProducts)
}

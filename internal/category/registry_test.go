package category

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advisor/internal/domain"
)

func newRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "categories.json")
	r, err := LoadRegistry(path)
	require.NoError(t, err)
	return r, path
}

func TestAddGetList(t *testing.T) {
	r, _ := newRegistry(t)
	require.NoError(t, r.Add(domain.Category{ID: "marketing-growth", Name: "Marketing & Growth"}))
	require.NoError(t, r.Add(domain.Category{ID: "idea-validation", Name: "Idea Validation"}))

	got, err := r.Get("idea-validation")
	require.NoError(t, err)
	assert.Equal(t, "Idea Validation", got.Name)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "idea-validation", list[0].ID, "listing is sorted by ID")

	_, err = r.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddUpdatesExisting(t *testing.T) {
	r, _ := newRegistry(t)
	require.NoError(t, r.Add(domain.Category{ID: "other", Name: "Other"}))
	require.NoError(t, r.Add(domain.Category{ID: "other", Name: "Everything Else"}))

	assert.Len(t, r.List(), 1)
	got, err := r.Get("other")
	require.NoError(t, err)
	assert.Equal(t, "Everything Else", got.Name)
}

func TestAddRejectsEmptyID(t *testing.T) {
	r, _ := newRegistry(t)
	assert.Error(t, r.Add(domain.Category{Name: "No ID"}))
}

func TestAssignAndLookup(t *testing.T) {
	r, _ := newRegistry(t)
	require.NoError(t, r.Add(domain.Category{ID: "idea-validation"}))

	require.NoError(t, r.Assign("book.txt", "idea-validation"))
	assert.Equal(t, "idea-validation", r.CategoryFor("book.txt"))
	assert.Empty(t, r.CategoryFor("untagged.txt"))

	assert.ErrorIs(t, r.Assign("book.txt", "missing"), ErrNotFound)

	require.NoError(t, r.Unassign("book.txt"))
	assert.Empty(t, r.CategoryFor("book.txt"))
}

func TestRemoveUntagsResources(t *testing.T) {
	r, _ := newRegistry(t)
	require.NoError(t, r.Add(domain.Category{ID: "idea-validation"}))
	require.NoError(t, r.Assign("book.txt", "idea-validation"))

	require.NoError(t, r.Remove("idea-validation"))
	assert.Empty(t, r.List())
	assert.Empty(t, r.CategoryFor("book.txt"), "removing a category untags its resources")

	assert.ErrorIs(t, r.Remove("idea-validation"), ErrNotFound)
}

func TestRegistryPersistsAcrossLoads(t *testing.T) {
	r, path := newRegistry(t)
	require.NoError(t, r.Add(domain.Category{ID: "other", Name: "Other", Description: "catch-all"}))
	require.NoError(t, r.Assign("a.txt", "other"))

	reloaded, err := LoadRegistry(path)
	require.NoError(t, err)
	got, err := reloaded.Get("other")
	require.NoError(t, err)
	assert.Equal(t, "catch-all", got.Description)
	assert.Equal(t, "other", reloaded.CategoryFor("a.txt"))
}

package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advisor/internal/domain"
)

func seed(t *testing.T) *Storage {
	t.Helper()
	s := NewStorage()
	require.NoError(t, s.Init(context.Background(), 2))
	chunks := []domain.Chunk{
		{ID: "a", SourceFile: "book1.txt", Type: domain.ResourceBook, Category: "idea-validation", Text: "a"},
		{ID: "b", SourceFile: "book1.txt", Type: domain.ResourceBook, Category: "idea-validation", Text: "b"},
		{ID: "c", SourceFile: "article1.txt", Type: domain.ResourceArticle, Category: "marketing-growth", Text: "c"},
	}
	vectors := [][]float64{{1, 0}, {0.8, 0.6}, {0, 1}}
	require.NoError(t, s.Upsert(context.Background(), chunks, vectors))
	return s
}

func TestInitRejectsDimensionChange(t *testing.T) {
	s := NewStorage()
	require.NoError(t, s.Init(context.Background(), 4))
	assert.NoError(t, s.Init(context.Background(), 4), "re-init with same dimension is a no-op")
	assert.Error(t, s.Init(context.Background(), 8))
}

func TestUpsertIsIdempotentByID(t *testing.T) {
	s := seed(t)
	require.Equal(t, 3, s.Len())
	require.NoError(t, s.Upsert(context.Background(),
		[]domain.Chunk{{ID: "a", SourceFile: "book1.txt", Text: "a updated"}},
		[][]float64{{1, 0}}))
	assert.Equal(t, 3, s.Len(), "same ID must replace, not duplicate")
}

func TestUpsertValidates(t *testing.T) {
	s := NewStorage()
	require.NoError(t, s.Init(context.Background(), 2))
	assert.Error(t, s.Upsert(context.Background(), []domain.Chunk{{ID: "a"}}, nil))
	assert.Error(t, s.Upsert(context.Background(), []domain.Chunk{{ID: "a"}}, [][]float64{{1, 2, 3}}))
	assert.Error(t, s.Upsert(context.Background(), []domain.Chunk{{}}, [][]float64{{1, 0}}))
}

func TestSearchOrdersAndThresholds(t *testing.T) {
	s := seed(t)
	hits, err := s.Search(context.Background(), []float64{1, 0}, 10, 0.5, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2, "c scores 0 and must fall below the threshold")
	assert.Equal(t, "a", hits[0].Chunk.ID)
	assert.Equal(t, "b", hits[1].Chunk.ID)
	assert.Greater(t, hits[0].Score, hits[1].Score)
	assert.NotEmpty(t, hits[0].Vector, "hits must carry vectors for pairwise similarity")
}

func TestSearchHonorsLimit(t *testing.T) {
	s := seed(t)
	hits, err := s.Search(context.Background(), []float64{1, 0}, 1, 0, nil)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestSearchFiltersByCategoryAndType(t *testing.T) {
	s := seed(t)
	hits, err := s.Search(context.Background(), []float64{1, 1}, 10, -1, &domain.SearchFilter{Category: "marketing-growth"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c", hits[0].Chunk.ID)

	hits, err = s.Search(context.Background(), []float64{1, 1}, 10, -1, &domain.SearchFilter{Type: domain.ResourceBook})
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestDeleteBySource(t *testing.T) {
	s := seed(t)
	require.NoError(t, s.DeleteBySource(context.Background(), "book1.txt"))
	assert.Equal(t, 1, s.Len())

	sources, err := s.Sources(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"article1.txt"}, sources)
}

func TestSourcesSorted(t *testing.T) {
	s := seed(t)
	sources, err := s.Sources(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"article1.txt", "book1.txt"}, sources)
}

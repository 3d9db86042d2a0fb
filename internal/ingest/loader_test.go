package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advisor/internal/domain"
)

func TestParseBookFilename(t *testing.T) {
	tests := []struct {
		filename string
		title    string
		author   string
	}{
		{"The Lean Startup - Eric Ries.txt", "The Lean Startup", "Eric Ries"},
		{"Zero to One-by-Peter Thiel.txt", "Zero to One", "Peter Thiel"},
		{"zero-to-one-BY-peter thiel.md", "zero-to-one", "peter thiel"},
		{"Founders at Work.txt", "Founders at Work", "Unknown"},
		{"Hard Thing - About Hard Things - Ben Horowitz.txt", "Hard Thing - About Hard Things", "Ben Horowitz"},
	}
	for _, tt := range tests {
		title, author := ParseBookFilename(tt.filename)
		assert.Equal(t, tt.title, title, tt.filename)
		assert.Equal(t, tt.author, author, tt.filename)
	}
}

func TestParseArticleFilename(t *testing.T) {
	title, url, author := ParseArticleFilename("Do Things That Don't Scale [https://example.com/ds] - Paul Graham.txt")
	assert.Equal(t, "Do Things That Don't Scale", title)
	assert.Equal(t, "https://example.com/ds", url)
	assert.Equal(t, "Paul Graham", author)

	title, url, author = ParseArticleFilename("Growth Loops - Reforge.md")
	assert.Equal(t, "Growth Loops", title)
	assert.Empty(t, url)
	assert.Equal(t, "Reforge", author)

	title, url, author = ParseArticleFilename("Untitled Notes.txt")
	assert.Equal(t, "Untitled Notes", title)
	assert.Empty(t, url)
	assert.Equal(t, "Unknown", author)
}

func TestFingerprintIsStable(t *testing.T) {
	a := Fingerprint([]byte("same content"))
	b := Fingerprint([]byte("same content"))
	c := Fingerprint([]byte("different content"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestLoadDocumentPages(t *testing.T) {
	dir := t.TempDir()
	content := "Page one text here.\fPage two text here.\fPage three."
	path := filepath.Join(dir, "Multi Page - Author.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	doc, err := LoadDocument(path, domain.ResourceBook)
	require.NoError(t, err)
	assert.Equal(t, "Multi Page", doc.Title)
	assert.Equal(t, "Author", doc.Author)
	assert.Len(t, doc.PageBoundaries, 3)
	assert.NotContains(t, doc.Content, "\f", "page separators must not leak into chunk text")
	assert.Len(t, doc.Content, len(content), "replacing separators must preserve offsets")
}

func TestLoadDocumentSinglePage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "One Page - A.txt")
	require.NoError(t, os.WriteFile(path, []byte("just one page of text"), 0o644))

	doc, err := LoadDocument(path, domain.ResourceBook)
	require.NoError(t, err)
	assert.Equal(t, []int{len("just one page of text")}, doc.PageBoundaries)
}

func TestLoadDocumentMissingFile(t *testing.T) {
	_, err := LoadDocument(filepath.Join(t.TempDir(), "nope.txt"), domain.ResourceBook)
	assert.Error(t, err)
}

func TestChunkIDDeterministic(t *testing.T) {
	assert.Equal(t, ChunkID("file.txt", 3), ChunkID("file.txt", 3))
	assert.NotEqual(t, ChunkID("file.txt", 3), ChunkID("file.txt", 4))
	assert.NotEqual(t, ChunkID("file.txt", 3), ChunkID("other.txt", 3))
}

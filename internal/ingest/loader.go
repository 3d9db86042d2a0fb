// Package ingest loads reference documents from disk, fingerprints them and
// drives the chunk-embed-upsert pipeline. Re-running ingestion on an
// unchanged document never duplicates chunks or vectors.
package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"advisor/internal/domain"
)

var (
	byPatternRe  = regexp.MustCompile(`(?i)-by-`)
	urlBracketRe = regexp.MustCompile(`\[([^\]]+)\]`)
)

// ParseBookFilename extracts title and author from a book filename.
// Expected form: "<Title> - <Author>.<ext>"; the legacy "<Title>-by-<Author>"
// separator is also accepted. Missing author falls back to "Unknown".
func ParseBookFilename(filename string) (title, author string) {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	if byPatternRe.MatchString(base) {
		parts := byPatternRe.Split(base, 2)
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}
	if i := strings.LastIndex(base, " - "); i >= 0 {
		return strings.TrimSpace(base[:i]), strings.TrimSpace(base[i+len(" - "):])
	}
	return strings.TrimSpace(base), "Unknown"
}

// ParseArticleFilename extracts title, optional URL and author from an
// article filename. Expected form: "<Title> [<URL>] - <Author>.<ext>" with
// the bracketed URL optional.
func ParseArticleFilename(filename string) (title, url, author string) {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	if m := urlBracketRe.FindStringSubmatch(base); m != nil {
		url = strings.TrimSpace(m[1])
		base = strings.TrimSpace(urlBracketRe.ReplaceAllString(base, ""))
	}
	if i := strings.LastIndex(base, " - "); i >= 0 {
		return strings.TrimSpace(base[:i]), url, strings.TrimSpace(base[i+len(" - "):])
	}
	return strings.TrimSpace(base), url, "Unknown"
}

// LoadDocument reads a text file into a Document. Books honor form-feed
// page separators; a file without them is one page. The document ID is the
// SHA-256 fingerprint of the raw content.
func LoadDocument(path string, rtype domain.ResourceType) (domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, err
	}
	content := string(data)
	filename := filepath.Base(path)

	doc := domain.Document{
		ID:         Fingerprint(data),
		SourceFile: filename,
		Type:       rtype,
		Content:    content,
	}
	switch rtype {
	case domain.ResourceArticle:
		doc.Title, doc.URL, doc.Author = ParseArticleFilename(filename)
	default:
		doc.Title, doc.Author = ParseBookFilename(filename)
	}
	doc.PageBoundaries = pageBoundaries(content)
	// Page separators are metadata, not text; keep offsets aligned by
	// replacing them with spaces rather than removing them.
	doc.Content = strings.ReplaceAll(content, "\f", " ")
	return doc, nil
}

// Fingerprint returns the hex SHA-256 of the content; documents are
// versioned by it.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// pageBoundaries returns cumulative character end offsets for each
// form-feed-separated page. No form feeds means a single page.
func pageBoundaries(content string) []int {
	if !strings.Contains(content, "\f") {
		return []int{len(content)}
	}
	var bounds []int
	offset := 0
	for {
		i := strings.IndexByte(content[offset:], '\f')
		if i < 0 {
			bounds = append(bounds, len(content))
			return bounds
		}
		offset += i
		bounds = append(bounds, offset)
		offset++ // past the form feed
	}
}

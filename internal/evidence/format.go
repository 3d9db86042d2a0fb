// Package evidence renders retrieved items into the bounded text block
// handed to generation. The block size is bounded by top-k, never by
// truncating an item's text.
package evidence

import (
	"fmt"
	"sort"
	"strings"

	"advisor/internal/domain"
)

// EmptySentinel is returned byte-for-byte when there is no evidence. It
// instructs the generation step to refuse rather than answer.
const EmptySentinel = "NO EVIDENCE AVAILABLE - Must respond with 'No sufficient evidence found in the current resource library.'"

// RefusalMessage is the user-visible refusal emitted when retrieval comes
// back empty. Insufficient evidence always yields this explicit refusal,
// never a fabricated answer.
const RefusalMessage = "No sufficient evidence found in the current resource library.\n\n" +
	"Please add relevant books or articles to the resources folder and refresh the database."

// Format renders evidence items into a single block, numbered and ordered
// by descending similarity score. Item text is quoted exactly as retrieved.
func Format(items []domain.EvidenceItem) string {
	if len(items) == 0 {
		return EmptySentinel
	}
	sorted := make([]domain.EvidenceItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	var b strings.Builder
	for i, item := range sorted {
		n := i + 1
		fmt.Fprintf(&b, "[DOCUMENT %d] Source: %s\n", n, sourceLine(item.Chunk))
		if item.Disagrees {
			b.WriteString("[NOTE: this passage may conflict with another document in this evidence set]\n")
		}
		b.WriteString(item.Chunk.Text)
		fmt.Fprintf(&b, "\n[/DOCUMENT %d]\n\n", n)
	}
	return strings.TrimRight(b.String(), "\n")
}

func sourceLine(ch domain.Chunk) string {
	if ch.Type == domain.ResourceBook {
		return fmt.Sprintf("Book: %s, %s, Ch.%s, P.%d",
			orUnknown(ch.Title), orUnknown(ch.Author), orPlaceholder(ch.Chapter), ch.Page)
	}
	line := fmt.Sprintf("Article: %s, Section: %s", orUnknown(ch.Title), orPlaceholder(ch.Chapter))
	if ch.URL != "" {
		line += ", URL: " + ch.URL
	}
	return line
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func orPlaceholder(s string) string {
	if s == "" {
		return "?"
	}
	return s
}

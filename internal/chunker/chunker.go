// Package chunker splits raw document text into overlapping semantic units
// with page and chapter metadata. Chunk boundaries never cut a sentence in
// half: accumulation backs off to the last sentence boundary at or before
// the target word count.
package chunker

import (
	"regexp"
	"strings"

	"advisor/internal/domain"
)

// WordChunker accumulates sentences up to a target word count and repeats
// the trailing overlap of each chunk at the start of the next one. The
// duplication is intentional: retrieval must tolerate near-duplicate chunks.
type WordChunker struct {
	targetWords  int
	overlapWords int
	minChars     int
}

// NewWordChunker creates a chunker with the given target word count,
// overlap word budget and minimum chunk length in characters.
func NewWordChunker(targetWords, overlapWords, minChars int) *WordChunker {
	if targetWords <= 0 {
		targetWords = 500
	}
	if overlapWords < 0 {
		overlapWords = 0
	}
	if minChars < 0 {
		minChars = 0
	}
	return &WordChunker{targetWords: targetWords, overlapWords: overlapWords, minChars: minChars}
}

var (
	sentenceRe = regexp.MustCompile(`(?s)[^.!?]*[.!?]+`)

	chapterPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^Chapter\s+\d+.*$`),
		regexp.MustCompile(`(?m)^CHAPTER\s+\d+.*$`),
		regexp.MustCompile(`(?m)^Chapter\s+[A-Z][a-z]+.*$`),
		regexp.MustCompile(`(?m)^PART\s+[IVX]+.*$`),
		regexp.MustCompile(`(?m)^Part\s+\d+.*$`),
		regexp.MustCompile(`(?m)^\d+\.\s+[A-Z].*$`),
	}
)

const defaultChapter = "Introduction"

type sentence struct {
	text    string
	words   int
	page    int
	chapter string
}

// Ingest splits documentText into ordered chunks. pageBoundaries holds the
// cumulative character offset at which each page ends; nil means a single
// page. Malformed or empty input yields zero chunks, never an error.
func (c *WordChunker) Ingest(documentText string, pageBoundaries []int) []domain.Chunk {
	sentences := c.splitSentences(documentText, pageBoundaries)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []domain.Chunk
	var current []sentence
	currentWords := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		texts := make([]string, len(current))
		for i, s := range current {
			texts[i] = s.text
		}
		text := strings.Join(texts, " ")
		if len(strings.TrimSpace(text)) < c.minChars {
			return
		}
		chunks = append(chunks, domain.Chunk{
			Text:      text,
			Page:      current[0].page,
			Chapter:   current[0].chapter,
			Index:     len(chunks),
			WordCount: currentWords,
		})
	}

	for _, s := range sentences {
		if currentWords+s.words > c.targetWords && len(current) > 0 {
			flush()
			current, currentWords = c.trailingOverlap(current)
		}
		current = append(current, s)
		currentWords += s.words
	}
	flush()

	return chunks
}

// trailingOverlap returns the trailing sentences of the finished chunk whose
// combined word count fits the overlap budget, seeding the next chunk.
func (c *WordChunker) trailingOverlap(current []sentence) ([]sentence, int) {
	if c.overlapWords == 0 {
		return nil, 0
	}
	total := 0
	i := len(current)
	for i > 0 {
		if total+current[i-1].words > c.overlapWords {
			break
		}
		total += current[i-1].words
		i--
	}
	overlap := make([]sentence, len(current)-i)
	copy(overlap, current[i:])
	return overlap, total
}

// splitSentences segments text on sentence-terminal punctuation, attributing
// each sentence to the page on which it starts and to the chapter active on
// that page. Text without terminal punctuation becomes a single sentence.
func (c *WordChunker) splitSentences(text string, pageBoundaries []int) []sentence {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	chapters := pageChapters(text, pageBoundaries)

	spans := sentenceRe.FindAllStringIndex(text, -1)
	var out []sentence
	lastEnd := 0
	appendSpan := func(start, end int) {
		span := text[start:end]
		raw := strings.TrimSpace(span)
		if raw == "" {
			return
		}
		// The regex span includes whitespace trailing the previous sentence;
		// page attribution must use the offset of the first visible rune.
		start += len(span) - len(strings.TrimLeft(span, " \t\r\n"))
		page := pageOf(start, pageBoundaries)
		out = append(out, sentence{
			text:    raw,
			words:   len(strings.Fields(raw)),
			page:    page,
			chapter: chapterFor(page, chapters),
		})
	}
	for _, span := range spans {
		appendSpan(span[0], span[1])
		lastEnd = span[1]
	}
	// Trailing text with no terminal punctuation still counts as a sentence.
	if lastEnd < len(text) {
		appendSpan(lastEnd, len(text))
	}
	return out
}

// pageOf maps a character offset to a 1-based page number using cumulative
// end offsets.
func pageOf(offset int, pageBoundaries []int) int {
	for i, end := range pageBoundaries {
		if offset < end {
			return i + 1
		}
	}
	if n := len(pageBoundaries); n > 0 {
		return n
	}
	return 1
}

// pageChapters detects structural headers page by page; a detected header
// propagates onto subsequent pages until the next header.
func pageChapters(text string, pageBoundaries []int) []string {
	if len(pageBoundaries) == 0 {
		pageBoundaries = []int{len(text)}
	}
	chapters := make([]string, len(pageBoundaries))
	current := defaultChapter
	start := 0
	for i, end := range pageBoundaries {
		if end > len(text) {
			end = len(text)
		}
		if start < end {
			if h := detectChapter(text[start:end]); h != "" {
				current = h
			}
		}
		chapters[i] = current
		if end > start {
			start = end
		}
	}
	return chapters
}

// detectChapter returns the first structural header found in the page text,
// or "" when the page has none. The header line is capped at 100 characters.
func detectChapter(pageText string) string {
	for _, re := range chapterPatterns {
		if m := re.FindString(pageText); m != "" {
			h := strings.TrimSpace(m)
			if len(h) > 100 {
				h = h[:100]
			}
			return h
		}
	}
	return ""
}

func chapterFor(page int, chapters []string) string {
	if page-1 >= 0 && page-1 < len(chapters) {
		return chapters[page-1]
	}
	return defaultChapter
}

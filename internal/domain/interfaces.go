package domain

import "context"

// ResourceType distinguishes the two kinds of ingested sources.
type ResourceType string

const (
	ResourceBook    ResourceType = "book"
	ResourceArticle ResourceType = "article"
)

// Document represents a single source file loaded into the system.
// ID is the SHA-256 fingerprint of the file content; re-ingestion keys on it.
type Document struct {
	ID             string
	SourceFile     string
	Type           ResourceType
	Title          string
	Author         string
	URL            string
	Category       string
	Content        string
	PageBoundaries []int // cumulative character offset at which each page ends
}

// Chunk is an immutable span of source text; the atomic retrieval unit.
type Chunk struct {
	ID         string
	SourceFile string
	Type       ResourceType
	Title      string
	Author     string
	URL        string
	Category   string
	Text       string
	Page       int
	Chapter    string // chapter for books, section heading for articles
	Index      int
	WordCount  int
}

// EvidenceItem is a retrieved chunk plus its similarity score and the
// retrieval-side disagreement flag. Ephemeral, per request.
type EvidenceItem struct {
	Chunk       Chunk
	Score       float64
	RerankScore float64
	MatchCount  int
	Disagrees   bool
}

// Category tags resources; deleting one untags resources, never deletes them.
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Citation is a single evidence entry inside a question section.
type Citation struct {
	Quote      string
	Source     string
	Confidence string // High, Medium or Low
}

// QuestionSection is one "## QUESTION <n>" block of a structured response.
type QuestionSection struct {
	Number   int
	Title    string
	Answer   string
	Evidence []Citation
}

// StructuredResponse is the parsed form of a generated answer.
type StructuredResponse struct {
	Summary   string
	Questions []QuestionSection
	Provider  string
	Raw       string
}

// Embedder converts text into vector representations. Query and document
// embeddings are requested separately because some backends apply
// asymmetric input types.
type Embedder interface {
	Name() string
	Dimension() int
	EmbedQuery(ctx context.Context, text string) ([]float64, error)
	EmbedQueries(ctx context.Context, texts []string) ([][]float64, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error)
}

// SearchFilter narrows a vector search at the index-query level.
type SearchFilter struct {
	Category string
	Type     ResourceType
}

// SearchHit is a raw nearest-neighbor result. Vector is returned so callers
// can compute pairwise similarities without re-embedding.
type SearchHit struct {
	Chunk  Chunk
	Score  float64
	Vector []float64
}

// VectorStore persists chunk vectors plus metadata and supports filtered
// nearest-neighbor search. Ingestion is the sole writer path.
type VectorStore interface {
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, chunks []Chunk, vectors [][]float64) error
	Search(ctx context.Context, vector []float64, limit int, threshold float64, filter *SearchFilter) ([]SearchHit, error)
	DeleteBySource(ctx context.Context, sourceFile string) error
	Sources(ctx context.Context) ([]string, error)
}

// RerankResult maps a reranked document back to its input position.
type RerankResult struct {
	Index int
	Score float64
}

// Reranker reorders a candidate set by finer-grained relevance than the
// initial vector similarity.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]RerankResult, error)
}

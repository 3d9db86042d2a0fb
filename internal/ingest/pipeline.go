package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"advisor/internal/domain"
	"advisor/internal/logger"
)

// Chunker splits document text into chunks; satisfied by chunker.WordChunker.
type Chunker interface {
	Ingest(documentText string, pageBoundaries []int) []domain.Chunk
}

// CategoryTagger resolves the category tag for a source file. May be nil.
type CategoryTagger interface {
	CategoryFor(sourceFile string) string
}

// Report summarizes one refresh run. Ingestion is partial-failure tolerant:
// a malformed source lands in Errors and the batch continues.
type Report struct {
	BooksProcessed    int
	BookChunks        int
	ArticlesProcessed int
	ArticleChunks     int
	Skipped           int
	Pruned            int
	Errors            []string
}

// Pipeline runs chunk, embed and upsert for resource files. Concurrent runs
// for the same document are serialized via a lock keyed on the content
// fingerprint.
type Pipeline struct {
	chunker  Chunker
	embedder domain.Embedder
	store    domain.VectorStore
	state    *StateFile
	tagger   CategoryTagger

	locks keyedMutex

	initMu      sync.Mutex
	initialized bool
}

// NewPipeline wires an ingestion pipeline. tagger may be nil.
func NewPipeline(ch Chunker, embedder domain.Embedder, store domain.VectorStore, state *StateFile, tagger CategoryTagger) *Pipeline {
	return &Pipeline{chunker: ch, embedder: embedder, store: store, state: state, tagger: tagger}
}

// IngestFile ingests one file. Returns the number of chunks written and
// whether the file was skipped as unchanged.
func (p *Pipeline) IngestFile(ctx context.Context, path string, rtype domain.ResourceType, force bool) (int, bool, error) {
	doc, err := LoadDocument(path, rtype)
	if err != nil {
		return 0, false, fmt.Errorf("load %s: %w", path, err)
	}

	unlock := p.locks.lock(doc.ID)
	defer unlock()

	key := stateKey(rtype, doc.SourceFile)
	if fp, ok := p.state.Get(key); ok && fp == doc.ID && !force {
		logger.Debug("skipping unchanged %s", doc.SourceFile)
		return 0, true, nil
	}

	if p.tagger != nil {
		doc.Category = p.tagger.CategoryFor(doc.SourceFile)
	}
	chunks := p.chunker.Ingest(doc.Content, doc.PageBoundaries)
	for i := range chunks {
		stampChunk(&chunks[i], doc)
	}
	logger.Info("ingesting %s: %d chunks", doc.SourceFile, len(chunks))

	if len(chunks) == 0 {
		// Nothing usable, but remember the fingerprint so the file is not
		// re-parsed every refresh.
		if err := p.state.Set(key, doc.ID); err != nil {
			return 0, false, err
		}
		return 0, false, nil
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return 0, false, fmt.Errorf("embed %s: %w", doc.SourceFile, err)
	}
	if err := p.ensureInit(ctx, len(vectors[0])); err != nil {
		return 0, false, err
	}

	// Replacing by source keeps re-ingestion idempotent even when chunk
	// boundaries shifted because the text changed.
	if err := p.store.DeleteBySource(ctx, doc.SourceFile); err != nil {
		return 0, false, fmt.Errorf("delete old vectors for %s: %w", doc.SourceFile, err)
	}
	if err := p.store.Upsert(ctx, chunks, vectors); err != nil {
		return 0, false, fmt.Errorf("upsert %s: %w", doc.SourceFile, err)
	}
	if err := p.state.Set(key, doc.ID); err != nil {
		return 0, false, err
	}
	return len(chunks), false, nil
}

// Refresh scans the books and articles directories, ingests new or changed
// files, prunes vectors for files removed from disk, and reports results.
func (p *Pipeline) Refresh(ctx context.Context, booksDir, articlesDir string, force bool) Report {
	var report Report
	active := make(map[string]struct{})

	ingestDir := func(dir string, rtype domain.ResourceType) {
		files, err := listResourceFiles(dir)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", dir, err))
			return
		}
		for _, path := range files {
			active[filepath.Base(path)] = struct{}{}
			n, skipped, err := p.IngestFile(ctx, path, rtype, force)
			if err != nil {
				report.Errors = append(report.Errors, err.Error())
				continue
			}
			if skipped {
				report.Skipped++
				continue
			}
			if rtype == domain.ResourceBook {
				report.BooksProcessed++
				report.BookChunks += n
			} else {
				report.ArticlesProcessed++
				report.ArticleChunks += n
			}
		}
	}
	ingestDir(booksDir, domain.ResourceBook)
	ingestDir(articlesDir, domain.ResourceArticle)

	pruned, err := p.prune(ctx, active)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("prune: %v", err))
	}
	report.Pruned = pruned
	return report
}

// prune deletes vectors and state entries for files no longer on disk.
func (p *Pipeline) prune(ctx context.Context, active map[string]struct{}) (int, error) {
	for _, key := range p.state.Keys() {
		_, filename, ok := strings.Cut(key, ":")
		if !ok {
			continue
		}
		if _, exists := active[filename]; !exists {
			logger.Debug("removing stale state entry %s", key)
			if err := p.state.Delete(key); err != nil {
				return 0, err
			}
		}
	}
	stored, err := p.store.Sources(ctx)
	if err != nil {
		return 0, err
	}
	pruned := 0
	for _, sf := range stored {
		if _, exists := active[sf]; exists {
			continue
		}
		logger.Info("pruning vectors for deleted file %s", sf)
		if err := p.store.DeleteBySource(ctx, sf); err != nil {
			return pruned, err
		}
		pruned++
	}
	return pruned, nil
}

func (p *Pipeline) ensureInit(ctx context.Context, dimension int) error {
	p.initMu.Lock()
	defer p.initMu.Unlock()
	if p.initialized {
		return nil
	}
	if err := p.store.Init(ctx, dimension); err != nil {
		return err
	}
	p.initialized = true
	return nil
}

// stampChunk copies document metadata onto a chunk and assigns its
// deterministic ID, derived from source file and sequence index so an
// unchanged document rewrites identical points.
func stampChunk(ch *domain.Chunk, doc domain.Document) {
	ch.SourceFile = doc.SourceFile
	ch.Type = doc.Type
	ch.Title = doc.Title
	ch.Author = doc.Author
	ch.URL = doc.URL
	ch.Category = doc.Category
	ch.ID = ChunkID(doc.SourceFile, ch.Index)
}

// ChunkID derives a stable UUID for a chunk from its source file and index.
func ChunkID(sourceFile string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s:%d", sourceFile, index))).String()
}

func stateKey(rtype domain.ResourceType, filename string) string {
	return string(rtype) + ":" + filename
}

func listResourceFiles(dir string) ([]string, error) {
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".txt", ".md":
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// keyedMutex serializes work per key without holding a global lock during
// the work itself.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()
	m.Lock()
	return m.Unlock
}

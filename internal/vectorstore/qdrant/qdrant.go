// Package qdrant is a minimal REST client to Qdrant. It assumes cosine
// distance, creates the collection if missing and indexes the payload
// fields used for filtering.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"advisor/internal/domain"
)

// Config contains connection details for a Qdrant vector store.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
	MaxRetries int
}

// Storage talks to one Qdrant collection.
type Storage struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
	maxRetries int
}

// NewStorage creates a Qdrant-backed vector store.
func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Storage{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
	}
}

// Init creates the collection if missing and ensures payload indexes for the
// fields used in filtered search and per-source deletion.
func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.dimension = dimension
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	// Qdrant returns 200 if the collection already exists with the same schema.
	if err := s.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", s.collection), body, nil); err != nil {
		return err
	}
	for _, field := range []string{"source_file", "resource_type", "category"} {
		idx := map[string]any{"field_name": field, "field_schema": "keyword"}
		if err := s.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/index", s.collection), idx, nil); err != nil {
			return fmt.Errorf("create payload index %s: %w", field, err)
		}
	}
	return nil
}

// Upsert writes chunks with their vectors. Point IDs come from the chunks,
// so re-upserting an unchanged document overwrites rather than duplicates.
func (s *Storage) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	const batchSize = 100
	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		points := make([]map[string]any, 0, end-start)
		for i := start; i < end; i++ {
			points = append(points, map[string]any{
				"id":      chunks[i].ID,
				"vector":  vectors[i],
				"payload": payloadFor(chunks[i]),
			})
		}
		body := map[string]any{"points": points}
		path := fmt.Sprintf("/collections/%s/points?wait=true", s.collection)
		if err := s.do(ctx, http.MethodPut, path, body, nil); err != nil {
			return err
		}
	}
	return nil
}

// Search performs a filtered nearest-neighbor query. The similarity
// threshold and the category filter are applied by the index itself, never
// as a post-filter.
func (s *Storage) Search(ctx context.Context, vector []float64, limit int, threshold float64, filter *domain.SearchFilter) ([]domain.SearchHit, error) {
	if limit <= 0 {
		limit = 5
	}
	req := map[string]any{
		"vector":          vector,
		"limit":           limit,
		"with_payload":    true,
		"with_vector":     true,
		"score_threshold": threshold,
	}
	if f := buildFilter(filter); f != nil {
		req["filter"] = f
	}
	var resp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Vector  []float64      `json:"vector"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", s.collection)
	if err := s.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}
	hits := make([]domain.SearchHit, 0, len(resp.Result))
	for _, r := range resp.Result {
		ch := chunkFrom(r.Payload)
		if id, ok := r.ID.(string); ok && id != "" {
			ch.ID = id
		}
		hits = append(hits, domain.SearchHit{
			Chunk:  ch,
			Score:  r.Score,
			Vector: r.Vector,
		})
	}
	return hits, nil
}

// DeleteBySource removes every point belonging to the given source file.
func (s *Storage) DeleteBySource(ctx context.Context, sourceFile string) error {
	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "source_file", "match": map[string]any{"value": sourceFile}},
			},
		},
	}
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", s.collection)
	return s.do(ctx, http.MethodPost, path, body, nil)
}

// Sources scrolls the collection and returns the distinct source files.
func (s *Storage) Sources(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	var offset any
	for {
		req := map[string]any{
			"limit":        100,
			"with_payload": true,
			"with_vector":  false,
		}
		if offset != nil {
			req["offset"] = offset
		}
		var resp struct {
			Result struct {
				Points []struct {
					Payload map[string]any `json:"payload"`
				} `json:"points"`
				NextPageOffset any `json:"next_page_offset"`
			} `json:"result"`
		}
		path := fmt.Sprintf("/collections/%s/points/scroll", s.collection)
		if err := s.do(ctx, http.MethodPost, path, req, &resp); err != nil {
			return nil, err
		}
		if len(resp.Result.Points) == 0 {
			break
		}
		for _, p := range resp.Result.Points {
			if sf, ok := p.Payload["source_file"].(string); ok && sf != "" {
				if _, dup := seen[sf]; !dup {
					seen[sf] = struct{}{}
					out = append(out, sf)
				}
			}
		}
		offset = resp.Result.NextPageOffset
		if offset == nil {
			break
		}
	}
	return out, nil
}

func buildFilter(filter *domain.SearchFilter) map[string]any {
	if filter == nil {
		return nil
	}
	var must []map[string]any
	if filter.Category != "" {
		must = append(must, map[string]any{"key": "category", "match": map[string]any{"value": filter.Category}})
	}
	if filter.Type != "" {
		must = append(must, map[string]any{"key": "resource_type", "match": map[string]any{"value": string(filter.Type)}})
	}
	if len(must) == 0 {
		return nil
	}
	return map[string]any{"must": must}
}

func payloadFor(ch domain.Chunk) map[string]any {
	return map[string]any{
		"source_file":   ch.SourceFile,
		"resource_type": string(ch.Type),
		"title":         ch.Title,
		"author":        ch.Author,
		"url":           ch.URL,
		"category":      ch.Category,
		"exact_text":    ch.Text,
		"page_number":   ch.Page,
		"chapter":       ch.Chapter,
		"index":         ch.Index,
		"word_count":    ch.WordCount,
	}
}

func chunkFrom(payload map[string]any) domain.Chunk {
	ch := domain.Chunk{}
	if v, ok := payload["source_file"].(string); ok {
		ch.SourceFile = v
	}
	if v, ok := payload["resource_type"].(string); ok {
		ch.Type = domain.ResourceType(v)
	}
	if v, ok := payload["title"].(string); ok {
		ch.Title = v
	}
	if v, ok := payload["author"].(string); ok {
		ch.Author = v
	}
	if v, ok := payload["url"].(string); ok {
		ch.URL = v
	}
	if v, ok := payload["category"].(string); ok {
		ch.Category = v
	}
	if v, ok := payload["exact_text"].(string); ok {
		ch.Text = v
	}
	if v, ok := payload["page_number"].(float64); ok {
		ch.Page = int(v)
	}
	if v, ok := payload["chapter"].(string); ok {
		ch.Chapter = v
	}
	if v, ok := payload["index"].(float64); ok {
		ch.Index = int(v)
	}
	if v, ok := payload["word_count"].(float64); ok {
		ch.WordCount = int(v)
	}
	return ch
}

// do issues one JSON request with bounded retries on 429 and 5xx responses.
func (s *Storage) do(ctx context.Context, method, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	url := s.url + path
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if s.apiKey != "" {
			req.Header.Set("api-key", s.apiKey)
		}
		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = err
			if attempt < s.maxRetries {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(retryDelay(attempt)):
				}
				continue
			}
			return err
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
			if attempt < s.maxRetries {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(retryDelay(attempt)):
				}
				continue
			}
			return lastErr
		}
		if resp.StatusCode >= 300 {
			payload, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("qdrant %s %s failed: %s: %s", method, url, resp.Status, bytes.TrimSpace(payload))
		}
		if out != nil {
			err = json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			return err
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil
	}
	return lastErr
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

// Package service orchestrates one question-answering request: retrieve
// evidence, render it, generate a structured answer, and parse it back.
package service

import (
	"context"
	"fmt"

	"advisor/internal/category"
	"advisor/internal/domain"
	"advisor/internal/evidence"
	"advisor/internal/grammar"
	"advisor/internal/ingest"
	"advisor/internal/logger"
	"advisor/internal/retriever"
	"advisor/internal/synthesis"
)

// Request is one user question.
type Request struct {
	Query      string
	CategoryID string // "" searches the whole library
	ModelHint  string // preferred provider name, "" for configured order
}

// Response is the answer plus the evidence that backed it.
type Response struct {
	Structured domain.StructuredResponse
	Evidence   []domain.EvidenceItem
	Refused    bool
}

// Retriever is the evidence-search dependency; satisfied by
// retriever.Retriever.
type Retriever interface {
	Search(ctx context.Context, q retriever.Query) ([]domain.EvidenceItem, error)
}

// Generator is the answer-generation dependency; satisfied by
// synthesis.Gateway.
type Generator interface {
	Generate(ctx context.Context, query, evidenceBlock, categoryID, modelHint string) (synthesis.Result, error)
}

// AdvisorService wires the retrieval pipeline to the synthesis gateway.
type AdvisorService struct {
	retriever  Retriever
	gateway    Generator
	pipeline   *ingest.Pipeline
	categories *category.Registry
}

// New assembles the service. pipeline and categories may be nil when the
// caller only answers questions over an already-populated store.
func New(r Retriever, g Generator, p *ingest.Pipeline, c *category.Registry) *AdvisorService {
	return &AdvisorService{retriever: r, gateway: g, pipeline: p, categories: c}
}

// Ask answers a question with evidence from the resource library. Empty
// retrieval is a terminal refusal: no generation call is made and the
// refusal message is returned verbatim.
func (s *AdvisorService) Ask(ctx context.Context, req Request) (Response, error) {
	items, err := s.retriever.Search(ctx, retriever.Query{
		Text:     req.Query,
		Category: req.CategoryID,
	})
	if err != nil {
		return Response{}, fmt.Errorf("retrieve: %w", err)
	}
	if len(items) == 0 {
		logger.Info("no evidence above threshold, refusing")
		return Response{
			Structured: domain.StructuredResponse{Raw: evidence.RefusalMessage},
			Refused:    true,
		}, nil
	}

	block := evidence.Format(items)
	result, err := s.gateway.Generate(ctx, req.Query, block, req.CategoryID, req.ModelHint)
	if err != nil {
		return Response{}, err
	}

	for _, v := range grammar.Validate(result.Text) {
		logger.Warn("output grammar: %s", v.Message)
	}
	structured := grammar.Parse(result.Text)
	structured.Provider = result.Provider
	return Response{Structured: structured, Evidence: items}, nil
}

// Refresh re-scans the resource directories. Requires a configured pipeline.
func (s *AdvisorService) Refresh(ctx context.Context, booksDir, articlesDir string, force bool) (ingest.Report, error) {
	if s.pipeline == nil {
		return ingest.Report{}, fmt.Errorf("ingestion pipeline not configured")
	}
	return s.pipeline.Refresh(ctx, booksDir, articlesDir, force), nil
}

// Categories lists the registered categories; empty when no registry is set.
func (s *AdvisorService) Categories() []domain.Category {
	if s.categories == nil {
		return nil
	}
	return s.categories.List()
}

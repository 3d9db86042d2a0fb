package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advisor/internal/domain"
	"advisor/internal/retriever"
	"advisor/internal/synthesis"
)

type fakeRetriever struct {
	items   []domain.EvidenceItem
	err     error
	queries []retriever.Query
}

func (f *fakeRetriever) Search(_ context.Context, q retriever.Query) ([]domain.EvidenceItem, error) {
	f.queries = append(f.queries, q)
	return f.items, f.err
}

type fakeGenerator struct {
	text     string
	provider string
	err      error
	calls    int
	lastArgs [4]string
}

func (f *fakeGenerator) Generate(_ context.Context, query, evidenceBlock, categoryID, modelHint string) (synthesis.Result, error) {
	f.calls++
	f.lastArgs = [4]string{query, evidenceBlock, categoryID, modelHint}
	if f.err != nil {
		return synthesis.Result{}, f.err
	}
	return synthesis.Result{Text: f.text, Provider: f.provider}, nil
}

func evidenceItems() []domain.EvidenceItem {
	return []domain.EvidenceItem{
		{Chunk: domain.Chunk{ID: "c1", Type: domain.ResourceBook, Title: "T", Author: "A", Chapter: "Ch", Page: 1, Text: "some passage"}, Score: 0.9},
	}
}

const structuredAnswer = `## SUMMARY
Do the simple thing first.

## QUESTION 1: What now?
**Answer**: Ship it.

Evidence:
- "some passage"
  — Book: T, A, Ch.Ch, P.1
  Confidence: High
`

func TestAskRefusesWithoutEvidence(t *testing.T) {
	gen := &fakeGenerator{}
	svc := New(&fakeRetriever{}, gen, nil, nil)

	resp, err := svc.Ask(context.Background(), Request{Query: "anything?"})
	require.NoError(t, err)
	assert.True(t, resp.Refused)
	assert.Contains(t, resp.Structured.Raw, "No sufficient evidence found in the current resource library.")
	assert.Zero(t, gen.calls, "refusal must not invoke generation")
}

func TestAskGeneratesFromEvidence(t *testing.T) {
	gen := &fakeGenerator{text: structuredAnswer, provider: "openai"}
	ret := &fakeRetriever{items: evidenceItems()}
	svc := New(ret, gen, nil, nil)

	resp, err := svc.Ask(context.Background(), Request{Query: "what now?", CategoryID: "other", ModelHint: "claude"})
	require.NoError(t, err)
	assert.False(t, resp.Refused)
	assert.Equal(t, "openai", resp.Structured.Provider)
	assert.Equal(t, "Do the simple thing first.", resp.Structured.Summary)
	require.Len(t, resp.Structured.Questions, 1)
	assert.Equal(t, "Ship it.", resp.Structured.Questions[0].Answer)
	assert.Len(t, resp.Evidence, 1)

	assert.Equal(t, "what now?", gen.lastArgs[0])
	assert.Contains(t, gen.lastArgs[1], "[DOCUMENT 1] Source: Book: T, A, Ch.Ch, P.1")
	assert.Equal(t, "other", gen.lastArgs[2])
	assert.Equal(t, "claude", gen.lastArgs[3])

	require.Len(t, ret.queries, 1)
	assert.Equal(t, "other", ret.queries[0].Category)
}

func TestAskPropagatesGenerationFailure(t *testing.T) {
	gen := &fakeGenerator{err: synthesis.ErrAllProvidersFailed}
	svc := New(&fakeRetriever{items: evidenceItems()}, gen, nil, nil)

	_, err := svc.Ask(context.Background(), Request{Query: "q"})
	assert.ErrorIs(t, err, synthesis.ErrAllProvidersFailed)
}

func TestAskPropagatesRetrievalFailure(t *testing.T) {
	svc := New(&fakeRetriever{err: assert.AnError}, &fakeGenerator{}, nil, nil)
	_, err := svc.Ask(context.Background(), Request{Query: "q"})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestRefreshWithoutPipeline(t *testing.T) {
	svc := New(&fakeRetriever{}, &fakeGenerator{}, nil, nil)
	_, err := svc.Refresh(context.Background(), "b", "a", false)
	assert.Error(t, err)
}

func TestCategoriesWithoutRegistry(t *testing.T) {
	svc := New(&fakeRetriever{}, &fakeGenerator{}, nil, nil)
	assert.Nil(t, svc.Categories())
}

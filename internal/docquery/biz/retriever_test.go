package biz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docquery/internal/docquery/store"
	errno "github.com/kart-io/docquery/pkg/errors"
)

func newTestRetriever(t *testing.T, minScore float64) (*Retriever, *store.DocumentStore, *store.MemoryStore) {
	t.Helper()
	docs, _ := newTestDocStore(t)
	vectors := store.NewMemoryStore()
	r := NewRetriever(vectors, docs, &stubEmbedder{}, &RetrieverConfig{
		TopK:     5,
		MinScore: minScore,
		ModelTag: stubModelTag,
	})
	return r, docs, vectors
}

func TestRetrieverEmptyScopeNoDocuments(t *testing.T) {
	r, _, _ := newTestRetriever(t, 0)

	_, err := r.Retrieve(context.Background(), "p1", "revenue", nil, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errno.ErrEmptyScope))
}

func TestRetrieverEmptyScopeExpandsToProject(t *testing.T) {
	r, docs, vectors := newTestRetriever(t, 0)
	seedIndexedDoc(t, docs, vectors, "p1", "doc-a", "report-a.txt",
		[]string{"total revenue was 10M", "staff count grew"})
	seedIndexedDoc(t, docs, vectors, "p1", "doc-b", "report-b.txt",
		[]string{"revenue breakdown by region"})

	res, err := r.Retrieve(context.Background(), "p1", "what was the revenue", nil, 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"doc-a", "doc-b"}, res.Scope)
	require.NotEmpty(t, res.Results)
	// 相关片段排在最前
	assert.Contains(t, res.Results[0].Content, "revenue")
}

func TestRetrieverExplicitScopeIsAuthoritative(t *testing.T) {
	r, docs, vectors := newTestRetriever(t, 0)
	seedIndexedDoc(t, docs, vectors, "p1", "doc-a", "a.txt", []string{"revenue 10M"})
	seedIndexedDoc(t, docs, vectors, "p1", "doc-b", "b.txt", []string{"revenue 20M"})

	res, err := r.Retrieve(context.Background(), "p1", "revenue", []string{"doc-b"}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-b"}, res.Scope)
	for _, sr := range res.Results {
		assert.Equal(t, "doc-b", sr.DocumentID)
	}
}

func TestRetrieverMinScoreFilter(t *testing.T) {
	r, docs, vectors := newTestRetriever(t, 0.9)
	seedIndexedDoc(t, docs, vectors, "p1", "doc-a", "a.txt",
		[]string{"annual revenue summary", "employee onboarding guide"})

	res, err := r.Retrieve(context.Background(), "p1", "revenue", nil, 0)
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Contains(t, res.Results[0].Content, "revenue")
}

func TestRetrieverTopKLimit(t *testing.T) {
	r, docs, vectors := newTestRetriever(t, 0)
	seedIndexedDoc(t, docs, vectors, "p1", "doc-a", "a.txt",
		[]string{"revenue q1", "revenue q2", "revenue q3", "revenue q4"})

	res, err := r.Retrieve(context.Background(), "p1", "revenue", nil, 2)
	require.NoError(t, err)
	assert.Len(t, res.Results, 2)
}

func TestRetrieverDeterministicOrdering(t *testing.T) {
	r, docs, vectors := newTestRetriever(t, 0)
	// 所有片段与查询同向, 得分相同, 排序必须回落到 (document_id, ordinal)
	seedIndexedDoc(t, docs, vectors, "p1", "doc-b", "b.txt", []string{"revenue", "revenue"})
	seedIndexedDoc(t, docs, vectors, "p1", "doc-a", "a.txt", []string{"revenue"})

	for i := 0; i < 5; i++ {
		res, err := r.Retrieve(context.Background(), "p1", "revenue", nil, 0)
		require.NoError(t, err)
		require.Len(t, res.Results, 3)
		assert.Equal(t, "doc-a", res.Results[0].DocumentID)
		assert.Equal(t, "doc-b", res.Results[1].DocumentID)
		assert.Equal(t, 0, res.Results[1].Ordinal)
		assert.Equal(t, 1, res.Results[2].Ordinal)
	}
}

func TestRetrieverModelMismatch(t *testing.T) {
	r, docs, vectors := newTestRetriever(t, 0)
	seedIndexedDoc(t, docs, vectors, "p1", "doc-a", "a.txt", []string{"revenue"})

	// 索引中的向量带着别的模型标记
	stale := []store.IndexedChunk{{
		DocumentID: "doc-a",
		ProjectID:  "p1",
		Ordinal:    0,
		Content:    "revenue",
		Embedding:  stubVector("revenue"),
		Model:      "other/embed-v0",
	}}
	require.NoError(t, vectors.UpsertDocument(context.Background(), "p1", "doc-a", stale))

	_, err := r.Retrieve(context.Background(), "p1", "revenue", nil, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errno.ErrEmbeddingModelMismatch))
}

func TestRetrieverEmbeddingFailure(t *testing.T) {
	docs, _ := newTestDocStore(t)
	vectors := store.NewMemoryStore()
	embedder := &stubEmbedder{failErr: errors.New("connection refused")}
	r := NewRetriever(vectors, docs, embedder, &RetrieverConfig{TopK: 5, ModelTag: stubModelTag})
	seedIndexedDoc(t, docs, vectors, "p1", "doc-a", "a.txt", []string{"revenue"})

	_, err := r.Retrieve(context.Background(), "p1", "revenue", nil, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errno.ErrEmbeddingService))
}

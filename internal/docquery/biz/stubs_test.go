package biz

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kart-io/docquery/internal/docquery/store"
	"github.com/kart-io/docquery/internal/model"
	"github.com/kart-io/docquery/pkg/infra/pool"
	"github.com/kart-io/docquery/pkg/llm"
)

const stubModelTag = "stub/embed-v1"

// stubEmbedder 是确定性的嵌入桩: 按关键词产生可控方向的向量,
// 便于在内存向量库里预置可命中的内容.
type stubEmbedder struct {
	calls   atomic.Int64
	failErr error
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	s.calls.Add(1)
	if s.failErr != nil {
		return nil, s.failErr
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = stubVector(text)
	}
	return out, nil
}

func (s *stubEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (s *stubEmbedder) Name() string  { return "stub" }
func (s *stubEmbedder) Model() string { return "embed-v1" }

// stubVector 按主题词给文本定向: 同主题文本互相靠近, 异主题正交.
func stubVector(text string) []float32 {
	lower := strings.ToLower(text)
	vec := []float32{0.05, 0.05, 0.05}
	switch {
	case strings.Contains(lower, "revenue") || strings.Contains(lower, "income"):
		vec[0] = 1
	case strings.Contains(lower, "employee") || strings.Contains(lower, "staff"):
		vec[1] = 1
	default:
		vec[2] = 1
	}
	return vec
}

// stubChat 生成桩, 支持错误注入与调用计数.
// failOn 非空时仅对包含该子串的提示返回错误.
type stubChat struct {
	calls   atomic.Int64
	reply   string
	failErr error
	failOn  string
}

func (s *stubChat) Chat(_ context.Context, messages []llm.Message) (string, error) {
	if len(messages) == 0 {
		return "", nil
	}
	return s.Generate(context.Background(), messages[len(messages)-1].Content, "")
}

func (s *stubChat) Generate(_ context.Context, prompt, _ string) (string, error) {
	s.calls.Add(1)
	if s.failErr != nil && (s.failOn == "" || strings.Contains(prompt, s.failOn)) {
		return "", s.failErr
	}
	if s.reply != "" {
		return s.reply, nil
	}
	return "stub answer", nil
}

func (s *stubChat) Name() string { return "stub-chat" }

func newTestDocStore(t *testing.T) (*store.DocumentStore, *gorm.DB) {
	t.Helper()
	db, err := store.NewTestDB()
	require.NoError(t, err)
	return store.NewDocumentStore(db), db
}

func newTestPool(t *testing.T, capacity int) *pool.Pool {
	t.Helper()
	p, err := pool.NewPool("test", pool.DefaultPool, &pool.Config{Capacity: capacity})
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

// seedIndexedDoc 在关系库和向量库中各放一份已索引文档.
func seedIndexedDoc(t *testing.T, docs *store.DocumentStore, vectors store.VectorStore, projectID, docID, name string, contents []string) {
	t.Helper()
	ctx := context.Background()

	doc := &model.Document{
		ID:             docID,
		ProjectID:      projectID,
		Name:           name,
		MediaType:      "text/plain",
		Hash:           "hash-" + docID,
		ChunkNum:       len(contents),
		EmbeddingModel: stubModelTag,
		Status:         model.DocStatusIndexed,
	}
	require.NoError(t, docs.Save(ctx, doc))

	chunks := make([]model.Chunk, len(contents))
	indexed := make([]store.IndexedChunk, len(contents))
	for i, content := range contents {
		chunks[i] = model.Chunk{
			DocumentID: docID,
			ProjectID:  projectID,
			Ordinal:    i,
			Content:    content,
		}
		indexed[i] = store.IndexedChunk{
			DocumentID: docID,
			ProjectID:  projectID,
			Ordinal:    i,
			Content:    content,
			Embedding:  stubVector(content),
			Model:      stubModelTag,
		}
	}
	require.NoError(t, docs.ReplaceChunks(ctx, projectID, docID, chunks))
	require.NoError(t, vectors.UpsertDocument(ctx, projectID, docID, indexed))
}

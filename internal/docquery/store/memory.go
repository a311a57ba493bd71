package store

import (
	"context"
	"sort"
	"sync"

	"github.com/kart-io/docquery/internal/pkg/textutil"
)

// docKey 唯一标识项目内的一个文档.
type docKey struct {
	projectID  string
	documentID string
}

// MemoryStore 进程内向量索引, 用于开发与测试.
// 以文档为单位分桶, 整桶替换天然满足 upsert 的原子性.
type MemoryStore struct {
	mu      sync.RWMutex
	buckets map[docKey][]IndexedChunk
}

var _ VectorStore = (*MemoryStore)(nil)

// NewMemoryStore 创建内存向量索引.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		buckets: make(map[docKey][]IndexedChunk),
	}
}

// EnsureCollection 内存实现无需建表.
func (s *MemoryStore) EnsureCollection(_ context.Context) error {
	return nil
}

// UpsertDocument 以文档为单位替换全部片段向量.
func (s *MemoryStore) UpsertDocument(_ context.Context, projectID, documentID string, chunks []IndexedChunk) error {
	copied := make([]IndexedChunk, len(chunks))
	copy(copied, chunks)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets[docKey{projectID, documentID}] = copied
	return nil
}

// Search 暴力扫描范围内的全部向量, 按余弦相似度排序.
func (s *MemoryStore) Search(ctx context.Context, vector []float32, scope Scope, topK int) ([]SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	inScope := func(key docKey) bool {
		if key.projectID != scope.ProjectID {
			return false
		}
		if len(scope.DocumentIDs) == 0 {
			return true
		}
		for _, id := range scope.DocumentIDs {
			if key.documentID == id {
				return true
			}
		}
		return false
	}

	var results []SearchResult
	for key, chunks := range s.buckets {
		if !inScope(key) {
			continue
		}
		for _, chunk := range chunks {
			score := textutil.NormalizeCosineSimilarity(
				textutil.CosineSimilarity(vector, chunk.Embedding))
			results = append(results, SearchResult{
				DocumentID: chunk.DocumentID,
				Ordinal:    chunk.Ordinal,
				Content:    chunk.Content,
				Model:      chunk.Model,
				Score:      score,
			})
		}
	}

	// 分数降序, 同分按 (document_id, ordinal) 升序, 保证结果确定
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].DocumentID != results[j].DocumentID {
			return results[i].DocumentID < results[j].DocumentID
		}
		return results[i].Ordinal < results[j].Ordinal
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// DeleteDocument 删除文档的全部向量.
func (s *MemoryStore) DeleteDocument(_ context.Context, projectID, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets, docKey{projectID, documentID})
	return nil
}

// Count 返回已索引的向量总数.
func (s *MemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, chunks := range s.buckets {
		total += int64(len(chunks))
	}
	return total, nil
}

// Close 内存实现无需释放资源.
func (s *MemoryStore) Close(_ context.Context) error {
	return nil
}

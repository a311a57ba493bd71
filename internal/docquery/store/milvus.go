package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/milvus-io/milvus/client/v2/entity"

	"github.com/kart-io/docquery/internal/pkg/textutil"
	"github.com/kart-io/docquery/pkg/component/milvus"
)

// milvus 集合的元数据字段及 VARCHAR 长度上限.
const (
	fieldDocumentID = "document_id"
	fieldProjectID  = "project_id"
	fieldContent    = "content"
	fieldOrdinal    = "ordinal"
	fieldModel      = "model"

	maxIDLen      = 64
	maxContentLen = 8192
	maxModelLen   = 128
)

// MilvusStore 基于 Milvus 的向量索引实现.
type MilvusStore struct {
	client *milvus.Client
	config CollectionConfig

	// upsertMu 串行化同一文档的 delete+insert, 保证替换过程不交错.
	upsertMu sync.Map // docKey -> *sync.Mutex
}

var _ VectorStore = (*MilvusStore)(nil)

// NewMilvusStore 创建 Milvus 向量索引.
func NewMilvusStore(client *milvus.Client, config CollectionConfig) *MilvusStore {
	return &MilvusStore{
		client: client,
		config: config,
	}
}

// EnsureCollection 确保集合, 索引与加载状态就绪.
func (s *MilvusStore) EnsureCollection(ctx context.Context) error {
	return s.client.EnsureCollection(ctx, &milvus.CollectionSchema{
		Name:        s.config.Collection,
		Description: "docquery chunk embeddings",
		Dimension:   s.config.Dimension,
		MetaFields: []milvus.MetaField{
			{Name: fieldDocumentID, DataType: entity.FieldTypeVarChar, MaxLen: maxIDLen},
			{Name: fieldProjectID, DataType: entity.FieldTypeVarChar, MaxLen: maxIDLen},
			{Name: fieldContent, DataType: entity.FieldTypeVarChar, MaxLen: maxContentLen},
			{Name: fieldOrdinal, DataType: entity.FieldTypeInt64},
			{Name: fieldModel, DataType: entity.FieldTypeVarChar, MaxLen: maxModelLen},
		},
	})
}

func (s *MilvusStore) docMutex(projectID, documentID string) *sync.Mutex {
	mu, _ := s.upsertMu.LoadOrStore(docKey{projectID, documentID}, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// UpsertDocument 以文档为单位替换全部片段向量.
// 同一文档的并发替换被互斥锁串行化, 避免两代向量交错残留.
func (s *MilvusStore) UpsertDocument(ctx context.Context, projectID, documentID string, chunks []IndexedChunk) error {
	mu := s.docMutex(projectID, documentID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.client.DeleteByExpr(ctx, s.config.Collection, docExpr(projectID, documentID)); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	data := &milvus.InsertData{
		Embeddings: make([][]float32, len(chunks)),
		Metadata: map[string][]any{
			fieldDocumentID: make([]any, len(chunks)),
			fieldProjectID:  make([]any, len(chunks)),
			fieldContent:    make([]any, len(chunks)),
			fieldOrdinal:    make([]any, len(chunks)),
			fieldModel:      make([]any, len(chunks)),
		},
	}
	for i, chunk := range chunks {
		data.Embeddings[i] = chunk.Embedding
		data.Metadata[fieldDocumentID][i] = chunk.DocumentID
		data.Metadata[fieldProjectID][i] = chunk.ProjectID
		data.Metadata[fieldContent][i] = textutil.TruncateString(chunk.Content, maxContentLen)
		data.Metadata[fieldOrdinal][i] = int64(chunk.Ordinal)
		data.Metadata[fieldModel][i] = chunk.Model
	}

	_, err := s.client.Insert(ctx, s.config.Collection, data)
	return err
}

// Search 在指定范围内做相似度检索.
func (s *MilvusStore) Search(ctx context.Context, vector []float32, scope Scope, topK int) ([]SearchResult, error) {
	raw, err := s.client.Search(ctx, s.config.Collection, vector, topK, scopeExpr(scope),
		[]string{fieldDocumentID, fieldContent, fieldOrdinal, fieldModel})
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(raw))
	for _, r := range raw {
		result := SearchResult{
			// Milvus COSINE 距离即相似度, 归一化到 [0, 1]
			Score: textutil.NormalizeCosineSimilarity(float64(r.Score)),
		}
		if v, ok := r.Metadata[fieldDocumentID].(string); ok {
			result.DocumentID = v
		}
		if v, ok := r.Metadata[fieldContent].(string); ok {
			result.Content = v
		}
		if v, ok := r.Metadata[fieldOrdinal].(int64); ok {
			result.Ordinal = int(v)
		}
		if v, ok := r.Metadata[fieldModel].(string); ok {
			result.Model = v
		}
		results = append(results, result)
	}
	return results, nil
}

// DeleteDocument 删除文档的全部向量.
func (s *MilvusStore) DeleteDocument(ctx context.Context, projectID, documentID string) error {
	mu := s.docMutex(projectID, documentID)
	mu.Lock()
	defer mu.Unlock()

	return s.client.DeleteByExpr(ctx, s.config.Collection, docExpr(projectID, documentID))
}

// Count 返回已索引的向量总数.
func (s *MilvusStore) Count(ctx context.Context) (int64, error) {
	return s.client.GetCollectionStats(ctx, s.config.Collection)
}

// Close 释放底层连接.
func (s *MilvusStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

// quoteExpr 转义过滤表达式中的字符串字面量.
func quoteExpr(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	return `"` + v + `"`
}

func docExpr(projectID, documentID string) string {
	return fmt.Sprintf("%s == %s && %s == %s",
		fieldProjectID, quoteExpr(projectID), fieldDocumentID, quoteExpr(documentID))
}

func scopeExpr(scope Scope) string {
	expr := fmt.Sprintf("%s == %s", fieldProjectID, quoteExpr(scope.ProjectID))
	if len(scope.DocumentIDs) == 0 {
		return expr
	}

	quoted := make([]string, len(scope.DocumentIDs))
	for i, id := range scope.DocumentIDs {
		quoted[i] = quoteExpr(id)
	}
	return fmt.Sprintf("%s && %s in [%s]", expr, fieldDocumentID, strings.Join(quoted, ", "))
}

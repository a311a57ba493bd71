// Package store 提供 docquery 的存储层: 向量索引与关系型存储.
package store

import (
	"context"
)

// IndexedChunk 是写入向量索引的最小单元.
type IndexedChunk struct {
	// DocumentID 所属文档.
	DocumentID string
	// ProjectID 所属项目.
	ProjectID string
	// Ordinal 片段在文档内的序号, 从 0 开始.
	Ordinal int
	// Content 片段文本.
	Content string
	// Embedding 片段向量.
	Embedding []float32
	// Model 生成该向量的嵌入模型标记.
	Model string
}

// SearchResult 向量检索的单条结果.
type SearchResult struct {
	DocumentID string
	Ordinal    int
	Content    string
	Model      string
	// Score 归一化相似度, 范围 [0, 1].
	Score float64
}

// Scope 限定检索范围. DocumentIDs 为空表示项目内全部文档.
type Scope struct {
	ProjectID   string
	DocumentIDs []string
}

// CollectionConfig 向量集合配置.
type CollectionConfig struct {
	Collection string
	Dimension  int
}

// VectorStore 定义向量索引的存储接口.
//
// UpsertDocument 对单个文档是原子的: 旧向量要么全部可见, 要么被新向量
// 完整替换, 检索不会同时看到新旧两代向量.
type VectorStore interface {
	// EnsureCollection 确保集合存在并可检索.
	EnsureCollection(ctx context.Context) error

	// UpsertDocument 以文档为单位替换全部片段向量.
	UpsertDocument(ctx context.Context, projectID, documentID string, chunks []IndexedChunk) error

	// Search 在指定范围内做相似度检索, 结果按分数降序排列,
	// 同分时按 (document_id, ordinal) 升序保证确定性.
	Search(ctx context.Context, vector []float32, scope Scope, topK int) ([]SearchResult, error)

	// DeleteDocument 删除文档的全部向量.
	DeleteDocument(ctx context.Context, projectID, documentID string) error

	// Count 返回已索引的向量总数.
	Count(ctx context.Context) (int64, error)

	// Close 释放底层连接.
	Close(ctx context.Context) error
}

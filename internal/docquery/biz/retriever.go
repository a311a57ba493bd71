package biz

import (
	"context"
	"sort"

	"github.com/kart-io/logger"

	"github.com/kart-io/docquery/internal/docquery/store"
	errno "github.com/kart-io/docquery/pkg/errors"
	"github.com/kart-io/docquery/pkg/llm"
)

// RetrieverConfig 检索器配置.
type RetrieverConfig struct {
	// TopK 返回的结果数量.
	TopK int
	// MinScore 相关性下限, 低于该分数的结果被丢弃.
	MinScore float64
	// ModelTag 当前嵌入模型标记, 与索引中的标记不一致时拒绝检索.
	ModelTag string
}

// RetrievalResult 表示一次检索的结果.
type RetrievalResult struct {
	// Question 原始问题.
	Question string
	// Scope 实际生效的文档范围.
	Scope []string
	// Results 检索结果, 按分数降序, 同分按 (document_id, ordinal) 升序.
	Results []store.SearchResult
}

// Retriever 负责在项目范围内检索相关片段.
type Retriever struct {
	vectors       store.VectorStore
	docs          *store.DocumentStore
	embedProvider llm.EmbeddingProvider
	config        *RetrieverConfig
}

// NewRetriever 创建检索器实例.
func NewRetriever(
	vectors store.VectorStore,
	docs *store.DocumentStore,
	embedProvider llm.EmbeddingProvider,
	config *RetrieverConfig,
) *Retriever {
	return &Retriever{
		vectors:       vectors,
		docs:          docs,
		embedProvider: embedProvider,
		config:        config,
	}
}

// ResolveScope 解析检索范围. 显式范围原样生效; 空范围展开为项目内
// 全部已索引文档, 展开结果为空时返回 ErrEmptyScope.
func (r *Retriever) ResolveScope(ctx context.Context, projectID string, documentIDs []string) ([]string, error) {
	if len(documentIDs) > 0 {
		return documentIDs, nil
	}

	ids, err := r.docs.ListIndexedIDs(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, errno.ErrEmptyScope
	}
	return ids, nil
}

// Retrieve 执行检索. topK <= 0 时使用配置默认值.
func (r *Retriever) Retrieve(ctx context.Context, projectID, question string, documentIDs []string, topK int) (*RetrievalResult, error) {
	scope, err := r.ResolveScope(ctx, projectID, documentIDs)
	if err != nil {
		return nil, err
	}

	if topK <= 0 {
		topK = r.config.TopK
	}

	embedding, err := r.embedProvider.EmbedSingle(ctx, question)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errno.ErrEmbeddingService.WithCause(err)
	}

	results, err := r.vectors.Search(ctx, embedding, store.Scope{
		ProjectID:   projectID,
		DocumentIDs: scope,
	}, topK)
	if err != nil {
		return nil, errno.ErrVectorStore.WithCause(err)
	}

	// 索引向量必须来自当前嵌入模型
	for _, res := range results {
		if res.Model != "" && res.Model != r.config.ModelTag {
			return nil, errno.ErrEmbeddingModelMismatch.WithMessagef(
				"index built with %q, current model is %q", res.Model, r.config.ModelTag)
		}
	}

	filtered := results[:0]
	for _, res := range results {
		if res.Score >= r.config.MinScore {
			filtered = append(filtered, res)
		}
	}

	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].Score != filtered[j].Score {
			return filtered[i].Score > filtered[j].Score
		}
		if filtered[i].DocumentID != filtered[j].DocumentID {
			return filtered[i].DocumentID < filtered[j].DocumentID
		}
		return filtered[i].Ordinal < filtered[j].Ordinal
	})

	logger.Debugw("retrieval finished",
		"project_id", projectID,
		"scope_size", len(scope),
		"results", len(filtered),
	)

	return &RetrievalResult{
		Question: question,
		Scope:    scope,
		Results:  filtered,
	}, nil
}

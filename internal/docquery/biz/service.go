package biz

import (
	"context"

	"github.com/kart-io/logger"

	"github.com/kart-io/docquery/internal/docquery/store"
	"github.com/kart-io/docquery/internal/model"
	"github.com/kart-io/docquery/internal/pkg/eval"
	errno "github.com/kart-io/docquery/pkg/errors"
	"github.com/kart-io/docquery/pkg/infra/pool"
)

// Service 文档问答对外门面, 聚合入库、查询、表格抽取、历史与评测.
type Service interface {
	Ingest(ctx context.Context, req *IngestRequest) (*IngestResult, error)
	IngestBatch(ctx context.Context, reqs []*IngestRequest) (*BatchIngestResult, error)
	ListDocuments(ctx context.Context, projectID string) ([]model.Document, error)
	DeleteDocument(ctx context.Context, projectID, documentID string) error

	Query(ctx context.Context, projectID, question string, documentIDs []string, topK int) (*model.QueryResult, error)
	QueryTable(ctx context.Context, projectID string, columns []model.TableColumn, documentIDs []string) (*model.TableResponse, error)

	GetTableHistory(ctx context.Context, projectID, historyID string) (*model.TableHistoryEntry, error)
	FindTableHistory(ctx context.Context, projectID, documentID, prompt string) (*model.TableHistoryEntry, error)
	ListTableHistory(ctx context.Context, projectID, documentID string, limit, offset int) ([]model.TableHistoryEntry, error)

	Evaluate(ctx context.Context, examples []eval.Example, scorer eval.Scorer) (*eval.Report, error)
	Stats(ctx context.Context, projectID string) (*ServiceStats, error)
}

// ServiceStats 服务的运行状态快照.
type ServiceStats struct {
	ProjectID         string           `json:"project_id,omitempty"`
	Documents         map[string]int64 `json:"documents"`
	HistoryEntries    int64            `json:"history_entries"`
	IndexedVectors    int64            `json:"indexed_vectors"`
	EmbeddingProvider string           `json:"embedding_provider"`
	ChatProvider      string           `json:"chat_provider"`
	AnswerCache       bool             `json:"answer_cache"`
}

type service struct {
	ingestor    *Ingestor
	retriever   *Retriever
	synthesizer *Synthesizer
	history     *TableHistory
	cache       *AnswerCache
	vectors     store.VectorStore
	docs        *store.DocumentStore
	evalPool    *pool.Pool

	embedName string
	chatName  string
}

// ServiceConfig 装配 Service 所需的全部组件.
type ServiceConfig struct {
	Ingestor    *Ingestor
	Retriever   *Retriever
	Synthesizer *Synthesizer
	History     *TableHistory
	Cache       *AnswerCache
	Vectors     store.VectorStore
	Docs        *store.DocumentStore
	EvalPool    *pool.Pool

	EmbedProviderName string
	ChatProviderName  string
}

// NewService 创建文档问答服务.
func NewService(cfg *ServiceConfig) Service {
	return &service{
		ingestor:    cfg.Ingestor,
		retriever:   cfg.Retriever,
		synthesizer: cfg.Synthesizer,
		history:     cfg.History,
		cache:       cfg.Cache,
		vectors:     cfg.Vectors,
		docs:        cfg.Docs,
		evalPool:    cfg.EvalPool,
		embedName:   cfg.EmbedProviderName,
		chatName:    cfg.ChatProviderName,
	}
}

func (s *service) Ingest(ctx context.Context, req *IngestRequest) (*IngestResult, error) {
	res, err := s.ingestor.Ingest(ctx, req)
	if err == nil && res != nil && !res.Skipped {
		// 文档内容变化后旧答案不再可信
		s.cache.InvalidateProject(ctx, req.ProjectID)
	}
	return res, err
}

func (s *service) IngestBatch(ctx context.Context, reqs []*IngestRequest) (*BatchIngestResult, error) {
	batch, err := s.ingestor.IngestBatch(ctx, reqs)
	if err != nil {
		return nil, err
	}
	if batch.Succeeded > 0 {
		invalidated := make(map[string]bool)
		for _, req := range reqs {
			if !invalidated[req.ProjectID] {
				invalidated[req.ProjectID] = true
				s.cache.InvalidateProject(ctx, req.ProjectID)
			}
		}
	}
	return batch, nil
}

func (s *service) ListDocuments(ctx context.Context, projectID string) ([]model.Document, error) {
	if projectID == "" {
		return nil, errno.ErrInvalidParam.WithMessage("project_id is required")
	}
	return s.docs.List(ctx, projectID)
}

// DeleteDocument 删除文档: 先删向量索引, 再级联删关系数据, 最后清答案缓存.
func (s *service) DeleteDocument(ctx context.Context, projectID, documentID string) error {
	if _, err := s.docs.Get(ctx, projectID, documentID); err != nil {
		return err
	}

	if err := s.vectors.DeleteDocument(ctx, projectID, documentID); err != nil {
		return err
	}
	if err := s.docs.Delete(ctx, projectID, documentID); err != nil {
		return err
	}
	s.cache.InvalidateProject(ctx, projectID)

	logger.Infow("document deleted",
		"project_id", projectID,
		"document_id", documentID,
	)
	return nil
}

func (s *service) Query(ctx context.Context, projectID, question string, documentIDs []string, topK int) (*model.QueryResult, error) {
	if projectID == "" || question == "" {
		return nil, errno.ErrInvalidParam.WithMessage("project_id and question are required")
	}

	if cached, ok := s.cache.Get(ctx, projectID, question, documentIDs); ok {
		logger.Debugw("answer cache hit", "project_id", projectID)
		return cached, nil
	}

	result, err := s.synthesizer.AnswerChat(ctx, projectID, question, documentIDs, topK)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, projectID, question, documentIDs, result)
	return result, nil
}

func (s *service) QueryTable(ctx context.Context, projectID string, columns []model.TableColumn, documentIDs []string) (*model.TableResponse, error) {
	if projectID == "" {
		return nil, errno.ErrInvalidParam.WithMessage("project_id is required")
	}
	return s.synthesizer.AnswerTable(ctx, projectID, columns, documentIDs)
}

func (s *service) GetTableHistory(ctx context.Context, projectID, historyID string) (*model.TableHistoryEntry, error) {
	return s.history.Get(ctx, projectID, historyID)
}

func (s *service) FindTableHistory(ctx context.Context, projectID, documentID, prompt string) (*model.TableHistoryEntry, error) {
	if projectID == "" || documentID == "" || prompt == "" {
		return nil, errno.ErrInvalidParam.WithMessage("project_id, document_id and prompt are required")
	}
	return s.history.Find(ctx, projectID, documentID, prompt)
}

func (s *service) ListTableHistory(ctx context.Context, projectID, documentID string, limit, offset int) ([]model.TableHistoryEntry, error) {
	if projectID == "" {
		return nil, errno.ErrInvalidParam.WithMessage("project_id is required")
	}
	return s.history.List(ctx, projectID, documentID, limit, offset)
}

func (s *service) Evaluate(ctx context.Context, examples []eval.Example, scorer eval.Scorer) (*eval.Report, error) {
	if len(examples) == 0 {
		return nil, errno.ErrInvalidParam.WithMessage("at least one example is required")
	}
	if scorer == nil {
		scorer = eval.NewOverlapScorer()
	}
	return eval.NewEvaluator(evalTarget{s}, scorer, s.evalPool).Run(ctx, examples)
}

func (s *service) Stats(ctx context.Context, projectID string) (*ServiceStats, error) {
	stats := &ServiceStats{
		ProjectID:         projectID,
		EmbeddingProvider: s.embedName,
		ChatProvider:      s.chatName,
		AnswerCache:       s.cache.Enabled(),
	}

	if projectID != "" {
		counts, err := s.docs.CountByProject(ctx, projectID)
		if err != nil {
			return nil, err
		}
		stats.Documents = counts

		historyCount, err := s.history.store.Count(ctx, projectID)
		if err != nil {
			return nil, err
		}
		stats.HistoryEntries = historyCount
	}

	vectors, err := s.vectors.Count(ctx)
	if err != nil {
		logger.Warnw("vector count unavailable", "error", err.Error())
	} else {
		stats.IndexedVectors = vectors
	}

	return stats, nil
}

// evalTarget 将服务适配为评测目标. 评测路径绕过答案缓存,
// 保证测的是当前流水线而不是历史缓存.
type evalTarget struct {
	svc *service
}

func (t evalTarget) Retrieve(ctx context.Context, projectID, question string, documentIDs []string) ([]string, error) {
	retrieval, err := t.svc.retriever.Retrieve(ctx, projectID, question, documentIDs, 0)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(retrieval.Results))
	ids := make([]string, 0, len(retrieval.Results))
	for _, res := range retrieval.Results {
		if !seen[res.DocumentID] {
			seen[res.DocumentID] = true
			ids = append(ids, res.DocumentID)
		}
	}
	return ids, nil
}

func (t evalTarget) Answer(ctx context.Context, projectID, question string, documentIDs []string) (*model.QueryResult, error) {
	return t.svc.synthesizer.AnswerChat(ctx, projectID, question, documentIDs, 0)
}

package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/docquery/internal/docquery/store"
	"github.com/kart-io/docquery/internal/model"
	errno "github.com/kart-io/docquery/pkg/errors"
	"github.com/kart-io/docquery/pkg/id"
	"github.com/kart-io/docquery/pkg/infra/pool"
	"github.com/kart-io/docquery/pkg/llm"
)

// 入库阶段名, 失败时记录在文档的 FailStage 上.
const (
	StageExtract = "extract"
	StageChunk   = "chunk"
	StageEmbed   = "embed"
	StageIndex   = "index"
	StagePersist = "persist"
)

// IngestRequest 单文档入库请求. DocumentID 为空时自动生成.
type IngestRequest struct {
	ProjectID  string
	DocumentID string
	Name       string
	MediaType  string
	Data       []byte
}

// IngestResult 单文档入库结果.
type IngestResult struct {
	DocumentID string `json:"document_id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	ChunkNum   int    `json:"chunk_num"`
	FailStage  string `json:"fail_stage,omitempty"`
	Error      string `json:"error,omitempty"`
	Skipped    bool   `json:"skipped,omitempty"`
}

// BatchIngestResult 批量入库结果与汇总.
type BatchIngestResult struct {
	Results   []IngestResult `json:"results"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Skipped   int            `json:"skipped"`
}

// Ingestor 执行 提取 -> 分块 -> 向量化 -> 索引 -> 落库 的入库流水线.
// 任一阶段失败时文档以 failed 状态落库并记录失败阶段, 不留下半索引状态.
type Ingestor struct {
	extractor     *Extractor
	chunker       *Chunker
	embedProvider llm.EmbeddingProvider
	vectors       store.VectorStore
	docs          *store.DocumentStore
	ingestPool    *pool.Pool
	modelTag      string
}

// NewIngestor 创建入库流水线. modelTag 标记向量所属的嵌入模型版本.
func NewIngestor(
	extractor *Extractor,
	chunker *Chunker,
	embedProvider llm.EmbeddingProvider,
	vectors store.VectorStore,
	docs *store.DocumentStore,
	ingestPool *pool.Pool,
	modelTag string,
) *Ingestor {
	return &Ingestor{
		extractor:     extractor,
		chunker:       chunker,
		embedProvider: embedProvider,
		vectors:       vectors,
		docs:          docs,
		ingestPool:    ingestPool,
		modelTag:      modelTag,
	}
}

// Ingest 入库单个文档. 内容未变且模型一致时跳过重建索引.
func (ig *Ingestor) Ingest(ctx context.Context, req *IngestRequest) (*IngestResult, error) {
	if req.ProjectID == "" || req.Name == "" || len(req.Data) == 0 {
		return nil, errno.ErrInvalidParam.WithMessage("project_id, name and data are required")
	}
	if req.DocumentID == "" {
		req.DocumentID = id.New()
	}

	sum := sha256.Sum256(req.Data)
	hash := hex.EncodeToString(sum[:])

	// 相同内容且模型未变时不重建索引
	if existing, err := ig.docs.Get(ctx, req.ProjectID, req.DocumentID); err == nil {
		if existing.Hash == hash && existing.Status == model.DocStatusIndexed && existing.EmbeddingModel == ig.modelTag {
			logger.Infow("document unchanged, skipping reindex",
				"project_id", req.ProjectID,
				"document_id", req.DocumentID,
			)
			return &IngestResult{
				DocumentID: existing.ID,
				Name:       existing.Name,
				Status:     existing.Status,
				ChunkNum:   existing.ChunkNum,
				Skipped:    true,
			}, nil
		}
	}

	doc := &model.Document{
		ID:             req.DocumentID,
		ProjectID:      req.ProjectID,
		Name:           req.Name,
		MediaType:      req.MediaType,
		Hash:           hash,
		EmbeddingModel: ig.modelTag,
		Status:         model.DocStatusPending,
	}

	chunks, stage, err := ig.run(ctx, req, doc)
	if err != nil {
		doc.Status = model.DocStatusFailed
		doc.FailStage = stage
		doc.FailReason = errno.FromError(err).MessageEN
		if saveErr := ig.docs.Save(ctx, doc); saveErr != nil {
			logger.Errorw("failed to persist failed document",
				"document_id", doc.ID,
				"error", saveErr.Error(),
			)
		}
		return &IngestResult{
			DocumentID: doc.ID,
			Name:       doc.Name,
			Status:     doc.Status,
			FailStage:  stage,
			Error:      doc.FailReason,
		}, err
	}

	doc.Status = model.DocStatusIndexed
	doc.ChunkNum = len(chunks)
	doc.FailStage = ""
	doc.FailReason = ""
	if err := ig.docs.Save(ctx, doc); err != nil {
		return nil, err
	}
	if err := ig.docs.ReplaceChunks(ctx, doc.ProjectID, doc.ID, chunks); err != nil {
		return nil, err
	}

	logger.Infow("document indexed",
		"project_id", req.ProjectID,
		"document_id", doc.ID,
		"chunks", len(chunks),
		"model", ig.modelTag,
	)

	return &IngestResult{
		DocumentID: doc.ID,
		Name:       doc.Name,
		Status:     doc.Status,
		ChunkNum:   len(chunks),
	}, nil
}

// run 执行流水线主体, 返回失败阶段名以便落库.
func (ig *Ingestor) run(ctx context.Context, req *IngestRequest, doc *model.Document) ([]model.Chunk, string, error) {
	start := time.Now()

	text, err := ig.extractor.Extract(req.MediaType, req.Data)
	if err != nil {
		return nil, StageExtract, err
	}

	chunks := ig.chunker.Split(text)
	if len(chunks) == 0 {
		return nil, StageChunk, errno.ErrChunkingFailed.WithMessage("document produced no chunks")
	}
	for i := range chunks {
		chunks[i].DocumentID = doc.ID
		chunks[i].ProjectID = doc.ProjectID
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	embeddings, err := ig.embedProvider.Embed(ctx, texts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, StageEmbed, ctx.Err()
		}
		return nil, StageEmbed, errno.ErrEmbeddingService.WithCause(err)
	}
	if len(embeddings) != len(chunks) {
		return nil, StageEmbed, errno.ErrEmbeddingService.WithMessagef(
			"embedding count mismatch: got %d, want %d", len(embeddings), len(chunks))
	}

	indexed := make([]store.IndexedChunk, len(chunks))
	for i, ch := range chunks {
		indexed[i] = store.IndexedChunk{
			DocumentID: doc.ID,
			ProjectID:  doc.ProjectID,
			Ordinal:    ch.Ordinal,
			Content:    ch.Content,
			Embedding:  embeddings[i],
			Model:      ig.modelTag,
		}
	}
	if err := ig.vectors.UpsertDocument(ctx, doc.ProjectID, doc.ID, indexed); err != nil {
		return nil, StageIndex, errno.ErrIndexFailed.WithCause(err)
	}

	logger.Debugw("ingest pipeline done",
		"document_id", doc.ID,
		"chunks", len(chunks),
		"cost", time.Since(start).String(),
	)
	return chunks, "", nil
}

// IngestBatch 并发入库多个文档, 单个文档失败不影响其余文档.
// 返回结果的顺序与请求顺序一致.
func (ig *Ingestor) IngestBatch(ctx context.Context, reqs []*IngestRequest) (*BatchIngestResult, error) {
	if len(reqs) == 0 {
		return nil, errno.ErrInvalidParam.WithMessage("at least one document is required")
	}

	results := make([]IngestResult, len(reqs))
	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		i, req := i, req
		if err := ig.ingestPool.Submit(func() {
			defer wg.Done()
			res, err := ig.Ingest(ctx, req)
			if res != nil {
				results[i] = *res
				return
			}
			results[i] = IngestResult{
				DocumentID: req.DocumentID,
				Name:       req.Name,
				Status:     model.DocStatusFailed,
				Error:      errno.FromError(err).MessageEN,
			}
		}); err != nil {
			results[i] = IngestResult{
				DocumentID: req.DocumentID,
				Name:       req.Name,
				Status:     model.DocStatusFailed,
				Error:      err.Error(),
			}
			wg.Done()
		}
	}
	wg.Wait()

	batch := &BatchIngestResult{Results: results}
	for _, res := range results {
		switch {
		case res.Skipped:
			batch.Skipped++
		case res.Status == model.DocStatusIndexed:
			batch.Succeeded++
		default:
			batch.Failed++
		}
	}
	return batch, nil
}

package biz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/kart-io/logger"

	"github.com/kart-io/docquery/internal/docquery/store"
	"github.com/kart-io/docquery/internal/model"
	errno "github.com/kart-io/docquery/pkg/errors"
	"github.com/kart-io/docquery/pkg/infra/pool"
	"github.com/kart-io/docquery/pkg/llm"
)

// NoContextAnswer 检索结果为空时的固定回答.
const NoContextAnswer = "I could not find relevant information in the selected documents."

// cellNoContextAnswer 单元格检索结果为空时的固定值.
const cellNoContextAnswer = "N/A"

// SynthesizerConfig 答案合成配置.
type SynthesizerConfig struct {
	// ChatSystemPrompt 对话模式的系统提示.
	ChatSystemPrompt string
	// CellSystemPrompt 表格单元格模式的系统提示.
	CellSystemPrompt string
	// CellTopK 单元格检索的片段数, 0 使用检索器默认值.
	CellTopK int
}

// Synthesizer 基于检索上下文合成答案, 支持对话与表格两种模式.
type Synthesizer struct {
	retriever    *Retriever
	chatProvider llm.ChatProvider
	history      *TableHistory
	docs         *store.DocumentStore
	tablePool    *pool.Pool
	config       *SynthesizerConfig
}

// NewSynthesizer 创建答案合成器.
func NewSynthesizer(
	retriever *Retriever,
	chatProvider llm.ChatProvider,
	history *TableHistory,
	docs *store.DocumentStore,
	tablePool *pool.Pool,
	config *SynthesizerConfig,
) *Synthesizer {
	return &Synthesizer{
		retriever:    retriever,
		chatProvider: chatProvider,
		history:      history,
		docs:         docs,
		tablePool:    tablePool,
		config:       config,
	}
}

// AnswerChat 对话模式: 检索后生成自由文本答案.
// 检索结果为空时返回固定回答而不调用生成模型.
func (s *Synthesizer) AnswerChat(ctx context.Context, projectID, question string, documentIDs []string, topK int) (*model.QueryResult, error) {
	retrieval, err := s.retriever.Retrieve(ctx, projectID, question, documentIDs, topK)
	if err != nil {
		return nil, err
	}

	if len(retrieval.Results) == 0 {
		logger.Infow("no relevant context, returning canned answer",
			"project_id", projectID,
		)
		return &model.QueryResult{
			Answer:    NoContextAnswer,
			NoContext: true,
			Sources:   []model.ChunkSource{},
		}, nil
	}

	answer, err := s.generate(ctx, buildChatPrompt(question, retrieval.Results), s.config.ChatSystemPrompt)
	if err != nil {
		return nil, err
	}

	return &model.QueryResult{
		Answer:  strings.TrimSpace(answer),
		Sources: s.sources(ctx, projectID, retrieval.Results),
	}, nil
}

// AnswerTable 表格模式: 每个文档一行, 每个提示语一列, 所有单元格并发生成.
// 单元格失败不影响整表, 失败单元格携带错误信息. 返回的表格始终包含
// len(documentIDs) x len(columns) 个单元格.
func (s *Synthesizer) AnswerTable(ctx context.Context, projectID string, columns []model.TableColumn, documentIDs []string) (*model.TableResponse, error) {
	if len(columns) == 0 {
		return nil, errno.ErrInvalidParam.WithMessage("at least one column prompt is required")
	}

	scope, err := s.retriever.ResolveScope(ctx, projectID, documentIDs)
	if err != nil {
		return nil, err
	}

	for i := range columns {
		if columns[i].Title == "" {
			columns[i].Title = deriveColumnTitle(columns[i].Prompt)
		}
	}

	resp := &model.TableResponse{
		Columns: columns,
		Rows:    make([]model.TableRow, len(scope)),
	}
	for i, docID := range scope {
		resp.Rows[i] = model.TableRow{
			DocumentID: docID,
			Cells:      make([]model.TableCell, len(columns)),
		}
		if doc, err := s.docs.Get(ctx, projectID, docID); err == nil {
			resp.Rows[i].DocumentName = doc.Name
		}
	}

	var wg sync.WaitGroup
	for rowIdx := range resp.Rows {
		for colIdx := range columns {
			// 取消后不再调度新单元格, 未执行的单元格标记为失败
			if err := ctx.Err(); err != nil {
				s.fillCancelled(resp, &wg)
				wg.Wait()
				return resp, nil
			}

			wg.Add(1)
			rowIdx, colIdx := rowIdx, colIdx
			submitErr := s.tablePool.Submit(func() {
				defer wg.Done()
				cell := s.computeCell(ctx, projectID, resp.Rows[rowIdx].DocumentID, columns[colIdx].Prompt)
				resp.Rows[rowIdx].Cells[colIdx] = cell
			})
			if submitErr != nil {
				resp.Rows[rowIdx].Cells[colIdx] = model.TableCell{
					Status: model.CellStatusFailed,
					Error:  submitErr.Error(),
				}
				wg.Done()
			}
		}
	}
	wg.Wait()

	return resp, nil
}

// fillCancelled 将尚未写入的单元格标记为取消失败.
func (s *Synthesizer) fillCancelled(resp *model.TableResponse, wg *sync.WaitGroup) {
	wg.Wait() // 等待已调度的单元格落定
	for rowIdx := range resp.Rows {
		for colIdx := range resp.Rows[rowIdx].Cells {
			if resp.Rows[rowIdx].Cells[colIdx].Status == "" {
				resp.Rows[rowIdx].Cells[colIdx] = model.TableCell{
					Status: model.CellStatusFailed,
					Error:  context.Canceled.Error(),
				}
			}
		}
	}
}

// computeCell 生成单个单元格, 通过历史缓存去重.
func (s *Synthesizer) computeCell(ctx context.Context, projectID, documentID, prompt string) model.TableCell {
	entry, created, err := s.history.GetOrCreate(ctx, projectID, documentID, prompt, func(ctx context.Context) (string, error) {
		retrieval, err := s.retriever.Retrieve(ctx, projectID, prompt, []string{documentID}, s.config.CellTopK)
		if err != nil {
			return "", err
		}
		if len(retrieval.Results) == 0 {
			return cellNoContextAnswer, nil
		}
		answer, err := s.generate(ctx, buildCellPrompt(prompt, retrieval.Results), s.config.CellSystemPrompt)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(answer), nil
	})
	if err != nil {
		logger.Warnw("table cell generation failed",
			"project_id", projectID,
			"document_id", documentID,
			"error", err.Error(),
		)
		return model.TableCell{
			Status: model.CellStatusFailed,
			Error:  errno.FromError(err).MessageEN,
		}
	}

	return model.TableCell{
		Answer: entry.Answer,
		Status: model.CellStatusOK,
		Cached: !created,
	}
}

// generate 调用生成模型并归一化错误.
func (s *Synthesizer) generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	answer, err := s.chatProvider.Generate(ctx, prompt, systemPrompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", errno.ErrGenerationTimeout.WithCause(err)
		}
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", errno.ErrGenerationFailed.WithCause(err)
	}
	return answer, nil
}

// sources 将检索结果转换为带文档名的来源信息.
func (s *Synthesizer) sources(ctx context.Context, projectID string, results []store.SearchResult) []model.ChunkSource {
	names := make(map[string]string)
	sources := make([]model.ChunkSource, 0, len(results))
	for _, res := range results {
		name, ok := names[res.DocumentID]
		if !ok {
			if doc, err := s.docs.Get(ctx, projectID, res.DocumentID); err == nil {
				name = doc.Name
			}
			names[res.DocumentID] = name
		}
		sources = append(sources, model.ChunkSource{
			DocumentID:   res.DocumentID,
			DocumentName: name,
			Ordinal:      res.Ordinal,
			Content:      res.Content,
			Score:        res.Score,
		})
	}
	return sources
}

func buildChatPrompt(question string, results []store.SearchResult) string {
	var sb strings.Builder
	sb.WriteString("Context:\n")
	for i, res := range results {
		fmt.Fprintf(&sb, "[%d] (document %s, chunk %d)\n%s\n\n", i+1, res.DocumentID, res.Ordinal, res.Content)
	}
	sb.WriteString("Question: ")
	sb.WriteString(question)
	sb.WriteString("\n\nAnswer:")
	return sb.String()
}

func buildCellPrompt(prompt string, results []store.SearchResult) string {
	var sb strings.Builder
	sb.WriteString("Excerpts:\n")
	for i, res := range results {
		fmt.Fprintf(&sb, "[%d] %s\n\n", i+1, res.Content)
	}
	sb.WriteString("Field to extract: ")
	sb.WriteString(prompt)
	sb.WriteString("\n\nValue:")
	return sb.String()
}

// deriveColumnTitle 从提示语派生列标题.
func deriveColumnTitle(prompt string) string {
	title := strings.TrimSpace(prompt)
	if idx := strings.IndexAny(title, "?？\n"); idx >= 0 {
		title = title[:idx]
	}
	words := strings.Fields(title)
	if len(words) > 6 {
		words = words[:6]
	}
	return strings.Join(words, " ")
}

package biz

import (
	"context"

	"github.com/kart-io/logger"

	"github.com/kart-io/docquery/internal/docquery/store"
	"github.com/kart-io/docquery/internal/model"
	"github.com/kart-io/docquery/internal/pkg/textutil"
	errno "github.com/kart-io/docquery/pkg/errors"
	"github.com/kart-io/docquery/pkg/id"
)

// titleMaxRunes 历史记录标题的最大长度.
const titleMaxRunes = 60

// ComputeFunc 在缓存未命中时生成答案.
type ComputeFunc func(ctx context.Context) (string, error)

// TableHistory 表格单元格的缓存与历史.
// 同一 (project, document, prompt) 三元组只生成一次答案.
type TableHistory struct {
	store *store.HistoryStore
}

// NewTableHistory 创建表格历史实例.
func NewTableHistory(historyStore *store.HistoryStore) *TableHistory {
	return &TableHistory{store: historyStore}
}

// GetOrCreate 查询或生成单元格答案. 命中已有记录时不调用 compute;
// 并发未命中时各方都会计算, 但恰好一条结果胜出, 所有调用方返回同一记录.
// created 表示本次调用的结果是否胜出.
func (h *TableHistory) GetOrCreate(ctx context.Context, projectID, documentID, prompt string, compute ComputeFunc) (*model.TableHistoryEntry, bool, error) {
	promptHash := textutil.HashString(prompt)

	entry, err := h.store.Get(ctx, projectID, documentID, promptHash)
	if err == nil {
		return entry, false, nil
	}
	if !errno.IsCode(err, errno.ErrHistoryNotFound.Code) {
		return nil, false, err
	}

	answer, err := compute(ctx)
	if err != nil {
		return nil, false, err
	}

	entry, inserted, err := h.store.CreateIfAbsent(ctx, &model.TableHistoryEntry{
		ID:         id.New(),
		ProjectID:  projectID,
		DocumentID: documentID,
		PromptHash: promptHash,
		Prompt:     prompt,
		Title:      textutil.ShortTitle(prompt, titleMaxRunes),
		Answer:     answer,
	})
	if err != nil {
		return nil, false, err
	}
	if !inserted {
		logger.Debugw("table cell lost creation race, using winner's answer",
			"project_id", projectID,
			"document_id", documentID,
		)
	}
	return entry, inserted, nil
}

// Get 按主键查询历史记录.
func (h *TableHistory) Get(ctx context.Context, projectID, entryID string) (*model.TableHistoryEntry, error) {
	return h.store.GetByID(ctx, projectID, entryID)
}

// Find 按 (project, document, prompt) 三元组查询历史记录.
func (h *TableHistory) Find(ctx context.Context, projectID, documentID, prompt string) (*model.TableHistoryEntry, error) {
	return h.store.Get(ctx, projectID, documentID, textutil.HashString(prompt))
}

// List 返回项目的历史记录.
func (h *TableHistory) List(ctx context.Context, projectID, documentID string, limit, offset int) ([]model.TableHistoryEntry, error) {
	return h.store.List(ctx, projectID, documentID, limit, offset)
}

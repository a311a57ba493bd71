package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kart-io/docquery/internal/model"
	errno "github.com/kart-io/docquery/pkg/errors"
)

// HistoryStore 表格单元格历史的关系型存储.
// (project_id, document_id, prompt_hash) 上的唯一索引保证同一提示语
// 只存在一条记录.
type HistoryStore struct {
	db *gorm.DB
}

// NewHistoryStore 创建历史存储.
func NewHistoryStore(db *gorm.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// CreateIfAbsent 插入历史记录. 若同键记录已存在则放弃本次插入并返回
// 已有记录, inserted 为 false. 并发同键插入恰好一条胜出.
func (s *HistoryStore) CreateIfAbsent(ctx context.Context, entry *model.TableHistoryEntry) (*model.TableHistoryEntry, bool, error) {
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "project_id"}, {Name: "document_id"}, {Name: "prompt_hash"},
			},
			DoNothing: true,
		}).
		Create(entry)
	if result.Error != nil {
		return nil, false, errno.ErrDatabase.WithCause(result.Error)
	}

	if result.RowsAffected > 0 {
		return entry, true, nil
	}

	// 冲突落败, 读取胜出记录
	existing, err := s.Get(ctx, entry.ProjectID, entry.DocumentID, entry.PromptHash)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// Get 按 (project, document, prompt_hash) 查询.
func (s *HistoryStore) Get(ctx context.Context, projectID, documentID, promptHash string) (*model.TableHistoryEntry, error) {
	var entry model.TableHistoryEntry
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND document_id = ? AND prompt_hash = ?", projectID, documentID, promptHash).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errno.ErrHistoryNotFound
		}
		return nil, errno.ErrDatabase.WithCause(err)
	}
	return &entry, nil
}

// GetByID 按主键查询.
func (s *HistoryStore) GetByID(ctx context.Context, projectID, id string) (*model.TableHistoryEntry, error) {
	var entry model.TableHistoryEntry
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND id = ?", projectID, id).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errno.ErrHistoryNotFound
		}
		return nil, errno.ErrDatabase.WithCause(err)
	}
	return &entry, nil
}

// List 返回项目的历史记录, documentID 非空时限定单个文档.
func (s *HistoryStore) List(ctx context.Context, projectID, documentID string, limit, offset int) ([]model.TableHistoryEntry, error) {
	query := s.db.WithContext(ctx).Where("project_id = ?", projectID)
	if documentID != "" {
		query = query.Where("document_id = ?", documentID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var entries []model.TableHistoryEntry
	err := query.Offset(offset).Order("created_at DESC, id DESC").Find(&entries).Error
	if err != nil {
		return nil, errno.ErrDatabase.WithCause(err)
	}
	return entries, nil
}

// Count 统计历史记录数.
func (s *HistoryStore) Count(ctx context.Context, projectID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.TableHistoryEntry{}).
		Where("project_id = ?", projectID).
		Count(&count).Error
	if err != nil {
		return 0, errno.ErrDatabase.WithCause(err)
	}
	return count, nil
}

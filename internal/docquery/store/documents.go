package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/kart-io/docquery/internal/model"
	errno "github.com/kart-io/docquery/pkg/errors"
)

// DocumentStore 文档与片段的关系型存储.
type DocumentStore struct {
	db *gorm.DB
}

// NewDocumentStore 创建文档存储.
func NewDocumentStore(db *gorm.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Save 插入或更新文档元数据.
func (s *DocumentStore) Save(ctx context.Context, doc *model.Document) error {
	if err := s.db.WithContext(ctx).Save(doc).Error; err != nil {
		return errno.ErrDatabase.WithCause(err)
	}
	return nil
}

// Get 按项目与 ID 查询文档.
func (s *DocumentStore) Get(ctx context.Context, projectID, documentID string) (*model.Document, error) {
	var doc model.Document
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND id = ?", projectID, documentID).
		First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errno.ErrDocumentNotFound.WithMessagef("document %s not found", documentID)
		}
		return nil, errno.ErrDatabase.WithCause(err)
	}
	return &doc, nil
}

// List 返回项目内全部文档.
func (s *DocumentStore) List(ctx context.Context, projectID string) ([]model.Document, error) {
	var docs []model.Document
	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at").
		Find(&docs).Error
	if err != nil {
		return nil, errno.ErrDatabase.WithCause(err)
	}
	return docs, nil
}

// ListIndexedIDs 返回项目内已索引文档的 ID, 用于解析空检索范围.
func (s *DocumentStore) ListIndexedIDs(ctx context.Context, projectID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&model.Document{}).
		Where("project_id = ? AND status = ?", projectID, model.DocStatusIndexed).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, errno.ErrDatabase.WithCause(err)
	}
	return ids, nil
}

// ReplaceChunks 替换文档的全部片段记录.
func (s *DocumentStore) ReplaceChunks(ctx context.Context, projectID, documentID string, chunks []model.Chunk) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ? AND document_id = ?", projectID, documentID).
			Delete(&model.Chunk{}).Error; err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		return tx.Create(&chunks).Error
	})
	if err != nil {
		return errno.ErrDatabase.WithCause(err)
	}
	return nil
}

// Chunks 返回文档的全部片段, 按序号升序.
func (s *DocumentStore) Chunks(ctx context.Context, projectID, documentID string) ([]model.Chunk, error) {
	var chunks []model.Chunk
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND document_id = ?", projectID, documentID).
		Order("ordinal").
		Find(&chunks).Error
	if err != nil {
		return nil, errno.ErrDatabase.WithCause(err)
	}
	return chunks, nil
}

// Delete 级联删除文档及其片段与表格历史.
func (s *DocumentStore) Delete(ctx context.Context, projectID, documentID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("project_id = ? AND id = ?", projectID, documentID).
			Delete(&model.Document{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errno.ErrDocumentNotFound.WithMessagef("document %s not found", documentID)
		}

		if err := tx.Where("project_id = ? AND document_id = ?", projectID, documentID).
			Delete(&model.Chunk{}).Error; err != nil {
			return err
		}
		return tx.Where("project_id = ? AND document_id = ?", projectID, documentID).
			Delete(&model.TableHistoryEntry{}).Error
	})
	if err != nil {
		if errno.IsCode(err, errno.ErrDocumentNotFound.Code) {
			return err
		}
		return errno.ErrDatabase.WithCause(err)
	}
	return nil
}

// CountByProject 统计项目内各状态的文档数.
func (s *DocumentStore) CountByProject(ctx context.Context, projectID string) (map[string]int64, error) {
	type row struct {
		Status string
		Num    int64
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Model(&model.Document{}).
		Select("status, count(*) as num").
		Where("project_id = ?", projectID).
		Group("status").
		Find(&rows).Error
	if err != nil {
		return nil, errno.ErrDatabase.WithCause(err)
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Num
	}
	return counts, nil
}

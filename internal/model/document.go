// Package model provides data models for the docquery service.
package model

import (
	"time"
)

// Document status values.
const (
	DocStatusPending = "pending"
	DocStatusIndexed = "indexed"
	DocStatusFailed  = "failed"
)

// Document represents an ingested document within a project.
type Document struct {
	ID             string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	ProjectID      string    `json:"project_id" gorm:"type:varchar(64);index:idx_doc_project;not null"`
	Name           string    `json:"name" gorm:"type:varchar(255);not null"`
	MediaType      string    `json:"media_type" gorm:"type:varchar(128);not null"`
	Hash           string    `json:"hash" gorm:"type:varchar(64);index"` // Content hash for deduplication
	ChunkNum       int       `json:"chunk_num" gorm:"default:0"`
	EmbeddingModel string    `json:"embedding_model" gorm:"type:varchar(128)"` // Model tag used at index time
	Status         string    `json:"status" gorm:"type:varchar(32);default:'pending'"` // pending, indexed, failed
	FailStage      string    `json:"fail_stage,omitempty" gorm:"type:varchar(32)"`
	FailReason     string    `json:"fail_reason,omitempty" gorm:"type:text"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for Document.
func (Document) TableName() string {
	return "dq_documents"
}

// Chunk represents a text chunk persisted alongside its vector.
type Chunk struct {
	ID         int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	DocumentID string    `json:"document_id" gorm:"type:varchar(64);index;not null"`
	ProjectID  string    `json:"project_id" gorm:"type:varchar(64);index;not null"`
	Ordinal    int       `json:"ordinal" gorm:"not null"` // Position within the document
	Content    string    `json:"content" gorm:"type:text;not null"`
	StartPos   int       `json:"start_pos" gorm:"default:0"`
	EndPos     int       `json:"end_pos" gorm:"default:0"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for Chunk.
func (Chunk) TableName() string {
	return "dq_chunks"
}

// TableHistoryEntry caches a generated table cell keyed by
// (project, document, prompt). PromptHash is the sha256 of the prompt text;
// the unique index makes concurrent creation race-safe.
type TableHistoryEntry struct {
	ID         string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	ProjectID  string    `json:"project_id" gorm:"type:varchar(64);uniqueIndex:uk_history_triple;not null"`
	DocumentID string    `json:"document_id" gorm:"type:varchar(64);uniqueIndex:uk_history_triple;not null"`
	PromptHash string    `json:"prompt_hash" gorm:"type:varchar(64);uniqueIndex:uk_history_triple;not null"`
	Prompt     string    `json:"prompt" gorm:"type:text;not null"`
	Title      string    `json:"title" gorm:"type:varchar(255)"` // Short title derived from the prompt
	Answer     string    `json:"answer" gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for TableHistoryEntry.
func (TableHistoryEntry) TableName() string {
	return "dq_table_history"
}

// QueryResult represents a chat-mode query result.
type QueryResult struct {
	Answer    string        `json:"answer"`
	NoContext bool          `json:"no_context"` // True when the canned no-context answer was returned
	Cached    bool          `json:"cached"`
	Sources   []ChunkSource `json:"sources"`
}

// ChunkSource represents source information for a retrieved chunk.
type ChunkSource struct {
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name,omitempty"`
	Ordinal      int     `json:"ordinal"`
	Content      string  `json:"content"`
	Score        float64 `json:"score"`
}

// Cell status values.
const (
	CellStatusOK     = "ok"
	CellStatusFailed = "failed"
)

// TableResponse is the result of table-mode extraction: one row per document,
// one column per prompt. Every (row, column) pair has a cell.
type TableResponse struct {
	Columns []TableColumn `json:"columns"`
	Rows    []TableRow    `json:"rows"`
}

// TableColumn describes a single extraction column.
type TableColumn struct {
	Title  string `json:"title"`
	Prompt string `json:"prompt"`
}

// TableRow holds the cells of one document.
type TableRow struct {
	DocumentID   string      `json:"document_id"`
	DocumentName string      `json:"document_name,omitempty"`
	Cells        []TableCell `json:"cells"`
}

// TableCell is a single generated value. Failed cells carry an error message
// instead of failing the whole table.
type TableCell struct {
	Answer string `json:"answer,omitempty"`
	Status string `json:"status"` // ok, failed
	Error  string `json:"error,omitempty"`
	Cached bool   `json:"cached,omitempty"`
}

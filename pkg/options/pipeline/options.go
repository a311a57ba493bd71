// Package pipeline provides document Q&A pipeline configuration options.
package pipeline

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/docquery/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains pipeline-specific configuration.
type Options struct {
	// ChunkSize is the target size of text chunks in runes.
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap is the overlap between adjacent chunks in runes.
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// TopK is the number of results to return from similarity search.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// MinScore 相关性下限, 低于该分数的片段不进入生成上下文.
	MinScore float64 `json:"min-score" mapstructure:"min-score"`

	// Collection is the name of the vector collection.
	Collection string `json:"collection" mapstructure:"collection"`

	// EmbeddingDim is the dimension of embedding vectors.
	EmbeddingDim int `json:"embedding-dim" mapstructure:"embedding-dim"`

	// IngestWorkers 批量入库的并发 worker 数.
	IngestWorkers int `json:"ingest-workers" mapstructure:"ingest-workers"`

	// TableWorkers 表格单元格生成的并发 worker 数.
	TableWorkers int `json:"table-workers" mapstructure:"table-workers"`

	// ChatSystemPrompt is the system prompt for chat answers.
	ChatSystemPrompt string `json:"chat-system-prompt" mapstructure:"chat-system-prompt"`

	// CellSystemPrompt is the system prompt for table cell answers.
	CellSystemPrompt string `json:"cell-system-prompt" mapstructure:"cell-system-prompt"`
}

// DefaultChatSystemPrompt is the default system prompt for chat answers.
const DefaultChatSystemPrompt = `You are a helpful assistant that answers questions strictly based on the provided context.
If the context does not contain the answer, say you do not know. Cite the source documents when possible.`

// DefaultCellSystemPrompt is the default system prompt for table cell answers.
const DefaultCellSystemPrompt = `You extract a single concise value from the provided document excerpts.
Answer with the value only, no explanation. If the value is absent from the excerpts, answer "N/A".`

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		ChunkSize:        512,
		ChunkOverlap:     64,
		TopK:             5,
		MinScore:         0.3,
		Collection:       "docquery_chunks",
		EmbeddingDim:     768, // nomic-embed-text dimension
		IngestWorkers:    4,
		TableWorkers:     8,
		ChatSystemPrompt: DefaultChatSystemPrompt,
		CellSystemPrompt: DefaultCellSystemPrompt,
	}
}

// AddFlags adds flags for pipeline options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	join := options.Join(prefixes...)
	fs.IntVar(&o.ChunkSize, join+"pipeline.chunk-size", o.ChunkSize, "Target size of text chunks in runes.")
	fs.IntVar(&o.ChunkOverlap, join+"pipeline.chunk-overlap", o.ChunkOverlap, "Overlap between adjacent chunks in runes.")
	fs.IntVar(&o.TopK, join+"pipeline.top-k", o.TopK, "Number of results from similarity search.")
	fs.Float64Var(&o.MinScore, join+"pipeline.min-score", o.MinScore, "Relevance floor for retrieved chunks.")
	fs.StringVar(&o.Collection, join+"pipeline.collection", o.Collection, "Vector collection name.")
	fs.IntVar(&o.EmbeddingDim, join+"pipeline.embedding-dim", o.EmbeddingDim, "Embedding vector dimension.")
	fs.IntVar(&o.IngestWorkers, join+"pipeline.ingest-workers", o.IngestWorkers, "Concurrent workers for batch ingestion.")
	fs.IntVar(&o.TableWorkers, join+"pipeline.table-workers", o.TableWorkers, "Concurrent workers for table cell generation.")
	fs.StringVar(&o.ChatSystemPrompt, join+"pipeline.chat-system-prompt", o.ChatSystemPrompt, "System prompt for chat answers.")
	fs.StringVar(&o.CellSystemPrompt, join+"pipeline.cell-system-prompt", o.CellSystemPrompt, "System prompt for table cell extraction.")
}

// Validate validates the pipeline options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk-size must be positive"))
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		errs = append(errs, fmt.Errorf("chunk-overlap must be in [0, chunk-size)"))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("top-k must be positive"))
	}
	if o.MinScore < 0 || o.MinScore > 1 {
		errs = append(errs, fmt.Errorf("min-score must be in [0, 1]"))
	}
	if o.Collection == "" {
		errs = append(errs, fmt.Errorf("collection is required"))
	}
	if o.EmbeddingDim <= 0 {
		errs = append(errs, fmt.Errorf("embedding-dim must be positive"))
	}
	if o.IngestWorkers <= 0 {
		errs = append(errs, fmt.Errorf("ingest-workers must be positive"))
	}
	if o.TableWorkers <= 0 {
		errs = append(errs, fmt.Errorf("table-workers must be positive"))
	}
	return errs
}

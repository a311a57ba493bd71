package biz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docquery/internal/docquery/store"
	"github.com/kart-io/docquery/internal/model"
	errno "github.com/kart-io/docquery/pkg/errors"
)

type synthFixture struct {
	synth   *Synthesizer
	chat    *stubChat
	docs    *store.DocumentStore
	vectors *store.MemoryStore
}

func newSynthFixture(t *testing.T) *synthFixture {
	t.Helper()
	docs, db := newTestDocStore(t)
	vectors := store.NewMemoryStore()
	chat := &stubChat{reply: "the revenue was 10M"}

	retriever := NewRetriever(vectors, docs, &stubEmbedder{}, &RetrieverConfig{
		TopK:     5,
		MinScore: 0,
		ModelTag: stubModelTag,
	})
	history := NewTableHistory(store.NewHistoryStore(db))
	synth := NewSynthesizer(retriever, chat, history, docs, newTestPool(t, 8), &SynthesizerConfig{
		ChatSystemPrompt: "answer from context",
		CellSystemPrompt: "value only",
	})
	return &synthFixture{synth: synth, chat: chat, docs: docs, vectors: vectors}
}

func TestAnswerChatNoContext(t *testing.T) {
	fx := newSynthFixture(t)
	seedIndexedDoc(t, fx.docs, fx.vectors, "p1", "doc-a", "a.txt", []string{"revenue 10M"})
	// 提高下限使检索结果为空
	fx.synth.retriever.config.MinScore = 0.99
	fx.synth.retriever.config.TopK = 5

	result, err := fx.synth.AnswerChat(context.Background(), "p1", "employee headcount", nil, 0)
	require.NoError(t, err)
	assert.True(t, result.NoContext)
	assert.Equal(t, NoContextAnswer, result.Answer)
	assert.Empty(t, result.Sources)
	// 无上下文时不调用生成模型
	assert.EqualValues(t, 0, fx.chat.calls.Load())
}

func TestAnswerChatWithContext(t *testing.T) {
	fx := newSynthFixture(t)
	seedIndexedDoc(t, fx.docs, fx.vectors, "p1", "doc-a", "report.txt",
		[]string{"total revenue was 10M"})

	result, err := fx.synth.AnswerChat(context.Background(), "p1", "what was the revenue", nil, 0)
	require.NoError(t, err)
	assert.False(t, result.NoContext)
	assert.Equal(t, "the revenue was 10M", result.Answer)
	require.NotEmpty(t, result.Sources)
	assert.Equal(t, "doc-a", result.Sources[0].DocumentID)
	assert.Equal(t, "report.txt", result.Sources[0].DocumentName)
	assert.EqualValues(t, 1, fx.chat.calls.Load())
}

func TestAnswerChatGenerationFailure(t *testing.T) {
	fx := newSynthFixture(t)
	fx.chat.failErr = errors.New("upstream 500")
	seedIndexedDoc(t, fx.docs, fx.vectors, "p1", "doc-a", "a.txt", []string{"revenue 10M"})

	_, err := fx.synth.AnswerChat(context.Background(), "p1", "revenue", nil, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errno.ErrGenerationFailed))
}

func TestAnswerTableShape(t *testing.T) {
	fx := newSynthFixture(t)
	seedIndexedDoc(t, fx.docs, fx.vectors, "p1", "doc-a", "a.txt", []string{"revenue 10M"})
	seedIndexedDoc(t, fx.docs, fx.vectors, "p1", "doc-b", "b.txt", []string{"revenue 20M"})

	columns := []model.TableColumn{
		{Title: "Revenue", Prompt: "what is the total revenue"},
		{Title: "Staff", Prompt: "how many employees"},
	}
	resp, err := fx.synth.AnswerTable(context.Background(), "p1", columns, nil)
	require.NoError(t, err)

	require.Len(t, resp.Rows, 2)
	for _, row := range resp.Rows {
		require.Len(t, row.Cells, 2)
		assert.NotEmpty(t, row.DocumentName)
		for _, cell := range row.Cells {
			assert.Equal(t, model.CellStatusOK, cell.Status)
			assert.NotEmpty(t, cell.Answer)
			assert.False(t, cell.Cached)
		}
	}
}

func TestAnswerTableCachedSecondRun(t *testing.T) {
	fx := newSynthFixture(t)
	seedIndexedDoc(t, fx.docs, fx.vectors, "p1", "doc-a", "a.txt", []string{"revenue 10M"})

	columns := []model.TableColumn{{Title: "Revenue", Prompt: "total revenue"}}

	first, err := fx.synth.AnswerTable(context.Background(), "p1", columns, nil)
	require.NoError(t, err)
	assert.False(t, first.Rows[0].Cells[0].Cached)
	callsAfterFirst := fx.chat.calls.Load()

	second, err := fx.synth.AnswerTable(context.Background(), "p1", columns, nil)
	require.NoError(t, err)
	assert.True(t, second.Rows[0].Cells[0].Cached)
	assert.Equal(t, first.Rows[0].Cells[0].Answer, second.Rows[0].Cells[0].Answer)
	// 缓存命中不触发第二次生成
	assert.Equal(t, callsAfterFirst, fx.chat.calls.Load())
}

func TestAnswerTableFailedCellIsolation(t *testing.T) {
	fx := newSynthFixture(t)
	fx.chat.failErr = errors.New("model overloaded")
	fx.chat.failOn = "employees"
	seedIndexedDoc(t, fx.docs, fx.vectors, "p1", "doc-a", "a.txt",
		[]string{"revenue 10M", "employee count 42"})

	columns := []model.TableColumn{
		{Title: "Revenue", Prompt: "total revenue"},
		{Title: "Staff", Prompt: "how many employees"},
	}
	resp, err := fx.synth.AnswerTable(context.Background(), "p1", columns, nil)
	require.NoError(t, err)
	require.Len(t, resp.Rows, 1)
	require.Len(t, resp.Rows[0].Cells, 2)

	assert.Equal(t, model.CellStatusOK, resp.Rows[0].Cells[0].Status)
	assert.Equal(t, model.CellStatusFailed, resp.Rows[0].Cells[1].Status)
	assert.NotEmpty(t, resp.Rows[0].Cells[1].Error)
}

func TestAnswerTableEmptyColumns(t *testing.T) {
	fx := newSynthFixture(t)

	_, err := fx.synth.AnswerTable(context.Background(), "p1", nil, []string{"doc-a"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errno.ErrInvalidParam))
}

func TestAnswerTableNoContextCell(t *testing.T) {
	fx := newSynthFixture(t)
	seedIndexedDoc(t, fx.docs, fx.vectors, "p1", "doc-a", "a.txt", []string{"revenue 10M"})
	fx.synth.retriever.config.MinScore = 0.99

	columns := []model.TableColumn{{Title: "Staff", Prompt: "employee headcount"}}
	resp, err := fx.synth.AnswerTable(context.Background(), "p1", columns, nil)
	require.NoError(t, err)

	cell := resp.Rows[0].Cells[0]
	assert.Equal(t, model.CellStatusOK, cell.Status)
	assert.Equal(t, "N/A", cell.Answer)
	assert.EqualValues(t, 0, fx.chat.calls.Load())
}

package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docquery/internal/model"
	errno "github.com/kart-io/docquery/pkg/errors"
	"github.com/kart-io/docquery/internal/pkg/textutil"
	"github.com/kart-io/docquery/pkg/id"
)

func newHistoryEntry(projectID, documentID, prompt, answer string) *model.TableHistoryEntry {
	return &model.TableHistoryEntry{
		ID:         id.New(),
		ProjectID:  projectID,
		DocumentID: documentID,
		PromptHash: textutil.HashString(prompt),
		Prompt:     prompt,
		Title:      textutil.ShortTitle(prompt, 60),
		Answer:     answer,
	}
}

func TestHistoryCreateIfAbsent(t *testing.T) {
	db, err := NewTestDB()
	require.NoError(t, err)
	s := NewHistoryStore(db)
	ctx := context.Background()

	first := newHistoryEntry("p1", "doc-a", "What is the total amount?", "42 EUR")
	got, inserted, err := s.CreateIfAbsent(ctx, first)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, first.ID, got.ID)

	// 同键重复插入返回已有记录
	dup := newHistoryEntry("p1", "doc-a", "What is the total amount?", "different answer")
	got, inserted, err = s.CreateIfAbsent(ctx, dup)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, "42 EUR", got.Answer)

	// 不同 prompt 是新记录
	other := newHistoryEntry("p1", "doc-a", "Who signed the contract?", "Alice")
	_, inserted, err = s.CreateIfAbsent(ctx, other)
	require.NoError(t, err)
	assert.True(t, inserted)

	// 不同文档同 prompt 也是新记录
	otherDoc := newHistoryEntry("p1", "doc-b", "What is the total amount?", "7 EUR")
	_, inserted, err = s.CreateIfAbsent(ctx, otherDoc)
	require.NoError(t, err)
	assert.True(t, inserted)

	count, err := s.Count(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestHistoryCreateIfAbsentConcurrent(t *testing.T) {
	db, err := NewTestDB()
	require.NoError(t, err)
	s := NewHistoryStore(db)
	ctx := context.Background()

	const goroutines = 16
	var insertedCount atomic.Int64
	var wg sync.WaitGroup
	ids := make([]string, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			entry := newHistoryEntry("p1", "doc-a", "concurrent prompt", "answer")
			got, inserted, err := s.CreateIfAbsent(ctx, entry)
			if err != nil {
				t.Error(err)
				return
			}
			if inserted {
				insertedCount.Add(1)
			}
			ids[n] = got.ID
		}(i)
	}
	wg.Wait()

	// 恰好一个 goroutine 胜出, 所有调用方看到同一条记录
	assert.Equal(t, int64(1), insertedCount.Load())
	for _, gotID := range ids[1:] {
		assert.Equal(t, ids[0], gotID)
	}

	count, err := s.Count(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestHistoryGetNotFound(t *testing.T) {
	db, err := NewTestDB()
	require.NoError(t, err)
	s := NewHistoryStore(db)

	_, err = s.Get(context.Background(), "p1", "doc-a", textutil.HashString("missing"))
	assert.True(t, errno.IsCode(err, errno.ErrHistoryNotFound.Code))
}

func TestHistoryList(t *testing.T) {
	db, err := NewTestDB()
	require.NoError(t, err)
	s := NewHistoryStore(db)
	ctx := context.Background()

	for _, prompt := range []string{"q1", "q2", "q3"} {
		_, _, err := s.CreateIfAbsent(ctx, newHistoryEntry("p1", "doc-a", prompt, "a"))
		require.NoError(t, err)
	}
	_, _, err = s.CreateIfAbsent(ctx, newHistoryEntry("p1", "doc-b", "q1", "a"))
	require.NoError(t, err)

	entries, err := s.List(ctx, "p1", "doc-a", 0, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	entries, err = s.List(ctx, "p1", "", 2, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestDocumentStoreLifecycle(t *testing.T) {
	db, err := NewTestDB()
	require.NoError(t, err)
	docs := NewDocumentStore(db)
	history := NewHistoryStore(db)
	ctx := context.Background()

	doc := &model.Document{
		ID:        "doc-a",
		ProjectID: "p1",
		Name:      "contract.pdf",
		MediaType: "application/pdf",
		Status:    model.DocStatusIndexed,
	}
	require.NoError(t, docs.Save(ctx, doc))
	require.NoError(t, docs.ReplaceChunks(ctx, "p1", "doc-a", []model.Chunk{
		{DocumentID: "doc-a", ProjectID: "p1", Ordinal: 0, Content: "chunk zero"},
		{DocumentID: "doc-a", ProjectID: "p1", Ordinal: 1, Content: "chunk one"},
	}))
	_, _, err = history.CreateIfAbsent(ctx, newHistoryEntry("p1", "doc-a", "q", "a"))
	require.NoError(t, err)

	got, err := docs.Get(ctx, "p1", "doc-a")
	require.NoError(t, err)
	assert.Equal(t, "contract.pdf", got.Name)

	ids, err := docs.ListIndexedIDs(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-a"}, ids)

	chunks, err := docs.Chunks(ctx, "p1", "doc-a")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "chunk zero", chunks[0].Content)

	// 级联删除: 片段与历史一并清除
	require.NoError(t, docs.Delete(ctx, "p1", "doc-a"))

	_, err = docs.Get(ctx, "p1", "doc-a")
	assert.True(t, errno.IsCode(err, errno.ErrDocumentNotFound.Code))

	chunks, err = docs.Chunks(ctx, "p1", "doc-a")
	require.NoError(t, err)
	assert.Empty(t, chunks)

	count, err := history.Count(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	// 重复删除返回 not found
	err = docs.Delete(ctx, "p1", "doc-a")
	assert.True(t, errno.IsCode(err, errno.ErrDocumentNotFound.Code))
}

func TestDocumentStoreCountByProject(t *testing.T) {
	db, err := NewTestDB()
	require.NoError(t, err)
	docs := NewDocumentStore(db)
	ctx := context.Background()

	require.NoError(t, docs.Save(ctx, &model.Document{ID: "d1", ProjectID: "p1", Name: "a", MediaType: "text/plain", Status: model.DocStatusIndexed}))
	require.NoError(t, docs.Save(ctx, &model.Document{ID: "d2", ProjectID: "p1", Name: "b", MediaType: "text/plain", Status: model.DocStatusIndexed}))
	require.NoError(t, docs.Save(ctx, &model.Document{ID: "d3", ProjectID: "p1", Name: "c", MediaType: "text/plain", Status: model.DocStatusFailed}))

	counts, err := docs.CountByProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[model.DocStatusIndexed])
	assert.Equal(t, int64(1), counts[model.DocStatusFailed])
}

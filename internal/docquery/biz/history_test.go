package biz

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docquery/internal/docquery/store"
	errno "github.com/kart-io/docquery/pkg/errors"
)

func newTestTableHistory(t *testing.T) *TableHistory {
	t.Helper()
	db, err := store.NewTestDB()
	require.NoError(t, err)
	return NewTableHistory(store.NewHistoryStore(db))
}

func TestTableHistoryComputeOnce(t *testing.T) {
	h := newTestTableHistory(t)
	ctx := context.Background()
	var computes atomic.Int64

	compute := func(ctx context.Context) (string, error) {
		computes.Add(1)
		return "42", nil
	}

	entry, created, err := h.GetOrCreate(ctx, "p1", "doc-a", "employee count?", compute)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "42", entry.Answer)
	assert.NotEmpty(t, entry.ID)
	assert.NotEmpty(t, entry.Title)

	again, created, err := h.GetOrCreate(ctx, "p1", "doc-a", "employee count?", compute)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, entry.ID, again.ID)
	assert.EqualValues(t, 1, computes.Load())
}

func TestTableHistoryDistinctTriples(t *testing.T) {
	h := newTestTableHistory(t)
	ctx := context.Background()
	compute := func(ctx context.Context) (string, error) { return "v", nil }

	_, created, err := h.GetOrCreate(ctx, "p1", "doc-a", "prompt", compute)
	require.NoError(t, err)
	assert.True(t, created)

	// 不同文档与不同提示各自成新条目
	_, created, err = h.GetOrCreate(ctx, "p1", "doc-b", "prompt", compute)
	require.NoError(t, err)
	assert.True(t, created)

	_, created, err = h.GetOrCreate(ctx, "p1", "doc-a", "other prompt", compute)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestTableHistoryComputeError(t *testing.T) {
	h := newTestTableHistory(t)
	wantErr := errors.New("generation failed")

	_, _, err := h.GetOrCreate(context.Background(), "p1", "doc-a", "prompt",
		func(ctx context.Context) (string, error) { return "", wantErr })
	require.Error(t, err)
	assert.True(t, errors.Is(err, wantErr))

	// 失败不落库, 下次重新计算
	entry, created, err := h.GetOrCreate(context.Background(), "p1", "doc-a", "prompt",
		func(ctx context.Context) (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "ok", entry.Answer)
}

func TestTableHistoryConcurrentSingleWinner(t *testing.T) {
	h := newTestTableHistory(t)
	ctx := context.Background()

	const workers = 8
	var computes, inserted atomic.Int64
	ids := make([]string, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entry, created, err := h.GetOrCreate(ctx, "p1", "doc-a", "same prompt",
				func(ctx context.Context) (string, error) {
					computes.Add(1)
					return "answer", nil
				})
			if !assert.NoError(t, err) {
				return
			}
			if created {
				inserted.Add(1)
			}
			ids[i] = entry.ID
		}(i)
	}
	wg.Wait()

	// 恰好一个写入者胜出, 所有调用方看到同一条记录
	assert.EqualValues(t, 1, inserted.Load())
	for i := 1; i < workers; i++ {
		assert.Equal(t, ids[0], ids[i])
	}

	entries, err := h.List(ctx, "p1", "doc-a", 10, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestTableHistoryFindByPrompt(t *testing.T) {
	h := newTestTableHistory(t)
	ctx := context.Background()
	compute := func(ctx context.Context) (string, error) { return "42", nil }

	entry, _, err := h.GetOrCreate(ctx, "p1", "doc-a", "total revenue", compute)
	require.NoError(t, err)

	// 原始提示语即查询键, 无需记录 ID
	found, err := h.Find(ctx, "p1", "doc-a", "total revenue")
	require.NoError(t, err)
	assert.Equal(t, entry.ID, found.ID)
	assert.Equal(t, "42", found.Answer)

	_, err = h.Find(ctx, "p1", "doc-a", "never asked")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errno.ErrHistoryNotFound))
}

func TestTableHistoryGetNotFound(t *testing.T) {
	h := newTestTableHistory(t)

	_, err := h.Get(context.Background(), "p1", "missing-id")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errno.ErrHistoryNotFound))
}

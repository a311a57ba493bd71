package eval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docquery/internal/model"
	"github.com/kart-io/docquery/pkg/infra/pool"
)

// fakeTarget 按样例 ID 返回预置的检索结果与答案.
type fakeTarget struct {
	retrieved map[string][]string
	answers   map[string]string
	failOn    string
}

func (f *fakeTarget) Retrieve(_ context.Context, _, question string, _ []string) ([]string, error) {
	if f.failOn != "" && question == f.failOn {
		return nil, errors.New("retrieval backend down")
	}
	return f.retrieved[question], nil
}

func (f *fakeTarget) Answer(_ context.Context, _, question string, _ []string) (*model.QueryResult, error) {
	if f.failOn != "" && question == f.failOn {
		return nil, errors.New("retrieval backend down")
	}
	return &model.QueryResult{Answer: f.answers[question]}, nil
}

func newEvalPool(t *testing.T) *pool.Pool {
	t.Helper()
	p, err := pool.NewPool("eval-test", pool.EvalPool, &pool.Config{Capacity: 4})
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

func TestOverlapScorer(t *testing.T) {
	s := NewOverlapScorer()

	tests := []struct {
		name      string
		answer    string
		reference string
		want      float64
	}{
		{"identical", "the revenue was 10M", "the revenue was 10M", 1},
		{"case and punctuation ignored", "The Revenue, was 10M!", "the revenue was 10m", 1},
		{"disjoint", "completely unrelated words", "the revenue was 10M", 0},
		{"both empty", "", "", 1},
		{"answer empty", "", "reference", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Score(context.Background(), "q", tt.answer, tt.reference)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestOverlapScorerPartial(t *testing.T) {
	s := NewOverlapScorer()

	// 2 个重合词元, 答案 2 词, 参考 4 词: p=1, r=0.5, f1=2/3
	got, err := s.Score(context.Background(), "q", "revenue 10m", "the revenue was 10m")
	require.NoError(t, err)
	assert.InDelta(t, 2.0/3.0, got, 1e-9)
}

func TestParseModelScore(t *testing.T) {
	tests := []struct {
		reply string
		want  float64
	}{
		{"8", 0.8},
		{"10", 1},
		{"0", 0},
		{"Score: 7.5", 0.75},
		{"I would rate this 9 out of 10", 0.9},
	}
	for _, tt := range tests {
		got, err := parseScore(tt.reply)
		require.NoError(t, err)
		assert.InDelta(t, tt.want, got, 1e-9)
	}

	_, err := parseScore("no idea")
	assert.Error(t, err)
}

func TestEvaluatorRun(t *testing.T) {
	target := &fakeTarget{
		retrieved: map[string][]string{
			"q1": {"doc-a"},
			"q2": {"doc-a", "doc-x"},
			"q3": {"doc-c"},
			"q4": {"doc-d"},
		},
		answers: map[string]string{
			"q1": "the revenue was 10M",
			"q2": "42 employees",
			"q3": "unrelated nonsense",
			"q4": "founded in 1999",
		},
		failOn: "q5",
	}

	examples := []Example{
		{ID: "ex-1", Question: "q1", ExpectedAnswer: "the revenue was 10M", ExpectedSources: []string{"doc-a"}, Category: "finance"},
		{ID: "ex-2", Question: "q2", ExpectedAnswer: "42 employees", ExpectedSources: []string{"doc-a", "doc-b"}, Category: "hr"},
		{ID: "ex-3", Question: "q3", ExpectedAnswer: "the answer is blue", ExpectedSources: []string{"doc-c"}, Category: "finance"},
		{ID: "ex-4", Question: "q4", ExpectedAnswer: "founded in 1999", ExpectedSources: []string{"doc-d"}},
		{ID: "ex-5", Question: "q5", ExpectedAnswer: "never reached"},
	}

	report, err := NewEvaluator(target, NewOverlapScorer(), newEvalPool(t)).Run(context.Background(), examples)
	require.NoError(t, err)

	assert.Equal(t, 5, report.Total)
	assert.Equal(t, 1, report.Failed)
	assert.InDelta(t, 0.2, report.FailureRate, 1e-9)

	require.Len(t, report.Results, 5)
	// 结果顺序与样例顺序一致
	assert.Equal(t, "ex-1", report.Results[0].ExampleID)
	assert.InDelta(t, 1, report.Results[0].F1, 1e-9)
	assert.InDelta(t, 1, report.Results[0].AnswerScore, 1e-9)

	// ex-2: 命中 doc-a, 检出 2, 期望 2: p=0.5, r=0.5, f1=0.5
	assert.InDelta(t, 0.5, report.Results[1].Precision, 1e-9)
	assert.InDelta(t, 0.5, report.Results[1].Recall, 1e-9)
	assert.InDelta(t, 0.5, report.Results[1].F1, 1e-9)

	// ex-3: 检索命中但答案毫无重合
	assert.InDelta(t, 1, report.Results[2].F1, 1e-9)
	assert.InDelta(t, 0, report.Results[2].AnswerScore, 1e-9)

	assert.True(t, report.Results[4].Failed)
	assert.NotEmpty(t, report.Results[4].Error)

	// 失败样例不参与均值: 4 个成功样例的 F1 均值
	wantF1 := (1.0 + 0.5 + 1.0 + 1.0) / 4
	assert.InDelta(t, wantF1, report.F1, 1e-9)

	// 类别桶只聚合有类别的成功样例
	require.Len(t, report.Categories, 2)
	assert.Equal(t, "finance", report.Categories[0].Category)
	assert.Equal(t, 2, report.Categories[0].Count)
	assert.Equal(t, "hr", report.Categories[1].Category)
	assert.Equal(t, 1, report.Categories[1].Count)
}

func TestEvaluatorUnlabeledSourcesSkipRetrievalMeans(t *testing.T) {
	target := &fakeTarget{
		retrieved: map[string][]string{
			"q1": {"doc-a"},
			"q2": {"doc-z"},
		},
		answers: map[string]string{
			"q1": "alpha",
			"q2": "beta",
		},
	}

	examples := []Example{
		{ID: "ex-1", Question: "q1", ExpectedAnswer: "alpha", ExpectedSources: []string{"doc-a"}},
		{ID: "ex-2", Question: "q2", ExpectedAnswer: "beta"},
	}

	report, err := NewEvaluator(target, NewOverlapScorer(), newEvalPool(t)).Run(context.Background(), examples)
	require.NoError(t, err)

	assert.True(t, report.Results[0].SourcesLabeled)
	assert.False(t, report.Results[1].SourcesLabeled)

	// 未标注期望来源的样例不拉低检索均值
	assert.InDelta(t, 1, report.Precision, 1e-9)
	assert.InDelta(t, 1, report.Recall, 1e-9)
	assert.InDelta(t, 1, report.F1, 1e-9)

	// 答案得分仍对全部成功样例取均值
	assert.InDelta(t, 1, report.AnswerScore, 1e-9)
}

func TestEvaluatorEmptyExamples(t *testing.T) {
	report, err := NewEvaluator(&fakeTarget{}, NewOverlapScorer(), newEvalPool(t)).
		Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Total)
	assert.Zero(t, report.FailureRate)
}

func TestRetrievalMetricsDedup(t *testing.T) {
	// 重复检出同一文档只计一次
	p, r, f1 := retrievalMetrics([]string{"doc-a", "doc-a", "doc-b"}, []string{"doc-a"})
	assert.InDelta(t, 0.5, p, 1e-9)
	assert.InDelta(t, 1, r, 1e-9)
	assert.InDelta(t, 2.0/3.0, f1, 1e-9)
}

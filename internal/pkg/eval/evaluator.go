package eval

import (
	"context"
	"sort"
	"sync"

	"github.com/kart-io/logger"

	"github.com/kart-io/docquery/internal/model"
	"github.com/kart-io/docquery/pkg/infra/pool"
)

// Target 是被评测的问答系统.
type Target interface {
	// Retrieve 返回检索命中的文档 ID 列表.
	Retrieve(ctx context.Context, projectID, question string, documentIDs []string) ([]string, error)
	// Answer 返回最终答案.
	Answer(ctx context.Context, projectID, question string, documentIDs []string) (*model.QueryResult, error)
}

// Example 单条标注样例.
type Example struct {
	ID              string   `json:"id"`
	ProjectID       string   `json:"project_id"`
	Question        string   `json:"question"`
	DocumentIDs     []string `json:"document_ids,omitempty"`
	ExpectedAnswer  string   `json:"expected_answer"`
	ExpectedSources []string `json:"expected_sources,omitempty"`
	Category        string   `json:"category,omitempty"`
}

// ExampleResult 单条样例的评测结果. 未标注期望来源的样例
// SourcesLabeled 为 false, 其检索指标不计入均值.
type ExampleResult struct {
	ExampleID      string  `json:"example_id"`
	Category       string  `json:"category,omitempty"`
	Answer         string  `json:"answer,omitempty"`
	AnswerScore    float64 `json:"answer_score"`
	SourcesLabeled bool    `json:"sources_labeled,omitempty"`
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	F1             float64 `json:"f1"`
	Failed         bool    `json:"failed,omitempty"`
	Error          string  `json:"error,omitempty"`
}

// CategoryStats 按类别聚合的指标.
type CategoryStats struct {
	Category    string  `json:"category"`
	Count       int     `json:"count"`
	AnswerScore float64 `json:"answer_score"`
	F1          float64 `json:"f1"`
}

// Report 整体评测报告.
type Report struct {
	Total       int             `json:"total"`
	Failed      int             `json:"failed"`
	FailureRate float64         `json:"failure_rate"`
	AnswerScore float64         `json:"answer_score"`
	Precision   float64         `json:"precision"`
	Recall      float64         `json:"recall"`
	F1          float64         `json:"f1"`
	Scorer      string          `json:"scorer"`
	Categories  []CategoryStats `json:"categories,omitempty"`
	Results     []ExampleResult `json:"results"`
}

// Evaluator 批量执行评测样例. 单条样例失败不中断整批,
// 失败样例计入失败率且不参与均值.
type Evaluator struct {
	target Target
	scorer Scorer
	pool   *pool.Pool
}

// NewEvaluator 创建评测器.
func NewEvaluator(target Target, scorer Scorer, p *pool.Pool) *Evaluator {
	return &Evaluator{target: target, scorer: scorer, pool: p}
}

// Run 评测全部样例并汇总. 结果顺序与样例顺序一致.
func (e *Evaluator) Run(ctx context.Context, examples []Example) (*Report, error) {
	results := make([]ExampleResult, len(examples))
	var wg sync.WaitGroup
	for i := range examples {
		wg.Add(1)
		i := i
		if err := e.pool.Submit(func() {
			defer wg.Done()
			results[i] = e.runOne(ctx, &examples[i])
		}); err != nil {
			results[i] = ExampleResult{
				ExampleID: examples[i].ID,
				Category:  examples[i].Category,
				Failed:    true,
				Error:     err.Error(),
			}
			wg.Done()
		}
	}
	wg.Wait()

	return e.aggregate(results), nil
}

// runOne 评测单条样例.
func (e *Evaluator) runOne(ctx context.Context, ex *Example) ExampleResult {
	result := ExampleResult{ExampleID: ex.ID, Category: ex.Category}

	retrieved, err := e.target.Retrieve(ctx, ex.ProjectID, ex.Question, ex.DocumentIDs)
	if err != nil {
		result.Failed = true
		result.Error = err.Error()
		return result
	}
	if len(ex.ExpectedSources) > 0 {
		result.SourcesLabeled = true
		result.Precision, result.Recall, result.F1 = retrievalMetrics(retrieved, ex.ExpectedSources)
	}

	answer, err := e.target.Answer(ctx, ex.ProjectID, ex.Question, ex.DocumentIDs)
	if err != nil {
		result.Failed = true
		result.Error = err.Error()
		return result
	}
	result.Answer = answer.Answer

	score, err := e.scorer.Score(ctx, ex.Question, answer.Answer, ex.ExpectedAnswer)
	if err != nil {
		logger.Warnw("answer scoring failed",
			"example_id", ex.ID,
			"scorer", e.scorer.Name(),
			"error", err.Error(),
		)
		result.Failed = true
		result.Error = err.Error()
		return result
	}
	result.AnswerScore = score
	return result
}

// aggregate 汇总整批结果.
func (e *Evaluator) aggregate(results []ExampleResult) *Report {
	report := &Report{
		Total:   len(results),
		Scorer:  e.scorer.Name(),
		Results: results,
	}

	byCategory := make(map[string]*CategoryStats)
	labeledByCategory := make(map[string]int)
	ok := 0
	labeled := 0
	for _, res := range results {
		if res.Failed {
			report.Failed++
			continue
		}
		ok++
		report.AnswerScore += res.AnswerScore
		if res.SourcesLabeled {
			labeled++
			report.Precision += res.Precision
			report.Recall += res.Recall
			report.F1 += res.F1
		}

		if res.Category != "" {
			stats, exists := byCategory[res.Category]
			if !exists {
				stats = &CategoryStats{Category: res.Category}
				byCategory[res.Category] = stats
			}
			stats.Count++
			stats.AnswerScore += res.AnswerScore
			if res.SourcesLabeled {
				labeledByCategory[res.Category]++
				stats.F1 += res.F1
			}
		}
	}

	if report.Total > 0 {
		report.FailureRate = float64(report.Failed) / float64(report.Total)
	}
	if ok > 0 {
		report.AnswerScore /= float64(ok)
	}
	// 检索指标只在标注了期望来源的样例上求均值
	if labeled > 0 {
		n := float64(labeled)
		report.Precision /= n
		report.Recall /= n
		report.F1 /= n
	}

	for _, stats := range byCategory {
		stats.AnswerScore /= float64(stats.Count)
		if n := labeledByCategory[stats.Category]; n > 0 {
			stats.F1 /= float64(n)
		}
		report.Categories = append(report.Categories, *stats)
	}
	sort.Slice(report.Categories, func(i, j int) bool {
		return report.Categories[i].Category < report.Categories[j].Category
	})

	return report
}

// retrievalMetrics 计算检索文档集合相对期望来源的准确率/召回率/F1.
func retrievalMetrics(retrieved, expected []string) (precision, recall, f1 float64) {
	if len(expected) == 0 {
		return 0, 0, 0
	}
	if len(retrieved) == 0 {
		return 0, 0, 0
	}

	want := make(map[string]bool, len(expected))
	for _, id := range expected {
		want[id] = true
	}
	seen := make(map[string]bool, len(retrieved))
	hit := 0
	for _, id := range retrieved {
		if seen[id] {
			continue
		}
		seen[id] = true
		if want[id] {
			hit++
		}
	}

	precision = float64(hit) / float64(len(seen))
	recall = float64(hit) / float64(len(expected))
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return precision, recall, f1
}

// Package eval 提供离线评测: 对标注样例批量执行检索与问答,
// 计算检索指标与答案质量分.
package eval

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kart-io/docquery/internal/pkg/textutil"
	"github.com/kart-io/docquery/pkg/llm"
)

// Scorer 对生成答案与参考答案打分, 返回 [0,1] 分值.
type Scorer interface {
	Score(ctx context.Context, question, answer, reference string) (float64, error)
	Name() string
}

// OverlapScorer 基于词元重合度的 F1 打分, 无外部依赖.
type OverlapScorer struct{}

// NewOverlapScorer 创建词元重合打分器.
func NewOverlapScorer() *OverlapScorer { return &OverlapScorer{} }

// Name 打分器名称.
func (s *OverlapScorer) Name() string { return "overlap" }

// Score 计算答案与参考答案的词元级 F1.
func (s *OverlapScorer) Score(_ context.Context, _, answer, reference string) (float64, error) {
	ansTokens := textutil.Tokenize(answer)
	refTokens := textutil.Tokenize(reference)
	if len(ansTokens) == 0 || len(refTokens) == 0 {
		if len(ansTokens) == 0 && len(refTokens) == 0 {
			return 1, nil
		}
		return 0, nil
	}

	refCounts := make(map[string]int, len(refTokens))
	for _, t := range refTokens {
		refCounts[t]++
	}
	overlap := 0
	for _, t := range ansTokens {
		if refCounts[t] > 0 {
			refCounts[t]--
			overlap++
		}
	}
	if overlap == 0 {
		return 0, nil
	}

	precision := float64(overlap) / float64(len(ansTokens))
	recall := float64(overlap) / float64(len(refTokens))
	return 2 * precision * recall / (precision + recall), nil
}

const modelScorerPrompt = `You are grading an answer against a reference answer.
Rate how well the answer matches the reference on a scale from 0 to 10,
where 10 means fully equivalent and 0 means completely wrong.
Reply with a single number only.`

// ModelScorer 使用生成模型对答案打分.
type ModelScorer struct {
	provider llm.ChatProvider
}

// NewModelScorer 创建模型打分器.
func NewModelScorer(provider llm.ChatProvider) *ModelScorer {
	return &ModelScorer{provider: provider}
}

// Name 打分器名称.
func (s *ModelScorer) Name() string { return "model" }

// Score 让模型输出 0-10 分并归一化到 [0,1].
func (s *ModelScorer) Score(ctx context.Context, question, answer, reference string) (float64, error) {
	prompt := fmt.Sprintf("Question: %s\n\nReference answer: %s\n\nCandidate answer: %s\n\nScore:",
		question, reference, answer)
	reply, err := s.provider.Generate(ctx, prompt, modelScorerPrompt)
	if err != nil {
		return 0, err
	}
	return parseScore(reply)
}

// parseScore 从模型回复中解析首个数字并归一化.
func parseScore(reply string) (float64, error) {
	fields := strings.FieldsFunc(strings.TrimSpace(reply), func(r rune) bool {
		return (r < '0' || r > '9') && r != '.'
	})
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			continue
		}
		if v < 0 {
			v = 0
		}
		if v > 10 {
			v = 10
		}
		return v / 10, nil
	}
	return 0, fmt.Errorf("no numeric score in model reply %q", reply)
}

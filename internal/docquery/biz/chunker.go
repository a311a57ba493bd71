package biz

import (
	"unicode"

	"github.com/kart-io/docquery/internal/model"
)

// ChunkerConfig 切分配置, 单位为 Unicode 字符.
type ChunkerConfig struct {
	// Size 每个片段的最大长度.
	Size int
	// Overlap 相邻片段的重叠长度, 必须小于 Size.
	Overlap int
}

// Chunker 将抽取出的纯文本切分为带位置信息的重叠片段.
// 优先在段落边界切分, 超长段落退化为句子边界,
// 超长句子按固定宽度硬切.
type Chunker struct {
	config ChunkerConfig
}

// NewChunker 创建切分器. 非法配置会被修正为最接近的合法值.
func NewChunker(config ChunkerConfig) *Chunker {
	if config.Size <= 0 {
		config.Size = 512
	}
	if config.Overlap < 0 {
		config.Overlap = 0
	}
	if config.Overlap >= config.Size {
		config.Overlap = config.Size - 1
	}
	return &Chunker{config: config}
}

// span 原文中的一段连续区间, 单位为 rune 偏移.
type span struct {
	start, end int
}

func (s span) len() int { return s.end - s.start }

// Split 切分文本. 空文本返回空切片; 序号连续, 位置为 rune 偏移.
// 相邻的段落/句子贪心合并到同一片段, 直到再放入下一个单元会超出
// 最大长度. 片段覆盖原文的连续区间, 去掉每个片段与前一片段重叠的
// 前缀后按序拼接可还原原文.
func (c *Chunker) Split(text string) []model.Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	// 单元长度上限取 Size-Overlap, 保证叠加重叠前缀后不超过 Size.
	step := c.config.Size - c.config.Overlap
	var units []span
	for _, p := range paragraphSpans(runes) {
		if p.len() <= step {
			units = append(units, p)
			continue
		}
		for _, sent := range sentenceSpans(runes, p) {
			if sent.len() <= step {
				units = append(units, sent)
				continue
			}
			units = append(units, windowSpans(sent, step)...)
		}
	}

	var chunks []model.Chunk
	group := units[0]
	flush := func() {
		start := group.start - c.config.Overlap
		if start < 0 {
			start = 0
		}
		chunks = append(chunks, model.Chunk{
			Ordinal:  len(chunks),
			Content:  string(runes[start:group.end]),
			StartPos: start,
			EndPos:   group.end,
		})
	}
	for _, u := range units[1:] {
		if u.end-group.start <= step {
			group.end = u.end
			continue
		}
		flush()
		group = u
	}
	flush()
	return chunks
}

// Join 按位置信息还原原文, 是 Split 的逆操作.
func (c *Chunker) Join(chunks []model.Chunk) string {
	if len(chunks) == 0 {
		return ""
	}

	var runes []rune
	for _, chunk := range chunks {
		content := []rune(chunk.Content)
		// 跳过与已拼接部分重叠的前缀
		skip := len(runes) - chunk.StartPos
		if skip < 0 {
			skip = 0
		}
		if skip > len(content) {
			skip = len(content)
		}
		runes = append(runes, content[skip:]...)
	}
	return string(runes)
}

// paragraphSpans 按空行切分段落. 段落间的分隔符归入前一段落,
// 使所有区间首尾相接并完整覆盖原文.
func paragraphSpans(runes []rune) []span {
	var spans []span
	start := 0
	i := 0
	for i < len(runes) {
		if runes[i] != '\n' {
			i++
			continue
		}
		j := i
		newlines := 0
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			if runes[j] == '\n' {
				newlines++
			}
			j++
		}
		if newlines >= 2 && j < len(runes) {
			spans = append(spans, span{start, j})
			start = j
		}
		i = j
	}
	if start < len(runes) {
		spans = append(spans, span{start, len(runes)})
	}
	return spans
}

// sentenceSpans 在段落内按句末标点切分, 句末的空白归入前一句.
func sentenceSpans(runes []rune, p span) []span {
	var spans []span
	start := p.start
	for i := p.start; i < p.end; i++ {
		if !isSentenceEnd(runes[i]) {
			continue
		}
		j := i + 1
		for j < p.end && unicode.IsSpace(runes[j]) {
			j++
		}
		if j < p.end {
			spans = append(spans, span{start, j})
			start = j
		}
		i = j - 1
	}
	if start < p.end {
		spans = append(spans, span{start, p.end})
	}
	return spans
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？', '；', ';':
		return true
	}
	return false
}

// windowSpans 将超长句子按固定宽度硬切.
func windowSpans(s span, width int) []span {
	var spans []span
	for start := s.start; start < s.end; start += width {
		end := start + width
		if end > s.end {
			end = s.end
		}
		spans = append(spans, span{start, end})
	}
	return spans
}

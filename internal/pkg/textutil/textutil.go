// Package textutil 提供文档问答相关的文本处理工具函数.
package textutil

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// CosineSimilarity 计算两个向量的余弦相似度.
// 返回值范围为 [-1, 1], 1 表示完全相同, -1 表示完全相反.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// NormalizeCosineSimilarity 将余弦相似度归一化到 [0, 1] 范围.
func NormalizeCosineSimilarity(similarity float64) float64 {
	return (similarity + 1) / 2
}

// HashString 计算字符串的 sha256 哈希值.
func HashString(s string) string {
	hash := sha256.Sum256([]byte(s))
	return hex.EncodeToString(hash[:])
}

// TruncateString 截断字符串到指定的最大 Unicode 字符数.
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen])
}

var spaceRegex = regexp.MustCompile(`[ \t\r\f]+`)

// NormalizeSpace 折叠连续空白, 保留换行, 去除首尾空白.
func NormalizeSpace(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(spaceRegex.ReplaceAllString(line, " "))
		out = append(out, line)
	}
	result := strings.Join(out, "\n")
	// 连续空行折叠为一个
	for strings.Contains(result, "\n\n\n") {
		result = strings.ReplaceAll(result, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(result)
}

// ShortTitle 从提示语派生简短标题: 取前 maxRunes 个字符, 在词边界截断.
func ShortTitle(prompt string, maxRunes int) string {
	title := strings.TrimSpace(strings.ReplaceAll(prompt, "\n", " "))
	if utf8.RuneCountInString(title) <= maxRunes {
		return title
	}

	runes := []rune(title)
	cut := maxRunes
	// 向前寻找最近的空格, 避免截断单词
	for i := maxRunes; i > maxRunes/2; i-- {
		if unicode.IsSpace(runes[i-1]) {
			cut = i - 1
			break
		}
	}
	return strings.TrimSpace(string(runes[:cut])) + "…"
}

// Tokenize 小写分词, 去除标点, 用于答案重合度计算.
func Tokenize(s string) []string {
	var tokens []string
	var current []rune
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			current = append(current, r)
			continue
		}
		if len(current) > 0 {
			tokens = append(tokens, string(current))
			current = current[:0]
		}
	}
	if len(current) > 0 {
		tokens = append(tokens, string(current))
	}
	return tokens
}

package textutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 0, 0}, []float32{1, 0, 0}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)

	// 长度不一致或零向量返回 0
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{1}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 0}))
}

func TestNormalizeCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, NormalizeCosineSimilarity(1), 1e-9)
	assert.InDelta(t, 0.5, NormalizeCosineSimilarity(0), 1e-9)
	assert.InDelta(t, 0.0, NormalizeCosineSimilarity(-1), 1e-9)
}

func TestHashString(t *testing.T) {
	h1 := HashString("hello")
	h2 := HashString("hello")
	h3 := HashString("hello ")

	assert.Len(t, h1, 64)
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "abc", TruncateString("abc", 10))
	assert.Equal(t, "ab", TruncateString("abcdef", 2))
	assert.Equal(t, "你好", TruncateString("你好世界", 2))
	assert.Equal(t, "", TruncateString("abc", 0))
}

func TestNormalizeSpace(t *testing.T) {
	in := "  hello   world \t\r\n\n\n\nnext  line  "
	assert.Equal(t, "hello world\n\nnext line", NormalizeSpace(in))
}

func TestShortTitle(t *testing.T) {
	assert.Equal(t, "short prompt", ShortTitle("short prompt", 60))

	long := strings.Repeat("word ", 30)
	title := ShortTitle(long, 40)
	assert.True(t, strings.HasSuffix(title, "…"))
	assert.LessOrEqual(t, len([]rune(title)), 41)
	assert.NotContains(t, title, "  ")
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"the", "answer", "is", "42"}, Tokenize("The answer, is: 42!"))
	assert.Empty(t, Tokenize("---"))
}

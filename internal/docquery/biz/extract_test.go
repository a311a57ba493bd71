package biz

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errno "github.com/kart-io/docquery/pkg/errors"
)

func TestExtractPlainText(t *testing.T) {
	e := NewExtractor()

	text, err := e.Extract("text/plain", []byte("hello   world\n\n\n\nsecond  paragraph"))
	require.NoError(t, err)
	assert.Equal(t, "hello world\n\nsecond paragraph", text)
}

func TestExtractMediaTypeWithParams(t *testing.T) {
	e := NewExtractor()

	text, err := e.Extract("text/plain; charset=utf-8", []byte("content"))
	require.NoError(t, err)
	assert.Equal(t, "content", text)
}

func TestExtractUnsupportedType(t *testing.T) {
	e := NewExtractor()

	_, err := e.Extract("image/png", []byte{0x89, 0x50})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errno.ErrUnsupportedFormat))
}

func TestExtractEmptyPayload(t *testing.T) {
	e := NewExtractor()

	_, err := e.Extract("text/plain", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errno.ErrExtractionFailed))

	// 未注册的类型仍优先报不支持
	_, err = e.Extract("image/png", nil)
	assert.True(t, errors.Is(err, errno.ErrUnsupportedFormat))
}

func TestExtractInvalidUTF8(t *testing.T) {
	e := NewExtractor()

	_, err := e.Extract("text/plain", []byte{0xff, 0xfe, 0xfd})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errno.ErrExtractionFailed))
}

func TestExtractCSV(t *testing.T) {
	e := NewExtractor()

	data := []byte("name,amount\nacme,100\nglobex,200")
	text, err := e.Extract("text/csv", data)
	require.NoError(t, err)
	assert.Equal(t, "name | amount\nacme | 100\nglobex | 200", text)
}

func TestExtractCSVMalformed(t *testing.T) {
	e := NewExtractor()

	_, err := e.Extract("text/csv", []byte("a,\"unterminated"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errno.ErrExtractionFailed))
}

func TestExtractDOCX(t *testing.T) {
	e := NewExtractor()

	doc := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>first paragraph</w:t></w:r></w:p>
    <w:p><w:r><w:t>second</w:t></w:r><w:r><w:t> paragraph</w:t></w:r></w:p>
  </w:body>
</w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte(doc))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	text, err := e.Extract(
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		buf.Bytes(),
	)
	require.NoError(t, err)
	assert.Equal(t, "first paragraph\nsecond paragraph", text)
}

func TestExtractDOCXMissingDocumentXML(t *testing.T) {
	e := NewExtractor()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err := zw.Create("word/styles.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = e.Extract(
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		buf.Bytes(),
	)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errno.ErrExtractionFailed))
}

func TestExtractorRegisterCustom(t *testing.T) {
	e := NewExtractor()
	assert.False(t, e.Supported("application/x-custom"))

	e.Register("application/x-custom", func(data []byte) (string, error) {
		return "custom:" + string(data), nil
	})
	assert.True(t, e.Supported("application/x-custom"))

	text, err := e.Extract("application/x-custom", []byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, "custom:payload", text)
}

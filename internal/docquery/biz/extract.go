package biz

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/xml"
	"io"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/dslipak/pdf"

	"github.com/kart-io/docquery/internal/pkg/textutil"
	errno "github.com/kart-io/docquery/pkg/errors"
)

// ExtractFunc 将原始字节转换为纯文本.
type ExtractFunc func(data []byte) (string, error)

// Extractor 按媒体类型分发内容抽取策略.
type Extractor struct {
	strategies map[string]ExtractFunc
}

// NewExtractor 创建抽取器并注册内置策略.
func NewExtractor() *Extractor {
	e := &Extractor{strategies: make(map[string]ExtractFunc)}

	e.Register("text/plain", extractPlainText)
	e.Register("text/markdown", extractPlainText)
	e.Register("text/csv", extractCSV)
	e.Register("application/pdf", extractPDF)
	e.Register("application/vnd.openxmlformats-officedocument.wordprocessingml.document", extractDOCX)
	return e
}

// Register 注册或覆盖某个媒体类型的抽取策略.
func (e *Extractor) Register(mediaType string, fn ExtractFunc) {
	e.strategies[mediaType] = fn
}

// Supported 判断媒体类型是否受支持.
func (e *Extractor) Supported(mediaType string) bool {
	_, ok := e.strategies[normalizeMediaType(mediaType)]
	return ok
}

// SupportedTypes 返回全部受支持的媒体类型.
func (e *Extractor) SupportedTypes() []string {
	types := make([]string, 0, len(e.strategies))
	for mt := range e.strategies {
		types = append(types, mt)
	}
	return types
}

// Extract 抽取纯文本. 未注册的媒体类型返回 ErrUnsupportedFormat,
// 空内容或内容损坏返回 ErrExtractionFailed.
func (e *Extractor) Extract(mediaType string, data []byte) (string, error) {
	fn, ok := e.strategies[normalizeMediaType(mediaType)]
	if !ok {
		return "", errno.ErrUnsupportedFormat.WithMessagef("unsupported media type %q", mediaType)
	}
	if len(data) == 0 {
		return "", errno.ErrExtractionFailed.WithMessage("document payload is empty")
	}

	text, err := fn(data)
	if err != nil {
		return "", errno.ErrExtractionFailed.WithCause(err)
	}
	return textutil.NormalizeSpace(text), nil
}

// normalizeMediaType 去除参数并小写, "text/plain; charset=utf-8" -> "text/plain".
func normalizeMediaType(mediaType string) string {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(mediaType))
	}
	return mt
}

func extractPlainText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", errno.ErrExtractionFailed.WithMessage("content is not valid UTF-8")
	}
	return string(data), nil
}

// extractCSV 将每行渲染为 " | " 分隔的文本, 保留表格行结构.
func extractCSV(data []byte) (string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1 // 允许不等长行

	var sb strings.Builder
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		sb.WriteString(strings.Join(record, " | "))
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// extractDOCX 解包 OOXML 容器并遍历 word/document.xml 的文本节点.
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var docXML io.ReadCloser
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docXML, err = f.Open()
			if err != nil {
				return "", err
			}
			break
		}
	}
	if docXML == nil {
		return "", errno.ErrExtractionFailed.WithMessage("word/document.xml not found")
	}
	defer docXML.Close()

	decoder := xml.NewDecoder(docXML)
	var sb strings.Builder
	var inText bool
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}

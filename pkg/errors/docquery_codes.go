package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// 文档问答服务错误码 (21xxxxx).
var (
	// ErrUnsupportedFormat 不支持的文档格式.
	ErrUnsupportedFormat = New(MakeCode(ServiceDocquery, CategoryValidation, 1), http.StatusBadRequest, codes.InvalidArgument,
		"Unsupported document format", "不支持的文档格式")

	// ErrExtractionFailed 文档内容抽取失败 (格式受支持但内容损坏).
	ErrExtractionFailed = New(MakeCode(ServiceDocquery, CategoryPipeline, 1), http.StatusUnprocessableEntity, codes.InvalidArgument,
		"Document extraction failed", "文档内容抽取失败")

	// ErrChunkingFailed 文档切分失败.
	ErrChunkingFailed = New(MakeCode(ServiceDocquery, CategoryPipeline, 2), http.StatusUnprocessableEntity, codes.Internal,
		"Document chunking failed", "文档切分失败")

	// ErrIndexFailed 向量索引写入失败.
	ErrIndexFailed = New(MakeCode(ServiceDocquery, CategoryPipeline, 3), http.StatusInternalServerError, codes.Internal,
		"Vector index write failed", "向量索引写入失败")

	// ErrEmptyScope 检索范围内没有任何已索引文档.
	ErrEmptyScope = New(MakeCode(ServiceDocquery, CategoryValidation, 2), http.StatusBadRequest, codes.FailedPrecondition,
		"No indexed documents in retrieval scope", "检索范围内没有已索引的文档")

	// ErrNoContext 检索结果为空或全部低于相关性阈值.
	ErrNoContext = New(MakeCode(ServiceDocquery, CategoryNotFound, 1), http.StatusNotFound, codes.NotFound,
		"No relevant context found", "未检索到相关上下文")

	// ErrDocumentNotFound 文档不存在.
	ErrDocumentNotFound = New(MakeCode(ServiceDocquery, CategoryNotFound, 2), http.StatusNotFound, codes.NotFound,
		"Document not found", "文档不存在")

	// ErrHistoryNotFound 表格历史记录不存在.
	ErrHistoryNotFound = New(MakeCode(ServiceDocquery, CategoryNotFound, 3), http.StatusNotFound, codes.NotFound,
		"Table history entry not found", "表格历史记录不存在")

	// ErrEmbeddingService 向量化服务不可用.
	ErrEmbeddingService = New(MakeCode(ServiceDocquery, CategoryUpstream, 1), http.StatusBadGateway, codes.Unavailable,
		"Embedding service unavailable", "向量化服务不可用")

	// ErrGenerationFailed 答案生成失败.
	ErrGenerationFailed = New(MakeCode(ServiceDocquery, CategoryUpstream, 2), http.StatusBadGateway, codes.Unavailable,
		"Answer generation failed", "答案生成失败")

	// ErrGenerationTimeout 答案生成超时.
	ErrGenerationTimeout = New(MakeCode(ServiceDocquery, CategoryTimeout, 1), http.StatusGatewayTimeout, codes.DeadlineExceeded,
		"Answer generation timed out", "答案生成超时")

	// ErrEmbeddingModelMismatch 已索引向量与当前嵌入模型不一致.
	ErrEmbeddingModelMismatch = New(MakeCode(ServiceDocquery, CategoryConflict, 1), http.StatusConflict, codes.FailedPrecondition,
		"Indexed vectors were produced by a different embedding model", "已索引向量与当前嵌入模型不一致")

	// ErrVectorStore 向量存储操作失败.
	ErrVectorStore = New(MakeCode(ServiceDocquery, CategoryUpstream, 3), http.StatusInternalServerError, codes.Internal,
		"Vector store operation failed", "向量存储操作失败")
)

package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// 服务编号.
const (
	// ServiceCommon 通用错误.
	ServiceCommon = 10
	// ServiceDocquery 文档问答服务.
	ServiceDocquery = 21
)

// 错误类别.
const (
	CategorySuccess    = 0  // 成功
	CategoryInternal   = 1  // 内部错误
	CategoryValidation = 2  // 参数校验
	CategoryNotFound   = 3  // 资源不存在
	CategoryConflict   = 4  // 资源冲突
	CategoryAuth       = 5  // 认证授权
	CategoryRateLimit  = 6  // 限流
	CategoryTimeout    = 7  // 超时
	CategoryUpstream   = 8  // 上游依赖
	CategoryDatabase   = 9  // 数据库
	CategoryCache      = 10 // 缓存
	CategoryPipeline   = 11 // 处理流水线
	CategoryConfig     = 12 // 配置
)

// MakeCode 组装错误码: AABBCCC.
func MakeCode(service, category, seq int) int {
	return service*100000 + category*1000 + seq
}

// ParseCode 拆解错误码.
func ParseCode(code int) (service, category, seq int) {
	return code / 100000, (code / 1000) % 100, code % 1000
}

// 通用错误.
var (
	// OK 成功.
	OK = New(MakeCode(ServiceCommon, CategorySuccess, 0), http.StatusOK, codes.OK,
		"OK", "成功")

	// ErrInternal 未分类的内部错误.
	ErrInternal = New(MakeCode(ServiceCommon, CategoryInternal, 1), http.StatusInternalServerError, codes.Internal,
		"Internal server error", "服务器内部错误")

	// ErrInvalidParam 参数校验失败.
	ErrInvalidParam = New(MakeCode(ServiceCommon, CategoryValidation, 1), http.StatusBadRequest, codes.InvalidArgument,
		"Invalid parameter", "参数错误")

	// ErrNotFound 资源不存在.
	ErrNotFound = New(MakeCode(ServiceCommon, CategoryNotFound, 1), http.StatusNotFound, codes.NotFound,
		"Resource not found", "资源不存在")

	// ErrTimeout 操作超时.
	ErrTimeout = New(MakeCode(ServiceCommon, CategoryTimeout, 1), http.StatusGatewayTimeout, codes.DeadlineExceeded,
		"Operation timed out", "操作超时")

	// ErrDatabase 数据库操作失败.
	ErrDatabase = New(MakeCode(ServiceCommon, CategoryDatabase, 1), http.StatusInternalServerError, codes.Internal,
		"Database error", "数据库错误")

	// ErrCache 缓存操作失败.
	ErrCache = New(MakeCode(ServiceCommon, CategoryCache, 1), http.StatusInternalServerError, codes.Internal,
		"Cache error", "缓存错误")
)

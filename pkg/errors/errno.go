// Package errors 提供统一的业务错误码体系.
//
// 错误码格式为 AABBCCC:
//   - AA: 服务编号 (10-99)
//   - BB: 错误类别 (00-99)
//   - CCC: 类别内序号 (000-999)
//
// 每个 Errno 同时携带 HTTP 状态码与 gRPC 状态码, 便于在不同协议的
// 接入层做统一映射.
package errors

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
)

// Errno 定义业务错误.
type Errno struct {
	// Code 业务错误码, 格式 AABBCCC.
	Code int
	// HTTP 对应的 HTTP 状态码.
	HTTP int
	// GRPCCode 对应的 gRPC 状态码.
	GRPCCode codes.Code
	// MessageEN 英文错误消息.
	MessageEN string
	// MessageZH 中文错误消息.
	MessageZH string

	cause error
}

// New 创建并注册一个 Errno.
func New(code int, httpStatus int, grpcCode codes.Code, msgEN, msgZH string) *Errno {
	e := &Errno{
		Code:      code,
		HTTP:      httpStatus,
		GRPCCode:  grpcCode,
		MessageEN: msgEN,
		MessageZH: msgZH,
	}
	Register(e)
	return e
}

// Error 实现 error 接口.
func (e *Errno) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.MessageEN, e.cause)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.MessageEN)
}

// Unwrap 返回底层错误.
func (e *Errno) Unwrap() error {
	return e.cause
}

// WithCause 返回携带底层错误的副本.
func (e *Errno) WithCause(cause error) *Errno {
	clone := *e
	clone.cause = cause
	return &clone
}

// WithMessage 返回替换英文消息的副本, 错误码保持不变.
func (e *Errno) WithMessage(msg string) *Errno {
	clone := *e
	clone.MessageEN = msg
	return &clone
}

// WithMessagef 返回格式化英文消息的副本.
func (e *Errno) WithMessagef(format string, args ...any) *Errno {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// HTTPStatus 返回 HTTP 状态码.
func (e *Errno) HTTPStatus() int {
	return e.HTTP
}

// GRPCStatus 返回 gRPC 状态码.
func (e *Errno) GRPCStatus() codes.Code {
	return e.GRPCCode
}

// Is 按错误码判等, 使 errors.Is 能匹配 WithCause/WithMessage 的副本.
func (e *Errno) Is(target error) bool {
	t, ok := target.(*Errno)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// FromError 从任意 error 中提取 Errno. 非 Errno 错误降级为 ErrInternal.
func FromError(err error) *Errno {
	if err == nil {
		return OK
	}
	var e *Errno
	if errors.As(err, &e) {
		return e
	}
	return ErrInternal.WithCause(err)
}

// IsCode 判断错误链中是否包含指定错误码.
func IsCode(err error, code int) bool {
	var e *Errno
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// Package errors 提供统一错误辅助与失败分类，不依赖 internal
package errors

import (
	"errors"
	"fmt"
)

// 常用哨兵错误
var (
	ErrNotFound = errors.New("not found")
)

// Kind 失败分类，决定 HTTP 状态码与指标标签
type Kind string

const (
	KindValidation    Kind = "validation"
	KindRead          Kind = "read"
	KindAPI           Kind = "api"
	KindEmptyResponse Kind = "empty_response"
	KindUnexpected    Kind = "unexpected"
	KindConfig        Kind = "config"
	KindBusy          Kind = "busy"
	KindNotFound      Kind = "not_found"
)

// Error 带分类的错误；Error() 原样返回 Message，面向最终用户展示
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New 创建分类错误
func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation 校验失败（如未选择图片）
func Validation(message string) *Error {
	return New(KindValidation, message, nil)
}

// Read 本地读取/编码失败
func Read(err error) *Error {
	return New(KindRead, fmt.Sprintf("failed to read image: %v", err), err)
}

// API 远端非 2xx 响应
func API(detail string) *Error {
	return New(KindAPI, "API Error: "+detail, nil)
}

// EmptyResponse 远端 2xx 但无可用文本
func EmptyResponse(err error) *Error {
	return New(KindEmptyResponse, "invalid or empty API response", err)
}

// Unexpected 其他未分类错误
func Unexpected(err error) *Error {
	return New(KindUnexpected, fmt.Sprintf("an error occurred: %v", err), err)
}

// Config 配置错误（如缺少凭证）
func Config(message string) *Error {
	return New(KindConfig, message, nil)
}

// Busy 已有运行中的任务
func Busy(message string) *Error {
	return New(KindBusy, message, nil)
}

// NotFound 资源不存在
func NotFound(message string) *Error {
	return New(KindNotFound, message, ErrNotFound)
}

// KindOf 沿错误链查找分类；非分类错误返回 KindUnexpected，nil 返回空
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// IsKind 判断错误链中是否含有指定分类
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Wrap 包装错误并附加消息
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 带格式的 Wrap
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

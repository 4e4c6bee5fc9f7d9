/*
 * @module service/qcerrors/errors
 * @description 质量引擎统一错误分类，供服务层构造、控制器层映射响应
 * @architecture 工具层 - 错误分类
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow 错误构造 -> 运行边界捕获 -> 状态落库 -> 控制器映射
 * @rules 校验类错误在任何持久化之前拒绝；运行期错误写入结果记录并原样返回，落库记录与返回错误保持一致
 * @dependencies errors, fmt
 * @refs service/detection/, service/imputation/, api/controllers/
 */

package qcerrors

import (
	"errors"
	"fmt"
)

// ErrorType 错误类型
type ErrorType string

const (
	ErrorTypeValidation        ErrorType = "validation"         // 参数/标识校验错误
	ErrorTypeNotFound          ErrorType = "not_found"          // 数据集/版本/结果/配置不存在
	ErrorTypeConfiguration     ErrorType = "configuration"      // 无可用阈值等配置错误
	ErrorTypeData              ErrorType = "data"               // 源文件为空或格式错误
	ErrorTypeColumnNotFound    ErrorType = "column_not_found"   // 目标列不在解析结果中
	ErrorTypeEmptyData         ErrorType = "empty_data"         // 解析结果为零行
	ErrorTypeMethodUnavailable ErrorType = "method_unavailable" // 方法未实现或被禁用
	ErrorTypeConflict          ErrorType = "conflict"           // 同版本并发运行冲突
	ErrorTypeExecution         ErrorType = "execution"          // 运行期内部错误
)

// QCError 质量引擎错误
type QCError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *QCError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *QCError) Unwrap() error {
	return e.Cause
}

// New 构造指定类型的错误
func New(errType ErrorType, message string) *QCError {
	return &QCError{Type: errType, Message: message}
}

// Newf 构造带格式化消息的错误
func Newf(errType ErrorType, format string, args ...interface{}) *QCError {
	return &QCError{Type: errType, Message: fmt.Sprintf(format, args...)}
}

// Wrap 包装底层错误
func Wrap(errType ErrorType, message string, cause error) *QCError {
	return &QCError{Type: errType, Message: message, Cause: cause}
}

// TypeOf 提取错误类型，非 QCError 一律归为运行期错误
func TypeOf(err error) ErrorType {
	var qcErr *QCError
	if errors.As(err, &qcErr) {
		return qcErr.Type
	}
	return ErrorTypeExecution
}

// IsType 判断错误是否属于指定类型
func IsType(err error, errType ErrorType) bool {
	return TypeOf(err) == errType
}

/*
 * @module api/controllers/response
 * @description 统一API响应结构与构造函数，业务错误类型到HTTP语义的映射
 * @architecture MVC架构 - 控制器层
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow 无状态
 * @rules Status 为 0 表示成功，非 0 时取对应HTTP状态码；错误信息进 error 字段
 * @dependencies service/qcerrors
 * @refs api/routes.go
 */

package controllers

import (
	"net/http"

	"fluxqc-service/service/qcerrors"
)

// APIResponse 统一API响应结构
type APIResponse struct {
	Status int         `json:"status" example:"0"`
	Msg    string      `json:"msg" example:"操作成功"`
	Data   interface{} `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// PaginatedResponse 分页响应结构
type PaginatedResponse struct {
	Status int         `json:"status" example:"0"`
	Msg    string      `json:"msg" example:"操作成功"`
	Data   interface{} `json:"data"`
	Total  int64       `json:"total" example:"100"`
	Limit  int         `json:"limit" example:"100"`
	Offset int         `json:"offset" example:"0"`
}

// SuccessResponse 构造成功响应
func SuccessResponse(msg string, data interface{}) *APIResponse {
	return &APIResponse{Status: 0, Msg: msg, Data: data}
}

// BadRequestResponse 构造参数错误响应
func BadRequestResponse(msg string, err error) *APIResponse {
	return errorResponse(http.StatusBadRequest, msg, err)
}

// NotFoundResponse 构造资源不存在响应
func NotFoundResponse(msg string, err error) *APIResponse {
	return errorResponse(http.StatusNotFound, msg, err)
}

// ConflictResponse 构造资源冲突响应
func ConflictResponse(msg string, err error) *APIResponse {
	return errorResponse(http.StatusConflict, msg, err)
}

// InternalErrorResponse 构造服务端错误响应
func InternalErrorResponse(msg string, err error) *APIResponse {
	return errorResponse(http.StatusInternalServerError, msg, err)
}

// ErrorResponseFor 按业务错误类型映射响应
func ErrorResponseFor(msg string, err error) *APIResponse {
	switch qcerrors.TypeOf(err) {
	case qcerrors.ErrorTypeValidation, qcerrors.ErrorTypeConfiguration,
		qcerrors.ErrorTypeData, qcerrors.ErrorTypeEmptyData:
		return BadRequestResponse(msg, err)
	case qcerrors.ErrorTypeNotFound, qcerrors.ErrorTypeColumnNotFound:
		return NotFoundResponse(msg, err)
	case qcerrors.ErrorTypeConflict:
		return ConflictResponse(msg, err)
	case qcerrors.ErrorTypeMethodUnavailable:
		return errorResponse(http.StatusUnprocessableEntity, msg, err)
	default:
		return InternalErrorResponse(msg, err)
	}
}

func errorResponse(status int, msg string, err error) *APIResponse {
	resp := &APIResponse{Status: status, Msg: msg}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

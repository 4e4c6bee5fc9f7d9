/*
 * @module api/controllers/meta_controller
 * @description 元数据控制器，提供检测方法、插补方法、变量类型和阈值模板目录
 * @architecture MVC架构 - 控制器层
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow HTTP请求处理流程
 * @rules 元数据为静态目录，不走数据库
 * @dependencies service/meta, github.com/go-chi/render
 * @refs service/meta/detection_meta.go, service/meta/imputation_meta.go
 */

package controllers

import (
	"net/http"

	"fluxqc-service/service/meta"

	"github.com/go-chi/render"
)

// MetaController 元数据控制器
type MetaController struct{}

// NewMetaController 创建元数据控制器实例
func NewMetaController() *MetaController {
	return &MetaController{}
}

// GetDetectionMethods 获取检测方法目录
// @Summary 获取检测方法目录
// @Description 获取所有检测方法，available=true 时仅返回进程内可执行的方法
// @Tags 元数据
// @Produce json
// @Param available query bool false "仅返回可用方法"
// @Success 200 {object} APIResponse{data=[]meta.DetectionMethod}
// @Router /meta/detection-methods [get]
func (c *MetaController) GetDetectionMethods(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("available") == "true" {
		render.JSON(w, r, SuccessResponse("获取可用检测方法成功", meta.GetAvailableDetectionMethods()))
		return
	}
	render.JSON(w, r, SuccessResponse("获取检测方法成功", meta.GetDetectionMethods()))
}

// GetImputationMethods 获取插补方法目录
// @Summary 获取插补方法目录
// @Description 获取所有插补方法，可按类别过滤
// @Tags 元数据
// @Produce json
// @Param category query string false "方法类别" Enums(central_tendency,fill,interpolation,ml)
// @Param available query bool false "仅返回可用方法"
// @Success 200 {object} APIResponse{data=[]meta.ImputationMethod}
// @Router /meta/imputation-methods [get]
func (c *MetaController) GetImputationMethods(w http.ResponseWriter, r *http.Request) {
	if category := r.URL.Query().Get("category"); category != "" {
		render.JSON(w, r, SuccessResponse("获取插补方法成功", meta.GetImputationMethodsByCategory(category)))
		return
	}
	if r.URL.Query().Get("available") == "true" {
		render.JSON(w, r, SuccessResponse("获取可用插补方法成功", meta.GetAvailableImputationMethods()))
		return
	}
	render.JSON(w, r, SuccessResponse("获取插补方法成功", meta.GetImputationMethods()))
}

// GetVariableTypes 获取通量观测变量类型目录
// @Summary 获取变量类型目录
// @Tags 元数据
// @Produce json
// @Success 200 {object} APIResponse
// @Router /meta/variable-types [get]
func (c *MetaController) GetVariableTypes(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, SuccessResponse("获取变量类型成功", meta.VariableTypes))
}

// GetThresholdTemplates 获取阈值模板目录
// @Summary 获取阈值模板目录
// @Tags 元数据
// @Produce json
// @Success 200 {object} APIResponse
// @Router /meta/threshold-templates [get]
func (c *MetaController) GetThresholdTemplates(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, SuccessResponse("获取阈值模板成功", meta.ThresholdTemplates))
}

// GetVersionStages 获取数据集版本阶段目录
// @Summary 获取版本阶段目录
// @Tags 元数据
// @Produce json
// @Success 200 {object} APIResponse
// @Router /meta/version-stages [get]
func (c *MetaController) GetVersionStages(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, SuccessResponse("获取版本阶段成功", meta.VersionStages))
}

/*
 * @module api/controllers/threshold_controller
 * @description 阈值与检测配置控制器，提供列阈值维护、模板套用和三级检测配置管理
 * @architecture MVC架构 - 控制器层
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow HTTP请求 -> 业务逻辑处理 -> 响应返回
 * @rules 批量阈值更新全有或全无；检测配置的作用域创建后不可变
 * @dependencies fluxqc-service/service, github.com/go-chi/chi/v5, github.com/go-chi/render
 * @refs service/threshold/threshold_service.go, service/threshold/scope_resolver.go
 */

package controllers

import (
	"net/http"

	"fluxqc-service/service"
	"fluxqc-service/service/models"
	"fluxqc-service/service/threshold"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// ThresholdController 阈值与检测配置控制器
type ThresholdController struct {
	service  *threshold.ThresholdService
	resolver *threshold.ScopeResolver
}

// NewThresholdController 创建阈值控制器实例
func NewThresholdController() *ThresholdController {
	return &ThresholdController{
		service:  service.GlobalThresholdService,
		resolver: service.GlobalScopeResolver,
	}
}

// GetThresholds 获取数据集的列阈值
// @Summary 获取数据集的列阈值列表
// @Tags 阈值管理
// @Produce json
// @Param id path string true "数据集ID"
// @Success 200 {object} APIResponse{data=[]models.ColumnThreshold}
// @Router /datasets/{id}/thresholds [get]
func (c *ThresholdController) GetThresholds(w http.ResponseWriter, r *http.Request) {
	thresholds, err := c.service.GetThresholds(chi.URLParam(r, "id"))
	if err != nil {
		render.JSON(w, r, ErrorResponseFor("获取阈值列表失败", err))
		return
	}
	render.JSON(w, r, SuccessResponse("获取阈值列表成功", thresholds))
}

// UpdateThreshold 更新单列阈值
// @Summary 更新单列阈值
// @Description 不存在时创建，存在时合并更新；违反边界次序时拒绝
// @Tags 阈值管理
// @Accept json
// @Produce json
// @Param id path string true "数据集ID"
// @Param request body threshold.ThresholdUpdate true "阈值更新"
// @Success 200 {object} APIResponse{data=models.ColumnThreshold}
// @Failure 400 {object} APIResponse
// @Router /datasets/{id}/thresholds [put]
func (c *ThresholdController) UpdateThreshold(w http.ResponseWriter, r *http.Request) {
	var update threshold.ThresholdUpdate
	if err := render.DecodeJSON(r.Body, &update); err != nil {
		render.JSON(w, r, BadRequestResponse("请求参数格式错误", err))
		return
	}
	result, err := c.service.UpdateThreshold(chi.URLParam(r, "id"), &update)
	if err != nil {
		render.JSON(w, r, ErrorResponseFor("更新阈值失败", err))
		return
	}
	render.JSON(w, r, SuccessResponse("更新阈值成功", result))
}

// BatchUpdateThresholds 批量更新列阈值
// @Summary 批量更新列阈值
// @Description 事务执行，任一列校验失败则全部回滚
// @Tags 阈值管理
// @Accept json
// @Produce json
// @Param id path string true "数据集ID"
// @Param request body []threshold.ThresholdUpdate true "阈值更新集合"
// @Success 200 {object} APIResponse{data=[]models.ColumnThreshold}
// @Failure 400 {object} APIResponse
// @Router /datasets/{id}/thresholds/batch [put]
func (c *ThresholdController) BatchUpdateThresholds(w http.ResponseWriter, r *http.Request) {
	var updates []threshold.ThresholdUpdate
	if err := render.DecodeJSON(r.Body, &updates); err != nil {
		render.JSON(w, r, BadRequestResponse("请求参数格式错误", err))
		return
	}
	results, err := c.service.BatchUpdateThresholds(chi.URLParam(r, "id"), updates)
	if err != nil {
		render.JSON(w, r, ErrorResponseFor("批量更新阈值失败", err))
		return
	}
	render.JSON(w, r, SuccessResponse("批量更新阈值成功", results))
}

// ApplyTemplateRequest 套用阈值模板请求
type ApplyTemplateRequest struct {
	Template string `json:"template" example:"standard"`
}

// ApplyTemplate 套用阈值模板
// @Summary 套用阈值模板
// @Description 将模板中的变量阈值写入数据集
// @Tags 阈值管理
// @Accept json
// @Produce json
// @Param id path string true "数据集ID"
// @Param request body ApplyTemplateRequest true "模板名称"
// @Success 200 {object} APIResponse{data=[]models.ColumnThreshold}
// @Router /datasets/{id}/thresholds/apply-template [post]
func (c *ThresholdController) ApplyTemplate(w http.ResponseWriter, r *http.Request) {
	var req ApplyTemplateRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.JSON(w, r, BadRequestResponse("请求参数格式错误", err))
		return
	}
	results, err := c.service.ApplyTemplate(chi.URLParam(r, "id"), req.Template)
	if err != nil {
		render.JSON(w, r, ErrorResponseFor("套用阈值模板失败", err))
		return
	}
	render.JSON(w, r, SuccessResponse("套用阈值模板成功", results))
}

// ResolveThreshold 解析列的生效阈值
// @Summary 解析列的生效阈值
// @Description 按 DATASET -> SITE -> APP 级联解析，无任何配置时返回空阈值
// @Tags 阈值管理
// @Produce json
// @Param id path string true "数据集ID"
// @Param column query string true "列名"
// @Success 200 {object} APIResponse{data=threshold.ResolvedThreshold}
// @Router /datasets/{id}/thresholds/resolve [get]
func (c *ThresholdController) ResolveThreshold(w http.ResponseWriter, r *http.Request) {
	columnName := r.URL.Query().Get("column")
	if columnName == "" {
		render.JSON(w, r, BadRequestResponse("列名不能为空", nil))
		return
	}

	datasetID := chi.URLParam(r, "id")
	ds, err := service.GlobalDatasetService.GetDataset(datasetID)
	if err != nil {
		render.JSON(w, r, ErrorResponseFor("获取数据集失败", err))
		return
	}

	resolved, err := c.resolver.Resolve(columnName, datasetID, ds.SiteID)
	if err != nil {
		render.JSON(w, r, ErrorResponseFor("解析阈值失败", err))
		return
	}
	render.JSON(w, r, SuccessResponse("解析阈值成功", resolved))
}

// === 检测配置 ===

// CreateDetectionConfig 创建检测配置
// @Summary 创建检测配置
// @Description 配置挂在 APP/SITE/DATASET 三级作用域之一
// @Tags 检测配置
// @Accept json
// @Produce json
// @Param request body models.DetectionConfig true "检测配置"
// @Success 200 {object} APIResponse{data=models.DetectionConfig}
// @Failure 400 {object} APIResponse
// @Router /detection-configs [post]
func (c *ThresholdController) CreateDetectionConfig(w http.ResponseWriter, r *http.Request) {
	var config models.DetectionConfig
	if err := render.DecodeJSON(r.Body, &config); err != nil {
		render.JSON(w, r, BadRequestResponse("请求参数格式错误", err))
		return
	}
	if err := c.service.CreateDetectionConfig(&config); err != nil {
		render.JSON(w, r, ErrorResponseFor("创建检测配置失败", err))
		return
	}
	render.JSON(w, r, SuccessResponse("创建检测配置成功", config))
}

// ListDetectionConfigs 获取检测配置列表
// @Summary 获取检测配置列表
// @Tags 检测配置
// @Produce json
// @Param scope_type query string false "作用域类型" Enums(APP,SITE,DATASET)
// @Param scope_id query string false "作用域ID"
// @Success 200 {object} APIResponse{data=[]models.DetectionConfig}
// @Router /detection-configs [get]
func (c *ThresholdController) ListDetectionConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := c.service.ListDetectionConfigs(
		r.URL.Query().Get("scope_type"),
		r.URL.Query().Get("scope_id"))
	if err != nil {
		render.JSON(w, r, ErrorResponseFor("获取检测配置列表失败", err))
		return
	}
	render.JSON(w, r, SuccessResponse("获取检测配置列表成功", configs))
}

// GetDetectionConfig 获取检测配置详情
// @Summary 获取检测配置详情
// @Tags 检测配置
// @Produce json
// @Param id path string true "配置ID"
// @Success 200 {object} APIResponse{data=models.DetectionConfig}
// @Router /detection-configs/{id} [get]
func (c *ThresholdController) GetDetectionConfig(w http.ResponseWriter, r *http.Request) {
	config, err := c.service.GetDetectionConfig(chi.URLParam(r, "id"))
	if err != nil {
		render.JSON(w, r, ErrorResponseFor("获取检测配置失败", err))
		return
	}
	render.JSON(w, r, SuccessResponse("获取检测配置成功", config))
}

// UpdateDetectionConfig 更新检测配置
// @Summary 更新检测配置
// @Description 作用域字段创建后不可变
// @Tags 检测配置
// @Accept json
// @Produce json
// @Param id path string true "配置ID"
// @Success 200 {object} APIResponse
// @Router /detection-configs/{id} [put]
func (c *ThresholdController) UpdateDetectionConfig(w http.ResponseWriter, r *http.Request) {
	var updates map[string]interface{}
	if err := render.DecodeJSON(r.Body, &updates); err != nil {
		render.JSON(w, r, BadRequestResponse("请求参数格式错误", err))
		return
	}
	if err := c.service.UpdateDetectionConfig(chi.URLParam(r, "id"), updates); err != nil {
		render.JSON(w, r, ErrorResponseFor("更新检测配置失败", err))
		return
	}
	render.JSON(w, r, SuccessResponse("更新检测配置成功", nil))
}

// DeleteDetectionConfig 删除检测配置
// @Summary 删除检测配置
// @Description 软删除，解析时不再生效
// @Tags 检测配置
// @Produce json
// @Param id path string true "配置ID"
// @Success 200 {object} APIResponse
// @Router /detection-configs/{id} [delete]
func (c *ThresholdController) DeleteDetectionConfig(w http.ResponseWriter, r *http.Request) {
	if err := c.service.DeleteDetectionConfig(chi.URLParam(r, "id")); err != nil {
		render.JSON(w, r, ErrorResponseFor("删除检测配置失败", err))
		return
	}
	render.JSON(w, r, SuccessResponse("删除检测配置成功", nil))
}

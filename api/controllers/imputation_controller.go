/*
 * @module api/controllers/imputation_controller
 * @description 缺失值插补控制器，提供插补执行与结果查询API
 * @architecture MVC架构 - 控制器层
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow HTTP请求 -> 运行锁 -> 引擎执行 -> 响应返回
 * @rules 同一版本的插补运行互斥，锁被持有时返回冲突
 * @dependencies fluxqc-service/service, github.com/go-chi/chi/v5, github.com/go-chi/render
 * @refs service/imputation/imputation_service.go
 */

package controllers

import (
	"net/http"
	"strconv"

	"fluxqc-service/service"
	"fluxqc-service/service/imputation"
	"fluxqc-service/service/qcerrors"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// ImputationController 缺失值插补控制器
type ImputationController struct {
	service *imputation.ImputationService
}

// NewImputationController 创建插补控制器实例
func NewImputationController() *ImputationController {
	return &ImputationController{service: service.GlobalImputationService}
}

// Execute 执行插补运行
// @Summary 执行缺失值插补
// @Description 对数据集版本的目标列执行一次插补运行
// @Tags 缺失值插补
// @Accept json
// @Produce json
// @Param request body imputation.ExecuteImputationRequest true "插补执行请求"
// @Success 200 {object} APIResponse{data=imputation.ImputationSummary}
// @Failure 400 {object} APIResponse
// @Failure 409 {object} APIResponse
// @Router /imputation/execute [post]
func (c *ImputationController) Execute(w http.ResponseWriter, r *http.Request) {
	var req imputation.ExecuteImputationRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.JSON(w, r, BadRequestResponse("请求参数格式错误", err))
		return
	}

	lockKey := "imputation:" + req.VersionID
	locked, err := service.GlobalRunLock.TryLock(r.Context(), lockKey, runLockTTL)
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("获取运行锁失败", err))
		return
	}
	if !locked {
		render.JSON(w, r, ConflictResponse("该版本已有插补运行在执行",
			qcerrors.New(qcerrors.ErrorTypeConflict, "运行锁被持有")))
		return
	}
	defer service.GlobalRunLock.Unlock(r.Context(), lockKey)

	summary, err := c.service.Execute(r.Context(), &req, service.GlobalProgressService.Callback())
	if err != nil {
		render.JSON(w, r, ErrorResponseFor("插补运行失败", err))
		return
	}
	render.JSON(w, r, SuccessResponse("插补运行完成", summary))
}

// GetResults 获取数据集的插补结果列表
// @Summary 获取插补结果列表
// @Tags 缺失值插补
// @Produce json
// @Param id path string true "数据集ID"
// @Success 200 {object} APIResponse{data=[]models.ImputationResult}
// @Router /datasets/{id}/imputation-results [get]
func (c *ImputationController) GetResults(w http.ResponseWriter, r *http.Request) {
	results, err := c.service.GetResults(chi.URLParam(r, "id"))
	if err != nil {
		render.JSON(w, r, ErrorResponseFor("获取插补结果列表失败", err))
		return
	}
	render.JSON(w, r, SuccessResponse("获取插补结果列表成功", results))
}

// GetResult 获取插补结果详情
// @Summary 获取插补结果详情
// @Tags 缺失值插补
// @Produce json
// @Param result_id path string true "结果ID"
// @Success 200 {object} APIResponse{data=models.ImputationResult}
// @Router /imputation-results/{result_id} [get]
func (c *ImputationController) GetResult(w http.ResponseWriter, r *http.Request) {
	result, err := c.service.GetResult(chi.URLParam(r, "result_id"))
	if err != nil {
		render.JSON(w, r, ErrorResponseFor("获取插补结果失败", err))
		return
	}
	render.JSON(w, r, SuccessResponse("获取插补结果成功", result))
}

// GetResultDetails 分页获取插补明细
// @Summary 获取插补明细
// @Tags 缺失值插补
// @Produce json
// @Param result_id path string true "结果ID"
// @Param column query string false "列名过滤"
// @Param limit query int false "每页大小" default(100)
// @Param offset query int false "偏移量" default(0)
// @Success 200 {object} PaginatedResponse{data=[]models.ImputationDetail}
// @Router /imputation-results/{result_id}/details [get]
func (c *ImputationController) GetResultDetails(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 {
		limit = 100
	}

	details, total, err := c.service.GetResultDetails(
		chi.URLParam(r, "result_id"),
		r.URL.Query().Get("column"),
		limit, offset)
	if err != nil {
		render.JSON(w, r, ErrorResponseFor("获取插补明细失败", err))
		return
	}
	render.JSON(w, r, &PaginatedResponse{
		Status: 0,
		Msg:    "获取插补明细成功",
		Data:   details,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// GetColumnStats 获取插补列统计
// @Summary 获取插补列统计
// @Tags 缺失值插补
// @Produce json
// @Param result_id path string true "结果ID"
// @Success 200 {object} APIResponse{data=[]models.ImputationColumnStat}
// @Router /imputation-results/{result_id}/column-stats [get]
func (c *ImputationController) GetColumnStats(w http.ResponseWriter, r *http.Request) {
	stats, err := c.service.GetColumnStats(chi.URLParam(r, "result_id"))
	if err != nil {
		render.JSON(w, r, ErrorResponseFor("获取插补列统计失败", err))
		return
	}
	render.JSON(w, r, SuccessResponse("获取插补列统计成功", stats))
}

// DeleteResult 删除插补结果
// @Summary 删除插补结果
// @Description 软删除并级联明细与列统计
// @Tags 缺失值插补
// @Produce json
// @Param result_id path string true "结果ID"
// @Success 200 {object} APIResponse
// @Router /imputation-results/{result_id} [delete]
func (c *ImputationController) DeleteResult(w http.ResponseWriter, r *http.Request) {
	if err := c.service.DeleteResult(chi.URLParam(r, "result_id")); err != nil {
		render.JSON(w, r, ErrorResponseFor("删除插补结果失败", err))
		return
	}
	render.JSON(w, r, SuccessResponse("删除插补结果成功", nil))
}

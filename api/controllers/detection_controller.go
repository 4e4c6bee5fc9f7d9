/*
 * @module api/controllers/detection_controller
 * @description 异常值检测控制器，提供检测执行与结果查询API
 * @architecture MVC架构 - 控制器层
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow HTTP请求 -> 运行锁 -> 引擎执行 -> 响应返回
 * @rules 同一版本的检测运行互斥，锁被持有时返回冲突
 * @dependencies fluxqc-service/service, github.com/go-chi/chi/v5, github.com/go-chi/render
 * @refs service/detection/detection_service.go
 */

package controllers

import (
	"net/http"
	"strconv"
	"time"

	"fluxqc-service/service"
	"fluxqc-service/service/detection"
	"fluxqc-service/service/qcerrors"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// runLockTTL 运行锁的过期时间，超长运行由锁过期兜底
const runLockTTL = 10 * time.Minute

// DetectionController 异常值检测控制器
type DetectionController struct {
	service *detection.DetectionService
}

// NewDetectionController 创建检测控制器实例
func NewDetectionController() *DetectionController {
	return &DetectionController{service: service.GlobalDetectionService}
}

// Execute 执行检测运行
// @Summary 执行异常值检测
// @Description 对数据集版本执行一次检测运行，同版本并发运行返回冲突
// @Tags 异常检测
// @Accept json
// @Produce json
// @Param request body detection.ExecuteDetectionRequest true "检测执行请求"
// @Success 200 {object} APIResponse{data=detection.DetectionSummary}
// @Failure 400 {object} APIResponse
// @Failure 409 {object} APIResponse
// @Router /detection/execute [post]
func (c *DetectionController) Execute(w http.ResponseWriter, r *http.Request) {
	var req detection.ExecuteDetectionRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.JSON(w, r, BadRequestResponse("请求参数格式错误", err))
		return
	}

	lockKey := "detection:" + req.VersionID
	locked, err := service.GlobalRunLock.TryLock(r.Context(), lockKey, runLockTTL)
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("获取运行锁失败", err))
		return
	}
	if !locked {
		render.JSON(w, r, ConflictResponse("该版本已有检测运行在执行",
			qcerrors.New(qcerrors.ErrorTypeConflict, "运行锁被持有")))
		return
	}
	defer service.GlobalRunLock.Unlock(r.Context(), lockKey)

	summary, err := c.service.Execute(r.Context(), &req, service.GlobalProgressService.Callback())
	if err != nil {
		render.JSON(w, r, ErrorResponseFor("检测运行失败", err))
		return
	}
	render.JSON(w, r, SuccessResponse("检测运行完成", summary))
}

// GetResults 获取数据集的检测结果列表
// @Summary 获取检测结果列表
// @Tags 异常检测
// @Produce json
// @Param id path string true "数据集ID"
// @Success 200 {object} APIResponse{data=[]models.DetectionResult}
// @Router /datasets/{id}/detection-results [get]
func (c *DetectionController) GetResults(w http.ResponseWriter, r *http.Request) {
	results, err := c.service.GetResults(chi.URLParam(r, "id"))
	if err != nil {
		render.JSON(w, r, ErrorResponseFor("获取检测结果列表失败", err))
		return
	}
	render.JSON(w, r, SuccessResponse("获取检测结果列表成功", results))
}

// GetResult 获取检测结果详情
// @Summary 获取检测结果详情
// @Tags 异常检测
// @Produce json
// @Param result_id path string true "结果ID"
// @Success 200 {object} APIResponse{data=models.DetectionResult}
// @Router /detection-results/{result_id} [get]
func (c *DetectionController) GetResult(w http.ResponseWriter, r *http.Request) {
	result, err := c.service.GetResult(chi.URLParam(r, "result_id"))
	if err != nil {
		render.JSON(w, r, ErrorResponseFor("获取检测结果失败", err))
		return
	}
	render.JSON(w, r, SuccessResponse("获取检测结果成功", result))
}

// GetResultDetails 分页获取检测明细
// @Summary 获取检测明细
// @Tags 异常检测
// @Produce json
// @Param result_id path string true "结果ID"
// @Param column query string false "列名过滤"
// @Param limit query int false "每页大小" default(100)
// @Param offset query int false "偏移量" default(0)
// @Success 200 {object} PaginatedResponse{data=[]models.DetectionDetail}
// @Router /detection-results/{result_id}/details [get]
func (c *DetectionController) GetResultDetails(w http.ResponseWriter, r *http.Request) {
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
		render.JSON(w, r, ErrorResponseFor("获取检测明细失败", err))
		return
	}
	render.JSON(w, r, &PaginatedResponse{
		Status: 0,
		Msg:    "获取检测明细成功",
		Data:   details,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// GetColumnStats 获取检测列统计
// @Summary 获取检测列统计
// @Tags 异常检测
// @Produce json
// @Param result_id path string true "结果ID"
// @Success 200 {object} APIResponse{data=[]models.DetectionColumnStat}
// @Router /detection-results/{result_id}/column-stats [get]
func (c *DetectionController) GetColumnStats(w http.ResponseWriter, r *http.Request) {
	stats, err := c.service.GetColumnStats(chi.URLParam(r, "result_id"))
	if err != nil {
		render.JSON(w, r, ErrorResponseFor("获取检测列统计失败", err))
		return
	}
	render.JSON(w, r, SuccessResponse("获取检测列统计成功", stats))
}

// DeleteResult 删除检测结果
// @Summary 删除检测结果
// @Description 软删除并级联明细与列统计
// @Tags 异常检测
// @Produce json
// @Param result_id path string true "结果ID"
// @Success 200 {object} APIResponse
// @Router /detection-results/{result_id} [delete]
func (c *DetectionController) DeleteResult(w http.ResponseWriter, r *http.Request) {
	if err := c.service.DeleteResult(chi.URLParam(r, "result_id")); err != nil {
		render.JSON(w, r, ErrorResponseFor("删除检测结果失败", err))
		return
	}
	render.JSON(w, r, SuccessResponse("删除检测结果成功", nil))
}

/*
 * @module api/controllers/dataset_controller
 * @description 数据集元数据控制器，管理项目、站点、数据集与版本
 * @architecture MVC架构 - 控制器层
 * @documentReference ai_docs/flux_dataset_req.md
 * @stateFlow HTTP请求 -> 业务逻辑处理 -> 响应返回
 * @rules 遵循RESTful API设计规范，统一错误处理和响应格式
 * @dependencies fluxqc-service/service, github.com/go-chi/chi/v5, github.com/go-chi/render
 * @refs service/dataset/dataset_service.go
 */

package controllers

import (
	"net/http"

	"fluxqc-service/service"
	"fluxqc-service/service/dataset"
	"fluxqc-service/service/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// DatasetController 数据集元数据控制器
type DatasetController struct {
	service *dataset.DatasetService
}

// NewDatasetController 创建数据集控制器实例
func NewDatasetController() *DatasetController {
	return &DatasetController{service: service.GlobalDatasetService}
}

// === 项目 ===

// CreateProject 创建项目
// @Summary 创建观测项目
// @Tags 数据集管理
// @Accept json
// @Produce json
// @Param request body models.Project true "项目信息"
// @Success 200 {object} APIResponse{data=models.Project}
// @Failure 400 {object} APIResponse
// @Router /projects [post]
func (c *DatasetController) CreateProject(w http.ResponseWriter, r *http.Request) {
	var project models.Project
	if err := render.DecodeJSON(r.Body, &project); err != nil {
		render.JSON(w, r, BadRequestResponse("请求参数格式错误", err))
		return
	}
	if err := c.service.CreateProject(&project); err != nil {
		render.JSON(w, r, ErrorResponseFor("创建项目失败", err))
		return
	}
	render.JSON(w, r, SuccessResponse("创建项目成功", project))
}

// GetProjects 获取项目列表
// @Summary 获取项目列表
// @Tags 数据集管理
// @Produce json
// @Success 200 {object} APIResponse{data=[]models.Project}
// @Router /projects [get]
func (c *DatasetController) GetProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := c.service.GetProjects()
	if err != nil {
		render.JSON(w, r, ErrorResponseFor("获取项目列表失败", err))
		return
	}
	render.JSON(w, r, SuccessResponse("获取项目列表成功", projects))
}

// GetProject 获取项目详情
// @Summary 获取项目详情
// @Tags 数据集管理
// @Produce json
// @Param id path string true "项目ID"
// @Success 200 {object} APIResponse{data=models.Project}
// @Failure 404 {object} APIResponse
// @Router /projects/{id} [get]
func (c *DatasetController) GetProject(w http.ResponseWriter, r *http.Request) {
	project, err := c.service.GetProject(chi.URLParam(r, "id"))
	if err != nil {
		render.JSON(w, r, ErrorResponseFor("获取项目失败", err))
		return
	}
	render.JSON(w, r, SuccessResponse("获取项目成功", project))
}

// UpdateProject 更新项目
// @Summary 更新项目信息
// @Tags 数据集管理
// @Accept json
// @Produce json
// @Param id path string true "项目ID"
// @Param request body object true "更新字段"
// @Success 200 {object} APIResponse
// @Router /projects/{id} [put]
func (c *DatasetController) UpdateProject(w http.ResponseWriter, r *http.Request) {
	var updates map[string]interface{}
	if err := render.DecodeJSON(r.Body, &updates); err != nil {
		render.JSON(w, r, BadRequestResponse("请求参数格式错误", err))
		return
	}
	if err := c.service.UpdateProject(chi.URLParam(r, "id"), updates); err != nil {
		render.JSON(w, r, ErrorResponseFor("更新项目失败", err))
		return
	}
	render.JSON(w, r, SuccessResponse("更新项目成功", nil))
}

// DeleteProject 删除项目
// @Summary 删除项目
// @Description 项目下存在站点时拒绝删除
// @Tags 数据集管理
// @Produce json
// @Param id path string true "项目ID"
// @Success 200 {object} APIResponse
// @Failure 409 {object} APIResponse
// @Router /projects/{id} [delete]
func (c *DatasetController) DeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := c.service.DeleteProject(chi.URLParam(r, "id")); err != nil {
		render.JSON(w, r, ErrorResponseFor("删除项目失败", err))
		return
	}
	render.JSON(w, r, SuccessResponse("删除项目成功", nil))
}

// === 站点 ===

// CreateSite 创建站点
// @Summary 创建观测站点
// @Tags 数据集管理
// @Accept json
// @Produce json
// @Param request body models.Site true "站点信息"
// @Success 200 {object} APIResponse{data=models.Site}
// @Router /sites [post]
func (c *DatasetController) CreateSite(w http.ResponseWriter, r *http.Request) {
	var site models.Site
	if err := render.DecodeJSON(r.Body, &site); err != nil {
		render.JSON(w, r, BadRequestResponse("请求参数格式错误", err))
		return
	}
	if err := c.service.CreateSite(&site); err != nil {
		render.JSON(w, r, ErrorResponseFor("创建站点失败", err))
		return
	}
	render.JSON(w, r, SuccessResponse("创建站点成功", site))
}

// GetSites 获取站点列表
// @Summary 获取站点列表
// @Tags 数据集管理
// @Produce json
// @Param project_id query string false "项目ID"
// @Success 200 {object} APIResponse{data=[]models.Site}
// @Router /sites [get]
func (c *DatasetController) GetSites(w http.ResponseWriter, r *http.Request) {
	sites, err := c.service.GetSites(r.URL.Query().Get("project_id"))
	if err != nil {
		render.JSON(w, r, ErrorResponseFor("获取站点列表失败", err))
		return
	}
	render.JSON(w, r, SuccessResponse("获取站点列表成功", sites))
}

// GetSite 获取站点详情
// @Summary 获取站点详情
// @Tags 数据集管理
// @Produce json
// @Param id path string true "站点ID"
// @Success 200 {object} APIResponse{data=models.Site}
// @Router /sites/{id} [get]
func (c *DatasetController) GetSite(w http.ResponseWriter, r *http.Request) {
	site, err := c.service.GetSite(chi.URLParam(r, "id"))
	if err != nil {
		render.JSON(w, r, ErrorResponseFor("获取站点失败", err))
		return
	}
	render.JSON(w, r, SuccessResponse("获取站点成功", site))
}

// UpdateSite 更新站点
// @Summary 更新站点信息
// @Tags 数据集管理
// @Accept json
// @Produce json
// @Param id path string true "站点ID"
// @Success 200 {object} APIResponse
// @Router /sites/{id} [put]
func (c *DatasetController) UpdateSite(w http.ResponseWriter, r *http.Request) {
	var updates map[string]interface{}
	if err := render.DecodeJSON(r.Body, &updates); err != nil {
		render.JSON(w, r, BadRequestResponse("请求参数格式错误", err))
		return
	}
	if err := c.service.UpdateSite(chi.URLParam(r, "id"), updates); err != nil {
		render.JSON(w, r, ErrorResponseFor("更新站点失败", err))
		return
	}
	render.JSON(w, r, SuccessResponse("更新站点成功", nil))
}

// DeleteSite 删除站点
// @Summary 删除站点
// @Description 站点下存在数据集时拒绝删除
// @Tags 数据集管理
// @Produce json
// @Param id path string true "站点ID"
// @Success 200 {object} APIResponse
// @Failure 409 {object} APIResponse
// @Router /sites/{id} [delete]
func (c *DatasetController) DeleteSite(w http.ResponseWriter, r *http.Request) {
	if err := c.service.DeleteSite(chi.URLParam(r, "id")); err != nil {
		render.JSON(w, r, ErrorResponseFor("删除站点失败", err))
		return
	}
	render.JSON(w, r, SuccessResponse("删除站点成功", nil))
}

// === 数据集 ===

// CreateDataset 创建数据集
// @Summary 创建数据集
// @Tags 数据集管理
// @Accept json
// @Produce json
// @Param request body models.Dataset true "数据集信息"
// @Success 200 {object} APIResponse{data=models.Dataset}
// @Router /datasets [post]
func (c *DatasetController) CreateDataset(w http.ResponseWriter, r *http.Request) {
	var ds models.Dataset
	if err := render.DecodeJSON(r.Body, &ds); err != nil {
		render.JSON(w, r, BadRequestResponse("请求参数格式错误", err))
		return
	}
	if err := c.service.CreateDataset(&ds); err != nil {
		render.JSON(w, r, ErrorResponseFor("创建数据集失败", err))
		return
	}
	render.JSON(w, r, SuccessResponse("创建数据集成功", ds))
}

// GetDatasets 获取数据集列表
// @Summary 获取数据集列表
// @Tags 数据集管理
// @Produce json
// @Param site_id query string false "站点ID"
// @Success 200 {object} APIResponse{data=[]models.Dataset}
// @Router /datasets [get]
func (c *DatasetController) GetDatasets(w http.ResponseWriter, r *http.Request) {
	datasets, err := c.service.GetDatasets(r.URL.Query().Get("site_id"))
	if err != nil {
		render.JSON(w, r, ErrorResponseFor("获取数据集列表失败", err))
		return
	}
	render.JSON(w, r, SuccessResponse("获取数据集列表成功", datasets))
}

// GetDataset 获取数据集详情
// @Summary 获取数据集详情
// @Tags 数据集管理
// @Produce json
// @Param id path string true "数据集ID"
// @Success 200 {object} APIResponse{data=models.Dataset}
// @Router /datasets/{id} [get]
func (c *DatasetController) GetDataset(w http.ResponseWriter, r *http.Request) {
	ds, err := c.service.GetDataset(chi.URLParam(r, "id"))
	if err != nil {
		render.JSON(w, r, ErrorResponseFor("获取数据集失败", err))
		return
	}
	render.JSON(w, r, SuccessResponse("获取数据集成功", ds))
}

// UpdateDataset 更新数据集
// @Summary 更新数据集信息
// @Tags 数据集管理
// @Accept json
// @Produce json
// @Param id path string true "数据集ID"
// @Success 200 {object} APIResponse
// @Router /datasets/{id} [put]
func (c *DatasetController) UpdateDataset(w http.ResponseWriter, r *http.Request) {
	var updates map[string]interface{}
	if err := render.DecodeJSON(r.Body, &updates); err != nil {
		render.JSON(w, r, BadRequestResponse("请求参数格式错误", err))
		return
	}
	if err := c.service.UpdateDataset(chi.URLParam(r, "id"), updates); err != nil {
		render.JSON(w, r, ErrorResponseFor("更新数据集失败", err))
		return
	}
	render.JSON(w, r, SuccessResponse("更新数据集成功", nil))
}

// DeleteDataset 删除数据集
// @Summary 删除数据集
// @Description 级联删除版本与阈值，软删除检测配置与质量结果
// @Tags 数据集管理
// @Produce json
// @Param id path string true "数据集ID"
// @Success 200 {object} APIResponse
// @Router /datasets/{id} [delete]
func (c *DatasetController) DeleteDataset(w http.ResponseWriter, r *http.Request) {
	if err := c.service.DeleteDataset(chi.URLParam(r, "id")); err != nil {
		render.JSON(w, r, ErrorResponseFor("删除数据集失败", err))
		return
	}
	render.JSON(w, r, SuccessResponse("删除数据集成功", nil))
}

// === 版本 ===

// CreateVersion 创建数据集版本
// @Summary 创建数据集版本
// @Description 版本号按数据集自动递增
// @Tags 数据集管理
// @Accept json
// @Produce json
// @Param id path string true "数据集ID"
// @Param request body models.DatasetVersion true "版本信息"
// @Success 200 {object} APIResponse{data=models.DatasetVersion}
// @Router /datasets/{id}/versions [post]
func (c *DatasetController) CreateVersion(w http.ResponseWriter, r *http.Request) {
	var version models.DatasetVersion
	if err := render.DecodeJSON(r.Body, &version); err != nil {
		render.JSON(w, r, BadRequestResponse("请求参数格式错误", err))
		return
	}
	version.DatasetID = chi.URLParam(r, "id")
	if err := c.service.CreateVersion(&version); err != nil {
		render.JSON(w, r, ErrorResponseFor("创建版本失败", err))
		return
	}
	render.JSON(w, r, SuccessResponse("创建版本成功", version))
}

// GetVersions 获取版本列表
// @Summary 获取数据集版本列表
// @Tags 数据集管理
// @Produce json
// @Param id path string true "数据集ID"
// @Success 200 {object} APIResponse{data=[]models.DatasetVersion}
// @Router /datasets/{id}/versions [get]
func (c *DatasetController) GetVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := c.service.GetVersions(chi.URLParam(r, "id"))
	if err != nil {
		render.JSON(w, r, ErrorResponseFor("获取版本列表失败", err))
		return
	}
	render.JSON(w, r, SuccessResponse("获取版本列表成功", versions))
}

// DeleteVersion 删除版本
// @Summary 删除数据集版本
// @Description 软删除引用该版本的质量结果
// @Tags 数据集管理
// @Produce json
// @Param version_id path string true "版本ID"
// @Success 200 {object} APIResponse
// @Router /versions/{version_id} [delete]
func (c *DatasetController) DeleteVersion(w http.ResponseWriter, r *http.Request) {
	if err := c.service.DeleteVersion(chi.URLParam(r, "version_id")); err != nil {
		render.JSON(w, r, ErrorResponseFor("删除版本失败", err))
		return
	}
	render.JSON(w, r, SuccessResponse("删除版本成功", nil))
}

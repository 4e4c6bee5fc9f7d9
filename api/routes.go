/*
 * @module api/routes
 * @description API路由配置模块，负责初始化和配置所有HTTP路由
 * @architecture RESTful API架构
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow 无状态HTTP请求处理
 * @rules 遵循RESTful API设计规范，统一错误处理和响应格式
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/cors, github.com/go-chi/render
 * @refs api/controllers/
 */

package api

import (
	"fluxqc-service/api/controllers"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
)

// InitRoute 初始化所有API路由
func InitRoute(r *chi.Mux) {
	// 基础中间件
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	// CORS配置
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// 健康检查
	healthController := controllers.NewHealthController()
	r.Get("/health", healthController.Health)
	r.Get("/ready", healthController.Ready)

	// SSE进度订阅
	eventController := controllers.NewEventController()
	r.Get("/sse/progress/{result_id}", eventController.HandleProgressSSE)

	// 元数据目录
	r.Route("/meta", func(r chi.Router) {
		metaController := controllers.NewMetaController()
		r.Get("/detection-methods", metaController.GetDetectionMethods)
		r.Get("/imputation-methods", metaController.GetImputationMethods)
		r.Get("/variable-types", metaController.GetVariableTypes)
		r.Get("/threshold-templates", metaController.GetThresholdTemplates)
		r.Get("/version-stages", metaController.GetVersionStages)
	})

	datasetController := controllers.NewDatasetController()
	thresholdController := controllers.NewThresholdController()
	detectionController := controllers.NewDetectionController()
	imputationController := controllers.NewImputationController()

	// 项目管理
	r.Route("/projects", func(r chi.Router) {
		r.Post("/", datasetController.CreateProject)
		r.Get("/", datasetController.GetProjects)
		r.Get("/{id}", datasetController.GetProject)
		r.Put("/{id}", datasetController.UpdateProject)
		r.Delete("/{id}", datasetController.DeleteProject)
	})

	// 站点管理
	r.Route("/sites", func(r chi.Router) {
		r.Post("/", datasetController.CreateSite)
		r.Get("/", datasetController.GetSites)
		r.Get("/{id}", datasetController.GetSite)
		r.Put("/{id}", datasetController.UpdateSite)
		r.Delete("/{id}", datasetController.DeleteSite)
	})

	// 数据集管理
	r.Route("/datasets", func(r chi.Router) {
		r.Post("/", datasetController.CreateDataset)
		r.Get("/", datasetController.GetDatasets)
		r.Get("/{id}", datasetController.GetDataset)
		r.Put("/{id}", datasetController.UpdateDataset)
		r.Delete("/{id}", datasetController.DeleteDataset)

		// 版本管理
		r.Post("/{id}/versions", datasetController.CreateVersion)
		r.Get("/{id}/versions", datasetController.GetVersions)

		// 列阈值管理
		r.Get("/{id}/thresholds", thresholdController.GetThresholds)
		r.Put("/{id}/thresholds", thresholdController.UpdateThreshold)
		r.Put("/{id}/thresholds/batch", thresholdController.BatchUpdateThresholds)
		r.Post("/{id}/thresholds/apply-template", thresholdController.ApplyTemplate)
		r.Get("/{id}/thresholds/resolve", thresholdController.ResolveThreshold)

		// 结果列表
		r.Get("/{id}/detection-results", detectionController.GetResults)
		r.Get("/{id}/imputation-results", imputationController.GetResults)
	})

	r.Delete("/versions/{version_id}", datasetController.DeleteVersion)

	// 检测配置管理
	r.Route("/detection-configs", func(r chi.Router) {
		r.Post("/", thresholdController.CreateDetectionConfig)
		r.Get("/", thresholdController.ListDetectionConfigs)
		r.Get("/{id}", thresholdController.GetDetectionConfig)
		r.Put("/{id}", thresholdController.UpdateDetectionConfig)
		r.Delete("/{id}", thresholdController.DeleteDetectionConfig)
	})

	// 异常检测
	r.Post("/detection/execute", detectionController.Execute)
	r.Route("/detection-results", func(r chi.Router) {
		r.Get("/{result_id}", detectionController.GetResult)
		r.Get("/{result_id}/details", detectionController.GetResultDetails)
		r.Get("/{result_id}/column-stats", detectionController.GetColumnStats)
		r.Delete("/{result_id}", detectionController.DeleteResult)
	})

	// 缺失值插补
	r.Post("/imputation/execute", imputationController.Execute)
	r.Route("/imputation-results", func(r chi.Router) {
		r.Get("/{result_id}", imputationController.GetResult)
		r.Get("/{result_id}/details", imputationController.GetResultDetails)
		r.Get("/{result_id}/column-stats", imputationController.GetColumnStats)
		r.Delete("/{result_id}", imputationController.DeleteResult)
	})
}

/*
 * @module service/dataset/dataset_service
 * @description 项目/站点/数据集/版本元数据管理，数据集删除级联清理阈值配置与质量结果
 * @architecture 分层架构 - 服务层
 * @documentReference ai_docs/flux_dataset_req.md
 * @stateFlow 项目 -> 站点 -> 数据集 -> 版本快照；删除自底向上级联
 * @rules 版本号按数据集单调递增；项目和站点有下级时拒绝删除，数据集删除在一个事务内级联
 * @dependencies gorm.io/gorm, service/models, service/meta
 * @refs service/models/dataset_models.go, service/threshold/, service/detection/, service/imputation/
 */

package dataset

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"fluxqc-service/service/meta"
	"fluxqc-service/service/models"
	"fluxqc-service/service/qcerrors"

	"gorm.io/gorm"
)

// DatasetService 数据集元数据服务
type DatasetService struct {
	db *gorm.DB
}

// NewDatasetService 创建数据集元数据服务实例
func NewDatasetService(db *gorm.DB) *DatasetService {
	return &DatasetService{db: db}
}

// === 项目 ===

// CreateProject 创建观测项目
func (s *DatasetService) CreateProject(project *models.Project) error {
	if project.Name == "" {
		return qcerrors.New(qcerrors.ErrorTypeValidation, "项目名称不能为空")
	}
	return s.db.Create(project).Error
}

// GetProjects 获取项目列表
func (s *DatasetService) GetProjects() ([]models.Project, error) {
	var projects []models.Project
	err := s.db.Order("created_at DESC").Find(&projects).Error
	return projects, err
}

// GetProject 获取单个项目
func (s *DatasetService) GetProject(id string) (*models.Project, error) {
	var project models.Project
	if err := s.db.First(&project, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, qcerrors.Newf(qcerrors.ErrorTypeNotFound, "项目 %s 不存在", id)
		}
		return nil, err
	}
	return &project, nil
}

// UpdateProject 更新项目信息
func (s *DatasetService) UpdateProject(id string, updates map[string]interface{}) error {
	if _, err := s.GetProject(id); err != nil {
		return err
	}
	delete(updates, "id")
	return s.db.Model(&models.Project{}).Where("id = ?", id).Updates(updates).Error
}

// DeleteProject 删除项目，存在站点时拒绝
func (s *DatasetService) DeleteProject(id string) error {
	if _, err := s.GetProject(id); err != nil {
		return err
	}
	var count int64
	if err := s.db.Model(&models.Site{}).Where("project_id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return qcerrors.Newf(qcerrors.ErrorTypeConflict, "项目下还有 %d 个站点，不能删除", count)
	}
	return s.db.Delete(&models.Project{}, "id = ?", id).Error
}

// === 站点 ===

// CreateSite 创建观测站点，项目必须存在
func (s *DatasetService) CreateSite(site *models.Site) error {
	if site.Name == "" {
		return qcerrors.New(qcerrors.ErrorTypeValidation, "站点名称不能为空")
	}
	if _, err := s.GetProject(site.ProjectID); err != nil {
		return err
	}
	return s.db.Create(site).Error
}

// GetSites 获取项目下的站点列表
func (s *DatasetService) GetSites(projectID string) ([]models.Site, error) {
	var sites []models.Site
	query := s.db.Order("code ASC")
	if projectID != "" {
		query = query.Where("project_id = ?", projectID)
	}
	err := query.Find(&sites).Error
	return sites, err
}

// GetSite 获取单个站点
func (s *DatasetService) GetSite(id string) (*models.Site, error) {
	var site models.Site
	if err := s.db.First(&site, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, qcerrors.Newf(qcerrors.ErrorTypeNotFound, "站点 %s 不存在", id)
		}
		return nil, err
	}
	return &site, nil
}

// UpdateSite 更新站点信息
func (s *DatasetService) UpdateSite(id string, updates map[string]interface{}) error {
	if _, err := s.GetSite(id); err != nil {
		return err
	}
	delete(updates, "id")
	delete(updates, "project_id")
	return s.db.Model(&models.Site{}).Where("id = ?", id).Updates(updates).Error
}

// DeleteSite 删除站点，存在数据集时拒绝
func (s *DatasetService) DeleteSite(id string) error {
	if _, err := s.GetSite(id); err != nil {
		return err
	}
	var count int64
	if err := s.db.Model(&models.Dataset{}).Where("site_id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return qcerrors.Newf(qcerrors.ErrorTypeConflict, "站点下还有 %d 个数据集，不能删除", count)
	}
	return s.db.Delete(&models.Site{}, "id = ?", id).Error
}

// === 数据集 ===

// CreateDataset 创建数据集，站点必须存在
func (s *DatasetService) CreateDataset(dataset *models.Dataset) error {
	if dataset.Name == "" {
		return qcerrors.New(qcerrors.ErrorTypeValidation, "数据集名称不能为空")
	}
	if dataset.DatasetType == "" {
		return qcerrors.New(qcerrors.ErrorTypeValidation, "数据集类型不能为空")
	}
	if _, err := s.GetSite(dataset.SiteID); err != nil {
		return err
	}
	return s.db.Create(dataset).Error
}

// GetDatasets 获取站点下的数据集列表
func (s *DatasetService) GetDatasets(siteID string) ([]models.Dataset, error) {
	var datasets []models.Dataset
	query := s.db.Order("created_at DESC")
	if siteID != "" {
		query = query.Where("site_id = ?", siteID)
	}
	err := query.Find(&datasets).Error
	return datasets, err
}

// GetDataset 获取单个数据集
func (s *DatasetService) GetDataset(id string) (*models.Dataset, error) {
	var dataset models.Dataset
	if err := s.db.First(&dataset, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, qcerrors.Newf(qcerrors.ErrorTypeNotFound, "数据集 %s 不存在", id)
		}
		return nil, err
	}
	return &dataset, nil
}

// UpdateDataset 更新数据集信息
func (s *DatasetService) UpdateDataset(id string, updates map[string]interface{}) error {
	if _, err := s.GetDataset(id); err != nil {
		return err
	}
	delete(updates, "id")
	delete(updates, "site_id")
	return s.db.Model(&models.Dataset{}).Where("id = ?", id).Updates(updates).Error
}

// DeleteDataset 删除数据集
// 一个事务内：硬删版本/列阈值，软删检测配置与两类质量结果及其子记录
func (s *DatasetService) DeleteDataset(id string) error {
	if _, err := s.GetDataset(id); err != nil {
		return err
	}

	now := time.Now()
	marks := map[string]interface{}{"is_deleted": true, "deleted_at": &now}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.DatasetVersion{}, "dataset_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.ColumnThreshold{}, "dataset_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.DetectionConfig{}).
			Where("scope_type = ? AND scope_id = ?", models.ScopeDataset, id).
			Updates(marks).Error; err != nil {
			return err
		}
		if err := cascadeResults(tx, id, marks); err != nil {
			return err
		}
		return tx.Delete(&models.Dataset{}, "id = ?", id).Error
	})
}

// cascadeResults 软删除数据集名下的质量结果及其明细与列统计
func cascadeResults(tx *gorm.DB, datasetID string, marks map[string]interface{}) error {
	var detectionIDs []string
	if err := tx.Model(&models.DetectionResult{}).
		Where("dataset_id = ?", datasetID).Pluck("id", &detectionIDs).Error; err != nil {
		return err
	}
	if len(detectionIDs) > 0 {
		if err := tx.Model(&models.DetectionDetail{}).
			Where("result_id IN ?", detectionIDs).Updates(marks).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.DetectionColumnStat{}).
			Where("result_id IN ?", detectionIDs).Updates(marks).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.DetectionResult{}).
			Where("id IN ?", detectionIDs).Updates(marks).Error; err != nil {
			return err
		}
	}

	var imputationIDs []string
	if err := tx.Model(&models.ImputationResult{}).
		Where("dataset_id = ?", datasetID).Pluck("id", &imputationIDs).Error; err != nil {
		return err
	}
	if len(imputationIDs) > 0 {
		if err := tx.Model(&models.ImputationDetail{}).
			Where("result_id IN ?", imputationIDs).Updates(marks).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.ImputationColumnStat{}).
			Where("result_id IN ?", imputationIDs).Updates(marks).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.ImputationResult{}).
			Where("id IN ?", imputationIDs).Updates(marks).Error; err != nil {
			return err
		}
	}
	return nil
}

// === 版本 ===

// CreateVersion 创建数据集版本，版本号按数据集递增
func (s *DatasetService) CreateVersion(version *models.DatasetVersion) error {
	if _, err := s.GetDataset(version.DatasetID); err != nil {
		return err
	}
	if version.FilePath == "" {
		return qcerrors.New(qcerrors.ErrorTypeValidation, "版本文件路径不能为空")
	}
	if !validStage(version.Stage) {
		return qcerrors.Newf(qcerrors.ErrorTypeValidation, "无效的版本阶段: %s", version.Stage)
	}
	if version.FileType == "" {
		version.FileType = strings.TrimPrefix(filepath.Ext(version.FilePath), ".")
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var maxVersion int
		err := tx.Model(&models.DatasetVersion{}).
			Where("dataset_id = ?", version.DatasetID).
			Select("COALESCE(MAX(version), 0)").
			Scan(&maxVersion).Error
		if err != nil {
			return err
		}
		version.Version = maxVersion + 1
		return tx.Create(version).Error
	})
}

// GetVersions 获取数据集的版本列表
func (s *DatasetService) GetVersions(datasetID string) ([]models.DatasetVersion, error) {
	if _, err := s.GetDataset(datasetID); err != nil {
		return nil, err
	}
	var versions []models.DatasetVersion
	err := s.db.Where("dataset_id = ?", datasetID).Order("version DESC").Find(&versions).Error
	return versions, err
}

// GetVersion 获取单个版本
func (s *DatasetService) GetVersion(id string) (*models.DatasetVersion, error) {
	var version models.DatasetVersion
	if err := s.db.First(&version, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, qcerrors.Newf(qcerrors.ErrorTypeNotFound, "数据集版本 %s 不存在", id)
		}
		return nil, err
	}
	return &version, nil
}

// DeleteVersion 删除版本并软删除引用它的质量结果
func (s *DatasetService) DeleteVersion(id string) error {
	version, err := s.GetVersion(id)
	if err != nil {
		return err
	}

	now := time.Now()
	marks := map[string]interface{}{"is_deleted": true, "deleted_at": &now}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.DetectionResult{}).
			Where("version_id = ?", version.ID).Updates(marks).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.ImputationResult{}).
			Where("version_id = ?", version.ID).Updates(marks).Error; err != nil {
			return err
		}
		return tx.Delete(&models.DatasetVersion{}, "id = ?", id).Error
	})
}

func validStage(stage string) bool {
	for _, s := range meta.VersionStages {
		if s.Code == stage {
			return true
		}
	}
	return false
}

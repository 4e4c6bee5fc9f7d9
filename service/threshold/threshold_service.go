/*
 * @module service/threshold/threshold_service
 * @description 列阈值服务，提供阈值查询、单条/批量更新、检测配置管理和阈值模板应用
 * @architecture 分层架构 - 服务层
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow 阈值录入 -> 有序性校验 -> 落库 -> 作用域解析消费
 * @rules 阈值链 physical_min <= warning_min <= min <= max <= warning_max <= physical_max 在任一对两端都存在时强制校验；阈值记录只置空不删除
 * @dependencies gorm.io/gorm, service/models, service/meta
 * @refs scope_resolver.go, service/detection/
 */

package threshold

import (
	"errors"
	"fmt"
	"time"

	"fluxqc-service/service/meta"
	"fluxqc-service/service/models"
	"fluxqc-service/service/qcerrors"

	"gorm.io/gorm"
)

// ThresholdUpdate 阈值更新请求，nil 字段表示不修改，显式置空由 ClearFields 列出
type ThresholdUpdate struct {
	ColumnName   string   `json:"column_name"`
	MinThreshold *float64 `json:"min_threshold"`
	MaxThreshold *float64 `json:"max_threshold"`
	PhysicalMin  *float64 `json:"physical_min"`
	PhysicalMax  *float64 `json:"physical_max"`
	WarningMin   *float64 `json:"warning_min"`
	WarningMax   *float64 `json:"warning_max"`
	Unit         string   `json:"unit"`
	VariableType string   `json:"variable_type"`
	ClearFields  []string `json:"clear_fields,omitempty"` // 需要置空的字段名
}

// ThresholdService 列阈值服务
type ThresholdService struct {
	db *gorm.DB
}

// NewThresholdService 创建列阈值服务实例
func NewThresholdService(db *gorm.DB) *ThresholdService {
	return &ThresholdService{db: db}
}

// GetThresholds 获取数据集的全部列阈值
func (s *ThresholdService) GetThresholds(datasetID string) ([]models.ColumnThreshold, error) {
	if datasetID == "" {
		return nil, qcerrors.New(qcerrors.ErrorTypeValidation, "数据集ID不能为空")
	}
	var thresholds []models.ColumnThreshold
	err := s.db.Where("dataset_id = ?", datasetID).
		Order("column_name ASC").
		Find(&thresholds).Error
	return thresholds, err
}

// GetThreshold 获取单列阈值
func (s *ThresholdService) GetThreshold(datasetID, columnName string) (*models.ColumnThreshold, error) {
	var threshold models.ColumnThreshold
	err := s.db.Where("dataset_id = ? AND column_name = ?", datasetID, columnName).
		First(&threshold).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, qcerrors.Newf(qcerrors.ErrorTypeNotFound, "列 %s 未配置阈值", columnName)
	}
	if err != nil {
		return nil, err
	}
	return &threshold, nil
}

// UpdateThreshold 更新单列阈值，记录不存在时创建
func (s *ThresholdService) UpdateThreshold(datasetID string, update *ThresholdUpdate) (*models.ColumnThreshold, error) {
	if datasetID == "" || update == nil || update.ColumnName == "" {
		return nil, qcerrors.New(qcerrors.ErrorTypeValidation, "数据集ID和列名不能为空")
	}

	var result *models.ColumnThreshold
	err := s.db.Transaction(func(tx *gorm.DB) error {
		threshold, err := s.applyUpdate(tx, datasetID, update)
		if err != nil {
			return err
		}
		result = threshold
		return nil
	})
	return result, err
}

// BatchUpdateThresholds 批量更新阈值，整体事务提交，空更新集拒绝
func (s *ThresholdService) BatchUpdateThresholds(datasetID string, updates []ThresholdUpdate) ([]models.ColumnThreshold, error) {
	if datasetID == "" {
		return nil, qcerrors.New(qcerrors.ErrorTypeValidation, "数据集ID不能为空")
	}
	if len(updates) == 0 {
		return nil, qcerrors.New(qcerrors.ErrorTypeValidation, "更新集不能为空")
	}

	results := make([]models.ColumnThreshold, 0, len(updates))
	err := s.db.Transaction(func(tx *gorm.DB) error {
		for i := range updates {
			threshold, err := s.applyUpdate(tx, datasetID, &updates[i])
			if err != nil {
				return err
			}
			results = append(results, *threshold)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ApplyTemplate 应用命名阈值模板到数据集，逐变量落库
func (s *ThresholdService) ApplyTemplate(datasetID, templateName string) ([]models.ColumnThreshold, error) {
	if datasetID == "" {
		return nil, qcerrors.New(qcerrors.ErrorTypeValidation, "数据集ID不能为空")
	}
	template, ok := meta.GetThresholdTemplate(templateName)
	if !ok {
		return nil, qcerrors.Newf(qcerrors.ErrorTypeNotFound, "阈值模板 %s 不存在", templateName)
	}

	updates := make([]ThresholdUpdate, 0, len(template.Entries))
	for variable, entry := range template.Entries {
		updates = append(updates, ThresholdUpdate{
			ColumnName:   variable,
			MinThreshold: entry.Min,
			MaxThreshold: entry.Max,
			Unit:         entry.Unit,
			VariableType: variable,
		})
	}
	return s.BatchUpdateThresholds(datasetID, updates)
}

// applyUpdate 在事务内合并并校验单列阈值
func (s *ThresholdService) applyUpdate(tx *gorm.DB, datasetID string, update *ThresholdUpdate) (*models.ColumnThreshold, error) {
	if update.ColumnName == "" {
		return nil, qcerrors.New(qcerrors.ErrorTypeValidation, "列名不能为空")
	}

	var threshold models.ColumnThreshold
	err := tx.Where("dataset_id = ? AND column_name = ?", datasetID, update.ColumnName).
		First(&threshold).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		threshold = models.ColumnThreshold{
			DatasetID:  datasetID,
			ColumnName: update.ColumnName,
		}
	} else if err != nil {
		return nil, err
	}

	if update.MinThreshold != nil {
		threshold.MinThreshold = update.MinThreshold
	}
	if update.MaxThreshold != nil {
		threshold.MaxThreshold = update.MaxThreshold
	}
	if update.PhysicalMin != nil {
		threshold.PhysicalMin = update.PhysicalMin
	}
	if update.PhysicalMax != nil {
		threshold.PhysicalMax = update.PhysicalMax
	}
	if update.WarningMin != nil {
		threshold.WarningMin = update.WarningMin
	}
	if update.WarningMax != nil {
		threshold.WarningMax = update.WarningMax
	}
	if update.Unit != "" {
		threshold.Unit = update.Unit
	}
	if update.VariableType != "" {
		threshold.VariableType = update.VariableType
	}

	// 字段只置空，记录不删除
	for _, field := range update.ClearFields {
		switch field {
		case "min_threshold":
			threshold.MinThreshold = nil
		case "max_threshold":
			threshold.MaxThreshold = nil
		case "physical_min":
			threshold.PhysicalMin = nil
		case "physical_max":
			threshold.PhysicalMax = nil
		case "warning_min":
			threshold.WarningMin = nil
		case "warning_max":
			threshold.WarningMax = nil
		default:
			return nil, qcerrors.Newf(qcerrors.ErrorTypeValidation, "不支持置空字段 %s", field)
		}
	}

	if err := validateOrdering(&threshold); err != nil {
		return nil, err
	}

	if err := tx.Save(&threshold).Error; err != nil {
		return nil, fmt.Errorf("保存列阈值失败: %w", err)
	}
	return &threshold, nil
}

// validateOrdering 校验阈值链有序性，链上任意两个同时存在的值必须非降
func validateOrdering(t *models.ColumnThreshold) error {
	chain := []struct {
		name  string
		value *float64
	}{
		{"physical_min", t.PhysicalMin},
		{"warning_min", t.WarningMin},
		{"min_threshold", t.MinThreshold},
		{"max_threshold", t.MaxThreshold},
		{"warning_max", t.WarningMax},
		{"physical_max", t.PhysicalMax},
	}

	var prevName string
	var prevValue *float64
	for _, item := range chain {
		if item.value == nil {
			continue
		}
		if prevValue != nil && *prevValue > *item.value {
			return qcerrors.Newf(qcerrors.ErrorTypeValidation,
				"列 %s 阈值无效: %s(%v) 大于 %s(%v)",
				t.ColumnName, prevName, *prevValue, item.name, *item.value)
		}
		prevName = item.name
		prevValue = item.value
	}
	return nil
}

// CreateDetectionConfig 创建检测配置
func (s *ThresholdService) CreateDetectionConfig(config *models.DetectionConfig) error {
	if err := validateConfigScope(config); err != nil {
		return err
	}
	if _, ok := meta.GetDetectionMethod(config.DetectionMethod); !ok {
		return qcerrors.Newf(qcerrors.ErrorTypeValidation, "未知的检测方法: %s", config.DetectionMethod)
	}
	if err := meta.ValidateDetectionParams(config.DetectionMethod, config.MethodParams); err != nil {
		return qcerrors.Wrap(qcerrors.ErrorTypeValidation, "方法参数无效", err)
	}
	return s.db.Create(config).Error
}

// UpdateDetectionConfig 更新检测配置，作用域标识不可变更
func (s *ThresholdService) UpdateDetectionConfig(id string, updates map[string]interface{}) error {
	config, err := s.GetDetectionConfig(id)
	if err != nil {
		return err
	}

	// 作用域是配置的身份，禁止改写
	for _, immutable := range []string{"scope_type", "scope_id", "id"} {
		if _, ok := updates[immutable]; ok {
			return qcerrors.Newf(qcerrors.ErrorTypeValidation, "字段 %s 不允许修改", immutable)
		}
	}

	if method, ok := updates["detection_method"].(string); ok {
		if _, found := meta.GetDetectionMethod(method); !found {
			return qcerrors.Newf(qcerrors.ErrorTypeValidation, "未知的检测方法: %s", method)
		}
	}
	if params, ok := updates["method_params"].(map[string]interface{}); ok {
		method := config.DetectionMethod
		if m, ok := updates["detection_method"].(string); ok {
			method = m
		}
		if err := meta.ValidateDetectionParams(method, params); err != nil {
			return qcerrors.Wrap(qcerrors.ErrorTypeValidation, "方法参数无效", err)
		}
		updates["method_params"] = models.JSONB(params)
	}

	return s.db.Model(&models.DetectionConfig{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// DeleteDetectionConfig 软删除检测配置，之后不再参与解析和列表
func (s *ThresholdService) DeleteDetectionConfig(id string) error {
	if _, err := s.GetDetectionConfig(id); err != nil {
		return err
	}
	now := time.Now()
	return s.db.Model(&models.DetectionConfig{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_deleted": true, "deleted_at": &now}).Error
}

// GetDetectionConfig 获取未删除的检测配置
func (s *ThresholdService) GetDetectionConfig(id string) (*models.DetectionConfig, error) {
	var config models.DetectionConfig
	err := s.db.Where("id = ? AND is_deleted = ?", id, false).First(&config).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, qcerrors.Newf(qcerrors.ErrorTypeNotFound, "检测配置 %s 不存在", id)
	}
	if err != nil {
		return nil, err
	}
	return &config, nil
}

// ListDetectionConfigs 按作用域列出未删除的检测配置
func (s *ThresholdService) ListDetectionConfigs(scopeType, scopeID string) ([]models.DetectionConfig, error) {
	query := s.db.Where("is_deleted = ?", false)
	if scopeType != "" {
		query = query.Where("scope_type = ?", scopeType)
	}
	if scopeID != "" {
		query = query.Where("scope_id = ?", scopeID)
	}
	var configs []models.DetectionConfig
	err := query.Order("scope_type ASC, priority ASC").Find(&configs).Error
	return configs, err
}

// validateConfigScope 校验作用域组合
func validateConfigScope(config *models.DetectionConfig) error {
	switch config.ScopeType {
	case models.ScopeApp:
		// APP 级忽略 scope_id
	case models.ScopeSite, models.ScopeDataset:
		if config.ScopeID == "" {
			return qcerrors.Newf(qcerrors.ErrorTypeValidation, "%s 级配置必须指定 scope_id", config.ScopeType)
		}
	default:
		return qcerrors.Newf(qcerrors.ErrorTypeValidation, "未知的作用域类型: %s", config.ScopeType)
	}
	return nil
}

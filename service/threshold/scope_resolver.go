/*
 * @module service/threshold/scope_resolver
 * @description 作用域解析器，按 DATASET -> SITE -> APP 级联解析列的生效阈值
 * @architecture 策略模式 - 有序解析策略链，新增作用域只需追加策略
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow 数据集级查找 -> 站点级查找 -> 应用级查找 -> 空阈值兜底
 * @rules 纯读侧级联，幂等无副作用，可在列循环中高频调用；解析永不报错，无命中返回 APP 级空阈值
 * @dependencies gorm.io/gorm, github.com/spf13/cast, service/models, service/meta
 * @refs threshold_service.go, service/detection/
 */

package threshold

import (
	"errors"

	"fluxqc-service/service/meta"
	"fluxqc-service/service/models"

	"github.com/spf13/cast"
	"gorm.io/gorm"
)

// ResolvedThreshold 解析出的生效阈值
type ResolvedThreshold struct {
	ColumnName string   `json:"column_name"`
	Min        *float64 `json:"min"`
	Max        *float64 `json:"max"`
	Source     string   `json:"source"` // APP, SITE, DATASET
}

// HasBound 是否存在至少一侧阈值
func (r *ResolvedThreshold) HasBound() bool {
	return r.Min != nil || r.Max != nil
}

// resolveStrategy 单级解析策略，未命中返回 nil
type resolveStrategy func(columnName, datasetID, siteID string) (*ResolvedThreshold, error)

// ScopeResolver 阈值作用域解析器
type ScopeResolver struct {
	db         *gorm.DB
	strategies []resolveStrategy
}

// NewScopeResolver 创建作用域解析器实例
func NewScopeResolver(db *gorm.DB) *ScopeResolver {
	r := &ScopeResolver{db: db}
	// 解析次序即优先级，窄作用域覆盖宽作用域
	r.strategies = []resolveStrategy{
		r.resolveDataset,
		r.resolveSite,
		r.resolveApp,
	}
	return r
}

// Resolve 解析 (列, 数据集, 站点) 的生效阈值，首个命中即返回
func (r *ScopeResolver) Resolve(columnName, datasetID, siteID string) (*ResolvedThreshold, error) {
	for _, strategy := range r.strategies {
		resolved, err := strategy(columnName, datasetID, siteID)
		if err != nil {
			return nil, err
		}
		if resolved != nil {
			return resolved, nil
		}
	}

	// 无任何配置时返回空阈值而非错误
	return &ResolvedThreshold{ColumnName: columnName, Source: models.ScopeApp}, nil
}

// resolveDataset 数据集级: 列阈值表中任一侧非空即命中
func (r *ScopeResolver) resolveDataset(columnName, datasetID, _ string) (*ResolvedThreshold, error) {
	if datasetID == "" {
		return nil, nil
	}

	var threshold models.ColumnThreshold
	err := r.db.Where("dataset_id = ? AND column_name = ?", datasetID, columnName).
		First(&threshold).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if threshold.MinThreshold == nil && threshold.MaxThreshold == nil {
		return nil, nil
	}
	return &ResolvedThreshold{
		ColumnName: columnName,
		Min:        threshold.MinThreshold,
		Max:        threshold.MaxThreshold,
		Source:     models.ScopeDataset,
	}, nil
}

// resolveSite 站点级: 活跃的 THRESHOLD_STATIC 检测配置
func (r *ScopeResolver) resolveSite(columnName, _, siteID string) (*ResolvedThreshold, error) {
	if siteID == "" {
		return nil, nil
	}
	return r.resolveConfig(models.ScopeSite, siteID, columnName)
}

// resolveApp 应用级: scope_id 忽略
func (r *ScopeResolver) resolveApp(columnName, _, _ string) (*ResolvedThreshold, error) {
	return r.resolveConfig(models.ScopeApp, "", columnName)
}

// resolveConfig 在指定作用域内查找配置，列专属配置优先于通配配置，同组内 priority 小者优先
func (r *ScopeResolver) resolveConfig(scopeType, scopeID, columnName string) (*ResolvedThreshold, error) {
	query := r.db.Where("scope_type = ? AND is_active = ? AND is_deleted = ? AND detection_method = ?",
		scopeType, true, false, meta.MethodThresholdStatic).
		Where("column_name = ? OR column_name = ?", columnName, "")
	if scopeType != models.ScopeApp {
		query = query.Where("scope_id = ?", scopeID)
	}

	var configs []models.DetectionConfig
	if err := query.Order("priority ASC").Find(&configs).Error; err != nil {
		return nil, err
	}
	if len(configs) == 0 {
		return nil, nil
	}

	// 列专属配置优先
	chosen := &configs[0]
	for i := range configs {
		if configs[i].ColumnName == columnName {
			chosen = &configs[i]
			break
		}
	}

	resolved := &ResolvedThreshold{ColumnName: columnName, Source: scopeType}
	if raw, ok := chosen.MethodParams["min_value"]; ok && raw != nil {
		if v, err := cast.ToFloat64E(raw); err == nil {
			resolved.Min = &v
		}
	}
	if raw, ok := chosen.MethodParams["max_value"]; ok && raw != nil {
		if v, err := cast.ToFloat64E(raw); err == nil {
			resolved.Max = &v
		}
	}
	return resolved, nil
}

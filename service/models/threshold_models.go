/*
 * @module service/models/threshold_models
 * @description 阈值与检测配置模型，包含列阈值记录和分级检测配置
 * @architecture 数据模型层
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow 阈值配置 -> 作用域解析 -> 检测执行
 * @rules 阈值满足 physical_min <= warning_min <= min <= max <= warning_max <= physical_max，检测配置软删除后不参与解析
 * @dependencies gorm.io/gorm, github.com/google/uuid, time
 * @refs service/threshold/, service/meta/detection_meta.go
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 检测配置作用域
const (
	ScopeApp     = "APP"     // 应用级，全局兜底
	ScopeSite    = "SITE"    // 站点级
	ScopeDataset = "DATASET" // 数据集级，优先级最高
)

// ColumnThreshold 列阈值模型，属于唯一数据集，(dataset_id, column_name) 唯一
type ColumnThreshold struct {
	ID           string     `gorm:"type:varchar(50);primaryKey" json:"id"`
	DatasetID    string     `gorm:"type:varchar(50);not null;index:idx_col_threshold,unique" json:"dataset_id"`
	ColumnName   string     `gorm:"type:varchar(100);not null;index:idx_col_threshold,unique" json:"column_name"`
	MinThreshold *float64   `json:"min_threshold"` // 运行下限，检测用
	MaxThreshold *float64   `json:"max_threshold"` // 运行上限，检测用
	PhysicalMin  *float64   `json:"physical_min"`  // 物理下限
	PhysicalMax  *float64   `json:"physical_max"`  // 物理上限
	WarningMin   *float64   `json:"warning_min"`   // 预警下限
	WarningMax   *float64   `json:"warning_max"`   // 预警上限
	Unit         string     `gorm:"type:varchar(30)" json:"unit"`
	VariableType string     `gorm:"type:varchar(50)" json:"variable_type"`
	UpdatedBy    string     `gorm:"type:varchar(50)" json:"updated_by"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName 指定表名
func (ColumnThreshold) TableName() string {
	return "column_thresholds"
}

// BeforeCreate 创建前钩子
func (c *ColumnThreshold) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// DetectionConfig 检测配置模型，按 APP/SITE/DATASET 三级作用域分层
type DetectionConfig struct {
	ID              string     `gorm:"type:varchar(50);primaryKey" json:"id"`
	ScopeType       string     `gorm:"type:varchar(20);not null;index" json:"scope_type"` // APP, SITE, DATASET
	ScopeID         string     `gorm:"type:varchar(50);index" json:"scope_id"`            // APP 级忽略
	ColumnName      string     `gorm:"type:varchar(100);index" json:"column_name"`        // 空串表示作用域内所有列
	DetectionMethod string     `gorm:"type:varchar(50);not null" json:"detection_method"`
	MethodParams    JSONB      `gorm:"type:jsonb" json:"method_params"`
	Priority        int        `gorm:"default:50" json:"priority"` // 数值越小优先级越高
	IsActive        bool       `gorm:"default:true" json:"is_active"`
	IsDeleted       bool       `gorm:"default:false;index" json:"is_deleted"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
	CreatedBy       string     `gorm:"type:varchar(50)" json:"created_by"`
	UpdatedBy       string     `gorm:"type:varchar(50)" json:"updated_by"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName 指定表名
func (DetectionConfig) TableName() string {
	return "detection_configs"
}

// BeforeCreate 创建前钩子
func (d *DetectionConfig) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedBy == "" {
		d.CreatedBy = "system"
	}
	if d.UpdatedBy == "" {
		d.UpdatedBy = "system"
	}
	return nil
}

// BeforeUpdate 更新前钩子
func (d *DetectionConfig) BeforeUpdate(tx *gorm.DB) error {
	if d.UpdatedBy == "" {
		d.UpdatedBy = "system"
	}
	return nil
}

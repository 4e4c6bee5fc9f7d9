/*
 * @module service/models/detection_models
 * @description 异常值检测结果模型，包含检测结果、明细和列统计
 * @architecture 数据模型层
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow 检测执行 -> 结果记录 -> 明细/列统计落库 -> 查询与软删除
 * @rules 结果状态单向推进 PENDING -> RUNNING -> COMPLETED/FAILED，软删除结果时级联软删除明细
 * @dependencies gorm.io/gorm, github.com/google/uuid, time
 * @refs service/detection/, service/models/threshold_models.go
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 检测/插补运行状态
const (
	RunStatusPending   = "PENDING"
	RunStatusRunning   = "RUNNING"
	RunStatusCompleted = "COMPLETED"
	RunStatusFailed    = "FAILED"
)

// 异常类型
const (
	OutlierTypeBelowMin = "BELOW_MIN" // 低于下限
	OutlierTypeAboveMax = "ABOVE_MAX" // 高于上限
)

// DetectionResult 检测结果模型，对应一次检测运行
type DetectionResult struct {
	ID           string     `gorm:"type:varchar(50);primaryKey" json:"id"`
	DatasetID    string     `gorm:"type:varchar(50);not null;index" json:"dataset_id"`
	VersionID    string     `gorm:"type:varchar(50);not null;index" json:"version_id"`
	Method       string     `gorm:"type:varchar(50);not null" json:"method"`
	MethodParams JSONB      `gorm:"type:jsonb" json:"method_params"` // 运行时参数快照
	Status       string     `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	TotalRows    int64      `json:"total_rows"`
	OutlierCount int64      `json:"outlier_count"`
	OutlierRate  float64    `json:"outlier_rate"`
	ErrorMessage string     `gorm:"type:text" json:"error_message,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	IsDeleted    bool       `gorm:"default:false;index" json:"is_deleted"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName 指定表名
func (DetectionResult) TableName() string {
	return "detection_results"
}

// BeforeCreate 创建前钩子
func (d *DetectionResult) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return nil
}

// DetectionDetail 检测明细模型，一条记录对应一个被标记的单元格
type DetectionDetail struct {
	ID             string     `gorm:"type:varchar(50);primaryKey" json:"id"`
	ResultID       string     `gorm:"type:varchar(50);not null;index" json:"result_id"`
	RowIndex       int        `gorm:"not null" json:"row_index"` // 数据行号，不含表头，从 0 开始
	ColumnName     string     `gorm:"type:varchar(100);not null;index" json:"column_name"`
	OriginalValue  string     `gorm:"type:varchar(100)" json:"original_value"`
	OutlierType    string     `gorm:"type:varchar(20);not null" json:"outlier_type"` // BELOW_MIN, ABOVE_MAX
	ThresholdValue float64    `json:"threshold_value"`                               // 被违反的阈值
	IsDeleted      bool       `gorm:"default:false;index" json:"is_deleted"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// TableName 指定表名
func (DetectionDetail) TableName() string {
	return "detection_details"
}

// BeforeCreate 创建前钩子
func (d *DetectionDetail) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return nil
}

// DetectionColumnStat 检测列统计模型，记录运行时生效的阈值快照
type DetectionColumnStat struct {
	ID           string     `gorm:"type:varchar(50);primaryKey" json:"id"`
	ResultID     string     `gorm:"type:varchar(50);not null;index" json:"result_id"`
	ColumnName   string     `gorm:"type:varchar(100);not null" json:"column_name"`
	OutlierCount int64      `json:"outlier_count"`
	MinThreshold *float64   `json:"min_threshold"` // 运行时阈值快照，非实时引用
	MaxThreshold *float64   `json:"max_threshold"`
	IsDeleted    bool       `gorm:"default:false;index" json:"is_deleted"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// TableName 指定表名
func (DetectionColumnStat) TableName() string {
	return "detection_column_stats"
}

// BeforeCreate 创建前钩子
func (d *DetectionColumnStat) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return nil
}

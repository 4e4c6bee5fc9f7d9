/*
 * @module service/models/imputation_models
 * @description 缺失值插补结果模型，包含插补结果、单元格明细和列统计
 * @architecture 数据模型层
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow 插补执行 -> 结果记录 -> 明细/列统计落库 -> 查询与软删除
 * @rules 插补率 = 插补数/缺失数，缺失数为 0 时记 0；明细与统计行由结果独占，软删除级联
 * @dependencies gorm.io/gorm, github.com/google/uuid, time
 * @refs service/imputation/, service/meta/imputation_meta.go
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ImputationResult 插补结果模型，对应一次插补运行
type ImputationResult struct {
	ID              string           `gorm:"type:varchar(50);primaryKey" json:"id"`
	DatasetID       string           `gorm:"type:varchar(50);not null;index" json:"dataset_id"`
	VersionID       string           `gorm:"type:varchar(50);not null;index" json:"version_id"`
	MethodID        string           `gorm:"type:varchar(50);not null" json:"method_id"`
	TargetColumns   JSONBStringArray `gorm:"type:jsonb" json:"target_columns"`
	Status          string           `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	TotalMissing    int64            `json:"total_missing"`
	ImputedCount    int64            `json:"imputed_count"`
	ImputationRate  float64          `json:"imputation_rate"` // imputed_count / total_missing
	ExecutionTimeMs int64            `json:"execution_time_ms"`
	ErrorMessage    string           `gorm:"type:text" json:"error_message,omitempty"`
	StartedAt       *time.Time       `json:"started_at,omitempty"`
	FinishedAt      *time.Time       `json:"finished_at,omitempty"`
	IsDeleted       bool             `gorm:"default:false;index" json:"is_deleted"`
	DeletedAt       *time.Time       `json:"deleted_at,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// TableName 指定表名
func (ImputationResult) TableName() string {
	return "imputation_results"
}

// BeforeCreate 创建前钩子
func (i *ImputationResult) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	return nil
}

// ImputationDetail 插补明细模型，一条记录对应一个被填补的单元格
type ImputationDetail struct {
	ID            string     `gorm:"type:varchar(50);primaryKey" json:"id"`
	ResultID      string     `gorm:"type:varchar(50);not null;index" json:"result_id"`
	ColumnName    string     `gorm:"type:varchar(100);not null;index" json:"column_name"`
	RowIndex      int        `gorm:"not null" json:"row_index"`
	OriginalValue string     `gorm:"type:varchar(100)" json:"original_value"` // 按构造恒为缺失
	ImputedValue  float64    `json:"imputed_value"`
	Confidence    float64    `json:"confidence"` // 置信度 (0-1)
	Method        string     `gorm:"type:varchar(50);not null" json:"method"`
	IsDeleted     bool       `gorm:"default:false;index" json:"is_deleted"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// TableName 指定表名
func (ImputationDetail) TableName() string {
	return "imputation_details"
}

// BeforeCreate 创建前钩子
func (i *ImputationDetail) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	return nil
}

// ImputationColumnStat 插补列统计模型，记录填补前后的分布变化
type ImputationColumnStat struct {
	ID            string     `gorm:"type:varchar(50);primaryKey" json:"id"`
	ResultID      string     `gorm:"type:varchar(50);not null;index" json:"result_id"`
	ColumnName    string     `gorm:"type:varchar(100);not null" json:"column_name"`
	MissingCount  int64      `json:"missing_count"`
	ImputedCount  int64      `json:"imputed_count"`
	PreMean       float64    `json:"pre_mean"`  // 填补前均值
	PreStd        float64    `json:"pre_std"`   // 填补前标准差
	PostMean      float64    `json:"post_mean"` // 填补后均值
	PostStd       float64    `json:"post_std"`  // 填补后标准差
	ImputedMin    float64    `json:"imputed_min"` // 仅插补值的最小值
	ImputedMax    float64    `json:"imputed_max"` // 仅插补值的最大值
	AvgConfidence float64    `json:"avg_confidence"`
	IsDeleted     bool       `gorm:"default:false;index" json:"is_deleted"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// TableName 指定表名
func (ImputationColumnStat) TableName() string {
	return "imputation_column_stats"
}

// BeforeCreate 创建前钩子
func (i *ImputationColumnStat) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	return nil
}

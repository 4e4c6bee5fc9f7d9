/*
 * @module service/models/dataset_models
 * @description 站点观测数据集模型，包含项目、站点、数据集和数据集版本
 * @architecture 数据模型层
 * @documentReference ai_docs/flux_dataset_req.md
 * @stateFlow 项目创建 -> 站点登记 -> 数据集导入 -> 版本快照
 * @rules 数据集版本为不可变快照，版本文件由表格解析服务读取
 * @dependencies gorm.io/gorm, github.com/google/uuid, time
 * @refs service/tabular/, service/models/threshold_models.go
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Project 观测项目模型
type Project struct {
	ID          string    `gorm:"type:varchar(50);primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(100);not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedBy   string    `gorm:"type:varchar(50)" json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Project) TableName() string {
	return "projects"
}

// BeforeCreate 创建前钩子
func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

// Site 观测站点模型
type Site struct {
	ID             string    `gorm:"type:varchar(50);primaryKey" json:"id"`
	ProjectID      string    `gorm:"type:varchar(50);not null;index" json:"project_id"`
	Name           string    `gorm:"type:varchar(100);not null" json:"name"`
	Code           string    `gorm:"type:varchar(50);index" json:"code"` // 站点编码，如 CN-Cha
	Longitude      float64   `json:"longitude"`
	Latitude       float64   `json:"latitude"`
	Elevation      float64   `json:"elevation"`                               // 海拔，米
	VegetationType string    `gorm:"type:varchar(50)" json:"vegetation_type"` // 植被类型
	Description    string    `gorm:"type:text" json:"description"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Site) TableName() string {
	return "sites"
}

// BeforeCreate 创建前钩子
func (s *Site) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// Dataset 数据集模型
type Dataset struct {
	ID          string    `gorm:"type:varchar(50);primaryKey" json:"id"`
	SiteID      string    `gorm:"type:varchar(50);not null;index" json:"site_id"`
	Name        string    `gorm:"type:varchar(100);not null" json:"name"`
	DatasetType string    `gorm:"type:varchar(30);not null" json:"dataset_type"` // flux, meteo, soil
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Dataset) TableName() string {
	return "datasets"
}

// BeforeCreate 创建前钩子
func (d *Dataset) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return nil
}

// DatasetVersion 数据集版本模型，对应一次处理阶段的不可变数据快照
type DatasetVersion struct {
	ID        string    `gorm:"type:varchar(50);primaryKey" json:"id"`
	DatasetID string    `gorm:"type:varchar(50);not null;index" json:"dataset_id"`
	Version   int       `gorm:"not null" json:"version"`
	Stage     string    `gorm:"type:varchar(30);not null" json:"stage"`     // raw, filtered, quality_controlled
	FilePath  string    `gorm:"type:varchar(500);not null" json:"file_path"`
	FileType  string    `gorm:"type:varchar(10);not null" json:"file_type"` // csv, xlsx
	RowCount  int64     `json:"row_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (DatasetVersion) TableName() string {
	return "dataset_versions"
}

// BeforeCreate 创建前钩子
func (v *DatasetVersion) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	return nil
}

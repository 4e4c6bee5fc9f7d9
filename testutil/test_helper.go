/*
 * @module testutil/test_helper
 * @description 测试工具和辅助函数
 * @architecture 测试基础设施 - 提供测试通用工具和数据工厂
 * @documentReference .specify/memory/test_plan.md
 * @stateFlow 测试环境初始化 -> 测试数据创建 -> 测试执行 -> 清理资源
 * @rules 提供可重用的测试工具，确保测试环境的一致性
 * @dependencies gorm, sqlite, time
 * @refs service/models
 */

package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fluxqc-service/service/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB 测试数据库配置
type TestDB struct {
	DB *gorm.DB
}

// NewTestDB 创建测试数据库
func NewTestDB() *TestDB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(fmt.Sprintf("failed to connect test database: %v", err))
	}

	// 自动迁移所有模型
	err = db.AutoMigrate(
		&models.Project{},
		&models.Site{},
		&models.Dataset{},
		&models.DatasetVersion{},
		&models.ColumnThreshold{},
		&models.DetectionConfig{},
		&models.DetectionResult{},
		&models.DetectionDetail{},
		&models.DetectionColumnStat{},
		&models.ImputationResult{},
		&models.ImputationDetail{},
		&models.ImputationColumnStat{},
	)
	if err != nil {
		panic(fmt.Sprintf("failed to migrate test database: %v", err))
	}

	return &TestDB{DB: db}
}

// CleanDB 清理数据库
func (tdb *TestDB) CleanDB() {
	tables := []string{
		"projects",
		"sites",
		"datasets",
		"dataset_versions",
		"column_thresholds",
		"detection_configs",
		"detection_results",
		"detection_details",
		"detection_column_stats",
		"imputation_results",
		"imputation_details",
		"imputation_column_stats",
	}

	for _, table := range tables {
		tdb.DB.Exec(fmt.Sprintf("DELETE FROM %s", table))
	}
}

// Close 关闭数据库连接
func (tdb *TestDB) Close() {
	if db, err := tdb.DB.DB(); err == nil {
		db.Close()
	}
}

// TestDataFactory 测试数据工厂
type TestDataFactory struct {
	DB *gorm.DB
}

// NewTestDataFactory 创建测试数据工厂
func NewTestDataFactory(db *gorm.DB) *TestDataFactory {
	return &TestDataFactory{DB: db}
}

// ProjectOption 项目选项函数类型
type ProjectOption func(*models.Project)

// CreateProject 创建测试项目
func (f *TestDataFactory) CreateProject(opts ...ProjectOption) *models.Project {
	project := &models.Project{
		ID:          generateID("proj"),
		Name:        "测试观测项目",
		Description: "这是一个测试观测项目",
		CreatedBy:   "test",
	}
	for _, opt := range opts {
		opt(project)
	}

	if err := f.DB.Create(project).Error; err != nil {
		panic(fmt.Sprintf("failed to create test project: %v", err))
	}
	return project
}

// SiteOption 站点选项函数类型
type SiteOption func(*models.Site)

// CreateSite 创建测试站点
func (f *TestDataFactory) CreateSite(projectID string, opts ...SiteOption) *models.Site {
	site := &models.Site{
		ID:             generateID("site"),
		ProjectID:      projectID,
		Name:           "长白山站",
		Code:           "CN-Cha",
		Longitude:      128.0958,
		Latitude:       42.4025,
		Elevation:      738,
		VegetationType: "温带针阔混交林",
	}
	for _, opt := range opts {
		opt(site)
	}

	if err := f.DB.Create(site).Error; err != nil {
		panic(fmt.Sprintf("failed to create test site: %v", err))
	}
	return site
}

// DatasetOption 数据集选项函数类型
type DatasetOption func(*models.Dataset)

// CreateDataset 创建测试数据集
func (f *TestDataFactory) CreateDataset(siteID string, opts ...DatasetOption) *models.Dataset {
	dataset := &models.Dataset{
		ID:          generateID("ds"),
		SiteID:      siteID,
		Name:        "测试通量数据集",
		DatasetType: "flux",
		Description: "这是一个测试通量数据集",
	}
	for _, opt := range opts {
		opt(dataset)
	}

	if err := f.DB.Create(dataset).Error; err != nil {
		panic(fmt.Sprintf("failed to create test dataset: %v", err))
	}
	return dataset
}

// CreateVersionWithCSV 写入临时CSV文件并创建指向它的数据集版本
// 返回的版本指向 t.TempDir 之外的临时文件，调用方通过 RemoveVersionFile 清理
func (f *TestDataFactory) CreateVersionWithCSV(datasetID string, csvContent string) *models.DatasetVersion {
	file, err := os.CreateTemp("", "fluxqc_test_*.csv")
	if err != nil {
		panic(fmt.Sprintf("failed to create temp csv: %v", err))
	}
	if _, err := file.WriteString(csvContent); err != nil {
		panic(fmt.Sprintf("failed to write temp csv: %v", err))
	}
	file.Close()

	version := &models.DatasetVersion{
		ID:        generateID("ver"),
		DatasetID: datasetID,
		Version:   1,
		Stage:     "raw",
		FilePath:  file.Name(),
		FileType:  "csv",
	}
	if err := f.DB.Create(version).Error; err != nil {
		panic(fmt.Sprintf("failed to create test version: %v", err))
	}
	return version
}

// RemoveVersionFile 清理版本指向的临时文件
func RemoveVersionFile(version *models.DatasetVersion) {
	if filepath.IsAbs(version.FilePath) {
		os.Remove(version.FilePath)
	}
}

// ThresholdOption 阈值选项函数类型
type ThresholdOption func(*models.ColumnThreshold)

// CreateThreshold 创建测试列阈值
func (f *TestDataFactory) CreateThreshold(datasetID, columnName string, min, max *float64, opts ...ThresholdOption) *models.ColumnThreshold {
	threshold := &models.ColumnThreshold{
		ID:           generateID("th"),
		DatasetID:    datasetID,
		ColumnName:   columnName,
		MinThreshold: min,
		MaxThreshold: max,
	}
	for _, opt := range opts {
		opt(threshold)
	}

	if err := f.DB.Create(threshold).Error; err != nil {
		panic(fmt.Sprintf("failed to create test threshold: %v", err))
	}
	return threshold
}

// DetectionConfigOption 检测配置选项函数类型
type DetectionConfigOption func(*models.DetectionConfig)

// CreateDetectionConfig 创建测试检测配置
func (f *TestDataFactory) CreateDetectionConfig(scopeType, scopeID, columnName string, params models.JSONB, opts ...DetectionConfigOption) *models.DetectionConfig {
	config := &models.DetectionConfig{
		ID:              generateID("cfg"),
		ScopeType:       scopeType,
		ScopeID:         scopeID,
		ColumnName:      columnName,
		DetectionMethod: "THRESHOLD_STATIC",
		MethodParams:    params,
		Priority:        50,
		IsActive:        true,
	}
	for _, opt := range opts {
		opt(config)
	}

	if err := f.DB.Create(config).Error; err != nil {
		panic(fmt.Sprintf("failed to create test detection config: %v", err))
	}
	return config
}

// FloatPtr 构造浮点指针
func FloatPtr(v float64) *float64 {
	return &v
}

// 辅助函数
func generateID(prefix string) string {
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixNano(), generateSuffix())
}

func generateSuffix() string {
	return fmt.Sprintf("%d", time.Now().UnixNano()%100000)
}

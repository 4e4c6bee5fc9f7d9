/*
 * @module service/init
 * @description 服务初始化模块，负责数据库连接、迁移和全局服务装配
 * @architecture 分层架构 - 服务层
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow 应用启动时执行初始化流程
 * @rules 确保所有依赖服务正常启动后才提供API服务
 * @dependencies gorm.io/gorm, gorm.io/driver/postgres
 * @refs service/database/migrate.go
 */

package service

import (
	"fmt"
	"log"
	"os"

	"fluxqc-service/service/cleanup"
	"fluxqc-service/service/database"
	"fluxqc-service/service/dataset"
	"fluxqc-service/service/detection"
	"fluxqc-service/service/distributed_lock"
	"fluxqc-service/service/event"
	"fluxqc-service/service/imputation"
	"fluxqc-service/service/tabular"
	"fluxqc-service/service/threshold"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	DB                       *gorm.DB
	GlobalDatasetService     *dataset.DatasetService
	GlobalThresholdService   *threshold.ThresholdService
	GlobalScopeResolver      *threshold.ScopeResolver
	GlobalParseService       *tabular.ParseService
	GlobalProgressService    *event.ProgressService
	GlobalRunPublisher       event.RunPublisher
	GlobalDetectionService   *detection.DetectionService
	GlobalImputationService  *imputation.ImputationService
	GlobalRunLock            distributed_lock.RunLock
	GlobalCleanupService     *cleanup.ResultCleanupService
	GlobalDBListener         *event.DBListener
)

func init() {
	initDatabase()
	runMigrations()
	initServices()
}

// initDatabase 初始化数据库连接
func initDatabase() {
	var err error
	DB, err = gorm.Open(postgres.Open(databaseDSN()), &gorm.Config{})
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}
	log.Println("数据库连接成功")
}

// databaseDSN 构建数据库连接串，pq 监听器与 GORM 共用
func databaseDSN() string {
	// 优先使用DATABASE_URL环境变量
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		return databaseURL
	}

	host := getEnvWithDefault("DB_HOST", "localhost")
	port := getEnvWithDefault("DB_PORT", "5432")
	user := getEnvWithDefault("DB_USER", "postgres")
	password := getEnvWithDefault("DB_PASSWORD", "things2024")
	dbname := getEnvWithDefault("DB_NAME", "postgres")
	sslmode := getEnvWithDefault("DB_SSLMODE", "disable")
	schema := getEnvWithDefault("DB_SCHEMA", "public")

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s search_path=%s TimeZone=Asia/Shanghai",
		host, port, user, password, dbname, sslmode, schema)
}

// getEnvWithDefault 获取环境变量，如果不存在则返回默认值
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// runMigrations 运行数据库迁移
func runMigrations() {
	if err := database.AutoMigrate(DB); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}
	log.Println("数据库表结构迁移完成")
}

// initServices 初始化服务
func initServices() {
	GlobalDatasetService = dataset.NewDatasetService(DB)
	GlobalThresholdService = threshold.NewThresholdService(DB)
	GlobalScopeResolver = threshold.NewScopeResolver(DB)
	GlobalParseService = tabular.NewParseService(nil)
	GlobalProgressService = event.NewProgressService()
	GlobalRunPublisher = event.NewRunPublisherFromEnv()
	GlobalDetectionService = detection.NewDetectionService(DB, GlobalScopeResolver, GlobalParseService, GlobalRunPublisher)
	GlobalImputationService = imputation.NewImputationService(DB, GlobalParseService, GlobalRunPublisher)
	GlobalRunLock = distributed_lock.NewRunLockFromEnv()

	// 仅 PostgreSQL 部署启用数据库结果事件监听
	if os.Getenv("ENABLE_DB_EVENTS") == "true" {
		if err := database.EnsureResultEventTriggers(DB); err != nil {
			log.Printf("安装结果事件触发器失败: %v", err)
		}
		GlobalDBListener = event.NewDBListener(databaseDSN(), GlobalProgressService)
		if err := GlobalDBListener.Start(); err != nil {
			log.Printf("数据库结果事件监听启动失败: %v", err)
		}
	}

	GlobalCleanupService = cleanup.NewResultCleanupService(DB)
	if err := GlobalCleanupService.StartScheduledCleanup(); err != nil {
		log.Printf("启动结果清理调度器失败: %v", err)
	}

	log.Println("服务初始化完成")
}

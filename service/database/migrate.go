/*
 * @module service/database/migrate
 * @description 数据库迁移模块，负责创建和更新数据库表结构
 * @architecture 数据访问层 - 迁移管理
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow 应用启动时执行数据库迁移
 * @rules 确保数据库结构与模型定义保持一致
 * @dependencies fluxqc-service/service/models, gorm.io/gorm
 * @refs service/init.go
 */

package database

import (
	"fmt"
	"log"

	"fluxqc-service/service/models"

	"gorm.io/gorm"
)

// AutoMigrate 自动迁移数据库表结构
func AutoMigrate(db *gorm.DB) error {
	log.Println("开始数据库迁移...")

	// 数据集元数据相关表
	err := db.AutoMigrate(
		&models.Project{},
		&models.Site{},
		&models.Dataset{},
		&models.DatasetVersion{},
	)
	if err != nil {
		return err
	}

	// 阈值与检测配置相关表
	err = db.AutoMigrate(
		&models.ColumnThreshold{},
		&models.DetectionConfig{},
	)
	if err != nil {
		return err
	}

	// 检测结果相关表
	err = db.AutoMigrate(
		&models.DetectionResult{},
		&models.DetectionDetail{},
		&models.DetectionColumnStat{},
	)
	if err != nil {
		return err
	}

	// 插补结果相关表
	err = db.AutoMigrate(
		&models.ImputationResult{},
		&models.ImputationDetail{},
		&models.ImputationColumnStat{},
	)
	if err != nil {
		return err
	}

	log.Println("数据库迁移完成")
	return nil
}

// notifyFunctionSQL 结果状态变更通知函数，载荷结构与事件监听器约定一致
const notifyFunctionSQL = `
CREATE OR REPLACE FUNCTION notify_qc_result_changes()
RETURNS TRIGGER AS $$
DECLARE
    run_type TEXT;
BEGIN
    IF TG_TABLE_NAME = 'detection_results' THEN
        run_type := 'detection';
    ELSE
        run_type := 'imputation';
    END IF;

    PERFORM pg_notify('qc_result_events', json_build_object(
        'result_id', NEW.id,
        'run_type', run_type,
        'status', NEW.status
    )::TEXT);

    RETURN NEW;
END;
$$ LANGUAGE plpgsql;
`

// EnsureResultEventTriggers 为结果表安装状态变更通知触发器
// LISTEN/NOTIFY 仅 PostgreSQL 支持，其他方言直接跳过
func EnsureResultEventTriggers(db *gorm.DB) error {
	if db.Dialector.Name() != "postgres" {
		log.Println("非 PostgreSQL 部署，跳过结果事件触发器安装")
		return nil
	}

	if err := db.Exec(notifyFunctionSQL).Error; err != nil {
		return fmt.Errorf("创建结果通知函数失败: %w", err)
	}

	for _, tableName := range []string{"detection_results", "imputation_results"} {
		createTriggerSQL := fmt.Sprintf(`
			CREATE OR REPLACE TRIGGER %s_notify
			AFTER INSERT OR UPDATE OF status ON %s
			FOR EACH ROW
			EXECUTE FUNCTION notify_qc_result_changes();
		`, tableName, tableName)
		if err := db.Exec(createTriggerSQL).Error; err != nil {
			return fmt.Errorf("创建表 %s 的通知触发器失败: %w", tableName, err)
		}
		log.Printf("表 %s 的结果事件触发器已就绪", tableName)
	}
	return nil
}

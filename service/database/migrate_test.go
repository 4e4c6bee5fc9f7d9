package database

import (
	"testing"

	"fluxqc-service/service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openMigrateTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db
}

func TestAutoMigrate_CreatesAllTables(t *testing.T) {
	db := openMigrateTestDB(t)
	require.NoError(t, AutoMigrate(db))

	for _, model := range []interface{}{
		&models.Project{}, &models.Site{}, &models.Dataset{}, &models.DatasetVersion{},
		&models.ColumnThreshold{}, &models.DetectionConfig{},
		&models.DetectionResult{}, &models.DetectionDetail{}, &models.DetectionColumnStat{},
		&models.ImputationResult{}, &models.ImputationDetail{}, &models.ImputationColumnStat{},
	} {
		assert.True(t, db.Migrator().HasTable(model))
	}
}

func TestEnsureResultEventTriggers_SkipsNonPostgres(t *testing.T) {
	db := openMigrateTestDB(t)
	require.NoError(t, AutoMigrate(db))

	// sqlite 不支持 LISTEN/NOTIFY，安装应为无副作用的空操作
	assert.NoError(t, EnsureResultEventTriggers(db))
}

func TestNotifyFunction_PayloadMatchesListenerContract(t *testing.T) {
	// 通知函数产出的键名与监听器解析的载荷结构保持一致
	for _, key := range []string{"'result_id'", "'run_type'", "'status'"} {
		assert.Contains(t, notifyFunctionSQL, key)
	}
	assert.Contains(t, notifyFunctionSQL, "pg_notify('qc_result_events'")
}

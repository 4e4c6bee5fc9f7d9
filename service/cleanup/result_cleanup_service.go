/*
 * @module service/cleanup/result_cleanup_service
 * @description 结果清理服务，定期物理清除超过保留期的软删除质量结果
 * @architecture 分层架构 - 业务服务层
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow 定时触发 -> 按保留期筛选软删除记录 -> 先子后父物理删除 -> 记录结果
 * @rules 只清理 is_deleted=true 且删除时间早于保留期的记录，活跃结果永不触碰
 * @dependencies gorm.io/gorm, github.com/robfig/cron/v3
 * @refs service/models/detection_models.go, service/models/imputation_models.go
 */

package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"fluxqc-service/service/models"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// DefaultRetentionDays 软删除结果的默认保留天数
const DefaultRetentionDays = 30

// ResultCleanupService 结果清理服务
type ResultCleanupService struct {
	db            *gorm.DB
	retentionDays int
	cron          *cron.Cron
	ctx           context.Context
	cancel        context.CancelFunc
	started       bool
}

// NewResultCleanupService 创建结果清理服务实例
// 保留天数从 RESULT_RETENTION_DAYS 读取，缺省 30 天
func NewResultCleanupService(db *gorm.DB) *ResultCleanupService {
	ctx, cancel := context.WithCancel(context.Background())

	retentionDays := DefaultRetentionDays
	if v := os.Getenv("RESULT_RETENTION_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil && days > 0 {
			retentionDays = days
		} else {
			slog.Warn("RESULT_RETENTION_DAYS 配置无效，使用默认值", "value", v, "default", DefaultRetentionDays)
		}
	}

	return &ResultCleanupService{
		db:            db,
		retentionDays: retentionDays,
		cron:          cron.New(cron.WithSeconds()),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// CleanupExpiredResults 清理所有超过保留期的软删除结果
func (s *ResultCleanupService) CleanupExpiredResults(ctx context.Context) error {
	slog.Info("开始清理过期的软删除结果", "retention_days", s.retentionDays)
	startTime := time.Now()
	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)

	detectionDeleted, err := s.purgeDetectionResults(cutoff)
	if err != nil {
		slog.Error("清理检测结果失败", "error", err)
	} else {
		slog.Info("清理检测结果完成", "deleted_count", detectionDeleted)
	}

	imputationDeleted, err := s.purgeImputationResults(cutoff)
	if err != nil {
		slog.Error("清理插补结果失败", "error", err)
	} else {
		slog.Info("清理插补结果完成", "deleted_count", imputationDeleted)
	}

	slog.Info("结果清理完成",
		"detection_deleted", detectionDeleted,
		"imputation_deleted", imputationDeleted,
		"duration_ms", time.Since(startTime).Milliseconds())
	return nil
}

// purgeDetectionResults 物理删除过期的检测结果，先删子记录再删结果
func (s *ResultCleanupService) purgeDetectionResults(cutoff time.Time) (int64, error) {
	var resultIDs []string
	err := s.db.Model(&models.DetectionResult{}).
		Where("is_deleted = ? AND deleted_at < ?", true, cutoff).
		Pluck("id", &resultIDs).Error
	if err != nil {
		return 0, err
	}
	if len(resultIDs) == 0 {
		return 0, nil
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.DetectionDetail{}, "result_id IN ?", resultIDs).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.DetectionColumnStat{}, "result_id IN ?", resultIDs).Error; err != nil {
			return err
		}
		return tx.Delete(&models.DetectionResult{}, "id IN ?", resultIDs).Error
	})
	if err != nil {
		return 0, fmt.Errorf("删除检测结果失败: %w", err)
	}
	return int64(len(resultIDs)), nil
}

// purgeImputationResults 物理删除过期的插补结果
func (s *ResultCleanupService) purgeImputationResults(cutoff time.Time) (int64, error) {
	var resultIDs []string
	err := s.db.Model(&models.ImputationResult{}).
		Where("is_deleted = ? AND deleted_at < ?", true, cutoff).
		Pluck("id", &resultIDs).Error
	if err != nil {
		return 0, err
	}
	if len(resultIDs) == 0 {
		return 0, nil
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.ImputationDetail{}, "result_id IN ?", resultIDs).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.ImputationColumnStat{}, "result_id IN ?", resultIDs).Error; err != nil {
			return err
		}
		return tx.Delete(&models.ImputationResult{}, "id IN ?", resultIDs).Error
	})
	if err != nil {
		return 0, fmt.Errorf("删除插补结果失败: %w", err)
	}
	return int64(len(resultIDs)), nil
}

// StartScheduledCleanup 启动定时清理任务，每天凌晨3点执行
func (s *ResultCleanupService) StartScheduledCleanup() error {
	if s.started {
		return fmt.Errorf("结果清理调度器已经启动")
	}

	// Cron表达式：秒 分 时 日 月 周
	_, err := s.cron.AddFunc("0 0 3 * * *", func() {
		if err := s.CleanupExpiredResults(s.ctx); err != nil {
			slog.Error("定时结果清理任务失败", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("添加定时任务失败: %w", err)
	}

	s.cron.Start()
	s.started = true
	slog.Info("结果清理调度器启动成功", "schedule", "每天凌晨3点", "retention_days", s.retentionDays)
	return nil
}

// StopScheduledCleanup 停止定时清理任务
func (s *ResultCleanupService) StopScheduledCleanup() {
	if !s.started {
		return
	}
	s.cancel()
	if s.cron != nil {
		s.cron.Stop()
	}
	s.started = false
	slog.Info("结果清理调度器已停止")
}

/*
 * @module service/detection/detection_service
 * @description 异常值检测执行引擎，解析版本数据、逐列判定并事务化落库结果
 * @architecture 分层架构 - 服务层
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow 目标列选择 -> 结果记录(RUNNING) -> 文件解析 -> 逐列扫描 -> 事务落库 -> COMPLETED/FAILED
 * @rules 结果创建后的一切异常都收敛到运行边界：结果置 FAILED 并原样返回，不留部分明细；明细与列统计一个事务落库
 * @dependencies gorm.io/gorm, service/threshold, service/tabular, service/event, service/monitoring
 * @refs classifier.go, service/threshold/scope_resolver.go
 */

package detection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fluxqc-service/service/event"
	"fluxqc-service/service/meta"
	"fluxqc-service/service/models"
	"fluxqc-service/service/monitoring"
	"fluxqc-service/service/qcerrors"
	"fluxqc-service/service/tabular"
	"fluxqc-service/service/threshold"

	"gorm.io/gorm"
)

// maxDetailRows 单次运行落库明细行上限，超出部分只计数不落库（聚合计数始终为真值）
const maxDetailRows = 1000

// ExecuteDetectionRequest 检测执行请求
type ExecuteDetectionRequest struct {
	DatasetID   string       `json:"dataset_id"`
	VersionID   string       `json:"version_id"`
	ColumnNames []string     `json:"column_names,omitempty"` // 省略时取所有已配置阈值的列
	Method      string       `json:"method,omitempty"`       // 省略时为 THRESHOLD_STATIC
	Params      models.JSONB `json:"params,omitempty"`
}

// DetectionSummary 检测执行结果摘要
type DetectionSummary struct {
	ResultID         string                       `json:"result_id"`
	Status           string                       `json:"status"`
	TotalRows        int64                        `json:"total_rows"`
	OutlierCount     int64                        `json:"outlier_count"`
	OutlierRate      float64                      `json:"outlier_rate"`
	ColumnStats      []models.DetectionColumnStat `json:"column_stats"`
	DetailsTruncated bool                         `json:"details_truncated"`
}

// targetColumn 本次运行的目标列及其生效阈值
type targetColumn struct {
	name     string
	resolved *threshold.ResolvedThreshold
}

// DetectionService 异常值检测服务
type DetectionService struct {
	db        *gorm.DB
	resolver  *threshold.ScopeResolver
	parser    *tabular.ParseService
	publisher event.RunPublisher
}

// NewDetectionService 创建检测服务实例，publisher 可为 nil
func NewDetectionService(db *gorm.DB, resolver *threshold.ScopeResolver, parser *tabular.ParseService, publisher event.RunPublisher) *DetectionService {
	return &DetectionService{db: db, resolver: resolver, parser: parser, publisher: publisher}
}

// Execute 执行一次检测运行
// 结果创建前的校验错误直接返回；创建后的错误统一写入结果并返回同一错误
func (s *DetectionService) Execute(ctx context.Context, req *ExecuteDetectionRequest, onProgress event.ProgressFunc) (*DetectionSummary, error) {
	startTime := time.Now()

	dataset, version, err := s.loadTarget(req.DatasetID, req.VersionID)
	if err != nil {
		return nil, err
	}

	methodID := req.Method
	if methodID == "" {
		methodID = meta.MethodThresholdStatic
	}
	method, ok := meta.GetDetectionMethod(methodID)
	if !ok {
		return nil, qcerrors.Newf(qcerrors.ErrorTypeMethodUnavailable, "未知的检测方法: %s", methodID)
	}
	if !method.IsAvailable || method.RequiresExternalRuntime {
		return nil, qcerrors.Newf(qcerrors.ErrorTypeMethodUnavailable, "检测方法 %s 不可用", methodID)
	}
	if err := meta.ValidateDetectionParams(methodID, req.Params); err != nil {
		return nil, qcerrors.Wrap(qcerrors.ErrorTypeValidation, "方法参数无效", err)
	}

	targets, err := s.selectTargets(methodID, req.ColumnNames, dataset)
	if err != nil {
		return nil, err
	}

	// 目标列确定后创建结果记录，状态直接进入 RUNNING
	now := time.Now()
	result := &models.DetectionResult{
		DatasetID:    dataset.ID,
		VersionID:    version.ID,
		Method:       methodID,
		MethodParams: req.Params,
		Status:       models.RunStatusRunning,
		StartedAt:    &now,
	}
	if err := s.db.Create(result).Error; err != nil {
		return nil, fmt.Errorf("创建检测结果记录失败: %w", err)
	}

	emit(onProgress, &models.ProgressEvent{
		ResultID: result.ID,
		Stage:    models.ProgressStagePreparing,
		Progress: 0,
		Message:  "开始解析版本数据",
	})

	summary, err := s.run(ctx, result, version, targets, onProgress)
	if err != nil {
		s.failRun(result, err)
		monitoring.ObserveRun("detection", models.RunStatusFailed, time.Since(startTime))
		s.publishCompletion(result, models.RunStatusFailed)
		return nil, err
	}

	monitoring.ObserveRun("detection", models.RunStatusCompleted, time.Since(startTime))
	s.publishCompletion(result, models.RunStatusCompleted)
	return summary, nil
}

// run 结果创建后的运行主体，任何返回错误都由调用方写入结果记录
func (s *DetectionService) run(ctx context.Context, result *models.DetectionResult, version *models.DatasetVersion, targets []targetColumn, onProgress event.ProgressFunc) (*DetectionSummary, error) {
	table, err := s.parseInBackground(ctx, version.FilePath)
	if err != nil {
		return nil, err
	}

	var (
		details      []models.DetectionDetail
		columnStats  []models.DetectionColumnStat
		outlierCount int64
		scannedCells int64
		truncated    bool
	)

	// 列顺序即进度与明细次序，保持确定性
	for i, target := range targets {
		colIdx := table.ColumnIndex(target.name)
		if colIdx < 0 {
			slog.Warn("目标列不在版本数据中，跳过", "result_id", result.ID, "column", target.name)
			continue
		}

		// 先收集有效数值，统计类方法由此推导判定边界
		values := make([]float64, 0, table.TotalRows)
		rowIdx := make([]int, 0, table.TotalRows)
		for r := 0; r < table.TotalRows; r++ {
			if v, ok := s.parser.CoerceNumeric(table.Cell(r, colIdx)); ok {
				values = append(values, v)
				rowIdx = append(rowIdx, r)
			}
		}

		classify, err := BuildClassifier(result.Method, result.MethodParams, target.resolved.Min, target.resolved.Max, values)
		if err != nil {
			return nil, err
		}

		var colOutliers int64
		for j, v := range values {
			scannedCells++
			c := classify(v)
			if !c.IsOutlier {
				continue
			}
			colOutliers++
			outlierCount++
			if len(details) < maxDetailRows {
				details = append(details, models.DetectionDetail{
					ResultID:       result.ID,
					RowIndex:       rowIdx[j],
					ColumnName:     target.name,
					OriginalValue:  table.Cell(rowIdx[j], colIdx),
					OutlierType:    c.OutlierType,
					ThresholdValue: c.ThresholdValue,
				})
			} else {
				truncated = true
			}
		}

		columnStats = append(columnStats, models.DetectionColumnStat{
			ResultID:     result.ID,
			ColumnName:   target.name,
			OutlierCount: colOutliers,
			MinThreshold: target.resolved.Min, // 运行时阈值快照
			MaxThreshold: target.resolved.Max,
		})

		emit(onProgress, &models.ProgressEvent{
			ResultID:      result.ID,
			Stage:         models.ProgressStageDetecting,
			Progress:      (i + 1) * 100 / len(targets),
			Message:       fmt.Sprintf("列 %s 检出 %d 个异常值", target.name, colOutliers),
			CurrentColumn: target.name,
		})
	}

	emit(onProgress, &models.ProgressEvent{
		ResultID: result.ID,
		Stage:    models.ProgressStageSaving,
		Progress: 100,
		Message:  "保存检测结果",
	})

	var outlierRate float64
	if scannedCells > 0 {
		outlierRate = float64(outlierCount) / float64(scannedCells)
	}

	// 明细、列统计与终态更新一个事务提交，COMPLETED 的结果不会缺子记录
	finished := time.Now()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if len(details) > 0 {
			if err := tx.CreateInBatches(details, 200).Error; err != nil {
				return fmt.Errorf("保存检测明细失败: %w", err)
			}
		}
		if len(columnStats) > 0 {
			if err := tx.CreateInBatches(columnStats, 200).Error; err != nil {
				return fmt.Errorf("保存列统计失败: %w", err)
			}
		}
		return tx.Model(result).Updates(map[string]interface{}{
			"status":        models.RunStatusCompleted,
			"total_rows":    int64(table.TotalRows),
			"outlier_count": outlierCount,
			"outlier_rate":  outlierRate,
			"finished_at":   &finished,
		}).Error
	})
	if err != nil {
		return nil, qcerrors.Wrap(qcerrors.ErrorTypeExecution, "检测结果落库失败", err)
	}

	monitoring.DetailRowsWritten.WithLabelValues("detection").Add(float64(len(details)))

	return &DetectionSummary{
		ResultID:         result.ID,
		Status:           models.RunStatusCompleted,
		TotalRows:        int64(table.TotalRows),
		OutlierCount:     outlierCount,
		OutlierRate:      outlierRate,
		ColumnStats:      columnStats,
		DetailsTruncated: truncated,
	}, nil
}

// parseInBackground 在独立 goroutine 中执行阻塞的文件解析，挂起点仅在此处和最终落库
func (s *DetectionService) parseInBackground(ctx context.Context, filePath string) (*tabular.ParseResult, error) {
	type parseOutcome struct {
		table *tabular.ParseResult
		err   error
	}
	done := make(chan parseOutcome, 1)
	go func() {
		table, err := s.parser.Parse(ctx, filePath)
		done <- parseOutcome{table: table, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, qcerrors.Wrap(qcerrors.ErrorTypeExecution, "解析被上下文中断", ctx.Err())
	case outcome := <-done:
		return outcome.table, outcome.err
	}
}

// selectTargets 选择目标列
// 阈值方法: 显式列过滤到有可用阈值者，省略时取数据集所有配置了阈值的列，零可用列报配置错误
// 统计类方法: 必须显式给出目标列，阈值解析仅作快照参考
func (s *DetectionService) selectTargets(methodID string, columnNames []string, dataset *models.Dataset) ([]targetColumn, error) {
	if methodID != meta.MethodThresholdStatic {
		if len(columnNames) == 0 {
			return nil, qcerrors.Newf(qcerrors.ErrorTypeValidation, "方法 %s 需要显式指定目标列", methodID)
		}
		targets := make([]targetColumn, 0, len(columnNames))
		for _, name := range columnNames {
			resolved, err := s.resolver.Resolve(name, dataset.ID, dataset.SiteID)
			if err != nil {
				return nil, err
			}
			targets = append(targets, targetColumn{name: name, resolved: resolved})
		}
		return targets, nil
	}

	candidates := columnNames
	if len(candidates) == 0 {
		thresholds := make([]models.ColumnThreshold, 0)
		err := s.db.Where("dataset_id = ? AND (min_threshold IS NOT NULL OR max_threshold IS NOT NULL)", dataset.ID).
			Order("column_name ASC").
			Find(&thresholds).Error
		if err != nil {
			return nil, err
		}
		for _, t := range thresholds {
			candidates = append(candidates, t.ColumnName)
		}
	}

	targets := make([]targetColumn, 0, len(candidates))
	for _, name := range candidates {
		resolved, err := s.resolver.Resolve(name, dataset.ID, dataset.SiteID)
		if err != nil {
			return nil, err
		}
		if resolved.HasBound() {
			targets = append(targets, targetColumn{name: name, resolved: resolved})
		}
	}
	if len(targets) == 0 {
		return nil, qcerrors.New(qcerrors.ErrorTypeConfiguration, "没有任何列配置了可用阈值")
	}
	return targets, nil
}

// loadTarget 加载数据集与版本，版本必须属于该数据集
func (s *DetectionService) loadTarget(datasetID, versionID string) (*models.Dataset, *models.DatasetVersion, error) {
	if datasetID == "" || versionID == "" {
		return nil, nil, qcerrors.New(qcerrors.ErrorTypeValidation, "数据集ID和版本ID不能为空")
	}

	var dataset models.Dataset
	if err := s.db.First(&dataset, "id = ?", datasetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, qcerrors.Newf(qcerrors.ErrorTypeNotFound, "数据集 %s 不存在", datasetID)
		}
		return nil, nil, err
	}

	var version models.DatasetVersion
	if err := s.db.First(&version, "id = ? AND dataset_id = ?", versionID, datasetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, qcerrors.Newf(qcerrors.ErrorTypeNotFound, "数据集版本 %s 不存在", versionID)
		}
		return nil, nil, err
	}
	return &dataset, &version, nil
}

// failRun 将运行置为 FAILED，落库记录与返回错误保持一致
func (s *DetectionService) failRun(result *models.DetectionResult, runErr error) {
	finished := time.Now()
	err := s.db.Model(result).Updates(map[string]interface{}{
		"status":        models.RunStatusFailed,
		"error_message": runErr.Error(),
		"finished_at":   &finished,
	}).Error
	if err != nil {
		slog.Error("更新检测结果为失败状态时出错", "result_id", result.ID, "error", err)
	}
}

func (s *DetectionService) publishCompletion(result *models.DetectionResult, status string) {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishRunEvent(&models.QualityRunEvent{
		ResultID:   result.ID,
		RunType:    "detection",
		DatasetID:  result.DatasetID,
		VersionID:  result.VersionID,
		Status:     status,
		Method:     result.Method,
		FinishedAt: time.Now(),
	})
}

// emit 进度回调为空时为空操作
func emit(onProgress event.ProgressFunc, ev *models.ProgressEvent) {
	if onProgress != nil {
		onProgress(ev)
	}
}

// === 结果查询与删除 ===

// GetResults 获取数据集的检测结果列表，软删除的结果不返回
func (s *DetectionService) GetResults(datasetID string) ([]models.DetectionResult, error) {
	if datasetID == "" {
		return nil, qcerrors.New(qcerrors.ErrorTypeValidation, "数据集ID不能为空")
	}
	var results []models.DetectionResult
	err := s.db.Where("dataset_id = ? AND is_deleted = ?", datasetID, false).
		Order("created_at DESC").
		Find(&results).Error
	return results, err
}

// GetResult 获取单个检测结果
func (s *DetectionService) GetResult(resultID string) (*models.DetectionResult, error) {
	var result models.DetectionResult
	err := s.db.Where("id = ? AND is_deleted = ?", resultID, false).First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, qcerrors.Newf(qcerrors.ErrorTypeNotFound, "检测结果 %s 不存在", resultID)
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// GetResultDetails 分页获取检测明细，可按列过滤
func (s *DetectionService) GetResultDetails(resultID, columnName string, limit, offset int) ([]models.DetectionDetail, int64, error) {
	if _, err := s.GetResult(resultID); err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 100
	}

	query := s.db.Model(&models.DetectionDetail{}).
		Where("result_id = ? AND is_deleted = ?", resultID, false)
	if columnName != "" {
		query = query.Where("column_name = ?", columnName)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var details []models.DetectionDetail
	err := query.Order("row_index ASC").Limit(limit).Offset(offset).Find(&details).Error
	return details, total, err
}

// GetColumnStats 获取检测结果的列统计
func (s *DetectionService) GetColumnStats(resultID string) ([]models.DetectionColumnStat, error) {
	if _, err := s.GetResult(resultID); err != nil {
		return nil, err
	}
	var stats []models.DetectionColumnStat
	err := s.db.Where("result_id = ? AND is_deleted = ?", resultID, false).
		Order("column_name ASC").
		Find(&stats).Error
	return stats, err
}

// DeleteResult 软删除检测结果并级联软删除明细与列统计，兄弟结果不受影响
func (s *DetectionService) DeleteResult(resultID string) error {
	if _, err := s.GetResult(resultID); err != nil {
		return err
	}

	now := time.Now()
	marks := map[string]interface{}{"is_deleted": true, "deleted_at": &now}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.DetectionDetail{}).
			Where("result_id = ?", resultID).Updates(marks).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.DetectionColumnStat{}).
			Where("result_id = ?", resultID).Updates(marks).Error; err != nil {
			return err
		}
		return tx.Model(&models.DetectionResult{}).
			Where("id = ?", resultID).Updates(marks).Error
	})
}

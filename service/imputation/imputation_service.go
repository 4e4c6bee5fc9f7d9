/*
 * @module service/imputation/imputation_service
 * @description 缺失值插补执行引擎，解析版本数据、逐列填补并事务化落库结果
 * @architecture 分层架构 - 服务层
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow 方法与列校验 -> 结果记录(RUNNING) -> 文件解析 -> 逐列填补 -> 事务落库 -> COMPLETED/FAILED
 * @rules 不可用方法按元数据降级到回退方法并记日志；插补率 = 插补数/缺失数，缺失数为 0 记 0
 * @dependencies gorm.io/gorm, service/tabular, service/event, service/monitoring
 * @refs filler.go, service/meta/imputation_meta.go
 */

package imputation

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

	"gorm.io/gorm"
)

// maxDetailRows 单次运行落库明细行上限，超出部分只计数不落库
const maxDetailRows = 1000

// ExecuteImputationRequest 插补执行请求
type ExecuteImputationRequest struct {
	DatasetID     string   `json:"dataset_id"`
	VersionID     string   `json:"version_id"`
	MethodID      string   `json:"method_id"`
	TargetColumns []string `json:"target_columns"`
}

// ImputationSummary 插补执行结果摘要
type ImputationSummary struct {
	ResultID         string                        `json:"result_id"`
	Status           string                        `json:"status"`
	MethodID         string                        `json:"method_id"` // 实际执行的方法，可能是回退方法
	TotalMissing     int64                         `json:"total_missing"`
	ImputedCount     int64                         `json:"imputed_count"`
	ImputationRate   float64                       `json:"imputation_rate"`
	ExecutionTimeMs  int64                         `json:"execution_time_ms"`
	ColumnStats      []models.ImputationColumnStat `json:"column_stats"`
	DetailsTruncated bool                          `json:"details_truncated"`
}

// ImputationService 缺失值插补服务
type ImputationService struct {
	db        *gorm.DB
	parser    *tabular.ParseService
	publisher event.RunPublisher
}

// NewImputationService 创建插补服务实例，publisher 可为 nil
func NewImputationService(db *gorm.DB, parser *tabular.ParseService, publisher event.RunPublisher) *ImputationService {
	return &ImputationService{db: db, parser: parser, publisher: publisher}
}

// Execute 执行一次插补运行
func (s *ImputationService) Execute(ctx context.Context, req *ExecuteImputationRequest, onProgress event.ProgressFunc) (*ImputationSummary, error) {
	startTime := time.Now()

	dataset, version, err := s.loadTarget(req.DatasetID, req.VersionID)
	if err != nil {
		return nil, err
	}
	if len(req.TargetColumns) == 0 {
		return nil, qcerrors.New(qcerrors.ErrorTypeValidation, "目标列不能为空")
	}

	methodID, err := s.resolveMethod(req.MethodID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	result := &models.ImputationResult{
		DatasetID:     dataset.ID,
		VersionID:     version.ID,
		MethodID:      methodID,
		TargetColumns: models.JSONBStringArray(req.TargetColumns),
		Status:        models.RunStatusRunning,
		StartedAt:     &now,
	}
	if err := s.db.Create(result).Error; err != nil {
		return nil, fmt.Errorf("创建插补结果记录失败: %w", err)
	}

	emit(onProgress, &models.ProgressEvent{
		ResultID: result.ID,
		Stage:    models.ProgressStagePreparing,
		Progress: 0,
		Message:  "开始解析版本数据",
	})

	summary, err := s.run(ctx, result, version, req.TargetColumns, onProgress, startTime)
	if err != nil {
		s.failRun(result, err, startTime)
		monitoring.ObserveRun("imputation", models.RunStatusFailed, time.Since(startTime))
		s.publishCompletion(result, models.RunStatusFailed)
		return nil, err
	}

	monitoring.ObserveRun("imputation", models.RunStatusCompleted, time.Since(startTime))
	s.publishCompletion(result, models.RunStatusCompleted)
	return summary, nil
}

// resolveMethod 解析实际执行方法，不可用方法降级到回退方法
func (s *ImputationService) resolveMethod(methodID string) (string, error) {
	if methodID == "" {
		return "", qcerrors.New(qcerrors.ErrorTypeValidation, "插补方法不能为空")
	}
	method, ok := meta.GetImputationMethod(methodID)
	if !ok {
		return "", qcerrors.Newf(qcerrors.ErrorTypeMethodUnavailable, "未知的插补方法: %s", methodID)
	}
	if method.IsAvailable {
		return method.ID, nil
	}
	if method.FallbackMethod == "" {
		return "", qcerrors.Newf(qcerrors.ErrorTypeMethodUnavailable, "插补方法 %s 不可用且没有回退方法", methodID)
	}
	slog.Warn("插补方法不可用，降级到回退方法", "requested", methodID, "fallback", method.FallbackMethod)
	return method.FallbackMethod, nil
}

// run 结果创建后的运行主体
func (s *ImputationService) run(ctx context.Context, result *models.ImputationResult, version *models.DatasetVersion, targetColumns []string, onProgress event.ProgressFunc, startTime time.Time) (*ImputationSummary, error) {
	table, err := s.parseInBackground(ctx, version.FilePath)
	if err != nil {
		return nil, err
	}

	// 目标列必须全部在版本数据中
	for _, name := range targetColumns {
		if table.ColumnIndex(name) < 0 {
			return nil, qcerrors.Newf(qcerrors.ErrorTypeColumnNotFound, "列 %s 不在版本数据中", name)
		}
	}

	var (
		details      []models.ImputationDetail
		columnStats  []models.ImputationColumnStat
		totalMissing int64
		imputedCount int64
		truncated    bool
	)

	for i, name := range targetColumns {
		colIdx := table.ColumnIndex(name)

		// 缺失标记和非数值单元格都按缺失处理
		values := make([]float64, table.TotalRows)
		valid := make([]bool, table.TotalRows)
		var colMissing int64
		for r := 0; r < table.TotalRows; r++ {
			if v, ok := s.parser.CoerceNumeric(table.Cell(r, colIdx)); ok {
				values[r] = v
				valid[r] = true
			} else {
				colMissing++
			}
		}
		totalMissing += colMissing

		cells, err := FillColumn(result.MethodID, values, valid)
		if err != nil {
			return nil, err
		}

		stat := s.buildColumnStat(result.ID, name, values, valid, cells, colMissing)
		columnStats = append(columnStats, stat)
		imputedCount += stat.ImputedCount

		for _, cell := range cells {
			if len(details) >= maxDetailRows {
				truncated = true
				break
			}
			details = append(details, models.ImputationDetail{
				ResultID:      result.ID,
				ColumnName:    name,
				RowIndex:      cell.RowIndex,
				OriginalValue: table.Cell(cell.RowIndex, colIdx),
				ImputedValue:  cell.Value,
				Confidence:    cell.Confidence,
				Method:        result.MethodID,
			})
		}

		emit(onProgress, &models.ProgressEvent{
			ResultID:      result.ID,
			Stage:         models.ProgressStageImputing,
			Progress:      (i + 1) * 100 / len(targetColumns),
			Message:       fmt.Sprintf("列 %s 填补 %d/%d 个缺失值", name, stat.ImputedCount, colMissing),
			CurrentColumn: name,
		})
	}

	emit(onProgress, &models.ProgressEvent{
		ResultID: result.ID,
		Stage:    models.ProgressStageSaving,
		Progress: 100,
		Message:  "保存插补结果",
	})

	var rate float64
	if totalMissing > 0 {
		rate = float64(imputedCount) / float64(totalMissing)
	}
	elapsed := time.Since(startTime).Milliseconds()

	finished := time.Now()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if len(details) > 0 {
			if err := tx.CreateInBatches(details, 200).Error; err != nil {
				return fmt.Errorf("保存插补明细失败: %w", err)
			}
		}
		if len(columnStats) > 0 {
			if err := tx.CreateInBatches(columnStats, 200).Error; err != nil {
				return fmt.Errorf("保存列统计失败: %w", err)
			}
		}
		return tx.Model(result).Updates(map[string]interface{}{
			"status":            models.RunStatusCompleted,
			"total_missing":     totalMissing,
			"imputed_count":     imputedCount,
			"imputation_rate":   rate,
			"execution_time_ms": elapsed,
			"finished_at":       &finished,
		}).Error
	})
	if err != nil {
		return nil, qcerrors.Wrap(qcerrors.ErrorTypeExecution, "插补结果落库失败", err)
	}

	monitoring.DetailRowsWritten.WithLabelValues("imputation").Add(float64(len(details)))

	return &ImputationSummary{
		ResultID:         result.ID,
		Status:           models.RunStatusCompleted,
		MethodID:         result.MethodID,
		TotalMissing:     totalMissing,
		ImputedCount:     imputedCount,
		ImputationRate:   rate,
		ExecutionTimeMs:  elapsed,
		ColumnStats:      columnStats,
		DetailsTruncated: truncated,
	}, nil
}

// buildColumnStat 构建单列填补前后的分布统计
func (s *ImputationService) buildColumnStat(resultID, columnName string, values []float64, valid []bool, cells []FilledCell, missing int64) models.ImputationColumnStat {
	validValues := make([]float64, 0, len(values))
	for i, v := range values {
		if valid[i] {
			validValues = append(validValues, v)
		}
	}

	stat := models.ImputationColumnStat{
		ResultID:     resultID,
		ColumnName:   columnName,
		MissingCount: missing,
		ImputedCount: int64(len(cells)),
	}
	if len(validValues) > 0 {
		stat.PreMean = mean(validValues)
		stat.PreStd = std(validValues, stat.PreMean)
	}

	if len(cells) > 0 {
		post := append([]float64(nil), validValues...)
		confSum := 0.0
		stat.ImputedMin = cells[0].Value
		stat.ImputedMax = cells[0].Value
		for _, c := range cells {
			post = append(post, c.Value)
			confSum += c.Confidence
			if c.Value < stat.ImputedMin {
				stat.ImputedMin = c.Value
			}
			if c.Value > stat.ImputedMax {
				stat.ImputedMax = c.Value
			}
		}
		stat.PostMean = mean(post)
		stat.PostStd = std(post, stat.PostMean)
		stat.AvgConfidence = confSum / float64(len(cells))
	} else {
		stat.PostMean = stat.PreMean
		stat.PostStd = stat.PreStd
	}
	return stat
}

// parseInBackground 在独立 goroutine 中执行阻塞的文件解析
func (s *ImputationService) parseInBackground(ctx context.Context, filePath string) (*tabular.ParseResult, error) {
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

// loadTarget 加载数据集与版本，版本必须属于该数据集
func (s *ImputationService) loadTarget(datasetID, versionID string) (*models.Dataset, *models.DatasetVersion, error) {
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

// failRun 将运行置为 FAILED
func (s *ImputationService) failRun(result *models.ImputationResult, runErr error, startTime time.Time) {
	finished := time.Now()
	err := s.db.Model(result).Updates(map[string]interface{}{
		"status":            models.RunStatusFailed,
		"error_message":     runErr.Error(),
		"execution_time_ms": time.Since(startTime).Milliseconds(),
		"finished_at":       &finished,
	}).Error
	if err != nil {
		slog.Error("更新插补结果为失败状态时出错", "result_id", result.ID, "error", err)
	}
}

func (s *ImputationService) publishCompletion(result *models.ImputationResult, status string) {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishRunEvent(&models.QualityRunEvent{
		ResultID:   result.ID,
		RunType:    "imputation",
		DatasetID:  result.DatasetID,
		VersionID:  result.VersionID,
		Status:     status,
		Method:     result.MethodID,
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

// GetResults 获取数据集的插补结果列表，软删除的结果不返回
func (s *ImputationService) GetResults(datasetID string) ([]models.ImputationResult, error) {
	if datasetID == "" {
		return nil, qcerrors.New(qcerrors.ErrorTypeValidation, "数据集ID不能为空")
	}
	var results []models.ImputationResult
	err := s.db.Where("dataset_id = ? AND is_deleted = ?", datasetID, false).
		Order("created_at DESC").
		Find(&results).Error
	return results, err
}

// GetResult 获取单个插补结果
func (s *ImputationService) GetResult(resultID string) (*models.ImputationResult, error) {
	var result models.ImputationResult
	err := s.db.Where("id = ? AND is_deleted = ?", resultID, false).First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, qcerrors.Newf(qcerrors.ErrorTypeNotFound, "插补结果 %s 不存在", resultID)
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// GetResultDetails 分页获取插补明细，可按列过滤
func (s *ImputationService) GetResultDetails(resultID, columnName string, limit, offset int) ([]models.ImputationDetail, int64, error) {
	if _, err := s.GetResult(resultID); err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 100
	}

	query := s.db.Model(&models.ImputationDetail{}).
		Where("result_id = ? AND is_deleted = ?", resultID, false)
	if columnName != "" {
		query = query.Where("column_name = ?", columnName)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var details []models.ImputationDetail
	err := query.Order("row_index ASC").Limit(limit).Offset(offset).Find(&details).Error
	return details, total, err
}

// GetColumnStats 获取插补结果的列统计
func (s *ImputationService) GetColumnStats(resultID string) ([]models.ImputationColumnStat, error) {
	if _, err := s.GetResult(resultID); err != nil {
		return nil, err
	}
	var stats []models.ImputationColumnStat
	err := s.db.Where("result_id = ? AND is_deleted = ?", resultID, false).
		Order("column_name ASC").
		Find(&stats).Error
	return stats, err
}

// DeleteResult 软删除插补结果并级联软删除明细与列统计
func (s *ImputationService) DeleteResult(resultID string) error {
	if _, err := s.GetResult(resultID); err != nil {
		return err
	}

	now := time.Now()
	marks := map[string]interface{}{"is_deleted": true, "deleted_at": &now}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.ImputationDetail{}).
			Where("result_id = ?", resultID).Updates(marks).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.ImputationColumnStat{}).
			Where("result_id = ?", resultID).Updates(marks).Error; err != nil {
			return err
		}
		return tx.Model(&models.ImputationResult{}).
			Where("id = ?", resultID).Updates(marks).Error
	})
}

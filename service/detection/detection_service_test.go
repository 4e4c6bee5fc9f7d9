package detection

import (
	"context"
	"sync"
	"testing"

	"fluxqc-service/service/meta"
	"fluxqc-service/service/models"
	"fluxqc-service/service/qcerrors"
	"fluxqc-service/service/tabular"
	"fluxqc-service/service/threshold"
	"fluxqc-service/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDetectionTest(t *testing.T) (*DetectionService, *testutil.TestDataFactory, *testutil.TestDB) {
	tdb := testutil.NewTestDB()
	t.Cleanup(tdb.Close)
	service := NewDetectionService(tdb.DB,
		threshold.NewScopeResolver(tdb.DB),
		tabular.NewParseService(nil),
		nil)
	return service, testutil.NewTestDataFactory(tdb.DB), tdb
}

func TestExecuteDetection_ThresholdStatic(t *testing.T) {
	service, factory, tdb := setupDetectionTest(t)
	project := factory.CreateProject()
	site := factory.CreateSite(project.ID)
	dataset := factory.CreateDataset(site.ID)
	version := factory.CreateVersionWithCSV(dataset.ID,
		"timestamp,Ta\n1,10\n2,-50\n3,200\n4,25\n")
	defer testutil.RemoveVersionFile(version)
	factory.CreateThreshold(dataset.ID, "Ta", testutil.FloatPtr(-40), testutil.FloatPtr(50))

	summary, err := service.Execute(context.Background(), &ExecuteDetectionRequest{
		DatasetID: dataset.ID,
		VersionID: version.ID,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, summary.Status)
	assert.Equal(t, int64(4), summary.TotalRows)
	assert.Equal(t, int64(2), summary.OutlierCount)
	assert.Equal(t, 0.5, summary.OutlierRate)
	assert.False(t, summary.DetailsTruncated)

	// 明细按行序含越下界与越上界各一条
	details, total, err := service.GetResultDetails(summary.ResultID, "", 100, 0)
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	assert.Equal(t, 1, details[0].RowIndex)
	assert.Equal(t, models.OutlierTypeBelowMin, details[0].OutlierType)
	assert.Equal(t, "-50", details[0].OriginalValue)
	assert.Equal(t, -40.0, details[0].ThresholdValue)
	assert.Equal(t, 2, details[1].RowIndex)
	assert.Equal(t, models.OutlierTypeAboveMax, details[1].OutlierType)

	// 列统计携带运行时阈值快照
	stats, err := service.GetColumnStats(summary.ResultID)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "Ta", stats[0].ColumnName)
	assert.Equal(t, int64(2), stats[0].OutlierCount)
	assert.Equal(t, -40.0, *stats[0].MinThreshold)
	assert.Equal(t, 50.0, *stats[0].MaxThreshold)

	// 结果记录进入终态
	result, err := service.GetResult(summary.ResultID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, result.Status)
	assert.NotNil(t, result.StartedAt)
	assert.NotNil(t, result.FinishedAt)

	var count int64
	tdb.DB.Model(&models.DetectionResult{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestExecuteDetection_NoThresholdConfigured(t *testing.T) {
	service, factory, tdb := setupDetectionTest(t)
	project := factory.CreateProject()
	site := factory.CreateSite(project.ID)
	dataset := factory.CreateDataset(site.ID)
	version := factory.CreateVersionWithCSV(dataset.ID, "timestamp,Ta\n1,10\n")
	defer testutil.RemoveVersionFile(version)

	_, err := service.Execute(context.Background(), &ExecuteDetectionRequest{
		DatasetID: dataset.ID,
		VersionID: version.ID,
	}, nil)
	require.Error(t, err)
	assert.True(t, qcerrors.IsType(err, qcerrors.ErrorTypeConfiguration))

	// 校验失败发生在结果创建之前
	var count int64
	tdb.DB.Model(&models.DetectionResult{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestExecuteDetection_DatasetNotFound(t *testing.T) {
	service, _, _ := setupDetectionTest(t)

	_, err := service.Execute(context.Background(), &ExecuteDetectionRequest{
		DatasetID: "missing",
		VersionID: "missing",
	}, nil)
	require.Error(t, err)
	assert.True(t, qcerrors.IsType(err, qcerrors.ErrorTypeNotFound))
}

func TestExecuteDetection_VersionMustBelongToDataset(t *testing.T) {
	service, factory, _ := setupDetectionTest(t)
	project := factory.CreateProject()
	site := factory.CreateSite(project.ID)
	dataset := factory.CreateDataset(site.ID)
	other := factory.CreateDataset(site.ID)
	version := factory.CreateVersionWithCSV(other.ID, "timestamp,Ta\n1,10\n")
	defer testutil.RemoveVersionFile(version)

	_, err := service.Execute(context.Background(), &ExecuteDetectionRequest{
		DatasetID: dataset.ID,
		VersionID: version.ID,
	}, nil)
	require.Error(t, err)
	assert.True(t, qcerrors.IsType(err, qcerrors.ErrorTypeNotFound))
}

func TestExecuteDetection_StatisticalNeedsExplicitColumns(t *testing.T) {
	service, factory, _ := setupDetectionTest(t)
	project := factory.CreateProject()
	site := factory.CreateSite(project.ID)
	dataset := factory.CreateDataset(site.ID)
	version := factory.CreateVersionWithCSV(dataset.ID, "timestamp,Ta\n1,10\n")
	defer testutil.RemoveVersionFile(version)

	_, err := service.Execute(context.Background(), &ExecuteDetectionRequest{
		DatasetID: dataset.ID,
		VersionID: version.ID,
		Method:    meta.MethodZScore,
	}, nil)
	require.Error(t, err)
	assert.True(t, qcerrors.IsType(err, qcerrors.ErrorTypeValidation))
}

func TestExecuteDetection_ZScoreRun(t *testing.T) {
	service, factory, _ := setupDetectionTest(t)
	project := factory.CreateProject()
	site := factory.CreateSite(project.ID)
	dataset := factory.CreateDataset(site.ID)
	version := factory.CreateVersionWithCSV(dataset.ID,
		"timestamp,Fc\n1,9\n2,10\n3,11\n4,10\n5,9\n6,11\n7,10\n8,1000\n")
	defer testutil.RemoveVersionFile(version)

	summary, err := service.Execute(context.Background(), &ExecuteDetectionRequest{
		DatasetID:   dataset.ID,
		VersionID:   version.ID,
		ColumnNames: []string{"Fc"},
		Method:      meta.MethodZScore,
		Params:      models.JSONB{"k": 2.0},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.OutlierCount)

	details, _, err := service.GetResultDetails(summary.ResultID, "Fc", 10, 0)
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, 7, details[0].RowIndex)
	assert.Equal(t, models.OutlierTypeAboveMax, details[0].OutlierType)
}

func TestExecuteDetection_MissingColumnSkipped(t *testing.T) {
	service, factory, _ := setupDetectionTest(t)
	project := factory.CreateProject()
	site := factory.CreateSite(project.ID)
	dataset := factory.CreateDataset(site.ID)
	version := factory.CreateVersionWithCSV(dataset.ID, "timestamp,Ta\n1,10\n2,-50\n")
	defer testutil.RemoveVersionFile(version)
	factory.CreateThreshold(dataset.ID, "Ta", testutil.FloatPtr(-40), testutil.FloatPtr(50))
	factory.CreateThreshold(dataset.ID, "RH", testutil.FloatPtr(0), testutil.FloatPtr(100))

	// RH 不在文件中，跳过而不失败
	summary, err := service.Execute(context.Background(), &ExecuteDetectionRequest{
		DatasetID: dataset.ID,
		VersionID: version.ID,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.OutlierCount)

	stats, err := service.GetColumnStats(summary.ResultID)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "Ta", stats[0].ColumnName)
}

func TestExecuteDetection_MissingTokensNotScanned(t *testing.T) {
	service, factory, _ := setupDetectionTest(t)
	project := factory.CreateProject()
	site := factory.CreateSite(project.ID)
	dataset := factory.CreateDataset(site.ID)
	version := factory.CreateVersionWithCSV(dataset.ID,
		"timestamp,Ta\n1,10\n2,-9999\n3,NA\n4,60\n")
	defer testutil.RemoveVersionFile(version)
	factory.CreateThreshold(dataset.ID, "Ta", testutil.FloatPtr(-40), testutil.FloatPtr(50))

	summary, err := service.Execute(context.Background(), &ExecuteDetectionRequest{
		DatasetID: dataset.ID,
		VersionID: version.ID,
	}, nil)
	require.NoError(t, err)

	// 缺失标记不参与扫描，也不会被当成越界值
	assert.Equal(t, int64(1), summary.OutlierCount)
	assert.Equal(t, 0.5, summary.OutlierRate)
}

func TestExecuteDetection_ProgressEvents(t *testing.T) {
	service, factory, _ := setupDetectionTest(t)
	project := factory.CreateProject()
	site := factory.CreateSite(project.ID)
	dataset := factory.CreateDataset(site.ID)
	version := factory.CreateVersionWithCSV(dataset.ID, "timestamp,Ta\n1,10\n")
	defer testutil.RemoveVersionFile(version)
	factory.CreateThreshold(dataset.ID, "Ta", testutil.FloatPtr(-40), testutil.FloatPtr(50))

	var mu sync.Mutex
	var events []models.ProgressEvent
	_, err := service.Execute(context.Background(), &ExecuteDetectionRequest{
		DatasetID: dataset.ID,
		VersionID: version.ID,
	}, func(ev *models.ProgressEvent) {
		mu.Lock()
		events = append(events, *ev)
		mu.Unlock()
	})
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(events), 3)
	assert.Equal(t, models.ProgressStagePreparing, events[0].Stage)
	assert.Equal(t, models.ProgressStageDetecting, events[1].Stage)
	assert.Equal(t, 100, events[1].Progress)
	assert.Equal(t, models.ProgressStageSaving, events[len(events)-1].Stage)
}

func TestExecuteDetection_FailedRunRecorded(t *testing.T) {
	service, factory, tdb := setupDetectionTest(t)
	project := factory.CreateProject()
	site := factory.CreateSite(project.ID)
	dataset := factory.CreateDataset(site.ID)
	version := factory.CreateVersionWithCSV(dataset.ID, "timestamp,Ta\n1,10\n")
	testutil.RemoveVersionFile(version) // 提前删除文件制造解析失败
	factory.CreateThreshold(dataset.ID, "Ta", testutil.FloatPtr(-40), testutil.FloatPtr(50))

	_, err := service.Execute(context.Background(), &ExecuteDetectionRequest{
		DatasetID: dataset.ID,
		VersionID: version.ID,
	}, nil)
	require.Error(t, err)

	var result models.DetectionResult
	require.NoError(t, tdb.DB.First(&result, "dataset_id = ?", dataset.ID).Error)
	assert.Equal(t, models.RunStatusFailed, result.Status)
	assert.NotEmpty(t, result.ErrorMessage)
	assert.NotNil(t, result.FinishedAt)
}

func TestDeleteResult_CascadesAndSparesSiblings(t *testing.T) {
	service, factory, tdb := setupDetectionTest(t)
	project := factory.CreateProject()
	site := factory.CreateSite(project.ID)
	dataset := factory.CreateDataset(site.ID)
	version := factory.CreateVersionWithCSV(dataset.ID, "timestamp,Ta\n1,-50\n2,10\n")
	defer testutil.RemoveVersionFile(version)
	factory.CreateThreshold(dataset.ID, "Ta", testutil.FloatPtr(-40), testutil.FloatPtr(50))

	first, err := service.Execute(context.Background(), &ExecuteDetectionRequest{
		DatasetID: dataset.ID, VersionID: version.ID}, nil)
	require.NoError(t, err)
	second, err := service.Execute(context.Background(), &ExecuteDetectionRequest{
		DatasetID: dataset.ID, VersionID: version.ID}, nil)
	require.NoError(t, err)

	require.NoError(t, service.DeleteResult(first.ResultID))

	_, err = service.GetResult(first.ResultID)
	assert.True(t, qcerrors.IsType(err, qcerrors.ErrorTypeNotFound))

	var deletedDetails int64
	tdb.DB.Model(&models.DetectionDetail{}).
		Where("result_id = ? AND is_deleted = ?", first.ResultID, true).
		Count(&deletedDetails)
	assert.Equal(t, int64(1), deletedDetails)

	// 兄弟结果不受级联影响
	_, err = service.GetResult(second.ResultID)
	assert.NoError(t, err)
	details, total, err := service.GetResultDetails(second.ResultID, "", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, details, 1)

	results, err := service.GetResults(dataset.ID)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestGetResultDetails_Pagination(t *testing.T) {
	service, factory, _ := setupDetectionTest(t)
	project := factory.CreateProject()
	site := factory.CreateSite(project.ID)
	dataset := factory.CreateDataset(site.ID)
	// 5 行全部越界
	version := factory.CreateVersionWithCSV(dataset.ID,
		"timestamp,Ta\n1,100\n2,101\n3,102\n4,103\n5,104\n")
	defer testutil.RemoveVersionFile(version)
	factory.CreateThreshold(dataset.ID, "Ta", nil, testutil.FloatPtr(50))

	summary, err := service.Execute(context.Background(), &ExecuteDetectionRequest{
		DatasetID: dataset.ID, VersionID: version.ID}, nil)
	require.NoError(t, err)
	require.Equal(t, int64(5), summary.OutlierCount)

	page, total, err := service.GetResultDetails(summary.ResultID, "", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page, 2)
	assert.Equal(t, 2, page[0].RowIndex)
	assert.Equal(t, 3, page[1].RowIndex)
}

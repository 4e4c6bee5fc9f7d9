package imputation

import (
	"context"
	"testing"

	"fluxqc-service/service/meta"
	"fluxqc-service/service/models"
	"fluxqc-service/service/qcerrors"
	"fluxqc-service/service/tabular"
	"fluxqc-service/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupImputationTest(t *testing.T) (*ImputationService, *testutil.TestDataFactory, *testutil.TestDB) {
	tdb := testutil.NewTestDB()
	t.Cleanup(tdb.Close)
	service := NewImputationService(tdb.DB, tabular.NewParseService(nil), nil)
	return service, testutil.NewTestDataFactory(tdb.DB), tdb
}

func TestExecuteImputation_Mean(t *testing.T) {
	service, factory, _ := setupImputationTest(t)
	project := factory.CreateProject()
	site := factory.CreateSite(project.ID)
	dataset := factory.CreateDataset(site.ID)
	version := factory.CreateVersionWithCSV(dataset.ID,
		"timestamp,Ta\n1,10\n2,-9999\n3,20\n4,30\n")
	defer testutil.RemoveVersionFile(version)

	summary, err := service.Execute(context.Background(), &ExecuteImputationRequest{
		DatasetID:     dataset.ID,
		VersionID:     version.ID,
		MethodID:      meta.ImputeMean,
		TargetColumns: []string{"Ta"},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, summary.Status)
	assert.Equal(t, meta.ImputeMean, summary.MethodID)
	assert.Equal(t, int64(1), summary.TotalMissing)
	assert.Equal(t, int64(1), summary.ImputedCount)
	assert.Equal(t, 1.0, summary.ImputationRate)
	assert.False(t, summary.DetailsTruncated)

	details, total, err := service.GetResultDetails(summary.ResultID, "", 10, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	assert.Equal(t, 1, details[0].RowIndex)
	assert.Equal(t, "-9999", details[0].OriginalValue)
	assert.Equal(t, 20.0, details[0].ImputedValue)
	assert.Equal(t, meta.ImputeMean, details[0].Method)
	assert.Greater(t, details[0].Confidence, 0.0)
	assert.LessOrEqual(t, details[0].Confidence, 1.0)
}

func TestExecuteImputation_ColumnStats(t *testing.T) {
	service, factory, _ := setupImputationTest(t)
	project := factory.CreateProject()
	site := factory.CreateSite(project.ID)
	dataset := factory.CreateDataset(site.ID)
	version := factory.CreateVersionWithCSV(dataset.ID,
		"timestamp,Ta\n1,10\n2,NA\n3,20\n")
	defer testutil.RemoveVersionFile(version)

	summary, err := service.Execute(context.Background(), &ExecuteImputationRequest{
		DatasetID:     dataset.ID,
		VersionID:     version.ID,
		MethodID:      meta.ImputeMean,
		TargetColumns: []string{"Ta"},
	}, nil)
	require.NoError(t, err)

	stats, err := service.GetColumnStats(summary.ResultID)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "Ta", stats[0].ColumnName)
	assert.Equal(t, int64(1), stats[0].MissingCount)
	assert.Equal(t, int64(1), stats[0].ImputedCount)
	assert.Equal(t, 15.0, stats[0].PreMean)
	// 均值填补不改变均值
	assert.Equal(t, 15.0, stats[0].PostMean)
	assert.Equal(t, 15.0, stats[0].ImputedMin)
	assert.Equal(t, 15.0, stats[0].ImputedMax)
	assert.Greater(t, stats[0].AvgConfidence, 0.0)
}

func TestExecuteImputation_FallbackToLinear(t *testing.T) {
	service, factory, _ := setupImputationTest(t)
	project := factory.CreateProject()
	site := factory.CreateSite(project.ID)
	dataset := factory.CreateDataset(site.ID)
	version := factory.CreateVersionWithCSV(dataset.ID,
		"timestamp,Ta\n1,10\n2,-9999\n3,30\n")
	defer testutil.RemoveVersionFile(version)

	// SPLINE 不可用，按元数据降级到 LINEAR
	summary, err := service.Execute(context.Background(), &ExecuteImputationRequest{
		DatasetID:     dataset.ID,
		VersionID:     version.ID,
		MethodID:      meta.ImputeSpline,
		TargetColumns: []string{"Ta"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, meta.ImputeLinear, summary.MethodID)

	details, _, err := service.GetResultDetails(summary.ResultID, "", 10, 0)
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, 20.0, details[0].ImputedValue)
}

func TestExecuteImputation_ColumnNotInFile(t *testing.T) {
	service, factory, tdb := setupImputationTest(t)
	project := factory.CreateProject()
	site := factory.CreateSite(project.ID)
	dataset := factory.CreateDataset(site.ID)
	version := factory.CreateVersionWithCSV(dataset.ID, "timestamp,Ta\n1,10\n")
	defer testutil.RemoveVersionFile(version)

	_, err := service.Execute(context.Background(), &ExecuteImputationRequest{
		DatasetID:     dataset.ID,
		VersionID:     version.ID,
		MethodID:      meta.ImputeMean,
		TargetColumns: []string{"RH"},
	}, nil)
	require.Error(t, err)
	assert.True(t, qcerrors.IsType(err, qcerrors.ErrorTypeColumnNotFound))

	// 运行已创建，失败原因落库
	var result models.ImputationResult
	require.NoError(t, tdb.DB.First(&result, "dataset_id = ?", dataset.ID).Error)
	assert.Equal(t, models.RunStatusFailed, result.Status)
	assert.NotEmpty(t, result.ErrorMessage)
}

func TestExecuteImputation_EmptyFile(t *testing.T) {
	service, factory, tdb := setupImputationTest(t)
	project := factory.CreateProject()
	site := factory.CreateSite(project.ID)
	dataset := factory.CreateDataset(site.ID)
	version := factory.CreateVersionWithCSV(dataset.ID, "timestamp,Ta\n")
	defer testutil.RemoveVersionFile(version)

	_, err := service.Execute(context.Background(), &ExecuteImputationRequest{
		DatasetID:     dataset.ID,
		VersionID:     version.ID,
		MethodID:      meta.ImputeMean,
		TargetColumns: []string{"Ta"},
	}, nil)
	require.Error(t, err)
	assert.True(t, qcerrors.IsType(err, qcerrors.ErrorTypeEmptyData))

	var result models.ImputationResult
	require.NoError(t, tdb.DB.First(&result, "dataset_id = ?", dataset.ID).Error)
	assert.Equal(t, models.RunStatusFailed, result.Status)
	assert.NotEmpty(t, result.ErrorMessage)
}

func TestExecuteImputation_EmptyTargetColumns(t *testing.T) {
	service, factory, tdb := setupImputationTest(t)
	project := factory.CreateProject()
	site := factory.CreateSite(project.ID)
	dataset := factory.CreateDataset(site.ID)
	version := factory.CreateVersionWithCSV(dataset.ID, "timestamp,Ta\n1,10\n")
	defer testutil.RemoveVersionFile(version)

	_, err := service.Execute(context.Background(), &ExecuteImputationRequest{
		DatasetID: dataset.ID,
		VersionID: version.ID,
		MethodID:  meta.ImputeMean,
	}, nil)
	require.Error(t, err)
	assert.True(t, qcerrors.IsType(err, qcerrors.ErrorTypeValidation))

	// 校验失败发生在结果创建之前
	var count int64
	tdb.DB.Model(&models.ImputationResult{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestExecuteImputation_UnknownMethod(t *testing.T) {
	service, factory, _ := setupImputationTest(t)
	project := factory.CreateProject()
	site := factory.CreateSite(project.ID)
	dataset := factory.CreateDataset(site.ID)
	version := factory.CreateVersionWithCSV(dataset.ID, "timestamp,Ta\n1,10\n")
	defer testutil.RemoveVersionFile(version)

	_, err := service.Execute(context.Background(), &ExecuteImputationRequest{
		DatasetID:     dataset.ID,
		VersionID:     version.ID,
		MethodID:      "NO_SUCH_METHOD",
		TargetColumns: []string{"Ta"},
	}, nil)
	require.Error(t, err)
	assert.True(t, qcerrors.IsType(err, qcerrors.ErrorTypeMethodUnavailable))
}

func TestExecuteImputation_NoMissingValues(t *testing.T) {
	service, factory, _ := setupImputationTest(t)
	project := factory.CreateProject()
	site := factory.CreateSite(project.ID)
	dataset := factory.CreateDataset(site.ID)
	version := factory.CreateVersionWithCSV(dataset.ID, "timestamp,Ta\n1,10\n2,20\n")
	defer testutil.RemoveVersionFile(version)

	summary, err := service.Execute(context.Background(), &ExecuteImputationRequest{
		DatasetID:     dataset.ID,
		VersionID:     version.ID,
		MethodID:      meta.ImputeMean,
		TargetColumns: []string{"Ta"},
	}, nil)
	require.NoError(t, err)

	// 无缺失时插补率记 0 而不是除零
	assert.Equal(t, int64(0), summary.TotalMissing)
	assert.Equal(t, int64(0), summary.ImputedCount)
	assert.Equal(t, 0.0, summary.ImputationRate)
}

func TestImputationDeleteResult_Cascades(t *testing.T) {
	service, factory, tdb := setupImputationTest(t)
	project := factory.CreateProject()
	site := factory.CreateSite(project.ID)
	dataset := factory.CreateDataset(site.ID)
	version := factory.CreateVersionWithCSV(dataset.ID,
		"timestamp,Ta\n1,10\n2,-9999\n3,20\n")
	defer testutil.RemoveVersionFile(version)

	summary, err := service.Execute(context.Background(), &ExecuteImputationRequest{
		DatasetID:     dataset.ID,
		VersionID:     version.ID,
		MethodID:      meta.ImputeMean,
		TargetColumns: []string{"Ta"},
	}, nil)
	require.NoError(t, err)

	require.NoError(t, service.DeleteResult(summary.ResultID))

	_, err = service.GetResult(summary.ResultID)
	assert.True(t, qcerrors.IsType(err, qcerrors.ErrorTypeNotFound))

	var deleted int64
	tdb.DB.Model(&models.ImputationDetail{}).
		Where("result_id = ? AND is_deleted = ?", summary.ResultID, true).
		Count(&deleted)
	assert.Equal(t, int64(1), deleted)

	results, err := service.GetResults(dataset.ID)
	require.NoError(t, err)
	assert.Empty(t, results)
}

package dataset

import (
	"testing"

	"fluxqc-service/service/models"
	"fluxqc-service/service/qcerrors"
	"fluxqc-service/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDatasetTest(t *testing.T) (*DatasetService, *testutil.TestDataFactory, *testutil.TestDB) {
	tdb := testutil.NewTestDB()
	t.Cleanup(tdb.Close)
	return NewDatasetService(tdb.DB), testutil.NewTestDataFactory(tdb.DB), tdb
}

func TestCreateProject_Validation(t *testing.T) {
	service, _, _ := setupDatasetTest(t)

	err := service.CreateProject(&models.Project{})
	require.Error(t, err)
	assert.True(t, qcerrors.IsType(err, qcerrors.ErrorTypeValidation))

	require.NoError(t, service.CreateProject(&models.Project{Name: "ChinaFLUX"}))
}

func TestCreateSite_RequiresProject(t *testing.T) {
	service, _, _ := setupDatasetTest(t)

	err := service.CreateSite(&models.Site{Name: "长白山站", ProjectID: "missing"})
	require.Error(t, err)
	assert.True(t, qcerrors.IsType(err, qcerrors.ErrorTypeNotFound))
}

func TestCreateDataset_RequiresSiteAndType(t *testing.T) {
	service, factory, _ := setupDatasetTest(t)
	project := factory.CreateProject()
	site := factory.CreateSite(project.ID)

	err := service.CreateDataset(&models.Dataset{Name: "通量数据", SiteID: site.ID})
	require.Error(t, err)
	assert.True(t, qcerrors.IsType(err, qcerrors.ErrorTypeValidation))

	err = service.CreateDataset(&models.Dataset{Name: "通量数据", DatasetType: "flux", SiteID: "missing"})
	require.Error(t, err)
	assert.True(t, qcerrors.IsType(err, qcerrors.ErrorTypeNotFound))

	require.NoError(t, service.CreateDataset(&models.Dataset{
		Name: "通量数据", DatasetType: "flux", SiteID: site.ID}))
}

func TestUpdateDataset_ImmutableFields(t *testing.T) {
	service, factory, _ := setupDatasetTest(t)
	project := factory.CreateProject()
	site := factory.CreateSite(project.ID)
	dataset := factory.CreateDataset(site.ID)

	require.NoError(t, service.UpdateDataset(dataset.ID, map[string]interface{}{
		"name":    "更名后的数据集",
		"site_id": "attempted-move",
	}))

	got, err := service.GetDataset(dataset.ID)
	require.NoError(t, err)
	assert.Equal(t, "更名后的数据集", got.Name)
	// site_id 不随更新漂移
	assert.Equal(t, site.ID, got.SiteID)
}

func TestDeleteProject_RefusedWithSites(t *testing.T) {
	service, factory, _ := setupDatasetTest(t)
	project := factory.CreateProject()
	factory.CreateSite(project.ID)

	err := service.DeleteProject(project.ID)
	require.Error(t, err)
	assert.True(t, qcerrors.IsType(err, qcerrors.ErrorTypeConflict))

	_, err = service.GetProject(project.ID)
	assert.NoError(t, err)
}

func TestDeleteSite_RefusedWithDatasets(t *testing.T) {
	service, factory, _ := setupDatasetTest(t)
	project := factory.CreateProject()
	site := factory.CreateSite(project.ID)
	factory.CreateDataset(site.ID)

	err := service.DeleteSite(site.ID)
	require.Error(t, err)
	assert.True(t, qcerrors.IsType(err, qcerrors.ErrorTypeConflict))
}

func TestDeleteSite_EmptySiteRemoved(t *testing.T) {
	service, factory, _ := setupDatasetTest(t)
	project := factory.CreateProject()
	site := factory.CreateSite(project.ID)

	require.NoError(t, service.DeleteSite(site.ID))
	_, err := service.GetSite(site.ID)
	assert.True(t, qcerrors.IsType(err, qcerrors.ErrorTypeNotFound))

	// 站点清空后项目可删
	require.NoError(t, service.DeleteProject(project.ID))
}

func TestCreateVersion_AutoIncrement(t *testing.T) {
	service, factory, _ := setupDatasetTest(t)
	project := factory.CreateProject()
	site := factory.CreateSite(project.ID)
	dataset := factory.CreateDataset(site.ID)

	first := &models.DatasetVersion{DatasetID: dataset.ID, Stage: "raw", FilePath: "/data/v1.csv"}
	require.NoError(t, service.CreateVersion(first))
	assert.Equal(t, 1, first.Version)
	// 文件类型从扩展名推断
	assert.Equal(t, "csv", first.FileType)

	second := &models.DatasetVersion{DatasetID: dataset.ID, Stage: "filtered", FilePath: "/data/v2.xlsx"}
	require.NoError(t, service.CreateVersion(second))
	assert.Equal(t, 2, second.Version)
	assert.Equal(t, "xlsx", second.FileType)

	versions, err := service.GetVersions(dataset.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	// 版本列表按版本号降序
	assert.Equal(t, 2, versions[0].Version)
}

func TestCreateVersion_InvalidStage(t *testing.T) {
	service, factory, _ := setupDatasetTest(t)
	project := factory.CreateProject()
	site := factory.CreateSite(project.ID)
	dataset := factory.CreateDataset(site.ID)

	err := service.CreateVersion(&models.DatasetVersion{
		DatasetID: dataset.ID, Stage: "bogus", FilePath: "/data/v1.csv"})
	require.Error(t, err)
	assert.True(t, qcerrors.IsType(err, qcerrors.ErrorTypeValidation))

	err = service.CreateVersion(&models.DatasetVersion{DatasetID: dataset.ID, Stage: "raw"})
	require.Error(t, err)
	assert.True(t, qcerrors.IsType(err, qcerrors.ErrorTypeValidation))
}

func TestDeleteDataset_Cascade(t *testing.T) {
	service, factory, tdb := setupDatasetTest(t)
	project := factory.CreateProject()
	site := factory.CreateSite(project.ID)
	dataset := factory.CreateDataset(site.ID)
	version := factory.CreateVersionWithCSV(dataset.ID, "timestamp,Ta\n1,10\n")
	defer testutil.RemoveVersionFile(version)
	factory.CreateThreshold(dataset.ID, "Ta", testutil.FloatPtr(-40), testutil.FloatPtr(50))
	config := factory.CreateDetectionConfig(models.ScopeDataset, dataset.ID, "Ta", models.JSONB{"min_value": -40.0})

	result := &models.DetectionResult{
		DatasetID: dataset.ID,
		VersionID: version.ID,
		Method:    "THRESHOLD_STATIC",
		Status:    models.RunStatusCompleted,
	}
	require.NoError(t, tdb.DB.Create(result).Error)
	require.NoError(t, tdb.DB.Create(&models.DetectionDetail{
		ResultID: result.ID, ColumnName: "Ta", OutlierType: models.OutlierTypeBelowMin}).Error)

	require.NoError(t, service.DeleteDataset(dataset.ID))

	_, err := service.GetDataset(dataset.ID)
	assert.True(t, qcerrors.IsType(err, qcerrors.ErrorTypeNotFound))

	// 版本与阈值硬删
	var versionCount, thresholdCount int64
	tdb.DB.Model(&models.DatasetVersion{}).Where("dataset_id = ?", dataset.ID).Count(&versionCount)
	tdb.DB.Model(&models.ColumnThreshold{}).Where("dataset_id = ?", dataset.ID).Count(&thresholdCount)
	assert.Equal(t, int64(0), versionCount)
	assert.Equal(t, int64(0), thresholdCount)

	// 数据集级检测配置与质量结果软删
	var cfg models.DetectionConfig
	require.NoError(t, tdb.DB.First(&cfg, "id = ?", config.ID).Error)
	assert.True(t, cfg.IsDeleted)

	var res models.DetectionResult
	require.NoError(t, tdb.DB.First(&res, "id = ?", result.ID).Error)
	assert.True(t, res.IsDeleted)
	var detail models.DetectionDetail
	require.NoError(t, tdb.DB.First(&detail, "result_id = ?", result.ID).Error)
	assert.True(t, detail.IsDeleted)
}

func TestDeleteVersion_SoftDeletesReferencingResults(t *testing.T) {
	service, factory, tdb := setupDatasetTest(t)
	project := factory.CreateProject()
	site := factory.CreateSite(project.ID)
	dataset := factory.CreateDataset(site.ID)
	version := factory.CreateVersionWithCSV(dataset.ID, "timestamp,Ta\n1,10\n")
	defer testutil.RemoveVersionFile(version)

	result := &models.ImputationResult{
		DatasetID: dataset.ID,
		VersionID: version.ID,
		MethodID:  "MEAN",
		Status:    models.RunStatusCompleted,
	}
	require.NoError(t, tdb.DB.Create(result).Error)

	require.NoError(t, service.DeleteVersion(version.ID))

	_, err := service.GetVersion(version.ID)
	assert.True(t, qcerrors.IsType(err, qcerrors.ErrorTypeNotFound))

	var res models.ImputationResult
	require.NoError(t, tdb.DB.First(&res, "id = ?", result.ID).Error)
	assert.True(t, res.IsDeleted)
}

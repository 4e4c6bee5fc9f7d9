package threshold

import (
	"testing"

	"fluxqc-service/service/models"
	"fluxqc-service/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupResolverTest(t *testing.T) (*ScopeResolver, *testutil.TestDataFactory, *models.Dataset, *models.Site) {
	tdb := testutil.NewTestDB()
	t.Cleanup(tdb.Close)
	factory := testutil.NewTestDataFactory(tdb.DB)
	project := factory.CreateProject()
	site := factory.CreateSite(project.ID)
	dataset := factory.CreateDataset(site.ID)
	return NewScopeResolver(tdb.DB), factory, dataset, site
}

func TestResolve_DatasetLevelWins(t *testing.T) {
	resolver, factory, dataset, site := setupResolverTest(t)

	// 三级同时配置，数据集级最窄必须生效
	factory.CreateThreshold(dataset.ID, "Ta", testutil.FloatPtr(-40), testutil.FloatPtr(50))
	factory.CreateDetectionConfig(models.ScopeSite, site.ID, "Ta",
		models.JSONB{"min_value": -30.0, "max_value": 40.0})
	factory.CreateDetectionConfig(models.ScopeApp, "", "Ta",
		models.JSONB{"min_value": -20.0, "max_value": 30.0})

	resolved, err := resolver.Resolve("Ta", dataset.ID, site.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScopeDataset, resolved.Source)
	assert.Equal(t, -40.0, *resolved.Min)
	assert.Equal(t, 50.0, *resolved.Max)
}

func TestResolve_SiteLevelWhenNoDatasetThreshold(t *testing.T) {
	resolver, factory, dataset, site := setupResolverTest(t)

	factory.CreateDetectionConfig(models.ScopeSite, site.ID, "Ta",
		models.JSONB{"min_value": -30.0, "max_value": 40.0})
	factory.CreateDetectionConfig(models.ScopeApp, "", "Ta",
		models.JSONB{"min_value": -20.0, "max_value": 30.0})

	resolved, err := resolver.Resolve("Ta", dataset.ID, site.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScopeSite, resolved.Source)
	assert.Equal(t, -30.0, *resolved.Min)
	assert.Equal(t, 40.0, *resolved.Max)
}

func TestResolve_BothBoundsNilFallsThrough(t *testing.T) {
	resolver, factory, dataset, site := setupResolverTest(t)

	// 两侧均为空的阈值记录不构成数据集级命中
	factory.CreateThreshold(dataset.ID, "Ta", nil, nil)
	factory.CreateDetectionConfig(models.ScopeSite, site.ID, "Ta",
		models.JSONB{"min_value": -30.0})

	resolved, err := resolver.Resolve("Ta", dataset.ID, site.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScopeSite, resolved.Source)
	assert.Equal(t, -30.0, *resolved.Min)
	assert.Nil(t, resolved.Max)
}

func TestResolve_AppWildcardFallback(t *testing.T) {
	resolver, factory, dataset, site := setupResolverTest(t)

	// 列名为空的通配配置覆盖所有列
	factory.CreateDetectionConfig(models.ScopeApp, "", "",
		models.JSONB{"min_value": -9000.0, "max_value": 9000.0})

	resolved, err := resolver.Resolve("Fc", dataset.ID, site.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScopeApp, resolved.Source)
	assert.Equal(t, -9000.0, *resolved.Min)
}

func TestResolve_ExactColumnBeatsWildcard(t *testing.T) {
	resolver, factory, dataset, site := setupResolverTest(t)

	factory.CreateDetectionConfig(models.ScopeApp, "", "",
		models.JSONB{"min_value": -9000.0, "max_value": 9000.0},
		func(c *models.DetectionConfig) { c.Priority = 1 })
	factory.CreateDetectionConfig(models.ScopeApp, "", "Ta",
		models.JSONB{"min_value": -40.0, "max_value": 50.0},
		func(c *models.DetectionConfig) { c.Priority = 99 })

	resolved, err := resolver.Resolve("Ta", dataset.ID, site.ID)
	require.NoError(t, err)
	assert.Equal(t, -40.0, *resolved.Min)
	assert.Equal(t, 50.0, *resolved.Max)
}

func TestResolve_PriorityOrderWithinScope(t *testing.T) {
	resolver, factory, dataset, site := setupResolverTest(t)

	factory.CreateDetectionConfig(models.ScopeSite, site.ID, "Ta",
		models.JSONB{"min_value": -10.0},
		func(c *models.DetectionConfig) { c.Priority = 20 })
	factory.CreateDetectionConfig(models.ScopeSite, site.ID, "Ta",
		models.JSONB{"min_value": -50.0},
		func(c *models.DetectionConfig) { c.Priority = 10 })

	resolved, err := resolver.Resolve("Ta", dataset.ID, site.ID)
	require.NoError(t, err)
	assert.Equal(t, -50.0, *resolved.Min)
}

func TestResolve_IgnoresInactiveAndDeleted(t *testing.T) {
	resolver, factory, dataset, site := setupResolverTest(t)

	factory.CreateDetectionConfig(models.ScopeSite, site.ID, "Ta",
		models.JSONB{"min_value": -30.0},
		func(c *models.DetectionConfig) { c.IsActive = false })
	factory.CreateDetectionConfig(models.ScopeSite, site.ID, "Ta",
		models.JSONB{"min_value": -60.0},
		func(c *models.DetectionConfig) { c.IsDeleted = true })

	resolved, err := resolver.Resolve("Ta", dataset.ID, site.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScopeApp, resolved.Source)
	assert.False(t, resolved.HasBound())
}

func TestResolve_NoConfigReturnsEmptyAppThreshold(t *testing.T) {
	resolver, _, dataset, site := setupResolverTest(t)

	resolved, err := resolver.Resolve("unknown_column", dataset.ID, site.ID)
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, "unknown_column", resolved.ColumnName)
	assert.Equal(t, models.ScopeApp, resolved.Source)
	assert.Nil(t, resolved.Min)
	assert.Nil(t, resolved.Max)
	assert.False(t, resolved.HasBound())
}

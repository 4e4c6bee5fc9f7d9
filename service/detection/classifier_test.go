package detection

import (
	"testing"

	"fluxqc-service/service/meta"
	"fluxqc-service/service/models"
	"fluxqc-service/service/qcerrors"
	"fluxqc-service/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThresholdStaticClassifier(t *testing.T) {
	classify, err := BuildClassifier(meta.MethodThresholdStatic, nil,
		testutil.FloatPtr(-40), testutil.FloatPtr(50), nil)
	require.NoError(t, err)

	below := classify(-50)
	assert.True(t, below.IsOutlier)
	assert.Equal(t, models.OutlierTypeBelowMin, below.OutlierType)
	assert.Equal(t, -40.0, below.ThresholdValue)

	above := classify(60)
	assert.True(t, above.IsOutlier)
	assert.Equal(t, models.OutlierTypeAboveMax, above.OutlierType)
	assert.Equal(t, 50.0, above.ThresholdValue)

	// 边界值不算越界
	assert.False(t, classify(-40).IsOutlier)
	assert.False(t, classify(50).IsOutlier)
	assert.False(t, classify(0).IsOutlier)
}

func TestThresholdStaticClassifier_SingleBound(t *testing.T) {
	classify, err := BuildClassifier(meta.MethodThresholdStatic, nil,
		nil, testutil.FloatPtr(100), nil)
	require.NoError(t, err)

	assert.False(t, classify(-1e9).IsOutlier)
	assert.True(t, classify(101).IsOutlier)
}

func TestThresholdStaticClassifier_MinEqualsMax(t *testing.T) {
	classify, err := BuildClassifier(meta.MethodThresholdStatic, nil,
		testutil.FloatPtr(0), testutil.FloatPtr(0), nil)
	require.NoError(t, err)

	assert.Equal(t, models.OutlierTypeBelowMin, classify(-1).OutlierType)
	assert.Equal(t, models.OutlierTypeAboveMax, classify(1).OutlierType)
	assert.False(t, classify(0).IsOutlier)
}

func TestZScoreClassifier(t *testing.T) {
	// 均值约 10，一个明显离群值
	values := []float64{9, 10, 11, 10, 9, 11, 10, 1000}
	classify, err := BuildClassifier(meta.MethodZScore, models.JSONB{"k": 2.0}, nil, nil, values)
	require.NoError(t, err)

	result := classify(1000)
	assert.True(t, result.IsOutlier)
	assert.Equal(t, models.OutlierTypeAboveMax, result.OutlierType)
	assert.False(t, classify(10).IsOutlier)
}

func TestZScoreClassifier_ZeroVariance(t *testing.T) {
	values := []float64{5, 5, 5, 5}
	classify, err := BuildClassifier(meta.MethodZScore, nil, nil, nil, values)
	require.NoError(t, err)

	// 零方差列任何值都不判离群
	assert.False(t, classify(1e9).IsOutlier)
	assert.False(t, classify(5).IsOutlier)
}

func TestModifiedZScoreClassifier(t *testing.T) {
	values := []float64{10, 10, 11, 9, 10, 12, 8, 500}
	classify, err := BuildClassifier(meta.MethodModifiedZScore, nil, nil, nil, values)
	require.NoError(t, err)

	assert.True(t, classify(500).IsOutlier)
	assert.False(t, classify(10).IsOutlier)
}

func TestModifiedZScoreClassifier_ZeroMAD(t *testing.T) {
	// 多数值相同时 MAD 为 0
	values := []float64{5, 5, 5, 5, 100}
	classify, err := BuildClassifier(meta.MethodModifiedZScore, nil, nil, nil, values)
	require.NoError(t, err)

	assert.False(t, classify(100).IsOutlier)
}

func TestIQRClassifier(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 100}
	classify, err := BuildClassifier(meta.MethodIQR, nil, nil, nil, values)
	require.NoError(t, err)

	assert.True(t, classify(100).IsOutlier)
	assert.Equal(t, models.OutlierTypeAboveMax, classify(100).OutlierType)
	assert.False(t, classify(5).IsOutlier)
}

func TestCustomScriptClassifier(t *testing.T) {
	values := []float64{10, 20, 30}
	classify, err := BuildClassifier(meta.MethodCustomScript,
		models.JSONB{"expression": "x > 100 || x < -100"}, nil, nil, values)
	require.NoError(t, err)

	above := classify(200)
	assert.True(t, above.IsOutlier)
	assert.Equal(t, models.OutlierTypeAboveMax, above.OutlierType)

	below := classify(-200)
	assert.True(t, below.IsOutlier)
	assert.Equal(t, models.OutlierTypeBelowMin, below.OutlierType)

	assert.False(t, classify(50).IsOutlier)
}

func TestCustomScriptClassifier_EmptyExpression(t *testing.T) {
	_, err := BuildClassifier(meta.MethodCustomScript, models.JSONB{}, nil, nil, nil)
	require.Error(t, err)
	assert.True(t, qcerrors.IsType(err, qcerrors.ErrorTypeValidation))
}

func TestCustomScriptClassifier_InvalidExpression(t *testing.T) {
	_, err := BuildClassifier(meta.MethodCustomScript,
		models.JSONB{"expression": "x >"}, nil, nil, nil)
	require.Error(t, err)
	assert.True(t, qcerrors.IsType(err, qcerrors.ErrorTypeValidation))
}

func TestBuildClassifier_UnavailableMethod(t *testing.T) {
	_, err := BuildClassifier(meta.MethodIsolationForest, nil, nil, nil, nil)
	require.Error(t, err)
	assert.True(t, qcerrors.IsType(err, qcerrors.ErrorTypeMethodUnavailable))

	_, err = BuildClassifier("NO_SUCH_METHOD", nil, nil, nil, nil)
	require.Error(t, err)
	assert.True(t, qcerrors.IsType(err, qcerrors.ErrorTypeMethodUnavailable))
}

func TestColumnStatistics(t *testing.T) {
	values := []float64{1, 2, 3, 4}

	assert.Equal(t, 2.5, Mean(values))
	assert.InDelta(t, 1.118, Std(values), 0.001)
	assert.Equal(t, 2.5, Median(values))
	assert.Equal(t, 3.0, Median([]float64{1, 3, 5}))
	assert.Equal(t, 1.0, MAD([]float64{1, 2, 3, 4, 5}))

	assert.Equal(t, 1.0, Quantile(values, 0))
	assert.Equal(t, 4.0, Quantile(values, 1))
	assert.InDelta(t, 1.75, Quantile(values, 0.25), 1e-9)
	assert.InDelta(t, 3.25, Quantile(values, 0.75), 1e-9)

	// 空集约定
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 0.0, Std(nil))
	assert.Equal(t, 0.0, Median(nil))
	assert.Equal(t, 0.0, MAD(nil))
	assert.Equal(t, 0.0, Quantile(nil, 0.5))
}

package imputation

import (
	"testing"

	"fluxqc-service/service/meta"
	"fluxqc-service/service/qcerrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFillColumn_Mean(t *testing.T) {
	values := []float64{1, 2, 3, 4, 0}
	valid := []bool{true, true, true, true, false}

	cells, err := FillColumn(meta.ImputeMean, values, valid)
	require.NoError(t, err)
	require.Len(t, cells, 1)
	assert.Equal(t, 4, cells[0].RowIndex)
	assert.Equal(t, 2.5, cells[0].Value)
	assert.Greater(t, cells[0].Confidence, 0.0)
	assert.LessOrEqual(t, cells[0].Confidence, 0.60)
}

func TestFillColumn_Median(t *testing.T) {
	values := []float64{1, 0, 3, 100}
	valid := []bool{true, false, true, true}

	cells, err := FillColumn(meta.ImputeMedian, values, valid)
	require.NoError(t, err)
	require.Len(t, cells, 1)
	assert.Equal(t, 3.0, cells[0].Value)
}

func TestFillColumn_ModeTiesPickSmaller(t *testing.T) {
	values := []float64{5, 2, 5, 2, 0}
	valid := []bool{true, true, true, true, false}

	cells, err := FillColumn(meta.ImputeMode, values, valid)
	require.NoError(t, err)
	require.Len(t, cells, 1)
	assert.Equal(t, 2.0, cells[0].Value)
}

func TestFillColumn_ForwardFill(t *testing.T) {
	values := []float64{0, 5, 0, 0}
	valid := []bool{false, true, false, false}

	cells, err := FillColumn(meta.ImputeForwardFill, values, valid)
	require.NoError(t, err)
	// 首行前侧没有有效值，保持缺失
	require.Len(t, cells, 2)
	assert.Equal(t, 2, cells[0].RowIndex)
	assert.Equal(t, 5.0, cells[0].Value)
	assert.Equal(t, 3, cells[1].RowIndex)
	assert.Equal(t, 5.0, cells[1].Value)
}

func TestFillColumn_BackwardFill(t *testing.T) {
	values := []float64{0, 5, 0, 0}
	valid := []bool{false, true, false, false}

	cells, err := FillColumn(meta.ImputeBackwardFill, values, valid)
	require.NoError(t, err)
	// 尾部两行后侧没有有效值，保持缺失
	require.Len(t, cells, 1)
	assert.Equal(t, 0, cells[0].RowIndex)
	assert.Equal(t, 5.0, cells[0].Value)
}

func TestFillColumn_LinearInterpolation(t *testing.T) {
	values := []float64{1, 0, 3, 0, 0, 9}
	valid := []bool{true, false, true, false, false, true}

	cells, err := FillColumn(meta.ImputeLinear, values, valid)
	require.NoError(t, err)
	require.Len(t, cells, 3)
	assert.Equal(t, 2.0, cells[0].Value)
	assert.InDelta(t, 5.0, cells[1].Value, 1e-9)
	assert.InDelta(t, 7.0, cells[2].Value, 1e-9)
}

func TestFillColumn_LinearEdgeGaps(t *testing.T) {
	values := []float64{0, 4, 0}
	valid := []bool{false, true, false}

	cells, err := FillColumn(meta.ImputeLinear, values, valid)
	require.NoError(t, err)
	// 边缘缺口取单侧最近有效值
	require.Len(t, cells, 2)
	assert.Equal(t, 4.0, cells[0].Value)
	assert.Equal(t, 4.0, cells[1].Value)
}

func TestFillColumn_AllMissing(t *testing.T) {
	values := []float64{0, 0, 0}
	valid := []bool{false, false, false}

	cells, err := FillColumn(meta.ImputeMean, values, valid)
	require.NoError(t, err)
	assert.Nil(t, cells)
}

func TestFillColumn_NoMissing(t *testing.T) {
	values := []float64{1, 2, 3}
	valid := []bool{true, true, true}

	cells, err := FillColumn(meta.ImputeMean, values, valid)
	require.NoError(t, err)
	assert.Empty(t, cells)
}

func TestFillColumn_UnavailableMethod(t *testing.T) {
	_, err := FillColumn(meta.ImputeSpline, []float64{1}, []bool{true})
	require.Error(t, err)
	assert.True(t, qcerrors.IsType(err, qcerrors.ErrorTypeMethodUnavailable))

	_, err = FillColumn("NO_SUCH_METHOD", []float64{1}, []bool{true})
	require.Error(t, err)
	assert.True(t, qcerrors.IsType(err, qcerrors.ErrorTypeMethodUnavailable))
}

func TestConfidence(t *testing.T) {
	// 零方差时直接取方法权重
	assert.Equal(t, 0.85, confidence(5, 5, 0, 0.85))

	// 填补值恰在均值上时 z=0，置信度为满权重
	assert.InDelta(t, 0.60, confidence(10, 10, 2, 0.60), 1e-9)

	// 偏离越远置信度越低
	near := confidence(11, 10, 2, 0.60)
	far := confidence(16, 10, 2, 0.60)
	assert.Greater(t, near, far)
	assert.Greater(t, far, 0.0)
}

package tabular

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"fluxqc-service/service/qcerrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParse_CSV(t *testing.T) {
	service := NewParseService(nil)
	path := writeTempCSV(t, "timestamp,Ta,RH\n1,10.5,60\n2,-9999,65\n3,12.0,\n")

	result, err := service.Parse(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, []string{"timestamp", "Ta", "RH"}, result.Columns)
	assert.Equal(t, 3, result.TotalRows)
	assert.Len(t, result.Rows, 3)

	// 缺失统计: Ta 有一个 -9999，RH 有一个空串
	assert.Equal(t, int64(1), result.MissingValueStats["Ta"])
	assert.Equal(t, int64(1), result.MissingValueStats["RH"])
	assert.Equal(t, int64(0), result.MissingValueStats["timestamp"])
	assert.True(t, result.ColumnMissingStatus["Ta"])
	assert.False(t, result.ColumnMissingStatus["timestamp"])
}

func TestParse_HeaderOnly(t *testing.T) {
	service := NewParseService(nil)
	path := writeTempCSV(t, "timestamp,Ta\n")

	_, err := service.Parse(context.Background(), path)
	require.Error(t, err)
	// 零数据行与解析失败区分归类
	assert.True(t, qcerrors.IsType(err, qcerrors.ErrorTypeEmptyData))
}

func TestParse_FileNotFound(t *testing.T) {
	service := NewParseService(nil)

	_, err := service.Parse(context.Background(), "/nonexistent/data.csv")
	require.Error(t, err)
	assert.True(t, qcerrors.IsType(err, qcerrors.ErrorTypeData))
}

func TestParse_UnsupportedExtension(t *testing.T) {
	service := NewParseService(nil)

	_, err := service.Parse(context.Background(), "/tmp/data.json")
	require.Error(t, err)
	assert.True(t, qcerrors.IsType(err, qcerrors.ErrorTypeData))
}

func TestParse_RaggedRows(t *testing.T) {
	service := NewParseService(nil)
	// 第二行缺最后一列
	path := writeTempCSV(t, "timestamp,Ta,RH\n1,10,60\n2,11\n")

	result, err := service.Parse(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalRows)
	// 缺列按缺失计
	assert.Equal(t, int64(1), result.MissingValueStats["RH"])
	assert.Equal(t, "", result.Cell(1, 2))
}

func TestParse_CancelledContext(t *testing.T) {
	service := NewParseService(nil)
	path := writeTempCSV(t, "timestamp,Ta\n1,10\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := service.Parse(ctx, path)
	assert.Error(t, err)
}

func TestColumnIndexAndCell(t *testing.T) {
	service := NewParseService(nil)
	path := writeTempCSV(t, "timestamp,Ta\n1,10\n2,20\n")

	result, err := service.Parse(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 1, result.ColumnIndex("Ta"))
	assert.Equal(t, -1, result.ColumnIndex("missing"))
	assert.Equal(t, "20", result.Cell(1, 1))
}

func TestIsMissing(t *testing.T) {
	service := NewParseService(nil)

	assert.True(t, service.IsMissing(""))
	assert.True(t, service.IsMissing("-9999"))
	assert.True(t, service.IsMissing("NA"))
	assert.True(t, service.IsMissing("nan"))
	assert.True(t, service.IsMissing("  NA  "))
	assert.False(t, service.IsMissing("10.5"))

	// 自定义缺失标记覆盖默认表
	custom := NewParseService([]string{"MISSING"})
	assert.True(t, custom.IsMissing("missing"))
	assert.False(t, custom.IsMissing("-9999"))
}

func TestCoerceNumeric(t *testing.T) {
	service := NewParseService(nil)

	v, ok := service.CoerceNumeric("10.5")
	assert.True(t, ok)
	assert.Equal(t, 10.5, v)

	v, ok = service.CoerceNumeric(" -3 ")
	assert.True(t, ok)
	assert.Equal(t, -3.0, v)

	_, ok = service.CoerceNumeric("-9999")
	assert.False(t, ok)

	_, ok = service.CoerceNumeric("abc")
	assert.False(t, ok)

	_, ok = service.CoerceNumeric("")
	assert.False(t, ok)
}

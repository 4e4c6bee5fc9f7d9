/*
 * @module service/tabular/parse_service
 * @description 表格解析服务，将数据集版本文件(CSV/XLSX)解析为行式表格并统计缺失情况
 * @architecture 分层架构 - 数据接入层
 * @documentReference ai_docs/flux_dataset_req.md
 * @stateFlow 文件读取 -> 编码识别 -> 行解析 -> 缺失值统计
 * @rules 下游引擎只消费 ParseResult 结构，不接触原始字节；缺失标记列表中的字面量一律折算为缺失
 * @dependencies encoding/csv, github.com/xuri/excelize/v2, golang.org/x/text, github.com/spf13/cast
 * @refs service/detection/, service/imputation/, service/meta/dataset_meta.go
 */

package tabular

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"fluxqc-service/service/meta"
	"fluxqc-service/service/qcerrors"

	"github.com/spf13/cast"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// ParseResult 表格解析结果，引擎信任该结构不再自行解析
type ParseResult struct {
	Columns             []string         `json:"columns"`
	Rows                [][]string       `json:"rows"` // 数据行，不含表头
	TotalRows           int              `json:"total_rows"`
	MissingValueStats   map[string]int64 `json:"missing_value_stats"`   // 列名 -> 缺失单元格数
	ColumnMissingStatus map[string]bool  `json:"column_missing_status"` // 列名 -> 是否存在缺失
}

// ParseService 表格解析服务
type ParseService struct {
	missingTokens map[string]struct{}
}

// NewParseService 创建表格解析服务实例，missingTokens 为空时使用默认缺失标记
func NewParseService(missingTokens []string) *ParseService {
	if len(missingTokens) == 0 {
		missingTokens = meta.DefaultMissingTokens
	}
	tokens := make(map[string]struct{}, len(missingTokens))
	for _, t := range missingTokens {
		tokens[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	return &ParseService{missingTokens: tokens}
}

// Parse 解析版本文件为行式表格
// 文件读取是阻塞 IO，调用方在独立 goroutine 中执行本方法以避免阻塞进度分发
func (s *ParseService) Parse(ctx context.Context, filePath string) (*ParseResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records [][]string
	var err error

	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".csv", ".txt", ".dat":
		records, err = s.readCSV(filePath)
	case ".xlsx", ".xls":
		records, err = s.readExcel(filePath)
	default:
		return nil, qcerrors.Newf(qcerrors.ErrorTypeData, "不支持的文件类型: %s", filepath.Ext(filePath))
	}
	if err != nil {
		return nil, err
	}

	// 含表头不足 2 行视为空文件
	if len(records) < 2 {
		return nil, qcerrors.Newf(qcerrors.ErrorTypeEmptyData, "文件 %s 为空或缺少数据行", filepath.Base(filePath))
	}

	columns := make([]string, len(records[0]))
	for i, name := range records[0] {
		columns[i] = strings.TrimSpace(name)
	}

	result := &ParseResult{
		Columns:             columns,
		Rows:                records[1:],
		TotalRows:           len(records) - 1,
		MissingValueStats:   make(map[string]int64, len(columns)),
		ColumnMissingStatus: make(map[string]bool, len(columns)),
	}

	for colIdx, col := range columns {
		var missing int64
		for _, row := range result.Rows {
			if colIdx >= len(row) || s.IsMissing(row[colIdx]) {
				missing++
			}
		}
		result.MissingValueStats[col] = missing
		result.ColumnMissingStatus[col] = missing > 0
	}

	return result, nil
}

// ColumnIndex 查找列下标，不存在返回 -1
func (r *ParseResult) ColumnIndex(name string) int {
	for i, col := range r.Columns {
		if col == name {
			return i
		}
	}
	return -1
}

// Cell 取指定数据行列的原始单元格文本，行过短返回空串
func (r *ParseResult) Cell(rowIdx, colIdx int) string {
	row := r.Rows[rowIdx]
	if colIdx >= len(row) {
		return ""
	}
	return row[colIdx]
}

// IsMissing 判断单元格文本是否为缺失标记
func (s *ParseService) IsMissing(value string) bool {
	_, ok := s.missingTokens[strings.ToLower(strings.TrimSpace(value))]
	return ok
}

// CoerceNumeric 将单元格文本折算为数值，缺失标记和不可解析文本返回 (0, false)
func (s *ParseService) CoerceNumeric(value string) (float64, bool) {
	if s.IsMissing(value) {
		return 0, false
	}
	num, err := cast.ToFloat64E(strings.TrimSpace(value))
	if err != nil {
		return 0, false
	}
	return num, true
}

// readCSV 读取 CSV 文件，数采仪导出的 GBK 编码文件自动转码
func (s *ParseService) readCSV(filePath string) ([][]string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, qcerrors.Newf(qcerrors.ErrorTypeData, "版本文件不存在: %s", filePath)
		}
		return nil, qcerrors.Wrap(qcerrors.ErrorTypeData, "读取版本文件失败", err)
	}

	if !utf8.Valid(data) {
		decoded, _, decErr := transform.Bytes(simplifiedchinese.GBK.NewDecoder(), data)
		if decErr != nil {
			return nil, qcerrors.Wrap(qcerrors.ErrorTypeData, "GBK 转码失败", decErr)
		}
		data = decoded
	}

	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.FieldsPerRecord = -1 // 容忍行长不一致，缺列按缺失处理
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, qcerrors.Wrap(qcerrors.ErrorTypeData, "CSV 解析失败", err)
	}
	return records, nil
}

// readExcel 读取 Excel 文件首个工作表
func (s *ParseService) readExcel(filePath string) ([][]string, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, qcerrors.Newf(qcerrors.ErrorTypeData, "版本文件不存在: %s", filePath)
		}
		return nil, qcerrors.Wrap(qcerrors.ErrorTypeData, "打开 Excel 文件失败", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, qcerrors.New(qcerrors.ErrorTypeData, "Excel 文件不含工作表")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, qcerrors.Wrap(qcerrors.ErrorTypeData, fmt.Sprintf("读取工作表 %s 失败", sheets[0]), err)
	}
	return rows, nil
}

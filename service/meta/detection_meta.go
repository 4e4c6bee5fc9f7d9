/*
 * @module service/meta/detection_meta
 * @description 异常值检测方法元数据定义，以能力描述表的形式声明方法目录、参数模式与可用性
 * @architecture 元数据层
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow 静态元数据定义
 * @rules 方法目录是数据而非分派层次，"已声明"与"已实现"的区别由 is_available 显式表达
 * @dependencies 无
 * @refs service/detection/, service/models/threshold_models.go
 */

package meta

import (
	"encoding/json"
	"fmt"
)

// 检测方法标识
const (
	MethodThresholdStatic = "THRESHOLD_STATIC"
	MethodZScore          = "ZSCORE"
	MethodModifiedZScore  = "MODIFIED_ZSCORE"
	MethodIQR             = "IQR"
	MethodCustomScript    = "CUSTOM_SCRIPT"
	MethodIsolationForest = "ISOLATION_FOREST"
	MethodLOF             = "LOF"
)

// 方法类别
const (
	MethodCategoryThreshold   = "threshold"
	MethodCategoryStatistical = "statistical"
	MethodCategoryML          = "ml"
)

// DetectionParamSchema 检测方法参数模式定义
type DetectionParamSchema struct {
	Key     string      `json:"key"`
	Type    string      `json:"type"` // number, string
	Default interface{} `json:"default"`
	Min     *float64    `json:"min,omitempty"`
	Max     *float64    `json:"max,omitempty"`
	Step    *float64    `json:"step,omitempty"`
}

// DetectionMethod 检测方法描述符
type DetectionMethod struct {
	ID                      string                 `json:"id"`
	Name                    string                 `json:"name"`
	NameEn                  string                 `json:"name_en"`
	Description             string                 `json:"description"`
	Category                string                 `json:"category"` // threshold, statistical, ml
	RequiresExternalRuntime bool                   `json:"requires_external_runtime"`
	IsAvailable             bool                   `json:"is_available"`
	ComputeCost             string                 `json:"compute_cost"` // low, medium, high
	Params                  []DetectionParamSchema `json:"params"`
}

func floatPtr(v float64) *float64 { return &v }

// DetectionMethods 检测方法目录元数据
var DetectionMethods = []DetectionMethod{
	{
		ID:          MethodThresholdStatic,
		Name:        "静态阈值",
		NameEn:      "Static Threshold",
		Description: "按列阈值上下限标记越界值",
		Category:    MethodCategoryThreshold,
		IsAvailable: true,
		ComputeCost: "low",
		Params: []DetectionParamSchema{
			{Key: "min_value", Type: "number", Default: nil},
			{Key: "max_value", Type: "number", Default: nil},
		},
	},
	{
		ID:          MethodZScore,
		Name:        "Z分数",
		NameEn:      "Z-Score",
		Description: "标记 |x - mean| > k * std 的值",
		Category:    MethodCategoryStatistical,
		IsAvailable: true,
		ComputeCost: "low",
		Params: []DetectionParamSchema{
			{Key: "k", Type: "number", Default: 3.0, Min: floatPtr(1.0), Max: floatPtr(6.0), Step: floatPtr(0.5)},
		},
	},
	{
		ID:          MethodModifiedZScore,
		Name:        "改良Z分数",
		NameEn:      "Modified Z-Score",
		Description: "基于中位数绝对偏差(MAD)的稳健离群检测",
		Category:    MethodCategoryStatistical,
		IsAvailable: true,
		ComputeCost: "low",
		Params: []DetectionParamSchema{
			{Key: "k", Type: "number", Default: 3.5, Min: floatPtr(1.0), Max: floatPtr(6.0), Step: floatPtr(0.5)},
		},
	},
	{
		ID:          MethodIQR,
		Name:        "四分位距",
		NameEn:      "IQR",
		Description: "标记 [Q1 - k*IQR, Q3 + k*IQR] 区间外的值",
		Category:    MethodCategoryStatistical,
		IsAvailable: true,
		ComputeCost: "low",
		Params: []DetectionParamSchema{
			{Key: "k", Type: "number", Default: 1.5, Min: floatPtr(0.5), Max: floatPtr(3.0), Step: floatPtr(0.5)},
		},
	},
	{
		ID:          MethodCustomScript,
		Name:        "自定义脚本",
		NameEn:      "Custom Script",
		Description: "以 Go 表达式定义判定谓词，进程内解释执行",
		Category:    MethodCategoryStatistical,
		IsAvailable: true,
		ComputeCost: "medium",
		Params: []DetectionParamSchema{
			{Key: "expression", Type: "string", Default: ""},
		},
	},
	{
		ID:                      MethodIsolationForest,
		Name:                    "孤立森林",
		NameEn:                  "Isolation Forest",
		Description:             "基于随机森林的异常检测，需要外部数值运行时",
		Category:                MethodCategoryML,
		RequiresExternalRuntime: true,
		IsAvailable:             false,
		ComputeCost:             "high",
		Params: []DetectionParamSchema{
			{Key: "contamination", Type: "number", Default: 0.05, Min: floatPtr(0.0), Max: floatPtr(0.5)},
		},
	},
	{
		ID:                      MethodLOF,
		Name:                    "局部离群因子",
		NameEn:                  "Local Outlier Factor",
		Description:             "基于局部密度的异常检测，需要外部数值运行时",
		Category:                MethodCategoryML,
		RequiresExternalRuntime: true,
		IsAvailable:             false,
		ComputeCost:             "high",
		Params: []DetectionParamSchema{
			{Key: "n_neighbors", Type: "number", Default: 20.0, Min: floatPtr(5.0), Max: floatPtr(100.0), Step: floatPtr(1.0)},
		},
	},
}

// GetDetectionMethods 获取检测方法目录
func GetDetectionMethods() []DetectionMethod {
	return DetectionMethods
}

// GetAvailableDetectionMethods 获取可在进程内执行的检测方法
func GetAvailableDetectionMethods() []DetectionMethod {
	available := make([]DetectionMethod, 0, len(DetectionMethods))
	for _, m := range DetectionMethods {
		if m.IsAvailable {
			available = append(available, m)
		}
	}
	return available
}

// GetDetectionMethod 按标识查找检测方法
func GetDetectionMethod(id string) (*DetectionMethod, bool) {
	for i := range DetectionMethods {
		if DetectionMethods[i].ID == id {
			return &DetectionMethods[i], true
		}
	}
	return nil, false
}

// ValidateDetectionParams 按方法参数模式校验参数包，未知键拒绝，数值越界拒绝
func ValidateDetectionParams(methodID string, params map[string]interface{}) error {
	method, ok := GetDetectionMethod(methodID)
	if !ok {
		return fmt.Errorf("未知的检测方法: %s", methodID)
	}

	allowed := make(map[string]DetectionParamSchema, len(method.Params))
	for _, p := range method.Params {
		allowed[p.Key] = p
	}

	for key, value := range params {
		schema, ok := allowed[key]
		if !ok {
			return fmt.Errorf("方法 %s 不支持参数 %s", methodID, key)
		}
		if schema.Type == "number" {
			num, ok := toFloat(value)
			if !ok {
				return fmt.Errorf("参数 %s 应为数值", key)
			}
			if schema.Min != nil && num < *schema.Min {
				return fmt.Errorf("参数 %s 小于下限 %v", key, *schema.Min)
			}
			if schema.Max != nil && num > *schema.Max {
				return fmt.Errorf("参数 %s 大于上限 %v", key, *schema.Max)
			}
		}
	}
	return nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

/*
 * @module service/detection/classifier
 * @description 检测判定器，将各检测方法统一为逐单元格的纯判定函数
 * @architecture 分层架构 - 领域计算层
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow 方法与参数 -> 判定边界推导 -> 逐单元格分类
 * @rules 每个数值单元格恰好映射到 {正常, BELOW_MIN, ABOVE_MAX} 之一，BELOW_MIN 先于 ABOVE_MAX 判定
 * @dependencies github.com/spf13/cast, github.com/traefik/yaegi, service/meta
 * @refs detection_service.go, service/meta/detection_meta.go
 */

package detection

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"fluxqc-service/service/meta"
	"fluxqc-service/service/models"
	"fluxqc-service/service/qcerrors"

	"github.com/spf13/cast"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// Classification 单元格判定结果
type Classification struct {
	IsOutlier      bool
	OutlierType    string  // BELOW_MIN, ABOVE_MAX
	ThresholdValue float64 // 被违反的阈值
}

// Classifier 列级判定函数，对任意数值输入总有定义
type Classifier func(value float64) Classification

// classifyBounds 上下限判定，BELOW_MIN 优先，min==max 时两侧边界重合仍互斥
func classifyBounds(value float64, min, max *float64) Classification {
	if min != nil && value < *min {
		return Classification{IsOutlier: true, OutlierType: models.OutlierTypeBelowMin, ThresholdValue: *min}
	}
	if max != nil && value > *max {
		return Classification{IsOutlier: true, OutlierType: models.OutlierTypeAboveMax, ThresholdValue: *max}
	}
	return Classification{}
}

// BuildClassifier 为一列构造判定函数
// 统计类方法先由列内有效值推导上下边界，再复用同一上下限判定，保持扫描/落库/汇总形状一致
func BuildClassifier(methodID string, params models.JSONB, min, max *float64, validValues []float64) (Classifier, error) {
	method, ok := meta.GetDetectionMethod(methodID)
	if !ok {
		return nil, qcerrors.Newf(qcerrors.ErrorTypeMethodUnavailable, "未知的检测方法: %s", methodID)
	}
	if !method.IsAvailable || method.RequiresExternalRuntime {
		return nil, qcerrors.Newf(qcerrors.ErrorTypeMethodUnavailable, "检测方法 %s 不可用", methodID)
	}

	switch methodID {
	case meta.MethodThresholdStatic:
		lo, hi := min, max
		return func(v float64) Classification {
			return classifyBounds(v, lo, hi)
		}, nil

	case meta.MethodZScore:
		k := paramFloat(params, "k", 3.0)
		m := Mean(validValues)
		s := Std(validValues)
		if s == 0 {
			// 零方差列无离群可言
			return func(float64) Classification { return Classification{} }, nil
		}
		lo, hi := m-k*s, m+k*s
		return func(v float64) Classification {
			return classifyBounds(v, &lo, &hi)
		}, nil

	case meta.MethodModifiedZScore:
		k := paramFloat(params, "k", 3.5)
		med := Median(validValues)
		mad := MAD(validValues)
		if mad == 0 {
			return func(float64) Classification { return Classification{} }, nil
		}
		// |x - med| / (1.4826 * MAD) > k
		spread := 1.4826 * mad * k
		lo, hi := med-spread, med+spread
		return func(v float64) Classification {
			return classifyBounds(v, &lo, &hi)
		}, nil

	case meta.MethodIQR:
		k := paramFloat(params, "k", 1.5)
		q1 := Quantile(validValues, 0.25)
		q3 := Quantile(validValues, 0.75)
		iqr := q3 - q1
		lo, hi := q1-k*iqr, q3+k*iqr
		return func(v float64) Classification {
			return classifyBounds(v, &lo, &hi)
		}, nil

	case meta.MethodCustomScript:
		return buildScriptClassifier(params, validValues)
	}

	return nil, qcerrors.Newf(qcerrors.ErrorTypeMethodUnavailable, "检测方法 %s 未实现", methodID)
}

// buildScriptClassifier 以 yaegi 解释执行用户谓词表达式
// 命中的单元格按相对列中位数的方向归类到 BELOW_MIN/ABOVE_MAX
func buildScriptClassifier(params models.JSONB, validValues []float64) (Classifier, error) {
	expr := strings.TrimSpace(cast.ToString(params["expression"]))
	if expr == "" {
		return nil, qcerrors.New(qcerrors.ErrorTypeValidation, "自定义脚本方法缺少 expression 参数")
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, qcerrors.Wrap(qcerrors.ErrorTypeExecution, "加载脚本标准库失败", err)
	}

	wrapped := fmt.Sprintf(`
package main

import "math"

var _ = math.Abs

func Flag(x float64) bool {
	return %s
}
`, expr)

	if _, err := i.Eval(wrapped); err != nil {
		return nil, qcerrors.Wrap(qcerrors.ErrorTypeValidation, "脚本编译失败", err)
	}

	v, err := i.Eval("main.Flag")
	if err != nil {
		return nil, qcerrors.Wrap(qcerrors.ErrorTypeValidation, "脚本入口提取失败", err)
	}
	flag, ok := v.Interface().(func(float64) bool)
	if !ok {
		return nil, qcerrors.New(qcerrors.ErrorTypeValidation, "脚本必须是 float64 -> bool 谓词")
	}

	med := Median(validValues)
	return func(x float64) Classification {
		if !flag(x) {
			return Classification{}
		}
		if x < med {
			return Classification{IsOutlier: true, OutlierType: models.OutlierTypeBelowMin, ThresholdValue: med}
		}
		return Classification{IsOutlier: true, OutlierType: models.OutlierTypeAboveMax, ThresholdValue: med}
	}, nil
}

func paramFloat(params models.JSONB, key string, def float64) float64 {
	if params == nil {
		return def
	}
	raw, ok := params[key]
	if !ok || raw == nil {
		return def
	}
	if v, err := cast.ToFloat64E(raw); err == nil {
		return v
	}
	return def
}

// === 列统计量 ===

// Mean 算术均值，空集返回 0
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Std 总体标准差，空集返回 0
func Std(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := Mean(values)
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

// Median 中位数，空集返回 0
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// MAD 中位数绝对偏差
func MAD(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	med := Median(values)
	deviations := make([]float64, len(values))
	for i, v := range values {
		deviations[i] = math.Abs(v - med)
	}
	return Median(deviations)
}

// Quantile 线性插值分位数，q 取 [0,1]
func Quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

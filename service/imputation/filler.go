/*
 * @module service/imputation/filler
 * @description 单列插补算法实现，集中趋势、邻近填充与线性插值，附带置信度计算
 * @architecture 分层架构 - 算法层
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow 列序列 -> 按方法填补 -> 置信度评估 -> 填补单元格集合
 * @rules 只填补缺失单元格，有效值一律不动；无法填补的单元格保持缺失而不是报错
 * @dependencies service/meta, math, sort
 * @refs imputation_service.go, service/meta/imputation_meta.go
 */

package imputation

import (
	"math"
	"sort"

	"fluxqc-service/service/meta"
	"fluxqc-service/service/qcerrors"
)

// FilledCell 一个被填补的单元格
type FilledCell struct {
	RowIndex   int
	Value      float64
	Confidence float64
}

// FillColumn 对单列执行插补
// values/valid 为对齐的列序列，valid[i]=false 表示缺失；返回按行序排列的填补单元格
func FillColumn(methodID string, values []float64, valid []bool) ([]FilledCell, error) {
	method, ok := meta.GetImputationMethod(methodID)
	if !ok {
		return nil, qcerrors.Newf(qcerrors.ErrorTypeMethodUnavailable, "未知的插补方法: %s", methodID)
	}
	if !method.IsAvailable {
		return nil, qcerrors.Newf(qcerrors.ErrorTypeMethodUnavailable, "插补方法 %s 不可用", methodID)
	}

	validValues := make([]float64, 0, len(values))
	for i, v := range values {
		if valid[i] {
			validValues = append(validValues, v)
		}
	}
	if len(validValues) == 0 {
		// 全缺失的列无从填补
		return nil, nil
	}

	var fills map[int]float64
	switch methodID {
	case meta.ImputeMean:
		fills = fillScalar(valid, mean(validValues))
	case meta.ImputeMedian:
		fills = fillScalar(valid, median(validValues))
	case meta.ImputeMode:
		fills = fillScalar(valid, mode(validValues))
	case meta.ImputeForwardFill:
		fills = fillDirectional(values, valid, true)
	case meta.ImputeBackwardFill:
		fills = fillDirectional(values, valid, false)
	case meta.ImputeLinear:
		fills = fillLinear(values, valid)
	default:
		return nil, qcerrors.Newf(qcerrors.ErrorTypeMethodUnavailable, "插补方法 %s 没有进程内实现", methodID)
	}

	m := mean(validValues)
	sd := std(validValues, m)

	cells := make([]FilledCell, 0, len(fills))
	for _, idx := range sortedKeys(fills) {
		v := fills[idx]
		cells = append(cells, FilledCell{
			RowIndex:   idx,
			Value:      v,
			Confidence: confidence(v, m, sd, method.MethodWeight),
		})
	}
	return cells, nil
}

// confidence 置信度 = exp(-z²/2) · 方法权重，填补值越偏离有效值分布置信度越低
// 标准差为 0 时分布退化，直接取满权重
func confidence(value, mean, std, weight float64) float64 {
	if std == 0 {
		return weight
	}
	z := (value - mean) / std
	return math.Exp(-0.5*z*z) * weight
}

// fillScalar 以单个标量填补所有缺失单元格
func fillScalar(valid []bool, scalar float64) map[int]float64 {
	fills := make(map[int]float64)
	for i, ok := range valid {
		if !ok {
			fills[i] = scalar
		}
	}
	return fills
}

// fillDirectional 前向/后向填充，方向侧没有有效值的单元格保持缺失
func fillDirectional(values []float64, valid []bool, forward bool) map[int]float64 {
	fills := make(map[int]float64)
	hasLast := false
	var last float64

	n := len(values)
	for step := 0; step < n; step++ {
		i := step
		if !forward {
			i = n - 1 - step
		}
		if valid[i] {
			last = values[i]
			hasLast = true
		} else if hasLast {
			fills[i] = last
		}
	}
	return fills
}

// fillLinear 在两侧最近有效值之间按行距线性插值，边缘缺口取单侧最近有效值
func fillLinear(values []float64, valid []bool) map[int]float64 {
	fills := make(map[int]float64)
	n := len(values)

	// prev[i]/next[i] 为 i 两侧最近有效值下标，-1 表示该侧没有
	prev := make([]int, n)
	next := make([]int, n)
	last := -1
	for i := 0; i < n; i++ {
		if valid[i] {
			last = i
		}
		prev[i] = last
	}
	last = -1
	for i := n - 1; i >= 0; i-- {
		if valid[i] {
			last = i
		}
		next[i] = last
	}

	for i := 0; i < n; i++ {
		if valid[i] {
			continue
		}
		p, q := prev[i], next[i]
		switch {
		case p >= 0 && q >= 0:
			frac := float64(i-p) / float64(q-p)
			fills[i] = values[p] + (values[q]-values[p])*frac
		case p >= 0:
			fills[i] = values[p]
		case q >= 0:
			fills[i] = values[q]
		}
	}
	return fills
}

func sortedKeys(m map[int]float64) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// std 总体标准差
func std(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// mode 众数，出现次数相同取较小值
func mode(values []float64) float64 {
	counts := make(map[float64]int)
	for _, v := range values {
		counts[v]++
	}
	best := values[0]
	bestCount := 0
	for v, c := range counts {
		if c > bestCount || (c == bestCount && v < best) {
			best = v
			bestCount = c
		}
	}
	return best
}

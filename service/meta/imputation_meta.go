/*
 * @module service/meta/imputation_meta
 * @description 缺失值插补方法元数据定义，包括方法目录、类别、可用性与方法权重常量
 * @architecture 元数据层
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow 静态元数据定义
 * @rules 方法权重为可配置常量，只承诺方法间信任度的相对次序：插值 > 填充 > 集中趋势
 * @dependencies 无
 * @refs service/imputation/, service/models/imputation_models.go
 */

package meta

// 插补方法标识
const (
	ImputeMean         = "MEAN"
	ImputeMedian       = "MEDIAN"
	ImputeMode         = "MODE"
	ImputeForwardFill  = "FORWARD_FILL"
	ImputeBackwardFill = "BACKWARD_FILL"
	ImputeLinear       = "LINEAR"
	ImputeSpline       = "SPLINE"
	ImputeKNN          = "KNN"
	ImputeRandomForest = "RANDOM_FOREST"
)

// 插补方法类别
const (
	ImputeCategoryCentral       = "central_tendency" // 集中趋势
	ImputeCategoryFill          = "fill"             // 邻近填充
	ImputeCategoryInterpolation = "interpolation"    // 插值
	ImputeCategoryML            = "ml"               // 机器学习
)

// ImputationMethod 插补方法描述符
type ImputationMethod struct {
	ID                      string  `json:"id"`
	Name                    string  `json:"name"`
	NameEn                  string  `json:"name_en"`
	Description             string  `json:"description"`
	Category                string  `json:"category"`
	RequiresExternalRuntime bool    `json:"requires_external_runtime"`
	IsAvailable             bool    `json:"is_available"`
	MethodWeight            float64 `json:"method_weight"` // 置信度权重 (0.55-0.85)
	FallbackMethod          string  `json:"fallback_method,omitempty"`
}

// ImputationMethods 插补方法目录元数据
var ImputationMethods = []ImputationMethod{
	{
		ID:           ImputeMean,
		Name:         "均值填补",
		NameEn:       "Mean",
		Description:  "以有效值均值填补所有缺失单元格",
		Category:     ImputeCategoryCentral,
		IsAvailable:  true,
		MethodWeight: 0.60,
	},
	{
		ID:           ImputeMedian,
		Name:         "中位数填补",
		NameEn:       "Median",
		Description:  "以有效值中位数填补所有缺失单元格",
		Category:     ImputeCategoryCentral,
		IsAvailable:  true,
		MethodWeight: 0.62,
	},
	{
		ID:           ImputeMode,
		Name:         "众数填补",
		NameEn:       "Mode",
		Description:  "以有效值众数填补所有缺失单元格",
		Category:     ImputeCategoryCentral,
		IsAvailable:  true,
		MethodWeight: 0.55,
	},
	{
		ID:           ImputeForwardFill,
		Name:         "前向填充",
		NameEn:       "Forward Fill",
		Description:  "以最近的前一个有效值填充，前侧无有效值的单元格保持缺失",
		Category:     ImputeCategoryFill,
		IsAvailable:  true,
		MethodWeight: 0.70,
	},
	{
		ID:           ImputeBackwardFill,
		Name:         "后向填充",
		NameEn:       "Backward Fill",
		Description:  "以最近的后一个有效值填充，后侧无有效值的单元格保持缺失",
		Category:     ImputeCategoryFill,
		IsAvailable:  true,
		MethodWeight: 0.70,
	},
	{
		ID:           ImputeLinear,
		Name:         "线性插值",
		NameEn:       "Linear Interpolation",
		Description:  "在两侧最近有效值之间线性插值，边缘缺口取单侧值",
		Category:     ImputeCategoryInterpolation,
		IsAvailable:  true,
		MethodWeight: 0.85,
	},
	{
		ID:                      ImputeSpline,
		Name:                    "样条插值",
		NameEn:                  "Spline Interpolation",
		Description:             "三次样条插值，需要外部数值运行时",
		Category:                ImputeCategoryInterpolation,
		RequiresExternalRuntime: true,
		IsAvailable:             false,
		MethodWeight:            0.82,
		FallbackMethod:          ImputeLinear,
	},
	{
		ID:                      ImputeKNN,
		Name:                    "K近邻插补",
		NameEn:                  "KNN",
		Description:             "基于相似样本的插补，需要外部数值运行时",
		Category:                ImputeCategoryML,
		RequiresExternalRuntime: true,
		IsAvailable:             false,
		MethodWeight:            0.75,
		FallbackMethod:          ImputeLinear,
	},
	{
		ID:                      ImputeRandomForest,
		Name:                    "随机森林插补",
		NameEn:                  "Random Forest",
		Description:             "基于随机森林回归的插补，需要外部数值运行时",
		Category:                ImputeCategoryML,
		RequiresExternalRuntime: true,
		IsAvailable:             false,
		MethodWeight:            0.78,
		FallbackMethod:          ImputeLinear,
	},
}

// GetImputationMethods 获取插补方法目录
func GetImputationMethods() []ImputationMethod {
	return ImputationMethods
}

// GetImputationMethodsByCategory 按类别获取插补方法
func GetImputationMethodsByCategory(category string) []ImputationMethod {
	methods := make([]ImputationMethod, 0)
	for _, m := range ImputationMethods {
		if m.Category == category {
			methods = append(methods, m)
		}
	}
	return methods
}

// GetAvailableImputationMethods 获取可在进程内执行的插补方法
func GetAvailableImputationMethods() []ImputationMethod {
	methods := make([]ImputationMethod, 0, len(ImputationMethods))
	for _, m := range ImputationMethods {
		if m.IsAvailable {
			methods = append(methods, m)
		}
	}
	return methods
}

// GetImputationMethod 按标识查找插补方法
func GetImputationMethod(id string) (*ImputationMethod, bool) {
	for i := range ImputationMethods {
		if ImputationMethods[i].ID == id {
			return &ImputationMethods[i], true
		}
	}
	return nil, false
}

/*
 * @module service/meta/dataset_meta
 * @description 数据集相关元数据定义，包括版本阶段、变量类型、缺失值标记和阈值模板
 * @architecture 元数据层
 * @documentReference ai_docs/flux_dataset_req.md
 * @stateFlow 静态元数据定义
 * @rules 阈值模板是命名的变量到上下限映射，应用时逐数据集落库
 * @dependencies 无
 * @refs service/threshold/, service/tabular/
 */

package meta

// 数据集版本阶段
const (
	StageRaw               = "raw"
	StageFiltered          = "filtered"
	StageQualityControlled = "quality_controlled"
)

// VersionStage 数据集版本阶段定义
type VersionStage struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// VersionStages 数据集版本阶段元数据
var VersionStages = []VersionStage{
	{
		Code:        StageRaw,
		Name:        "原始数据",
		Description: "仪器导出的原始数据快照",
	},
	{
		Code:        StageFiltered,
		Name:        "初筛数据",
		Description: "经过野点初筛的数据快照",
	},
	{
		Code:        StageQualityControlled,
		Name:        "质控数据",
		Description: "完成异常检测与插补的数据快照",
	},
}

// VariableType 观测变量类型定义
type VariableType struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Unit        string `json:"unit"`
	Description string `json:"description"`
}

// VariableTypes 常用通量/气象变量类型元数据
var VariableTypes = []VariableType{
	{Code: "Ta", Name: "空气温度", Unit: "°C", Description: "冠层上方空气温度"},
	{Code: "Ts", Name: "土壤温度", Unit: "°C", Description: "浅层土壤温度"},
	{Code: "RH", Name: "相对湿度", Unit: "%", Description: "空气相对湿度"},
	{Code: "PAR", Name: "光合有效辐射", Unit: "μmol/m²/s", Description: "400-700nm 波段辐射"},
	{Code: "Rn", Name: "净辐射", Unit: "W/m²", Description: "净辐射通量"},
	{Code: "co2_flux", Name: "CO2通量", Unit: "mg/m²/s", Description: "涡度相关 CO2 通量"},
	{Code: "LE", Name: "潜热通量", Unit: "W/m²", Description: "潜热通量"},
	{Code: "H", Name: "感热通量", Unit: "W/m²", Description: "感热通量"},
	{Code: "ustar", Name: "摩擦风速", Unit: "m/s", Description: "摩擦风速 u*"},
	{Code: "precip", Name: "降水量", Unit: "mm", Description: "时段降水量"},
}

// DefaultMissingTokens 默认缺失值标记，解析时这些字面量一律折算为缺失
var DefaultMissingTokens = []string{"", "NA", "NaN", "nan", "-9999", "-6999", "null", "NULL"}

// ThresholdTemplateEntry 阈值模板条目
type ThresholdTemplateEntry struct {
	Min  *float64 `json:"min"`
	Max  *float64 `json:"max"`
	Unit string   `json:"unit"`
}

// ThresholdTemplate 命名阈值模板，变量 -> 上下限映射
type ThresholdTemplate struct {
	Name        string                            `json:"name"`
	Description string                            `json:"description"`
	Entries     map[string]ThresholdTemplateEntry `json:"entries"`
}

// ThresholdTemplates 内置阈值模板元数据
var ThresholdTemplates = []ThresholdTemplate{
	{
		Name:        "standard",
		Description: "常规观测场景的推荐阈值",
		Entries: map[string]ThresholdTemplateEntry{
			"Ta":       {Min: floatPtr(-40), Max: floatPtr(50), Unit: "°C"},
			"Ts":       {Min: floatPtr(-30), Max: floatPtr(45), Unit: "°C"},
			"RH":       {Min: floatPtr(0), Max: floatPtr(100), Unit: "%"},
			"PAR":      {Min: floatPtr(0), Max: floatPtr(2500), Unit: "μmol/m²/s"},
			"Rn":       {Min: floatPtr(-200), Max: floatPtr(1200), Unit: "W/m²"},
			"co2_flux": {Min: floatPtr(-3), Max: floatPtr(3), Unit: "mg/m²/s"},
			"LE":       {Min: floatPtr(-100), Max: floatPtr(800), Unit: "W/m²"},
			"H":        {Min: floatPtr(-200), Max: floatPtr(800), Unit: "W/m²"},
			"ustar":    {Min: floatPtr(0), Max: floatPtr(3), Unit: "m/s"},
		},
	},
	{
		Name:        "strict",
		Description: "收紧上下限的严格质控阈值",
		Entries: map[string]ThresholdTemplateEntry{
			"Ta":       {Min: floatPtr(-30), Max: floatPtr(45), Unit: "°C"},
			"Ts":       {Min: floatPtr(-20), Max: floatPtr(40), Unit: "°C"},
			"RH":       {Min: floatPtr(5), Max: floatPtr(100), Unit: "%"},
			"PAR":      {Min: floatPtr(0), Max: floatPtr(2200), Unit: "μmol/m²/s"},
			"Rn":       {Min: floatPtr(-150), Max: floatPtr(1000), Unit: "W/m²"},
			"co2_flux": {Min: floatPtr(-2), Max: floatPtr(2), Unit: "mg/m²/s"},
			"LE":       {Min: floatPtr(-50), Max: floatPtr(700), Unit: "W/m²"},
			"H":        {Min: floatPtr(-100), Max: floatPtr(700), Unit: "W/m²"},
			"ustar":    {Min: floatPtr(0.1), Max: floatPtr(2.5), Unit: "m/s"},
		},
	},
}

// GetVersionStages 获取数据集版本阶段列表
func GetVersionStages() []VersionStage {
	return VersionStages
}

// GetVariableTypes 获取变量类型列表
func GetVariableTypes() []VariableType {
	return VariableTypes
}

// GetThresholdTemplates 获取阈值模板列表
func GetThresholdTemplates() []ThresholdTemplate {
	return ThresholdTemplates
}

// GetThresholdTemplate 按名称查找阈值模板
func GetThresholdTemplate(name string) (*ThresholdTemplate, bool) {
	for i := range ThresholdTemplates {
		if ThresholdTemplates[i].Name == name {
			return &ThresholdTemplates[i], true
		}
	}
	return nil, false
}

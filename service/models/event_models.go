/*
 * @module service/models/event_models
 * @description 进度与运行事件模型，用于 SSE 推送和消息通道发布
 * @architecture 数据模型层
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow 引擎发出进度 -> 事件服务分发 -> SSE 客户端/消息通道
 * @rules 进度事件为尽力投递，发送失败不影响运行
 * @dependencies time
 * @refs service/event/, service/imputation/, service/detection/
 */

package models

import "time"

// 进度阶段
const (
	ProgressStagePreparing = "preparing"
	ProgressStageDetecting = "detecting"
	ProgressStageImputing  = "imputing"
	ProgressStageSaving    = "saving"
)

// ProgressEvent 运行进度事件
type ProgressEvent struct {
	ResultID      string `json:"result_id"`
	Stage         string `json:"stage"`    // preparing, detecting, imputing, saving
	Progress      int    `json:"progress"` // 0-100
	Message       string `json:"message"`
	CurrentColumn string `json:"current_column,omitempty"`
}

// QualityRunEvent 运行完成事件，发布到消息通道供下游订阅
type QualityRunEvent struct {
	ResultID   string    `json:"result_id"`
	RunType    string    `json:"run_type"` // detection, imputation
	DatasetID  string    `json:"dataset_id"`
	VersionID  string    `json:"version_id"`
	Status     string    `json:"status"`
	Method     string    `json:"method"`
	FinishedAt time.Time `json:"finished_at"`
}

/*
 * @module service/monitoring/run_metrics
 * @description 质量引擎运行指标采集，暴露到 /metrics
 * @architecture 监控层
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow 引擎运行 -> 指标累加 -> Prometheus 抓取
 * @rules 指标采集不得影响运行主流程
 * @dependencies github.com/prometheus/client_golang
 * @refs service/detection/, service/imputation/, main.go
 */

package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal 运行计数，按引擎和终态分维
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fluxqc_runs_total",
		Help: "质量引擎运行总数",
	}, []string{"engine", "status"})

	// RunDuration 运行时长分布
	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fluxqc_run_duration_seconds",
		Help:    "质量引擎运行时长",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"engine"})

	// DetailRowsWritten 落库明细行计数
	DetailRowsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fluxqc_detail_rows_written_total",
		Help: "落库的明细行总数",
	}, []string{"engine"})
)

// ObserveRun 记录一次运行的终态和时长
func ObserveRun(engine, status string, duration time.Duration) {
	RunsTotal.WithLabelValues(engine, status).Inc()
	RunDuration.WithLabelValues(engine).Observe(duration.Seconds())
}

/*
 * @module service/event/db_listener
 * @description PostgreSQL LISTEN/NOTIFY 桥接，将结果状态变更转发为进度事件
 * @architecture 事件驱动架构 - 数据库事件监听
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow 建立监听 -> 接收通知 -> 解析载荷 -> 转发 SSE 订阅者
 * @rules 仅 PostgreSQL 部署启用；监听失败只降级为无数据库事件，不影响引擎运行
 * @dependencies github.com/lib/pq, encoding/json, log/slog
 * @refs progress_service.go, service/init.go
 */

package event

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"fluxqc-service/service/models"

	"github.com/lib/pq"
)

const resultEventChannel = "qc_result_events"

// resultChangePayload 触发器通知载荷
type resultChangePayload struct {
	ResultID string `json:"result_id"`
	RunType  string `json:"run_type"`
	Status   string `json:"status"`
}

// DBListener 数据库结果变更监听器
type DBListener struct {
	listener *pq.Listener
	progress *ProgressService
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewDBListener 创建数据库监听器，connStr 为 PostgreSQL 连接串
func NewDBListener(connStr string, progress *ProgressService) *DBListener {
	ctx, cancel := context.WithCancel(context.Background())

	listener := pq.NewListener(connStr, 10*time.Second, time.Minute,
		func(event pq.ListenerEventType, err error) {
			if err != nil {
				slog.Error("数据库事件监听器状态变化", "event", event, "error", err)
			}
		})

	return &DBListener{
		listener: listener,
		progress: progress,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start 开始监听结果变更通知
func (l *DBListener) Start() error {
	if err := l.listener.Listen(resultEventChannel); err != nil {
		return err
	}
	go l.run()
	slog.Info("数据库结果事件监听已启动", "channel", resultEventChannel)
	return nil
}

// Stop 停止监听
func (l *DBListener) Stop() {
	l.cancel()
	if err := l.listener.Close(); err != nil {
		slog.Error("关闭数据库事件监听器失败", "error", err)
	}
}

func (l *DBListener) run() {
	for {
		select {
		case <-l.ctx.Done():
			return
		case notification := <-l.listener.Notify:
			if notification == nil {
				// 连接重建后的空通知
				continue
			}
			l.forward(notification.Extra)
		case <-time.After(90 * time.Second):
			// 定期探活，保证长连接存活
			go func() {
				if err := l.listener.Ping(); err != nil {
					slog.Error("数据库事件监听器探活失败", "error", err)
				}
			}()
		}
	}
}

// forward 将状态变更转发为一条终态进度事件
func (l *DBListener) forward(payload string) {
	var change resultChangePayload
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		slog.Error("解析结果变更载荷失败", "payload", payload, "error", err)
		return
	}

	stage := models.ProgressStageSaving
	progress := 100
	if change.Status == models.RunStatusRunning {
		stage = models.ProgressStagePreparing
		progress = 0
	}

	l.progress.Emit(&models.ProgressEvent{
		ResultID: change.ResultID,
		Stage:    stage,
		Progress: progress,
		Message:  "运行状态: " + change.Status,
	})
}

/*
 * @module api/controllers/event_controller
 * @description 进度事件控制器，提供按运行订阅的SSE进度推送
 * @architecture RESTful API架构 - 控制器层
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow SSE连接建立 -> 订阅运行进度 -> 事件推送 -> 连接断开时回收订阅
 * @rules 进度推送尽力而为，连接断开即时取消订阅，不留全局残留
 * @dependencies fluxqc-service/service, github.com/go-chi/chi/v5
 * @refs service/event/progress_service.go
 */

package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"fluxqc-service/service"
	"fluxqc-service/service/event"

	"github.com/go-chi/chi/v5"
)

// EventController 进度事件控制器
type EventController struct {
	progress *event.ProgressService
}

// NewEventController 创建事件控制器实例
func NewEventController() *EventController {
	return &EventController{progress: service.GlobalProgressService}
}

// HandleProgressSSE 订阅运行进度
// @Summary 订阅运行进度
// @Description 通过SSE接收指定运行的进度事件推送
// @Tags 事件管理
// @Param result_id path string true "结果ID"
// @Success 200 {string} string "SSE事件流"
// @Router /sse/progress/{result_id} [get]
func (c *EventController) HandleProgressSSE(w http.ResponseWriter, r *http.Request) {
	resultID := chi.URLParam(r, "result_id")
	if resultID == "" {
		http.Error(w, "结果ID不能为空", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "当前连接不支持SSE", http.StatusInternalServerError)
		return
	}

	// 设置SSE响应头
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	ch, cancel := c.progress.Subscribe(resultID)
	defer cancel()

	// 发送连接成功事件
	fmt.Fprintf(w, "data: {\"type\":\"connected\",\"result_id\":\"%s\",\"timestamp\":\"%s\"}\n\n",
		resultID, time.Now().Format(time.RFC3339))
	flusher.Flush()

	// 心跳保证代理不断开空闲连接
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case ev, open := <-ch:
			if !open {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()

		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

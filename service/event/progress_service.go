/*
 * @module service/event/progress_service
 * @description 运行进度事件服务，按结果ID维护 SSE 订阅并分发引擎进度
 * @architecture 事件驱动架构 - 业务服务层
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow 引擎发出进度 -> 按运行分发 -> SSE 客户端推送 -> 断开时清理订阅
 * @rules 进度投递尽力而为且不阻塞引擎，无订阅者时静默丢弃；订阅随连接断开即时回收，不留全局残留
 * @dependencies service/models, sync, log/slog
 * @refs service/detection/, service/imputation/, api/controllers/event_controller.go
 */

package event

import (
	"log/slog"
	"sync"

	"fluxqc-service/service/models"
)

// ProgressFunc 进度回调，引擎在每列处理后调用；实现必须不阻塞、不失败
type ProgressFunc func(ev *models.ProgressEvent)

// ProgressService 进度事件服务
type ProgressService struct {
	mu          sync.RWMutex
	subscribers map[string][]chan *models.ProgressEvent // resultID -> 订阅通道
}

// NewProgressService 创建进度事件服务实例
func NewProgressService() *ProgressService {
	return &ProgressService{
		subscribers: make(map[string][]chan *models.ProgressEvent),
	}
}

// Subscribe 订阅指定运行的进度事件，返回事件通道和取消函数
// 取消函数幂等，连接断开时必须调用以回收订阅
func (s *ProgressService) Subscribe(resultID string) (<-chan *models.ProgressEvent, func()) {
	ch := make(chan *models.ProgressEvent, 16)

	s.mu.Lock()
	s.subscribers[resultID] = append(s.subscribers[resultID], ch)
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			// 重建切片而不是原地挪动，Emit 读到的旧切片保持完整
			subs := s.subscribers[resultID]
			remaining := make([]chan *models.ProgressEvent, 0, len(subs))
			for _, sub := range subs {
				if sub != ch {
					remaining = append(remaining, sub)
				}
			}
			if len(remaining) == 0 {
				delete(s.subscribers, resultID)
			} else {
				s.subscribers[resultID] = remaining
			}
			close(ch)
		})
	}
	return ch, cancel
}

// Emit 分发进度事件，通道已满的慢订阅者直接丢弃本条
func (s *ProgressService) Emit(ev *models.ProgressEvent) {
	if ev == nil {
		return
	}

	// 发送全程持读锁：close 只发生在 cancel 的写锁内，二者不会交错
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ch := range s.subscribers[ev.ResultID] {
		select {
		case ch <- ev:
		default:
			slog.Debug("进度事件订阅者缓冲已满，丢弃事件", "result_id", ev.ResultID, "progress", ev.Progress)
		}
	}
}

// Callback 构造绑定到本服务的进度回调，供引擎透传
func (s *ProgressService) Callback() ProgressFunc {
	return func(ev *models.ProgressEvent) {
		s.Emit(ev)
	}
}

// SubscriberCount 当前订阅数，供监控与测试使用
func (s *ProgressService) SubscriberCount(resultID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers[resultID])
}

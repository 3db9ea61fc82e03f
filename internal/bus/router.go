// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package bus

import (
	"context"
	"sync"
	"time"

	"negotiation-platform/internal/protocol"
	"negotiation-platform/pkg/log"
	"negotiation-platform/pkg/metrics"
)

// DefaultLatency 投递前的人工网络时延
const DefaultLatency = 100 * time.Millisecond

// Handler 参与方的投递回调
type Handler func(ctx context.Context, msg *protocol.Message)

// Router 消息总线：参与方 id → 投递回调；投递异步，发送方不被接收方阻塞
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	latency  time.Duration
	logger   *log.Logger
	wg       sync.WaitGroup
}

// Option 可选配置
type Option func(*Router)

// WithLatency 设置投递前时延；<=0 时关闭时延
func WithLatency(d time.Duration) Option {
	return func(r *Router) {
		r.latency = d
	}
}

// NewRouter 创建总线
func NewRouter(logger *log.Logger, opts ...Option) *Router {
	r := &Router{
		handlers: make(map[string]Handler),
		latency:  DefaultLatency,
		logger:   logger,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Register 绑定投递回调；同 id 重复注册时后注册者生效
func (r *Router) Register(id string, h Handler) {
	r.mu.Lock()
	r.handlers[id] = h
	r.mu.Unlock()
	if r.logger != nil {
		r.logger.Info("参与方已注册", "agent_id", id)
	}
}

// Unregister 解除绑定；其后对该 id 的投递按路由失败处理
func (r *Router) Unregister(id string) {
	r.mu.Lock()
	delete(r.handlers, id)
	r.mu.Unlock()
}

// Participants 当前已注册的参与方 id 集合，顺序不保证
func (r *Router) Participants() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for id := range r.handlers {
		out = append(out, id)
	}
	return out
}

// Send 路由消息。收件方未注册时只记录不抛错（fail-soft）；
// 投递在独立 goroutine 中完成，避免回复链在调用栈上逐轮递归。
func (r *Router) Send(ctx context.Context, msg *protocol.Message) {
	if msg == nil {
		return
	}
	r.mu.RLock()
	h, ok := r.handlers[msg.To]
	r.mu.RUnlock()
	if !ok {
		metrics.DeliveryFailTotal.Inc()
		if r.logger != nil {
			r.logger.Warn("路由失败：收件方未注册", "to", msg.To, "from", msg.From, "type", string(msg.Type))
		}
		return
	}
	metrics.MessageRoutedTotal.WithLabelValues(string(msg.Type)).Inc()
	if r.logger != nil {
		r.logger.Debug("路由消息", "from", msg.From, "to", msg.To, "type", string(msg.Type))
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if r.latency > 0 {
			select {
			case <-time.After(r.latency):
			case <-ctx.Done():
				return
			}
		}
		h(ctx, msg)
	}()
}

// Wait 等待所有已派发的投递完成（供会话与测试收敛用）
func (r *Router) Wait() {
	r.wg.Wait()
}

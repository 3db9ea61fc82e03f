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

package agent

import (
	"context"
	"sync"
	"time"

	"negotiation-platform/internal/bus"
	"negotiation-platform/internal/decision"
	"negotiation-platform/internal/protocol"
	"negotiation-platform/pkg/log"
	"negotiation-platform/pkg/metrics"
)

// defaultWindowSize 交给决策提供方的历史窗口上限（控制提示词规模）
const defaultWindowSize = 10

// Negotiator 协商参与方：持有本地消息历史，注册到总线，驱动
// 收取 → 终止判断 → 决策 → 回复 的状态机。状态不显式存储，由历史推导。
type Negotiator struct {
	card          protocol.AgentCard
	router        *bus.Router
	provider      decision.Provider
	fallback      decision.Provider
	counterpart   string // 角色约定的默认对端，历史解析不出收件方时兜底
	maxRounds     int
	responseDelay time.Duration
	windowSize    int
	logger        *log.Logger

	mu      sync.Mutex
	history []*protocol.Message
}

// Option 可选配置
type Option func(*Negotiator)

// WithMaxRounds 设置轮数预算（一轮 = 双方各一条 PROPOSAL/REJECTION）
func WithMaxRounds(n int) Option {
	return func(a *Negotiator) {
		if n > 0 {
			a.maxRounds = n
		}
	}
}

// WithResponseDelay 设置回复前的人工时延（模拟人工响应节奏）
func WithResponseDelay(d time.Duration) Option {
	return func(a *Negotiator) {
		a.responseDelay = d
	}
}

// WithFallback 设置决策失败时的回落决策（通常为规则决策）
func WithFallback(p decision.Provider) Option {
	return func(a *Negotiator) {
		a.fallback = p
	}
}

// WithCounterpart 设置角色约定的默认对端 id
func WithCounterpart(id string) Option {
	return func(a *Negotiator) {
		a.counterpart = id
	}
}

// WithWindowSize 设置决策历史窗口上限
func WithWindowSize(n int) Option {
	return func(a *Negotiator) {
		if n > 0 {
			a.windowSize = n
		}
	}
}

// New 创建参与方并注册到总线
func New(card protocol.AgentCard, router *bus.Router, provider decision.Provider, logger *log.Logger, opts ...Option) *Negotiator {
	a := &Negotiator{
		card:       card,
		router:     router,
		provider:   provider,
		maxRounds:  5,
		windowSize: defaultWindowSize,
		logger:     logger,
	}
	for _, o := range opts {
		o(a)
	}
	if router != nil {
		router.Register(card.ID, a.Receive)
	}
	return a
}

// Card 返回参与方名片
func (a *Negotiator) Card() protocol.AgentCard {
	return a.card
}

// History 返回本地历史副本（按收发顺序）
func (a *Negotiator) History() []*protocol.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*protocol.Message, len(a.history))
	copy(out, a.history)
	return out
}

// RoundCount 由历史推导的轮次计数：只数 PROPOSAL/REJECTION，INFO 不推进轮次
func (a *Negotiator) RoundCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return countRoundMessages(a.history)
}

func countRoundMessages(history []*protocol.Message) int {
	n := 0
	for _, m := range history {
		if m.Type == protocol.TypeProposal || m.Type == protocol.TypeRejection {
			n++
		}
	}
	return n
}

// Receive 总线投递回调。每次调用至多产生一条回复。
func (a *Negotiator) Receive(ctx context.Context, msg *protocol.Message) {
	if msg == nil {
		return
	}
	// 入站消息无条件入史，即使其后不回复
	a.append(msg)

	// 回流到发送方的消息不触发自我对话
	if msg.From == a.card.ID {
		return
	}

	switch msg.Type {
	case protocol.TypeAcceptance, protocol.TypeCommitment:
		a.logger.Info("协商到达终态", "agent", a.card.Name, "type", string(msg.Type))
		return
	case protocol.TypeInfo:
		// 仅系统续推触发回复，普通 INFO 视为被动确认
		if msg.From != protocol.SystemSender {
			a.logger.Info("收到 INFO，确认不回复", "agent", a.card.Name, "from", msg.From)
			return
		}
	}

	if a.exceededBudget() {
		a.logger.Info("轮数预算耗尽，停止协商", "agent", a.card.Name, "max_rounds", a.maxRounds)
		return
	}

	a.thinkAndReply(ctx, msg)
}

// exceededBudget 轮数预算：双方各一条算一轮，超过 2×maxRounds 即终止
func (a *Negotiator) exceededBudget() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return countRoundMessages(a.history) > a.maxRounds*2
}

// thinkAndReply 产出并发送一条回复；决策失败回落规则决策，仍失败则放弃回复。
// 时延只挂起本参与方，不阻塞总线与对方。
func (a *Negotiator) thinkAndReply(ctx context.Context, incoming *protocol.Message) {
	if a.responseDelay > 0 {
		select {
		case <-time.After(a.responseDelay):
		case <-ctx.Done():
			return
		}
	}

	window := a.window()
	reply := a.decideReply(ctx, window, incoming)
	if reply == nil {
		return
	}

	a.append(reply)
	a.router.Send(ctx, reply)
}

// decideReply 依次尝试主决策与回落决策，返回第一条合法回复，全部失败返回 nil
func (a *Negotiator) decideReply(ctx context.Context, window []*protocol.Message, incoming *protocol.Message) *protocol.Message {
	to := ResolveRecipient(window, a.card.ID, incoming.From)
	if to == "" {
		to = a.counterpart
	}
	if to == "" {
		a.logger.Warn("无法确定回复对象，放弃回复", "agent", a.card.Name)
		return nil
	}

	providers := []decision.Provider{a.provider}
	if a.fallback != nil && a.fallback != a.provider {
		providers = append(providers, a.fallback)
	}
	for i, p := range providers {
		if p == nil {
			continue
		}
		if i > 0 {
			metrics.DecisionFallbackTotal.Inc()
		}
		d, err := p.Decide(ctx, window, incoming)
		if err == nil {
			err = d.Validate()
		}
		if err != nil {
			metrics.DecisionFailTotal.WithLabelValues(p.Name()).Inc()
			a.logger.Warn("决策失败", "agent", a.card.Name, "provider", p.Name(), "error", err)
			continue
		}
		msg, err := protocol.NewMessage(a.card.ID, to, incoming.ThreadID, d.Type, d.Payload, d.Reasoning)
		if err != nil {
			metrics.DecisionFailTotal.WithLabelValues(p.Name()).Inc()
			a.logger.Warn("决策产物不合协议", "agent", a.card.Name, "provider", p.Name(), "error", err)
			continue
		}
		return msg
	}
	a.logger.Warn("全部决策路径失败，本次不回复", "agent", a.card.Name)
	return nil
}

// StartConversation 以 PROPOSAL 开局（种子事件，不经过收取管线）
func (a *Negotiator) StartConversation(ctx context.Context, to string, payload protocol.Payload) (*protocol.Message, error) {
	msg, err := protocol.NewMessage(a.card.ID, to, "", protocol.TypeProposal, payload, "Initiating negotiation.")
	if err != nil {
		return nil, err
	}
	a.logger.Info("发起协商", "agent", a.card.Name, "to", to)
	a.append(msg)
	a.router.Send(ctx, msg)
	return msg, nil
}

func (a *Negotiator) append(msg *protocol.Message) {
	a.mu.Lock()
	a.history = append(a.history, msg)
	a.mu.Unlock()
}

// window 最近 windowSize 条历史
func (a *Negotiator) window() []*protocol.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	start := 0
	if len(a.history) > a.windowSize {
		start = len(a.history) - a.windowSize
	}
	out := make([]*protocol.Message, len(a.history)-start)
	copy(out, a.history[start:])
	return out
}

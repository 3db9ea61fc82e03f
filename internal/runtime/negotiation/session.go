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

package negotiation

import (
	"context"
	"sort"
	"sync"
	"time"

	"negotiation-platform/internal/agent"
	"negotiation-platform/internal/bus"
	"negotiation-platform/internal/protocol"
	"negotiation-platform/pkg/errors"
	"negotiation-platform/pkg/metrics"
)

// 买卖双方的角色约定 id
const (
	BuyerID  = "buyer_agent"
	SellerID = "seller_agent"
)

// Status 会话状态，由合并历史推导
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusAborted   Status = "aborted"
)

// Session 一次买卖协商：持有总线与双方参与方，状态全部在内存
type Session struct {
	ID          string
	Topic       string
	ListedPrice float64
	CreatedAt   time.Time

	router    *bus.Router
	buyer     *agent.Negotiator
	seller    *agent.Negotiator
	maxRounds int

	mu       sync.Mutex
	recorded bool // 终态指标只记一次
}

// NewSession 创建会话（参与方已注册到 router）
func NewSession(id, topic string, listedPrice float64, router *bus.Router, buyer, seller *agent.Negotiator, maxRounds int) *Session {
	if maxRounds <= 0 {
		maxRounds = 5
	}
	return &Session{
		ID:          id,
		Topic:       topic,
		ListedPrice: listedPrice,
		CreatedAt:   time.Now().UTC(),
		router:      router,
		buyer:       buyer,
		seller:      seller,
		maxRounds:   maxRounds,
	}
}

// Buyer 返回买方
func (s *Session) Buyer() *agent.Negotiator { return s.buyer }

// Seller 返回卖方
func (s *Session) Seller() *agent.Negotiator { return s.seller }

// Start 由卖方以挂牌价开局
func (s *Session) Start(ctx context.Context) error {
	payload := protocol.Payload{
		Topic: s.Topic,
		Terms: protocol.Terms{"price": s.ListedPrice, "currency": "USD"},
	}
	_, err := s.seller.StartConversation(ctx, s.buyer.Card().ID, payload)
	return err
}

// ContinueRound 向尚未答复最新一条消息的一方注入系统续推 INFO，
// 驱动其产出恰好一条回复；会话非活跃时报错。
func (s *Session) ContinueRound(ctx context.Context) error {
	if s.Status() != StatusActive {
		return errors.ErrSessionNotActive
	}
	merged := s.History()
	if len(merged) == 0 {
		return errors.Wrap(errors.ErrSessionNotActive, "会话尚未开局")
	}

	target := s.nextResponder(merged)
	last := merged[len(merged)-1]
	trigger, err := protocol.NewMessage(
		protocol.SystemSender,
		target.Card().ID,
		last.ThreadID,
		protocol.TypeInfo,
		protocol.Payload{Content: "Please continue the negotiation based on the counterpart's last message."},
		"System: Continue negotiation",
	)
	if err != nil {
		return err
	}
	// 续推直达参与方，不经过总线时延；其回复仍走总线异步投递
	target.Receive(ctx, trigger)
	return nil
}

// nextResponder 最新消息的对方应答；发送方不明时由消息数少的一方应答
func (s *Session) nextResponder(merged []*protocol.Message) *agent.Negotiator {
	last := merged[len(merged)-1]
	switch last.From {
	case s.seller.Card().ID:
		return s.buyer
	case s.buyer.Card().ID:
		return s.seller
	}
	buyerCount, sellerCount := 0, 0
	for _, m := range merged {
		switch m.From {
		case s.buyer.Card().ID:
			buyerCount++
		case s.seller.Card().ID:
			sellerCount++
		}
	}
	if buyerCount <= sellerCount {
		return s.buyer
	}
	return s.seller
}

// History 双方历史的合并视图：按消息 id 去重、按时间排序。
// 双方各自的本地序可能交错，合并视图以时间戳为准。
func (s *Session) History() []*protocol.Message {
	seen := make(map[string]struct{})
	var out []*protocol.Message
	for _, m := range append(s.buyer.History(), s.seller.History()...) {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// RoundCount 合并历史中 PROPOSAL/REJECTION 的条数
func (s *Session) RoundCount() int {
	n := 0
	for _, m := range s.History() {
		if m.Type == protocol.TypeProposal || m.Type == protocol.TypeRejection {
			n++
		}
	}
	return n
}

// Status 推导会话状态：出现 ACCEPTANCE/COMMITMENT 即 completed，
// 轮次预算耗尽为 aborted，否则 active
func (s *Session) Status() Status {
	merged := s.History()
	rounds := 0
	status := StatusActive
	for _, m := range merged {
		switch m.Type {
		case protocol.TypeAcceptance, protocol.TypeCommitment:
			status = StatusCompleted
		case protocol.TypeProposal, protocol.TypeRejection:
			rounds++
		}
	}
	if status == StatusActive && rounds > s.maxRounds*2 {
		status = StatusAborted
	}
	if status != StatusActive {
		s.recordOutcome(status, rounds)
	}
	return status
}

func (s *Session) recordOutcome(status Status, rounds int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recorded {
		return
	}
	s.recorded = true
	metrics.NegotiationTotal.WithLabelValues(string(status)).Inc()
	metrics.NegotiationRounds.Observe(float64(rounds))
}

// Settle 等待总线上在途投递（及其触发的后续回复）全部完成
func (s *Session) Settle() {
	s.router.Wait()
}

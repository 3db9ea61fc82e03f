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
	"testing"

	"negotiation-platform/internal/bus"
	"negotiation-platform/internal/decision"
	"negotiation-platform/internal/protocol"
	"negotiation-platform/pkg/errors"
	"negotiation-platform/pkg/log"
)

func testLogger(t *testing.T) *log.Logger {
	t.Helper()
	l, err := log.NewLogger(&log.Config{Level: "error"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	return l
}

// scriptedProvider 固定返回给定决策或错误
type scriptedProvider struct {
	decision *decision.Decision
	err      error
	calls    int
}

func (p *scriptedProvider) Decide(ctx context.Context, window []*protocol.Message, incoming *protocol.Message) (*decision.Decision, error) {
	p.calls++
	return p.decision, p.err
}

func (p *scriptedProvider) Name() string { return "scripted" }

func newPair(t *testing.T, buyerProvider, sellerProvider decision.Provider, opts ...Option) (*bus.Router, *Negotiator, *Negotiator) {
	t.Helper()
	logger := testLogger(t)
	router := bus.NewRouter(logger, bus.WithLatency(0))
	buyerOpts := append([]Option{WithCounterpart("seller_agent")}, opts...)
	sellerOpts := append([]Option{WithCounterpart("buyer_agent")}, opts...)
	buyer := New(protocol.NewAgentCard("buyer_agent", "Buyer", nil), router, buyerProvider, logger, buyerOpts...)
	seller := New(protocol.NewAgentCard("seller_agent", "Seller", nil), router, sellerProvider, logger, sellerOpts...)
	return router, buyer, seller
}

func TestNegotiationConvergesToAcceptance(t *testing.T) {
	// 阈值 1600：1800 → 1620 → 1539 → 成交
	router, buyer, seller := newPair(t,
		decision.NewRuleProvider("buyer_agent", 1600),
		decision.NewRuleProvider("seller_agent", 1600),
	)

	_, err := seller.StartConversation(context.Background(), "buyer_agent",
		protocol.Payload{Topic: "Leica M3", Terms: protocol.Terms{"price": 1800.0, "currency": "USD"}})
	if err != nil {
		t.Fatalf("StartConversation: %v", err)
	}
	router.Wait()

	var accepted *protocol.Message
	for _, m := range buyer.History() {
		if m.Type == protocol.TypeAcceptance {
			accepted = m
		}
	}
	if accepted == nil {
		t.Fatalf("no acceptance in history: %d messages", len(buyer.History()))
	}
	if p, ok := accepted.Payload.Price(); !ok || p > 1600.0 {
		t.Errorf("final price = %v, want <= 1600", p)
	}
	// 双方线程一致
	for _, m := range seller.History() {
		if m.ThreadID != accepted.ThreadID {
			t.Errorf("thread mismatch: %q vs %q", m.ThreadID, accepted.ThreadID)
		}
	}
}

func TestReceiveIgnoresOwnMessage(t *testing.T) {
	provider := &scriptedProvider{decision: &decision.Decision{
		Type: protocol.TypeInfo, Payload: protocol.Payload{Content: "x"},
	}}
	_, buyer, _ := newPair(t, provider, decision.NewRuleProvider("seller_agent", 0))

	own, err := protocol.NewMessage("buyer_agent", "seller_agent", "", protocol.TypeInfo, protocol.Payload{Content: "echo"}, "")
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	buyer.Receive(context.Background(), own)

	if provider.calls != 0 {
		t.Errorf("provider called %d times for own message, want 0", provider.calls)
	}
	if len(buyer.History()) != 1 {
		t.Errorf("history = %d, want 1 (message still recorded)", len(buyer.History()))
	}
}

func TestReceiveTerminalMessageStops(t *testing.T) {
	provider := &scriptedProvider{decision: &decision.Decision{
		Type: protocol.TypeInfo, Payload: protocol.Payload{Content: "x"},
	}}
	_, buyer, _ := newPair(t, provider, decision.NewRuleProvider("seller_agent", 0))

	accept, err := protocol.NewMessage("seller_agent", "buyer_agent", "", protocol.TypeAcceptance,
		protocol.Payload{FinalTerms: protocol.Terms{"price": 1539.0, "currency": "USD"}}, "deal")
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	buyer.Receive(context.Background(), accept)

	if provider.calls != 0 {
		t.Errorf("provider called %d times after terminal message, want 0", provider.calls)
	}
}

func TestReceivePlainInfoDoesNotReply(t *testing.T) {
	provider := &scriptedProvider{decision: &decision.Decision{
		Type: protocol.TypeInfo, Payload: protocol.Payload{Content: "x"},
	}}
	_, buyer, _ := newPair(t, provider, decision.NewRuleProvider("seller_agent", 0))

	info, err := protocol.NewMessage("seller_agent", "buyer_agent", "", protocol.TypeInfo,
		protocol.Payload{Content: "ships tomorrow"}, "")
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	buyer.Receive(context.Background(), info)

	if provider.calls != 0 {
		t.Errorf("provider called %d times for plain INFO, want 0", provider.calls)
	}
}

func TestSystemInfoTriggersReply(t *testing.T) {
	router, buyer, seller := newPair(t,
		decision.NewRuleProvider("buyer_agent", 0),
		&scriptedProvider{err: errors.ErrDecisionFailed}, // 卖方不回，链条停在买方
	)

	proposal, err := protocol.NewMessage("seller_agent", "buyer_agent", "", protocol.TypeProposal,
		protocol.Payload{Terms: protocol.Terms{"price": 1000.0, "currency": "USD"}}, "")
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	buyer.Receive(context.Background(), proposal)
	router.Wait()

	before := len(buyer.History())
	trigger, err := protocol.NewMessage(protocol.SystemSender, "buyer_agent", proposal.ThreadID,
		protocol.TypeInfo, protocol.Payload{Content: "continue"}, "")
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	buyer.Receive(context.Background(), trigger)
	router.Wait()

	// 续推 + 回复各一条
	if got := len(buyer.History()); got != before+2 {
		t.Fatalf("history = %d, want %d", got, before+2)
	}
	last := buyer.History()[len(buyer.History())-1]
	if last.From != "buyer_agent" || last.To != "seller_agent" {
		t.Errorf("reply should target the real counterpart, got %s -> %s", last.From, last.To)
	}
	_ = seller
}

func TestRoundBudgetAborts(t *testing.T) {
	logger := testLogger(t)
	// 只注册买方：回复对卖方的投递软失败，历史只由本测试驱动
	router := bus.NewRouter(logger, bus.WithLatency(0))
	buyer := New(protocol.NewAgentCard("buyer_agent", "Buyer", nil), router,
		decision.NewRuleProvider("buyer_agent", 0), logger,
		WithCounterpart("seller_agent"), WithMaxRounds(1))

	incoming := func(price float64) {
		m, err := protocol.NewMessage("seller_agent", "buyer_agent", "thr-x", protocol.TypeRejection,
			protocol.Payload{CounterOffer: protocol.Terms{"price": price}}, "")
		if err != nil {
			t.Fatalf("NewMessage: %v", err)
		}
		buyer.Receive(context.Background(), m)
	}

	// 第 1 条：预算内（1 条 < 2×1），买方还价
	incoming(500)
	if got := buyer.RoundCount(); got != 2 {
		t.Fatalf("round count = %d, want 2 (incoming + reply)", got)
	}
	// 第 2 条：计入后达 3 条 > 2×1，预算耗尽，不再回复
	incoming(450)
	if got := buyer.RoundCount(); got != 3 {
		t.Fatalf("round count = %d, want 3 (recorded but unanswered)", got)
	}
	incoming(400)
	if got := buyer.RoundCount(); got != 4 {
		t.Fatalf("round count = %d, want 4", got)
	}
	router.Wait()
}

func TestFallbackOnProviderFailure(t *testing.T) {
	logger := testLogger(t)
	router := bus.NewRouter(logger, bus.WithLatency(0))
	failing := &scriptedProvider{err: errors.ErrDecisionFailed}
	seller := New(protocol.NewAgentCard("seller_agent", "Seller", nil), router, failing, logger,
		WithCounterpart("buyer_agent"),
		WithFallback(decision.NewRuleProvider("seller_agent", 0)),
	)

	proposal, err := protocol.NewMessage("buyer_agent", "seller_agent", "", protocol.TypeProposal,
		protocol.Payload{Terms: protocol.Terms{"price": 1000.0, "currency": "USD"}}, "")
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	seller.Receive(context.Background(), proposal)
	router.Wait()

	if failing.calls == 0 {
		t.Fatal("primary provider should have been tried first")
	}
	var reply *protocol.Message
	for _, m := range seller.History() {
		if m.From == "seller_agent" {
			reply = m
		}
	}
	if reply == nil {
		t.Fatal("fallback should have produced a reply")
	}
	if reply.Type != protocol.TypeRejection {
		t.Errorf("reply type = %s, want REJECTION from rule fallback", reply.Type)
	}
}

func TestAllProvidersFailNoReply(t *testing.T) {
	failing := &scriptedProvider{err: errors.ErrDecisionFailed}
	_, buyer, _ := newPair(t, failing, decision.NewRuleProvider("seller_agent", 0))

	proposal, err := protocol.NewMessage("seller_agent", "buyer_agent", "", protocol.TypeProposal,
		protocol.Payload{Terms: protocol.Terms{"price": 1000.0}}, "")
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	buyer.Receive(context.Background(), proposal)

	for _, m := range buyer.History() {
		if m.From == "buyer_agent" {
			t.Fatalf("unexpected reply %s despite decision failure", m.Type)
		}
	}
}

func TestResolveRecipient(t *testing.T) {
	mk := func(from string) *protocol.Message {
		m, err := protocol.NewMessage(from, "x", "thr-1", protocol.TypeInfo, protocol.Payload{Content: "c"}, "")
		if err != nil {
			t.Fatalf("NewMessage: %v", err)
		}
		return m
	}

	// 真实对端直接返回
	if got := ResolveRecipient(nil, "buyer_agent", "seller_agent"); got != "seller_agent" {
		t.Errorf("got %q, want seller_agent", got)
	}
	// 系统续推：从历史逆序找真实对端
	history := []*protocol.Message{mk("seller_agent"), mk("buyer_agent"), mk(protocol.SystemSender)}
	if got := ResolveRecipient(history, "buyer_agent", protocol.SystemSender); got != "seller_agent" {
		t.Errorf("got %q, want seller_agent", got)
	}
	// 历史全是自己和系统
	history = []*protocol.Message{mk("buyer_agent"), mk(protocol.SystemSender)}
	if got := ResolveRecipient(history, "buyer_agent", protocol.SystemSender); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

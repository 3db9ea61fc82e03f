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

package decision

import (
	"context"
	"math"
	"testing"

	"negotiation-platform/internal/protocol"
)

func mustMessage(t *testing.T, from, to string, typ protocol.MessageType, payload protocol.Payload) *protocol.Message {
	t.Helper()
	m, err := protocol.NewMessage(from, to, "thr-test", typ, payload, "")
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	return m
}

func priceNear(t *testing.T, terms protocol.Terms, want float64) {
	t.Helper()
	p, ok := protocol.Payload{Terms: terms}.Price()
	if !ok {
		t.Fatalf("terms %v carry no price", terms)
	}
	if math.Abs(p-want) > 1e-9 {
		t.Fatalf("price = %v, want %v", p, want)
	}
}

func TestRuleCountersProposal(t *testing.T) {
	p := NewRuleProvider("buyer_agent", 0)
	incoming := mustMessage(t, "seller_agent", "buyer_agent", protocol.TypeProposal,
		protocol.Payload{Terms: protocol.Terms{"price": 1800.0, "currency": "USD"}})

	d, err := p.Decide(context.Background(), nil, incoming)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Type != protocol.TypeRejection {
		t.Fatalf("type = %s, want REJECTION", d.Type)
	}
	priceNear(t, d.Payload.CounterOffer, 1620.0)
	if c := d.Payload.CounterOffer["currency"]; c != "USD" {
		t.Errorf("currency = %v, want USD", c)
	}
}

func TestRuleNarrowsOnRejection(t *testing.T) {
	p := NewRuleProvider("seller_agent", 0)
	incoming := mustMessage(t, "buyer_agent", "seller_agent", protocol.TypeRejection,
		protocol.Payload{CounterOffer: protocol.Terms{"price": 1620.0, "currency": "USD"}})

	d, err := p.Decide(context.Background(), nil, incoming)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Type != protocol.TypeRejection {
		t.Fatalf("type = %s, want REJECTION", d.Type)
	}
	priceNear(t, d.Payload.CounterOffer, 1539.0)
}

func TestRuleAcceptsAtThreshold(t *testing.T) {
	p := NewRuleProvider("seller_agent", 1650)
	incoming := mustMessage(t, "buyer_agent", "seller_agent", protocol.TypeRejection,
		protocol.Payload{CounterOffer: protocol.Terms{"price": 1620.0, "currency": "USD"}})

	d, err := p.Decide(context.Background(), nil, incoming)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Type != protocol.TypeAcceptance {
		t.Fatalf("type = %s, want ACCEPTANCE", d.Type)
	}
	// 接受时条款价原样沿用，不再打折
	priceNear(t, d.Payload.FinalTerms, 1620.0)
}

func TestRuleWaitsWithoutCounterpart(t *testing.T) {
	p := NewRuleProvider("buyer_agent", 0)

	// 窗口里只有自己与系统的消息
	own := mustMessage(t, "buyer_agent", "seller_agent", protocol.TypeInfo, protocol.Payload{Content: "x"})
	sys := mustMessage(t, protocol.SystemSender, "buyer_agent", protocol.TypeInfo, protocol.Payload{Content: "continue"})

	d, err := p.Decide(context.Background(), []*protocol.Message{own}, sys)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Type != protocol.TypeInfo {
		t.Fatalf("type = %s, want INFO", d.Type)
	}
}

func TestRulePricelessProposal(t *testing.T) {
	p := NewRuleProvider("buyer_agent", 0)
	incoming := mustMessage(t, "seller_agent", "buyer_agent", protocol.TypeProposal,
		protocol.Payload{Terms: protocol.Terms{"condition": "mint"}})

	d, err := p.Decide(context.Background(), nil, incoming)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Type != protocol.TypeRejection {
		t.Fatalf("type = %s, want REJECTION", d.Type)
	}
	if d.Payload.CounterOffer != nil {
		t.Errorf("counter_offer = %v, want none", d.Payload.CounterOffer)
	}
}

func TestRuleAcknowledgesInfo(t *testing.T) {
	p := NewRuleProvider("buyer_agent", 0)
	incoming := mustMessage(t, "seller_agent", "buyer_agent", protocol.TypeInfo,
		protocol.Payload{Content: "the camera ships with the original case"})

	d, err := p.Decide(context.Background(), nil, incoming)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Type != protocol.TypeInfo {
		t.Fatalf("type = %s, want INFO", d.Type)
	}
}

// 系统续推场景：窗口里最后一条真实消息仍是对方报价，续推 INFO 不应遮蔽它
func TestRuleContinuationUsesWindow(t *testing.T) {
	p := NewRuleProvider("buyer_agent", 0)
	window := []*protocol.Message{
		mustMessage(t, "seller_agent", "buyer_agent", protocol.TypeProposal,
			protocol.Payload{Terms: protocol.Terms{"price": 1000.0, "currency": "USD"}}),
	}
	trigger := mustMessage(t, protocol.SystemSender, "buyer_agent", protocol.TypeInfo,
		protocol.Payload{Content: "continue"})

	d, err := p.Decide(context.Background(), window, trigger)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Type != protocol.TypeRejection {
		t.Fatalf("type = %s, want REJECTION against the standing proposal", d.Type)
	}
	priceNear(t, d.Payload.CounterOffer, 900.0)
}

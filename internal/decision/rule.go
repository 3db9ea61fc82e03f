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
	"fmt"

	"negotiation-platform/internal/protocol"
)

// 规则策略常量：对 PROPOSAL 砍 10%，对 REJECTION 让 5%，低于阈值即接受。
// 两个比例对双方角色对称生效，每次还价都更接近阈值，保证有限轮内收敛。
const (
	ProposalCounterRatio   = 0.90
	RejectionCounterRatio  = 0.95
	DefaultAcceptThreshold = 200.0
)

// RuleProvider 确定性规则决策：仅依赖最近一条对方消息，纯函数、无副作用，
// 可独立于任何 LLM 做确定性测试，也作为 LLM 失败时的回落策略。
type RuleProvider struct {
	selfID    string
	threshold float64
}

// NewRuleProvider 创建规则决策；threshold<=0 时用默认接受阈值
func NewRuleProvider(selfID string, threshold float64) *RuleProvider {
	if threshold <= 0 {
		threshold = DefaultAcceptThreshold
	}
	return &RuleProvider{selfID: selfID, threshold: threshold}
}

// Name 实现 Provider
func (p *RuleProvider) Name() string {
	return "rule"
}

// Decide 实现 Provider
func (p *RuleProvider) Decide(ctx context.Context, window []*protocol.Message, incoming *protocol.Message) (*Decision, error) {
	last := lastCounterpartMessage(p.selfID, window, incoming)
	if last == nil {
		return &Decision{
			Type:      protocol.TypeInfo,
			Reasoning: "No counterpart message yet, waiting.",
			Payload:   protocol.Payload{Content: "Waiting for the counterpart to make a move."},
		}, nil
	}

	switch last.Type {
	case protocol.TypeProposal:
		price, ok := last.Payload.Price()
		if !ok {
			return &Decision{
				Type:      protocol.TypeRejection,
				Reasoning: "Proposal carries no extractable price, rejecting without a counter.",
				Payload:   protocol.Payload{},
			}, nil
		}
		counter := price * ProposalCounterRatio
		return &Decision{
			Type:      protocol.TypeRejection,
			Reasoning: fmt.Sprintf("Countering the proposed price %.2f with %.2f (10%% below).", price, counter),
			Payload: protocol.Payload{
				CounterOffer: counterTerms(counter, last.Payload),
			},
		}, nil

	case protocol.TypeRejection:
		price, ok := last.Payload.Price()
		if !ok {
			return &Decision{
				Type:      protocol.TypeRejection,
				Reasoning: "Rejection carries no extractable price, rejecting without a counter.",
				Payload:   protocol.Payload{},
			}, nil
		}
		if price <= p.threshold {
			return &Decision{
				Type:      protocol.TypeAcceptance,
				Reasoning: fmt.Sprintf("Counter-offer %.2f is within the acceptance threshold %.2f.", price, p.threshold),
				Payload: protocol.Payload{
					FinalTerms: counterTerms(price, last.Payload),
				},
			}, nil
		}
		counter := price * RejectionCounterRatio
		return &Decision{
			Type:      protocol.TypeRejection,
			Reasoning: fmt.Sprintf("Narrowing the gap: countering %.2f with %.2f (5%% closer).", price, counter),
			Payload: protocol.Payload{
				CounterOffer: counterTerms(counter, last.Payload),
			},
		}, nil
	}

	return &Decision{
		Type:      protocol.TypeInfo,
		Reasoning: "Acknowledged.",
		Payload:   protocol.Payload{Content: "Acknowledged."},
	}, nil
}

// counterTerms 以提取到的价格构造条款，币种沿用来消息，缺省 USD
func counterTerms(price float64, src protocol.Payload) protocol.Terms {
	currency := src.Currency()
	if currency == "" {
		currency = "USD"
	}
	return protocol.Terms{"price": price, "currency": currency}
}

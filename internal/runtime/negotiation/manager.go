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
	"time"

	"github.com/oklog/ulid/v2"

	"negotiation-platform/internal/agent"
	"negotiation-platform/internal/bus"
	"negotiation-platform/internal/decision"
	"negotiation-platform/internal/model/llm"
	"negotiation-platform/internal/protocol"
	"negotiation-platform/pkg/config"
	"negotiation-platform/pkg/errors"
	"negotiation-platform/pkg/log"
)

// Manager 会话生命周期管理：装配总线、双方参与方与决策提供方，
// 会话归编排层所有（显式 SessionStore，不用全局可变注册表）
type Manager struct {
	store     SessionStore
	cfg       *config.Config
	llmClient llm.Client
	logger    *log.Logger
}

// NewManager 创建 Manager；llmClient 可为 nil（此时 use_llm 角色也回落规则决策）
func NewManager(store SessionStore, cfg *config.Config, llmClient llm.Client, logger *log.Logger) *Manager {
	return &Manager{store: store, cfg: cfg, llmClient: llmClient, logger: logger}
}

// agentConfigs 加载双方角色配置，缺文件时用角色缺省
func (m *Manager) agentConfigs() (buyer, seller *config.AgentConfig, err error) {
	buyerPath, sellerPath := "configs/buyer.yaml", "configs/seller.yaml"
	if m.cfg != nil {
		if m.cfg.Agents.BuyerPath != "" {
			buyerPath = m.cfg.Agents.BuyerPath
		}
		if m.cfg.Agents.SellerPath != "" {
			sellerPath = m.cfg.Agents.SellerPath
		}
	}
	buyer, err = config.LoadAgentConfig(buyerPath, config.DefaultBuyerConfig())
	if err != nil {
		return nil, nil, errors.Wrap(err, "加载买方配置失败")
	}
	seller, err = config.LoadAgentConfig(sellerPath, config.DefaultSellerConfig())
	if err != nil {
		return nil, nil, errors.Wrap(err, "加载卖方配置失败")
	}
	return buyer, seller, nil
}

// providerFor 按角色配置选择决策实现：use_llm 且有客户端时 LLM + 规则回落，否则纯规则
func (m *Manager) providerFor(roleCfg *config.AgentConfig, role, selfID string) (primary, fallback decision.Provider) {
	rule := decision.NewRuleProvider(selfID, 0)
	if roleCfg.UseLLM && m.llmClient != nil {
		return decision.NewLLMProvider(m.llmClient, config.BuildSystemPrompt(roleCfg, role)), rule
	}
	return rule, nil
}

// Create 装配一个新会话并入库
func (m *Manager) Create(ctx context.Context, topic string, listedPrice float64) (*Session, error) {
	buyerCfg, sellerCfg, err := m.agentConfigs()
	if err != nil {
		return nil, err
	}

	latency := bus.DefaultLatency
	if m.cfg != nil && m.cfg.Bus.LatencyMs > 0 {
		latency = time.Duration(m.cfg.Bus.LatencyMs) * time.Millisecond
	}
	router := bus.NewRouter(m.logger, bus.WithLatency(latency))

	buyerPrimary, buyerFallback := m.providerFor(buyerCfg, "buyer", BuyerID)
	sellerPrimary, sellerFallback := m.providerFor(sellerCfg, "seller", SellerID)

	buyer := agent.New(
		protocol.NewAgentCard(BuyerID, "Buyer", buyerCfg.AllowedPaymentMethods),
		router, buyerPrimary, m.logger,
		agent.WithMaxRounds(buyerCfg.MaxRounds),
		agent.WithResponseDelay(time.Duration(buyerCfg.ResponseDelayMs)*time.Millisecond),
		agent.WithFallback(buyerFallback),
		agent.WithCounterpart(SellerID),
	)
	seller := agent.New(
		protocol.NewAgentCard(SellerID, "Seller", sellerCfg.AllowedPaymentMethods),
		router, sellerPrimary, m.logger,
		agent.WithMaxRounds(sellerCfg.MaxRounds),
		agent.WithResponseDelay(time.Duration(sellerCfg.ResponseDelayMs)*time.Millisecond),
		agent.WithFallback(sellerFallback),
		agent.WithCounterpart(BuyerID),
	)

	maxRounds := buyerCfg.MaxRounds
	if sellerCfg.MaxRounds > maxRounds {
		maxRounds = sellerCfg.MaxRounds
	}

	s := NewSession("neg-"+ulid.Make().String(), topic, listedPrice, router, buyer, seller, maxRounds)
	if err := m.store.Put(ctx, s); err != nil {
		return nil, err
	}
	m.logger.Info("创建协商会话", "session_id", s.ID, "topic", topic, "listed_price", listedPrice)
	return s, nil
}

// Get 按 id 取会话；不存在时返回 ErrNotFound
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "会话 %q", id)
	}
	return s, nil
}

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
	"encoding/json"
	"fmt"
	"strings"

	"negotiation-platform/internal/model/llm"
	"negotiation-platform/internal/protocol"
	"negotiation-platform/pkg/errors"
)

// decisionInstructions 约束 LLM 输出为与 Decision 同构的严格 JSON
const decisionInstructions = `Decide on the next strategic move. Respond with a single JSON object and nothing else:
{"type": "PROPOSAL|REJECTION|ACCEPTANCE|COMMITMENT|INFO", "reasoning": "...", "payload": {"topic": "...", "terms": {"price": 0, "currency": "USD"}, "counter_offer": {...}, "final_terms": {...}, "content": "..."}}
Populate only the payload fields relevant to the chosen type: PROPOSAL needs terms, REJECTION should carry counter_offer, ACCEPTANCE and COMMITMENT need final_terms.`

// LLMProvider LLM 决策：渲染对话窗口为提示词，要求结构化 JSON 输出。
// 调用可能超时、输出可能不合 schema；两者都作为错误返回，由 Party 回落处理。
type LLMProvider struct {
	client       llm.Client
	systemPrompt string
	temperature  float64
}

// NewLLMProvider 创建 LLM 决策
func NewLLMProvider(client llm.Client, systemPrompt string) *LLMProvider {
	return &LLMProvider{
		client:       client,
		systemPrompt: systemPrompt,
		temperature:  0.2,
	}
}

// Name 实现 Provider
func (p *LLMProvider) Name() string {
	return "llm"
}

// Decide 实现 Provider
func (p *LLMProvider) Decide(ctx context.Context, window []*protocol.Message, incoming *protocol.Message) (*Decision, error) {
	if p.client == nil {
		return nil, errors.Wrap(errors.ErrDecisionFailed, "LLM 客户端未配置")
	}
	prompt := p.buildPrompt(window, incoming)
	out, err := p.client.ChatWithContext(ctx, []llm.Message{
		{Role: "system", Content: p.systemPrompt},
		{Role: "user", Content: prompt},
	}, llm.GenerateOptions{Temperature: p.temperature})
	if err != nil {
		return nil, errors.Wrap(err, "LLM 调用失败")
	}
	d, err := parseDecision(out)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// buildPrompt 渲染对话窗口 + 来消息 + 输出指令
func (p *LLMProvider) buildPrompt(window []*protocol.Message, incoming *protocol.Message) string {
	var b strings.Builder
	b.WriteString("Current conversation history:\n")
	if len(window) == 0 {
		b.WriteString("(empty)\n")
	}
	for _, m := range window {
		fmt.Fprintf(&b, "%s -> %s [%s]: %s\n", m.From, m.To, m.Type, m.Reasoning)
	}
	if incoming != nil {
		payload, _ := json.Marshal(incoming.Payload)
		fmt.Fprintf(&b, "\nThe last message was from %s:\nType: %s\nReasoning: %s\nPayload: %s\n",
			incoming.From, incoming.Type, incoming.Reasoning, payload)
	}
	b.WriteString("\n")
	b.WriteString(decisionInstructions)
	return b.String()
}

// parseDecision 解析并校验 LLM 输出；容忍 markdown 代码围栏
func parseDecision(out string) (*Decision, error) {
	s := strings.TrimSpace(out)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	var d Decision
	if err := json.Unmarshal([]byte(s), &d); err != nil {
		return nil, errors.Wrapf(errors.ErrDecisionFailed, "LLM 输出不是合法 JSON: %v", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

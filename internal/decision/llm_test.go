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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"negotiation-platform/internal/model/llm"
	"negotiation-platform/internal/protocol"
	"negotiation-platform/pkg/errors"
)

// fakeClient 返回固定文本的 LLM 客户端
type fakeClient struct {
	out        string
	err        error
	lastPrompt string
}

func (f *fakeClient) ChatWithContext(ctx context.Context, messages []llm.Message, options llm.GenerateOptions) (string, error) {
	for _, m := range messages {
		if m.Role == "user" {
			f.lastPrompt = m.Content
		}
	}
	return f.out, f.err
}

func (f *fakeClient) Model() string    { return "fake" }
func (f *fakeClient) Provider() string { return "fake" }

func TestParseDecision(t *testing.T) {
	d, err := parseDecision(`{"type":"REJECTION","reasoning":"too high","payload":{"counter_offer":{"price":1620,"currency":"USD"}}}`)
	require.NoError(t, err)
	assert.Equal(t, protocol.TypeRejection, d.Type)
	p, ok := d.Payload.Price()
	require.True(t, ok)
	assert.InDelta(t, 1620.0, p, 1e-9)
}

func TestParseDecisionFenced(t *testing.T) {
	out := "```json\n{\"type\":\"INFO\",\"reasoning\":\"ok\",\"payload\":{\"content\":\"hi\"}}\n```"
	d, err := parseDecision(out)
	require.NoError(t, err)
	assert.Equal(t, protocol.TypeInfo, d.Type)
	assert.Equal(t, "hi", d.Payload.Content)
}

func TestParseDecisionErrors(t *testing.T) {
	_, err := parseDecision("I think we should accept the offer.")
	assert.ErrorIs(t, err, errors.ErrDecisionFailed)

	_, err = parseDecision(`{"type":"SHRUG","reasoning":"","payload":{}}`)
	assert.ErrorIs(t, err, errors.ErrDecisionFailed)
}

func TestLLMProviderDecide(t *testing.T) {
	client := &fakeClient{out: `{"type":"ACCEPTANCE","reasoning":"deal","payload":{"final_terms":{"price":1539,"currency":"USD"}}}`}
	p := NewLLMProvider(client, "you are the seller")

	incoming := mustMessage(t, "buyer_agent", "seller_agent", protocol.TypeRejection,
		protocol.Payload{CounterOffer: protocol.Terms{"price": 1539.0, "currency": "USD"}})
	d, err := p.Decide(context.Background(), nil, incoming)
	require.NoError(t, err)
	assert.Equal(t, protocol.TypeAcceptance, d.Type)

	// 提示词应包含来消息载荷与输出指令
	assert.True(t, strings.Contains(client.lastPrompt, "buyer_agent"))
	assert.True(t, strings.Contains(client.lastPrompt, "counter_offer"))
	assert.True(t, strings.Contains(client.lastPrompt, "single JSON object"))
}

func TestLLMProviderPromptRendersWindow(t *testing.T) {
	client := &fakeClient{out: `{"type":"INFO","reasoning":"","payload":{"content":"ok"}}`}
	p := NewLLMProvider(client, "system")

	window := []*protocol.Message{
		mustMessage(t, "seller_agent", "buyer_agent", protocol.TypeProposal,
			protocol.Payload{Terms: protocol.Terms{"price": 1800.0}}),
	}
	_, err := p.Decide(context.Background(), window, window[0])
	require.NoError(t, err)
	assert.True(t, strings.Contains(client.lastPrompt, "seller_agent -> buyer_agent [PROPOSAL]"))
}

func TestLLMProviderFailures(t *testing.T) {
	// 客户端缺失
	p := NewLLMProvider(nil, "system")
	_, err := p.Decide(context.Background(), nil, nil)
	assert.ErrorIs(t, err, errors.ErrDecisionFailed)

	// 输出不合 schema
	p = NewLLMProvider(&fakeClient{out: "sure, let me think about that"}, "system")
	_, err = p.Decide(context.Background(), nil, nil)
	assert.ErrorIs(t, err, errors.ErrDecisionFailed)
}

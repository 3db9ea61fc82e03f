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

package protocol

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"negotiation-platform/pkg/errors"
)

// MessageType 协商消息类型
type MessageType string

// 协商消息类型常量
const (
	TypeProposal   MessageType = "PROPOSAL"
	TypeRejection  MessageType = "REJECTION"
	TypeAcceptance MessageType = "ACCEPTANCE"
	TypeCommitment MessageType = "COMMITMENT"
	TypeInfo       MessageType = "INFO"
)

// SystemSender 系统续推消息的发送方 id（非真实参与者）
const SystemSender = "system"

// Valid 是否为已知消息类型
func (t MessageType) Valid() bool {
	switch t {
	case TypeProposal, TypeRejection, TypeAcceptance, TypeCommitment, TypeInfo:
		return true
	}
	return false
}

// Terms 条款集合（至少含 price + currency，键值开放）
type Terms map[string]any

// Payload 消息载荷：按消息类型填充相关字段，其余缺省
type Payload struct {
	Topic            string `json:"topic,omitempty"`
	Terms            Terms  `json:"terms,omitempty"`
	CounterOffer     Terms  `json:"counter_offer,omitempty"`
	FinalTerms       Terms  `json:"final_terms,omitempty"`
	DigitalSignature string `json:"digital_signature,omitempty"` // 不做校验，仅透传
	Content          string `json:"content,omitempty"`
}

// Price 按 terms → counter_offer → final_terms 优先级提取当前价格
// （更具体的已谈成数字优先）
func (p Payload) Price() (float64, bool) {
	for _, t := range []Terms{p.Terms, p.CounterOffer, p.FinalTerms} {
		if v, ok := priceOf(t); ok {
			return v, true
		}
	}
	return 0, false
}

// Currency 按与 Price 相同的优先级提取币种，缺省空串
func (p Payload) Currency() string {
	for _, t := range []Terms{p.Terms, p.CounterOffer, p.FinalTerms} {
		if t == nil {
			continue
		}
		if c, ok := t["currency"].(string); ok && c != "" {
			return c
		}
	}
	return ""
}

func priceOf(t Terms) (float64, bool) {
	if t == nil {
		return 0, false
	}
	switch v := t["price"].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

// Message 一轮协商的不可变记录；id 与 thread_id 构造时分配且不再变更
type Message struct {
	ID        string      `json:"id"`
	ThreadID  string      `json:"thread_id"`
	From      string      `json:"from"`
	To        string      `json:"to"`
	Timestamp time.Time   `json:"timestamp"`
	Type      MessageType `json:"type"`
	Payload   Payload     `json:"payload"`
	Reasoning string      `json:"reasoning"`
}

// NewMessage 构造并校验消息；threadID 为空时开启新会话线程
func NewMessage(from, to, threadID string, typ MessageType, payload Payload, reasoning string) (*Message, error) {
	if from == "" || to == "" {
		return nil, errors.Wrap(errors.ErrProtocolViolation, "from 与 to 不能为空")
	}
	if err := validate(typ, payload); err != nil {
		return nil, err
	}
	if threadID == "" {
		threadID = "thr-" + uuid.New().String()
	}
	return &Message{
		ID:        "msg-" + uuid.New().String(),
		ThreadID:  threadID,
		From:      from,
		To:        to,
		Timestamp: time.Now().UTC(),
		Type:      typ,
		Payload:   payload,
		Reasoning: reasoning,
	}, nil
}

// validate 结构校验：类型与载荷的组合必须成立
func validate(typ MessageType, payload Payload) error {
	switch typ {
	case TypeProposal:
		if payload.Terms == nil {
			return errors.Wrap(errors.ErrProtocolViolation, "PROPOSAL 必须携带 terms")
		}
	case TypeAcceptance, TypeCommitment:
		if payload.FinalTerms == nil {
			return errors.Wrapf(errors.ErrProtocolViolation, "%s 必须携带 final_terms", typ)
		}
	case TypeRejection, TypeInfo:
		// REJECTION 的 counter_offer 可为空（无价可提时），INFO 无必填字段
	default:
		return errors.Wrapf(errors.ErrProtocolViolation, "未知消息类型 %q", typ)
	}
	return nil
}

// Marshal 序列化为线格式 JSON（时间为 ISO-8601 UTC）
func (m *Message) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage 从线格式 JSON 解析并校验
func ParseMessage(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "解析消息失败")
	}
	if err := validate(m.Type, m.Payload); err != nil {
		return nil, err
	}
	if m.ID == "" || m.ThreadID == "" {
		return nil, errors.Wrap(errors.ErrProtocolViolation, "消息缺少 id 或 thread_id")
	}
	return &m, nil
}

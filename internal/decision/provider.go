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

	"negotiation-platform/internal/protocol"
	"negotiation-platform/pkg/errors"
)

// Decision 决策提供方产出的下一步动作
type Decision struct {
	Type      protocol.MessageType `json:"type"`
	Reasoning string               `json:"reasoning"`
	Payload   protocol.Payload     `json:"payload"`
}

// Validate 决策结构校验：类型必须在消息类型枚举内
func (d *Decision) Validate() error {
	if d == nil {
		return errors.Wrap(errors.ErrDecisionFailed, "决策为空")
	}
	if !d.Type.Valid() {
		return errors.Wrapf(errors.ErrDecisionFailed, "非法决策类型 %q", d.Type)
	}
	return nil
}

// Provider 决策能力接口：由协商历史窗口与最新来消息产出下一步动作。
// 实现可为规则或 LLM；失败由调用方（Party）按回落策略处理，不得使会话崩溃。
type Provider interface {
	// Decide 产出下一步动作；window 为按时间排列的近期历史（含自己发出的消息）
	Decide(ctx context.Context, window []*protocol.Message, incoming *protocol.Message) (*Decision, error)
	// Name 提供方名称（用于日志与指标）
	Name() string
}

// lastCounterpartMessage 逆序找最近一条非本方、非系统消息；incoming 优先于 window
func lastCounterpartMessage(selfID string, window []*protocol.Message, incoming *protocol.Message) *protocol.Message {
	scan := make([]*protocol.Message, 0, len(window)+1)
	scan = append(scan, window...)
	if incoming != nil {
		scan = append(scan, incoming)
	}
	for i := len(scan) - 1; i >= 0; i-- {
		m := scan[i]
		if m == nil || m.From == selfID || m.From == protocol.SystemSender {
			continue
		}
		return m
	}
	return nil
}

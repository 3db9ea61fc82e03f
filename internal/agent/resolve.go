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

import "negotiation-platform/internal/protocol"

// ResolveRecipient 确定回复对象的纯函数：来消息发送方是真实对端时直接回它；
// 是系统续推时逆序扫历史找最近一条非本方、非系统发送方；都找不到返回空串，
// 由调用方按角色约定兜底。
func ResolveRecipient(history []*protocol.Message, selfID, incomingFrom string) string {
	if incomingFrom != "" && incomingFrom != selfID && incomingFrom != protocol.SystemSender {
		return incomingFrom
	}
	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		if m == nil {
			continue
		}
		if m.From != "" && m.From != selfID && m.From != protocol.SystemSender {
			return m.From
		}
	}
	return ""
}

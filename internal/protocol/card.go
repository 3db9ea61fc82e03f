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

// CapabilityNegotiation 协商参与方的能力标签
const CapabilityNegotiation = "negotiation"

// AgentCard 参与方名片：身份与能力声明
type AgentCard struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Capabilities   []string `json:"capabilities"`
	PaymentMethods []string `json:"payment_methods,omitempty"`
}

// NewAgentCard 创建带协商能力的名片
func NewAgentCard(id, name string, paymentMethods []string) AgentCard {
	return AgentCard{
		ID:             id,
		Name:           name,
		Capabilities:   []string{CapabilityNegotiation},
		PaymentMethods: paymentMethods,
	}
}

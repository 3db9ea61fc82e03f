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

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"negotiation-platform/pkg/errors"
)

// PaymentMethods 支付方式固定词表
var PaymentMethods = []string{"stripe", "paypal", "cash", "venmo", "zelle", "bank_transfer"}

// AgentConfig 单个角色（买方或卖方）的协商参数
// json tag 用 camelCase 与外部接口对齐，mapstructure 用 snake_case 与 yaml 对齐
type AgentConfig struct {
	Aggression            int      `mapstructure:"aggression" json:"aggression"`                           // 0 很友好 … 5 强硬，仅影响提示词
	MaxRounds             int      `mapstructure:"max_rounds" json:"maxRounds"`                            // 1–10，机械执行
	PriceMarginPct        float64  `mapstructure:"price_margin_pct" json:"priceMarginPct"`                 // 0–30
	ResponseDelayMs       int      `mapstructure:"response_delay_ms" json:"responseDelayMs"`               // 0–5000，机械执行
	UseLLM                bool     `mapstructure:"use_llm" json:"useLLM"`                                  // false 时仅用规则决策
	AllowedPaymentMethods []string `mapstructure:"allowed_payment_methods" json:"allowedPaymentMethods"`   // PaymentMethods 子集
	LogChat               bool     `mapstructure:"log_chat" json:"logChat"`
	Content               string   `mapstructure:"content" json:"content"` // 角色系统提示词正文
}

// DefaultBuyerConfig 买方缺省配置
func DefaultBuyerConfig() *AgentConfig {
	return &AgentConfig{
		Aggression:            2,
		MaxRounds:             5,
		PriceMarginPct:        10.0,
		ResponseDelayMs:       0,
		UseLLM:                true,
		AllowedPaymentMethods: []string{"stripe", "cash"},
		LogChat:               true,
		Content:               "You are a buyer negotiating for a product. Be professional, fair, and focus on getting a good deal within your budget. Always be respectful and courteous.",
	}
}

// DefaultSellerConfig 卖方缺省配置
func DefaultSellerConfig() *AgentConfig {
	cfg := DefaultBuyerConfig()
	cfg.Content = "You are a seller negotiating the sale of a product. Be professional, fair, and aim to get a reasonable price. Always be respectful and courteous."
	return cfg
}

// Validate 加载期硬校验：范围与词表（ConfigValidationFailure，向调用方上抛）
func (c *AgentConfig) Validate() error {
	if c.Aggression < 0 || c.Aggression > 5 {
		return errors.Wrapf(errors.ErrInvalidArg, "aggression 必须在 0–5，当前 %d", c.Aggression)
	}
	if c.MaxRounds < 1 || c.MaxRounds > 10 {
		return errors.Wrapf(errors.ErrInvalidArg, "max_rounds 必须在 1–10，当前 %d", c.MaxRounds)
	}
	if c.PriceMarginPct < 0 || c.PriceMarginPct > 30 {
		return errors.Wrapf(errors.ErrInvalidArg, "price_margin_pct 必须在 0–30，当前 %g", c.PriceMarginPct)
	}
	if c.ResponseDelayMs < 0 || c.ResponseDelayMs > 5000 {
		return errors.Wrapf(errors.ErrInvalidArg, "response_delay_ms 必须在 0–5000，当前 %d", c.ResponseDelayMs)
	}
	for _, m := range c.AllowedPaymentMethods {
		if !validPaymentMethod(m) {
			return errors.Wrapf(errors.ErrInvalidArg, "未知支付方式 %q", m)
		}
	}
	return nil
}

func validPaymentMethod(m string) bool {
	for _, v := range PaymentMethods {
		if v == m {
			return true
		}
	}
	return false
}

// LoadAgentConfig 从 yaml 加载角色配置；文件不存在时返回给定缺省并不报错
func LoadAgentConfig(path string, fallback *AgentConfig) (*AgentConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fallback, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取角色配置 %q: %w", path, err)
	}
	cfg := *fallback
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法解析角色配置 %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveAgentConfig 校验后写回 yaml（供配置接口 PUT 使用）
func SaveAgentConfig(path string, cfg *AgentConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	v := viper.New()
	v.Set("aggression", cfg.Aggression)
	v.Set("max_rounds", cfg.MaxRounds)
	v.Set("price_margin_pct", cfg.PriceMarginPct)
	v.Set("response_delay_ms", cfg.ResponseDelayMs)
	v.Set("use_llm", cfg.UseLLM)
	v.Set("allowed_payment_methods", cfg.AllowedPaymentMethods)
	v.Set("log_chat", cfg.LogChat)
	v.Set("content", cfg.Content)
	return v.WriteConfigAs(path)
}

// aggressionStyles 谈判风格描述，按 aggression 档位注入提示词
var aggressionStyles = map[int]string{
	0: "very friendly and collaborative",
	1: "friendly and warm",
	2: "professional and balanced",
	3: "assertive and firm",
	4: "aggressive and data-driven",
	5: "hard-bargaining and willing to walk away",
}

// BuildSystemPrompt 由角色配置拼装系统提示词
func BuildSystemPrompt(cfg *AgentConfig, role string) string {
	style, ok := aggressionStyles[cfg.Aggression]
	if !ok {
		style = "professional"
	}
	parts := []string{
		cfg.Content,
		"",
		fmt.Sprintf("You are negotiating as the %s.", role),
		fmt.Sprintf("Your negotiation style: %s (aggression level %d/5)", style, cfg.Aggression),
		fmt.Sprintf("Maximum negotiation rounds: %d", cfg.MaxRounds),
		fmt.Sprintf("Price margin: %g%%", cfg.PriceMarginPct),
		fmt.Sprintf("Allowed payment methods: %s", strings.Join(cfg.AllowedPaymentMethods, ", ")),
		"",
		"Remember to:",
		"- Stay within your defined negotiation parameters",
		"- Be respectful and professional",
		"- Make clear, actionable proposals",
		"- Respond appropriately based on your aggression level",
	}
	return strings.Join(parts, "\n")
}

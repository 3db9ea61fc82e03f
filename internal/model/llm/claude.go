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

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
)

// ClaudeClient Claude 客户端
type ClaudeClient struct {
	provider string
	model    string
	apiKey   string
	baseURL  string
	client   *resty.Client
}

// NewClaudeClient 创建新的 Claude 客户端
func NewClaudeClient(model, apiKey string) (*ClaudeClient, error) {
	if model == "" {
		model = "claude-3-5-sonnet-20241022"
	}
	baseURL := "https://api.anthropic.com/v1"
	if envURL := os.Getenv("ANTHROPIC_BASE_URL"); envURL != "" {
		baseURL = envURL
	}

	client := resty.New()
	client.SetTimeout(30 * time.Second)
	client.SetRetryCount(3)
	client.SetRetryWaitTime(1 * time.Second)
	client.SetRetryMaxWaitTime(5 * time.Second)

	return &ClaudeClient{
		provider: "claude",
		model:    model,
		apiKey:   apiKey,
		baseURL:  baseURL,
		client:   client,
	}, nil
}

// ChatWithContext 使用上下文聊天；system 角色消息提升为 Claude 的 system 字段
func (c *ClaudeClient) ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	system := ""
	chatMessages := make([]map[string]string, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == "system" {
			system = msg.Content
			continue
		}
		chatMessages = append(chatMessages, map[string]string{
			"role":    msg.Role,
			"content": msg.Content,
		})
	}

	maxTokens := options.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	request := map[string]interface{}{
		"model":          c.model,
		"messages":       chatMessages,
		"temperature":    options.Temperature,
		"max_tokens":     maxTokens,
		"stop_sequences": options.Stop,
	}
	if system != "" {
		request["system"] = system
	}

	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-api-key", c.apiKey).
		SetHeader("anthropic-version", "2023-06-01").
		SetBody(request).
		Post(c.baseURL + "/messages")

	if err != nil {
		return "", fmt.Errorf("调用 Claude API 失败: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("Claude API 返回错误: %s", response.String())
	}

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return "", fmt.Errorf("解析 Claude 响应失败: %w", err)
	}
	if len(result.Content) == 0 {
		return "", fmt.Errorf("Claude API 没有返回结果")
	}
	return result.Content[0].Text, nil
}

// Model 返回模型名称
func (c *ClaudeClient) Model() string {
	return c.model
}

// Provider 返回提供商名称
func (c *ClaudeClient) Provider() string {
	return c.provider
}

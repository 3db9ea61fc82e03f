package llm

import (
	"context"
)

// Client LLM 聊天客户端接口（决策提供方唯一依赖的模型界面）
type Client interface {
	// ChatWithContext 使用上下文完成一次多消息聊天，返回助手文本
	ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error)
	// Model 返回模型名称
	Model() string
	// Provider 返回提供商名称
	Provider() string
}

// GenerateOptions 生成选项
type GenerateOptions struct {
	Temperature float64  `json:"temperature"`
	MaxTokens   int      `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// Message 聊天消息
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// NewClient 创建新的 LLM 客户端；baseURL 用于 OpenAI 兼容端点（如 Qwen/DashScope），空则用默认或环境变量
func NewClient(provider, model, apiKey string, baseURL string) (Client, error) {
	switch provider {
	case "claude":
		return NewClaudeClient(model, apiKey)
	case "openai", "qwen":
		return NewOpenAIClient(model, apiKey, baseURL)
	default:
		return NewOpenAIClient(model, apiKey, baseURL)
	}
}

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

package app

import (
	"fmt"

	"negotiation-platform/internal/model/llm"
	"negotiation-platform/internal/runtime/negotiation"
	"negotiation-platform/pkg/config"
	"negotiation-platform/pkg/log"
)

// Bootstrap 统一初始化：配置 → 日志 → LLM 客户端 → 会话管理，供 api 与 cli 复用
type Bootstrap struct {
	Config    *config.Config
	Logger    *log.Logger
	LLMClient llm.Client
	Manager   *negotiation.Manager
}

// NewBootstrap 根据配置创建 Bootstrap
func NewBootstrap(cfg *config.Config) (*Bootstrap, error) {
	logCfg := &log.Config{}
	if cfg != nil {
		logCfg.Level = cfg.Log.Level
		logCfg.Format = cfg.Log.Format
		logCfg.File = cfg.Log.File
	}
	logger, err := log.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("初始化日志failed: %w", err)
	}

	llmClient, err := NewLLMClientFromConfig(cfg)
	if err != nil {
		// LLM 未配置不阻塞启动：use_llm 角色将回落规则决策
		logger.Warn("LLM 客户端未就绪，将使用规则决策", "error", err)
		llmClient = nil
	}

	manager := negotiation.NewManager(negotiation.NewMemoryStore(), cfg, llmClient, logger)

	return &Bootstrap{
		Config:    cfg,
		Logger:    logger,
		LLMClient: llmClient,
		Manager:   manager,
	}, nil
}

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

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"negotiation-platform/internal/runtime/negotiation"
	"negotiation-platform/pkg/config"
	"negotiation-platform/pkg/errors"
	"negotiation-platform/pkg/log"
	"negotiation-platform/pkg/metrics"
)

// Handler HTTP 处理器
type Handler struct {
	manager    *negotiation.Manager
	buyerPath  string
	sellerPath string
	logger     *log.Logger
}

// NewHandler 创建新的 HTTP 处理器
func NewHandler(manager *negotiation.Manager, buyerPath, sellerPath string, logger *log.Logger) *Handler {
	if buyerPath == "" {
		buyerPath = "configs/buyer.yaml"
	}
	if sellerPath == "" {
		sellerPath = "configs/seller.yaml"
	}
	return &Handler{manager: manager, buyerPath: buyerPath, sellerPath: sellerPath, logger: logger}
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"service":   "negotiation-api",
	})
}

// Metrics Prometheus 文本格式指标
func (h *Handler) Metrics(c context.Context, ctx *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		ctx.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	ctx.Data(consts.StatusOK, "text/plain; version=0.0.4", buf.Bytes())
}

// startRequest 开启协商请求体
type startRequest struct {
	ListedPrice  float64 `json:"listed_price"`
	ProductTitle string  `json:"product_title"`
}

// StartNegotiation 开启一次买卖协商
// POST /api/negotiation/start
func (h *Handler) StartNegotiation(c context.Context, ctx *app.RequestContext) {
	var req startRequest
	if err := json.Unmarshal(ctx.Request.Body(), &req); err != nil || req.ListedPrice <= 0 {
		ctx.JSON(consts.StatusBadRequest, map[string]string{"error": "listed_price 必须为正数"})
		return
	}
	if req.ProductTitle == "" {
		req.ProductTitle = "Product"
	}

	sess, err := h.manager.Create(c, req.ProductTitle, req.ListedPrice)
	if err != nil {
		if errors.Is(err, errors.ErrInvalidArg) {
			ctx.JSON(consts.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		h.logger.Error("创建会话失败", "error", err)
		ctx.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if err := sess.Start(context.WithoutCancel(c)); err != nil {
		h.logger.Error("开局失败", "session_id", sess.ID, "error", err)
		ctx.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	// 等开局消息及其触发的自然回复落定，响应里能看到首轮交互
	sess.Settle()

	ctx.JSON(consts.StatusOK, map[string]any{
		"negotiation_id": sess.ID,
		"messages":       messageViews(sess),
		"round_number":   sess.RoundCount(),
		"status":         string(sess.Status()),
	})
}

// roundRequest 续推请求体
type roundRequest struct {
	NegotiationID string `json:"negotiation_id"`
}

// RunRound 驱动一轮续推
// POST /api/negotiation/round
func (h *Handler) RunRound(c context.Context, ctx *app.RequestContext) {
	var req roundRequest
	if err := json.Unmarshal(ctx.Request.Body(), &req); err != nil || req.NegotiationID == "" {
		ctx.JSON(consts.StatusBadRequest, map[string]string{"error": "negotiation_id is required"})
		return
	}
	sess, err := h.manager.Get(c, req.NegotiationID)
	if err != nil {
		ctx.JSON(consts.StatusNotFound, map[string]string{"error": "negotiation not found"})
		return
	}
	if err := sess.ContinueRound(context.WithoutCancel(c)); err != nil {
		if errors.Is(err, errors.ErrSessionNotActive) {
			ctx.JSON(consts.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		h.logger.Error("续推失败", "session_id", sess.ID, "error", err)
		ctx.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	sess.Settle()

	ctx.JSON(consts.StatusOK, map[string]any{
		"negotiation_id": sess.ID,
		"messages":       messageViews(sess),
		"round_number":   sess.RoundCount(),
		"status":         string(sess.Status()),
	})
}

// GetNegotiation 查询会话状态与消息
// GET /api/negotiation/:id
func (h *Handler) GetNegotiation(c context.Context, ctx *app.RequestContext) {
	sess, err := h.manager.Get(c, ctx.Param("id"))
	if err != nil {
		ctx.JSON(consts.StatusNotFound, map[string]string{"error": "negotiation not found"})
		return
	}
	ctx.JSON(consts.StatusOK, map[string]any{
		"negotiation_id": sess.ID,
		"product_title":  sess.Topic,
		"listed_price":   sess.ListedPrice,
		"messages":       messageViews(sess),
		"round_number":   sess.RoundCount(),
		"status":         string(sess.Status()),
	})
}

// GetHistory 返回线格式完整消息历史
// GET /api/negotiation/:id/history
func (h *Handler) GetHistory(c context.Context, ctx *app.RequestContext) {
	sess, err := h.manager.Get(c, ctx.Param("id"))
	if err != nil {
		ctx.JSON(consts.StatusNotFound, map[string]string{"error": "negotiation not found"})
		return
	}
	ctx.JSON(consts.StatusOK, map[string]any{
		"negotiation_id": sess.ID,
		"messages":       sess.History(),
	})
}

// GetBuyerConfig 读取买方配置
// GET /api/buyer
func (h *Handler) GetBuyerConfig(c context.Context, ctx *app.RequestContext) {
	h.getAgentConfig(ctx, h.buyerPath, config.DefaultBuyerConfig())
}

// UpdateBuyerConfig 更新买方配置
// PUT /api/buyer
func (h *Handler) UpdateBuyerConfig(c context.Context, ctx *app.RequestContext) {
	h.updateAgentConfig(ctx, h.buyerPath, config.DefaultBuyerConfig())
}

// GetSellerConfig 读取卖方配置
// GET /api/seller
func (h *Handler) GetSellerConfig(c context.Context, ctx *app.RequestContext) {
	h.getAgentConfig(ctx, h.sellerPath, config.DefaultSellerConfig())
}

// UpdateSellerConfig 更新卖方配置
// PUT /api/seller
func (h *Handler) UpdateSellerConfig(c context.Context, ctx *app.RequestContext) {
	h.updateAgentConfig(ctx, h.sellerPath, config.DefaultSellerConfig())
}

func (h *Handler) getAgentConfig(ctx *app.RequestContext, path string, fallback *config.AgentConfig) {
	cfg, err := config.LoadAgentConfig(path, fallback)
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	ctx.JSON(consts.StatusOK, cfg)
}

func (h *Handler) updateAgentConfig(ctx *app.RequestContext, path string, fallback *config.AgentConfig) {
	cfg := *fallback
	if err := json.Unmarshal(ctx.Request.Body(), &cfg); err != nil {
		ctx.JSON(consts.StatusBadRequest, map[string]string{"error": "请求体不是合法 JSON"})
		return
	}
	if err := config.SaveAgentConfig(path, &cfg); err != nil {
		if errors.Is(err, errors.ErrInvalidArg) {
			ctx.JSON(consts.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	ctx.JSON(consts.StatusOK, &cfg)
}

// messageView 面向 UI 的消息视图：附带提取出的价格与角色
type messageView struct {
	ID        string   `json:"id"`
	From      string   `json:"from"`
	To        string   `json:"to"`
	Timestamp string   `json:"timestamp"`
	Type      string   `json:"type"`
	Reasoning string   `json:"reasoning"`
	Content   string   `json:"content"`
	Price     *float64 `json:"price"`
	Role      string   `json:"role"`
}

func messageViews(sess *negotiation.Session) []messageView {
	merged := sess.History()
	out := make([]messageView, 0, len(merged))
	for _, m := range merged {
		v := messageView{
			ID:        m.ID,
			From:      m.From,
			To:        m.To,
			Timestamp: m.Timestamp.Format(time.RFC3339Nano),
			Type:      string(m.Type),
			Reasoning: m.Reasoning,
			Content:   m.Payload.Content,
			Role:      roleOf(m.From),
		}
		if v.Content == "" {
			v.Content = m.Reasoning
		}
		if p, ok := m.Payload.Price(); ok {
			price := p
			v.Price = &price
		}
		out = append(out, v)
	}
	return out
}

func roleOf(from string) string {
	if strings.Contains(strings.ToLower(from), "buyer") {
		return "buyer"
	}
	return "seller"
}

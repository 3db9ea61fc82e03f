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
	"github.com/cloudwego/hertz/pkg/app/server"
	hzconfig "github.com/cloudwego/hertz/pkg/common/config"
)

// Router HTTP 路由器
type Router struct {
	handler       *Handler
	metricsEnable bool
}

// NewRouter 创建新的 HTTP 路由器
func NewRouter(handler *Handler) *Router {
	return &Router{handler: handler}
}

// SetMetricsEnable 是否暴露 /api/metrics
func (r *Router) SetMetricsEnable(enable bool) {
	r.metricsEnable = enable
}

// Build 构建 Hertz Server 并挂载路由（opts 供链路追踪等注入）
func (r *Router) Build(addr string, opts ...hzconfig.Option) *server.Hertz {
	serverOpts := append([]hzconfig.Option{server.WithHostPorts(addr)}, opts...)
	h := server.Default(serverOpts...)
	r.setupRoutes(h)
	return h
}

func (r *Router) setupRoutes(h *server.Hertz) {
	api := h.Group("/api")

	api.GET("/health", r.handler.HealthCheck)
	if r.metricsEnable {
		api.GET("/metrics", r.handler.Metrics)
	}

	// 角色配置
	api.GET("/buyer", r.handler.GetBuyerConfig)
	api.PUT("/buyer", r.handler.UpdateBuyerConfig)
	api.GET("/seller", r.handler.GetSellerConfig)
	api.PUT("/seller", r.handler.UpdateSellerConfig)

	// 协商会话
	neg := api.Group("/negotiation")
	{
		neg.POST("/start", r.handler.StartNegotiation)
		neg.POST("/round", r.handler.RunRound)
		neg.GET("/:id", r.handler.GetNegotiation)
		neg.GET("/:id/history", r.handler.GetHistory)
	}
}

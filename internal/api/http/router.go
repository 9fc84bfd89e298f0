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
	"github.com/cloudwego/hertz/pkg/common/config"

	"image-translator/internal/api/http/middleware"
)

// 上传之外的 JSON / multipart 开销
const bodyOverheadBytes = 1 << 20

// Router HTTP 路由器
type Router struct {
	handler        *Handler
	middleware     *middleware.Middleware
	metricsEnabled bool
}

// NewRouter 创建新的路由器
func NewRouter(handler *Handler, middleware *middleware.Middleware) *Router {
	return &Router{handler: handler, middleware: middleware}
}

// SetMetricsEnabled 是否暴露 /metrics
func (r *Router) SetMetricsEnabled(enabled bool) {
	r.metricsEnabled = enabled
}

// Build 创建 Hertz 实例并注册路由；opts 可追加 tracer 等选项
func (r *Router) Build(addr string, opts ...config.Option) *server.Hertz {
	// base64 JSON 上传约为原始大小的 4/3
	maxBody := r.handler.cfg.MaxUploadBytes/3*4 + bodyOverheadBytes
	all := append([]config.Option{
		server.WithHostPorts(addr),
		server.WithMaxRequestBodySize(maxBody),
	}, opts...)
	h := server.Default(all...)

	h.Use(r.middleware.AccessLog(), r.middleware.CORS(), r.middleware.RateLimit())

	if r.metricsEnabled {
		h.GET("/metrics", r.handler.Metrics)
	}

	api := h.Group("/api")
	api.GET("/health", r.handler.HealthCheck)
	api.GET("/languages", r.handler.ListLanguages)

	sessions := api.Group("/sessions")
	sessions.POST("", r.handler.CreateSession)
	sessions.GET("/:id", r.handler.GetSession)
	sessions.DELETE("/:id", r.handler.DeleteSession)
	sessions.PUT("/:id/image", r.handler.UploadImage)
	sessions.PUT("/:id/language", r.handler.SetLanguage)
	sessions.POST("/:id/run", r.handler.RunWorkflow)

	return h
}

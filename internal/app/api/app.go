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

package api

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	"image-translator/internal/api/http"
	"image-translator/internal/api/http/middleware"
	"image-translator/internal/app"
	"image-translator/pkg/config"
	"image-translator/pkg/log"
	"image-translator/pkg/tracing"
)

// otelProviderShutdown 用于优雅关闭时关闭 OpenTelemetry provider
type otelProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// App API 应用（装配 HTTP Router、Handler、Middleware 与会话清理）
type App struct {
	config       *app.Bootstrap
	router       *http.Router
	hertz        *server.Hertz
	otelProvider otelProviderShutdown
	hertzLogOut  io.Closer
	stopJanitor  context.CancelFunc
}

// NewApp 创建 API 应用
func NewApp(bootstrap *app.Bootstrap) (*App, error) {
	cfg := bootstrap.Config

	handler := http.NewHandler(bootstrap.Sessions, bootstrap.Logger.Logger, http.HandlerConfig{
		MaxUploadBytes: cfg.API.MaxUploadBytes,
		RunTimeout:     config.ParseDuration(cfg.API.RunTimeout, 2*time.Minute),
	})
	mw := middleware.NewMiddleware(middleware.Options{
		CORSEnabled:    cfg.API.CORS.Enable,
		AllowOrigins:   cfg.API.CORS.AllowOrigins,
		RateLimit:      cfg.API.Middleware.RateLimit,
		RateLimitRPS:   cfg.API.Middleware.RateLimitRPS,
		RateLimitBurst: cfg.API.Middleware.RateLimitBurst,
	})
	router := http.NewRouter(handler, mw)
	router.SetMetricsEnabled(cfg.Monitoring.Prometheus.Enable)

	return &App{
		config: bootstrap,
		router: router,
	}, nil
}

// Run 启动 HTTP 服务（阻塞）
func (a *App) Run(addr string) error {
	cfg := a.config.Config

	output, closer, err := log.Output(&log.Config{File: cfg.Log.File})
	if err != nil {
		return err
	}
	a.hertzLogOut = closer
	levelVar := &slog.LevelVar{}
	levelVar.Set(log.ParseLevel(cfg.Log.Level))
	hertzLogger := hertzslog.NewLogger(
		hertzslog.WithOutput(output),
		hertzslog.WithLevel(levelVar),
	)
	hlog.SetLogger(hertzLogger)

	// 可选：启用链路追踪（OpenTelemetry）
	a.hertz = nil
	if cfg.Monitoring.Tracing.Enable {
		serviceName := cfg.Monitoring.Tracing.ServiceName
		if serviceName == "" {
			serviceName = "image-translator"
		}
		exportEndpoint := cfg.Monitoring.Tracing.ExportEndpoint
		if exportEndpoint == "" {
			exportEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		}
		if exportEndpoint != "" {
			tp, err := tracing.InitTracer(tracing.OTelConfig{
				ServiceName:    serviceName,
				ExportEndpoint: exportEndpoint,
				Insecure:       cfg.Monitoring.Tracing.Insecure,
			})
			if err != nil {
				a.config.Logger.Warn("链路追踪初始化失败，继续运行", "error", err)
			} else {
				a.otelProvider = tp
				tracerOpt, tcfg := hertztracing.NewServerTracer()
				a.hertz = a.router.Build(addr, tracerOpt)
				a.hertz.Use(hertztracing.ServerMiddleware(tcfg))
				a.config.Logger.Info("链路追踪已启用", "service_name", serviceName, "endpoint", exportEndpoint)
			}
		}
	}
	if a.hertz == nil {
		a.hertz = a.router.Build(addr)
	}

	janitorCtx, cancel := context.WithCancel(context.Background())
	a.stopJanitor = cancel
	go a.config.Sessions.RunJanitor(janitorCtx, config.ParseDuration(cfg.Session.SweepInterval, time.Minute))

	a.config.Logger.Info("API 服务启动", "addr", addr)
	return a.hertz.Run()
}

// Shutdown 优雅关闭（传入 ctx 以支持超时，如 cmd 层 WithTimeout）
func (a *App) Shutdown(ctx context.Context) error {
	if a.stopJanitor != nil {
		a.stopJanitor()
	}
	if a.otelProvider != nil {
		_ = a.otelProvider.Shutdown(ctx)
	}
	if a.hertz != nil {
		if err := a.hertz.Shutdown(ctx); err != nil {
			return err
		}
	}
	if a.hertzLogOut != nil {
		_ = a.hertzLogOut.Close()
	}
	return a.config.Logger.Close()
}

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

package middleware

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/cors"
	"golang.org/x/time/rate"
)

// Options 中间件配置
type Options struct {
	CORSEnabled    bool
	AllowOrigins   []string
	RateLimit      bool
	RateLimitRPS   float64
	RateLimitBurst int
}

// Middleware 中间件管理器
type Middleware struct {
	opts     Options
	limiters *ipLimiters
}

// NewMiddleware 创建新的中间件管理器
func NewMiddleware(opts Options) *Middleware {
	m := &Middleware{opts: opts}
	if opts.RateLimit && opts.RateLimitRPS > 0 {
		burst := opts.RateLimitBurst
		if burst < 1 {
			burst = 1
		}
		m.limiters = newIPLimiters(rate.Limit(opts.RateLimitRPS), burst)
	}
	return m
}

// CORS 浏览器跨域；未启用时直接放行。
// 来源匹配忽略大小写，命中时回显请求的 Origin；不在白名单内的跨域请求返回 403。
func (m *Middleware) CORS() app.HandlerFunc {
	if !m.opts.CORSEnabled {
		return func(c context.Context, ctx *app.RequestContext) { ctx.Next(c) }
	}
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Content-Length", "Accept"},
		MaxAge:       24 * time.Hour,
	}
	if m.allowOrigin("*") == "*" {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOriginFunc = func(origin string) bool { return m.allowOrigin(origin) != "" }
	}
	return cors.New(cfg)
}

func (m *Middleware) allowOrigin(origin string) string {
	for _, o := range m.opts.AllowOrigins {
		if o == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}

// RateLimit 按客户端 IP 限流；超限返回 429
func (m *Middleware) RateLimit() app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		if m.limiters == nil {
			ctx.Next(c)
			return
		}
		if !m.limiters.allow(ctx.ClientIP(), time.Now()) {
			ctx.AbortWithStatusJSON(consts.StatusTooManyRequests, map[string]string{
				"error": "too many requests",
				"kind":  "rate_limited",
			})
			return
		}
		ctx.Next(c)
	}
}

// AccessLog 访问日志（经 hlog 输出）
func (m *Middleware) AccessLog() app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		start := time.Now()
		ctx.Next(c)
		hlog.CtxInfof(c, "access method=%s path=%s status=%d client_ip=%s latency=%s",
			ctx.Method(), ctx.Path(), ctx.Response.StatusCode(), ctx.ClientIP(), time.Since(start))
	}
}

const (
	limiterIdleTTL   = 10 * time.Minute
	limiterPruneSize = 1024
)

type ipLimiter struct {
	limiter *rate.Limiter
	seen    time.Time
}

type ipLimiters struct {
	mu    sync.Mutex
	limit rate.Limit
	burst int
	byIP  map[string]*ipLimiter
}

func newIPLimiters(limit rate.Limit, burst int) *ipLimiters {
	return &ipLimiters{limit: limit, burst: burst, byIP: make(map[string]*ipLimiter)}
}

func (l *ipLimiters) allow(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.byIP) >= limiterPruneSize {
		for k, v := range l.byIP {
			if now.Sub(v.seen) > limiterIdleTTL {
				delete(l.byIP, k)
			}
		}
	}
	entry, ok := l.byIP[ip]
	if !ok {
		entry = &ipLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byIP[ip] = entry
	}
	entry.seen = now
	return entry.limiter.AllowN(now, 1)
}

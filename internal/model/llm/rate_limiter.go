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
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// LimitConfig 推理端点限流配置；字段为 0 表示不限
type LimitConfig struct {
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
}

// RateLimiter 请求速率 + 并发控制；只节流，不重试
type RateLimiter struct {
	requestLimiter *rate.Limiter
	semaphore      chan struct{}
	config         LimitConfig
}

// NewRateLimiter 创建限流器；配置全为 0 时返回 nil
func NewRateLimiter(config LimitConfig) *RateLimiter {
	if config.RequestsPerMinute <= 0 && config.MaxConcurrent <= 0 {
		return nil
	}
	l := &RateLimiter{config: config}

	if config.RequestsPerMinute > 0 {
		rps := config.RequestsPerMinute / 60.0
		burst := int(rps * 2) // 2 秒的配额
		if burst < 1 {
			burst = 1
		}
		l.requestLimiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	if config.MaxConcurrent > 0 {
		l.semaphore = make(chan struct{}, config.MaxConcurrent)
	}
	return l
}

// Wait 阻塞直到获得执行许可，返回等待时长
func (l *RateLimiter) Wait(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if l == nil {
		return 0, nil
	}
	if l.requestLimiter != nil {
		if err := l.requestLimiter.Wait(ctx); err != nil {
			return time.Since(start), fmt.Errorf("request rate limit wait failed: %w", err)
		}
	}
	if l.semaphore != nil {
		select {
		case l.semaphore <- struct{}{}:
		case <-ctx.Done():
			return time.Since(start), ctx.Err()
		}
	}
	return time.Since(start), nil
}

// Release 释放并发 slot（调用完成后）
func (l *RateLimiter) Release() {
	if l == nil || l.semaphore == nil {
		return
	}
	select {
	case <-l.semaphore:
	default:
	}
}

// Stats 限流统计
func (l *RateLimiter) Stats() map[string]interface{} {
	if l == nil {
		return nil
	}
	stats := map[string]interface{}{
		"requests_per_minute": l.config.RequestsPerMinute,
		"max_concurrent":      l.config.MaxConcurrent,
	}
	if l.semaphore != nil {
		stats["current_concurrent"] = len(l.semaphore)
		stats["available_slots"] = cap(l.semaphore) - len(l.semaphore)
	}
	return stats
}

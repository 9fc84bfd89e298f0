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
	"log/slog"
	"time"

	"image-translator/internal/model/llm"
	"image-translator/pkg/config"
)

// NewInferenceClient 根据 model.gemini 与 rate_limits.llm 创建推理客户端
func NewInferenceClient(cfg *config.Config, apiKey string, logger *slog.Logger) (llm.Client, error) {
	gc := cfg.Model.Gemini
	gemini, err := llm.NewGeminiClient(gc.Model, apiKey,
		llm.WithBaseURL(gc.BaseURL),
		llm.WithTimeout(config.ParseDuration(gc.Timeout, 60*time.Second)),
	)
	if err != nil {
		return nil, err
	}

	limiter := llm.NewRateLimiter(llm.LimitConfig{
		RequestsPerMinute: cfg.RateLimits.LLM.RequestsPerMinute,
		MaxConcurrent:     cfg.RateLimits.LLM.MaxConcurrent,
	})
	if limiter == nil {
		return gemini, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("推理限流已启用", "stats", limiter.Stats())
	return llm.NewRateLimitedClient(gemini, limiter), nil
}

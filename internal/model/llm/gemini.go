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
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	apperrors "image-translator/pkg/errors"
	"image-translator/pkg/redaction"
)

const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel   = "gemini-2.0-flash"

	// 图片统一以 image/png 声明，与实际格式无关
	inlineImageMimeType = "image/png"
)

// GeminiClient Gemini generateContent 客户端
type GeminiClient struct {
	provider string
	model    string
	apiKey   string
	baseURL  string
	client   *resty.Client
}

// GeminiOption 客户端可选项
type GeminiOption func(*GeminiClient)

// WithBaseURL 覆盖端点（测试或代理）
func WithBaseURL(baseURL string) GeminiOption {
	return func(c *GeminiClient) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithTimeout 单次请求超时
func WithTimeout(d time.Duration) GeminiOption {
	return func(c *GeminiClient) {
		if d > 0 {
			c.client.SetTimeout(d)
		}
	}
}

// NewGeminiClient 创建 Gemini 客户端；apiKey 为空时直接返回配置错误
func NewGeminiClient(model, apiKey string, opts ...GeminiOption) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, apperrors.Config("gemini api key is not configured")
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	client := resty.New()
	client.SetTimeout(60 * time.Second)
	// 每次调用只尝试一次
	client.SetRetryCount(0)

	c := &GeminiClient{
		provider: "gemini",
		model:    model,
		apiKey:   apiKey,
		baseURL:  DefaultGeminiBaseURL,
		client:   client,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generateResponse struct {
	Candidates []struct {
		Content *struct {
			Parts []struct {
				Text *string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type errorResponse struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func buildRequest(prompt, imageBase64 string) generateRequest {
	parts := []part{{Text: prompt}}
	if imageBase64 != "" {
		parts = append(parts, part{InlineData: &inlineData{MimeType: inlineImageMimeType, Data: imageBase64}})
	}
	return generateRequest{Contents: []content{{Role: "user", Parts: parts}}}
}

// Invoke 实现 Client.Invoke
func (c *GeminiClient) Invoke(ctx context.Context, prompt, imageBase64 string) (string, error) {
	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetQueryParam("key", c.apiKey).
		SetBody(buildRequest(prompt, imageBase64)).
		Post(c.endpoint())
	if err != nil {
		return "", apperrors.Unexpected(redaction.Error(err, c.apiKey))
	}

	code := response.StatusCode()
	if code < 200 || code > 299 {
		return "", apperrors.API(redaction.String(errorMessage(code, response.Body()), c.apiKey))
	}

	return parseText(response.Body())
}

func (c *GeminiClient) endpoint() string {
	return c.baseURL + "/models/" + c.model + ":generateContent"
}

// errorMessage 优先取 {error:{message}}，否则回退为状态文本
func errorMessage(code int, body []byte) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error != nil && er.Error.Message != "" {
		return er.Error.Message
	}
	if text := http.StatusText(code); text != "" {
		return text
	}
	return http.StatusText(http.StatusInternalServerError)
}

// parseText 读取 candidates[0].content.parts[0].text，任一节点缺失即为空响应
func parseText(body []byte) (string, error) {
	var result generateResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", apperrors.EmptyResponse(err)
	}
	if len(result.Candidates) == 0 {
		return "", apperrors.EmptyResponse(nil)
	}
	first := result.Candidates[0]
	if first.Content == nil || len(first.Content.Parts) == 0 || first.Content.Parts[0].Text == nil {
		return "", apperrors.EmptyResponse(nil)
	}
	return *first.Content.Parts[0].Text, nil
}

// Model 返回模型名称
func (c *GeminiClient) Model() string {
	return c.model
}

// Provider 返回提供商名称
func (c *GeminiClient) Provider() string {
	return c.provider
}

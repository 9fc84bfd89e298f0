package llm

import (
	"context"
)

// Client 多模态推理客户端：一次请求，一次响应
type Client interface {
	// Invoke 发送 prompt 与可选的 base64 图片（空串表示无图片），返回首个候选文本
	Invoke(ctx context.Context, prompt, imageBase64 string) (string, error)
	// Model 返回模型名称
	Model() string
	// Provider 返回提供商名称
	Provider() string
}

// ClientFunc 适配函数为 Client，便于测试替身
type ClientFunc func(ctx context.Context, prompt, imageBase64 string) (string, error)

func (f ClientFunc) Invoke(ctx context.Context, prompt, imageBase64 string) (string, error) {
	return f(ctx, prompt, imageBase64)
}

func (f ClientFunc) Model() string { return "func" }

func (f ClientFunc) Provider() string { return "func" }

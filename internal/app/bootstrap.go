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
	"context"

	"image-translator/internal/model/llm"
	"image-translator/internal/runtime/session"
	"image-translator/internal/workflow"
	"image-translator/pkg/config"
	apperrors "image-translator/pkg/errors"
	"image-translator/pkg/log"
	"image-translator/pkg/redaction"
	"image-translator/pkg/secrets"
)

// Bootstrap 统一初始化：日志、凭证、推理客户端、会话
type Bootstrap struct {
	Config   *config.Config
	Logger   *log.Logger
	Client   llm.Client
	Sessions *session.Manager
}

// NewBootstrap 根据配置创建 Bootstrap；凭证来源由 secrets.provider 决定
func NewBootstrap(ctx context.Context, cfg *config.Config) (*Bootstrap, error) {
	store, err := secrets.NewStore(cfg.Secrets)
	if err != nil {
		return nil, apperrors.Wrap(err, "初始化凭证存储失败")
	}
	return NewBootstrapWithStore(ctx, cfg, store)
}

// NewBootstrapWithStore 使用指定凭证存储创建 Bootstrap
func NewBootstrapWithStore(ctx context.Context, cfg *config.Config, store secrets.Store) (*Bootstrap, error) {
	logger, err := log.NewLogger(&log.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "初始化日志失败")
	}

	apiKey, err := secrets.ResolveAPIKey(ctx, cfg, store)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	client, err := NewInferenceClient(cfg, apiKey, logger.Logger)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}
	logger.Info("推理客户端已就绪",
		"provider", client.Provider(),
		"model", client.Model(),
		"key_fingerprint", redaction.Fingerprint(apiKey))

	factory := func(id string) *workflow.Workflow {
		return workflow.New(client,
			workflow.WithID(id),
			workflow.WithLogger(logger.Logger),
		)
	}
	sessions := session.NewManager(session.NewMemoryStore(), factory,
		session.WithTTL(config.ParseDuration(cfg.Session.TTL, 0)),
		session.WithLogger(logger.Logger),
	)

	return &Bootstrap{
		Config:   cfg,
		Logger:   logger,
		Client:   client,
		Sessions: sessions,
	}, nil
}

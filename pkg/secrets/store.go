// Copyright 2026 fanjia1024
// Secret lookup for the inference credential

package secrets

import (
	"context"
	"fmt"
	"strings"

	"image-translator/pkg/config"
	apperrors "image-translator/pkg/errors"
)

// Store 只读 Secret 存储接口
type Store interface {
	// Get 获取 secret 值；不存在时返回错误
	Get(ctx context.Context, key string) (string, error)
}

// NewStore 按 secrets.provider 创建 Store
func NewStore(cfg config.SecretsConfig) (Store, error) {
	switch cfg.Provider {
	case "", "env":
		return NewEnvStore(), nil
	case "memory":
		return NewMemoryStore(cfg.Values), nil
	case "vault":
		return NewVaultStore(VaultConfig{
			Address:    cfg.Vault.Address,
			Token:      cfg.Vault.Token,
			PathPrefix: cfg.Vault.PathPrefix,
		})
	default:
		return nil, fmt.Errorf("unsupported secret provider: %s", cfg.Provider)
	}
}

// ResolveAPIKey 解析推理端点凭证：配置中的字面值优先，其次查 Store；
// 仍为空时返回 config 类错误，启动即失败而不是向 URL 插入空 key
func ResolveAPIKey(ctx context.Context, cfg *config.Config, store Store) (string, error) {
	if key := strings.TrimSpace(cfg.Model.Gemini.APIKey); key != "" {
		return key, nil
	}
	name := cfg.Secrets.APIKeyName
	if store != nil && name != "" {
		val, err := store.Get(ctx, name)
		if err == nil && strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val), nil
		}
	}
	return "", apperrors.Config(fmt.Sprintf(
		"no API credential configured: set model.gemini.api_key or provide %q via the %q secrets provider",
		name, providerName(cfg.Secrets.Provider)))
}

func providerName(p string) string {
	if p == "" {
		return "env"
	}
	return p
}

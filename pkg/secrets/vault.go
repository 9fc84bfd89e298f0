// Copyright 2026 fanjia1024
// HashiCorp Vault secret store

package secrets

import (
	"context"
	"fmt"
	"strings"

	vault "github.com/hashicorp/vault/api"

	apperrors "image-translator/pkg/errors"
)

// VaultConfig Vault 配置
type VaultConfig struct {
	Address    string // Vault server address (e.g., http://vault:8200)
	Token      string
	PathPrefix string // KV mount, e.g. "secret"
}

type vaultStore struct {
	client     *vault.Client
	pathPrefix string
}

// NewVaultStore 创建 Vault secret store；创建时做一次健康检查
func NewVaultStore(config VaultConfig) (Store, error) {
	if config.Address == "" {
		config.Address = "http://localhost:8200"
	}

	cfg := vault.DefaultConfig()
	cfg.Address = config.Address

	client, err := vault.NewClient(cfg)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to create vault client")
	}
	if config.Token != "" {
		client.SetToken(config.Token)
	}
	if _, err := client.Sys().Health(); err != nil {
		return nil, apperrors.Wrap(err, "failed to connect to vault")
	}

	prefix := strings.Trim(config.PathPrefix, "/")
	if prefix == "" {
		prefix = "secret"
	}
	return &vaultStore{client: client, pathPrefix: prefix}, nil
}

// Get 依次尝试 KV v2（<mount>/data/<key>）与 KV v1（<mount>/<key>）路径
func (v *vaultStore) Get(ctx context.Context, key string) (string, error) {
	for _, p := range []string{v.pathPrefix + "/data/" + key, v.pathPrefix + "/" + key} {
		secret, err := v.client.Logical().ReadWithContext(ctx, p)
		if err != nil {
			return "", apperrors.Wrap(err, "failed to read secret from vault")
		}
		if secret == nil || secret.Data == nil {
			continue
		}
		data := secret.Data
		if nested, ok := data["data"].(map[string]interface{}); ok {
			data = nested
		}
		if val, ok := secretValue(data); ok {
			return val, nil
		}
	}
	return "", fmt.Errorf("secret not found: %s", key)
}

// secretValue 优先读取 "value" 字段，否则取第一个字符串值
func secretValue(data map[string]interface{}) (string, bool) {
	if s, ok := data["value"].(string); ok {
		return s, true
	}
	for _, val := range data {
		if s, ok := val.(string); ok {
			return s, true
		}
	}
	return "", false
}

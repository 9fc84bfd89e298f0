// Copyright 2026 fanjia1024
// In-memory secret store (seeded from secrets.values)

package secrets

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MemoryStore 内存 secret store
type MemoryStore struct {
	mu      sync.RWMutex
	secrets map[string]string
}

// NewMemoryStore 创建内存 secret store，initial 可为 nil
func NewMemoryStore(initial map[string]string) *MemoryStore {
	m := &MemoryStore{secrets: make(map[string]string, len(initial))}
	for k, v := range initial {
		m.secrets[k] = v
	}
	return m
}

// Get 实现 Store
func (m *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if value, ok := m.secrets[key]; ok {
		return value, nil
	}
	// viper 读取配置时会把 map 的键转为小写
	for k, v := range m.secrets {
		if strings.EqualFold(k, key) {
			return v, nil
		}
	}
	return "", fmt.Errorf("secret not found: %s", key)
}

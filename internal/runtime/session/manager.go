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

package session

import (
	"context"
	"log/slog"
	"time"

	"image-translator/internal/workflow"
	apperrors "image-translator/pkg/errors"
	"image-translator/pkg/metrics"
)

// SessionManager 管理 Session 生命周期
type SessionManager interface {
	Create(ctx context.Context) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

// WorkflowFactory 为新会话创建工作流
type WorkflowFactory func(sessionID string) *workflow.Workflow

// Manager 基于 SessionStore 的实现
type Manager struct {
	store   SessionStore
	factory WorkflowFactory
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// ManagerOption Manager 可选项
type ManagerOption func(*Manager)

// WithTTL 空闲超时；0 表示永不过期
func WithTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) { m.ttl = ttl }
}

// WithLogger 设置日志
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock 替换时钟（测试）
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager 创建 SessionManager
func NewManager(store SessionStore, factory WorkflowFactory, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:   store,
		factory: factory,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create 创建新 Session
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	id := NewID()
	s := New(id, m.factory(id), m.now())
	if err := m.store.Put(ctx, s); err != nil {
		return nil, err
	}
	metrics.SessionsActive.Inc()
	m.logger.Debug("session created", "session_id", id)
	return s, nil
}

// Get 按 ID 获取 Session 并记录访问；不存在返回 not_found
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, apperrors.NotFound("session not found: " + id)
	}
	s.Touch(m.now())
	return s, nil
}

// Delete 丢弃 Session；运行中的调用不会被中止，结果被丢弃
func (m *Manager) Delete(ctx context.Context, id string) error {
	ok, err := m.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NotFound("session not found: " + id)
	}
	metrics.SessionsActive.Dec()
	m.logger.Debug("session deleted", "session_id", id)
	return nil
}

// Sweep 清理空闲超过 TTL 的会话，返回清理数量
func (m *Manager) Sweep(ctx context.Context, now time.Time) (int, error) {
	all, err := m.store.List(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, s := range all {
		if !s.Expired(now, m.ttl) {
			continue
		}
		ok, err := m.store.Delete(ctx, s.ID)
		if err != nil {
			return n, err
		}
		if ok {
			n++
			metrics.SessionsActive.Dec()
		}
	}
	if n > 0 {
		m.logger.Info("expired sessions swept", "count", n)
	}
	return n, nil
}

// RunJanitor 周期性 Sweep，直到 ctx 结束
func (m *Manager) RunJanitor(ctx context.Context, interval time.Duration) {
	if m.ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Sweep(ctx, m.now()); err != nil {
				m.logger.Warn("session sweep failed", "error", err)
			}
		}
	}
}

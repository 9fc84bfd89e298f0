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
	"sync"
	"time"

	"github.com/google/uuid"

	"image-translator/internal/workflow"
)

// Session 一个浏览器标签页对应的会话：持有唯一的工作流
type Session struct {
	ID        string
	CreatedAt time.Time

	workflow *workflow.Workflow

	mu      sync.RWMutex
	touched time.Time
}

// New 创建 Session（id 为空时生成）
func New(id string, wf *workflow.Workflow, now time.Time) *Session {
	if id == "" {
		id = NewID()
	}
	return &Session{
		ID:        id,
		CreatedAt: now,
		workflow:  wf,
		touched:   now,
	}
}

// NewID 生成 "session-<uuid>" 形式的 ID
func NewID() string {
	return "session-" + uuid.New().String()
}

// Workflow 返回会话的工作流
func (s *Session) Workflow() *workflow.Workflow {
	return s.workflow
}

// Touch 记录一次访问
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.After(s.touched) {
		s.touched = now
	}
}

// LastActivity 最近访问或工作流状态变更时间中较晚者
func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	t := s.touched
	s.mu.RUnlock()
	if wt := s.workflow.LastActivity(); wt.After(t) {
		return wt
	}
	return t
}

// Expired 是否已空闲超过 ttl；运行中的会话永不过期
func (s *Session) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 || s.workflow.Running() {
		return false
	}
	return now.Sub(s.LastActivity()) > ttl
}

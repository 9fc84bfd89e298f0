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

package workflow

import "time"

// State 工作流状态；迁移严格线性
type State string

const (
	StateIdle        State = "idle"
	StateExtracting  State = "extracting"
	StateTranslating State = "translating"
	StateSucceeded   State = "succeeded"
	StateFailed      State = "failed"
)

// Terminal 是否为终态
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// CanStart 是否允许从该状态开始新的运行
func (s State) CanStart() bool {
	return s == StateIdle || s.Terminal()
}

// Transition 一次状态迁移
type Transition struct {
	From  State     `json:"from"`
	To    State     `json:"to"`
	RunID string    `json:"run_id"`
	At    time.Time `json:"at"`
}

// Observer 状态迁移回调；在锁外同步调用
type Observer func(Transition)

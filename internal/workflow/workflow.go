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

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"image-translator/internal/imaging"
	"image-translator/internal/model/llm"
	apperrors "image-translator/pkg/errors"
	"image-translator/pkg/metrics"
	"image-translator/pkg/tracing"
)

const (
	stageExtract   = "extract"
	stageTranslate = "translate"
)

// Snapshot 工作流在某一时刻的只读视图
type Snapshot struct {
	ID             string                 `json:"id,omitempty"`
	State          State                  `json:"state"`
	Language       Language               `json:"language"`
	Image          *imaging.UploadedImage `json:"image,omitempty"`
	ExtractedText  string                 `json:"extracted_text"`
	TranslatedText string                 `json:"translated_text"`
	Error          string                 `json:"error,omitempty"`
	Cause          string                 `json:"cause,omitempty"`
	Kind           apperrors.Kind         `json:"kind,omitempty"`
	Running        bool                   `json:"running"`
	RunID          string                 `json:"run_id,omitempty"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// Workflow 单个会话的两阶段推理流程：提取 -> 翻译
type Workflow struct {
	id        string
	client    llm.Client
	logger    *slog.Logger
	now       func() time.Time
	observers []Observer

	mu         sync.Mutex
	state      State
	language   Language
	image      *imaging.UploadedImage
	extracted  string
	translated string
	errMsg     string
	cause      string
	kind       apperrors.Kind
	running    bool
	runID      string
	generation uint64
	updatedAt  time.Time
	done       chan struct{}
}

// Option 工作流可选项
type Option func(*Workflow)

// WithID 设置所属会话 ID（用于日志与追踪）
func WithID(id string) Option {
	return func(w *Workflow) { w.id = id }
}

// WithLogger 设置日志
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workflow) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithObserver 注册状态迁移回调
func WithObserver(o Observer) Option {
	return func(w *Workflow) { w.observers = append(w.observers, o) }
}

// WithClock 替换时钟（测试）
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) { w.now = now }
}

// New 创建处于 idle、目标语言为默认值的工作流
func New(client llm.Client, opts ...Option) *Workflow {
	w := &Workflow{
		client:   client,
		logger:   slog.Default(),
		now:      time.Now,
		state:    StateIdle,
		language: DefaultLanguage,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.updatedAt = w.now()
	return w
}

// Snapshot 返回当前视图
func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

func (w *Workflow) snapshotLocked() Snapshot {
	return Snapshot{
		ID:             w.id,
		State:          w.state,
		Language:       w.language,
		Image:          w.image,
		ExtractedText:  w.extracted,
		TranslatedText: w.translated,
		Error:          w.errMsg,
		Cause:          w.cause,
		Kind:           w.kind,
		Running:        w.running,
		RunID:          w.runID,
		UpdatedAt:      w.updatedAt,
	}
}

// Running 是否有运行中的任务
func (w *Workflow) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// LastActivity 最近一次状态变更时间
func (w *Workflow) LastActivity() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.updatedAt
}

// Reset 替换图片并清空结果与错误，回到 idle。
// 运行中的调用不会被中止，但其后续写入会被丢弃。
func (w *Workflow) Reset(img *imaging.UploadedImage) {
	w.mu.Lock()
	from := w.state
	w.generation++
	w.image = img
	w.extracted, w.translated = "", ""
	w.clearErrorLocked()
	w.state = StateIdle
	w.updatedAt = w.now()
	t := Transition{From: from, To: StateIdle, RunID: w.runID, At: w.updatedAt}
	w.mu.Unlock()

	if from != StateIdle {
		w.notify(t)
	}
}

// SetLanguage 运行中不允许修改目标语言；不在语言列表内时返回校验错误
func (w *Workflow) SetLanguage(lang Language) error {
	if !lang.Valid() {
		return unsupportedLanguage(string(lang))
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return apperrors.Busy(MsgBusy)
	}
	w.language = lang
	w.updatedAt = w.now()
	return nil
}

// Wait 阻塞直到当前运行结束（无运行时立即返回）
func (w *Workflow) Wait(ctx context.Context) error {
	w.mu.Lock()
	done := w.done
	w.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Execution 已占用的一次运行，由 Execute 完成
type Execution struct {
	w        *Workflow
	id       string
	gen      uint64
	image    *imaging.UploadedImage
	language Language
	done     chan struct{}

	// superseded 写入被 Reset 丢弃；仅由执行 goroutine 读写
	superseded bool
}

// ID 运行 ID
func (e *Execution) ID() string { return e.id }

// Run 以给定图片与语言同步执行一次完整流程，返回终态错误（成功为 nil）
func (w *Workflow) Run(ctx context.Context, img *imaging.UploadedImage, lang Language) error {
	e, err := w.Start(img, lang)
	if err != nil {
		return err
	}
	return e.Execute(ctx)
}

// StartCurrent 以当前图片与语言占用一次运行
func (w *Workflow) StartCurrent() (*Execution, error) {
	w.mu.Lock()
	img, lang := w.image, w.language
	w.mu.Unlock()
	return w.Start(img, lang)
}

// Start 校验并占用一次运行：进入 extracting 并清空旧结果。
// 校验失败或已有运行时返回错误且状态不变。
func (w *Workflow) Start(img *imaging.UploadedImage, lang Language) (*Execution, error) {
	if img == nil {
		return nil, apperrors.Validation(MsgSelectImage)
	}
	if lang == "" {
		lang = DefaultLanguage
	}
	if !lang.Valid() {
		return nil, unsupportedLanguage(string(lang))
	}

	w.mu.Lock()
	if w.running || !w.state.CanStart() {
		w.mu.Unlock()
		return nil, apperrors.Busy(MsgBusy)
	}
	e := &Execution{
		w:        w,
		id:       "run-" + uuid.New().String(),
		gen:      w.generation,
		image:    img,
		language: lang,
		done:     make(chan struct{}),
	}
	w.running = true
	w.runID = e.id
	w.done = e.done
	w.image = img
	w.language = lang
	t := w.setStateLocked(StateExtracting)
	w.extracted, w.translated = "", ""
	w.clearErrorLocked()
	w.mu.Unlock()

	w.notify(t)
	return e, nil
}

// Execute 执行提取与翻译，直到终态；panic 转为 failed。
// 运行被新上传作废时返回 nil，不计入成功或失败。
func (e *Execution) Execute(ctx context.Context) (err error) {
	w := e.w
	ctx, span := tracing.StartRunSpan(ctx, w.id, e.id, string(e.language))
	start := w.now()
	logger := w.logger.With("session_id", w.id, "run_id", e.id)
	logger.Info("workflow run started", "language", e.language, "image", e.image.Name, "size", e.image.Size)

	defer func() {
		if r := recover(); r != nil {
			err = w.fail(e, apperrors.Unexpected(fmt.Errorf("%v", r)), "")
		}
		w.finish(e)
		switch {
		case e.superseded:
			err = nil
			span.SetAttributes(tracing.SupersededAttr)
			logger.Info("workflow run superseded by a new upload", "elapsed", w.now().Sub(start))
		case err != nil:
			logger.Warn("workflow run failed", "error", err.Error(), "kind", apperrors.KindOf(err), "elapsed", w.now().Sub(start))
		default:
			logger.Info("workflow run succeeded", "elapsed", w.now().Sub(start))
		}
		tracing.EndSpan(span, err)
	}()

	encoded, encErr := imaging.Encode(e.image)
	if encErr != nil {
		return w.fail(e, encErr, "")
	}

	extracted, callErr := w.invoke(ctx, stageExtract, ExtractionPrompt, encoded)
	if callErr != nil || extracted == "" {
		return w.fail(e, stageError(MsgExtractFailed, callErr), causeOf(callErr))
	}
	if !w.update(e, func() Transition {
		w.extracted = extracted
		return w.setStateLocked(StateTranslating)
	}) {
		return nil
	}

	translated, callErr := w.invoke(ctx, stageTranslate, TranslationPrompt(e.language, extracted), "")
	if callErr != nil || translated == "" {
		return w.fail(e, stageError(MsgTranslateFailed, callErr), causeOf(callErr))
	}
	if w.update(e, func() Transition {
		w.translated = translated
		return w.setStateLocked(StateSucceeded)
	}) {
		metrics.WorkflowRunsTotal.WithLabelValues(string(StateSucceeded)).Inc()
	}
	return nil
}

func (w *Workflow) invoke(ctx context.Context, stage, prompt, imageBase64 string) (string, error) {
	ctx, span := tracing.StartStageSpan(ctx, stage)
	start := time.Now()
	text, err := w.client.Invoke(ctx, prompt, imageBase64)
	metrics.InferenceDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	if err == nil && text == "" {
		metrics.InferenceFailuresTotal.WithLabelValues(stage, string(apperrors.KindEmptyResponse)).Inc()
	} else if err != nil {
		metrics.InferenceFailuresTotal.WithLabelValues(stage, string(apperrors.KindOf(err))).Inc()
	}
	tracing.EndSpan(span, err)
	return text, err
}

// stageError 阶段失败：消息固定，分类沿用底层错误（空文本视为空响应）
func stageError(message string, cause error) *apperrors.Error {
	if cause == nil {
		return apperrors.New(apperrors.KindEmptyResponse, message, nil)
	}
	return apperrors.New(apperrors.KindOf(cause), message, cause)
}

func causeOf(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// fail 进入 failed；保留已提取文本
func (w *Workflow) fail(e *Execution, err error, cause string) error {
	if w.update(e, func() Transition {
		w.errMsg = err.Error()
		w.cause = cause
		w.kind = apperrors.KindOf(err)
		return w.setStateLocked(StateFailed)
	}) {
		metrics.WorkflowRunsTotal.WithLabelValues(string(StateFailed)).Inc()
	}
	return err
}

// update 在锁内写入；运行已被 Reset 作废时丢弃并返回 false
func (w *Workflow) update(e *Execution, fn func() Transition) bool {
	w.mu.Lock()
	if e.gen != w.generation {
		w.mu.Unlock()
		e.superseded = true
		return false
	}
	t := fn()
	w.mu.Unlock()
	w.notify(t)
	return true
}

func (w *Workflow) finish(e *Execution) {
	w.mu.Lock()
	if w.runID == e.id {
		w.running = false
		w.done = nil
	}
	w.updatedAt = w.now()
	w.mu.Unlock()
	close(e.done)
}

func (w *Workflow) setStateLocked(to State) Transition {
	t := Transition{From: w.state, To: to, RunID: w.runID, At: w.now()}
	w.state = to
	w.updatedAt = t.At
	return t
}

func (w *Workflow) clearErrorLocked() {
	w.errMsg, w.cause, w.kind = "", "", ""
}

func (w *Workflow) notify(t Transition) {
	metrics.WorkflowTransitionsTotal.WithLabelValues(string(t.To)).Inc()
	for _, o := range w.observers {
		o(t)
	}
}

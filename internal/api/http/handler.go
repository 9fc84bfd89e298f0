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

package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"image-translator/internal/imaging"
	"image-translator/internal/runtime/session"
	"image-translator/internal/workflow"
	apperrors "image-translator/pkg/errors"
	"image-translator/pkg/metrics"
)

// HandlerConfig 处理器配置
type HandlerConfig struct {
	MaxUploadBytes int
	RunTimeout     time.Duration
}

// Handler HTTP 处理器
type Handler struct {
	sessions session.SessionManager
	logger   *slog.Logger
	cfg      HandlerConfig
}

// NewHandler 创建新的 HTTP 处理器
func NewHandler(sessions session.SessionManager, logger *slog.Logger, cfg HandlerConfig) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 2 * time.Minute
	}
	return &Handler{sessions: sessions, logger: logger, cfg: cfg}
}

// HealthCheck 健康检查
// GET /api/health
func (h *Handler) HealthCheck(c context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, map[string]string{"status": "ok"})
}

// ListLanguages 可选目标语言
// GET /api/languages
func (h *Handler) ListLanguages(c context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, map[string]interface{}{
		"languages": workflow.Languages(),
		"default":   workflow.DefaultLanguage,
	})
}

// CreateSession 创建会话
// POST /api/sessions
func (h *Handler) CreateSession(c context.Context, ctx *app.RequestContext) {
	s, err := h.sessions.Create(c)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusCreated, s.Workflow().Snapshot())
}

// GetSession 会话快照
// GET /api/sessions/:id
func (h *Handler) GetSession(c context.Context, ctx *app.RequestContext) {
	s, ok := h.lookup(c, ctx)
	if !ok {
		return
	}
	ctx.JSON(consts.StatusOK, s.Workflow().Snapshot())
}

// DeleteSession 丢弃会话
// DELETE /api/sessions/:id
func (h *Handler) DeleteSession(c context.Context, ctx *app.RequestContext) {
	if err := h.sessions.Delete(c, ctx.Param("id")); err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.SetStatusCode(consts.StatusNoContent)
}

type uploadRequest struct {
	Filename string `json:"filename"`
	Data     string `json:"data"`
}

// UploadImage 上传图片（multipart "file" 或 JSON {filename, data}），替换当前图片并清空结果
// PUT /api/sessions/:id/image
func (h *Handler) UploadImage(c context.Context, ctx *app.RequestContext) {
	s, ok := h.lookup(c, ctx)
	if !ok {
		return
	}

	name, data, status, err := h.readUpload(ctx)
	if err != nil {
		if status != 0 {
			ctx.JSON(status, errorBody(err.Error(), apperrors.KindValidation))
			return
		}
		h.writeError(ctx, err)
		return
	}

	img, err := imaging.FromBytes(name, data)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	s.Workflow().Reset(img)
	h.logger.Info("image uploaded", "session_id", s.ID, "name", img.Name, "media_type", img.MediaType, "size", img.Size)
	ctx.JSON(consts.StatusOK, s.Workflow().Snapshot())
}

// readUpload 返回文件名与内容；status 非 0 时表示需直接返回的状态码
func (h *Handler) readUpload(ctx *app.RequestContext) (string, []byte, int, error) {
	limit := int64(h.cfg.MaxUploadBytes)
	tooLarge := fmt.Errorf("image exceeds the %d byte upload limit", limit)

	if strings.HasPrefix(string(ctx.ContentType()), "multipart/form-data") {
		fh, err := ctx.FormFile("file")
		if err != nil {
			return "", nil, 0, apperrors.Validation("multipart field \"file\" is required")
		}
		if fh.Size > limit {
			return "", nil, consts.StatusRequestEntityTooLarge, tooLarge
		}
		f, err := fh.Open()
		if err != nil {
			return "", nil, 0, apperrors.Read(err)
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, limit+1))
		if err != nil {
			return "", nil, 0, apperrors.Read(err)
		}
		if int64(len(data)) > limit {
			return "", nil, consts.StatusRequestEntityTooLarge, tooLarge
		}
		return fh.Filename, data, 0, nil
	}

	var req uploadRequest
	if err := ctx.BindJSON(&req); err != nil {
		return "", nil, 0, apperrors.Validation("invalid request")
	}
	if req.Data == "" {
		return "", nil, 0, apperrors.Validation("image data is required")
	}
	data, err := imaging.Decode(req.Data)
	if err != nil {
		return "", nil, 0, err
	}
	if int64(len(data)) > limit {
		return "", nil, consts.StatusRequestEntityTooLarge, tooLarge
	}
	return req.Filename, data, 0, nil
}

type languageRequest struct {
	Language string `json:"language"`
}

// SetLanguage 设置目标语言；运行中返回 409
// PUT /api/sessions/:id/language
func (h *Handler) SetLanguage(c context.Context, ctx *app.RequestContext) {
	s, ok := h.lookup(c, ctx)
	if !ok {
		return
	}
	var req languageRequest
	if err := ctx.BindJSON(&req); err != nil {
		h.writeError(ctx, apperrors.Validation("invalid request"))
		return
	}
	lang, err := workflow.ParseLanguage(req.Language)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	if err := s.Workflow().SetLanguage(lang); err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, s.Workflow().Snapshot())
}

// RunWorkflow 开始一次提取+翻译；wait=true 时阻塞到终态
// POST /api/sessions/:id/run
func (h *Handler) RunWorkflow(c context.Context, ctx *app.RequestContext) {
	s, ok := h.lookup(c, ctx)
	if !ok {
		return
	}
	wf := s.Workflow()
	e, err := wf.StartCurrent()
	if err != nil {
		h.writeError(ctx, err)
		return
	}

	// 运行不随请求取消，仅受 run_timeout 约束
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(c), h.cfg.RunTimeout)
	go func() {
		defer cancel()
		_ = e.Execute(runCtx)
	}()

	if string(ctx.Query("wait")) != "true" {
		ctx.JSON(consts.StatusAccepted, wf.Snapshot())
		return
	}
	if err := wf.Wait(c); err != nil {
		h.writeError(ctx, apperrors.Unexpected(err))
		return
	}
	ctx.JSON(consts.StatusOK, wf.Snapshot())
}

// Metrics Prometheus 文本格式
// GET /metrics
func (h *Handler) Metrics(c context.Context, ctx *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		h.writeError(ctx, apperrors.Unexpected(err))
		return
	}
	ctx.Data(consts.StatusOK, metrics.ContentType(), buf.Bytes())
}

func (h *Handler) lookup(c context.Context, ctx *app.RequestContext) (*session.Session, bool) {
	s, err := h.sessions.Get(c, ctx.Param("id"))
	if err != nil {
		h.writeError(ctx, err)
		return nil, false
	}
	return s, true
}

func (h *Handler) writeError(ctx *app.RequestContext, err error) {
	kind := apperrors.KindOf(err)
	status := statusFor(kind)
	if status >= consts.StatusInternalServerError {
		h.logger.Error("request failed", "path", string(ctx.Path()), "error", err.Error(), "kind", kind)
	}
	ctx.JSON(status, errorBody(err.Error(), kind))
}

func errorBody(message string, kind apperrors.Kind) map[string]string {
	return map[string]string{"error": message, "kind": string(kind)}
}

func statusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindValidation, apperrors.KindRead:
		return consts.StatusBadRequest
	case apperrors.KindNotFound:
		return consts.StatusNotFound
	case apperrors.KindBusy:
		return consts.StatusConflict
	case apperrors.KindAPI, apperrors.KindEmptyResponse:
		return consts.StatusBadGateway
	default:
		return consts.StatusInternalServerError
	}
}

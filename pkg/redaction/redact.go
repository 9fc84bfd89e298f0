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

package redaction

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"
)

// Mask 替换后的占位符
const Mask = "***"

// Fingerprint 返回 secret 的短 SHA256 指纹，可安全写入日志
func Fingerprint(secret string) string {
	if secret == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(secret))
	return "sha256:" + hex.EncodeToString(sum[:])[:12]
}

// QueryParams 将 rawURL 中指定查询参数的值替换为 Mask；解析失败时原样返回
func QueryParams(rawURL string, params ...string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.RawQuery == "" {
		return rawURL
	}
	q := u.Query()
	changed := false
	for _, p := range params {
		if _, ok := q[p]; ok {
			q.Set(p, Mask)
			changed = true
		}
	}
	if !changed {
		return rawURL
	}
	// 保持 "***" 可读，不做百分号编码
	u.RawQuery = strings.ReplaceAll(q.Encode(), url.QueryEscape(Mask), Mask)
	return u.String()
}

// String 将 s 中出现的每个 secret 替换为 Mask
func String(s string, secrets ...string) string {
	for _, sec := range secrets {
		if sec == "" {
			continue
		}
		s = strings.ReplaceAll(s, sec, Mask)
		if esc := url.QueryEscape(sec); esc != sec {
			s = strings.ReplaceAll(s, esc, Mask)
		}
	}
	return s
}

// Error 返回脱敏后的错误：*url.Error 的 URL 查询参数被遮盖，其余文本中的 secret 被替换。
// 保留 errors.Is 对原始错误链的判断
func Error(err error, secrets ...string) error {
	if err == nil {
		return nil
	}
	var uerr *url.Error
	if errors.As(err, &uerr) {
		masked := &url.Error{Op: uerr.Op, URL: QueryParams(uerr.URL, "key"), Err: uerr.Err}
		return &redactedError{msg: String(masked.Error(), secrets...), err: err}
	}
	msg := String(err.Error(), secrets...)
	if msg == err.Error() {
		return err
	}
	return &redactedError{msg: msg, err: err}
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }

func (e *redactedError) Unwrap() error { return e.err }

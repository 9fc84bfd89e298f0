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

package imaging

import (
	"encoding/base64"
	"errors"
	"io"
	"strings"

	apperrors "image-translator/pkg/errors"
)

var errNoSource = errors.New("image has no payload")

// Encode 读取完整负载并返回标准 base64（不带 data: 前缀）
func Encode(img *UploadedImage) (string, error) {
	if img == nil || img.source == nil {
		return "", apperrors.Read(errNoSource)
	}
	rc, err := img.source.Open()
	if err != nil {
		return "", apperrors.Read(err)
	}
	defer rc.Close()

	var sb strings.Builder
	enc := base64.NewEncoder(base64.StdEncoding, &sb)
	if _, err := io.Copy(enc, rc); err != nil {
		return "", apperrors.Read(err)
	}
	if err := enc.Close(); err != nil {
		return "", apperrors.Read(err)
	}
	return sb.String(), nil
}

// StripDataURL 去掉 "data:<mime>;base64," 前缀；无前缀时原样返回
func StripDataURL(s string) string {
	if !strings.HasPrefix(s, "data:") {
		return s
	}
	if i := strings.Index(s, ","); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Decode 解码 base64 负载，兼容 data URL
func Decode(s string) ([]byte, error) {
	payload := strings.TrimSpace(StripDataURL(s))
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, apperrors.Validation("image data is not valid base64")
	}
	return data, nil
}

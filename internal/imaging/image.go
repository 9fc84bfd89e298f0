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
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	apperrors "image-translator/pkg/errors"
)

// Source 可重复打开的图片负载；编码时才真正读取
type Source interface {
	Open() (io.ReadCloser, error)
}

// SourceFunc 适配函数为 Source
type SourceFunc func() (io.ReadCloser, error)

func (f SourceFunc) Open() (io.ReadCloser, error) { return f() }

type bytesSource []byte

func (b bytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b)), nil
}

// UploadedImage 用户上传的图片，由所属会话独占
type UploadedImage struct {
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	Size      int64  `json:"size"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`

	source Source
}

// NewUploadedImage 以任意 Source 构造图片，不做内容校验
func NewUploadedImage(name, mediaType string, size int64, src Source) *UploadedImage {
	return &UploadedImage{Name: name, MediaType: mediaType, Size: size, source: src}
}

// FromBytes 校验内容为 image/* 后构造图片；data 会被复制
func FromBytes(name string, data []byte) (*UploadedImage, error) {
	mediaType, err := ValidateImage(data)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	img := NewUploadedImage(name, mediaType, int64(len(buf)), bytesSource(buf))
	img.Width, img.Height = Dimensions(buf)
	return img, nil
}

// Sniff 根据内容探测媒体类型（不含参数）
func Sniff(data []byte) string {
	mt := mimetype.Detect(data).String()
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return mt
}

// ValidateImage 只接受 image/* 内容，返回探测到的媒体类型
func ValidateImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", apperrors.Validation("uploaded file is empty")
	}
	mt := Sniff(data)
	if !strings.HasPrefix(mt, "image/") {
		return "", apperrors.Validation(fmt.Sprintf("unsupported file type %s: an image is required", mt))
	}
	return mt, nil
}

// Dimensions 只解码图片头部；未知格式返回 0, 0
func Dimensions(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

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
	"fmt"
	"strings"

	apperrors "image-translator/pkg/errors"
)

// Language 翻译目标语言
type Language string

const (
	English    Language = "English"
	Spanish    Language = "Spanish"
	French     Language = "French"
	German     Language = "German"
	Portuguese Language = "Portuguese"
	Italian    Language = "Italian"
	Japanese   Language = "Japanese"
	Korean     Language = "Korean"
	Chinese    Language = "Chinese"

	DefaultLanguage = English
)

var languages = []Language{English, Spanish, French, German, Portuguese, Italian, Japanese, Korean, Chinese}

// Languages 返回固定的语言列表（副本）
func Languages() []Language {
	out := make([]Language, len(languages))
	copy(out, languages)
	return out
}

// Valid 是否属于固定的语言列表
func (l Language) Valid() bool {
	for _, v := range languages {
		if v == l {
			return true
		}
	}
	return false
}

func unsupportedLanguage(s string) error {
	return apperrors.Validation(fmt.Sprintf("unsupported language: %q", s))
}

// ParseLanguage 按名称匹配（忽略大小写与首尾空白）
func ParseLanguage(s string) (Language, error) {
	name := strings.TrimSpace(s)
	for _, l := range languages {
		if strings.EqualFold(string(l), name) {
			return l, nil
		}
	}
	return "", unsupportedLanguage(s)
}

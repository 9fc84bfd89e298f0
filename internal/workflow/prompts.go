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

import "fmt"

// ExtractionPrompt 第一次调用（附带图片）
const ExtractionPrompt = "Extract the text from this image. Respond with only the extracted text."

// TranslationPrompt 第二次调用（纯文本）；extracted 原样嵌入，不做转义
func TranslationPrompt(lang Language, extracted string) string {
	return fmt.Sprintf("Translate the following text to %s: \"%s\"", lang, extracted)
}

// 用户可见的失败消息
const (
	MsgSelectImage     = "select an image first"
	MsgExtractFailed   = "failed to extract text from image"
	MsgTranslateFailed = "failed to translate text; extracted text may be empty or translation failed"
	MsgBusy            = "a run is already in progress"
)

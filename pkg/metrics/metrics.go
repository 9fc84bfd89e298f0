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

package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		WorkflowRunsTotal, WorkflowTransitionsTotal,
		InferenceDuration, InferenceFailuresTotal,
		RateLimitWaitSeconds, SessionsActive,
	)
}

// WorkflowRunsTotal 工作流运行结果计数
var WorkflowRunsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "imgtr_workflow_runs_total",
		Help: "Workflow runs by terminal outcome",
	},
	[]string{"outcome"}, // succeeded | failed
)

// WorkflowTransitionsTotal 状态迁移计数
var WorkflowTransitionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "imgtr_workflow_transitions_total",
		Help: "Workflow state transitions by target state",
	},
	[]string{"to"},
)

// InferenceDuration 推理调用耗时（秒）
var InferenceDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "imgtr_inference_duration_seconds",
		Help:    "Inference call latency in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"stage"}, // extract | translate
)

// InferenceFailuresTotal 推理失败计数
var InferenceFailuresTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "imgtr_inference_failures_total",
		Help: "Failed inference calls by stage and failure kind",
	},
	[]string{"stage", "kind"},
)

// RateLimitWaitSeconds 限流等待时间
var RateLimitWaitSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "imgtr_rate_limit_wait_seconds",
		Help:    "Time spent waiting on rate limiters",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	},
	[]string{"scope"},
)

// SessionsActive 当前会话数
var SessionsActive = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "imgtr_sessions_active",
		Help: "Sessions currently held in memory",
	},
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}

// ContentType /metrics 响应的 Content-Type
func ContentType() string {
	return string(expfmt.NewFormat(expfmt.TypeTextPlain))
}

package metrics

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWritePrometheus(t *testing.T) {
	WorkflowRunsTotal.WithLabelValues("succeeded").Inc()
	InferenceDuration.WithLabelValues("extract").Observe(0.2)

	var buf bytes.Buffer
	require.NoError(t, WritePrometheus(&buf))
	out := buf.String()
	assert.Contains(t, out, "imgtr_workflow_runs_total")
	assert.Contains(t, out, `outcome="succeeded"`)
	assert.Contains(t, out, "imgtr_inference_duration_seconds_bucket")
	assert.Contains(t, ContentType(), "text/plain")
}

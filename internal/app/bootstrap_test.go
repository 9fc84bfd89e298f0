package app

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"image-translator/internal/model/llm"
	"image-translator/pkg/config"
	apperrors "image-translator/pkg/errors"
	"image-translator/pkg/secrets"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.Secrets.Provider = "memory"
	return cfg
}

func TestNewBootstrap_MissingKeyFailsFast(t *testing.T) {
	cfg := testConfig(t)
	_, err := NewBootstrapWithStore(context.Background(), cfg, secrets.NewMemoryStore(nil))
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConfig))
}

func TestNewBootstrap_KeyFromStore(t *testing.T) {
	cfg := testConfig(t)
	store := secrets.NewMemoryStore(map[string]string{"GEMINI_API_KEY": "k"})

	b, err := NewBootstrapWithStore(context.Background(), cfg, store)
	require.NoError(t, err)
	defer b.Logger.Close()

	assert.Equal(t, "gemini", b.Client.Provider())
	assert.Equal(t, "gemini-2.0-flash", b.Client.Model())

	s, err := b.Sessions.Create(context.Background())
	require.NoError(t, err)
	assert.Equal(t, s.ID, s.Workflow().Snapshot().ID)
}

func TestNewInferenceClient_RateLimited(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimits.LLM.MaxConcurrent = 2

	c, err := NewInferenceClient(cfg, "k", nil)
	require.NoError(t, err)
	_, ok := c.(*llm.RateLimitedClient)
	assert.True(t, ok)

	cfg.RateLimits.LLM.MaxConcurrent = 0
	c, err = NewInferenceClient(cfg, "k", nil)
	require.NoError(t, err)
	_, ok = c.(*llm.GeminiClient)
	assert.True(t, ok)
}

func TestNewInferenceClient_LogsLimiterStats(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimits.LLM.MaxConcurrent = 3
	var buf bytes.Buffer

	_, err := NewInferenceClient(cfg, "k", slog.New(slog.NewTextHandler(&buf, nil)))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "推理限流已启用")
	assert.Contains(t, buf.String(), "max_concurrent:3")
	assert.Contains(t, buf.String(), "available_slots:3")
}

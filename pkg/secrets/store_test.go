package secrets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"image-translator/pkg/config"
	apperrors "image-translator/pkg/errors"
)

func TestNewStore(t *testing.T) {
	s, err := NewStore(config.SecretsConfig{Provider: "env"})
	require.NoError(t, err)
	assert.NotNil(t, s)

	s, err = NewStore(config.SecretsConfig{Provider: "memory"})
	require.NoError(t, err)
	assert.NotNil(t, s)

	s, err = NewStore(config.SecretsConfig{Provider: "k8s"})
	require.Error(t, err)
	assert.Nil(t, s)
	assert.Contains(t, err.Error(), "unsupported secret provider")
}

func TestEnvStore(t *testing.T) {
	t.Setenv("IMGTR_SECRET_TEST", "v1")
	got, err := NewEnvStore().Get(context.Background(), "IMGTR_SECRET_TEST")
	require.NoError(t, err)
	assert.Equal(t, "v1", got)

	_, err = NewEnvStore().Get(context.Background(), "IMGTR_SECRET_MISSING")
	require.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	m := NewMemoryStore(map[string]string{"a": "1"})
	got, err := m.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "1", got)

	got, err = m.Get(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, "1", got)

	_, err = m.Get(context.Background(), "c")
	require.Error(t, err)
}

func TestSecretValue(t *testing.T) {
	v, ok := secretValue(map[string]interface{}{"value": "x", "other": "y"})
	assert.True(t, ok)
	assert.Equal(t, "x", v)

	v, ok = secretValue(map[string]interface{}{"api_key": "z"})
	assert.True(t, ok)
	assert.Equal(t, "z", v)

	_, ok = secretValue(map[string]interface{}{"n": 1})
	assert.False(t, ok)
}

func TestResolveAPIKey(t *testing.T) {
	ctx := context.Background()

	cfg := &config.Config{}
	cfg.Model.Gemini.APIKey = " literal "
	key, err := ResolveAPIKey(ctx, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "literal", key)

	cfg = &config.Config{}
	cfg.Secrets.APIKeyName = "GEMINI_API_KEY"
	key, err = ResolveAPIKey(ctx, cfg, NewMemoryStore(map[string]string{"GEMINI_API_KEY": "from-store"}))
	require.NoError(t, err)
	assert.Equal(t, "from-store", key)

	_, err = ResolveAPIKey(ctx, cfg, NewMemoryStore(nil))
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConfig, apperrors.KindOf(err))
}

func TestNewStore_MemorySeededFromConfig(t *testing.T) {
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.Model.Gemini.APIKey = ""
	cfg.Secrets.Provider = "memory"
	// 与 viper 解析 secrets.values 后一致：键为小写
	cfg.Secrets.Values = map[string]string{"gemini_api_key": "seeded"}

	store, err := NewStore(cfg.Secrets)
	require.NoError(t, err)
	key, err := ResolveAPIKey(context.Background(), cfg, store)
	require.NoError(t, err)
	assert.Equal(t, "seeded", key)
}

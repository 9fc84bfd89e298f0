package api

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"image-translator/internal/app"
	"image-translator/pkg/config"
	"image-translator/pkg/secrets"
)

func TestNewApp_WiresRouter(t *testing.T) {
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	b, err := app.NewBootstrapWithStore(context.Background(), cfg,
		secrets.NewMemoryStore(map[string]string{"GEMINI_API_KEY": "k"}))
	require.NoError(t, err)

	a, err := NewApp(b)
	require.NoError(t, err)
	assert.NotNil(t, a.router)
	assert.Nil(t, a.hertz)
	require.NoError(t, a.Shutdown(context.Background()))
}

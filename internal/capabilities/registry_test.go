package capabilities

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_LoadsEmbeddedProviders(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	providers := r.GetAllProviders()
	sort.Strings(providers)
	assert.Equal(t, []string{"anthropic", "openai"}, providers)
}

func TestRegistry_GetModelCapabilities(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	caps, err := r.GetModelCapabilities("anthropic", "claude-haiku-4-5-20251001")
	require.NoError(t, err)
	assert.Equal(t, "claude-haiku-4-5-20251001", caps.ID)
	assert.True(t, caps.SupportsTools)

	_, err = r.GetModelCapabilities("anthropic", "does-not-exist")
	assert.Error(t, err)

	_, err = r.GetModelCapabilities("does-not-exist", "claude-haiku-4-5-20251001")
	assert.Error(t, err)
}

func TestRegistry_ListProviderModels_SortedByID(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	models, err := r.ListProviderModels("openai")
	require.NoError(t, err)
	require.NotEmpty(t, models)

	for i := 1; i < len(models); i++ {
		assert.LessOrEqual(t, models[i-1].ID, models[i].ID)
	}
	for _, m := range models {
		assert.NotEmpty(t, m.ID)
	}

	_, err = r.ListProviderModels("does-not-exist")
	assert.Error(t, err)
}

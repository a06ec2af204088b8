package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/dastanaron/bookaimark/internal/config"
)

func TestLLMKeyRoundTrip(t *testing.T) {
	keyring.MockInit()
	store := OS()

	value, err := LLMKey(store)
	require.NoError(t, err)
	assert.Empty(t, value)

	require.NoError(t, SetLLMKey(store, "  sk-test "))
	value, err = LLMKey(store)
	require.NoError(t, err)
	assert.Equal(t, "sk-test", value)

	require.NoError(t, DeleteLLMKey(store))
	require.NoError(t, DeleteLLMKey(store))
	value, err = LLMKey(store)
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestSetLLMKeyRejectsBlank(t *testing.T) {
	keyring.MockInit()
	require.Error(t, SetLLMKey(OS(), "   "))
}

func TestApplyLLMKeyOnlyFillsMissing(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, SetLLMKey(OS(), "from-keychain"))

	cfg := config.Default()
	require.NoError(t, ApplyLLMKey(&cfg, OS()))
	assert.Equal(t, "from-keychain", cfg.LLM.APIKey)

	cfg.LLM.APIKey = "from-file"
	require.NoError(t, ApplyLLMKey(&cfg, OS()))
	assert.Equal(t, "from-file", cfg.LLM.APIKey)
}

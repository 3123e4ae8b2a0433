package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinix-backend/internal/llm"
)

func TestCompleteMissingKey(t *testing.T) {
	c := NewClient(llm.StaticKey(""), "").WithDisabled(func() bool { return false })

	_, err := c.Complete(context.Background(), llm.Request{Prompt: "fever since kal"})
	require.Error(t, err)

	var pe *llm.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, ProviderName, pe.Provider)
	assert.ErrorIs(t, err, llm.ErrMissingAPIKey)
}

func TestCompleteDisabledByEnv(t *testing.T) {
	t.Setenv("GEMINI_DISABLED", "true")
	c := NewClient(llm.StaticKey("would-be-used"), "gemini-2.0-flash-lite")

	_, err := c.Complete(context.Background(), llm.Request{Prompt: "x"})
	assert.ErrorIs(t, err, llm.ErrDisabled)
}

func TestNewClientDefaultsModel(t *testing.T) {
	c := NewClient(nil, " ")
	assert.Equal(t, defaultModel, c.modelID)
	assert.NoError(t, c.Close())
}

func TestKeyRotationKeepsPreviousClientUntilClose(t *testing.T) {
	key := "key-one"
	c := NewClient(func() string { return key }, "")
	ctx := context.Background()

	first, err := c.sdkClient(ctx)
	require.NoError(t, err)
	again, err := c.sdkClient(ctx)
	require.NoError(t, err)
	assert.Same(t, first, again)

	key = "key-two"
	second, err := c.sdkClient(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	// an in-flight call on first must not see it closed
	require.Len(t, c.retired, 1)
	assert.Same(t, first, c.retired[0])

	assert.NoError(t, c.Close())
	assert.Empty(t, c.retired)
	assert.Nil(t, c.client)
}

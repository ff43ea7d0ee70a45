package local

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalProvider_RoundTrip(t *testing.T) {
	provider, err := NewLocalProvider(t.TempDir(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	key := "org-1/doc-1/policy.pdf"
	require.NoError(t, provider.Upload(ctx, key, strings.NewReader("%PDF-1.4 content")))

	exists, err := provider.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	content, err := provider.Download(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 content", string(content))

	require.NoError(t, provider.Delete(ctx, key))

	exists, err = provider.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalProvider_RejectsTraversal(t *testing.T) {
	provider, err := NewLocalProvider(t.TempDir(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	err = provider.Upload(ctx, "../escape.txt", strings.NewReader("nope"))
	assert.Error(t, err)

	_, err = provider.Download(ctx, "../../etc/passwd")
	assert.Error(t, err)
}

func TestLocalProvider_DeleteMissingIsNoError(t *testing.T) {
	provider, err := NewLocalProvider(t.TempDir(), nil)
	require.NoError(t, err)

	assert.NoError(t, provider.Delete(context.Background(), "org/doc/missing.pdf"))
}

func TestLocalProvider_TestConnection(t *testing.T) {
	provider, err := NewLocalProvider(t.TempDir(), nil)
	require.NoError(t, err)

	assert.NoError(t, provider.TestConnection(context.Background()))
}

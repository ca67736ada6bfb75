package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/extraction017/temporav3/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	var dest map[string]int
	assert.ErrorIs(t, repo.Get(ctx, "scores:health:2026-10-19", &dest), appErrors.ErrCacheMiss)
	require.NoError(t, repo.Set(ctx, "scores:health:2026-10-19", map[string]int{"score": 80}, 0))
	require.NoError(t, repo.DeleteByPattern(ctx, "scores:*"))
	require.NoError(t, repo.Close())
}

func TestNamespacedKeys(t *testing.T) {
	assert.Equal(t, "temporav3:proposal:abc", namespaced("proposal:abc"))
}

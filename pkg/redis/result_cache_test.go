package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/errors"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/models"
)

func TestCacheKey(t *testing.T) {
	policy := models.DefaultPolicy()
	assert.Equal(t, "pbv2:validation:abc:11100", CacheKey("pbv2", "abc", policy))

	policy.AmbiguousEdgesStrict = true
	assert.Equal(t, "pbv2:validation:abc:11110", CacheKey("pbv2", "abc", policy))

	assert.Equal(t, "validation:abc:11110", CacheKey("", "abc", policy))
}

func TestResultCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	logger := ectologger.NewEctoLogger(func(ectologger.EctoLogMessage) {})
	client, err := NewClient(context.Background(), Config{Addr: addr, KeyPrefix: "pbv2-test-" + uuid.NewString()}, logger)
	require.NoError(t, err)
	defer client.Close()

	cache := NewResultCache(client, time.Minute, logger)
	ctx := context.Background()
	policy := models.DefaultPolicy()

	_, found, err := cache.Get(ctx, "hash-1", policy)
	require.NoError(t, err)
	assert.False(t, found)

	want := models.NewValidationResult([]models.Finding{{
		Severity: models.SeverityWarning,
		Code:     errors.CodeEdgeAmbiguousMatch,
		Message:  "edges overlap",
		Path:     "edges",
	}})
	require.NoError(t, cache.Set(ctx, "hash-1", policy, want))

	got, found, err := cache.Get(ctx, "hash-1", policy)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, want, *got)

	policy.AmbiguousEdgesStrict = true
	_, found, err = cache.Get(ctx, "hash-1", policy)
	require.NoError(t, err)
	assert.False(t, found)
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/models"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "pbv2-api", cfg.AppName)
	assert.Equal(t, "db/pg", cfg.DatabaseMigrationFolderPath)
	assert.Equal(t, 5*time.Minute, cfg.TreeCacheTTL)
	assert.Equal(t, "pbv2.material-usage", cfg.KafkaMaterialUsageTopic)
	assert.Equal(t, models.DefaultPolicy(), cfg.Policy())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("PBV2_AMBIGUOUS_EDGES_STRICT", "true")
	t.Setenv("RESULT_CACHE_TTL", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 30*time.Second, cfg.ResultCacheTTL)
	assert.True(t, cfg.Policy().AmbiguousEdgesStrict)
}

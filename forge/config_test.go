package forge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePluginConfig_Defaults(t *testing.T) {
	cfg, err := ParsePluginConfig()
	require.NoError(t, err)
	assert.True(t, cfg.RegisterRpcs)
	assert.True(t, cfg.PublishEvents)
	assert.Equal(t, StoreKindNakama, cfg.Store)
	assert.Equal(t, "lootforge.db", cfg.SQLitePath)
	assert.Zero(t, cfg.BatchSize)
}

func TestParsePluginConfig_FromEnv(t *testing.T) {
	t.Setenv("LOOTFORGE_LOOT_CONFIG_FILE", "loot.yaml")
	t.Setenv("LOOTFORGE_REGISTER_RPCS", "false")
	t.Setenv("LOOTFORGE_STORE", "memory")
	t.Setenv("LOOTFORGE_BATCH_SIZE", "50")

	cfg, err := ParsePluginConfig()
	require.NoError(t, err)
	assert.Equal(t, "loot.yaml", cfg.LootConfigFile)
	assert.False(t, cfg.RegisterRpcs)
	assert.Equal(t, 50, cfg.BatchSize)

	store, err := cfg.OpenStore()
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)
}

func TestParsePluginConfig_UnknownStore(t *testing.T) {
	t.Setenv("LOOTFORGE_STORE", "redis")
	_, err := ParsePluginConfig()
	assert.Error(t, err)
}

func TestPluginConfig_Publishers(t *testing.T) {
	cfg := &PluginConfig{PublishEvents: true, FactLogDir: t.TempDir(), BatchSize: 10, BatchSchedule: "@every 1h"}
	publishers, closeAll, err := cfg.Publishers()
	require.NoError(t, err)
	require.Len(t, publishers, 1)
	assert.IsType(t, &BatchPublisher{}, publishers[0])
	assert.NoError(t, closeAll())

	cfg = &PluginConfig{PublishEvents: true}
	publishers, closeAll, err = cfg.Publishers()
	require.NoError(t, err)
	require.Len(t, publishers, 1)
	assert.IsType(t, NakamaEventPublisher{}, publishers[0])
	assert.NoError(t, closeAll())

	cfg = &PluginConfig{PublishEvents: true, BatchSize: 1, BatchSchedule: "bogus"}
	_, _, err = cfg.Publishers()
	assert.Error(t, err)
}

func TestPluginConfig_OpenSQLiteStore(t *testing.T) {
	cfg := &PluginConfig{Store: StoreKindSQLite, SQLitePath: t.TempDir() + "/loot.db"}
	store, err := cfg.OpenStore()
	require.NoError(t, err)
	sqliteStore, ok := store.(*SQLiteStore)
	require.True(t, ok)
	assert.NoError(t, sqliteStore.Close())
}

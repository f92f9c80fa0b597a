package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "does-not-exist.conf"))
	require.NoError(t, err)
	assert.Equal(t, 30, s.CollectIntervalS)
	assert.Equal(t, 900, s.SlowCollectIntervalS)
}

func TestLoad_ParsesFileAndPluginSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "canaryd.conf")
	contents := `[canaryd]
collect_interval_s = 45
api_key = file-key
debug = true

[plugin:services]
ignore = cron,ssh
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 45, s.CollectIntervalS)
	assert.Equal(t, "file-key", s.APIKeyValue)
	assert.True(t, s.Debug)
	assert.Equal(t, "cron,ssh", s.PluginSettings("services")["ignore"])
}

func TestLoad_EnvOverridesWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "canaryd.conf")
	require.NoError(t, os.WriteFile(path, []byte("[canaryd]\napi_key = file-key\n"), 0o600))

	t.Setenv("API_KEY", "env-key")
	t.Setenv("SERVER_ID", "env-server")

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-key", s.APIKeyValue)
	assert.Equal(t, "env-server", s.ServerIDVal)
}

func TestStore_UpdateReturnsChangedKeysOnly(t *testing.T) {
	store := NewStore(Default())

	changed := store.Update(map[string]interface{}{
		"collect_interval_s": float64(30), // matches default, no change
		"api_base":           "https://new.example.com",
	})

	assert.Equal(t, []string{"api_base"}, changed)
	assert.Equal(t, "https://new.example.com", store.Snapshot().APIBase())
}

func TestStore_SnapshotIsolatedFromConcurrentUpdate(t *testing.T) {
	store := NewStore(Default())
	snap := store.Snapshot()

	store.Update(map[string]interface{}{"collect_interval_s": float64(60)})

	assert.Equal(t, 30, snap.CollectIntervalS, "previously taken snapshot must not observe later updates")
	assert.Equal(t, 60, store.Snapshot().CollectIntervalS)
}

func TestStore_PluginSettingsAccessor(t *testing.T) {
	s := Default()
	s.PluginSections["services"] = map[string]string{"ignore": "cron"}
	store := NewStore(s)

	assert.Equal(t, "cron", store.Snapshot().PluginSettings("services")["ignore"])
	assert.Empty(t, store.Snapshot().PluginSettings("unknown"))
}

package config_test

import (
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/schemagate/config"
)

func TestHolder_Get(t *testing.T) {
	h, err := config.NewHolder(writeConfig(t, validConfig()), zerolog.Nop())
	require.NoError(t, err)
	defer h.Stop()

	got := h.Get()
	require.NotNil(t, got)
	assert.Equal(t, "apis", got.Catalog.Dir)
}

func TestHolder_NewHolderError(t *testing.T) {
	_, err := config.NewHolder(writeConfig(t, "logging:\n  level: loud\n"), zerolog.Nop())
	assert.Error(t, err)
}

func TestHolder_Reload(t *testing.T) {
	path := writeConfig(t, validConfig())

	h, err := config.NewHolder(path, zerolog.Nop())
	require.NoError(t, err)
	defer h.Stop()

	source := h.FlagSource()
	assert.False(t, source().ForceJSONMapSchema)

	require.NoError(t, os.WriteFile(path, []byte("schema:\n  force_json_map_schema: true\n"), 0644))
	require.NoError(t, h.Reload())

	// The same source observes the reloaded value.
	assert.True(t, source().ForceJSONMapSchema)
}

func TestHolder_ReloadInvalidConfig(t *testing.T) {
	path := writeConfig(t, validConfig())

	h, err := config.NewHolder(path, zerolog.Nop())
	require.NoError(t, err)
	defer h.Stop()

	var outcomes []error
	h.OnReload(func(err error) { outcomes = append(outcomes, err) })

	require.NoError(t, os.WriteFile(path, []byte("database:\n  driver: oracle\n"), 0644))
	assert.Error(t, h.Reload())

	// Old config kept
	assert.Equal(t, "sqlite", h.Get().Database.Driver)

	require.Len(t, outcomes, 1)
	assert.Error(t, outcomes[0])
}

func TestHolder_OnChange(t *testing.T) {
	path := writeConfig(t, validConfig())

	h, err := config.NewHolder(path, zerolog.Nop())
	require.NoError(t, err)
	defer h.Stop()

	var got *config.Config
	var outcomes []error
	h.OnChange(func(cfg *config.Config) { got = cfg })
	h.OnReload(func(err error) { outcomes = append(outcomes, err) })

	require.NoError(t, os.WriteFile(path, []byte("catalog:\n  dir: other\n"), 0644))
	require.NoError(t, h.Reload())

	require.NotNil(t, got)
	assert.Equal(t, "other", got.Catalog.Dir)
	assert.Equal(t, []error{nil}, outcomes)
}

func TestHolder_Static(t *testing.T) {
	cfg, err := config.LoadFromEnv()
	require.NoError(t, err)

	h := config.NewStaticHolder(cfg, zerolog.Nop())
	defer h.Stop()

	assert.Same(t, cfg, h.Get())
	assert.Error(t, h.Reload())
	assert.Error(t, h.WatchFile())
}

func TestHolder_WatchFile(t *testing.T) {
	path := writeConfig(t, validConfig())

	h, err := config.NewHolder(path, zerolog.Nop())
	require.NoError(t, err)
	defer h.Stop()

	var mu sync.Mutex
	var callCount int
	h.OnChange(func(cfg *config.Config) {
		mu.Lock()
		callCount++
		mu.Unlock()
	})

	require.NoError(t, h.WatchFile())

	require.NoError(t, os.WriteFile(path, []byte("catalog:\n  dir: watched\n"), 0644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return callCount > 0
	}, 2*time.Second, 20*time.Millisecond, "file watcher did not trigger reload")

	assert.Eventually(t, func() bool {
		return h.Get().Catalog.Dir == "watched"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestHolder_StopTwice(t *testing.T) {
	h, err := config.NewHolder(writeConfig(t, validConfig()), zerolog.Nop())
	require.NoError(t, err)

	h.Stop()
	h.Stop()
}

func TestHolder_ConcurrentAccess(t *testing.T) {
	path := writeConfig(t, validConfig())

	h, err := config.NewHolder(path, zerolog.Nop())
	require.NoError(t, err)
	defer h.Stop()

	source := h.FlagSource()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = h.Get()
				_ = source()
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 10; j++ {
			if err := h.Reload(); err != nil && !errors.Is(err, os.ErrNotExist) {
				t.Errorf("Reload error: %v", err)
			}
		}
	}()

	wg.Wait()
}

func TestReloadableFields(t *testing.T) {
	fields := config.ReloadableFields()
	assert.Contains(t, fields, "schema.force_json_map_schema")
	assert.Contains(t, fields, "logging.level")
}

func TestNonReloadableFields(t *testing.T) {
	fields := config.NonReloadableFields()
	assert.Contains(t, fields, "server.port")
	assert.Contains(t, fields, "database.dsn")
}

func validConfig() string {
	return `
catalog:
  dir: apis

schema:
  force_json_map_schema: false
`
}

package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/racesync/pkg/authority"
	"github.com/agentstation/racesync/pkg/consensus"
	"github.com/agentstation/racesync/pkg/provenance"
	"github.com/agentstation/racesync/pkg/races"
	"github.com/agentstation/racesync/pkg/sources"
	"github.com/agentstation/racesync/pkg/store"
)

// TestLoadConfig_Defaults verifies the defaults without any file or environment.
func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, store.DriverSQLite, config.Store.Driver)
	assert.Equal(t, "racesync.db", config.Store.DSN)
	assert.Equal(t, sources.DefaultConcurrency, config.Concurrency)
	assert.Equal(t, sources.DefaultTimeout, config.SourceTimeout)
	assert.Equal(t, consensus.DefaultTolerance, config.Tolerance)
	assert.True(t, config.Inference)
	assert.Equal(t, "auto", config.LogFormat)
	assert.Empty(t, config.LogLevel)
}

// TestLoadConfig_EnvironmentVariables verifies RACESYNC_ variables win over defaults.
func TestLoadConfig_EnvironmentVariables(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("RACESYNC_STORE_DRIVER", "postgres")
	t.Setenv("RACESYNC_STORE_DSN", "postgres://localhost/races")
	t.Setenv("RACESYNC_SYNC_SOURCE_TIMEOUT", "5s")
	t.Setenv("RACESYNC_LOG_LEVEL", "debug")

	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, store.DriverPostgres, config.Store.Driver)
	assert.Equal(t, "postgres://localhost/races", config.Store.DSN)
	assert.Equal(t, 5*time.Second, config.SourceTimeout)
	assert.Equal(t, "debug", config.LogLevel)
}

// TestLoadConfig_File verifies nested keys, weights and overrides from YAML.
func TestLoadConfig_File(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "racesync.yaml")
	doc := `
store:
  driver: files
  dir: /var/lib/racesync
sync:
  concurrency: 8
consensus:
  tolerance: 0.1
sources:
  weights:
    marathon_media: 0.5
  overrides:
    - path: variant.fee
      source: registration_platform
      weight: 1.0
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, path, config.ConfigFile)
	assert.Equal(t, store.Config{Driver: store.DriverFiles, Dir: "/var/lib/racesync"}, config.Store)
	assert.Equal(t, 8, config.Concurrency)
	assert.Equal(t, 0.1, config.Tolerance)
	assert.Equal(t, map[string]float64{"marathon_media": 0.5}, config.Weights)
	require.Len(t, config.Overrides, 1)
	assert.Equal(t, authority.Field{Path: "variant.fee", Source: sources.RegistrationPlatform, Weight: 1.0}, config.Overrides[0])

	auth, err := config.Authority()
	require.NoError(t, err)
	assert.Equal(t, 0.5, auth.Weight(sources.MarathonMedia, provenance.ScopeEvent, races.FieldName))
	assert.Equal(t, 1.0, auth.Weight(sources.RegistrationPlatform, provenance.ScopeVariant, races.FieldFee))
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestConfig_InvalidWeights(t *testing.T) {
	config := &Config{Weights: map[string]float64{"ai_search": 2}}
	_, err := config.Authority()
	require.Error(t, err)
}

func TestConfig_UpdateFromFlags(t *testing.T) {
	config := &Config{Format: "yaml", LogLevel: "warn"}
	config.UpdateFromFlags(true, false, true, "", "")
	assert.True(t, config.Verbose)
	assert.True(t, config.NoColor)
	assert.Equal(t, "yaml", config.Format)
	assert.Equal(t, "warn", config.LogLevel)

	config.UpdateFromFlags(false, false, false, "json", "trace")
	assert.Equal(t, "json", config.Format)
	assert.Equal(t, "trace", config.LogLevel)
}

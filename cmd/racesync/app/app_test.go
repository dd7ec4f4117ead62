package app

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/racesync"
	"github.com/agentstation/racesync/internal/cmd/output"
	"github.com/agentstation/racesync/pkg/consensus"
	"github.com/agentstation/racesync/pkg/edits"
	"github.com/agentstation/racesync/pkg/races"
	"github.com/agentstation/racesync/pkg/store"
)

const officialFeed = `
- event_id: e1
  event:
    name: Lakeside Marathon
    event_date: "2025-11-02"
  variants:
    - name: 半程马拉松
      distance: 21.0975
      fee: 100
`

func newTestApp(t *testing.T) (*App, *bytes.Buffer) {
	t.Helper()
	config := &Config{
		Store:         store.Config{Driver: store.DriverFiles, Dir: filepath.Join(t.TempDir(), "records")},
		Concurrency:   2,
		SourceTimeout: time.Second,
		Tolerance:     consensus.DefaultTolerance,
		Inference:     true,
		LogLevel:      "error",
		LogFormat:     "json",
		LogOutput:     "stderr",
	}
	var out bytes.Buffer
	logger := zerolog.Nop()
	a, err := New("1.0.0", "abc123", "2025-01-01", "test", WithConfig(config), WithLogger(&logger), WithOutput(&out))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	return a, &out
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// TestApp_New verifies app initialization.
func TestApp_New(t *testing.T) {
	a, _ := newTestApp(t)
	assert.Equal(t, "1.0.0", a.Version())
	assert.Equal(t, "abc123", a.Commit())
	assert.Equal(t, "2025-01-01", a.Date())
	assert.Equal(t, "test", a.BuiltBy())
	assert.NotNil(t, a.Logger())
	assert.NotNil(t, a.Config())
	assert.NotNil(t, a.Metrics())
}

// TestApp_Client_Singleton verifies concurrent Client() calls share one instance.
func TestApp_Client_Singleton(t *testing.T) {
	a, _ := newTestApp(t)

	const goroutines = 50
	var wg sync.WaitGroup
	clients := make([]racesync.Client, goroutines)
	errs := make([]error, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			clients[idx], errs[idx] = a.Client()
		}(i)
	}
	wg.Wait()

	for i := range clients {
		require.NoError(t, errs[i])
		assert.Same(t, clients[0], clients[i])
	}
}

func TestApp_ClientWithOptionsSharesStore(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()

	scoped, err := a.ClientWithOptions()
	require.NoError(t, err)
	_, err = scoped.Reconcile(ctx, "e1", []races.Candidate{{
		Source:  "official_website",
		EventID: "e1",
		Event:   races.CandidateEvent{Name: races.RawOf("Lakeside Marathon")},
	}})
	require.NoError(t, err)
	require.NoError(t, scoped.Close())

	shared, err := a.Client()
	require.NoError(t, err)
	rec, err := shared.Event(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "Lakeside Marathon", *rec.Event.Name)
}

func TestApp_UnknownStoreDriver(t *testing.T) {
	a, _ := newTestApp(t)
	err := a.Execute(context.Background(), []string{"list", "--store", "mongo"})
	require.Error(t, err)
}

func TestApp_InvalidFormat(t *testing.T) {
	a, _ := newTestApp(t)
	err := a.Execute(context.Background(), []string{"list", "-o", "xml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

// TestApp_SyncImportShow runs the main workflow through the command line.
func TestApp_SyncImportShow(t *testing.T) {
	ctx := context.Background()
	a, out := newTestApp(t)
	feed := writeFile(t, "official_website.yaml", officialFeed)
	metricsPath := filepath.Join(t.TempDir(), "racesync.prom")

	require.NoError(t, a.Execute(ctx, []string{"sync", feed, "-o", "json", "--metrics-textfile", metricsPath}))
	var views []output.ResultView
	require.NoError(t, json.Unmarshal(out.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "e1", views[0].EventID)
	assert.True(t, views[0].Saved)
	assert.Equal(t, []string{"official_website"}, views[0].Sources)

	prom, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `racesync_passes_total{outcome="changed"} 1`)

	out.Reset()
	csv := writeFile(t, "fixes.csv", "event_id,variant,field,value\ne1,半马,fee,999\ne1,,price_per_km,1\n")
	require.NoError(t, a.Execute(ctx, []string{"import", csv, "-o", "json"}))
	var report edits.Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Len(t, report.Applied, 1)
	assert.Equal(t, []string{"e1"}, report.Saved)

	err = a.Execute(ctx, []string{"import", csv, "--strict", "-o", "json"})
	require.Error(t, err)

	// the manual fee survives a new sync
	out.Reset()
	require.NoError(t, a.Execute(ctx, []string{"sync", feed, "-o", "json"}))
	views = nil
	require.NoError(t, json.Unmarshal(out.Bytes(), &views))
	assert.False(t, views[0].Saved)

	out.Reset()
	require.NoError(t, a.Execute(ctx, []string{"show", "e1", "-o", "json"}))
	var rec races.Record
	require.NoError(t, json.Unmarshal(out.Bytes(), &rec))
	require.Len(t, rec.Variants, 1)
	assert.Equal(t, 999.0, *rec.Variants[0].Fee)
	assert.Equal(t, 47.35, *rec.Variants[0].UnitPrice)
	assert.True(t, rec.Variants[0].ManualFields.Has(races.FieldFee))

	out.Reset()
	require.NoError(t, a.Execute(ctx, []string{"show", "e1", "-o", "table"}))
	assert.Contains(t, out.String(), "Lakeside Marathon")
	assert.Contains(t, out.String(), "半程马拉松")
	assert.Contains(t, out.String(), "manual")

	out.Reset()
	require.NoError(t, a.Execute(ctx, []string{"list", "--ids"}))
	assert.Equal(t, "e1\n", out.String())
}

func TestApp_SyncDryRun(t *testing.T) {
	ctx := context.Background()
	a, out := newTestApp(t)
	feed := writeFile(t, "wechat_official.yaml", officialFeed)

	require.NoError(t, a.Execute(ctx, []string{"sync", feed, "--dry-run", "-o", "json"}))
	var views []output.ResultView
	require.NoError(t, json.Unmarshal(out.Bytes(), &views))
	require.Len(t, views, 1)
	assert.True(t, views[0].DryRun)
	assert.False(t, views[0].Saved)

	err := a.Execute(ctx, []string{"show", "e1"})
	require.Error(t, err)
}

func TestApp_Version(t *testing.T) {
	a, out := newTestApp(t)
	require.NoError(t, a.Execute(context.Background(), []string{"version"}))
	assert.Contains(t, out.String(), "racesync 1.0.0")
}

package sync

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/racesync"
	"github.com/agentstation/racesync/internal/appcontext"
	"github.com/agentstation/racesync/pkg/sources"
	"github.com/agentstation/racesync/pkg/store"
)

func TestParseFeeds(t *testing.T) {
	feeds, err := ParseFeeds([]string{
		"feeds/official_website.yaml",
		"ai_search=/tmp/answers.json",
		"./a=b/media.yaml",
		"https://feeds.example.com/e/{event_id}?fmt=json",
		"wechat_official=https://wx.example.com/{event_id}",
	}, nil)
	require.NoError(t, err)
	require.Len(t, feeds, 5)

	file := func(i int) *sources.File {
		f, ok := feeds[i].(*sources.File)
		require.True(t, ok)
		return f
	}
	assert.Equal(t, sources.OfficialWebsite, file(0).ID())
	assert.Equal(t, "feeds/official_website.yaml", file(0).Path())
	assert.Equal(t, sources.AISearch, file(1).ID())
	assert.Equal(t, "/tmp/answers.json", file(1).Path())
	// a separator before "=" means the argument is a path
	assert.Equal(t, "./a=b/media.yaml", file(2).Path())
	assert.Equal(t, sources.ID("media"), file(2).ID())

	feed, ok := feeds[3].(*sources.HTTP)
	require.True(t, ok)
	assert.Equal(t, sources.ID("feeds.example.com"), feed.ID())
	assert.Equal(t, "https://feeds.example.com/e/e1?fmt=json", feed.URL("e1"))
	assert.Equal(t, sources.WechatOfficial, feeds[4].ID())

	_, err = ParseFeeds([]string{"media="}, nil)
	require.Error(t, err)
	_, err = ParseFeeds([]string{"https://example.com/feed.json"}, nil)
	require.Error(t, err)
}

func TestEventIDs(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.yaml")
	b := filepath.Join(dir, "b.yaml")
	require.NoError(t, os.WriteFile(a, []byte("- event_id: e2\n- event_id: e1\n"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("- event_id: e1\n- event_id: e3\n"), 0o644))
	feed, err := sources.NewHTTP("feed", "https://example.com/{event_id}", nil)
	require.NoError(t, err)

	ids, err := EventIDs([]sources.Collector{sources.NewFile("a", a), feed, sources.NewFile("b", b)})
	require.NoError(t, err)
	assert.Equal(t, []string{"e2", "e1", "e3"}, ids)

	_, err = EventIDs([]sources.Collector{sources.NewFile("c", filepath.Join(dir, "missing.yaml"))})
	require.Error(t, err)
}

func TestSyncCommand(t *testing.T) {
	mem := store.NewMemory()
	app := &appcontext.Mock{
		ClientWithOptionsFunc: func(opts ...racesync.Option) (racesync.Client, error) {
			return racesync.New(append([]racesync.Option{racesync.WithStore(mem)}, opts...)...)
		},
	}
	path := filepath.Join(t.TempDir(), "registration_platform.yaml")
	doc := `
event_id: e1
event:
  name: Hill Run
variants:
  - name: 10公里
    distance: 10
    fee: 80
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	var out bytes.Buffer
	cmd := NewCommand(app)
	cmd.SetOut(&out)
	cmd.SetArgs([]string{path})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), `"saved": true`)

	rec, err := mem.Load(context.Background(), "e1")
	require.NoError(t, err)
	require.Len(t, rec.Variants, 1)
	assert.Equal(t, 8.0, *rec.Variants[0].UnitPrice)
}

func TestSyncCommandWithoutEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("[]\n"), 0o644))

	cmd := NewCommand(&appcontext.Mock{})
	cmd.SetArgs([]string{path})
	require.Error(t, cmd.ExecuteContext(context.Background()))
}

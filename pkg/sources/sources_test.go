package sources

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/racesync/pkg/errors"
	"github.com/agentstation/racesync/pkg/races"
)

func candidate(source ID, eventID, name string) races.Candidate {
	return races.Candidate{
		Source:  source.String(),
		EventID: eventID,
		Event:   races.CandidateEvent{Name: races.RawOf(name)},
	}
}

func TestCollectKeepsCollectorOrder(t *testing.T) {
	slow := CollectorFunc{Source: OfficialWebsite, Fn: func(ctx context.Context, id string) (*races.Candidate, error) {
		time.Sleep(20 * time.Millisecond)
		c := candidate(OfficialWebsite, id, "slow")
		return &c, nil
	}}
	fast := NewStatic(MarathonMedia, candidate(MarathonMedia, "e1", "fast"))

	report, err := Collect(context.Background(), "e1", []Collector{slow, fast})
	require.NoError(t, err)
	require.Len(t, report.Candidates, 2)
	assert.Equal(t, "official_website", report.Candidates[0].Source)
	assert.Equal(t, "marathon_media", report.Candidates[1].Source)
	assert.Empty(t, report.Failures)
	assert.Equal(t, []ID{OfficialWebsite, MarathonMedia}, report.Available())
}

func TestCollectRecordsFailures(t *testing.T) {
	broken := CollectorFunc{Source: AISearch, Fn: func(context.Context, string) (*races.Candidate, error) {
		return nil, errors.New("boom")
	}}
	ok := NewStatic(PrimaryScrape, candidate(PrimaryScrape, "e1", "ok"))

	report, err := Collect(context.Background(), "e1", []Collector{broken, ok})
	require.NoError(t, err)
	require.Len(t, report.Candidates, 1)
	require.Len(t, report.Failures, 1)
	assert.True(t, errors.IsSourceUnavailable(report.Failures[0]))
	assert.Equal(t, "ai_search", report.Failures[0].Source)
	assert.Contains(t, report.Summary(), "unavailable: ai_search")
}

func TestCollectTimeout(t *testing.T) {
	hang := CollectorFunc{Source: WechatOfficial, Fn: func(ctx context.Context, _ string) (*races.Candidate, error) {
		time.Sleep(time.Second)
		return nil, nil
	}}

	start := time.Now()
	report, err := Collect(context.Background(), "e1", []Collector{hang}, WithTimeout(20*time.Millisecond))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	require.Len(t, report.Failures, 1)
	assert.True(t, errors.IsTimeout(report.Failures[0]))
}

func TestCollectRecoversPanics(t *testing.T) {
	bad := CollectorFunc{Source: AISearch, Fn: func(context.Context, string) (*races.Candidate, error) {
		panic("nil map")
	}}
	report, err := Collect(context.Background(), "e1", []Collector{bad})
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
}

func TestCollectRejectsForeignEvent(t *testing.T) {
	wrong := CollectorFunc{Source: AISearch, Fn: func(context.Context, string) (*races.Candidate, error) {
		c := candidate(AISearch, "other", "x")
		return &c, nil
	}}
	report, err := Collect(context.Background(), "e1", []Collector{wrong})
	require.NoError(t, err)
	assert.Empty(t, report.Candidates)
	assert.Len(t, report.Failures, 1)
}

func TestCollectFillsSource(t *testing.T) {
	anon := CollectorFunc{Source: MarathonMedia, Fn: func(context.Context, string) (*races.Candidate, error) {
		return &races.Candidate{Event: races.CandidateEvent{Name: races.RawOf("x")}}, nil
	}}
	report, err := Collect(context.Background(), "e1", []Collector{anon})
	require.NoError(t, err)
	require.Len(t, report.Candidates, 1)
	assert.Equal(t, "marathon_media", report.Candidates[0].Source)
	assert.Equal(t, "e1", report.Candidates[0].EventID)
	assert.Equal(t, 1, report.Stats[0].Fields)
}

func TestCollectBoundsConcurrency(t *testing.T) {
	var running, peak int32
	mk := func(id ID) Collector {
		return CollectorFunc{Source: id, Fn: func(context.Context, string) (*races.Candidate, error) {
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return nil, nil
		}}
	}
	var cs []Collector
	for _, id := range IDs() {
		cs = append(cs, mk(id))
	}

	_, err := Collect(context.Background(), "e1", cs, WithConcurrency(2))
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestCollectCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Collect(ctx, "e1", []Collector{NewStatic(AISearch)})
	require.Error(t, err)
	assert.True(t, errors.IsCanceled(err))
}

func TestOptionValidation(t *testing.T) {
	_, err := Collect(context.Background(), "e1", nil, WithConcurrency(0))
	assert.True(t, errors.IsValidationError(err))
	_, err = Collect(context.Background(), "e1", nil, WithTimeout(0))
	assert.True(t, errors.IsValidationError(err))
}

func TestFileCollector(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "media.yaml")
	doc := `
- event_id: e1
  event:
    name: 城市马拉松
    total_scale: "30000"
  variants:
    - name: 全程马拉松
      distance: 42.195
      fee: 120
- event_id: e2
  event:
    name: 乡村半马
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	f := NewFile(MarathonMedia, path)
	ids, err := f.EventIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"e1", "e2"}, ids)

	c, err := f.Collect(context.Background(), "e1")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "marathon_media", c.Source)
	require.Len(t, c.Variants, 1)
	assert.Equal(t, "42.195", c.Variants[0].Distance.Text)

	missing, err := f.Collect(context.Background(), "e9")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDecodeSingleCandidate(t *testing.T) {
	got, err := DecodeCandidates([]byte(`{"source": "ai_search", "event_id": "e1", "event": {"name": "x"}}`))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ai_search", got[0].Source)
}

func TestFileCollectorMissingFile(t *testing.T) {
	f := NewFile(AISearch, filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := f.Collect(context.Background(), "e1")
	require.Error(t, err)
}

func TestSetReplacesByID(t *testing.T) {
	s := NewSet(NewStatic(AISearch), NewStatic(MarathonMedia))
	replacement := NewStatic(AISearch, candidate(AISearch, "e1", "new"))
	s.Add(replacement)
	assert.Equal(t, 2, s.Len())
	got, ok := s.Get(AISearch)
	require.True(t, ok)
	assert.Same(t, replacement, got)
	assert.Equal(t, AISearch, s.List()[0].ID())
	assert.True(t, AISearch.IsKnown())
	assert.False(t, Manual.IsKnown())
}

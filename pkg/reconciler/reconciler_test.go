package reconciler

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/racesync/internal/metrics"
	"github.com/agentstation/racesync/internal/utils/ptr"
	"github.com/agentstation/racesync/pkg/consensus"
	"github.com/agentstation/racesync/pkg/errors"
	"github.com/agentstation/racesync/pkg/provenance"
	"github.com/agentstation/racesync/pkg/races"
	"github.com/agentstation/racesync/pkg/sources"
	"github.com/agentstation/racesync/pkg/store"
)

const eventID = "2025-test-marathon"

func half(fee, distance string) races.CandidateVariant {
	return races.CandidateVariant{
		Name:     races.RawOf("半程马拉松"),
		Fee:      races.RawOf(fee),
		Distance: races.RawOf(distance),
	}
}

func candidate(source sources.ID, variants ...races.CandidateVariant) races.Candidate {
	return races.Candidate{
		Source:   source.String(),
		EventID:  eventID,
		Event:    races.CandidateEvent{Name: races.RawOf("2025 Test City Marathon")},
		Variants: variants,
	}
}

func newReconciler(t *testing.T, opts ...Option) (Reconciler, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	r, err := New(append([]Option{WithStore(mem)}, opts...)...)
	require.NoError(t, err)
	return r, mem
}

func TestNewRequiresStore(t *testing.T) {
	_, err := New()
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))

	_, err = New(WithStore(nil))
	assert.True(t, errors.IsValidationError(err))
}

func TestReconcileWeightedConsensus(t *testing.T) {
	r, mem := newReconciler(t)

	res, err := r.Reconcile(context.Background(), Input{
		EventID: eventID,
		Candidates: []races.Candidate{
			candidate(sources.WechatOfficial, half("100", "21.0975")),
			candidate(sources.AISearch, races.CandidateVariant{
				Name: races.RawOf("半马"),
				Fee:  races.RawOf("100元"),
			}),
		},
	})
	require.NoError(t, err)
	assert.True(t, res.WasSaved())
	assert.True(t, res.Changeset.Created)
	assert.Equal(t, 1, mem.Saves())

	require.Len(t, res.Record.Variants, 1)
	v := res.Record.Variants[0]
	assert.Equal(t, "半程马拉松", v.DisplayName())
	assert.NotEmpty(t, v.ID)
	require.NotNil(t, v.Fee)
	assert.Equal(t, 100.0, *v.Fee)
	require.NotNil(t, v.UnitPrice)
	assert.Equal(t, 4.74, *v.UnitPrice)
	assert.InDelta(t, 0.8, v.Confidence[races.FieldFee], 1e-9)

	d, ok := res.Decision(provenance.ScopeVariant, "半程马拉松", races.FieldFee)
	require.True(t, ok)
	assert.Equal(t, consensus.MethodWeightedMean, d.Method)
	assert.Equal(t, []string{"wechat_official", "ai_search"}, d.Sources)
	assert.True(t, d.Changed)

	assert.Equal(t, 1, res.Metadata.Stats.VariantsCreated)
	assert.Equal(t, 2, res.Metadata.Stats.Candidates)
	assert.Equal(t, []string{"wechat_official", "ai_search"}, res.Metadata.Sources)
}

func TestReconcileIsIdempotent(t *testing.T) {
	r, mem := newReconciler(t)
	in := Input{
		EventID: eventID,
		Candidates: []races.Candidate{
			candidate(sources.OfficialWebsite, half("120", "21"), races.CandidateVariant{
				Name:  races.RawOf("10公里健康跑"),
				Quota: races.RawOf("3000"),
			}),
			candidate(sources.MarathonMedia, half("120", "21")),
		},
	}

	first, err := r.Reconcile(context.Background(), in)
	require.NoError(t, err)
	require.True(t, first.WasSaved())

	second, err := r.Reconcile(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, second.HasChanges(), second.Changeset.String())
	assert.False(t, second.WasSaved())
	assert.Equal(t, 1, mem.Saves())

	stored, err := mem.Load(context.Background(), eventID)
	require.NoError(t, err)
	hm := stored.Variants[0]
	assert.Equal(t, 5.71, *hm.UnitPrice)
	assert.Equal(t, 3, second.Metadata.Stats.VariantsMatched)
	assert.Zero(t, second.Metadata.Stats.VariantsCreated)
}

func TestReconcileKeepsManualFields(t *testing.T) {
	ctx := context.Background()
	r, mem := newReconciler(t)

	rec := races.NewRecord(eventID)
	rec.Event.Name = ptr.String("Test Marathon")
	rec.Event.ManualFields = provenance.NewSet(races.FieldName)
	rec.Variants = []races.Variant{{
		ID:           "v1",
		Name:         ptr.String("半程马拉松"),
		Fee:          ptr.Float64(999),
		ManualFields: provenance.NewSet(races.FieldFee),
	}}
	require.NoError(t, mem.Save(ctx, rec))

	res, err := r.Reconcile(ctx, Input{
		EventID:    eventID,
		Candidates: []races.Candidate{candidate(sources.OfficialWebsite, half("50", "21.0975"))},
	})
	require.NoError(t, err)

	v := res.Record.VariantByID("v1")
	require.NotNil(t, v)
	assert.Equal(t, 999.0, *v.Fee)
	assert.Equal(t, 21.0975, *v.Distance)
	assert.Equal(t, 47.35, *v.UnitPrice)
	assert.Equal(t, "Test Marathon", *res.Record.Event.Name)
	assert.Equal(t, 2, res.Metadata.Stats.ProtectedSkips)

	d, ok := res.Decision(provenance.ScopeVariant, "半程马拉松", races.FieldFee)
	require.True(t, ok)
	assert.True(t, d.Protected)
	assert.False(t, d.Changed)
}

func TestReconcilePersistenceFailure(t *testing.T) {
	mem := store.NewMemory()
	m := metrics.New()
	r, err := New(WithStore(store.Failing{Store: mem}), WithMetrics(m))
	require.NoError(t, err)

	_, err = r.Reconcile(context.Background(), Input{
		EventID:    eventID,
		Candidates: []races.Candidate{candidate(sources.OfficialWebsite, half("100", "21"))},
	})
	require.Error(t, err)
	assert.True(t, errors.IsPersistence(err))

	var pe *errors.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "save", pe.Operation)
	n, err := testutil.GatherAndCount(m.Registry(), "racesync_passes_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReconcileDryRun(t *testing.T) {
	r, mem := newReconciler(t, WithDryRun(true))

	res, err := r.Reconcile(context.Background(), Input{
		EventID:    eventID,
		Candidates: []races.Candidate{candidate(sources.OfficialWebsite, half("100", "21"))},
	})
	require.NoError(t, err)
	assert.True(t, res.HasChanges())
	assert.False(t, res.WasSaved())
	assert.Zero(t, mem.Saves())
	assert.Contains(t, res.Summary(), "Dry run completed")
}

func TestReconcileInfersMissingFields(t *testing.T) {
	r, _ := newReconciler(t)

	res, err := r.Reconcile(context.Background(), Input{
		EventID: eventID,
		Candidates: []races.Candidate{candidate(sources.OfficialWebsite, races.CandidateVariant{
			Name:  races.RawOf("10公里健康跑"),
			Quota: races.RawOf("3000"),
		})},
	})
	require.NoError(t, err)

	v := res.Record.Variants[0]
	assert.Equal(t, 10.0, *v.Distance)
	assert.Equal(t, 80.0, *v.Fee)
	assert.Equal(t, 8.0, *v.UnitPrice)
	assert.True(t, v.Inferred.Has(races.FieldDistance))
	assert.True(t, v.Inferred.Has(races.FieldFee))
	assert.InDelta(t, 0.6, v.Confidence[races.FieldFee], 1e-9)

	ev := res.Record.Event
	require.NotNil(t, ev.TotalScale)
	assert.Equal(t, 3000, *ev.TotalScale)
	assert.True(t, ev.Inferred.Has(races.FieldTotalScale))
	assert.Equal(t, "马拉松", *ev.Type)

	// a later observation replaces the inferred value
	res, err = r.Reconcile(context.Background(), Input{
		EventID: eventID,
		Candidates: []races.Candidate{candidate(sources.OfficialWebsite, races.CandidateVariant{
			Name: races.RawOf("10公里健康跑"),
			Fee:  races.RawOf("90"),
		})},
	})
	require.NoError(t, err)
	v = res.Record.Variants[0]
	assert.Equal(t, 90.0, *v.Fee)
	assert.False(t, v.Inferred.Has(races.FieldFee))
	assert.True(t, v.Inferred.Has(races.FieldDistance))
	assert.Equal(t, 1.0, v.Confidence[races.FieldFee])
}

func TestReconcileWithoutInference(t *testing.T) {
	r, _ := newReconciler(t, WithInference(nil))

	res, err := r.Reconcile(context.Background(), Input{
		EventID: eventID,
		Candidates: []races.Candidate{candidate(sources.OfficialWebsite, races.CandidateVariant{
			Name: races.RawOf("10公里健康跑"),
		})},
	})
	require.NoError(t, err)
	assert.Nil(t, res.Record.Variants[0].Distance)
	assert.Nil(t, res.Record.Event.Type)
}

func TestReconcileParseFailuresAreWarnings(t *testing.T) {
	m := metrics.New()
	r, _ := newReconciler(t, WithMetrics(m))

	res, err := r.Reconcile(context.Background(), Input{
		EventID: eventID,
		Candidates: []races.Candidate{
			candidate(sources.OfficialWebsite, half("abc", "21")),
			candidate(sources.MarathonMedia, half("待定", "21")),
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.True(t, errors.IsParseFailure(res.Warnings[0]))
	assert.Equal(t, 1, res.Metadata.Stats.ParseFailures)

	// no source produced a usable fee, so the category midpoint applies
	v := res.Record.Variants[0]
	assert.Equal(t, 115.0, *v.Fee)
	assert.True(t, v.Inferred.Has(races.FieldFee))
}

func TestReconcileClustersNewVariants(t *testing.T) {
	r, _ := newReconciler(t)

	res, err := r.Reconcile(context.Background(), Input{
		EventID: eventID,
		Candidates: []races.Candidate{
			candidate(sources.OfficialWebsite,
				races.CandidateVariant{Name: races.RawOf("全程马拉松"), Fee: races.RawOf("150")},
				races.CandidateVariant{Name: races.RawOf("5公里迷你跑"), Fee: races.RawOf("60")},
			),
			candidate(sources.MarathonMedia,
				races.CandidateVariant{Name: races.RawOf("全马"), Fee: races.RawOf("150")},
				races.CandidateVariant{Name: races.RawOf("15公里迷你跑"), Fee: races.RawOf("70")},
			),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"全程马拉松", "5公里迷你跑", "15公里迷你跑"}, res.Record.VariantNames())
	assert.Equal(t, 3, res.Metadata.Stats.VariantsCreated)
	assert.Equal(t, 42.195, *res.Record.Variants[0].Distance)
}

func TestReconcileKeepsValidDuplicateVariant(t *testing.T) {
	r, _ := newReconciler(t)

	res, err := r.Reconcile(context.Background(), Input{
		EventID: eventID,
		Candidates: []races.Candidate{
			candidate(sources.WechatOfficial,
				races.CandidateVariant{Name: races.RawOf("半马"), Fee: races.RawOf("0")},
				races.CandidateVariant{Name: races.RawOf("半程马拉松"), Fee: races.RawOf("120")},
			),
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Record.Variants, 1)
	v := res.Record.Variants[0]
	require.NotNil(t, v.Fee)
	assert.Equal(t, 120.0, *v.Fee)
	assert.False(t, v.Inferred.Has(races.FieldFee))
	assert.InDelta(t, 0.9, v.Confidence[races.FieldFee], 1e-9)
}

func TestReconcileReportsAmbiguousMatches(t *testing.T) {
	ctx := context.Background()
	r, mem := newReconciler(t)

	rec := races.NewRecord(eventID)
	rec.Variants = []races.Variant{
		{ID: "a", Name: ptr.String("半程马拉松")},
		{ID: "b", Name: ptr.String("半马精英组")},
	}
	require.NoError(t, mem.Save(ctx, rec))

	res, err := r.Reconcile(ctx, Input{
		EventID: eventID,
		Candidates: []races.Candidate{candidate(sources.OfficialWebsite, races.CandidateVariant{
			Name: races.RawOf("half marathon"),
			Fee:  races.RawOf("100"),
		})},
	})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.ErrorIs(t, res.Warnings[0], errors.ErrAmbiguousMatch)
	assert.Equal(t, 100.0, *res.Record.VariantByID("a").Fee)
	assert.Nil(t, res.Record.VariantByID("b").Fee)
}

func TestReconcileSkipsForeignCandidates(t *testing.T) {
	r, _ := newReconciler(t)
	other := candidate(sources.OfficialWebsite, half("100", "21"))
	other.EventID = "another-event"

	res, err := r.Reconcile(context.Background(), Input{EventID: eventID, Candidates: []races.Candidate{other}})
	require.NoError(t, err)
	assert.Zero(t, res.Metadata.Stats.Candidates)
	assert.False(t, res.HasChanges())
}

func TestReconcileCanceled(t *testing.T) {
	r, mem := newReconciler(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Reconcile(ctx, Input{EventID: eventID})
	require.Error(t, err)
	assert.True(t, errors.IsCanceled(err))
	assert.Zero(t, mem.Saves())
}

func TestSyncContinuesWithoutFailedSources(t *testing.T) {
	m := metrics.New()
	r, _ := newReconciler(t, WithMetrics(m))

	broken := sources.CollectorFunc{Source: sources.AISearch, Fn: func(context.Context, string) (*races.Candidate, error) {
		return nil, errors.New("rate limited")
	}}
	official := sources.NewStatic(sources.OfficialWebsite, candidate(sources.OfficialWebsite, half("100", "21")))

	res, err := r.Sync(context.Background(), eventID, []sources.Collector{broken, official})
	require.NoError(t, err)
	require.NotNil(t, res.Collection)
	require.Len(t, res.Collection.Failures, 1)
	assert.Equal(t, "ai_search", res.Collection.Failures[0].Source)
	assert.True(t, res.WasSaved())
	assert.Equal(t, 100.0, *res.Record.Variants[0].Fee)
	n, err := testutil.GatherAndCount(m.Registry(), "racesync_source_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDecisionString(t *testing.T) {
	d := Decision{
		Scope:      provenance.ScopeVariant,
		Owner:      "半程马拉松",
		Field:      races.FieldFee,
		Value:      races.Number(races.KindFee, 100),
		Confidence: 0.8,
		Method:     consensus.MethodWeightedMean,
		Changed:    true,
	}
	assert.Equal(t, "variant 半程马拉松.fee = 100 (weighted_mean, 0.80)", d.String())

	d.Protected = true
	assert.Contains(t, d.String(), "kept (manual)")
}

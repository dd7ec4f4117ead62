// Package reconciler merges candidate records from several sources into the
// stored record of one event. Every field of the event and of each matched
// variant goes through the same steps: manually fixed fields are kept,
// everything else is resolved by consensus, and fields no source reported
// fall back to inference. The merged record is saved in one write, and only
// when something changed.
package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agentstation/racesync/internal/metrics"
	"github.com/agentstation/racesync/pkg/consensus"
	"github.com/agentstation/racesync/pkg/differ"
	"github.com/agentstation/racesync/pkg/errors"
	"github.com/agentstation/racesync/pkg/inference"
	"github.com/agentstation/racesync/pkg/logging"
	"github.com/agentstation/racesync/pkg/provenance"
	"github.com/agentstation/racesync/pkg/races"
	"github.com/agentstation/racesync/pkg/sources"
)

// Reconciler is the main interface for reconciling one event from multiple sources.
type Reconciler interface {
	// Reconcile merges already collected candidates into the stored record.
	Reconcile(ctx context.Context, in Input) (*Result, error)

	// Sync collects candidates from the collectors, then reconciles them.
	Sync(ctx context.Context, eventID string, collectors []sources.Collector) (*Result, error)
}

// Input is the work for one pass.
type Input struct {
	EventID    string
	Candidates []races.Candidate
}

// reconciler is the default implementation of Reconciler.
type reconciler struct {
	opts   *options
	differ differ.Differ
}

// New creates a new Reconciler with options.
func New(opts ...Option) (Reconciler, error) {
	options, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}
	return &reconciler{
		opts:   options,
		differ: differ.New(differ.WithMetadata(true)),
	}, nil
}

// pass holds the state of one reconciliation.
type pass struct {
	result     *Result
	logger     *zerolog.Logger
	provenance provenance.Store
	record     *races.Record
}

// Sync collects then reconciles.
func (r *reconciler) Sync(ctx context.Context, eventID string, collectors []sources.Collector) (*Result, error) {
	start := time.Now()
	report, err := sources.Collect(ctx, eventID, collectors, r.opts.collect...)
	if err != nil {
		r.opts.metrics.Pass(outcomeFor(err), time.Since(start))
		return nil, err
	}
	for _, f := range report.Failures {
		r.opts.metrics.SourceFailure(f.Source)
	}

	result, err := r.Reconcile(ctx, Input{EventID: eventID, Candidates: report.Candidates})
	if err != nil {
		return nil, err
	}
	result.Collection = report
	return result, nil
}

// Reconcile performs one pass for one event.
func (r *reconciler) Reconcile(ctx context.Context, in Input) (*Result, error) {
	if in.EventID == "" {
		return nil, errors.NewValidationError("event_id", in.EventID, "cannot be empty")
	}

	passID := uuid.NewString()
	ctx = logging.WithPass(logging.WithEvent(ctx, in.EventID), passID)
	logger := logging.FromContext(ctx)

	result := &Result{
		PassID:  passID,
		EventID: in.EventID,
		Metadata: ResultMetadata{
			StartTime: time.Now(),
			DryRun:    r.opts.dryRun,
		},
	}

	fail := func(err error) (*Result, error) {
		r.opts.metrics.Pass(outcomeFor(err), time.Since(result.Metadata.StartTime))
		logger.Error().Err(err).Msg("reconciliation failed")
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return fail(fmt.Errorf("%w: %w", errors.ErrCanceled, err))
	}

	// Step 1: Load the stored record and its protections
	stored, err := r.opts.store.Load(ctx, in.EventID)
	switch {
	case errors.IsNotFound(err):
		stored = nil
	case err != nil:
		return fail(errors.NewPersistenceError("load", in.EventID, err))
	}

	merged := races.NewRecord(in.EventID)
	if stored != nil {
		merged = stored.Clone()
	}

	p := &pass{
		result:     result,
		logger:     logger,
		provenance: loadProvenance(merged),
		record:     merged,
	}

	// Step 2: Normalize every candidate value
	obs := r.observe(ctx, p, in.Candidates)

	// Step 3: Match incoming variants to stored ones, creating the rest
	targets := r.matchVariants(ctx, p, obs.variants)

	if err := ctx.Err(); err != nil {
		return fail(fmt.Errorf("%w: %w", errors.ErrCanceled, err))
	}

	// Step 4: Resolve variant fields first so event inference sees quotas
	for _, t := range targets {
		r.resolveVariant(p, t)
	}
	r.resolveEvent(p, obs.event)

	// Step 5: Detect changes
	result.Record = merged
	result.Changeset = r.differ.Records(stored, merged)

	outcome := metrics.OutcomeUnchanged
	switch {
	case result.Changeset.IsEmpty():
	case r.opts.dryRun:
		outcome = metrics.OutcomeDryRun
	default:
		// Step 6: One logical write
		if err := ctx.Err(); err != nil {
			return fail(fmt.Errorf("%w: %w", errors.ErrCanceled, err))
		}
		if err := r.opts.store.Save(ctx, merged); err != nil {
			return fail(errors.NewPersistenceError("save", in.EventID, err))
		}
		result.Metadata.Saved = true
		outcome = metrics.OutcomeChanged
	}

	result.Metadata.EndTime = time.Now()
	result.Metadata.Duration = result.Metadata.EndTime.Sub(result.Metadata.StartTime)

	if result.HasChanges() && !r.opts.dryRun {
		r.opts.metrics.FieldsWritten(string(provenance.ScopeEvent), len(result.Changeset.Event))
		r.opts.metrics.FieldsWritten(string(provenance.ScopeVariant), result.Changeset.Summary.VariantFields+countFields(result.Changeset.VariantsAdded))
	}
	r.opts.metrics.Pass(outcome, result.Metadata.Duration)

	stats := result.Metadata.Stats
	logger.Info().
		Str("outcome", outcome).
		Int("candidates", stats.Candidates).
		Int("changes", result.Changeset.Summary.TotalChanges).
		Int("variants_created", stats.VariantsCreated).
		Int("protected_skips", stats.ProtectedSkips).
		Int("parse_failures", stats.ParseFailures).
		Dur("duration", result.Metadata.Duration).
		Msg("reconciled event")

	return result, nil
}

func outcomeFor(err error) string {
	if errors.IsCanceled(err) {
		return metrics.OutcomeCanceled
	}
	return metrics.OutcomeFailed
}

func countFields(vs []races.Variant) int {
	n := 0
	for i := range vs {
		for _, f := range races.VariantFields {
			if _, ok := vs[i].Get(f.Name); ok {
				n++
			}
		}
	}
	return n
}

// loadProvenance seeds a provenance store from the stored record.
func loadProvenance(rec *races.Record) provenance.Store {
	ps := provenance.NewStore()
	ps.Load(provenance.ScopeEvent, rec.Event.ExternalID, rec.Event.ManualFields)
	for i := range rec.Variants {
		ps.Load(provenance.ScopeVariant, rec.Variants[i].ID, rec.Variants[i].ManualFields)
	}
	return ps
}

// entity is the field access shared by events and variants.
type entity interface {
	Get(field string) (races.Value, bool)
	Set(field string, v races.Value) error
}

// bookkeeping holds an entity's inferred set and confidence map.
type bookkeeping struct {
	inferred   *provenance.Set
	confidence *map[string]float64
}

func (b bookkeeping) setConfidence(field string, c float64) {
	if *b.confidence == nil {
		*b.confidence = make(map[string]float64)
	}
	(*b.confidence)[field] = c
}

// resolveField applies protection, consensus and inference to one field.
func (r *reconciler) resolveField(p *pass, scope provenance.Scope, ownerID string, e entity, bk bookkeeping, field races.Field, obs []consensus.Observation, infer func() (inference.Proposal, bool)) Decision {
	d := Decision{Scope: scope, Field: field.Name}

	if p.provenance.IsProtected(scope, ownerID, field.Name) {
		d.Protected = true
		if len(obs) > 0 {
			p.result.Metadata.Stats.ProtectedSkips++
			r.opts.metrics.ProtectedSkip(string(scope))
			p.logger.Debug().
				Str("scope", string(scope)).
				Str("owner", ownerID).
				Str("field", field.Name).
				Int("candidates", len(obs)).
				Msg("protected field kept")
		}
		return d
	}

	current, present := e.Get(field.Name)

	if res, ok := r.opts.resolver.Resolve(field, obs); ok {
		d.Value = res.Value
		d.Confidence = res.Confidence
		d.Method = res.Method
		d.Sources = res.Sources
		d.Changed = !present || !current.Equal(res.Value)
		if d.Changed {
			if err := e.Set(field.Name, res.Value); err != nil {
				p.logger.Warn().Err(err).Str("field", field.Name).Msg("cannot write field")
				d.Changed = false
				return d
			}
		}
		bk.inferred.Remove(field.Name)
		bk.setConfidence(field.Name, res.Confidence)
		return d
	}

	if infer == nil || !inference.Eligible(present, *bk.inferred, field.Name) {
		if present {
			d.Value = current
		}
		return d
	}
	proposal, ok := infer()
	if !ok {
		return d
	}
	d.Value = proposal.Value
	d.Confidence = proposal.Confidence
	d.Method = consensus.MethodInference
	d.Sources = []string{sources.Inference.String()}
	d.Changed = !present || !current.Equal(proposal.Value)
	if d.Changed {
		if err := e.Set(field.Name, proposal.Value); err != nil {
			d.Changed = false
			return d
		}
	}
	bk.inferred.Add(field.Name)
	bk.setConfidence(field.Name, proposal.Confidence)
	p.result.Metadata.Stats.FieldsInferred++
	return d
}

func (r *reconciler) resolveEvent(p *pass, obs map[string][]consensus.Observation) {
	ev := &p.record.Event
	bk := bookkeeping{inferred: &ev.Inferred, confidence: &ev.Confidence}
	for _, f := range races.EventFields {
		var infer func() (inference.Proposal, bool)
		if r.opts.inference != nil {
			field := f.Name
			infer = func() (inference.Proposal, bool) { return r.opts.inference.Event(p.record, field) }
		}
		d := r.resolveField(p, provenance.ScopeEvent, ev.ExternalID, ev, bk, f, obs[f.Name], infer)
		d.Owner = ev.ExternalID
		p.result.Decisions = append(p.result.Decisions, d)
	}
}

func (r *reconciler) resolveVariant(p *pass, t *target) {
	v := &p.record.Variants[t.index]
	bk := bookkeeping{inferred: &v.Inferred, confidence: &v.Confidence}

	var decisions []Decision
	for _, f := range races.VariantFields {
		// the name is the variant's identity, set once on creation
		if f.Name == races.FieldName {
			continue
		}
		var infer func() (inference.Proposal, bool)
		if r.opts.inference != nil {
			field := f.Name
			infer = func() (inference.Proposal, bool) { return r.opts.inference.Variant(p.record, v, field) }
		}
		decisions = append(decisions, r.resolveField(p, provenance.ScopeVariant, v.ID, v, bk, f, t.obs[f.Name], infer))
	}
	v.RecomputeUnitPrice()

	for i := range decisions {
		decisions[i].Owner = v.DisplayName()
	}
	p.result.Decisions = append(p.result.Decisions, decisions...)
}

package reconciler

import (
	"context"

	"github.com/agentstation/racesync/pkg/consensus"
	"github.com/agentstation/racesync/pkg/errors"
	"github.com/agentstation/racesync/pkg/normalize"
	"github.com/agentstation/racesync/pkg/provenance"
	"github.com/agentstation/racesync/pkg/races"
	"github.com/agentstation/racesync/pkg/sources"
)

// field observations keyed by field name
type fieldObservations map[string][]consensus.Observation

// incoming is one candidate variant after normalization.
type incoming struct {
	name   string
	source string
	obs    fieldObservations
}

type observations struct {
	event    fieldObservations
	variants []incoming
}

// observe normalizes every candidate field into weighted observations.
// Null markers are dropped silently. Values that fail to parse are dropped
// with a warning.
func (r *reconciler) observe(ctx context.Context, p *pass, candidates []races.Candidate) observations {
	out := observations{event: fieldObservations{}}
	stats := &p.result.Metadata.Stats

	for _, c := range candidates {
		if c.EventID != "" && c.EventID != p.record.Event.ExternalID {
			p.logger.Warn().
				Str("source", c.Source).
				Str("candidate_event", c.EventID).
				Msg("skipping candidate for another event")
			continue
		}
		stats.Candidates++
		p.result.Metadata.Sources = append(p.result.Metadata.Sources, c.Source)

		for _, raw := range c.Event.Fields() {
			f, ok := races.EventField(raw.Field)
			if !ok {
				continue
			}
			if o, ok := r.observation(p, provenance.ScopeEvent, c.Source, f, raw.Raw); ok {
				out.event[f.Name] = append(out.event[f.Name], o)
				stats.Observations++
			}
		}

		for _, cv := range c.Variants {
			name, ok := normalize.Text(cv.Name.Text)
			if !ok {
				p.logger.Debug().Str("source", c.Source).Msg("skipping unnamed variant")
				continue
			}
			in := incoming{name: name, source: c.Source, obs: fieldObservations{}}
			for _, raw := range cv.Fields() {
				f, ok := races.VariantField(raw.Field)
				if !ok || f.Name == races.FieldName {
					continue
				}
				if o, ok := r.observation(p, provenance.ScopeVariant, c.Source, f, raw.Raw); ok {
					in.obs[f.Name] = append(in.obs[f.Name], o)
					stats.Observations++
				}
			}
			out.variants = append(out.variants, in)
		}

		if ctx.Err() != nil {
			break
		}
	}
	return out
}

func (r *reconciler) observation(p *pass, scope provenance.Scope, source string, f races.Field, raw races.Raw) (consensus.Observation, bool) {
	if normalize.IsNull(raw.Text) {
		return consensus.Observation{}, false
	}
	v, ok := normalize.Normalize(f.Kind, raw.Text)
	if !ok {
		err := errors.NewParseError(f.Name, source, f.Kind.String(), raw.Text)
		p.result.Warnings = append(p.result.Warnings, err)
		p.result.Metadata.Stats.ParseFailures++
		r.opts.metrics.ParseFailure(f.Name)
		p.logger.Warn().
			Str("scope", string(scope)).
			Str("source", source).
			Str("field", f.Name).
			Str("raw", raw.Text).
			Msg("parse failure, field treated as absent")
		return consensus.Observation{}, false
	}
	return consensus.Observation{
		Field:  f.Name,
		Value:  v,
		Source: source,
		Weight: r.opts.authorities.Weight(sources.ID(source), scope, f.Name),
	}, true
}

package reconciler

import (
	"context"

	"github.com/agentstation/racesync/internal/utils/ptr"
	"github.com/agentstation/racesync/pkg/errors"
	"github.com/agentstation/racesync/pkg/races"
)

// target is a variant of the merged record and the observations routed to it.
type target struct {
	index int
	obs   fieldObservations
}

func (t *target) merge(obs fieldObservations) {
	for f, list := range obs {
		t.obs[f] = append(t.obs[f], list...)
	}
}

// matchVariants routes each incoming variant to a stored variant by name.
// Incoming variants that match nothing stored are grouped with each other
// and appended as new variants, named after the first member of the group.
// Stored variants nothing matched are left as they are.
func (r *reconciler) matchVariants(ctx context.Context, p *pass, in []incoming) []*target {
	stored := p.record.VariantNames()
	stats := &p.result.Metadata.Stats

	byIndex := make(map[int]*target)
	var order []*target
	targetFor := func(i int) *target {
		if t, ok := byIndex[i]; ok {
			return t
		}
		t := &target{index: i, obs: fieldObservations{}}
		byIndex[i] = t
		order = append(order, t)
		return t
	}

	var leaders []string
	var created []*target

	for _, v := range in {
		res := r.opts.matcher.Best(v.name, stored)
		if res.Index >= 0 {
			if res.Ambiguous() {
				err := &errors.AmbiguousMatchError{
					Name:       v.name,
					Candidates: namesAt(stored, res.Ties),
					Chosen:     stored[res.Index],
				}
				stats.AmbiguousMatches++
				p.result.Warnings = append(p.result.Warnings, err)
				p.logger.Debug().
					Str("variant", v.name).
					Strs("candidates", err.Candidates).
					Str("chosen", err.Chosen).
					Msg("ambiguous variant match")
			}
			stats.VariantsMatched++
			targetFor(res.Index).merge(v.obs)
			continue
		}

		joined := false
		for i, leader := range leaders {
			if r.opts.matcher.Equivalent(v.name, leader) {
				created[i].merge(v.obs)
				joined = true
				break
			}
		}
		if joined {
			continue
		}

		p.record.Variants = append(p.record.Variants, races.Variant{Name: ptr.String(v.name)})
		t := targetFor(len(p.record.Variants) - 1)
		t.merge(v.obs)
		leaders = append(leaders, v.name)
		created = append(created, t)
		stats.VariantsCreated++
		p.logger.Debug().Str("variant", v.name).Str("source", v.source).Msg("new variant")

		if ctx.Err() != nil {
			break
		}
	}
	return order
}

func namesAt(names []string, idx []int) []string {
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = names[j]
	}
	return out
}

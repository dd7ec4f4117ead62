package sources

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agentstation/racesync/pkg/errors"
	"github.com/agentstation/racesync/pkg/logging"
	"github.com/agentstation/racesync/pkg/races"
)

// Stats tracks the outcome of one collector in a pass.
type Stats struct {
	Source    ID
	Available bool
	Fields    int
	Variants  int
	Duration  time.Duration
	Err       error
}

// Report is the output of a collection pass.
type Report struct {
	EventID string

	// Candidates are returned in collector order, not completion order.
	Candidates []races.Candidate

	Stats    []Stats
	Failures []*errors.SourceUnavailableError
	Duration time.Duration
}

// Available returns the sources that produced a candidate.
func (r *Report) Available() []ID {
	var ids []ID
	for _, s := range r.Stats {
		if s.Available {
			ids = append(ids, s.Source)
		}
	}
	return ids
}

// Summary returns a one-line description of the pass.
func (r *Report) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "event %s: %d candidates from %d sources", r.EventID, len(r.Candidates), len(r.Stats))
	if len(r.Failures) > 0 {
		names := make([]string, 0, len(r.Failures))
		for _, f := range r.Failures {
			names = append(names, f.Source)
		}
		sort.Strings(names)
		fmt.Fprintf(&sb, ", unavailable: %s", strings.Join(names, ", "))
	}
	return sb.String()
}

type outcome struct {
	candidate *races.Candidate
	stats     Stats
}

// Collect runs every collector for eventID on a bounded pool. Collector
// errors and timeouts are recorded in the report; only cancellation of ctx
// fails the call.
func Collect(ctx context.Context, eventID string, collectors []Collector, opts ...Option) (*Report, error) {
	o, err := Defaults().Apply(opts...)
	if err != nil {
		return nil, err
	}

	ctx = logging.WithEvent(ctx, eventID)
	logger := logging.FromContext(ctx)
	start := time.Now()

	outcomes := make([]outcome, len(collectors))

	var g errgroup.Group
	g.SetLimit(o.Concurrency)
	for i, c := range collectors {
		g.Go(func() error {
			outcomes[i] = run(ctx, c, eventID, o.Timeout)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("collecting %s: %w: %w", eventID, errors.ErrCanceled, err)
	}

	report := &Report{EventID: eventID, Duration: time.Since(start)}
	for _, out := range outcomes {
		report.Stats = append(report.Stats, out.stats)
		if out.stats.Err != nil {
			failure := errors.NewSourceUnavailableError(out.stats.Source.String(), eventID, out.stats.Err)
			report.Failures = append(report.Failures, failure)
			logger.Warn().
				Err(out.stats.Err).
				Str("source", out.stats.Source.String()).
				Dur("duration", out.stats.Duration).
				Msg("source unavailable")
			continue
		}
		if out.candidate != nil {
			report.Candidates = append(report.Candidates, *out.candidate)
		}
	}

	logger.Debug().
		Int("candidates", len(report.Candidates)).
		Int("failures", len(report.Failures)).
		Dur("duration", report.Duration).
		Msg("collection complete")

	return report, nil
}

// run invokes one collector under its own timeout. A collector that ignores
// its context is abandoned when the timeout fires.
func run(ctx context.Context, c Collector, eventID string, timeout time.Duration) outcome {
	id := c.ID()
	stats := Stats{Source: id}
	if err := ctx.Err(); err != nil {
		stats.Err = err
		return outcome{stats: stats}
	}

	tctx, cancel := context.WithTimeout(logging.WithSource(ctx, id.String()), timeout)
	defer cancel()

	type reply struct {
		candidate *races.Candidate
		err       error
	}
	done := make(chan reply, 1)
	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- reply{err: fmt.Errorf("collector panic: %v", r)}
			}
		}()
		cand, err := c.Collect(tctx, eventID)
		done <- reply{candidate: cand, err: err}
	}()

	var rep reply
	select {
	case rep = <-done:
	case <-tctx.Done():
		rep.err = fmt.Errorf("%w after %s", errors.ErrTimeout, timeout)
		if ctx.Err() != nil {
			rep.err = ctx.Err()
		}
	}
	stats.Duration = time.Since(start)

	if rep.err != nil {
		stats.Err = rep.err
		return outcome{stats: stats}
	}
	if rep.candidate == nil {
		return outcome{stats: stats}
	}

	cand := *rep.candidate
	if cand.EventID != "" && cand.EventID != eventID {
		stats.Err = fmt.Errorf("candidate for event %s returned for %s", cand.EventID, eventID)
		return outcome{stats: stats}
	}
	cand.EventID = eventID
	if cand.Source == "" {
		cand.Source = id.String()
	}

	stats.Available = true
	stats.Fields = len(cand.Event.Fields())
	stats.Variants = len(cand.Variants)
	return outcome{candidate: &cand, stats: stats}
}

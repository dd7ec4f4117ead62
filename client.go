// Package racesync reconciles race events and their distance variants from
// several partially reliable sources into one stored record per event.
//
// Each pass weighs candidate values by source authority, resolves numeric
// disagreement through a median-anchored consensus, infers fields no source
// reported, and never overwrites a field a human fixed by hand.
//
// Example usage:
//
//	client, err := racesync.New(
//	    racesync.WithStoreConfig(store.Config{Driver: "sqlite", DSN: "races.db"}),
//	    racesync.WithCollectors(official, media),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	result, err := client.Sync(ctx, "2025-lakeside-marathon")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Summary())
//
//	// Fix a fee by hand; later passes keep it
//	_, err = client.ApplyEdits(ctx, []edits.Edit{
//	    {EventID: "2025-lakeside-marathon", Variant: "半马", Field: "fee", Value: "120"},
//	})
package racesync

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/agentstation/racesync/pkg/consensus"
	"github.com/agentstation/racesync/pkg/edits"
	"github.com/agentstation/racesync/pkg/errors"
	"github.com/agentstation/racesync/pkg/logging"
	"github.com/agentstation/racesync/pkg/races"
	"github.com/agentstation/racesync/pkg/reconciler"
	"github.com/agentstation/racesync/pkg/sources"
	"github.com/agentstation/racesync/pkg/store"
)

// Compile-time interface check to ensure proper implementation.
var _ Client = (*client)(nil)

// Syncer runs reconciliation passes.
type Syncer interface {
	// Sync collects from the configured sources and reconciles one event.
	Sync(ctx context.Context, eventID string) (*reconciler.Result, error)

	// SyncAll syncs distinct events concurrently. Results are in input order;
	// a failed event leaves a nil result and its error in the joined error.
	SyncAll(ctx context.Context, eventIDs ...string) ([]*reconciler.Result, error)

	// Reconcile merges already collected candidates into one event.
	Reconcile(ctx context.Context, eventID string, candidates []races.Candidate) (*reconciler.Result, error)
}

// Editor applies manual edits.
type Editor interface {
	// ApplyEdits writes edits and protects every edited field.
	ApplyEdits(ctx context.Context, list []edits.Edit) (*edits.Report, error)
}

// Reader is read-only access to stored events.
type Reader interface {
	// Event returns the stored record for an event.
	Event(ctx context.Context, eventID string) (*races.Record, error)

	// Events lists stored event IDs.
	Events(ctx context.Context) ([]string, error)
}

// Hooks registers callbacks for saved passes.
type Hooks interface {
	OnEventCreated(fn EventCreatedHook)
	OnEventUpdated(fn EventUpdatedHook)
	OnSourceFailed(fn SourceFailedHook)
}

// Client is the entry point for reconciliation, edits and reads.
type Client interface {
	Syncer
	Editor
	Reader
	Hooks

	// Close releases the store if the client opened it.
	Close() error
}

// client is the internal implementation of the Client interface.
type client struct {
	options    *options
	store      store.Store
	ownsStore  bool
	reconciler reconciler.Reconciler
	*hooks

	// per-event serialization of passes and edits
	mu     sync.Mutex
	events map[string]*sync.Mutex
}

// New creates a new Client with the given options. Without a store option
// records are kept in memory.
func New(opts ...Option) (Client, error) {
	o, err := defaults().apply(opts...)
	if err != nil {
		return nil, fmt.Errorf("applying options: %w", err)
	}

	c := &client{
		options: o,
		store:   o.store,
		hooks:   newHooks(),
		events:  make(map[string]*sync.Mutex),
	}

	if c.store == nil {
		cfg := store.Config{Driver: store.DriverMemory}
		if o.storeConfig != nil {
			cfg = *o.storeConfig
		}
		if c.store, err = store.Open(context.Background(), cfg); err != nil {
			return nil, fmt.Errorf("opening %s store: %w", cfg.Driver, err)
		}
		c.ownsStore = true
	}

	ropts := []reconciler.Option{
		reconciler.WithStore(c.store),
		reconciler.WithAuthorities(o.authorities),
		reconciler.WithResolver(consensus.New(consensus.WithTolerance(o.tolerance))),
		reconciler.WithMetrics(o.metrics),
		reconciler.WithDryRun(o.dryRun),
		reconciler.WithCollectOptions(
			sources.WithConcurrency(o.concurrency),
			sources.WithTimeout(o.sourceTimeout),
		),
	}
	if !o.inference {
		ropts = append(ropts, reconciler.WithInference(nil))
	}
	if c.reconciler, err = reconciler.New(ropts...); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("creating reconciler: %w", err)
	}

	logging.Debug().
		Int("collectors", len(o.collectors)).
		Int("concurrency", o.concurrency).
		Dur("source_timeout", o.sourceTimeout).
		Bool("dry_run", o.dryRun).
		Msg("racesync client created")

	return c, nil
}

func (c *client) lock(eventID string) func() {
	c.mu.Lock()
	m, ok := c.events[eventID]
	if !ok {
		m = &sync.Mutex{}
		c.events[eventID] = m
	}
	c.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// Sync implements Syncer.
func (c *client) Sync(ctx context.Context, eventID string) (*reconciler.Result, error) {
	if len(c.options.collectors) == 0 {
		return nil, errors.NewConfigError("collectors", "no collectors configured", nil)
	}
	defer c.lock(eventID)()

	result, err := c.reconciler.Sync(ctx, eventID, c.options.collectors)
	if err != nil {
		return nil, err
	}
	c.trigger(result)
	return result, nil
}

// SyncAll implements Syncer.
func (c *client) SyncAll(ctx context.Context, eventIDs ...string) ([]*reconciler.Result, error) {
	results := make([]*reconciler.Result, len(eventIDs))
	errs := make([]error, len(eventIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.options.concurrency)
	for i, id := range eventIDs {
		g.Go(func() error {
			res, err := c.Sync(gctx, id)
			if errors.IsCanceled(err) {
				return err
			}
			results[i], errs[i] = res, err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}

	var failed []error
	for i, err := range errs {
		if err != nil {
			failed = append(failed, fmt.Errorf("event %s: %w", eventIDs[i], err))
		}
	}
	return results, errors.Join(failed...)
}

// Reconcile implements Syncer.
func (c *client) Reconcile(ctx context.Context, eventID string, candidates []races.Candidate) (*reconciler.Result, error) {
	defer c.lock(eventID)()

	result, err := c.reconciler.Reconcile(ctx, reconciler.Input{EventID: eventID, Candidates: candidates})
	if err != nil {
		return nil, err
	}
	c.trigger(result)
	return result, nil
}

// ApplyEdits implements Editor.
func (c *client) ApplyEdits(ctx context.Context, list []edits.Edit) (*edits.Report, error) {
	if c.options.dryRun {
		return nil, errors.NewConfigError("edits", "edits cannot be applied in dry-run mode", nil)
	}
	// edits touch whole events, so hold every affected event lock in a fixed order
	seen := make(map[string]bool)
	var ids []string
	for _, e := range list {
		if !seen[e.EventID] {
			seen[e.EventID] = true
			ids = append(ids, e.EventID)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		defer c.lock(id)()
	}
	return edits.Apply(ctx, c.store, list)
}

// Event implements Reader.
func (c *client) Event(ctx context.Context, eventID string) (*races.Record, error) {
	return c.store.Load(ctx, eventID)
}

// Events implements Reader.
func (c *client) Events(ctx context.Context) ([]string, error) {
	return c.store.List(ctx)
}

// Close implements Client.
func (c *client) Close() error {
	if c.ownsStore && c.store != nil {
		return c.store.Close()
	}
	return nil
}

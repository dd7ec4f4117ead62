// Package sync provides the sync command, which reconciles events from
// candidate files and HTTP feeds into the configured store.
package sync

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agentstation/racesync"
	"github.com/agentstation/racesync/internal/cmd/output"
	"github.com/agentstation/racesync/internal/transport"
	"github.com/agentstation/racesync/pkg/errors"
	"github.com/agentstation/racesync/pkg/sources"
)

// AppContext defines the interface that the sync command needs from the app.
type AppContext interface {
	ClientWithOptions(opts ...racesync.Option) (racesync.Client, error)
	Logger() *zerolog.Logger
	OutputFormat() string
}

// NewCommand creates the sync command with app dependencies.
func NewCommand(app AppContext) *cobra.Command {
	var (
		events      []string
		dryRun      bool
		noInference bool
		token       string
	)

	cmd := &cobra.Command{
		Use:     "sync <candidate-file>...",
		GroupID: "core",
		Short:   "Reconcile events from candidate files and feeds",
		Long: `Sync treats every candidate file as one source, collects the candidates
for each event and reconciles them into the store.

A file argument may name its source as source=path. Otherwise the file name
without extension is used, so official_website.yaml is weighed as the
official website. Candidates that set their own source keep it.

An http(s) URL argument is fetched once per event, with {event_id} in the
URL replaced by the event ID; a 404 means the feed has nothing for it.

Without --event every event found in the files is synced.`,
		Example: `  racesync sync official_website.yaml wechat_official.yaml
  racesync sync media=feeds/media.json --event 2025-lakeside-marathon
  racesync sync ai_search=https://feeds.example.com/ai/{event_id}.json -e 2025-lakeside-marathon
  racesync sync --dry-run -o wide *.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := app.Logger()

			var auth transport.Authenticator
			if token != "" {
				auth = &transport.BearerAuth{Token: token}
			}
			feeds, err := ParseFeeds(args, transport.New(auth))
			if err != nil {
				return err
			}
			for _, f := range feeds {
				if !f.ID().IsKnown() {
					logger.Warn().Str("source", f.ID().String()).
						Msg("unknown source, candidates get the default weight")
				}
			}

			ids := events
			if len(ids) == 0 {
				if ids, err = EventIDs(feeds); err != nil {
					return err
				}
			}
			if len(ids) == 0 {
				return errors.NewValidationError("events", nil, "no events to sync: the files name none and --event is not set")
			}

			opts := []racesync.Option{
				racesync.WithCollectors(feeds...),
				racesync.WithDryRun(dryRun),
			}
			if noInference {
				opts = append(opts, racesync.WithInference(false))
			}

			client, err := app.ClientWithOptions(opts...)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			logger.Debug().Int("events", len(ids)).Int("sources", len(feeds)).Msg("syncing")
			results, err := client.SyncAll(cmd.Context(), ids...)
			if errors.IsCanceled(err) {
				return err
			}
			if ferr := output.FormatResults(cmd.OutOrStdout(), results, output.Format(app.OutputFormat())); ferr != nil {
				return ferr
			}
			return err
		},
	}

	cmd.Flags().StringSliceVarP(&events, "event", "e", nil, "event IDs to sync (default: every event in the files)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "compute merged records without saving them")
	cmd.Flags().BoolVar(&noInference, "no-inference", false, "do not infer missing fields")
	cmd.Flags().StringVar(&token, "feed-token", "", "bearer token sent to HTTP feeds")

	return cmd
}

// ParseFeeds turns arguments into collectors: files, or HTTP feeds for
// arguments that are http(s) URLs. HTTP feeds use client.
func ParseFeeds(args []string, client *transport.Client) ([]sources.Collector, error) {
	feeds := make([]sources.Collector, 0, len(args))
	for _, arg := range args {
		id, path, ok := strings.Cut(arg, "=")
		if !ok || id == "" || strings.ContainsAny(id, `/\:`) {
			id, path = "", arg
		}
		if path == "" {
			return nil, errors.NewValidationError("file", arg, "missing path")
		}

		if isURL(path) {
			if id == "" {
				u, err := url.Parse(path)
				if err != nil {
					return nil, errors.NewValidationError("url", path, err.Error())
				}
				id = u.Hostname()
			}
			feed, err := sources.NewHTTP(sources.ID(id), path, client)
			if err != nil {
				return nil, err
			}
			feeds = append(feeds, feed)
			continue
		}

		if id == "" {
			base := filepath.Base(path)
			id = strings.TrimSuffix(base, filepath.Ext(base))
		}
		feeds = append(feeds, sources.NewFile(sources.ID(id), path))
	}
	return feeds, nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// lister is implemented by collectors that can enumerate their events.
type lister interface {
	EventIDs() ([]string, error)
}

// EventIDs returns every event named by listable feeds, in first-seen order.
func EventIDs(feeds []sources.Collector) ([]string, error) {
	seen := make(map[string]bool)
	var ids []string
	for _, f := range feeds {
		l, ok := f.(lister)
		if !ok {
			continue
		}
		fileIDs, err := l.EventIDs()
		if err != nil {
			return nil, err
		}
		for _, id := range fileIDs {
			if id != "" && !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

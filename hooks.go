package racesync

import (
	"sync"

	"github.com/agentstation/racesync/pkg/errors"
	"github.com/agentstation/racesync/pkg/races"
	"github.com/agentstation/racesync/pkg/reconciler"
)

// Hook function types for reconciliation events
type (
	// EventCreatedHook is called when a pass saves an event for the first time
	EventCreatedHook func(rec *races.Record)

	// EventUpdatedHook is called when a pass saves changes to a stored event
	EventUpdatedHook func(result *reconciler.Result)

	// SourceFailedHook is called for every source that was unavailable during Sync
	SourceFailedHook func(err *errors.SourceUnavailableError)
)

// hooks manages event callbacks
type hooks struct {
	mu             sync.RWMutex
	onEventCreated []EventCreatedHook
	onEventUpdated []EventUpdatedHook
	onSourceFailed []SourceFailedHook
}

func newHooks() *hooks {
	return &hooks{}
}

// OnEventCreated registers a callback for newly saved events
func (h *hooks) OnEventCreated(fn EventCreatedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onEventCreated = append(h.onEventCreated, fn)
}

// OnEventUpdated registers a callback for saved changes
func (h *hooks) OnEventUpdated(fn EventUpdatedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onEventUpdated = append(h.onEventUpdated, fn)
}

// OnSourceFailed registers a callback for unavailable sources
func (h *hooks) OnSourceFailed(fn SourceFailedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onSourceFailed = append(h.onSourceFailed, fn)
}

// trigger runs the hooks that apply to result
func (h *hooks) trigger(result *reconciler.Result) {
	if result == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	if result.Collection != nil {
		for _, f := range result.Collection.Failures {
			for _, hook := range h.onSourceFailed {
				hook(f)
			}
		}
	}

	if !result.WasSaved() {
		return
	}
	if result.Changeset.Created {
		for _, hook := range h.onEventCreated {
			hook(result.Record)
		}
		return
	}
	for _, hook := range h.onEventUpdated {
		hook(result)
	}
}

package sources

import (
	"context"
	"net/url"
	"strings"

	"github.com/agentstation/racesync/internal/transport"
	"github.com/agentstation/racesync/pkg/errors"
	"github.com/agentstation/racesync/pkg/races"
)

// EventPlaceholder is replaced by the escaped event ID in feed URLs.
const EventPlaceholder = "{event_id}"

// HTTP is a collector that fetches one YAML or JSON candidate document per
// event. A 404 means the feed knows nothing about the event.
type HTTP struct {
	id       ID
	template string
	client   *transport.Client
}

// NewHTTP creates a feed collector. template must contain EventPlaceholder;
// a nil client sends unauthenticated requests.
func NewHTTP(id ID, template string, client *transport.Client) (*HTTP, error) {
	if !strings.Contains(template, EventPlaceholder) {
		return nil, errors.NewValidationError("url", template, "must contain "+EventPlaceholder)
	}
	u, err := url.Parse(strings.ReplaceAll(template, EventPlaceholder, "x"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, errors.NewValidationError("url", template, "must be an http or https URL")
	}
	if client == nil {
		client = transport.New(nil)
	}
	return &HTTP{id: id, template: template, client: client}, nil
}

// ID implements Collector.
func (h *HTTP) ID() ID { return h.id }

// URL returns the feed URL for an event.
func (h *HTTP) URL(eventID string) string {
	return strings.ReplaceAll(h.template, EventPlaceholder, url.PathEscape(eventID))
}

// Collect implements Collector.
func (h *HTTP) Collect(ctx context.Context, eventID string) (*races.Candidate, error) {
	resp, err := h.client.Get(ctx, h.URL(eventID))
	if err != nil {
		return nil, err
	}
	body, err := transport.ReadBody(resp)
	if err != nil {
		var status *transport.StatusError
		if errors.As(err, &status) && status.IsNotFound() {
			return nil, nil
		}
		return nil, err
	}

	candidates, err := DecodeCandidates(body)
	if err != nil {
		return nil, err
	}
	for _, c := range candidates {
		// a feed answering for one event may leave the ID out
		if c.EventID == "" && len(candidates) == 1 {
			c.EventID = eventID
		}
		if c.EventID != eventID {
			continue
		}
		if c.Source == "" {
			c.Source = h.id.String()
		}
		return &c, nil
	}
	return nil, nil
}

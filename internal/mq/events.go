package mq

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

// EventLeadCreated is published when a visitor submits a contact or
// consultation form.
const EventLeadCreated = "lead.created"

// Lead kinds carried in LeadEvent.Kind.
const (
	LeadConsultation = "consultation"
	LeadContact      = "contact"
)

// LeadEvent is the JSON payload of a lead notification.
type LeadEvent struct {
	Type      string    `json:"type"`
	Kind      string    `json:"kind"`
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Service   string    `json:"service,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifier publishes lead events to a channel. A nil *Notifier is valid and
// publishes nothing.
type Notifier struct {
	backend Backend
	channel string
	logger  *slog.Logger
}

func NewNotifier(backend Backend, channel string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{backend: backend, channel: channel, logger: logger}
}

// NotifyLead publishes event. Delivery is best effort: failures are logged
// and never returned to the caller.
func (n *Notifier) NotifyLead(ctx context.Context, event LeadEvent) {
	if n == nil || n.backend == nil {
		return
	}
	event.Type = EventLeadCreated

	data, err := json.Marshal(event)
	if err != nil {
		n.logger.Error("encode lead event", "error", err)
		return
	}

	id, err := n.backend.Publish(ctx, n.channel, data, map[string]string{"type": event.Type})
	if err != nil {
		n.logger.Warn("publish lead event failed", "kind", event.Kind, "lead_id", event.ID, "error", err)
		return
	}
	n.logger.Debug("lead event published", "kind", event.Kind, "lead_id", event.ID, "message_id", id)
}

// DecodeLeadEvent parses a lead notification message.
func DecodeLeadEvent(msg Message) (LeadEvent, error) {
	var event LeadEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return LeadEvent{}, err
	}
	if event.Type != EventLeadCreated {
		return LeadEvent{}, errors.New("unexpected event type " + event.Type)
	}
	return event, nil
}

// LogLeadEvents returns a Handler that writes each lead event to logger.
// Malformed messages are logged and acknowledged so they are not redelivered.
func LogLeadEvents(logger *slog.Logger) Handler {
	return func(ctx context.Context, msg Message) error {
		event, err := DecodeLeadEvent(msg)
		if err != nil {
			logger.Warn("discarding malformed lead event", "message_id", msg.ID, "error", err)
			return nil
		}
		logger.Info("new lead",
			"kind", event.Kind,
			"lead_id", event.ID,
			"name", event.Name,
			"email", event.Email,
			"service", event.Service,
			"subject", event.Subject,
			"created_at", event.CreatedAt,
		)
		return nil
	}
}

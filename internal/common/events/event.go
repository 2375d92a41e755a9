// Package events defines the domain events emitted by the SCA flows.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// Event represents a domain event envelope
type Event struct {
	ID            string          `json:"event_id"`
	Type          string          `json:"type"`
	Version       int             `json:"version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event
func NewEvent(eventType, aggregateType, aggregateID string, data any) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            ulid.Make().String(),
		Type:          eventType,
		Version:       1,
		OccurredAt:    time.Now().UTC(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Data:          dataBytes,
	}, nil
}

// WithCorrelation sets the X-Request-ID of the request that caused the event.
func (e *Event) WithCorrelation(correlationID string) *Event {
	e.CorrelationID = correlationID
	return e
}

// DecodeData decodes the event data into a struct
func (e *Event) DecodeData(v any) error {
	return json.Unmarshal(e.Data, v)
}

// Publisher publishes events to a message broker
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
}

// Aggregate types
const (
	AggregateAuthorisation = "authorisation"
	AggregateConsent       = "consent"
	AggregatePayment       = "payment"
)

// Event types
const (
	EventScaStatusChanged          = "sca.authorisation.status_changed"
	EventDecoupledStarted          = "sca.decoupled.started"
	EventConsentStatusChanged      = "consent.status_changed"
	EventPaymentStatusChanged      = "payment.status_changed"
	EventConsentObsoleteTerminated = "consent.obsolete_terminated"
)

// ScaStatusChangedData is the data for sca.authorisation.status_changed events
type ScaStatusChangedData struct {
	AuthorisationID  string `json:"authorisation_id"`
	BusinessObjectID string `json:"business_object_id"`
	Type             string `json:"authorisation_type"`
	ScaApproach      string `json:"sca_approach,omitempty"`
	From             string `json:"from,omitempty"`
	To               string `json:"to"`
}

// DecoupledStartedData is the data for sca.decoupled.started events
type DecoupledStartedData struct {
	AuthorisationID  string `json:"authorisation_id"`
	BusinessObjectID string `json:"business_object_id"`
	MethodID         string `json:"authentication_method_id,omitempty"`
	PsuMessage       string `json:"psu_message,omitempty"`
}

// BusinessStatusChangedData is the data for consent.status_changed and
// payment.status_changed events
type BusinessStatusChangedData struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	Status          string `json:"status"`
	AuthorisationID string `json:"authorisation_id,omitempty"`
}

// ConsentsTerminatedData is the data for consent.obsolete_terminated events
type ConsentsTerminatedData struct {
	ConsentID  string   `json:"consent_id"`
	Terminated []string `json:"terminated_consent_ids"`
}

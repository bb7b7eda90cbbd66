// Package audit records CRL validation decisions in an append-only,
// hash-chained JSONL log.
//
// Audit logs are separate from technical logs:
//   - Every event is chained to its predecessor with SHA-256
//   - A failed audit write fails the operation that produced it
//   - Timestamps are UTC
package audit

import (
	"encoding/json"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jmhodges/clock"
)

// EventType represents the category of audit event.
type EventType string

const (
	// EventCRLValidated is logged when a CRL validates against its issuer.
	EventCRLValidated EventType = "CRL_VALIDATED"
	// EventCRLRejected is logged when a CRL decodes but is not valid, or
	// when decoding fails.
	EventCRLRejected EventType = "CRL_REJECTED"
	// EventCRLLookup is logged for every serial number query.
	EventCRLLookup EventType = "CRL_LOOKUP"
)

// Result represents the outcome of an audited operation.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
)

// Actor represents who performed the action.
type Actor struct {
	Type string `json:"type"`           // "user", "service"
	ID   string `json:"id"`             // username or remote address
	Host string `json:"host,omitempty"` // hostname where action occurred
}

// Object represents the CRL acted upon.
type Object struct {
	Type   string `json:"type"`             // "crl"
	ID     string `json:"id,omitempty"`     // hex SHA-256 of the DER
	Issuer string `json:"issuer,omitempty"` // issuer DN
	URL    string `json:"url,omitempty"`    // distribution point or source
	Serial string `json:"serial,omitempty"` // queried certificate serial
}

// Context provides additional details about the operation.
type Context struct {
	Algorithm  string `json:"algorithm,omitempty"`
	Reason     string `json:"reason,omitempty"` // invalidity or error reason
	CRLNumber  string `json:"crl_number,omitempty"`
	Entries    int    `json:"entries,omitempty"`
	Revoked    bool   `json:"revoked,omitempty"`
	Revocation string `json:"revocation_reason,omitempty"`
	Delta      bool   `json:"delta,omitempty"`
	Cached     bool   `json:"cached,omitempty"`
}

// Event represents a single audit log entry.
type Event struct {
	EventType EventType `json:"event_type"`
	Timestamp string    `json:"timestamp"` // RFC3339 UTC
	Actor     Actor     `json:"actor"`
	Object    Object    `json:"object"`
	Context   Context   `json:"context,omitempty"`
	Result    Result    `json:"result"`
	HashPrev  string    `json:"hash_prev"`
	Hash      string    `json:"hash"`
}

// Clock stamps new events. Tests replace it with a fake.
var Clock clock.Clock = clock.New()

// NewEvent creates an event stamped with the current time and the local
// user as actor.
func NewEvent(eventType EventType, result Result) *Event {
	hostname, _ := os.Hostname()
	username := os.Getenv("USER")
	if username == "" {
		username = os.Getenv("USERNAME")
	}
	if username == "" {
		username = "unknown"
	}

	return &Event{
		EventType: eventType,
		Timestamp: Clock.Now().UTC().Format(time.RFC3339),
		Actor: Actor{
			Type: "user",
			ID:   username,
			Host: hostname,
		},
		Result: result,
	}
}

// WithObject sets the object field.
func (e *Event) WithObject(obj Object) *Event {
	e.Object = obj
	return e
}

// WithContext sets the context field.
func (e *Event) WithContext(ctx Context) *Event {
	e.Context = ctx
	return e
}

// WithActor overrides the default actor.
func (e *Event) WithActor(actor Actor) *Event {
	e.Actor = actor
	return e
}

// Validate checks that required fields are present.
func (e *Event) Validate() error {
	if e.EventType == "" {
		return errors.New("event_type is required")
	}
	if e.Timestamp == "" {
		return errors.New("timestamp is required")
	}
	if e.Actor.Type == "" || e.Actor.ID == "" {
		return errors.New("actor type and id are required")
	}
	if e.Result == "" {
		return errors.New("result is required")
	}
	return nil
}

// CanonicalJSON returns the event without its Hash, the input of the chain
// hash.
func (e *Event) CanonicalJSON() ([]byte, error) {
	type eventForHash struct {
		EventType EventType `json:"event_type"`
		Timestamp string    `json:"timestamp"`
		Actor     Actor     `json:"actor"`
		Object    Object    `json:"object"`
		Context   Context   `json:"context,omitempty"`
		Result    Result    `json:"result"`
		HashPrev  string    `json:"hash_prev"`
	}

	return json.Marshal(eventForHash{
		EventType: e.EventType,
		Timestamp: e.Timestamp,
		Actor:     e.Actor,
		Object:    e.Object,
		Context:   e.Context,
		Result:    e.Result,
		HashPrev:  e.HashPrev,
	})
}

// JSON returns the full event as JSON.
func (e *Event) JSON() ([]byte, error) {
	return json.Marshal(e)
}

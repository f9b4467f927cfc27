package mq

import (
	"encoding/json"

	"github.com/google/uuid"
	xe "github.com/opst/pht-central/pkg/errors"
)

// Type is a discriminant of envelopes, "<domain>.<command>".
type Type string

func (t Type) String() string {
	return string(t)
}

// Envelope is the unit exchanged over the message fabric.
//
// Envelope is not modified once it is published.
type Envelope struct {
	Type     Type            `json:"type"`
	Id       string          `json:"id,omitempty"`
	Data     json.RawMessage `json:"data"`
	Metadata map[string]any  `json:"metadata,omitempty"`
}

type EnvelopeOption func(*Envelope) *Envelope

// WithMetadata sets metadata of the envelope.
func WithMetadata(metadata map[string]any) EnvelopeOption {
	return func(e *Envelope) *Envelope {
		e.Metadata = metadata
		return e
	}
}

// WithId overrides id of the envelope. By default, a random UUID is used.
func WithId(id string) EnvelopeOption {
	return func(e *Envelope) *Envelope {
		e.Id = id
		return e
	}
}

// NewEnvelope builds an envelope carrying data marshalled as JSON.
func NewEnvelope(typ Type, data any, options ...EnvelopeOption) (Envelope, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, xe.Classify(xe.Validation, "data of envelope cannot be marshalled", err)
	}

	e := &Envelope{Type: typ, Id: uuid.NewString(), Data: payload}
	for _, opt := range options {
		e = opt(e)
	}
	return *e, nil
}

// Decode reads data of the envelope into T.
//
// When data is malformed, it returns xe.Validation error.
func Decode[T any](e Envelope) (T, error) {
	var t T
	if len(e.Data) == 0 {
		return t, xe.Errorf(xe.Validation, "envelope %s (%s) has no data", e.Id, e.Type)
	}
	if err := json.Unmarshal(e.Data, &t); err != nil {
		return t, xe.Classify(xe.Validation, "data of envelope "+e.Id+" is malformed", err)
	}
	return t, nil
}

// Marshal envelope into wire format.
func Marshal(e Envelope) ([]byte, error) {
	return json.Marshal(e)
}

// Unmarshal wire format into envelope.
//
// When the payload is not an envelope, it returns xe.Validation error.
func Unmarshal(body []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(body, &e); err != nil {
		return Envelope{}, xe.Classify(xe.Validation, "message is not an envelope", err)
	}
	if e.Type == "" {
		return Envelope{}, xe.New(xe.Validation, "envelope has no type")
	}
	return e, nil
}

package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrEnvelopeShape is returned when the feed payload lacks the nested item list.
var ErrEnvelopeShape = errors.New("feed envelope has no data.data item list")

// Token is the opaque freshness marker carried in fetched_at. Whatever JSON
// scalar upstream sends is kept as text so two tokens compare by value.
type Token string

// UnmarshalJSON accepts a string, number, boolean or null.
func (t *Token) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Token(s)
		return nil
	}
	*t = Token(b)
	return nil
}

// Envelope is the top-level feed document. Items stay raw so one malformed
// item is a per-item rejection rather than a failure of the whole payload.
type Envelope struct {
	FetchedAt Token        `json:"fetched_at"`
	Data      EnvelopeData `json:"data"`
}

// EnvelopeData is the intermediate "data" object of the envelope.
type EnvelopeData struct {
	Items []json.RawMessage `json:"data"`
}

// Items returns the raw feed items.
func (e Envelope) Items() []json.RawMessage {
	return e.Data.Items
}

// Validate reports ErrEnvelopeShape when the item list is absent.
// An empty list is valid.
func (e Envelope) Validate() error {
	if e.Data.Items == nil {
		return ErrEnvelopeShape
	}
	return nil
}

// ParseEnvelope decodes and validates a feed payload.
func ParseEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("parse envelope: %w", err)
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope is the wire form of an event used by external sinks.
type Envelope struct {
	Type    EventType         `json:"type"`
	Time    time.Time         `json:"time"`
	Listing uint64            `json:"listing_id,omitempty"`
	Data    map[string]string `json:"data"`
}

// NewEnvelope flattens an event.
func NewEnvelope(e Event) Envelope {
	attrs := e.Attrs()
	data := make(map[string]string, len(attrs))
	for _, a := range attrs {
		data[a.Key] = a.Value
	}
	return Envelope{
		Type:    e.Type(),
		Time:    e.Timestamp().UTC(),
		Listing: uint64(e.Listing()),
		Data:    data,
	}
}

// Encode returns the JSON envelope of e.
func Encode(e Event) ([]byte, error) {
	payload, err := json.Marshal(NewEnvelope(e))
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", e.Type(), err)
	}
	return payload, nil
}

package event

import (
	"encoding/json"
	"time"
)

// Recognized event labels. Consumers treat anything else as EventUnknown.
const (
	EventError             = "error"
	EventHello             = "hello"
	EventMessage           = "message"
	EventUserCount         = "user_count"
	EventUnknown           = "unknown"
	EventTickerUpdate      = "ticker.update"
	EventTickerLabels      = "ticker.labels"
	EventProcessingBuffers = "ticker.processing_buffers"

	// Push-session lifecycle, emitted by the exchange wire client.
	EventPushConnecting = "poloniex.push_api.connecting"
	EventPushConnected  = "poloniex.push_api.connected"
	EventPushDisconnect = "poloniex.push_api.disconnect"
)

// Envelope carries the fields present on every outbound event. Timestamp is
// seconds since epoch with sub-second precision; Message serializes to null
// when the emitter left it unset.
type Envelope struct {
	Event     string  `json:"event"`
	Timestamp float64 `json:"timestamp"`
	Message   *string `json:"message"`
}

func newEnvelope(event string, at time.Time, message string) Envelope {
	e := Envelope{Event: event, Timestamp: epochSeconds(at)}
	if message != "" {
		e.Message = &message
	}
	return e
}

func epochSeconds(at time.Time) float64 {
	return float64(at.UnixNano()) / float64(time.Second)
}

// TickerUpdate is the envelope variant broadcast on every tick or backfill.
type TickerUpdate struct {
	Envelope
	Ticker       string `json:"ticker"`
	TickerString string `json:"ticker_string"`
	Currency     string `json:"currency"`
}

// UserCount announces the number of connected subscribers.
type UserCount struct {
	Envelope
	Count int `json:"count"`
}

// Generic is the fallback variant for free-form emissions: arbitrary extra
// fields flattened next to the envelope fields. Envelope fields always win on
// key collision, except message, which a field may set.
type Generic struct {
	Envelope
	Fields map[string]interface{}
}

// MarshalJSON flattens Fields into the envelope object.
func (g Generic) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(g.Fields)+3)
	for k, v := range g.Fields {
		out[k] = v
	}
	out["event"] = g.Event
	out["timestamp"] = g.Timestamp
	if g.Message != nil {
		out["message"] = *g.Message
	} else if _, ok := out["message"]; !ok {
		out["message"] = nil
	}
	return json.Marshal(out)
}

// HelloPayload builds the serialized greeting sent directly to a subscriber
// when its connection opens.
func HelloPayload(message string) ([]byte, error) {
	return json.Marshal(struct {
		Envelope
	}{newEnvelope(EventHello, time.Now(), message)})
}

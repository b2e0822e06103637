package event

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"CoinStream/internal/domain/models"
	drepo "CoinStream/internal/domain/repository"
	applogger "CoinStream/pkg/logger"
)

// Sink delivers one serialized envelope to every currently registered
// subscriber. Implementations must not block the caller beyond the handoff
// and must survive having zero subscribers.
type Sink interface {
	Broadcast(payload []byte)
}

// Mirror is an optional secondary destination that receives a copy of every
// envelope, e.g. a Kafka topic for out-of-process consumers.
type Mirror interface {
	Publish(ctx context.Context, payload []byte) error
}

// Bus stamps payloads with the envelope contract and forwards the serialized
// bytes downstream. Every emission results in exactly one broadcast attempt.
type Bus struct {
	sink    Sink
	mirror  Mirror
	metrics drepo.Metrics
	log     *applogger.Logger
	now     func() time.Time
}

// BusOption configures Bus.
type BusOption func(*Bus)

// WithMirror attaches a secondary envelope destination.
func WithMirror(m Mirror) BusOption {
	return func(b *Bus) { b.mirror = m }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) BusOption {
	return func(b *Bus) { b.now = now }
}

// NewBus creates an event bus publishing through the given sink.
func NewBus(sink Sink, metrics drepo.Metrics, log *applogger.Logger, opts ...BusOption) *Bus {
	b := &Bus{sink: sink, metrics: metrics, log: log, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// EmitTicker publishes a ticker.update for a pair and its formatted summary.
func (b *Bus) EmitTicker(pair, summary string) error {
	return b.EmitTickerAs(EventTickerUpdate, pair, summary)
}

// EmitTickerAs is the typed ticker emitter. It refuses any label other than
// ticker.update, guarding against label confusion when reused generically.
func (b *Bus) EmitTickerAs(event, pair, summary string) error {
	if event != EventTickerUpdate {
		return fmt.Errorf("ticker emitter invoked with %q event: %w", event, models.ErrInvalidValue)
	}

	currency, symbol := splitPair(pair)
	return b.publish(event, TickerUpdate{
		Envelope:     newEnvelope(event, b.now(), "ticker updated"),
		Ticker:       symbol,
		TickerString: summary,
		Currency:     currency,
	})
}

// Emit publishes a generic envelope wrapping arbitrary extra fields. An empty
// label defaults to unknown; a non-string "event" field in the payload is
// rejected. The caller keeps ownership of fields; it is never mutated.
func (b *Bus) Emit(event string, fields map[string]interface{}) error {
	if raw, ok := fields["event"]; ok {
		s, isString := raw.(string)
		if !isString {
			return fmt.Errorf("non-string event label %T: %w", raw, models.ErrInvalidValue)
		}
		if event == "" {
			event = s
		}
	}
	if event == "" {
		event = EventUnknown
	}

	g := Generic{Envelope: newEnvelope(event, b.now(), ""), Fields: fields}
	if raw, ok := fields["message"]; ok {
		if s, isString := raw.(string); isString {
			g.Message = &s
		}
	}
	return b.publish(event, g)
}

// EmitUserCount publishes the current subscriber count.
func (b *Bus) EmitUserCount(n int) error {
	return b.publish(EventUserCount, UserCount{
		Envelope: newEnvelope(EventUserCount, b.now(), ""),
		Count:    n,
	})
}

func (b *Bus) publish(label string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("serialize envelope: %w", err)
	}

	b.sink.Broadcast(payload)
	if b.metrics != nil {
		b.metrics.RecordEvent(label, len(payload))
	}

	if b.mirror != nil {
		if err := b.mirror.Publish(context.Background(), payload); err != nil {
			b.log.Warn("event mirror publish failed", applogger.Error(err))
		}
	}
	return nil
}

// splitPair separates a currency pair label into its base currency and traded
// symbol, mirroring the BASE_SYMBOL label convention.
func splitPair(pair string) (currency, symbol string) {
	parts := strings.SplitN(pair, "_", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return "", pair
}

package repository

import (
	"context"

	drepo "CoinStream/internal/domain/repository"
	"CoinStream/internal/event"
	applogger "CoinStream/pkg/logger"
)

// EventLogPublisher implements logger.Publisher by turning each aggregated
// error log batch into error envelopes on the event bus.
type EventLogPublisher struct {
	events drepo.Events
}

// NewEventLogPublisher creates a log publisher backed by the event bus.
func NewEventLogPublisher(events drepo.Events) applogger.Publisher {
	return &EventLogPublisher{events: events}
}

func (p *EventLogPublisher) PublishLogs(_ context.Context, logs []applogger.AggregatedLogEntry) error {
	for _, entry := range logs {
		fields := map[string]interface{}{
			"message": entry.Message,
			"caller":  entry.Caller,
			"count":   entry.Count,
		}
		for k, v := range entry.Fields {
			if _, taken := fields[k]; !taken {
				fields[k] = v
			}
		}
		if err := p.events.Emit(event.EventError, fields); err != nil {
			return err
		}
	}
	return nil
}

package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	applogger "CoinStream/pkg/logger"
)

type recordEvents struct {
	labels []string
	fields []map[string]interface{}
}

func (e *recordEvents) EmitTicker(string, string) error { return nil }
func (e *recordEvents) EmitUserCount(int) error         { return nil }

func (e *recordEvents) Emit(label string, fields map[string]interface{}) error {
	e.labels = append(e.labels, label)
	e.fields = append(e.fields, fields)
	return nil
}

func TestEventLogPublisherEmitsErrorEnvelopes(t *testing.T) {
	events := &recordEvents{}
	p := NewEventLogPublisher(events)

	err := p.PublishLogs(context.Background(), []applogger.AggregatedLogEntry{
		{
			Level:   "error",
			Message: "series flush failed",
			Caller:  "internal/ticker/tracker.go:180",
			Count:   3,
			Fields:  map[string]interface{}{"pair": "BTC_ETH", "count": 99},
		},
	})
	require.NoError(t, err)

	require.Len(t, events.labels, 1)
	assert.Equal(t, "error", events.labels[0])

	fields := events.fields[0]
	assert.Equal(t, "series flush failed", fields["message"])
	assert.Equal(t, "internal/ticker/tracker.go:180", fields["caller"])
	assert.Equal(t, 3, fields["count"], "aggregate count wins over entry fields")
	assert.Equal(t, "BTC_ETH", fields["pair"])
}

func TestEventLogPublisherEmptyBatch(t *testing.T) {
	events := &recordEvents{}
	p := NewEventLogPublisher(events)
	require.NoError(t, p.PublishLogs(context.Background(), nil))
	assert.Empty(t, events.labels)
}

package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinStream/internal/domain/models"
)

type recordProc struct {
	mu    sync.Mutex
	ticks []*models.Tick
	fail  bool
}

func (p *recordProc) Process(_ context.Context, t *models.Tick) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("downstream unavailable")
	}
	p.ticks = append(p.ticks, t)
	return nil
}

func (p *recordProc) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ticks)
}

type noopMetrics struct {
	mu   sync.Mutex
	errs map[string]int
}

func newNoopMetrics() *noopMetrics { return &noopMetrics{errs: make(map[string]int)} }

func (m *noopMetrics) RecordTick(string)               {}
func (m *noopMetrics) RecordLastPrice(string, float64) {}
func (m *noopMetrics) RecordLatency(string, float64)   {}
func (m *noopMetrics) RecordEvent(string, int)         {}
func (m *noopMetrics) SetSubscriberCount(int)          {}

func (m *noopMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[kind]++
}

func (m *noopMetrics) errCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errs[kind]
}

func TestPipelineForwardsValidTicks(t *testing.T) {
	proc := &recordProc{}
	p := NewTickPipeline(proc, newNoopMetrics())

	err := p.Process(context.Background(), &models.Tick{Pair: "BTC_ETH", Price: 0.041, Volume: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, proc.count())
}

func TestPipelineRejectsInvalidTicks(t *testing.T) {
	proc := &recordProc{}
	metrics := newNoopMetrics()
	p := NewTickPipeline(proc, metrics)

	cases := []*models.Tick{
		nil,
		{Pair: "", Price: 1},
		{Pair: "BTC_ETH", Price: -1},
		{Pair: "BTC_ETH", Price: 1, Volume: -1},
	}
	for _, tick := range cases {
		assert.Error(t, p.Process(context.Background(), tick))
	}
	assert.Equal(t, 0, proc.count())
	assert.Equal(t, len(cases), metrics.errCount("pipeline_validate"))
}

func TestPipelineThrottlesPerPair(t *testing.T) {
	proc := &recordProc{}
	metrics := newNoopMetrics()
	p := NewTickPipeline(proc, metrics, WithMaxRPS(1))

	ctx := context.Background()
	require.NoError(t, p.Process(ctx, &models.Tick{Pair: "BTC_ETH", Price: 1}))
	require.NoError(t, p.Process(ctx, &models.Tick{Pair: "BTC_ETH", Price: 2}))

	// a different pair has its own budget
	require.NoError(t, p.Process(ctx, &models.Tick{Pair: "BTC_XMR", Price: 3}))

	assert.Equal(t, 2, proc.count())
	assert.Equal(t, 1, metrics.errCount("pipeline_throttle"))
}

func TestPipelineBuffersOnDownstreamFailure(t *testing.T) {
	proc := &recordProc{fail: true}
	metrics := newNoopMetrics()
	p := NewTickPipeline(proc, metrics, WithBufferSize(4))

	err := p.Process(context.Background(), &models.Tick{Pair: "BTC_ETH", Price: 1})
	require.Error(t, err)
	assert.Equal(t, 1, metrics.errCount("pipeline_process"))
	assert.Len(t, p.bufCh, 1)
}

func TestPipelineRestartAfterStop(t *testing.T) {
	proc := &recordProc{fail: true}
	p := NewTickPipeline(proc, newNoopMetrics(), WithBufferSize(4))

	p.Start(context.Background())
	p.Stop()
	p.Start(context.Background())

	// the retry loop must be live again after the restart
	_ = p.Process(context.Background(), &models.Tick{Pair: "BTC_ETH", Price: 1})

	proc.mu.Lock()
	proc.fail = false
	proc.mu.Unlock()

	require.Eventually(t, func() bool { return proc.count() == 1 }, time.Second, 10*time.Millisecond)

	p.Stop()
	p.Stop()
}

func TestPipelineRetryDrainsBuffer(t *testing.T) {
	proc := &recordProc{fail: true}
	p := NewTickPipeline(proc, newNoopMetrics(), WithBufferSize(4))

	_ = p.Process(context.Background(), &models.Tick{Pair: "BTC_ETH", Price: 1})

	proc.mu.Lock()
	proc.fail = false
	proc.mu.Unlock()

	p.Start(context.Background())
	defer p.Stop()

	require.Eventually(t, func() bool { return proc.count() == 1 }, time.Second, 10*time.Millisecond)
}

package ticker

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinStream/internal/domain/models"
)

func TestSeriesMaterializeAggregatesBuffer(t *testing.T) {
	s := NewSeries("BTC_ETH", time.Minute)

	require.NoError(t, s.RecordTick(100, 2))
	require.NoError(t, s.RecordTick(110, 3))

	c := s.Materialize()
	assert.Equal(t, 110.0, c.High)
	assert.Equal(t, 100.0, c.Low)
	assert.Equal(t, 100.0, c.Open)
	assert.Equal(t, 110.0, c.Close)
	assert.Equal(t, 5.0, c.Volume)
	assert.Equal(t, 1, s.HistoryLen())
}

func TestSeriesMaterializeEmptyBufferYieldsFlatCandle(t *testing.T) {
	s := NewSeries("BTC_ETH", time.Minute)

	require.NoError(t, s.RecordTick(42, 1))
	s.Materialize()

	// buffer is now empty; flush again
	c := s.Materialize()
	assert.Equal(t, models.Candle{High: 42, Low: 42, Open: 42, Close: 42, Volume: 0}, c)
	assert.Equal(t, 2, s.HistoryLen())
}

func TestSeriesRecordTickRejectsInvalidValues(t *testing.T) {
	s := NewSeries("BTC_ETH", time.Minute)

	for _, tc := range []struct {
		name          string
		price, volume float64
	}{
		{"negative price", -1, 0},
		{"negative volume", 1, -1},
		{"nan price", math.NaN(), 0},
		{"inf volume", 1, math.Inf(1)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := s.RecordTick(tc.price, tc.volume)
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrInvalidValue))
		})
	}
}

func TestSeriesChangesShortHistoryAllZero(t *testing.T) {
	s := NewSeries("BTC_ETH", time.Minute)
	require.NoError(t, s.RecordTick(100, 1))
	s.Materialize()

	changes := s.Changes([]int{1, 5, 15})
	assert.Equal(t, []float64{0, 0, 0}, changes)
}

func TestSeriesChangesClampDeepHorizons(t *testing.T) {
	s := NewSeries("BTC_ETH", time.Minute)
	for _, p := range []float64{100, 102, 104, 106} {
		require.NoError(t, s.RecordTick(p, 1))
		s.Materialize()
	}

	changes := s.Changes([]int{1, 2, 10})
	require.Len(t, changes, 3)
	assert.InDelta(t, 0.0, changes[0], 1e-9)                   // vs close 106
	assert.InDelta(t, (106.0-104.0)*100/104.0, changes[1], 1e-9) // vs close 104
	assert.InDelta(t, 6.0, changes[2], 1e-9)                   // clamped to oldest close 100
}

func TestSeriesChangesZeroReferenceGuard(t *testing.T) {
	s := NewSeries("BTC_ETH", time.Minute)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.RecordTick(0, 0))
		s.Materialize()
	}

	changes := s.Changes([]int{1, 2})
	assert.Equal(t, []float64{0, 0}, changes)
}

func TestSeriesImportBackfillExpandsCoarseCandles(t *testing.T) {
	s := NewSeries("BTC_ETH", time.Minute)

	src := []models.Candle{{High: 110, Low: 90, Open: 100, Close: 105, Volume: 50}}
	require.NoError(t, s.ImportBackfill(src, 300))

	history := s.History(0)
	require.Len(t, history, 5)
	for i, c := range history {
		assert.Equal(t, 110.0, c.High)
		assert.Equal(t, 90.0, c.Low)
		assert.Equal(t, 100.0, c.Open)
		assert.Equal(t, 10.0, c.Volume)
		if i < 4 {
			assert.Equal(t, 100.0, c.Close, "intermediate clones keep the source open as close")
		} else {
			assert.Equal(t, 105.0, c.Close, "last clone keeps the true close")
		}
	}
}

func TestSeriesImportBackfillReplacesHistory(t *testing.T) {
	s := NewSeries("BTC_ETH", time.Minute)
	require.NoError(t, s.RecordTick(1, 1))
	s.Materialize()

	src := []models.Candle{
		{High: 2, Low: 1, Open: 1, Close: 2, Volume: 4},
		{High: 3, Low: 2, Open: 2, Close: 3, Volume: 4},
	}
	require.NoError(t, s.ImportBackfill(src, 120))
	assert.Equal(t, 4, s.HistoryLen())
}

func TestSeriesImportBackfillValidation(t *testing.T) {
	s := NewSeries("BTC_ETH", time.Minute)

	err := s.ImportBackfill(nil, 300)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInvalidValue))

	err = s.ImportBackfill([]models.Candle{{}}, 90)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInvalidValue))
}

func TestSeriesHistoryLimit(t *testing.T) {
	s := NewSeries("BTC_ETH", time.Minute)
	for _, p := range []float64{1, 2, 3, 4} {
		require.NoError(t, s.RecordTick(p, 0))
		s.Materialize()
	}

	recent := s.History(2)
	require.Len(t, recent, 2)
	assert.Equal(t, 3.0, recent[0].Close)
	assert.Equal(t, 4.0, recent[1].Close)

	assert.Len(t, s.History(0), 4)
	assert.Len(t, s.History(100), 4)
}

func TestSeriesConcurrentRecordAndMaterialize(t *testing.T) {
	s := NewSeries("BTC_ETH", time.Minute)
	const writers, perWriter = 4, 250

	var wg sync.WaitGroup
	wg.Add(writers + 1)
	for w := 0; w < writers; w++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_ = s.RecordTick(100, 1)
			}
		}()
	}
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			s.Materialize()
		}
	}()
	wg.Wait()
	s.Materialize()

	// every tick lands in exactly one candle, regardless of interleaving
	var total float64
	for _, c := range s.History(0) {
		total += c.Volume
	}
	assert.Equal(t, float64(writers*perWriter), total)
}

func TestSeriesSummaryFormat(t *testing.T) {
	s := NewSeries("BTC_ETH", time.Minute)
	require.NoError(t, s.RecordTick(0.041, 1))

	got := s.Summary([]int{1, 5, 60})
	assert.Equal(t, "BTC_ETH: 0.04100000 1m: 0.00% 5m: 0.00% 1h: 0.00%", got)
}
